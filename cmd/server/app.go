package main

import (
	"context"
	"fmt"
	"time"

	"github.com/lalith-99/carepath/internal/api"
	"github.com/lalith-99/carepath/internal/auth"
	"github.com/lalith-99/carepath/internal/config"
	"github.com/lalith-99/carepath/internal/db"
	"github.com/lalith-99/carepath/internal/mail"
	"github.com/lalith-99/carepath/internal/media"
	"github.com/lalith-99/carepath/internal/observ"
	"github.com/lalith-99/carepath/internal/repository"
	"github.com/lalith-99/carepath/internal/repository/memory"
	"github.com/lalith-99/carepath/internal/repository/postgres"
	"github.com/lalith-99/carepath/internal/repository/redisstore"
	"github.com/lalith-99/carepath/internal/service"
	"go.uber.org/zap"
)

const thumbnailTimeout = 5 * time.Second

type app struct {
	svc     *service.Service
	metrics *observ.Metrics
	health  api.HealthFunc
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp connects the configured store and builds the service on top of it.
// Close releases whatever was opened.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{metrics: observ.NewMetrics()}

	var store repository.Store
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		store = memory.New().Store()
	case config.StorePostgres:
		database, err := db.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, database.Close)

		rdb, err := db.NewRedis(ctx, cfg.RedisURL, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })

		store = postgres.NewStore(database.Pool())
		store.Sessions = redisstore.NewSessionStore(rdb)
		a.health = func(ctx context.Context) error {
			if err := database.Health(ctx); err != nil {
				return err
			}
			return rdb.Ping(ctx).Err()
		}
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	var mailer mail.Mailer
	if cfg.SMTP.Enabled() {
		mailer = mail.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From, logger)
	} else {
		logger.Info("SMTP not configured, mail will be logged")
		mailer = mail.NewLogMailer(logger)
	}

	a.svc = service.New(service.Deps{
		Store:       store,
		Mailer:      mailer,
		Thumbnailer: media.NewOEmbed(thumbnailTimeout, nil),
		Codes:       auth.NumericCodes{},
		Metrics:     a.metrics,
		Logger:      logger,
	}, service.Options{
		MaxAttempts:       cfg.MaxAttempts,
		InviteCodeLength:  cfg.InviteCodeLength,
		ResetCodeLength:   cfg.ResetCodeLength,
		MinPasswordLength: cfg.MinPasswordLength,
		TokenTTL:          cfg.TokenTTL,
		SessionTTL:        cfg.SessionTTL,
		JWTSecret:         cfg.JWTSecret,
	})
	return a, nil
}
