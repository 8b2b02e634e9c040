// Package service holds the participant, resource and task operations the
// HTTP handlers call. It owns the authorization rules (group membership,
// active groups, partner links) and shapes the response views; storage is
// behind repository.Store so the same code runs on Postgres and in memory.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/carepath/internal/apperr"
	"github.com/lalith-99/carepath/internal/auth"
	"github.com/lalith-99/carepath/internal/mail"
	"github.com/lalith-99/carepath/internal/media"
	"github.com/lalith-99/carepath/internal/models"
	"github.com/lalith-99/carepath/internal/observ"
	"github.com/lalith-99/carepath/internal/repository"
	"go.uber.org/zap"
)

// SessionModel is the session model name for participant sessions.
const SessionModel = "participant"

type Options struct {
	MaxAttempts       int
	InviteCodeLength  int
	ResetCodeLength   int
	MinPasswordLength int
	TokenTTL          time.Duration
	SessionTTL        time.Duration
	JWTSecret         string
}

// DefaultOptions matches the config defaults.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:       5,
		InviteCodeLength:  6,
		ResetCodeLength:   4,
		MinPasswordLength: 6,
		TokenTTL:          24 * time.Hour,
		SessionTTL:        24 * time.Hour,
	}
}

type Deps struct {
	Store       repository.Store
	Mailer      mail.Mailer
	Thumbnailer media.Thumbnailer
	Codes       auth.CodeGenerator
	Metrics     *observ.Metrics
	Logger      *zap.Logger
}

type Service struct {
	store   repository.Store
	mailer  mail.Mailer
	thumbs  media.Thumbnailer
	codes   auth.CodeGenerator
	metrics *observ.Metrics
	logger  *zap.Logger
	opts    Options
	limiter *AttemptLimiter
	now     func() time.Time
}

func New(deps Deps, opts Options) *Service {
	if deps.Codes == nil {
		deps.Codes = auth.NumericCodes{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = observ.NewMetrics()
	}
	return &Service{
		store:   deps.Store,
		mailer:  deps.Mailer,
		thumbs:  deps.Thumbnailer,
		codes:   deps.Codes,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		opts:    opts,
		limiter: NewAttemptLimiter(deps.Store.Attempts, opts.MaxAttempts, deps.Metrics, deps.Logger),
		now:     time.Now,
	}
}

// SetClock replaces the time source used for task periods.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) Limiter() *AttemptLimiter {
	return s.limiter
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// activeGroup loads the group and fails with inactive when it is missing
// or archived.
func (s *Service) activeGroup(ctx context.Context, id uuid.UUID, inactive *apperr.Error) (*models.Group, error) {
	g, err := s.store.Groups.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if g == nil || g.Archived {
		return nil, inactive
	}
	return g, nil
}

// participantIn loads a participant and checks that it belongs to the
// group. A participant from another group is reported as missing.
func (s *Service) participantIn(ctx context.Context, groupID, id uuid.UUID) (*models.Participant, error) {
	p, err := s.store.Participants.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	if p == nil || p.GroupID != groupID {
		return nil, nil
	}
	return p, nil
}

// issueSession creates a session and signs a participant token for it.
func (s *Service) issueSession(ctx context.Context, p *models.Participant, primaryPartner *uuid.UUID) (string, error) {
	sess, err := s.store.Sessions.Create(ctx, p.ID, SessionModel, s.opts.SessionTTL)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	token, err := auth.GenerateToken(auth.Identity{
		SubjectID:      p.ID,
		GroupID:        p.GroupID,
		Role:           auth.RoleParticipant,
		Type:           string(p.Type),
		SessionID:      sess.ID,
		PrimaryPartner: primaryPartner,
	}, s.opts.JWTSecret, s.opts.TokenTTL)
	if err != nil {
		return "", err
	}
	return token, nil
}

// IssueOperatorToken backs the token command: it creates a session for an
// admin, group admin or provider and signs a token for it.
func (s *Service) IssueOperatorToken(ctx context.Context, subjectID, groupID uuid.UUID, role auth.Role) (string, error) {
	if !role.Valid() || role == auth.RoleParticipant {
		return "", fmt.Errorf("role %q cannot be issued by operators", role)
	}
	sess, err := s.store.Sessions.Create(ctx, subjectID, string(role), s.opts.SessionTTL)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return auth.GenerateToken(auth.Identity{
		SubjectID: subjectID,
		GroupID:   groupID,
		Role:      role,
		SessionID: sess.ID,
	}, s.opts.JWTSecret, s.opts.TokenTTL)
}

// sendMail delivers after the write it belongs to has committed. A failed
// delivery is logged and the caller can resend; it does not undo the write.
func (s *Service) sendMail(ctx context.Context, to string, tmpl mail.Template, data mail.Data) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.Send(ctx, to, tmpl, data); err != nil {
		s.logger.Error("failed to send mail",
			zap.String("template", string(tmpl)),
			zap.String("to", to),
			zap.Error(err),
		)
	}
}
