package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lalith-99/carepath/internal/apperr"
	"github.com/lalith-99/carepath/internal/models"
	"github.com/lalith-99/carepath/internal/observ"
	"github.com/lalith-99/carepath/internal/repository"
	"go.uber.org/zap"
)

// AttemptLimiter counts failed one-time code checks per participant and
// code kind. Once the counter reaches max every check fails with the
// lockout error, even with the right code, until Reset clears it.
type AttemptLimiter struct {
	attempts repository.AttemptRepository
	max      int
	metrics  *observ.Metrics
	logger   *zap.Logger
}

func NewAttemptLimiter(attempts repository.AttemptRepository, max int, metrics *observ.Metrics, logger *zap.Logger) *AttemptLimiter {
	if max < 1 {
		max = 1
	}
	return &AttemptLimiter{attempts: attempts, max: max, metrics: metrics, logger: logger}
}

func invalidCode(kind models.CodeKind) *apperr.Error {
	if kind == models.CodeInvite {
		return apperr.Forbidden(apperr.MsgInvalidInvite)
	}
	return apperr.Forbidden(apperr.MsgInvalidCode)
}

// Check records the outcome of one code check. codeFound reports whether
// the submitted code matched the live code.
//
// A miss bumps the counter (clamped at max) and returns the invalid-code
// error, or the lockout error when the bump reached max. A hit clears the
// counter and returns nil unless the counter is already at max.
func (l *AttemptLimiter) Check(ctx context.Context, participantID uuid.UUID, kind models.CodeKind, codeFound bool) error {
	if !codeFound {
		count, err := l.attempts.Increment(ctx, participantID, kind, l.max)
		if err != nil {
			return fmt.Errorf("increment attempts: %w", err)
		}
		if count >= l.max {
			l.record(kind, observ.OutcomeLocked)
			l.logger.Warn("code attempts exhausted",
				zap.String("participant_id", participantID.String()),
				zap.String("kind", string(kind)),
				zap.Int("count", count),
			)
			return apperr.ErrLockedOut
		}
		l.record(kind, observ.OutcomeInvalid)
		return invalidCode(kind)
	}

	locked, err := l.attempts.ClearUnlessLocked(ctx, participantID, kind, l.max)
	if err != nil {
		return fmt.Errorf("clear attempts: %w", err)
	}
	if locked {
		l.record(kind, observ.OutcomeLocked)
		return apperr.ErrLockedOut
	}
	l.record(kind, observ.OutcomeOK)
	return nil
}

// Reset drops the counter. Admins use it to lift a lockout.
func (l *AttemptLimiter) Reset(ctx context.Context, participantID uuid.UUID, kind models.CodeKind) error {
	if err := l.attempts.Delete(ctx, participantID, kind); err != nil {
		return fmt.Errorf("reset attempts: %w", err)
	}
	return nil
}

func (l *AttemptLimiter) record(kind models.CodeKind, outcome string) {
	if l.metrics == nil {
		return
	}
	l.metrics.CodeVerifications.WithLabelValues(string(kind), outcome).Inc()
}
