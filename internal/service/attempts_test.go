package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/carepath/internal/apperr"
	"github.com/lalith-99/carepath/internal/models"
	"github.com/lalith-99/carepath/internal/observ"
	"github.com/lalith-99/carepath/internal/repository/memory"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLimiter(max int) (*AttemptLimiter, *observ.Metrics, *memory.DB) {
	db := memory.New()
	m := observ.NewMetrics()
	return NewAttemptLimiter(db.Store().Attempts, max, m, zap.NewNop()), m, db
}

func TestLimiterLocksOnMaxthFailure(t *testing.T) {
	ctx := context.Background()
	l, m, _ := newLimiter(3)
	pid := uuid.New()

	err := l.Check(ctx, pid, models.CodeInvite, false)
	assertAppErr(t, err, http.StatusForbidden, apperr.MsgInvalidInvite)
	err = l.Check(ctx, pid, models.CodeInvite, false)
	assertAppErr(t, err, http.StatusForbidden, apperr.MsgInvalidInvite)

	err = l.Check(ctx, pid, models.CodeInvite, false)
	assert.True(t, apperr.LockedOut(err))

	// The right code does not help once locked.
	err = l.Check(ctx, pid, models.CodeInvite, true)
	assert.True(t, apperr.LockedOut(err))

	// Further misses stay clamped and locked.
	err = l.Check(ctx, pid, models.CodeInvite, false)
	assert.True(t, apperr.LockedOut(err))

	require.NoError(t, l.Reset(ctx, pid, models.CodeInvite))
	assert.NoError(t, l.Check(ctx, pid, models.CodeInvite, true))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CodeVerifications.WithLabelValues("INVITE", observ.OutcomeInvalid)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CodeVerifications.WithLabelValues("INVITE", observ.OutcomeLocked)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CodeVerifications.WithLabelValues("INVITE", observ.OutcomeOK)))
}

func TestLimiterSuccessClearsCounter(t *testing.T) {
	ctx := context.Background()
	l, _, db := newLimiter(3)
	pid := uuid.New()

	_ = l.Check(ctx, pid, models.CodeResetPassword, false)
	_ = l.Check(ctx, pid, models.CodeResetPassword, false)
	require.NoError(t, l.Check(ctx, pid, models.CodeResetPassword, true))

	a, err := db.Store().Attempts.Get(ctx, pid, models.CodeResetPassword)
	require.NoError(t, err)
	assert.Nil(t, a)

	// The counter starts over after a success.
	err = l.Check(ctx, pid, models.CodeResetPassword, false)
	assertAppErr(t, err, http.StatusForbidden, apperr.MsgInvalidCode)
}

func TestLimiterCountsKindsSeparately(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLimiter(2)
	pid := uuid.New()

	_ = l.Check(ctx, pid, models.CodeInvite, false)
	err := l.Check(ctx, pid, models.CodeInvite, false)
	assert.True(t, apperr.LockedOut(err))

	assert.NoError(t, l.Check(ctx, pid, models.CodeResetPassword, true))
}

func TestLimiterSingleAttempt(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLimiter(1)
	pid := uuid.New()

	err := l.Check(ctx, pid, models.CodeInvite, false)
	assert.True(t, apperr.LockedOut(err))
}
