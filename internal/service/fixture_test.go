package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/carepath/internal/apperr"
	"github.com/lalith-99/carepath/internal/auth"
	"github.com/lalith-99/carepath/internal/mail"
	"github.com/lalith-99/carepath/internal/models"
	"github.com/lalith-99/carepath/internal/repository"
	"github.com/lalith-99/carepath/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "test-secret"
	testCode     = "123456"
	testPassword = "secret1"
)

type fakeThumbs struct {
	url   string
	err   error
	calls int
}

func (f *fakeThumbs) Thumbnail(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.url, f.err
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	db     *memory.DB
	store  repository.Store
	svc    *Service
	mail   *mail.Recorder
	thumbs *fakeThumbs
	group  *models.Group
	stage  *models.Stage
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := memory.New()
	store := db.Store()
	rec := &mail.Recorder{}
	thumbs := &fakeThumbs{url: "https://img.example/thumb.jpg"}

	opts := DefaultOptions()
	opts.JWTSecret = testSecret
	opts.MaxAttempts = 3

	svc := New(Deps{
		Store:       store,
		Mailer:      rec,
		Thumbnailer: thumbs,
		Codes:       auth.FixedCode(testCode),
	}, opts)

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })

	ctx := context.Background()
	g, err := store.Groups.Create(ctx, "Lakeside Ortho")
	require.NoError(t, err)
	st, err := store.Stages.Create(ctx, &models.Stage{Name: "Pre-op"})
	require.NoError(t, err)

	return &fixture{
		t:      t,
		ctx:    ctx,
		db:     db,
		store:  store,
		svc:    svc,
		mail:   rec,
		thumbs: thumbs,
		group:  g,
		stage:  st,
		now:    now,
	}
}

func idPtr(id uuid.UUID) *uuid.UUID { return &id }

func (f *fixture) invite(email string) *models.Participant {
	f.t.Helper()
	surgery := f.now.Add(-10 * 24 * time.Hour)
	p, err := f.svc.InviteParticipant(f.ctx, InviteInput{
		GroupID:       f.group.ID,
		Name:          "Pat",
		Email:         email,
		Phone:         "555-0100",
		StageID:       idPtr(f.stage.ID),
		DateOfSurgery: &surgery,
	})
	require.NoError(f.t, err)
	return p
}

func (f *fixture) claims(token string) *auth.Claims {
	f.t.Helper()
	c, err := auth.ParseToken(token, testSecret)
	require.NoError(f.t, err)
	return c
}

// activate verifies the invite and completes signup for email.
func (f *fixture) activate(email string, in SignupInput) *models.Participant {
	f.t.Helper()
	res, err := f.svc.VerifyInvite(f.ctx, email, testCode)
	require.NoError(f.t, err)
	c := f.claims(res.Token)
	if in.Password == "" {
		in.Password = testPassword
	}
	_, err = f.svc.CompleteSignup(f.ctx, c.SubjectID, c.SessionID, c.PrimaryPartner, in)
	require.NoError(f.t, err)
	return f.reload(c.SubjectID)
}

// signup invites and activates a PRIMARY.
func (f *fixture) signup(email string) *models.Participant {
	f.t.Helper()
	f.invite(email)
	return f.activate(email, SignupInput{Name: "Pat"})
}

// support adds a support person to primary and optionally activates it.
func (f *fixture) support(primary *models.Participant, email string, activate bool) *models.Participant {
	f.t.Helper()
	sp, err := f.svc.AddSupportPerson(f.ctx, primary.ID, "Sam", email)
	require.NoError(f.t, err)
	if !activate {
		return sp
	}
	return f.activate(email, SignupInput{Name: "Sam"})
}

func (f *fixture) reload(id uuid.UUID) *models.Participant {
	f.t.Helper()
	p, err := f.store.Participants.GetByID(f.ctx, id)
	require.NoError(f.t, err)
	require.NotNil(f.t, p)
	return p
}

func assertAppErr(t *testing.T, err error, status int, msg string) {
	t.Helper()
	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, status, e.Status)
	if msg != "" {
		assert.Equal(t, msg, e.Message)
	}
}
