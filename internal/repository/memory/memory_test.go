package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/carepath/internal/models"
	"github.com/lalith-99/carepath/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invite(t *testing.T, s repository.Store, email string, primaryID *uuid.UUID) *models.Participant {
	t.Helper()
	typ := models.ParticipantPrimary
	if primaryID != nil {
		typ = models.ParticipantSecondary
	}
	p, _, err := s.Participants.CreateInvite(context.Background(), repository.NewInvite{
		Participant: &models.Participant{
			GroupID: uuid.New(),
			Email:   email,
			Type:    typ,
			Status:  models.StatusInvited,
		},
		PrimaryID: primaryID,
		Code:      "111111",
	})
	require.NoError(t, err)
	return p
}

func TestCreateInviteEmailIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := New().Store()
	p := invite(t, s, "Pat@Example.com", nil)
	assert.Equal(t, "pat@example.com", p.Email)

	_, _, err := s.Participants.CreateInvite(ctx, repository.NewInvite{
		Participant: &models.Participant{Email: "PAT@example.COM"},
	})
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)

	got, err := s.Participants.GetByEmail(ctx, "pat@EXAMPLE.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.ID, got.ID)

	other := invite(t, s, "lee@example.com", nil)
	other.Email = "PAT@example.com"
	assert.ErrorIs(t, s.Participants.Update(ctx, other), repository.ErrDuplicateEmail)
}

func TestCreateInviteWritesPartnershipAndCode(t *testing.T) {
	ctx := context.Background()
	s := New().Store()
	primary := invite(t, s, "pat@example.com", nil)
	sp := invite(t, s, "sam@example.com", &primary.ID)

	pp, err := s.Partners.PrimaryOf(ctx, sp.ID)
	require.NoError(t, err)
	require.NotNil(t, pp)
	assert.Equal(t, models.PartnerInvited, pp.Status)

	code, err := s.InviteCodes.Find(ctx, sp.ID, models.CodeInvite, "111111")
	require.NoError(t, err)
	require.NotNil(t, code)
	assert.Equal(t, primary.ID, *code.PrimaryPartnerID)

	assert.ErrorIs(t, s.Partners.Link(ctx, sp.ID, uuid.New(), models.PartnerActive), repository.ErrPartnerLimit)
}

func TestActivateOnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := New().Store()
	p := invite(t, s, "pat@example.com", nil)

	ok, err := s.Participants.Activate(ctx, p.ID, "Pat", "hash")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Participants.Activate(ctx, p.ID, "Pat", "other")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConsumeOnce(t *testing.T) {
	ctx := context.Background()
	s := New().Store()
	p := invite(t, s, "pat@example.com", nil)

	code, err := s.InviteCodes.Latest(ctx, p.ID, models.CodeInvite)
	require.NoError(t, err)

	ok, err := s.InviteCodes.Consume(ctx, code.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.InviteCodes.Consume(ctx, code.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	code, err = s.InviteCodes.Find(ctx, p.ID, models.CodeInvite, "111111")
	require.NoError(t, err)
	assert.Nil(t, code)
}

func TestReplaceKeepsOneLiveCode(t *testing.T) {
	ctx := context.Background()
	s := New().Store()
	p := invite(t, s, "pat@example.com", nil)

	_, err := s.InviteCodes.Replace(ctx, &models.InviteCode{ParticipantID: p.ID, Kind: models.CodeInvite, Code: "222222"})
	require.NoError(t, err)

	old, err := s.InviteCodes.Find(ctx, p.ID, models.CodeInvite, "111111")
	require.NoError(t, err)
	assert.Nil(t, old)
	cur, err := s.InviteCodes.Find(ctx, p.ID, models.CodeInvite, "222222")
	require.NoError(t, err)
	assert.NotNil(t, cur)
}

func TestAttemptsClampAtMax(t *testing.T) {
	ctx := context.Background()
	s := New().Store()
	pid := uuid.New()

	for i := 1; i <= 5; i++ {
		n, err := s.Attempts.Increment(ctx, pid, models.CodeInvite, 3)
		require.NoError(t, err)
		assert.Equal(t, min(i, 3), n)
	}

	locked, err := s.Attempts.ClearUnlessLocked(ctx, pid, models.CodeInvite, 3)
	require.NoError(t, err)
	assert.True(t, locked)

	require.NoError(t, s.Attempts.Delete(ctx, pid, models.CodeInvite))
	_, err = s.Attempts.Increment(ctx, pid, models.CodeInvite, 3)
	require.NoError(t, err)
	locked, err = s.Attempts.ClearUnlessLocked(ctx, pid, models.CodeInvite, 3)
	require.NoError(t, err)
	assert.False(t, locked)

	a, err := s.Attempts.Get(ctx, pid, models.CodeInvite)
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestProviderLinksKeepOneDefault(t *testing.T) {
	ctx := context.Background()
	s := New().Store()
	group := uuid.New()
	pid := uuid.New()

	a, err := s.Providers.Create(ctx, &models.Provider{GroupID: group, Name: "a", Status: models.ProviderActive})
	require.NoError(t, err)
	b, err := s.Providers.Create(ctx, &models.Provider{GroupID: group, Name: "b", Status: models.ProviderActive})
	require.NoError(t, err)

	require.NoError(t, s.Providers.Link(ctx, pid, a.ID))
	require.NoError(t, s.Providers.Link(ctx, pid, b.ID))
	require.NoError(t, s.Providers.Link(ctx, pid, b.ID))

	ok, err := s.Providers.SetDefault(ctx, pid, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	links, err := s.Providers.LinksOf(ctx, pid)
	require.NoError(t, err)
	require.Len(t, links, 2)
	defaults := 0
	for _, l := range links {
		if l.IsDefault {
			defaults++
			assert.Equal(t, b.ID, l.ID)
		}
	}
	assert.Equal(t, 1, defaults)

	ok, err = s.Providers.SetDefault(ctx, pid, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)

	// Lookups are scoped to the group.
	got, err := s.Providers.GetByID(ctx, uuid.New(), a.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionsExpire(t *testing.T) {
	ctx := context.Background()
	db := New()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	db.SetClock(func() time.Time { return now })
	s := db.Store()

	sess, err := s.Sessions.Create(ctx, uuid.New(), "participant", time.Hour)
	require.NoError(t, err)

	got, err := s.Sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)

	now = now.Add(2 * time.Hour)
	got, err = s.Sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCascadeToSecondaries(t *testing.T) {
	ctx := context.Background()
	s := New().Store()
	primary := invite(t, s, "pat@example.com", nil)
	sp := invite(t, s, "sam@example.com", &primary.ID)
	invite(t, s, "lee@example.com", nil)

	stage := uuid.New()
	n, err := s.Participants.CascadeToSecondaries(ctx, primary.ID, repository.CareUpdate{StageID: &stage})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.Participants.GetByID(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, stage, *got.StageID)
}
