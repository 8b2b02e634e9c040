package service

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/carepath/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergePrimaryIntoSecondary(t *testing.T) {
	stage := uuid.New()
	loc := uuid.New()
	surgery := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	primary := &models.Participant{
		ID:            uuid.New(),
		Type:          models.ParticipantPrimary,
		StageID:       &stage,
		LocationID:    &loc,
		DateOfSurgery: &surgery,
	}
	secondary := ParticipantView{Participant: models.Participant{ID: uuid.New(), Type: models.ParticipantSecondary}}

	once := MergePrimaryIntoSecondary(secondary, primary)
	twice := MergePrimaryIntoSecondary(once, primary)
	assert.Equal(t, once, twice)
	assert.Equal(t, stage, *once.StageID)
	assert.Equal(t, loc, *once.LocationID)
	assert.True(t, surgery.Equal(*once.DateOfSurgery))
	assert.Equal(t, primary.ID, *once.PrimaryPartner)

	// The input is not touched.
	assert.Nil(t, secondary.StageID)

	// Primaries and unlinked secondaries pass through.
	pv := ParticipantView{Participant: *primary}
	assert.Equal(t, pv, MergePrimaryIntoSecondary(pv, primary))
	assert.Equal(t, secondary, MergePrimaryIntoSecondary(secondary, nil))
}

func TestGetMyProfileListsSupportPersons(t *testing.T) {
	f := newFixture(t)
	primary := f.signup("pat@example.com")
	active := f.support(primary, "sam@example.com", true)

	removed := f.support(primary, "kim@example.com", false)
	_, err := f.svc.RemoveSupportPerson(f.ctx, primary.ID, removed.ID)
	require.NoError(t, err)

	prof, err := f.svc.GetMyProfile(f.ctx, primary.ID)
	require.NoError(t, err)
	require.NotNil(t, prof.Stage)
	assert.Equal(t, "Pre-op", prof.Stage.Name)
	require.Len(t, prof.SupportPersons, 1)
	assert.Equal(t, active.ID, prof.SupportPersons[0].ID)

	_, err = f.svc.GetMyProfile(f.ctx, uuid.New())
	assertAppErr(t, err, http.StatusForbidden, msgNoParticipantFound)
}

func TestUpdateMyProfileCascadesStage(t *testing.T) {
	f := newFixture(t)
	primary := f.signup("pat@example.com")
	sp := f.support(primary, "sam@example.com", false)

	postOp, err := f.store.Stages.Create(f.ctx, &models.Stage{Name: "Post-op"})
	require.NoError(t, err)

	name := "Patricia"
	prefs := models.Preferences{PushNotifications: false, EmailNotifications: true}
	prof, err := f.svc.UpdateMyProfile(f.ctx, primary.ID, ProfileUpdate{
		Name:        &name,
		StageID:     idPtr(postOp.ID),
		Preferences: &prefs,
	})
	require.NoError(t, err)
	assert.Equal(t, "Patricia", prof.Name)
	assert.Equal(t, "Post-op", prof.Stage.Name)
	assert.Equal(t, prefs, prof.Preferences)

	assert.Equal(t, postOp.ID, *f.reload(sp.ID).StageID)

	_, err = f.svc.UpdateMyProfile(f.ctx, primary.ID, ProfileUpdate{StageID: idPtr(uuid.New())})
	assertAppErr(t, err, http.StatusForbidden, msgStageNotFound)
}

func TestAddSupportPerson(t *testing.T) {
	f := newFixture(t)
	primary := f.signup("pat@example.com")

	sp, err := f.svc.AddSupportPerson(f.ctx, primary.ID, "Sam", "Sam@Example.com")
	require.NoError(t, err)
	assert.Equal(t, models.ParticipantSecondary, sp.Type)
	assert.Equal(t, "sam@example.com", sp.Email)

	_, err = f.svc.AddSupportPerson(f.ctx, primary.ID, "Sam", "sam@example.com")
	assertAppErr(t, err, http.StatusMethodNotAllowed, msgSupportPersonUsed)

	_, err = f.svc.AddSupportPerson(f.ctx, uuid.New(), "Sam", "other@example.com")
	assertAppErr(t, err, http.StatusMethodNotAllowed, msgParticipantNotFound)
}

func TestUpdateSupportPerson(t *testing.T) {
	f := newFixture(t)
	primary := f.signup("pat@example.com")
	other := f.signup("lee@example.com")
	invited := f.support(primary, "sam@example.com", false)

	sp, err := f.svc.UpdateSupportPerson(f.ctx, primary.ID, invited.ID, "Samuel")
	require.NoError(t, err)
	assert.Equal(t, "Samuel", sp.Name)
	assert.Equal(t, "Samuel", f.reload(invited.ID).Name)

	_, err = f.svc.UpdateSupportPerson(f.ctx, other.ID, invited.ID, "X")
	assertAppErr(t, err, http.StatusForbidden, msgSupportPersonNotLinked)

	active := f.support(primary, "kim@example.com", true)
	_, err = f.svc.UpdateSupportPerson(f.ctx, primary.ID, active.ID, "X")
	assertAppErr(t, err, http.StatusForbidden, msgSupportPersonActive)
}

func TestRemoveInvitedSupportPersonKeepsLink(t *testing.T) {
	f := newFixture(t)
	primary := f.signup("pat@example.com")
	sp := f.support(primary, "sam@example.com", false)

	out, err := f.svc.RemoveSupportPerson(f.ctx, primary.ID, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuspended, out.Status)

	pp, err := f.store.Partners.PrimaryOf(f.ctx, sp.ID)
	require.NoError(t, err)
	require.NotNil(t, pp)
	assert.Equal(t, primary.ID, pp.PrimaryID)
}

func TestRemoveActiveSupportPersonUnlinks(t *testing.T) {
	f := newFixture(t)
	primary := f.signup("pat@example.com")
	sp := f.support(primary, "sam@example.com", true)

	out, err := f.svc.RemoveSupportPerson(f.ctx, primary.ID, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuspended, out.Status)

	pp, err := f.store.Partners.PrimaryOf(f.ctx, sp.ID)
	require.NoError(t, err)
	assert.Nil(t, pp)

	// Unlinked now, so a second removal is refused.
	_, err = f.svc.RemoveSupportPerson(f.ctx, primary.ID, sp.ID)
	assertAppErr(t, err, http.StatusForbidden, msgSupportPersonNotLinked)
}

func TestRemoveSupportPersonOfAnotherPrimary(t *testing.T) {
	f := newFixture(t)
	primary := f.signup("pat@example.com")
	other := f.signup("lee@example.com")
	sp := f.support(primary, "sam@example.com", false)

	_, err := f.svc.RemoveSupportPerson(f.ctx, other.ID, sp.ID)
	assertAppErr(t, err, http.StatusForbidden, msgSupportPersonNotLinked)
	assert.Equal(t, models.StatusInvited, f.reload(sp.ID).Status)

	_, err = f.svc.RemoveSupportPerson(f.ctx, primary.ID, uuid.New())
	assertAppErr(t, err, http.StatusForbidden, msgSupportPersonNotFound)
}

func TestGetPartnersContacts(t *testing.T) {
	f := newFixture(t)
	primary := f.signup("pat@example.com")
	sp := f.support(primary, "sam@example.com", true)
	f.support(primary, "kim@example.com", false)

	// Support persons are invited without a phone.
	phoneless, err := f.svc.GetPartnersContacts(f.ctx, primary.ID)
	require.NoError(t, err)
	assert.Empty(t, phoneless)

	withPhone := f.reload(sp.ID)
	withPhone.Phone = "555-0199"
	require.NoError(t, f.store.Participants.Update(f.ctx, withPhone))

	contacts, err := f.svc.GetPartnersContacts(f.ctx, primary.ID)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, sp.ID, contacts[0].ID)
	assert.Equal(t, "555-0199", contacts[0].Phone)

	contacts, err = f.svc.GetPartnersContacts(f.ctx, sp.ID)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, primary.ID, contacts[0].ID)
}
