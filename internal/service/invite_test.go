package service

import (
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/carepath/internal/apperr"
	"github.com/lalith-99/carepath/internal/auth"
	"github.com/lalith-99/carepath/internal/mail"
	"github.com/lalith-99/carepath/internal/models"
	"github.com/lalith-99/carepath/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInviteParticipantLowercasesAndMails(t *testing.T) {
	f := newFixture(t)

	p := f.invite("  Pat@Example.COM ")
	assert.Equal(t, "pat@example.com", p.Email)
	assert.Equal(t, models.StatusInvited, p.Status)
	assert.Equal(t, models.ParticipantPrimary, p.Type)
	assert.Equal(t, models.DefaultPreferences(), p.Preferences)

	msg, ok := f.mail.Last("pat@example.com")
	require.True(t, ok)
	assert.Equal(t, mail.ParticipantInvite, msg.Template)
	assert.Equal(t, testCode, msg.Data.Code)
	assert.Equal(t, "Lakeside Ortho", msg.Data.Group)
}

func TestInviteParticipantDuplicateEmailIgnoresCase(t *testing.T) {
	f := newFixture(t)
	f.invite("pat@example.com")

	_, err := f.svc.InviteParticipant(f.ctx, InviteInput{GroupID: f.group.ID, Email: "PAT@example.com"})
	assertAppErr(t, err, http.StatusForbidden, apperr.MsgDuplicateEmail)

	_, total, err := f.store.Participants.List(f.ctx, repository.ParticipantFilter{GroupID: f.group.ID}, repository.Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestInviteParticipantUnknownGroup(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.InviteParticipant(f.ctx, InviteInput{GroupID: uuid.New(), Email: "x@example.com"})
	assertAppErr(t, err, http.StatusForbidden, msgGroupNotFound)
}

func TestResendInviteReplacesCode(t *testing.T) {
	f := newFixture(t)
	p := f.invite("pat@example.com")

	before, err := f.store.InviteCodes.Latest(f.ctx, p.ID, models.CodeInvite)
	require.NoError(t, err)

	require.NoError(t, f.svc.ResendInvite(f.ctx, "PAT@example.com"))
	after, err := f.store.InviteCodes.Latest(f.ctx, p.ID, models.CodeInvite)
	require.NoError(t, err)
	assert.NotEqual(t, before.ID, after.ID)
	assert.Len(t, f.mail.Sent(), 2)

	err = f.svc.ResendInvite(f.ctx, "nobody@example.com")
	assertAppErr(t, err, http.StatusForbidden, msgNoInvite)
}

func TestResendInviteKeepsPrimaryPartner(t *testing.T) {
	f := newFixture(t)
	primary := f.signup("pat@example.com")
	sp := f.support(primary, "sam@example.com", false)

	require.NoError(t, f.svc.ResendInvite(f.ctx, "sam@example.com"))
	code, err := f.store.InviteCodes.Latest(f.ctx, sp.ID, models.CodeInvite)
	require.NoError(t, err)
	require.NotNil(t, code.PrimaryPartnerID)
	assert.Equal(t, primary.ID, *code.PrimaryPartnerID)
}

func TestVerifyInviteIssuesToken(t *testing.T) {
	f := newFixture(t)
	p := f.invite("pat@example.com")

	res, err := f.svc.VerifyInvite(f.ctx, "pat@example.com", testCode)
	require.NoError(t, err)
	assert.Equal(t, p.ID, res.Participant.ID)

	c := f.claims(res.Token)
	assert.Equal(t, p.ID, c.SubjectID)
	assert.Equal(t, f.group.ID, c.GroupID)
	assert.Equal(t, auth.RoleParticipant, c.Role)
	assert.Equal(t, "PRIMARY", c.Type)
	assert.Nil(t, c.PrimaryPartner)

	live, err := f.svc.ValidateSession(f.ctx, c.SessionID, p.ID)
	require.NoError(t, err)
	assert.True(t, live)
}

func TestVerifyInviteSecondTimeFails(t *testing.T) {
	f := newFixture(t)
	f.invite("pat@example.com")

	_, err := f.svc.VerifyInvite(f.ctx, "pat@example.com", testCode)
	require.NoError(t, err)

	_, err = f.svc.VerifyInvite(f.ctx, "pat@example.com", testCode)
	assertAppErr(t, err, http.StatusForbidden, apperr.MsgInvalidInvite)
}

func TestVerifyInviteLocksOut(t *testing.T) {
	f := newFixture(t)
	f.invite("pat@example.com")

	for i := 0; i < 2; i++ {
		_, err := f.svc.VerifyInvite(f.ctx, "pat@example.com", "000000")
		assertAppErr(t, err, http.StatusForbidden, apperr.MsgInvalidInvite)
	}
	_, err := f.svc.VerifyInvite(f.ctx, "pat@example.com", "000000")
	assert.True(t, apperr.LockedOut(err))

	_, err = f.svc.VerifyInvite(f.ctx, "pat@example.com", testCode)
	assert.True(t, apperr.LockedOut(err))
}

func TestVerifyInviteArchivedGroup(t *testing.T) {
	f := newFixture(t)
	f.invite("pat@example.com")
	require.NoError(t, f.store.Groups.SetArchived(f.ctx, f.group.ID, true))

	_, err := f.svc.VerifyInvite(f.ctx, "pat@example.com", testCode)
	assertAppErr(t, err, http.StatusUnauthorized, apperr.MsgUnauthorized)
}

func TestVerifyInviteRequiresActivePrimary(t *testing.T) {
	f := newFixture(t)
	primary := f.signup("pat@example.com")
	f.support(primary, "sam@example.com", false)

	_, err := f.svc.SuspendParticipant(f.ctx, f.group.ID, primary.ID, "")
	require.NoError(t, err)

	_, err = f.svc.VerifyInvite(f.ctx, "sam@example.com", testCode)
	assertAppErr(t, err, http.StatusForbidden, msgNoActivePrimary)
}

func TestCompleteSignupActivatesAndLogsOut(t *testing.T) {
	f := newFixture(t)
	f.invite("pat@example.com")

	res, err := f.svc.VerifyInvite(f.ctx, "pat@example.com", testCode)
	require.NoError(t, err)
	c := f.claims(res.Token)

	v, err := f.svc.CompleteSignup(f.ctx, c.SubjectID, c.SessionID, nil, SignupInput{Name: "Patricia", Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, v.Status)
	assert.Equal(t, "Patricia", v.Name)

	live, err := f.svc.ValidateSession(f.ctx, c.SessionID, c.SubjectID)
	require.NoError(t, err)
	assert.False(t, live)

	_, err = f.svc.CompleteSignup(f.ctx, c.SubjectID, c.SessionID, nil, SignupInput{Password: testPassword})
	assertAppErr(t, err, http.StatusForbidden, apperr.MsgNotInvited)
}

func TestCompleteSignupShortPassword(t *testing.T) {
	f := newFixture(t)
	p := f.invite("pat@example.com")

	_, err := f.svc.CompleteSignup(f.ctx, p.ID, uuid.New(), nil, SignupInput{Password: "abc"})
	assertAppErr(t, err, http.StatusForbidden, "Password must be at least 6 characters long.")
	assert.Equal(t, models.StatusInvited, f.reload(p.ID).Status)
}

func TestCompleteSignupSupportConflictCreatesNothing(t *testing.T) {
	f := newFixture(t)
	f.invite("taken@example.com")
	p := f.invite("pat@example.com")

	res, err := f.svc.VerifyInvite(f.ctx, "pat@example.com", testCode)
	require.NoError(t, err)
	c := f.claims(res.Token)

	_, err = f.svc.CompleteSignup(f.ctx, c.SubjectID, c.SessionID, nil, SignupInput{
		Password:           testPassword,
		SupportPersonName:  "Sam",
		SupportPersonEmail: "TAKEN@example.com",
	})
	assertAppErr(t, err, http.StatusForbidden, msgSupportPersonUsed)

	assert.Equal(t, models.StatusInvited, f.reload(p.ID).Status)
	_, total, err := f.store.Participants.List(f.ctx, repository.ParticipantFilter{GroupID: f.group.ID}, repository.Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestCompleteSignupInvitesSupportPerson(t *testing.T) {
	f := newFixture(t)
	f.invite("pat@example.com")
	primary := f.activate("pat@example.com", SignupInput{
		SupportPersonName:  "Sam",
		SupportPersonEmail: "Sam@Example.com",
	})

	sp, err := f.store.Participants.GetByEmail(f.ctx, "sam@example.com")
	require.NoError(t, err)
	require.NotNil(t, sp)
	assert.Equal(t, models.ParticipantSecondary, sp.Type)
	assert.Equal(t, models.StatusInvited, sp.Status)
	assert.Equal(t, primary.StageID, sp.StageID)

	pp, err := f.store.Partners.PrimaryOf(f.ctx, sp.ID)
	require.NoError(t, err)
	require.NotNil(t, pp)
	assert.Equal(t, primary.ID, pp.PrimaryID)
	assert.Equal(t, models.PartnerInvited, pp.Status)

	_, ok := f.mail.Last("sam@example.com")
	assert.True(t, ok)
}

func TestSecondarySignupActivatesPartnership(t *testing.T) {
	f := newFixture(t)
	primary := f.signup("pat@example.com")
	f.support(primary, "sam@example.com", false)

	res, err := f.svc.VerifyInvite(f.ctx, "sam@example.com", testCode)
	require.NoError(t, err)
	c := f.claims(res.Token)
	require.NotNil(t, c.PrimaryPartner)
	assert.Equal(t, primary.ID, *c.PrimaryPartner)

	_, err = f.svc.CompleteSignup(f.ctx, c.SubjectID, c.SessionID, c.PrimaryPartner, SignupInput{Password: testPassword})
	require.NoError(t, err)

	pp, err := f.store.Partners.PrimaryOf(f.ctx, c.SubjectID)
	require.NoError(t, err)
	assert.Equal(t, models.PartnerActive, pp.Status)
}

func TestInviteParticipantRejectsForeignPrimary(t *testing.T) {
	f := newFixture(t)
	primary := f.signup("pat@example.com")
	other, err := f.store.Groups.Create(f.ctx, "Other Clinic")
	require.NoError(t, err)
	secondary := f.support(primary, "sam@example.com", false)

	tests := []struct {
		name      string
		groupID   uuid.UUID
		primaryID uuid.UUID
	}{
		{"primary of another group", other.ID, primary.ID},
		{"unknown primary", f.group.ID, uuid.New()},
		{"secondary as primary", f.group.ID, secondary.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email := uuid.NewString() + "@example.com"
			_, err := f.svc.InviteParticipant(f.ctx, InviteInput{
				GroupID:   tt.groupID,
				Email:     email,
				Type:      models.ParticipantSecondary,
				PrimaryID: idPtr(tt.primaryID),
			})
			assertAppErr(t, err, http.StatusForbidden, msgPrimaryNotFound)

			p, err := f.store.Participants.GetByEmail(f.ctx, email)
			require.NoError(t, err)
			assert.Nil(t, p)
		})
	}

	contacts, err := f.svc.GetPartnersContacts(f.ctx, primary.ID)
	require.NoError(t, err)
	assert.Empty(t, contacts)
}

type failingCodes struct{}

func (failingCodes) Generate(int) (string, error) {
	return "", errors.New("entropy source unavailable")
}

func TestCompleteSignupFailedSupportInviteKeepsPrimaryInvited(t *testing.T) {
	f := newFixture(t)
	p := f.invite("pat@example.com")

	res, err := f.svc.VerifyInvite(f.ctx, "pat@example.com", testCode)
	require.NoError(t, err)
	c := f.claims(res.Token)

	f.svc.codes = failingCodes{}
	_, err = f.svc.CompleteSignup(f.ctx, c.SubjectID, c.SessionID, nil, SignupInput{
		Password:           testPassword,
		SupportPersonName:  "Sam",
		SupportPersonEmail: "sam@example.com",
	})
	require.Error(t, err)

	assert.Equal(t, models.StatusInvited, f.reload(p.ID).Status)
	live, err := f.svc.ValidateSession(f.ctx, c.SessionID, c.SubjectID)
	require.NoError(t, err)
	assert.True(t, live)

	f.svc.codes = auth.FixedCode(testCode)
	_, err = f.svc.CompleteSignup(f.ctx, c.SubjectID, c.SessionID, nil, SignupInput{
		Password:           testPassword,
		SupportPersonName:  "Sam",
		SupportPersonEmail: "sam@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, f.reload(p.ID).Status)
}
