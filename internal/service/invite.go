package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/carepath/internal/apperr"
	"github.com/lalith-99/carepath/internal/auth"
	"github.com/lalith-99/carepath/internal/mail"
	"github.com/lalith-99/carepath/internal/models"
	"github.com/lalith-99/carepath/internal/repository"
	"go.uber.org/zap"
)

const (
	msgNoInvite          = "No invite found against this email address"
	msgNoActivePrimary   = "No active primary partner found"
	msgSupportPersonUsed = "Unable to add this user as support person"
	msgGroupNotFound     = "Group not found"
	msgPrimaryNotFound   = "Primary partner not found"
)

// InviteInput is a participant to invite. PrimaryID is set when a SECONDARY
// is invited on behalf of a PRIMARY.
type InviteInput struct {
	GroupID       uuid.UUID
	Name          string
	Email         string
	Phone         string
	DOB           *time.Time
	Address       models.Address
	Type          models.ParticipantType
	LocationID    *uuid.UUID
	StageID       *uuid.UUID
	DateOfSurgery *time.Time
	Zone          int
	PrimaryID     *uuid.UUID
}

// InviteParticipant creates an INVITED participant with a fresh invite code
// and mails the code. The participant row, the partnership row for a
// SECONDARY and the code are written together.
func (s *Service) InviteParticipant(ctx context.Context, in InviteInput) (*models.Participant, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, apperr.BadRequest("Email is required.")
	}
	typ := in.Type
	if typ == "" {
		typ = models.ParticipantPrimary
	}
	if !typ.Valid() {
		return nil, apperr.BadRequest("Invalid participant type.")
	}
	if typ == models.ParticipantPrimary {
		in.PrimaryID = nil
	}

	taken, err := s.store.Participants.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, apperr.Conflict(apperr.MsgDuplicateEmail)
	}

	group, err := s.store.Groups.GetByID(ctx, in.GroupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if group == nil {
		return nil, apperr.Forbidden(msgGroupNotFound)
	}
	if in.PrimaryID != nil {
		if err := s.checkPrimary(ctx, in.GroupID, *in.PrimaryID); err != nil {
			return nil, err
		}
	}

	code, err := s.codes.Generate(s.opts.InviteCodeLength)
	if err != nil {
		return nil, err
	}

	p, _, err := s.store.Participants.CreateInvite(ctx, repository.NewInvite{
		Participant: &models.Participant{
			GroupID:       in.GroupID,
			Name:          in.Name,
			Email:         email,
			Phone:         in.Phone,
			DOB:           in.DOB,
			Address:       in.Address,
			Type:          typ,
			Status:        models.StatusInvited,
			LocationID:    in.LocationID,
			StageID:       in.StageID,
			DateOfSurgery: in.DateOfSurgery,
			Zone:          in.Zone,
			Preferences:   models.DefaultPreferences(),
		},
		PrimaryID: in.PrimaryID,
		Code:      code,
	})
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return nil, apperr.Conflict(apperr.MsgDuplicateEmail)
	}
	if errors.Is(err, repository.ErrPartnerLimit) {
		return nil, apperr.Forbidden(msgSupportPersonUsed)
	}
	if err != nil {
		return nil, fmt.Errorf("create invite: %w", err)
	}

	s.metrics.InvitesIssued.WithLabelValues(string(typ), strconv.FormatBool(false)).Inc()
	s.logger.Info("participant invited",
		zap.String("participant_id", p.ID.String()),
		zap.String("group_id", p.GroupID.String()),
		zap.String("type", string(p.Type)),
	)
	s.sendMail(ctx, p.Email, mail.ParticipantInvite, mail.Data{Code: code, Group: group.Name, Name: p.Name})
	return p, nil
}

// checkPrimary makes sure a support person is only ever linked to a PRIMARY
// of the group it is invited into.
func (s *Service) checkPrimary(ctx context.Context, groupID, primaryID uuid.UUID) error {
	primary, err := s.store.Participants.GetByID(ctx, primaryID)
	if err != nil {
		return fmt.Errorf("get primary partner: %w", err)
	}
	if primary == nil || primary.Type != models.ParticipantPrimary || primary.GroupID != groupID {
		return apperr.Forbidden(msgPrimaryNotFound)
	}
	return nil
}

// ResendInvite replaces the participant's invite code and mails the new
// one. The primary partner carried by the old code is kept.
func (s *Service) ResendInvite(ctx context.Context, email string) error {
	p, err := s.store.Participants.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("get participant: %w", err)
	}
	if p == nil || p.Status != models.StatusInvited {
		return apperr.Forbidden(msgNoInvite)
	}
	group, err := s.activeGroup(ctx, p.GroupID, apperr.Unauthorized(apperr.MsgUnauthorized))
	if err != nil {
		return err
	}

	prev, err := s.store.InviteCodes.Latest(ctx, p.ID, models.CodeInvite)
	if err != nil {
		return fmt.Errorf("get invite code: %w", err)
	}
	var primary *uuid.UUID
	if prev != nil {
		primary = prev.PrimaryPartnerID
	}

	code, err := s.codes.Generate(s.opts.InviteCodeLength)
	if err != nil {
		return err
	}
	if _, err := s.store.InviteCodes.Replace(ctx, &models.InviteCode{
		ParticipantID:    p.ID,
		Code:             code,
		Kind:             models.CodeInvite,
		PrimaryPartnerID: primary,
	}); err != nil {
		return fmt.Errorf("replace invite code: %w", err)
	}

	s.metrics.InvitesIssued.WithLabelValues(string(p.Type), strconv.FormatBool(true)).Inc()
	s.sendMail(ctx, p.Email, mail.ParticipantInvite, mail.Data{Code: code, Group: group.Name, Name: p.Name})
	return nil
}

// VerifyInvite checks an invite code and, when it matches, consumes it and
// signs a pre-signup token for the participant.
func (s *Service) VerifyInvite(ctx context.Context, email, code string) (*AuthResult, error) {
	p, err := s.store.Participants.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	if p == nil || p.Status != models.StatusInvited {
		return nil, apperr.Forbidden(apperr.MsgNotInvited)
	}
	if _, err := s.activeGroup(ctx, p.GroupID, apperr.Unauthorized(apperr.MsgUnauthorized)); err != nil {
		return nil, err
	}

	invite, err := s.store.InviteCodes.Find(ctx, p.ID, models.CodeInvite, code)
	if err != nil {
		return nil, fmt.Errorf("find invite code: %w", err)
	}
	if err := s.limiter.Check(ctx, p.ID, models.CodeInvite, invite != nil); err != nil {
		return nil, err
	}

	if invite.PrimaryPartnerID != nil {
		primary, err := s.store.Participants.GetByID(ctx, *invite.PrimaryPartnerID)
		if err != nil {
			return nil, fmt.Errorf("get primary partner: %w", err)
		}
		if primary == nil || primary.Status != models.StatusActive {
			return nil, apperr.Forbidden(msgNoActivePrimary)
		}
	}

	// Only one of two concurrent verifications of the same code wins the
	// delete; the loser sees an invalid code.
	consumed, err := s.store.InviteCodes.Consume(ctx, invite.ID)
	if err != nil {
		return nil, fmt.Errorf("consume invite code: %w", err)
	}
	if !consumed {
		return nil, invalidCode(models.CodeInvite)
	}

	token, err := s.issueSession(ctx, p, invite.PrimaryPartnerID)
	if err != nil {
		return nil, err
	}
	v, err := s.view(ctx, p)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Participant: v, Token: token}, nil
}

// SignupInput completes an invited participant's account. A PRIMARY may
// name a support person to invite in the same step.
type SignupInput struct {
	Name               string
	Password           string
	SupportPersonName  string
	SupportPersonEmail string
}

// CompleteSignup activates an invited participant. sessionID is the
// pre-signup session and is logged out on success; primaryPartnerID is the
// primary carried by the invite token, if any.
func (s *Service) CompleteSignup(ctx context.Context, participantID, sessionID uuid.UUID, primaryPartnerID *uuid.UUID, in SignupInput) (*ParticipantView, error) {
	p, err := s.store.Participants.GetByID(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	if p == nil || p.Status != models.StatusInvited {
		return nil, apperr.Forbidden(apperr.MsgNotInvited)
	}
	if len(in.Password) < s.opts.MinPasswordLength {
		return nil, apperr.Forbidden(fmt.Sprintf("Password must be at least %d characters long.", s.opts.MinPasswordLength))
	}
	if _, err := s.activeGroup(ctx, p.GroupID, apperr.Unauthorized(apperr.MsgUnauthorized)); err != nil {
		return nil, err
	}

	supportEmail := normalizeEmail(in.SupportPersonEmail)
	inviteSupport := p.Type == models.ParticipantPrimary && supportEmail != ""
	if inviteSupport {
		taken, err := s.store.Participants.EmailExists(ctx, supportEmail)
		if err != nil {
			return nil, fmt.Errorf("check support person email: %w", err)
		}
		if taken {
			return nil, apperr.Forbidden(msgSupportPersonUsed)
		}
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	name := in.Name
	if name == "" {
		name = p.Name
	}

	// The support person is invited while the primary is still INVITED. A
	// failed invite, such as the email being registered between the check
	// above and the insert, leaves the primary untouched and its pre-signup
	// session live, so the call can simply be retried.
	if inviteSupport {
		primaryID := p.ID
		_, err := s.InviteParticipant(ctx, InviteInput{
			GroupID:       p.GroupID,
			Name:          in.SupportPersonName,
			Email:         supportEmail,
			Type:          models.ParticipantSecondary,
			LocationID:    p.LocationID,
			StageID:       p.StageID,
			DateOfSurgery: p.DateOfSurgery,
			PrimaryID:     &primaryID,
		})
		var appErr *apperr.Error
		if errors.As(err, &appErr) && appErr.Message == apperr.MsgDuplicateEmail {
			return nil, apperr.Forbidden(msgSupportPersonUsed)
		}
		if err != nil {
			return nil, err
		}
	}

	ok, err := s.store.Participants.Activate(ctx, p.ID, name, hash)
	if err != nil {
		return nil, fmt.Errorf("activate participant: %w", err)
	}
	if !ok {
		return nil, apperr.Forbidden(apperr.MsgNotInvited)
	}

	if primaryPartnerID != nil {
		if err := s.store.Partners.Activate(ctx, p.ID, *primaryPartnerID); err != nil {
			return nil, fmt.Errorf("activate partnership: %w", err)
		}
	}

	if err := s.Logout(ctx, sessionID); err != nil {
		return nil, err
	}

	updated, err := s.store.Participants.GetByID(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("reload participant: %w", err)
	}
	v, err := s.view(ctx, updated)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
