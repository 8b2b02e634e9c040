package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lalith-99/carepath/internal/apperr"
	"github.com/lalith-99/carepath/internal/auth"
	"github.com/lalith-99/carepath/internal/mail"
	"github.com/lalith-99/carepath/internal/models"
)

const (
	msgNoActivePrimaryLinked = "No active primary partner linked"
	msgNoAccount             = "Not any account found against this email"
	msgNoParticipantByEmail  = "No participant exists against this email."
)

// Authenticate logs an ACTIVE participant in with email and password.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*AuthResult, error) {
	p, err := s.store.Participants.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	if p == nil || p.Status != models.StatusActive {
		return nil, apperr.Unauthorized(apperr.MsgInvalidLogin)
	}
	match, err := auth.CheckPassword(p.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !match {
		return nil, apperr.Unauthorized(apperr.MsgInvalidLogin)
	}
	if _, err := s.activeGroup(ctx, p.GroupID, apperr.Unauthorized(apperr.MsgUnauthorized)); err != nil {
		return nil, err
	}

	if p.Type == models.ParticipantSecondary {
		_, primary, err := s.partnership(ctx, p)
		if err != nil {
			return nil, err
		}
		if primary == nil || primary.Status == models.StatusSuspended {
			return nil, apperr.Forbidden(msgNoActivePrimaryLinked)
		}
	}

	token, err := s.issueSession(ctx, p, nil)
	if err != nil {
		return nil, err
	}
	v, err := s.view(ctx, p)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Participant: v, Token: token}, nil
}

// RequestResetPassword replaces the participant's reset code and mails it.
func (s *Service) RequestResetPassword(ctx context.Context, email string) error {
	p, err := s.store.Participants.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("get participant: %w", err)
	}
	if p == nil || p.Status != models.StatusActive {
		return apperr.Forbidden(msgNoAccount)
	}
	group, err := s.activeGroup(ctx, p.GroupID, apperr.BadRequest(apperr.MsgContactAdmin))
	if err != nil {
		return err
	}

	code, err := s.codes.Generate(s.opts.ResetCodeLength)
	if err != nil {
		return err
	}
	if _, err := s.store.InviteCodes.Replace(ctx, &models.InviteCode{
		ParticipantID: p.ID,
		Code:          code,
		Kind:          models.CodeResetPassword,
	}); err != nil {
		return fmt.Errorf("replace reset code: %w", err)
	}
	s.sendMail(ctx, p.Email, mail.ResetPassword, mail.Data{Code: code, Group: group.Name, Name: p.Name})
	return nil
}

// VerifyPasscode checks a reset code without consuming it, so the client
// can confirm the code before asking for the new password.
func (s *Service) VerifyPasscode(ctx context.Context, email, code string) error {
	p, err := s.store.Participants.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("get participant: %w", err)
	}
	if p == nil || p.Status != models.StatusActive {
		return apperr.Forbidden(apperr.MsgRequestAgain)
	}
	if _, err := s.activeGroup(ctx, p.GroupID, apperr.Forbidden(apperr.MsgRequestAgain)); err != nil {
		return err
	}
	found, err := s.store.InviteCodes.Find(ctx, p.ID, models.CodeResetPassword, code)
	if err != nil {
		return fmt.Errorf("find reset code: %w", err)
	}
	return s.limiter.Check(ctx, p.ID, models.CodeResetPassword, found != nil)
}

// ResetPassword sets a new password when the reset code matches and
// consumes the code.
func (s *Service) ResetPassword(ctx context.Context, email, code, password string) error {
	p, err := s.store.Participants.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("get participant: %w", err)
	}
	if p == nil || p.Status != models.StatusActive {
		return apperr.Forbidden(msgNoParticipantByEmail)
	}
	if len(password) < s.opts.MinPasswordLength {
		return apperr.Forbidden(fmt.Sprintf("Password must be at least %d characters long.", s.opts.MinPasswordLength))
	}
	if _, err := s.activeGroup(ctx, p.GroupID, apperr.Unauthorized(apperr.MsgUnauthorized)); err != nil {
		return err
	}

	found, err := s.store.InviteCodes.Find(ctx, p.ID, models.CodeResetPassword, code)
	if err != nil {
		return fmt.Errorf("find reset code: %w", err)
	}
	if err := s.limiter.Check(ctx, p.ID, models.CodeResetPassword, found != nil); err != nil {
		return err
	}
	consumed, err := s.store.InviteCodes.Consume(ctx, found.ID)
	if err != nil {
		return fmt.Errorf("consume reset code: %w", err)
	}
	if !consumed {
		return invalidCode(models.CodeResetPassword)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.store.Participants.SetPassword(ctx, p.ID, hash); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}

// Logout deletes the session. Unknown sessions are not an error.
func (s *Service) Logout(ctx context.Context, sessionID uuid.UUID) error {
	if sessionID == uuid.Nil {
		return nil
	}
	if err := s.store.Sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ValidateSession reports whether the session behind a token is still
// live and belongs to subjectID.
func (s *Service) ValidateSession(ctx context.Context, sessionID, subjectID uuid.UUID) (bool, error) {
	sess, err := s.store.Sessions.Get(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("get session: %w", err)
	}
	return sess != nil && sess.SubjectID == subjectID, nil
}
