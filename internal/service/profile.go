package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/carepath/internal/apperr"
	"github.com/lalith-99/carepath/internal/models"
	"github.com/lalith-99/carepath/internal/repository"
	"go.uber.org/zap"
)

const (
	msgNoParticipantFound     = "No participant found"
	msgParticipantNotFound    = "Participant not found"
	msgSupportPersonNotFound  = "Support person not found"
	msgSupportPersonActive    = "You can't update an active support person"
	msgSupportPersonNotLinked = "Support person is not linked"
	msgStageNotFound          = "Stage not found"
)

func (s *Service) activeParticipant(ctx context.Context, id uuid.UUID, missing *apperr.Error) (*models.Participant, error) {
	p, err := s.store.Participants.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	if p == nil || p.Status != models.StatusActive {
		return nil, missing
	}
	return p, nil
}

func (s *Service) stage(ctx context.Context, id *uuid.UUID) (*models.Stage, error) {
	if id == nil {
		return nil, nil
	}
	st, err := s.store.Stages.GetByID(ctx, *id)
	if err != nil {
		return nil, fmt.Errorf("get stage: %w", err)
	}
	return st, nil
}

// secondaries returns the participants linked to primaryID as support
// persons, oldest link first, with their partnership rows.
func (s *Service) secondaries(ctx context.Context, primaryID uuid.UUID) ([]models.Participant, []models.PrimaryPartner, error) {
	rows, err := s.store.Partners.SecondariesOf(ctx, primaryID)
	if err != nil {
		return nil, nil, fmt.Errorf("list secondaries: %w", err)
	}
	out := make([]models.Participant, 0, len(rows))
	links := make([]models.PrimaryPartner, 0, len(rows))
	for _, pp := range rows {
		p, err := s.store.Participants.GetByID(ctx, pp.SecondaryID)
		if err != nil {
			return nil, nil, fmt.Errorf("get secondary: %w", err)
		}
		if p == nil {
			continue
		}
		out = append(out, *p)
		links = append(links, pp)
	}
	return out, links, nil
}

// GetMyProfile returns the caller's profile with its stage and, for a
// PRIMARY, the support persons that are not suspended.
func (s *Service) GetMyProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	p, err := s.activeParticipant(ctx, id, apperr.Forbidden(msgNoParticipantFound))
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, p)
}

func (s *Service) profile(ctx context.Context, p *models.Participant) (*Profile, error) {
	v, err := s.view(ctx, p)
	if err != nil {
		return nil, err
	}
	st, err := s.stage(ctx, v.StageID)
	if err != nil {
		return nil, err
	}
	out := &Profile{ParticipantView: v, Stage: st, SupportPersons: []models.Participant{}}
	if p.Type != models.ParticipantPrimary {
		return out, nil
	}
	secs, _, err := s.secondaries(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	for _, sp := range secs {
		if sp.Status != models.StatusSuspended {
			out.SupportPersons = append(out.SupportPersons, sp)
		}
	}
	return out, nil
}

// ProfileUpdate holds the fields a participant may change on itself. Nil
// fields are left as they are.
type ProfileUpdate struct {
	Name          *string
	Phone         *string
	Address       *models.Address
	StageID       *uuid.UUID
	DateOfSurgery *time.Time
	Preferences   *models.Preferences
}

// UpdateMyProfile applies u to the caller. A PRIMARY changing its stage
// moves every linked support person to the same stage.
func (s *Service) UpdateMyProfile(ctx context.Context, id uuid.UUID, u ProfileUpdate) (*Profile, error) {
	p, err := s.activeParticipant(ctx, id, apperr.Forbidden(msgParticipantNotFound))
	if err != nil {
		return nil, err
	}

	stageChanged := false
	if u.StageID != nil {
		st, err := s.stage(ctx, u.StageID)
		if err != nil {
			return nil, err
		}
		if st == nil {
			return nil, apperr.Forbidden(msgStageNotFound)
		}
		stageChanged = p.StageID == nil || *p.StageID != *u.StageID
		p.StageID = u.StageID
	}
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Phone != nil {
		p.Phone = *u.Phone
	}
	if u.Address != nil {
		p.Address = *u.Address
	}
	if u.DateOfSurgery != nil {
		p.DateOfSurgery = u.DateOfSurgery
	}
	if u.Preferences != nil {
		p.Preferences = *u.Preferences
	}

	if err := s.store.Participants.Update(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperr.Conflict(apperr.MsgDuplicateEmail)
		}
		return nil, fmt.Errorf("update participant: %w", err)
	}

	if stageChanged && p.Type == models.ParticipantPrimary {
		n, err := s.store.Participants.CascadeToSecondaries(ctx, p.ID, repository.CareUpdate{StageID: p.StageID})
		if err != nil {
			return nil, fmt.Errorf("cascade stage: %w", err)
		}
		s.logger.Info("stage cascaded to support persons",
			zap.String("participant_id", p.ID.String()),
			zap.Int64("secondaries", n),
		)
	}
	return s.profile(ctx, p)
}

// AddSupportPerson invites a SECONDARY linked to the calling PRIMARY.
func (s *Service) AddSupportPerson(ctx context.Context, primaryID uuid.UUID, name, email string) (*models.Participant, error) {
	p, err := s.activeParticipant(ctx, primaryID, apperr.MethodNotAllowed(msgParticipantNotFound))
	if err != nil {
		return nil, err
	}
	if p.Type != models.ParticipantPrimary {
		return nil, apperr.MethodNotAllowed(msgSupportPersonUsed)
	}
	taken, err := s.store.Participants.EmailExists(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, apperr.MethodNotAllowed(msgSupportPersonUsed)
	}
	id := p.ID
	return s.InviteParticipant(ctx, InviteInput{
		GroupID:       p.GroupID,
		Name:          name,
		Email:         email,
		Type:          models.ParticipantSecondary,
		LocationID:    p.LocationID,
		StageID:       p.StageID,
		DateOfSurgery: p.DateOfSurgery,
		PrimaryID:     &id,
	})
}

// linkedSupportPerson loads supportID and checks that it is linked to
// primaryID.
func (s *Service) linkedSupportPerson(ctx context.Context, primaryID, supportID uuid.UUID) (*models.Participant, *models.PrimaryPartner, error) {
	sp, err := s.store.Participants.GetByID(ctx, supportID)
	if err != nil {
		return nil, nil, fmt.Errorf("get support person: %w", err)
	}
	if sp == nil || sp.Type != models.ParticipantSecondary {
		return nil, nil, apperr.Forbidden(msgSupportPersonNotFound)
	}
	pp, err := s.store.Partners.PrimaryOf(ctx, sp.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("get primary partner: %w", err)
	}
	if pp == nil || pp.PrimaryID != primaryID {
		return nil, nil, apperr.Forbidden(msgSupportPersonNotLinked)
	}
	return sp, pp, nil
}

// UpdateSupportPerson renames a support person that has not signed up yet.
func (s *Service) UpdateSupportPerson(ctx context.Context, primaryID, supportID uuid.UUID, name string) (*models.Participant, error) {
	sp, err := s.store.Participants.GetByID(ctx, supportID)
	if err != nil {
		return nil, fmt.Errorf("get support person: %w", err)
	}
	if sp == nil {
		return nil, apperr.Forbidden(msgSupportPersonNotFound)
	}
	if sp.Status == models.StatusActive {
		return nil, apperr.Forbidden(msgSupportPersonActive)
	}
	sp, _, err = s.linkedSupportPerson(ctx, primaryID, supportID)
	if err != nil {
		return nil, err
	}
	sp.Name = name
	if err := s.store.Participants.Update(ctx, sp); err != nil {
		return nil, fmt.Errorf("update support person: %w", err)
	}
	return sp, nil
}

// RemoveSupportPerson suspends a support person. An ACTIVE one also loses
// its partnership; an INVITED one keeps it so the link survives a later
// reactivation by an admin.
func (s *Service) RemoveSupportPerson(ctx context.Context, primaryID, supportID uuid.UUID) (*models.Participant, error) {
	sp, pp, err := s.linkedSupportPerson(ctx, primaryID, supportID)
	if err != nil {
		return nil, err
	}
	if sp.Status == models.StatusSuspended {
		return sp, nil
	}
	wasActive := sp.Status == models.StatusActive

	out, err := s.store.Participants.SetStatus(ctx, sp.ID, models.StatusSuspended)
	if err != nil {
		return nil, fmt.Errorf("suspend support person: %w", err)
	}
	if wasActive {
		if err := s.store.Partners.Unlink(ctx, sp.ID, pp.PrimaryID); err != nil {
			return nil, fmt.Errorf("unlink support person: %w", err)
		}
	}
	s.logger.Info("support person removed",
		zap.String("primary_id", primaryID.String()),
		zap.String("support_id", sp.ID.String()),
		zap.Bool("unlinked", wasActive),
	)
	return out, nil
}

type PartnerContact struct {
	ID    uuid.UUID              `json:"id"`
	Name  string                 `json:"name"`
	Phone string                 `json:"phone"`
	Type  models.ParticipantType `json:"type"`
}

// GetPartnersContacts lists the caller's active partners that have a
// phone number: a PRIMARY's active support persons, or a SECONDARY's
// active primary.
func (s *Service) GetPartnersContacts(ctx context.Context, id uuid.UUID) ([]PartnerContact, error) {
	p, err := s.activeParticipant(ctx, id, apperr.Forbidden(msgParticipantNotFound))
	if err != nil {
		return nil, err
	}

	var partners []models.Participant
	switch p.Type {
	case models.ParticipantPrimary:
		secs, links, err := s.secondaries(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		for i, sp := range secs {
			if sp.Status == models.StatusActive && links[i].Status == models.PartnerActive {
				partners = append(partners, sp)
			}
		}
	case models.ParticipantSecondary:
		_, primary, err := s.partnership(ctx, p)
		if err != nil {
			return nil, err
		}
		if primary != nil && primary.Status == models.StatusActive {
			partners = append(partners, *primary)
		}
	}

	out := make([]PartnerContact, 0, len(partners))
	for _, pt := range partners {
		if pt.Phone == "" {
			continue
		}
		out = append(out, PartnerContact{ID: pt.ID, Name: pt.Name, Phone: pt.Phone, Type: pt.Type})
	}
	return out, nil
}
