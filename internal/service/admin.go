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
	"golang.org/x/sync/errgroup"
)

const (
	msgTypeLinkedPrimary    = "Type can't be changed as it are linked with some other participant"
	msgTypeActiveSecondary  = "Type of active secondary partner can't be updated"
	msgSurgeonMissing       = "Surgeon does not exist"
	msgSurgeonNotLinked     = "Surgeon is not linked with participant"
	msgParticipantMissing   = "Participant doesn't exist."
	msgNoSurgeonLinked      = "Participant is not linked with any surgeon"
	msgInvalidStatus        = "Invalid participant status."
	msgInvalidParticipantTy = "Invalid participant type."
)

// ListParticipants pages through a group's participants. Secondaries carry
// their primary's care fields.
func (s *Service) ListParticipants(ctx context.Context, filter repository.ParticipantFilter, page repository.Page) (PageResult[ParticipantView], error) {
	page = page.Normalize()
	rows, total, err := s.store.Participants.List(ctx, filter, page)
	if err != nil {
		return PageResult[ParticipantView]{}, fmt.Errorf("list participants: %w", err)
	}
	views := make([]ParticipantView, 0, len(rows))
	for i := range rows {
		v, err := s.view(ctx, &rows[i])
		if err != nil {
			return PageResult[ParticipantView]{}, err
		}
		views = append(views, v)
	}
	return newPage(views, total, page.Page, page.Limit), nil
}

// GetParticipantDetails loads the participant, its providers and its
// linked partner concurrently. The linked partner of a SECONDARY is its
// primary; of a PRIMARY, its oldest support person.
func (s *Service) GetParticipantDetails(ctx context.Context, groupID, id uuid.UUID) (*ParticipantDetails, error) {
	p, err := s.participantIn(ctx, groupID, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.Forbidden(msgParticipantNotFound)
	}

	var (
		out       ParticipantDetails
		providers []models.LinkedProvider
		partner   *ParticipantView
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.view(gctx, p)
		if err != nil {
			return err
		}
		st, err := s.stage(gctx, v.StageID)
		if err != nil {
			return err
		}
		out.ParticipantView = v
		out.Stage = st
		return nil
	})
	g.Go(func() error {
		links, err := s.store.Providers.LinksOf(gctx, p.ID)
		if err != nil {
			return fmt.Errorf("list providers: %w", err)
		}
		providers = links
		return nil
	})
	g.Go(func() error {
		lp, err := s.linkedPartner(gctx, p)
		if err != nil {
			return err
		}
		partner = lp
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.Providers = providers
	out.LinkedPartner = partner
	return &out, nil
}

func (s *Service) linkedPartner(ctx context.Context, p *models.Participant) (*ParticipantView, error) {
	var partner *models.Participant
	switch p.Type {
	case models.ParticipantSecondary:
		_, primary, err := s.partnership(ctx, p)
		if err != nil {
			return nil, err
		}
		partner = primary
	case models.ParticipantPrimary:
		secs, _, err := s.secondaries(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if len(secs) > 0 {
			partner = &secs[0]
		}
	}
	if partner == nil {
		return nil, nil
	}
	v, err := s.view(ctx, partner)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// AdminUpdate holds the fields a group admin may change on a participant.
// Nil fields are left as they are.
type AdminUpdate struct {
	Name          *string
	Email         *string
	Phone         *string
	DOB           *time.Time
	Address       *models.Address
	Type          *models.ParticipantType
	StageID       *uuid.UUID
	DateOfSurgery *time.Time
	LocationID    *uuid.UUID
	Zone          *int
}

// UpdateParticipant applies an admin edit. Changes to the stage, surgery
// date or location of a PRIMARY are copied to its support persons.
func (s *Service) UpdateParticipant(ctx context.Context, groupID, id uuid.UUID, u AdminUpdate) (*ParticipantDetails, error) {
	p, err := s.participantIn(ctx, groupID, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.Forbidden(msgParticipantNotFound)
	}

	unlinkFrom := uuid.Nil
	if u.Type != nil && *u.Type != p.Type {
		if !u.Type.Valid() {
			return nil, apperr.BadRequest(msgInvalidParticipantTy)
		}
		switch p.Type {
		case models.ParticipantPrimary:
			rows, err := s.store.Partners.SecondariesOf(ctx, p.ID)
			if err != nil {
				return nil, fmt.Errorf("list secondaries: %w", err)
			}
			if len(rows) > 0 {
				return nil, apperr.BadRequest(msgTypeLinkedPrimary)
			}
		case models.ParticipantSecondary:
			if p.Status == models.StatusActive {
				return nil, apperr.BadRequest(msgTypeActiveSecondary)
			}
			pp, err := s.store.Partners.PrimaryOf(ctx, p.ID)
			if err != nil {
				return nil, fmt.Errorf("get primary partner: %w", err)
			}
			if pp != nil {
				unlinkFrom = pp.PrimaryID
			}
		}
		p.Type = *u.Type
	}

	if u.StageID != nil {
		st, err := s.stage(ctx, u.StageID)
		if err != nil {
			return nil, err
		}
		if st == nil {
			return nil, apperr.Forbidden(msgStageNotFound)
		}
	}

	care := repository.CareUpdate{StageID: u.StageID, DateOfSurgery: u.DateOfSurgery, LocationID: u.LocationID}
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Email != nil {
		p.Email = normalizeEmail(*u.Email)
	}
	if u.Phone != nil {
		p.Phone = *u.Phone
	}
	if u.DOB != nil {
		p.DOB = u.DOB
	}
	if u.Address != nil {
		p.Address = *u.Address
	}
	if u.Zone != nil {
		p.Zone = *u.Zone
	}
	if care.StageID != nil {
		p.StageID = care.StageID
	}
	if care.DateOfSurgery != nil {
		p.DateOfSurgery = care.DateOfSurgery
	}
	if care.LocationID != nil {
		p.LocationID = care.LocationID
	}

	if err := s.store.Participants.Update(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperr.Conflict(apperr.MsgDuplicateEmail)
		}
		return nil, fmt.Errorf("update participant: %w", err)
	}
	if unlinkFrom != uuid.Nil {
		if err := s.store.Partners.Unlink(ctx, p.ID, unlinkFrom); err != nil {
			return nil, fmt.Errorf("unlink primary partner: %w", err)
		}
	}
	if p.Type == models.ParticipantPrimary && !care.Empty() {
		if _, err := s.store.Participants.CascadeToSecondaries(ctx, p.ID, care); err != nil {
			return nil, fmt.Errorf("cascade care fields: %w", err)
		}
	}
	return s.GetParticipantDetails(ctx, groupID, p.ID)
}

// SuspendParticipant sets a participant's status; an empty status means
// SUSPENDED.
func (s *Service) SuspendParticipant(ctx context.Context, groupID, id uuid.UUID, status models.ParticipantStatus) (*models.Participant, error) {
	if status == "" {
		status = models.StatusSuspended
	}
	if !status.Valid() {
		return nil, apperr.BadRequest(msgInvalidStatus)
	}
	p, err := s.participantIn(ctx, groupID, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.Forbidden(msgParticipantNotFound)
	}
	out, err := s.store.Participants.SetStatus(ctx, p.ID, status)
	if err != nil {
		return nil, fmt.Errorf("set participant status: %w", err)
	}
	s.logger.Info("participant status changed",
		zap.String("participant_id", p.ID.String()),
		zap.String("from", string(p.Status)),
		zap.String("to", string(status)),
	)
	return out, nil
}

// ResetAttempts lifts a code lockout for a participant of the group.
func (s *Service) ResetAttempts(ctx context.Context, groupID, id uuid.UUID, kind models.CodeKind) error {
	p, err := s.participantIn(ctx, groupID, id)
	if err != nil {
		return err
	}
	if p == nil {
		return apperr.Forbidden(msgParticipantNotFound)
	}
	return s.limiter.Reset(ctx, p.ID, kind)
}

// providerLinkTarget checks that both the participant and the provider
// belong to the group.
func (s *Service) providerLinkTarget(ctx context.Context, groupID, participantID, providerID uuid.UUID) (*models.Participant, error) {
	p, err := s.participantIn(ctx, groupID, participantID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.Forbidden(msgParticipantNotFound)
	}
	prov, err := s.store.Providers.GetByID(ctx, groupID, providerID)
	if err != nil {
		return nil, fmt.Errorf("get provider: %w", err)
	}
	if prov == nil || prov.Status == models.ProviderRemoved {
		return nil, apperr.Forbidden(msgSurgeonMissing)
	}
	return p, nil
}

// LinkProvider links a provider to the participant. The first provider a
// participant gets becomes its default.
func (s *Service) LinkProvider(ctx context.Context, groupID, participantID, providerID uuid.UUID) ([]models.LinkedProvider, error) {
	p, err := s.providerLinkTarget(ctx, groupID, participantID, providerID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Providers.Link(ctx, p.ID, providerID); err != nil {
		return nil, fmt.Errorf("link provider: %w", err)
	}
	return s.GetLinkedProviders(ctx, groupID, p.ID)
}

// UnlinkProvider removes the link. Unlinking the default leaves the
// participant without a default until one is set.
func (s *Service) UnlinkProvider(ctx context.Context, groupID, participantID, providerID uuid.UUID) ([]models.LinkedProvider, error) {
	p, err := s.providerLinkTarget(ctx, groupID, participantID, providerID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Providers.Unlink(ctx, p.ID, providerID); err != nil {
		return nil, fmt.Errorf("unlink provider: %w", err)
	}
	return s.GetLinkedProviders(ctx, groupID, p.ID)
}

func (s *Service) SetDefaultProvider(ctx context.Context, groupID, participantID, providerID uuid.UUID) ([]models.LinkedProvider, error) {
	p, err := s.providerLinkTarget(ctx, groupID, participantID, providerID)
	if err != nil {
		return nil, err
	}
	ok, err := s.store.Providers.SetDefault(ctx, p.ID, providerID)
	if err != nil {
		return nil, fmt.Errorf("set default provider: %w", err)
	}
	if !ok {
		return nil, apperr.Forbidden(msgSurgeonNotLinked)
	}
	return s.GetLinkedProviders(ctx, groupID, p.ID)
}

func (s *Service) GetLinkedProviders(ctx context.Context, groupID, participantID uuid.UUID) ([]models.LinkedProvider, error) {
	p, err := s.participantIn(ctx, groupID, participantID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.Forbidden(msgParticipantNotFound)
	}
	links, err := s.store.Providers.LinksOf(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	return links, nil
}

func (s *Service) GetUnlinkedProviders(ctx context.Context, groupID, participantID uuid.UUID, page repository.Page) (PageResult[models.Provider], error) {
	p, err := s.participantIn(ctx, groupID, participantID)
	if err != nil {
		return PageResult[models.Provider]{}, err
	}
	if p == nil {
		return PageResult[models.Provider]{}, apperr.Forbidden(msgParticipantNotFound)
	}
	page = page.Normalize()
	rows, total, err := s.store.Providers.ListUnlinked(ctx, groupID, p.ID, page)
	if err != nil {
		return PageResult[models.Provider]{}, fmt.Errorf("list unlinked providers: %w", err)
	}
	return newPage(rows, total, page.Page, page.Limit), nil
}

// GetLinkedProvider returns the caller's default provider, or the first
// linked one that is not removed. A SECONDARY sees its primary's provider.
func (s *Service) GetLinkedProvider(ctx context.Context, participantID uuid.UUID) (*models.LinkedProvider, error) {
	p, err := s.activeParticipant(ctx, participantID, apperr.MethodNotAllowed(msgParticipantMissing))
	if err != nil {
		return nil, err
	}
	owner := p.ID
	if p.Type == models.ParticipantSecondary {
		_, primary, err := s.partnership(ctx, p)
		if err != nil {
			return nil, err
		}
		if primary != nil {
			owner = primary.ID
		}
	}
	links, err := s.store.Providers.LinksOf(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	if best := pickProvider(links); best != nil {
		return best, nil
	}
	return nil, apperr.MethodNotAllowed(msgNoSurgeonLinked)
}

func pickProvider(links []models.LinkedProvider) *models.LinkedProvider {
	var first *models.LinkedProvider
	for i := range links {
		l := &links[i]
		if l.Status == models.ProviderRemoved {
			continue
		}
		if l.IsDefault {
			return l
		}
		if first == nil {
			first = l
		}
	}
	return first
}
