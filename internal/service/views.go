package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lalith-99/carepath/internal/models"
)

// ParticipantView is a participant as returned to clients. For a SECONDARY
// the care fields come from its primary, see MergePrimaryIntoSecondary.
type ParticipantView struct {
	models.Participant
	PrimaryPartner *uuid.UUID            `json:"primary_partner,omitempty"`
	PartnerStatus  *models.PartnerStatus `json:"partner_status,omitempty"`
}

// MergePrimaryIntoSecondary copies the primary's stage, surgery date and
// location onto a SECONDARY view. Other views, and a nil primary, are
// returned unchanged. Applying it twice gives the same result.
func MergePrimaryIntoSecondary(v ParticipantView, primary *models.Participant) ParticipantView {
	if v.Type != models.ParticipantSecondary || primary == nil {
		return v
	}
	v.StageID = copyPtr(primary.StageID)
	v.DateOfSurgery = copyPtr(primary.DateOfSurgery)
	v.LocationID = copyPtr(primary.LocationID)
	id := primary.ID
	v.PrimaryPartner = &id
	return v
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

type AuthResult struct {
	Participant ParticipantView `json:"participant"`
	Token       string          `json:"token"`
}

// Profile is what a participant sees about itself.
type Profile struct {
	ParticipantView
	Stage          *models.Stage        `json:"stage,omitempty"`
	SupportPersons []models.Participant `json:"supportPersons"`
}

// ParticipantDetails is the admin view of one participant.
type ParticipantDetails struct {
	ParticipantView
	Stage         *models.Stage           `json:"stage,omitempty"`
	LinkedPartner *ParticipantView        `json:"linkedPartner,omitempty"`
	Providers     []models.LinkedProvider `json:"providers"`
}

type PageResult[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func newPage[T any](items []T, total, page, limit int) PageResult[T] {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return PageResult[T]{Items: items, Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// partnership returns the secondary's partnership row and the primary it
// points at. Both are nil when p is not linked.
func (s *Service) partnership(ctx context.Context, p *models.Participant) (*models.PrimaryPartner, *models.Participant, error) {
	if p.Type != models.ParticipantSecondary {
		return nil, nil, nil
	}
	pp, err := s.store.Partners.PrimaryOf(ctx, p.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("get primary partner: %w", err)
	}
	if pp == nil {
		return nil, nil, nil
	}
	primary, err := s.store.Participants.GetByID(ctx, pp.PrimaryID)
	if err != nil {
		return nil, nil, fmt.Errorf("get primary: %w", err)
	}
	return pp, primary, nil
}

// view builds the client view of p, merging the primary's care fields for
// a linked SECONDARY.
func (s *Service) view(ctx context.Context, p *models.Participant) (ParticipantView, error) {
	v := ParticipantView{Participant: *p}
	pp, primary, err := s.partnership(ctx, p)
	if err != nil {
		return ParticipantView{}, err
	}
	if pp != nil {
		status := pp.Status
		v.PartnerStatus = &status
		v.PrimaryPartner = &pp.PrimaryID
	}
	return MergePrimaryIntoSecondary(v, primary), nil
}
