package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/carepath/internal/models"
)

// Every method takes ctx first. Lookups return nil, nil when the row does
// not exist; callers decide whether that is a 403, a 404 or fine.

var (
	// ErrDuplicateEmail is returned by writes that would give two
	// participants the same (case-insensitive) email.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrPartnerLimit is returned when a secondary that already has a
	// primary partner is linked to another one.
	ErrPartnerLimit = errors.New("secondary already has a primary partner")
)

// Page is a 1-based page request. Sort is a column name as accepted by
// the store; a leading "-" sorts descending.
type Page struct {
	Page  int
	Limit int
	Sort  string
}

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Normalize fills defaults and clamps the limit.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Sort == "" {
		p.Sort = "createdAt"
	}
	return p
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// SortKey splits Sort into the field name and direction.
func (p Page) SortKey() (field string, desc bool) {
	if len(p.Sort) > 0 && p.Sort[0] == '-' {
		return p.Sort[1:], true
	}
	return p.Sort, false
}

// NewInvite is everything written when a participant is invited.
// PrimaryID is set only for a SECONDARY invited on behalf of a PRIMARY; the
// partnership row and the code's primary partner both point at it.
type NewInvite struct {
	Participant *models.Participant
	PrimaryID   *uuid.UUID
	Code        string
}

type ParticipantFilter struct {
	GroupID    uuid.UUID
	Search     string
	ProviderID *uuid.UUID
	Type       models.ParticipantType
}

// CareUpdate carries the fields a primary shares with its secondaries.
// A nil field is left untouched.
type CareUpdate struct {
	StageID       *uuid.UUID
	DateOfSurgery *time.Time
	LocationID    *uuid.UUID
}

func (u CareUpdate) Empty() bool {
	return u.StageID == nil && u.DateOfSurgery == nil && u.LocationID == nil
}

type ParticipantRepository interface {
	// CreateInvite writes the participant, the optional partnership row and
	// the invite code atomically. Returns ErrDuplicateEmail on a taken email.
	CreateInvite(ctx context.Context, inv NewInvite) (*models.Participant, *models.InviteCode, error)

	GetByID(ctx context.Context, id uuid.UUID) (*models.Participant, error)

	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*models.Participant, error)

	EmailExists(ctx context.Context, email string) (bool, error)

	// List returns one page of the group's participants and the total count.
	List(ctx context.Context, filter ParticipantFilter, page Page) ([]models.Participant, int, error)

	// Update writes the profile fields of p. Returns ErrDuplicateEmail when
	// the new email is taken.
	Update(ctx context.Context, p *models.Participant) error

	// Activate flips INVITED to ACTIVE and sets name and password hash in one
	// conditional write. Returns false when the participant was not INVITED.
	Activate(ctx context.Context, id uuid.UUID, name, passwordHash string) (bool, error)

	SetStatus(ctx context.Context, id uuid.UUID, status models.ParticipantStatus) (*models.Participant, error)

	SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error

	// CascadeToSecondaries applies u to every secondary linked to primaryID
	// and returns how many rows changed.
	CascadeToSecondaries(ctx context.Context, primaryID uuid.UUID, u CareUpdate) (int64, error)
}

type PartnerRepository interface {
	// Link returns ErrPartnerLimit when the secondary already has a primary.
	Link(ctx context.Context, secondaryID, primaryID uuid.UUID, status models.PartnerStatus) error

	// PrimaryOf returns the secondary's partnership row, or nil.
	PrimaryOf(ctx context.Context, secondaryID uuid.UUID) (*models.PrimaryPartner, error)

	// SecondariesOf returns every partnership row pointing at primaryID,
	// oldest first.
	SecondariesOf(ctx context.Context, primaryID uuid.UUID) ([]models.PrimaryPartner, error)

	Activate(ctx context.Context, secondaryID, primaryID uuid.UUID) error

	Unlink(ctx context.Context, secondaryID, primaryID uuid.UUID) error
}

type InviteCodeRepository interface {
	// Find returns the live code of that kind for the participant when it
	// matches code, or nil.
	Find(ctx context.Context, participantID uuid.UUID, kind models.CodeKind, code string) (*models.InviteCode, error)

	// Latest returns the live code of that kind regardless of its value.
	Latest(ctx context.Context, participantID uuid.UUID, kind models.CodeKind) (*models.InviteCode, error)

	// Replace drops any live code of c.Kind for the participant and stores c.
	Replace(ctx context.Context, c *models.InviteCode) (*models.InviteCode, error)

	// Consume deletes the code. Returns false when another caller already
	// consumed it.
	Consume(ctx context.Context, id uuid.UUID) (bool, error)
}

type AttemptRepository interface {
	// Increment adds one failure and returns the new count, never above max.
	Increment(ctx context.Context, participantID uuid.UUID, kind models.CodeKind, max int) (int, error)

	// ClearUnlessLocked deletes the counter when it is below max. Returns
	// true when the counter is at max and was kept.
	ClearUnlessLocked(ctx context.Context, participantID uuid.UUID, kind models.CodeKind, max int) (bool, error)

	Get(ctx context.Context, participantID uuid.UUID, kind models.CodeKind) (*models.Attempt, error)

	Delete(ctx context.Context, participantID uuid.UUID, kind models.CodeKind) error
}

type GroupRepository interface {
	Create(ctx context.Context, name string) (*models.Group, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Group, error)
	SetArchived(ctx context.Context, id uuid.UUID, archived bool) error
}

type StageRepository interface {
	Create(ctx context.Context, s *models.Stage) (*models.Stage, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Stage, error)
}

type ProviderRepository interface {
	Create(ctx context.Context, p *models.Provider) (*models.Provider, error)

	// GetByID is scoped to the group.
	GetByID(ctx context.Context, groupID, id uuid.UUID) (*models.Provider, error)

	// ListUnlinked pages through the group's non-REMOVED providers that are
	// not linked to the participant.
	ListUnlinked(ctx context.Context, groupID, participantID uuid.UUID, page Page) ([]models.Provider, int, error)

	// Link is a no-op when already linked. The first link of a participant
	// becomes its default.
	Link(ctx context.Context, participantID, providerID uuid.UUID) error

	Unlink(ctx context.Context, participantID, providerID uuid.UUID) error

	// SetDefault makes providerID the only default. Returns false when the
	// provider is not linked to the participant.
	SetDefault(ctx context.Context, participantID, providerID uuid.UUID) (bool, error)

	// LinksOf returns the participant's providers in link order.
	LinksOf(ctx context.Context, participantID uuid.UUID) ([]models.LinkedProvider, error)
}

type CategoryRepository interface {
	Create(ctx context.Context, c *models.ResourceCategory) (*models.ResourceCategory, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.ResourceCategory, error)
}

// ResourceFilter selects library items. With GroupID set, the group's own
// resources and the global catalog are visible and ordered by that group's
// positions; with GroupID nil only the global catalog is visible.
type ResourceFilter struct {
	GroupID    *uuid.UUID
	CategoryID *uuid.UUID
	LocationID *uuid.UUID
	Search     string
	Status     models.ContentStatus
}

type ResourceRepository interface {
	Create(ctx context.Context, r *models.Resource) (*models.Resource, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Resource, error)
	Update(ctx context.Context, r *models.Resource) error
	SetStatus(ctx context.Context, id uuid.UUID, status models.ContentStatus) error

	// List returns one page ordered by position (unpositioned last, then by
	// creation time) and the total count.
	List(ctx context.Context, filter ResourceFilter, page Page) ([]models.Resource, int, error)

	// ListByIDs returns the ACTIVE resources among ids whose headline
	// contains search (all of them when search is empty). Order is unspecified.
	ListByIDs(ctx context.Context, ids []uuid.UUID, search string) ([]models.Resource, error)
}

type PositionRepository interface {
	// Positions returns the group's positions for the given resources.
	// Resources without a position are absent from the map.
	Positions(ctx context.Context, groupID uuid.UUID, resourceIDs []uuid.UUID) (map[uuid.UUID]int, error)

	// SetOrder assigns position i to ids[i] for the group in one transaction.
	SetOrder(ctx context.Context, groupID uuid.UUID, ids []uuid.UUID) error

	Set(ctx context.Context, groupID, resourceID uuid.UUID, position int) error

	// NextPosition is one past the highest position the group uses inside
	// the category, or 0.
	NextPosition(ctx context.Context, groupID, categoryID uuid.UUID) (int, error)
}

// PathQuery describes the participant a path must apply to. A nil StageID
// matches every stage.
type PathQuery struct {
	GroupID    uuid.UUID
	LocationID *uuid.UUID
	UserType   models.ParticipantType
	StageID    *uuid.UUID
}

type PathRepository interface {
	Create(ctx context.Context, p *models.Path) (*models.Path, error)

	// ListCandidates returns ACTIVE paths for the user type and stage whose
	// group is the participant's or global and whose location is the
	// participant's or unset.
	ListCandidates(ctx context.Context, q PathQuery) ([]models.Path, error)
}

type TouchPointRepository interface {
	Create(ctx context.Context, tp *models.TouchPoint) (*models.TouchPoint, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.TouchPoint, error)

	// ListForPaths returns ACTIVE touch points on the paths with
	// period <= maxPeriod, by period then creation time.
	ListForPaths(ctx context.Context, pathIDs []uuid.UUID, maxPeriod int) ([]models.TouchPoint, error)

	// CountActiveByTarget counts ACTIVE touch points pointing at targetID.
	CountActiveByTarget(ctx context.Context, targetID uuid.UUID) (int, error)
}

type TouchPointReadRepository interface {
	// Mark upserts the participant's read record for the touch point.
	Mark(ctx context.Context, r models.TouchPointRead) error

	// ListRead returns the recorded action per touch point among ids.
	ListRead(ctx context.Context, participantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]models.TouchPointAction, error)
}

type SessionRepository interface {
	Create(ctx context.Context, subjectID uuid.UUID, model string, ttl time.Duration) (*models.Session, error)

	// Get returns nil, nil for unknown or expired sessions.
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)

	Delete(ctx context.Context, id uuid.UUID) error
}

// Store bundles every repository the services need so a backend can be
// swapped in one place.
type Store struct {
	Participants    ParticipantRepository
	Partners        PartnerRepository
	InviteCodes     InviteCodeRepository
	Attempts        AttemptRepository
	Groups          GroupRepository
	Stages          StageRepository
	Providers       ProviderRepository
	Categories      CategoryRepository
	Resources       ResourceRepository
	Positions       PositionRepository
	Paths           PathRepository
	TouchPoints     TouchPointRepository
	TouchPointReads TouchPointReadRepository
	Sessions        SessionRepository
}
