// Package memory implements every repository in process. It backs
// STORE=memory and the service and handler tests.
//
// All repositories share one DB and one lock, so multi-table writes such as
// CreateInvite are atomic the same way a Postgres transaction is.
package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/carepath/internal/models"
	"github.com/lalith-99/carepath/internal/repository"
)

type codeKey struct {
	participant uuid.UUID
	kind        models.CodeKind
}

type posKey struct {
	group    uuid.UUID
	resource uuid.UUID
}

type readKey struct {
	touchPoint  uuid.UUID
	participant uuid.UUID
}

type providerLink struct {
	providerID uuid.UUID
	isDefault  bool
	linkedAt   time.Time
}

type DB struct {
	mu  sync.RWMutex
	now func() time.Time

	participants     map[uuid.UUID]models.Participant
	participantOrder []uuid.UUID
	partners         map[uuid.UUID]models.PrimaryPartner // keyed by secondary
	codes            map[codeKey]models.InviteCode
	attempts         map[codeKey]models.Attempt
	groups           map[uuid.UUID]models.Group
	stages           map[uuid.UUID]models.Stage
	providers        map[uuid.UUID]models.Provider
	providerOrder    []uuid.UUID
	links            map[uuid.UUID][]providerLink // keyed by participant
	categories       map[uuid.UUID]models.ResourceCategory
	resources        map[uuid.UUID]models.Resource
	resourceOrder    []uuid.UUID
	positions        map[posKey]int
	paths            map[uuid.UUID]models.Path
	pathOrder        []uuid.UUID
	touchPoints      map[uuid.UUID]models.TouchPoint
	touchPointOrder  []uuid.UUID
	reads            map[readKey]models.TouchPointRead
	sessions         map[uuid.UUID]models.Session
}

func New() *DB {
	return &DB{
		now:          time.Now,
		participants: map[uuid.UUID]models.Participant{},
		partners:     map[uuid.UUID]models.PrimaryPartner{},
		codes:        map[codeKey]models.InviteCode{},
		attempts:     map[codeKey]models.Attempt{},
		groups:       map[uuid.UUID]models.Group{},
		stages:       map[uuid.UUID]models.Stage{},
		providers:    map[uuid.UUID]models.Provider{},
		links:        map[uuid.UUID][]providerLink{},
		categories:   map[uuid.UUID]models.ResourceCategory{},
		resources:    map[uuid.UUID]models.Resource{},
		positions:    map[posKey]int{},
		paths:        map[uuid.UUID]models.Path{},
		touchPoints:  map[uuid.UUID]models.TouchPoint{},
		reads:        map[readKey]models.TouchPointRead{},
		sessions:     map[uuid.UUID]models.Session{},
	}
}

// SetClock replaces the time source. Tests use it to expire sessions.
func (db *DB) SetClock(now func() time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.now = now
}

// Store returns every repository backed by db.
func (db *DB) Store() repository.Store {
	return repository.Store{
		Participants:    &ParticipantRepo{db: db},
		Partners:        &PartnerRepo{db: db},
		InviteCodes:     &InviteCodeRepo{db: db},
		Attempts:        &AttemptRepo{db: db},
		Groups:          &GroupRepo{db: db},
		Stages:          &StageRepo{db: db},
		Providers:       &ProviderRepo{db: db},
		Categories:      &CategoryRepo{db: db},
		Resources:       &ResourceRepo{db: db},
		Positions:       &PositionRepo{db: db},
		Paths:           &PathRepo{db: db},
		TouchPoints:     &TouchPointRepo{db: db},
		TouchPointReads: &TouchPointReadRepo{db: db},
		Sessions:        &SessionRepo{db: db},
	}
}

func ptr[T any](v T) *T { return &v }

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// paginate slices items for a normalized page.
func paginate[T any](items []T, page repository.Page) []T {
	start := page.Offset()
	if start > len(items) {
		start = len(items)
	}
	end := start + page.Limit
	if end > len(items) {
		end = len(items)
	}
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}
