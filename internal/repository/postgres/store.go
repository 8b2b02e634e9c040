package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/carepath/internal/repository"
)

// NewStore wires every Postgres repository on one pool. Sessions live in
// Redis and are set by the caller.
func NewStore(pool *pgxpool.Pool) repository.Store {
	return repository.Store{
		Participants:    NewParticipantStore(pool),
		Partners:        NewPartnerStore(pool),
		InviteCodes:     NewInviteCodeStore(pool),
		Attempts:        NewAttemptStore(pool),
		Groups:          NewGroupStore(pool),
		Stages:          NewStageStore(pool),
		Providers:       NewProviderStore(pool),
		Categories:      NewCategoryStore(pool),
		Resources:       NewResourceStore(pool),
		Positions:       NewPositionStore(pool),
		Paths:           NewPathStore(pool),
		TouchPoints:     NewTouchPointStore(pool),
		TouchPointReads: NewTouchPointReadStore(pool),
	}
}
