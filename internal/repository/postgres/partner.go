package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/carepath/internal/db"
	"github.com/lalith-99/carepath/internal/models"
	"github.com/lalith-99/carepath/internal/repository"
)

type PartnerStore struct {
	pool *pgxpool.Pool
}

func NewPartnerStore(pool *pgxpool.Pool) *PartnerStore {
	return &PartnerStore{pool: pool}
}

func (s *PartnerStore) Link(ctx context.Context, secondaryID, primaryID uuid.UUID, status models.PartnerStatus) error {
	// secondary_id is the primary key, so a second link fails with 23505
	// instead of silently adding another primary.
	_, err := s.pool.Exec(ctx, `
		INSERT INTO participant_partners (secondary_id, primary_id, status, created_at)
		VALUES ($1, $2, $3, now())`,
		secondaryID, primaryID, status)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return repository.ErrPartnerLimit
		}
		return fmt.Errorf("link partner: %w", err)
	}
	return nil
}

func (s *PartnerStore) PrimaryOf(ctx context.Context, secondaryID uuid.UUID) (*models.PrimaryPartner, error) {
	var pp models.PrimaryPartner
	err := s.pool.QueryRow(ctx, `
		SELECT secondary_id, primary_id, status, created_at
		FROM participant_partners
		WHERE secondary_id = $1`,
		secondaryID,
	).Scan(&pp.SecondaryID, &pp.PrimaryID, &pp.Status, &pp.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get primary partner: %w", err)
	}
	return &pp, nil
}

func (s *PartnerStore) SecondariesOf(ctx context.Context, primaryID uuid.UUID) ([]models.PrimaryPartner, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT secondary_id, primary_id, status, created_at
		FROM participant_partners
		WHERE primary_id = $1
		ORDER BY created_at`,
		primaryID)
	if err != nil {
		return nil, fmt.Errorf("list secondaries: %w", err)
	}
	defer rows.Close()

	out := make([]models.PrimaryPartner, 0)
	for rows.Next() {
		var pp models.PrimaryPartner
		if err := rows.Scan(&pp.SecondaryID, &pp.PrimaryID, &pp.Status, &pp.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan partnership: %w", err)
		}
		out = append(out, pp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate partnerships: %w", err)
	}
	return out, nil
}

func (s *PartnerStore) Activate(ctx context.Context, secondaryID, primaryID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE participant_partners SET status = 'ACTIVE'
		WHERE secondary_id = $1 AND primary_id = $2`,
		secondaryID, primaryID)
	if err != nil {
		return fmt.Errorf("activate partnership: %w", err)
	}
	return nil
}

func (s *PartnerStore) Unlink(ctx context.Context, secondaryID, primaryID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM participant_partners
		WHERE secondary_id = $1 AND primary_id = $2`,
		secondaryID, primaryID)
	if err != nil {
		return fmt.Errorf("unlink partner: %w", err)
	}
	return nil
}
