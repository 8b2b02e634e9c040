package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/carepath/internal/models"
)

type GroupStore struct {
	pool *pgxpool.Pool
}

func NewGroupStore(pool *pgxpool.Pool) *GroupStore {
	return &GroupStore{pool: pool}
}

func (s *GroupStore) Create(ctx context.Context, name string) (*models.Group, error) {
	query := `
		INSERT INTO groups (name, created_at)
		VALUES ($1, now())
		RETURNING id, name, archived, created_at`

	var g models.Group
	err := s.pool.QueryRow(ctx, query, name).Scan(
		&g.ID,
		&g.Name,
		&g.Archived,
		&g.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert group: %w", err)
	}
	return &g, nil
}

func (s *GroupStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	query := `
		SELECT id, name, archived, created_at
		FROM groups
		WHERE id = $1`

	var g models.Group
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&g.ID,
		&g.Name,
		&g.Archived,
		&g.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	return &g, nil
}

func (s *GroupStore) SetArchived(ctx context.Context, id uuid.UUID, archived bool) error {
	_, err := s.pool.Exec(ctx, `UPDATE groups SET archived = $2 WHERE id = $1`, id, archived)
	if err != nil {
		return fmt.Errorf("archive group: %w", err)
	}
	return nil
}

type StageStore struct {
	pool *pgxpool.Pool
}

func NewStageStore(pool *pgxpool.Pool) *StageStore {
	return &StageStore{pool: pool}
}

func (s *StageStore) Create(ctx context.Context, st *models.Stage) (*models.Stage, error) {
	query := `
		INSERT INTO stages (group_id, name, created_at)
		VALUES ($1, $2, now())
		RETURNING id, group_id, name, created_at`

	var out models.Stage
	err := s.pool.QueryRow(ctx, query, st.GroupID, st.Name).Scan(
		&out.ID,
		&out.GroupID,
		&out.Name,
		&out.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert stage: %w", err)
	}
	return &out, nil
}

func (s *StageStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Stage, error) {
	query := `
		SELECT id, group_id, name, created_at
		FROM stages
		WHERE id = $1`

	var out models.Stage
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&out.ID,
		&out.GroupID,
		&out.Name,
		&out.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stage: %w", err)
	}
	return &out, nil
}
