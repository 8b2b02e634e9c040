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

type InviteCodeStore struct {
	pool *pgxpool.Pool
}

func NewInviteCodeStore(pool *pgxpool.Pool) *InviteCodeStore {
	return &InviteCodeStore{pool: pool}
}

func scanCode(row pgx.Row) (*models.InviteCode, error) {
	var c models.InviteCode
	if err := row.Scan(&c.ID, &c.ParticipantID, &c.Code, &c.Kind, &c.PrimaryPartnerID, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *InviteCodeStore) Find(ctx context.Context, participantID uuid.UUID, kind models.CodeKind, code string) (*models.InviteCode, error) {
	c, err := scanCode(s.pool.QueryRow(ctx, `
		SELECT id, participant_id, code, kind, primary_partner_id, created_at
		FROM invite_codes
		WHERE participant_id = $1 AND kind = $2 AND code = $3`,
		participantID, kind, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find code: %w", err)
	}
	return c, nil
}

func (s *InviteCodeStore) Latest(ctx context.Context, participantID uuid.UUID, kind models.CodeKind) (*models.InviteCode, error) {
	c, err := scanCode(s.pool.QueryRow(ctx, `
		SELECT id, participant_id, code, kind, primary_partner_id, created_at
		FROM invite_codes
		WHERE participant_id = $1 AND kind = $2`,
		participantID, kind))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get code: %w", err)
	}
	return c, nil
}

// Replace upserts on (participant_id, kind) with a fresh id, so a Consume
// holding the old id finds nothing.
func (s *InviteCodeStore) Replace(ctx context.Context, c *models.InviteCode) (*models.InviteCode, error) {
	out, err := scanCode(s.pool.QueryRow(ctx, `
		INSERT INTO invite_codes (participant_id, code, kind, primary_partner_id, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (participant_id, kind) DO UPDATE SET
			id = gen_random_uuid(),
			code = EXCLUDED.code,
			primary_partner_id = EXCLUDED.primary_partner_id,
			created_at = now()
		RETURNING id, participant_id, code, kind, primary_partner_id, created_at`,
		c.ParticipantID, c.Code, c.Kind, c.PrimaryPartnerID))
	if err != nil {
		return nil, fmt.Errorf("replace code: %w", err)
	}
	return out, nil
}

func (s *InviteCodeStore) Consume(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM invite_codes WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("consume code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

// Increment counts one failed attempt and returns the new count.
//
// How the upsert works:
//   - The first miss inserts a row with count 1.
//   - Later misses hit ON CONFLICT and add one in the same statement, so two
//     concurrent misses always end up two apart.
//   - LEAST clamps the count at max. A locked row stays at max however many
//     more misses arrive, and the limiter compares against max.
func (s *AttemptStore) Increment(ctx context.Context, participantID uuid.UUID, kind models.CodeKind, max int) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO attempts (participant_id, kind, count, updated_at)
		VALUES ($1, $2, LEAST(1, $3::int), now())
		ON CONFLICT (participant_id, kind) DO UPDATE SET
			count = LEAST(attempts.count + 1, $3::int),
			updated_at = now()
		RETURNING count`,
		participantID, kind, max,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	return count, nil
}

// ClearUnlessLocked runs after a correct code. It deletes the counter when
// it is below max and reports locked=true when it is at max.
//
// How the CTE works:
//   - The DELETE in the WITH clause only removes rows with count < max.
//   - Every part of a Postgres statement sees the same snapshot, taken
//     before the DELETE runs, so the outer SELECT still sees the row it
//     would have deleted. It therefore filters on count >= max, which only
//     a row the DELETE left alone can match.
func (s *AttemptStore) ClearUnlessLocked(ctx context.Context, participantID uuid.UUID, kind models.CodeKind, max int) (bool, error) {
	var locked bool
	err := s.pool.QueryRow(ctx, `
		WITH cleared AS (
			DELETE FROM attempts
			WHERE participant_id = $1 AND kind = $2 AND count < $3
		)
		SELECT EXISTS (
			SELECT 1 FROM attempts
			WHERE participant_id = $1 AND kind = $2 AND count >= $3
		)`,
		participantID, kind, max,
	).Scan(&locked)
	if err != nil {
		return false, fmt.Errorf("clear attempts: %w", err)
	}
	return locked, nil
}

func (s *AttemptStore) Get(ctx context.Context, participantID uuid.UUID, kind models.CodeKind) (*models.Attempt, error) {
	var a models.Attempt
	err := s.pool.QueryRow(ctx, `
		SELECT participant_id, kind, count, updated_at
		FROM attempts
		WHERE participant_id = $1 AND kind = $2`,
		participantID, kind,
	).Scan(&a.ParticipantID, &a.Kind, &a.Count, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get attempts: %w", err)
	}
	return &a, nil
}

func (s *AttemptStore) Delete(ctx context.Context, participantID uuid.UUID, kind models.CodeKind) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM attempts WHERE participant_id = $1 AND kind = $2`, participantID, kind)
	if err != nil {
		return fmt.Errorf("delete attempts: %w", err)
	}
	return nil
}
