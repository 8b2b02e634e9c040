package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/carepath/internal/models"
	"github.com/lalith-99/carepath/internal/repository"
)

type PathStore struct {
	pool *pgxpool.Pool
}

func NewPathStore(pool *pgxpool.Pool) *PathStore {
	return &PathStore{pool: pool}
}

func (s *PathStore) Create(ctx context.Context, p *models.Path) (*models.Path, error) {
	status := p.Status
	if status == "" {
		status = models.ContentActive
	}
	var out models.Path
	err := s.pool.QueryRow(ctx, `
		INSERT INTO paths (group_id, location_id, user_type, stage_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, group_id, location_id, user_type, stage_id, status, created_at`,
		p.GroupID, p.LocationID, p.UserType, p.StageID, status,
	).Scan(&out.ID, &out.GroupID, &out.LocationID, &out.UserType, &out.StageID, &out.Status, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert path: %w", err)
	}
	return &out, nil
}

func (s *PathStore) ListCandidates(ctx context.Context, q repository.PathQuery) ([]models.Path, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, group_id, location_id, user_type, stage_id, status, created_at
		FROM paths
		WHERE status = 'ACTIVE'
		  AND user_type = $1
		  AND ($2::uuid IS NULL OR stage_id = $2)
		  AND (group_id = $3 OR group_id IS NULL)
		  AND (location_id IS NULL OR location_id = $4)
		ORDER BY created_at`,
		q.UserType, q.StageID, q.GroupID, q.LocationID)
	if err != nil {
		return nil, fmt.Errorf("list paths: %w", err)
	}
	defer rows.Close()

	out := make([]models.Path, 0)
	for rows.Next() {
		var p models.Path
		if err := rows.Scan(&p.ID, &p.GroupID, &p.LocationID, &p.UserType, &p.StageID, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan path: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate paths: %w", err)
	}
	return out, nil
}

const touchPointColumns = `id, path_id, group_id, kind, period, target_id, status, disabled_for, replaced_for, created_at`

func scanTouchPoint(row pgx.Row) (*models.TouchPoint, error) {
	var tp models.TouchPoint
	err := row.Scan(
		&tp.ID,
		&tp.PathID,
		&tp.GroupID,
		&tp.Kind,
		&tp.Period,
		&tp.TargetID,
		&tp.Status,
		&tp.DisabledFor,
		&tp.ReplacedFor,
		&tp.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tp, nil
}

type TouchPointStore struct {
	pool *pgxpool.Pool
}

func NewTouchPointStore(pool *pgxpool.Pool) *TouchPointStore {
	return &TouchPointStore{pool: pool}
}

func (s *TouchPointStore) Create(ctx context.Context, in *models.TouchPoint) (*models.TouchPoint, error) {
	status := in.Status
	if status == "" {
		status = models.ContentActive
	}
	disabled, replaced := in.DisabledFor, in.ReplacedFor
	if disabled == nil {
		disabled = []uuid.UUID{}
	}
	if replaced == nil {
		replaced = []uuid.UUID{}
	}
	tp, err := scanTouchPoint(s.pool.QueryRow(ctx, `
		INSERT INTO touch_points (path_id, group_id, kind, period, target_id, status, disabled_for, replaced_for, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		RETURNING `+touchPointColumns,
		in.PathID, in.GroupID, in.Kind, in.Period, in.TargetID, status, disabled, replaced))
	if err != nil {
		return nil, fmt.Errorf("insert touch point: %w", err)
	}
	return tp, nil
}

func (s *TouchPointStore) GetByID(ctx context.Context, id uuid.UUID) (*models.TouchPoint, error) {
	tp, err := scanTouchPoint(s.pool.QueryRow(ctx, `SELECT `+touchPointColumns+` FROM touch_points WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get touch point: %w", err)
	}
	return tp, nil
}

func (s *TouchPointStore) ListForPaths(ctx context.Context, pathIDs []uuid.UUID, maxPeriod int) ([]models.TouchPoint, error) {
	if len(pathIDs) == 0 {
		return []models.TouchPoint{}, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+touchPointColumns+`
		FROM touch_points
		WHERE path_id = ANY($1) AND status = 'ACTIVE' AND period <= $2
		ORDER BY period, created_at, id`,
		pathIDs, maxPeriod)
	if err != nil {
		return nil, fmt.Errorf("list touch points: %w", err)
	}
	defer rows.Close()

	out := make([]models.TouchPoint, 0)
	for rows.Next() {
		tp, err := scanTouchPoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan touch point: %w", err)
		}
		out = append(out, *tp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate touch points: %w", err)
	}
	return out, nil
}

func (s *TouchPointStore) CountActiveByTarget(ctx context.Context, targetID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM touch_points WHERE target_id = $1 AND status = 'ACTIVE'`,
		targetID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count touch points: %w", err)
	}
	return n, nil
}

type TouchPointReadStore struct {
	pool *pgxpool.Pool
}

func NewTouchPointReadStore(pool *pgxpool.Pool) *TouchPointReadStore {
	return &TouchPointReadStore{pool: pool}
}

func (s *TouchPointReadStore) Mark(ctx context.Context, r models.TouchPointRead) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO touch_point_reads (touch_point_id, participant_id, action, read_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (touch_point_id, participant_id) DO UPDATE SET
			action = EXCLUDED.action,
			read_at = now()`,
		r.TouchPointID, r.ParticipantID, r.Action)
	if err != nil {
		return fmt.Errorf("mark touch point: %w", err)
	}
	return nil
}

func (s *TouchPointReadStore) ListRead(ctx context.Context, participantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]models.TouchPointAction, error) {
	out := make(map[uuid.UUID]models.TouchPointAction, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT touch_point_id, action
		FROM touch_point_reads
		WHERE participant_id = $1 AND touch_point_id = ANY($2)`,
		participantID, ids)
	if err != nil {
		return nil, fmt.Errorf("list touch point reads: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id     uuid.UUID
			action models.TouchPointAction
		)
		if err := rows.Scan(&id, &action); err != nil {
			return nil, fmt.Errorf("scan touch point read: %w", err)
		}
		out[id] = action
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate touch point reads: %w", err)
	}
	return out, nil
}
