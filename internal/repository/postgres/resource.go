package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/carepath/internal/models"
	"github.com/lalith-99/carepath/internal/repository"
)

type CategoryStore struct {
	pool *pgxpool.Pool
}

func NewCategoryStore(pool *pgxpool.Pool) *CategoryStore {
	return &CategoryStore{pool: pool}
}

func (s *CategoryStore) Create(ctx context.Context, c *models.ResourceCategory) (*models.ResourceCategory, error) {
	status := c.Status
	if status == "" {
		status = models.ContentActive
	}
	var out models.ResourceCategory
	err := s.pool.QueryRow(ctx, `
		INSERT INTO resource_categories (group_id, name, picture, status, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, group_id, name, picture, status, created_at`,
		c.GroupID, c.Name, c.Picture, status,
	).Scan(&out.ID, &out.GroupID, &out.Name, &out.Picture, &out.Status, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}
	return &out, nil
}

func (s *CategoryStore) GetByID(ctx context.Context, id uuid.UUID) (*models.ResourceCategory, error) {
	var out models.ResourceCategory
	err := s.pool.QueryRow(ctx, `
		SELECT id, group_id, name, picture, status, created_at
		FROM resource_categories
		WHERE id = $1`,
		id,
	).Scan(&out.ID, &out.GroupID, &out.Name, &out.Picture, &out.Status, &out.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return &out, nil
}

const resourceColumns = `
	r.id, r.group_id, r.location_id, r.category_id, r.headline, r.media, r.type,
	r.description, r.thumbnail, r.view_time, r.status, r.content, r.created_at, r.updated_at`

func scanResource(row pgx.Row) (*models.Resource, error) {
	var r models.Resource
	err := row.Scan(
		&r.ID,
		&r.GroupID,
		&r.LocationID,
		&r.CategoryID,
		&r.Headline,
		&r.Media,
		&r.Type,
		&r.Description,
		&r.Thumbnail,
		&r.ViewTime,
		&r.Status,
		&r.Content,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

type ResourceStore struct {
	pool *pgxpool.Pool
}

func NewResourceStore(pool *pgxpool.Pool) *ResourceStore {
	return &ResourceStore{pool: pool}
}

func (s *ResourceStore) Create(ctx context.Context, in *models.Resource) (*models.Resource, error) {
	content := in.Content
	if content == nil {
		content = []models.ContentBlock{}
	}
	status := in.Status
	if status == "" {
		status = models.ContentActive
	}
	query := `
		INSERT INTO resources AS r (group_id, location_id, category_id, headline, media, type,
			description, thumbnail, view_time, status, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING ` + resourceColumns

	r, err := scanResource(s.pool.QueryRow(ctx, query,
		in.GroupID, in.LocationID, in.CategoryID, in.Headline, in.Media, in.Type,
		in.Description, in.Thumbnail, in.ViewTime, status, content,
	))
	if err != nil {
		return nil, fmt.Errorf("insert resource: %w", err)
	}
	return r, nil
}

func (s *ResourceStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Resource, error) {
	r, err := scanResource(s.pool.QueryRow(ctx, `SELECT `+resourceColumns+` FROM resources r WHERE r.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get resource: %w", err)
	}
	return r, nil
}

func (s *ResourceStore) Update(ctx context.Context, in *models.Resource) error {
	content := in.Content
	if content == nil {
		content = []models.ContentBlock{}
	}
	err := s.pool.QueryRow(ctx, `
		UPDATE resources SET
			location_id = $2, category_id = $3, headline = $4, media = $5, type = $6,
			description = $7, thumbnail = $8, view_time = $9, content = $10, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		in.ID, in.LocationID, in.CategoryID, in.Headline, in.Media, in.Type,
		in.Description, in.Thumbnail, in.ViewTime, content,
	).Scan(&in.UpdatedAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("update resource: %w", err)
	}
	return nil
}

func (s *ResourceStore) SetStatus(ctx context.Context, id uuid.UUID, status models.ContentStatus) error {
	_, err := s.pool.Exec(ctx, `UPDATE resources SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set resource status: %w", err)
	}
	return nil
}

func (s *ResourceStore) List(ctx context.Context, filter repository.ResourceFilter, page repository.Page) ([]models.Resource, int, error) {
	page = page.Normalize()

	var (
		where []string
		args  []any
		join  string
		order = "r.created_at, r.id"
	)
	if filter.GroupID != nil {
		args = append(args, *filter.GroupID)
		where = append(where, "(r.group_id = $1 OR r.group_id IS NULL)")
		join = "LEFT JOIN resource_positions rp ON rp.resource_id = r.id AND rp.group_id = $1"
		order = "rp.position NULLS LAST, r.created_at, r.id"
	} else {
		where = append(where, "r.group_id IS NULL")
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		where = append(where, fmt.Sprintf("r.category_id = $%d", len(args)))
	}
	if filter.LocationID != nil {
		args = append(args, *filter.LocationID)
		where = append(where, fmt.Sprintf("(r.location_id = $%d OR r.location_id IS NULL)", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		where = append(where, fmt.Sprintf("r.headline ILIKE $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("r.status = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM resources r WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count resources: %w", err)
	}

	args = append(args, page.Limit, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM resources r %s WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		resourceColumns, join, cond, order, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	out, err := collectResources(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *ResourceStore) ListByIDs(ctx context.Context, ids []uuid.UUID, search string) ([]models.Resource, error) {
	if len(ids) == 0 {
		return []models.Resource{}, nil
	}
	query := `SELECT ` + resourceColumns + ` FROM resources r
		WHERE r.id = ANY($1) AND r.status = 'ACTIVE' AND ($2 = '' OR r.headline ILIKE '%' || $2 || '%')
		ORDER BY r.created_at, r.id`

	rows, err := s.pool.Query(ctx, query, ids, escapeLike(search))
	if err != nil {
		return nil, fmt.Errorf("list resources by id: %w", err)
	}
	defer rows.Close()
	return collectResources(rows)
}

func collectResources(rows pgx.Rows) ([]models.Resource, error) {
	out := make([]models.Resource, 0)
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}
	return out, nil
}

type PositionStore struct {
	pool *pgxpool.Pool
}

func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

func (s *PositionStore) Positions(ctx context.Context, groupID uuid.UUID, resourceIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(resourceIDs))
	if len(resourceIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT resource_id, position
		FROM resource_positions
		WHERE group_id = $1 AND resource_id = ANY($2)`,
		groupID, resourceIDs)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  uuid.UUID
			pos int
		)
		if err := rows.Scan(&id, &pos); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out[id] = pos
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	return out, nil
}

func (s *PositionStore) SetOrder(ctx context.Context, groupID uuid.UUID, ids []uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reorder tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for i, id := range ids {
		batch.Queue(`
			INSERT INTO resource_positions (group_id, resource_id, position)
			VALUES ($1, $2, $3)
			ON CONFLICT (group_id, resource_id) DO UPDATE SET position = EXCLUDED.position`,
			groupID, id, i)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert positions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reorder tx: %w", err)
	}
	return nil
}

func (s *PositionStore) Set(ctx context.Context, groupID, resourceID uuid.UUID, position int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO resource_positions (group_id, resource_id, position)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_id, resource_id) DO UPDATE SET position = EXCLUDED.position`,
		groupID, resourceID, position)
	if err != nil {
		return fmt.Errorf("set position: %w", err)
	}
	return nil
}

func (s *PositionStore) NextPosition(ctx context.Context, groupID, categoryID uuid.UUID) (int, error) {
	var next int
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(rp.position) + 1, 0)
		FROM resource_positions rp
		JOIN resources r ON r.id = rp.resource_id
		WHERE rp.group_id = $1 AND r.category_id = $2`,
		groupID, categoryID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next position: %w", err)
	}
	return next, nil
}
