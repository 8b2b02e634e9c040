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

type ProviderStore struct {
	pool *pgxpool.Pool
}

func NewProviderStore(pool *pgxpool.Pool) *ProviderStore {
	return &ProviderStore{pool: pool}
}

func (s *ProviderStore) Create(ctx context.Context, p *models.Provider) (*models.Provider, error) {
	var out models.Provider
	err := s.pool.QueryRow(ctx, `
		INSERT INTO providers (group_id, name, email, phone, status, created_at)
		VALUES ($1, $2, lower($3), $4, $5, now())
		RETURNING id, group_id, name, email, phone, status, created_at`,
		p.GroupID, p.Name, p.Email, p.Phone, p.Status,
	).Scan(&out.ID, &out.GroupID, &out.Name, &out.Email, &out.Phone, &out.Status, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert provider: %w", err)
	}
	return &out, nil
}

func (s *ProviderStore) GetByID(ctx context.Context, groupID, id uuid.UUID) (*models.Provider, error) {
	var out models.Provider
	err := s.pool.QueryRow(ctx, `
		SELECT id, group_id, name, email, phone, status, created_at
		FROM providers
		WHERE id = $1 AND group_id = $2`,
		id, groupID,
	).Scan(&out.ID, &out.GroupID, &out.Name, &out.Email, &out.Phone, &out.Status, &out.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get provider: %w", err)
	}
	return &out, nil
}

var providerSortColumns = map[string]string{
	"createdAt": "created_at",
	"name":      "name",
	"email":     "email",
}

func (s *ProviderStore) ListUnlinked(ctx context.Context, groupID, participantID uuid.UUID, page repository.Page) ([]models.Provider, int, error) {
	page = page.Normalize()
	cond := `
		group_id = $1 AND status <> 'REMOVED'
		AND id NOT IN (SELECT provider_id FROM participant_providers WHERE participant_id = $2)`

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM providers WHERE `+cond, groupID, participantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count unlinked providers: %w", err)
	}

	field, desc := page.SortKey()
	column, ok := providerSortColumns[field]
	if !ok {
		column = "created_at"
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}

	query := fmt.Sprintf(`
		SELECT id, group_id, name, email, phone, status, created_at
		FROM providers WHERE %s
		ORDER BY %s %s, id
		LIMIT $3 OFFSET $4`, cond, column, dir)

	rows, err := s.pool.Query(ctx, query, groupID, participantID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list unlinked providers: %w", err)
	}
	defer rows.Close()

	out := make([]models.Provider, 0)
	for rows.Next() {
		var p models.Provider
		if err := rows.Scan(&p.ID, &p.GroupID, &p.Name, &p.Email, &p.Phone, &p.Status, &p.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan provider: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate providers: %w", err)
	}
	return out, total, nil
}

func (s *ProviderStore) Link(ctx context.Context, participantID, providerID uuid.UUID) error {
	// The NOT EXISTS subquery makes the first link the default one.
	// ON CONFLICT keeps a repeated link a no-op.
	_, err := s.pool.Exec(ctx, `
		INSERT INTO participant_providers (participant_id, provider_id, is_default, linked_at)
		VALUES ($1, $2,
			NOT EXISTS (SELECT 1 FROM participant_providers WHERE participant_id = $1),
			now())
		ON CONFLICT (participant_id, provider_id) DO NOTHING`,
		participantID, providerID)
	if err != nil {
		return fmt.Errorf("link provider: %w", err)
	}
	return nil
}

func (s *ProviderStore) Unlink(ctx context.Context, participantID, providerID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM participant_providers
		WHERE participant_id = $1 AND provider_id = $2`,
		participantID, providerID)
	if err != nil {
		return fmt.Errorf("unlink provider: %w", err)
	}
	return nil
}

func (s *ProviderStore) SetDefault(ctx context.Context, participantID, providerID uuid.UUID) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin default tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var linked bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM participant_providers WHERE participant_id = $1 AND provider_id = $2)`,
		participantID, providerID,
	).Scan(&linked)
	if err != nil {
		return false, fmt.Errorf("check provider link: %w", err)
	}
	if !linked {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE participant_providers SET is_default = (provider_id = $2)
		WHERE participant_id = $1`,
		participantID, providerID)
	if err != nil {
		return false, fmt.Errorf("set default provider: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit default tx: %w", err)
	}
	return true, nil
}

func (s *ProviderStore) LinksOf(ctx context.Context, participantID uuid.UUID) ([]models.LinkedProvider, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.group_id, p.name, p.email, p.phone, p.status, p.created_at,
		       pp.is_default, pp.linked_at
		FROM participant_providers pp
		JOIN providers p ON p.id = pp.provider_id
		WHERE pp.participant_id = $1
		ORDER BY pp.linked_at, p.id`,
		participantID)
	if err != nil {
		return nil, fmt.Errorf("list linked providers: %w", err)
	}
	defer rows.Close()

	out := make([]models.LinkedProvider, 0)
	for rows.Next() {
		var lp models.LinkedProvider
		if err := rows.Scan(
			&lp.ID, &lp.GroupID, &lp.Name, &lp.Email, &lp.Phone, &lp.Status, &lp.CreatedAt,
			&lp.IsDefault, &lp.LinkedAt,
		); err != nil {
			return nil, fmt.Errorf("scan linked provider: %w", err)
		}
		out = append(out, lp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate linked providers: %w", err)
	}
	return out, nil
}
