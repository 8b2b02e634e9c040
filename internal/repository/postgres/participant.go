package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/carepath/internal/db"
	"github.com/lalith-99/carepath/internal/models"
	"github.com/lalith-99/carepath/internal/repository"
)

const emailConstraint = "participants_email_key"

const participantColumns = `
	id, group_id, name, email, password_hash, dob, phone,
	street_address, city, state, zip, type, status,
	location_id, stage_id, date_of_surgery, zone,
	push_notifications, email_notifications, created_at, updated_at`

func scanParticipant(row pgx.Row) (*models.Participant, error) {
	var p models.Participant
	err := row.Scan(
		&p.ID,
		&p.GroupID,
		&p.Name,
		&p.Email,
		&p.PasswordHash,
		&p.DOB,
		&p.Phone,
		&p.Address.StreetAddress,
		&p.Address.City,
		&p.Address.State,
		&p.Address.Zip,
		&p.Type,
		&p.Status,
		&p.LocationID,
		&p.StageID,
		&p.DateOfSurgery,
		&p.Zone,
		&p.Preferences.PushNotifications,
		&p.Preferences.EmailNotifications,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type ParticipantStore struct {
	pool *pgxpool.Pool
}

func NewParticipantStore(pool *pgxpool.Pool) *ParticipantStore {
	return &ParticipantStore{pool: pool}
}

func (s *ParticipantStore) CreateInvite(ctx context.Context, inv repository.NewInvite) (*models.Participant, *models.InviteCode, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin invite tx: %w", err)
	}
	defer tx.Rollback(ctx)

	in := inv.Participant
	query := `
		INSERT INTO participants (
			group_id, name, email, dob, phone,
			street_address, city, state, zip, type, status,
			location_id, stage_id, date_of_surgery, zone,
			push_notifications, email_notifications, created_at, updated_at)
		VALUES ($1, $2, lower($3), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, now(), now())
		RETURNING ` + participantColumns

	p, err := scanParticipant(tx.QueryRow(ctx, query,
		in.GroupID, in.Name, in.Email, in.DOB, in.Phone,
		in.Address.StreetAddress, in.Address.City, in.Address.State, in.Address.Zip,
		in.Type, in.Status, in.LocationID, in.StageID, in.DateOfSurgery, in.Zone,
		in.Preferences.PushNotifications, in.Preferences.EmailNotifications,
	))
	if err != nil {
		if db.IsUniqueViolation(err, emailConstraint) {
			return nil, nil, repository.ErrDuplicateEmail
		}
		return nil, nil, fmt.Errorf("insert participant: %w", err)
	}

	if inv.PrimaryID != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO participant_partners (secondary_id, primary_id, status, created_at)
			VALUES ($1, $2, $3, now())`,
			p.ID, *inv.PrimaryID, models.PartnerInvited)
		if err != nil {
			return nil, nil, fmt.Errorf("insert partnership: %w", err)
		}
	}

	var code models.InviteCode
	err = tx.QueryRow(ctx, `
		INSERT INTO invite_codes (participant_id, code, kind, primary_partner_id, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, participant_id, code, kind, primary_partner_id, created_at`,
		p.ID, inv.Code, models.CodeInvite, inv.PrimaryID,
	).Scan(&code.ID, &code.ParticipantID, &code.Code, &code.Kind, &code.PrimaryPartnerID, &code.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("insert invite code: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit invite tx: %w", err)
	}
	return p, &code, nil
}

func (s *ParticipantStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE id = $1`

	p, err := scanParticipant(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

func (s *ParticipantStore) GetByEmail(ctx context.Context, email string) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE lower(email) = lower($1)`

	p, err := scanParticipant(s.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get participant by email: %w", err)
	}
	return p, nil
}

func (s *ParticipantStore) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM participants WHERE lower(email) = lower($1))`,
		email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

// participantSortColumns whitelists the sort keys clients may send.
var participantSortColumns = map[string]string{
	"createdAt":     "created_at",
	"name":          "name",
	"email":         "email",
	"status":        "status",
	"type":          "type",
	"dateOfSurgery": "date_of_surgery",
}

func (s *ParticipantStore) List(ctx context.Context, filter repository.ParticipantFilter, page repository.Page) ([]models.Participant, int, error) {
	page = page.Normalize()

	where := []string{"group_id = $1"}
	args := []any{filter.GroupID}
	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR phone ILIKE $%d)", n, n))
	}
	if filter.ProviderID != nil {
		args = append(args, *filter.ProviderID)
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM participant_providers pp WHERE pp.participant_id = participants.id AND pp.provider_id = $%d)",
			len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM participants WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count participants: %w", err)
	}

	field, desc := page.SortKey()
	column, ok := participantSortColumns[field]
	if !ok {
		column = "created_at"
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}

	args = append(args, page.Limit, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM participants WHERE %s ORDER BY %s %s, id LIMIT $%d OFFSET $%d`,
		participantColumns, cond, column, dir, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	out := make([]models.Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate participants: %w", err)
	}
	return out, total, nil
}

func (s *ParticipantStore) Update(ctx context.Context, p *models.Participant) error {
	query := `
		UPDATE participants SET
			name = $2, email = lower($3), dob = $4, phone = $5,
			street_address = $6, city = $7, state = $8, zip = $9, type = $10,
			location_id = $11, stage_id = $12, date_of_surgery = $13, zone = $14,
			push_notifications = $15, email_notifications = $16, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := s.pool.QueryRow(ctx, query,
		p.ID, p.Name, p.Email, p.DOB, p.Phone,
		p.Address.StreetAddress, p.Address.City, p.Address.State, p.Address.Zip, p.Type,
		p.LocationID, p.StageID, p.DateOfSurgery, p.Zone,
		p.Preferences.PushNotifications, p.Preferences.EmailNotifications,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, emailConstraint) {
			return repository.ErrDuplicateEmail
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("update participant: %w", err)
	}
	return nil
}

func (s *ParticipantStore) Activate(ctx context.Context, id uuid.UUID, name, passwordHash string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE participants
		SET name = $2, password_hash = $3, status = 'ACTIVE', updated_at = now()
		WHERE id = $1 AND status = 'INVITED'`,
		id, name, passwordHash)
	if err != nil {
		return false, fmt.Errorf("activate participant: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *ParticipantStore) SetStatus(ctx context.Context, id uuid.UUID, status models.ParticipantStatus) (*models.Participant, error) {
	query := `UPDATE participants SET status = $2, updated_at = now() WHERE id = $1 RETURNING ` + participantColumns

	p, err := scanParticipant(s.pool.QueryRow(ctx, query, id, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("set participant status: %w", err)
	}
	return p, nil
}

func (s *ParticipantStore) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE participants SET password_hash = $2, updated_at = now() WHERE id = $1`,
		id, passwordHash)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}

func (s *ParticipantStore) CascadeToSecondaries(ctx context.Context, primaryID uuid.UUID, u repository.CareUpdate) (int64, error) {
	if u.Empty() {
		return 0, nil
	}
	// COALESCE keeps the current value for fields the update leaves nil.
	tag, err := s.pool.Exec(ctx, `
		UPDATE participants SET
			stage_id = COALESCE($2, stage_id),
			date_of_surgery = COALESCE($3, date_of_surgery),
			location_id = COALESCE($4, location_id),
			updated_at = now()
		WHERE id IN (SELECT secondary_id FROM participant_partners WHERE primary_id = $1)`,
		primaryID, u.StageID, u.DateOfSurgery, u.LocationID)
	if err != nil {
		return 0, fmt.Errorf("cascade to secondaries: %w", err)
	}
	return tag.RowsAffected(), nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
