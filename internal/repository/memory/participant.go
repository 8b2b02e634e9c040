package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/carepath/internal/models"
	"github.com/lalith-99/carepath/internal/repository"
)

type ParticipantRepo struct {
	db *DB
}

// emailTaken must be called with the lock held.
func (db *DB) emailTaken(email string, except uuid.UUID) bool {
	for id, p := range db.participants {
		if id != except && strings.EqualFold(p.Email, email) {
			return true
		}
	}
	return false
}

func (r *ParticipantRepo) CreateInvite(_ context.Context, inv repository.NewInvite) (*models.Participant, *models.InviteCode, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p := *inv.Participant
	p.Email = strings.ToLower(p.Email)
	if r.db.emailTaken(p.Email, uuid.Nil) {
		return nil, nil, repository.ErrDuplicateEmail
	}
	now := r.db.now().UTC()
	p.ID = uuid.New()
	p.CreatedAt = now
	p.UpdatedAt = now
	r.db.participants[p.ID] = p
	r.db.participantOrder = append(r.db.participantOrder, p.ID)

	if inv.PrimaryID != nil {
		r.db.partners[p.ID] = models.PrimaryPartner{
			SecondaryID: p.ID,
			PrimaryID:   *inv.PrimaryID,
			Status:      models.PartnerInvited,
			CreatedAt:   now,
		}
	}

	code := models.InviteCode{
		ID:               uuid.New(),
		ParticipantID:    p.ID,
		Code:             inv.Code,
		Kind:             models.CodeInvite,
		PrimaryPartnerID: inv.PrimaryID,
		CreatedAt:        now,
	}
	r.db.codes[codeKey{p.ID, models.CodeInvite}] = code

	return &p, &code, nil
}

func (r *ParticipantRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Participant, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	p, ok := r.db.participants[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *ParticipantRepo) GetByEmail(_ context.Context, email string) (*models.Participant, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, p := range r.db.participants {
		if strings.EqualFold(p.Email, email) {
			return &p, nil
		}
	}
	return nil, nil
}

func (r *ParticipantRepo) EmailExists(_ context.Context, email string) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.emailTaken(email, uuid.Nil), nil
}

func (r *ParticipantRepo) List(_ context.Context, filter repository.ParticipantFilter, page repository.Page) ([]models.Participant, int, error) {
	page = page.Normalize()

	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	all := make([]models.Participant, 0)
	for _, id := range r.db.participantOrder {
		p := r.db.participants[id]
		if p.GroupID != filter.GroupID {
			continue
		}
		if filter.Type != "" && p.Type != filter.Type {
			continue
		}
		if filter.Search != "" && !containsFold(p.Name, filter.Search) && !containsFold(p.Phone, filter.Search) {
			continue
		}
		if filter.ProviderID != nil && !r.db.linked(p.ID, *filter.ProviderID) {
			continue
		}
		all = append(all, p)
	}

	field, desc := page.SortKey()
	less := participantLess(field)
	sort.SliceStable(all, func(i, j int) bool {
		if desc {
			return less(all[j], all[i])
		}
		return less(all[i], all[j])
	})

	return paginate(all, page), len(all), nil
}

func participantLess(field string) func(a, b models.Participant) bool {
	switch field {
	case "name":
		return func(a, b models.Participant) bool { return a.Name < b.Name }
	case "email":
		return func(a, b models.Participant) bool { return a.Email < b.Email }
	case "status":
		return func(a, b models.Participant) bool { return a.Status < b.Status }
	case "type":
		return func(a, b models.Participant) bool { return a.Type < b.Type }
	case "dateOfSurgery":
		return func(a, b models.Participant) bool {
			if a.DateOfSurgery == nil || b.DateOfSurgery == nil {
				return a.DateOfSurgery != nil && b.DateOfSurgery == nil
			}
			return a.DateOfSurgery.Before(*b.DateOfSurgery)
		}
	default:
		// participantOrder is creation order already.
		return func(a, b models.Participant) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
}

func (r *ParticipantRepo) Update(_ context.Context, p *models.Participant) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	cur, ok := r.db.participants[p.ID]
	if !ok {
		return nil
	}
	email := strings.ToLower(p.Email)
	if r.db.emailTaken(email, p.ID) {
		return repository.ErrDuplicateEmail
	}

	next := *p
	next.Email = email
	next.PasswordHash = cur.PasswordHash
	next.Status = cur.Status
	next.GroupID = cur.GroupID
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = r.db.now().UTC()
	r.db.participants[p.ID] = next
	p.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *ParticipantRepo) Activate(_ context.Context, id uuid.UUID, name, passwordHash string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p, ok := r.db.participants[id]
	if !ok || p.Status != models.StatusInvited {
		return false, nil
	}
	p.Name = name
	p.PasswordHash = passwordHash
	p.Status = models.StatusActive
	p.UpdatedAt = r.db.now().UTC()
	r.db.participants[id] = p
	return true, nil
}

func (r *ParticipantRepo) SetStatus(_ context.Context, id uuid.UUID, status models.ParticipantStatus) (*models.Participant, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p, ok := r.db.participants[id]
	if !ok {
		return nil, nil
	}
	p.Status = status
	p.UpdatedAt = r.db.now().UTC()
	r.db.participants[id] = p
	return &p, nil
}

func (r *ParticipantRepo) SetPassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p, ok := r.db.participants[id]
	if !ok {
		return nil
	}
	p.PasswordHash = passwordHash
	p.UpdatedAt = r.db.now().UTC()
	r.db.participants[id] = p
	return nil
}

func (r *ParticipantRepo) CascadeToSecondaries(_ context.Context, primaryID uuid.UUID, u repository.CareUpdate) (int64, error) {
	if u.Empty() {
		return 0, nil
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var n int64
	now := r.db.now().UTC()
	for secondaryID, pp := range r.db.partners {
		if pp.PrimaryID != primaryID {
			continue
		}
		p, ok := r.db.participants[secondaryID]
		if !ok {
			continue
		}
		if u.StageID != nil {
			p.StageID = ptr(*u.StageID)
		}
		if u.DateOfSurgery != nil {
			p.DateOfSurgery = ptr(*u.DateOfSurgery)
		}
		if u.LocationID != nil {
			p.LocationID = ptr(*u.LocationID)
		}
		p.UpdatedAt = now
		r.db.participants[secondaryID] = p
		n++
	}
	return n, nil
}

type PartnerRepo struct {
	db *DB
}

func (r *PartnerRepo) Link(_ context.Context, secondaryID, primaryID uuid.UUID, status models.PartnerStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, exists := r.db.partners[secondaryID]; exists {
		return repository.ErrPartnerLimit
	}
	r.db.partners[secondaryID] = models.PrimaryPartner{
		SecondaryID: secondaryID,
		PrimaryID:   primaryID,
		Status:      status,
		CreatedAt:   r.db.now().UTC(),
	}
	return nil
}

func (r *PartnerRepo) PrimaryOf(_ context.Context, secondaryID uuid.UUID) (*models.PrimaryPartner, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	pp, ok := r.db.partners[secondaryID]
	if !ok {
		return nil, nil
	}
	return &pp, nil
}

func (r *PartnerRepo) SecondariesOf(_ context.Context, primaryID uuid.UUID) ([]models.PrimaryPartner, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]models.PrimaryPartner, 0)
	for _, id := range r.db.participantOrder {
		if pp, ok := r.db.partners[id]; ok && pp.PrimaryID == primaryID {
			out = append(out, pp)
		}
	}
	return out, nil
}

func (r *PartnerRepo) Activate(_ context.Context, secondaryID, primaryID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	pp, ok := r.db.partners[secondaryID]
	if !ok || pp.PrimaryID != primaryID {
		return nil
	}
	pp.Status = models.PartnerActive
	r.db.partners[secondaryID] = pp
	return nil
}

func (r *PartnerRepo) Unlink(_ context.Context, secondaryID, primaryID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if pp, ok := r.db.partners[secondaryID]; ok && pp.PrimaryID == primaryID {
		delete(r.db.partners, secondaryID)
	}
	return nil
}

type InviteCodeRepo struct {
	db *DB
}

func (r *InviteCodeRepo) Find(_ context.Context, participantID uuid.UUID, kind models.CodeKind, code string) (*models.InviteCode, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	c, ok := r.db.codes[codeKey{participantID, kind}]
	if !ok || c.Code != code {
		return nil, nil
	}
	return &c, nil
}

func (r *InviteCodeRepo) Latest(_ context.Context, participantID uuid.UUID, kind models.CodeKind) (*models.InviteCode, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	c, ok := r.db.codes[codeKey{participantID, kind}]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *InviteCodeRepo) Replace(_ context.Context, c *models.InviteCode) (*models.InviteCode, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := *c
	out.ID = uuid.New()
	out.CreatedAt = r.db.now().UTC()
	r.db.codes[codeKey{c.ParticipantID, c.Kind}] = out
	return &out, nil
}

func (r *InviteCodeRepo) Consume(_ context.Context, id uuid.UUID) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for k, c := range r.db.codes {
		if c.ID == id {
			delete(r.db.codes, k)
			return true, nil
		}
	}
	return false, nil
}

type AttemptRepo struct {
	db *DB
}

func (r *AttemptRepo) Increment(_ context.Context, participantID uuid.UUID, kind models.CodeKind, max int) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	k := codeKey{participantID, kind}
	a, ok := r.db.attempts[k]
	if !ok {
		a = models.Attempt{ParticipantID: participantID, Kind: kind}
	}
	a.Count = min(a.Count+1, max)
	a.UpdatedAt = r.db.now().UTC()
	r.db.attempts[k] = a
	return a.Count, nil
}

func (r *AttemptRepo) ClearUnlessLocked(_ context.Context, participantID uuid.UUID, kind models.CodeKind, max int) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	k := codeKey{participantID, kind}
	a, ok := r.db.attempts[k]
	if !ok {
		return false, nil
	}
	if a.Count >= max {
		return true, nil
	}
	delete(r.db.attempts, k)
	return false, nil
}

func (r *AttemptRepo) Get(_ context.Context, participantID uuid.UUID, kind models.CodeKind) (*models.Attempt, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	a, ok := r.db.attempts[codeKey{participantID, kind}]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *AttemptRepo) Delete(_ context.Context, participantID uuid.UUID, kind models.CodeKind) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.attempts, codeKey{participantID, kind})
	return nil
}

type GroupRepo struct {
	db *DB
}

func (r *GroupRepo) Create(_ context.Context, name string) (*models.Group, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	g := models.Group{ID: uuid.New(), Name: name, CreatedAt: r.db.now().UTC()}
	r.db.groups[g.ID] = g
	return &g, nil
}

func (r *GroupRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Group, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	g, ok := r.db.groups[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (r *GroupRepo) SetArchived(_ context.Context, id uuid.UUID, archived bool) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if g, ok := r.db.groups[id]; ok {
		g.Archived = archived
		r.db.groups[id] = g
	}
	return nil
}

type StageRepo struct {
	db *DB
}

func (r *StageRepo) Create(_ context.Context, s *models.Stage) (*models.Stage, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := *s
	out.ID = uuid.New()
	out.CreatedAt = r.db.now().UTC()
	r.db.stages[out.ID] = out
	return &out, nil
}

func (r *StageRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Stage, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	s, ok := r.db.stages[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}
