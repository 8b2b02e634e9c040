package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/carepath/internal/models"
	"github.com/lalith-99/carepath/internal/ordering"
	"github.com/lalith-99/carepath/internal/repository"
)

// linked must be called with the lock held.
func (db *DB) linked(participantID, providerID uuid.UUID) bool {
	for _, l := range db.links[participantID] {
		if l.providerID == providerID {
			return true
		}
	}
	return false
}

type ProviderRepo struct {
	db *DB
}

func (r *ProviderRepo) Create(_ context.Context, p *models.Provider) (*models.Provider, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := *p
	out.ID = uuid.New()
	out.Email = strings.ToLower(out.Email)
	out.CreatedAt = r.db.now().UTC()
	r.db.providers[out.ID] = out
	r.db.providerOrder = append(r.db.providerOrder, out.ID)
	return &out, nil
}

func (r *ProviderRepo) GetByID(_ context.Context, groupID, id uuid.UUID) (*models.Provider, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	p, ok := r.db.providers[id]
	if !ok || p.GroupID != groupID {
		return nil, nil
	}
	return &p, nil
}

func (r *ProviderRepo) ListUnlinked(_ context.Context, groupID, participantID uuid.UUID, page repository.Page) ([]models.Provider, int, error) {
	page = page.Normalize()

	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	all := make([]models.Provider, 0)
	for _, id := range r.db.providerOrder {
		p := r.db.providers[id]
		if p.GroupID != groupID || p.Status == models.ProviderRemoved || r.db.linked(participantID, id) {
			continue
		}
		all = append(all, p)
	}

	field, desc := page.SortKey()
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if desc {
			a, b = b, a
		}
		switch field {
		case "name":
			return a.Name < b.Name
		case "email":
			return a.Email < b.Email
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	})
	return paginate(all, page), len(all), nil
}

func (r *ProviderRepo) Link(_ context.Context, participantID, providerID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if r.db.linked(participantID, providerID) {
		return nil
	}
	r.db.links[participantID] = append(r.db.links[participantID], providerLink{
		providerID: providerID,
		isDefault:  len(r.db.links[participantID]) == 0,
		linkedAt:   r.db.now().UTC(),
	})
	return nil
}

func (r *ProviderRepo) Unlink(_ context.Context, participantID, providerID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	kept := r.db.links[participantID][:0]
	for _, l := range r.db.links[participantID] {
		if l.providerID != providerID {
			kept = append(kept, l)
		}
	}
	r.db.links[participantID] = kept
	return nil
}

func (r *ProviderRepo) SetDefault(_ context.Context, participantID, providerID uuid.UUID) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if !r.db.linked(participantID, providerID) {
		return false, nil
	}
	links := r.db.links[participantID]
	for i := range links {
		links[i].isDefault = links[i].providerID == providerID
	}
	return true, nil
}

func (r *ProviderRepo) LinksOf(_ context.Context, participantID uuid.UUID) ([]models.LinkedProvider, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]models.LinkedProvider, 0, len(r.db.links[participantID]))
	for _, l := range r.db.links[participantID] {
		p, ok := r.db.providers[l.providerID]
		if !ok {
			continue
		}
		out = append(out, models.LinkedProvider{Provider: p, IsDefault: l.isDefault, LinkedAt: l.linkedAt})
	}
	return out, nil
}

type CategoryRepo struct {
	db *DB
}

func (r *CategoryRepo) Create(_ context.Context, c *models.ResourceCategory) (*models.ResourceCategory, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := *c
	out.ID = uuid.New()
	if out.Status == "" {
		out.Status = models.ContentActive
	}
	out.CreatedAt = r.db.now().UTC()
	r.db.categories[out.ID] = out
	return &out, nil
}

func (r *CategoryRepo) GetByID(_ context.Context, id uuid.UUID) (*models.ResourceCategory, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	c, ok := r.db.categories[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

type ResourceRepo struct {
	db *DB
}

func (r *ResourceRepo) Create(_ context.Context, in *models.Resource) (*models.Resource, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := *in
	out.ID = uuid.New()
	if out.Status == "" {
		out.Status = models.ContentActive
	}
	now := r.db.now().UTC()
	out.CreatedAt = now
	out.UpdatedAt = now
	r.db.resources[out.ID] = out
	r.db.resourceOrder = append(r.db.resourceOrder, out.ID)
	return &out, nil
}

func (r *ResourceRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Resource, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	res, ok := r.db.resources[id]
	if !ok {
		return nil, nil
	}
	return &res, nil
}

func (r *ResourceRepo) Update(_ context.Context, in *models.Resource) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	cur, ok := r.db.resources[in.ID]
	if !ok {
		return nil
	}
	next := *in
	next.GroupID = cur.GroupID
	next.Status = cur.Status
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = r.db.now().UTC()
	r.db.resources[in.ID] = next
	in.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *ResourceRepo) SetStatus(_ context.Context, id uuid.UUID, status models.ContentStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if res, ok := r.db.resources[id]; ok {
		res.Status = status
		res.UpdatedAt = r.db.now().UTC()
		r.db.resources[id] = res
	}
	return nil
}

func (r *ResourceRepo) List(_ context.Context, filter repository.ResourceFilter, page repository.Page) ([]models.Resource, int, error) {
	page = page.Normalize()

	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	matched := make([]models.Resource, 0)
	for _, id := range r.db.resourceOrder {
		res := r.db.resources[id]
		if filter.GroupID != nil {
			if res.GroupID != nil && *res.GroupID != *filter.GroupID {
				continue
			}
		} else if res.GroupID != nil {
			continue
		}
		if filter.CategoryID != nil && res.CategoryID != *filter.CategoryID {
			continue
		}
		if filter.LocationID != nil && res.LocationID != nil && *res.LocationID != *filter.LocationID {
			continue
		}
		if filter.Search != "" && !containsFold(res.Headline, filter.Search) {
			continue
		}
		if filter.Status != "" && res.Status != filter.Status {
			continue
		}
		matched = append(matched, res)
	}

	if filter.GroupID != nil {
		positions := make(map[uuid.UUID]int)
		for _, res := range matched {
			if pos, ok := r.db.positions[posKey{*filter.GroupID, res.ID}]; ok {
				positions[res.ID] = pos
			}
		}
		matched = ordering.Sort(matched, func(res models.Resource) uuid.UUID { return res.ID }, positions)
	}

	return paginate(matched, page), len(matched), nil
}

func (r *ResourceRepo) ListByIDs(_ context.Context, ids []uuid.UUID, search string) ([]models.Resource, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]models.Resource, 0, len(ids))
	for _, id := range r.db.resourceOrder {
		res := r.db.resources[id]
		if !want[id] || res.Status != models.ContentActive {
			continue
		}
		if search != "" && !containsFold(res.Headline, search) {
			continue
		}
		out = append(out, res)
	}
	return out, nil
}

type PositionRepo struct {
	db *DB
}

func (r *PositionRepo) Positions(_ context.Context, groupID uuid.UUID, resourceIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make(map[uuid.UUID]int, len(resourceIDs))
	for _, id := range resourceIDs {
		if pos, ok := r.db.positions[posKey{groupID, id}]; ok {
			out[id] = pos
		}
	}
	return out, nil
}

func (r *PositionRepo) SetOrder(_ context.Context, groupID uuid.UUID, ids []uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for i, id := range ids {
		r.db.positions[posKey{groupID, id}] = i
	}
	return nil
}

func (r *PositionRepo) Set(_ context.Context, groupID, resourceID uuid.UUID, position int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.positions[posKey{groupID, resourceID}] = position
	return nil
}

func (r *PositionRepo) NextPosition(_ context.Context, groupID, categoryID uuid.UUID) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	next := 0
	for k, pos := range r.db.positions {
		if k.group != groupID {
			continue
		}
		if res, ok := r.db.resources[k.resource]; ok && res.CategoryID == categoryID && pos+1 > next {
			next = pos + 1
		}
	}
	return next, nil
}

type PathRepo struct {
	db *DB
}

func (r *PathRepo) Create(_ context.Context, p *models.Path) (*models.Path, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := *p
	out.ID = uuid.New()
	if out.Status == "" {
		out.Status = models.ContentActive
	}
	out.CreatedAt = r.db.now().UTC()
	r.db.paths[out.ID] = out
	r.db.pathOrder = append(r.db.pathOrder, out.ID)
	return &out, nil
}

func (r *PathRepo) ListCandidates(_ context.Context, q repository.PathQuery) ([]models.Path, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]models.Path, 0)
	for _, id := range r.db.pathOrder {
		p := r.db.paths[id]
		if p.Status != models.ContentActive || p.UserType != q.UserType {
			continue
		}
		if q.StageID != nil && p.StageID != *q.StageID {
			continue
		}
		if p.GroupID != nil && *p.GroupID != q.GroupID {
			continue
		}
		if p.LocationID != nil && !sameID(p.LocationID, q.LocationID) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

type TouchPointRepo struct {
	db *DB
}

func (r *TouchPointRepo) Create(_ context.Context, tp *models.TouchPoint) (*models.TouchPoint, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := *tp
	out.ID = uuid.New()
	if out.Status == "" {
		out.Status = models.ContentActive
	}
	out.CreatedAt = r.db.now().UTC()
	r.db.touchPoints[out.ID] = out
	r.db.touchPointOrder = append(r.db.touchPointOrder, out.ID)
	return &out, nil
}

func (r *TouchPointRepo) GetByID(_ context.Context, id uuid.UUID) (*models.TouchPoint, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	tp, ok := r.db.touchPoints[id]
	if !ok {
		return nil, nil
	}
	return &tp, nil
}

func (r *TouchPointRepo) ListForPaths(_ context.Context, pathIDs []uuid.UUID, maxPeriod int) ([]models.TouchPoint, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	want := make(map[uuid.UUID]bool, len(pathIDs))
	for _, id := range pathIDs {
		want[id] = true
	}
	out := make([]models.TouchPoint, 0)
	for _, id := range r.db.touchPointOrder {
		tp := r.db.touchPoints[id]
		if want[tp.PathID] && tp.Status == models.ContentActive && tp.Period <= maxPeriod {
			out = append(out, tp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}

func (r *TouchPointRepo) CountActiveByTarget(_ context.Context, targetID uuid.UUID) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	n := 0
	for _, tp := range r.db.touchPoints {
		if tp.TargetID == targetID && tp.Status == models.ContentActive {
			n++
		}
	}
	return n, nil
}

type TouchPointReadRepo struct {
	db *DB
}

func (r *TouchPointReadRepo) Mark(_ context.Context, read models.TouchPointRead) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	read.ReadAt = r.db.now().UTC()
	r.db.reads[readKey{read.TouchPointID, read.ParticipantID}] = read
	return nil
}

func (r *TouchPointReadRepo) ListRead(_ context.Context, participantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]models.TouchPointAction, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make(map[uuid.UUID]models.TouchPointAction, len(ids))
	for _, id := range ids {
		if read, ok := r.db.reads[readKey{id, participantID}]; ok {
			out[id] = read.Action
		}
	}
	return out, nil
}

type SessionRepo struct {
	db *DB
}

func (r *SessionRepo) Create(_ context.Context, subjectID uuid.UUID, model string, ttl time.Duration) (*models.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	now := r.db.now().UTC()
	s := models.Session{
		ID:        uuid.New(),
		SubjectID: subjectID,
		Model:     model,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	r.db.sessions[s.ID] = s
	return &s, nil
}

func (r *SessionRepo) Get(_ context.Context, id uuid.UUID) (*models.Session, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	s, ok := r.db.sessions[id]
	if !ok || !r.db.now().Before(s.ExpiresAt) {
		return nil, nil
	}
	return &s, nil
}

func (r *SessionRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, id)
	return nil
}
