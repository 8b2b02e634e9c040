package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lalith-99/carepath/internal/apperr"
	"github.com/lalith-99/carepath/internal/auth"
	"github.com/lalith-99/carepath/internal/models"
	"github.com/lalith-99/carepath/internal/ordering"
	"github.com/lalith-99/carepath/internal/repository"
	"go.uber.org/zap"
)

const (
	msgResourceNotFound     = "Resource not found"
	msgCategoryNotFound     = "Category not found"
	msgInvalidResourceType  = "Invalid resource type."
	msgInvalidContentBlock  = "Invalid resource content."
	msgResourceLinked       = "Resource is linked with touch points"
	msgResourceLocationUsed = "Resource location can't be changed as it is linked with touch points"
)

// Actor is the caller of a content operation. Admins manage the global
// catalog; group admins manage their group's resources and its order.
type Actor struct {
	SubjectID uuid.UUID
	GroupID   uuid.UUID
	Role      auth.Role
}

func (a Actor) isAdmin() bool {
	return a.Role == auth.RoleAdmin
}

// owns reports whether the actor may change r.
func (a Actor) owns(r *models.Resource) bool {
	if a.isAdmin() {
		return r.GroupID == nil
	}
	return r.GroupID != nil && *r.GroupID == a.GroupID
}

// sees reports whether r is visible to the actor.
func (a Actor) sees(r *models.Resource) bool {
	return r.GroupID == nil || (!a.isAdmin() && *r.GroupID == a.GroupID)
}

// SortResources orders resources by the given positions: positioned ones
// first, ascending, then the rest in input order.
func SortResources(resources []models.Resource, positions map[uuid.UUID]int) []models.Resource {
	return ordering.Sort(resources, func(r models.Resource) uuid.UUID { return r.ID }, positions)
}

// GetReorderedResources sorts resources by the group's stored positions.
func (s *Service) GetReorderedResources(ctx context.Context, groupID uuid.UUID, resources []models.Resource) ([]models.Resource, error) {
	ids := make([]uuid.UUID, len(resources))
	for i, r := range resources {
		ids[i] = r.ID
	}
	positions, err := s.store.Positions.Positions(ctx, groupID, ids)
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	return SortResources(resources, positions), nil
}

// SetOrder stores ids as the group's display order: ids[i] gets position
// i. A repeated id keeps its first position. Every id must be a resource
// the group can see.
func (s *Service) SetOrder(ctx context.Context, groupID uuid.UUID, ids []uuid.UUID) error {
	seen := make(map[uuid.UUID]bool, len(ids))
	unique := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	for _, id := range unique {
		r, err := s.store.Resources.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("get resource: %w", err)
		}
		if r == nil || (r.GroupID != nil && *r.GroupID != groupID) {
			return apperr.Forbidden(msgResourceNotFound)
		}
	}
	if err := s.store.Positions.SetOrder(ctx, groupID, unique); err != nil {
		return fmt.Errorf("set order: %w", err)
	}
	return nil
}

// ReorderResources is the HTTP entry point for SetOrder.
func (s *Service) ReorderResources(ctx context.Context, actor Actor, ids []uuid.UUID) error {
	if actor.Role != auth.RoleGroupAdmin {
		return apperr.Forbidden(apperr.MsgUnauthorized)
	}
	return s.SetOrder(ctx, actor.GroupID, ids)
}

type ResourceInput struct {
	CategoryID  uuid.UUID
	LocationID  *uuid.UUID
	Headline    string
	Media       string
	Type        models.ResourceType
	Description string
	Thumbnail   string
	ViewTime    int
	Content     []models.ContentBlock
}

func validateContent(blocks []models.ContentBlock) error {
	for _, b := range blocks {
		if !b.Type.Valid() {
			return apperr.BadRequest(msgInvalidContentBlock)
		}
	}
	return nil
}

func (s *Service) activeCategory(ctx context.Context, id uuid.UUID) (*models.ResourceCategory, error) {
	c, err := s.store.Categories.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	if c == nil || c.Status != models.ContentActive {
		return nil, apperr.Forbidden(msgCategoryNotFound)
	}
	return c, nil
}

// thumbnailFor looks a VIDEO thumbnail up through oEmbed and falls back to
// the category picture.
func (s *Service) thumbnailFor(ctx context.Context, typ models.ResourceType, mediaURL string, category *models.ResourceCategory) string {
	if typ == models.ResourceVideo && s.thumbs != nil && mediaURL != "" {
		thumb, err := s.thumbs.Thumbnail(ctx, mediaURL)
		if err == nil {
			return thumb
		}
		s.logger.Warn("thumbnail lookup failed", zap.String("media", mediaURL), zap.Error(err))
	}
	return category.Picture
}

// CreateResource adds a resource to the global catalog (admins) or to the
// caller's group, where it is placed after the group's other resources in
// the same category.
func (s *Service) CreateResource(ctx context.Context, actor Actor, in ResourceInput) (*models.Resource, error) {
	if !in.Type.Valid() {
		return nil, apperr.BadRequest(msgInvalidResourceType)
	}
	if err := validateContent(in.Content); err != nil {
		return nil, err
	}
	category, err := s.activeCategory(ctx, in.CategoryID)
	if err != nil {
		return nil, err
	}

	r := &models.Resource{
		LocationID:  in.LocationID,
		CategoryID:  in.CategoryID,
		Headline:    in.Headline,
		Media:       in.Media,
		Type:        in.Type,
		Description: in.Description,
		Thumbnail:   in.Thumbnail,
		ViewTime:    in.ViewTime,
		Status:      models.ContentActive,
		Content:     in.Content,
	}
	if !actor.isAdmin() {
		g := actor.GroupID
		r.GroupID = &g
	}
	if r.Thumbnail == "" {
		r.Thumbnail = s.thumbnailFor(ctx, r.Type, r.Media, category)
	}

	out, err := s.store.Resources.Create(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	if out.GroupID != nil {
		next, err := s.store.Positions.NextPosition(ctx, *out.GroupID, out.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("next position: %w", err)
		}
		if err := s.store.Positions.Set(ctx, *out.GroupID, out.ID, next); err != nil {
			return nil, fmt.Errorf("set position: %w", err)
		}
	}
	return out, nil
}

func (s *Service) visibleResource(ctx context.Context, actor Actor, id uuid.UUID) (*models.Resource, error) {
	r, err := s.store.Resources.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get resource: %w", err)
	}
	if r == nil || r.Status != models.ContentActive || !actor.sees(r) {
		return nil, apperr.Forbidden(msgResourceNotFound)
	}
	return r, nil
}

func (s *Service) GetResource(ctx context.Context, actor Actor, id uuid.UUID) (*models.Resource, error) {
	return s.visibleResource(ctx, actor, id)
}

type ResourceQuery struct {
	CategoryID *uuid.UUID
	LocationID *uuid.UUID
	Search     string
}

// ListResources pages through the ACTIVE resources the actor can see. A
// group admin gets the group's own and the global ones in the group's order.
func (s *Service) ListResources(ctx context.Context, actor Actor, q ResourceQuery, page repository.Page) (PageResult[models.Resource], error) {
	page = page.Normalize()
	filter := repository.ResourceFilter{
		CategoryID: q.CategoryID,
		LocationID: q.LocationID,
		Search:     q.Search,
		Status:     models.ContentActive,
	}
	if !actor.isAdmin() {
		g := actor.GroupID
		filter.GroupID = &g
	}
	rows, total, err := s.store.Resources.List(ctx, filter, page)
	if err != nil {
		return PageResult[models.Resource]{}, fmt.Errorf("list resources: %w", err)
	}
	return newPage(rows, total, page.Page, page.Limit), nil
}

// ResourceUpdate holds the editable fields. Nil fields are left as they are.
type ResourceUpdate struct {
	CategoryID  *uuid.UUID
	LocationID  *uuid.UUID
	Headline    *string
	Media       *string
	Type        *models.ResourceType
	Description *string
	Thumbnail   *string
	ViewTime    *int
	Content     []models.ContentBlock
}

// UpdateResource edits a resource the actor owns. The location cannot
// change while active touch points point at the resource.
func (s *Service) UpdateResource(ctx context.Context, actor Actor, id uuid.UUID, u ResourceUpdate) (*models.Resource, error) {
	r, err := s.visibleResource(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.owns(r) {
		return nil, apperr.Forbidden(apperr.MsgUnauthorized)
	}

	if u.LocationID != nil && (r.LocationID == nil || *r.LocationID != *u.LocationID) {
		n, err := s.store.TouchPoints.CountActiveByTarget(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("count touch points: %w", err)
		}
		if n > 0 {
			return nil, apperr.Forbidden(msgResourceLocationUsed)
		}
		r.LocationID = u.LocationID
	}
	if u.Type != nil {
		if !u.Type.Valid() {
			return nil, apperr.BadRequest(msgInvalidResourceType)
		}
		r.Type = *u.Type
	}
	if u.Content != nil {
		if err := validateContent(u.Content); err != nil {
			return nil, err
		}
		r.Content = u.Content
	}
	categoryChanged := u.CategoryID != nil && *u.CategoryID != r.CategoryID
	if u.CategoryID != nil {
		r.CategoryID = *u.CategoryID
	}
	category, err := s.activeCategory(ctx, r.CategoryID)
	if err != nil {
		return nil, err
	}
	mediaChanged := u.Media != nil && *u.Media != r.Media
	if u.Media != nil {
		r.Media = *u.Media
	}
	if u.Headline != nil {
		r.Headline = *u.Headline
	}
	if u.Description != nil {
		r.Description = *u.Description
	}
	if u.ViewTime != nil {
		r.ViewTime = *u.ViewTime
	}
	switch {
	case u.Thumbnail != nil && *u.Thumbnail != "":
		r.Thumbnail = *u.Thumbnail
	case mediaChanged || categoryChanged || (u.Thumbnail != nil && *u.Thumbnail == ""):
		r.Thumbnail = s.thumbnailFor(ctx, r.Type, r.Media, category)
	}

	if err := s.store.Resources.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("update resource: %w", err)
	}
	return r, nil
}

// RemoveResource marks a resource REMOVED. Resources still used by active
// touch points cannot be removed.
func (s *Service) RemoveResource(ctx context.Context, actor Actor, id uuid.UUID) error {
	r, err := s.visibleResource(ctx, actor, id)
	if err != nil {
		return err
	}
	if !actor.owns(r) {
		return apperr.Forbidden(apperr.MsgUnauthorized)
	}
	n, err := s.store.TouchPoints.CountActiveByTarget(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("count touch points: %w", err)
	}
	if n > 0 {
		return apperr.Forbidden(msgResourceLinked)
	}
	if err := s.store.Resources.SetStatus(ctx, r.ID, models.ContentRemoved); err != nil {
		return fmt.Errorf("remove resource: %w", err)
	}
	s.logger.Info("resource removed",
		zap.String("resource_id", r.ID.String()),
		zap.String("by", actor.SubjectID.String()),
	)
	return nil
}
