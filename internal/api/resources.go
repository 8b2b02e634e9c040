package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/carepath/internal/middleware"
	"github.com/lalith-99/carepath/internal/models"
	"github.com/lalith-99/carepath/internal/service"
	"go.uber.org/zap"
)

type ResourceHandler struct {
	svc    *service.Service
	logger *zap.Logger
}

func NewResourceHandler(svc *service.Service, logger *zap.Logger) *ResourceHandler {
	return &ResourceHandler{svc: svc, logger: logger}
}

type createResourceRequest struct {
	CategoryID  uuid.UUID             `json:"categoryId" binding:"required"`
	LocationID  *uuid.UUID            `json:"locationId"`
	Headline    string                `json:"headline" binding:"required"`
	Media       string                `json:"media"`
	Type        models.ResourceType   `json:"type" binding:"required"`
	Description string                `json:"description"`
	Thumbnail   string                `json:"thumbnail"`
	ViewTime    int                   `json:"viewTime" binding:"gte=0"`
	Content     []models.ContentBlock `json:"resourceContent"`
}

type updateResourceRequest struct {
	CategoryID  *uuid.UUID            `json:"categoryId"`
	LocationID  *uuid.UUID            `json:"locationId"`
	Headline    *string               `json:"headline"`
	Media       *string               `json:"media"`
	Type        *models.ResourceType  `json:"type"`
	Description *string               `json:"description"`
	Thumbnail   *string               `json:"thumbnail"`
	ViewTime    *int                  `json:"viewTime"`
	Content     []models.ContentBlock `json:"resourceContent"`
}

type reorderRequest struct {
	Resources []uuid.UUID `json:"resources" binding:"required"`
}

func actor(c *gin.Context) service.Actor {
	return service.Actor{
		SubjectID: middleware.GetSubjectID(c),
		GroupID:   middleware.GetGroupID(c),
		Role:      middleware.GetRole(c),
	}
}

// Create handles POST /v1/resources
func (h *ResourceHandler) Create(c *gin.Context) {
	var req createResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	r, err := h.svc.CreateResource(c.Request.Context(), actor(c), service.ResourceInput{
		CategoryID:  req.CategoryID,
		LocationID:  req.LocationID,
		Headline:    req.Headline,
		Media:       req.Media,
		Type:        req.Type,
		Description: req.Description,
		Thumbnail:   req.Thumbnail,
		ViewTime:    req.ViewTime,
		Content:     req.Content,
	})
	if err != nil {
		respondError(c, h.logger, "create resource", err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// List handles GET /v1/resources?categoryId=&locationId=&search=
func (h *ResourceHandler) List(c *gin.Context) {
	categoryID, ok := queryID(c, "categoryId")
	if !ok {
		return
	}
	locationID, ok := queryID(c, "locationId")
	if !ok {
		return
	}
	res, err := h.svc.ListResources(c.Request.Context(), actor(c), service.ResourceQuery{
		CategoryID: categoryID,
		LocationID: locationID,
		Search:     c.Query("search"),
	}, pageFrom(c))
	if err != nil {
		respondError(c, h.logger, "list resources", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Get handles GET /v1/resources/:resourceId
func (h *ResourceHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "resourceId")
	if !ok {
		return
	}
	r, err := h.svc.GetResource(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, h.logger, "get resource", err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// Update handles PATCH /v1/resources/:resourceId
func (h *ResourceHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "resourceId")
	if !ok {
		return
	}
	var req updateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	r, err := h.svc.UpdateResource(c.Request.Context(), actor(c), id, service.ResourceUpdate{
		CategoryID:  req.CategoryID,
		LocationID:  req.LocationID,
		Headline:    req.Headline,
		Media:       req.Media,
		Type:        req.Type,
		Description: req.Description,
		Thumbnail:   req.Thumbnail,
		ViewTime:    req.ViewTime,
		Content:     req.Content,
	})
	if err != nil {
		respondError(c, h.logger, "update resource", err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// Remove handles DELETE /v1/resources/:resourceId
func (h *ResourceHandler) Remove(c *gin.Context) {
	id, ok := paramID(c, "resourceId")
	if !ok {
		return
	}
	if err := h.svc.RemoveResource(c.Request.Context(), actor(c), id); err != nil {
		respondError(c, h.logger, "remove resource", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Reorder handles POST /v1/resources/reorder. The body lists resource ids
// in their new display order for the caller's group.
func (h *ResourceHandler) Reorder(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.ReorderResources(c.Request.Context(), actor(c), req.Resources); err != nil {
		respondError(c, h.logger, "reorder resources", err)
		return
	}
	message(c, http.StatusOK, "Resources reordered.")
}
