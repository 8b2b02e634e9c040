package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/carepath/internal/auth"
	"github.com/lalith-99/carepath/internal/middleware"
	"github.com/lalith-99/carepath/internal/models"
	"github.com/lalith-99/carepath/internal/repository"
	"github.com/lalith-99/carepath/internal/service"
	"go.uber.org/zap"
)

// ParticipantHandler serves the group admin and provider endpoints for
// managing a group's participants. The group always comes from the token.
type ParticipantHandler struct {
	svc    *service.Service
	logger *zap.Logger
}

func NewParticipantHandler(svc *service.Service, logger *zap.Logger) *ParticipantHandler {
	return &ParticipantHandler{svc: svc, logger: logger}
}

// inviteRequest is a new PRIMARY. Support persons are only ever invited by
// their primary, through add-support-person or complete-signup.
type inviteRequest struct {
	Name          string         `json:"name" binding:"required"`
	Email         string         `json:"email" binding:"required,email"`
	Phone         string         `json:"phone"`
	DOB           *time.Time     `json:"dob"`
	Address       models.Address `json:"address"`
	LocationID    *uuid.UUID     `json:"locationId"`
	StageID       *uuid.UUID     `json:"stageId" binding:"required"`
	DateOfSurgery *time.Time     `json:"dateOfSurgery" binding:"required"`
	Zone          int            `json:"zone"`
}

type adminUpdateRequest struct {
	Name          *string                 `json:"name"`
	Email         *string                 `json:"email" binding:"omitempty,email"`
	Phone         *string                 `json:"phone"`
	DOB           *time.Time              `json:"dob"`
	Address       *models.Address         `json:"address"`
	Type          *models.ParticipantType `json:"type"`
	StageID       *uuid.UUID              `json:"stageId"`
	DateOfSurgery *time.Time              `json:"dateOfSurgery"`
	LocationID    *uuid.UUID              `json:"locationId"`
	Zone          *int                    `json:"zone"`
}

type providerRequest struct {
	ProviderID uuid.UUID `json:"providerId" binding:"required"`
}

type resetAttemptsRequest struct {
	Kind models.CodeKind `json:"kind" binding:"required,oneof=INVITE RESET_PASSWORD"`
}

// filter builds the list filter for the caller. Providers only see the
// participants linked to them.
func (h *ParticipantHandler) filter(c *gin.Context) (repository.ParticipantFilter, bool) {
	f := repository.ParticipantFilter{
		GroupID: middleware.GetGroupID(c),
		Search:  c.Query("search"),
		Type:    models.ParticipantType(c.Query("type")),
	}
	providerID, ok := queryID(c, "providerId")
	if !ok {
		return f, false
	}
	f.ProviderID = providerID
	if middleware.GetRole(c) == auth.RoleProvider {
		id := middleware.GetSubjectID(c)
		f.ProviderID = &id
	}
	return f, true
}

// List handles GET /v1/participants
func (h *ParticipantHandler) List(c *gin.Context) {
	f, ok := h.filter(c)
	if !ok {
		return
	}
	res, err := h.svc.ListParticipants(c.Request.Context(), f, pageFrom(c))
	if err != nil {
		respondError(c, h.logger, "list participants", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Invite handles POST /v1/participants
func (h *ParticipantHandler) Invite(c *gin.Context) {
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.svc.InviteParticipant(c.Request.Context(), service.InviteInput{
		GroupID:       middleware.GetGroupID(c),
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		DOB:           req.DOB,
		Address:       req.Address,
		Type:          models.ParticipantPrimary,
		LocationID:    req.LocationID,
		StageID:       req.StageID,
		DateOfSurgery: req.DateOfSurgery,
		Zone:          req.Zone,
	})
	if err != nil {
		respondError(c, h.logger, "invite participant", err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// Export handles GET /v1/participants/data/export?format=csv|xlsx
func (h *ParticipantHandler) Export(c *gin.Context) {
	f, ok := h.filter(c)
	if !ok {
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportCSV)))

	var buf bytes.Buffer
	if err := h.svc.ExportParticipants(c.Request.Context(), f, format, &buf); err != nil {
		respondError(c, h.logger, "export participants", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="participants.%s"`, format))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

// Get handles GET /v1/participants/:participantId
func (h *ParticipantHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "participantId")
	if !ok {
		return
	}
	d, err := h.svc.GetParticipantDetails(c.Request.Context(), middleware.GetGroupID(c), id)
	if err != nil {
		respondError(c, h.logger, "get participant", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Update handles PATCH /v1/participants/:participantId
func (h *ParticipantHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "participantId")
	if !ok {
		return
	}
	var req adminUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	d, err := h.svc.UpdateParticipant(c.Request.Context(), middleware.GetGroupID(c), id, service.AdminUpdate{
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		DOB:           req.DOB,
		Address:       req.Address,
		Type:          req.Type,
		StageID:       req.StageID,
		DateOfSurgery: req.DateOfSurgery,
		LocationID:    req.LocationID,
		Zone:          req.Zone,
	})
	if err != nil {
		respondError(c, h.logger, "update participant", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Suspend handles DELETE /v1/participants/:participantId. ?status= may
// name another status; the default is SUSPENDED.
func (h *ParticipantHandler) Suspend(c *gin.Context) {
	id, ok := paramID(c, "participantId")
	if !ok {
		return
	}
	status := models.ParticipantStatus(c.Query("status"))
	p, err := h.svc.SuspendParticipant(c.Request.Context(), middleware.GetGroupID(c), id, status)
	if err != nil {
		respondError(c, h.logger, "suspend participant", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// ResetAttempts handles POST /v1/participants/:participantId/reset-attempts
func (h *ParticipantHandler) ResetAttempts(c *gin.Context) {
	id, ok := paramID(c, "participantId")
	if !ok {
		return
	}
	var req resetAttemptsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.ResetAttempts(c.Request.Context(), middleware.GetGroupID(c), id, req.Kind); err != nil {
		respondError(c, h.logger, "reset attempts", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// LinkedProviders handles GET /v1/participants/:participantId/linkProvider
func (h *ParticipantHandler) LinkedProviders(c *gin.Context) {
	id, ok := paramID(c, "participantId")
	if !ok {
		return
	}
	links, err := h.svc.GetLinkedProviders(c.Request.Context(), middleware.GetGroupID(c), id)
	if err != nil {
		respondError(c, h.logger, "get linked providers", err)
		return
	}
	c.JSON(http.StatusOK, links)
}

// LinkProvider handles POST /v1/participants/:participantId/linkProvider
func (h *ParticipantHandler) LinkProvider(c *gin.Context) {
	h.changeProvider(c, "link provider", h.svc.LinkProvider)
}

// UnlinkedProviders handles GET /v1/participants/:participantId/unlinkProvider
func (h *ParticipantHandler) UnlinkedProviders(c *gin.Context) {
	id, ok := paramID(c, "participantId")
	if !ok {
		return
	}
	res, err := h.svc.GetUnlinkedProviders(c.Request.Context(), middleware.GetGroupID(c), id, pageFrom(c))
	if err != nil {
		respondError(c, h.logger, "get unlinked providers", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// UnlinkProvider handles POST /v1/participants/:participantId/unlinkProvider
func (h *ParticipantHandler) UnlinkProvider(c *gin.Context) {
	h.changeProvider(c, "unlink provider", h.svc.UnlinkProvider)
}

// DefaultProvider handles POST /v1/participants/:participantId/defaultProvider/:providerId
func (h *ParticipantHandler) DefaultProvider(c *gin.Context) {
	id, ok := paramID(c, "participantId")
	if !ok {
		return
	}
	providerID, ok := paramID(c, "providerId")
	if !ok {
		return
	}
	links, err := h.svc.SetDefaultProvider(c.Request.Context(), middleware.GetGroupID(c), id, providerID)
	if err != nil {
		respondError(c, h.logger, "set default provider", err)
		return
	}
	c.JSON(http.StatusOK, links)
}

type providerChange func(ctx context.Context, groupID, participantID, providerID uuid.UUID) ([]models.LinkedProvider, error)

func (h *ParticipantHandler) changeProvider(c *gin.Context, action string, change providerChange) {
	id, ok := paramID(c, "participantId")
	if !ok {
		return
	}
	var req providerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	links, err := change(c.Request.Context(), middleware.GetGroupID(c), id, req.ProviderID)
	if err != nil {
		respondError(c, h.logger, action, err)
		return
	}
	c.JSON(http.StatusOK, links)
}
