package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/carepath/internal/middleware"
	"github.com/lalith-99/carepath/internal/models"
	"github.com/lalith-99/carepath/internal/service"
	"go.uber.org/zap"
)

// MeHandler serves the endpoints a signed-in participant calls about
// itself: profile, support persons, tasks and the resource library.
type MeHandler struct {
	svc    *service.Service
	logger *zap.Logger
}

func NewMeHandler(svc *service.Service, logger *zap.Logger) *MeHandler {
	return &MeHandler{svc: svc, logger: logger}
}

type updateProfileRequest struct {
	Name          *string             `json:"name"`
	Phone         *string             `json:"phone"`
	Address       *models.Address     `json:"address"`
	StageID       *uuid.UUID          `json:"stageId"`
	DateOfSurgery *time.Time          `json:"dateOfSurgery"`
	Preferences   *models.Preferences `json:"preferences"`
}

type supportPersonRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

type updateSupportPersonRequest struct {
	Name string `json:"name" binding:"required"`
}

// GetProfile handles GET /v1/participants/me
func (h *MeHandler) GetProfile(c *gin.Context) {
	prof, err := h.svc.GetMyProfile(c.Request.Context(), middleware.GetSubjectID(c))
	if err != nil {
		respondError(c, h.logger, "get profile", err)
		return
	}
	c.JSON(http.StatusOK, prof)
}

// UpdateProfile handles PATCH /v1/participants/me
func (h *MeHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	prof, err := h.svc.UpdateMyProfile(c.Request.Context(), middleware.GetSubjectID(c), service.ProfileUpdate{
		Name:          req.Name,
		Phone:         req.Phone,
		Address:       req.Address,
		StageID:       req.StageID,
		DateOfSurgery: req.DateOfSurgery,
		Preferences:   req.Preferences,
	})
	if err != nil {
		respondError(c, h.logger, "update profile", err)
		return
	}
	c.JSON(http.StatusOK, prof)
}

// AddSupportPerson handles POST /v1/participants/add-support-person
func (h *MeHandler) AddSupportPerson(c *gin.Context) {
	var req supportPersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sp, err := h.svc.AddSupportPerson(c.Request.Context(), middleware.GetSubjectID(c), req.Name, req.Email)
	if err != nil {
		respondError(c, h.logger, "add support person", err)
		return
	}
	c.JSON(http.StatusCreated, sp)
}

// UpdateSupportPerson handles PATCH /v1/participants/support-person/:supportPersonId
func (h *MeHandler) UpdateSupportPerson(c *gin.Context) {
	id, ok := paramID(c, "supportPersonId")
	if !ok {
		return
	}
	var req updateSupportPersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sp, err := h.svc.UpdateSupportPerson(c.Request.Context(), middleware.GetSubjectID(c), id, req.Name)
	if err != nil {
		respondError(c, h.logger, "update support person", err)
		return
	}
	c.JSON(http.StatusOK, sp)
}

// RemoveSupportPerson handles DELETE /v1/participants/support-person/:supportPersonId
func (h *MeHandler) RemoveSupportPerson(c *gin.Context) {
	id, ok := paramID(c, "supportPersonId")
	if !ok {
		return
	}
	sp, err := h.svc.RemoveSupportPerson(c.Request.Context(), middleware.GetSubjectID(c), id)
	if err != nil {
		respondError(c, h.logger, "remove support person", err)
		return
	}
	c.JSON(http.StatusOK, sp)
}

// Tasks handles GET /v1/participants/tasks
func (h *MeHandler) Tasks(c *gin.Context) {
	tasks, err := h.svc.GetMyTasks(c.Request.Context(), middleware.GetSubjectID(c))
	if err != nil {
		respondError(c, h.logger, "get tasks", err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// MarkTask handles POST /v1/participants/tasks/:taskId/:action where
// action is "read" or "done".
func (h *MeHandler) MarkTask(c *gin.Context) {
	id, ok := paramID(c, "taskId")
	if !ok {
		return
	}
	action := models.TouchPointAction(c.Param("action"))
	if err := h.svc.MarkTouchPointRead(c.Request.Context(), middleware.GetSubjectID(c), id, action); err != nil {
		respondError(c, h.logger, "mark touch point", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Library handles GET /v1/participants/resources/library?stageId=
func (h *MeHandler) Library(c *gin.Context) {
	stageID, ok := queryID(c, "stageId")
	if !ok {
		return
	}
	items, err := h.svc.GetResourceLibrary(c.Request.Context(), middleware.GetSubjectID(c), stageID)
	if err != nil {
		respondError(c, h.logger, "get resource library", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// Search handles GET /v1/participants/resources/search?query=
func (h *MeHandler) Search(c *gin.Context) {
	items, err := h.svc.SearchResourceLibrary(c.Request.Context(), middleware.GetSubjectID(c), c.Query("query"))
	if err != nil {
		respondError(c, h.logger, "search resource library", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// Provider handles GET /v1/participants/my/provider
func (h *MeHandler) Provider(c *gin.Context) {
	p, err := h.svc.GetLinkedProvider(c.Request.Context(), middleware.GetSubjectID(c))
	if err != nil {
		respondError(c, h.logger, "get linked provider", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// PartnerContacts handles GET /v1/participants/my/partners/contact
func (h *MeHandler) PartnerContacts(c *gin.Context) {
	contacts, err := h.svc.GetPartnersContacts(c.Request.Context(), middleware.GetSubjectID(c))
	if err != nil {
		respondError(c, h.logger, "get partner contacts", err)
		return
	}
	if contacts == nil {
		contacts = []service.PartnerContact{}
	}
	c.JSON(http.StatusOK, contacts)
}
