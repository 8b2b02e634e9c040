package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/carepath/internal/middleware"
	"github.com/lalith-99/carepath/internal/service"
	"go.uber.org/zap"
)

// AuthHandler serves the participant onboarding and login endpoints. Only
// complete-signup and logout need a token; the rest are public.
type AuthHandler struct {
	svc    *service.Service
	logger *zap.Logger
}

func NewAuthHandler(svc *service.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type codeRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type resetPasswordRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Code     string `json:"code" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type completeSignupRequest struct {
	Name               string `json:"name" binding:"required"`
	Password           string `json:"password" binding:"required"`
	SupportPersonName  string `json:"supportPersonName"`
	SupportPersonEmail string `json:"supportPersonEmail" binding:"omitempty,email"`
}

// Verify handles POST /v1/participants/verify. The token it returns is only
// good for complete-signup.
func (h *AuthHandler) Verify(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.svc.VerifyInvite(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		respondError(c, h.logger, "verify invite", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CompleteSignup handles POST /v1/participants/complete-signup.
func (h *AuthHandler) CompleteSignup(c *gin.Context) {
	var req completeSignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	v, err := h.svc.CompleteSignup(c.Request.Context(),
		middleware.GetSubjectID(c),
		middleware.GetSessionID(c),
		middleware.GetPrimaryPartner(c),
		service.SignupInput{
			Name:               req.Name,
			Password:           req.Password,
			SupportPersonName:  req.SupportPersonName,
			SupportPersonEmail: req.SupportPersonEmail,
		},
	)
	if err != nil {
		respondError(c, h.logger, "complete signup", err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// ResendInvite handles POST /v1/participants/resend-invite.
func (h *AuthHandler) ResendInvite(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.ResendInvite(c.Request.Context(), req.Email); err != nil {
		respondError(c, h.logger, "resend invite", err)
		return
	}
	message(c, http.StatusOK, "Invite sent.")
}

// Login handles POST /v1/participants/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.svc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, "authenticate", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Logout handles POST /v1/participants/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), middleware.GetSessionID(c)); err != nil {
		respondError(c, h.logger, "logout", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RequestResetPassword handles POST /v1/participants/request-reset-password.
func (h *AuthHandler) RequestResetPassword(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.RequestResetPassword(c.Request.Context(), req.Email); err != nil {
		respondError(c, h.logger, "request password reset", err)
		return
	}
	message(c, http.StatusOK, "Passcode sent.")
}

// VerifyPin handles POST /v1/participants/verify-pin.
func (h *AuthHandler) VerifyPin(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.VerifyPasscode(c.Request.Context(), req.Email, req.Code); err != nil {
		respondError(c, h.logger, "verify passcode", err)
		return
	}
	message(c, http.StatusOK, "Passcode verified.")
}

// ResetPassword handles POST /v1/participants/reset-password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.ResetPassword(c.Request.Context(), req.Email, req.Code, req.Password); err != nil {
		respondError(c, h.logger, "reset password", err)
		return
	}
	message(c, http.StatusOK, "Password updated.")
}
