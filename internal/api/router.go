package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/carepath/internal/auth"
	"github.com/lalith-99/carepath/internal/middleware"
	"github.com/lalith-99/carepath/internal/observ"
	"github.com/lalith-99/carepath/internal/service"
	"go.uber.org/zap"
)

// HealthFunc reports whether the backing stores are reachable. A nil
// HealthFunc means there is nothing to check.
type HealthFunc func(ctx context.Context) error

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(svc *service.Service, metrics *observ.Metrics, secret string, health HealthFunc, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.Metrics(metrics))

	// Public, so load balancers can probe without a token.
	r.GET("/v1/health", func(c *gin.Context) {
		if health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := health(ctx); err != nil {
				logger.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	authH := NewAuthHandler(svc, logger)
	meH := NewMeHandler(svc, logger)
	partH := NewParticipantHandler(svc, logger)
	resH := NewResourceHandler(svc, logger)

	// Routes under /v1/participants fall into three groups sharing the
	// prefix:
	//
	//   public: onboarding and password reset, no token.
	//   me:     the participant's own data, role participant. The subject
	//           always comes from the token, never from the path.
	//   staff:  group admins and providers managing the group in their
	//           token.
	//
	// gin matches the static segments (me, tasks, verify...) before the
	// :participantId parameter, so the groups can share one tree.
	authed := middleware.AuthMiddleware(secret, svc, logger)

	public := r.Group("/v1/participants")
	public.POST("/verify", authH.Verify)
	public.POST("/resend-invite", authH.ResendInvite)
	public.POST("/auth/login", authH.Login)
	public.POST("/request-reset-password", authH.RequestResetPassword)
	public.POST("/verify-pin", authH.VerifyPin)
	public.POST("/reset-password", authH.ResetPassword)

	me := r.Group("/v1/participants", authed, middleware.RequireRoles(auth.RoleParticipant))
	me.POST("/complete-signup", authH.CompleteSignup)
	me.POST("/auth/logout", authH.Logout)
	me.GET("/me", meH.GetProfile)
	me.PATCH("/me", meH.UpdateProfile)
	me.GET("/tasks", meH.Tasks)
	me.POST("/tasks/:taskId/:action", meH.MarkTask)
	me.POST("/add-support-person", meH.AddSupportPerson)
	me.PATCH("/support-person/:supportPersonId", meH.UpdateSupportPerson)
	me.DELETE("/support-person/:supportPersonId", meH.RemoveSupportPerson)
	me.GET("/resources/library", meH.Library)
	me.GET("/resources/search", meH.Search)
	me.GET("/my/provider", meH.Provider)
	me.GET("/my/partners/contact", meH.PartnerContacts)

	staff := r.Group("/v1/participants", authed, middleware.RequireRoles(auth.RoleGroupAdmin, auth.RoleProvider))
	staff.GET("", partH.List)
	staff.POST("", partH.Invite)
	staff.GET("/data/export", partH.Export)
	staff.GET("/:participantId", partH.Get)
	staff.PATCH("/:participantId", partH.Update)
	staff.DELETE("/:participantId", partH.Suspend)
	staff.POST("/:participantId/reset-attempts", partH.ResetAttempts)
	staff.GET("/:participantId/linkProvider", partH.LinkedProviders)
	staff.POST("/:participantId/linkProvider", partH.LinkProvider)
	staff.GET("/:participantId/unlinkProvider", partH.UnlinkedProviders)
	staff.POST("/:participantId/unlinkProvider", partH.UnlinkProvider)
	staff.POST("/:participantId/defaultProvider/:providerId", partH.DefaultProvider)

	resources := r.Group("/v1/resources", authed)
	read := middleware.RequireRoles(auth.RoleAdmin, auth.RoleGroupAdmin, auth.RoleProvider)
	write := middleware.RequireRoles(auth.RoleAdmin, auth.RoleGroupAdmin)
	resources.GET("", read, resH.List)
	resources.GET("/:resourceId", read, resH.Get)
	resources.POST("", write, resH.Create)
	resources.POST("/reorder", write, resH.Reorder)
	resources.PATCH("/:resourceId", write, resH.Update)
	resources.DELETE("/:resourceId", write, resH.Remove)

	return r
}
