package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/carepath/internal/auth"
	"go.uber.org/zap"
)

// Context keys for the claims stored in gin.Context. Handlers read them
// through the getters below instead of c.Get.
const (
	ContextKeySubjectID      = "subject_id"
	ContextKeyGroupID        = "group_id"
	ContextKeyRole           = "role"
	ContextKeyType           = "participant_type"
	ContextKeySessionID      = "session_id"
	ContextKeyPrimaryPartner = "primary_partner"
)

const msgUnauthorized = "You are not authorized to perform this action."

// SessionValidator reports whether the session behind a token is still
// live for that subject. *service.Service implements it.
type SessionValidator interface {
	ValidateSession(ctx context.Context, sessionID, subjectID uuid.UUID) (bool, error)
}

// AuthMiddleware validates the bearer token and its session, then stores
// the claims for the handlers.
//
// How a request passes through it:
//   - The header must be "Bearer <token>"; anything else aborts with 401
//     and the handler never runs.
//   - The token's signature and expiry are checked with secret.
//   - The session named in the token must still be live for its subject.
//     Logout and signup delete sessions, so a token whose signature and
//     expiry are fine is still rejected once its session is gone.
//   - The claims are stored with c.Set and c.Next hands over to the role
//     guard and the handler, which read them through the getters below.
func AuthMiddleware(secret string, sessions SessionValidator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Missing authorization header."})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Expected: Bearer <token>."})
			return
		}

		claims, err := auth.ParseToken(parts[1], secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token."})
			return
		}

		live, err := sessions.ValidateSession(c.Request.Context(), claims.SessionID, claims.SubjectID)
		if err != nil {
			logger.Error("failed to validate session", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "An unexpected error has occurred"})
			return
		}
		if !live {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Session expired. Please log in again."})
			return
		}

		c.Set(ContextKeySubjectID, claims.SubjectID)
		c.Set(ContextKeyGroupID, claims.GroupID)
		c.Set(ContextKeyRole, claims.Role)
		c.Set(ContextKeyType, claims.Type)
		c.Set(ContextKeySessionID, claims.SessionID)
		if claims.PrimaryPartner != nil {
			c.Set(ContextKeyPrimaryPartner, *claims.PrimaryPartner)
		}

		c.Next()
	}
}

// RequireRoles rejects callers whose role is not one of roles. It must run
// after AuthMiddleware.
func RequireRoles(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(roles, GetRole(c)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": msgUnauthorized})
			return
		}
		c.Next()
	}
}

func getID(c *gin.Context, key string) uuid.UUID {
	val, exists := c.Get(key)
	if !exists {
		return uuid.Nil
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}

func GetSubjectID(c *gin.Context) uuid.UUID {
	return getID(c, ContextKeySubjectID)
}

func GetGroupID(c *gin.Context) uuid.UUID {
	return getID(c, ContextKeyGroupID)
}

func GetSessionID(c *gin.Context) uuid.UUID {
	return getID(c, ContextKeySessionID)
}

// GetPrimaryPartner returns nil unless the token carries a primary partner.
func GetPrimaryPartner(c *gin.Context) *uuid.UUID {
	id := getID(c, ContextKeyPrimaryPartner)
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func GetRole(c *gin.Context) auth.Role {
	val, exists := c.Get(ContextKeyRole)
	if !exists {
		return ""
	}
	role, ok := val.(auth.Role)
	if !ok {
		return ""
	}
	return role
}

func GetType(c *gin.Context) string {
	return c.GetString(ContextKeyType)
}
