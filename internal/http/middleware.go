package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bazasystems/madaris/internal/auth"
	"github.com/bazasystems/madaris/internal/models"
	"github.com/bazasystems/madaris/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Context keys set by the session middleware.
const (
	ctxAccountID = "accountID"
	ctxProfile   = "profile"
)

// TokenFromRequest reads the session token from the Authorization header or
// the X-Session-Token fallback used by older clients.
func TokenFromRequest(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if token, found := strings.CutPrefix(header, "Bearer "); found {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(c.GetHeader("X-Session-Token"))
}

// sessionMiddleware resolves the presented token against the per-profile
// stored value and loads the account into the request context.
func sessionMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c)
		if token == "" || security.IsTempToken(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}

		var profile models.Profile
		if errFind := db.WithContext(c.Request.Context()).
			Preload("Account").
			Where("session_token = ?", token).
			First(&profile).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}

		c.Set(ctxAccountID, profile.AccountID)
		c.Set(ctxProfile, &profile)
		c.Next()
	}
}

// requirePermission gates a route on a capability tag. Privileged profiles
// pass every gate.
func requirePermission(tag string) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile := profileFromContext(c)
		if profile == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !auth.HasPermission(profile, tag) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
		c.Next()
	}
}

// requireDirector gates a route on the director role itself, not just the
// privileged tier.
func requireDirector() gin.HandlerFunc {
	return func(c *gin.Context) {
		profile := profileFromContext(c)
		if profile == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if profile.Role != models.RoleDirector {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
		c.Next()
	}
}

// profileFromContext returns the profile loaded by the session middleware.
func profileFromContext(c *gin.Context) *models.Profile {
	value, ok := c.Get(ctxProfile)
	if !ok {
		return nil
	}
	profile, ok := value.(*models.Profile)
	if !ok {
		return nil
	}
	return profile
}

// accountIDFromContext returns the authenticated account id, 0 when absent.
func accountIDFromContext(c *gin.Context) uint64 {
	value, ok := c.Get(ctxAccountID)
	if !ok {
		return 0
	}
	id, ok := value.(uint64)
	if !ok {
		return 0
	}
	return id
}
