package http

import (
	"net/http"
	"strings"

	"github.com/bazasystems/madaris/internal/settings"
	"github.com/bazasystems/madaris/internal/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SettingsHandler exposes the director-editable school settings.
type SettingsHandler struct {
	db *gorm.DB
}

// NewSettingsHandler constructs a SettingsHandler.
func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

// Get returns the current school settings snapshot.
func (h *SettingsHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"school_name":    settings.StringValue(settings.SchoolNameKey, ""),
		"recovery_email": settings.StringValue(settings.RecoveryEmailKey, ""),
	})
}

// updateSettingsRequest defines the request body for settings updates.
type updateSettingsRequest struct {
	SchoolName    *string `json:"school_name"`
	RecoveryEmail *string `json:"recovery_email"`
}

// Update persists the submitted settings and refreshes the snapshot.
// Omitted fields keep their stored value.
func (h *SettingsHandler) Update(c *gin.Context) {
	var body updateSettingsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	ctx := c.Request.Context()
	if body.SchoolName != nil {
		if errSet := settings.Set(ctx, h.db, settings.SchoolNameKey, strings.TrimSpace(*body.SchoolName)); errSet != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
			return
		}
	}
	if body.RecoveryEmail != nil {
		email := util.NormalizeEmail(*body.RecoveryEmail)
		if errSet := settings.Set(ctx, h.db, settings.RecoveryEmailKey, email); errSet != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
			return
		}
	}
	h.Get(c)
}
