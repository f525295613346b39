package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bazasystems/madaris/internal/auth"
	"github.com/bazasystems/madaris/internal/mail"
	"github.com/bazasystems/madaris/internal/models"
	"github.com/bazasystems/madaris/internal/security"
	"github.com/bazasystems/madaris/internal/settings"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// UserHandler handles staff account administration endpoints.
type UserHandler struct {
	db     *gorm.DB
	svc    *auth.Service
	mailer mail.Sender
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(db *gorm.DB, svc *auth.Service, mailer mail.Sender) *UserHandler {
	return &UserHandler{db: db, svc: svc, mailer: mailer}
}

// deviceStatus summarizes a profile's binding state for the listing.
func deviceStatus(profile *models.Profile) string {
	switch {
	case profile.DevicePending():
		return "pending_activation"
	case profile.DeviceBound():
		return "bound"
	default:
		return "unbound"
	}
}

// List returns all accounts with lock, device and online status.
func (h *UserHandler) List(c *gin.Context) {
	var accounts []models.Account
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("Profile").
		Order("id ASC").
		Find(&accounts).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	lastActivity, errActivity := auth.LastActivity(c.Request.Context(), h.db)
	if errActivity != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	now := time.Now().UTC()
	out := make([]gin.H, 0, len(accounts))
	for _, account := range accounts {
		profile := account.Profile
		if profile == nil {
			continue
		}
		lastActive, seen := lastActivity[account.ID]
		entry := gin.H{
			"id":              account.ID,
			"username":        account.Username,
			"email":           account.Email,
			"role":            profile.Role,
			"is_locked":       profile.Locked,
			"failed_attempts": profile.FailedAttempts,
			"permissions":     auth.ParsePermissions(profile.Permissions),
			"device_status":   deviceStatus(profile),
			"is_admin":        profile.Privileged(),
			"is_online":       seen && auth.IsOnline(lastActive, now),
		}
		if seen {
			entry["last_activity"] = lastActive
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, out)
}

// createUserRequest defines the request body for account creation.
type createUserRequest struct {
	Username    string   `json:"username"`
	Password    string   `json:"password"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// Create adds a staff account. At most one director can exist; a missing
// password is generated and mailed to the new user.
func (h *UserHandler) Create(c *gin.Context) {
	var body createUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	username := strings.TrimSpace(body.Username)
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing username"})
		return
	}
	role := strings.TrimSpace(body.Role)
	if role == "" {
		role = models.RoleSecretariat
	}
	if errValidate := auth.ValidatePermissions(body.Permissions); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
		return
	}

	ctx := c.Request.Context()
	if role == models.RoleDirector {
		var directors int64
		if errCount := h.db.WithContext(ctx).Model(&models.Profile{}).
			Where("role = ?", models.RoleDirector).
			Count(&directors).Error; errCount != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		if directors > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "only one director account may exist"})
			return
		}
	}

	var exists models.Account
	if errCheck := h.db.WithContext(ctx).Where("username = ?", username).First(&exists).Error; errCheck == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
		return
	} else if !errors.Is(errCheck, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	password := strings.TrimSpace(body.Password)
	generated := false
	if password == "" {
		var errPassword error
		password, errPassword = security.GeneratePassword(12)
		if errPassword != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "generate password failed"})
			return
		}
		generated = true
	}
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	permissions, errMarshal := json.Marshal(body.Permissions)
	if errMarshal != nil || body.Permissions == nil {
		permissions = []byte(`[]`)
	}

	account := models.Account{
		Username: username,
		Password: hash,
		Email:    strings.TrimSpace(body.Email),
	}
	errCreate := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errAccount := tx.Create(&account).Error; errAccount != nil {
			return errAccount
		}
		profile := models.Profile{
			AccountID:          account.ID,
			Role:               role,
			Permissions:        permissions,
			MustChangePassword: true,
		}
		return tx.Create(&profile).Error
	})
	if errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}

	if generated && account.Email != "" {
		h.sendCredentialsMail(account, password)
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":       account.ID,
		"username": account.Username,
		"role":     role,
	})
}

// sendCredentialsMail delivers the temporary password; failures are logged
// and never abort the request.
func (h *UserHandler) sendCredentialsMail(account models.Account, password string) {
	if h.mailer == nil {
		log.WithField("username", account.Username).Warn("mail disabled, credentials not delivered")
		return
	}
	school := settings.SchoolName()
	subject := fmt.Sprintf("Welcome to %s - your account", school)
	body := fmt.Sprintf(
		"Hello %s,\n\nYour account for %s has been created.\n\n"+
			"Username: %s\nTemporary password: %s\n\n"+
			"You will be required to change your password on first login.\n",
		account.Username, school, account.Username, password,
	)
	if errSend := h.mailer.Send(account.Email, subject, body); errSend != nil {
		log.WithError(errSend).Error("failed to send new account email")
	}
}

// loadTarget resolves the :id route parameter to an account with profile.
func (h *UserHandler) loadTarget(c *gin.Context) (*models.Account, bool) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return nil, false
	}
	var account models.Account
	if errFind := h.db.WithContext(c.Request.Context()).Preload("Profile").First(&account, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return nil, false
	}
	if account.Profile == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return nil, false
	}
	return &account, true
}

// updateCredsRequest defines the request body for credential updates.
type updateCredsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UpdateCreds changes a user's username and/or password.
func (h *UserHandler) UpdateCreds(c *gin.Context) {
	account, ok := h.loadTarget(c)
	if !ok {
		return
	}
	var body updateCredsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{}
	if username := strings.TrimSpace(body.Username); username != "" {
		updates["username"] = username
	}
	if password := strings.TrimSpace(body.Password); password != "" {
		hash, errHash := security.HashPassword(password)
		if errHash != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
			return
		}
		updates["password"] = hash
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(account).Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes an account. The last director can never be deleted.
func (h *UserHandler) Delete(c *gin.Context) {
	account, ok := h.loadTarget(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if account.Profile.Role == models.RoleDirector {
		var directors int64
		if errCount := h.db.WithContext(ctx).Model(&models.Profile{}).
			Where("role = ?", models.RoleDirector).
			Count(&directors).Error; errCount != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		if directors <= 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "the last director account cannot be deleted"})
			return
		}
	}

	errDelete := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errProfile := tx.Where("account_id = ?", account.ID).Delete(&models.Profile{}).Error; errProfile != nil {
			return errProfile
		}
		return tx.Delete(&models.Account{}, account.ID).Error
	})
	if errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Unlock clears the lock flag and failure counter.
func (h *UserHandler) Unlock(c *gin.Context) {
	account, ok := h.loadTarget(c)
	if !ok {
		return
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(account.Profile).
		Updates(map[string]any{"locked": false, "failed_attempts": 0}).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Lock sets the lock flag, blocking further logins for non-privileged roles.
func (h *UserHandler) Lock(c *gin.Context) {
	account, ok := h.loadTarget(c)
	if !ok {
		return
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(account.Profile).
		Update("locked", true).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ResetSession force-signs the user out by clearing the stored token.
func (h *UserHandler) ResetSession(c *gin.Context) {
	account, ok := h.loadTarget(c)
	if !ok {
		return
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(account.Profile).
		Update("session_token", "").Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ActivateDevice opens a one-time rebind window for the account.
func (h *UserHandler) ActivateDevice(c *gin.Context) {
	account, ok := h.loadTarget(c)
	if !ok {
		return
	}
	if _, errActivate := h.svc.ActivateDevice(c.Request.Context(), account.ID); errActivate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "device_status": "pending_activation"})
}

// ResetDevice clears the device binding entirely.
func (h *UserHandler) ResetDevice(c *gin.Context) {
	account, ok := h.loadTarget(c)
	if !ok {
		return
	}
	if errReset := h.svc.ResetDevice(c.Request.Context(), account.ID); errReset != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "device_status": "unbound"})
}

// setPermissionsRequest defines the request body for permission updates.
type setPermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

// SetPermissions replaces a user's capability tags after registry
// validation.
func (h *UserHandler) SetPermissions(c *gin.Context) {
	account, ok := h.loadTarget(c)
	if !ok {
		return
	}
	var body setPermissionsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if errValidate := auth.ValidatePermissions(body.Permissions); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
		return
	}

	permissions, errMarshal := json.Marshal(body.Permissions)
	if errMarshal != nil || body.Permissions == nil {
		permissions = []byte(`[]`)
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(account.Profile).
		Update("permissions", permissions).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
