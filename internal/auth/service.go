package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bazasystems/madaris/internal/mail"
	"github.com/bazasystems/madaris/internal/models"
	"github.com/bazasystems/madaris/internal/security"
	"github.com/bazasystems/madaris/internal/util"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// maxFailedAttempts locks an account after this many consecutive failures.
const maxFailedAttempts = 3

// Service implements the login state machine and its companion flows.
type Service struct {
	db     *gorm.DB
	mailer mail.Sender

	// recoveryEmail is the config fallback; a settings row overrides it.
	recoveryEmail string
	appDomain     string

	temp *tempTokenStore
	now  func() time.Time
}

// NewService constructs the authentication service. mailer may be nil, in
// which case outbound mail is logged and skipped.
func NewService(db *gorm.DB, mailer mail.Sender, recoveryEmail, appDomain string) *Service {
	return &Service{
		db:            db,
		mailer:        mailer,
		recoveryEmail: recoveryEmail,
		appDomain:     appDomain,
		temp:          newTempTokenStore(),
		now:           time.Now,
	}
}

// LoginInput carries one login attempt.
type LoginInput struct {
	Username string
	Password string
	DeviceID string // Client-reported device identifier, may be empty.
}

// LoginResult is the outcome of a successful login call. Either a session
// was issued, or a two-factor challenge is pending and TempToken must be
// presented to LoginTOTP together with a valid code.
type LoginResult struct {
	Require2FA bool
	TempToken  string

	Token              string
	Role               string
	Username           string
	DeviceID           string
	MustChangePassword bool
}

// Login runs the ordered login state machine: recovery check, lookup,
// lock gate, password verification, device binding, two-factor gate, token
// issuance. Failures are returned as *Error values.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return nil, errInvalidCreds(0)
	}

	// Recovery-email logins never fall through to normal authentication.
	if s.isRecoveryIdentifier(username) {
		return s.loginWithRecoveryCode(ctx, in.Password)
	}

	account, errLoad := s.loadAccount(ctx, username)
	if errLoad != nil {
		if errors.Is(errLoad, gorm.ErrRecordNotFound) {
			// Do not reveal whether the account exists.
			return nil, errInvalidCreds(0)
		}
		return nil, errLoad
	}

	profile, errProfile := s.ensureProfile(ctx, account)
	if errProfile != nil {
		return nil, errProfile
	}

	if profile.Locked && !profile.Privileged() {
		return nil, errLocked()
	}

	if !security.CheckPassword(account.Password, in.Password) {
		return nil, s.recordFailedAttempt(ctx, profile)
	}

	// Password verified: reset counters, clear the lock for the privileged
	// tier (the director master-key exception).
	updates := map[string]any{"failed_attempts": 0}
	if profile.Locked && profile.Privileged() {
		updates["locked"] = false
		profile.Locked = false
	}
	profile.FailedAttempts = 0
	if errUpdate := s.db.WithContext(ctx).Model(profile).Updates(updates).Error; errUpdate != nil {
		return nil, errUpdate
	}

	if errDevice := s.enforceDeviceBinding(ctx, profile, in.DeviceID); errDevice != nil {
		return nil, errDevice
	}

	if profile.TOTPEnabled && strings.TrimSpace(profile.TOTPSecret) != "" {
		tempToken, errTemp := security.GenerateTempToken()
		if errTemp != nil {
			return nil, errTemp
		}
		s.temp.Set(tempToken, account.ID, s.now())
		log.WithField("username", account.Username).Info("login pending two-factor verification")
		return &LoginResult{Require2FA: true, TempToken: tempToken}, nil
	}

	return s.issueSession(ctx, account, profile, models.ActionLogin)
}

// loadAccount fetches an account with its profile by exact username.
func (s *Service) loadAccount(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	if errFind := s.db.WithContext(ctx).
		Preload("Profile").
		Where("username = ?", username).
		First(&account).Error; errFind != nil {
		return nil, errFind
	}
	return &account, nil
}

// ensureProfile auto-provisions a profile for legacy accounts: director for
// superusers, the default low-privilege role otherwise.
func (s *Service) ensureProfile(ctx context.Context, account *models.Account) (*models.Profile, error) {
	if account.Profile != nil {
		account.Profile.Account = account
		return account.Profile, nil
	}

	role := models.RoleSecretariat
	if account.IsSuperuser {
		role = models.RoleDirector
	}
	profile := &models.Profile{
		AccountID:   account.ID,
		Role:        role,
		Permissions: []byte(`[]`),
	}
	if errCreate := s.db.WithContext(ctx).Create(profile).Error; errCreate != nil {
		return nil, errCreate
	}
	profile.Account = account
	account.Profile = profile
	return profile, nil
}

// recordFailedAttempt bumps the failure counter and locks at the threshold.
// The counter is a read-modify-write without row locking; under concurrent
// bad attempts the lock-at-3 threshold is approximate.
func (s *Service) recordFailedAttempt(ctx context.Context, profile *models.Profile) error {
	profile.FailedAttempts++
	updates := map[string]any{"failed_attempts": profile.FailedAttempts}
	if profile.FailedAttempts >= maxFailedAttempts {
		profile.Locked = true
		updates["locked"] = true
	}
	if errUpdate := s.db.WithContext(ctx).Model(profile).Updates(updates).Error; errUpdate != nil {
		return errUpdate
	}

	if profile.Locked {
		log.WithField("profile_id", profile.ID).Warn("account locked after repeated failed logins")
		return errLocked()
	}
	return errInvalidCreds(maxFailedAttempts - profile.FailedAttempts)
}

// issueSession mints a fresh session token and stores it on the profile,
// overwriting any previous value. This single write is what invalidates the
// prior session; there is no compare-and-swap, so two concurrent successful
// logins race and the last writer wins (best-effort single session).
func (s *Service) issueSession(ctx context.Context, account *models.Account, profile *models.Profile, action string) (*LoginResult, error) {
	token, errToken := security.GenerateSessionToken()
	if errToken != nil {
		return nil, errToken
	}

	if errUpdate := s.db.WithContext(ctx).Model(profile).
		Updates(map[string]any{"session_token": token, "failed_attempts": 0}).Error; errUpdate != nil {
		return nil, errUpdate
	}
	profile.SessionToken = token
	profile.FailedAttempts = 0

	LogActivity(ctx, s.db, account.ID, action)
	log.WithFields(log.Fields{
		"username": account.Username,
		"role":     profile.Role,
		"token":    util.HideToken(token),
	}).Info("session issued")

	return &LoginResult{
		Token:              token,
		Role:               profile.Role,
		Username:           account.Username,
		DeviceID:           profile.DeviceID,
		MustChangePassword: profile.MustChangePassword,
	}, nil
}

// VerifyResult reports whether a token matches a live session.
type VerifyResult struct {
	Valid bool
	Role  string
}

// Verify checks a session token against the stored per-profile value.
func (s *Service) Verify(ctx context.Context, token string) (*VerifyResult, error) {
	token = strings.TrimSpace(token)
	if token == "" || security.IsTempToken(token) {
		return &VerifyResult{}, nil
	}

	var profile models.Profile
	if errFind := s.db.WithContext(ctx).
		Where("session_token = ?", token).
		First(&profile).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return &VerifyResult{}, nil
		}
		return nil, errFind
	}
	return &VerifyResult{Valid: true, Role: profile.Role}, nil
}

// Logout clears the stored session token when it matches the presented one.
// It succeeds regardless of the token's validity.
func (s *Service) Logout(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	var profile models.Profile
	if errFind := s.db.WithContext(ctx).
		Where("session_token = ?", token).
		First(&profile).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil
		}
		return errFind
	}
	if errUpdate := s.db.WithContext(ctx).Model(&profile).Update("session_token", "").Error; errUpdate != nil {
		return errUpdate
	}
	LogActivity(ctx, s.db, profile.AccountID, models.ActionLogout)
	return nil
}

// ChangePassword verifies the old password, stores the new hash and clears
// the must-change flag.
func (s *Service) ChangePassword(ctx context.Context, accountID uint64, oldPassword, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("auth: empty new password")
	}

	var account models.Account
	if errFind := s.db.WithContext(ctx).Preload("Profile").First(&account, accountID).Error; errFind != nil {
		return errFind
	}
	if !security.CheckPassword(account.Password, oldPassword) {
		return errInvalidCreds(0)
	}

	hash, errHash := security.HashPassword(newPassword)
	if errHash != nil {
		return errHash
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errUpdate := tx.Model(&account).Update("password", hash).Error; errUpdate != nil {
			return errUpdate
		}
		if account.Profile != nil && account.Profile.MustChangePassword {
			return tx.Model(account.Profile).Update("must_change_password", false).Error
		}
		return nil
	})
}
