package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bazasystems/madaris/internal/models"
	"github.com/bazasystems/madaris/internal/security"
	"github.com/bazasystems/madaris/internal/settings"
	"github.com/bazasystems/madaris/internal/util"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// effectiveRecoveryEmail prefers the settings row over the config value.
func (s *Service) effectiveRecoveryEmail() string {
	return util.NormalizeEmail(settings.StringValue(settings.RecoveryEmailKey, s.recoveryEmail))
}

// isRecoveryIdentifier reports whether the login identifier targets the
// recovery path.
func (s *Service) isRecoveryIdentifier(identifier string) bool {
	email := s.effectiveRecoveryEmail()
	return email != "" && util.NormalizeEmail(identifier) == email
}

// loginWithRecoveryCode handles a login where the username matched the
// configured recovery email and the password field carries the one-time
// code. The code is consumed whether or not the director lookup succeeds;
// a mismatch fails without falling through to normal authentication.
func (s *Service) loginWithRecoveryCode(ctx context.Context, code string) (*LoginResult, error) {
	stored, issuedAt, ok := s.pendingRecoveryCode()
	if !ok {
		return nil, errInvalidRecoveryCode()
	}
	if s.now().Sub(issuedAt) > settings.RecoveryTokenTTL {
		s.clearRecoveryCode(ctx)
		return nil, errInvalidRecoveryCode()
	}
	if !security.TokensEqual(stored, strings.TrimSpace(code)) {
		return nil, errInvalidRecoveryCode()
	}

	// Single use: invalidate before anything else can go wrong.
	s.clearRecoveryCode(ctx)

	account, errFind := s.findPrivilegedAccount(ctx)
	if errFind != nil {
		return nil, errFind
	}
	profile, errProfile := s.ensureProfile(ctx, account)
	if errProfile != nil {
		return nil, errProfile
	}

	if errUpdate := s.db.WithContext(ctx).Model(profile).Updates(map[string]any{
		"locked":               false,
		"failed_attempts":      0,
		"must_change_password": true,
	}).Error; errUpdate != nil {
		return nil, errUpdate
	}
	profile.Locked = false
	profile.FailedAttempts = 0
	profile.MustChangePassword = true

	log.WithField("username", account.Username).Warn("recovery code used to restore director access")
	return s.issueSession(ctx, account, profile, models.ActionLoginRecovery)
}

// RequestRecoveryCode generates and emails a fresh recovery code when the
// identifier matches the configured recovery email and a privileged account
// exists. It returns nil in every user-visible case so callers can answer
// with a uniform non-revealing message; mail failures are logged, never
// propagated.
func (s *Service) RequestRecoveryCode(ctx context.Context, identifier string) error {
	if !s.isRecoveryIdentifier(identifier) {
		return nil
	}
	if _, errFind := s.findPrivilegedAccount(ctx); errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil
		}
		return errFind
	}

	code, errCode := security.GenerateRecoveryCode()
	if errCode != nil {
		return errCode
	}
	issuedAt := s.now().UTC()
	if errStore := settings.Set(ctx, s.db, settings.RecoveryTokenKey, code); errStore != nil {
		return errStore
	}
	if errStore := settings.Set(ctx, s.db, settings.RecoveryTokenIssuedAtKey, issuedAt.Format(time.RFC3339)); errStore != nil {
		return errStore
	}

	s.sendRecoveryMail(code)
	return nil
}

// sendRecoveryMail delivers the code out of band. Failures must never abort
// the enclosing request.
func (s *Service) sendRecoveryMail(code string) {
	to := s.effectiveRecoveryEmail()
	if s.mailer == nil {
		log.WithField("code", util.HideToken(code)).Warn("mail disabled, recovery code not delivered")
		return
	}

	subject := fmt.Sprintf("Account recovery - %s", settings.SchoolName())
	body := fmt.Sprintf(
		"A recovery code was requested for the director account.\n\n"+
			"Code: %s\n\n"+
			"Sign in with the recovery email as username and this code as password.\n"+
			"The code is valid for 15 minutes and can be used once.\n\n"+
			"If you did not request this, you can ignore this message.\n",
		code,
	)
	if errSend := s.mailer.Send(to, subject, body); errSend != nil {
		log.WithError(errSend).Error("failed to send recovery email")
	}
}

// pendingRecoveryCode reads the stored code and its creation time.
func (s *Service) pendingRecoveryCode() (code string, issuedAt time.Time, ok bool) {
	code = settings.StringValue(settings.RecoveryTokenKey, "")
	if strings.TrimSpace(code) == "" {
		return "", time.Time{}, false
	}
	stamp := settings.StringValue(settings.RecoveryTokenIssuedAtKey, "")
	parsed, errParse := time.Parse(time.RFC3339, stamp)
	if errParse != nil {
		return "", time.Time{}, false
	}
	return code, parsed, true
}

// clearRecoveryCode removes the stored code; best effort.
func (s *Service) clearRecoveryCode(ctx context.Context) {
	if errDelete := settings.Delete(ctx, s.db, settings.RecoveryTokenKey); errDelete != nil {
		log.WithError(errDelete).Warn("failed to clear recovery code")
	}
	if errDelete := settings.Delete(ctx, s.db, settings.RecoveryTokenIssuedAtKey); errDelete != nil {
		log.WithError(errDelete).Warn("failed to clear recovery code timestamp")
	}
}

// findPrivilegedAccount resolves the unique director account, falling back
// to any superuser for deployments created before profiles existed.
func (s *Service) findPrivilegedAccount(ctx context.Context) (*models.Account, error) {
	var profile models.Profile
	errFind := s.db.WithContext(ctx).
		Preload("Account").
		Where("role = ?", models.RoleDirector).
		First(&profile).Error
	if errFind == nil && profile.Account != nil {
		account := profile.Account
		account.Profile = &profile
		return account, nil
	}
	if errFind != nil && !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, errFind
	}

	var account models.Account
	if errSuper := s.db.WithContext(ctx).
		Preload("Profile").
		Where("is_superuser = ?", true).
		First(&account).Error; errSuper != nil {
		return nil, errSuper
	}
	return &account, nil
}
