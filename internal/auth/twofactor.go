package auth

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/bazasystems/madaris/internal/models"
	"github.com/bazasystems/madaris/internal/settings"
	"github.com/pquerna/otp/totp"
	"gorm.io/gorm"
)

// tempTokenTTL bounds how long a two-factor challenge stays answerable.
const tempTokenTTL = 5 * time.Minute

// tempEntry maps a temporary token to the account awaiting verification.
type tempEntry struct {
	accountID uint64
	expires   time.Time
}

// tempTokenStore keeps in-flight two-factor challenges in memory.
type tempTokenStore struct {
	mu    sync.Mutex
	items map[string]tempEntry
}

// newTempTokenStore creates an empty store.
func newTempTokenStore() *tempTokenStore {
	return &tempTokenStore{items: make(map[string]tempEntry)}
}

// Set stores a challenge. Any older challenge for the same account is
// removed so a new login always invalidates the previous temp token.
func (s *tempTokenStore) Set(token string, accountID uint64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for existing, entry := range s.items {
		if entry.accountID == accountID {
			delete(s.items, existing)
		}
	}
	s.items[token] = tempEntry{accountID: accountID, expires: now.Add(tempTokenTTL)}
}

// Get returns the account for a live challenge. The entry stays in place so
// the code can be retried until it succeeds or the token expires.
func (s *tempTokenStore) Get(token string, now time.Time) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[token]
	if !ok {
		return 0, false
	}
	if now.After(entry.expires) {
		delete(s.items, token)
		return 0, false
	}
	return entry.accountID, true
}

// Delete removes a challenge.
func (s *tempTokenStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, token)
}

// pendingSecretStore keeps not-yet-confirmed TOTP secrets in memory.
type pendingSecretStore struct {
	mu    sync.Mutex
	items map[uint64]string
}

var totpPendingSecrets = pendingSecretStore{items: make(map[uint64]string)}

func (s *pendingSecretStore) Set(accountID uint64, secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[accountID] = secret
}

func (s *pendingSecretStore) Get(accountID uint64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	secret, ok := s.items[accountID]
	return secret, ok
}

func (s *pendingSecretStore) Delete(accountID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, accountID)
}

// TOTPSetup carries provisioning material for an authenticator app.
type TOTPSetup struct {
	Secret     string
	OtpauthURL string
	QRCode     string // data: URL with a base64 PNG, empty if rendering failed.
}

// SetupTOTP generates a provisioning secret for the director's
// authenticator. The secret is held in memory until ConfirmTOTP proves the
// app produces valid codes; only then is the gate enabled.
func (s *Service) SetupTOTP(ctx context.Context, accountID uint64) (*TOTPSetup, error) {
	var account models.Account
	if errFind := s.db.WithContext(ctx).Preload("Profile").First(&account, accountID).Error; errFind != nil {
		return nil, errFind
	}
	if account.Profile == nil || account.Profile.Role != models.RoleDirector {
		return nil, fmt.Errorf("auth: two-factor setup is director-only")
	}

	key, errGenerate := totp.Generate(totp.GenerateOpts{
		Issuer:      settings.SchoolName(),
		AccountName: account.Username,
	})
	if errGenerate != nil {
		return nil, fmt.Errorf("auth: generate totp secret: %w", errGenerate)
	}
	totpPendingSecrets.Set(accountID, key.Secret())

	qr := ""
	if img, errImage := key.Image(220, 220); errImage == nil {
		var buf bytes.Buffer
		if errEncode := png.Encode(&buf, img); errEncode == nil {
			qr = "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
		}
	}
	return &TOTPSetup{Secret: key.Secret(), OtpauthURL: key.URL(), QRCode: qr}, nil
}

// ConfirmTOTP validates a code against the pending secret and enables the
// two-factor gate.
func (s *Service) ConfirmTOTP(ctx context.Context, accountID uint64, code string) error {
	secret, ok := totpPendingSecrets.Get(accountID)
	if !ok {
		return fmt.Errorf("auth: no pending two-factor setup")
	}
	if !totp.Validate(strings.TrimSpace(code), secret) {
		return errInvalid2FACode()
	}

	if errUpdate := s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("account_id = ?", accountID).
		Updates(map[string]any{"totp_secret": secret, "totp_enabled": true}).Error; errUpdate != nil {
		return errUpdate
	}
	totpPendingSecrets.Delete(accountID)
	return nil
}

// DisableTOTP turns the gate off and discards the stored secret.
func (s *Service) DisableTOTP(ctx context.Context, accountID uint64) error {
	totpPendingSecrets.Delete(accountID)
	return s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("account_id = ?", accountID).
		Updates(map[string]any{"totp_secret": "", "totp_enabled": false}).Error
}

// LoginTOTP answers a pending two-factor challenge. A wrong code leaves the
// temporary token valid for retry; success issues the final session exactly
// as a plain login would.
func (s *Service) LoginTOTP(ctx context.Context, tempToken, code string) (*LoginResult, error) {
	accountID, ok := s.temp.Get(strings.TrimSpace(tempToken), s.now())
	if !ok {
		return nil, errTempTokenInvalid()
	}

	var account models.Account
	if errFind := s.db.WithContext(ctx).Preload("Profile").First(&account, accountID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, errTempTokenInvalid()
		}
		return nil, errFind
	}
	profile := account.Profile
	if profile == nil || !profile.TOTPEnabled || strings.TrimSpace(profile.TOTPSecret) == "" {
		return nil, errTempTokenInvalid()
	}

	if !totp.Validate(strings.TrimSpace(code), profile.TOTPSecret) {
		return nil, errInvalid2FACode()
	}

	s.temp.Delete(strings.TrimSpace(tempToken))
	profile.Account = &account
	return s.issueSession(ctx, &account, profile, models.ActionLogin)
}
