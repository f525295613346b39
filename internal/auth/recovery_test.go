package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bazasystems/madaris/internal/models"
	"github.com/bazasystems/madaris/internal/settings"
	"gorm.io/gorm"
)

// captureSender records outbound mail instead of dialing SMTP.
type captureSender struct {
	to      string
	subject string
	body    string
	calls   int
}

func (c *captureSender) Send(to, subject, body string) error {
	c.to = to
	c.subject = subject
	c.body = body
	c.calls++
	return nil
}

func setupRecovery(t *testing.T, db *gorm.DB, email string) {
	t.Helper()
	if errSet := settings.Set(context.Background(), db, settings.RecoveryEmailKey, email); errSet != nil {
		t.Fatalf("set recovery email: %v", errSet)
	}
}

func storedRecoveryCode(t *testing.T) string {
	t.Helper()
	code := settings.StringValue(settings.RecoveryTokenKey, "")
	if code == "" {
		t.Fatal("expected a stored recovery code")
	}
	return code
}

func TestRecoveryCodeRestoresDirectorAccess(t *testing.T) {
	db := setupAuthDB(t)
	account := createAccount(t, db, "director", "forgotten", models.RoleDirector)
	if errLock := db.Model(&models.Profile{}).Where("account_id = ?", account.ID).
		Updates(map[string]any{"locked": true, "failed_attempts": 3}).Error; errLock != nil {
		t.Fatalf("lock profile: %v", errLock)
	}
	setupRecovery(t, db, "recover@school.example")

	mailer := &captureSender{}
	svc := NewService(db, mailer, "", "")
	ctx := context.Background()

	if errRequest := svc.RequestRecoveryCode(ctx, "Recover@School.example"); errRequest != nil {
		t.Fatalf("request recovery: %v", errRequest)
	}
	if mailer.calls != 1 || mailer.to != "recover@school.example" {
		t.Fatalf("expected one recovery mail to the configured address, got %+v", mailer)
	}
	code := storedRecoveryCode(t)
	if !strings.Contains(mailer.body, code) {
		t.Fatal("expected the mail body to carry the code")
	}

	result, errLogin := svc.Login(ctx, LoginInput{Username: "recover@school.example", Password: code})
	if errLogin != nil {
		t.Fatalf("recovery login: %v", errLogin)
	}
	if result.Token == "" || result.Role != models.RoleDirector {
		t.Fatalf("expected director session, got %+v", result)
	}
	if !result.MustChangePassword {
		t.Fatal("expected forced password change after recovery")
	}

	profile := reloadProfile(t, db, account.ID)
	if profile.Locked || profile.FailedAttempts != 0 {
		t.Fatalf("expected lock cleared, got locked=%v attempts=%d", profile.Locked, profile.FailedAttempts)
	}

	var entries int64
	if errCount := db.Model(&models.ActivityLog{}).
		Where("action = ?", models.ActionLoginRecovery).
		Count(&entries).Error; errCount != nil {
		t.Fatalf("count activity: %v", errCount)
	}
	if entries != 1 {
		t.Fatalf("expected 1 recovery activity entry, got %d", entries)
	}
}

func TestRecoveryCodeIsSingleUse(t *testing.T) {
	db := setupAuthDB(t)
	createAccount(t, db, "director", "forgotten", models.RoleDirector)
	setupRecovery(t, db, "recover@school.example")
	svc := NewService(db, &captureSender{}, "", "")
	ctx := context.Background()

	if errRequest := svc.RequestRecoveryCode(ctx, "recover@school.example"); errRequest != nil {
		t.Fatalf("request recovery: %v", errRequest)
	}
	code := storedRecoveryCode(t)

	if _, errFirst := svc.Login(ctx, LoginInput{Username: "recover@school.example", Password: code}); errFirst != nil {
		t.Fatalf("first use: %v", errFirst)
	}
	_, errSecond := svc.Login(ctx, LoginInput{Username: "recover@school.example", Password: code})
	if authErr, ok := AsError(errSecond); !ok || authErr.Code != CodeInvalidRecoveryCode {
		t.Fatalf("expected INVALID_RECOVERY_CODE on reuse, got %v", errSecond)
	}
}

func TestRecoveryCodeExpires(t *testing.T) {
	db := setupAuthDB(t)
	createAccount(t, db, "director", "forgotten", models.RoleDirector)
	setupRecovery(t, db, "recover@school.example")
	svc := NewService(db, &captureSender{}, "", "")
	ctx := context.Background()

	if errRequest := svc.RequestRecoveryCode(ctx, "recover@school.example"); errRequest != nil {
		t.Fatalf("request recovery: %v", errRequest)
	}
	code := storedRecoveryCode(t)

	svc.now = func() time.Time { return time.Now().Add(settings.RecoveryTokenTTL + time.Minute) }
	_, errExpired := svc.Login(ctx, LoginInput{Username: "recover@school.example", Password: code})
	if authErr, ok := AsError(errExpired); !ok || authErr.Code != CodeInvalidRecoveryCode {
		t.Fatalf("expected INVALID_RECOVERY_CODE after expiry, got %v", errExpired)
	}
}

func TestRecoveryLoginNeverFallsThroughToPasswordAuth(t *testing.T) {
	db := setupAuthDB(t)
	createAccount(t, db, "director", "master-key", models.RoleDirector)
	setupRecovery(t, db, "recover@school.example")
	svc := NewService(db, &captureSender{}, "", "")

	// No code pending: even the real password must not work via the
	// recovery identifier.
	_, errLogin := svc.Login(context.Background(), LoginInput{Username: "recover@school.example", Password: "master-key"})
	if authErr, ok := AsError(errLogin); !ok || authErr.Code != CodeInvalidRecoveryCode {
		t.Fatalf("expected INVALID_RECOVERY_CODE, got %v", errLogin)
	}
}

func TestRecoveryRequestIgnoresOtherIdentifiers(t *testing.T) {
	db := setupAuthDB(t)
	createAccount(t, db, "director", "master-key", models.RoleDirector)
	setupRecovery(t, db, "recover@school.example")
	mailer := &captureSender{}
	svc := NewService(db, mailer, "", "")

	if errRequest := svc.RequestRecoveryCode(context.Background(), "stranger@example.com"); errRequest != nil {
		t.Fatalf("request: %v", errRequest)
	}
	if mailer.calls != 0 {
		t.Fatal("expected no mail for a non-matching identifier")
	}
	if code := settings.StringValue(settings.RecoveryTokenKey, ""); code != "" {
		t.Fatalf("expected no stored code, got %q", code)
	}
}
