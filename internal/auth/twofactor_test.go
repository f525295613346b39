package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bazasystems/madaris/internal/models"
	"github.com/pquerna/otp/totp"
)

// enrollTOTP runs setup and confirm for the account and returns the secret.
func enrollTOTP(t *testing.T, svc *Service, accountID uint64) string {
	t.Helper()
	setup, errSetup := svc.SetupTOTP(context.Background(), accountID)
	if errSetup != nil {
		t.Fatalf("setup totp: %v", errSetup)
	}
	if setup.Secret == "" || setup.OtpauthURL == "" {
		t.Fatalf("expected provisioning material, got %+v", setup)
	}
	code, errCode := totp.GenerateCode(setup.Secret, time.Now())
	if errCode != nil {
		t.Fatalf("generate code: %v", errCode)
	}
	if errConfirm := svc.ConfirmTOTP(context.Background(), accountID, code); errConfirm != nil {
		t.Fatalf("confirm totp: %v", errConfirm)
	}
	return setup.Secret
}

func TestTOTPSetupIsDirectorOnly(t *testing.T) {
	db := setupAuthDB(t)
	account := createAccount(t, db, "amina", "pass123", models.RoleSecretariat)
	svc := NewService(db, nil, "", "")

	if _, errSetup := svc.SetupTOTP(context.Background(), account.ID); errSetup == nil {
		t.Fatal("expected setup to be rejected for a non-director")
	}
}

func TestTOTPLoginFlow(t *testing.T) {
	db := setupAuthDB(t)
	account := createAccount(t, db, "director", "master-key", models.RoleDirector)
	svc := NewService(db, nil, "", "")
	ctx := context.Background()

	secret := enrollTOTP(t, svc, account.ID)
	if profile := reloadProfile(t, db, account.ID); !profile.TOTPEnabled || profile.TOTPSecret != secret {
		t.Fatal("expected two-factor gate enabled after confirm")
	}

	challenge, errLogin := svc.Login(ctx, LoginInput{Username: "director", Password: "master-key"})
	if errLogin != nil {
		t.Fatalf("login: %v", errLogin)
	}
	if !challenge.Require2FA || !strings.HasPrefix(challenge.TempToken, "tmp_") {
		t.Fatalf("expected tmp_ challenge, got %+v", challenge)
	}
	if challenge.Token != "" {
		t.Fatal("expected no session token before verification")
	}

	// A wrong code fails but leaves the challenge answerable.
	_, errWrong := svc.LoginTOTP(ctx, challenge.TempToken, "000000")
	if authErr, ok := AsError(errWrong); !ok || authErr.Code != CodeInvalid2FACode {
		t.Fatalf("expected INVALID_2FA_CODE, got %v", errWrong)
	}

	code, errCode := totp.GenerateCode(secret, time.Now())
	if errCode != nil {
		t.Fatalf("generate code: %v", errCode)
	}
	result, errVerify := svc.LoginTOTP(ctx, challenge.TempToken, code)
	if errVerify != nil {
		t.Fatalf("totp login: %v", errVerify)
	}
	if result.Token == "" || result.Role != models.RoleDirector {
		t.Fatalf("expected session for director, got %+v", result)
	}

	// The challenge is consumed by success.
	_, errReuse := svc.LoginTOTP(ctx, challenge.TempToken, code)
	if authErr, ok := AsError(errReuse); !ok || authErr.Code != CodeTempTokenInvalid {
		t.Fatalf("expected TEMP_TOKEN_INVALID on reuse, got %v", errReuse)
	}
}

func TestTempTokenExpires(t *testing.T) {
	db := setupAuthDB(t)
	account := createAccount(t, db, "director", "master-key", models.RoleDirector)
	svc := NewService(db, nil, "", "")
	ctx := context.Background()

	secret := enrollTOTP(t, svc, account.ID)
	challenge, errLogin := svc.Login(ctx, LoginInput{Username: "director", Password: "master-key"})
	if errLogin != nil {
		t.Fatalf("login: %v", errLogin)
	}

	svc.now = func() time.Time { return time.Now().Add(tempTokenTTL + time.Minute) }
	code, _ := totp.GenerateCode(secret, svc.now())
	_, errExpired := svc.LoginTOTP(ctx, challenge.TempToken, code)
	if authErr, ok := AsError(errExpired); !ok || authErr.Code != CodeTempTokenInvalid {
		t.Fatalf("expected TEMP_TOKEN_INVALID after expiry, got %v", errExpired)
	}
}

func TestNewLoginReplacesPendingChallenge(t *testing.T) {
	db := setupAuthDB(t)
	account := createAccount(t, db, "director", "master-key", models.RoleDirector)
	svc := NewService(db, nil, "", "")
	ctx := context.Background()

	secret := enrollTOTP(t, svc, account.ID)
	first, errFirst := svc.Login(ctx, LoginInput{Username: "director", Password: "master-key"})
	if errFirst != nil {
		t.Fatalf("first login: %v", errFirst)
	}
	second, errSecond := svc.Login(ctx, LoginInput{Username: "director", Password: "master-key"})
	if errSecond != nil {
		t.Fatalf("second login: %v", errSecond)
	}

	code, _ := totp.GenerateCode(secret, time.Now())
	if _, errStale := svc.LoginTOTP(ctx, first.TempToken, code); errStale == nil {
		t.Fatal("expected the first challenge to be replaced")
	}
	if _, errFresh := svc.LoginTOTP(ctx, second.TempToken, code); errFresh != nil {
		t.Fatalf("fresh challenge: %v", errFresh)
	}
}

func TestDisableTOTPRemovesGate(t *testing.T) {
	db := setupAuthDB(t)
	account := createAccount(t, db, "director", "master-key", models.RoleDirector)
	svc := NewService(db, nil, "", "")
	ctx := context.Background()

	enrollTOTP(t, svc, account.ID)
	if errDisable := svc.DisableTOTP(ctx, account.ID); errDisable != nil {
		t.Fatalf("disable totp: %v", errDisable)
	}

	result, errLogin := svc.Login(ctx, LoginInput{Username: "director", Password: "master-key"})
	if errLogin != nil {
		t.Fatalf("login: %v", errLogin)
	}
	if result.Require2FA || result.Token == "" {
		t.Fatalf("expected direct session after disable, got %+v", result)
	}
}
