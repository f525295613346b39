package security

import (
	"strings"
	"testing"
)

func TestGenerateSessionToken(t *testing.T) {
	token, err := GenerateSessionToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(token, "st_") || len(token) != len("st_")+64 {
		t.Fatalf("unexpected token shape %q", token)
	}
	if IsTempToken(token) {
		t.Fatal("session token must not carry the temp prefix")
	}

	other, _ := GenerateSessionToken()
	if token == other {
		t.Fatal("expected unique tokens")
	}
}

func TestGenerateTempToken(t *testing.T) {
	token, err := GenerateTempToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !IsTempToken(token) {
		t.Fatalf("expected temp prefix, got %q", token)
	}
}

func TestGenerateRecoveryCode(t *testing.T) {
	code, err := GenerateRecoveryCode()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(code) != 8 || code != strings.ToUpper(code) {
		t.Fatalf("expected 8 uppercase hex chars, got %q", code)
	}
}

func TestGeneratePasswordMeetsClassRequirements(t *testing.T) {
	password, err := GeneratePassword(12)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(password) != 12 {
		t.Fatalf("expected 12 chars, got %d", len(password))
	}
	if !strings.ContainsAny(password, "abcdefghijkmnpqrstuvwxyz") ||
		!strings.ContainsAny(password, "ABCDEFGHJKLMNPQRSTUVWXYZ") ||
		!strings.ContainsAny(password, "23456789") {
		t.Fatalf("expected mixed classes, got %q", password)
	}

	short, _ := GeneratePassword(3)
	if len(short) != 8 {
		t.Fatalf("expected minimum length 8, got %d", len(short))
	}
}

func TestTokensEqual(t *testing.T) {
	if !TokensEqual("abc", "abc") {
		t.Fatal("expected equal tokens to match")
	}
	if TokensEqual("abc", "abd") {
		t.Fatal("expected different tokens to mismatch")
	}
	if TokensEqual("", "") {
		t.Fatal("empty tokens never match")
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "s3cret" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !CheckPassword(hash, "s3cret") {
		t.Fatal("expected the right password to verify")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatal("expected a wrong password to fail")
	}
}
