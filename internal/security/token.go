package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strings"
)

// Token prefixes distinguish final session tokens from the short-lived
// tokens handed out mid-login while the two-factor gate is pending.
const (
	sessionTokenPrefix = "st_"
	tempTokenPrefix    = "tmp_"
)

// GenerateSessionToken creates an opaque session token with 256 bits of
// entropy. The stored copy on the profile is the sole session authority.
func GenerateSessionToken() (string, error) {
	secret := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return sessionTokenPrefix + hex.EncodeToString(secret), nil
}

// GenerateTempToken creates a temporary token for the two-factor challenge.
func GenerateTempToken() (string, error) {
	secret := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return "", fmt.Errorf("generate temp token: %w", err)
	}
	return tempTokenPrefix + hex.EncodeToString(secret), nil
}

// IsTempToken reports whether a token carries the temporary prefix.
func IsTempToken(token string) bool {
	return strings.HasPrefix(token, tempTokenPrefix)
}

// GenerateRecoveryCode returns a short uppercase hex code for the
// out-of-band recovery flow.
func GenerateRecoveryCode() (string, error) {
	secret := make([]byte, 4)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return "", fmt.Errorf("generate recovery code: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(secret)), nil
}

// GeneratePassword returns a random temporary password containing at least
// one lowercase letter, one uppercase letter and one digit.
func GeneratePassword(length int) (string, error) {
	const alphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	if length < 8 {
		length = 8
	}
	for {
		out := make([]byte, length)
		for i := range out {
			idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
			if err != nil {
				return "", fmt.Errorf("generate password: %w", err)
			}
			out[i] = alphabet[idx.Int64()]
		}
		password := string(out)
		if strings.ContainsAny(password, "abcdefghijkmnpqrstuvwxyz") &&
			strings.ContainsAny(password, "ABCDEFGHJKLMNPQRSTUVWXYZ") &&
			strings.ContainsAny(password, "23456789") {
			return password, nil
		}
	}
}

// TokensEqual compares two tokens in constant time.
func TokensEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
