package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable failure codes returned to clients alongside the HTTP status.
const (
	CodeInvalidCreds        = "INVALID_CREDS"
	CodeLocked              = "LOCKED"
	CodeNoDeviceID          = "NO_DEVICE_ID"
	CodeDeviceLocked        = "DEVICE_LOCKED"
	CodeInvalidRecoveryCode = "INVALID_RECOVERY_CODE"
	CodeInvalid2FACode      = "INVALID_2FA_CODE"
	CodeTempTokenInvalid    = "TEMP_TOKEN_INVALID"
)

// Error is a user-facing authentication failure. It carries the HTTP status
// to respond with and never reveals whether an account exists.
type Error struct {
	Code      string // Stable machine-readable code.
	Status    int    // HTTP status to respond with.
	Message   string // Human-readable message.
	Remaining int    // Remaining attempts before lockout, when applicable.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("auth: %s: %s", e.Code, e.Message)
}

// AsError unwraps an *Error from err when present.
func AsError(err error) (*Error, bool) {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

func errInvalidCreds(remaining int) *Error {
	return &Error{
		Code:      CodeInvalidCreds,
		Status:    http.StatusBadRequest,
		Message:   "invalid username or password",
		Remaining: remaining,
	}
}

func errLocked() *Error {
	return &Error{
		Code:    CodeLocked,
		Status:  http.StatusForbidden,
		Message: "account is locked, contact the director",
	}
}

func errNoDeviceID() *Error {
	return &Error{
		Code:    CodeNoDeviceID,
		Status:  http.StatusBadRequest,
		Message: "a device identifier is required",
	}
}

func errDeviceLocked() *Error {
	return &Error{
		Code:    CodeDeviceLocked,
		Status:  http.StatusForbidden,
		Message: "account is bound to another device",
	}
}

func errInvalidRecoveryCode() *Error {
	return &Error{
		Code:    CodeInvalidRecoveryCode,
		Status:  http.StatusBadRequest,
		Message: "invalid or expired recovery code",
	}
}

func errInvalid2FACode() *Error {
	return &Error{
		Code:    CodeInvalid2FACode,
		Status:  http.StatusBadRequest,
		Message: "invalid verification code",
	}
}

func errTempTokenInvalid() *Error {
	return &Error{
		Code:    CodeTempTokenInvalid,
		Status:  http.StatusBadRequest,
		Message: "two-factor challenge expired, sign in again",
	}
}
