package settings

import "time"

// DB config keys and defaults for school settings.
const (
	// SchoolNameKey is the DB config key for the school display name.
	SchoolNameKey = "SCHOOL_NAME"
	// DefaultSchoolName is the fallback school display name.
	DefaultSchoolName = "Baza Systems"
	// RecoveryEmailKey is the DB config key for the director recovery email.
	RecoveryEmailKey = "RECOVERY_EMAIL"
	// RecoveryTokenKey holds the pending one-time recovery code.
	RecoveryTokenKey = "RECOVERY_TOKEN"
	// RecoveryTokenIssuedAtKey holds the recovery code creation time.
	RecoveryTokenIssuedAtKey = "RECOVERY_TOKEN_ISSUED_AT"
)

// RecoveryTokenTTL bounds how long a recovery code stays usable.
const RecoveryTokenTTL = 15 * time.Minute
