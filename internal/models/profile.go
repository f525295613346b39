package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Role names used by the reference deployment. The role column is an open
// set; custom names are allowed, only RoleDirector carries special meaning.
const (
	RoleDirector    = "director"
	RoleSecretariat = "secretariat"
	RoleStorekeeper = "storekeeper"
	RoleLibrarian   = "librarian"
	RoleArchivist   = "archivist"
)

// DevicePendingPrefix tags a device id that awaits its one-time rebind.
const DevicePendingPrefix = "pending:"

// Profile extends an Account with role, permission and session state.
type Profile struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AccountID uint64   `gorm:"not null;uniqueIndex"` // Owning account ID.
	Account   *Account `gorm:"foreignKey:AccountID"` // Owning account.

	Role        string         `gorm:"type:text;not null;default:'secretariat'"` // Role tag, open set.
	Permissions datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"`         // Capability tags in JSON.

	Locked         bool `gorm:"not null;default:false"` // Blocks login for non-privileged roles.
	FailedAttempts int  `gorm:"not null;default:0"`     // Consecutive failed password attempts.

	SessionToken string `gorm:"type:text"` // Current opaque session token, empty when signed out.
	DeviceID     string `gorm:"type:text"` // Bound device id, or a pending:<uuid> sentinel.

	TOTPSecret  string `gorm:"type:text"`              // TOTP secret for the two-factor gate.
	TOTPEnabled bool   `gorm:"not null;default:false"` // Whether the two-factor gate applies.

	MustChangePassword bool `gorm:"not null;default:false"` // Forces a password change on next action.
	CloudActive        bool `gorm:"not null;default:true"`  // Whether cloud sync is active for this account.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Privileged reports whether the profile belongs to the privileged tier.
// Device binding and lockout enforcement are skipped for privileged
// profiles; the check replaces scattered role string comparisons.
func (p *Profile) Privileged() bool {
	if p == nil {
		return false
	}
	if p.Role == RoleDirector {
		return true
	}
	return p.Account != nil && p.Account.IsSuperuser
}

// DevicePending reports whether the device id holds an activation sentinel.
func (p *Profile) DevicePending() bool {
	return p != nil && strings.HasPrefix(p.DeviceID, DevicePendingPrefix)
}

// DeviceBound reports whether a real device id is bound.
func (p *Profile) DeviceBound() bool {
	return p != nil && p.DeviceID != "" && !p.DevicePending()
}
