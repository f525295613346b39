package models

import "time"

// Activity action tags recorded by the auth flows.
const (
	ActionLogin         = "login"
	ActionLoginRecovery = "login_recovery_token"
	ActionLogout        = "logout"
	ActionSync          = "sync_submit"
)

// ActivityLog is an append-only audit record of account actions. The most
// recent entry per account also drives the "currently online" computation.
type ActivityLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AccountID uint64 `gorm:"not null;index"`     // Acting account ID.
	Action    string `gorm:"type:text;not null"` // Action tag.

	Timestamp time.Time `gorm:"not null;index;autoCreateTime"` // When the action happened.
}
