package models

import (
	"time"

	"gorm.io/datatypes"
)

// Entity kinds a pending update may target.
const (
	EntityStudent = "student"
	EntityCanteen = "canteen_attendance"
	EntityLibrary = "library_loan"
)

// Actions a pending update may carry.
const (
	UpdateActionCreate = "create"
	UpdateActionUpdate = "update"
	UpdateActionDelete = "delete"
)

// Pending update review states.
const (
	UpdateStatusPending   = "pending"
	UpdateStatusReviewing = "reviewing"
)

// PendingUpdate buffers a mutation recorded by an offline client until a
// reviewer approves or rejects it. The entity kind and action are decided
// once at submission time; the payload is never reinterpreted at apply time.
type PendingUpdate struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AccountID *uint64 `gorm:"index"` // Submitting account ID, if known.

	Entity string `gorm:"type:text;not null"`                   // Target entity kind.
	Action string `gorm:"type:text;not null"`                   // create, update or delete.
	Status string `gorm:"type:text;not null;default:'pending'"` // Review state.

	TargetID uint64         `gorm:"not null;default:0"`  // Entity id for update/delete, 0 otherwise.
	Payload  datatypes.JSON `gorm:"type:jsonb;not null"` // Recorded request payload.

	Timestamp time.Time `gorm:"not null;index;autoCreateTime"` // When the intent was recorded.
}
