package models

import "time"

// Account represents a staff login account stored in the database.
type Account struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Password string `gorm:"type:text;not null"`             // Hashed password.
	Email    string `gorm:"type:text"`                      // Contact email.

	IsSuperuser bool `gorm:"not null;default:false"` // Bootstrap accounts created outside the API.

	Profile *Profile `gorm:"foreignKey:AccountID"` // Per-account state record.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
