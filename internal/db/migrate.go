package db

import (
	"errors"
	"fmt"

	"github.com/bazasystems/madaris/internal/models"
	"github.com/bazasystems/madaris/internal/security"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate creates or updates the schema for all persisted models.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("db: nil connection")
	}
	return conn.AutoMigrate(
		&models.Account{},
		&models.Profile{},
		&models.ActivityLog{},
		&models.PendingUpdate{},
		&models.Setting{},
		&models.Student{},
		&models.CanteenAttendance{},
		&models.LibraryLoan{},
	)
}

// SeedDirector creates the initial director account when no account exists.
// The generated password is logged once; the director must change it on
// first login.
func SeedDirector(conn *gorm.DB, username string) error {
	if conn == nil {
		return errors.New("db: nil connection")
	}
	if username == "" {
		username = "director"
	}

	var count int64
	if errCount := conn.Model(&models.Account{}).Count(&count).Error; errCount != nil {
		return fmt.Errorf("db: count accounts: %w", errCount)
	}
	if count > 0 {
		return nil
	}

	password, errPassword := security.GeneratePassword(12)
	if errPassword != nil {
		return fmt.Errorf("db: generate director password: %w", errPassword)
	}
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		return fmt.Errorf("db: hash director password: %w", errHash)
	}

	account := models.Account{
		Username:    username,
		Password:    hash,
		IsSuperuser: true,
	}
	errSeed := conn.Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&account).Error; errCreate != nil {
			return errCreate
		}
		profile := models.Profile{
			AccountID:          account.ID,
			Role:               models.RoleDirector,
			Permissions:        []byte(`[]`),
			MustChangePassword: true,
		}
		return tx.Create(&profile).Error
	})
	if errSeed != nil {
		return fmt.Errorf("db: seed director: %w", errSeed)
	}

	log.WithField("username", username).Warnf("created initial director account with password %q, change it on first login", password)
	return nil
}
