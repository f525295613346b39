package settings

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bazasystems/madaris/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupSettingsDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:settings_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.AutoMigrate(&models.Setting{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return db
}

func TestSetRefreshesSnapshot(t *testing.T) {
	db := setupSettingsDB(t)
	ctx := context.Background()

	if errSet := Set(ctx, db, SchoolNameKey, "Lycee El Amal"); errSet != nil {
		t.Fatalf("set: %v", errSet)
	}
	if got := StringValue(SchoolNameKey, ""); got != "Lycee El Amal" {
		t.Fatalf("expected stored value visible, got %q", got)
	}
	if got := SchoolName(); got != "Lycee El Amal" {
		t.Fatalf("expected school name from snapshot, got %q", got)
	}

	// Upsert replaces the stored value.
	if errSet := Set(ctx, db, SchoolNameKey, "Lycee Ibn Khaldoun"); errSet != nil {
		t.Fatalf("set again: %v", errSet)
	}
	if got := StringValue(SchoolNameKey, ""); got != "Lycee Ibn Khaldoun" {
		t.Fatalf("expected replacement, got %q", got)
	}
}

func TestDeleteRemovesValue(t *testing.T) {
	db := setupSettingsDB(t)
	ctx := context.Background()

	if errSet := Set(ctx, db, RecoveryTokenKey, "ABCD1234"); errSet != nil {
		t.Fatalf("set: %v", errSet)
	}
	if errDelete := Delete(ctx, db, RecoveryTokenKey); errDelete != nil {
		t.Fatalf("delete: %v", errDelete)
	}
	if got := StringValue(RecoveryTokenKey, ""); got != "" {
		t.Fatalf("expected empty after delete, got %q", got)
	}
}

func TestStringValueFallsBack(t *testing.T) {
	db := setupSettingsDB(t)
	if errRefresh := Refresh(context.Background(), db); errRefresh != nil {
		t.Fatalf("refresh: %v", errRefresh)
	}
	if got := StringValue("NO_SUCH_KEY", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	if got := SchoolName(); got != DefaultSchoolName {
		t.Fatalf("expected default school name, got %q", got)
	}
}
