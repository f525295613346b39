package syncqueue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bazasystems/madaris/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupQueueDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:queue_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.AutoMigrate(
		&models.PendingUpdate{},
		&models.Student{},
		&models.CanteenAttendance{},
		&models.LibraryLoan{},
	); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return db
}

func seedStudent(t *testing.T, db *gorm.DB, idNumber string) *models.Student {
	t.Helper()
	student := models.Student{StudentIDNumber: idNumber, LastName: "Benali", FirstName: "Yousef"}
	if errCreate := db.Create(&student).Error; errCreate != nil {
		t.Fatalf("seed student: %v", errCreate)
	}
	return &student
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var count int64
	if errCount := db.Model(model).Count(&count).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	return count
}

func TestSubmitQueuesWithoutApplying(t *testing.T) {
	db := setupQueueDB(t)
	svc := NewService(db)
	ctx := context.Background()

	queued, rejected := svc.Submit(ctx, 1, []Intent{
		{URL: "/api/students", Method: "POST", Data: map[string]any{
			"student_id_number": "S-100", "last_name": "Benali", "first_name": "Yousef",
		}},
		{URL: "/api/not_a_thing", Method: "POST"},
	})
	if queued != 1 {
		t.Fatalf("expected 1 queued, got %d", queued)
	}
	if len(rejected) != 1 {
		t.Fatalf("expected 1 rejection, got %v", rejected)
	}

	// Submission stages only; the primary records are untouched.
	if n := countRows(t, db, &models.Student{}); n != 0 {
		t.Fatalf("expected no students before approval, got %d", n)
	}
	if n := countRows(t, db, &models.PendingUpdate{}); n != 1 {
		t.Fatalf("expected 1 pending update, got %d", n)
	}
}

func TestApproveAppliesAndRemoves(t *testing.T) {
	db := setupQueueDB(t)
	svc := NewService(db)
	ctx := context.Background()

	svc.Submit(ctx, 1, []Intent{{URL: "/api/students", Method: "POST", Data: map[string]any{
		"student_id_number": "S-100", "last_name": "Benali", "first_name": "Yousef",
	}}})

	updates, _ := svc.List(ctx)
	if len(updates) != 1 {
		t.Fatalf("expected 1 queued update, got %d", len(updates))
	}
	if errApprove := svc.Approve(ctx, updates[0].ID); errApprove != nil {
		t.Fatalf("approve: %v", errApprove)
	}

	var student models.Student
	if errFind := db.Where("student_id_number = ?", "S-100").First(&student).Error; errFind != nil {
		t.Fatalf("expected student created: %v", errFind)
	}
	if n := countRows(t, db, &models.PendingUpdate{}); n != 0 {
		t.Fatalf("expected empty queue after approval, got %d", n)
	}
}

func TestApproveFailureLeavesUpdateQueued(t *testing.T) {
	db := setupQueueDB(t)
	svc := NewService(db)
	ctx := context.Background()

	svc.Submit(ctx, 1, []Intent{{URL: "/api/students/999", Method: "PUT", Data: map[string]any{
		"last_name": "Changed",
	}}})
	updates, _ := svc.List(ctx)
	if len(updates) != 1 {
		t.Fatalf("expected 1 queued update, got %d", len(updates))
	}

	if errApprove := svc.Approve(ctx, updates[0].ID); errApprove == nil {
		t.Fatal("expected approval of a missing target to fail")
	}
	if n := countRows(t, db, &models.PendingUpdate{}); n != 1 {
		t.Fatalf("expected failed update to stay queued, got %d", n)
	}
}

func TestApproveAllPartialSuccess(t *testing.T) {
	db := setupQueueDB(t)
	svc := NewService(db)
	ctx := context.Background()

	svc.Submit(ctx, 1, []Intent{
		{URL: "/api/students", Method: "POST", Data: map[string]any{"student_id_number": "S-200"}},
		{URL: "/api/students/12345", Method: "DELETE"},
	})

	result, errApprove := svc.ApproveAll(ctx)
	if errApprove != nil {
		t.Fatalf("approve all: %v", errApprove)
	}
	if result.Applied != 1 || len(result.Errors) != 1 {
		t.Fatalf("expected 1 applied and 1 error, got %+v", result)
	}
	if n := countRows(t, db, &models.Student{}); n != 1 {
		t.Fatalf("expected the create to land, got %d students", n)
	}
	if n := countRows(t, db, &models.PendingUpdate{}); n != 1 {
		t.Fatalf("expected the failing update to stay queued, got %d", n)
	}
}

func TestRejectDiscardsWithoutApplying(t *testing.T) {
	db := setupQueueDB(t)
	svc := NewService(db)
	ctx := context.Background()

	svc.Submit(ctx, 1, []Intent{{URL: "/api/students", Method: "POST", Data: map[string]any{
		"student_id_number": "S-300",
	}}})
	updates, _ := svc.List(ctx)
	if errReject := svc.Reject(ctx, updates[0].ID); errReject != nil {
		t.Fatalf("reject: %v", errReject)
	}

	if n := countRows(t, db, &models.Student{}); n != 0 {
		t.Fatalf("expected no students after reject, got %d", n)
	}
	if errMissing := svc.Reject(ctx, updates[0].ID); errMissing != gorm.ErrRecordNotFound {
		t.Fatalf("expected not-found on double reject, got %v", errMissing)
	}
}

func TestRejectAllEmptiesQueue(t *testing.T) {
	db := setupQueueDB(t)
	svc := NewService(db)
	ctx := context.Background()

	svc.Submit(ctx, 1, []Intent{
		{URL: "/api/students", Method: "POST", Data: map[string]any{"student_id_number": "S-1"}},
		{URL: "/api/students", Method: "POST", Data: map[string]any{"student_id_number": "S-2"}},
	})

	discarded, errReject := svc.RejectAll(ctx)
	if errReject != nil {
		t.Fatalf("reject all: %v", errReject)
	}
	if discarded != 2 {
		t.Fatalf("expected 2 discarded, got %d", discarded)
	}
	if count, _ := svc.Count(ctx); count != 0 {
		t.Fatalf("expected empty queue, got %d", count)
	}
}

func TestCanteenAttendanceIsIdempotentPerDay(t *testing.T) {
	db := setupQueueDB(t)
	svc := NewService(db)
	ctx := context.Background()

	student := seedStudent(t, db, "S-400")
	svc.Submit(ctx, 1, []Intent{
		{URL: "/api/canteen/scan_card", Method: "POST", Data: map[string]any{"barcode": "S-400"}},
		{URL: "/api/canteen/scan_card", Method: "POST", Data: map[string]any{"barcode": "S-400"}},
	})

	result, errApprove := svc.ApproveAll(ctx)
	if errApprove != nil {
		t.Fatalf("approve all: %v", errApprove)
	}
	if result.Applied != 2 {
		t.Fatalf("expected both scans to apply cleanly, got %+v", result)
	}

	var rows int64
	if errCount := db.Model(&models.CanteenAttendance{}).
		Where("student_id = ?", student.ID).
		Count(&rows).Error; errCount != nil {
		t.Fatalf("count attendance: %v", errCount)
	}
	if rows != 1 {
		t.Fatalf("expected a single attendance row per day, got %d", rows)
	}
}

func TestBulkDeleteAppliesIDList(t *testing.T) {
	db := setupQueueDB(t)
	svc := NewService(db)
	ctx := context.Background()

	first := seedStudent(t, db, "S-500")
	second := seedStudent(t, db, "S-501")
	kept := seedStudent(t, db, "S-502")

	svc.Submit(ctx, 1, []Intent{{
		URL:    "/api/students/bulk_delete",
		Method: "POST",
		Data:   map[string]any{"ids": []any{float64(first.ID), float64(second.ID)}},
	}})
	result, errApprove := svc.ApproveAll(ctx)
	if errApprove != nil || result.Applied != 1 {
		t.Fatalf("approve all: %v %+v", errApprove, result)
	}

	if n := countRows(t, db, &models.Student{}); n != 1 {
		t.Fatalf("expected 1 remaining student, got %d", n)
	}
	var remaining models.Student
	if errFind := db.First(&remaining).Error; errFind != nil || remaining.ID != kept.ID {
		t.Fatalf("expected %d to survive, got %+v (%v)", kept.ID, remaining, errFind)
	}
}
