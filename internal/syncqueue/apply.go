package syncqueue

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/bazasystems/madaris/internal/models"
	"gorm.io/gorm"
)

// apply replays one stored update against the primary records inside the
// caller's transaction.
func (s *Service) apply(tx *gorm.DB, update *models.PendingUpdate) error {
	switch update.Entity {
	case models.EntityStudent:
		return applyStudent(tx, update)
	case models.EntityCanteen:
		return applyCanteen(tx, update)
	case models.EntityLibrary:
		return applyLibrary(tx, update)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEntity, update.Entity)
	}
}

// decodePayload unmarshals the stored payload into a generic map.
func decodePayload(update *models.PendingUpdate) (map[string]any, error) {
	payload := map[string]any{}
	if len(update.Payload) == 0 {
		return payload, nil
	}
	if errUnmarshal := json.Unmarshal(update.Payload, &payload); errUnmarshal != nil {
		return nil, fmt.Errorf("decode payload: %w", errUnmarshal)
	}
	return payload, nil
}

// payloadString reads a string field, tolerating numeric values.
func payloadString(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// applyStudentFields copies recognized payload fields onto a student row.
// Unknown keys are ignored, the id is never overwritten.
func applyStudentFields(student *models.Student, payload map[string]any) {
	fields := map[string]*string{
		"student_id_number": &student.StudentIDNumber,
		"last_name":         &student.LastName,
		"first_name":        &student.FirstName,
		"gender":            &student.Gender,
		"date_of_birth":     &student.DateOfBirth,
		"place_of_birth":    &student.PlaceOfBirth,
		"academic_year":     &student.AcademicYear,
		"class_name":        &student.ClassName,
		"attendance_system": &student.AttendanceSystem,
		"enrollment_number": &student.EnrollmentNumber,
		"guardian_name":     &student.GuardianName,
		"guardian_phone":    &student.GuardianPhone,
		"address":           &student.Address,
	}
	for key, dst := range fields {
		if _, ok := payload[key]; !ok {
			continue
		}
		*dst = payloadString(payload, key)
	}
}

func applyStudent(tx *gorm.DB, update *models.PendingUpdate) error {
	payload, errDecode := decodePayload(update)
	if errDecode != nil {
		return errDecode
	}

	switch update.Action {
	case models.UpdateActionCreate:
		student := models.Student{}
		applyStudentFields(&student, payload)
		if student.StudentIDNumber == "" {
			return fmt.Errorf("student create without student_id_number")
		}
		return tx.Create(&student).Error

	case models.UpdateActionUpdate:
		var student models.Student
		if errFind := tx.First(&student, update.TargetID).Error; errFind != nil {
			return fmt.Errorf("student %d: %w", update.TargetID, errFind)
		}
		applyStudentFields(&student, payload)
		return tx.Save(&student).Error

	case models.UpdateActionDelete:
		ids := deleteIDs(update, payload)
		if len(ids) == 0 {
			return fmt.Errorf("student delete without target ids")
		}
		res := tx.Delete(&models.Student{}, ids)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("student delete matched no rows")
		}
		return nil

	default:
		return fmt.Errorf("unsupported student action %q", update.Action)
	}
}

// deleteIDs collects the ids a delete targets: either the recorded target
// id or the embedded bulk id list.
func deleteIDs(update *models.PendingUpdate, payload map[string]any) []uint64 {
	if update.TargetID != 0 {
		return []uint64{update.TargetID}
	}
	raw, ok := payload["ids"].([]any)
	if !ok {
		return nil
	}
	var ids []uint64
	for _, item := range raw {
		switch v := item.(type) {
		case float64:
			ids = append(ids, uint64(v))
		case string:
			if id, errParse := strconv.ParseUint(v, 10, 64); errParse == nil {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func applyCanteen(tx *gorm.DB, update *models.PendingUpdate) error {
	payload, errDecode := decodePayload(update)
	if errDecode != nil {
		return errDecode
	}

	barcode := payloadString(payload, "barcode")
	if barcode == "" {
		barcode = payloadString(payload, "student_id")
	}
	if barcode == "" {
		return fmt.Errorf("canteen intent without barcode or student_id")
	}

	student, errResolve := resolveStudent(tx, barcode)
	if errResolve != nil {
		return errResolve
	}

	// One attendance row per student per day.
	day := time.Now().UTC().Format("2006-01-02")
	var existing models.CanteenAttendance
	errFind := tx.Where("student_id = ? AND date = ?", student.ID, day).First(&existing).Error
	if errFind == nil {
		return nil
	}
	if errFind != gorm.ErrRecordNotFound {
		return errFind
	}
	return tx.Create(&models.CanteenAttendance{StudentID: student.ID, Date: day}).Error
}

func applyLibrary(tx *gorm.DB, update *models.PendingUpdate) error {
	payload, errDecode := decodePayload(update)
	if errDecode != nil {
		return errDecode
	}

	barcode := payloadString(payload, "barcode")
	if barcode == "" {
		barcode = payloadString(payload, "student_id")
	}
	title := payloadString(payload, "book_title")
	if barcode == "" || title == "" {
		return fmt.Errorf("loan intent without student or book_title")
	}

	student, errResolve := resolveStudent(tx, barcode)
	if errResolve != nil {
		return errResolve
	}
	return tx.Create(&models.LibraryLoan{
		StudentID: student.ID,
		BookTitle: title,
		LoanDate:  time.Now().UTC().Format("2006-01-02"),
	}).Error
}

// resolveStudent finds a student by card barcode, falling back to a numeric
// primary key.
func resolveStudent(tx *gorm.DB, barcode string) (*models.Student, error) {
	var student models.Student
	errFind := tx.Where("student_id_number = ?", barcode).First(&student).Error
	if errFind == nil {
		return &student, nil
	}
	if errFind != gorm.ErrRecordNotFound {
		return nil, errFind
	}

	id, errParse := strconv.ParseUint(barcode, 10, 64)
	if errParse != nil {
		return nil, fmt.Errorf("unknown student %q", barcode)
	}
	if errByID := tx.First(&student, id).Error; errByID != nil {
		return nil, fmt.Errorf("unknown student %q: %w", barcode, errByID)
	}
	return &student, nil
}
