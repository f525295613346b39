package models

import "time"

// Student is the primary pupil record.
type Student struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	StudentIDNumber  string `gorm:"type:text;not null;uniqueIndex"` // National pupil identifier, doubles as card barcode.
	LastName         string `gorm:"type:text;not null"`             // Family name.
	FirstName        string `gorm:"type:text;not null"`             // Given name.
	Gender           string `gorm:"type:text"`                      // Gender label.
	DateOfBirth      string `gorm:"type:text"`                      // Birth date, ISO day string.
	PlaceOfBirth     string `gorm:"type:text"`                      // Birth place.
	AcademicYear     string `gorm:"type:text"`                      // Level, e.g. first year.
	ClassName        string `gorm:"type:text"`                      // Class/section name.
	AttendanceSystem string `gorm:"type:text"`                      // Boarding/day regime.
	EnrollmentNumber string `gorm:"type:text"`                      // Registry number.
	GuardianName     string `gorm:"type:text"`                      // Guardian full name.
	GuardianPhone    string `gorm:"type:text"`                      // Guardian phone number.
	Address          string `gorm:"type:text"`                      // Home address.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// CanteenAttendance marks one student as present at the canteen on one day.
type CanteenAttendance struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	StudentID uint64   `gorm:"not null;index:idx_canteen_day,unique"`           // Attending student.
	Student   *Student `gorm:"foreignKey:StudentID"`                            // Attending student record.
	Date      string   `gorm:"type:text;not null;index:idx_canteen_day,unique"` // Attendance day, ISO day string.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// LibraryLoan records a book loaned to a student.
type LibraryLoan struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	StudentID  uint64   `gorm:"not null;index"`       // Borrowing student.
	Student    *Student `gorm:"foreignKey:StudentID"` // Borrowing student record.
	BookTitle  string   `gorm:"type:text;not null"`   // Borrowed title.
	LoanDate   string   `gorm:"type:text;not null"`   // Loan day, ISO day string.
	ReturnDate string   `gorm:"type:text"`            // Return day, empty while outstanding.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
