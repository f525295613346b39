package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/bazasystems/madaris/internal/db"
	"github.com/bazasystems/madaris/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// StudentHandler handles the pupil record endpoints backing the desktop
// client's online mode. The same mutations can arrive later through the
// offline sync queue.
type StudentHandler struct {
	db *gorm.DB
}

// NewStudentHandler constructs a StudentHandler.
func NewStudentHandler(conn *gorm.DB) *StudentHandler {
	return &StudentHandler{db: conn}
}

// studentBody is the JSON shape shared by create and update.
type studentBody struct {
	StudentIDNumber  string `json:"student_id_number"`
	LastName         string `json:"last_name"`
	FirstName        string `json:"first_name"`
	Gender           string `json:"gender"`
	DateOfBirth      string `json:"date_of_birth"`
	PlaceOfBirth     string `json:"place_of_birth"`
	AcademicYear     string `json:"academic_year"`
	ClassName        string `json:"class_name"`
	AttendanceSystem string `json:"attendance_system"`
	EnrollmentNumber string `json:"enrollment_number"`
	GuardianName     string `json:"guardian_name"`
	GuardianPhone    string `json:"guardian_phone"`
	Address          string `json:"address"`
}

// studentJSON renders one student row.
func studentJSON(student *models.Student) gin.H {
	return gin.H{
		"id":                student.ID,
		"student_id_number": student.StudentIDNumber,
		"last_name":         student.LastName,
		"first_name":        student.FirstName,
		"gender":            student.Gender,
		"date_of_birth":     student.DateOfBirth,
		"place_of_birth":    student.PlaceOfBirth,
		"academic_year":     student.AcademicYear,
		"class_name":        student.ClassName,
		"attendance_system": student.AttendanceSystem,
		"enrollment_number": student.EnrollmentNumber,
		"guardian_name":     student.GuardianName,
		"guardian_phone":    student.GuardianPhone,
		"address":           student.Address,
	}
}

// List returns students, optionally filtered by a search term over name and
// identifier.
func (h *StudentHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&models.Student{})
	if term := strings.TrimSpace(c.Query("search")); term != "" {
		pattern := db.NormalizeLikePattern(h.db, "%"+term+"%")
		query = query.Where(
			db.CaseInsensitiveLikeExpr(h.db, "student_id_number")+
				" OR "+db.CaseInsensitiveLikeExpr(h.db, "last_name")+
				" OR "+db.CaseInsensitiveLikeExpr(h.db, "first_name"),
			pattern, pattern, pattern,
		)
	}
	if class := strings.TrimSpace(c.Query("class_name")); class != "" {
		query = query.Where("class_name = ?", class)
	}

	var students []models.Student
	if errFind := query.Order("last_name ASC, first_name ASC").Find(&students).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]gin.H, 0, len(students))
	for i := range students {
		out = append(out, studentJSON(&students[i]))
	}
	c.JSON(http.StatusOK, out)
}

// Get returns one student by id.
func (h *StudentHandler) Get(c *gin.Context) {
	student, ok := h.loadStudent(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, studentJSON(student))
}

// Create adds a student record.
func (h *StudentHandler) Create(c *gin.Context) {
	var body studentBody
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.StudentIDNumber) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing student_id_number"})
		return
	}

	student := models.Student{}
	applyStudentBody(&student, &body)
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&student).Error; errCreate != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "create failed, identifier may already exist"})
		return
	}
	c.JSON(http.StatusCreated, studentJSON(&student))
}

// Update overwrites a student's fields.
func (h *StudentHandler) Update(c *gin.Context) {
	student, ok := h.loadStudent(c)
	if !ok {
		return
	}
	var body studentBody
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	applyStudentBody(student, &body)
	if errSave := h.db.WithContext(c.Request.Context()).Save(student).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, studentJSON(student))
}

// Delete removes one student.
func (h *StudentHandler) Delete(c *gin.Context) {
	student, ok := h.loadStudent(c)
	if !ok {
		return
	}
	if errDelete := h.db.WithContext(c.Request.Context()).Delete(&models.Student{}, student.ID).Error; errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// bulkDeleteRequest defines the request body for mass deletion.
type bulkDeleteRequest struct {
	IDs []uint64 `json:"ids"`
}

// BulkDelete removes several students in one call.
func (h *StudentHandler) BulkDelete(c *gin.Context) {
	var body bulkDeleteRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(body.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing ids"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Delete(&models.Student{}, body.IDs)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": res.RowsAffected})
}

// loadStudent resolves the :id route parameter.
func (h *StudentHandler) loadStudent(c *gin.Context) (*models.Student, bool) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return nil, false
	}
	var student models.Student
	if errFind := h.db.WithContext(c.Request.Context()).First(&student, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return nil, false
	}
	return &student, true
}

// applyStudentBody copies the request fields onto the record.
func applyStudentBody(student *models.Student, body *studentBody) {
	student.StudentIDNumber = strings.TrimSpace(body.StudentIDNumber)
	student.LastName = strings.TrimSpace(body.LastName)
	student.FirstName = strings.TrimSpace(body.FirstName)
	student.Gender = body.Gender
	student.DateOfBirth = body.DateOfBirth
	student.PlaceOfBirth = body.PlaceOfBirth
	student.AcademicYear = body.AcademicYear
	student.ClassName = body.ClassName
	student.AttendanceSystem = body.AttendanceSystem
	student.EnrollmentNumber = body.EnrollmentNumber
	student.GuardianName = body.GuardianName
	student.GuardianPhone = body.GuardianPhone
	student.Address = body.Address
}
