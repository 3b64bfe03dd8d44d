package student

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shule/backend/core"
)

type Profile struct {
	ID          string    `json:"id" db:"id"`
	UserID      *string   `json:"user_id" db:"user_id"`
	FirstName   string    `json:"first_name" db:"first_name"`
	MiddleName  string    `json:"middle_name" db:"middle_name"`
	LastName    string    `json:"last_name" db:"last_name"`
	DateOfBirth core.Date `json:"dob" db:"dob"`
	Gender      string    `json:"gender" db:"gender"`
	Religion    string    `json:"religion" db:"religion"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

func (p Profile) FullName() string {
	return strings.Join(strings.Fields(p.FirstName+" "+p.MiddleName+" "+p.LastName), " ")
}

// Enrollment places a student in a class (and optionally a section) for one academic year.
type Enrollment struct {
	ID             string    `json:"id" db:"id"`
	StudentID      string    `json:"student_id" db:"student_id"`
	AcademicYearID string    `json:"academic_year_id" db:"academic_year_id"`
	ClassID        string    `json:"class_id" db:"class_id"`
	SectionID      *string   `json:"section_id" db:"section_id"`
	EnrolledOn     time.Time `json:"enrolled_on" db:"enrolled_on"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

type AttendanceStatus string

const (
	Present AttendanceStatus = "present"
	Absent  AttendanceStatus = "absent"
	Late    AttendanceStatus = "late"
	Excused AttendanceStatus = "excused"
)

// Attendance copies the year, class and section of its enrollment at the time it is marked.
type Attendance struct {
	ID             string           `json:"id" db:"id"`
	StudentID      string           `json:"student_id" db:"student_id"`
	EnrollmentID   string           `json:"enrollment_id" db:"enrollment_id"`
	AcademicYearID string           `json:"academic_year_id" db:"academic_year_id"`
	TermID         string           `json:"term_id" db:"term_id"`
	ClassID        string           `json:"class_id" db:"class_id"`
	SectionID      *string          `json:"section_id" db:"section_id"`
	Date           core.Date        `json:"date" db:"date"`
	Status         AttendanceStatus `json:"status" db:"status"`
	Remarks        string           `json:"remarks" db:"remarks"`
	MarkedBy       *string          `json:"marked_by" db:"marked_by"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}

type StatusCount struct {
	Status AttendanceStatus `json:"status"`
	Count  int              `json:"count"`
}

type AttendanceSummary struct {
	TotalStudents int           `json:"total_students"`
	TotalDays     int           `json:"total_days"`
	ByStatus      []StatusCount `json:"by_status"`
}

// Inputs

type NewProfile struct {
	UserID      *string   `json:"user_id"`
	FirstName   string    `json:"first_name" validate:"required,max=50"`
	MiddleName  string    `json:"middle_name" validate:"max=50"`
	LastName    string    `json:"last_name" validate:"required,max=50"`
	DateOfBirth core.Date `json:"dob" validate:"required"`
	Gender      string    `json:"gender" validate:"required,max=10"`
	Religion    string    `json:"religion" validate:"max=30"`
}

func (np *NewProfile) Validate(validate *validator.Validate) error {
	np.FirstName = core.CleanString(np.FirstName)
	np.MiddleName = core.CleanString(np.MiddleName)
	np.LastName = core.CleanString(np.LastName)
	np.Gender = core.CleanString(np.Gender, true)
	np.Religion = core.CleanString(np.Religion)
	if np.UserID != nil && *np.UserID == "" {
		np.UserID = nil
	}
	return validate.Struct(np)
}

type NewEnrollment struct {
	StudentID      string  `json:"student_id" validate:"required"`
	AcademicYearID string  `json:"academic_year_id" validate:"required"`
	ClassID        string  `json:"class_id" validate:"required"`
	SectionID      *string `json:"section_id"`
	IsActive       *bool   `json:"is_active"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	if ne.SectionID != nil && *ne.SectionID == "" {
		ne.SectionID = nil
	}
	return validate.Struct(ne)
}

type NewAttendance struct {
	EnrollmentID string           `json:"enrollment_id" validate:"required"`
	TermID       string           `json:"term_id" validate:"required"`
	Date         core.Date        `json:"date" validate:"required"`
	Status       AttendanceStatus `json:"status" validate:"required,oneof=present absent late excused"`
	Remarks      string           `json:"remarks"`
}

func (na *NewAttendance) Validate(validate *validator.Validate) error {
	na.Remarks = core.CleanString(na.Remarks)
	return validate.Struct(na)
}

// Filters

type ProfileFilter struct {
	// Search matches first or last names, case-insensitively.
	Search string `query:"search"`
}

type EnrollmentFilter struct {
	StudentID      string `query:"student_id"`
	AcademicYearID string `query:"academic_year_id"`
	ClassID        string `query:"class_id"`
	SectionID      string `query:"section_id"`
	ActiveOnly     bool   `query:"active"`
}

type AttendanceFilter struct {
	StudentID      string           `query:"student_id"`
	EnrollmentID   string           `query:"enrollment_id"`
	AcademicYearID string           `query:"academic_year_id"`
	TermID         string           `query:"term_id"`
	ClassID        string           `query:"class_id"`
	SectionID      string           `query:"section_id"`
	Date           *core.Date       `query:"date"`
	From           *core.Date       `query:"from"`
	To             *core.Date       `query:"to"`
	Status         AttendanceStatus `query:"status"`
}

// Bulk attendance

type BulkAttendanceError struct {
	Index  int               `json:"index"`
	Data   NewAttendance     `json:"data"`
	Errors map[string]string `json:"errors"`
}

type BulkSummary struct {
	Total   int `json:"total"`
	Created int `json:"created"`
	Failed  int `json:"failed"`
}

type BulkAttendanceResult struct {
	Created []Attendance          `json:"created"`
	Errors  []BulkAttendanceError `json:"errors"`
	Summary BulkSummary           `json:"summary"`
}
