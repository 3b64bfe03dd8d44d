package academic

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shule/backend/core"
)

type AcademicYear struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	StartDate core.Date `json:"start_date" db:"start_date"`
	EndDate   core.Date `json:"end_date" db:"end_date"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Contains reports whether d falls within the year (bounds included).
func (y AcademicYear) Contains(d core.Date) bool {
	return d.Between(y.StartDate, y.EndDate)
}

type Term struct {
	ID             string    `json:"id" db:"id"`
	AcademicYearID string    `json:"academic_year_id" db:"academic_year_id"`
	Name           string    `json:"name" db:"name"`
	StartDate      core.Date `json:"start_date" db:"start_date"`
	EndDate        core.Date `json:"end_date" db:"end_date"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

type SchoolClass struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Code      string    `json:"code" db:"code"`
	Level     int       `json:"level" db:"level"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Section struct {
	ID        string    `json:"id" db:"id"`
	ClassID   string    `json:"class_id" db:"class_id"`
	Name      string    `json:"name" db:"name"`
	Capacity  int       `json:"capacity" db:"capacity"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Subject struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Code      string    `json:"code" db:"code"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TeacherAssignment is the standing link between a teacher, a subject, a class (and optional section) for a year.
type TeacherAssignment struct {
	ID             string    `json:"id" db:"id"`
	TeacherID      string    `json:"teacher_id" db:"teacher_id"`
	SubjectID      string    `json:"subject_id" db:"subject_id"`
	ClassID        string    `json:"class_id" db:"class_id"`
	SectionID      *string   `json:"section_id" db:"section_id"`
	AcademicYearID string    `json:"academic_year_id" db:"academic_year_id"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Matches reports whether the assignment teaches subjectID to the given class/section/year.
func (a TeacherAssignment) Matches(subjectID, classID string, sectionID *string, yearID string) bool {
	return a.SubjectID == subjectID &&
		a.ClassID == classID &&
		core.SameStringPtr(a.SectionID, sectionID) &&
		a.AcademicYearID == yearID
}

type NewAcademicYear struct {
	Name      string    `json:"name" validate:"required,max=50"`
	StartDate core.Date `json:"start_date" validate:"required"`
	EndDate   core.Date `json:"end_date" validate:"required"`
	IsActive  bool      `json:"is_active"`
}

func (ny *NewAcademicYear) Validate(validate *validator.Validate) error {
	ny.Name = core.CleanString(ny.Name)
	if err := validate.Struct(ny); err != nil {
		return err
	}
	return ValidateDateRange(ny.StartDate, ny.EndDate)
}

type NewTerm struct {
	AcademicYearID string    `json:"academic_year_id" validate:"required"`
	Name           string    `json:"name" validate:"required,max=50"`
	StartDate      core.Date `json:"start_date" validate:"required"`
	EndDate        core.Date `json:"end_date" validate:"required"`
	IsActive       bool      `json:"is_active"`
}

func (nt *NewTerm) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	if err := validate.Struct(nt); err != nil {
		return err
	}
	return ValidateDateRange(nt.StartDate, nt.EndDate)
}

type NewSchoolClass struct {
	Name  string `json:"name" validate:"required,max=50"`
	Code  string `json:"code" validate:"required,max=20,code"`
	Level int    `json:"level" validate:"gte=0"`
}

func (nc *NewSchoolClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Code = core.CleanString(nc.Code)
	return validate.Struct(nc)
}

type NewSection struct {
	ClassID  string `json:"class_id" validate:"required"`
	Name     string `json:"name" validate:"required,max=50"`
	Capacity int    `json:"capacity" validate:"gte=0"`
}

func (ns *NewSection) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	return validate.Struct(ns)
}

type NewSubject struct {
	Name string `json:"name" validate:"required,max=100"`
	Code string `json:"code" validate:"required,max=20,code"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Code = core.CleanString(ns.Code)
	return validate.Struct(ns)
}

type NewTeacherAssignment struct {
	TeacherID      string  `json:"teacher_id" validate:"required"`
	SubjectID      string  `json:"subject_id" validate:"required"`
	ClassID        string  `json:"class_id" validate:"required"`
	SectionID      *string `json:"section_id"`
	AcademicYearID string  `json:"academic_year_id" validate:"required"`
}

func (na *NewTeacherAssignment) Validate(validate *validator.Validate) error {
	if na.SectionID != nil {
		na.SectionID = core.StringPtr(*na.SectionID)
	}
	return validate.Struct(na)
}

type AssignmentFilter struct {
	TeacherID      string `query:"teacher_id"`
	SubjectID      string `query:"subject_id"`
	ClassID        string `query:"class_id"`
	AcademicYearID string `query:"academic_year_id"`
	ActiveOnly     bool   `query:"active"`
}

// ValidateDateRange rejects inverted or empty ranges.
func ValidateDateRange(start, end core.Date) error {
	if !start.Before(end) {
		return core.NewFieldError("end_date", "end date must be later than start date")
	}
	return nil
}
