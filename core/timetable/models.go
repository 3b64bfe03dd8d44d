package timetable

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shule/backend/core"
)

type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// Index returns the position of d in the week (monday = 0), -1 if d is unknown.
func (d Weekday) Index() int {
	for i, wd := range Weekdays {
		if wd == d {
			return i
		}
	}
	return -1
}

func (d Weekday) IsValid() bool { return d.Index() >= 0 }

type TimeSlot struct {
	ID        string         `json:"id" db:"id"`
	Name      string         `json:"name" db:"name"`
	Day       Weekday        `json:"day_of_week" db:"day_of_week"`
	StartTime core.ClockTime `json:"start_time" db:"start_time"`
	EndTime   core.ClockTime `json:"end_time" db:"end_time"`
	IsBreak   bool           `json:"is_break" db:"is_break"`
	Order     int            `json:"order" db:"slot_order"`
	IsActive  bool           `json:"is_active" db:"is_active"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// Overlaps reports whether the half-open intervals [start,end) of s and o intersect.
func (s TimeSlot) Overlaps(o TimeSlot) bool {
	return o.StartTime < s.EndTime && o.EndTime > s.StartTime
}

type Timetable struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	ClassID        string    `json:"class_id" db:"class_id"`
	SectionID      *string   `json:"section_id" db:"section_id"`
	AcademicYearID string    `json:"academic_year_id" db:"academic_year_id"`
	TermID         string    `json:"term_id" db:"term_id"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedBy      *string   `json:"created_by" db:"created_by"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

type Entry struct {
	ID                  string    `json:"id" db:"id"`
	TimetableID         string    `json:"timetable_id" db:"timetable_id"`
	TimeSlotID          string    `json:"time_slot_id" db:"time_slot_id"`
	SubjectID           *string   `json:"subject_id" db:"subject_id"`
	TeacherAssignmentID *string   `json:"teacher_assignment_id" db:"teacher_assignment_id"`
	Room                string    `json:"room" db:"room"`
	Notes               string    `json:"notes" db:"notes"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// Booking is an entry of an active timetable, joined with what the conflict scan needs.
type Booking struct {
	Entry     Entry
	Timetable Timetable
	TeacherID string // teacher of Entry.TeacherAssignmentID, empty when unassigned
}

// ScheduledEntry is an entry together with its time slot, as shown in schedules.
type ScheduledEntry struct {
	Entry
	TimeSlot  TimeSlot `json:"time_slot"`
	TeacherID string   `json:"teacher_id,omitempty"`
}

type DaySchedule struct {
	Day   Weekday    `json:"day"`
	Slots []TimeSlot `json:"slots"`
}

type TeacherDaySchedule struct {
	Day     Weekday          `json:"day"`
	Entries []ScheduledEntry `json:"entries"`
}

// NewTimeSlot holds what is needed to create or replace a TimeSlot.
type NewTimeSlot struct {
	Name      string          `json:"name" validate:"required,max=50"`
	Day       Weekday         `json:"day_of_week" validate:"required,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	StartTime *core.ClockTime `json:"start_time" validate:"required"`
	EndTime   *core.ClockTime `json:"end_time" validate:"required"`
	IsBreak   bool            `json:"is_break"`
	Order     int             `json:"order" validate:"gte=0"`
	IsActive  *bool           `json:"is_active"`
}

func (ns *NewTimeSlot) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Day = Weekday(core.CleanString(string(ns.Day), true /* lower */))
	return validate.Struct(ns)
}

// NewTimetable holds what is needed to create or replace a Timetable.
type NewTimetable struct {
	Name           string  `json:"name" validate:"required,max=100"`
	ClassID        string  `json:"class_id" validate:"required"`
	SectionID      *string `json:"section_id"`
	AcademicYearID string  `json:"academic_year_id" validate:"required"`
	TermID         string  `json:"term_id" validate:"required"`
	IsActive       *bool   `json:"is_active"`
}

func (nt *NewTimetable) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	if nt.SectionID != nil {
		nt.SectionID = core.StringPtr(*nt.SectionID)
	}
	return validate.Struct(nt)
}

type DuplicateTimetable struct {
	Name           string `json:"name" validate:"max=100"`
	AcademicYearID string `json:"academic_year_id" validate:"required"`
	TermID         string `json:"term_id" validate:"required"`
}

func (dt *DuplicateTimetable) Validate(validate *validator.Validate) error {
	dt.Name = core.CleanString(dt.Name)
	return validate.Struct(dt)
}

type DuplicateResult struct {
	Timetable Timetable `json:"timetable"`
	Copied    int       `json:"copied"`
	// Unassigned lists the copied entries whose teacher assignment could not be carried over.
	Unassigned []string `json:"unassigned"`
}

// NewEntry holds what is needed to create or replace an Entry.
type NewEntry struct {
	TimetableID         string  `json:"timetable_id" validate:"required"`
	TimeSlotID          string  `json:"time_slot_id" validate:"required"`
	SubjectID           *string `json:"subject_id"`
	TeacherAssignmentID *string `json:"teacher_assignment_id"`
	Room                string  `json:"room" validate:"max=50"`
	Notes               string  `json:"notes"`
}

func (ne *NewEntry) Validate(validate *validator.Validate) error {
	if ne.SubjectID != nil {
		ne.SubjectID = core.StringPtr(*ne.SubjectID)
	}
	if ne.TeacherAssignmentID != nil {
		ne.TeacherAssignmentID = core.StringPtr(*ne.TeacherAssignmentID)
	}
	ne.Room = core.CleanString(ne.Room)
	ne.Notes = core.CleanString(ne.Notes)
	return validate.Struct(ne)
}

type BulkEntryError struct {
	Index  int               `json:"index"`
	Data   NewEntry          `json:"data"`
	Errors map[string]string `json:"errors"`
}

type BulkSummary struct {
	Total   int `json:"total"`
	Created int `json:"created"`
	Failed  int `json:"failed"`
}

type BulkResult struct {
	Created []Entry          `json:"created"`
	Errors  []BulkEntryError `json:"errors"`
	Summary BulkSummary      `json:"summary"`
}

type SlotFilter struct {
	Day        Weekday `query:"day_of_week"`
	ActiveOnly bool    `query:"active"`
	IsBreak    *bool   `query:"is_break"`
}

type TimetableFilter struct {
	ClassID        string `query:"class_id"`
	SectionID      string `query:"section_id"`
	AcademicYearID string `query:"academic_year_id"`
	TermID         string `query:"term_id"`
	IsActive       *bool  `query:"is_active"`
	// TeacherID keeps timetables having at least one entry taught by the teacher.
	TeacherID string `query:"teacher_id"`
}
