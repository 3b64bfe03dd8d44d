package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/academic"
)

func slot(id string, day Weekday, start, end string, active bool) TimeSlot {
	s, _ := core.ParseClockTime(start)
	e, _ := core.ParseClockTime(end)
	return TimeSlot{ID: id, Name: id, Day: day, StartTime: s, EndTime: e, IsActive: active}
}

func TestValidateTimeSlot(t *testing.T) {
	siblings := []TimeSlot{
		slot("p1", Monday, "08:00", "09:00", true),
		slot("p2", Monday, "10:00", "11:00", false),
		slot("p3", Tuesday, "08:00", "09:00", true),
	}

	tests := []struct {
		name         string
		slot         TimeSlot
		wantField    string
		wantConflict string // id of the clashing sibling
	}{
		{name: "inverted range", slot: slot("", Monday, "09:00", "08:00", true), wantField: "end_time"},
		{name: "empty range", slot: slot("", Monday, "09:00", "09:00", true), wantField: "end_time"},
		{name: "inactive inverted range", slot: slot("", Monday, "09:00", "08:00", false), wantField: "end_time"},
		{name: "partial overlap", slot: slot("", Monday, "08:30", "09:30", true), wantConflict: "p1"},
		{name: "contained", slot: slot("", Monday, "08:15", "08:45", true), wantConflict: "p1"},
		{name: "containing", slot: slot("", Monday, "07:00", "10:00", true), wantConflict: "p1"},
		{name: "touching end", slot: slot("", Monday, "09:00", "10:00", true)},
		{name: "touching start", slot: slot("", Monday, "07:00", "08:00", true)},
		{name: "overlaps inactive sibling", slot: slot("", Monday, "10:30", "11:30", true)},
		{name: "inactive candidate overlaps", slot: slot("", Monday, "08:30", "09:30", false)},
		{name: "other day", slot: slot("", Wednesday, "08:30", "09:30", true)},
		{name: "update of itself", slot: slot("p1", Monday, "08:00", "09:30", true)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTimeSlot(tt.slot, siblings)
			switch {
			case tt.wantField != "":
				require.True(t, core.IsValidationError(err), "got %v", err)
				assert.Contains(t, err.(*core.ValidationError).FieldMap(), tt.wantField)
			case tt.wantConflict != "":
				require.True(t, core.IsConflictError(err), "got %v", err)
				assert.Equal(t, tt.wantConflict, err.(*core.ConflictError).ID)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTimetable(t *testing.T) {
	section := "sec-a"
	tt := Timetable{ClassID: "c1", SectionID: &section, AcademicYearID: "y1", TermID: "t1"}

	tests := []struct {
		name      string
		section   *academic.Section
		term      academic.Term
		wantField string
	}{
		{name: "consistent", section: &academic.Section{ID: section, ClassID: "c1"}, term: academic.Term{ID: "t1", AcademicYearID: "y1"}},
		{name: "no section", term: academic.Term{ID: "t1", AcademicYearID: "y1"}},
		{name: "section of other class", section: &academic.Section{ID: section, ClassID: "c2"}, term: academic.Term{ID: "t1", AcademicYearID: "y1"}, wantField: "section_id"},
		{name: "term of other year", section: &academic.Section{ID: section, ClassID: "c1"}, term: academic.Term{ID: "t1", AcademicYearID: "y2"}, wantField: "term_id"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTimetable(tt, tc.section, tc.term)
			if tc.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.True(t, core.IsValidationError(err), "got %v", err)
			assert.Contains(t, err.(*core.ValidationError).FieldMap(), tc.wantField)
		})
	}
}

func TestValidateEntry(t *testing.T) {
	math, english := "math", "english"
	asgID, otherAsgID := "asg-1", "asg-2"

	period := slot("p1", Monday, "08:00", "09:00", true)
	lunch := slot("b1", Monday, "12:00", "13:00", true)
	lunch.IsBreak = true

	tt := Timetable{ID: "tt-1", Name: "Form 1", ClassID: "c1", AcademicYearID: "y1", TermID: "t1", IsActive: true}
	asg := &academic.TeacherAssignment{ID: asgID, TeacherID: "teacher-1", SubjectID: math, ClassID: "c1", AcademicYearID: "y1"}

	other := Timetable{ID: "tt-2", Name: "Form 2", ClassID: "c2", AcademicYearID: "y1", TermID: "t1", IsActive: true}
	inactive := other
	inactive.IsActive = false

	booked := func(tbl Timetable, entryID, asgID, teacherID string) Booking {
		return Booking{
			Entry:     Entry{ID: entryID, TimetableID: tbl.ID, TimeSlotID: period.ID, SubjectID: &math, TeacherAssignmentID: &asgID},
			Timetable: tbl,
			TeacherID: teacherID,
		}
	}

	tests := []struct {
		name         string
		entry        Entry
		slot         TimeSlot
		asg          *academic.TeacherAssignment
		bookings     []Booking
		wantField    string
		wantConflict bool
	}{
		{
			name:  "break without subject",
			entry: Entry{TimeSlotID: lunch.ID},
			slot:  lunch,
		},
		{
			name:      "break with subject",
			entry:     Entry{TimeSlotID: lunch.ID, SubjectID: &math},
			slot:      lunch,
			wantField: "time_slot_id",
		},
		{
			name:      "break with teacher",
			entry:     Entry{TimeSlotID: lunch.ID, TeacherAssignmentID: &asgID},
			slot:      lunch,
			wantField: "time_slot_id",
		},
		{
			name:      "period without subject",
			entry:     Entry{TimeSlotID: period.ID},
			slot:      period,
			wantField: "subject_id",
		},
		{
			name:  "period without teacher",
			entry: Entry{TimeSlotID: period.ID, SubjectID: &english},
			slot:  period,
		},
		{
			name:      "assignment for another subject",
			entry:     Entry{TimeSlotID: period.ID, SubjectID: &english, TeacherAssignmentID: &asgID},
			slot:      period,
			asg:       asg,
			wantField: "teacher_assignment_id",
		},
		{
			name:  "matching assignment",
			entry: Entry{TimeSlotID: period.ID, SubjectID: &math, TeacherAssignmentID: &asgID},
			slot:  period,
			asg:   asg,
		},
		{
			name:         "same assignment booked elsewhere",
			entry:        Entry{TimeSlotID: period.ID, SubjectID: &math, TeacherAssignmentID: &asgID},
			slot:         period,
			asg:          asg,
			bookings:     []Booking{booked(other, "e-9", asgID, "teacher-1")},
			wantConflict: true,
		},
		{
			name:         "same teacher through another assignment",
			entry:        Entry{TimeSlotID: period.ID, SubjectID: &math, TeacherAssignmentID: &asgID},
			slot:         period,
			asg:          asg,
			bookings:     []Booking{booked(other, "e-9", otherAsgID, "teacher-1")},
			wantConflict: true,
		},
		{
			name:     "other teacher in the slot",
			entry:    Entry{TimeSlotID: period.ID, SubjectID: &math, TeacherAssignmentID: &asgID},
			slot:     period,
			asg:      asg,
			bookings: []Booking{booked(other, "e-9", otherAsgID, "teacher-2")},
		},
		{
			name:     "booked in an inactive timetable",
			entry:    Entry{TimeSlotID: period.ID, SubjectID: &math, TeacherAssignmentID: &asgID},
			slot:     period,
			asg:      asg,
			bookings: []Booking{booked(inactive, "e-9", asgID, "teacher-1")},
		},
		{
			name:     "update of itself",
			entry:    Entry{ID: "e-1", TimeSlotID: period.ID, SubjectID: &math, TeacherAssignmentID: &asgID},
			slot:     period,
			asg:      asg,
			bookings: []Booking{booked(tt, "e-1", asgID, "teacher-1")},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateEntry(tc.entry, tc.slot, tt, tc.asg, tc.bookings)
			switch {
			case tc.wantField != "":
				require.True(t, core.IsValidationError(err), "got %v", err)
				assert.Contains(t, err.(*core.ValidationError).FieldMap(), tc.wantField)
			case tc.wantConflict:
				require.True(t, core.IsConflictError(err), "got %v", err)
				assert.Equal(t, "Teacher is already assigned to Form 2 at this time slot.", err.Error())
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestWeekdayIndex(t *testing.T) {
	assert.Equal(t, 0, Monday.Index())
	assert.Equal(t, 6, Sunday.Index())
	assert.Equal(t, -1, Weekday("someday").Index())
	assert.False(t, Weekday("").IsValid())
}
