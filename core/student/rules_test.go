package student

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/academic"
)

func TestCheckAttendanceTerm(t *testing.T) {
	e := Enrollment{AcademicYearID: "y2024"}
	term := academic.Term{AcademicYearID: "y2024", StartDate: core.NewDate(2024, time.January, 8), EndDate: core.NewDate(2024, time.April, 5)}

	tests := []struct {
		name      string
		term      academic.Term
		date      core.Date
		wantField string
	}{
		{name: "first day", term: term, date: term.StartDate},
		{name: "last day", term: term, date: term.EndDate},
		{name: "before the term", term: term, date: core.NewDate(2024, time.January, 7), wantField: "date"},
		{name: "after the term", term: term, date: core.NewDate(2024, time.April, 6), wantField: "date"},
		{name: "other year", term: academic.Term{AcademicYearID: "y2025", StartDate: term.StartDate, EndDate: term.EndDate}, date: term.StartDate, wantField: "term_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckAttendanceTerm(e, tt.term, tt.date)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			fields, ok := core.ClientErrorFields(err)
			assert.True(t, ok, "err = %v", err)
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func TestSummarize(t *testing.T) {
	day1, day2 := core.NewDate(2024, time.March, 4), core.NewDate(2024, time.March, 5)
	got := Summarize([]Attendance{
		{StudentID: "a", Date: day1, Status: Present},
		{StudentID: "b", Date: day1, Status: Late},
		{StudentID: "a", Date: day2, Status: Present},
	})
	assert.Equal(t, AttendanceSummary{
		TotalStudents: 2,
		TotalDays:     2,
		ByStatus:      []StatusCount{{Status: Late, Count: 1}, {Status: Present, Count: 2}},
	}, got)

	empty := Summarize(nil)
	assert.Equal(t, 0, empty.TotalStudents)
	assert.Empty(t, empty.ByStatus)
}

func TestAttendance_ApplyEnrollment(t *testing.T) {
	section := "s1"
	a := Attendance{ID: "a1", TermID: "t1"}
	a.ApplyEnrollment(Enrollment{ID: "e1", StudentID: "st1", AcademicYearID: "y1", ClassID: "c1", SectionID: &section})
	assert.Equal(t, Attendance{
		ID: "a1", TermID: "t1", EnrollmentID: "e1", StudentID: "st1", AcademicYearID: "y1", ClassID: "c1", SectionID: &section,
	}, a)
}
