package student

import (
	"sort"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/academic"
)

const (
	msgSectionClass      = "Section does not belong to the class."
	msgEnrollmentClosed  = "Enrollment is not active."
	msgTermYear          = "Term does not belong to the enrollment's academic year."
	msgDateOutsideTerm   = "Date must fall within the term."
	msgAlreadyEnrolled   = "this student is already enrolled for the academic year"
	msgUserHasProfile    = "this user already has a student profile"
	msgAttendanceMarked  = "attendance for %s is already recorded"
	msgClassDateRequired = "class_id and date are required"
)

// CheckAttendanceTerm reports whether the day can be marked against the term of enrollment e.
func CheckAttendanceTerm(e Enrollment, term academic.Term, date core.Date) error {
	if term.AcademicYearID != e.AcademicYearID {
		return core.NewFieldError("term_id", msgTermYear)
	}
	if !date.Between(term.StartDate, term.EndDate) {
		return core.NewFieldError("date", msgDateOutsideTerm)
	}
	return nil
}

// ApplyEnrollment copies the placement of e onto the record.
func (a *Attendance) ApplyEnrollment(e Enrollment) {
	a.EnrollmentID = e.ID
	a.StudentID = e.StudentID
	a.AcademicYearID = e.AcademicYearID
	a.ClassID = e.ClassID
	a.SectionID = e.SectionID
}

// Summarize counts distinct students and days, and records per status ordered by status.
func Summarize(records []Attendance) AttendanceSummary {
	students := make(map[string]struct{})
	days := make(map[string]struct{})
	counts := make(map[AttendanceStatus]int)
	for _, a := range records {
		students[a.StudentID] = struct{}{}
		days[a.Date.String()] = struct{}{}
		counts[a.Status]++
	}
	byStatus := make([]StatusCount, 0, len(counts))
	for status, n := range counts {
		byStatus = append(byStatus, StatusCount{Status: status, Count: n})
	}
	sort.Slice(byStatus, func(i, j int) bool { return byStatus[i].Status < byStatus[j].Status })
	return AttendanceSummary{TotalStudents: len(students), TotalDays: len(days), ByStatus: byStatus}
}
