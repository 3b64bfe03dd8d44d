package student_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/academic"
	"github.com/shule/backend/core/student"
	"github.com/shule/backend/core/user"
	"github.com/shule/backend/storage/database/inmem"
	"github.com/shule/backend/tests"
)

var now = time.Date(2024, time.March, 10, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc    *student.Service
	users  user.Repository
	acad   academic.Repository
	school testutil.School
}

func setup(t *testing.T) fixture {
	t.Cleanup(student.SetNowFunc(now))
	db := inmemdb.Open()
	f := fixture{users: inmemdb.NewUserRepository(db), acad: inmemdb.NewAcademicRepository(db)}
	f.school = testutil.SeedSchool(t, f.acad)
	f.svc = student.NewService(db, inmemdb.NewStudentRepository(db), f.users, f.acad)
	return f
}

func (f fixture) profile(t *testing.T, first, last string) student.Profile {
	t.Helper()
	p, err := f.svc.CreateProfile(context.Background(), student.NewProfile{
		FirstName: first, LastName: last, DateOfBirth: core.NewDate(2016, time.May, 2), Gender: "female",
	})
	require.NoError(t, err)
	return p
}

func (f fixture) enroll(t *testing.T, studentID string) student.Enrollment {
	t.Helper()
	e, err := f.svc.Enroll(context.Background(), student.NewEnrollment{
		StudentID: studentID, AcademicYearID: f.school.Year.ID, ClassID: f.school.Class.ID, SectionID: &f.school.Section.ID,
	})
	require.NoError(t, err)
	return e
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	fields, ok := core.ClientErrorFields(err)
	require.True(t, ok, "err = %v", err)
	return fields
}

func TestService_profiles(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, f.users, "Amani", "amani", "amani@shule.test", "", []string{user.RoleStudent}, true)

	amani, err := f.svc.CreateProfile(ctx, student.NewProfile{
		UserID: &usr.ID, FirstName: "Amani", MiddleName: "Wa", LastName: "Zawadi",
		DateOfBirth: core.NewDate(2015, time.June, 1), Gender: "female",
	})
	require.NoError(t, err)
	assert.Equal(t, "Amani Wa Zawadi", amani.FullName())
	f.profile(t, "Baraka", "Juma")

	_, err = f.svc.CreateProfile(ctx, student.NewProfile{
		UserID: &usr.ID, FirstName: "Other", LastName: "Zawadi", DateOfBirth: core.NewDate(2015, time.June, 1), Gender: "male",
	})
	assert.True(t, core.IsConflictError(err), "err = %v", err)
	assert.Contains(t, fieldsOf(t, err), "user_id")

	nobody := "nobody"
	_, err = f.svc.CreateProfile(ctx, student.NewProfile{
		UserID: &nobody, FirstName: "Ghost", LastName: "X", DateOfBirth: core.NewDate(2015, time.June, 1), Gender: "male",
	})
	assert.True(t, core.IsValidationError(err), "err = %v", err)
	assert.Contains(t, fieldsOf(t, err), "user_id")

	updated, err := f.svc.UpdateProfile(ctx, amani.ID, student.NewProfile{
		UserID: &usr.ID, FirstName: "Amani", LastName: "Zawadi", DateOfBirth: amani.DateOfBirth, Gender: "female",
	})
	require.NoError(t, err, "a profile keeps its own user")
	assert.Equal(t, "Amani Zawadi", updated.FullName())

	all, err := f.svc.ListProfiles(ctx, student.ProfileFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Juma", all[0].LastName, "ordered by last name")

	found, err := f.svc.ListProfiles(ctx, student.ProfileFilter{Search: "ZAW"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, amani.ID, found[0].ID)
}

func TestService_Enroll(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	amani := f.profile(t, "Amani", "Zawadi")
	baraka := f.profile(t, "Baraka", "Juma")
	f.enroll(t, baraka.ID)

	g2 := testutil.CreateClass(t, f.acad, "Grade 2", "G2")
	g2b, err := f.acad.CreateSection(ctx, academic.Section{ClassID: g2.ID, Name: "B", Capacity: 30, IsActive: true, CreatedAt: now})
	require.NoError(t, err)

	school := f.school
	tests := []struct {
		name      string
		ne        student.NewEnrollment
		wantField string
		conflict  bool
	}{
		{name: "section of another class", ne: student.NewEnrollment{StudentID: amani.ID, AcademicYearID: school.Year.ID, ClassID: school.Class.ID, SectionID: &g2b.ID}, wantField: "section_id"},
		{name: "unknown class", ne: student.NewEnrollment{StudentID: amani.ID, AcademicYearID: school.Year.ID, ClassID: "nope"}, wantField: "class_id"},
		{name: "unknown year", ne: student.NewEnrollment{StudentID: amani.ID, AcademicYearID: "nope", ClassID: school.Class.ID}, wantField: "academic_year_id"},
		{name: "unknown student", ne: student.NewEnrollment{StudentID: "nope", AcademicYearID: school.Year.ID, ClassID: school.Class.ID}, wantField: "student_id"},
		{name: "second enrollment in the year", ne: student.NewEnrollment{StudentID: baraka.ID, AcademicYearID: school.Year.ID, ClassID: g2.ID}, wantField: "academic_year_id", conflict: true},
		{name: "whole class", ne: student.NewEnrollment{StudentID: amani.ID, AcademicYearID: school.Year.ID, ClassID: g2.ID}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, err := f.svc.Enroll(ctx, tc.ne)
			if tc.wantField == "" {
				require.NoError(t, err)
				assert.True(t, e.IsActive)
				assert.Nil(t, e.SectionID)
				return
			}
			assert.Equal(t, tc.conflict, core.IsConflictError(err), "err = %v", err)
			assert.Contains(t, fieldsOf(t, err), tc.wantField)
		})
	}

	enrollments, err := f.svc.StudentEnrollments(ctx, amani.ID)
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, g2.ID, enrollments[0].ClassID)

	_, err = f.svc.StudentEnrollments(ctx, "nope")
	assert.True(t, core.IsNotFound(err), "err = %v", err)
}

func TestService_attendance(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	term := f.school.Term
	today := core.DateOf(now)
	teacher := core.StringPtr("teacher-1")

	amani, baraka, chiku := f.profile(t, "Amani", "Zawadi"), f.profile(t, "Baraka", "Juma"), f.profile(t, "Chiku", "Ali")
	amaniE, barakaE, chikuE := f.enroll(t, amani.ID), f.enroll(t, baraka.ID), f.enroll(t, chiku.ID)
	inactive := false
	_, err := f.svc.UpdateEnrollment(ctx, chikuE.ID, student.NewEnrollment{
		StudentID: chiku.ID, AcademicYearID: f.school.Year.ID, ClassID: f.school.Class.ID, IsActive: &inactive,
	})
	require.NoError(t, err)

	year2025, err := f.acad.CreateAcademicYear(ctx, academic.AcademicYear{
		Name: "2025", StartDate: core.NewDate(2025, time.January, 6), EndDate: core.NewDate(2025, time.November, 28), CreatedAt: now,
	})
	require.NoError(t, err)
	nextTerm := testutil.CreateTerm(t, f.acad, year2025.ID, "Term 1", core.NewDate(2025, time.January, 6), core.NewDate(2025, time.April, 4))

	a, err := f.svc.MarkAttendance(ctx, student.NewAttendance{EnrollmentID: amaniE.ID, TermID: term.ID, Date: today, Status: student.Present}, teacher)
	require.NoError(t, err)
	assert.Equal(t, amani.ID, a.StudentID)
	assert.Equal(t, f.school.Year.ID, a.AcademicYearID)
	assert.Equal(t, f.school.Class.ID, a.ClassID)
	require.NotNil(t, a.SectionID)
	assert.Equal(t, f.school.Section.ID, *a.SectionID)
	assert.Equal(t, teacher, a.MarkedBy)

	tests := []struct {
		name      string
		na        student.NewAttendance
		wantField string
	}{
		{name: "same day twice", na: student.NewAttendance{EnrollmentID: amaniE.ID, TermID: term.ID, Date: today, Status: student.Late}, wantField: "date"},
		{name: "term of another year", na: student.NewAttendance{EnrollmentID: barakaE.ID, TermID: nextTerm.ID, Date: core.NewDate(2025, time.February, 3), Status: student.Present}, wantField: "term_id"},
		{name: "outside the term", na: student.NewAttendance{EnrollmentID: barakaE.ID, TermID: term.ID, Date: core.NewDate(2024, time.May, 6), Status: student.Present}, wantField: "date"},
		{name: "inactive enrollment", na: student.NewAttendance{EnrollmentID: chikuE.ID, TermID: term.ID, Date: today, Status: student.Present}, wantField: "enrollment_id"},
		{name: "unknown enrollment", na: student.NewAttendance{EnrollmentID: "nope", TermID: term.ID, Date: today, Status: student.Present}, wantField: "enrollment_id"},
		{name: "unknown term", na: student.NewAttendance{EnrollmentID: barakaE.ID, TermID: "nope", Date: today, Status: student.Present}, wantField: "term_id"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.MarkAttendance(ctx, tc.na, teacher)
			assert.Contains(t, fieldsOf(t, err), tc.wantField)
		})
	}

	updated, err := f.svc.UpdateAttendance(ctx, a.ID, student.NewAttendance{EnrollmentID: amaniE.ID, TermID: term.ID, Date: today, Status: student.Late, Remarks: "bus"})
	require.NoError(t, err, "a record does not clash with itself")
	assert.Equal(t, student.Late, updated.Status)
	assert.Equal(t, teacher, updated.MarkedBy, "the marker is kept")

	validate := func(na *student.NewAttendance) error {
		if na.Status == "" {
			return core.NewFieldError("status", "status is a required field")
		}
		return nil
	}
	res, err := f.svc.BulkMarkAttendance(ctx, []student.NewAttendance{
		{EnrollmentID: barakaE.ID, TermID: term.ID, Date: today, Status: student.Absent},
		{EnrollmentID: amaniE.ID, TermID: term.ID, Date: today, Status: student.Present},
		{EnrollmentID: barakaE.ID, TermID: term.ID, Date: today.AddDays(-1)},
		{EnrollmentID: amaniE.ID, TermID: term.ID, Date: today.AddDays(-1), Status: student.Excused},
	}, validate, teacher)
	require.NoError(t, err)
	assert.Equal(t, student.BulkSummary{Total: 4, Created: 2, Failed: 2}, res.Summary)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, 1, res.Errors[0].Index)
	assert.Contains(t, res.Errors[0].Errors, "date")
	assert.Equal(t, 2, res.Errors[1].Index)
	assert.Contains(t, res.Errors[1].Errors, "status")

	_, err = f.svc.BulkMarkAttendance(ctx, nil, validate, teacher)
	assert.True(t, core.IsValidationError(err))

	register, err := f.svc.ClassAttendance(ctx, f.school.Class.ID, &today)
	require.NoError(t, err)
	assert.Len(t, register, 2)
	_, err = f.svc.ClassAttendance(ctx, f.school.Class.ID, nil)
	assert.True(t, core.IsValidationError(err))

	history, err := f.svc.StudentAttendance(ctx, amani.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Date.Equal(today), "latest first")

	summary, err := f.svc.AttendanceSummary(ctx, student.AttendanceFilter{TermID: term.ID, ClassID: f.school.Class.ID})
	require.NoError(t, err)
	assert.Equal(t, student.AttendanceSummary{
		TotalStudents: 2,
		TotalDays:     2,
		ByStatus: []student.StatusCount{
			{Status: student.Absent, Count: 1},
			{Status: student.Excused, Count: 1},
			{Status: student.Late, Count: 1},
		},
	}, summary)
}
