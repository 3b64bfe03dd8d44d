package echoapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/student"
	"github.com/shule/backend/core/user"
)

func Test_studentApi(t *testing.T) {
	app := setup(t)
	admin := app.token(t, app.user(t, "admin", user.RoleAdmin))
	teacherUsr := app.user(t, "teacher", user.RoleTeacher)
	teacher := app.token(t, teacherUsr)
	s := app.school
	day := core.NewDate(2024, time.March, 4)

	rec := app.do(t, http.MethodPost, "/v1/students", admin, student.NewProfile{FirstName: "Amani", Gender: "female"})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, errorFields(t, rec), "last_name")

	rec = app.do(t, http.MethodPost, "/v1/students", admin, student.NewProfile{
		FirstName: " Amani ", LastName: "Zawadi", DateOfBirth: core.NewDate(2016, time.May, 2), Gender: "Female",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var amani student.Profile
	decode(t, rec, &amani)
	assert.Equal(t, "Amani", amani.FirstName)
	assert.Equal(t, "female", amani.Gender)

	rec = app.do(t, http.MethodPost, "/v1/enrollments", admin, student.NewEnrollment{
		StudentID: amani.ID, AcademicYearID: s.Year.ID, ClassID: s.Class.ID, SectionID: &s.Section.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var enrollment student.Enrollment
	decode(t, rec, &enrollment)

	rec = app.do(t, http.MethodPost, "/v1/enrollments", admin, student.NewEnrollment{
		StudentID: amani.ID, AcademicYearID: s.Year.ID, ClassID: s.Class.ID,
	})
	assert.Equal(t, http.StatusConflict, rec.Code, "one enrollment per year")

	rec = app.do(t, http.MethodPost, "/v1/attendance", teacher, student.NewAttendance{
		EnrollmentID: enrollment.ID, TermID: s.Term.ID, Date: day, Status: student.Present,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var a student.Attendance
	decode(t, rec, &a)
	assert.Equal(t, amani.ID, a.StudentID)
	assert.Equal(t, s.Class.ID, a.ClassID)
	require.NotNil(t, a.MarkedBy)
	assert.Equal(t, teacherUsr.ID, *a.MarkedBy)

	rec = app.do(t, http.MethodPost, "/v1/attendance", teacher, student.NewAttendance{
		EnrollmentID: enrollment.ID, TermID: s.Term.ID, Date: day, Status: student.Late,
	})
	assert.Equal(t, http.StatusConflict, rec.Code, "one record per student and day")

	t.Run("bulk", func(t *testing.T) {
		tests := []struct {
			name        string
			records     []student.NewAttendance
			wantCode    int
			wantCreated int
			wantFailed  int
		}{
			{name: "empty batch", records: []student.NewAttendance{}, wantCode: http.StatusBadRequest},
			{
				name: "partial success",
				records: []student.NewAttendance{
					{EnrollmentID: enrollment.ID, TermID: s.Term.ID, Date: day.AddDays(1), Status: student.Absent},
					{EnrollmentID: enrollment.ID, TermID: s.Term.ID, Date: day.AddDays(2), Status: "asleep"},
					{EnrollmentID: "nobody", TermID: s.Term.ID, Date: day, Status: student.Present},
				},
				wantCode:    http.StatusCreated,
				wantCreated: 1,
				wantFailed:  2,
			},
		}
		for _, tc := range tests {
			tc := tc
			t.Run(tc.name, func(t *testing.T) {
				rec := app.do(t, http.MethodPost, "/v1/attendance/bulk", teacher, bulkRegisterRequest{Records: tc.records})
				require.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
				if len(tc.records) == 0 {
					assert.Contains(t, errorFields(t, rec), "attendances")
					return
				}
				var res student.BulkAttendanceResult
				decode(t, rec, &res)
				assert.Equal(t, student.BulkSummary{
					Total: len(tc.records), Created: tc.wantCreated, Failed: tc.wantFailed,
				}, res.Summary)
			})
		}
	})

	rec = app.do(t, http.MethodGet, "/v1/attendance/class?class_id="+s.Class.ID, teacher, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "the day is required")

	rec = app.do(t, http.MethodGet, "/v1/attendance/class?class_id="+s.Class.ID+"&date=2024-03-04", teacher, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var register []student.Attendance
	decode(t, rec, &register)
	assert.Len(t, register, 1)

	rec = app.do(t, http.MethodGet, "/v1/attendance/summary?term_id="+s.Term.ID, teacher, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summary student.AttendanceSummary
	decode(t, rec, &summary)
	assert.Equal(t, 1, summary.TotalStudents)
	assert.Equal(t, 2, summary.TotalDays)

	rec = app.do(t, http.MethodGet, "/v1/students/"+amani.ID+"/attendance?from=2024-03-05", teacher, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var history []student.Attendance
	decode(t, rec, &history)
	require.Len(t, history, 1)
	assert.Equal(t, student.Absent, history[0].Status)
}
