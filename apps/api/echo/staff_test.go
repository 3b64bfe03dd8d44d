package echoapi

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/staff"
	"github.com/shule/backend/core/user"
)

func Test_staffApi(t *testing.T) {
	app := setup(t)
	hrUsr := app.user(t, "hr", user.RoleHR)
	hr := app.token(t, hrUsr)
	teacher := app.user(t, "teacher", user.RoleTeacher)
	s := app.school

	newProfile := staff.NewProfile{
		UserID:        "nobody",
		Position:      "Teacher",
		Department:    "Sciences",
		DateOfJoining: core.NewDate(2024, time.January, 15),
		BasicSalary:   decimal.NewFromInt(1000),
	}
	rec := app.do(t, http.MethodPost, "/v1/staff", hr, newProfile)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, errorFields(t, rec), "user_id")

	newProfile.UserID = teacher.ID
	rec = app.do(t, http.MethodPost, "/v1/staff", hr, newProfile)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var profile staff.Profile
	decode(t, rec, &profile)
	assert.True(t, strings.HasPrefix(profile.EmployeeID, "EMP20240115"), profile.EmployeeID)
	assert.Equal(t, staff.FullTime, profile.EmploymentType)

	rec = app.do(t, http.MethodPost, "/v1/staff", hr, newProfile)
	assert.Equal(t, http.StatusConflict, rec.Code, "one profile per user")

	t.Run("leaves", func(t *testing.T) {
		nl := staff.NewLeave{
			StaffID:   profile.ID,
			LeaveType: staff.LeaveSick,
			StartDate: core.NewDate(2024, time.March, 13),
			EndDate:   core.NewDate(2024, time.March, 11),
			Reason:    "flu",
		}
		rec := app.do(t, http.MethodPost, "/v1/leaves", hr, nl)
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.Contains(t, errorFields(t, rec), "end_date")

		nl.StartDate, nl.EndDate = nl.EndDate, nl.StartDate
		rec = app.do(t, http.MethodPost, "/v1/leaves", hr, nl)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var leave staff.Leave
		decode(t, rec, &leave)
		assert.Equal(t, 3, leave.TotalDays)
		assert.Equal(t, staff.LeavePending, leave.Status)

		rec = app.do(t, http.MethodPost, "/v1/leaves/"+leave.ID+"/approve", hr, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &leave)
		assert.Equal(t, staff.LeaveApproved, leave.Status)
		require.NotNil(t, leave.ApprovedBy)
		assert.Equal(t, hrUsr.ID, *leave.ApprovedBy)

		rec = app.do(t, http.MethodPost, "/v1/leaves/"+leave.ID+"/reject", hr, staff.RejectLeave{RejectionReason: "too late"})
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.Contains(t, errorFields(t, rec), "status", "only pending leaves can be decided")
	})

	t.Run("bulk attendance", func(t *testing.T) {
		day := core.NewDate(2024, time.March, 4)
		tests := []struct {
			name        string
			records     []staff.NewAttendance
			wantCode    int
			wantCreated int
			wantFailed  int
		}{
			{name: "empty batch", records: []staff.NewAttendance{}, wantCode: http.StatusBadRequest},
			{
				name: "partial success",
				records: []staff.NewAttendance{
					{StaffID: profile.ID, Date: day, Status: staff.Present},
					{StaffID: profile.ID, Date: day, Status: staff.Late},
					{StaffID: "nobody", Date: day, Status: staff.Present},
					{StaffID: profile.ID, Date: day.AddDays(1), Status: "asleep"},
				},
				wantCode:    http.StatusCreated,
				wantCreated: 1,
				wantFailed:  3,
			},
			{
				name:       "nothing created",
				records:    []staff.NewAttendance{{StaffID: profile.ID, Date: day, Status: staff.Absent}},
				wantCode:   http.StatusBadRequest,
				wantFailed: 1,
			},
		}
		for _, tc := range tests {
			tc := tc
			t.Run(tc.name, func(t *testing.T) {
				rec := app.do(t, http.MethodPost, "/v1/staff-attendance/bulk", hr, bulkAttendanceRequest{Records: tc.records})
				require.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
				if len(tc.records) == 0 {
					assert.Contains(t, errorFields(t, rec), "attendance_records")
					return
				}
				var res staff.BulkAttendanceResult
				decode(t, rec, &res)
				assert.Equal(t, staff.BulkSummary{
					Total: len(tc.records), Created: tc.wantCreated, Failed: tc.wantFailed,
				}, res.Summary)
				for _, e := range res.Errors {
					assert.NotEmpty(t, e.Errors, "record #%d", e.Index)
				}
			})
		}
	})

	t.Run("payroll", func(t *testing.T) {
		np := staff.NewPayroll{
			StaffID:        profile.ID,
			AcademicYearID: s.Year.ID,
			TermID:         s.Term.ID,
			Month:          13,
			Year:           2024,
			BasicSalary:    decimal.NewFromInt(1000),
			Allowances:     decimal.NewFromInt(200),
			Deductions:     decimal.NewFromInt(50),
		}
		rec := app.do(t, http.MethodPost, "/v1/payrolls", hr, np)
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.Contains(t, errorFields(t, rec), "month")

		np.Month = 3
		rec = app.do(t, http.MethodPost, "/v1/payrolls", hr, np)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var p staff.Payroll
		decode(t, rec, &p)
		assertAmount(t, "1150", p.NetSalary)
		assert.Equal(t, staff.PayrollDraft, p.Status)

		rec = app.do(t, http.MethodPost, "/v1/payrolls", hr, np)
		assert.Equal(t, http.StatusConflict, rec.Code, "one payroll per staff & month")

		rec = app.do(t, http.MethodPost, "/v1/payrolls/"+p.ID+"/process", hr, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &p)
		assert.Equal(t, staff.PayrollProcessed, p.Status)
		require.NotNil(t, p.ProcessedBy)
		assert.Equal(t, hrUsr.ID, *p.ProcessedBy)

		paidOn := core.NewDate(2024, time.March, 28)
		rec = app.do(t, http.MethodPost, "/v1/payrolls/"+p.ID+"/mark-paid", hr, staff.MarkPayrollPaid{PaymentDate: &paidOn})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &p)
		assert.Equal(t, staff.PayrollPaid, p.Status)
		require.NotNil(t, p.PaymentDate)
		assert.True(t, paidOn.Equal(*p.PaymentDate))

		rec = app.do(t, http.MethodPost, "/v1/payrolls/"+p.ID+"/cancel", hr, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "paid payrolls cannot be cancelled")
	})

	rec = app.do(t, http.MethodGet, "/v1/staff/nope", hr, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "staff profile not found", errorMessage(t, rec))
}
