package staff_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/staff"
	"github.com/shule/backend/core/user"
	"github.com/shule/backend/storage/database/inmem"
	"github.com/shule/backend/tests"
)

var now = time.Date(2024, time.March, 10, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc    *staff.Service
	users  user.Repository
	school testutil.School
}

func setup(t *testing.T) fixture {
	t.Cleanup(staff.SetNowFunc(now))
	db := inmemdb.Open()
	acad := inmemdb.NewAcademicRepository(db)
	f := fixture{users: inmemdb.NewUserRepository(db), school: testutil.SeedSchool(t, acad)}
	f.svc = staff.NewService(db, inmemdb.NewStaffRepository(db), f.users, acad, core.StaffConfig{
		EmployeeIDPrefix:   "EMP",
		EmployeeIDAttempts: 3,
	})
	return f
}

// sequence returns a generator yielding ns in turn, then repeating the last one.
func sequence(ns ...int) func() int {
	i := 0
	return func() int {
		n := ns[i]
		if i < len(ns)-1 {
			i++
		}
		return n
	}
}

func (f fixture) newProfile(t *testing.T, uname string) staff.NewProfile {
	usr := testutil.CreateUser(t, f.users, uname, uname, uname+"@shule.test", "", []string{user.RoleTeacher}, true)
	return staff.NewProfile{
		UserID:         usr.ID,
		Position:       "Teacher",
		Department:     "Sciences",
		EmploymentType: staff.FullTime,
		DateOfJoining:  core.NewDate(2024, time.January, 15),
		BasicSalary:    decimal.NewFromInt(1000),
	}
}

func (f fixture) profile(t *testing.T, uname string) staff.Profile {
	p, err := f.svc.CreateProfile(context.Background(), f.newProfile(t, uname))
	require.NoError(t, err)
	return p
}

func TestService_CreateProfile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	defer staff.SetRandIntFunc(sequence(1234, 1234, 5678, 1234))()

	first := f.profile(t, "alice")
	assert.Equal(t, "EMP202401151234", first.EmployeeID)
	assert.True(t, first.IsActive)

	second := f.profile(t, "bob")
	assert.Equal(t, "EMP202401155678", second.EmployeeID, "a taken number is drawn again")

	t.Run("numbers exhausted", func(t *testing.T) {
		_, err := f.svc.CreateProfile(ctx, f.newProfile(t, "carol"))
		assert.Equal(t, core.ErrIdentifierExhausted, errors.Cause(err))
	})

	t.Run("user already has a profile", func(t *testing.T) {
		np := f.newProfile(t, "dave")
		np.UserID = first.UserID
		_, err := f.svc.CreateProfile(ctx, np)
		assert.True(t, core.IsConflictError(err), "err = %v", err)
	})

	t.Run("unknown user", func(t *testing.T) {
		np := f.newProfile(t, "erin")
		np.UserID = "nope"
		_, err := f.svc.CreateProfile(ctx, np)
		fields, ok := core.ClientErrorFields(err)
		require.True(t, ok, "err = %v", err)
		assert.Contains(t, fields, "user_id")
	})

	t.Run("update keeps the employee id", func(t *testing.T) {
		np := f.newProfile(t, "frank")
		np.UserID = first.UserID
		np.Position = "Head of department"
		p, err := f.svc.UpdateProfile(ctx, first.ID, np)
		require.NoError(t, err)
		assert.Equal(t, first.EmployeeID, p.EmployeeID)
		assert.Equal(t, "Head of department", p.Position)
	})

	stats, err := f.svc.ProfileStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalActive)
	assert.Equal(t, 2, stats.ByDepartment["Sciences"])
}

// blindRepository never sees a taken employee id, like a concurrent writer committing
// between the existence check and the insert.
type blindRepository struct {
	staff.Repository
}

func (blindRepository) EmployeeIDExists(context.Context, string, ...core.DBExecutor) (bool, error) {
	return false, nil
}

func TestService_CreateProfile_retriesTakenEmployeeID(t *testing.T) {
	t.Cleanup(staff.SetNowFunc(now))
	db := inmemdb.Open()
	acad := inmemdb.NewAcademicRepository(db)
	f := fixture{users: inmemdb.NewUserRepository(db), school: testutil.SeedSchool(t, acad)}
	f.svc = staff.NewService(db, blindRepository{inmemdb.NewStaffRepository(db)}, f.users, acad, core.StaffConfig{
		EmployeeIDPrefix:   "EMP",
		EmployeeIDAttempts: 2,
	})
	ctx := context.Background()

	tests := []struct {
		name    string
		uname   string
		numbers []int
		wantID  string
	}{
		{name: "free number", uname: "alice", numbers: []int{1234}, wantID: "EMP202401151234"},
		{name: "taken at insert", uname: "bob", numbers: []int{1234, 5678}, wantID: "EMP202401155678"},
		{name: "taken on every attempt", uname: "carol", numbers: []int{1234, 5678, 9999}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			defer staff.SetRandIntFunc(sequence(tc.numbers...))()
			p, err := f.svc.CreateProfile(ctx, f.newProfile(t, tc.uname))
			if tc.wantID == "" {
				var cerr *core.ConflictError
				require.True(t, errors.As(err, &cerr), "err = %v", err)
				assert.Equal(t, "employee_id", cerr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantID, p.EmployeeID)
		})
	}

	profiles, err := f.svc.ListProfiles(ctx, staff.ProfileFilter{})
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
}

func TestService_leaves(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.profile(t, "alice")
	hr := "hr-user"
	apply := func(start, end core.Date) (staff.Leave, error) {
		return f.svc.ApplyLeave(ctx, staff.NewLeave{
			StaffID: p.ID, LeaveType: staff.LeaveAnnual, StartDate: start, EndDate: end, Reason: "holidays",
		})
	}

	leave, err := apply(core.NewDate(2024, time.March, 11), core.NewDate(2024, time.March, 15))
	require.NoError(t, err)
	assert.Equal(t, 5, leave.TotalDays)
	assert.Equal(t, staff.LeavePending, leave.Status)

	oneDay, err := apply(core.NewDate(2024, time.April, 2), core.NewDate(2024, time.April, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, oneDay.TotalDays)

	_, err = apply(core.NewDate(2024, time.April, 2), core.NewDate(2024, time.April, 1))
	fields, ok := core.ClientErrorFields(err)
	require.True(t, ok, "err = %v", err)
	assert.Contains(t, fields, "end_date")

	approved, err := f.svc.ApproveLeave(ctx, leave.ID, &hr)
	require.NoError(t, err)
	assert.Equal(t, staff.LeaveApproved, approved.Status)
	assert.Equal(t, &hr, approved.ApprovedBy)
	require.NotNil(t, approved.ApprovalDate)
	assert.True(t, now.Equal(*approved.ApprovalDate))

	_, err = f.svc.ApproveLeave(ctx, leave.ID, &hr)
	assert.True(t, core.IsValidationError(err), "only pending leaves are decided")

	_, err = f.svc.RejectLeave(ctx, oneDay.ID, staff.RejectLeave{}, &hr)
	assert.True(t, core.IsValidationError(err), "a rejection needs a reason")

	rejected, err := f.svc.RejectLeave(ctx, oneDay.ID, staff.RejectLeave{RejectionReason: "exams week"}, &hr)
	require.NoError(t, err)
	assert.Equal(t, staff.LeaveRejected, rejected.Status)
	assert.Equal(t, "exams week", rejected.RejectionReason)

	cancelled, err := f.svc.CancelLeave(ctx, leave.ID)
	require.NoError(t, err)
	assert.Equal(t, staff.LeaveCancelled, cancelled.Status)

	_, err = f.svc.CancelLeave(ctx, rejected.ID)
	assert.True(t, core.IsValidationError(err), "err = %v", err)

	stats, err := f.svc.LeaveStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalLeaves)
	assert.Equal(t, 1, stats.ByStatus[string(staff.LeaveCancelled)])
	assert.Equal(t, 2, stats.ByType[string(staff.LeaveAnnual)])
	assert.Equal(t, 1, stats.CurrentMonth)

	_, err = f.svc.ApplyLeave(ctx, staff.NewLeave{
		StaffID: "nope", LeaveType: staff.LeaveSick, StartDate: core.DateOf(now), EndDate: core.DateOf(now), Reason: "flu",
	})
	assert.True(t, core.IsValidationError(err), "err = %v", err)
}

func TestService_attendance(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alice, bob := f.profile(t, "alice"), f.profile(t, "bob")
	today := core.DateOf(now)
	checkIn := core.NewClockTime(7, 45)

	a, err := f.svc.MarkAttendance(ctx, staff.NewAttendance{StaffID: alice.ID, Date: today, Status: staff.Present, CheckIn: &checkIn}, nil)
	require.NoError(t, err)

	_, err = f.svc.MarkAttendance(ctx, staff.NewAttendance{StaffID: alice.ID, Date: today, Status: staff.Late}, nil)
	assert.True(t, core.IsConflictError(err), "one record per staff member and day")

	updated, err := f.svc.UpdateAttendance(ctx, a.ID, staff.NewAttendance{StaffID: alice.ID, Date: today, Status: staff.Late, CheckIn: &checkIn})
	require.NoError(t, err)
	assert.Equal(t, staff.Late, updated.Status)

	validate := func(na *staff.NewAttendance) error {
		if na.Status == "" {
			return core.NewFieldError("status", "status is a required field")
		}
		return nil
	}
	res, err := f.svc.BulkMarkAttendance(ctx, []staff.NewAttendance{
		{StaffID: bob.ID, Date: today, Status: staff.Present},
		{StaffID: alice.ID, Date: today, Status: staff.Present},
		{StaffID: bob.ID, Date: today.AddDays(-1)},
		{StaffID: "nope", Date: today, Status: staff.Absent},
		{StaffID: alice.ID, Date: today.AddDays(-1), Status: staff.Absent},
	}, validate, nil)
	require.NoError(t, err)

	assert.Equal(t, staff.BulkSummary{Total: 5, Created: 2, Failed: 3}, res.Summary)
	require.Len(t, res.Errors, 3)
	assert.Equal(t, 1, res.Errors[0].Index)
	assert.Contains(t, res.Errors[0].Errors, "date")
	assert.Equal(t, 2, res.Errors[1].Index)
	assert.Contains(t, res.Errors[1].Errors, "status")
	assert.Equal(t, 3, res.Errors[2].Index)
	assert.Contains(t, res.Errors[2].Errors, "staff_id")

	_, err = f.svc.BulkMarkAttendance(ctx, nil, validate, nil)
	assert.True(t, core.IsValidationError(err))

	todays, err := f.svc.TodayAttendance(ctx)
	require.NoError(t, err)
	assert.Len(t, todays, 2)

	history, err := f.svc.StaffAttendance(ctx, alice.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Date.Equal(today), "latest first")

	stats, err := f.svc.AttendanceStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Today.Total)
	assert.Equal(t, 3, stats.ThisMonth.Total)
	assert.Equal(t, 1, stats.ThisMonth.ByStatus[string(staff.Absent)])
}

func TestService_payroll(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.profile(t, "alice")
	newPayroll := func(month int) staff.NewPayroll {
		return staff.NewPayroll{
			StaffID:        p.ID,
			AcademicYearID: f.school.Year.ID,
			TermID:         f.school.Term.ID,
			Month:          month,
			Year:           2024,
			BasicSalary:    decimal.NewFromInt(1000),
			Allowances:     decimal.NewFromInt(200),
			Deductions:     decimal.NewFromInt(50),
		}
	}

	march, err := f.svc.CreatePayroll(ctx, newPayroll(3))
	require.NoError(t, err)
	assert.Equal(t, staff.PayrollDraft, march.Status)
	assert.Equal(t, "1150", march.NetSalary.String())

	tests := []struct {
		name      string
		np        staff.NewPayroll
		wantField string
	}{
		{name: "same month twice", np: newPayroll(3), wantField: "month"},
		{name: "month out of range", np: newPayroll(13), wantField: "month"},
		{name: "unknown staff", np: func() staff.NewPayroll { np := newPayroll(4); np.StaffID = "nope"; return np }(), wantField: "staff_id"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreatePayroll(ctx, tc.np)
			fields, ok := core.ClientErrorFields(err)
			require.True(t, ok, "err = %v", err)
			assert.Contains(t, fields, tc.wantField)
		})
	}

	np := newPayroll(3)
	np.Deductions = decimal.NewFromInt(150)
	march, err = f.svc.UpdatePayroll(ctx, march.ID, np)
	require.NoError(t, err)
	assert.Equal(t, "1050", march.NetSalary.String())

	processor := "accountant"
	march, err = f.svc.ProcessPayroll(ctx, march.ID, &processor)
	require.NoError(t, err)
	assert.Equal(t, staff.PayrollProcessed, march.Status)
	assert.Equal(t, &processor, march.ProcessedBy)

	_, err = f.svc.ProcessPayroll(ctx, march.ID, &processor)
	assert.True(t, core.IsValidationError(err), "err = %v", err)
	_, err = f.svc.UpdatePayroll(ctx, march.ID, np)
	assert.True(t, core.IsValidationError(err), "err = %v", err)

	march, err = f.svc.MarkPayrollPaid(ctx, march.ID, staff.MarkPayrollPaid{})
	require.NoError(t, err)
	assert.Equal(t, staff.PayrollPaid, march.Status)
	require.NotNil(t, march.PaymentDate)
	assert.True(t, march.PaymentDate.Equal(core.DateOf(now)))

	_, err = f.svc.CancelPayroll(ctx, march.ID)
	assert.True(t, core.IsValidationError(err), "paid payrolls stay paid")

	april, err := f.svc.CreatePayroll(ctx, newPayroll(4))
	require.NoError(t, err)
	april, err = f.svc.CancelPayroll(ctx, april.ID)
	require.NoError(t, err)
	assert.Equal(t, staff.PayrollCancelled, april.Status)

	_, err = f.svc.MarkPayrollPaid(ctx, april.ID, staff.MarkPayrollPaid{})
	assert.True(t, core.IsValidationError(err), "err = %v", err)

	stats, err := f.svc.PayrollStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalPayrolls)
	assert.Equal(t, 1, stats.ByStatus[string(staff.PayrollPaid)])
	assert.Equal(t, 1, stats.CurrentMonth.Count)
	assert.Equal(t, "1050", stats.CurrentMonth.TotalAmount.String())
}
