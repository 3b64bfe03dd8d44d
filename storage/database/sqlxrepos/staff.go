package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/staff"
)

const (
	profileColumns = `id, user_id, employee_id, department, position, employment_type, date_of_joining, date_of_leaving,
		basic_salary, is_active, created_at, updated_at`
	leaveColumns = `id, staff_id, leave_type, start_date, end_date, total_days, reason, status, approved_by, approval_date,
		rejection_reason, created_at, updated_at`
	attendanceColumns = `id, staff_id, date, status, check_in_time, check_out_time, remarks, recorded_by, created_at, updated_at`
	payrollColumns    = `id, staff_id, academic_year_id, term_id, month, year, basic_salary, allowances, deductions, net_salary,
		payment_date, status, remarks, processed_by, created_at, updated_at`
)

type staffRepository struct {
	baseRepository
}

var _ staff.Repository = (*staffRepository)(nil) // interface compliance check

func NewStaffRepository(exec core.DBExecutor) *staffRepository {
	return &staffRepository{baseRepository{exec: exec}}
}

// Profiles

var profileConstraints = map[string]string{
	"staff_profile_employee_id_key": "employee_id",
	"staff_profile_user_id_key":     "user_id",
}

func (repo staffRepository) CreateProfile(ctx context.Context, p staff.Profile, exec ...core.DBExecutor) (staff.Profile, error) {
	p.ID = newID()
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO staff_profile (`+profileColumns+`)
		VALUES (:id, :user_id, :employee_id, :department, :position, :employment_type, :date_of_joining, :date_of_leaving,
			:basic_salary, :is_active, :created_at, :updated_at)`, p)
	if err = trapUniqueViolation(err, "staff_profile", profileConstraints); err != nil {
		return staff.Profile{}, errors.Wrap(err, "inserting staff profile")
	}
	return p, nil
}

func (repo staffRepository) UpdateProfile(ctx context.Context, p staff.Profile, exec ...core.DBExecutor) (staff.Profile, error) {
	err := namedUpdate(ctx, repo.getExec(exec), staff.ErrProfileNotFound, `
		UPDATE staff_profile SET department = :department, position = :position, employment_type = :employment_type,
			date_of_joining = :date_of_joining, date_of_leaving = :date_of_leaving, basic_salary = :basic_salary,
			is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`, p)
	if err = trapUniqueViolation(err, "staff_profile", profileConstraints); err != nil {
		return staff.Profile{}, wrapGet(err, staff.ErrProfileNotFound, "updating staff profile")
	}
	return p, nil
}

func (repo staffRepository) GetProfile(ctx context.Context, id string, exec ...core.DBExecutor) (staff.Profile, error) {
	var p staff.Profile
	err := get(ctx, repo.getExec(exec), &p, staff.ErrProfileNotFound, `SELECT `+profileColumns+` FROM staff_profile WHERE id = ?`, id)
	if err != nil {
		return staff.Profile{}, wrapGet(err, staff.ErrProfileNotFound, "selecting staff profile")
	}
	return p, nil
}

func (repo staffRepository) QueryProfiles(ctx context.Context, filter staff.ProfileFilter, exec ...core.DBExecutor) ([]staff.Profile, error) {
	w := &where{}
	if filter.Department != "" {
		w.add("department = ?", filter.Department)
	}
	if filter.EmploymentType != "" {
		w.add("employment_type = ?", filter.EmploymentType)
	}
	if filter.ActiveOnly {
		w.add("is_active")
	}
	res := make([]staff.Profile, 0)
	err := selectAll(ctx, repo.getExec(exec), &res,
		`SELECT `+profileColumns+` FROM staff_profile`+w.String()+` ORDER BY employee_id`, w.args...)
	return res, errors.Wrap(err, "selecting staff profiles")
}

func (repo staffRepository) EmployeeIDExists(ctx context.Context, employeeID string, exec ...core.DBExecutor) (bool, error) {
	return exists(ctx, repo.getExec(exec), `SELECT 1 FROM staff_profile WHERE employee_id = ?`, employeeID)
}

func (repo staffRepository) ProfileExists(ctx context.Context, userID, excludeID string, exec ...core.DBExecutor) (bool, error) {
	return exists(ctx, repo.getExec(exec),
		`SELECT 1 FROM staff_profile WHERE user_id::text = ? AND id::text <> ?`, userID, excludeID)
}

// Leaves

func (repo staffRepository) CreateLeave(ctx context.Context, l staff.Leave, exec ...core.DBExecutor) (staff.Leave, error) {
	l.ID = newID()
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO staff_leave (`+leaveColumns+`)
		VALUES (:id, :staff_id, :leave_type, :start_date, :end_date, :total_days, :reason, :status, :approved_by,
			:approval_date, :rejection_reason, :created_at, :updated_at)`, l)
	if err != nil {
		return staff.Leave{}, errors.Wrap(err, "inserting leave")
	}
	return l, nil
}

func (repo staffRepository) UpdateLeave(ctx context.Context, l staff.Leave, exec ...core.DBExecutor) (staff.Leave, error) {
	err := namedUpdate(ctx, repo.getExec(exec), staff.ErrLeaveNotFound, `
		UPDATE staff_leave SET leave_type = :leave_type, start_date = :start_date, end_date = :end_date,
			total_days = :total_days, reason = :reason, status = :status, approved_by = :approved_by,
			approval_date = :approval_date, rejection_reason = :rejection_reason, updated_at = :updated_at
		WHERE id = :id`, l)
	if err != nil {
		return staff.Leave{}, wrapGet(err, staff.ErrLeaveNotFound, "updating leave")
	}
	return l, nil
}

func (repo staffRepository) GetLeave(ctx context.Context, id string, exec ...core.DBExecutor) (staff.Leave, error) {
	var l staff.Leave
	err := get(ctx, repo.getExec(exec), &l, staff.ErrLeaveNotFound, `SELECT `+leaveColumns+` FROM staff_leave WHERE id = ?`, id)
	if err != nil {
		return staff.Leave{}, wrapGet(err, staff.ErrLeaveNotFound, "selecting leave")
	}
	return l, nil
}

func (repo staffRepository) QueryLeaves(ctx context.Context, filter staff.LeaveFilter, exec ...core.DBExecutor) ([]staff.Leave, error) {
	w := &where{}
	if filter.StaffID != "" {
		w.add("staff_id::text = ?", filter.StaffID)
	}
	if filter.LeaveType != "" {
		w.add("leave_type = ?", filter.LeaveType)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	res := make([]staff.Leave, 0)
	err := selectAll(ctx, repo.getExec(exec), &res,
		`SELECT `+leaveColumns+` FROM staff_leave`+w.String()+` ORDER BY start_date DESC, created_at DESC`, w.args...)
	return res, errors.Wrap(err, "selecting leaves")
}

// Attendance

func (repo staffRepository) CreateAttendance(ctx context.Context, a staff.Attendance, exec ...core.DBExecutor) (staff.Attendance, error) {
	a.ID = newID()
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO staff_attendance (`+attendanceColumns+`)
		VALUES (:id, :staff_id, :date, :status, :check_in_time, :check_out_time, :remarks, :recorded_by, :created_at, :updated_at)`, a)
	if err = trapUniqueViolation(err, "staff_attendance", map[string]string{"staff_attendance_day_key": "date"}); err != nil {
		return staff.Attendance{}, errors.Wrap(err, "inserting attendance")
	}
	return a, nil
}

func (repo staffRepository) UpdateAttendance(ctx context.Context, a staff.Attendance, exec ...core.DBExecutor) (staff.Attendance, error) {
	err := namedUpdate(ctx, repo.getExec(exec), staff.ErrAttendanceNotFound, `
		UPDATE staff_attendance SET date = :date, status = :status, check_in_time = :check_in_time,
			check_out_time = :check_out_time, remarks = :remarks, updated_at = :updated_at
		WHERE id = :id`, a)
	if err = trapUniqueViolation(err, "staff_attendance", map[string]string{"staff_attendance_day_key": "date"}); err != nil {
		return staff.Attendance{}, wrapGet(err, staff.ErrAttendanceNotFound, "updating attendance")
	}
	return a, nil
}

func (repo staffRepository) GetAttendance(ctx context.Context, id string, exec ...core.DBExecutor) (staff.Attendance, error) {
	var a staff.Attendance
	err := get(ctx, repo.getExec(exec), &a, staff.ErrAttendanceNotFound,
		`SELECT `+attendanceColumns+` FROM staff_attendance WHERE id = ?`, id)
	if err != nil {
		return staff.Attendance{}, wrapGet(err, staff.ErrAttendanceNotFound, "selecting attendance")
	}
	return a, nil
}

func (repo staffRepository) QueryAttendance(ctx context.Context, filter staff.AttendanceFilter, exec ...core.DBExecutor) ([]staff.Attendance, error) {
	w := &where{}
	if filter.StaffID != "" {
		w.add("staff_id::text = ?", filter.StaffID)
	}
	if filter.Date != nil {
		w.add("date = ?", *filter.Date)
	}
	if filter.From != nil {
		w.add("date >= ?", *filter.From)
	}
	if filter.To != nil {
		w.add("date <= ?", *filter.To)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	res := make([]staff.Attendance, 0)
	err := selectAll(ctx, repo.getExec(exec), &res,
		`SELECT `+attendanceColumns+` FROM staff_attendance`+w.String()+` ORDER BY date DESC, created_at DESC`, w.args...)
	return res, errors.Wrap(err, "selecting attendance")
}

func (repo staffRepository) AttendanceExists(ctx context.Context, staffID string, date core.Date, excludeID string, exec ...core.DBExecutor) (bool, error) {
	return exists(ctx, repo.getExec(exec),
		`SELECT 1 FROM staff_attendance WHERE staff_id::text = ? AND date = ? AND id::text <> ?`, staffID, date, excludeID)
}

// Payroll

func (repo staffRepository) CreatePayroll(ctx context.Context, p staff.Payroll, exec ...core.DBExecutor) (staff.Payroll, error) {
	p.ID = newID()
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO payroll (`+payrollColumns+`)
		VALUES (:id, :staff_id, :academic_year_id, :term_id, :month, :year, :basic_salary, :allowances, :deductions,
			:net_salary, :payment_date, :status, :remarks, :processed_by, :created_at, :updated_at)`, p)
	if err = trapUniqueViolation(err, "payroll", map[string]string{"payroll_period_key": "month"}); err != nil {
		return staff.Payroll{}, errors.Wrap(err, "inserting payroll")
	}
	return p, nil
}

func (repo staffRepository) UpdatePayroll(ctx context.Context, p staff.Payroll, exec ...core.DBExecutor) (staff.Payroll, error) {
	err := namedUpdate(ctx, repo.getExec(exec), staff.ErrPayrollNotFound, `
		UPDATE payroll SET academic_year_id = :academic_year_id, term_id = :term_id, month = :month, year = :year,
			basic_salary = :basic_salary, allowances = :allowances, deductions = :deductions, net_salary = :net_salary,
			payment_date = :payment_date, status = :status, remarks = :remarks, processed_by = :processed_by,
			updated_at = :updated_at
		WHERE id = :id`, p)
	if err = trapUniqueViolation(err, "payroll", map[string]string{"payroll_period_key": "month"}); err != nil {
		return staff.Payroll{}, wrapGet(err, staff.ErrPayrollNotFound, "updating payroll")
	}
	return p, nil
}

func (repo staffRepository) GetPayroll(ctx context.Context, id string, exec ...core.DBExecutor) (staff.Payroll, error) {
	var p staff.Payroll
	err := get(ctx, repo.getExec(exec), &p, staff.ErrPayrollNotFound, `SELECT `+payrollColumns+` FROM payroll WHERE id = ?`, id)
	if err != nil {
		return staff.Payroll{}, wrapGet(err, staff.ErrPayrollNotFound, "selecting payroll")
	}
	return p, nil
}

func (repo staffRepository) QueryPayrolls(ctx context.Context, filter staff.PayrollFilter, exec ...core.DBExecutor) ([]staff.Payroll, error) {
	w := &where{}
	if filter.StaffID != "" {
		w.add("staff_id::text = ?", filter.StaffID)
	}
	if filter.Month != 0 {
		w.add("month = ?", filter.Month)
	}
	if filter.Year != 0 {
		w.add("year = ?", filter.Year)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	res := make([]staff.Payroll, 0)
	err := selectAll(ctx, repo.getExec(exec), &res,
		`SELECT `+payrollColumns+` FROM payroll`+w.String()+` ORDER BY year DESC, month DESC`, w.args...)
	return res, errors.Wrap(err, "selecting payrolls")
}

func (repo staffRepository) PayrollExists(ctx context.Context, staffID string, month, year int, excludeID string, exec ...core.DBExecutor) (bool, error) {
	return exists(ctx, repo.getExec(exec),
		`SELECT 1 FROM payroll WHERE staff_id::text = ? AND month = ? AND year = ? AND id::text <> ?`,
		staffID, month, year, excludeID)
}
