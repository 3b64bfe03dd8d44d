package staff

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/academic"
	"github.com/shule/backend/core/user"
)

var (
	// errors
	ErrProfileNotFound    = core.NewNotFoundError("staff profile")
	ErrLeaveNotFound      = core.NewNotFoundError("leave")
	ErrAttendanceNotFound = core.NewNotFoundError("attendance")
	ErrPayrollNotFound    = core.NewNotFoundError("payroll")

	// mockable
	nowFunc     = time.Now
	randIntFunc = func() int { return 1000 + rand.Intn(9000) }
)

type (
	Repository interface {
		CreateProfile(ctx context.Context, p Profile, exec ...core.DBExecutor) (Profile, error)
		UpdateProfile(ctx context.Context, p Profile, exec ...core.DBExecutor) (Profile, error)
		GetProfile(ctx context.Context, id string, exec ...core.DBExecutor) (Profile, error)
		QueryProfiles(ctx context.Context, filter ProfileFilter, exec ...core.DBExecutor) ([]Profile, error)
		EmployeeIDExists(ctx context.Context, employeeID string, exec ...core.DBExecutor) (bool, error)
		// ProfileExists reports whether another profile (id != excludeID) belongs to the user.
		ProfileExists(ctx context.Context, userID, excludeID string, exec ...core.DBExecutor) (bool, error)

		CreateLeave(ctx context.Context, l Leave, exec ...core.DBExecutor) (Leave, error)
		UpdateLeave(ctx context.Context, l Leave, exec ...core.DBExecutor) (Leave, error)
		GetLeave(ctx context.Context, id string, exec ...core.DBExecutor) (Leave, error)
		// QueryLeaves returns leaves ordered by start date, latest first.
		QueryLeaves(ctx context.Context, filter LeaveFilter, exec ...core.DBExecutor) ([]Leave, error)

		CreateAttendance(ctx context.Context, a Attendance, exec ...core.DBExecutor) (Attendance, error)
		UpdateAttendance(ctx context.Context, a Attendance, exec ...core.DBExecutor) (Attendance, error)
		GetAttendance(ctx context.Context, id string, exec ...core.DBExecutor) (Attendance, error)
		// QueryAttendance returns records ordered by date, latest first.
		QueryAttendance(ctx context.Context, filter AttendanceFilter, exec ...core.DBExecutor) ([]Attendance, error)
		// AttendanceExists reports whether another record (id != excludeID) exists for the staff on that day.
		AttendanceExists(ctx context.Context, staffID string, date core.Date, excludeID string, exec ...core.DBExecutor) (bool, error)

		CreatePayroll(ctx context.Context, p Payroll, exec ...core.DBExecutor) (Payroll, error)
		UpdatePayroll(ctx context.Context, p Payroll, exec ...core.DBExecutor) (Payroll, error)
		GetPayroll(ctx context.Context, id string, exec ...core.DBExecutor) (Payroll, error)
		// QueryPayrolls returns payrolls ordered by period, latest first.
		QueryPayrolls(ctx context.Context, filter PayrollFilter, exec ...core.DBExecutor) ([]Payroll, error)
		// PayrollExists reports whether another payroll (id != excludeID) covers the staff's month.
		PayrollExists(ctx context.Context, staffID string, month, year int, excludeID string, exec ...core.DBExecutor) (bool, error)
	}

	UserReader interface {
		GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error)
	}

	AcademicReader interface {
		GetAcademicYear(ctx context.Context, id string, exec ...core.DBExecutor) (academic.AcademicYear, error)
		GetTerm(ctx context.Context, id string, exec ...core.DBExecutor) (academic.Term, error)
	}

	Service struct {
		tx       core.Transactor
		repo     Repository
		users    UserReader
		academic AcademicReader
		conf     core.StaffConfig
	}
)

func NewService(tx core.Transactor, repo Repository, users UserReader, acad AcademicReader, conf core.StaffConfig) *Service {
	return &Service{tx: tx, repo: repo, users: users, academic: acad, conf: conf}
}

// Profiles

// CreateProfile assigns the profile a fresh employee ID, e.g. EMP202401151234.
// CreateProfile draws a fresh employee ID when another profile takes the drawn one between
// the existence check and the insert, up to EmployeeIDAttempts times.
func (svc *Service) CreateProfile(ctx context.Context, np NewProfile) (Profile, error) {
	attempts := svc.conf.EmployeeIDAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var (
		p   Profile
		err error
	)
	for i := 0; i < attempts; i++ {
		if p, err = svc.createProfile(ctx, np); !isEmployeeIDTaken(err) {
			return p, err
		}
	}
	return Profile{}, err
}

func (svc *Service) createProfile(ctx context.Context, np NewProfile) (Profile, error) {
	now := nowFunc().UTC()
	p := Profile{IsActive: true, CreatedAt: now}
	np.apply(&p)
	p.UpdatedAt = now

	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.checkProfile(ctx, p, exec); err != nil {
			return err
		}
		gen := func() string {
			return FormatEmployeeID(svc.conf.EmployeeIDPrefix, p.DateOfJoining, randIntFunc())
		}
		exists := func(ctx context.Context, candidate string) (bool, error) {
			return svc.repo.EmployeeIDExists(ctx, candidate, exec)
		}
		var err error
		if p.EmployeeID, err = core.GenerateUnique(ctx, svc.conf.EmployeeIDAttempts, gen, exists); err != nil {
			return errors.Wrap(err, "generating employee id")
		}
		p, err = svc.repo.CreateProfile(ctx, p, exec)
		return errors.Wrap(err, "creating staff profile")
	})
	return p, err
}

func isEmployeeIDTaken(err error) bool {
	var cerr *core.ConflictError
	return errors.As(err, &cerr) && cerr.Field == "employee_id"
}

// UpdateProfile keeps the employee ID.
func (svc *Service) UpdateProfile(ctx context.Context, id string, np NewProfile) (Profile, error) {
	var p Profile
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if p, err = svc.repo.GetProfile(ctx, id, exec); err != nil {
			return err
		}
		np.apply(&p)
		p.UpdatedAt = nowFunc().UTC()
		if err = svc.checkProfile(ctx, p, exec); err != nil {
			return err
		}
		p, err = svc.repo.UpdateProfile(ctx, p, exec)
		return errors.Wrap(err, "updating staff profile")
	})
	return p, err
}

func (np NewProfile) apply(p *Profile) {
	p.UserID = np.UserID
	p.Department = np.Department
	p.Position = np.Position
	p.EmploymentType = np.EmploymentType
	p.DateOfJoining = np.DateOfJoining
	p.DateOfLeaving = np.DateOfLeaving
	p.BasicSalary = np.BasicSalary
	if np.IsActive != nil {
		p.IsActive = *np.IsActive
	}
}

func (svc *Service) checkProfile(ctx context.Context, p Profile, exec core.DBExecutor) error {
	if _, err := svc.users.GetUser(ctx, user.GetFilter{ID: p.UserID}, exec); err != nil {
		return refError(err, user.ErrNotFound, "user_id")
	}
	exists, err := svc.repo.ProfileExists(ctx, p.UserID, p.ID, exec)
	if err != nil {
		return errors.Wrap(err, "checking staff profile uniqueness")
	}
	if exists {
		return core.NewConflictError("staff_profile", "", "user_id", "this user already has a staff profile")
	}
	return nil
}

func (svc *Service) GetProfile(ctx context.Context, id string) (Profile, error) {
	return svc.repo.GetProfile(ctx, id)
}

func (svc *Service) ListProfiles(ctx context.Context, filter ProfileFilter) ([]Profile, error) {
	return svc.repo.QueryProfiles(ctx, filter)
}

// ProfileStatistics counts active staff by employment type and department.
func (svc *Service) ProfileStatistics(ctx context.Context) (ProfileStatistics, error) {
	profiles, err := svc.repo.QueryProfiles(ctx, ProfileFilter{ActiveOnly: true})
	if err != nil {
		return ProfileStatistics{}, err
	}
	stats := ProfileStatistics{
		TotalActive:      len(profiles),
		ByEmploymentType: map[string]int{},
		ByDepartment:     map[string]int{},
	}
	for _, p := range profiles {
		stats.ByEmploymentType[string(p.EmploymentType)]++
		if p.Department != "" {
			stats.ByDepartment[p.Department]++
		}
	}
	return stats, nil
}

// Leaves

// ApplyLeave records a pending leave request. total_days counts both ends.
func (svc *Service) ApplyLeave(ctx context.Context, nl NewLeave) (Leave, error) {
	days, err := LeaveDays(nl.StartDate, nl.EndDate)
	if err != nil {
		return Leave{}, err
	}
	now := nowFunc().UTC()
	l := Leave{
		StaffID:   nl.StaffID,
		LeaveType: nl.LeaveType,
		StartDate: nl.StartDate,
		EndDate:   nl.EndDate,
		TotalDays: days,
		Reason:    nl.Reason,
		Status:    LeavePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.repo.GetProfile(ctx, l.StaffID, exec); err != nil {
			return refError(err, ErrProfileNotFound, "staff_id")
		}
		var err error
		l, err = svc.repo.CreateLeave(ctx, l, exec)
		return errors.Wrap(err, "creating leave")
	})
	return l, err
}

func (svc *Service) ApproveLeave(ctx context.Context, id string, approvedBy *string) (Leave, error) {
	return svc.decideLeave(ctx, id, LeaveApproved, "", approvedBy)
}

func (svc *Service) RejectLeave(ctx context.Context, id string, rl RejectLeave, rejectedBy *string) (Leave, error) {
	if rl.RejectionReason == "" {
		return Leave{}, core.NewFieldError("rejection_reason", "rejection_reason is required")
	}
	return svc.decideLeave(ctx, id, LeaveRejected, rl.RejectionReason, rejectedBy)
}

func (svc *Service) decideLeave(ctx context.Context, id string, status LeaveStatus, reason string, by *string) (Leave, error) {
	var l Leave
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if l, err = svc.repo.GetLeave(ctx, id, exec); err != nil {
			return err
		}
		if l.Status != LeavePending {
			return core.NewFieldError("status", fmt.Sprintf(msgLeaveNotPending, status))
		}
		now := nowFunc().UTC()
		l.Status = status
		l.ApprovedBy = by
		l.ApprovalDate = &now
		l.RejectionReason = reason
		l.UpdatedAt = now
		l, err = svc.repo.UpdateLeave(ctx, l, exec)
		return errors.Wrap(err, "updating leave")
	})
	return l, err
}

// CancelLeave withdraws a pending or approved leave.
func (svc *Service) CancelLeave(ctx context.Context, id string) (Leave, error) {
	var l Leave
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if l, err = svc.repo.GetLeave(ctx, id, exec); err != nil {
			return err
		}
		if l.Status != LeavePending && l.Status != LeaveApproved {
			return core.NewFieldError("status", "Only pending or approved leaves can be cancelled.")
		}
		l.Status = LeaveCancelled
		l.UpdatedAt = nowFunc().UTC()
		l, err = svc.repo.UpdateLeave(ctx, l, exec)
		return errors.Wrap(err, "updating leave")
	})
	return l, err
}

func (svc *Service) GetLeave(ctx context.Context, id string) (Leave, error) {
	return svc.repo.GetLeave(ctx, id)
}

func (svc *Service) ListLeaves(ctx context.Context, filter LeaveFilter) ([]Leave, error) {
	return svc.repo.QueryLeaves(ctx, filter)
}

func (svc *Service) PendingLeaves(ctx context.Context) ([]Leave, error) {
	return svc.repo.QueryLeaves(ctx, LeaveFilter{Status: LeavePending})
}

// LeaveStatistics counts leaves by status and type. CurrentMonth counts leaves starting this month.
func (svc *Service) LeaveStatistics(ctx context.Context) (LeaveStatistics, error) {
	leaves, err := svc.repo.QueryLeaves(ctx, LeaveFilter{})
	if err != nil {
		return LeaveStatistics{}, err
	}
	now := nowFunc().UTC()
	stats := LeaveStatistics{TotalLeaves: len(leaves), ByStatus: map[string]int{}, ByType: map[string]int{}}
	for _, l := range leaves {
		stats.ByStatus[string(l.Status)]++
		stats.ByType[string(l.LeaveType)]++
		if l.StartDate.Year() == now.Year() && l.StartDate.Month() == now.Month() {
			stats.CurrentMonth++
		}
	}
	return stats, nil
}

// Attendance

// MarkAttendance records the day's attendance of a staff member, once per day.
func (svc *Service) MarkAttendance(ctx context.Context, na NewAttendance, recordedBy *string) (Attendance, error) {
	var a Attendance
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		a, err = svc.markAttendance(ctx, na, recordedBy, exec)
		return err
	})
	return a, err
}

func (svc *Service) markAttendance(ctx context.Context, na NewAttendance, recordedBy *string, exec core.DBExecutor) (Attendance, error) {
	now := nowFunc().UTC()
	a := Attendance{RecordedBy: recordedBy, CreatedAt: now}
	na.apply(&a)
	a.UpdatedAt = now
	if err := svc.checkAttendance(ctx, a, exec); err != nil {
		return Attendance{}, err
	}
	a, err := svc.repo.CreateAttendance(ctx, a, exec)
	return a, errors.Wrap(err, "creating attendance")
}

func (svc *Service) UpdateAttendance(ctx context.Context, id string, na NewAttendance) (Attendance, error) {
	var a Attendance
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if a, err = svc.repo.GetAttendance(ctx, id, exec); err != nil {
			return err
		}
		na.apply(&a)
		a.UpdatedAt = nowFunc().UTC()
		if err = svc.checkAttendance(ctx, a, exec); err != nil {
			return err
		}
		a, err = svc.repo.UpdateAttendance(ctx, a, exec)
		return errors.Wrap(err, "updating attendance")
	})
	return a, err
}

func (na NewAttendance) apply(a *Attendance) {
	a.StaffID = na.StaffID
	a.Date = na.Date
	a.Status = na.Status
	a.CheckIn = na.CheckIn
	a.CheckOut = na.CheckOut
	a.Remarks = na.Remarks
}

func (svc *Service) checkAttendance(ctx context.Context, a Attendance, exec core.DBExecutor) error {
	if _, err := svc.repo.GetProfile(ctx, a.StaffID, exec); err != nil {
		return refError(err, ErrProfileNotFound, "staff_id")
	}
	exists, err := svc.repo.AttendanceExists(ctx, a.StaffID, a.Date, a.ID, exec)
	if err != nil {
		return errors.Wrap(err, "checking attendance uniqueness")
	}
	if exists {
		return core.NewConflictError("attendance", "", "date",
			fmt.Sprintf("attendance for %s is already recorded", a.Date))
	}
	return nil
}

// BulkMarkAttendance marks each record in its own transaction; failures are collected, not fatal.
// validate must report struct validation failures as core.ValidationError.
func (svc *Service) BulkMarkAttendance(ctx context.Context, records []NewAttendance, validate func(*NewAttendance) error, recordedBy *string) (BulkAttendanceResult, error) {
	if len(records) == 0 {
		return BulkAttendanceResult{}, core.NewFieldError("attendance_records", "attendance_records array is required")
	}

	res := BulkAttendanceResult{Created: []Attendance{}, Errors: []BulkAttendanceError{}}
	for i := range records {
		na := records[i]
		var a Attendance
		err := validate(&na)
		if err == nil {
			err = svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
				var err error
				a, err = svc.markAttendance(ctx, na, recordedBy, exec)
				return err
			})
		}
		if err != nil {
			fields, ok := core.ClientErrorFields(err)
			if !ok {
				return BulkAttendanceResult{}, err
			}
			res.Errors = append(res.Errors, BulkAttendanceError{Index: i, Data: na, Errors: fields})
			continue
		}
		res.Created = append(res.Created, a)
	}
	res.Summary = BulkSummary{Total: len(records), Created: len(res.Created), Failed: len(res.Errors)}
	return res, nil
}

func (svc *Service) GetAttendance(ctx context.Context, id string) (Attendance, error) {
	return svc.repo.GetAttendance(ctx, id)
}

func (svc *Service) ListAttendance(ctx context.Context, filter AttendanceFilter) ([]Attendance, error) {
	return svc.repo.QueryAttendance(ctx, filter)
}

func (svc *Service) TodayAttendance(ctx context.Context) ([]Attendance, error) {
	today := core.DateOf(nowFunc().UTC())
	return svc.repo.QueryAttendance(ctx, AttendanceFilter{Date: &today})
}

// StaffAttendance returns the staff member's records, optionally limited to [from, to].
func (svc *Service) StaffAttendance(ctx context.Context, staffID string, from, to *core.Date) ([]Attendance, error) {
	if _, err := svc.repo.GetProfile(ctx, staffID); err != nil {
		return nil, err
	}
	return svc.repo.QueryAttendance(ctx, AttendanceFilter{StaffID: staffID, From: from, To: to})
}

func (svc *Service) AttendanceStatistics(ctx context.Context) (AttendanceStatistics, error) {
	today := core.DateOf(nowFunc().UTC())
	first := core.NewDate(today.Year(), today.Month(), 1)
	records, err := svc.repo.QueryAttendance(ctx, AttendanceFilter{From: &first, To: &today})
	if err != nil {
		return AttendanceStatistics{}, err
	}
	stats := AttendanceStatistics{
		Today:     AttendanceCounts{ByStatus: map[string]int{}},
		ThisMonth: AttendanceCounts{ByStatus: map[string]int{}},
	}
	for _, a := range records {
		stats.ThisMonth.Total++
		stats.ThisMonth.ByStatus[string(a.Status)]++
		if a.Date.Equal(today) {
			stats.Today.Total++
			stats.Today.ByStatus[string(a.Status)]++
		}
	}
	return stats, nil
}

// Payroll

// CreatePayroll records a draft payroll; one per staff member and month.
func (svc *Service) CreatePayroll(ctx context.Context, np NewPayroll) (Payroll, error) {
	now := nowFunc().UTC()
	p := Payroll{Status: PayrollDraft, CreatedAt: now}
	np.apply(&p)
	p.UpdatedAt = now

	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.checkPayroll(ctx, p, exec); err != nil {
			return err
		}
		var err error
		p, err = svc.repo.CreatePayroll(ctx, p, exec)
		return errors.Wrap(err, "creating payroll")
	})
	return p, err
}

// UpdatePayroll only changes draft payrolls.
func (svc *Service) UpdatePayroll(ctx context.Context, id string, np NewPayroll) (Payroll, error) {
	var p Payroll
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if p, err = svc.repo.GetPayroll(ctx, id, exec); err != nil {
			return err
		}
		if p.Status != PayrollDraft {
			return core.NewFieldError("status", "Only draft payrolls can be updated.")
		}
		np.apply(&p)
		p.UpdatedAt = nowFunc().UTC()
		if err = svc.checkPayroll(ctx, p, exec); err != nil {
			return err
		}
		p, err = svc.repo.UpdatePayroll(ctx, p, exec)
		return errors.Wrap(err, "updating payroll")
	})
	return p, err
}

func (np NewPayroll) apply(p *Payroll) {
	p.StaffID = np.StaffID
	p.AcademicYearID = np.AcademicYearID
	p.TermID = np.TermID
	p.Month = np.Month
	p.Year = np.Year
	p.BasicSalary = np.BasicSalary
	p.Allowances = np.Allowances
	p.Deductions = np.Deductions
	p.Remarks = np.Remarks
	p.ApplyDerivedState()
}

func (svc *Service) checkPayroll(ctx context.Context, p Payroll, exec core.DBExecutor) error {
	if err := ValidateMonth(p.Month); err != nil {
		return err
	}
	if _, err := svc.repo.GetProfile(ctx, p.StaffID, exec); err != nil {
		return refError(err, ErrProfileNotFound, "staff_id")
	}
	if _, err := svc.academic.GetAcademicYear(ctx, p.AcademicYearID, exec); err != nil {
		return refError(err, academic.ErrAcademicYearNotFound, "academic_year_id")
	}
	term, err := svc.academic.GetTerm(ctx, p.TermID, exec)
	if err != nil {
		return refError(err, academic.ErrTermNotFound, "term_id")
	}
	if term.AcademicYearID != p.AcademicYearID {
		return core.NewFieldError("term_id", "Selected term does not belong to the selected academic year.")
	}
	exists, err := svc.repo.PayrollExists(ctx, p.StaffID, p.Month, p.Year, p.ID, exec)
	if err != nil {
		return errors.Wrap(err, "checking payroll uniqueness")
	}
	if exists {
		return core.NewConflictError("payroll", "", "month",
			fmt.Sprintf("a payroll for %02d/%d already exists for this staff member", p.Month, p.Year))
	}
	return nil
}

// ProcessPayroll moves a draft payroll to processed.
func (svc *Service) ProcessPayroll(ctx context.Context, id string, processedBy *string) (Payroll, error) {
	var p Payroll
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if p, err = svc.repo.GetPayroll(ctx, id, exec); err != nil {
			return err
		}
		if p.Status != PayrollDraft {
			return core.NewFieldError("status", msgPayrollNotDraft)
		}
		p.Status = PayrollProcessed
		p.ProcessedBy = processedBy
		p.UpdatedAt = nowFunc().UTC()
		p, err = svc.repo.UpdatePayroll(ctx, p, exec)
		return errors.Wrap(err, "updating payroll")
	})
	return p, err
}

// MarkPayrollPaid settles a draft or processed payroll. The payment date defaults to today.
func (svc *Service) MarkPayrollPaid(ctx context.Context, id string, mp MarkPayrollPaid) (Payroll, error) {
	var p Payroll
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if p, err = svc.repo.GetPayroll(ctx, id, exec); err != nil {
			return err
		}
		if p.Status != PayrollDraft && p.Status != PayrollProcessed {
			return core.NewFieldError("status", msgPayrollStatus)
		}
		now := nowFunc().UTC()
		paidOn := core.DateOf(now)
		if mp.PaymentDate != nil {
			paidOn = *mp.PaymentDate
		}
		p.Status = PayrollPaid
		p.PaymentDate = &paidOn
		p.UpdatedAt = now
		p, err = svc.repo.UpdatePayroll(ctx, p, exec)
		return errors.Wrap(err, "updating payroll")
	})
	return p, err
}

func (svc *Service) CancelPayroll(ctx context.Context, id string) (Payroll, error) {
	var p Payroll
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if p, err = svc.repo.GetPayroll(ctx, id, exec); err != nil {
			return err
		}
		if p.Status == PayrollPaid {
			return core.NewFieldError("status", "Paid payrolls cannot be cancelled.")
		}
		p.Status = PayrollCancelled
		p.UpdatedAt = nowFunc().UTC()
		p, err = svc.repo.UpdatePayroll(ctx, p, exec)
		return errors.Wrap(err, "updating payroll")
	})
	return p, err
}

func (svc *Service) GetPayroll(ctx context.Context, id string) (Payroll, error) {
	return svc.repo.GetPayroll(ctx, id)
}

func (svc *Service) ListPayrolls(ctx context.Context, filter PayrollFilter) ([]Payroll, error) {
	return svc.repo.QueryPayrolls(ctx, filter)
}

func (svc *Service) PendingPayrolls(ctx context.Context) ([]Payroll, error) {
	return svc.repo.QueryPayrolls(ctx, PayrollFilter{Status: PayrollDraft})
}

func (svc *Service) PayrollStatistics(ctx context.Context) (PayrollStatistics, error) {
	payrolls, err := svc.repo.QueryPayrolls(ctx, PayrollFilter{})
	if err != nil {
		return PayrollStatistics{}, err
	}
	now := nowFunc().UTC()
	stats := PayrollStatistics{
		TotalPayrolls: len(payrolls),
		ByStatus:      map[string]int{},
		CurrentMonth:  PayrollTotals{TotalAmount: decimal.Zero},
	}
	for _, p := range payrolls {
		stats.ByStatus[string(p.Status)]++
		if p.Month == int(now.Month()) && p.Year == now.Year() {
			stats.CurrentMonth.Count++
			stats.CurrentMonth.TotalAmount = stats.CurrentMonth.TotalAmount.Add(p.NetSalary)
		}
	}
	return stats, nil
}

// refError turns the not-found error of a referenced record into a field error.
func refError(err, notFound error, field string) error {
	if errors.Cause(err) == notFound {
		return core.NewFieldError(field, notFound.Error())
	}
	return errors.Wrapf(err, "getting %s", field)
}
