package staff

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/shule/backend/core"
)

type EmploymentType string

const (
	FullTime  EmploymentType = "full_time"
	PartTime  EmploymentType = "part_time"
	Contract  EmploymentType = "contract"
	Temporary EmploymentType = "temporary"
)

type Profile struct {
	ID             string          `json:"id" db:"id"`
	UserID         string          `json:"user_id" db:"user_id"`
	EmployeeID     string          `json:"employee_id" db:"employee_id"`
	Department     string          `json:"department" db:"department"`
	Position       string          `json:"position" db:"position"`
	EmploymentType EmploymentType  `json:"employment_type" db:"employment_type"`
	DateOfJoining  core.Date       `json:"date_of_joining" db:"date_of_joining"`
	DateOfLeaving  *core.Date      `json:"date_of_leaving" db:"date_of_leaving"`
	BasicSalary    decimal.Decimal `json:"basic_salary" db:"basic_salary"`
	IsActive       bool            `json:"is_active" db:"is_active"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

type LeaveType string

const (
	LeaveSick      LeaveType = "sick"
	LeaveCasual    LeaveType = "casual"
	LeaveAnnual    LeaveType = "annual"
	LeaveMaternity LeaveType = "maternity"
	LeavePaternity LeaveType = "paternity"
	LeaveUnpaid    LeaveType = "unpaid"
	LeaveStudy     LeaveType = "study"
	LeaveOther     LeaveType = "other"
)

type LeaveStatus string

const (
	LeavePending   LeaveStatus = "pending"
	LeaveApproved  LeaveStatus = "approved"
	LeaveRejected  LeaveStatus = "rejected"
	LeaveCancelled LeaveStatus = "cancelled"
)

type Leave struct {
	ID              string      `json:"id" db:"id"`
	StaffID         string      `json:"staff_id" db:"staff_id"`
	LeaveType       LeaveType   `json:"leave_type" db:"leave_type"`
	StartDate       core.Date   `json:"start_date" db:"start_date"`
	EndDate         core.Date   `json:"end_date" db:"end_date"`
	TotalDays       int         `json:"total_days" db:"total_days"`
	Reason          string      `json:"reason" db:"reason"`
	Status          LeaveStatus `json:"status" db:"status"`
	ApprovedBy      *string     `json:"approved_by" db:"approved_by"`
	ApprovalDate    *time.Time  `json:"approval_date" db:"approval_date"`
	RejectionReason string      `json:"rejection_reason" db:"rejection_reason"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

type AttendanceStatus string

const (
	Present AttendanceStatus = "present"
	Absent  AttendanceStatus = "absent"
	Late    AttendanceStatus = "late"
	HalfDay AttendanceStatus = "half_day"
	OnLeave AttendanceStatus = "on_leave"
)

type Attendance struct {
	ID         string           `json:"id" db:"id"`
	StaffID    string           `json:"staff_id" db:"staff_id"`
	Date       core.Date        `json:"date" db:"date"`
	Status     AttendanceStatus `json:"status" db:"status"`
	CheckIn    *core.ClockTime  `json:"check_in_time" db:"check_in_time"`
	CheckOut   *core.ClockTime  `json:"check_out_time" db:"check_out_time"`
	Remarks    string           `json:"remarks" db:"remarks"`
	RecordedBy *string          `json:"recorded_by" db:"recorded_by"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at" db:"updated_at"`
}

type PayrollStatus string

const (
	PayrollDraft     PayrollStatus = "draft"
	PayrollProcessed PayrollStatus = "processed"
	PayrollPaid      PayrollStatus = "paid"
	PayrollCancelled PayrollStatus = "cancelled"
)

type Payroll struct {
	ID             string          `json:"id" db:"id"`
	StaffID        string          `json:"staff_id" db:"staff_id"`
	AcademicYearID string          `json:"academic_year_id" db:"academic_year_id"`
	TermID         string          `json:"term_id" db:"term_id"`
	Month          int             `json:"month" db:"month"`
	Year           int             `json:"year" db:"year"`
	BasicSalary    decimal.Decimal `json:"basic_salary" db:"basic_salary"`
	Allowances     decimal.Decimal `json:"allowances" db:"allowances"`
	Deductions     decimal.Decimal `json:"deductions" db:"deductions"`
	NetSalary      decimal.Decimal `json:"net_salary" db:"net_salary"`
	PaymentDate    *core.Date      `json:"payment_date" db:"payment_date"`
	Status         PayrollStatus   `json:"status" db:"status"`
	Remarks        string          `json:"remarks" db:"remarks"`
	ProcessedBy    *string         `json:"processed_by" db:"processed_by"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// Statistics

type LeaveStatistics struct {
	TotalLeaves  int            `json:"total_leaves"`
	ByStatus     map[string]int `json:"by_status"`
	ByType       map[string]int `json:"by_type"`
	CurrentMonth int            `json:"current_month"`
}

type AttendanceCounts struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

type AttendanceStatistics struct {
	Today     AttendanceCounts `json:"today"`
	ThisMonth AttendanceCounts `json:"this_month"`
}

type PayrollStatistics struct {
	TotalPayrolls int            `json:"total_payrolls"`
	ByStatus      map[string]int `json:"by_status"`
	CurrentMonth  PayrollTotals  `json:"current_month"`
}

type PayrollTotals struct {
	Count       int             `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// Inputs

type NewProfile struct {
	UserID         string          `json:"user_id" validate:"required"`
	Department     string          `json:"department" validate:"max=100"`
	Position       string          `json:"position" validate:"required,max=100"`
	EmploymentType EmploymentType  `json:"employment_type" validate:"omitempty,oneof=full_time part_time contract temporary"`
	DateOfJoining  core.Date       `json:"date_of_joining" validate:"required"`
	DateOfLeaving  *core.Date      `json:"date_of_leaving"`
	BasicSalary    decimal.Decimal `json:"basic_salary" validate:"gte=0"`
	IsActive       *bool           `json:"is_active"`
}

func (np *NewProfile) Validate(validate *validator.Validate) error {
	np.Department = core.CleanString(np.Department)
	np.Position = core.CleanString(np.Position)
	if np.EmploymentType == "" {
		np.EmploymentType = FullTime
	}
	if err := validate.Struct(np); err != nil {
		return err
	}
	if np.DateOfLeaving != nil && np.DateOfLeaving.Before(np.DateOfJoining) {
		return core.NewFieldError("date_of_leaving", "date of leaving cannot be before the date of joining")
	}
	return nil
}

type NewLeave struct {
	StaffID   string    `json:"staff_id" validate:"required"`
	LeaveType LeaveType `json:"leave_type" validate:"required,oneof=sick casual annual maternity paternity unpaid study other"`
	StartDate core.Date `json:"start_date" validate:"required"`
	EndDate   core.Date `json:"end_date" validate:"required"`
	Reason    string    `json:"reason" validate:"required"`
}

func (nl *NewLeave) Validate(validate *validator.Validate) error {
	nl.Reason = core.CleanString(nl.Reason)
	return validate.Struct(nl)
}

type RejectLeave struct {
	RejectionReason string `json:"rejection_reason" validate:"required"`
}

func (rl *RejectLeave) Validate(validate *validator.Validate) error {
	rl.RejectionReason = core.CleanString(rl.RejectionReason)
	return validate.Struct(rl)
}

type NewAttendance struct {
	StaffID  string           `json:"staff_id" validate:"required"`
	Date     core.Date        `json:"date" validate:"required"`
	Status   AttendanceStatus `json:"status" validate:"required,oneof=present absent late half_day on_leave"`
	CheckIn  *core.ClockTime  `json:"check_in_time"`
	CheckOut *core.ClockTime  `json:"check_out_time"`
	Remarks  string           `json:"remarks"`
}

func (na *NewAttendance) Validate(validate *validator.Validate) error {
	na.Remarks = core.CleanString(na.Remarks)
	if err := validate.Struct(na); err != nil {
		return err
	}
	if na.CheckIn != nil && na.CheckOut != nil && *na.CheckOut < *na.CheckIn {
		return core.NewFieldError("check_out_time", "check-out time cannot be before check-in time")
	}
	return nil
}

type NewPayroll struct {
	StaffID        string          `json:"staff_id" validate:"required"`
	AcademicYearID string          `json:"academic_year_id" validate:"required"`
	TermID         string          `json:"term_id" validate:"required"`
	Month          int             `json:"month" validate:"required"`
	Year           int             `json:"year" validate:"required,gte=1900"`
	BasicSalary    decimal.Decimal `json:"basic_salary" validate:"gte=0"`
	Allowances     decimal.Decimal `json:"allowances" validate:"gte=0"`
	Deductions     decimal.Decimal `json:"deductions" validate:"gte=0"`
	Remarks        string          `json:"remarks"`
}

func (np *NewPayroll) Validate(validate *validator.Validate) error {
	np.Remarks = core.CleanString(np.Remarks)
	if err := ValidateMonth(np.Month); err != nil {
		return err
	}
	return validate.Struct(np)
}

type MarkPayrollPaid struct {
	PaymentDate *core.Date `json:"payment_date"`
}

// Filters

type ProfileFilter struct {
	Department     string         `query:"department"`
	EmploymentType EmploymentType `query:"employment_type"`
	ActiveOnly     bool           `query:"active"`
}

type LeaveFilter struct {
	StaffID   string      `query:"staff_id"`
	LeaveType LeaveType   `query:"leave_type"`
	Status    LeaveStatus `query:"status"`
}

type AttendanceFilter struct {
	StaffID string           `query:"staff_id"`
	Date    *core.Date       `query:"date"`
	From    *core.Date       `query:"from"`
	To      *core.Date       `query:"to"`
	Status  AttendanceStatus `query:"status"`
}

type PayrollFilter struct {
	StaffID string        `query:"staff_id"`
	Month   int           `query:"month"`
	Year    int           `query:"year"`
	Status  PayrollStatus `query:"status"`
}

// Bulk attendance

type BulkAttendanceError struct {
	Index  int               `json:"index"`
	Data   NewAttendance     `json:"data"`
	Errors map[string]string `json:"errors"`
}

type BulkSummary struct {
	Total   int `json:"total"`
	Created int `json:"created"`
	Failed  int `json:"failed"`
}

type BulkAttendanceResult struct {
	Created []Attendance          `json:"created"`
	Errors  []BulkAttendanceError `json:"errors"`
	Summary BulkSummary           `json:"summary"`
}

type ProfileStatistics struct {
	TotalActive      int            `json:"total_active"`
	ByEmploymentType map[string]int `json:"by_employment_type"`
	ByDepartment     map[string]int `json:"by_department"`
}
