package staff

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/shule/backend/core"
)

const (
	msgLeaveDates      = "End date must be later than or equal to start date."
	msgMonthRange      = "Month must be between 1 and 12."
	msgLeaveNotPending = "Only pending leaves can be %s."
	msgPayrollNotDraft = "Only draft payrolls can be processed."
	msgPayrollStatus   = "Invalid payroll status."
)

// LeaveDays counts the days of a leave, both ends included.
func LeaveDays(start, end core.Date) (int, error) {
	if end.Before(start) {
		return 0, core.NewFieldError("end_date", msgLeaveDates)
	}
	return start.DaysUntil(end) + 1, nil
}

// NetSalary is basic + allowances - deductions.
func NetSalary(basic, allowances, deductions decimal.Decimal) decimal.Decimal {
	return basic.Add(allowances).Sub(deductions)
}

// ApplyDerivedState recomputes the net salary.
func (p *Payroll) ApplyDerivedState() {
	p.NetSalary = NetSalary(p.BasicSalary, p.Allowances, p.Deductions)
}

func ValidateMonth(month int) error {
	if month < 1 || month > 12 {
		return core.NewFieldError("month", msgMonthRange)
	}
	return nil
}

// FormatEmployeeID returns e.g. EMP202401151234.
func FormatEmployeeID(prefix string, joined core.Date, n int) string {
	if prefix == "" {
		prefix = "EMP"
	}
	return fmt.Sprintf("%s%s%04d", prefix, joined.Format("20060102"), n)
}
