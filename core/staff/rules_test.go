package staff

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/shule/backend/core"
)

func TestLeaveDays(t *testing.T) {
	tests := []struct {
		name       string
		start, end core.Date
		want       int
		wantErr    bool
	}{
		{name: "five days", start: core.NewDate(2024, time.January, 1), end: core.NewDate(2024, time.January, 5), want: 5},
		{name: "single day", start: core.NewDate(2024, time.January, 1), end: core.NewDate(2024, time.January, 1), want: 1},
		{name: "across month end", start: core.NewDate(2024, time.February, 28), end: core.NewDate(2024, time.March, 1), want: 3},
		{name: "inverted", start: core.NewDate(2024, time.January, 5), end: core.NewDate(2024, time.January, 1), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LeaveDays(tt.start, tt.end)
			if tt.wantErr {
				assert.True(t, core.IsValidationError(err))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPayroll_ApplyDerivedState(t *testing.T) {
	p := Payroll{
		BasicSalary: decimal.RequireFromString("1000"),
		Allowances:  decimal.RequireFromString("200"),
		Deductions:  decimal.RequireFromString("150"),
	}
	p.ApplyDerivedState()
	assert.True(t, decimal.RequireFromString("1050").Equal(p.NetSalary), "net = %s", p.NetSalary)

	p.ApplyDerivedState()
	assert.True(t, decimal.RequireFromString("1050").Equal(p.NetSalary))

	p.Deductions = decimal.RequireFromString("1500")
	p.ApplyDerivedState()
	assert.True(t, decimal.RequireFromString("-300").Equal(p.NetSalary))
}

func TestValidateMonth(t *testing.T) {
	for _, m := range []int{1, 6, 12} {
		assert.NoError(t, ValidateMonth(m))
	}
	for _, m := range []int{0, 13, -1} {
		assert.True(t, core.IsValidationError(ValidateMonth(m)), "month %d", m)
	}
}

func TestFormatEmployeeID(t *testing.T) {
	joined := core.NewDate(2024, time.January, 15)
	assert.Equal(t, "EMP202401151234", FormatEmployeeID("", joined, 1234))
	assert.Equal(t, "STF202401159999", FormatEmployeeID("STF", joined, 9999))
}
