package finance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/academic"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestInvoice_ApplyDerivedState(t *testing.T) {
	tests := []struct {
		name        string
		total, paid string
		status      InvoiceStatus
		wantBalance string
		wantStatus  InvoiceStatus
	}{
		{name: "fully paid", total: "500", paid: "500", status: InvoiceSent, wantBalance: "0", wantStatus: InvoicePaid},
		{name: "fully paid draft", total: "500", paid: "500", status: InvoiceDraft, wantBalance: "0", wantStatus: InvoicePaid},
		{name: "overpaid", total: "500", paid: "600", status: InvoiceOverdue, wantBalance: "-100", wantStatus: InvoicePaid},
		{name: "partially paid keeps status", total: "500", paid: "200", status: InvoiceSent, wantBalance: "300", wantStatus: InvoiceSent},
		{name: "partially paid draft", total: "500", paid: "200", status: InvoiceDraft, wantBalance: "300", wantStatus: InvoiceDraft},
		{name: "cancelled stays cancelled", total: "500", paid: "500", status: InvoiceCancelled, wantBalance: "0", wantStatus: InvoiceCancelled},
		{name: "paid stays paid", total: "500", paid: "100", status: InvoicePaid, wantBalance: "400", wantStatus: InvoicePaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := Invoice{TotalAmount: dec(tt.total), PaidAmount: dec(tt.paid), Status: tt.status}
			inv.ApplyDerivedState()
			assert.True(t, dec(tt.wantBalance).Equal(inv.Balance), "balance = %s", inv.Balance)
			assert.Equal(t, tt.wantStatus, inv.Status)

			// idempotent
			again := inv
			again.ApplyDerivedState()
			assert.True(t, inv.Balance.Equal(again.Balance))
			assert.Equal(t, inv.Status, again.Status)
		})
	}
}

func TestInvoice_RecomputeTotal(t *testing.T) {
	inv := Invoice{Status: InvoiceDraft, PaidAmount: decimal.Zero}

	inv.RecomputeTotal(nil)
	assert.True(t, inv.TotalAmount.IsZero())

	item := InvoiceItem{ID: "i1", Amount: dec("100")}
	inv.Status = InvoiceDraft
	inv.RecomputeTotal([]InvoiceItem{item})
	assert.True(t, dec("100").Equal(inv.TotalAmount))
	assert.True(t, dec("100").Equal(inv.Balance))
	assert.Equal(t, InvoiceDraft, inv.Status)

	// recomputing twice gives the same result
	inv.RecomputeTotal([]InvoiceItem{item})
	assert.True(t, dec("100").Equal(inv.TotalAmount))

	inv.RecomputeTotal([]InvoiceItem{})
	assert.True(t, inv.TotalAmount.IsZero())
}

func TestInvoice_RecomputePaid(t *testing.T) {
	payments := []Payment{
		{AmountPaid: dec("150.50"), Status: PaymentCompleted},
		{AmountPaid: dec("100"), Status: PaymentPending},
		{AmountPaid: dec("49.50"), Status: PaymentCompleted},
		{AmountPaid: dec("300"), Status: PaymentRefunded},
		{AmountPaid: dec("300"), Status: PaymentFailed},
	}
	inv := Invoice{TotalAmount: dec("500"), Status: InvoiceSent}
	inv.RecomputePaid(payments)
	assert.True(t, dec("200").Equal(inv.PaidAmount), "paid = %s", inv.PaidAmount)
	assert.True(t, dec("300").Equal(inv.Balance))
	assert.Equal(t, InvoiceSent, inv.Status)

	payments[1].Status = PaymentCompleted
	payments[3].Status = PaymentCompleted
	inv.RecomputePaid(payments)
	assert.Equal(t, InvoicePaid, inv.Status)
}

func TestInvoice_IsOverdue(t *testing.T) {
	today := core.NewDate(2024, time.March, 10)
	base := Invoice{Status: InvoiceSent, DueDate: core.NewDate(2024, time.March, 9), Balance: dec("10")}

	assert.True(t, base.IsOverdue(today))

	dueToday := base
	dueToday.DueDate = today
	assert.False(t, dueToday.IsOverdue(today))

	settled := base
	settled.Balance = decimal.Zero
	assert.False(t, settled.IsOverdue(today))

	draft := base
	draft.Status = InvoiceDraft
	assert.False(t, draft.IsOverdue(today))
}

func TestFormatInvoiceNumber(t *testing.T) {
	assert.Equal(t, "INV-2024-0001", FormatInvoiceNumber("", 2024, 1))
	assert.Equal(t, "INV-2024-0042", FormatInvoiceNumber("INV", 2024, 42))
	assert.Equal(t, "FEE-2025-12345", FormatInvoiceNumber("FEE", 2025, 12345))
}

func TestValidateInvoiceAmounts(t *testing.T) {
	assert.NoError(t, ValidateInvoiceAmounts(dec("500"), dec("500")))
	assert.True(t, core.IsValidationError(ValidateInvoiceAmounts(decimal.Zero, decimal.Zero)))
	assert.True(t, core.IsValidationError(ValidateInvoiceAmounts(dec("100"), dec("100.01"))))
}

func TestBudget_Usage(t *testing.T) {
	year := academic.AcademicYear{
		StartDate: core.NewDate(2024, time.January, 1),
		EndDate:   core.NewDate(2024, time.December, 31),
	}
	expenses := []Expense{
		{Amount: dec("100"), ExpenseDate: core.NewDate(2024, time.January, 1)},
		{Amount: dec("250.25"), ExpenseDate: core.NewDate(2024, time.June, 15)},
		{Amount: dec("50"), ExpenseDate: core.NewDate(2024, time.December, 31)},
		{Amount: dec("999"), ExpenseDate: core.NewDate(2023, time.December, 31)},
		{Amount: dec("999"), ExpenseDate: core.NewDate(2025, time.January, 1)},
	}
	usage := Budget{TotalBudget: dec("1000")}.Usage(year, expenses)
	assert.True(t, dec("400.25").Equal(usage.TotalExpenses), "spent = %s", usage.TotalExpenses)
	assert.True(t, dec("599.75").Equal(usage.Remaining), "remaining = %s", usage.Remaining)
}
