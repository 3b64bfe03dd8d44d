package finance

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/academic"
)

const defaultNumberPrefix = "INV"

// ApplyDerivedState sets the balance from the total & paid amounts and settles the invoice once
// nothing is left to pay. Paid and cancelled invoices keep their status.
func (inv *Invoice) ApplyDerivedState() {
	inv.Balance = inv.TotalAmount.Sub(inv.PaidAmount)
	if !inv.Balance.IsPositive() && inv.Status != InvoicePaid && inv.Status != InvoiceCancelled {
		inv.Status = InvoicePaid
	}
}

// RecomputeTotal sets the total amount to the sum of items, then re-applies the derived state.
func (inv *Invoice) RecomputeTotal(items []InvoiceItem) {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount)
	}
	inv.TotalAmount = total
	inv.ApplyDerivedState()
}

// RecomputePaid sets the paid amount to the sum of the completed payments, then re-applies the derived state.
func (inv *Invoice) RecomputePaid(payments []Payment) {
	paid := decimal.Zero
	for _, p := range payments {
		if p.Status == PaymentCompleted {
			paid = paid.Add(p.AmountPaid)
		}
	}
	inv.PaidAmount = paid
	inv.ApplyDerivedState()
}

// IsOutstanding reports whether the invoice was issued and still awaits payment.
func (inv Invoice) IsOutstanding() bool {
	return (inv.Status == InvoiceSent || inv.Status == InvoiceOverdue) && inv.Balance.IsPositive()
}

// IsOverdue reports whether a sent invoice is past its due date on day `today` with a balance left.
func (inv Invoice) IsOverdue(today core.Date) bool {
	return inv.Status == InvoiceSent && inv.DueDate.Before(today) && inv.Balance.IsPositive()
}

// FormatInvoiceNumber builds numbers like INV-2024-0001.
func FormatInvoiceNumber(prefix string, year int, seq int64) string {
	if prefix == "" {
		prefix = defaultNumberPrefix
	}
	return fmt.Sprintf("%s-%d-%04d", prefix, year, seq)
}

// ValidateInvoiceAmounts checks amounts entered by hand, i.e. without line items.
func ValidateInvoiceAmounts(total, paid decimal.Decimal) error {
	if !total.IsPositive() {
		return core.NewFieldError("total_amount", "Total amount must be greater than zero.")
	}
	if paid.GreaterThan(total) {
		return core.NewFieldError("paid_amount", "Amount paid cannot exceed total amount.")
	}
	return nil
}

// ExpensesWithin sums the expenses dated within the academic year, bounds included.
func ExpensesWithin(year academic.AcademicYear, expenses []Expense) decimal.Decimal {
	spent := decimal.Zero
	for _, e := range expenses {
		if year.Contains(e.ExpenseDate) {
			spent = spent.Add(e.Amount)
		}
	}
	return spent
}

// Usage derives the spending of b over its academic year.
func (b Budget) Usage(year academic.AcademicYear, expenses []Expense) BudgetUsage {
	spent := ExpensesWithin(year, expenses)
	return BudgetUsage{Budget: b, TotalExpenses: spent, Remaining: b.TotalBudget.Sub(spent)}
}
