package finance_test

import (
	"context"
	"net/mail"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/academic"
	"github.com/shule/backend/core/finance"
	"github.com/shule/backend/storage/database/inmem"
	"github.com/shule/backend/tests"
)

const notifyEmail = "finance@shule.test"

// mailbox collects the messages instead of sending them.
type mailbox struct {
	mu   sync.Mutex
	msgs []*core.EmailMessage
}

func (mb *mailbox) SendMessages(messages ...*core.EmailMessage) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.msgs = append(mb.msgs, messages...)
}

type fixture struct {
	svc     *finance.Service
	acad    academic.Repository
	school  testutil.School
	mailbox *mailbox
	tuition finance.FeeStructure
	books   finance.FeeStructure
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertAmount(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Equal(t, dec(want).StringFixed(2), got.StringFixed(2), msgAndArgs...)
}

func setup(t *testing.T) fixture {
	db := inmemdb.Open()
	f := fixture{acad: inmemdb.NewAcademicRepository(db), mailbox: new(mailbox)}
	f.svc = finance.NewService(db, inmemdb.NewFinanceRepository(db), f.acad, db, f.mailbox, core.FinanceConfig{
		InvoiceNumberPrefix: "INV",
		NotifyEmail:         notifyEmail,
	})
	f.school = testutil.SeedSchool(t, f.acad)
	f.tuition = f.feeStructure(t, "Tuition", "500")
	f.books = f.feeStructure(t, "Books", "120.50")
	return f
}

func (f fixture) feeStructure(t *testing.T, name, amount string) finance.FeeStructure {
	fs, err := f.svc.CreateFeeStructure(context.Background(), finance.NewFeeStructure{
		Name:           name,
		ClassID:        f.school.Class.ID,
		AcademicYearID: f.school.Year.ID,
		Amount:         dec(amount),
		Frequency:      finance.FrequencyTermly,
	})
	require.NoError(t, err)
	return fs
}

func (f fixture) newInvoice(issue, due core.Date, status finance.InvoiceStatus, items ...finance.NewInvoiceItem) finance.NewInvoice {
	return finance.NewInvoice{
		StudentID:      "student-1",
		AcademicYearID: f.school.Year.ID,
		TermID:         f.school.Term.ID,
		IssueDate:      issue,
		DueDate:        due,
		TotalAmount:    dec("500"),
		Status:         status,
		Items:          items,
	}
}

func (f fixture) invoice(t *testing.T, ni finance.NewInvoice) finance.InvoiceDetail {
	inv, err := f.svc.CreateInvoice(context.Background(), ni, nil)
	require.NoError(t, err)
	return inv
}

func TestService_CreateInvoice_numbering(t *testing.T) {
	f := setup(t)
	jan, feb := core.NewDate(2024, time.January, 10), core.NewDate(2024, time.February, 10)

	numbers := []string{
		f.invoice(t, f.newInvoice(jan, feb, "")).Number,
		f.invoice(t, f.newInvoice(jan, feb, "")).Number,
		f.invoice(t, f.newInvoice(core.NewDate(2025, time.January, 3), core.NewDate(2025, time.February, 3), "")).Number,
		f.invoice(t, f.newInvoice(feb, feb, "")).Number,
	}
	assert.Equal(t, []string{"INV-2024-0001", "INV-2024-0002", "INV-2025-0001", "INV-2024-0003"}, numbers)
}

func TestService_CreateInvoice(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	issue, due := core.NewDate(2024, time.January, 10), core.NewDate(2024, time.February, 10)
	otherYear, err := f.acad.CreateAcademicYear(ctx, academic.AcademicYear{
		Name: "2025", StartDate: core.NewDate(2025, time.January, 6), EndDate: core.NewDate(2025, time.November, 28),
	})
	require.NoError(t, err)

	t.Run("items set the total", func(t *testing.T) {
		inv := f.invoice(t, f.newInvoice(issue, due, "",
			finance.NewInvoiceItem{FeeStructureID: f.tuition.ID},
			finance.NewInvoiceItem{FeeStructureID: f.books.ID, Description: "Grade 1 books", Amount: dec("100")},
		))
		assert.Equal(t, finance.InvoiceDraft, inv.Status)
		assertAmount(t, "600", inv.TotalAmount)
		assertAmount(t, "600", inv.Balance)
		require.Len(t, inv.Items, 2)
		assert.Equal(t, "Tuition", inv.Items[0].Description)
		assertAmount(t, "500", inv.Items[0].Amount)
		assert.Equal(t, "Grade 1 books", inv.Items[1].Description)
		assert.Equal(t, inv.ID, inv.Items[1].InvoiceID)
	})

	t.Run("fully paid at creation", func(t *testing.T) {
		ni := f.newInvoice(issue, due, finance.InvoiceSent)
		ni.PaidAmount = dec("500")
		inv := f.invoice(t, ni)
		assert.Equal(t, finance.InvoicePaid, inv.Status)
		assert.True(t, inv.Balance.IsZero())
	})

	tests := []struct {
		name      string
		ni        finance.NewInvoice
		wantField string
		conflict  bool
	}{
		{
			name: "fee structure billed twice",
			ni: f.newInvoice(issue, due, "",
				finance.NewInvoiceItem{FeeStructureID: f.tuition.ID},
				finance.NewInvoiceItem{FeeStructureID: f.tuition.ID},
			),
			conflict: true,
		},
		{
			name:      "unknown fee structure",
			ni:        f.newInvoice(issue, due, "", finance.NewInvoiceItem{FeeStructureID: "nope"}),
			wantField: "fee_structure_id",
		},
		{
			name: "term of another year",
			ni: func() finance.NewInvoice {
				ni := f.newInvoice(issue, due, "")
				ni.AcademicYearID = otherYear.ID
				return ni
			}(),
			wantField: "term_id",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateInvoice(ctx, tc.ni, nil)
			if tc.conflict {
				assert.True(t, core.IsConflictError(err), "err = %v", err)
				return
			}
			fields, ok := core.ClientErrorFields(err)
			require.True(t, ok, "err = %v", err)
			assert.Contains(t, fields, tc.wantField)
		})
	}
}

func TestService_invoiceItems(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inv := f.invoice(t, f.newInvoice(core.NewDate(2024, time.January, 10), core.NewDate(2024, time.February, 10), finance.InvoiceSent,
		finance.NewInvoiceItem{FeeStructureID: f.tuition.ID},
	))

	detail, err := f.svc.AddInvoiceItem(ctx, inv.ID, finance.NewInvoiceItem{FeeStructureID: f.books.ID})
	require.NoError(t, err)
	assertAmount(t, "620.50", detail.TotalAmount)
	assertAmount(t, "620.50", detail.Balance)
	require.Len(t, detail.Items, 2)

	_, err = f.svc.AddInvoiceItem(ctx, inv.ID, finance.NewInvoiceItem{FeeStructureID: f.books.ID})
	assert.True(t, core.IsConflictError(err), "err = %v", err)

	other := f.invoice(t, f.newInvoice(core.NewDate(2024, time.January, 10), core.NewDate(2024, time.February, 10), ""))
	_, err = f.svc.RemoveInvoiceItem(ctx, other.ID, detail.Items[1].ID)
	assert.True(t, core.IsNotFound(err), "err = %v", err)

	detail, err = f.svc.RemoveInvoiceItem(ctx, inv.ID, detail.Items[1].ID)
	require.NoError(t, err)
	assertAmount(t, "500", detail.TotalAmount)
	require.Len(t, detail.Items, 1)

	stored, err := f.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assertAmount(t, "500", stored.TotalAmount)
	assert.Equal(t, finance.InvoiceSent, stored.Status)

	t.Run("cancelled invoice", func(t *testing.T) {
		_, err := f.svc.CancelInvoice(ctx, other.ID)
		require.NoError(t, err)
		_, err = f.svc.AddInvoiceItem(ctx, other.ID, finance.NewInvoiceItem{FeeStructureID: f.books.ID})
		assert.True(t, core.IsValidationError(err), "err = %v", err)
	})
}

// The store rejects a second item for the same fee structure even when the service check is skipped.
func TestRepository_invoiceItemKey(t *testing.T) {
	repo := inmemdb.NewFinanceRepository(inmemdb.Open())
	ctx := context.Background()
	item := finance.InvoiceItem{InvoiceID: "invoice-1", FeeStructureID: "fee-1", Amount: dec("500")}

	first, err := repo.CreateInvoiceItem(ctx, item)
	require.NoError(t, err)

	_, err = repo.CreateInvoiceItem(ctx, item)
	require.True(t, core.IsConflictError(err), "err = %v", err)
	fields, _ := core.ClientErrorFields(err)
	assert.Contains(t, fields, "fee_structure_id")

	item.InvoiceID = "invoice-2"
	second, err := repo.CreateInvoiceItem(ctx, item)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestService_payments(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inv := f.invoice(t, f.newInvoice(core.NewDate(2024, time.January, 10), core.NewDate(2024, time.February, 10), finance.InvoiceSent,
		finance.NewInvoiceItem{FeeStructureID: f.tuition.ID},
	))
	pay := func(ref, amount string, status finance.PaymentStatus) finance.NewPayment {
		return finance.NewPayment{
			StudentID:            "student-1",
			FeeStructureID:       f.tuition.ID,
			InvoiceID:            &inv.ID,
			AmountPaid:           dec(amount),
			PaymentDate:          core.NewDate(2024, time.January, 20),
			Method:               finance.MethodMobileMoney,
			TransactionReference: ref,
			Status:               status,
		}
	}
	invoice := func() finance.Invoice {
		detail, err := f.svc.GetInvoice(ctx, inv.ID)
		require.NoError(t, err)
		return detail.Invoice
	}

	_, err := f.svc.RecordPayment(ctx, pay("MM-001", "200", finance.PaymentCompleted), nil)
	require.NoError(t, err)
	got := invoice()
	assertAmount(t, "200", got.PaidAmount)
	assertAmount(t, "300", got.Balance)
	assert.Equal(t, finance.InvoiceSent, got.Status)

	pending, err := f.svc.RecordPayment(ctx, pay("MM-002", "300", finance.PaymentPending), nil)
	require.NoError(t, err)
	assertAmount(t, "200", invoice().PaidAmount, "pending payments are not counted")

	_, err = f.svc.UpdatePaymentStatus(ctx, pending.ID, finance.PaymentCompleted)
	require.NoError(t, err)
	got = invoice()
	assertAmount(t, "500", got.PaidAmount)
	assert.True(t, got.Balance.IsZero())
	assert.Equal(t, finance.InvoicePaid, got.Status)

	summary, err := f.svc.PaymentSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalPayments)
	assertAmount(t, "500", summary.TotalAmountReceived)

	t.Run("reused reference", func(t *testing.T) {
		_, err := f.svc.RecordPayment(ctx, pay("MM-001", "10", finance.PaymentCompleted), nil)
		assert.True(t, core.IsConflictError(err), "err = %v", err)
	})

	t.Run("invoice of another student", func(t *testing.T) {
		np := pay("MM-003", "10", finance.PaymentCompleted)
		np.StudentID = "student-2"
		_, err := f.svc.RecordPayment(ctx, np, nil)
		assert.True(t, core.IsValidationError(err), "err = %v", err)
	})

	t.Run("fee structure in use", func(t *testing.T) {
		err := f.svc.DeleteFeeStructure(ctx, f.tuition.ID)
		assert.True(t, core.IsConflictError(err), "err = %v", err)
	})
}

func TestService_MarkOverdueInvoices(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	issue := core.NewDate(2024, time.January, 10)
	today := core.NewDate(2024, time.February, 15)

	late := f.invoice(t, f.newInvoice(issue, core.NewDate(2024, time.February, 1), finance.InvoiceSent))
	notYetDue := f.invoice(t, f.newInvoice(issue, core.NewDate(2024, time.March, 1), finance.InvoiceSent))
	dueToday := f.invoice(t, f.newInvoice(issue, today, finance.InvoiceSent))
	draft := f.invoice(t, f.newInvoice(issue, core.NewDate(2024, time.February, 1), finance.InvoiceDraft))
	settledNI := f.newInvoice(issue, core.NewDate(2024, time.February, 1), finance.InvoiceSent)
	settledNI.PaidAmount = dec("500")
	settled := f.invoice(t, settledNI)

	overdue, err := f.svc.MarkOverdueInvoices(ctx, today)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, late.ID, overdue[0].ID)

	wantStatus := map[string]finance.InvoiceStatus{
		late.ID:      finance.InvoiceOverdue,
		notYetDue.ID: finance.InvoiceSent,
		dueToday.ID:  finance.InvoiceSent,
		draft.ID:     finance.InvoiceDraft,
		settled.ID:   finance.InvoicePaid,
	}
	for id, want := range wantStatus {
		got, err := f.svc.GetInvoice(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status, got.Number)
	}

	require.Len(t, f.mailbox.msgs, 1)
	msg := f.mailbox.msgs[0]
	assert.Equal(t, notifyEmail, msg.To[0].Address)
	assert.Contains(t, msg.Subject, late.Number)

	// a second sweep finds nothing left to flag
	overdue, err = f.svc.MarkOverdueInvoices(ctx, today)
	require.NoError(t, err)
	assert.Empty(t, overdue)

	outstanding, err := f.svc.OutstandingInvoices(ctx)
	require.NoError(t, err)
	assert.Len(t, outstanding, 3)
}

func TestService_SendInvoice(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inv := f.invoice(t, f.newInvoice(core.NewDate(2024, time.January, 10), core.NewDate(2024, time.February, 10), "",
		finance.NewInvoiceItem{FeeStructureID: f.tuition.ID},
	))
	parent := mail.Address{Name: "Parent", Address: "parent@shule.test"}

	sent, err := f.svc.SendInvoice(ctx, inv.ID, []mail.Address{parent})
	require.NoError(t, err)
	assert.Equal(t, finance.InvoiceSent, sent.Status)

	require.Len(t, f.mailbox.msgs, 1)
	msg := f.mailbox.msgs[0]
	assert.Equal(t, []mail.Address{parent}, msg.To)
	require.Len(t, msg.Bcc, 1)
	assert.Equal(t, notifyEmail, msg.Bcc[0].Address)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, inv.Number+".csv", msg.Attachments[0].Filename)
	require.NoError(t, msg.Render("http://localhost"))
	assert.Contains(t, msg.TextContent, inv.Number)

	_, err = f.svc.CancelInvoice(ctx, inv.ID)
	assert.NoError(t, err)
	_, err = f.svc.SendInvoice(ctx, inv.ID, []mail.Address{parent})
	assert.True(t, core.IsValidationError(err), "err = %v", err)
}

func TestService_budgets(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	expenses := []finance.NewExpense{
		{Category: finance.CategorySupplies, Amount: dec("300"), Description: "chalk", ExpenseDate: core.NewDate(2024, time.March, 1)},
		{Category: finance.CategoryUtilities, Amount: dec("200"), Description: "power", ExpenseDate: f.school.Year.EndDate},
		{Category: finance.CategorySupplies, Amount: dec("1000"), Description: "last year", ExpenseDate: core.NewDate(2023, time.December, 1)},
	}
	for _, ne := range expenses {
		_, err := f.svc.CreateExpense(ctx, ne, nil)
		require.NoError(t, err)
	}

	usage, err := f.svc.CreateBudget(ctx, finance.NewBudget{AcademicYearID: f.school.Year.ID, TotalBudget: dec("2000")}, nil)
	require.NoError(t, err)
	assertAmount(t, "500", usage.TotalExpenses)
	assertAmount(t, "1500", usage.Remaining)

	_, err = f.svc.CreateBudget(ctx, finance.NewBudget{AcademicYearID: f.school.Year.ID, TotalBudget: dec("1")}, nil)
	assert.True(t, core.IsConflictError(err), "err = %v", err)

	usage, err = f.svc.UpdateBudget(ctx, usage.ID, finance.NewBudget{AcademicYearID: f.school.Year.ID, TotalBudget: dec("400")})
	require.NoError(t, err)
	assertAmount(t, "-100", usage.Remaining)

	_, err = f.svc.UpdateBudget(ctx, usage.ID, finance.NewBudget{AcademicYearID: f.school.Year.ID, TotalBudget: dec("0")})
	assert.True(t, core.IsValidationError(err), "err = %v", err)

	summary, err := f.svc.BudgetSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Budgets)
	assertAmount(t, "400", summary.TotalBudget)
	assertAmount(t, "500", summary.TotalSpent)

	byCategory, err := f.svc.ExpenseSummary(ctx, finance.ExpenseFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, byCategory.ExpenseCount)
	assertAmount(t, "1500", byCategory.TotalExpenses)
	assert.Len(t, byCategory.ByCategory, len(finance.ExpenseCategories))
	assertAmount(t, "1300", byCategory.ByCategory[finance.CategorySupplies].Total)
	assertAmount(t, "0", byCategory.ByCategory[finance.CategoryMarketing].Total)
}
