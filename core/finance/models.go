package finance

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/shule/backend/core"
)

type Frequency string

const (
	FrequencyOnce    Frequency = "once"
	FrequencyTermly  Frequency = "termly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

type FeeStructure struct {
	ID             string          `json:"id" db:"id"`
	Name           string          `json:"name" db:"name"`
	Description    string          `json:"description" db:"description"`
	ClassID        string          `json:"class_id" db:"class_id"`
	AcademicYearID string          `json:"academic_year_id" db:"academic_year_id"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	Frequency      Frequency       `json:"frequency" db:"frequency"`
	IsMandatory    bool            `json:"is_mandatory" db:"is_mandatory"`
	IsActive       bool            `json:"is_active" db:"is_active"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

type Invoice struct {
	ID             string          `json:"id" db:"id"`
	Number         string          `json:"invoice_number" db:"invoice_number"`
	StudentID      string          `json:"student_id" db:"student_id"`
	AcademicYearID string          `json:"academic_year_id" db:"academic_year_id"`
	TermID         string          `json:"term_id" db:"term_id"`
	IssueDate      core.Date       `json:"issue_date" db:"issue_date"`
	DueDate        core.Date       `json:"due_date" db:"due_date"`
	TotalAmount    decimal.Decimal `json:"total_amount" db:"total_amount"`
	PaidAmount     decimal.Decimal `json:"paid_amount" db:"paid_amount"`
	Balance        decimal.Decimal `json:"balance" db:"balance"`
	Status         InvoiceStatus   `json:"status" db:"status"`
	Notes          string          `json:"notes" db:"notes"`
	CreatedBy      *string         `json:"created_by" db:"created_by"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

type InvoiceItem struct {
	ID             string          `json:"id" db:"id"`
	InvoiceID      string          `json:"invoice_id" db:"invoice_id"`
	FeeStructureID string          `json:"fee_structure_id" db:"fee_structure_id"`
	Description    string          `json:"description" db:"description"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// InvoiceDetail is an invoice with its line items.
type InvoiceDetail struct {
	Invoice
	Items []InvoiceItem `json:"items"`
}

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodMobileMoney  PaymentMethod = "mobile_money"
	MethodCheque       PaymentMethod = "cheque"
	MethodCard         PaymentMethod = "card"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type Payment struct {
	ID                   string          `json:"id" db:"id"`
	StudentID            string          `json:"student_id" db:"student_id"`
	FeeStructureID       string          `json:"fee_structure_id" db:"fee_structure_id"`
	InvoiceID            *string         `json:"invoice_id" db:"invoice_id"`
	TermID               *string         `json:"term_id" db:"term_id"`
	AmountPaid           decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	PaymentDate          core.Date       `json:"payment_date" db:"payment_date"`
	Method               PaymentMethod   `json:"payment_method" db:"payment_method"`
	TransactionReference string          `json:"transaction_reference" db:"transaction_reference"`
	Status               PaymentStatus   `json:"status" db:"status"`
	Remarks              string          `json:"remarks" db:"remarks"`
	RecordedBy           *string         `json:"recorded_by" db:"recorded_by"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at" db:"updated_at"`
}

type ExpenseCategory string

const (
	CategorySalaries    ExpenseCategory = "salaries"
	CategoryUtilities   ExpenseCategory = "utilities"
	CategoryMaintenance ExpenseCategory = "maintenance"
	CategorySupplies    ExpenseCategory = "supplies"
	CategoryMarketing   ExpenseCategory = "marketing"
	CategoryOther       ExpenseCategory = "other"
)

// ExpenseCategories lists the categories in display order, with their labels.
var ExpenseCategories = []struct {
	Category ExpenseCategory
	Name     string
}{
	{CategorySalaries, "Salaries"},
	{CategoryUtilities, "Utilities"},
	{CategoryMaintenance, "Maintenance"},
	{CategorySupplies, "Supplies"},
	{CategoryMarketing, "Marketing"},
	{CategoryOther, "Other"},
}

type Expense struct {
	ID          string          `json:"id" db:"id"`
	Category    ExpenseCategory `json:"category" db:"category"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Description string          `json:"description" db:"description"`
	ExpenseDate core.Date       `json:"expense_date" db:"expense_date"`
	RecordedBy  *string         `json:"recorded_by" db:"recorded_by"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

type Budget struct {
	ID             string          `json:"id" db:"id"`
	AcademicYearID string          `json:"academic_year_id" db:"academic_year_id"`
	TotalBudget    decimal.Decimal `json:"total_budget" db:"total_budget"`
	Description    string          `json:"description" db:"description"`
	CreatedBy      *string         `json:"created_by" db:"created_by"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// BudgetUsage is a budget with its spending over the academic year, derived when read.
type BudgetUsage struct {
	Budget
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	Remaining     decimal.Decimal `json:"remaining_budget"`
}

// Summaries

type InvoiceSummary struct {
	TotalInvoices    int             `json:"total_invoices"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	PaidInvoices     int             `json:"paid_invoices"`
	OverdueInvoices  int             `json:"overdue_invoices"`
}

type PaymentSummary struct {
	TotalPayments       int             `json:"total_payments"`
	TotalAmountReceived decimal.Decimal `json:"total_amount_received"`
	PendingPayments     int             `json:"pending_payments"`
}

type CategoryTotal struct {
	Name  string          `json:"name"`
	Total decimal.Decimal `json:"total"`
}

type ExpenseSummary struct {
	TotalExpenses decimal.Decimal                   `json:"total_expenses"`
	ExpenseCount  int                               `json:"expense_count"`
	ByCategory    map[ExpenseCategory]CategoryTotal `json:"by_category"`
}

type BudgetSummary struct {
	TotalBudget    decimal.Decimal `json:"total_budget"`
	TotalSpent     decimal.Decimal `json:"total_spent"`
	TotalRemaining decimal.Decimal `json:"total_remaining"`
	Budgets        int             `json:"budgets"`
}

// Inputs

type NewFeeStructure struct {
	Name           string          `json:"name" validate:"required,max=100"`
	Description    string          `json:"description"`
	ClassID        string          `json:"class_id" validate:"required"`
	AcademicYearID string          `json:"academic_year_id" validate:"required"`
	Amount         decimal.Decimal `json:"amount" validate:"gt=0"`
	Frequency      Frequency       `json:"frequency" validate:"omitempty,oneof=once termly monthly yearly"`
	IsMandatory    *bool           `json:"is_mandatory"`
	IsActive       *bool           `json:"is_active"`
}

func (nf *NewFeeStructure) Validate(validate *validator.Validate) error {
	nf.Name = core.CleanString(nf.Name)
	nf.Description = core.CleanString(nf.Description)
	if nf.Frequency == "" {
		nf.Frequency = FrequencyTermly
	}
	return validate.Struct(nf)
}

type NewInvoiceItem struct {
	FeeStructureID string `json:"fee_structure_id" validate:"required"`
	Description    string `json:"description" validate:"max=255"`
	// Amount defaults to the fee structure amount when zero.
	Amount decimal.Decimal `json:"amount" validate:"gte=0"`
}

func (ni *NewInvoiceItem) Validate(validate *validator.Validate) error {
	ni.Description = core.CleanString(ni.Description)
	return validate.Struct(ni)
}

// NewInvoice holds what is needed to create or replace an Invoice.
// When Items are given, TotalAmount is ignored and computed from them.
type NewInvoice struct {
	StudentID      string           `json:"student_id" validate:"required"`
	AcademicYearID string           `json:"academic_year_id" validate:"required"`
	TermID         string           `json:"term_id" validate:"required"`
	IssueDate      core.Date        `json:"issue_date" validate:"required"`
	DueDate        core.Date        `json:"due_date" validate:"required"`
	TotalAmount    decimal.Decimal  `json:"total_amount" validate:"gte=0"`
	PaidAmount     decimal.Decimal  `json:"paid_amount" validate:"gte=0"`
	Status         InvoiceStatus    `json:"status" validate:"omitempty,oneof=draft sent paid overdue cancelled"`
	Notes          string           `json:"notes"`
	Items          []NewInvoiceItem `json:"items" validate:"dive"`
}

func (ni *NewInvoice) Validate(validate *validator.Validate) error {
	ni.Notes = core.CleanString(ni.Notes)
	for i := range ni.Items {
		ni.Items[i].Description = core.CleanString(ni.Items[i].Description)
	}
	if err := validate.Struct(ni); err != nil {
		return err
	}
	if ni.DueDate.Before(ni.IssueDate) {
		return core.NewFieldError("due_date", "due date cannot be before the issue date")
	}
	if len(ni.Items) == 0 {
		return ValidateInvoiceAmounts(ni.TotalAmount, ni.PaidAmount)
	}
	return nil
}

// UpdateInvoice holds the replaceable fields of an invoice. The number, student, year & term are fixed at creation.
type UpdateInvoice struct {
	IssueDate core.Date `json:"issue_date" validate:"required"`
	DueDate   core.Date `json:"due_date" validate:"required"`
	// TotalAmount is ignored for invoices having line items.
	TotalAmount decimal.Decimal `json:"total_amount" validate:"gte=0"`
	PaidAmount  decimal.Decimal `json:"paid_amount" validate:"gte=0"`
	Status      InvoiceStatus   `json:"status" validate:"required,oneof=draft sent paid overdue cancelled"`
	Notes       string          `json:"notes"`
}

func (ui *UpdateInvoice) Validate(validate *validator.Validate) error {
	ui.Notes = core.CleanString(ui.Notes)
	if err := validate.Struct(ui); err != nil {
		return err
	}
	if ui.DueDate.Before(ui.IssueDate) {
		return core.NewFieldError("due_date", "due date cannot be before the issue date")
	}
	return nil
}

type NewPayment struct {
	StudentID            string          `json:"student_id" validate:"required"`
	FeeStructureID       string          `json:"fee_structure_id" validate:"required"`
	InvoiceID            *string         `json:"invoice_id"`
	TermID               *string         `json:"term_id"`
	AmountPaid           decimal.Decimal `json:"amount_paid" validate:"gt=0"`
	PaymentDate          core.Date       `json:"payment_date" validate:"required"`
	Method               PaymentMethod   `json:"payment_method" validate:"required,oneof=cash bank_transfer mobile_money cheque card"`
	TransactionReference string          `json:"transaction_reference" validate:"required,max=100"`
	Status               PaymentStatus   `json:"status" validate:"omitempty,oneof=pending completed failed refunded"`
	Remarks              string          `json:"remarks"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	if np.InvoiceID != nil {
		np.InvoiceID = core.StringPtr(*np.InvoiceID)
	}
	if np.TermID != nil {
		np.TermID = core.StringPtr(*np.TermID)
	}
	np.TransactionReference = core.CleanString(np.TransactionReference)
	np.Remarks = core.CleanString(np.Remarks)
	if np.Status == "" {
		np.Status = PaymentCompleted
	}
	return validate.Struct(np)
}

type PaymentStatusUpdate struct {
	Status PaymentStatus `json:"status" validate:"required,oneof=pending completed failed refunded"`
}

func (pu *PaymentStatusUpdate) Validate(validate *validator.Validate) error {
	return validate.Struct(pu)
}

type NewExpense struct {
	Category    ExpenseCategory `json:"category" validate:"required,oneof=salaries utilities maintenance supplies marketing other"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Description string          `json:"description" validate:"required"`
	ExpenseDate core.Date       `json:"expense_date" validate:"required"`
}

func (ne *NewExpense) Validate(validate *validator.Validate) error {
	ne.Description = core.CleanString(ne.Description)
	return validate.Struct(ne)
}

type NewBudget struct {
	AcademicYearID string          `json:"academic_year_id" validate:"required"`
	TotalBudget    decimal.Decimal `json:"total_budget" validate:"gt=0"`
	Description    string          `json:"description"`
}

func (nb *NewBudget) Validate(validate *validator.Validate) error {
	nb.Description = core.CleanString(nb.Description)
	return validate.Struct(nb)
}

// Filters

type FeeStructureFilter struct {
	ClassID        string    `query:"class_id"`
	AcademicYearID string    `query:"academic_year_id"`
	Frequency      Frequency `query:"frequency"`
	ActiveOnly     bool      `query:"active"`
}

type InvoiceFilter struct {
	StudentID      string          `query:"student_id"`
	AcademicYearID string          `query:"academic_year_id"`
	TermID         string          `query:"term_id"`
	Statuses       []InvoiceStatus `query:"status"`
	// DueBefore keeps invoices due strictly before the date.
	DueBefore *core.Date `query:"-"`
	// Outstanding keeps invoices with a positive balance.
	Outstanding bool `query:"-"`
}

type PaymentFilter struct {
	StudentID      string        `query:"student_id"`
	FeeStructureID string        `query:"fee_structure_id"`
	InvoiceID      string        `query:"invoice_id"`
	TermID         string        `query:"term_id"`
	Method         PaymentMethod `query:"payment_method"`
	Status         PaymentStatus `query:"status"`
}

type ExpenseFilter struct {
	Category ExpenseCategory `query:"category"`
	From     *core.Date      `query:"from"`
	To       *core.Date      `query:"to"`
}
