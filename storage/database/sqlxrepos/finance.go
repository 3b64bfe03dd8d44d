package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/finance"
)

const (
	feeStructureColumns = `id, name, description, class_id, academic_year_id, amount, frequency, is_mandatory, is_active,
		created_at, updated_at`
	invoiceColumns = `id, invoice_number, student_id, academic_year_id, term_id, issue_date, due_date, total_amount,
		paid_amount, balance, status, notes, created_by, created_at, updated_at`
	invoiceItemColumns = `id, invoice_id, fee_structure_id, description, amount, created_at`
	paymentColumns     = `id, student_id, fee_structure_id, invoice_id, term_id, amount_paid, payment_date, payment_method,
		transaction_reference, status, remarks, recorded_by, created_at, updated_at`
	expenseColumns = `id, category, amount, description, expense_date, recorded_by, created_at, updated_at`
	budgetColumns  = `id, academic_year_id, total_budget, description, created_by, created_at, updated_at`
)

type financeRepository struct {
	baseRepository
}

var _ finance.Repository = (*financeRepository)(nil) // interface compliance check

func NewFinanceRepository(exec core.DBExecutor) *financeRepository {
	return &financeRepository{baseRepository{exec: exec}}
}

// Fee structures

func (repo financeRepository) CreateFeeStructure(ctx context.Context, fs finance.FeeStructure, exec ...core.DBExecutor) (finance.FeeStructure, error) {
	fs.ID = newID()
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO fee_structure (`+feeStructureColumns+`)
		VALUES (:id, :name, :description, :class_id, :academic_year_id, :amount, :frequency, :is_mandatory, :is_active,
			:created_at, :updated_at)`, fs)
	if err = trapUniqueViolation(err, "fee_structure", map[string]string{"fee_structure_key": "name"}); err != nil {
		return finance.FeeStructure{}, errors.Wrap(err, "inserting fee structure")
	}
	return fs, nil
}

func (repo financeRepository) UpdateFeeStructure(ctx context.Context, fs finance.FeeStructure, exec ...core.DBExecutor) (finance.FeeStructure, error) {
	err := namedUpdate(ctx, repo.getExec(exec), finance.ErrFeeStructureNotFound, `
		UPDATE fee_structure SET name = :name, description = :description, class_id = :class_id,
			academic_year_id = :academic_year_id, amount = :amount, frequency = :frequency, is_mandatory = :is_mandatory,
			is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`, fs)
	if err = trapUniqueViolation(err, "fee_structure", map[string]string{"fee_structure_key": "name"}); err != nil {
		return finance.FeeStructure{}, wrapGet(err, finance.ErrFeeStructureNotFound, "updating fee structure")
	}
	return fs, nil
}

func (repo financeRepository) DeleteFeeStructure(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return deleteByID(ctx, repo.getExec(exec), "fee_structure", id, finance.ErrFeeStructureNotFound)
}

func (repo financeRepository) GetFeeStructure(ctx context.Context, id string, exec ...core.DBExecutor) (finance.FeeStructure, error) {
	var fs finance.FeeStructure
	err := get(ctx, repo.getExec(exec), &fs, finance.ErrFeeStructureNotFound,
		`SELECT `+feeStructureColumns+` FROM fee_structure WHERE id = ?`, id)
	if err != nil {
		return finance.FeeStructure{}, wrapGet(err, finance.ErrFeeStructureNotFound, "selecting fee structure")
	}
	return fs, nil
}

func (repo financeRepository) QueryFeeStructures(ctx context.Context, filter finance.FeeStructureFilter, exec ...core.DBExecutor) ([]finance.FeeStructure, error) {
	w := &where{}
	if filter.ClassID != "" {
		w.add("class_id::text = ?", filter.ClassID)
	}
	if filter.AcademicYearID != "" {
		w.add("academic_year_id::text = ?", filter.AcademicYearID)
	}
	if filter.Frequency != "" {
		w.add("frequency = ?", filter.Frequency)
	}
	if filter.ActiveOnly {
		w.add("is_active")
	}
	res := make([]finance.FeeStructure, 0)
	err := selectAll(ctx, repo.getExec(exec), &res, `SELECT `+feeStructureColumns+` FROM fee_structure`+w.String()+` ORDER BY name`, w.args...)
	return res, errors.Wrap(err, "selecting fee structures")
}

func (repo financeRepository) FeeStructureExists(ctx context.Context, name, classID, yearID, excludeID string, exec ...core.DBExecutor) (bool, error) {
	return exists(ctx, repo.getExec(exec), `
		SELECT 1 FROM fee_structure
		WHERE name = ? AND class_id::text = ? AND academic_year_id::text = ? AND id::text <> ?`,
		name, classID, yearID, excludeID)
}

func (repo financeRepository) FeeStructureInUse(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error) {
	return exists(ctx, repo.getExec(exec), `
		SELECT 1 FROM invoice_item WHERE fee_structure_id::text = ?
		UNION ALL
		SELECT 1 FROM payment WHERE fee_structure_id::text = ?`, id, id)
}

// Invoices

func (repo financeRepository) CreateInvoice(ctx context.Context, inv finance.Invoice, exec ...core.DBExecutor) (finance.Invoice, error) {
	inv.ID = newID()
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO invoice (`+invoiceColumns+`)
		VALUES (:id, :invoice_number, :student_id, :academic_year_id, :term_id, :issue_date, :due_date, :total_amount,
			:paid_amount, :balance, :status, :notes, :created_by, :created_at, :updated_at)`, inv)
	if err = trapUniqueViolation(err, "invoice", map[string]string{"invoice_invoice_number_key": "invoice_number"}); err != nil {
		return finance.Invoice{}, errors.Wrap(err, "inserting invoice")
	}
	return inv, nil
}

func (repo financeRepository) UpdateInvoice(ctx context.Context, inv finance.Invoice, exec ...core.DBExecutor) (finance.Invoice, error) {
	err := namedUpdate(ctx, repo.getExec(exec), finance.ErrInvoiceNotFound, `
		UPDATE invoice SET student_id = :student_id, academic_year_id = :academic_year_id, term_id = :term_id,
			issue_date = :issue_date, due_date = :due_date, total_amount = :total_amount, paid_amount = :paid_amount,
			balance = :balance, status = :status, notes = :notes, updated_at = :updated_at
		WHERE id = :id`, inv)
	if err != nil {
		return finance.Invoice{}, wrapGet(err, finance.ErrInvoiceNotFound, "updating invoice")
	}
	return inv, nil
}

func (repo financeRepository) GetInvoice(ctx context.Context, id string, exec ...core.DBExecutor) (finance.Invoice, error) {
	var inv finance.Invoice
	err := get(ctx, repo.getExec(exec), &inv, finance.ErrInvoiceNotFound, `SELECT `+invoiceColumns+` FROM invoice WHERE id = ?`, id)
	if err != nil {
		return finance.Invoice{}, wrapGet(err, finance.ErrInvoiceNotFound, "selecting invoice")
	}
	return inv, nil
}

func (repo financeRepository) QueryInvoices(ctx context.Context, filter finance.InvoiceFilter, exec ...core.DBExecutor) ([]finance.Invoice, error) {
	w := &where{}
	if filter.StudentID != "" {
		w.add("student_id::text = ?", filter.StudentID)
	}
	if filter.AcademicYearID != "" {
		w.add("academic_year_id::text = ?", filter.AcademicYearID)
	}
	if filter.TermID != "" {
		w.add("term_id::text = ?", filter.TermID)
	}
	if len(filter.Statuses) > 0 {
		if err := w.in("status", filter.Statuses); err != nil {
			return nil, err
		}
	}
	if filter.DueBefore != nil {
		w.add("due_date < ?", *filter.DueBefore)
	}
	if filter.Outstanding {
		w.add("balance > 0")
	}
	res := make([]finance.Invoice, 0)
	err := selectAll(ctx, repo.getExec(exec), &res,
		`SELECT `+invoiceColumns+` FROM invoice`+w.String()+` ORDER BY issue_date DESC, invoice_number DESC`, w.args...)
	return res, errors.Wrap(err, "selecting invoices")
}

// Invoice items

func (repo financeRepository) CreateInvoiceItem(ctx context.Context, item finance.InvoiceItem, exec ...core.DBExecutor) (finance.InvoiceItem, error) {
	item.ID = newID()
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO invoice_item (`+invoiceItemColumns+`)
		VALUES (:id, :invoice_id, :fee_structure_id, :description, :amount, :created_at)`, item)
	if err = trapUniqueViolation(err, "invoice_item", map[string]string{"invoice_item_fee_key": "fee_structure_id"}); err != nil {
		return finance.InvoiceItem{}, errors.Wrap(err, "inserting invoice item")
	}
	return item, nil
}

func (repo financeRepository) DeleteInvoiceItem(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return deleteByID(ctx, repo.getExec(exec), "invoice_item", id, finance.ErrInvoiceItemNotFound)
}

func (repo financeRepository) GetInvoiceItem(ctx context.Context, id string, exec ...core.DBExecutor) (finance.InvoiceItem, error) {
	var item finance.InvoiceItem
	err := get(ctx, repo.getExec(exec), &item, finance.ErrInvoiceItemNotFound,
		`SELECT `+invoiceItemColumns+` FROM invoice_item WHERE id = ?`, id)
	if err != nil {
		return finance.InvoiceItem{}, wrapGet(err, finance.ErrInvoiceItemNotFound, "selecting invoice item")
	}
	return item, nil
}

func (repo financeRepository) QueryInvoiceItems(ctx context.Context, invoiceID string, exec ...core.DBExecutor) ([]finance.InvoiceItem, error) {
	items := make([]finance.InvoiceItem, 0)
	err := selectAll(ctx, repo.getExec(exec), &items,
		`SELECT `+invoiceItemColumns+` FROM invoice_item WHERE invoice_id::text = ? ORDER BY created_at`, invoiceID)
	return items, errors.Wrap(err, "selecting invoice items")
}

func (repo financeRepository) InvoiceItemExists(ctx context.Context, invoiceID, feeStructureID string, exec ...core.DBExecutor) (bool, error) {
	return exists(ctx, repo.getExec(exec),
		`SELECT 1 FROM invoice_item WHERE invoice_id::text = ? AND fee_structure_id::text = ?`, invoiceID, feeStructureID)
}

// Payments

func (repo financeRepository) CreatePayment(ctx context.Context, p finance.Payment, exec ...core.DBExecutor) (finance.Payment, error) {
	p.ID = newID()
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO payment (`+paymentColumns+`)
		VALUES (:id, :student_id, :fee_structure_id, :invoice_id, :term_id, :amount_paid, :payment_date, :payment_method,
			:transaction_reference, :status, :remarks, :recorded_by, :created_at, :updated_at)`, p)
	err = trapUniqueViolation(err, "payment", map[string]string{"payment_transaction_reference_key": "transaction_reference"})
	if err != nil {
		return finance.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return p, nil
}

func (repo financeRepository) UpdatePayment(ctx context.Context, p finance.Payment, exec ...core.DBExecutor) (finance.Payment, error) {
	err := namedUpdate(ctx, repo.getExec(exec), finance.ErrPaymentNotFound, `
		UPDATE payment SET student_id = :student_id, fee_structure_id = :fee_structure_id, invoice_id = :invoice_id,
			term_id = :term_id, amount_paid = :amount_paid, payment_date = :payment_date, payment_method = :payment_method,
			status = :status, remarks = :remarks, updated_at = :updated_at
		WHERE id = :id`, p)
	if err != nil {
		return finance.Payment{}, wrapGet(err, finance.ErrPaymentNotFound, "updating payment")
	}
	return p, nil
}

func (repo financeRepository) GetPayment(ctx context.Context, id string, exec ...core.DBExecutor) (finance.Payment, error) {
	var p finance.Payment
	err := get(ctx, repo.getExec(exec), &p, finance.ErrPaymentNotFound, `SELECT `+paymentColumns+` FROM payment WHERE id = ?`, id)
	if err != nil {
		return finance.Payment{}, wrapGet(err, finance.ErrPaymentNotFound, "selecting payment")
	}
	return p, nil
}

func (repo financeRepository) QueryPayments(ctx context.Context, filter finance.PaymentFilter, exec ...core.DBExecutor) ([]finance.Payment, error) {
	w := &where{}
	if filter.StudentID != "" {
		w.add("student_id::text = ?", filter.StudentID)
	}
	if filter.FeeStructureID != "" {
		w.add("fee_structure_id::text = ?", filter.FeeStructureID)
	}
	if filter.InvoiceID != "" {
		w.add("invoice_id::text = ?", filter.InvoiceID)
	}
	if filter.TermID != "" {
		w.add("term_id::text = ?", filter.TermID)
	}
	if filter.Method != "" {
		w.add("payment_method = ?", filter.Method)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	res := make([]finance.Payment, 0)
	err := selectAll(ctx, repo.getExec(exec), &res,
		`SELECT `+paymentColumns+` FROM payment`+w.String()+` ORDER BY payment_date DESC, created_at DESC`, w.args...)
	return res, errors.Wrap(err, "selecting payments")
}

func (repo financeRepository) TransactionReferenceExists(ctx context.Context, ref string, exec ...core.DBExecutor) (bool, error) {
	return exists(ctx, repo.getExec(exec), `SELECT 1 FROM payment WHERE transaction_reference = ?`, ref)
}

// Expenses

func (repo financeRepository) CreateExpense(ctx context.Context, e finance.Expense, exec ...core.DBExecutor) (finance.Expense, error) {
	e.ID = newID()
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO expense (`+expenseColumns+`)
		VALUES (:id, :category, :amount, :description, :expense_date, :recorded_by, :created_at, :updated_at)`, e)
	if err != nil {
		return finance.Expense{}, errors.Wrap(err, "inserting expense")
	}
	return e, nil
}

func (repo financeRepository) UpdateExpense(ctx context.Context, e finance.Expense, exec ...core.DBExecutor) (finance.Expense, error) {
	err := namedUpdate(ctx, repo.getExec(exec), finance.ErrExpenseNotFound, `
		UPDATE expense SET category = :category, amount = :amount, description = :description,
			expense_date = :expense_date, updated_at = :updated_at
		WHERE id = :id`, e)
	if err != nil {
		return finance.Expense{}, wrapGet(err, finance.ErrExpenseNotFound, "updating expense")
	}
	return e, nil
}

func (repo financeRepository) DeleteExpense(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return deleteByID(ctx, repo.getExec(exec), "expense", id, finance.ErrExpenseNotFound)
}

func (repo financeRepository) GetExpense(ctx context.Context, id string, exec ...core.DBExecutor) (finance.Expense, error) {
	var e finance.Expense
	err := get(ctx, repo.getExec(exec), &e, finance.ErrExpenseNotFound, `SELECT `+expenseColumns+` FROM expense WHERE id = ?`, id)
	if err != nil {
		return finance.Expense{}, wrapGet(err, finance.ErrExpenseNotFound, "selecting expense")
	}
	return e, nil
}

func (repo financeRepository) QueryExpenses(ctx context.Context, filter finance.ExpenseFilter, exec ...core.DBExecutor) ([]finance.Expense, error) {
	w := &where{}
	if filter.Category != "" {
		w.add("category = ?", filter.Category)
	}
	if filter.From != nil {
		w.add("expense_date >= ?", *filter.From)
	}
	if filter.To != nil {
		w.add("expense_date <= ?", *filter.To)
	}
	res := make([]finance.Expense, 0)
	err := selectAll(ctx, repo.getExec(exec), &res,
		`SELECT `+expenseColumns+` FROM expense`+w.String()+` ORDER BY expense_date DESC, created_at DESC`, w.args...)
	return res, errors.Wrap(err, "selecting expenses")
}

// Budgets

func (repo financeRepository) CreateBudget(ctx context.Context, b finance.Budget, exec ...core.DBExecutor) (finance.Budget, error) {
	b.ID = newID()
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO budget (`+budgetColumns+`)
		VALUES (:id, :academic_year_id, :total_budget, :description, :created_by, :created_at, :updated_at)`, b)
	if err = trapUniqueViolation(err, "budget", map[string]string{"budget_academic_year_id_key": "academic_year_id"}); err != nil {
		return finance.Budget{}, errors.Wrap(err, "inserting budget")
	}
	return b, nil
}

func (repo financeRepository) UpdateBudget(ctx context.Context, b finance.Budget, exec ...core.DBExecutor) (finance.Budget, error) {
	err := namedUpdate(ctx, repo.getExec(exec), finance.ErrBudgetNotFound, `
		UPDATE budget SET academic_year_id = :academic_year_id, total_budget = :total_budget,
			description = :description, updated_at = :updated_at
		WHERE id = :id`, b)
	if err = trapUniqueViolation(err, "budget", map[string]string{"budget_academic_year_id_key": "academic_year_id"}); err != nil {
		return finance.Budget{}, wrapGet(err, finance.ErrBudgetNotFound, "updating budget")
	}
	return b, nil
}

func (repo financeRepository) GetBudget(ctx context.Context, id string, exec ...core.DBExecutor) (finance.Budget, error) {
	var b finance.Budget
	err := get(ctx, repo.getExec(exec), &b, finance.ErrBudgetNotFound, `SELECT `+budgetColumns+` FROM budget WHERE id = ?`, id)
	if err != nil {
		return finance.Budget{}, wrapGet(err, finance.ErrBudgetNotFound, "selecting budget")
	}
	return b, nil
}

func (repo financeRepository) QueryBudgets(ctx context.Context, exec ...core.DBExecutor) ([]finance.Budget, error) {
	res := make([]finance.Budget, 0)
	err := selectAll(ctx, repo.getExec(exec), &res, `SELECT `+budgetColumns+` FROM budget ORDER BY created_at DESC`)
	return res, errors.Wrap(err, "selecting budgets")
}

func (repo financeRepository) BudgetExists(ctx context.Context, yearID, excludeID string, exec ...core.DBExecutor) (bool, error) {
	return exists(ctx, repo.getExec(exec),
		`SELECT 1 FROM budget WHERE academic_year_id::text = ? AND id::text <> ?`, yearID, excludeID)
}
