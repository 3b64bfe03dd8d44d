package inmemdb

import (
	"context"
	"sort"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/finance"
)

type financeRepository struct {
	db *financeTables
}

var _ finance.Repository = (*financeRepository)(nil) // interface compliance check

func NewFinanceRepository(db *DB) *financeRepository {
	return &financeRepository{db: db.finance}
}

// Fee structures

func (repo *financeRepository) CreateFeeStructure(ctx context.Context, fs finance.FeeStructure, _ ...core.DBExecutor) (finance.FeeStructure, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	fs.ID = newID()
	repo.db.feeStructures[fs.ID] = fs
	return fs, nil
}

func (repo *financeRepository) UpdateFeeStructure(ctx context.Context, fs finance.FeeStructure, _ ...core.DBExecutor) (finance.FeeStructure, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.feeStructures[fs.ID]; !ok {
		return finance.FeeStructure{}, finance.ErrFeeStructureNotFound
	}
	repo.db.feeStructures[fs.ID] = fs
	return fs, nil
}

func (repo *financeRepository) DeleteFeeStructure(ctx context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.feeStructures[id]; !ok {
		return finance.ErrFeeStructureNotFound
	}
	delete(repo.db.feeStructures, id)
	return nil
}

func (repo *financeRepository) GetFeeStructure(ctx context.Context, id string, _ ...core.DBExecutor) (finance.FeeStructure, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if fs, ok := repo.db.feeStructures[id]; ok {
		return fs, nil
	}
	return finance.FeeStructure{}, finance.ErrFeeStructureNotFound
}

func (repo *financeRepository) QueryFeeStructures(ctx context.Context, filter finance.FeeStructureFilter, _ ...core.DBExecutor) ([]finance.FeeStructure, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]finance.FeeStructure, 0)
	for _, fs := range repo.db.feeStructures {
		switch {
		case filter.ClassID != "" && fs.ClassID != filter.ClassID,
			filter.AcademicYearID != "" && fs.AcademicYearID != filter.AcademicYearID,
			filter.Frequency != "" && fs.Frequency != filter.Frequency,
			filter.ActiveOnly && !fs.IsActive:
			continue
		}
		res = append(res, fs)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

func (repo *financeRepository) FeeStructureExists(ctx context.Context, name, classID, yearID, excludeID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, fs := range repo.db.feeStructures {
		if fs.ID != excludeID && fs.Name == name && fs.ClassID == classID && fs.AcademicYearID == yearID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *financeRepository) FeeStructureInUse(ctx context.Context, id string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, item := range repo.db.items {
		if item.FeeStructureID == id {
			return true, nil
		}
	}
	for _, p := range repo.db.payments {
		if p.FeeStructureID == id {
			return true, nil
		}
	}
	return false, nil
}

// Invoices

func (repo *financeRepository) CreateInvoice(ctx context.Context, inv finance.Invoice, _ ...core.DBExecutor) (finance.Invoice, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.invoices {
		if other.Number == inv.Number {
			return finance.Invoice{}, core.NewConflictError("invoice", other.ID, "invoice_number", "invoice number already taken")
		}
	}
	inv.ID = newID()
	repo.db.invoices[inv.ID] = inv
	return inv, nil
}

func (repo *financeRepository) UpdateInvoice(ctx context.Context, inv finance.Invoice, _ ...core.DBExecutor) (finance.Invoice, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.invoices[inv.ID]; !ok {
		return finance.Invoice{}, finance.ErrInvoiceNotFound
	}
	repo.db.invoices[inv.ID] = inv
	return inv, nil
}

func (repo *financeRepository) GetInvoice(ctx context.Context, id string, _ ...core.DBExecutor) (finance.Invoice, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if inv, ok := repo.db.invoices[id]; ok {
		return inv, nil
	}
	return finance.Invoice{}, finance.ErrInvoiceNotFound
}

func (repo *financeRepository) QueryInvoices(ctx context.Context, filter finance.InvoiceFilter, _ ...core.DBExecutor) ([]finance.Invoice, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]finance.Invoice, 0)
	for _, inv := range repo.db.invoices {
		switch {
		case filter.StudentID != "" && inv.StudentID != filter.StudentID,
			filter.AcademicYearID != "" && inv.AcademicYearID != filter.AcademicYearID,
			filter.TermID != "" && inv.TermID != filter.TermID,
			len(filter.Statuses) > 0 && !hasInvoiceStatus(filter.Statuses, inv.Status),
			filter.DueBefore != nil && !inv.DueDate.Before(*filter.DueBefore),
			filter.Outstanding && !inv.Balance.IsPositive():
			continue
		}
		res = append(res, inv)
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].IssueDate.Equal(res[j].IssueDate) {
			return res[i].IssueDate.After(res[j].IssueDate)
		}
		return res[i].Number > res[j].Number
	})
	return res, nil
}

func hasInvoiceStatus(statuses []finance.InvoiceStatus, status finance.InvoiceStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// Invoice items

func (repo *financeRepository) CreateInvoiceItem(ctx context.Context, item finance.InvoiceItem, _ ...core.DBExecutor) (finance.InvoiceItem, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.items {
		if other.InvoiceID == item.InvoiceID && other.FeeStructureID == item.FeeStructureID {
			return finance.InvoiceItem{}, core.NewConflictError("invoice_item", other.ID, "fee_structure_id", "a record with this fee structure id already exists")
		}
	}
	item.ID = newID()
	repo.db.items[item.ID] = item
	return item, nil
}

func (repo *financeRepository) DeleteInvoiceItem(ctx context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.items[id]; !ok {
		return finance.ErrInvoiceItemNotFound
	}
	delete(repo.db.items, id)
	return nil
}

func (repo *financeRepository) GetInvoiceItem(ctx context.Context, id string, _ ...core.DBExecutor) (finance.InvoiceItem, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if item, ok := repo.db.items[id]; ok {
		return item, nil
	}
	return finance.InvoiceItem{}, finance.ErrInvoiceItemNotFound
}

func (repo *financeRepository) QueryInvoiceItems(ctx context.Context, invoiceID string, _ ...core.DBExecutor) ([]finance.InvoiceItem, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]finance.InvoiceItem, 0)
	for _, item := range repo.db.items {
		if item.InvoiceID == invoiceID {
			res = append(res, item)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (repo *financeRepository) InvoiceItemExists(ctx context.Context, invoiceID, feeStructureID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, item := range repo.db.items {
		if item.InvoiceID == invoiceID && item.FeeStructureID == feeStructureID {
			return true, nil
		}
	}
	return false, nil
}

// Payments

func (repo *financeRepository) CreatePayment(ctx context.Context, p finance.Payment, _ ...core.DBExecutor) (finance.Payment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p.ID = newID()
	repo.db.payments[p.ID] = p
	return p, nil
}

func (repo *financeRepository) UpdatePayment(ctx context.Context, p finance.Payment, _ ...core.DBExecutor) (finance.Payment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.payments[p.ID]; !ok {
		return finance.Payment{}, finance.ErrPaymentNotFound
	}
	repo.db.payments[p.ID] = p
	return p, nil
}

func (repo *financeRepository) GetPayment(ctx context.Context, id string, _ ...core.DBExecutor) (finance.Payment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.payments[id]; ok {
		return p, nil
	}
	return finance.Payment{}, finance.ErrPaymentNotFound
}

func (repo *financeRepository) QueryPayments(ctx context.Context, filter finance.PaymentFilter, _ ...core.DBExecutor) ([]finance.Payment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]finance.Payment, 0)
	for _, p := range repo.db.payments {
		switch {
		case filter.StudentID != "" && p.StudentID != filter.StudentID,
			filter.FeeStructureID != "" && p.FeeStructureID != filter.FeeStructureID,
			filter.InvoiceID != "" && core.StringValue(p.InvoiceID) != filter.InvoiceID,
			filter.TermID != "" && core.StringValue(p.TermID) != filter.TermID,
			filter.Method != "" && p.Method != filter.Method,
			filter.Status != "" && p.Status != filter.Status:
			continue
		}
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].PaymentDate.Equal(res[j].PaymentDate) {
			return res[i].PaymentDate.After(res[j].PaymentDate)
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

func (repo *financeRepository) TransactionReferenceExists(ctx context.Context, ref string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, p := range repo.db.payments {
		if p.TransactionReference == ref {
			return true, nil
		}
	}
	return false, nil
}

// Expenses

func (repo *financeRepository) CreateExpense(ctx context.Context, e finance.Expense, _ ...core.DBExecutor) (finance.Expense, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	e.ID = newID()
	repo.db.expenses[e.ID] = e
	return e, nil
}

func (repo *financeRepository) UpdateExpense(ctx context.Context, e finance.Expense, _ ...core.DBExecutor) (finance.Expense, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.expenses[e.ID]; !ok {
		return finance.Expense{}, finance.ErrExpenseNotFound
	}
	repo.db.expenses[e.ID] = e
	return e, nil
}

func (repo *financeRepository) DeleteExpense(ctx context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.expenses[id]; !ok {
		return finance.ErrExpenseNotFound
	}
	delete(repo.db.expenses, id)
	return nil
}

func (repo *financeRepository) GetExpense(ctx context.Context, id string, _ ...core.DBExecutor) (finance.Expense, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if e, ok := repo.db.expenses[id]; ok {
		return e, nil
	}
	return finance.Expense{}, finance.ErrExpenseNotFound
}

func (repo *financeRepository) QueryExpenses(ctx context.Context, filter finance.ExpenseFilter, _ ...core.DBExecutor) ([]finance.Expense, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]finance.Expense, 0)
	for _, e := range repo.db.expenses {
		switch {
		case filter.Category != "" && e.Category != filter.Category,
			filter.From != nil && e.ExpenseDate.Before(*filter.From),
			filter.To != nil && e.ExpenseDate.After(*filter.To):
			continue
		}
		res = append(res, e)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ExpenseDate.After(res[j].ExpenseDate) })
	return res, nil
}

// Budgets

func (repo *financeRepository) CreateBudget(ctx context.Context, b finance.Budget, _ ...core.DBExecutor) (finance.Budget, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	b.ID = newID()
	repo.db.budgets[b.ID] = b
	return b, nil
}

func (repo *financeRepository) UpdateBudget(ctx context.Context, b finance.Budget, _ ...core.DBExecutor) (finance.Budget, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.budgets[b.ID]; !ok {
		return finance.Budget{}, finance.ErrBudgetNotFound
	}
	repo.db.budgets[b.ID] = b
	return b, nil
}

func (repo *financeRepository) GetBudget(ctx context.Context, id string, _ ...core.DBExecutor) (finance.Budget, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if b, ok := repo.db.budgets[id]; ok {
		return b, nil
	}
	return finance.Budget{}, finance.ErrBudgetNotFound
}

func (repo *financeRepository) QueryBudgets(ctx context.Context, _ ...core.DBExecutor) ([]finance.Budget, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]finance.Budget, 0, len(repo.db.budgets))
	for _, b := range repo.db.budgets {
		res = append(res, b)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (repo *financeRepository) BudgetExists(ctx context.Context, yearID, excludeID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, b := range repo.db.budgets {
		if b.ID != excludeID && b.AcademicYearID == yearID {
			return true, nil
		}
	}
	return false, nil
}
