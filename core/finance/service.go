package finance

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/academic"
)

const invoiceSequence = "invoice"

var (
	// errors
	ErrFeeStructureNotFound = core.NewNotFoundError("fee structure")
	ErrInvoiceNotFound      = core.NewNotFoundError("invoice")
	ErrInvoiceItemNotFound  = core.NewNotFoundError("invoice item")
	ErrPaymentNotFound      = core.NewNotFoundError("payment")
	ErrExpenseNotFound      = core.NewNotFoundError("expense")
	ErrBudgetNotFound       = core.NewNotFoundError("budget")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateFeeStructure(ctx context.Context, fs FeeStructure, exec ...core.DBExecutor) (FeeStructure, error)
		UpdateFeeStructure(ctx context.Context, fs FeeStructure, exec ...core.DBExecutor) (FeeStructure, error)
		DeleteFeeStructure(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetFeeStructure(ctx context.Context, id string, exec ...core.DBExecutor) (FeeStructure, error)
		QueryFeeStructures(ctx context.Context, filter FeeStructureFilter, exec ...core.DBExecutor) ([]FeeStructure, error)
		// FeeStructureExists reports whether another structure (id != excludeID) has the same name, class & year.
		FeeStructureExists(ctx context.Context, name, classID, yearID, excludeID string, exec ...core.DBExecutor) (bool, error)
		// FeeStructureInUse reports whether invoice items or payments reference the structure.
		FeeStructureInUse(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error)

		CreateInvoice(ctx context.Context, inv Invoice, exec ...core.DBExecutor) (Invoice, error)
		UpdateInvoice(ctx context.Context, inv Invoice, exec ...core.DBExecutor) (Invoice, error)
		GetInvoice(ctx context.Context, id string, exec ...core.DBExecutor) (Invoice, error)
		// QueryInvoices returns invoices ordered by issue date, latest first.
		QueryInvoices(ctx context.Context, filter InvoiceFilter, exec ...core.DBExecutor) ([]Invoice, error)

		CreateInvoiceItem(ctx context.Context, item InvoiceItem, exec ...core.DBExecutor) (InvoiceItem, error)
		DeleteInvoiceItem(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetInvoiceItem(ctx context.Context, id string, exec ...core.DBExecutor) (InvoiceItem, error)
		QueryInvoiceItems(ctx context.Context, invoiceID string, exec ...core.DBExecutor) ([]InvoiceItem, error)
		InvoiceItemExists(ctx context.Context, invoiceID, feeStructureID string, exec ...core.DBExecutor) (bool, error)

		CreatePayment(ctx context.Context, p Payment, exec ...core.DBExecutor) (Payment, error)
		UpdatePayment(ctx context.Context, p Payment, exec ...core.DBExecutor) (Payment, error)
		GetPayment(ctx context.Context, id string, exec ...core.DBExecutor) (Payment, error)
		// QueryPayments returns payments ordered by payment date, latest first.
		QueryPayments(ctx context.Context, filter PaymentFilter, exec ...core.DBExecutor) ([]Payment, error)
		TransactionReferenceExists(ctx context.Context, ref string, exec ...core.DBExecutor) (bool, error)

		CreateExpense(ctx context.Context, e Expense, exec ...core.DBExecutor) (Expense, error)
		UpdateExpense(ctx context.Context, e Expense, exec ...core.DBExecutor) (Expense, error)
		DeleteExpense(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetExpense(ctx context.Context, id string, exec ...core.DBExecutor) (Expense, error)
		// QueryExpenses returns expenses ordered by expense date, latest first.
		QueryExpenses(ctx context.Context, filter ExpenseFilter, exec ...core.DBExecutor) ([]Expense, error)

		CreateBudget(ctx context.Context, b Budget, exec ...core.DBExecutor) (Budget, error)
		UpdateBudget(ctx context.Context, b Budget, exec ...core.DBExecutor) (Budget, error)
		GetBudget(ctx context.Context, id string, exec ...core.DBExecutor) (Budget, error)
		QueryBudgets(ctx context.Context, exec ...core.DBExecutor) ([]Budget, error)
		// BudgetExists reports whether another budget (id != excludeID) covers the year.
		BudgetExists(ctx context.Context, yearID, excludeID string, exec ...core.DBExecutor) (bool, error)
	}

	AcademicReader interface {
		GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (academic.SchoolClass, error)
		GetAcademicYear(ctx context.Context, id string, exec ...core.DBExecutor) (academic.AcademicYear, error)
		GetTerm(ctx context.Context, id string, exec ...core.DBExecutor) (academic.Term, error)
	}

	Service struct {
		tx       core.Transactor
		repo     Repository
		academic AcademicReader
		seq      core.Sequencer
		mailer   core.EmailService
		conf     core.FinanceConfig
	}
)

func NewService(
	tx core.Transactor,
	repo Repository,
	acad AcademicReader,
	seq core.Sequencer,
	mailer core.EmailService,
	conf core.FinanceConfig,
) *Service {
	return &Service{tx: tx, repo: repo, academic: acad, seq: seq, mailer: mailer, conf: conf}
}

// Fee structures

func (svc *Service) CreateFeeStructure(ctx context.Context, nf NewFeeStructure) (FeeStructure, error) {
	now := nowFunc().UTC()
	fs := FeeStructure{IsMandatory: true, IsActive: true, CreatedAt: now}
	nf.apply(&fs)
	fs.UpdatedAt = now

	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.checkFeeStructure(ctx, fs, exec); err != nil {
			return err
		}
		var err error
		fs, err = svc.repo.CreateFeeStructure(ctx, fs, exec)
		return errors.Wrap(err, "creating fee structure")
	})
	return fs, err
}

func (svc *Service) UpdateFeeStructure(ctx context.Context, id string, nf NewFeeStructure) (FeeStructure, error) {
	var fs FeeStructure
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if fs, err = svc.repo.GetFeeStructure(ctx, id, exec); err != nil {
			return err
		}
		nf.apply(&fs)
		fs.UpdatedAt = nowFunc().UTC()
		if err = svc.checkFeeStructure(ctx, fs, exec); err != nil {
			return err
		}
		fs, err = svc.repo.UpdateFeeStructure(ctx, fs, exec)
		return errors.Wrap(err, "updating fee structure")
	})
	return fs, err
}

func (nf NewFeeStructure) apply(fs *FeeStructure) {
	fs.Name = nf.Name
	fs.Description = nf.Description
	fs.ClassID = nf.ClassID
	fs.AcademicYearID = nf.AcademicYearID
	fs.Amount = nf.Amount
	fs.Frequency = nf.Frequency
	if nf.IsMandatory != nil {
		fs.IsMandatory = *nf.IsMandatory
	}
	if nf.IsActive != nil {
		fs.IsActive = *nf.IsActive
	}
}

func (svc *Service) checkFeeStructure(ctx context.Context, fs FeeStructure, exec core.DBExecutor) error {
	if _, err := svc.academic.GetClass(ctx, fs.ClassID, exec); err != nil {
		return refError(err, academic.ErrClassNotFound, "class_id")
	}
	if _, err := svc.academic.GetAcademicYear(ctx, fs.AcademicYearID, exec); err != nil {
		return refError(err, academic.ErrAcademicYearNotFound, "academic_year_id")
	}
	exists, err := svc.repo.FeeStructureExists(ctx, fs.Name, fs.ClassID, fs.AcademicYearID, fs.ID, exec)
	if err != nil {
		return errors.Wrap(err, "checking fee structure uniqueness")
	}
	if exists {
		return core.NewConflictError("fee_structure", "", "name",
			fmt.Sprintf("fee structure %q already exists for this class and academic year", fs.Name))
	}
	return nil
}

// DeleteFeeStructure refuses to delete a structure still referenced by invoice items or payments.
func (svc *Service) DeleteFeeStructure(ctx context.Context, id string) error {
	return svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.repo.GetFeeStructure(ctx, id, exec); err != nil {
			return err
		}
		inUse, err := svc.repo.FeeStructureInUse(ctx, id, exec)
		if err != nil {
			return errors.Wrap(err, "checking fee structure references")
		}
		if inUse {
			return core.NewConflictError("fee_structure", id, "",
				"this fee structure is referenced by invoices or payments and cannot be deleted")
		}
		return svc.repo.DeleteFeeStructure(ctx, id, exec)
	})
}

func (svc *Service) GetFeeStructure(ctx context.Context, id string) (FeeStructure, error) {
	return svc.repo.GetFeeStructure(ctx, id)
}

func (svc *Service) ListFeeStructures(ctx context.Context, filter FeeStructureFilter) ([]FeeStructure, error) {
	return svc.repo.QueryFeeStructures(ctx, filter)
}

// Invoices

// CreateInvoice persists a new invoice, numbering it from the sequence of its issue year.
func (svc *Service) CreateInvoice(ctx context.Context, ni NewInvoice, createdBy *string) (InvoiceDetail, error) {
	var detail InvoiceDetail
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.checkYearAndTerm(ctx, ni.AcademicYearID, ni.TermID, exec); err != nil {
			return err
		}
		items, err := svc.prepareItems(ctx, ni.Items, exec)
		if err != nil {
			return err
		}

		year := ni.IssueDate.Year()
		seq, err := svc.seq.Next(ctx, invoiceSequence, year, exec)
		if err != nil {
			return errors.Wrap(err, "numbering invoice")
		}

		now := nowFunc().UTC()
		inv := Invoice{
			Number:         FormatInvoiceNumber(svc.conf.InvoiceNumberPrefix, year, seq),
			StudentID:      ni.StudentID,
			AcademicYearID: ni.AcademicYearID,
			TermID:         ni.TermID,
			IssueDate:      ni.IssueDate,
			DueDate:        ni.DueDate,
			TotalAmount:    ni.TotalAmount,
			PaidAmount:     ni.PaidAmount,
			Status:         ni.Status,
			Notes:          ni.Notes,
			CreatedBy:      createdBy,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if inv.Status == "" {
			inv.Status = InvoiceDraft
		}
		if len(items) > 0 {
			inv.RecomputeTotal(items)
		} else {
			inv.ApplyDerivedState()
		}
		if inv, err = svc.repo.CreateInvoice(ctx, inv, exec); err != nil {
			return errors.Wrap(err, "creating invoice")
		}

		detail = InvoiceDetail{Invoice: inv, Items: make([]InvoiceItem, 0, len(items))}
		for _, it := range items {
			it.InvoiceID = inv.ID
			if it, err = svc.repo.CreateInvoiceItem(ctx, it, exec); err != nil {
				return errors.Wrap(err, "creating invoice item")
			}
			detail.Items = append(detail.Items, it)
		}
		return nil
	})
	return detail, err
}

// prepareItems resolves the fee structures of the items, defaulting descriptions & amounts from them.
func (svc *Service) prepareItems(ctx context.Context, nis []NewInvoiceItem, exec core.DBExecutor) ([]InvoiceItem, error) {
	items := make([]InvoiceItem, 0, len(nis))
	seen := make(map[string]bool, len(nis))
	for _, ni := range nis {
		if seen[ni.FeeStructureID] {
			return nil, core.NewConflictError("invoice_item", "", "fee_structure_id", "a fee structure can only be billed once per invoice")
		}
		seen[ni.FeeStructureID] = true

		item, err := svc.newItem(ctx, ni, exec)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (svc *Service) newItem(ctx context.Context, ni NewInvoiceItem, exec core.DBExecutor) (InvoiceItem, error) {
	fs, err := svc.repo.GetFeeStructure(ctx, ni.FeeStructureID, exec)
	if err != nil {
		return InvoiceItem{}, refError(err, ErrFeeStructureNotFound, "fee_structure_id")
	}
	item := InvoiceItem{FeeStructureID: fs.ID, Description: ni.Description, Amount: ni.Amount, CreatedAt: nowFunc().UTC()}
	if item.Description == "" {
		item.Description = fs.Name
	}
	if item.Amount.IsZero() {
		item.Amount = fs.Amount
	}
	return item, nil
}

func (svc *Service) checkYearAndTerm(ctx context.Context, yearID, termID string, exec core.DBExecutor) error {
	if _, err := svc.academic.GetAcademicYear(ctx, yearID, exec); err != nil {
		return refError(err, academic.ErrAcademicYearNotFound, "academic_year_id")
	}
	term, err := svc.academic.GetTerm(ctx, termID, exec)
	if err != nil {
		return refError(err, academic.ErrTermNotFound, "term_id")
	}
	if term.AcademicYearID != yearID {
		return core.NewFieldError("term_id", "Selected term does not belong to the selected academic year.")
	}
	return nil
}

// UpdateInvoice replaces the invoice's editable fields and re-applies its derived state.
// The total of an invoice with line items always stays the sum of its items.
func (svc *Service) UpdateInvoice(ctx context.Context, id string, ui UpdateInvoice) (InvoiceDetail, error) {
	var detail InvoiceDetail
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		inv, err := svc.repo.GetInvoice(ctx, id, exec)
		if err != nil {
			return err
		}
		items, err := svc.repo.QueryInvoiceItems(ctx, id, exec)
		if err != nil {
			return errors.Wrap(err, "querying invoice items")
		}

		inv.IssueDate = ui.IssueDate
		inv.DueDate = ui.DueDate
		inv.PaidAmount = ui.PaidAmount
		inv.Status = ui.Status
		inv.Notes = ui.Notes
		inv.UpdatedAt = nowFunc().UTC()
		if len(items) > 0 {
			inv.RecomputeTotal(items)
			if inv.PaidAmount.GreaterThan(inv.TotalAmount) {
				return core.NewFieldError("paid_amount", "Amount paid cannot exceed total amount.")
			}
		} else {
			if err = ValidateInvoiceAmounts(ui.TotalAmount, ui.PaidAmount); err != nil {
				return err
			}
			inv.TotalAmount = ui.TotalAmount
			inv.ApplyDerivedState()
		}

		if inv, err = svc.repo.UpdateInvoice(ctx, inv, exec); err != nil {
			return errors.Wrap(err, "updating invoice")
		}
		detail = InvoiceDetail{Invoice: inv, Items: items}
		return nil
	})
	return detail, err
}

func (svc *Service) GetInvoice(ctx context.Context, id string) (InvoiceDetail, error) {
	inv, err := svc.repo.GetInvoice(ctx, id)
	if err != nil {
		return InvoiceDetail{}, err
	}
	items, err := svc.repo.QueryInvoiceItems(ctx, id)
	if err != nil {
		return InvoiceDetail{}, errors.Wrap(err, "querying invoice items")
	}
	return InvoiceDetail{Invoice: inv, Items: items}, nil
}

func (svc *Service) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error) {
	return svc.repo.QueryInvoices(ctx, filter)
}

// OutstandingInvoices returns the sent & overdue invoices with a balance left.
func (svc *Service) OutstandingInvoices(ctx context.Context) ([]Invoice, error) {
	return svc.repo.QueryInvoices(ctx, InvoiceFilter{
		Statuses:    []InvoiceStatus{InvoiceSent, InvoiceOverdue},
		Outstanding: true,
	})
}

// MarkInvoicePaid settles the invoice in full.
func (svc *Service) MarkInvoicePaid(ctx context.Context, id string) (Invoice, error) {
	return svc.changeInvoice(ctx, id, func(inv *Invoice) error {
		if inv.Status == InvoiceCancelled {
			return core.NewFieldError("status", "a cancelled invoice cannot be marked as paid")
		}
		inv.PaidAmount = inv.TotalAmount
		inv.Status = InvoicePaid
		return nil
	})
}

func (svc *Service) CancelInvoice(ctx context.Context, id string) (Invoice, error) {
	return svc.changeInvoice(ctx, id, func(inv *Invoice) error {
		if inv.Status == InvoicePaid {
			return core.NewFieldError("status", "a paid invoice cannot be cancelled")
		}
		inv.Status = InvoiceCancelled
		return nil
	})
}

// SendInvoice moves a draft invoice to sent and mails it to the given recipients, with a copy
// to the finance notification address. Sent & overdue invoices can be sent again.
func (svc *Service) SendInvoice(ctx context.Context, id string, to []mail.Address) (InvoiceDetail, error) {
	inv, err := svc.changeInvoice(ctx, id, func(inv *Invoice) error {
		switch inv.Status {
		case InvoiceDraft:
			inv.Status = InvoiceSent
		case InvoiceSent, InvoiceOverdue:
		default:
			return core.NewFieldError("status", fmt.Sprintf("a %s invoice cannot be sent", inv.Status))
		}
		return nil
	})
	if err != nil {
		return InvoiceDetail{}, err
	}
	items, err := svc.repo.QueryInvoiceItems(ctx, id)
	if err != nil {
		return InvoiceDetail{}, errors.Wrap(err, "querying invoice items")
	}
	detail := InvoiceDetail{Invoice: inv, Items: items}

	msg, err := svc.invoiceMessage(invoiceSentTemplate, "Invoice "+inv.Number, detail, to)
	if err != nil {
		return InvoiceDetail{}, err
	}
	if err = attachStatement(msg, detail); err != nil {
		return InvoiceDetail{}, err
	}
	if msg.HasRecipients() {
		svc.mailer.SendMessages(msg)
	}
	return detail, nil
}

// changeInvoice applies fn to the invoice within a transaction, then re-applies its derived state.
func (svc *Service) changeInvoice(ctx context.Context, id string, fn func(inv *Invoice) error) (Invoice, error) {
	var inv Invoice
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if inv, err = svc.repo.GetInvoice(ctx, id, exec); err != nil {
			return err
		}
		if err = fn(&inv); err != nil {
			return err
		}
		inv.ApplyDerivedState()
		inv.UpdatedAt = nowFunc().UTC()
		inv, err = svc.repo.UpdateInvoice(ctx, inv, exec)
		return errors.Wrap(err, "updating invoice")
	})
	return inv, err
}

// RecomputeInvoice re-derives the total and paid amounts of the invoice from its items and completed payments.
func (svc *Service) RecomputeInvoice(ctx context.Context, id string) (Invoice, error) {
	var inv Invoice
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if inv, err = svc.repo.GetInvoice(ctx, id, exec); err != nil {
			return err
		}
		items, err := svc.repo.QueryInvoiceItems(ctx, id, exec)
		if err != nil {
			return errors.Wrap(err, "querying invoice items")
		}
		if len(items) > 0 {
			inv.RecomputeTotal(items)
		}
		payments, err := svc.repo.QueryPayments(ctx, PaymentFilter{InvoiceID: id}, exec)
		if err != nil {
			return errors.Wrap(err, "querying payments")
		}
		if len(payments) > 0 {
			inv.RecomputePaid(payments)
		}
		inv.UpdatedAt = nowFunc().UTC()
		inv, err = svc.repo.UpdateInvoice(ctx, inv, exec)
		return errors.Wrap(err, "updating invoice")
	})
	return inv, err
}

func (svc *Service) InvoiceSummary(ctx context.Context, filter InvoiceFilter) (InvoiceSummary, error) {
	invoices, err := svc.repo.QueryInvoices(ctx, filter)
	if err != nil {
		return InvoiceSummary{}, errors.Wrap(err, "querying invoices")
	}
	sum := InvoiceSummary{TotalInvoices: len(invoices)}
	for _, inv := range invoices {
		sum.TotalAmount = sum.TotalAmount.Add(inv.TotalAmount)
		sum.TotalPaid = sum.TotalPaid.Add(inv.PaidAmount)
		sum.TotalOutstanding = sum.TotalOutstanding.Add(inv.Balance)
		switch inv.Status {
		case InvoicePaid:
			sum.PaidInvoices++
		case InvoiceOverdue:
			sum.OverdueInvoices++
		}
	}
	return sum, nil
}

// MarkOverdueInvoices flags the sent invoices due before today that still have a balance,
// and notifies the finance address about each of them.
func (svc *Service) MarkOverdueInvoices(ctx context.Context, today core.Date) ([]Invoice, error) {
	var overdue []Invoice
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		invoices, err := svc.repo.QueryInvoices(ctx, InvoiceFilter{
			Statuses:    []InvoiceStatus{InvoiceSent},
			DueBefore:   &today,
			Outstanding: true,
		}, exec)
		if err != nil {
			return errors.Wrap(err, "querying invoices")
		}
		now := nowFunc().UTC()
		overdue = make([]Invoice, 0, len(invoices))
		for _, inv := range invoices {
			if !inv.IsOverdue(today) {
				continue
			}
			inv.Status = InvoiceOverdue
			inv.UpdatedAt = now
			if inv, err = svc.repo.UpdateInvoice(ctx, inv, exec); err != nil {
				return errors.Wrapf(err, "updating invoice %s", inv.Number)
			}
			overdue = append(overdue, inv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	msgs := make([]*core.EmailMessage, 0, len(overdue))
	for _, inv := range overdue {
		msg, err := svc.invoiceMessage(invoiceOverdueTemplate, "Invoice "+inv.Number+" is overdue", InvoiceDetail{Invoice: inv}, nil)
		if err != nil {
			return overdue, err
		}
		if msg.HasRecipients() {
			msgs = append(msgs, msg)
		}
	}
	if len(msgs) > 0 {
		svc.mailer.SendMessages(msgs...)
	}
	return overdue, nil
}

// Invoice items

// AddInvoiceItem persists the item, then recomputes the invoice total from all its items.
func (svc *Service) AddInvoiceItem(ctx context.Context, invoiceID string, ni NewInvoiceItem) (InvoiceDetail, error) {
	var detail InvoiceDetail
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		inv, err := svc.repo.GetInvoice(ctx, invoiceID, exec)
		if err != nil {
			return err
		}
		if inv.Status == InvoiceCancelled {
			return core.NewFieldError("invoice_id", "items cannot be added to a cancelled invoice")
		}
		exists, err := svc.repo.InvoiceItemExists(ctx, invoiceID, ni.FeeStructureID, exec)
		if err != nil {
			return errors.Wrap(err, "checking invoice item uniqueness")
		}
		if exists {
			return core.NewConflictError("invoice_item", "", "fee_structure_id", "a fee structure can only be billed once per invoice")
		}
		item, err := svc.newItem(ctx, ni, exec)
		if err != nil {
			return err
		}
		item.InvoiceID = invoiceID
		if _, err = svc.repo.CreateInvoiceItem(ctx, item, exec); err != nil {
			return errors.Wrap(err, "creating invoice item")
		}
		detail, err = svc.recomputeTotal(ctx, inv, exec)
		return err
	})
	return detail, err
}

// RemoveInvoiceItem deletes the item, then recomputes the invoice total from the remaining items.
func (svc *Service) RemoveInvoiceItem(ctx context.Context, invoiceID, itemID string) (InvoiceDetail, error) {
	var detail InvoiceDetail
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		inv, err := svc.repo.GetInvoice(ctx, invoiceID, exec)
		if err != nil {
			return err
		}
		item, err := svc.repo.GetInvoiceItem(ctx, itemID, exec)
		if err != nil {
			return err
		}
		if item.InvoiceID != invoiceID {
			return ErrInvoiceItemNotFound
		}
		if err = svc.repo.DeleteInvoiceItem(ctx, itemID, exec); err != nil {
			return errors.Wrap(err, "deleting invoice item")
		}
		detail, err = svc.recomputeTotal(ctx, inv, exec)
		return err
	})
	return detail, err
}

func (svc *Service) recomputeTotal(ctx context.Context, inv Invoice, exec core.DBExecutor) (InvoiceDetail, error) {
	items, err := svc.repo.QueryInvoiceItems(ctx, inv.ID, exec)
	if err != nil {
		return InvoiceDetail{}, errors.Wrap(err, "querying invoice items")
	}
	inv.RecomputeTotal(items)
	inv.UpdatedAt = nowFunc().UTC()
	if inv, err = svc.repo.UpdateInvoice(ctx, inv, exec); err != nil {
		return InvoiceDetail{}, errors.Wrap(err, "updating invoice")
	}
	return InvoiceDetail{Invoice: inv, Items: items}, nil
}

// Payments

// RecordPayment persists the payment, then recomputes the paid amount of its invoice, if any.
func (svc *Service) RecordPayment(ctx context.Context, np NewPayment, recordedBy *string) (Payment, error) {
	var p Payment
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.repo.GetFeeStructure(ctx, np.FeeStructureID, exec); err != nil {
			return refError(err, ErrFeeStructureNotFound, "fee_structure_id")
		}
		if np.TermID != nil {
			if _, err := svc.academic.GetTerm(ctx, *np.TermID, exec); err != nil {
				return refError(err, academic.ErrTermNotFound, "term_id")
			}
		}
		if np.InvoiceID != nil {
			inv, err := svc.repo.GetInvoice(ctx, *np.InvoiceID, exec)
			if err != nil {
				return refError(err, ErrInvoiceNotFound, "invoice_id")
			}
			if inv.StudentID != np.StudentID {
				return core.NewFieldError("invoice_id", "the invoice belongs to another student")
			}
			if inv.Status == InvoiceCancelled {
				return core.NewFieldError("invoice_id", "payments cannot be recorded against a cancelled invoice")
			}
		}
		taken, err := svc.repo.TransactionReferenceExists(ctx, np.TransactionReference, exec)
		if err != nil {
			return errors.Wrap(err, "checking transaction reference")
		}
		if taken {
			return core.NewConflictError("payment", "", "transaction_reference",
				fmt.Sprintf("transaction reference %q was already recorded", np.TransactionReference))
		}

		now := nowFunc().UTC()
		p, err = svc.repo.CreatePayment(ctx, Payment{
			StudentID:            np.StudentID,
			FeeStructureID:       np.FeeStructureID,
			InvoiceID:            np.InvoiceID,
			TermID:               np.TermID,
			AmountPaid:           np.AmountPaid,
			PaymentDate:          np.PaymentDate,
			Method:               np.Method,
			TransactionReference: np.TransactionReference,
			Status:               np.Status,
			Remarks:              np.Remarks,
			RecordedBy:           recordedBy,
			CreatedAt:            now,
			UpdatedAt:            now,
		}, exec)
		if err != nil {
			return errors.Wrap(err, "creating payment")
		}
		return svc.recomputePaid(ctx, p.InvoiceID, exec)
	})
	return p, err
}

// UpdatePaymentStatus changes the payment status, then recomputes the paid amount of its invoice, if any.
func (svc *Service) UpdatePaymentStatus(ctx context.Context, id string, status PaymentStatus) (Payment, error) {
	var p Payment
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if p, err = svc.repo.GetPayment(ctx, id, exec); err != nil {
			return err
		}
		p.Status = status
		p.UpdatedAt = nowFunc().UTC()
		if p, err = svc.repo.UpdatePayment(ctx, p, exec); err != nil {
			return errors.Wrap(err, "updating payment")
		}
		return svc.recomputePaid(ctx, p.InvoiceID, exec)
	})
	return p, err
}

func (svc *Service) recomputePaid(ctx context.Context, invoiceID *string, exec core.DBExecutor) error {
	if invoiceID == nil {
		return nil
	}
	inv, err := svc.repo.GetInvoice(ctx, *invoiceID, exec)
	if err != nil {
		return errors.Wrap(err, "getting invoice")
	}
	payments, err := svc.repo.QueryPayments(ctx, PaymentFilter{InvoiceID: inv.ID}, exec)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	inv.RecomputePaid(payments)
	inv.UpdatedAt = nowFunc().UTC()
	_, err = svc.repo.UpdateInvoice(ctx, inv, exec)
	return errors.Wrap(err, "updating invoice")
}

func (svc *Service) GetPayment(ctx context.Context, id string) (Payment, error) {
	return svc.repo.GetPayment(ctx, id)
}

func (svc *Service) ListPayments(ctx context.Context, filter PaymentFilter) ([]Payment, error) {
	return svc.repo.QueryPayments(ctx, filter)
}

func (svc *Service) StudentPayments(ctx context.Context, studentID string) ([]Payment, error) {
	if studentID == "" {
		return nil, core.NewFieldError("student_id", "student_id parameter is required")
	}
	return svc.repo.QueryPayments(ctx, PaymentFilter{StudentID: studentID})
}

func (svc *Service) PaymentSummary(ctx context.Context) (PaymentSummary, error) {
	payments, err := svc.repo.QueryPayments(ctx, PaymentFilter{})
	if err != nil {
		return PaymentSummary{}, errors.Wrap(err, "querying payments")
	}
	var sum PaymentSummary
	for _, p := range payments {
		switch p.Status {
		case PaymentCompleted:
			sum.TotalPayments++
			sum.TotalAmountReceived = sum.TotalAmountReceived.Add(p.AmountPaid)
		case PaymentPending:
			sum.PendingPayments++
		}
	}
	return sum, nil
}

// Expenses

func (svc *Service) CreateExpense(ctx context.Context, ne NewExpense, recordedBy *string) (Expense, error) {
	now := nowFunc().UTC()
	return svc.repo.CreateExpense(ctx, Expense{
		Category:    ne.Category,
		Amount:      ne.Amount,
		Description: ne.Description,
		ExpenseDate: ne.ExpenseDate,
		RecordedBy:  recordedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) UpdateExpense(ctx context.Context, id string, ne NewExpense) (Expense, error) {
	var e Expense
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if e, err = svc.repo.GetExpense(ctx, id, exec); err != nil {
			return err
		}
		e.Category = ne.Category
		e.Amount = ne.Amount
		e.Description = ne.Description
		e.ExpenseDate = ne.ExpenseDate
		e.UpdatedAt = nowFunc().UTC()
		e, err = svc.repo.UpdateExpense(ctx, e, exec)
		return errors.Wrap(err, "updating expense")
	})
	return e, err
}

func (svc *Service) DeleteExpense(ctx context.Context, id string) error {
	return svc.repo.DeleteExpense(ctx, id)
}

func (svc *Service) GetExpense(ctx context.Context, id string) (Expense, error) {
	return svc.repo.GetExpense(ctx, id)
}

func (svc *Service) ListExpenses(ctx context.Context, filter ExpenseFilter) ([]Expense, error) {
	return svc.repo.QueryExpenses(ctx, filter)
}

// ExpenseSummary totals the expenses, overall and per category. Every category is listed.
func (svc *Service) ExpenseSummary(ctx context.Context, filter ExpenseFilter) (ExpenseSummary, error) {
	expenses, err := svc.repo.QueryExpenses(ctx, filter)
	if err != nil {
		return ExpenseSummary{}, errors.Wrap(err, "querying expenses")
	}
	sum := ExpenseSummary{
		ExpenseCount: len(expenses),
		ByCategory:   make(map[ExpenseCategory]CategoryTotal, len(ExpenseCategories)),
	}
	for _, c := range ExpenseCategories {
		sum.ByCategory[c.Category] = CategoryTotal{Name: c.Name, Total: decimal.Zero}
	}
	for _, e := range expenses {
		sum.TotalExpenses = sum.TotalExpenses.Add(e.Amount)
		ct := sum.ByCategory[e.Category]
		ct.Total = ct.Total.Add(e.Amount)
		sum.ByCategory[e.Category] = ct
	}
	return sum, nil
}

// Budgets

func (svc *Service) CreateBudget(ctx context.Context, nb NewBudget, createdBy *string) (BudgetUsage, error) {
	var usage BudgetUsage
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		now := nowFunc().UTC()
		b := Budget{
			AcademicYearID: nb.AcademicYearID,
			TotalBudget:    nb.TotalBudget,
			Description:    nb.Description,
			CreatedBy:      createdBy,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := svc.checkBudget(ctx, b, exec); err != nil {
			return err
		}
		b, err := svc.repo.CreateBudget(ctx, b, exec)
		if err != nil {
			return errors.Wrap(err, "creating budget")
		}
		usage, err = svc.budgetUsage(ctx, b, exec)
		return err
	})
	return usage, err
}

func (svc *Service) UpdateBudget(ctx context.Context, id string, nb NewBudget) (BudgetUsage, error) {
	var usage BudgetUsage
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		b, err := svc.repo.GetBudget(ctx, id, exec)
		if err != nil {
			return err
		}
		b.AcademicYearID = nb.AcademicYearID
		b.TotalBudget = nb.TotalBudget
		b.Description = nb.Description
		b.UpdatedAt = nowFunc().UTC()
		if err = svc.checkBudget(ctx, b, exec); err != nil {
			return err
		}
		if b, err = svc.repo.UpdateBudget(ctx, b, exec); err != nil {
			return errors.Wrap(err, "updating budget")
		}
		usage, err = svc.budgetUsage(ctx, b, exec)
		return err
	})
	return usage, err
}

func (svc *Service) checkBudget(ctx context.Context, b Budget, exec core.DBExecutor) error {
	if !b.TotalBudget.IsPositive() {
		return core.NewFieldError("total_budget", "Budget must be greater than zero.")
	}
	if _, err := svc.academic.GetAcademicYear(ctx, b.AcademicYearID, exec); err != nil {
		return refError(err, academic.ErrAcademicYearNotFound, "academic_year_id")
	}
	exists, err := svc.repo.BudgetExists(ctx, b.AcademicYearID, b.ID, exec)
	if err != nil {
		return errors.Wrap(err, "checking budget uniqueness")
	}
	if exists {
		return core.NewConflictError("budget", "", "academic_year_id", "this academic year already has a budget")
	}
	return nil
}

// budgetUsage derives the spending of b from the expenses dated within its academic year.
func (svc *Service) budgetUsage(ctx context.Context, b Budget, exec ...core.DBExecutor) (BudgetUsage, error) {
	year, err := svc.academic.GetAcademicYear(ctx, b.AcademicYearID, exec...)
	if err != nil {
		return BudgetUsage{}, errors.Wrap(err, "getting academic year")
	}
	from, to := year.StartDate, year.EndDate
	expenses, err := svc.repo.QueryExpenses(ctx, ExpenseFilter{From: &from, To: &to}, exec...)
	if err != nil {
		return BudgetUsage{}, errors.Wrap(err, "querying expenses")
	}
	return b.Usage(year, expenses), nil
}

func (svc *Service) GetBudget(ctx context.Context, id string) (BudgetUsage, error) {
	b, err := svc.repo.GetBudget(ctx, id)
	if err != nil {
		return BudgetUsage{}, err
	}
	return svc.budgetUsage(ctx, b)
}

func (svc *Service) ListBudgets(ctx context.Context) ([]BudgetUsage, error) {
	budgets, err := svc.repo.QueryBudgets(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying budgets")
	}
	res := make([]BudgetUsage, 0, len(budgets))
	for _, b := range budgets {
		usage, err := svc.budgetUsage(ctx, b)
		if err != nil {
			return nil, err
		}
		res = append(res, usage)
	}
	return res, nil
}

func (svc *Service) BudgetSummary(ctx context.Context) (BudgetSummary, error) {
	budgets, err := svc.ListBudgets(ctx)
	if err != nil {
		return BudgetSummary{}, err
	}
	sum := BudgetSummary{Budgets: len(budgets)}
	for _, b := range budgets {
		sum.TotalBudget = sum.TotalBudget.Add(b.TotalBudget)
		sum.TotalSpent = sum.TotalSpent.Add(b.TotalExpenses)
		sum.TotalRemaining = sum.TotalRemaining.Add(b.Remaining)
	}
	return sum, nil
}

// refError turns the not-found error of a referenced record into a field error.
func refError(err, notFound error, field string) error {
	if errors.Cause(err) == notFound {
		return core.NewFieldError(field, notFound.Error())
	}
	return errors.Wrapf(err, "getting %s", field)
}
