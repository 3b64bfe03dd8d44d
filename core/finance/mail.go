package finance

import (
	"bytes"
	"encoding/csv"
	"net/mail"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/shule/backend/core"
)

const (
	invoiceSentTemplate    = "invoice_sent"
	invoiceOverdueTemplate = "invoice_overdue"
)

type invoiceMailData struct {
	Number    string
	StudentID string
	IssueDate core.Date
	DueDate   core.Date
	Items     []InvoiceItem
	Total     decimal.Decimal
	Paid      decimal.Decimal
	Balance   decimal.Decimal
}

// invoiceMessage prepares an invoice notification. The finance notification address is
// bcc'ed, or becomes the recipient when `to` is empty.
func (svc *Service) invoiceMessage(tmpl, subject string, inv InvoiceDetail, to []mail.Address) (*core.EmailMessage, error) {
	msg := &core.EmailMessage{
		To:           to,
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: invoiceMailData{
			Number:    inv.Number,
			StudentID: inv.StudentID,
			IssueDate: inv.IssueDate,
			DueDate:   inv.DueDate,
			Items:     inv.Items,
			Total:     inv.TotalAmount,
			Paid:      inv.PaidAmount,
			Balance:   inv.Balance,
		},
	}
	if svc.conf.NotifyEmail == "" {
		return msg, nil
	}
	notify, err := mail.ParseAddress(svc.conf.NotifyEmail)
	if err != nil {
		return nil, errors.Wrap(err, "parsing finance notification address")
	}
	if len(msg.To) == 0 {
		msg.To = []mail.Address{*notify}
	} else {
		msg.Bcc = append(msg.Bcc, *notify)
	}
	return msg, nil
}

// attachStatement attaches the invoice lines as a CSV statement.
func attachStatement(msg *core.EmailMessage, inv InvoiceDetail) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	rows := [][]string{{"invoice", "description", "amount"}}
	for _, it := range inv.Items {
		rows = append(rows, []string{inv.Number, it.Description, it.Amount.StringFixed(2)})
	}
	rows = append(rows,
		[]string{inv.Number, "total", inv.TotalAmount.StringFixed(2)},
		[]string{inv.Number, "paid", inv.PaidAmount.StringFixed(2)},
		[]string{inv.Number, "balance", inv.Balance.StringFixed(2)},
	)
	if err := w.WriteAll(rows); err != nil {
		return errors.Wrap(err, "writing statement")
	}
	return msg.Attach(&buf, inv.Number+".csv", "text/csv")
}
