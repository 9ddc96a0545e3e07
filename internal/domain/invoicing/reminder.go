package invoicing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Message is a rendered notification
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers reminder messages. A returned error is a per-message
// failure; it never aborts a sweep.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// OverdueInvoice is the sweep's read view of an unpaid, past-due invoice
// joined with its client.
type OverdueInvoice struct {
	InvoiceID   uuid.UUID
	Amount      decimal.Decimal
	DueDate     time.Time
	ClientName  string
	ClientEmail string
}

// ReminderMessage renders the fixed overdue reminder template
func ReminderMessage(inv OverdueInvoice) Message {
	return Message{
		To:      inv.ClientEmail,
		Subject: fmt.Sprintf("Reminder: Invoice #%s is overdue", inv.InvoiceID),
		Body: fmt.Sprintf(
			"Dear %s,\n\n"+
				"This is a reminder that your invoice #%s for %s is overdue.\n"+
				"The due date was %s.\n"+
				"Please make the payment at your earliest convenience.\n\n"+
				"Thank you!",
			inv.ClientName,
			inv.InvoiceID,
			inv.Amount.StringFixed(2),
			inv.DueDate.Format("2006-01-02"),
		),
	}
}

// ReminderLog records which invoices were already reminded on a calendar
// day so repeated sweeps on the same day do not notify twice.
type ReminderLog interface {
	// Reserve claims (invoiceID, day). It returns false when the pair was
	// already claimed.
	Reserve(ctx context.Context, invoiceID uuid.UUID, day time.Time) (bool, error)

	// Release drops a claim so a failed notification can be retried later
	Release(ctx context.Context, invoiceID uuid.UUID, day time.Time) error
}

// ReminderDay truncates t to its UTC calendar day
func ReminderDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ReminderKey is the canonical (invoice, day) key used by log backends
func ReminderKey(invoiceID uuid.UUID, day time.Time) string {
	return invoiceID.String() + ":" + ReminderDay(day).Format("2006-01-02")
}
