package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ApplyOutcome is what the ledger reports after an atomic apply
type ApplyOutcome struct {
	Payment     *Payment
	InvoicePaid bool

	// Duplicate is true when a payment for (method, txid) already existed
	// and no new row was written.
	Duplicate bool

	// Resolved is true when an existing pending payment was moved to a
	// terminal status by this call.
	Resolved bool
}

// LedgerStore is the authoritative store for invoices and payments.
// Implementations must make ApplyPayment atomic: the payment insert (or
// pending resolution) and the paid recomputation commit together.
type LedgerStore interface {
	FindInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	ListPaymentsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error)
	FindPayment(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindPaymentByTransaction(ctx context.Context, method PaymentMethod, txID string) (*Payment, error)

	// ApplyPayment inserts p if no payment exists for (p.Method,
	// p.TransactionID), resolves a matching pending payment when p is
	// terminal, and recomputes the invoice paid flag in the same unit.
	// A lost optimistic race returns ErrStorageConflict.
	ApplyPayment(ctx context.Context, p *Payment) (*ApplyOutcome, error)

	// FindOverdue returns unpaid invoices with due_date strictly before now
	FindOverdue(ctx context.Context, now time.Time) ([]OverdueInvoice, error)
}

// ClientRepository persists clients
type ClientRepository interface {
	Create(ctx context.Context, c *Client) error
	FindByID(ctx context.Context, id uuid.UUID) (*Client, error)
	FindByEmail(ctx context.Context, email string) (*Client, error)
	List(ctx context.Context, filter shared.Filter) ([]Client, int64, error)

	// SaveWithLock persists c if the stored version equals c.Version-1
	SaveWithLock(ctx context.Context, c *Client) error
}

// InvoiceFilter narrows invoice listings
type InvoiceFilter struct {
	shared.Filter
	ClientID  *uuid.UUID
	Paid      *bool
	OverdueAt *time.Time
}

// InvoiceRepository persists invoices outside the payment path
type InvoiceRepository interface {
	Create(ctx context.Context, inv *Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	List(ctx context.Context, filter InvoiceFilter) ([]Invoice, int64, error)

	// ConfirmedTotal sums confirmed payment amounts for the invoice
	ConfirmedTotal(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)

	// SaveWithLock persists inv if the stored version equals inv.Version-1
	SaveWithLock(ctx context.Context, inv *Invoice) error

	// Delete removes an invoice that has no payments of any status
	Delete(ctx context.Context, id uuid.UUID) error
}
