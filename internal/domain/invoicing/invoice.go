package invoicing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Invoice is an amount owed by a client. Paid is derived from the set of
// confirmed payments and is only ever changed through Reconcile.
type Invoice struct {
	shared.BaseAggregateRoot
	ClientID    uuid.UUID
	Amount      decimal.Decimal
	DueDate     time.Time
	Description string
	Paid        bool
}

// NewInvoice creates an unpaid invoice
func NewInvoice(clientID uuid.UUID, amount decimal.Decimal, dueDate time.Time, description string) (*Invoice, error) {
	if clientID == uuid.Nil {
		return nil, ErrClientNotFound
	}
	if !ValidAmount(amount) {
		return nil, ErrInvalidAmount
	}
	if dueDate.IsZero() {
		return nil, ErrInvalidDueDate
	}
	return &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ClientID:          clientID,
		Amount:            amount,
		DueDate:           dueDate.UTC(),
		Description:       strings.TrimSpace(description),
	}, nil
}

// IsOverdue reports whether the invoice is unpaid and past due at now
func (i *Invoice) IsOverdue(now time.Time) bool {
	return !i.Paid && i.DueDate.Before(now)
}

// Reconcile derives the paid flag from the confirmed total. Paid never goes
// back to false once set. It returns true when the flag changed.
func (i *Invoice) Reconcile(confirmedTotal decimal.Decimal) bool {
	if i.Paid {
		return false
	}
	if confirmedTotal.GreaterThanOrEqual(i.Amount) {
		i.Paid = true
		return true
	}
	return false
}

// InvoiceUpdate is a partial edit of an invoice. Paid is deliberately absent.
type InvoiceUpdate struct {
	ClientID    *uuid.UUID
	Amount      *decimal.Decimal
	DueDate     *time.Time
	Description *string
}

// IsEmpty reports whether the update carries no fields
func (u InvoiceUpdate) IsEmpty() bool {
	return u.ClientID == nil && u.Amount == nil && u.DueDate == nil && u.Description == nil
}

// ChangesAmount reports whether applying u would change the invoice amount
func (u InvoiceUpdate) ChangesAmount(i *Invoice) bool {
	return u.Amount != nil && !u.Amount.Equal(i.Amount)
}

// Apply validates and applies the update. confirmedTotal is the current sum
// of confirmed payments and is used to re-derive Paid when the amount moves.
// The invoice is left untouched on error.
func (i *Invoice) Apply(u InvoiceUpdate, confirmedTotal decimal.Decimal, now time.Time) error {
	if u.IsEmpty() {
		return ErrEmptyUpdate
	}
	next := *i
	if u.ClientID != nil {
		if *u.ClientID == uuid.Nil {
			return ErrClientNotFound
		}
		next.ClientID = *u.ClientID
	}
	if u.ChangesAmount(i) {
		if i.Paid {
			return ErrPaidInvoiceAmountLock
		}
		if !ValidAmount(*u.Amount) {
			return ErrInvalidAmount
		}
		next.Amount = *u.Amount
	}
	if u.DueDate != nil {
		if u.DueDate.IsZero() {
			return ErrInvalidDueDate
		}
		next.DueDate = u.DueDate.UTC()
	}
	if u.Description != nil {
		next.Description = strings.TrimSpace(*u.Description)
	}
	next.Reconcile(confirmedTotal)
	next.Touch(now)
	next.IncrementVersion()
	*i = next
	return nil
}
