package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PaymentMethod identifies where a payment came from
type PaymentMethod string

const (
	PaymentMethodStripe       PaymentMethod = "stripe"        // card token charge
	PaymentMethodPayPal       PaymentMethod = "paypal"        // redirect wallet
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer" // manual entry
)

// IsValid checks if the method is one of the supported kinds
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodStripe, PaymentMethodPayPal, PaymentMethodBankTransfer:
		return true
	}
	return false
}

// RequiresTransactionID reports whether payments of this method must carry
// a gateway transaction id
func (m PaymentMethod) RequiresTransactionID() bool {
	return m != PaymentMethodBankTransfer
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// PaymentStatus is the lifecycle state of a payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// IsTerminal returns true for confirmed and failed payments
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusConfirmed || s == PaymentStatusFailed
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// StatusFromResult maps a gateway outcome onto a payment status
func StatusFromResult(r GatewayResult) PaymentStatus {
	switch {
	case r.Success:
		return PaymentStatusConfirmed
	case r.Pending:
		return PaymentStatusPending
	default:
		return PaymentStatusFailed
	}
}

// Payment is one recorded gateway outcome against an invoice. At most one
// payment exists per (Method, TransactionID).
type Payment struct {
	shared.BaseEntity
	InvoiceID     uuid.UUID
	Amount        decimal.Decimal
	Method        PaymentMethod
	TransactionID string
	Status        PaymentStatus
	ErrorMessage  string
}

// NewPayment builds a payment from a gateway result, validating the inputs
// the reconciliation contract requires.
func NewPayment(invoiceID uuid.UUID, amount decimal.Decimal, method PaymentMethod, result GatewayResult) (*Payment, error) {
	if invoiceID == uuid.Nil {
		return nil, ErrInvoiceNotFound
	}
	if !ValidAmount(amount) {
		return nil, ErrInvalidAmount
	}
	if !method.IsValid() {
		return nil, ErrInvalidMethod
	}
	if method.RequiresTransactionID() && result.TransactionID == "" {
		return nil, ErrMissingTransactionID
	}
	p := &Payment{
		BaseEntity:    shared.NewBaseEntity(),
		InvoiceID:     invoiceID,
		Amount:        amount,
		Method:        method,
		TransactionID: result.TransactionID,
		Status:        StatusFromResult(result),
	}
	if p.Status == PaymentStatusFailed {
		p.ErrorMessage = result.ErrorMessage
	}
	return p, nil
}

// IsIdempotent reports whether the payment participates in (method, txid)
// deduplication. Manual entries without a reference do not.
func (p *Payment) IsIdempotent() bool {
	return p.TransactionID != ""
}

// Resolve moves a pending payment to the terminal status described by r.
// It returns false when the payment is already terminal or r is still
// pending.
func (p *Payment) Resolve(r GatewayResult, now time.Time) bool {
	if p.Status.IsTerminal() {
		return false
	}
	next := StatusFromResult(r)
	if next == PaymentStatusPending {
		return false
	}
	p.Status = next
	if next == PaymentStatusFailed {
		p.ErrorMessage = r.ErrorMessage
	}
	p.Touch(now)
	return true
}
