package invoicing

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChargeRequest is the input to a gateway charge
type ChargeRequest struct {
	InvoiceID   uuid.UUID
	AmountMinor int64 // smallest currency unit, e.g. cents
	Currency    string
	Token       string // card token / payment method id; unused by redirect wallets
	Description string

	// IdempotencyKey is forwarded to providers that support it so a retried
	// charge resolves to the same provider transaction.
	IdempotencyKey string
}

// GatewayResult is the normalized outcome of a charge. Declines and
// transport failures are reported here, never as Go errors.
type GatewayResult struct {
	Success       bool
	Pending       bool // redirect flow created, awaiting payer approval
	TransactionID string
	ErrorMessage  string
	RedirectURL   string
}

// Gateway is the charge capability every payment provider implements
type Gateway interface {
	Method() PaymentMethod
	Charge(ctx context.Context, req ChargeRequest) GatewayResult
}

// RedirectGateway is a gateway whose charge only creates a payment the payer
// must approve elsewhere. Execute completes an approved payment.
type RedirectGateway interface {
	Gateway
	Execute(ctx context.Context, paymentID, payerID string) GatewayResult
}

// Failed builds a failed result
func Failed(txID, message string) GatewayResult {
	return GatewayResult{TransactionID: txID, ErrorMessage: message}
}

// FailedAttemptKey names one failed attempt on a provider transaction that
// can still succeed later, such as a card PaymentIntent. The failure is keyed
// by the attempt so a later success on transactionID records a fresh payment.
func FailedAttemptKey(transactionID, attemptID string) string {
	if attemptID != "" {
		return attemptID
	}
	if transactionID == "" {
		return ""
	}
	return transactionID + ":failed"
}

// Succeeded builds a successful result
func Succeeded(txID string) GatewayResult {
	return GatewayResult{Success: true, TransactionID: txID}
}

// ToMinorUnits converts a decimal amount into an integer count of minor units
// (two decimal places), rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// ValidAmount reports whether amount is positive and fits in minor units
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(2))
}

// FromMinorUnits converts minor units back into a decimal amount
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
