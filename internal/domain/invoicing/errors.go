package invoicing

import "github.com/invoicing/backend/internal/domain/shared"

// Codes specific to invoicing
const (
	CodeInvalidAmount   = "INVALID_AMOUNT"
	CodeGatewayRejected = "GATEWAY_REJECTED"
)

var (
	ErrClientNotFound  = shared.NewDomainError(shared.CodeNotFound, "client not found")
	ErrInvoiceNotFound = shared.NewDomainError(shared.CodeNotFound, "invoice not found")
	ErrPaymentNotFound = shared.NewDomainError(shared.CodeNotFound, "payment not found")

	ErrInvalidAmount = shared.NewDomainError(CodeInvalidAmount, "amount must be greater than zero with at most two decimal places")

	ErrInvalidClientName     = shared.NewDomainError(shared.CodeInvalidInput, "client name is required")
	ErrInvalidEmail          = shared.NewDomainError(shared.CodeInvalidInput, "a valid email address is required")
	ErrInvalidDueDate        = shared.NewDomainError(shared.CodeInvalidInput, "due date is required")
	ErrInvalidMethod         = shared.NewDomainError(shared.CodeInvalidInput, "unsupported payment method")
	ErrMissingTransactionID  = shared.NewDomainError(shared.CodeInvalidInput, "gateway transaction id is required for this payment method")
	ErrEmptyUpdate           = shared.NewDomainError(shared.CodeInvalidInput, "update contains no fields")
	ErrEmailTaken            = shared.NewDomainError(shared.CodeAlreadyExists, "email is already used by another client")
	ErrTransactionReused     = shared.NewDomainError(shared.CodeAlreadyExists, "gateway transaction is already recorded against another invoice")
	ErrPaidInvoiceAmountLock = shared.NewDomainError(shared.CodeInvalidState, "amount of a paid invoice cannot be changed")
	ErrInvoiceHasPayments    = shared.NewDomainError(shared.CodeInvalidState, "invoice with recorded payments cannot be deleted")

	// ErrGatewayRejected accompanies a recorded failed payment. The caller
	// still receives the ApplyResult describing the failed row.
	ErrGatewayRejected = shared.NewDomainError(CodeGatewayRejected, "payment was rejected by the gateway")

	// ErrStorageConflict is raised by the ledger when a concurrent writer won
	// the race; the reconciliation service retries it locally.
	ErrStorageConflict = shared.ErrConcurrencyConflict
)
