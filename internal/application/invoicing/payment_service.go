package invoicing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrWalletUnavailable is returned when no redirect wallet gateway is configured
var ErrWalletUnavailable = shared.NewDomainError(shared.CodeUnavailable, "wallet payments are not configured")

// ErrCardUnavailable is returned when no card gateway is configured
var ErrCardUnavailable = shared.NewDomainError(shared.CodeUnavailable, "card payments are not configured")

// PaymentService drives the gateways and hands every outcome to the
// reconciliation engine
type PaymentService struct {
	card     invoicing.Gateway
	wallet   invoicing.RedirectGateway
	engine   *ReconciliationService
	ledger   invoicing.LedgerStore
	currency string
	newKey   func() string
	logger   *zap.Logger
}

// PaymentServiceConfig holds the dependencies of PaymentService. Either
// gateway may be nil when the provider is not configured.
type PaymentServiceConfig struct {
	CardGateway   invoicing.Gateway
	WalletGateway invoicing.RedirectGateway
	Engine        *ReconciliationService
	Ledger        invoicing.LedgerStore
	Currency      string
	Logger        *zap.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(cfg PaymentServiceConfig) *PaymentService {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	currency := strings.ToLower(cfg.Currency)
	if currency == "" {
		currency = "usd"
	}
	return &PaymentService{
		card:     cfg.CardGateway,
		wallet:   cfg.WalletGateway,
		engine:   cfg.Engine,
		ledger:   cfg.Ledger,
		currency: currency,
		newKey:   func() string { return uuid.NewString() },
		logger:   log,
	}
}

// ChargeCard charges a card token for an invoice and applies the outcome.
// The idempotency key is forwarded to the provider so a retried request
// resolves to the same provider transaction and dedupes in the ledger.
func (s *PaymentService) ChargeCard(ctx context.Context, invoiceID uuid.UUID, req ChargeCardRequest) (*ApplyResult, error) {
	if s.card == nil {
		return nil, ErrCardUnavailable
	}
	if err := s.precheck(ctx, invoiceID, req.Amount); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Token) == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "card token is required")
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = s.newKey()
	}

	result := s.card.Charge(ctx, invoicing.ChargeRequest{
		InvoiceID:      invoiceID,
		AmountMinor:    invoicing.ToMinorUnits(req.Amount),
		Currency:       s.currency,
		Token:          req.Token,
		Description:    fmt.Sprintf("Payment for invoice %s", invoiceID),
		IdempotencyKey: key,
	})
	if result.TransactionID == "" {
		// declined before the provider assigned an id
		result.TransactionID = "declined_" + key
	}

	return s.engine.Apply(ctx, ApplyPaymentInput{
		InvoiceID: invoiceID,
		Amount:    req.Amount,
		Method:    s.card.Method(),
		Result:    result,
	})
}

// StartWalletPayment creates a wallet payment awaiting payer approval and
// records it as pending. The result carries the approval URL.
func (s *PaymentService) StartWalletPayment(ctx context.Context, invoiceID uuid.UUID, req StartWalletPaymentRequest) (*ApplyResult, error) {
	if s.wallet == nil {
		return nil, ErrWalletUnavailable
	}
	if err := s.precheck(ctx, invoiceID, req.Amount); err != nil {
		return nil, err
	}

	key := s.newKey()
	result := s.wallet.Charge(ctx, invoicing.ChargeRequest{
		InvoiceID:      invoiceID,
		AmountMinor:    invoicing.ToMinorUnits(req.Amount),
		Currency:       s.currency,
		Description:    fmt.Sprintf("Payment for invoice %s", invoiceID),
		IdempotencyKey: key,
	})
	if result.TransactionID == "" {
		result.TransactionID = "declined_" + key
	}

	return s.engine.Apply(ctx, ApplyPaymentInput{
		InvoiceID: invoiceID,
		Amount:    req.Amount,
		Method:    s.wallet.Method(),
		Result:    result,
	})
}

// CompleteWalletPayment executes an approved wallet payment and resolves the
// pending payment recorded for it. Completing an already resolved payment
// replays the stored outcome without calling the provider again.
func (s *PaymentService) CompleteWalletPayment(ctx context.Context, providerPaymentID, payerID string) (*ApplyResult, error) {
	if s.wallet == nil {
		return nil, ErrWalletUnavailable
	}
	if providerPaymentID == "" || payerID == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "payment id and payer id are required")
	}

	pending, err := s.ledger.FindPaymentByTransaction(ctx, s.wallet.Method(), providerPaymentID)
	if err != nil {
		return nil, err
	}

	result := invoicing.GatewayResult{
		Success:       pending.Status == invoicing.PaymentStatusConfirmed,
		TransactionID: providerPaymentID,
		ErrorMessage:  pending.ErrorMessage,
	}
	if pending.Status == invoicing.PaymentStatusPending {
		result = s.wallet.Execute(ctx, providerPaymentID, payerID)
		result.TransactionID = providerPaymentID
		if result.Pending {
			logger.For(ctx, s.logger).Warn("Wallet payment still pending after execute",
				zap.String("transaction_id", providerPaymentID))
		}
	}

	return s.engine.Apply(ctx, ApplyPaymentInput{
		InvoiceID: pending.InvoiceID,
		Amount:    pending.Amount,
		Method:    pending.Method,
		Result:    result,
	})
}

// RecordManualPayment records a confirmed bank transfer. A non-empty
// reference deduplicates repeated entries of the same transfer.
func (s *PaymentService) RecordManualPayment(ctx context.Context, invoiceID uuid.UUID, req ManualPaymentRequest) (*ApplyResult, error) {
	return s.engine.Apply(ctx, ApplyPaymentInput{
		InvoiceID: invoiceID,
		Amount:    req.Amount,
		Method:    invoicing.PaymentMethodBankTransfer,
		Result:    invoicing.Succeeded(strings.TrimSpace(req.Reference)),
	})
}

// GetByID returns a payment by ID
func (s *PaymentService) GetByID(ctx context.Context, id uuid.UUID) (*PaymentResponse, error) {
	payment, err := s.ledger.FindPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToPaymentResponse(payment)
	return &resp, nil
}

// ListByInvoice returns every payment recorded against an invoice
func (s *PaymentService) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]PaymentResponse, error) {
	if _, err := s.ledger.FindInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	payments, err := s.ledger.ListPaymentsByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	resp := make([]PaymentResponse, len(payments))
	for i := range payments {
		resp[i] = ToPaymentResponse(&payments[i])
	}
	return resp, nil
}

// precheck rejects requests that must not reach a provider
func (s *PaymentService) precheck(ctx context.Context, invoiceID uuid.UUID, amount decimal.Decimal) error {
	if !invoicing.ValidAmount(amount) {
		return invoicing.ErrInvalidAmount
	}
	_, err := s.ledger.FindInvoice(ctx, invoiceID)
	return err
}
