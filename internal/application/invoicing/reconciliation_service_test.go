package invoicing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestEngine(store invoicing.LedgerStore, metrics Metrics) *ReconciliationService {
	return NewReconciliationService(ReconciliationServiceConfig{
		Store:   store,
		Retry:   fastRetry(),
		Metrics: metrics,
	})
}

func TestReconciliationService_Apply(t *testing.T) {
	ctx := context.Background()
	invoiceID := uuid.New()

	t.Run("confirmed payment marks invoice paid", func(t *testing.T) {
		store := new(MockLedgerStore)
		metrics := newRecordingMetrics()
		engine := newTestEngine(store, metrics)

		store.On("ApplyPayment", mock.Anything, mock.MatchedBy(func(p *invoicing.Payment) bool {
			return p.InvoiceID == invoiceID &&
				p.Amount.Equal(decimal.RequireFromString("1500.00")) &&
				p.Method == invoicing.PaymentMethodStripe &&
				p.TransactionID == "tx_1" &&
				p.Status == invoicing.PaymentStatusConfirmed
		})).Return(echoOutcome(true, false), nil).Once()

		result, err := engine.Apply(ctx, ApplyPaymentInput{
			InvoiceID: invoiceID,
			Amount:    decimal.RequireFromString("1500.00"),
			Method:    invoicing.PaymentMethodStripe,
			Result:    invoicing.Succeeded("tx_1"),
		})

		require.NoError(t, err)
		assert.True(t, result.InvoicePaid)
		assert.False(t, result.Duplicate)
		assert.Equal(t, "confirmed", result.Payment.Status)
		assert.Equal(t, "tx_1", result.Payment.TransactionID)
		assert.Equal(t, []invoicing.PaymentStatus{invoicing.PaymentStatusConfirmed}, metrics.applied)
		store.AssertExpectations(t)
	})

	t.Run("replay reports duplicate", func(t *testing.T) {
		store := new(MockLedgerStore)
		metrics := newRecordingMetrics()
		engine := newTestEngine(store, metrics)

		store.On("ApplyPayment", mock.Anything, mock.Anything).Return(echoOutcome(true, true), nil).Once()

		result, err := engine.Apply(ctx, ApplyPaymentInput{
			InvoiceID: invoiceID,
			Amount:    decimal.NewFromInt(10),
			Method:    invoicing.PaymentMethodStripe,
			Result:    invoicing.Succeeded("tx_1"),
		})

		require.NoError(t, err)
		assert.True(t, result.Duplicate)
		assert.Equal(t, 1, metrics.dupes)
	})

	t.Run("gateway rejection is recorded and reported", func(t *testing.T) {
		store := new(MockLedgerStore)
		engine := newTestEngine(store, nil)

		store.On("ApplyPayment", mock.Anything, mock.MatchedBy(func(p *invoicing.Payment) bool {
			return p.Status == invoicing.PaymentStatusFailed && p.ErrorMessage == "card declined"
		})).Return(echoOutcome(false, false), nil).Once()

		result, err := engine.Apply(ctx, ApplyPaymentInput{
			InvoiceID: invoiceID,
			Amount:    decimal.NewFromInt(10),
			Method:    invoicing.PaymentMethodStripe,
			Result:    invoicing.Failed("pi_declined", "card declined"),
		})

		assert.ErrorIs(t, err, invoicing.ErrGatewayRejected)
		require.NotNil(t, result)
		assert.Equal(t, "failed", result.Payment.Status)
		assert.Equal(t, "card declined", result.Payment.ErrorMessage)
		assert.False(t, result.InvoicePaid)
		store.AssertExpectations(t)
	})

	t.Run("pending outcome carries redirect url", func(t *testing.T) {
		store := new(MockLedgerStore)
		engine := newTestEngine(store, nil)

		store.On("ApplyPayment", mock.Anything, mock.Anything).Return(echoOutcome(false, false), nil).Once()

		result, err := engine.Apply(ctx, ApplyPaymentInput{
			InvoiceID: invoiceID,
			Amount:    decimal.NewFromInt(10),
			Method:    invoicing.PaymentMethodPayPal,
			Result:    invoicing.GatewayResult{Pending: true, TransactionID: "PAY-1", RedirectURL: "https://paypal.test/approve"},
		})

		require.NoError(t, err)
		assert.Equal(t, "pending", result.Payment.Status)
		assert.Equal(t, "https://paypal.test/approve", result.RedirectURL)
	})

	t.Run("input validation happens before the store", func(t *testing.T) {
		tests := []struct {
			name  string
			input ApplyPaymentInput
			want  error
		}{
			{
				name:  "zero amount",
				input: ApplyPaymentInput{InvoiceID: invoiceID, Amount: decimal.Zero, Method: invoicing.PaymentMethodStripe, Result: invoicing.Succeeded("tx")},
				want:  invoicing.ErrInvalidAmount,
			},
			{
				name:  "negative amount",
				input: ApplyPaymentInput{InvoiceID: invoiceID, Amount: decimal.NewFromInt(-5), Method: invoicing.PaymentMethodStripe, Result: invoicing.Succeeded("tx")},
				want:  invoicing.ErrInvalidAmount,
			},
			{
				name:  "missing transaction id",
				input: ApplyPaymentInput{InvoiceID: invoiceID, Amount: decimal.NewFromInt(5), Method: invoicing.PaymentMethodPayPal, Result: invoicing.Succeeded("")},
				want:  shared.ErrInvalidInput,
			},
			{
				name:  "unknown method",
				input: ApplyPaymentInput{InvoiceID: invoiceID, Amount: decimal.NewFromInt(5), Method: "cash", Result: invoicing.Succeeded("tx")},
				want:  shared.ErrInvalidInput,
			},
			{
				name:  "nil invoice",
				input: ApplyPaymentInput{Amount: decimal.NewFromInt(5), Method: invoicing.PaymentMethodStripe, Result: invoicing.Succeeded("tx")},
				want:  shared.ErrNotFound,
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				store := new(MockLedgerStore)
				engine := newTestEngine(store, nil)

				_, err := engine.Apply(ctx, tt.input)
				assert.ErrorIs(t, err, tt.want)
				store.AssertNotCalled(t, "ApplyPayment", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("unknown invoice", func(t *testing.T) {
		store := new(MockLedgerStore)
		engine := newTestEngine(store, nil)
		store.On("ApplyPayment", mock.Anything, mock.Anything).Return(nil, invoicing.ErrInvoiceNotFound).Once()

		_, err := engine.Apply(ctx, ApplyPaymentInput{
			InvoiceID: uuid.New(),
			Amount:    decimal.NewFromInt(5),
			Method:    invoicing.PaymentMethodStripe,
			Result:    invoicing.Succeeded("tx"),
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
		store.AssertNumberOfCalls(t, "ApplyPayment", 1)
	})
}

func TestReconciliationService_Apply_Retry(t *testing.T) {
	ctx := context.Background()
	input := ApplyPaymentInput{
		InvoiceID: uuid.New(),
		Amount:    decimal.NewFromInt(25),
		Method:    invoicing.PaymentMethodStripe,
		Result:    invoicing.Succeeded("tx_retry"),
	}

	t.Run("conflicts are retried until the write lands", func(t *testing.T) {
		store := new(MockLedgerStore)
		metrics := newRecordingMetrics()
		engine := newTestEngine(store, metrics)

		store.On("ApplyPayment", mock.Anything, mock.Anything).Return(nil, invoicing.ErrStorageConflict).Twice()
		store.On("ApplyPayment", mock.Anything, mock.Anything).Return(echoOutcome(true, false), nil).Once()

		result, err := engine.Apply(ctx, input)

		require.NoError(t, err)
		assert.True(t, result.InvoicePaid)
		assert.Equal(t, 2, metrics.conflicts)
		store.AssertNumberOfCalls(t, "ApplyPayment", 3)
	})

	t.Run("exhausted retries surface as transient", func(t *testing.T) {
		store := new(MockLedgerStore)
		engine := newTestEngine(store, nil)

		store.On("ApplyPayment", mock.Anything, mock.Anything).Return(nil, invoicing.ErrStorageConflict)

		_, err := engine.Apply(ctx, input)

		assert.ErrorIs(t, err, shared.ErrTransient)
		store.AssertNumberOfCalls(t, "ApplyPayment", fastRetry().MaxRetries+1)
	})

	t.Run("unavailable store is not retried", func(t *testing.T) {
		store := new(MockLedgerStore)
		engine := newTestEngine(store, nil)

		store.On("ApplyPayment", mock.Anything, mock.Anything).Return(nil, shared.ErrUnavailable).Once()

		_, err := engine.Apply(ctx, input)

		assert.ErrorIs(t, err, shared.ErrUnavailable)
		store.AssertNumberOfCalls(t, "ApplyPayment", 1)
	})

	t.Run("cancellation stops the backoff", func(t *testing.T) {
		store := new(MockLedgerStore)
		engine := NewReconciliationService(ReconciliationServiceConfig{
			Store: store,
			Retry: RetryPolicy{MaxRetries: 10, BaseBackoff: time.Hour, MaxBackoff: time.Hour},
		})

		cctx, cancel := context.WithCancel(ctx)
		store.On("ApplyPayment", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { cancel() }).
			Return(nil, invoicing.ErrStorageConflict)

		_, err := engine.Apply(cctx, input)

		assert.ErrorIs(t, err, context.Canceled)
		store.AssertNumberOfCalls(t, "ApplyPayment", 1)
	})

	t.Run("conflicts are logged", func(t *testing.T) {
		core, logs := observer.New(zap.DebugLevel)
		store := new(MockLedgerStore)
		engine := NewReconciliationService(ReconciliationServiceConfig{
			Store:  store,
			Retry:  fastRetry(),
			Logger: zap.New(core),
		})

		store.On("ApplyPayment", mock.Anything, mock.Anything).Return(nil, invoicing.ErrStorageConflict).Once()
		store.On("ApplyPayment", mock.Anything, mock.Anything).Return(echoOutcome(false, false), nil).Once()

		_, err := engine.Apply(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, 1, logs.FilterMessage("Ledger conflict, retrying payment apply").Len())
		assert.Equal(t, 1, logs.FilterMessage("Payment recorded").Len())
	})
}

func TestRetryPolicy_Normalize(t *testing.T) {
	p := RetryPolicy{MaxRetries: -1, BaseBackoff: 0, MaxBackoff: 0}.normalize()
	assert.Equal(t, 0, p.MaxRetries)
	assert.Equal(t, DefaultRetryPolicy().BaseBackoff, p.BaseBackoff)
	assert.Equal(t, p.BaseBackoff, p.MaxBackoff)
}
