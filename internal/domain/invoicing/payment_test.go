package invoicing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPayment(t *testing.T) {
	invoiceID := uuid.New()
	amount := decimal.RequireFromString("1500.00")

	t.Run("success result is confirmed", func(t *testing.T) {
		p, err := NewPayment(invoiceID, amount, PaymentMethodStripe, Succeeded("tx_1"))
		require.NoError(t, err)
		assert.Equal(t, PaymentStatusConfirmed, p.Status)
		assert.Equal(t, "tx_1", p.TransactionID)
		assert.True(t, p.IsIdempotent())
	})

	t.Run("failed result keeps error message", func(t *testing.T) {
		p, err := NewPayment(invoiceID, amount, PaymentMethodStripe, Failed("tx_2", "card declined"))
		require.NoError(t, err)
		assert.Equal(t, PaymentStatusFailed, p.Status)
		assert.Equal(t, "card declined", p.ErrorMessage)
	})

	t.Run("pending redirect result", func(t *testing.T) {
		p, err := NewPayment(invoiceID, amount, PaymentMethodPayPal, GatewayResult{Pending: true, TransactionID: "PAY-1"})
		require.NoError(t, err)
		assert.Equal(t, PaymentStatusPending, p.Status)
	})

	t.Run("bank transfer without reference", func(t *testing.T) {
		p, err := NewPayment(invoiceID, amount, PaymentMethodBankTransfer, Succeeded(""))
		require.NoError(t, err)
		assert.False(t, p.IsIdempotent())
	})

	errCases := []struct {
		name      string
		invoiceID uuid.UUID
		amount    decimal.Decimal
		method    PaymentMethod
		result    GatewayResult
		wantErr   error
	}{
		{"nil invoice", uuid.Nil, amount, PaymentMethodStripe, Succeeded("tx"), ErrInvoiceNotFound},
		{"zero amount", invoiceID, decimal.Zero, PaymentMethodStripe, Succeeded("tx"), ErrInvalidAmount},
		{"sub-cent amount", invoiceID, decimal.RequireFromString("0.001"), PaymentMethodStripe, Succeeded("tx"), ErrInvalidAmount},
		{"fractional cent", invoiceID, decimal.RequireFromString("12.345"), PaymentMethodBankTransfer, Succeeded(""), ErrInvalidAmount},
		{"unknown method", invoiceID, amount, PaymentMethod("cash"), Succeeded("tx"), ErrInvalidMethod},
		{"gateway without txid", invoiceID, amount, PaymentMethodPayPal, Succeeded(""), ErrMissingTransactionID},
	}
	for _, tt := range errCases {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPayment(tt.invoiceID, tt.amount, tt.method, tt.result)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPayment_Resolve(t *testing.T) {
	now := time.Now()
	newPending := func() *Payment {
		p, err := NewPayment(uuid.New(), decimal.NewFromInt(10), PaymentMethodPayPal, GatewayResult{Pending: true, TransactionID: "PAY-1"})
		require.NoError(t, err)
		return p
	}

	t.Run("pending to confirmed", func(t *testing.T) {
		p := newPending()
		assert.True(t, p.Resolve(Succeeded("PAY-1"), now))
		assert.Equal(t, PaymentStatusConfirmed, p.Status)
	})

	t.Run("pending to failed", func(t *testing.T) {
		p := newPending()
		assert.True(t, p.Resolve(Failed("PAY-1", "payer cancelled"), now))
		assert.Equal(t, PaymentStatusFailed, p.Status)
		assert.Equal(t, "payer cancelled", p.ErrorMessage)
	})

	t.Run("pending stays pending", func(t *testing.T) {
		p := newPending()
		assert.False(t, p.Resolve(GatewayResult{Pending: true}, now))
	})

	t.Run("terminal payments never change", func(t *testing.T) {
		p := newPending()
		require.True(t, p.Resolve(Succeeded("PAY-1"), now))
		assert.False(t, p.Resolve(Failed("PAY-1", "late failure"), now))
		assert.Equal(t, PaymentStatusConfirmed, p.Status)
	})
}
