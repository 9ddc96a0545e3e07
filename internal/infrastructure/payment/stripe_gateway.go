package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// MetadataInvoiceID is the PaymentIntent metadata key carrying the invoice id
const MetadataInvoiceID = "invoice_id"

// StripeGateway charges card tokens through confirmed PaymentIntents
type StripeGateway struct {
	config  *StripeConfig
	backend stripe.Backend
	logger  *zap.Logger
}

// NewStripeGateway creates a new Stripe gateway
func NewStripeGateway(config *StripeConfig, logger *zap.Logger) (*StripeGateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StripeGateway{config: config, logger: logger}, nil
}

// Method returns the payment method recorded for Stripe charges
func (g *StripeGateway) Method() invoicing.PaymentMethod {
	return invoicing.PaymentMethodStripe
}

// Charge creates and confirms a PaymentIntent for the card token.
// Declines and transport errors are reported in the result.
func (g *StripeGateway) Charge(ctx context.Context, req invoicing.ChargeRequest) invoicing.GatewayResult {
	ctx, span := telemetry.StartServiceSpan(ctx, "stripe", "charge",
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute(telemetry.SpanAttrInvoiceID, req.InvoiceID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrAmount, req.AmountMinor),
	)
	defer span.End()

	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = g.config.Currency
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.AmountMinor),
		Currency:      stripe.String(currency),
		PaymentMethod: stripe.String(req.Token),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.AddMetadata(MetadataInvoiceID, req.InvoiceID.String())
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.Context = ctx

	client := paymentintent.Client{B: g.backendFor(), Key: g.config.SecretKey}
	intent, err := client.New(params)
	if err != nil {
		result := declineResult(err)
		telemetry.RecordError(span, err)
		g.logger.Warn("Stripe charge failed",
			zap.String("invoice_id", req.InvoiceID.String()),
			zap.String("transaction_id", result.TransactionID),
			zap.String("error", result.ErrorMessage))
		return result
	}

	result := intentResult(intent)
	telemetry.SetAttribute(span, telemetry.SpanAttrTransactionID, intent.ID)
	g.logger.Info("Stripe charge completed",
		zap.String("invoice_id", req.InvoiceID.String()),
		zap.String("transaction_id", intent.ID),
		zap.String("status", string(intent.Status)))
	return result
}

func (g *StripeGateway) backendFor() stripe.Backend {
	if g.backend != nil {
		return g.backend
	}
	return stripe.GetBackend(stripe.APIBackend)
}

// intentResult maps a PaymentIntent status onto a gateway result. An intent
// stays open until it succeeds or is canceled, so only those statuses are
// recorded against the intent id; failed attempts are keyed by their charge.
func intentResult(intent *stripe.PaymentIntent) invoicing.GatewayResult {
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return invoicing.Succeeded(intent.ID)
	case stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresCapture:
		return invoicing.GatewayResult{Pending: true, TransactionID: intent.ID}
	case stripe.PaymentIntentStatusCanceled:
		return invoicing.Failed(intent.ID, intentMessage(intent))
	default:
		return invoicing.Failed(invoicing.FailedAttemptKey(intent.ID, attemptID(intent, intent.LastPaymentError)), intentMessage(intent))
	}
}

func intentMessage(intent *stripe.PaymentIntent) string {
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		return intent.LastPaymentError.Msg
	}
	return "payment intent ended in status " + string(intent.Status)
}

// attemptID is the charge behind a failed attempt, if Stripe created one
func attemptID(intent *stripe.PaymentIntent, cause *stripe.Error) string {
	if cause != nil && cause.ChargeID != "" {
		return cause.ChargeID
	}
	if intent != nil && intent.LatestCharge != nil {
		return intent.LatestCharge.ID
	}
	return ""
}

// declineResult extracts the failed attempt and message from a Stripe error
func declineResult(err error) invoicing.GatewayResult {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		txID := ""
		if stripeErr.PaymentIntent != nil {
			txID = invoicing.FailedAttemptKey(stripeErr.PaymentIntent.ID, attemptID(stripeErr.PaymentIntent, stripeErr))
		} else if stripeErr.ChargeID != "" {
			txID = stripeErr.ChargeID
		}
		msg := stripeErr.Msg
		if msg == "" {
			msg = string(stripeErr.Code)
		}
		return invoicing.Failed(txID, msg)
	}
	return invoicing.Failed("", "stripe: "+err.Error())
}
