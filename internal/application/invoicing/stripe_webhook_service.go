package invoicing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

// ErrInvalidWebhookSignature is returned when a webhook payload fails verification
var ErrInvalidWebhookSignature = shared.NewDomainError(shared.CodeInvalidInput, "webhook signature verification failed")

// StripeWebhookService applies PaymentIntent outcomes delivered by Stripe
// webhooks. Redeliveries and events for charges already applied
// synchronously are deduplicated by the ledger.
type StripeWebhookService struct {
	webhookSecret string
	engine        *ReconciliationService
	logger        *zap.Logger
}

// StripeWebhookServiceConfig contains configuration for StripeWebhookService
type StripeWebhookServiceConfig struct {
	WebhookSecret string
	Engine        *ReconciliationService
	Logger        *zap.Logger
}

// NewStripeWebhookService creates a new StripeWebhookService
func NewStripeWebhookService(cfg StripeWebhookServiceConfig) *StripeWebhookService {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &StripeWebhookService{
		webhookSecret: cfg.WebhookSecret,
		engine:        cfg.Engine,
		logger:        log,
	}
}

// WebhookResult contains the result of processing a webhook
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Processed bool   `json:"processed"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ProcessWebhook verifies and applies a Stripe webhook event. Only storage
// failures are returned as errors so that Stripe redelivers the event.
func (s *StripeWebhookService) ProcessWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		logger.For(ctx, s.logger).Warn("Failed to verify webhook signature", zap.Error(err))
		return nil, ErrInvalidWebhookSignature.WithCause(err)
	}

	logger.For(ctx, s.logger).Info("Processing Stripe webhook event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))

	result := &WebhookResult{
		EventID:   event.ID,
		EventType: string(event.Type),
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
		err = s.handlePaymentIntent(ctx, event, result)
	default:
		result.Message = "Event type not handled"
	}

	if err != nil {
		logger.For(ctx, s.logger).Error("Failed to process webhook event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		result.Message = err.Error()
		return result, err
	}
	return result, nil
}

func (s *StripeWebhookService) handlePaymentIntent(ctx context.Context, event stripe.Event, result *WebhookResult) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return fmt.Errorf("failed to unmarshal payment intent: %w", err)
	}

	invoiceID, err := uuid.Parse(intent.Metadata["invoice_id"])
	if err != nil {
		logger.For(ctx, s.logger).Warn("PaymentIntent has no invoice reference, skipping",
			zap.String("payment_intent_id", intent.ID))
		result.Message = "PaymentIntent is not linked to an invoice"
		return nil
	}

	outcome := intentOutcome(event, &intent)

	applied, err := s.engine.Apply(ctx, ApplyPaymentInput{
		InvoiceID: invoiceID,
		Amount:    invoicing.FromMinorUnits(intent.Amount),
		Method:    invoicing.PaymentMethodStripe,
		Result:    outcome,
	})
	switch {
	case err == nil, errors.Is(err, invoicing.ErrGatewayRejected):
		result.Processed = true
		result.Duplicate = applied.Duplicate
		return nil
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrAlreadyExists), errors.Is(err, invoicing.ErrInvalidAmount):
		// redelivery cannot fix these; acknowledge so Stripe stops retrying
		logger.For(ctx, s.logger).Warn("PaymentIntent cannot be applied",
			zap.String("payment_intent_id", intent.ID),
			zap.String("invoice_id", invoiceID.String()),
			zap.Error(err))
		result.Message = err.Error()
		return nil
	default:
		return err
	}
}

// intentOutcome maps a PaymentIntent event onto a gateway result. A failed
// attempt leaves the intent open for another try, so it is keyed by its
// charge (or by the event) and a later success on the intent still applies.
func intentOutcome(event stripe.Event, intent *stripe.PaymentIntent) invoicing.GatewayResult {
	message := "payment failed"
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		message = intent.LastPaymentError.Msg
	}

	switch event.Type {
	case "payment_intent.succeeded":
		return invoicing.Succeeded(intent.ID)
	case "payment_intent.canceled":
		if intent.LastPaymentError == nil {
			message = "payment intent canceled"
		}
		return invoicing.Failed(intent.ID, message)
	}

	attempt := event.ID
	switch {
	case intent.LastPaymentError != nil && intent.LastPaymentError.ChargeID != "":
		attempt = intent.LastPaymentError.ChargeID
	case intent.LatestCharge != nil && intent.LatestCharge.ID != "":
		attempt = intent.LatestCharge.ID
	}
	return invoicing.Failed(invoicing.FailedAttemptKey(intent.ID, attempt), message)
}
