package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	appinvoicing "github.com/invoicing/backend/internal/application/invoicing"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Stripe event payloads are a few kilobytes
const maxWebhookPayloadSize = 64 << 10

// StripeWebhookHandler receives Stripe events. Stripe authenticates with the
// Stripe-Signature header instead of an operator token.
type StripeWebhookHandler struct {
	webhooks *appinvoicing.StripeWebhookService
}

// NewStripeWebhookHandler creates a new StripeWebhookHandler
func NewStripeWebhookHandler(webhooks *appinvoicing.StripeWebhookService) *StripeWebhookHandler {
	return &StripeWebhookHandler{webhooks: webhooks}
}

// StripeWebhookResponse is the acknowledgement returned to Stripe
type StripeWebhookResponse struct {
	Received  bool   `json:"received"`
	EventID   string `json:"event_id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Message   string `json:"message,omitempty"`
}

func rejectWebhook(c *gin.Context, status int, message string) {
	c.JSON(status, StripeWebhookResponse{Message: message})
}

// HandleStripeWebhook handles POST /webhooks/stripe.
//
// Signature failures answer 401. Events that were applied or that can never
// be applied answer 200. Storage failures answer 500 so Stripe redelivers.
func (h *StripeWebhookHandler) HandleStripeWebhook(c *gin.Context) {
	// the signature covers the exact bytes, so the body is read raw
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookPayloadSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rejectWebhook(c, http.StatusRequestEntityTooLarge, "Payload too large")
			return
		}
		rejectWebhook(c, http.StatusBadRequest, "Failed to read request body")
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		rejectWebhook(c, http.StatusUnauthorized, "Missing Stripe-Signature header")
		return
	}

	result, err := h.webhooks.ProcessWebhook(c.Request.Context(), payload, signature)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, StripeWebhookResponse{
			Received:  true,
			EventID:   result.EventID,
			EventType: result.EventType,
			Duplicate: result.Duplicate,
			Message:   result.Message,
		})
	case result == nil || errors.Is(err, appinvoicing.ErrInvalidWebhookSignature):
		rejectWebhook(c, http.StatusUnauthorized, "Webhook signature verification failed")
	default:
		logger.GetGinLogger(c).Error("Stripe webhook will be redelivered",
			zap.String("event_id", result.EventID),
			zap.String("event_type", result.EventType),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, StripeWebhookResponse{
			EventID:   result.EventID,
			EventType: result.EventType,
			Message:   "Webhook could not be processed",
		})
	}
}
