package router

import (
	"github.com/invoicing/backend/internal/interfaces/http/handler"
)

// Handlers groups the HTTP handlers of the invoicing API
type Handlers struct {
	Clients       *handler.ClientHandler
	Invoices      *handler.InvoiceHandler
	Payments      *handler.PaymentHandler
	Reminders     *handler.ReminderHandler
	StripeWebhook *handler.StripeWebhookHandler
}

// Paths under the API prefix that are called by payment providers or payer
// browsers and therefore carry no operator token
const (
	StripeWebhookPath = "/webhooks/stripe"
	WalletReturnPath  = "/payments/wallet/return"
)

// PublicPaths returns the full paths that bypass operator authentication
func (r *Router) PublicPaths() []string {
	return []string{
		r.Prefix() + StripeWebhookPath,
		r.Prefix() + WalletReturnPath,
	}
}

// RegisterInvoicing registers every invoicing route group. A nil handler
// leaves its group unmounted.
func (r *Router) RegisterInvoicing(h Handlers) *Router {
	if h.Clients != nil {
		clients := NewGroup("/clients")
		clients.POST("", h.Clients.Create).
			GET("", h.Clients.List).
			GET("/:id", h.Clients.GetByID).
			PATCH("/:id", h.Clients.Update)
		r.Register(clients)
	}

	if h.Invoices != nil || h.Payments != nil {
		invoices := NewGroup("/invoices")
		if h.Invoices != nil {
			invoices.POST("", h.Invoices.Create).
				GET("", h.Invoices.List).
				GET("/:id", h.Invoices.GetByID).
				PATCH("/:id", h.Invoices.Update).
				DELETE("/:id", h.Invoices.Delete)
		}
		if h.Payments != nil {
			invoices.GET("/:id/payments", h.Payments.ListByInvoice).
				POST("/:id/payments/card", h.Payments.ChargeCard).
				POST("/:id/payments/wallet", h.Payments.StartWallet).
				POST("/:id/payments/manual", h.Payments.RecordManual)
		}
		r.Register(invoices)
	}

	if h.Payments != nil {
		payments := NewGroup("/payments")
		payments.GET("/wallet/return", h.Payments.WalletReturn).
			GET("/:id", h.Payments.GetByID)
		r.Register(payments)
	}

	if h.Reminders != nil {
		reminders := NewGroup("/reminders")
		reminders.POST("/sweep", h.Reminders.Sweep)
		r.Register(reminders)
	}

	if h.StripeWebhook != nil {
		webhooks := NewGroup("/webhooks")
		webhooks.POST("/stripe", h.StripeWebhook.HandleStripeWebhook)
		r.Register(webhooks)
	}

	return r
}
