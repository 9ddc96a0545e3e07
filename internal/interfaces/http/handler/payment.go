package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	appinvoicing "github.com/invoicing/backend/internal/application/invoicing"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
)

// IdempotencyKeyHeader may carry the card charge idempotency key instead of
// the request body
const IdempotencyKeyHeader = "Idempotency-Key"

// PaymentHandler handles payment endpoints
type PaymentHandler struct {
	BaseHandler
	paymentService *appinvoicing.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *appinvoicing.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// ChargeCard handles POST /invoices/:id/payments/card
func (h *PaymentHandler) ChargeCard(c *gin.Context) {
	invoiceID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req appinvoicing.ChargeCardRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader(IdempotencyKeyHeader)
	}

	result, err := h.paymentService.ChargeCard(c.Request.Context(), invoiceID, req)
	h.respondApply(c, result, err)
}

// StartWallet handles POST /invoices/:id/payments/wallet. The pending
// payment is returned with the URL the payer must visit.
func (h *PaymentHandler) StartWallet(c *gin.Context) {
	invoiceID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req appinvoicing.StartWalletPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.paymentService.StartWalletPayment(c.Request.Context(), invoiceID, req)
	h.respondApply(c, result, err)
}

// WalletReturn handles GET /payments/wallet/return?paymentId=&PayerID=,
// the URL the wallet provider sends the payer back to after approval
func (h *PaymentHandler) WalletReturn(c *gin.Context) {
	result, err := h.paymentService.CompleteWalletPayment(
		c.Request.Context(),
		c.Query("paymentId"),
		c.Query("PayerID"),
	)
	h.respondApply(c, result, err)
}

// RecordManual handles POST /invoices/:id/payments/manual
func (h *PaymentHandler) RecordManual(c *gin.Context) {
	invoiceID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req appinvoicing.ManualPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.paymentService.RecordManualPayment(c.Request.Context(), invoiceID, req)
	h.respondApply(c, result, err)
}

// GetByID handles GET /payments/:id
func (h *PaymentHandler) GetByID(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	payment, err := h.paymentService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payment)
}

// ListByInvoice handles GET /invoices/:id/payments
func (h *PaymentHandler) ListByInvoice(c *gin.Context) {
	invoiceID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	payments, err := h.paymentService.ListByInvoice(c.Request.Context(), invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payments)
}

// respondApply writes an apply outcome. A new payment answers 201 and a
// replayed one 200. A rejected payment is still recorded, so it answers 402
// with the stored payment as data.
func (h *PaymentHandler) respondApply(c *gin.Context, result *appinvoicing.ApplyResult, err error) {
	if err != nil {
		if result != nil && errors.Is(err, invoicing.ErrGatewayRejected) {
			resp := dto.NewErrorResponse(dto.ErrCodeGatewayRejected, paymentFailureMessage(result), getRequestID(c))
			resp.Data = result
			c.JSON(http.StatusPaymentRequired, resp)
			return
		}
		h.HandleError(c, err)
		return
	}

	if result.Duplicate || result.Resolved {
		h.Success(c, result)
		return
	}
	h.Created(c, result)
}

func paymentFailureMessage(result *appinvoicing.ApplyResult) string {
	if result.Payment.ErrorMessage != "" {
		return result.Payment.ErrorMessage
	}
	return "payment was rejected by the gateway"
}
