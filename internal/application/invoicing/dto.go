package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/shopspring/decimal"
)

// CreateClientRequest represents a request to create a new client
type CreateClientRequest struct {
	Name    string `json:"name" binding:"required,min=1,max=200"`
	Email   string `json:"email" binding:"required,email,max=254"`
	Phone   string `json:"phone" binding:"max=50"`
	Address string `json:"address" binding:"max=500"`
}

// UpdateClientRequest represents a partial client edit
type UpdateClientRequest struct {
	Name    *string `json:"name" binding:"omitempty,min=1,max=200"`
	Email   *string `json:"email" binding:"omitempty,email,max=254"`
	Phone   *string `json:"phone" binding:"omitempty,max=50"`
	Address *string `json:"address" binding:"omitempty,max=500"`
}

func (r UpdateClientRequest) toDomain() invoicing.ClientUpdate {
	return invoicing.ClientUpdate{
		Name:    r.Name,
		Email:   r.Email,
		Phone:   r.Phone,
		Address: r.Address,
	}
}

// ClientResponse represents a client in API responses
type ClientResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// ToClientResponse converts a domain client
func ToClientResponse(c *invoicing.Client) ClientResponse {
	return ClientResponse{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Address:   c.Address,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Version:   c.Version,
	}
}

// CreateInvoiceRequest represents a request to issue an invoice
type CreateInvoiceRequest struct {
	ClientID    uuid.UUID       `json:"client_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     time.Time       `json:"due_date"`
	Description string          `json:"description" binding:"max=2000"`
}

// UpdateInvoiceRequest represents a partial invoice edit. The paid flag is
// derived and cannot be set.
type UpdateInvoiceRequest struct {
	ClientID    *uuid.UUID       `json:"client_id"`
	Amount      *decimal.Decimal `json:"amount"`
	DueDate     *time.Time       `json:"due_date"`
	Description *string          `json:"description" binding:"omitempty,max=2000"`
}

func (r UpdateInvoiceRequest) toDomain() invoicing.InvoiceUpdate {
	return invoicing.InvoiceUpdate{
		ClientID:    r.ClientID,
		Amount:      r.Amount,
		DueDate:     r.DueDate,
		Description: r.Description,
	}
}

// InvoiceListFilter narrows invoice listings
type InvoiceListFilter struct {
	Page     int        `form:"page" binding:"omitempty,min=1"`
	PageSize int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string     `form:"order_by"`
	OrderDir string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Search   string     `form:"search"`
	ClientID *uuid.UUID `form:"client_id"`
	Paid     *bool      `form:"paid"`
	Overdue  bool       `form:"overdue"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID          uuid.UUID       `json:"id"`
	ClientID    uuid.UUID       `json:"client_id"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     time.Time       `json:"due_date"`
	Description string          `json:"description"`
	Paid        bool            `json:"paid"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Version     int             `json:"version"`
}

// ToInvoiceResponse converts a domain invoice
func ToInvoiceResponse(inv *invoicing.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:          inv.ID,
		ClientID:    inv.ClientID,
		Amount:      inv.Amount,
		DueDate:     inv.DueDate,
		Description: inv.Description,
		Paid:        inv.Paid,
		CreatedAt:   inv.CreatedAt,
		UpdatedAt:   inv.UpdatedAt,
		Version:     inv.Version,
	}
}

// InvoiceDetailResponse is an invoice with its client and payment history
type InvoiceDetailResponse struct {
	InvoiceResponse
	Client         ClientResponse    `json:"client"`
	Payments       []PaymentResponse `json:"payments"`
	ConfirmedTotal decimal.Decimal   `json:"confirmed_total"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID            uuid.UUID       `json:"id"`
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	TransactionID string          `json:"gateway_transaction_id,omitempty"`
	Status        string          `json:"status"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ToPaymentResponse converts a domain payment
func ToPaymentResponse(p *invoicing.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		InvoiceID:     p.InvoiceID,
		Amount:        p.Amount,
		Method:        p.Method.String(),
		TransactionID: p.TransactionID,
		Status:        p.Status.String(),
		ErrorMessage:  p.ErrorMessage,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// ApplyPaymentInput is one gateway outcome to be applied to an invoice
type ApplyPaymentInput struct {
	InvoiceID uuid.UUID
	Amount    decimal.Decimal
	Method    invoicing.PaymentMethod
	Result    invoicing.GatewayResult
}

// ApplyResult reports the payment row an apply ended on and the invoice
// paid flag after it
type ApplyResult struct {
	Payment     PaymentResponse `json:"payment"`
	InvoicePaid bool            `json:"invoice_paid"`
	Duplicate   bool            `json:"duplicate"`
	Resolved    bool            `json:"resolved,omitempty"`

	// RedirectURL is set for wallet payments awaiting payer approval
	RedirectURL string `json:"redirect_url,omitempty"`
}

// ChargeCardRequest represents a card charge against an invoice
type ChargeCardRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Token          string          `json:"token" binding:"required"`
	IdempotencyKey string          `json:"idempotency_key" binding:"max=255"`
}

// StartWalletPaymentRequest starts a redirect wallet payment
type StartWalletPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// ManualPaymentRequest records a bank transfer
type ManualPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference" binding:"max=255"`
}

// SweepResult summarizes one reminder sweep
type SweepResult struct {
	Evaluated int           `json:"evaluated"`
	Attempted int           `json:"attempted"`
	Sent      int           `json:"sent"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Cancelled bool          `json:"cancelled"`
	Duration  time.Duration `json:"duration"`
}
