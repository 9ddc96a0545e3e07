package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// InvoiceService handles invoice issuing and editing. Payments never go
// through here; they are applied by ReconciliationService.
type InvoiceService struct {
	invoiceRepo invoicing.InvoiceRepository
	clientRepo  invoicing.ClientRepository
	ledger      invoicing.LedgerStore
	retry       RetryPolicy
	logger      *zap.Logger
}

// InvoiceServiceConfig holds the dependencies of InvoiceService
type InvoiceServiceConfig struct {
	InvoiceRepo invoicing.InvoiceRepository
	ClientRepo  invoicing.ClientRepository
	Ledger      invoicing.LedgerStore
	Retry       RetryPolicy
	Logger      *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(cfg InvoiceServiceConfig) *InvoiceService {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &InvoiceService{
		invoiceRepo: cfg.InvoiceRepo,
		clientRepo:  cfg.ClientRepo,
		ledger:      cfg.Ledger,
		retry:       cfg.Retry.normalize(),
		logger:      log,
	}
}

// Create issues a new unpaid invoice to an existing client
func (s *InvoiceService) Create(ctx context.Context, req CreateInvoiceRequest) (*InvoiceResponse, error) {
	if _, err := s.clientRepo.FindByID(ctx, req.ClientID); err != nil {
		return nil, err
	}

	invoice, err := invoicing.NewInvoice(req.ClientID, req.Amount, req.DueDate, req.Description)
	if err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
		return nil, err
	}

	logger.For(ctx, s.logger).Info("Invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("client_id", invoice.ClientID.String()),
		zap.String("amount", invoice.Amount.StringFixed(2)),
		zap.Time("due_date", invoice.DueDate))

	resp := ToInvoiceResponse(invoice)
	return &resp, nil
}

// GetByID returns an invoice with its client and payments
func (s *InvoiceService) GetByID(ctx context.Context, id uuid.UUID) (*InvoiceDetailResponse, error) {
	invoice, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	client, err := s.clientRepo.FindByID(ctx, invoice.ClientID)
	if err != nil {
		return nil, err
	}

	payments, err := s.ledger.ListPaymentsByInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &InvoiceDetailResponse{
		InvoiceResponse: ToInvoiceResponse(invoice),
		Client:          ToClientResponse(client),
		Payments:        make([]PaymentResponse, len(payments)),
	}
	for i := range payments {
		detail.Payments[i] = ToPaymentResponse(&payments[i])
		if payments[i].Status == invoicing.PaymentStatusConfirmed {
			detail.ConfirmedTotal = detail.ConfirmedTotal.Add(payments[i].Amount)
		}
	}
	return detail, nil
}

// List returns a page of invoices
func (s *InvoiceService) List(ctx context.Context, filter InvoiceListFilter) ([]InvoiceResponse, int64, error) {
	f := invoicing.InvoiceFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
			Search:   filter.Search,
		},
		ClientID: filter.ClientID,
		Paid:     filter.Paid,
	}
	if filter.Overdue {
		now := time.Now().UTC()
		f.OverdueAt = &now
	}

	invoices, total, err := s.invoiceRepo.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	resp := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		resp[i] = ToInvoiceResponse(&invoices[i])
	}
	return resp, total, nil
}

// Delete removes an invoice. Only invoices without any recorded payment can
// be deleted; otherwise ErrInvoiceHasPayments is returned.
func (s *InvoiceService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.invoiceRepo.Delete(ctx, id); err != nil {
		return err
	}
	logger.For(ctx, s.logger).Info("Invoice deleted", zap.String("invoice_id", id.String()))
	return nil
}

// Update applies a partial edit to an invoice. Moving the amount of an
// unpaid invoice re-derives paid from the confirmed payments in the same
// version-guarded write, so an edit racing a payment apply is retried on
// fresh state.
func (s *InvoiceService) Update(ctx context.Context, id uuid.UUID, req UpdateInvoiceRequest) (*InvoiceResponse, error) {
	update := req.toDomain()
	if update.IsEmpty() {
		return nil, invoicing.ErrEmptyUpdate
	}

	if update.ClientID != nil {
		if _, err := s.clientRepo.FindByID(ctx, *update.ClientID); err != nil {
			return nil, err
		}
	}

	invoice, err := retryOnConflict(ctx, s.retry, nil, func() (*invoicing.Invoice, error) {
		invoice, err := s.invoiceRepo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		total, err := s.invoiceRepo.ConfirmedTotal(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := invoice.Apply(update, total, time.Now().UTC()); err != nil {
			return nil, err
		}
		if err := s.invoiceRepo.SaveWithLock(ctx, invoice); err != nil {
			return nil, err
		}
		return invoice, nil
	})
	if err != nil {
		return nil, err
	}

	resp := ToInvoiceResponse(invoice)
	return &resp, nil
}
