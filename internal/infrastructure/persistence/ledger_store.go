package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedgerStore implements invoicing.LedgerStore using GORM. The payment
// write and the paid recomputation for an invoice always share one
// transaction.
type GormLedgerStore struct {
	db *gorm.DB
}

// NewGormLedgerStore creates a new GormLedgerStore
func NewGormLedgerStore(db *gorm.DB) *GormLedgerStore {
	return &GormLedgerStore{db: db}
}

// FindInvoice finds an invoice by its ID
func (s *GormLedgerStore) FindInvoice(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invoicing.ErrInvoiceNotFound
		}
		return nil, classifyError(err)
	}
	return model.ToDomain(), nil
}

// ListPaymentsByInvoice returns every payment recorded for the invoice, oldest first
func (s *GormLedgerStore) ListPaymentsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]invoicing.Payment, error) {
	var paymentModels []models.PaymentModel
	if err := s.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&paymentModels).Error; err != nil {
		return nil, classifyError(err)
	}

	payments := make([]invoicing.Payment, len(paymentModels))
	for i, model := range paymentModels {
		payments[i] = *model.ToDomain()
	}
	return payments, nil
}

// FindPayment finds a payment by its ID
func (s *GormLedgerStore) FindPayment(ctx context.Context, id uuid.UUID) (*invoicing.Payment, error) {
	var model models.PaymentModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invoicing.ErrPaymentNotFound
		}
		return nil, classifyError(err)
	}
	return model.ToDomain(), nil
}

// FindPaymentByTransaction finds the payment recorded for (method, txID)
func (s *GormLedgerStore) FindPaymentByTransaction(ctx context.Context, method invoicing.PaymentMethod, txID string) (*invoicing.Payment, error) {
	model, err := findByTransaction(s.db.WithContext(ctx), method, txID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invoicing.ErrPaymentNotFound
		}
		return nil, classifyError(err)
	}
	return model.ToDomain(), nil
}

// ApplyPayment records p and recomputes the invoice paid flag atomically.
//
// A payment whose (method, transaction id) is already stored is not
// inserted again; the stored row is returned with Duplicate set, unless it
// is pending and p carries a terminal status, in which case it is resolved.
// Every confirmed payment bumps the invoice version so concurrent invoice
// edits computed against a stale total lose their version check.
func (s *GormLedgerStore) ApplyPayment(ctx context.Context, p *invoicing.Payment) (*invoicing.ApplyOutcome, error) {
	var outcome *invoicing.ApplyOutcome

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := lockInvoice(tx, p.InvoiceID)
		if err != nil {
			return err
		}

		stored, inserted, resolved, err := recordPayment(tx, p)
		if err != nil {
			return err
		}

		if stored.Status == invoicing.PaymentStatusConfirmed && (inserted || resolved) {
			if err := reconcileInvoice(tx, inv); err != nil {
				return err
			}
		}

		outcome = &invoicing.ApplyOutcome{
			Payment:     stored,
			InvoicePaid: inv.Paid,
			Duplicate:   !inserted && !resolved,
			Resolved:    resolved,
		}
		return nil
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return outcome, nil
}

// FindOverdue returns unpaid invoices due strictly before now with their
// client's contact details, oldest due date first
func (s *GormLedgerStore) FindOverdue(ctx context.Context, now time.Time) ([]invoicing.OverdueInvoice, error) {
	var rows []overdueRow
	if err := s.db.WithContext(ctx).
		Table("invoices").
		Select("invoices.id AS invoice_id, invoices.amount AS amount, invoices.due_date AS due_date, " +
			"clients.name AS client_name, clients.email AS client_email").
		Joins("JOIN clients ON clients.id = invoices.client_id").
		Where("invoices.paid = ? AND invoices.due_date < ?", false, now.UTC()).
		Order("invoices.due_date ASC").
		Scan(&rows).Error; err != nil {
		return nil, classifyError(err)
	}

	overdue := make([]invoicing.OverdueInvoice, len(rows))
	for i, r := range rows {
		overdue[i] = invoicing.OverdueInvoice{
			InvoiceID:   r.InvoiceID,
			Amount:      r.Amount,
			DueDate:     r.DueDate.UTC(),
			ClientName:  r.ClientName,
			ClientEmail: r.ClientEmail,
		}
	}
	return overdue, nil
}

type overdueRow struct {
	InvoiceID   uuid.UUID
	Amount      decimal.Decimal
	DueDate     time.Time
	ClientName  string
	ClientEmail string
}

// lockInvoice reads the invoice row, taking a row lock where the dialect
// supports it. sqlite serializes writers on its own.
func lockInvoice(tx *gorm.DB, id uuid.UUID) (*invoicing.Invoice, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var model models.InvoiceModel
	if err := q.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invoicing.ErrInvoiceNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// recordPayment inserts p or resolves the stored row for its transaction.
// It reports whether a row was inserted and whether a pending row was
// resolved.
func recordPayment(tx *gorm.DB, p *invoicing.Payment) (*invoicing.Payment, bool, bool, error) {
	model := models.PaymentModelFromDomain(p)

	if !p.IsIdempotent() {
		if err := tx.Create(model).Error; err != nil {
			return nil, false, false, err
		}
		return model.ToDomain(), true, false, nil
	}

	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(model)
	if result.Error != nil {
		return nil, false, false, result.Error
	}
	if result.RowsAffected == 1 {
		return model.ToDomain(), true, false, nil
	}

	existing, err := findByTransaction(tx, p.Method, p.TransactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// the conflicting row is not visible to us yet
			return nil, false, false, invoicing.ErrStorageConflict
		}
		return nil, false, false, err
	}
	if existing.InvoiceID != p.InvoiceID {
		return nil, false, false, invoicing.ErrTransactionReused
	}

	stored := existing.ToDomain()
	now := time.Now().UTC()
	if !stored.Resolve(resultOf(p), now) {
		return stored, false, false, nil
	}

	update := tx.Model(&models.PaymentModel{}).
		Where("id = ? AND status = ?", stored.ID, invoicing.PaymentStatusPending).
		Updates(map[string]any{
			"status":        stored.Status,
			"error_message": stored.ErrorMessage,
			"updated_at":    now,
		})
	if update.Error != nil {
		return nil, false, false, update.Error
	}
	if update.RowsAffected == 0 {
		return nil, false, false, invoicing.ErrStorageConflict
	}
	return stored, false, true, nil
}

// reconcileInvoice recomputes the confirmed total and writes the paid flag
// under the invoice version guard
func reconcileInvoice(tx *gorm.DB, inv *invoicing.Invoice) error {
	total, err := sumConfirmed(tx, inv.ID)
	if err != nil {
		return err
	}
	inv.Reconcile(total)

	next := inv.Version + 1
	result := tx.Model(&models.InvoiceModel{}).
		Where("id = ? AND version = ?", inv.ID, inv.Version).
		Updates(map[string]any{
			"paid":       inv.Paid,
			"version":    next,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return invoicing.ErrStorageConflict
	}
	inv.Version = next
	return nil
}

// sumConfirmed adds confirmed amounts in decimal. SQL SUM is avoided because
// sqlite stores numeric columns as REAL and sums them in float.
func sumConfirmed(db *gorm.DB, invoiceID uuid.UUID) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := db.Model(&models.PaymentModel{}).
		Where("invoice_id = ? AND status = ?", invoiceID, invoicing.PaymentStatusConfirmed).
		Pluck("amount", &amounts).Error
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, amount := range amounts {
		total = total.Add(amount.Round(2))
	}
	return total, nil
}

func findByTransaction(db *gorm.DB, method invoicing.PaymentMethod, txID string) (*models.PaymentModel, error) {
	var model models.PaymentModel
	if err := db.
		Where("method = ? AND gateway_transaction_id = ?", method, txID).
		First(&model).Error; err != nil {
		return nil, err
	}
	return &model, nil
}

// resultOf rebuilds the gateway outcome a payment was created from
func resultOf(p *invoicing.Payment) invoicing.GatewayResult {
	return invoicing.GatewayResult{
		Success:       p.Status == invoicing.PaymentStatusConfirmed,
		Pending:       p.Status == invoicing.PaymentStatusPending,
		TransactionID: p.TransactionID,
		ErrorMessage:  p.ErrorMessage,
	}
}
