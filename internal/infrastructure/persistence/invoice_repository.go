package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements invoicing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// Create inserts a new invoice
func (r *GormInvoiceRepository) Create(ctx context.Context, inv *invoicing.Invoice) error {
	if err := r.db.WithContext(ctx).Create(models.InvoiceModelFromDomain(inv)).Error; err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return invoicing.ErrClientNotFound
		}
		return classifyError(err)
	}
	return nil
}

// FindByID finds an invoice by its ID
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invoicing.ErrInvoiceNotFound
		}
		return nil, classifyError(err)
	}
	return model.ToDomain(), nil
}

// List returns a page of invoices and the total number matching the filter
func (r *GormInvoiceRepository) List(ctx context.Context, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{})
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Paid != nil {
		query = query.Where("paid = ?", *filter.Paid)
	}
	if filter.OverdueAt != nil {
		query = query.Where("paid = ? AND due_date < ?", false, filter.OverdueAt.UTC())
	}
	if filter.Search != "" {
		query = query.Where("LOWER(description) LIKE ?", likePattern(filter.Search))
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, classifyError(err)
	}

	var invoiceModels []models.InvoiceModel
	if err := applyPaging(query, filter.Filter, InvoiceSortFields).Find(&invoiceModels).Error; err != nil {
		return nil, 0, classifyError(err)
	}

	invoices := make([]invoicing.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = *model.ToDomain()
	}
	return invoices, total, nil
}

// ConfirmedTotal sums confirmed payment amounts for the invoice
func (r *GormInvoiceRepository) ConfirmedTotal(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	total, err := sumConfirmed(r.db.WithContext(ctx), invoiceID)
	if err != nil {
		return decimal.Zero, classifyError(err)
	}
	return total, nil
}

// Delete removes an invoice with no recorded payments along with its
// reminder log. The invoice row is locked against a concurrent apply.
func (r *GormInvoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockInvoice(tx, id); err != nil {
			return err
		}
		var payments int64
		if err := tx.Model(&models.PaymentModel{}).Where("invoice_id = ?", id).Count(&payments).Error; err != nil {
			return err
		}
		if payments > 0 {
			return invoicing.ErrInvoiceHasPayments
		}
		if err := tx.Where("invoice_id = ?", id).Delete(&models.ReminderLogModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.InvoiceModel{}, "id = ?", id).Error
	})
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return invoicing.ErrInvoiceHasPayments
	}
	return classifyError(err)
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, inv *invoicing.Invoice) error {
	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("id = ? AND version = ?", inv.ID, inv.Version-1).
		Updates(map[string]any{
			"client_id":   inv.ClientID,
			"amount":      inv.Amount,
			"due_date":    inv.DueDate,
			"description": inv.Description,
			"paid":        inv.Paid,
			"version":     inv.Version,
			"updated_at":  inv.UpdatedAt,
		})

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrForeignKeyViolated) {
			return invoicing.ErrClientNotFound
		}
		return classifyError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ invoicing.InvoiceRepository = (*GormInvoiceRepository)(nil)
