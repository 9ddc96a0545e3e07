package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate
type InvoiceModel struct {
	VersionedRecord
	ClientID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	DueDate     time.Time       `gorm:"not null;index:idx_invoices_unpaid_due,priority:2"`
	Description string          `gorm:"type:text"`
	Paid        bool            `gorm:"not null;default:false;index:idx_invoices_unpaid_due,priority:1"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *invoicing.Invoice {
	return &invoicing.Invoice{
		BaseAggregateRoot: m.Root(),
		ClientID:          m.ClientID,
		Amount:            m.Amount,
		DueDate:           m.DueDate.UTC(),
		Description:       m.Description,
		Paid:              m.Paid,
	}
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *invoicing.Invoice) {
	m.SetRoot(inv.BaseAggregateRoot)
	m.ClientID = inv.ClientID
	m.Amount = inv.Amount
	m.DueDate = inv.DueDate
	m.Description = inv.Description
	m.Paid = inv.Paid
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *invoicing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}
