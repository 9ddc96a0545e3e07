package models

import (
	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/shopspring/decimal"
)

// PaymentModel is the persistence model for Payment. TransactionID is NULL
// for manual entries without a reference so they stay outside the
// (method, gateway_transaction_id) unique index.
type PaymentModel struct {
	Record
	InvoiceID     uuid.UUID               `gorm:"type:uuid;not null;index"`
	Amount        decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	Method        invoicing.PaymentMethod `gorm:"type:varchar(20);not null;uniqueIndex:idx_payments_method_txid,priority:1"`
	TransactionID *string                 `gorm:"column:gateway_transaction_id;type:varchar(255);uniqueIndex:idx_payments_method_txid,priority:2"`
	Status        invoicing.PaymentStatus `gorm:"type:varchar(20);not null;index"`
	ErrorMessage  string                  `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() *invoicing.Payment {
	p := &invoicing.Payment{
		BaseEntity:   m.Entity(),
		InvoiceID:    m.InvoiceID,
		Amount:       m.Amount,
		Method:       m.Method,
		Status:       m.Status,
		ErrorMessage: m.ErrorMessage,
	}
	if m.TransactionID != nil {
		p.TransactionID = *m.TransactionID
	}
	return p
}

// FromDomain populates the persistence model from a domain Payment
func (m *PaymentModel) FromDomain(p *invoicing.Payment) {
	m.SetEntity(p.BaseEntity)
	m.InvoiceID = p.InvoiceID
	m.Amount = p.Amount
	m.Method = p.Method
	m.Status = p.Status
	m.ErrorMessage = p.ErrorMessage
	m.TransactionID = nil
	if p.TransactionID != "" {
		txID := p.TransactionID
		m.TransactionID = &txID
	}
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment
func PaymentModelFromDomain(p *invoicing.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}
