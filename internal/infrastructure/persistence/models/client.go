package models

import (
	"github.com/invoicing/backend/internal/domain/invoicing"
)

// ClientModel is the persistence model for the Client aggregate
type ClientModel struct {
	VersionedRecord
	Name    string `gorm:"type:varchar(200);not null"`
	Email   string `gorm:"type:varchar(254);not null;uniqueIndex:idx_clients_email"`
	Phone   string `gorm:"type:varchar(50)"`
	Address string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ClientModel) TableName() string {
	return "clients"
}

// ToDomain converts the persistence model to a domain Client
func (m *ClientModel) ToDomain() *invoicing.Client {
	return &invoicing.Client{
		BaseAggregateRoot: m.Root(),
		Name:              m.Name,
		Email:             m.Email,
		Phone:             m.Phone,
		Address:           m.Address,
	}
}

// FromDomain populates the persistence model from a domain Client
func (m *ClientModel) FromDomain(c *invoicing.Client) {
	m.SetRoot(c.BaseAggregateRoot)
	m.Name = c.Name
	m.Email = c.Email
	m.Phone = c.Phone
	m.Address = c.Address
}

// ClientModelFromDomain creates a new persistence model from a domain Client
func ClientModelFromDomain(c *invoicing.Client) *ClientModel {
	m := &ClientModel{}
	m.FromDomain(c)
	return m
}
