package persistence

import "github.com/invoicing/backend/internal/infrastructure/persistence/models"

// AllModels lists every persistence model in dependency order
func AllModels() []any {
	return []any{
		&models.ClientModel{},
		&models.InvoiceModel{},
		&models.PaymentModel{},
		&models.ReminderLogModel{},
	}
}
