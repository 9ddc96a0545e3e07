package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormReminderLog implements invoicing.ReminderLog on the reminder_logs
// table. The (invoice_id, day) primary key makes Reserve safe across
// instances sharing the database.
type GormReminderLog struct {
	db *gorm.DB
}

// NewGormReminderLog creates a new GormReminderLog
func NewGormReminderLog(db *gorm.DB) *GormReminderLog {
	return &GormReminderLog{db: db}
}

// Reserve claims (invoiceID, day)
func (l *GormReminderLog) Reserve(ctx context.Context, invoiceID uuid.UUID, day time.Time) (bool, error) {
	result := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ReminderLogModel{
			InvoiceID:  invoiceID,
			Day:        invoicing.ReminderDay(day),
			ReservedAt: time.Now().UTC(),
		})
	if result.Error != nil {
		return false, classifyError(result.Error)
	}
	return result.RowsAffected == 1, nil
}

// Release drops the claim for (invoiceID, day)
func (l *GormReminderLog) Release(ctx context.Context, invoiceID uuid.UUID, day time.Time) error {
	err := l.db.WithContext(ctx).
		Where("invoice_id = ? AND day = ?", invoiceID, invoicing.ReminderDay(day)).
		Delete(&models.ReminderLogModel{}).Error
	return classifyError(err)
}

var _ invoicing.ReminderLog = (*GormReminderLog)(nil)
