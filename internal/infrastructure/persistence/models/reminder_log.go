package models

import (
	"time"

	"github.com/google/uuid"
)

// ReminderLogModel records that an invoice was reminded on a calendar day
type ReminderLogModel struct {
	InvoiceID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Day        time.Time `gorm:"type:date;primaryKey"`
	ReservedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ReminderLogModel) TableName() string {
	return "reminder_logs"
}
