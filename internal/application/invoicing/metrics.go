package invoicing

import (
	"context"
	"time"

	"github.com/invoicing/backend/internal/domain/invoicing"
)

// Metrics receives reconciliation and reminder measurements.
// telemetry.ReconciliationMetrics is the production implementation.
type Metrics interface {
	PaymentApplied(ctx context.Context, method invoicing.PaymentMethod, status invoicing.PaymentStatus, duplicate bool)
	LedgerConflict(ctx context.Context)
	ApplyDuration(ctx context.Context, method invoicing.PaymentMethod, d time.Duration)
	ReminderOutcome(ctx context.Context, outcome ReminderOutcome)
	SweepDuration(ctx context.Context, d time.Duration)
}

// ReminderOutcome labels what happened to one overdue invoice in a sweep
type ReminderOutcome string

const (
	ReminderSent    ReminderOutcome = "sent"
	ReminderFailed  ReminderOutcome = "failed"
	ReminderSkipped ReminderOutcome = "skipped"
)

type noopMetrics struct{}

func (noopMetrics) PaymentApplied(context.Context, invoicing.PaymentMethod, invoicing.PaymentStatus, bool) {
}
func (noopMetrics) LedgerConflict(context.Context)                                        {}
func (noopMetrics) ApplyDuration(context.Context, invoicing.PaymentMethod, time.Duration) {}
func (noopMetrics) ReminderOutcome(context.Context, ReminderOutcome)                     {}
func (noopMetrics) SweepDuration(context.Context, time.Duration)                         {}
