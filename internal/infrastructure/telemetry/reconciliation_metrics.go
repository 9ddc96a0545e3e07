package telemetry

import (
	"context"
	"time"

	appinvoicing "github.com/invoicing/backend/internal/application/invoicing"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ReconciliationMetrics records ledger and reminder activity. It implements
// the application Metrics interface.
type ReconciliationMetrics struct {
	logger *zap.Logger

	paymentsApplied  *Counter
	duplicates       *Counter
	ledgerConflicts  *Counter
	applyDuration    *Histogram
	remindersSent    *Counter
	remindersFailed  *Counter
	remindersSkipped *Counter
	sweepDuration    *Histogram
}

// ReconciliationMetricsConfig holds configuration for reconciliation metrics.
type ReconciliationMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewReconciliationMetrics creates the instruments on the given meter.
func NewReconciliationMetrics(cfg ReconciliationMetricsConfig) (*ReconciliationMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &ReconciliationMetrics{logger: logger}

	counters := []struct {
		target      **Counter
		name        string
		description string
		unit        string
	}{
		{&m.paymentsApplied, "invoicing.payments.applied", "Payments recorded or resolved in the ledger", "{payments}"},
		{&m.duplicates, "invoicing.payments.duplicates", "Gateway outcomes ignored as already recorded", "{payments}"},
		{&m.ledgerConflicts, "invoicing.ledger.conflicts", "Ledger writes retried after losing a concurrent update", "{conflicts}"},
		{&m.remindersSent, "invoicing.reminders.sent", "Overdue reminders delivered", "{reminders}"},
		{&m.remindersFailed, "invoicing.reminders.failed", "Overdue reminders that could not be delivered", "{reminders}"},
		{&m.remindersSkipped, "invoicing.reminders.skipped", "Overdue reminders skipped as already sent today", "{reminders}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(cfg.Meter, c.name, c.description, c.unit)
		if err != nil {
			return nil, err
		}
		*c.target = counter
	}

	var err error
	m.applyDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "invoicing.apply.duration",
		Description: "Time to apply a gateway outcome including conflict retries",
		Unit:        "s",
		Boundaries:  ApplyDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	m.sweepDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "invoicing.sweep.duration",
		Description: "Wall time of a reminder sweep",
		Unit:        "s",
		Boundaries:  SweepDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return m, nil
}

// PaymentApplied records one Apply outcome
func (m *ReconciliationMetrics) PaymentApplied(ctx context.Context, method invoicing.PaymentMethod, status invoicing.PaymentStatus, duplicate bool) {
	if duplicate {
		m.duplicates.Inc(ctx, AttrPaymentMethod.String(string(method)))
		return
	}
	m.paymentsApplied.Inc(ctx,
		AttrPaymentMethod.String(string(method)),
		AttrPaymentStatus.String(string(status)),
	)
}

// LedgerConflict records one retried storage conflict
func (m *ReconciliationMetrics) LedgerConflict(ctx context.Context) {
	m.ledgerConflicts.Inc(ctx)
}

// ApplyDuration records the time spent in Apply
func (m *ReconciliationMetrics) ApplyDuration(ctx context.Context, method invoicing.PaymentMethod, d time.Duration) {
	m.applyDuration.RecordDuration(ctx, d, AttrPaymentMethod.String(string(method)))
}

// ReminderOutcome records the outcome for one overdue invoice
func (m *ReconciliationMetrics) ReminderOutcome(ctx context.Context, outcome appinvoicing.ReminderOutcome) {
	switch outcome {
	case appinvoicing.ReminderSent:
		m.remindersSent.Inc(ctx)
	case appinvoicing.ReminderFailed:
		m.remindersFailed.Inc(ctx)
	case appinvoicing.ReminderSkipped:
		m.remindersSkipped.Inc(ctx)
	default:
		m.logger.Debug("Unknown reminder outcome", zap.String("outcome", string(outcome)))
	}
}

// SweepDuration records the wall time of one sweep
func (m *ReconciliationMetrics) SweepDuration(ctx context.Context, d time.Duration) {
	m.sweepDuration.RecordDuration(ctx, d)
}

var _ appinvoicing.Metrics = (*ReconciliationMetrics)(nil)

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewReconciliationMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

