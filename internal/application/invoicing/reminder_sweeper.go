package invoicing

import (
	"context"
	"sync"
	"time"

	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// OverdueFinder is the read side of the ledger a sweep needs
type OverdueFinder interface {
	FindOverdue(ctx context.Context, now time.Time) ([]invoicing.OverdueInvoice, error)
}

// ReminderSweeper notifies the clients of unpaid, past-due invoices. It never
// writes invoices or payments.
type ReminderSweeper struct {
	store         OverdueFinder
	notifier      invoicing.Notifier
	reminderLog   invoicing.ReminderLog
	concurrency   int
	notifyTimeout time.Duration
	metrics       Metrics
	logger        *zap.Logger
}

// ReminderSweeperConfig holds the dependencies of ReminderSweeper.
// ReminderLog is optional; without it every sweep reminds every overdue
// invoice.
type ReminderSweeperConfig struct {
	Store         OverdueFinder
	Notifier      invoicing.Notifier
	ReminderLog   invoicing.ReminderLog
	Concurrency   int
	NotifyTimeout time.Duration
	Metrics       Metrics
	Logger        *zap.Logger
}

// NewReminderSweeper creates a new ReminderSweeper
func NewReminderSweeper(cfg ReminderSweeperConfig) *ReminderSweeper {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	return &ReminderSweeper{
		store:         cfg.Store,
		notifier:      cfg.Notifier,
		reminderLog:   cfg.ReminderLog,
		concurrency:   cfg.Concurrency,
		notifyTimeout: cfg.NotifyTimeout,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
	}
}

// sweepCounters is shared by the sweep workers
type sweepCounters struct {
	mu        sync.Mutex
	attempted int
	sent      int
	failed    int
	skipped   int
}

func (c *sweepCounters) add(f func(c *sweepCounters)) {
	c.mu.Lock()
	f(c)
	c.mu.Unlock()
}

// Sweep sends one reminder for every invoice with due_date before now that
// is still unpaid. Notification failures are counted and logged; only a
// failed overdue query is returned as an error. Cancelling ctx stops new
// notifications from being issued and marks the result Cancelled.
func (s *ReminderSweeper) Sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	start := time.Now()
	log := logger.For(ctx, s.logger)

	overdue, err := s.store.FindOverdue(ctx, now)
	if err != nil {
		log.Error("Failed to query overdue invoices", zap.Error(err))
		return nil, err
	}

	log.Info("Starting reminder sweep",
		zap.Time("now", now),
		zap.Int("overdue", len(overdue)),
		zap.Int("concurrency", s.concurrency))

	result := &SweepResult{Evaluated: len(overdue)}
	counters := &sweepCounters{}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, inv := range overdue {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		g.Go(func() error {
			s.remind(ctx, inv, now, counters)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		result.Cancelled = true
	}
	result.Attempted = counters.attempted
	result.Sent = counters.sent
	result.Failed = counters.failed
	result.Skipped = counters.skipped
	result.Duration = time.Since(start)

	s.metrics.SweepDuration(ctx, result.Duration)
	log.Info("Reminder sweep finished",
		zap.Int("evaluated", result.Evaluated),
		zap.Int("attempted", result.Attempted),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Bool("cancelled", result.Cancelled),
		zap.Duration("duration", result.Duration))

	return result, nil
}

func (s *ReminderSweeper) remind(ctx context.Context, inv invoicing.OverdueInvoice, now time.Time, counters *sweepCounters) {
	log := logger.For(ctx, s.logger).With(
		zap.String("invoice_id", inv.InvoiceID.String()),
		zap.String("client_email", inv.ClientEmail))

	if ctx.Err() != nil {
		return
	}

	if s.reminderLog != nil {
		reserved, err := s.reminderLog.Reserve(ctx, inv.InvoiceID, now)
		if err != nil {
			log.Warn("Failed to reserve reminder", zap.Error(err))
			s.record(ctx, counters, ReminderFailed)
			return
		}
		if !reserved {
			log.Debug("Invoice already reminded today")
			s.record(ctx, counters, ReminderSkipped)
			return
		}
	}

	counters.add(func(c *sweepCounters) { c.attempted++ })

	notifyCtx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	err := s.notifier.Notify(notifyCtx, invoicing.ReminderMessage(inv))
	cancel()

	if err != nil {
		log.Warn("Failed to send overdue reminder", zap.Error(err))
		s.record(ctx, counters, ReminderFailed)
		s.release(ctx, inv, now, log)
		return
	}

	log.Debug("Overdue reminder sent")
	s.record(ctx, counters, ReminderSent)
}

// release frees the reservation of a failed send so a later sweep retries it.
// It runs even when the sweep was cancelled.
func (s *ReminderSweeper) release(ctx context.Context, inv invoicing.OverdueInvoice, now time.Time, log *zap.Logger) {
	if s.reminderLog == nil {
		return
	}
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()
	if err := s.reminderLog.Release(releaseCtx, inv.InvoiceID, now); err != nil {
		log.Warn("Failed to release reminder reservation", zap.Error(err))
	}
}

func (s *ReminderSweeper) record(ctx context.Context, counters *sweepCounters, outcome ReminderOutcome) {
	counters.add(func(c *sweepCounters) {
		switch outcome {
		case ReminderSent:
			c.sent++
		case ReminderFailed:
			c.failed++
		case ReminderSkipped:
			c.skipped++
		}
	})
	s.metrics.ReminderOutcome(ctx, outcome)
}
