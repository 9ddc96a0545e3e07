package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	appinvoicing "github.com/invoicing/backend/internal/application/invoicing"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SweepRunner runs one reminder sweep
type SweepRunner interface {
	Sweep(ctx context.Context, now time.Time) (*appinvoicing.SweepResult, error)
}

// ReminderSchedulerConfig holds configuration for the reminder scheduler
type ReminderSchedulerConfig struct {
	// Enabled indicates if scheduled sweeps run at all; TriggerNow works regardless
	Enabled bool
	// RunHour is the UTC hour (0-23) of the daily sweep
	RunHour int
	// Interval replaces the daily schedule when set
	Interval time.Duration
	// SweepTimeout bounds a single sweep
	SweepTimeout time.Duration
}

// DefaultReminderSchedulerConfig returns default scheduler configuration.
// Defaults to a daily sweep at 09:00 UTC.
func DefaultReminderSchedulerConfig() ReminderSchedulerConfig {
	return ReminderSchedulerConfig{
		Enabled:      true,
		RunHour:      9,
		SweepTimeout: 10 * time.Minute,
	}
}

// ReminderScheduler runs the reminder sweep on a daily or fixed-interval
// schedule. Sweeps never overlap: the next run is scheduled only after the
// current one returns, and ticks missed while it ran are skipped.
type ReminderScheduler struct {
	config ReminderSchedulerConfig
	runner SweepRunner
	logger *zap.Logger
	now    func() time.Time

	running atomic.Bool

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
}

// NewReminderScheduler creates a new reminder scheduler
func NewReminderScheduler(config ReminderSchedulerConfig, runner SweepRunner, logger *zap.Logger) *ReminderScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.SweepTimeout <= 0 {
		config.SweepTimeout = DefaultReminderSchedulerConfig().SweepTimeout
	}
	return &ReminderScheduler{
		config: config,
		runner: runner,
		logger: logger,
		now:    time.Now,
	}
}

// Start starts the schedule loop. It returns immediately.
func (s *ReminderScheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Reminder scheduler is disabled")
		return nil
	}
	if s.config.Interval <= 0 && (s.config.RunHour < 0 || s.config.RunHour > 23) {
		return ErrInvalidConfig
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)

	s.logger.Info("Reminder scheduler started",
		zap.Int("run_hour", s.config.RunHour),
		zap.Duration("interval", s.config.Interval),
		zap.Duration("sweep_timeout", s.config.SweepTimeout),
	)
	return nil
}

// Stop cancels the loop and any in-flight sweep, then waits for the loop
// to exit or ctx to expire
func (s *ReminderScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()

	select {
	case <-done:
		s.logger.Info("Reminder scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Reminder scheduler stop timed out")
		return ctx.Err()
	}
}

// TriggerNow runs a sweep immediately on the caller's goroutine. It fails
// with ErrSweepInProgress when a sweep is already running.
func (s *ReminderScheduler) TriggerNow(ctx context.Context) (*appinvoicing.SweepResult, error) {
	return s.runSweep(ctx, "manual")
}

// IsSweeping reports whether a sweep is currently running
func (s *ReminderScheduler) IsSweeping() bool {
	return s.running.Load()
}

func (s *ReminderScheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	last := s.now()
	for {
		next := s.nextRun(s.now(), last)
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		last = next
		s.runScheduled(ctx)
	}
}

func (s *ReminderScheduler) runScheduled(ctx context.Context) {
	if _, err := s.runSweep(ctx, "scheduled"); errors.Is(err, ErrSweepInProgress) {
		s.logger.Info("Skipping scheduled sweep, a sweep is already running")
	}
}

func (s *ReminderScheduler) nextRun(now, last time.Time) time.Time {
	if s.config.Interval > 0 {
		return NextIntervalRun(now, last, s.config.Interval)
	}
	return NextDailyRun(now, s.config.RunHour)
}

func (s *ReminderScheduler) runSweep(ctx context.Context, trigger string) (*appinvoicing.SweepResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%s sweep: %w", trigger, ErrSweepInProgress)
	}
	defer s.running.Store(false)

	sweepCtx, cancel := context.WithTimeout(ctx, s.config.SweepTimeout)
	defer cancel()

	sweepCtx, span := telemetry.StartServiceSpan(sweepCtx, "reminder", "sweep",
		telemetry.WithAttribute(telemetry.SpanAttrTrigger, trigger),
	)
	defer span.End()

	result, err := s.runner.Sweep(sweepCtx, s.now().UTC())
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("Reminder sweep failed",
			zap.String("trigger", trigger),
			zap.Error(err),
		)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("evaluated", result.Evaluated),
		attribute.Int("sent", result.Sent),
		attribute.Int("failed", result.Failed),
	)
	s.logger.Info("Reminder sweep finished",
		zap.String("trigger", trigger),
		zap.Int("evaluated", result.Evaluated),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Bool("cancelled", result.Cancelled),
	)
	return result, nil
}

// NextDailyRun returns the next time strictly after now at hour:00 UTC
func NextDailyRun(now time.Time, hour int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// NextIntervalRun returns the first last+k*interval strictly after now
func NextIntervalRun(now, last time.Time, interval time.Duration) time.Time {
	next := last.Add(interval)
	if next.After(now) {
		return next
	}
	missed := now.Sub(last) / interval
	return last.Add((missed + 1) * interval)
}
