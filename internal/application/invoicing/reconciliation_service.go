package invoicing

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// RetryPolicy bounds the local retry of ledger write conflicts
type RetryPolicy struct {
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  5,
		BaseBackoff: 20 * time.Millisecond,
		MaxBackoff:  time.Second,
	}
}

func (p RetryPolicy) normalize() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = d.BaseBackoff
	}
	if p.MaxBackoff < p.BaseBackoff {
		p.MaxBackoff = p.BaseBackoff
	}
	return p
}

// retryOnConflict runs op until it succeeds, fails with anything other than
// a storage conflict, or the policy is exhausted. Exhaustion is reported as
// shared.ErrTransient wrapping the last conflict.
func retryOnConflict[T any](ctx context.Context, policy RetryPolicy, onConflict func(attempt int, wait time.Duration), op func() (T, error)) (T, error) {
	policy = policy.normalize()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.BaseBackoff
	b.MaxInterval = policy.MaxBackoff
	b.Multiplier = 2

	attempt := 0
	res, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := op()
		if err != nil && !errors.Is(err, invoicing.ErrStorageConflict) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(policy.MaxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(_ error, wait time.Duration) {
			if onConflict != nil {
				onConflict(attempt, wait)
			}
		}),
	)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	if err != nil && errors.Is(err, invoicing.ErrStorageConflict) {
		return res, shared.ErrTransient.WithCause(err)
	}
	return res, err
}

// ReconciliationService applies gateway outcomes to invoices exactly once
// per (method, transaction id) and keeps the derived paid flag in step with
// the confirmed payments.
type ReconciliationService struct {
	store   invoicing.LedgerStore
	policy  RetryPolicy
	metrics Metrics
	logger  *zap.Logger
}

// ReconciliationServiceConfig holds the dependencies of ReconciliationService
type ReconciliationServiceConfig struct {
	Store   invoicing.LedgerStore
	Retry   RetryPolicy
	Metrics Metrics
	Logger  *zap.Logger
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(cfg ReconciliationServiceConfig) *ReconciliationService {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &ReconciliationService{
		store:   cfg.Store,
		policy:  cfg.Retry.normalize(),
		metrics: metrics,
		logger:  log,
	}
}

// Apply records the gateway outcome in input against its invoice.
//
// A replay of an already recorded (method, transaction id) returns the stored
// payment with Duplicate set and writes nothing, except that a pending
// payment receiving a terminal outcome is resolved. A payment that ends up
// failed is returned together with ErrGatewayRejected.
func (s *ReconciliationService) Apply(ctx context.Context, input ApplyPaymentInput) (*ApplyResult, error) {
	start := time.Now()
	defer func() {
		s.metrics.ApplyDuration(ctx, input.Method, time.Since(start))
	}()

	payment, err := invoicing.NewPayment(input.InvoiceID, input.Amount, input.Method, input.Result)
	if err != nil {
		return nil, err
	}

	outcome, err := retryOnConflict(ctx, s.policy, func(attempt int, wait time.Duration) {
		s.metrics.LedgerConflict(ctx)
		logger.For(ctx, s.logger).Debug("Ledger conflict, retrying payment apply",
			zap.String("invoice_id", input.InvoiceID.String()),
			zap.String("method", input.Method.String()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait))
	}, func() (*invoicing.ApplyOutcome, error) {
		return s.store.ApplyPayment(ctx, payment)
	})
	if err != nil {
		if errors.Is(err, shared.ErrTransient) {
			logger.For(ctx, s.logger).Warn("Payment apply gave up after repeated conflicts",
				zap.String("invoice_id", input.InvoiceID.String()),
				zap.String("transaction_id", input.Result.TransactionID),
				zap.Error(err))
		}
		return nil, err
	}

	stored := outcome.Payment
	s.metrics.PaymentApplied(ctx, stored.Method, stored.Status, outcome.Duplicate)

	result := &ApplyResult{
		Payment:     ToPaymentResponse(stored),
		InvoicePaid: outcome.InvoicePaid,
		Duplicate:   outcome.Duplicate,
		Resolved:    outcome.Resolved,
		RedirectURL: input.Result.RedirectURL,
	}

	fields := []zap.Field{
		zap.String("invoice_id", stored.InvoiceID.String()),
		zap.String("payment_id", stored.ID.String()),
		zap.String("method", stored.Method.String()),
		zap.String("transaction_id", stored.TransactionID),
		zap.String("status", stored.Status.String()),
		zap.Bool("invoice_paid", outcome.InvoicePaid),
	}
	log := logger.For(ctx, s.logger)
	switch {
	case outcome.Duplicate:
		log.Info("Duplicate payment outcome ignored", fields...)
	case outcome.Resolved:
		log.Info("Pending payment resolved", fields...)
	default:
		log.Info("Payment recorded", fields...)
	}

	if stored.Status == invoicing.PaymentStatusFailed {
		return result, invoicing.ErrGatewayRejected
	}
	return result, nil
}
