package invoicing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockLedgerStore is a mock implementation of invoicing.LedgerStore
type MockLedgerStore struct {
	mock.Mock
}

func (m *MockLedgerStore) FindInvoice(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Invoice), args.Error(1)
}

func (m *MockLedgerStore) ListPaymentsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]invoicing.Payment, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoicing.Payment), args.Error(1)
}

func (m *MockLedgerStore) FindPayment(ctx context.Context, id uuid.UUID) (*invoicing.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Payment), args.Error(1)
}

func (m *MockLedgerStore) FindPaymentByTransaction(ctx context.Context, method invoicing.PaymentMethod, txID string) (*invoicing.Payment, error) {
	args := m.Called(ctx, method, txID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Payment), args.Error(1)
}

func (m *MockLedgerStore) ApplyPayment(ctx context.Context, p *invoicing.Payment) (*invoicing.ApplyOutcome, error) {
	args := m.Called(ctx, p)
	if fn, ok := args.Get(0).(func(*invoicing.Payment) *invoicing.ApplyOutcome); ok {
		return fn(p), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.ApplyOutcome), args.Error(1)
}

func (m *MockLedgerStore) FindOverdue(ctx context.Context, now time.Time) ([]invoicing.OverdueInvoice, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoicing.OverdueInvoice), args.Error(1)
}

// MockClientRepository is a mock implementation of invoicing.ClientRepository
type MockClientRepository struct {
	mock.Mock
}

func (m *MockClientRepository) Create(ctx context.Context, c *invoicing.Client) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockClientRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Client, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Client), args.Error(1)
}

func (m *MockClientRepository) FindByEmail(ctx context.Context, email string) (*invoicing.Client, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Client), args.Error(1)
}

func (m *MockClientRepository) List(ctx context.Context, filter shared.Filter) ([]invoicing.Client, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]invoicing.Client), args.Get(1).(int64), args.Error(2)
}

func (m *MockClientRepository) SaveWithLock(ctx context.Context, c *invoicing.Client) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

// MockInvoiceRepository is a mock implementation of invoicing.InvoiceRepository
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) Create(ctx context.Context, inv *invoicing.Invoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) List(ctx context.Context, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]invoicing.Invoice), args.Get(1).(int64), args.Error(2)
}

func (m *MockInvoiceRepository) ConfirmedTotal(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, invoiceID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockInvoiceRepository) SaveWithLock(ctx context.Context, inv *invoicing.Invoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInvoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockGateway is a mock implementation of invoicing.RedirectGateway
type MockGateway struct {
	mock.Mock
	method invoicing.PaymentMethod
}

func (m *MockGateway) Method() invoicing.PaymentMethod {
	return m.method
}

func (m *MockGateway) Charge(ctx context.Context, req invoicing.ChargeRequest) invoicing.GatewayResult {
	args := m.Called(ctx, req)
	return args.Get(0).(invoicing.GatewayResult)
}

func (m *MockGateway) Execute(ctx context.Context, paymentID, payerID string) invoicing.GatewayResult {
	args := m.Called(ctx, paymentID, payerID)
	return args.Get(0).(invoicing.GatewayResult)
}

// MockReminderLog is a mock implementation of invoicing.ReminderLog
type MockReminderLog struct {
	mock.Mock
}

func (m *MockReminderLog) Reserve(ctx context.Context, invoiceID uuid.UUID, day time.Time) (bool, error) {
	args := m.Called(ctx, invoiceID, day)
	return args.Bool(0), args.Error(1)
}

func (m *MockReminderLog) Release(ctx context.Context, invoiceID uuid.UUID, day time.Time) error {
	args := m.Called(ctx, invoiceID, day)
	return args.Error(0)
}

// recordingNotifier captures messages and fails for chosen recipients
type recordingNotifier struct {
	mu       sync.Mutex
	sent     []invoicing.Message
	failFor  map[string]bool
	delay    time.Duration
	inFlight int
	maxSeen  int
}

func (n *recordingNotifier) Notify(ctx context.Context, msg invoicing.Message) error {
	n.mu.Lock()
	n.inFlight++
	if n.inFlight > n.maxSeen {
		n.maxSeen = n.inFlight
	}
	n.mu.Unlock()

	defer func() {
		n.mu.Lock()
		n.inFlight--
		n.mu.Unlock()
	}()

	if n.delay > 0 {
		select {
		case <-time.After(n.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[msg.To] {
		return errMailboxUnavailable
	}
	n.sent = append(n.sent, msg)
	return nil
}

var errMailboxUnavailable = errors.New("550 mailbox unavailable")

// recordingMetrics counts the calls the services make
type recordingMetrics struct {
	mu        sync.Mutex
	applied   []invoicing.PaymentStatus
	dupes     int
	conflicts int
	outcomes  map[ReminderOutcome]int
	sweeps    int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{outcomes: map[ReminderOutcome]int{}}
}

func (r *recordingMetrics) PaymentApplied(_ context.Context, _ invoicing.PaymentMethod, status invoicing.PaymentStatus, duplicate bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, status)
	if duplicate {
		r.dupes++
	}
}

func (r *recordingMetrics) LedgerConflict(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts++
}

func (r *recordingMetrics) ApplyDuration(context.Context, invoicing.PaymentMethod, time.Duration) {}

func (r *recordingMetrics) ReminderOutcome(_ context.Context, outcome ReminderOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[outcome]++
}

func (r *recordingMetrics) SweepDuration(context.Context, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweeps++
}

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func testInvoice(amount string) *invoicing.Invoice {
	inv, err := invoicing.NewInvoice(uuid.New(), decimal.RequireFromString(amount), time.Now().Add(24*time.Hour), "services")
	if err != nil {
		panic(err)
	}
	return inv
}

// echoOutcome returns the payment handed to the store as the stored row
func echoOutcome(paid, duplicate bool) func(*invoicing.Payment) *invoicing.ApplyOutcome {
	return func(p *invoicing.Payment) *invoicing.ApplyOutcome {
		return &invoicing.ApplyOutcome{Payment: p, InvoicePaid: paid, Duplicate: duplicate}
	}
}
