package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
)

// InMemoryReminderLog implements invoicing.ReminderLog using an in-memory map.
// Claims are not shared between processes.
type InMemoryReminderLog struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	entries   map[string]time.Time // key -> expiry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryReminderLog creates a new in-memory reminder log and starts a
// background goroutine that drops expired claims
func NewInMemoryReminderLog(ttl time.Duration) *InMemoryReminderLog {
	if ttl <= 0 {
		ttl = defaultReminderTTL
	}
	l := &InMemoryReminderLog{
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[string]time.Time),
		stopChan: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.cleanupLoop()

	return l
}

// Reserve claims (invoiceID, day)
func (l *InMemoryReminderLog) Reserve(ctx context.Context, invoiceID uuid.UUID, day time.Time) (bool, error) {
	key := invoicing.ReminderKey(invoiceID, day)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if expiresAt, ok := l.entries[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	l.entries[key] = now.Add(l.ttl)
	return true, nil
}

// Release drops the claim for (invoiceID, day)
func (l *InMemoryReminderLog) Release(ctx context.Context, invoiceID uuid.UUID, day time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, invoicing.ReminderKey(invoiceID, day))
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (l *InMemoryReminderLog) Close() error {
	l.closeOnce.Do(func() {
		close(l.stopChan)
		l.wg.Wait()
	})
	return nil
}

func (l *InMemoryReminderLog) cleanupLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *InMemoryReminderLog) cleanup() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, expiresAt := range l.entries {
		if !now.Before(expiresAt) {
			delete(l.entries, key)
		}
	}
}

// Size returns the number of claims held (for testing/monitoring)
func (l *InMemoryReminderLog) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

var _ invoicing.ReminderLog = (*InMemoryReminderLog)(nil)
