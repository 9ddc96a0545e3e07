package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/redis/go-redis/v9"
)

const (
	defaultReminderKeyPrefix = "invoicing:reminder:"
	defaultReminderTTL       = 48 * time.Hour
)

// RedisReminderLog implements invoicing.ReminderLog using Redis. It is
// suitable for deployments where several instances run the sweep.
type RedisReminderLog struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisReminderLog connects to Redis and creates a reminder log whose
// claims expire after ttl
func NewRedisReminderLog(cfg RedisConfig, ttl time.Duration) (*RedisReminderLog, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisReminderLogWithClient(client, "", ttl), nil
}

// NewRedisReminderLogWithClient creates a reminder log on an existing client
func NewRedisReminderLogWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisReminderLog {
	if keyPrefix == "" {
		keyPrefix = defaultReminderKeyPrefix
	}
	if ttl <= 0 {
		ttl = defaultReminderTTL
	}
	return &RedisReminderLog{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// Reserve claims (invoiceID, day) with SETNX
func (l *RedisReminderLog) Reserve(ctx context.Context, invoiceID uuid.UUID, day time.Time) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(invoiceID, day), time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve reminder: %w", err)
	}
	return ok, nil
}

// Release drops the claim for (invoiceID, day)
func (l *RedisReminderLog) Release(ctx context.Context, invoiceID uuid.UUID, day time.Time) error {
	if err := l.client.Del(ctx, l.key(invoiceID, day)).Err(); err != nil {
		return fmt.Errorf("failed to release reminder: %w", err)
	}
	return nil
}

func (l *RedisReminderLog) key(invoiceID uuid.UUID, day time.Time) string {
	return l.keyPrefix + invoicing.ReminderKey(invoiceID, day)
}

// Close closes the Redis client
func (l *RedisReminderLog) Close() error {
	return l.client.Close()
}

var _ invoicing.ReminderLog = (*RedisReminderLog)(nil)
