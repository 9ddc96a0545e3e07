package cache

import (
	"fmt"
	"time"

	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Reminder log backends accepted by ReminderLogFactory.Create
const (
	BackendNone     = "none"
	BackendRedis    = "redis"
	BackendDatabase = "database"
	BackendMemory   = "memory"
)

// ReminderLogFactory creates reminder logs based on configuration
type ReminderLogFactory struct {
	redisConfig           config.RedisConfig
	ttl                   time.Duration
	databaseLog           invoicing.ReminderLog
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// ReminderLogFactoryOption is a functional option for configuring the factory
type ReminderLogFactoryOption func(*ReminderLogFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) ReminderLogFactoryOption {
	return func(f *ReminderLogFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory log
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) ReminderLogFactoryOption {
	return func(f *ReminderLogFactory) {
		f.allowInMemoryFallback = allow
	}
}

// WithTTL sets how long a claim is kept by the Redis and in-memory logs
func WithTTL(ttl time.Duration) ReminderLogFactoryOption {
	return func(f *ReminderLogFactory) {
		f.ttl = ttl
	}
}

// WithDatabaseLog supplies the table-backed log used by the database backend
func WithDatabaseLog(log invoicing.ReminderLog) ReminderLogFactoryOption {
	return func(f *ReminderLogFactory) {
		f.databaseLog = log
	}
}

// NewReminderLogFactory creates a new factory
func NewReminderLogFactory(cfg config.RedisConfig, opts ...ReminderLogFactoryOption) *ReminderLogFactory {
	f := &ReminderLogFactory{
		redisConfig:           cfg,
		ttl:                   defaultReminderTTL,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Create returns the reminder log for backend. The none backend yields a
// nil log, which disables per-day deduplication.
func (f *ReminderLogFactory) Create(backend string) (invoicing.ReminderLog, error) {
	switch backend {
	case "", BackendNone:
		return nil, nil
	case BackendMemory:
		f.logger.Info("using in-memory reminder log")
		return NewInMemoryReminderLog(f.ttl), nil
	case BackendDatabase:
		if f.databaseLog == nil {
			return nil, fmt.Errorf("database reminder log requested but not supplied")
		}
		f.logger.Info("using database reminder log")
		return f.databaseLog, nil
	case BackendRedis:
		return f.createRedis()
	default:
		return nil, fmt.Errorf("unknown reminder log backend %q", backend)
	}
}

func (f *ReminderLogFactory) createRedis() (invoicing.ReminderLog, error) {
	log, err := NewRedisReminderLog(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}, f.ttl)
	if err == nil {
		f.logger.Info("using Redis reminder log")
		return log, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for reminder log but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory reminder log. "+
		"Instances sharing the database may send duplicate reminders.",
		zap.Error(err),
	)
	return NewInMemoryReminderLog(f.ttl), nil
}
