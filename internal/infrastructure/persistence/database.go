package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/invoicing/backend/internal/infrastructure/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database is the shared GORM handle for the ledger tables
type Database struct {
	DB *gorm.DB
}

// Open connects to the configured postgres or sqlite database and verifies
// the connection. A nil gormLogger discards statement logs.
func Open(cfg *config.DatabaseConfig, gormLogger logger.Interface) (*Database, error) {
	if gormLogger == nil {
		gormLogger = logger.Discard
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		TranslateError:         true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driverName(cfg), err)
	}

	d := &Database{DB: db}
	pool, err := d.SQL()
	if err != nil {
		return nil, err
	}
	configurePool(pool, cfg)

	if err := d.Ping(context.Background()); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return d, nil
}

// configurePool limits sqlite to one connection since it allows a single
// writer and each :memory: connection is a separate database
func configurePool(pool *sql.DB, cfg *config.DatabaseConfig) {
	if cfg.Driver == "sqlite" {
		pool.SetMaxOpenConns(1)
		return
	}
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	pool.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
}

func driverName(cfg *config.DatabaseConfig) string {
	if cfg.Driver == "" {
		return "postgres"
	}
	return cfg.Driver
}

// SQL returns the underlying connection pool
func (d *Database) SQL() (*sql.DB, error) {
	pool, err := d.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("database pool: %w", err)
	}
	return pool, nil
}

// Ping checks that the database answers
func (d *Database) Ping(ctx context.Context) error {
	pool, err := d.SQL()
	if err != nil {
		return err
	}
	if err := pool.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (d *Database) Close() error {
	pool, err := d.SQL()
	if err != nil {
		return err
	}
	return pool.Close()
}

// AutoMigrate creates the ledger tables from the gorm models. It is used by
// sqlite deployments and tests; postgres goes through the SQL migrations.
func (d *Database) AutoMigrate() error {
	return d.DB.AutoMigrate(AllModels()...)
}
