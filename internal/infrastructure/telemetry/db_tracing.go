package telemetry

import (
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultSlowStatement = 200 * time.Millisecond
	statementStartKey    = "telemetry:statement_start"
)

// DBTracingConfig controls statement spans on the ledger database
type DBTracingConfig struct {
	// LogFullSQL records bound query variables on spans. Card tokens and
	// payer emails end up in traces, so keep it off outside development.
	LogFullSQL    bool
	SlowStatement time.Duration
	DBSystem      string
}

// InstrumentGorm installs otelgorm on db plus callbacks that tag the active
// span with the table, affected rows and a slow_statement event when a
// statement runs longer than cfg.SlowStatement.
func InstrumentGorm(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowStatement == 0 {
		cfg.SlowStatement = defaultSlowStatement
	}
	if cfg.DBSystem == "" {
		cfg.DBSystem = "postgresql"
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return fmt.Errorf("register otelgorm: %w", err)
	}

	annotate := statementAnnotator(cfg.SlowStatement)
	cb := db.Callback()
	hooks := map[string]func() error{
		"create": func() error {
			return errors.Join(
				cb.Create().Before("gorm:create").Register("telemetry:start_create", markStatementStart),
				cb.Create().After("gorm:create").Register("telemetry:annotate_create", annotate))
		},
		"query": func() error {
			return errors.Join(
				cb.Query().Before("gorm:query").Register("telemetry:start_query", markStatementStart),
				cb.Query().After("gorm:query").Register("telemetry:annotate_query", annotate))
		},
		"update": func() error {
			return errors.Join(
				cb.Update().Before("gorm:update").Register("telemetry:start_update", markStatementStart),
				cb.Update().After("gorm:update").Register("telemetry:annotate_update", annotate))
		},
		"delete": func() error {
			return errors.Join(
				cb.Delete().Before("gorm:delete").Register("telemetry:start_delete", markStatementStart),
				cb.Delete().After("gorm:delete").Register("telemetry:annotate_delete", annotate))
		},
		"row": func() error {
			return errors.Join(
				cb.Row().Before("gorm:row").Register("telemetry:start_row", markStatementStart),
				cb.Row().After("gorm:row").Register("telemetry:annotate_row", annotate))
		},
		"raw": func() error {
			return errors.Join(
				cb.Raw().Before("gorm:raw").Register("telemetry:start_raw", markStatementStart),
				cb.Raw().After("gorm:raw").Register("telemetry:annotate_raw", annotate))
		},
	}
	for name, register := range hooks {
		if err := register(); err != nil {
			return fmt.Errorf("register %s callbacks: %w", name, err)
		}
	}

	logger.Info("Database tracing enabled",
		zap.String("db_system", cfg.DBSystem),
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_statement", cfg.SlowStatement),
	)
	return nil
}

func markStatementStart(db *gorm.DB) {
	db.InstanceSet(statementStartKey, time.Now())
}

func statementAnnotator(slow time.Duration) func(*gorm.DB) {
	return func(db *gorm.DB) {
		if db.Statement.Context == nil {
			return
		}
		span := trace.SpanFromContext(db.Statement.Context)
		if !span.IsRecording() {
			return
		}

		if table := db.Statement.Table; table != "" {
			span.SetAttributes(attribute.String("db.sql.table", table))
		}
		if db.Statement.RowsAffected >= 0 {
			span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		}
		if err := db.Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		v, ok := db.InstanceGet(statementStartKey)
		if !ok {
			return
		}
		start, ok := v.(time.Time)
		if !ok {
			return
		}
		if elapsed := time.Since(start); elapsed > slow {
			span.SetAttributes(attribute.Bool("db.slow_statement", true))
			span.AddEvent("slow_statement", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", slow.Milliseconds()),
			))
		}
	}
}
