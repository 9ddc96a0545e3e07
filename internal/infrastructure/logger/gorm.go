package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowQuery = 200 * time.Millisecond

// GormLogger routes GORM's statement log through zap. Statements carry the
// request id, operator and trace id found on the query context.
type GormLogger struct {
	logger        *zap.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
	quiet         func(error) bool
}

// GormLoggerOption configures a GormLogger
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the duration above which a statement is logged as
// slow. Zero disables slow statement logging.
func WithSlowThreshold(threshold time.Duration) GormLoggerOption {
	return func(l *GormLogger) {
		l.slowThreshold = threshold
	}
}

// WithQuietErrors replaces the predicate that selects statement errors not
// worth an error entry. The default silences record-not-found and
// cancelled contexts, both of which callers handle themselves.
func WithQuietErrors(quiet func(error) bool) GormLoggerOption {
	return func(l *GormLogger) {
		l.quiet = quiet
	}
}

// NewGormLogger creates a GORM logger backed by zap
func NewGormLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	l := &GormLogger{
		logger:        zapLogger.Named("gorm"),
		level:         level,
		slowThreshold: defaultSlowQuery,
		quiet:         expectedQueryError,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func expectedQueryError(err error) bool {
	return errors.Is(err, gormlogger.ErrRecordNotFound) || errors.Is(err, context.Canceled)
}

// LogMode returns a copy logging at level
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.level = level
	return &next
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		l.forContext(ctx).Sugar().Infof(msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		l.forContext(ctx).Sugar().Warnf(msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		l.forContext(ctx).Sugar().Errorf(msg, data...)
	}
}

// Trace logs one executed statement: errors at error level, slow statements
// at warn, the rest at debug when the level is Info
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	slow := l.slowThreshold > 0 && elapsed > l.slowThreshold

	var log func(string, ...zap.Field)
	switch {
	case err != nil && !l.quiet(err) && l.level >= gormlogger.Error:
		log = l.forContext(ctx).With(zap.Error(err)).Error
	case slow && l.level >= gormlogger.Warn:
		log = l.forContext(ctx).With(zap.Duration("threshold", l.slowThreshold)).Warn
	case err == nil && l.level >= gormlogger.Info:
		log = l.forContext(ctx).Debug
	default:
		return
	}

	sql, rows := fc()
	msg := "SQL statement"
	if err != nil && !l.quiet(err) {
		msg = "SQL statement failed"
	} else if slow {
		msg = "Slow SQL statement"
	}
	log(msg,
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	)
}

func (l *GormLogger) forContext(ctx context.Context) *zap.Logger {
	return For(ctx, l.logger)
}

// MapGormLogLevel maps the application log level to a GORM log level.
// Statements are only traced at debug and info.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
