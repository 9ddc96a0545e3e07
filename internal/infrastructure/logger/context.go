package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	// RequestIDKey is the context key for the request ID
	RequestIDKey contextKey = "request_id"
	// OperatorKey is the context key for the authenticated operator
	OperatorKey contextKey = "operator"
)

// WithRequestID stores requestID on ctx and returns a logger carrying it
func WithRequestID(ctx context.Context, log *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	return context.WithValue(ctx, RequestIDKey, requestID), log.With(zap.String("request_id", requestID))
}

// WithOperator stores the operator subject on ctx and returns a logger
// carrying it
func WithOperator(ctx context.Context, log *zap.Logger, operator string) (context.Context, *zap.Logger) {
	return context.WithValue(ctx, OperatorKey, operator), log.With(zap.String("operator", operator))
}

// GetRequestID returns the request ID stored on ctx, if any
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// GetOperator returns the operator stored on ctx, if any
func GetOperator(ctx context.Context) string {
	op, _ := ctx.Value(OperatorKey).(string)
	return op
}

// For returns base with the request id, operator and trace ids found on
// ctx. Services call it so their entries join the access log of the
// request that reached them.
func For(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	fields := make([]zap.Field, 0, 4)
	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if op := GetOperator(ctx); op != "" {
		fields = append(fields, zap.String("operator", op))
	}
	if len(fields) > 0 {
		base = base.With(fields...)
	}
	return WithTraceContext(ctx, base)
}

// WithTraceContext adds trace_id and span_id from the active span.
// Without a valid span the logger is returned unchanged.
func WithTraceContext(ctx context.Context, log *zap.Logger) *zap.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return log
	}
	return log.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}
