package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const ginLoggerKey = "logger"

// GinMiddleware writes one access log entry per request and installs a
// request-scoped logger on both the gin context and the request context.
// Requests to quietPaths still get the scoped logger but no access entry.
func GinMiddleware(base *zap.Logger, quietPaths ...string) gin.HandlerFunc {
	quiet := make(map[string]struct{}, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		req := c.Request

		ctx, log := WithRequestID(req.Context(),
			base.With(zap.String("method", req.Method), zap.String("path", req.URL.Path)),
			c.GetString("request_id"))
		c.Request = req.WithContext(ctx)
		c.Set(ginLoggerKey, log)

		c.Next()

		if _, ok := quiet[c.FullPath()]; ok {
			return
		}

		status := c.Writer.Status()
		fields := make([]zap.Field, 0, 8)
		fields = append(fields,
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		)
		if q := req.URL.RawQuery; q != "" {
			fields = append(fields, zap.String("query", q))
		}
		if op := c.GetString("operator"); op != "" {
			fields = append(fields, zap.String("operator", op))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}
		if ce := log.Check(statusLevel(status), "HTTP Request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

func statusLevel(status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	}
	return zapcore.InfoLevel
}

// Recovery turns a handler panic into a logged 500 with the standard error
// envelope
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			requestID := c.GetString("request_id")
			log.Error("Panic recovered",
				zap.String("request_id", requestID),
				zap.String("route", c.Request.Method+" "+c.Request.URL.Path),
				zap.Any("panic", rec),
				zap.Stack("stacktrace"),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":       "INTERNAL",
					"message":    "internal server error",
					"request_id": requestID,
				},
			})
		}()
		c.Next()
	}
}

// GetGinLogger returns the request-scoped logger, or a no-op logger
// outside GinMiddleware
func GetGinLogger(c *gin.Context) *zap.Logger {
	if log, ok := c.Value(ginLoggerKey).(*zap.Logger); ok {
		return log
	}
	return zap.NewNop()
}
