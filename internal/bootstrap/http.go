package bootstrap

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
	"github.com/invoicing/backend/internal/interfaces/http/handler"
	"github.com/invoicing/backend/internal/interfaces/http/middleware"
	"github.com/invoicing/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// NewEngine builds the gin engine serving the invoicing API
func (a *App) NewEngine() (*gin.Engine, error) {
	cfg := a.Config
	log := a.Logger

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, err
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(logger.GinMiddleware(log, "/health"))
	if a.meter.Enabled() {
		metrics, err := middleware.HTTPMetrics(a.meter.Meter("http.server"))
		if err != nil {
			return nil, fmt.Errorf("init http metrics: %w", err)
		}
		engine.Use(metrics)
	}
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(corsCfg))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	engine.GET("/health", handler.NewHealthHandler(a.DB).Health)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	if cfg.Telemetry.Enabled {
		r.Use(middleware.SpanAttributes())
	}
	if cfg.Auth.Enabled {
		r.Use(middleware.JWTAuthMiddleware(middleware.JWTMiddlewareConfig{
			Validator: a.JWT,
			SkipPaths: r.PublicPaths(),
			Logger:    log,
		}))
	} else {
		log.Warn("Operator authentication disabled")
	}

	h := router.Handlers{
		Clients:   handler.NewClientHandler(a.Clients),
		Invoices:  handler.NewInvoiceHandler(a.Invoices),
		Payments:  handler.NewPaymentHandler(a.Payments),
		Reminders: handler.NewReminderHandler(a.Scheduler),
	}
	if a.Webhooks != nil {
		h.StripeWebhook = handler.NewStripeWebhookHandler(a.Webhooks)
	} else {
		log.Warn("Stripe webhook secret not set, webhook endpoint not mounted")
	}
	r.RegisterInvoicing(h).Setup()

	engine.NoRoute(func(c *gin.Context) {
		logger.GetGinLogger(c).Debug("No route", zap.String("path", c.Request.URL.Path))
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(dto.ErrCodeNotFound, "Route not found", c.GetString("request_id")))
	})

	return engine, nil
}

// NewServer wraps handler in an http.Server using the configured timeouts
func (a *App) NewServer(h http.Handler) *http.Server {
	cfg := a.Config
	return &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        h,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}
}
