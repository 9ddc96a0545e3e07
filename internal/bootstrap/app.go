// Package bootstrap assembles the invoicing services from configuration.
// cmd/server and cmd/invoicectl share it so both run against the same wiring.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"

	appinvoicing "github.com/invoicing/backend/internal/application/invoicing"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/infrastructure/auth"
	"github.com/invoicing/backend/internal/infrastructure/cache"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/migration"
	"github.com/invoicing/backend/internal/infrastructure/notification"
	"github.com/invoicing/backend/internal/infrastructure/payment"
	"github.com/invoicing/backend/internal/infrastructure/persistence"
	"github.com/invoicing/backend/internal/infrastructure/scheduler"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// App holds the assembled services and the resources they depend on
type App struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *persistence.Database

	Clients   *appinvoicing.ClientService
	Invoices  *appinvoicing.InvoiceService
	Payments  *appinvoicing.PaymentService
	Webhooks  *appinvoicing.StripeWebhookService
	Sweeper   *appinvoicing.ReminderSweeper
	Scheduler *scheduler.ReminderScheduler
	JWT       *auth.JWTService

	tracer      *telemetry.TracerProvider
	meter       *telemetry.MeterProvider
	logs        *telemetry.LoggerProvider
	reminderLog invoicing.ReminderLog
}

// New connects to the database and builds every service. Payment providers
// without credentials are left unconfigured; their endpoints then report
// the method as unavailable.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: log}

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("init tracer provider: %w", err)
	}
	app.tracer = tp

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("init meter provider: %w", err)
	}
	app.meter = mp

	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("init logger provider: %w", err)
	}
	app.logs = lp
	log = lp.Attach(log)
	app.Logger = log

	gormLogger := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.Open(&cfg.Database, gormLogger)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}
	app.DB = db

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbSystem := "postgresql"
		if cfg.Database.Driver == "sqlite" {
			dbSystem = "sqlite"
		}
		err := telemetry.InstrumentGorm(db.DB, telemetry.DBTracingConfig{
			LogFullSQL: cfg.Telemetry.DBLogFullSQL,
			DBSystem:   dbSystem,
		}, log)
		if err != nil {
			app.Close(ctx)
			return nil, err
		}
	}

	if err := app.wire(); err != nil {
		app.Close(ctx)
		return nil, err
	}
	return app, nil
}

func (a *App) wire() error {
	cfg := a.Config
	log := a.Logger

	clientRepo := persistence.NewGormClientRepository(a.DB.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(a.DB.DB)
	ledger := persistence.NewGormLedgerStore(a.DB.DB)

	metrics, err := telemetry.NewReconciliationMetrics(telemetry.ReconciliationMetricsConfig{
		Meter:  a.meter.Meter("invoicing"),
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("init reconciliation metrics: %w", err)
	}

	retry := appinvoicing.RetryPolicy{
		MaxRetries:  cfg.Reconciliation.MaxRetries,
		BaseBackoff: cfg.Reconciliation.BaseBackoff,
		MaxBackoff:  cfg.Reconciliation.MaxBackoff,
	}
	engine := appinvoicing.NewReconciliationService(appinvoicing.ReconciliationServiceConfig{
		Store:   ledger,
		Retry:   retry,
		Metrics: metrics,
		Logger:  log.Named("reconciliation"),
	})

	paymentCfg := appinvoicing.PaymentServiceConfig{
		Engine:   engine,
		Ledger:   ledger,
		Currency: cfg.Stripe.Currency,
		Logger:   log.Named("payments"),
	}
	if cfg.Stripe.SecretKey != "" {
		gw, err := payment.NewStripeGateway(&payment.StripeConfig{
			SecretKey: cfg.Stripe.SecretKey,
			Currency:  cfg.Stripe.Currency,
		}, log)
		if err != nil {
			return fmt.Errorf("init stripe gateway: %w", err)
		}
		paymentCfg.CardGateway = gw
	} else {
		log.Warn("Stripe secret key not set, card payments disabled")
	}
	if cfg.PayPal.ClientID != "" {
		gw, err := payment.NewPayPalGateway(&payment.PayPalConfig{
			ClientID:     cfg.PayPal.ClientID,
			ClientSecret: cfg.PayPal.ClientSecret,
			BaseURL:      cfg.PayPal.BaseURL,
			ReturnURL:    cfg.PayPal.ReturnURL,
			CancelURL:    cfg.PayPal.CancelURL,
			Timeout:      cfg.PayPal.Timeout,
		}, log)
		if err != nil {
			return fmt.Errorf("init paypal gateway: %w", err)
		}
		paymentCfg.WalletGateway = gw
	} else {
		log.Warn("PayPal client id not set, wallet payments disabled")
	}

	a.Clients = appinvoicing.NewClientService(clientRepo)
	a.Invoices = appinvoicing.NewInvoiceService(appinvoicing.InvoiceServiceConfig{
		InvoiceRepo: invoiceRepo,
		ClientRepo:  clientRepo,
		Ledger:      ledger,
		Retry:       retry,
		Logger:      log.Named("invoices"),
	})
	a.Payments = appinvoicing.NewPaymentService(paymentCfg)
	if cfg.Stripe.WebhookSecret != "" {
		a.Webhooks = appinvoicing.NewStripeWebhookService(appinvoicing.StripeWebhookServiceConfig{
			WebhookSecret: cfg.Stripe.WebhookSecret,
			Engine:        engine,
			Logger:        log.Named("stripe_webhook"),
		})
	}

	notifier, err := newNotifier(cfg, log)
	if err != nil {
		return err
	}

	factory := cache.NewReminderLogFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithTTL(cfg.Reminder.LogTTL),
		cache.WithInMemoryFallback(cfg.Reminder.RedisFallback),
		cache.WithDatabaseLog(persistence.NewGormReminderLog(a.DB.DB)),
	)
	reminderLog, err := factory.Create(cfg.Reminder.LogBackend)
	if err != nil {
		return fmt.Errorf("init reminder log: %w", err)
	}
	a.reminderLog = reminderLog

	a.Sweeper = appinvoicing.NewReminderSweeper(appinvoicing.ReminderSweeperConfig{
		Store:         ledger,
		Notifier:      notifier,
		ReminderLog:   reminderLog,
		Concurrency:   cfg.Reminder.Concurrency,
		NotifyTimeout: cfg.Reminder.NotifyTimeout,
		Metrics:       metrics,
		Logger:        log.Named("reminders"),
	})
	a.Scheduler = scheduler.NewReminderScheduler(scheduler.ReminderSchedulerConfig{
		Enabled:      cfg.Reminder.Enabled,
		RunHour:      cfg.Reminder.RunHour,
		Interval:     cfg.Reminder.Interval,
		SweepTimeout: cfg.Reminder.SweepTimeout,
	}, a.Sweeper, log.Named("scheduler"))

	a.JWT = auth.NewJWTService(cfg.Auth)
	return nil
}

func newNotifier(cfg *config.Config, log *zap.Logger) (invoicing.Notifier, error) {
	if !cfg.SMTP.Enabled {
		log.Info("SMTP disabled, reminders are written to the log")
		return notification.NewLogNotifier(log), nil
	}
	n, err := notification.NewSMTPNotifier(&notification.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		Timeout:  cfg.SMTP.Timeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("init smtp notifier: %w", err)
	}
	return n, nil
}

// Migrate brings the schema up to date. Postgres runs the embedded SQL
// migrations; sqlite is created from the gorm models.
func (a *App) Migrate() error {
	if a.Config.Database.Driver == "sqlite" {
		return a.DB.AutoMigrate()
	}

	sqlDB, err := a.DB.SQL()
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	m, err := migration.New(sqlDB, "", a.Logger)
	if err != nil {
		return err
	}
	// the migrator's Close would close the shared pool
	return m.Up()
}

// Close releases everything New acquired. It is safe on a partially built App.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if c, ok := a.reminderLog.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if a.meter != nil {
		errs = append(errs, a.meter.Shutdown(ctx))
	}
	if a.tracer != nil {
		errs = append(errs, a.tracer.Shutdown(ctx))
	}
	if a.logs != nil {
		errs = append(errs, a.logs.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
