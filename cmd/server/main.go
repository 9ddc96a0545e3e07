package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/invoicing/backend/internal/bootstrap"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

const shutdownGrace = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = serve(ctx, cfg, log)
	stop()
	if err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("Server exited")
	_ = log.Sync()
}

// serve runs the API until ctx is cancelled or the listener fails
func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("Starting invoicing backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("db_driver", cfg.Database.Driver),
	)

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("init application: %w", err)
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			log.Error("Error releasing resources", zap.Error(err))
		}
	}()

	if err := app.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	if err := app.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start reminder scheduler: %w", err)
	}

	engine, err := app.NewEngine()
	if err != nil {
		return fmt.Errorf("build http engine: %w", err)
	}
	srv := app.NewServer(engine)

	listenErr := make(chan error, 1)
	go func() {
		log.Info("Listening", zap.String("addr", srv.Addr))
		listenErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-listenErr:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = app.Scheduler.Stop(context.Background())
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	return errors.Join(
		srv.Shutdown(shutdownCtx),
		app.Scheduler.Stop(shutdownCtx),
	)
}
