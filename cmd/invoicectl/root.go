package main

import (
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "invoicectl",
		Short: "Operator tools for the invoicing backend",
		Long: `invoicectl runs operator tasks against the invoicing backend.

Configuration is read the same way the server reads it: config.toml in the
working directory or /app, a .env file, then INV_ prefixed environment
variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(newSweepCmd(), newTokenCmd())
	return root
}

// loadEnv loads configuration and builds a console logger for a command
func loadEnv(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	level, _ := cmd.Flags().GetString("log-level")
	log, err := logger.New(&logger.Config{
		Level:  level,
		Format: "console",
		Output: "stderr",
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
