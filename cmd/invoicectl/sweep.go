package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	appinvoicing "github.com/invoicing/backend/internal/application/invoicing"
	"github.com/invoicing/backend/internal/bootstrap"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Send overdue reminders once and print the tally",
		Long: `Run one reminder sweep immediately. Invoices already reminded today are
skipped, so running sweep next to a server with the schedule enabled is safe
when both share the same reminder log backend.`,
		Example: `  invoicectl sweep
  invoicectl sweep --json --timeout 2m`,
		Args: cobra.NoArgs,
		RunE: runSweep,
	}
	cmd.Flags().Bool("json", false, "Print the result as JSON")
	cmd.Flags().Duration("timeout", 0, "Abort the sweep after this long (default: reminder.sweep_timeout)")
	return cmd
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		timeout = cfg.Reminder.SweepTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			log.Warn("Error releasing resources", zap.Error(err))
		}
	}()
	if err := app.Migrate(); err != nil {
		return err
	}

	result, err := app.Sweeper.Sweep(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	return printSweep(cmd, result, asJSON)
}

func printSweep(cmd *cobra.Command, result *appinvoicing.SweepResult, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Fprintf(out, "evaluated: %d\n", result.Evaluated)
	fmt.Fprintf(out, "attempted: %d\n", result.Attempted)
	fmt.Fprintf(out, "sent:      %d\n", result.Sent)
	fmt.Fprintf(out, "failed:    %d\n", result.Failed)
	fmt.Fprintf(out, "skipped:   %d\n", result.Skipped)
	if result.Cancelled {
		fmt.Fprintln(out, "cancelled before every invoice was handled")
	}
	fmt.Fprintf(out, "duration:  %s\n", result.Duration.Round(time.Millisecond))
	return nil
}
