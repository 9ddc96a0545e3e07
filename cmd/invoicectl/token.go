package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/invoicing/backend/internal/infrastructure/auth"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <operator>",
		Short: "Mint an operator bearer token",
		Long: `Sign a bearer token for the named operator with auth.secret. The token
is accepted by the API while auth is enabled.`,
		Example: `  invoicectl token ops@example.com
  invoicectl token ops@example.com --ttl 30m --json`,
		Args: cobra.ExactArgs(1),
		RunE: runToken,
	}
	cmd.Flags().Duration("ttl", 0, "Token lifetime (default: auth.token_expiration)")
	cmd.Flags().Bool("json", false, "Print the token with its expiry as JSON")
	return cmd
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.Auth.Secret == "" {
		return errors.New("auth.secret is not configured")
	}

	ttl, _ := cmd.Flags().GetDuration("ttl")
	token, err := auth.NewJWTService(cfg.Auth).GenerateToken(args[0], ttl)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return json.NewEncoder(out).Encode(token)
	}
	fmt.Fprintln(out, token.AccessToken)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", token.ExpiresAt.UTC().Format(time.RFC3339))
	return nil
}
