package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/invoicing/backend/internal/infrastructure/auth"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "invoicectl-test-secret-long-enough-to-sign"

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return stdout.String(), stderr.String(), err
}

func TestRoot_ListsCommands(t *testing.T) {
	out, _, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "sweep")
	assert.Contains(t, out, "token")
}

func TestToken(t *testing.T) {
	t.Setenv("INV_AUTH_SECRET", testSecret)
	t.Setenv("INV_AUTH_ISSUER", "invoicing-test")

	t.Run("prints a token the API accepts", func(t *testing.T) {
		out, stderr, err := execute(t, "token", "ops@example.com", "--ttl", "5m")
		require.NoError(t, err)
		assert.Contains(t, stderr, "expires")

		svc := auth.NewJWTService(config.AuthConfig{Secret: testSecret, Issuer: "invoicing-test"})
		claims, err := svc.ValidateToken(string(bytes.TrimSpace([]byte(out))))
		require.NoError(t, err)
		assert.Equal(t, "ops@example.com", claims.Operator)
	})

	t.Run("json output carries expiry", func(t *testing.T) {
		out, _, err := execute(t, "token", "ops@example.com", "--ttl", "10m", "--json")
		require.NoError(t, err)

		var token auth.Token
		require.NoError(t, json.Unmarshal([]byte(out), &token))
		assert.NotEmpty(t, token.AccessToken)
		assert.Equal(t, "Bearer", token.TokenType)
		assert.WithinDuration(t, time.Now().Add(10*time.Minute), token.ExpiresAt, time.Minute)
	})

	t.Run("requires an operator", func(t *testing.T) {
		_, _, err := execute(t, "token")
		require.Error(t, err)
	})
}

func TestToken_MissingSecret(t *testing.T) {
	t.Setenv("INV_AUTH_SECRET", "")

	_, _, err := execute(t, "token", "ops@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.secret")
}

func TestSweep_EmptyLedger(t *testing.T) {
	t.Setenv("INV_DATABASE_DRIVER", "sqlite")
	t.Setenv("INV_DATABASE_DBNAME", ":memory:")
	t.Setenv("INV_REMINDER_LOG_BACKEND", "memory")

	t.Run("text", func(t *testing.T) {
		out, _, err := execute(t, "sweep")
		require.NoError(t, err)
		assert.Contains(t, out, "evaluated: 0")
		assert.Contains(t, out, "sent:      0")
	})

	t.Run("json", func(t *testing.T) {
		out, _, err := execute(t, "sweep", "--json")
		require.NoError(t, err)

		var result map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.EqualValues(t, 0, result["sent"])
		assert.Equal(t, false, result["cancelled"])
	})
}
