package payment

import (
	"errors"
	"strings"
)

// StripeConfig contains configuration for Stripe PaymentIntents charges
type StripeConfig struct {
	// SecretKey is the Stripe secret or restricted API key
	SecretKey string
	// Currency is the ISO currency code charges are made in, lower case
	Currency string
}

// Errors for configuration validation
var (
	ErrStripeMissingSecretKey = errors.New("stripe: missing secret key")
	ErrStripeInvalidSecretKey = errors.New("stripe: secret key must start with sk_ or rk_")
)

// Validate validates the configuration
func (c *StripeConfig) Validate() error {
	if c.SecretKey == "" {
		return ErrStripeMissingSecretKey
	}
	if !strings.HasPrefix(c.SecretKey, "sk_") && !strings.HasPrefix(c.SecretKey, "rk_") {
		return ErrStripeInvalidSecretKey
	}
	if c.Currency == "" {
		c.Currency = "usd"
	}
	c.Currency = strings.ToLower(c.Currency)
	return nil
}
