package payment

import (
	"errors"
	"strings"
	"time"
)

const (
	paypalLiveURL    = "https://api-m.paypal.com"
	paypalSandboxURL = "https://api-m.sandbox.paypal.com"
)

// PayPalConfig contains configuration for the PayPal REST payments API
type PayPalConfig struct {
	// ClientID and ClientSecret are the REST app credentials
	ClientID     string
	ClientSecret string
	// BaseURL is the API root; empty selects the sandbox
	BaseURL string
	// ReturnURL and CancelURL are where PayPal sends the payer after approval
	ReturnURL string
	CancelURL string
	// Timeout bounds each HTTP call
	Timeout time.Duration
}

// Errors for configuration validation
var (
	ErrPayPalMissingCredentials = errors.New("paypal: missing client id or secret")
	ErrPayPalMissingReturnURL   = errors.New("paypal: missing return or cancel URL")
)

// Validate validates the configuration
func (c *PayPalConfig) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return ErrPayPalMissingCredentials
	}
	if c.ReturnURL == "" || c.CancelURL == "" {
		return ErrPayPalMissingReturnURL
	}
	switch strings.ToLower(c.BaseURL) {
	case "", "sandbox":
		c.BaseURL = paypalSandboxURL
	case "live":
		c.BaseURL = paypalLiveURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}
