package notification

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/invoicing/backend/internal/domain/invoicing"
	"go.uber.org/zap"
)

// SMTPConfig contains configuration for the SMTP notifier
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// From is the sender address; defaults to Username
	From string
	// Timeout bounds a single delivery when the context has no deadline
	Timeout time.Duration
}

// Errors for configuration validation
var (
	ErrSMTPMissingHost   = errors.New("smtp: missing host")
	ErrSMTPMissingSender = errors.New("smtp: missing sender address")

	// ErrSMTPInsecureAuth is returned when credentials are configured but the
	// server does not offer STARTTLS
	ErrSMTPInsecureAuth = errors.New("smtp: server does not offer STARTTLS, refusing to send credentials")
	// ErrSMTPAuthUnsupported is returned when credentials are configured but
	// the server does not advertise AUTH
	ErrSMTPAuthUnsupported = errors.New("smtp: server does not support AUTH")
)

// Validate validates the configuration
func (c *SMTPConfig) Validate() error {
	if c.Host == "" {
		return ErrSMTPMissingHost
	}
	if c.Port == 0 {
		c.Port = 587
	}
	if c.From == "" {
		c.From = c.Username
	}
	if c.From == "" {
		return ErrSMTPMissingSender
	}
	if _, err := mail.ParseAddress(c.From); err != nil {
		return fmt.Errorf("smtp: invalid sender address: %w", err)
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}

// SMTPNotifier delivers reminder messages as plain-text email. Each message
// uses its own connection, upgraded with STARTTLS when the server offers it.
// With credentials configured both STARTTLS and AUTH are mandatory.
type SMTPNotifier struct {
	config *SMTPConfig
	logger *zap.Logger
	dialer net.Dialer
}

// NewSMTPNotifier creates a new SMTP notifier
func NewSMTPNotifier(config *SMTPConfig, logger *zap.Logger) (*SMTPNotifier, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPNotifier{config: config, logger: logger}, nil
}

// Notify sends msg and returns the first protocol error
func (n *SMTPNotifier) Notify(ctx context.Context, msg invoicing.Message) error {
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return fmt.Errorf("smtp: invalid recipient %q: %w", msg.To, err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.config.Timeout)
		defer cancel()
	}

	addr := net.JoinHostPort(n.config.Host, strconv.Itoa(n.config.Port))
	conn, err := n.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp: dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, n.config.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp: handshake: %w", err)
	}
	defer client.Close()

	if err := n.send(client, to.Address, msg); err != nil {
		return err
	}

	n.logger.Debug("Reminder email sent",
		zap.String("to", to.Address),
		zap.String("subject", msg.Subject))
	return client.Quit()
}

func (n *SMTPNotifier) send(client *smtp.Client, to string, msg invoicing.Message) error {
	encrypted := false
	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: n.config.Host}); err != nil {
			return fmt.Errorf("smtp: starttls: %w", err)
		}
		encrypted = true
	}
	if n.config.Username != "" {
		if !encrypted {
			return ErrSMTPInsecureAuth
		}
		if ok, _ := client.Extension("AUTH"); !ok {
			return ErrSMTPAuthUnsupported
		}
		auth := smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp: auth: %w", err)
		}
	}

	if err := client.Mail(n.config.From); err != nil {
		return fmt.Errorf("smtp: mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp: rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp: data: %w", err)
	}
	if _, err := w.Write(buildMessage(n.config.From, to, msg)); err != nil {
		w.Close()
		return fmt.Errorf("smtp: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp: end data: %w", err)
	}
	return nil
}

// buildMessage renders RFC 5322 headers and a CRLF-normalized body
func buildMessage(from, to string, msg invoicing.Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + sanitizeHeader(msg.Subject) + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	body := strings.ReplaceAll(msg.Body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
