package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// tokenRefreshMargin renews the access token this long before it expires
const tokenRefreshMargin = time.Minute

// PayPalGateway creates and executes PayPal wallet payments. A charge only
// creates the payment; the payer approves it at the returned URL and
// Execute captures it.
type PayPalGateway struct {
	config     *PayPalConfig
	httpClient *http.Client
	logger     *zap.Logger

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
	now         func() time.Time
}

// NewPayPalGateway creates a new PayPal gateway
func NewPayPalGateway(config *PayPalConfig, logger *zap.Logger) (*PayPalGateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PayPalGateway{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
		now:    time.Now,
	}, nil
}

// Method returns the payment method recorded for PayPal payments
func (g *PayPalGateway) Method() invoicing.PaymentMethod {
	return invoicing.PaymentMethodPayPal
}

// Charge creates a sale payment and returns it as pending with the approval URL
func (g *PayPalGateway) Charge(ctx context.Context, req invoicing.ChargeRequest) invoicing.GatewayResult {
	ctx, span := telemetry.StartServiceSpan(ctx, "paypal", "create_payment",
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute(telemetry.SpanAttrInvoiceID, req.InvoiceID.String()),
	)
	defer span.End()

	body := paypalCreatePaymentRequest{
		Intent: "sale",
		Payer:  paypalPayer{PaymentMethod: "paypal"},
		Transactions: []paypalTransaction{{
			Amount: paypalAmount{
				Total:    invoicing.FromMinorUnits(req.AmountMinor).StringFixed(2),
				Currency: strings.ToUpper(req.Currency),
			},
			Description: req.Description,
			Custom:      req.InvoiceID.String(),
		}},
		RedirectURLs: paypalRedirectURLs{
			ReturnURL: g.config.ReturnURL,
			CancelURL: g.config.CancelURL,
		},
	}

	var created paypalPayment
	if err := g.call(ctx, http.MethodPost, "/v1/payments/payment", req.IdempotencyKey, body, &created); err != nil {
		telemetry.RecordError(span, err)
		g.logger.Warn("PayPal payment creation failed",
			zap.String("invoice_id", req.InvoiceID.String()),
			zap.Error(err))
		return invoicing.Failed("", err.Error())
	}

	approval := created.link("approval_url")
	if created.State == paypalStateFailed || approval == "" {
		return invoicing.Failed(created.ID, "paypal: payment created without an approval link")
	}

	g.logger.Info("PayPal payment created",
		zap.String("invoice_id", req.InvoiceID.String()),
		zap.String("transaction_id", created.ID))
	return invoicing.GatewayResult{
		Pending:       true,
		TransactionID: created.ID,
		RedirectURL:   approval,
	}
}

// Execute captures a payment the payer approved
func (g *PayPalGateway) Execute(ctx context.Context, paymentID, payerID string) invoicing.GatewayResult {
	ctx, span := telemetry.StartServiceSpan(ctx, "paypal", "execute_payment",
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute(telemetry.SpanAttrTransactionID, paymentID),
	)
	defer span.End()

	path := "/v1/payments/payment/" + url.PathEscape(paymentID) + "/execute"

	var executed paypalPayment
	if err := g.call(ctx, http.MethodPost, path, "", paypalExecuteRequest{PayerID: payerID}, &executed); err != nil {
		telemetry.RecordError(span, err)
		g.logger.Warn("PayPal payment execution failed",
			zap.String("transaction_id", paymentID),
			zap.Error(err))
		return invoicing.Failed(paymentID, err.Error())
	}

	switch executed.State {
	case paypalStateApproved:
		return invoicing.Succeeded(paymentID)
	case paypalStateCreated:
		return invoicing.GatewayResult{Pending: true, TransactionID: paymentID}
	default:
		msg := executed.FailureReason
		if msg == "" {
			msg = "paypal: payment ended in state " + executed.State
		}
		return invoicing.Failed(paymentID, msg)
	}
}

func (p *paypalPayment) link(rel string) string {
	for _, l := range p.Links {
		if l.Rel == rel {
			return l.Href
		}
	}
	return ""
}

// call sends an authenticated JSON request and decodes the response into out
func (g *PayPalGateway) call(ctx context.Context, method, path, requestID string, in, out any) error {
	token, err := g.token(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("paypal: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("paypal: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if requestID != "" {
		req.Header.Set("PayPal-Request-Id", requestID)
	}

	respBody, err := g.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("paypal: failed to decode response: %w", err)
	}
	return nil
}

// token returns a cached OAuth access token, fetching a new one when needed
func (g *PayPalGateway) token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.accessToken != "" && g.now().Before(g.expiresAt) {
		return g.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("paypal: failed to create token request: %w", err)
	}
	req.SetBasicAuth(g.config.ClientID, g.config.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	respBody, err := g.do(req)
	if err != nil {
		return "", err
	}

	var tok paypalTokenResponse
	if err := json.Unmarshal(respBody, &tok); err != nil {
		return "", fmt.Errorf("paypal: failed to decode token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("paypal: empty access token")
	}

	g.accessToken = tok.AccessToken
	g.expiresAt = g.now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenRefreshMargin)
	return g.accessToken, nil
}

// do executes the request and turns non-2xx responses into errors
func (g *PayPalGateway) do(req *http.Request) ([]byte, error) {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paypal: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("paypal: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr paypalError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("paypal: %s: %s", apiErr.Name, apiErr.Message)
		}
		return nil, fmt.Errorf("paypal: HTTP %d", resp.StatusCode)
	}
	return respBody, nil
}
