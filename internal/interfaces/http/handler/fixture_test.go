package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	appinvoicing "github.com/invoicing/backend/internal/application/invoicing"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/infrastructure/persistence"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
	"github.com/invoicing/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testWebhookSecret = "whsec_handler_test"

// fakeCardGateway approves every token except "tok_decline". The
// transaction id is derived from the idempotency key, like a provider that
// replays the original charge for a repeated key.
type fakeCardGateway struct {
	mu    sync.Mutex
	calls int
}

func (g *fakeCardGateway) Method() invoicing.PaymentMethod { return invoicing.PaymentMethodStripe }

func (g *fakeCardGateway) Charge(_ context.Context, req invoicing.ChargeRequest) invoicing.GatewayResult {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if req.Token == "tok_decline" {
		return invoicing.Failed("", "Your card was declined.")
	}
	return invoicing.Succeeded("pi_" + req.IdempotencyKey)
}

// fakeWalletGateway creates pending payments and approves them on execute
type fakeWalletGateway struct {
	mu       sync.Mutex
	next     int
	executed int
}

func (g *fakeWalletGateway) Method() invoicing.PaymentMethod { return invoicing.PaymentMethodPayPal }

func (g *fakeWalletGateway) Charge(_ context.Context, _ invoicing.ChargeRequest) invoicing.GatewayResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	id := "PAYID-" + strings.Repeat("X", g.next)
	return invoicing.GatewayResult{
		Pending:       true,
		TransactionID: id,
		RedirectURL:   "https://wallet.example.com/approve?token=" + id,
	}
}

func (g *fakeWalletGateway) Execute(_ context.Context, paymentID, _ string) invoicing.GatewayResult {
	g.mu.Lock()
	g.executed++
	g.mu.Unlock()
	return invoicing.Succeeded(paymentID)
}

type apiFixture struct {
	engine  *gin.Engine
	db      *gorm.DB
	card    *fakeCardGateway
	wallet  *fakeWalletGateway
	webhook *appinvoicing.StripeWebhookService
}

func setupHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(persistence.AllModels()...))
	return db
}

// newAPIFixture wires the real services over sqlite with fake gateways and
// mounts the handlers the way the router does
func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db := setupHandlerTestDB(t)

	clientRepo := persistence.NewGormClientRepository(db)
	invoiceRepo := persistence.NewGormInvoiceRepository(db)
	ledger := persistence.NewGormLedgerStore(db)
	engine := appinvoicing.NewReconciliationService(appinvoicing.ReconciliationServiceConfig{Store: ledger})

	f := &apiFixture{
		db:     db,
		card:   &fakeCardGateway{},
		wallet: &fakeWalletGateway{},
	}
	f.webhook = appinvoicing.NewStripeWebhookService(appinvoicing.StripeWebhookServiceConfig{
		WebhookSecret: testWebhookSecret,
		Engine:        engine,
	})

	clients := NewClientHandler(appinvoicing.NewClientService(clientRepo))
	invoices := NewInvoiceHandler(appinvoicing.NewInvoiceService(appinvoicing.InvoiceServiceConfig{
		InvoiceRepo: invoiceRepo,
		ClientRepo:  clientRepo,
		Ledger:      ledger,
	}))
	payments := NewPaymentHandler(appinvoicing.NewPaymentService(appinvoicing.PaymentServiceConfig{
		CardGateway:   f.card,
		WalletGateway: f.wallet,
		Engine:        engine,
		Ledger:        ledger,
	}))
	webhooks := NewStripeWebhookHandler(f.webhook)

	r := gin.New()
	r.Use(middleware.RequestID())
	api := r.Group("/api/v1")
	api.POST("/clients", clients.Create)
	api.GET("/clients", clients.List)
	api.GET("/clients/:id", clients.GetByID)
	api.PATCH("/clients/:id", clients.Update)
	api.POST("/invoices", invoices.Create)
	api.GET("/invoices", invoices.List)
	api.GET("/invoices/:id", invoices.GetByID)
	api.PATCH("/invoices/:id", invoices.Update)
	api.DELETE("/invoices/:id", invoices.Delete)
	api.GET("/invoices/:id/payments", payments.ListByInvoice)
	api.POST("/invoices/:id/payments/card", payments.ChargeCard)
	api.POST("/invoices/:id/payments/wallet", payments.StartWallet)
	api.POST("/invoices/:id/payments/manual", payments.RecordManual)
	api.GET("/payments/wallet/return", payments.WalletReturn)
	api.GET("/payments/:id", payments.GetByID)
	api.POST("/webhooks/stripe", webhooks.HandleStripeWebhook)
	f.engine = r
	return f
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (f *apiFixture) doWithHeader(t *testing.T, method, path string, body any, header, value string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(header, value)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func (f *apiFixture) createClient(t *testing.T, name, email string) appinvoicing.ClientResponse {
	t.Helper()
	w, env := f.do(t, http.MethodPost, "/api/v1/clients", map[string]any{"name": name, "email": email})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeData[appinvoicing.ClientResponse](t, env)
}

func (f *apiFixture) createInvoice(t *testing.T, clientID, amount, due string) appinvoicing.InvoiceResponse {
	t.Helper()
	w, env := f.do(t, http.MethodPost, "/api/v1/invoices", map[string]any{
		"client_id":   clientID,
		"amount":      amount,
		"due_date":    due,
		"description": "consulting",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeData[appinvoicing.InvoiceResponse](t, env)
}
