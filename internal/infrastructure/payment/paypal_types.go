package payment

// PayPal v1 payments API request and response bodies

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type paypalAmount struct {
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

type paypalTransaction struct {
	Amount        paypalAmount `json:"amount"`
	Description   string       `json:"description,omitempty"`
	InvoiceNumber string       `json:"invoice_number,omitempty"`
	Custom        string       `json:"custom,omitempty"`
}

type paypalPayer struct {
	PaymentMethod string `json:"payment_method"`
}

type paypalRedirectURLs struct {
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
}

type paypalCreatePaymentRequest struct {
	Intent       string              `json:"intent"`
	Payer        paypalPayer         `json:"payer"`
	Transactions []paypalTransaction `json:"transactions"`
	RedirectURLs paypalRedirectURLs  `json:"redirect_urls"`
}

type paypalExecuteRequest struct {
	PayerID string `json:"payer_id"`
}

type paypalLink struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

type paypalPayment struct {
	ID            string       `json:"id"`
	State         string       `json:"state"`
	FailureReason string       `json:"failure_reason,omitempty"`
	Links         []paypalLink `json:"links"`
}

type paypalError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	DebugID string `json:"debug_id"`
}

// payment states
const (
	paypalStateCreated  = "created"
	paypalStateApproved = "approved"
	paypalStateFailed   = "failed"
)
