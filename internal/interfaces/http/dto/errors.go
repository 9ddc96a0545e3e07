package dto

import (
	"net/http"

	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
)

// Error codes carried in the response envelope. Domain codes pass through
// unchanged; the rest originate in the HTTP layer.
const (
	ErrCodeNotFound            = shared.CodeNotFound
	ErrCodeAlreadyExists       = shared.CodeAlreadyExists
	ErrCodeInvalidInput        = shared.CodeInvalidInput
	ErrCodeInvalidState        = shared.CodeInvalidState
	ErrCodeConcurrencyConflict = shared.CodeConcurrencyConflict
	ErrCodeTransient           = shared.CodeTransient
	ErrCodeUnavailable         = shared.CodeUnavailable
	ErrCodeInvalidAmount       = invoicing.CodeInvalidAmount
	ErrCodeGatewayRejected     = invoicing.CodeGatewayRejected

	ErrCodeInternal        = "INTERNAL"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeTokenExpired    = "TOKEN_EXPIRED"
	ErrCodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	ErrCodeSweepInProgress = "SWEEP_IN_PROGRESS"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeInvalidAmount:       http.StatusBadRequest,
	ErrCodeInvalidInput:        http.StatusBadRequest,
	ErrCodeGatewayRejected:     http.StatusPaymentRequired,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,
	ErrCodeTransient:           http.StatusServiceUnavailable,
	ErrCodeUnavailable:         http.StatusServiceUnavailable,

	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeUnauthorized:    http.StatusUnauthorized,
	ErrCodeTokenExpired:    http.StatusUnauthorized,
	ErrCodePayloadTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeSweepInProgress: http.StatusConflict,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
