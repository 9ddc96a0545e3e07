package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{"NOT_FOUND", http.StatusNotFound},
		{"INVALID_AMOUNT", http.StatusBadRequest},
		{"INVALID_INPUT", http.StatusBadRequest},
		{"GATEWAY_REJECTED", http.StatusPaymentRequired},
		{"CONCURRENCY_CONFLICT", http.StatusConflict},
		{"TRANSIENT", http.StatusServiceUnavailable},
		{"UNAVAILABLE", http.StatusServiceUnavailable},
		{"ALREADY_EXISTS", http.StatusConflict},
		{"INVALID_STATE", http.StatusUnprocessableEntity},
		{"UNAUTHORIZED", http.StatusUnauthorized},
		{"SWEEP_IN_PROGRESS", http.StatusConflict},
		{"SOMETHING_NEW", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, GetHTTPStatus(tt.code))
		})
	}
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	resp := NewSuccessResponseWithMeta([]int{1, 2}, 41, 2, 20)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 3, resp.Meta.TotalPages)

	resp = NewSuccessResponseWithMeta(nil, 0, 1, 20)
	assert.Equal(t, 0, resp.Meta.TotalPages)
}

func TestErrorEnvelopeShape(t *testing.T) {
	resp := NewValidationErrorResponse("Request validation failed", "req-1", []ValidationDetail{
		{Field: "email", Message: "must be a valid email address"},
	})

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"success": false,
		"error": {
			"code": "INVALID_INPUT",
			"message": "Request validation failed",
			"request_id": "req-1",
			"details": [{"field": "email", "message": "must be a valid email address"}]
		}
	}`, string(raw))
}

func TestListRequest_Normalize(t *testing.T) {
	r := ListRequest{}
	r.Normalize()
	assert.Equal(t, 1, r.Page)
	assert.Equal(t, 20, r.PageSize)
}
