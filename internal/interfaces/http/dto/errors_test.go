package dto

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/erp/consignment/internal/domain/shared"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeInvalidJSON, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeTooLarge, http.StatusRequestEntityTooLarge},
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestStatusForDomainError(t *testing.T) {
	tests := []struct {
		name     string
		err      *shared.DomainError
		expected int
	}{
		{"validation", shared.NewValidationError("INVALID_QUANTITY", "bad"), http.StatusBadRequest},
		{"overpayment", shared.NewValidationError("OVERPAYMENT_REJECTED", "too much"), http.StatusUnprocessableEntity},
		{"total mismatch", shared.NewValidationError("TOTAL_VALUE_MISMATCH", "mismatch"), http.StatusUnprocessableEntity},
		{"not found", shared.NewNotFoundError("BATCH_NOT_FOUND", "missing"), http.StatusNotFound},
		{"state", shared.NewStateError("BATCH_RETURNED", "returned"), http.StatusUnprocessableEntity},
		{"already verified", shared.NewStateError("ALREADY_VERIFIED", "verified"), http.StatusConflict},
		{"idempotency key reused", shared.NewValidationError("IDEMPOTENCY_KEY_REUSED", "reused"), http.StatusUnprocessableEntity},
		{"conflict sentinel", shared.ErrConcurrencyConflict, http.StatusConflict},
		{"statement storage off", shared.NewUpstreamError("STATEMENT_STORAGE_DISABLED", "off", nil), http.StatusServiceUnavailable},
		{"unauthenticated", shared.ErrNotAuthenticated, http.StatusUnauthorized},
		{"upstream", shared.NewUpstreamError("LEDGER_UNAVAILABLE", "down", fmt.Errorf("dial tcp")), http.StatusBadGateway},
		{"circuit open", shared.NewUpstreamError("LEDGER_UNAVAILABLE", "open", gobreaker.ErrOpenState), http.StatusServiceUnavailable},
		{"half open saturated", shared.NewUpstreamError("LEDGER_UNAVAILABLE", "busy", gobreaker.ErrTooManyRequests), http.StatusServiceUnavailable},
		{"nil", nil, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StatusForDomainError(tt.err))
		})
	}
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	tests := []struct {
		total, pageSize int
		wantPages       int
	}{
		{0, 20, 0},
		{20, 20, 1},
		{21, 20, 2},
		{5, 0, 5},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.total, tt.pageSize), func(t *testing.T) {
			resp := NewSuccessResponseWithMeta([]int{}, int64(tt.total), 1, tt.pageSize)
			require.NotNil(t, resp.Meta)
			assert.True(t, resp.Success)
			assert.Equal(t, tt.wantPages, resp.Meta.TotalPages)
		})
	}
}

func TestErrorResponseJSON(t *testing.T) {
	t.Run("carries request id", func(t *testing.T) {
		raw, err := json.Marshal(NewErrorResponseWithRequestID("BATCH_NOT_FOUND", "missing", "req-1"))
		require.NoError(t, err)

		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "req-1", body["request_id"])
		assert.NotContains(t, body, "data")
		errBody := body["error"].(map[string]any)
		assert.Equal(t, "BATCH_NOT_FOUND", errBody["code"])
		assert.NotContains(t, errBody, "details")
	})

	t.Run("validation details", func(t *testing.T) {
		resp := NewValidationErrorResponse("Request validation failed", "req-2", []ValidationDetail{
			{Field: "unit_cost", Message: "Must be greater than or equal to 0"},
		})
		raw, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"code":"ERR_VALIDATION"`)
		assert.Contains(t, string(raw), `"field":"unit_cost"`)
	})
}
