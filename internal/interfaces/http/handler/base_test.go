package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/consignment/internal/domain/shared"
	"github.com/erp/consignment/internal/interfaces/http/dto"
	"github.com/erp/consignment/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// setJWTContext simulates the JWT middleware for an authenticated request
func setJWTContext(c *gin.Context, tenantID, userID uuid.UUID) {
	c.Set(middleware.JWTTenantIDKey, tenantID.String())
	c.Set(middleware.JWTUserIDKey, userID.String())
}

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestIdentityFromClaims(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		c, _ := newTestContext()
		tenant, user := uuid.New(), uuid.New()
		setJWTContext(c, tenant, user)

		gotTenant, err := getTenantID(c)
		require.NoError(t, err)
		assert.Equal(t, tenant, gotTenant)
		gotUser, err := getOperatorID(c)
		require.NoError(t, err)
		assert.Equal(t, user, gotUser)
	})

	t.Run("headers are not trusted", func(t *testing.T) {
		c, _ := newTestContext()
		c.Request.Header.Set("X-Tenant-ID", uuid.NewString())
		c.Request.Header.Set("X-User-ID", uuid.NewString())

		_, err := getTenantID(c)
		assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
		_, err = getOperatorID(c)
		assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
	})

	t.Run("malformed or nil ids", func(t *testing.T) {
		for _, raw := range []string{"not-a-uuid", uuid.Nil.String()} {
			c, _ := newTestContext()
			c.Set(middleware.JWTUserIDKey, raw)
			_, err := getOperatorID(c)
			assert.ErrorIs(t, err, shared.ErrNotAuthenticated, raw)
		}
	})
}

func TestBaseHandlerResponses(t *testing.T) {
	h := &BaseHandler{}

	t.Run("success with meta", func(t *testing.T) {
		c, w := newTestContext()
		h.SuccessWithMeta(c, []string{"a"}, 45, 2, 20)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		assert.True(t, resp.Success)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(45), resp.Meta.Total)
		assert.Equal(t, 3, resp.Meta.TotalPages)
	})

	t.Run("created", func(t *testing.T) {
		c, w := newTestContext()
		h.Created(c, gin.H{"id": "x"})
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("bad request carries request id", func(t *testing.T) {
		c, w := newTestContext()
		c.Set(middleware.RequestIDKey, "req-9")
		h.BadRequest(c, "nope")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeBadRequest, resp.Error.Code)
		assert.Equal(t, "req-9", resp.RequestID)
	})
}

func TestBaseHandlerHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", shared.NewValidationError("INVALID_AMOUNT", "Payment amount must be positive"), http.StatusBadRequest, "INVALID_AMOUNT"},
		{"wrapped not found", fmt.Errorf("load: %w", shared.NewNotFoundError("BATCH_NOT_FOUND", "Batch not found")), http.StatusNotFound, "BATCH_NOT_FOUND"},
		{"state", shared.NewStateError("BATCH_RETURNED", "Batch is returned"), http.StatusUnprocessableEntity, "BATCH_RETURNED"},
		{"conflict", shared.ErrConcurrencyConflict, http.StatusConflict, "CONCURRENCY_CONFLICT"},
		{"unauthenticated", shared.ErrNotAuthenticated, http.StatusUnauthorized, "NOT_AUTHENTICATED"},
		{"upstream", shared.NewUpstreamError("LEDGER_UNAVAILABLE", "ledger unavailable", assert.AnError), http.StatusBadGateway, "LEDGER_UNAVAILABLE"},
		{"circuit open", shared.NewUpstreamError("LEDGER_UNAVAILABLE", "ledger unavailable", gobreaker.ErrOpenState), http.StatusServiceUnavailable, "LEDGER_UNAVAILABLE"},
		{"cancelled", context.Canceled, http.StatusServiceUnavailable, "REQUEST_CANCELLED"},
		{"unknown", assert.AnError, http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			c, w := newTestContext()
			c.Set(middleware.RequestIDKey, "req-1")

			h.HandleError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, "req-1", resp.RequestID)
		})
	}

	t.Run("nil is a no-op", func(t *testing.T) {
		h := &BaseHandler{}
		c, w := newTestContext()
		h.HandleError(c, nil)
		assert.Empty(t, w.Body.String())
	})

	t.Run("internal errors do not leak details", func(t *testing.T) {
		h := &BaseHandler{}
		c, w := newTestContext()
		h.HandleError(c, fmt.Errorf("pq: password authentication failed"))
		assert.NotContains(t, w.Body.String(), "password")
	})
}

func TestBaseHandlerPathUUID(t *testing.T) {
	h := &BaseHandler{}

	c, w := newTestContext()
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	_, ok := h.PathUUID(c, "id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	id := uuid.New()
	c, _ = newTestContext()
	c.Params = gin.Params{{Key: "id", Value: id.String()}}
	got, ok := h.PathUUID(c, "id")
	assert.True(t, ok)
	assert.Equal(t, id, got)
}
