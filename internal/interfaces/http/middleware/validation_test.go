package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/consignment/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type amountRequest struct {
	Quantity decimal.Decimal  `json:"quantity" binding:"decimal_gt=0"`
	UnitCost decimal.Decimal  `json:"unit_cost" binding:"decimal_gte=0"`
	Total    *decimal.Decimal `json:"total_value" binding:"omitempty,decimal_gte=0"`
	Unit     string           `json:"unit" binding:"required,max=20"`
}

func TestDecimalValidators(t *testing.T) {
	v := validator.New()
	v.SetTagName("binding")
	RegisterValidations(v)

	neg := decimal.NewFromInt(-1)
	zero := decimal.Zero

	tests := []struct {
		name   string
		req    amountRequest
		failed []string
	}{
		{"valid", amountRequest{Quantity: decimal.RequireFromString("0.5"), UnitCost: zero, Unit: "kg"}, nil},
		{"zero quantity", amountRequest{Quantity: zero, UnitCost: zero, Unit: "kg"}, []string{"quantity"}},
		{"negative cost", amountRequest{Quantity: decimal.NewFromInt(1), UnitCost: neg, Unit: "kg"}, []string{"unit_cost"}},
		{"negative total", amountRequest{Quantity: decimal.NewFromInt(1), UnitCost: zero, Total: &neg, Unit: "kg"}, []string{"total_value"}},
		{"zero total", amountRequest{Quantity: decimal.NewFromInt(1), UnitCost: zero, Total: &zero, Unit: "kg"}, nil},
		{"missing unit", amountRequest{Quantity: decimal.NewFromInt(1), UnitCost: zero}, []string{"unit"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.req)
			if tt.failed == nil {
				require.NoError(t, err)
				return
			}
			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			var fields []string
			for _, e := range verrs {
				fields = append(fields, e.Field())
			}
			assert.ElementsMatch(t, tt.failed, fields)
		})
	}
}

func TestHandleValidationError(t *testing.T) {
	SetupValidator()

	router := gin.New()
	router.Use(RequestID())
	router.POST("/test", func(c *gin.Context) {
		var req amountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(RequestIDHeader, "req-v")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("field details", func(t *testing.T) {
		w := post(`{"quantity": "0", "unit_cost": "-2", "unit": "kg"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Equal(t, "req-v", resp.RequestID)
		require.Len(t, resp.Error.Details, 2)
		assert.Equal(t, "quantity", resp.Error.Details[0].Field)
		assert.Equal(t, "Must be greater than 0", resp.Error.Details[0].Message)
		assert.Equal(t, "unit_cost", resp.Error.Details[1].Field)
	})

	t.Run("malformed json", func(t *testing.T) {
		w := post(`{"quantity": `)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, dto.ErrCodeInvalidJSON, resp.Error.Code)
	})

	t.Run("valid", func(t *testing.T) {
		w := post(`{"quantity": "12.5", "unit_cost": 2, "unit": "kg"}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
