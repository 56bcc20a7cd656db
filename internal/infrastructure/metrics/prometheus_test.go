package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(DefaultConfig("consignment-service"))

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/api/v1/consignment/batches/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for _, path := range []string{"/api/v1/consignment/batches/a", "/api/v1/consignment/batches/b", "/nope"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues("consignment-service", "GET", "/api/v1/consignment/batches/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues("consignment-service", "GET", "unmatched", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HTTPRequestsInFlight))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var hist *dto.Histogram
	for _, mf := range families {
		if mf.GetName() == "consignment_http_request_duration_seconds" {
			for _, metric := range mf.GetMetric() {
				for _, lp := range metric.GetLabel() {
					if lp.GetName() == "path" && lp.GetValue() == "/api/v1/consignment/batches/:id" {
						hist = metric.GetHistogram()
					}
				}
			}
		}
	}
	require.NotNil(t, hist)
	assert.Equal(t, uint64(2), hist.GetSampleCount())
}

func TestOnBreakerStateChange(t *testing.T) {
	m := New(DefaultConfig("consignment-service"))

	m.OnBreakerStateChange("liability_ledger", gobreaker.StateClosed, gobreaker.StateOpen)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("consignment-service", "liability_ledger")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitBreakerTrips.WithLabelValues("consignment-service", "liability_ledger")))

	m.OnBreakerStateChange("liability_ledger", gobreaker.StateOpen, gobreaker.StateHalfOpen)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("consignment-service", "liability_ledger")))

	m.OnBreakerStateChange("liability_ledger", gobreaker.StateHalfOpen, gobreaker.StateClosed)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("consignment-service", "liability_ledger")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitBreakerTrips.WithLabelValues("consignment-service", "liability_ledger")))
}

func TestHandler(t *testing.T) {
	m := New(DefaultConfig("consignment-service"))
	m.RecordHTTPRequest("POST", "/api/v1/consignment/payments", 201, 0)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "consignment_http_requests_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
