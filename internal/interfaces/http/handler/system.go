package handler

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/erp/consignment/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"
)

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// CircuitView is the read side of a circuit breaker
type CircuitView interface {
	Name() string
	State() gobreaker.State
}

// SystemHandler serves liveness and readiness information
type SystemHandler struct {
	BaseHandler
	startTime time.Time
	version   string
	timeout   time.Duration
	checks    map[string]HealthCheck
	circuits  []CircuitView
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(version string) *SystemHandler {
	return &SystemHandler{
		startTime: time.Now(),
		version:   version,
		timeout:   2 * time.Second,
		checks:    make(map[string]HealthCheck),
	}
}

// AddCheck registers a dependency probe, e.g. "database" or "redis"
func (h *SystemHandler) AddCheck(name string, check HealthCheck) *SystemHandler {
	h.checks[name] = check
	return h
}

// AddCircuits exposes breaker states on the health report
func (h *SystemHandler) AddCircuits(circuits ...CircuitView) *SystemHandler {
	h.circuits = append(h.circuits, circuits...)
	return h
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	GoVersion string            `json:"go_version"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks"`
	Circuits  map[string]string `json:"circuits,omitempty"`
}

// Health reports "ok", "degraded" when a circuit is open, or "unhealthy"
// with a 503 when a dependency probe fails.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{
		Status:    "ok",
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    make(map[string]string, len(h.checks)),
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unhealthy"
			continue
		}
		resp.Checks[name] = "ok"
	}

	if len(h.circuits) > 0 {
		resp.Circuits = make(map[string]string, len(h.circuits))
		for _, cb := range h.circuits {
			state := cb.State()
			resp.Circuits[cb.Name()] = state.String()
			if state == gobreaker.StateOpen && resp.Status == "ok" {
				resp.Status = "degraded"
			}
		}
	}

	status := http.StatusOK
	if resp.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, dto.NewSuccessResponse(resp))
}
