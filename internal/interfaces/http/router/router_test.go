package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	consignmentapp "github.com/erp/consignment/internal/application/consignment"
	"github.com/erp/consignment/internal/infrastructure/auth"
	"github.com/erp/consignment/internal/infrastructure/config"
	"github.com/erp/consignment/internal/infrastructure/metrics"
	"github.com/erp/consignment/internal/interfaces/http/handler"
	"github.com/erp/consignment/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewEngine_APIGroup(t *testing.T) {
	engine, err := NewEngine(EngineConfig{
		Logger: zap.NewNop(),
		Auth: func(c *gin.Context) {
			c.Header("X-Api", "1")
			c.Next()
		},
	}, NewDomainGroup("/test").GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	}))
	require.NoError(t, err)
	engine.GET("/outside", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, APIPrefix+"/test/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.Equal(t, "1", w.Header().Get("X-Api"))

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/outside", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("X-Api"))
}

func TestDomainGroup(t *testing.T) {
	t.Run("nested groups inherit middleware", func(t *testing.T) {
		engine := gin.New()
		var order []string

		root := NewDomainGroup("/root").Use(func(c *gin.Context) {
			order = append(order, "root")
			c.Next()
		})
		root.Group("/child").
			Use(func(c *gin.Context) {
				order = append(order, "child")
				c.Next()
			}).
			POST("/:id", func(c *gin.Context) {
				order = append(order, "handler:"+c.Param("id"))
				c.Status(http.StatusAccepted)
			})

		root.RegisterRoutes(engine.Group(""))

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/root/child/42", nil))

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, []string{"root", "child", "handler:42"}, order)
	})

	t.Run("method mismatch is not routed", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("/g").GET("", func(c *gin.Context) { c.Status(http.StatusOK) })
		g.RegisterRoutes(engine.Group(""))

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/g", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

type stubSummaries struct {
	rebuilt int
}

func (s *stubSummaries) ListSupplierSummaries(context.Context, uuid.UUID, consignmentapp.SummaryFilter) (*consignmentapp.SupplierSummaryListResponse, error) {
	return &consignmentapp.SupplierSummaryListResponse{}, nil
}

func (s *stubSummaries) RebuildSupplierBalances(context.Context, uuid.UUID) (*consignmentapp.RebuildResponse, error) {
	s.rebuilt++
	return &consignmentapp.RebuildResponse{Suppliers: 1}, nil
}

type stubStatements struct {
	exported int
}

func (s *stubStatements) RenderSupplierStatement(_ context.Context, _ uuid.UUID, req consignmentapp.StatementRequest) (*consignmentapp.RenderedStatement, error) {
	return &consignmentapp.RenderedStatement{
		Filename:    "statement-" + req.SupplierID.String()[:8] + ".xlsx",
		ContentType: "application/octet-stream",
		Data:        []byte("doc"),
	}, nil
}

func (s *stubStatements) ExportSupplierStatement(_ context.Context, _ uuid.UUID, req consignmentapp.StatementRequest) (*consignmentapp.StatementExportResponse, error) {
	s.exported++
	return &consignmentapp.StatementExportResponse{SupplierID: req.SupplierID}, nil
}

type stubImporter struct{}

func (stubImporter) ImportBatches(_ context.Context, _, _ uuid.UUID, _ io.Reader, req consignmentapp.BatchImportRequest) (*consignmentapp.BatchImportResult, error) {
	return &consignmentapp.BatchImportResult{TotalRows: 1, DryRun: req.DryRun}, nil
}

type engineFixture struct {
	engine     *gin.Engine
	jwt        *auth.JWTService
	summaries  *stubSummaries
	statements *stubStatements
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:                "router-test-secret-0123456789abcdef",
		AccessTokenExpiration: time.Minute,
		Issuer:                "consignment-test",
	})
	summaries := &stubSummaries{}
	statements := &stubStatements{}
	h := handler.NewConsignmentHandler(nil, nil, summaries)

	engine, err := NewEngine(EngineConfig{
		Logger: zap.NewNop(),
		HTTP: config.HTTPConfig{
			MaxBodySize:      1 << 10,
			CORSAllowOrigins: []string{"https://back-office.example"},
		},
		Metrics: metrics.New(metrics.DefaultConfig("router-test")),
		System:  handler.NewSystemHandler("test"),
		Auth:    middleware.JWTAuthMiddleware(jwtService),
	}, ConsignmentRoutes(h), StatementRoutes(handler.NewStatementHandler(statements)),
		BatchImportRoutes(handler.NewBatchImportHandler(stubImporter{})))
	require.NoError(t, err)

	return &engineFixture{engine: engine, jwt: jwtService, summaries: summaries, statements: statements}
}

func (f *engineFixture) token(t *testing.T, permissions ...string) string {
	t.Helper()
	token, _, err := f.jwt.GenerateAccessToken(auth.GenerateTokenInput{
		TenantID:    uuid.New(),
		UserID:      uuid.New(),
		Username:    "clerk",
		Permissions: permissions,
	})
	require.NoError(t, err)
	return token
}

func (f *engineFixture) serve(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestNewEngine(t *testing.T) {
	f := newEngineFixture(t)

	t.Run("health is public", func(t *testing.T) {
		w := f.serve(http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	})

	t.Run("metrics are exposed", func(t *testing.T) {
		f.serve(http.MethodGet, "/health", "")
		w := f.serve(http.MethodGet, "/metrics", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.Contains(w.Body.String(), "http_requests_total"))
	})

	t.Run("api requires a token", func(t *testing.T) {
		w := f.serve(http.MethodGet, "/api/v1/consignment/summaries", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("read permission lists summaries", func(t *testing.T) {
		w := f.serve(http.MethodGet, "/api/v1/consignment/summaries", f.token(t, PermConsignmentRead))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("write without permission is forbidden", func(t *testing.T) {
		w := f.serve(http.MethodPost, "/api/v1/consignment/payments", f.token(t, PermConsignmentRead))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("rebuild requires admin", func(t *testing.T) {
		before := f.summaries.rebuilt

		w := f.serve(http.MethodPost, "/api/v1/consignment/summaries/rebuild", f.token(t, PermConsignmentRead, PermPaymentWrite))
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, before, f.summaries.rebuilt)

		w = f.serve(http.MethodPost, "/api/v1/consignment/summaries/rebuild", f.token(t, PermConsignmentAdmin))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, before+1, f.summaries.rebuilt)
	})

	t.Run("statement download with read permission", func(t *testing.T) {
		w := f.serve(http.MethodGet, "/api/v1/consignment/suppliers/"+uuid.NewString()+"/statement", f.token(t, PermConsignmentRead))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "doc", w.Body.String())
	})

	t.Run("statement export requires admin", func(t *testing.T) {
		path := "/api/v1/consignment/suppliers/" + uuid.NewString() + "/statement/exports"
		before := f.statements.exported

		w := f.serve(http.MethodPost, path, f.token(t, PermConsignmentRead))
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, before, f.statements.exported)

		w = f.serve(http.MethodPost, path, f.token(t, PermConsignmentAdmin))
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, before+1, f.statements.exported)
	})

	t.Run("batch import needs batch write", func(t *testing.T) {
		w := f.serve(http.MethodPost, "/api/v1/consignment/batches/import?dry_run=true", f.token(t, PermConsignmentRead))
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = f.serve(http.MethodPost, "/api/v1/consignment/batches/import?dry_run=true", f.token(t, PermBatchWrite))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("cors preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/consignment/batches", nil)
		req.Header.Set("Origin", "https://back-office.example")
		w := httptest.NewRecorder()
		f.engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://back-office.example", w.Header().Get("Access-Control-Allow-Origin"))
	})
}
