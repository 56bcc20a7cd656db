package router

import (
	"github.com/erp/consignment/internal/infrastructure/config"
	"github.com/erp/consignment/internal/infrastructure/logger"
	"github.com/erp/consignment/internal/infrastructure/metrics"
	"github.com/erp/consignment/internal/interfaces/http/handler"
	"github.com/erp/consignment/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// EngineConfig collects what the HTTP engine is assembled from
type EngineConfig struct {
	Logger  *zap.Logger
	HTTP    config.HTTPConfig
	Tracing middleware.TracingConfig
	// Metrics is optional; without it /metrics is not served
	Metrics *metrics.Metrics
	System  *handler.SystemHandler
	// Auth guards every /api route
	Auth gin.HandlerFunc
}

// NewEngine builds the gin engine with the global middleware chain, the
// unauthenticated probes and every registrar under APIPrefix, behind cfg.Auth.
func NewEngine(cfg EngineConfig, registrars ...RouteRegistrar) (*gin.Engine, error) {
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, err
	}

	middleware.SetupValidator()

	engine.Use(
		logger.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.Tracing(cfg.Tracing),
		middleware.SpanEnricher(),
		logger.GinMiddleware(cfg.Logger),
	)
	if cfg.Metrics != nil {
		engine.Use(cfg.Metrics.GinMiddleware())
	}
	engine.Use(
		middleware.CORSWithConfig(middleware.CORSConfigFrom(cfg.HTTP)),
		middleware.Secure(),
	)
	if cfg.HTTP.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	}

	if cfg.System != nil {
		engine.GET("/health", cfg.System.Health)
		engine.GET(APIPrefix+"/health", cfg.System.Health)
	}
	if cfg.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := engine.Group(APIPrefix)
	if cfg.Auth != nil {
		api.Use(cfg.Auth)
	}
	for _, registrar := range registrars {
		registrar.RegisterRoutes(api)
	}

	return engine, nil
}
