package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	consignmentapp "github.com/erp/consignment/internal/application/consignment"
	"github.com/erp/consignment/internal/domain/consignment"
	"github.com/erp/consignment/internal/infrastructure/auth"
	"github.com/erp/consignment/internal/infrastructure/cache"
	"github.com/erp/consignment/internal/infrastructure/config"
	"github.com/erp/consignment/internal/infrastructure/event"
	"github.com/erp/consignment/internal/infrastructure/export"
	"github.com/erp/consignment/internal/infrastructure/lock"
	"github.com/erp/consignment/internal/infrastructure/logger"
	"github.com/erp/consignment/internal/infrastructure/metrics"
	"github.com/erp/consignment/internal/infrastructure/persistence"
	"github.com/erp/consignment/internal/infrastructure/resilience"
	"github.com/erp/consignment/internal/infrastructure/scheduler"
	"github.com/erp/consignment/internal/infrastructure/storage"
	"github.com/erp/consignment/internal/infrastructure/telemetry"
	"github.com/erp/consignment/internal/interfaces/http/handler"
	"github.com/erp/consignment/internal/interfaces/http/middleware"
	"github.com/erp/consignment/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	if err := run(cfg, log); err != nil {
		log.Fatal("Server terminated", zap.Error(err))
	}
}

func run(cfg *config.Config, baseLog *zap.Logger) error {
	ctx := context.Background()

	// Telemetry first so the bridged logger and the DB plugin see the
	// global providers.
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		return err
	}
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		return err
	}
	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		return err
	}
	log := lp.Bridge(baseLog, logger.ParseLevel(cfg.Log.Level))

	log.Info("Starting consignment service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("overpayment_policy", cfg.Consignment.OverpaymentPolicy),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		tracingCfg := telemetry.DefaultDBTracingConfig()
		tracingCfg.Enabled = true
		tracingCfg.LogFullSQL = cfg.Telemetry.DBLogFullSQL
		tracingCfg.DBName = cfg.Database.DBName
		if cfg.Telemetry.DBSlowQueryThresh > 0 {
			tracingCfg.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
		}
		if err := telemetry.NewDBTracingPlugin(tracingCfg, log).Register(db.DB); err != nil {
			return err
		}
	}
	log.Info("Database connected successfully")

	idempotency, redisClient := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
	).CreateStore(ctx)
	if redisClient != nil {
		defer func() {
			_ = redisClient.Close()
		}()
	}

	promMetrics := metrics.New(metrics.DefaultConfig(cfg.Telemetry.ServiceName))
	guards := resilience.NewGuards(resilience.Settings{
		MaxFailures: cfg.Consignment.BreakerMaxFailures,
		Timeout:     cfg.Consignment.BreakerTimeout,
	}, log, promMetrics.OnBreakerStateChange)
	for _, b := range guards.All() {
		promMetrics.SetBreakerState(b.Name(), b.State())
	}

	businessMetrics, err := telemetry.NewConsignmentMetrics(mp.Meter("consignment"), log)
	if err != nil {
		return err
	}
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewMetricsHandler(businessMetrics))
	if err := eventBus.Start(ctx); err != nil {
		return err
	}

	policy, err := consignment.ParseOverpaymentPolicy(cfg.Consignment.OverpaymentPolicy)
	if err != nil {
		return err
	}
	opts := consignmentapp.Options{
		OverpaymentPolicy: policy,
		MaxRetries:        cfg.Consignment.MaxRetries,
		RetryBackoff:      cfg.Consignment.RetryBackoff,
		LockTTL:           cfg.Consignment.LockTTL,
		IdempotencyTTL:    cfg.Consignment.IdempotencyTTL,
		OnConflictRetry:   businessMetrics.RecordConflictRetry,
	}

	scope := persistence.NewGormTransactionScope(db.DB, persistence.WithGuards(guards))
	batchRepo := persistence.NewGormBatchRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	balanceRepo := persistence.NewGormSupplierBalanceRepository(db.DB)
	suppliers := resilience.GuardSupplierDirectory(persistence.NewGormSupplierDirectory(db.DB), guards.Suppliers)
	products := resilience.GuardProductStockPool(persistence.NewGormProductStockPool(db.DB), guards.Products)

	batchService := consignmentapp.NewBatchService(scope, batchRepo, suppliers, products, log, opts)
	batchService.SetEventPublisher(eventBus)
	batchService.SetIdempotencyStore(idempotency)

	locker := newSupplierLocker(cfg.Consignment, redisClient, log)
	paymentService := consignmentapp.NewPaymentService(scope, paymentRepo, suppliers, locker, log, opts)
	paymentService.SetEventPublisher(eventBus)

	summaryService := consignmentapp.NewSummaryService(scope, batchRepo, balanceRepo, log)

	statementService := consignmentapp.NewStatementService(batchRepo, paymentRepo, balanceRepo, suppliers,
		export.NewXLSXStatementRenderer(), log)
	var statementStore *storage.S3ObjectStorage
	if cfg.Storage.Enabled {
		statementStore, err = storage.NewS3ObjectStorage(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			return err
		}
		if err := statementStore.EnsureBucket(ctx); err != nil {
			log.Warn("Statement bucket is not reachable yet", zap.String("bucket", statementStore.Bucket()), zap.Error(err))
		}
		statementService.SetObjectStorage(statementStore)
	}

	var (
		reconciler *scheduler.Scheduler
		trigger    *scheduler.Trigger
	)
	if cfg.Consignment.ReconcileEnabled {
		schedCfg := scheduler.DefaultConfig()
		schedCfg.Workers = cfg.Consignment.ReconcileWorkers
		reconciler, err = scheduler.NewScheduler(schedCfg,
			scheduler.NewReconcileExecutor(summaryService, locker, cfg.Consignment.LockTTL, log), log)
		if err != nil {
			return err
		}
		if err := reconciler.Start(ctx); err != nil {
			return err
		}
		trigger = scheduler.NewTrigger(cfg.Consignment.ReconcileInterval, reconciler, batchRepo, log)
		if err := trigger.Start(ctx); err != nil {
			return err
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT)
	authCfg := middleware.DefaultJWTConfig(jwtService)
	authCfg.Logger = log
	if redisClient != nil {
		authCfg.TokenBlacklist = auth.NewRedisTokenBlacklist(redisClient, "")
	}

	system := handler.NewSystemHandler(cfg.App.Version).
		AddCheck("database", func(context.Context) error { return db.Ping() }).
		AddCheck("database_pool", func(context.Context) error { return db.CheckPool() })
	if redisClient != nil {
		system.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	if statementStore != nil {
		system.AddCheck("storage", statementStore.Ping)
	}
	for _, b := range guards.All() {
		system.AddCircuits(b)
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine, err := router.NewEngine(router.EngineConfig{
		Logger: log,
		HTTP:   cfg.HTTP,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
		Metrics: promMetrics,
		System:  system,
		Auth:    middleware.JWTAuthMiddlewareWithConfig(authCfg),
	},
		router.ConsignmentRoutes(handler.NewConsignmentHandler(batchService, paymentService, summaryService)),
		router.StatementRoutes(handler.NewStatementHandler(statementService)),
		router.BatchImportRoutes(handler.NewBatchImportHandler(consignmentapp.NewBatchImportService(batchService, log))),
	)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return err
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if trigger != nil {
		_ = trigger.Stop(shutdownCtx)
		if err := reconciler.Stop(shutdownCtx); err != nil {
			log.Warn("Reconciliation scheduler did not stop cleanly", zap.Error(err))
		}
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Warn("Event bus did not drain", zap.Error(err))
	}
	for name, shutdown := range map[string]func(context.Context) error{
		"tracer": tp.Shutdown,
		"meter":  mp.Shutdown,
		"logger": lp.Shutdown,
	} {
		if err := shutdown(shutdownCtx); err != nil {
			baseLog.Warn("Telemetry shutdown failed", zap.String("provider", name), zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
	return nil
}

// newSupplierLocker picks the payment lock: Redis when a client is up,
// otherwise a process-local lock. Disabled locking leaves only optimistic
// version checks.
func newSupplierLocker(cfg config.ConsignmentConfig, client *redis.Client, log *zap.Logger) consignmentapp.SupplierLocker {
	if !cfg.LockEnabled {
		log.Warn("Supplier payment lock disabled")
		return nil
	}
	if client == nil {
		return lock.NewInMemorySupplierLocker(cfg.LockTTL)
	}
	return lock.NewRedisSupplierLocker(client,
		lock.WithRetry(cfg.RetryBackoff, 20),
		lock.WithLogger(log),
	)
}
