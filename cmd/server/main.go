package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	allocationapp "github.com/erp/ledger/internal/application/allocation"
	currencyapp "github.com/erp/ledger/internal/application/currency"
	invoicingapp "github.com/erp/ledger/internal/application/invoicing"
	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	paymentapp "github.com/erp/ledger/internal/application/payment"
	postingapp "github.com/erp/ledger/internal/application/posting"
	revaluationapp "github.com/erp/ledger/internal/application/revaluation"
	taxapp "github.com/erp/ledger/internal/application/taxaccrual"
	"github.com/erp/ledger/internal/domain/currency"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/cache"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/erp/ledger/internal/interfaces/http/handler"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/erp/ledger/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting ledger engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// Telemetry providers
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	logsProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := logsProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()

	if logsProvider.IsEnabled() {
		otelCore := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			LoggerProvider: logsProvider,
			Level:          logger.ParseLevel(cfg.Log.Level),
		})
		log = telemetry.NewBridgedLogger(log.Core(), otelCore,
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
		)
		log.Info("Log export to OTEL collector enabled")
	}

	// Continuous profiling
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Profiling.Enabled,
		ServerAddress:     cfg.Profiling.ServerAddress,
		ApplicationName:   cfg.App.Name,
		ProfileCPU:        true,
		ProfileInuseSpace: true,
		ProfileGoroutines: true,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()

	if profiler.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to enable span profiles", zap.Error(err))
		}
	}

	// Database
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	if cfg.App.Env != "production" {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate database schema", zap.Error(err))
		}
	}

	if cfg.Telemetry.Enabled {
		tracingPlugin := telemetry.NewDBTracingPlugin(telemetry.DefaultDBTracingConfig(), log)
		if err := db.DB.Use(tracingPlugin); err != nil {
			log.Warn("Failed to enable database tracing", zap.Error(err))
		}

		dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, telemetry.DefaultDBMetricsConfig(), log)
		if err != nil {
			log.Warn("Failed to register database metrics", zap.Error(err))
		} else if dbMetrics != nil {
			dbMetrics.StartPoolStatsCollection(ctx)
			defer dbMetrics.Stop()
		}
	}

	// Repositories
	accountRepo := persistence.NewGormAccountRepository(db.DB)
	entryRepo := persistence.NewGormJournalEntryRepository(db.DB, cfg.Ledger.EntryNumberPrefix)
	currencyRepo := persistence.NewGormCurrencyRepository(db.DB)
	rateRepo := persistence.NewGormExchangeRateRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	filingRepo := persistence.NewGormFilingRepository(db.DB)
	txManager := persistence.NewGormTransactionManager(db.DB)

	// Base currency: the persisted designation wins over configuration so
	// a running system never silently changes its reporting currency on
	// a config edit.
	baseCode := valueobject.CurrencyCode(cfg.Ledger.BaseCurrency)
	if persisted, err := currencyRepo.BaseCurrency(ctx); err == nil && persisted != "" {
		baseCode = persisted
	}
	registry, err := currency.NewBaseCurrencyRegistry(baseCode)
	if err != nil {
		log.Fatal("Invalid base currency", zap.Error(err))
	}
	log.Info("Base currency configured", zap.String("currency", baseCode.String()))

	rateService := currency.NewRateService(rateRepo, registry)

	roleMapping := make(ledger.RoleMapping, len(cfg.Accounts.Roles))
	for role, code := range cfg.Accounts.Roles {
		roleMapping[ledger.AccountRole(role)] = code
	}
	resolver := ledger.NewAccountResolver(roleMapping, accountRepo)

	// Idempotency store for posting retry deduplication
	storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	idempotencyStore, err := storeFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	idemConfig := shared.IdempotencyConfig{
		Enabled: cfg.Ledger.IdempotencyEnabled,
		TTL:     cfg.Ledger.IdempotencyTTL,
	}

	// Application services
	invoiceService := invoicingapp.NewInvoiceService(invoiceRepo, log)
	postingService := postingapp.NewGLPostingService(
		invoiceRepo, entryRepo, resolver, rateService, txManager, idempotencyStore, idemConfig, log)
	paymentService := paymentapp.NewPaymentService(paymentRepo, log)
	allocationService := allocationapp.NewPaymentAllocationService(
		paymentRepo, invoiceRepo, entryRepo, resolver, rateService, txManager, log)
	currencyService := currencyapp.NewCurrencyService(currencyRepo, rateRepo, rateService, log)
	ledgerService := ledgerapp.NewLedgerService(accountRepo, entryRepo, log)
	taxService := taxapp.NewCorporateTaxService(filingRepo, entryRepo, resolver, rateService, txManager, log)
	revaluationService := revaluationapp.NewRevaluationService(
		invoiceRepo, paymentRepo, entryRepo, resolver, rateService, txManager, log)

	// Business metrics with periodic FX exposure collection
	var ledgerMetrics *telemetry.LedgerMetrics
	if cfg.Telemetry.Enabled {
		exposureProvider := telemetry.NewGormFXExposureProvider(db.DB, baseCode.String())
		ledgerMetrics, err = telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
			Meter:            meterProvider.Meter("ledger"),
			Logger:           log,
			ExposureProvider: exposureProvider,
		})
		if err != nil {
			log.Warn("Failed to initialize ledger metrics", zap.Error(err))
		} else {
			ledgerMetrics.StartPeriodicCollection(ctx, time.Minute)
			defer ledgerMetrics.Stop()
		}
	}

	// HTTP layer
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.App.Name,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.Profiling(cfg.Profiling.Enabled))
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig()))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(handler.NewSystemHandler(db, version)).
		Register(handler.NewLedgerHandler(ledgerService)).
		Register(handler.NewCurrencyHandler(currencyService)).
		Register(handler.NewInvoiceHandler(invoiceService)).
		Register(handler.NewPostingHandler(postingService)).
		Register(handler.NewPaymentHandler(paymentService, allocationService)).
		Register(handler.NewTaxFilingHandler(taxService)).
		Register(handler.NewRevaluationHandler(revaluationService))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
