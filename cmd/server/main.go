package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/craftshop/backend/internal/application/ordersync"
	"github.com/craftshop/backend/internal/domain/integration"
	"github.com/craftshop/backend/internal/infrastructure/cache"
	"github.com/craftshop/backend/internal/infrastructure/config"
	"github.com/craftshop/backend/internal/infrastructure/logger"
	"github.com/craftshop/backend/internal/infrastructure/marketplace"
	"github.com/craftshop/backend/internal/infrastructure/persistence"
	"github.com/craftshop/backend/internal/infrastructure/remotestore"
	"github.com/craftshop/backend/internal/infrastructure/scheduler"
	"github.com/craftshop/backend/internal/infrastructure/telemetry"
	"github.com/craftshop/backend/internal/interfaces/http/handler"
	"github.com/craftshop/backend/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, log, gormlogger.Warn)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()
	if err := db.Migrate(); err != nil {
		log.Fatal("failed to migrate schema", zap.Error(err))
	}

	// Cache: Redis when configured, in-memory otherwise
	var syncCache integration.Cache
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer func() { _ = redisCache.Close() }()
		syncCache = redisCache
	} else {
		memCache := cache.NewMemoryCache()
		defer memCache.Close()
		syncCache = memCache
	}

	// Telemetry
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = meterProvider.Shutdown(shutdownCtx)
	}()

	// Marketplace sync pipeline
	httpClient := &http.Client{Timeout: cfg.Sync.RequestTimeout}
	tokens := marketplace.NewTokenManager(httpClient, log)
	registry := marketplace.NewRegistry(tokens, httpClient, log, marketplace.RegistryConfig{
		EtsyBaseURL:    cfg.Marketplace.EtsyBaseURL,
		EbayBaseURL:    cfg.Marketplace.EbayBaseURL,
		AmazonBaseURL:  cfg.Marketplace.AmazonBaseURL,
		ShopifyBaseURL: cfg.Marketplace.ShopifyBaseURL,
	})

	// Identity mappings live locally by default; the hosted deployment
	// keeps them behind the console API.
	var mappingStore integration.MappingStore = persistence.NewGormMappingStore(db.DB)
	if cfg.RemoteStore.BaseURL != "" {
		mappingStore = remotestore.NewMappingClient(cfg.RemoteStore.BaseURL, log)
	}
	customerDir := persistence.NewGormCustomerDirectory(db.DB)
	mapper := ordersync.NewIdentityMapper(mappingStore, customerDir, syncCache, log)
	processor := ordersync.NewProcessor(mapper, log, cfg.Sync.Concurrency)
	syncService := ordersync.NewService(registry, syncCache, mapper, processor, log)
	if cfg.Telemetry.Enabled {
		syncMetrics, err := telemetry.NewSyncMetrics(meterProvider.Meter(), log)
		if err != nil {
			log.Fatal("failed to create sync metrics", zap.Error(err))
		}
		syncService = syncService.WithRecorder(syncMetrics)
	}

	// Background sync over stored connections
	connStore := persistence.NewGormConnectionStore(db.DB)
	syncScheduler := scheduler.NewSyncScheduler(syncService, connStore, scheduler.SyncSchedulerConfig{
		Interval: cfg.Sync.Interval,
	}, log)
	syncScheduler.Start(ctx)
	defer syncScheduler.Stop()

	// HTTP server
	engine := router.New(cfg, log, router.Dependencies{
		Integration: handler.NewIntegrationHandler(syncService, log),
	})
	server := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("env", cfg.App.Env),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
