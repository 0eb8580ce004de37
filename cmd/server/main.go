package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/demandcast/demandcast/internal/api"
	"github.com/demandcast/demandcast/internal/api/handlers"
	"github.com/demandcast/demandcast/internal/config"
	"github.com/demandcast/demandcast/internal/database"
	"github.com/demandcast/demandcast/internal/entities"
	"github.com/demandcast/demandcast/internal/fetcher"
	"github.com/demandcast/demandcast/internal/logging"
	"github.com/demandcast/demandcast/internal/middleware"
	"github.com/demandcast/demandcast/internal/notify"
	"github.com/demandcast/demandcast/internal/retrieval"
	"github.com/demandcast/demandcast/internal/services"
	"github.com/demandcast/demandcast/internal/sources"
	"github.com/demandcast/demandcast/internal/storage"
	"github.com/demandcast/demandcast/internal/telemetry"
)

func main() {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.Environment)
	logging.Configure(cfg.LogLevel, cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize telemetry: %v", err)
	}

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redis, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	cacheTTL, err := time.ParseDuration(cfg.Redis.CacheTTL)
	if err != nil {
		logger.Fatalf("Invalid cache TTL: %v", err)
	}
	seriesCache := database.NewSeriesCache(redis, cacheTTL)
	seriesRepo := database.NewSeriesRepository(db.Pool)

	registry, err := entities.Load(cfg.Sources.Directory)
	if err != nil {
		logger.Fatalf("Failed to load entity registry: %v", err)
	}

	timeout, requestDelay, retryDelay, schedule, err := cfg.Retrieval.Durations()
	if err != nil {
		logger.Fatalf("Invalid retrieval configuration: %v", err)
	}

	httpFetcher := fetcher.New(timeout)
	adapters, err := buildAdapters(httpFetcher, cfg.Sources.EntsoeToken, logger)
	if err != nil {
		logger.Fatalf("Failed to build source adapters: %v", err)
	}

	orchestrator := retrieval.NewOrchestrator(retrieval.RetryPolicy{
		MaxAttempts: cfg.Retrieval.MaxRetries,
		Delay:       retryDelay,
	}, requestDelay, logger)

	writer, err := storage.NewWriter(cfg.Storage.OutputDirectory, logger)
	if err != nil {
		logger.Fatalf("Failed to prepare output directory: %v", err)
	}

	retrievalService := services.NewRetrievalService(
		registry,
		orchestrator,
		adapters,
		writer,
		seriesRepo,
		seriesCache,
		services.RetrievalServiceConfig{Workers: cfg.Retrieval.Workers},
		logger,
	)

	prediction, err := services.NewPredictionService(cfg.Model.Path, logger)
	if err != nil {
		// The API stays up without a model; /predict reports 503.
		logger.WithError(err).Warn("Prediction model not loaded")
		prediction = nil
	}

	notifier, err := notify.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize Telegram notifier: %v", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	api.SetupRoutes(router, api.Dependencies{
		Health:     handlers.NewHealthHandler(db, redis, retrievalService),
		Entities:   handlers.NewEntityHandler(registry),
		Series:     handlers.NewSeriesHandler(registry, seriesRepo, seriesCache, logger),
		Indicators: handlers.NewIndicatorHandler(registry, sources.NewWorldBank(httpFetcher), services.NewFeatureService(), logger),
		Predict:    handlers.NewPredictHandler(prediction),
		Retrieval:  handlers.NewRetrievalHandler(retrievalService, notifier, logger),
		Auth:       middleware.NewAuthMiddleware(cfg.Security.JWTSecret),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runScheduler(ctx, retrievalService, notifier, adapters, schedule, logger)
	}()

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}
	wg.Wait()

	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Errorf("Telemetry shutdown failed: %v", err)
	}

	logger.Info("Server exited")
}

// buildAdapters registers every configured portal adapter under its
// source name. CAMMESA contributes both demand and temperature from the
// same endpoint.
func buildAdapters(f *fetcher.Fetcher, entsoeToken string, logger *logrus.Logger) (map[string][]services.SourceAdapter, error) {
	adapters := make(map[string][]services.SourceAdapter)

	if entsoeToken == "" {
		logger.Warn("ENTSOE_API_KEY not set, ENTSOE retrieval disabled")
	} else {
		entsoe := sources.NewENTSOE(f, entsoeToken)
		adapters[entsoe.Name()] = []services.SourceAdapter{
			{Adapter: entsoe, Quantity: storage.ElectricityDemand},
		}
	}

	ieso, err := sources.NewIESO(f)
	if err != nil {
		return nil, err
	}
	adapters[ieso.Name()] = []services.SourceAdapter{
		{Adapter: ieso, Quantity: storage.ElectricityDemand},
	}

	cammesaDemand, err := sources.NewCAMMESA(f, sources.QuantityDemand)
	if err != nil {
		return nil, err
	}
	cammesaTemperature, err := sources.NewCAMMESA(f, sources.QuantityTemperature)
	if err != nil {
		return nil, err
	}
	adapters[cammesaDemand.Name()] = []services.SourceAdapter{
		{Adapter: cammesaDemand, Quantity: storage.ElectricityDemand},
		{Adapter: cammesaTemperature, Quantity: storage.Temperature},
	}

	return adapters, nil
}

// runScheduler triggers a full retrieval run over every source on a
// fixed interval until the context is cancelled.
func runScheduler(
	ctx context.Context,
	retrievalService *services.RetrievalService,
	notifier *notify.Notifier,
	adapters map[string][]services.SourceAdapter,
	schedule time.Duration,
	logger *logrus.Logger,
) {
	ticker := time.NewTicker(schedule)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for source := range adapters {
			run, err := retrievalService.Run(ctx, source, "", 0)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.WithError(err).WithField("source", source).Error("Scheduled retrieval failed")
				continue
			}
			if err := notifier.NotifyRun(ctx, run); err != nil {
				logger.WithError(err).Warn("Failed to send run notification")
			}
		}
	}
}
