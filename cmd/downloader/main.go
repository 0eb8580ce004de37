// Command downloader runs a one-off retrieval to CSV files, without
// Postgres or Redis. It exits non-zero when any task failed so batch
// jobs can detect partial runs.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/demandcast/demandcast/internal/config"
	"github.com/demandcast/demandcast/internal/entities"
	"github.com/demandcast/demandcast/internal/fetcher"
	"github.com/demandcast/demandcast/internal/logging"
	"github.com/demandcast/demandcast/internal/retrieval"
	"github.com/demandcast/demandcast/internal/services"
	"github.com/demandcast/demandcast/internal/sources"
	"github.com/demandcast/demandcast/internal/storage"
)

func main() {
	source := flag.String("source", "", "data source to retrieve (ENTSOE, IESO, CAMMESA)")
	code := flag.String("code", "", "entity code, empty for all entities of the source")
	year := flag.Int("year", 0, "year to retrieve, 0 for the full availability window")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.Environment)

	if *source == "" {
		logger.Fatal("The -source flag is required")
	}

	registry, err := entities.Load(cfg.Sources.Directory)
	if err != nil {
		logger.Fatalf("Failed to load entity registry: %v", err)
	}

	timeout, requestDelay, retryDelay, _, err := cfg.Retrieval.Durations()
	if err != nil {
		logger.Fatalf("Invalid retrieval configuration: %v", err)
	}

	httpFetcher := fetcher.New(timeout)
	adapters, err := buildAdapters(httpFetcher, cfg.Sources.EntsoeToken)
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

	// No store and no cache: this command only writes CSV files.
	retrievalService := services.NewRetrievalService(
		registry,
		orchestrator,
		adapters,
		writer,
		nil,
		nil,
		services.RetrievalServiceConfig{Workers: cfg.Retrieval.Workers},
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run, err := retrievalService.Run(ctx, *source, *code, *year)
	if err != nil {
		logger.Fatalf("Retrieval run failed: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"run_id":    run.ID,
		"tasks":     run.Tasks,
		"succeeded": run.Succeeded,
		"failed":    len(run.Failures),
	}).Info("Retrieval run finished")

	if len(run.Failures) > 0 {
		for _, failure := range run.Failures {
			logger.WithFields(logrus.Fields{
				"entity": failure.EntityCode,
				"window": failure.Window,
			}).Error(failure.Error)
		}
		os.Exit(1)
	}
}

func buildAdapters(f *fetcher.Fetcher, entsoeToken string) (map[string][]services.SourceAdapter, error) {
	adapters := make(map[string][]services.SourceAdapter)

	if entsoeToken != "" {
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
