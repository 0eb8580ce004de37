// Package services wires retrieval, harmonization, persistence and
// prediction into the operations the binaries expose.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/demandcast/demandcast/internal/entities"
	"github.com/demandcast/demandcast/internal/models"
	"github.com/demandcast/demandcast/internal/retrieval"
	"github.com/demandcast/demandcast/internal/storage"
	"github.com/demandcast/demandcast/internal/timeseries"
)

// SeriesStore persists harmonized rows. *database.SeriesRepository is
// the production implementation.
type SeriesStore interface {
	UpsertRows(ctx context.Context, entityCode, quantity string, rows []timeseries.FrameRow) error
}

// SeriesCacheInvalidator drops cached years after a run rewrites them.
type SeriesCacheInvalidator interface {
	Invalidate(ctx context.Context, entityCode, quantity string, year int) error
}

// SourceAdapter binds a portal adapter to the quantity it yields.
type SourceAdapter struct {
	Adapter  retrieval.Adapter
	Quantity storage.Quantity
}

// RetrievalServiceConfig bounds a retrieval run.
type RetrievalServiceConfig struct {
	Workers int
}

// RetrievalStatus is a snapshot of the service for the health endpoint.
type RetrievalStatus struct {
	Running     bool                 `json:"running"`
	ActiveTasks int                  `json:"active_tasks"`
	LastRun     *models.RetrievalRun `json:"last_run,omitempty"`
}

// RetrievalService drives full retrieval runs: it fans (entity, year)
// tasks out over a bounded worker pool, harmonizes each result, and
// persists it to CSV, Postgres and the cache. A failing task is recorded
// in the run report and never aborts its siblings.
type RetrievalService struct {
	registry     *entities.Registry
	orchestrator *retrieval.Orchestrator
	adapters     map[string][]SourceAdapter
	writer       *storage.Writer
	store        SeriesStore
	cache        SeriesCacheInvalidator
	workers      int
	logger       *logrus.Logger

	mu      sync.Mutex
	running bool
	active  int
	lastRun *models.RetrievalRun
}

// NewRetrievalService creates the service. store and cache may be nil
// for CSV-only use, as in the batch downloader.
func NewRetrievalService(
	registry *entities.Registry,
	orchestrator *retrieval.Orchestrator,
	adapters map[string][]SourceAdapter,
	writer *storage.Writer,
	store SeriesStore,
	cache SeriesCacheInvalidator,
	cfg RetrievalServiceConfig,
	logger *logrus.Logger,
) *RetrievalService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &RetrievalService{
		registry:     registry,
		orchestrator: orchestrator,
		adapters:     adapters,
		writer:       writer,
		store:        store,
		cache:        cache,
		workers:      workers,
		logger:       logger,
	}
}

type retrievalTask struct {
	entity  entities.Entity
	adapter SourceAdapter
	year    int
}

// Run retrieves, harmonizes and persists data for one source. An empty
// code means all entities of the source; a zero year means every year of
// each entity's availability window.
func (s *RetrievalService) Run(ctx context.Context, source, code string, year int) (*models.RetrievalRun, error) {
	adapters, ok := s.adapters[source]
	if !ok {
		return nil, fmt.Errorf("no adapters registered for source %q", source)
	}

	var targets []entities.Entity
	if code != "" {
		entity, err := s.registry.Entity(source, code)
		if err != nil {
			return nil, err
		}
		targets = []entities.Entity{entity}
	} else {
		all, err := s.registry.Entities(source)
		if err != nil {
			return nil, err
		}
		targets = all
	}

	var tasks []retrievalTask
	for _, entity := range targets {
		for _, adapter := range adapters {
			for _, y := range entityYears(entity, year) {
				tasks = append(tasks, retrievalTask{entity: entity, adapter: adapter, year: y})
			}
		}
	}

	run := &models.RetrievalRun{
		ID:        uuid.New().String(),
		Source:    source,
		StartedAt: time.Now().UTC(),
		Tasks:     len(tasks),
	}

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.lastRun = run
		s.mu.Unlock()
	}()

	log := s.logger.WithFields(logrus.Fields{
		"run":    run.ID,
		"source": source,
		"tasks":  len(tasks),
	})
	log.Info("Starting retrieval run")

	queue := make(chan retrievalTask)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				s.mu.Lock()
				s.active++
				s.mu.Unlock()

				err := s.process(ctx, task)

				s.mu.Lock()
				s.active--
				s.mu.Unlock()

				mu.Lock()
				if err != nil {
					run.Failures = append(run.Failures, models.RetrievalFailureRecord{
						Timestamp:  time.Now().UTC(),
						Source:     source,
						EntityCode: task.entity.Code,
						Window:     fmt.Sprintf("%d", task.year),
						Error:      err.Error(),
					})
				} else {
					run.Succeeded++
				}
				mu.Unlock()
			}
		}()
	}

	for _, task := range tasks {
		select {
		case <-ctx.Done():
			// Stop feeding tasks; in-flight work drains below.
		case queue <- task:
			continue
		}
		break
	}
	close(queue)
	wg.Wait()

	run.FinishedAt = time.Now().UTC()
	log.WithFields(logrus.Fields{
		"succeeded": run.Succeeded,
		"failed":    len(run.Failures),
	}).Info("Retrieval run finished")

	if err := ctx.Err(); err != nil {
		return run, err
	}
	return run, nil
}

// process retrieves and persists one (entity, quantity, year) task. A
// window failure with partial results still persists what arrived; the
// failure is reported either way.
func (s *RetrievalService) process(ctx context.Context, task retrievalTask) error {
	t0, t1 := yearBounds(task.entity, task.year)
	if !t0.Before(t1) {
		return fmt.Errorf("year %d is outside the availability window of %s", task.year, task.entity.Code)
	}

	series, retrieveErr := s.orchestrator.Retrieve(ctx, task.adapter.Adapter, task.entity.Code, t0, t1)
	if series.Len() == 0 {
		if retrieveErr != nil {
			return retrieveErr
		}
		return fmt.Errorf("source returned no observations for %s in %d", task.entity.Code, task.year)
	}

	if err := s.persist(ctx, task, series); err != nil {
		return err
	}
	return retrieveErr
}

func (s *RetrievalService) persist(ctx context.Context, task retrievalTask, series timeseries.Series) error {
	dropZeros := task.adapter.Quantity.Key == storage.ElectricityDemand.Key

	cleaned, err := timeseries.Clean(series, timeseries.CleanOptions{DropZeroValues: dropZeros})
	if err != nil {
		return fmt.Errorf("failed to clean series: %w", err)
	}
	if cleaned.Len() == 0 {
		return fmt.Errorf("no valid observations survived cleaning for %s in %d", task.entity.Code, task.year)
	}

	harmonized, err := timeseries.Harmonize(cleaned, task.entity.Location(), timeseries.DefaultHarmonizeOptions())
	if err != nil {
		return fmt.Errorf("failed to harmonize series: %w", err)
	}
	rows, err := timeseries.Frame(harmonized)
	if err != nil {
		return fmt.Errorf("failed to frame series: %w", err)
	}

	if _, err := s.writer.WriteYear(task.adapter.Quantity, task.entity.Code, task.year, rows); err != nil {
		return err
	}
	if s.store != nil {
		if err := s.store.UpsertRows(ctx, task.entity.Code, task.adapter.Quantity.Key, rows); err != nil {
			return err
		}
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, task.entity.Code, task.adapter.Quantity.Key, task.year); err != nil {
			s.logger.WithError(err).Warn("Failed to invalidate series cache")
		}
	}
	return nil
}

// Status reports whether a run is in progress and the last run's report.
func (s *RetrievalService) Status() RetrievalStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return RetrievalStatus{
		Running:     s.running,
		ActiveTasks: s.active,
		LastRun:     s.lastRun,
	}
}

// entityYears lists the years a run covers: the requested one, or every
// year of the entity's availability window.
func entityYears(entity entities.Entity, year int) []int {
	if year != 0 {
		return []int{year}
	}
	var years []int
	for y := entity.StartDate.Year(); y <= entity.EndDate.Year(); y++ {
		if t0, t1 := yearBounds(entity, y); t0.Before(t1) {
			years = append(years, y)
		}
	}
	return years
}

// yearBounds clips a local calendar year to the entity's availability
// window.
func yearBounds(entity entities.Entity, year int) (time.Time, time.Time) {
	loc := entity.Location()
	t0 := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	t1 := time.Date(year+1, time.January, 1, 0, 0, 0, 0, loc)
	if t0.Before(entity.StartDate) {
		t0 = entity.StartDate
	}
	if t1.After(entity.EndDate) {
		t1 = entity.EndDate
	}
	return t0, t1
}
