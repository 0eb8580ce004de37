// Package models holds the request, response and report types shared by
// the HTTP API and the services.
package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/demandcast/demandcast/internal/timeseries"
)

// RetrievalFailureRecord is one failed (entity, window) task of a
// retrieval run.
type RetrievalFailureRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	Source     string    `json:"source"`
	EntityCode string    `json:"entity_code"`
	Window     string    `json:"window"`
	Error      string    `json:"error"`
}

// RetrievalRun is the report of one retrieval run across entities. A
// run finishes even when individual tasks fail; the failures are
// collected here.
type RetrievalRun struct {
	ID         string                   `json:"id"`
	Source     string                   `json:"source"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at"`
	Tasks      int                      `json:"tasks"`
	Succeeded  int                      `json:"succeeded"`
	Failures   []RetrievalFailureRecord `json:"failures"`
}

// EntityResponse describes one entity of the registry.
type EntityResponse struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Source    string `json:"source"`
	TimeZone  string `json:"timezone"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// SeriesResponse carries one harmonized (entity, quantity, year).
type SeriesResponse struct {
	EntityCode string                `json:"entity_code"`
	Quantity   string                `json:"quantity"`
	Year       int                   `json:"year"`
	Rows       []timeseries.FrameRow `json:"rows"`
	Cached     bool                  `json:"cached"`
}

// AnnualIndicator is one year of a World Bank indicator for an entity.
type AnnualIndicator struct {
	EntityCode string          `json:"entity_code"`
	Indicator  string          `json:"indicator"`
	Year       int             `json:"year"`
	Value      decimal.Decimal `json:"value"`
}

// PredictRequest is the feature vector of one prediction, in the order
// the model was trained with.
type PredictRequest struct {
	Features []float64 `json:"features" binding:"required"`
}

// PredictResponse is a scalar demand prediction in MW.
type PredictResponse struct {
	PredictionMW float64 `json:"prediction_mw"`
	Trees        int     `json:"trees"`
}

// RunRetrievalRequest triggers a retrieval run over one source.
type RunRetrievalRequest struct {
	Source string `json:"source" binding:"required"`
	Code   string `json:"code"`
	Year   int    `json:"year"`
}
