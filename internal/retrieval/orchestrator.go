package retrieval

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/demandcast/demandcast/internal/timeseries"
)

// Adapter is the capability a source module exposes to the orchestrator:
// its natural request span, its retry budget, and a fetch for one window.
// Fetching the same window twice must be safe.
type Adapter interface {
	Name() string
	Span() Span
	MaxAttempts() int
	Fetch(ctx context.Context, w Window, code string) (timeseries.Series, error)
}

// Orchestrator drives a source adapter across a full target range: it
// tiles the range into windows the source accepts, retries each window on
// transient failures, and concatenates the results in ascending window
// order. Observation order within a window is preserved as returned by
// the adapter; the harmonizer sorts later.
type Orchestrator struct {
	policy RetryPolicy
	// requestDelay is a fixed politeness pause between consecutive window
	// requests.
	requestDelay time.Duration
	logger       *logrus.Logger
}

// NewOrchestrator creates an orchestrator with the given base retry
// policy and inter-request delay. A nil logger falls back to the logrus
// standard logger.
func NewOrchestrator(policy RetryPolicy, requestDelay time.Duration, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Orchestrator{
		policy:       policy,
		requestDelay: requestDelay,
		logger:       logger,
	}
}

// Retrieve fetches [t0, t1) for one entity code from the adapter. On a
// window failure the already-fetched observations are returned alongside
// a *RetrievalFailure naming the failed window; earlier windows' results
// are never discarded. Windows the source reports as empty contribute
// nothing and are not failures.
func (o *Orchestrator) Retrieve(ctx context.Context, adapter Adapter, code string, t0, t1 time.Time) (timeseries.Series, error) {
	windows, err := Tile(t0, t1, adapter.Span())
	if err != nil {
		return timeseries.Series{}, err
	}

	policy := o.policy
	if attempts := adapter.MaxAttempts(); attempts > 0 {
		policy.MaxAttempts = attempts
	}

	log := o.logger.WithFields(logrus.Fields{
		"source": adapter.Name(),
		"code":   code,
	})
	log.WithField("windows", len(windows)).Info("Starting retrieval")

	var merged timeseries.Series
	for i, window := range windows {
		if err := ctx.Err(); err != nil {
			return merged, err
		}

		series, err := policy.run(ctx, func() (timeseries.Series, error) {
			return adapter.Fetch(ctx, window, code)
		})
		if err != nil {
			if errors.Is(err, ErrNoData) {
				log.WithField("window", window.String()).Info("Source reported no data for window")
				continue
			}
			return merged, &RetrievalFailure{Source: adapter.Name(), Window: window, Err: err}
		}

		merged = merged.Append(series)

		if o.requestDelay > 0 && i < len(windows)-1 {
			select {
			case <-ctx.Done():
				return merged, ctx.Err()
			case <-time.After(o.requestDelay):
			}
		}
	}

	log.WithField("observations", merged.Len()).Info("Retrieval finished")
	return merged, nil
}
