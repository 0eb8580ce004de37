package retrieval

import (
	"context"
	"errors"
	"fmt"

	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/demandcast/demandcast/internal/fetcher"
	"github.com/demandcast/demandcast/internal/timeseries"
)

// ErrNoData signals that a source explicitly reported no data for the
// requested window. It is not a failure: the orchestrator records an
// empty contribution and continues.
var ErrNoData = errors.New("no data available for the requested window")

// RetrievalFailure is returned when a window's fetch attempts are
// exhausted. It identifies the failed window so callers can log and skip
// without losing sibling windows' results.
type RetrievalFailure struct {
	Source string
	Window Window
	Err    error
}

func (e *RetrievalFailure) Error() string {
	return fmt.Sprintf("retrieval from %s failed for window %s: %v", e.Source, e.Window, e.Err)
}

func (e *RetrievalFailure) Unwrap() error {
	return e.Err
}

// RetryPolicy bounds the per-window retry loop. Each source keeps its own
// attempt count (observed values 2-5) with a fixed delay between
// attempts.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	// Transient decides whether an error is worth retrying. Nil means
	// fetcher.IsTransient.
	Transient func(error) bool
}

// DefaultRetryPolicy matches the most common source configuration.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       5 * time.Second,
	}
}

// run executes op, retrying the same window on transient failures with a
// constant delay until the attempt budget is exhausted. No-data and
// permanent errors are returned immediately.
func (p RetryPolicy) run(ctx context.Context, op func() (timeseries.Series, error)) (timeseries.Series, error) {
	transient := p.Transient
	if transient == nil {
		transient = fetcher.IsTransient
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	return backoff.Retry(ctx, func() (timeseries.Series, error) {
		series, err := op()
		if err == nil {
			return series, nil
		}
		if errors.Is(err, ErrNoData) || !transient(err) {
			return timeseries.Series{}, backoff.Permanent(err)
		}
		return timeseries.Series{}, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Delay)),
		backoff.WithMaxTries(uint(attempts)),
	)
}
