package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demandcast/demandcast/internal/fetcher"
	"github.com/demandcast/demandcast/internal/retrieval"
)

func window(start, end time.Time) retrieval.Window {
	return retrieval.Window{Start: start, End: end}
}

func TestENTSOE_FetchShiftsToIntervalEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "A65", r.URL.Query().Get("documentType"))
		assert.Equal(t, "A16", r.URL.Query().Get("processType"))
		assert.Equal(t, "10YFR-RTE------C", r.URL.Query().Get("outBiddingZone_Domain"))
		assert.Equal(t, "secret", r.URL.Query().Get("securityToken"))
		assert.Equal(t, "202101010000", r.URL.Query().Get("periodStart"))

		fmt.Fprint(w, `{"load": [
			{"timestamp": "2021-01-01T00:00:00Z", "quantity": 100},
			{"timestamp": "2021-01-01T01:00:00Z", "quantity": 110},
			{"timestamp": "2021-01-01T02:00:00Z", "quantity": 120}
		]}`)
	}))
	defer server.Close()

	adapter := NewENTSOE(fetcher.New(0), "secret").WithBaseURL(server.URL)
	w := window(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC))

	series, err := adapter.Fetch(context.Background(), w, "FR")
	require.NoError(t, err)
	require.Equal(t, 3, series.Len())
	// Interval-beginning stamps move to interval end.
	assert.True(t, series.At(0).Time.Equal(time.Date(2021, 1, 1, 1, 0, 0, 0, time.UTC)))
	assert.Equal(t, 100.0, series.At(0).Value)
	assert.True(t, series.At(2).Time.Equal(time.Date(2021, 1, 1, 3, 0, 0, 0, time.UTC)))
}

func TestENTSOE_EmptyLoadIsNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"load": []}`)
	}))
	defer server.Close()

	adapter := NewENTSOE(fetcher.New(0), "secret").WithBaseURL(server.URL)
	w := window(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC))

	_, err := adapter.Fetch(context.Background(), w, "FR")
	assert.True(t, errors.Is(err, retrieval.ErrNoData))
}

func TestENTSOE_RequiresTokenAndKnownZone(t *testing.T) {
	w := window(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC))

	_, err := NewENTSOE(fetcher.New(0), "").Fetch(context.Background(), w, "FR")
	assert.ErrorContains(t, err, "token")

	_, err = NewENTSOE(fetcher.New(0), "secret").Fetch(context.Background(), w, "ZZ")
	assert.ErrorContains(t, err, "bidding zone")
}

func TestENTSOE_SpanIsOneYear(t *testing.T) {
	adapter := NewENTSOE(fetcher.New(0), "secret")
	windows, err := retrieval.Tile(
		time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		adapter.Span(),
	)
	require.NoError(t, err)
	assert.Len(t, windows, 3)
}
