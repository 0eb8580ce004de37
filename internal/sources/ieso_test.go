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

const iesoCSV = `\\Created at 2021-01-02 06:00:00
\\IESO public demand report
\\
Date,Hour,Market Demand,Ontario Demand
2021-01-01,1,16332,14456
2021-01-01,2,16103,14233
2021-01-01,3,15912,14050
`

func TestIESO_ParsesYearlyReport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/PUB_Demand_2021.csv", r.URL.Path)
		fmt.Fprint(w, iesoCSV)
	}))
	defer server.Close()

	adapter, err := NewIESO(fetcher.New(0))
	require.NoError(t, err)
	adapter.WithBaseURL(server.URL)

	w := window(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC))
	series, err := adapter.Fetch(context.Background(), w, "CA_ON")
	require.NoError(t, err)
	require.Equal(t, 3, series.Len())

	toronto, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)
	// Hour-ending 1 is the interval starting at local midnight.
	assert.True(t, series.At(0).Time.Equal(time.Date(2021, 1, 1, 0, 0, 0, 0, toronto)))
	assert.Equal(t, 14456.0, series.At(0).Value)
	assert.True(t, series.At(2).Time.Equal(time.Date(2021, 1, 1, 2, 0, 0, 0, toronto)))
	assert.Equal(t, toronto.String(), series.Location().String())
}

func TestIESO_WindowZoneDoesNotChangeReportYear(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		fmt.Fprint(w, iesoCSV)
	}))
	defer server.Close()

	adapter, err := NewIESO(fetcher.New(0))
	require.NoError(t, err)
	adapter.WithBaseURL(server.URL)

	toronto, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)

	// The same calendar year expressed in UTC and in the local zone must
	// hit the same report: 2021-01-01 00:00 UTC is still 2020 in Toronto,
	// but the window covers 2021.
	windows := []retrieval.Window{
		window(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)),
		window(time.Date(2021, 1, 1, 0, 0, 0, 0, toronto), time.Date(2022, 1, 1, 0, 0, 0, 0, toronto)),
	}
	for _, w := range windows {
		_, err := adapter.Fetch(context.Background(), w, "CA_ON")
		require.NoError(t, err)
	}

	require.Len(t, paths, 2)
	assert.Equal(t, "/PUB_Demand_2021.csv", paths[0])
	assert.Equal(t, paths[0], paths[1])
}

func TestIESO_MissingReportIsNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	adapter, err := NewIESO(fetcher.New(0))
	require.NoError(t, err)
	adapter.WithBaseURL(server.URL)

	w := window(time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2032, 1, 1, 0, 0, 0, 0, time.UTC))
	_, err = adapter.Fetch(context.Background(), w, "CA_ON")
	assert.True(t, errors.Is(err, retrieval.ErrNoData))
}

func TestIESO_MissingColumnIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "Date,Hour,Market Demand\n2021-01-01,1,16332\n")
	}))
	defer server.Close()

	adapter, err := NewIESO(fetcher.New(0))
	require.NoError(t, err)
	adapter.WithBaseURL(server.URL)

	w := window(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC))
	_, err = adapter.Fetch(context.Background(), w, "CA_ON")
	require.Error(t, err)
	assert.ErrorContains(t, err, "Ontario Demand")
	assert.False(t, fetcher.IsTransient(err))
}
