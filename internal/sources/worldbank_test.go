package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demandcast/demandcast/internal/fetcher"
)

func TestWorldBank_PaginatesAndSkipsNullYears(t *testing.T) {
	pages := map[int]string{
		1: `[{"page": 1, "pages": 2, "per_page": 1000},
			[{"date": "2022", "value": 27275.4},
			 {"date": "2021", "value": null}]]`,
		2: `[{"page": 2, "pages": 2, "per_page": 1000},
			[{"date": "2020", "value": 24205.7}]]`,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/country/AR/indicator/NY.GDP.PCAP.PP.CD", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		fmt.Fprint(w, pages[page])
	}))
	defer server.Close()

	client := NewWorldBank(fetcher.New(0)).WithBaseURL(server.URL)
	observations, err := client.Indicator(context.Background(), "AR", IndicatorGDPPerCapitaPPP)
	require.NoError(t, err)

	require.Len(t, observations, 2)
	assert.Equal(t, 2020, observations[0].Year)
	assert.Equal(t, 2022, observations[1].Year)
	assert.True(t, observations[1].Value.Equal(decimal.RequireFromString("27275.4")))
}

func TestWorldBank_UnexpectedEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"message": "invalid indicator"}]`)
	}))
	defer server.Close()

	client := NewWorldBank(fetcher.New(0)).WithBaseURL(server.URL)
	_, err := client.Indicator(context.Background(), "AR", "NOT.A.CODE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected response shape")
}

func TestWorldBank_PreservesDecimalPrecision(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"pages": 1}, [{"date": "2019", "value": 10197.3602145892}]]`)
	}))
	defer server.Close()

	client := NewWorldBank(fetcher.New(0)).WithBaseURL(server.URL)
	observations, err := client.Indicator(context.Background(), "AR", IndicatorGDPPerCapitaPPP)
	require.NoError(t, err)
	require.Len(t, observations, 1)
	assert.Equal(t, "10197.3602145892", observations[0].Value.String())
}
