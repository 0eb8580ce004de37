package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/demandcast/demandcast/internal/entities"
)

const registryYAML = `entities:
  - code: FR
    name: france
    timezone: Europe/Paris
    start_date: "2015-01-01"
    end_date: "2024-01-01"
  - code: DE
    name: germany
    timezone: Europe/Berlin
    start_date: "2015-01-01"
    end_date: "2024-01-01"
`

func testRegistry(t *testing.T) *entities.Registry {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "entsoe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(registryYAML), 0o644))

	registry, err := entities.Load(dir)
	require.NoError(t, err)
	return registry
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func getRequest(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}
