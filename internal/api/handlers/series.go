package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/demandcast/demandcast/internal/entities"
	"github.com/demandcast/demandcast/internal/models"
	"github.com/demandcast/demandcast/internal/storage"
	"github.com/demandcast/demandcast/internal/timeseries"
	"github.com/demandcast/demandcast/internal/utils"
)

// SeriesReader is the slice of the series repository the handler needs.
type SeriesReader interface {
	QueryYear(ctx context.Context, entityCode, quantity string, year int) ([]timeseries.FrameRow, error)
	LatestYear(ctx context.Context, entityCode, quantity string) (int, error)
}

// SeriesCache is the read-through cache in front of the repository.
type SeriesCache interface {
	Get(ctx context.Context, entityCode, quantity string, year int) ([]timeseries.FrameRow, bool, error)
	Set(ctx context.Context, entityCode, quantity string, year int, rows []timeseries.FrameRow) error
}

// SeriesHandler serves harmonized series by entity, quantity and year.
type SeriesHandler struct {
	registry *entities.Registry
	store    SeriesReader
	cache    SeriesCache
	logger   *logrus.Logger
}

// NewSeriesHandler creates a SeriesHandler. The cache may be nil, in
// which case every request hits the repository.
func NewSeriesHandler(registry *entities.Registry, store SeriesReader, cache SeriesCache, logger *logrus.Logger) *SeriesHandler {
	return &SeriesHandler{
		registry: registry,
		store:    store,
		cache:    cache,
		logger:   logger,
	}
}

// GetSeries returns one harmonized (entity, quantity, year). The year
// defaults to the most recent stored year for the entity.
func (h *SeriesHandler) GetSeries(c *gin.Context) {
	code := c.Param("code")
	if _, _, err := h.registry.Lookup(code); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
		return
	}

	quantity, year, err := h.seriesParams(c, code)
	if err != nil {
		var validationErr *utils.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve series year"})
		}
		return
	}

	ctx := c.Request.Context()
	if h.cache != nil {
		rows, hit, err := h.cache.Get(ctx, code, quantity, year)
		if err != nil {
			h.logger.WithError(err).Warn("Series cache lookup failed")
		} else if hit {
			c.JSON(http.StatusOK, models.SeriesResponse{
				EntityCode: code,
				Quantity:   quantity,
				Year:       year,
				Rows:       rows,
				Cached:     true,
			})
			return
		}
	}

	rows, err := h.store.QueryYear(ctx, code, quantity, year)
	if err != nil {
		h.logger.WithError(err).Error("Series query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query series"})
		return
	}
	if len(rows) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No data stored for this entity, quantity and year"})
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, code, quantity, year, rows); err != nil {
			h.logger.WithError(err).Warn("Failed to populate series cache")
		}
	}

	c.JSON(http.StatusOK, models.SeriesResponse{
		EntityCode: code,
		Quantity:   quantity,
		Year:       year,
		Rows:       rows,
		Cached:     false,
	})
}

func (h *SeriesHandler) seriesParams(c *gin.Context, code string) (string, int, error) {
	quantity := c.DefaultQuery("quantity", storage.ElectricityDemand.Key)
	if quantity != storage.ElectricityDemand.Key && quantity != storage.Temperature.Key {
		return "", 0, utils.NewValidationErrorf("unknown quantity %q", quantity)
	}

	rawYear := c.Query("year")
	if rawYear == "" {
		year, err := h.store.LatestYear(c.Request.Context(), code, quantity)
		if err != nil {
			return "", 0, err
		}
		if year == 0 {
			return "", 0, utils.NewValidationError("no stored years for this entity; pass an explicit year")
		}
		return quantity, year, nil
	}

	year, err := strconv.Atoi(rawYear)
	if err != nil || year < 1900 || year > 2200 {
		return "", 0, utils.NewValidationErrorf("invalid year %q", rawYear)
	}
	return quantity, year, nil
}
