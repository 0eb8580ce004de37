package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/demandcast/demandcast/internal/entities"
	"github.com/demandcast/demandcast/internal/models"
	"github.com/demandcast/demandcast/internal/services"
	"github.com/demandcast/demandcast/internal/sources"
)

// indicatorNames maps the API's indicator names to World Bank codes.
var indicatorNames = map[string]string{
	"gdp_per_capita":     sources.IndicatorGDPPerCapitaPPP,
	"electricity_use":    sources.IndicatorElectricityUse,
	"population_density": sources.IndicatorPopulationDensity,
}

// IndicatorClient retrieves annual indicator values for a country.
type IndicatorClient interface {
	Indicator(ctx context.Context, countryCode, indicator string) ([]sources.AnnualObservation, error)
}

// IndicatorHandler serves annual World Bank indicators for entities.
type IndicatorHandler struct {
	registry *entities.Registry
	client   IndicatorClient
	features *services.FeatureService
	logger   *logrus.Logger
}

// NewIndicatorHandler creates an IndicatorHandler.
func NewIndicatorHandler(registry *entities.Registry, client IndicatorClient, features *services.FeatureService, logger *logrus.Logger) *IndicatorHandler {
	return &IndicatorHandler{
		registry: registry,
		client:   client,
		features: features,
		logger:   logger,
	}
}

// GetIndicator returns the value of one indicator for an entity's
// country, using the most recent observation at or before the requested
// year. The year defaults to the current year, matching the feature
// layer's fallback for entities whose statistics lag.
func (h *IndicatorHandler) GetIndicator(c *gin.Context) {
	code := c.Param("code")
	if _, _, err := h.registry.Lookup(code); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
		return
	}

	name := c.DefaultQuery("indicator", "gdp_per_capita")
	indicator, ok := indicatorNames[name]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown indicator " + strconv.Quote(name)})
		return
	}

	year := time.Now().Year()
	if raw := c.Query("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid year " + strconv.Quote(raw)})
			return
		}
		year = parsed
	}

	// Subdivisions share their country's statistics.
	countryCode := strings.SplitN(code, "_", 2)[0]

	observations, err := h.client.Indicator(c.Request.Context(), countryCode, indicator)
	if err != nil {
		h.logger.WithError(err).WithField("indicator", indicator).Error("Indicator retrieval failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to retrieve indicator"})
		return
	}

	value, err := h.features.IndicatorForYear(observations, year)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.AnnualIndicator{
		EntityCode: code,
		Indicator:  name,
		Year:       year,
		Value:      value,
	})
}
