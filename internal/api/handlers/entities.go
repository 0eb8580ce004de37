// Package handlers implements the HTTP handlers of the public and
// administrative API.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/demandcast/demandcast/internal/entities"
	"github.com/demandcast/demandcast/internal/models"
)

const dateLayout = "2006-01-02"

// EntityHandler serves the entity registry.
type EntityHandler struct {
	registry *entities.Registry
}

// NewEntityHandler creates an EntityHandler over a loaded registry.
func NewEntityHandler(registry *entities.Registry) *EntityHandler {
	return &EntityHandler{
		registry: registry,
	}
}

// ListEntities returns every entity of every source, grouped flat with
// the owning source on each entry.
func (h *EntityHandler) ListEntities(c *gin.Context) {
	var result []models.EntityResponse
	for _, source := range h.registry.Sources() {
		list, err := h.registry.Entities(source)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list entities"})
			return
		}
		for _, entity := range list {
			result = append(result, entityResponse(entity, source))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"entities": result,
		"count":    len(result),
	})
}

// GetEntity returns one entity by code, searching sources in order.
func (h *EntityHandler) GetEntity(c *gin.Context) {
	code := c.Param("code")

	entity, source, err := h.registry.Lookup(code)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
		return
	}

	c.JSON(http.StatusOK, entityResponse(entity, source))
}

func entityResponse(entity entities.Entity, source string) models.EntityResponse {
	return models.EntityResponse{
		Code:      entity.Code,
		Name:      entity.DisplayName(),
		Source:    source,
		TimeZone:  entity.TimeZone,
		StartDate: entity.StartDate.Format(dateLayout),
		EndDate:   entity.EndDate.Format(dateLayout),
	}
}
