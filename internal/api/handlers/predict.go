package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/demandcast/demandcast/internal/models"
	"github.com/demandcast/demandcast/internal/services"
)

// PredictHandler serves demand predictions from the loaded ensemble.
type PredictHandler struct {
	prediction *services.PredictionService
}

// NewPredictHandler creates a PredictHandler.
func NewPredictHandler(prediction *services.PredictionService) *PredictHandler {
	return &PredictHandler{
		prediction: prediction,
	}
}

// Predict scores one feature vector.
func (h *PredictHandler) Predict(c *gin.Context) {
	if h.prediction == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No prediction model loaded"})
		return
	}

	var req models.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	prediction, err := h.prediction.Predict(req.Features)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.PredictResponse{
		PredictionMW: prediction,
		Trees:        h.prediction.Trees(),
	})
}
