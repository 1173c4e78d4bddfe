package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/stockcast/backend-go/internal/domain"
)

// errorResponse maps domain errors onto HTTP status codes and writes the
// standard error body.
func errorResponse(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case domain.IsInvalidTransition(err):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrNoHistoricalData),
		errors.Is(err, domain.ErrNoInventoryRecord),
		errors.Is(err, domain.ErrSupplierNotFound),
		errors.Is(err, domain.ErrPONotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrPredictionUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

func notFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, gin.H{"error": message})
}
