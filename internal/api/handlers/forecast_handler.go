package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stockcast/backend-go/internal/domain"
	"github.com/stockcast/backend-go/internal/forecast"
)

// ForecastExporter uploads a forecast as CSV and returns the object key.
type ForecastExporter interface {
	ExportForecastCSV(ctx context.Context, f *domain.Forecast) (string, error)
}

type ForecastHandler struct {
	engine   *forecast.Engine
	advisor  *forecast.Advisor
	exporter ForecastExporter
}

func NewForecastHandler(engine *forecast.Engine, advisor *forecast.Advisor, exporter ForecastExporter) *ForecastHandler {
	return &ForecastHandler{engine: engine, advisor: advisor, exporter: exporter}
}

func parseHorizon(c *gin.Context) (int, bool) {
	horizon, err := strconv.Atoi(c.DefaultQuery("horizon_days", "30"))
	if err != nil {
		badRequest(c, "horizon_days must be an integer")
		return 0, false
	}
	switch horizon {
	case 30, 60, 90:
		return horizon, true
	default:
		badRequest(c, "horizon_days must be 30, 60 or 90")
		return 0, false
	}
}

func (h *ForecastHandler) Generate(c *gin.Context) {
	horizon, ok := parseHorizon(c)
	if !ok {
		return
	}
	force := c.Query("force") == "true"

	fc, err := h.engine.GenerateForecast(c.Request.Context(), c.Param("sku"), horizon, force)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, fc)
}

func (h *ForecastHandler) GetLatest(c *gin.Context) {
	horizon, ok := parseHorizon(c)
	if !ok {
		return
	}

	fc, err := h.engine.GetLatestForecast(c.Request.Context(), c.Param("sku"), horizon)
	if err != nil {
		errorResponse(c, err)
		return
	}
	if fc == nil {
		notFound(c, "no forecast exists for this SKU and horizon")
		return
	}
	c.JSON(http.StatusOK, fc)
}

func (h *ForecastHandler) GetAccuracy(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "forecast id must be an integer")
		return
	}

	report, err := h.engine.CalculateAccuracy(c.Request.Context(), id)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type batchRequest struct {
	SKUs        []string `json:"skus" binding:"required"`
	HorizonDays int      `json:"horizon_days"`
}

func (h *ForecastHandler) BatchGenerate(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.HorizonDays == 0 {
		req.HorizonDays = 30
	}
	switch req.HorizonDays {
	case 30, 60, 90:
	default:
		badRequest(c, "horizon_days must be 30, 60 or 90")
		return
	}

	results := h.engine.BatchGenerateForecasts(c.Request.Context(), req.SKUs, req.HorizonDays)
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *ForecastHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "export is not configured"})
		return
	}

	horizon, ok := parseHorizon(c)
	if !ok {
		return
	}

	fc, err := h.engine.GetLatestForecast(c.Request.Context(), c.Param("sku"), horizon)
	if err != nil {
		errorResponse(c, err)
		return
	}
	if fc == nil {
		notFound(c, "no forecast exists for this SKU and horizon")
		return
	}

	key, err := h.exporter.ExportForecastCSV(c.Request.Context(), fc)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key})
}

func (h *ForecastHandler) GetReorderSuggestions(c *gin.Context) {
	suggestions, err := h.advisor.Suggestions(c.Request.Context())
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions, "count": len(suggestions)})
}
