package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/stockcast/backend-go/internal/api/handlers"
	"github.com/stockcast/backend-go/internal/forecast"
	"github.com/stockcast/backend-go/internal/po"
	"github.com/stockcast/backend-go/internal/repository"
)

type Services struct {
	ForecastEngine *forecast.Engine
	Advisor        *forecast.Advisor
	POEngine       *po.Engine
	Suppliers      repository.SupplierRepository
	Inventory      repository.InventoryRepository
	Orders         repository.PORepository
	Exporter       handlers.ForecastExporter
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	apiGroup := router.Group("/api/v1")

	if services != nil {
		if services.ForecastEngine != nil {
			forecastHandler := handlers.NewForecastHandler(services.ForecastEngine, services.Advisor, services.Exporter)
			forecastGroup := apiGroup.Group("/forecasts")
			{
				forecastGroup.POST("/batch", forecastHandler.BatchGenerate)
				forecastGroup.POST("/:sku/generate", forecastHandler.Generate)
				forecastGroup.GET("/:sku/latest", forecastHandler.GetLatest)
				forecastGroup.POST("/:sku/export", forecastHandler.Export)
				forecastGroup.GET("/accuracy/:id", forecastHandler.GetAccuracy)
			}
			apiGroup.GET("/reorder/suggestions", forecastHandler.GetReorderSuggestions)
		}

		if services.POEngine != nil {
			poHandler := handlers.NewPOHandler(services.POEngine, services.Orders)
			poGroup := apiGroup.Group("/po")
			{
				poGroup.POST("/draft", poHandler.GenerateDraft)
				poGroup.GET("", poHandler.List)
				poGroup.GET("/:id", poHandler.Get)
				poGroup.PUT("/:id", poHandler.Update)
				poGroup.POST("/:id/submit", poHandler.Submit)
				poGroup.POST("/:id/approve", poHandler.Approve)
				poGroup.POST("/:id/send", poHandler.Send)
				poGroup.POST("/:id/receive", poHandler.Receive)
				poGroup.POST("/:id/cancel", poHandler.Cancel)
				poGroup.GET("/:id/audit", poHandler.GetAudit)
			}
		}

		if services.Suppliers != nil {
			supplierHandler := handlers.NewSupplierHandler(services.Suppliers)
			supplierGroup := apiGroup.Group("/suppliers")
			{
				supplierGroup.GET("", supplierHandler.List)
				supplierGroup.POST("", supplierHandler.Create)
				supplierGroup.GET("/:id", supplierHandler.Get)
				supplierGroup.PUT("/:id/prices", supplierHandler.UpsertPrice)
			}
		}

		if services.Inventory != nil {
			inventoryHandler := handlers.NewInventoryHandler(services.Inventory)
			inventoryGroup := apiGroup.Group("/inventory")
			{
				inventoryGroup.GET("", inventoryHandler.List)
				inventoryGroup.GET("/low-stock", inventoryHandler.ListLowStock)
				inventoryGroup.GET("/:sku", inventoryHandler.Get)
			}
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		for _, part := range strings.Split(origin, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
