package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/stockcast/backend-go/internal/api"
	"github.com/stockcast/backend-go/internal/cache"
	"github.com/stockcast/backend-go/internal/config"
	"github.com/stockcast/backend-go/internal/export"
	"github.com/stockcast/backend-go/internal/forecast"
	"github.com/stockcast/backend-go/internal/po"
	"github.com/stockcast/backend-go/internal/predictor"
	"github.com/stockcast/backend-go/internal/queue"
	"github.com/stockcast/backend-go/internal/repository/postgres"
	"github.com/stockcast/backend-go/internal/scheduler"
	"github.com/stockcast/backend-go/internal/worker"
	"github.com/stockcast/backend-go/pkg/logger"
)

func main() {
	cfg := config.Load()

	logger.SetLevel(cfg.Server.Mode)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		logger.UseJSON()
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	salesRepo := postgres.NewSalesRepository(db)
	inventoryRepo := postgres.NewInventoryRepository(db)
	forecastRepo := postgres.NewForecastRepository(db)
	supplierRepo := postgres.NewSupplierRepository(db)
	poRepo := postgres.NewPORepository(db)

	var rdb *redis.Client
	forecastCache := cache.NewNoopForecastCache()
	if cfg.Redis.Enabled {
		rdb, err = cache.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		defer rdb.Close()
		forecastCache = cache.NewRedisForecastCache(rdb, time.Duration(cfg.Redis.ForecastTTLHours)*time.Hour)
	}

	pred, planner := buildPredictors(cfg)

	forecastEngine := forecast.NewEngine(salesRepo, inventoryRepo, forecastRepo, pred, forecastCache)
	advisor := forecast.NewAdvisor(inventoryRepo)
	poEngine := po.NewEngine(poRepo, supplierRepo, inventoryRepo, forecastRepo, planner)

	var exporter *export.Exporter
	if cfg.Export.Enabled {
		exporter, err = export.New(cfg.Export)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to connect to object storage")
		}
		poEngine.WithArchiver(exporter)
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	if rdb != nil {
		forecastQueue := queue.New(rdb, queue.ForecastQueue)
		notificationQueue := queue.New(rdb, queue.NotificationQueue)

		fw := worker.NewForecastWorker(forecastEngine, forecastQueue, notificationQueue,
			cfg.Worker.ForecastConcurrency, cfg.Worker.ForecastPerMinute)
		go fw.Run(workerCtx)

		nw := worker.NewNotificationWorker(notificationQueue, nil)
		go nw.Run(workerCtx)

		if cfg.Scheduler.Enabled {
			sched := scheduler.New(inventoryRepo, forecastQueue, redislock.New(rdb),
				cfg.Scheduler.DailyHour, cfg.Scheduler.DailyMinute)
			go sched.Run(workerCtx)
		}
	} else {
		logger.Log.Warn().Msg("Redis disabled; background forecasting is off")
	}

	services := &api.Services{
		ForecastEngine: forecastEngine,
		Advisor:        advisor,
		POEngine:       poEngine,
		Suppliers:      supplierRepo,
		Inventory:      inventoryRepo,
		Orders:         poRepo,
	}
	if exporter != nil {
		services.Exporter = exporter
	}
	router := api.NewRouter(services, cfg.Server.AllowedOrigins)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}

// buildPredictors wires the LLM predictor with a heuristic fallback when an
// endpoint is configured; otherwise the heuristic runs alone.
func buildPredictors(cfg *config.Config) (predictor.Predictor, predictor.DraftPlanner) {
	heuristic := predictor.NewHeuristic(cfg.Predictor.Seed)
	heuristicPlanner := predictor.NewHeuristicPlanner()

	if cfg.Predictor.Endpoint == "" {
		logger.Log.Info().Msg("No predictor endpoint configured; using heuristic model")
		return heuristic, heuristicPlanner
	}

	client := predictor.NewClient(predictor.ClientConfig{
		Endpoint: cfg.Predictor.Endpoint,
		APIKey:   cfg.Predictor.APIKey,
		Model:    cfg.Predictor.Model,
		Timeout:  time.Duration(cfg.Predictor.TimeoutSeconds) * time.Second,
	})

	return predictor.NewWithFallback(predictor.NewLLM(client), heuristic),
		predictor.NewPlannerWithFallback(predictor.NewLLMPlanner(client), heuristicPlanner)
}
