// Ops sidecar: queue inspection, manual batch triggers, and sales backfill.
// Kept off the public gin API on purpose; this binary is deployed behind the
// internal network only.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/gorilla/mux"

	"github.com/stockcast/backend-go/internal/cache"
	"github.com/stockcast/backend-go/internal/config"
	"github.com/stockcast/backend-go/internal/queue"
	"github.com/stockcast/backend-go/internal/repository/postgres"
	"github.com/stockcast/backend-go/internal/salesimport"
	"github.com/stockcast/backend-go/internal/scheduler"
	"github.com/stockcast/backend-go/pkg/logger"
)

type opsServer struct {
	cfg       *config.Config
	queues    []*queue.Queue
	scheduler *scheduler.Scheduler
	importer  *salesimport.Importer
}

func main() {
	cfg := config.Load()
	logger.SetLevel(cfg.Server.Mode)

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	rdb, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to redis")
	}
	defer rdb.Close()

	inventoryRepo := postgres.NewInventoryRepository(db)
	salesRepo := postgres.NewSalesRepository(db)
	forecastQueue := queue.New(rdb, queue.ForecastQueue)
	notificationQueue := queue.New(rdb, queue.NotificationQueue)

	srv := &opsServer{
		cfg:    cfg,
		queues: []*queue.Queue{forecastQueue, notificationQueue},
		scheduler: scheduler.New(inventoryRepo, forecastQueue, redislock.New(rdb),
			cfg.Scheduler.DailyHour, cfg.Scheduler.DailyMinute),
	}

	if cfg.Import.CredentialsFile != "" {
		creds, err := os.ReadFile(cfg.Import.CredentialsFile)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to read drive credentials")
		}
		source, err := salesimport.NewDriveSource(context.Background(), string(creds))
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to create drive source")
		}
		srv.importer = salesimport.NewImporter(source, salesRepo)
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", srv.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/queues", srv.handleQueueStats).Methods(http.MethodGet)
	r.HandleFunc("/scheduler/run", srv.handleRunBatch).Methods(http.MethodPost)
	r.HandleFunc("/import/sales", srv.handleImport).Methods(http.MethodPost)

	httpSrv := &http.Server{
		Addr:         ":" + envOr("JOBS_PORT", "8081"),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
	}

	go func() {
		logger.Log.Info().Str("addr", httpSrv.Addr).Msg("Starting jobs server")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start jobs server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Jobs server forced to shutdown")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *opsServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *opsServer) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	stats := make([]*queue.Stats, 0, len(s.queues))
	for _, q := range s.queues {
		st, err := q.Stats(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		stats = append(stats, st)
	}
	writeJSON(w, http.StatusOK, map[string]any{"queues": stats})
}

func (s *opsServer) handleRunBatch(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.RunOnce(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "dispatched"})
}

func (s *opsServer) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "drive import is not configured"})
		return
	}

	path := r.URL.Query().Get("folder")
	if path == "" {
		path = s.cfg.Import.FolderPath
	}

	n, err := s.importer.ImportFolder(r.Context(), path)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "imported": n})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"imported": n, "folder": path})
}
