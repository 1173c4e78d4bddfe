package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/stockcast/backend-go/internal/forecast"
	"github.com/stockcast/backend-go/internal/queue"
)

const dequeueWait = 5 * time.Second

// ForecastWorker drains the forecast queue with a fixed pool of goroutines.
// The pool size bounds how many forecasts generate concurrently and the rate
// limiter bounds how fast predictor calls go out, shared across the pool.
type ForecastWorker struct {
	engine        *forecast.Engine
	jobs          *queue.Queue
	notifications *queue.Queue
	concurrency   int
	limiter       *rate.Limiter
}

func NewForecastWorker(engine *forecast.Engine, jobs, notifications *queue.Queue, concurrency, perMinute int) *ForecastWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	if perMinute < 1 {
		perMinute = 1
	}
	return &ForecastWorker{
		engine:        engine,
		jobs:          jobs,
		notifications: notifications,
		concurrency:   concurrency,
		limiter:       rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

// Run blocks until ctx is cancelled and all in-flight jobs have finished.
func (w *ForecastWorker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			w.loop(ctx, worker)
		}(i)
	}
	wg.Wait()
	log.Info().Msg("forecast worker pool stopped")
}

func (w *ForecastWorker) loop(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var job queue.ForecastJob
		ok, err := w.jobs.Dequeue(ctx, dequeueWait, &job)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Int("worker", worker).Msg("forecast dequeue failed")
			time.Sleep(time.Second)
			continue
		}
		if !ok {
			continue
		}

		w.process(ctx, worker, job)
	}
}

func (w *ForecastWorker) process(ctx context.Context, worker int, job queue.ForecastJob) {
	if err := w.limiter.Wait(ctx); err != nil {
		return
	}

	fc, err := w.engine.GenerateForecast(ctx, job.SKU, job.HorizonDays, job.Force)
	if err != nil {
		log.Error().Err(err).Int("worker", worker).Str("sku", job.SKU).
			Int("horizon_days", job.HorizonDays).Msg("forecast job failed")
		if recErr := w.jobs.Fail(ctx, job.ID, job, err); recErr != nil {
			log.Error().Err(recErr).Str("job_id", job.ID).Msg("recording failed job")
		}
		return
	}

	if err := w.jobs.Complete(ctx, job.ID, job); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("recording completed job")
	}

	if fc.Reorder.ShouldReorder {
		notif := queue.NotificationJob{
			ID:             queue.NewJobID(),
			SKU:            fc.SKU,
			Recommendation: fc.Reorder,
			EnqueuedAt:     time.Now().UTC(),
		}
		if err := w.notifications.Enqueue(ctx, notif); err != nil {
			log.Error().Err(err).Str("sku", fc.SKU).Msg("enqueueing reorder notification")
		}
	}

	log.Debug().Int("worker", worker).Str("sku", job.SKU).
		Int64("forecast_id", fc.ID).Msg("forecast job done")
}
