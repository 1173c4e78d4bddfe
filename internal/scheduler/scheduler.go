package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/rs/zerolog/log"

	"github.com/stockcast/backend-go/internal/queue"
	"github.com/stockcast/backend-go/internal/repository"
)

const (
	dailyLockKey = "scheduler:daily-forecast"
	dailyLockTTL = 5 * time.Minute

	// Scheduled forecasts always use the monthly horizon; longer horizons are
	// generated on demand.
	scheduledHorizonDays = 30
)

// Scheduler fires a daily batch that enqueues forecast jobs for every active
// SKU at or below its reorder point. A redis lock ensures only one instance
// runs the batch when several replicas are deployed.
type Scheduler struct {
	inventory repository.InventoryRepository
	jobs      *queue.Queue
	locker    *redislock.Client
	hour      int
	minute    int
	now       func() time.Time
}

func New(inventory repository.InventoryRepository, jobs *queue.Queue, locker *redislock.Client, hour, minute int) *Scheduler {
	return &Scheduler{
		inventory: inventory,
		jobs:      jobs,
		locker:    locker,
		hour:      hour,
		minute:    minute,
		now:       time.Now,
	}
}

// WithClock overrides the scheduler's clock. Test hook.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// NextRunTime returns the next daily fire time strictly after now.
func (s *Scheduler) NextRunTime(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run blocks until ctx is cancelled, firing the batch at each computed time.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		now := s.now()
		next := s.NextRunTime(now)
		log.Info().Time("next_run", next).Msg("daily forecast batch scheduled")

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("scheduler stopped")
			return
		case <-timer.C:
		}

		if err := s.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("daily forecast batch failed")
		}
	}
}

// dailyLockName keys the lock by fire date, so a replica that reaches the
// fire minute late cannot re-run a batch another instance already dispatched
// that day.
func dailyLockName(now time.Time) string {
	return dailyLockKey + ":" + now.UTC().Format("2006-01-02")
}

// RunOnce executes one batch under the distributed lock. When another
// instance already ran or is running today's batch the call is a no-op. The
// lock is held for its full TTL rather than released on return: enqueueing
// finishes in milliseconds, and an early release would let a clock-skewed
// replica acquire the freed key and dispatch the batch twice.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	_, err := s.locker.Obtain(ctx, dailyLockName(s.now()), dailyLockTTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		log.Info().Msg("daily forecast batch already dispatched elsewhere")
		return nil
	}
	if err != nil {
		return err
	}

	low, err := s.inventory.ListLowStock(ctx)
	if err != nil {
		return err
	}

	enqueued := 0
	for _, snap := range low {
		job := queue.ForecastJob{
			ID:          queue.NewJobID(),
			SKU:         snap.SKU,
			HorizonDays: scheduledHorizonDays,
			EnqueuedAt:  s.now().UTC(),
		}
		if err := s.jobs.Enqueue(ctx, job); err != nil {
			log.Error().Err(err).Str("sku", snap.SKU).Msg("enqueueing scheduled forecast")
			continue
		}
		enqueued++
	}

	log.Info().Int("low_stock_skus", len(low)).Int("enqueued", enqueued).
		Msg("daily forecast batch dispatched")
	return nil
}
