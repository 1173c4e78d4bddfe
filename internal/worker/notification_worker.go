package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stockcast/backend-go/internal/queue"
)

// Notifier delivers one reorder notification. The default implementation
// writes a structured log line; swapping in an email or chat sender is a
// matter of satisfying this interface.
type Notifier interface {
	Notify(ctx context.Context, job queue.NotificationJob) error
}

// LogNotifier emits reorder signals to the service log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, job queue.NotificationJob) error {
	log.Info().
		Str("sku", job.SKU).
		Float64("suggested_qty", job.Recommendation.SuggestedQty).
		Str("reasoning", job.Recommendation.Reasoning).
		Msg("reorder recommended")
	return nil
}

// NotificationWorker drains the notification queue independently of the
// forecast pool. Deliveries are cheap, so each job runs in its own goroutine
// with no concurrency cap.
type NotificationWorker struct {
	jobs     *queue.Queue
	notifier Notifier
}

func NewNotificationWorker(jobs *queue.Queue, notifier Notifier) *NotificationWorker {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &NotificationWorker{jobs: jobs, notifier: notifier}
}

// Run blocks until ctx is cancelled and all in-flight deliveries finish.
func (w *NotificationWorker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			log.Info().Msg("notification worker stopped")
			return
		default:
		}

		var job queue.NotificationJob
		ok, err := w.jobs.Dequeue(ctx, dequeueWait, &job)
		if err != nil {
			if ctx.Err() != nil {
				wg.Wait()
				return
			}
			log.Error().Err(err).Msg("notification dequeue failed")
			time.Sleep(time.Second)
			continue
		}
		if !ok {
			continue
		}

		wg.Add(1)
		go func(job queue.NotificationJob) {
			defer wg.Done()
			if err := w.notifier.Notify(ctx, job); err != nil {
				log.Error().Err(err).Str("sku", job.SKU).Msg("notification delivery failed")
				if recErr := w.jobs.Fail(ctx, job.ID, job, err); recErr != nil {
					log.Error().Err(recErr).Str("job_id", job.ID).Msg("recording failed notification")
				}
				return
			}
			if err := w.jobs.Complete(ctx, job.ID, job); err != nil {
				log.Error().Err(err).Str("job_id", job.ID).Msg("recording completed notification")
			}
		}(job)
	}
}
