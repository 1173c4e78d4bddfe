package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/stockcast/backend-go/internal/domain"
)

const (
	ForecastQueue     = "forecast"
	NotificationQueue = "notification"

	// Completed and failed job records are kept for inspection, trimmed to a
	// bounded window so the lists never grow without limit.
	completedRetention = 100
	failedRetention    = 50
)

// ForecastJob asks a worker to generate one forecast.
type ForecastJob struct {
	ID          string    `json:"id"`
	SKU         string    `json:"sku"`
	HorizonDays int       `json:"horizon_days"`
	Force       bool      `json:"force"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// NotificationJob asks a worker to notify about a reorder signal.
type NotificationJob struct {
	ID             string                       `json:"id"`
	SKU            string                       `json:"sku"`
	Recommendation domain.ReorderRecommendation `json:"recommendation"`
	EnqueuedAt     time.Time                    `json:"enqueued_at"`
}

// Stats is a point-in-time snapshot of one queue's list lengths.
type Stats struct {
	Queue     string `json:"queue"`
	Pending   int64  `json:"pending"`
	Completed int64  `json:"completed"`
	Failed    int64  `json:"failed"`
}

// Queue is a redis-list job queue. Producers LPUSH onto the pending list and
// workers block on BRPOP, so jobs are delivered oldest-first to exactly one
// worker.
type Queue struct {
	rdb  *redis.Client
	name string
}

func New(rdb *redis.Client, name string) *Queue {
	return &Queue{rdb: rdb, name: name}
}

func (q *Queue) pendingKey() string   { return fmt.Sprintf("jobs:%s:pending", q.name) }
func (q *Queue) completedKey() string { return fmt.Sprintf("jobs:%s:completed", q.name) }
func (q *Queue) failedKey() string    { return fmt.Sprintf("jobs:%s:failed", q.name) }

// NewJobID returns a fresh job identifier.
func NewJobID() string { return uuid.New().String() }

// Enqueue pushes a job onto the pending list.
func (q *Queue) Enqueue(ctx context.Context, job any) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrQueueDispatch, err)
	}
	if err := q.rdb.LPush(ctx, q.pendingKey(), raw).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrQueueDispatch, err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next job and unmarshals it into dst.
// It returns false when the wait timed out with no job available.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration, dst any) (bool, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.pendingKey()).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	// BRPOP returns [key, value].
	if err := json.Unmarshal([]byte(res[1]), dst); err != nil {
		log.Error().Err(err).Str("queue", q.name).Msg("dropping malformed job payload")
		return false, nil
	}
	return true, nil
}

type jobRecord struct {
	JobID      string    `json:"job_id"`
	Payload    any       `json:"payload"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// Complete records a finished job and trims the completed list.
func (q *Queue) Complete(ctx context.Context, jobID string, payload any) error {
	return q.record(ctx, q.completedKey(), completedRetention, jobRecord{
		JobID:      jobID,
		Payload:    payload,
		FinishedAt: time.Now().UTC(),
	})
}

// Fail records a failed job with its error and trims the failed list.
func (q *Queue) Fail(ctx context.Context, jobID string, payload any, jobErr error) error {
	rec := jobRecord{JobID: jobID, Payload: payload, FinishedAt: time.Now().UTC()}
	if jobErr != nil {
		rec.Error = jobErr.Error()
	}
	return q.record(ctx, q.failedKey(), failedRetention, rec)
}

func (q *Queue) record(ctx context.Context, key string, retention int64, rec jobRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	pipe := q.rdb.TxPipeline()
	pipe.LPush(ctx, key, raw)
	pipe.LTrim(ctx, key, 0, retention-1)
	_, err = pipe.Exec(ctx)
	return err
}

// Stats reports the current lengths of the queue's lists.
func (q *Queue) Stats(ctx context.Context) (*Stats, error) {
	pipe := q.rdb.Pipeline()
	pending := pipe.LLen(ctx, q.pendingKey())
	completed := pipe.LLen(ctx, q.completedKey())
	failed := pipe.LLen(ctx, q.failedKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return &Stats{
		Queue:     q.name,
		Pending:   pending.Val(),
		Completed: completed.Val(),
		Failed:    failed.Val(),
	}, nil
}
