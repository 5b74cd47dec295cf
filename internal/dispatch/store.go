// Package dispatch admits orders as jobs into a durable, concurrency-bounded
// work queue and runs a fixed-size worker pool over them with exponential
// retry backoff.
package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/solroute/orderengine/pkg/models"
)

// Job ties an order to dispatch bookkeeping.
type Job struct {
	ID          string        `json:"id"`
	OrderID     uuid.UUID     `json:"order_id"`
	Order       *models.Order `json:"order"`
	Attempts    int           `json:"attempts"`
	MaxAttempts int           `json:"max_attempts"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Store is the durable backing of the work queue. Claim must be atomic:
// a claimed job moves from pending to active in one step so two workers can
// never hold the same job.
type Store interface {
	// Enqueue admits a job to the pending set.
	Enqueue(ctx context.Context, job Job) error
	// Claim atomically moves the oldest pending job to the active set.
	// ok is false when no pending job exists.
	Claim(ctx context.Context) (job Job, ok bool, err error)
	// Ack removes a claimed job from the active set.
	Ack(ctx context.Context, jobID string) error
	// Requeue moves a claimed job back to the pending set.
	Requeue(ctx context.Context, job Job) error
	// PendingCount reports the current queue depth.
	PendingCount(ctx context.Context) (int, error)
	// RecoverActive returns claimed-but-unacknowledged jobs to the pending
	// set. Called once on startup to replay work lost to a crash.
	RecoverActive(ctx context.Context) (int, error)
	Close() error
}
