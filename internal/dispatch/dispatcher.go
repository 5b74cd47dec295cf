package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	engerr "github.com/solroute/orderengine/pkg/errors"
	"github.com/solroute/orderengine/pkg/metrics"
	"github.com/solroute/orderengine/pkg/models"
)

const (
	baseBackoff = time.Second
	maxBackoff  = 30 * time.Second
)

// DefaultBackoff returns the retry delay for 0-based attempt index k:
// min(1s * 2^k, 30s).
func DefaultBackoff(k int) time.Duration {
	if k >= 5 {
		return maxBackoff
	}
	d := baseBackoff << uint(k)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// OrderProcessor runs the order state machine for one claimed job.
type OrderProcessor interface {
	Process(ctx context.Context, order *models.Order) error
}

// Stats is the dispatcher observability snapshot.
type Stats struct {
	WaitingCount   int `json:"waitingCount"`
	ActiveCount    int `json:"activeCount"`
	CompletedCount int `json:"completedCount"`
	FailedCount    int `json:"failedCount"`
	Concurrency    int `json:"concurrency"`
}

// Options configures a Dispatcher.
type Options struct {
	Concurrency int
	MaxAttempts int
	// RatePerMinute caps how many jobs the pool starts per minute across all
	// workers. Zero disables the cap.
	RatePerMinute int
	PollInterval  time.Duration
	// Backoff overrides the retry delay schedule. Tests use this to avoid
	// real waits; production uses DefaultBackoff.
	Backoff func(attempt int) time.Duration
}

// Dispatcher owns the worker pool. At most Concurrency jobs execute
// simultaneously across the whole process, and at most one job is in flight
// per order id.
type Dispatcher struct {
	store  Store
	proc   OrderProcessor
	logger *zap.Logger

	concurrency  int
	maxAttempts  int
	pollInterval time.Duration
	backoff      func(int) time.Duration
	limiter      *rate.Limiter

	active    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}

	wake chan struct{}
	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a Dispatcher over the given store and processor.
func New(store Store, proc OrderProcessor, opts Options, logger *zap.Logger) *Dispatcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	if opts.Backoff == nil {
		opts.Backoff = DefaultBackoff
	}
	var limiter *rate.Limiter
	if opts.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), opts.RatePerMinute)
	}
	return &Dispatcher{
		store:        store,
		proc:         proc,
		logger:       logger,
		concurrency:  opts.Concurrency,
		maxAttempts:  opts.MaxAttempts,
		pollInterval: opts.PollInterval,
		backoff:      opts.Backoff,
		limiter:      limiter,
		inflight:     make(map[uuid.UUID]struct{}),
		wake:         make(chan struct{}, 1),
		stop:         make(chan struct{}),
	}
}

// Start replays any jobs claimed before a crash and launches the worker pool.
func (d *Dispatcher) Start(ctx context.Context) error {
	recovered, err := d.store.RecoverActive(ctx)
	if err != nil {
		return err
	}
	if recovered > 0 {
		d.logger.Info("Recovered unacknowledged jobs", zap.Int("count", recovered))
	}
	for i := 0; i < d.concurrency; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
	d.logger.Info("Dispatcher started",
		zap.Int("concurrency", d.concurrency),
		zap.Int("max_attempts", d.maxAttempts),
	)
	return nil
}

// Enqueue admits an order as a job and returns the job id without waiting for
// processing. Enqueueing an order that already has a job in flight fails with
// a queue error.
func (d *Dispatcher) Enqueue(ctx context.Context, order *models.Order) (string, error) {
	d.mu.Lock()
	if _, busy := d.inflight[order.ID]; busy {
		d.mu.Unlock()
		return "", engerr.Newf(engerr.KindQueue, "order %s already has a job in flight", order.ID)
	}
	d.inflight[order.ID] = struct{}{}
	d.mu.Unlock()

	job := Job{
		ID:          uuid.New().String(),
		OrderID:     order.ID,
		Order:       order,
		Attempts:    0,
		MaxAttempts: d.maxAttempts,
		CreatedAt:   time.Now(),
	}
	if err := d.store.Enqueue(ctx, job); err != nil {
		d.release(order.ID)
		return "", engerr.Wrap(engerr.KindQueue, "failed to enqueue order", err)
	}

	d.logger.Info("Order enqueued",
		zap.String("order_id", order.ID.String()),
		zap.String("job_id", job.ID),
	)
	d.signal()
	return job.ID, nil
}

// Stats returns a point-in-time snapshot for observability.
func (d *Dispatcher) Stats(ctx context.Context) (Stats, error) {
	waiting, err := d.store.PendingCount(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		WaitingCount:   waiting,
		ActiveCount:    int(d.active.Load()),
		CompletedCount: int(d.completed.Load()),
		FailedCount:    int(d.failed.Load()),
		Concurrency:    d.concurrency,
	}, nil
}

// Shutdown stops the workers and closes the store. In-flight jobs finish
// their current attempt; unclaimed jobs stay durable for the next start.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	close(d.stop)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return d.store.Close()
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	for {
		select {
		case <-d.stop:
			return
		default:
		}

		job, ok, err := d.store.Claim(ctx)
		if err != nil {
			d.logger.Error("Job claim failed", zap.Int("worker", id), zap.Error(err))
			ok = false
		}
		if !ok {
			select {
			case <-d.stop:
				return
			case <-d.wake:
			case <-time.After(d.pollInterval):
			}
			continue
		}

		d.handle(ctx, job)
	}
}

func (d *Dispatcher) handle(ctx context.Context, job Job) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			// Context gone; put the job back for the next start.
			if rqErr := d.store.Requeue(ctx, job); rqErr != nil {
				d.logger.Error("Job requeue failed", zap.String("job_id", job.ID), zap.Error(rqErr))
			}
			return
		}
	}

	d.active.Add(1)
	metrics.QueueActiveJobs.Set(float64(d.active.Load()))

	d.logger.Info("Processing order job",
		zap.String("order_id", job.OrderID.String()),
		zap.String("job_id", job.ID),
		zap.Int("attempt", job.Attempts+1),
		zap.Int("max_attempts", job.MaxAttempts),
	)

	err := d.proc.Process(ctx, job.Order)

	d.active.Add(-1)
	metrics.QueueActiveJobs.Set(float64(d.active.Load()))

	if err == nil {
		if ackErr := d.store.Ack(ctx, job.ID); ackErr != nil {
			d.logger.Error("Job ack failed", zap.String("job_id", job.ID), zap.Error(ackErr))
		}
		d.completed.Add(1)
		d.release(job.OrderID)
		d.logger.Info("Order job completed",
			zap.String("order_id", job.OrderID.String()),
			zap.String("job_id", job.ID),
		)
		return
	}

	if job.Attempts < job.MaxAttempts-1 {
		delay := d.backoff(job.Attempts)
		d.logger.Info("Retrying order execution",
			zap.String("order_id", job.OrderID.String()),
			zap.Int("attempt", job.Attempts+1),
			zap.Duration("backoff", delay),
		)
		metrics.JobRetries.Inc()

		retry := job
		retry.Attempts++
		// The job stays in the active set until the timer fires, so a crash
		// during the wait replays it via RecoverActive.
		time.AfterFunc(delay, func() {
			if err := d.store.Requeue(context.Background(), retry); err != nil {
				d.logger.Error("Job requeue failed",
					zap.String("job_id", retry.ID), zap.Error(err))
				return
			}
			d.signal()
		})
		return
	}

	// Retry budget exhausted. The processor already persisted the failed
	// state and audit rows; this is bookkeeping only.
	if ackErr := d.store.Ack(ctx, job.ID); ackErr != nil {
		d.logger.Error("Job ack failed", zap.String("job_id", job.ID), zap.Error(ackErr))
	}
	d.failed.Add(1)
	d.release(job.OrderID)
	d.logger.Error("Order job failed after max retries",
		zap.String("order_id", job.OrderID.String()),
		zap.String("job_id", job.ID),
		zap.Error(err),
	)
}

func (d *Dispatcher) release(orderID uuid.UUID) {
	d.mu.Lock()
	delete(d.inflight, orderID)
	d.mu.Unlock()
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}
