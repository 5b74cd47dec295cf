package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	engerr "github.com/solroute/orderengine/pkg/errors"
	"github.com/solroute/orderengine/pkg/models"
)

// fakeProcessor records calls and returns scripted results per order.
type fakeProcessor struct {
	mu      sync.Mutex
	calls   map[uuid.UUID]int
	failFor map[uuid.UUID]error
	delay   time.Duration
	running atomic.Int64
	peak    atomic.Int64
	done    chan uuid.UUID
}

func newFakeProcessor(buffer int) *fakeProcessor {
	return &fakeProcessor{
		calls:   make(map[uuid.UUID]int),
		failFor: make(map[uuid.UUID]error),
		done:    make(chan uuid.UUID, buffer),
	}
}

func (p *fakeProcessor) Process(ctx context.Context, order *models.Order) error {
	cur := p.running.Add(1)
	for {
		peak := p.peak.Load()
		if cur <= peak || p.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.running.Add(-1)

	p.mu.Lock()
	p.calls[order.ID]++
	err := p.failFor[order.ID]
	p.mu.Unlock()

	p.done <- order.ID
	return err
}

func (p *fakeProcessor) callCount(id uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[id]
}

func newOrder() *models.Order {
	return &models.Order{
		ID:       uuid.New(),
		UserID:   "user-1",
		TokenIn:  "SOL",
		TokenOut: "USDC",
		AmountIn: decimal.NewFromInt(1),
		Status:   models.StatusPending,
	}
}

func waitFor(t *testing.T, ch <-chan uuid.UUID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-ch:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for job %d of %d", i+1, n)
		}
	}
}

func TestDefaultBackoff(t *testing.T) {
	assert.Equal(t, time.Second, DefaultBackoff(0))
	assert.Equal(t, 2*time.Second, DefaultBackoff(1))
	assert.Equal(t, 4*time.Second, DefaultBackoff(2))
	assert.Equal(t, 8*time.Second, DefaultBackoff(3))
	assert.Equal(t, 16*time.Second, DefaultBackoff(4))
	assert.Equal(t, 30*time.Second, DefaultBackoff(5))
	assert.Equal(t, 30*time.Second, DefaultBackoff(10))
}

func TestDispatcherProcessesEnqueuedOrders(t *testing.T) {
	proc := newFakeProcessor(8)
	d := New(NewMemoryStore(), proc, Options{Concurrency: 2, MaxAttempts: 1}, zap.NewNop())
	require.NoError(t, d.Start(context.Background()))
	defer d.Shutdown(context.Background())

	order := newOrder()
	jobID, err := d.Enqueue(context.Background(), order)
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)

	waitFor(t, proc.done, 1)
	assert.Equal(t, 1, proc.callCount(order.ID))

	stats, err := d.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CompletedCount)
	assert.Equal(t, 0, stats.FailedCount)
}

func TestDispatcherBoundsConcurrency(t *testing.T) {
	proc := newFakeProcessor(16)
	proc.delay = 50 * time.Millisecond
	d := New(NewMemoryStore(), proc, Options{Concurrency: 2, MaxAttempts: 1}, zap.NewNop())
	require.NoError(t, d.Start(context.Background()))
	defer d.Shutdown(context.Background())

	for i := 0; i < 5; i++ {
		_, err := d.Enqueue(context.Background(), newOrder())
		require.NoError(t, err)
	}

	waitFor(t, proc.done, 5)
	assert.LessOrEqual(t, proc.peak.Load(), int64(2))
}

func TestDispatcherRetriesUntilBudgetExhausted(t *testing.T) {
	proc := newFakeProcessor(8)
	order := newOrder()
	proc.failFor[order.ID] = errors.New("venue down")

	d := New(NewMemoryStore(), proc, Options{
		Concurrency: 1,
		MaxAttempts: 3,
		Backoff:     func(int) time.Duration { return time.Millisecond },
	}, zap.NewNop())
	require.NoError(t, d.Start(context.Background()))
	defer d.Shutdown(context.Background())

	_, err := d.Enqueue(context.Background(), order)
	require.NoError(t, err)

	waitFor(t, proc.done, 3)
	// Allow the final attempt's bookkeeping to land.
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 3, proc.callCount(order.ID))
	stats, err := d.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FailedCount)
	assert.Equal(t, 0, stats.CompletedCount)
}

func TestDispatcherRecoversAfterFailure(t *testing.T) {
	// A failed order releases its in-flight slot so it can be resubmitted.
	proc := newFakeProcessor(8)
	order := newOrder()
	proc.failFor[order.ID] = errors.New("transient")

	d := New(NewMemoryStore(), proc, Options{Concurrency: 1, MaxAttempts: 1}, zap.NewNop())
	require.NoError(t, d.Start(context.Background()))
	defer d.Shutdown(context.Background())

	_, err := d.Enqueue(context.Background(), order)
	require.NoError(t, err)
	waitFor(t, proc.done, 1)
	time.Sleep(50 * time.Millisecond)

	proc.mu.Lock()
	delete(proc.failFor, order.ID)
	proc.mu.Unlock()

	_, err = d.Enqueue(context.Background(), order)
	require.NoError(t, err)
	waitFor(t, proc.done, 1)
	assert.Equal(t, 2, proc.callCount(order.ID))
}

func TestDispatcherRejectsDuplicateInFlightOrder(t *testing.T) {
	proc := newFakeProcessor(8)
	proc.delay = 200 * time.Millisecond
	d := New(NewMemoryStore(), proc, Options{Concurrency: 1, MaxAttempts: 1}, zap.NewNop())
	require.NoError(t, d.Start(context.Background()))
	defer d.Shutdown(context.Background())

	order := newOrder()
	_, err := d.Enqueue(context.Background(), order)
	require.NoError(t, err)

	_, err = d.Enqueue(context.Background(), order)
	require.Error(t, err)
	assert.Equal(t, engerr.KindQueue, engerr.KindOf(err))

	waitFor(t, proc.done, 1)
}

func TestDispatcherShutdownDrainsWorkers(t *testing.T) {
	proc := newFakeProcessor(8)
	d := New(NewMemoryStore(), proc, Options{Concurrency: 4, MaxAttempts: 1}, zap.NewNop())
	require.NoError(t, d.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
}
