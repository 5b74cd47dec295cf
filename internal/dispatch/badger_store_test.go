package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func makeJob(createdAt time.Time) Job {
	order := newOrder()
	return Job{
		ID:          uuid.New().String(),
		OrderID:     order.ID,
		Order:       order,
		MaxAttempts: 3,
		CreatedAt:   createdAt,
	}
}

func TestBadgerStoreClaimIsFIFO(t *testing.T) {
	store := newBadgerStore(t)
	ctx := context.Background()

	base := time.Now()
	first := makeJob(base)
	second := makeJob(base.Add(time.Millisecond))
	require.NoError(t, store.Enqueue(ctx, first))
	require.NoError(t, store.Enqueue(ctx, second))

	count, err := store.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	job, ok, err := store.Claim(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.ID, job.ID)

	job, ok, err = store.Claim(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second.ID, job.ID)

	_, ok, err = store.Claim(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBadgerStoreAckRemovesActiveJob(t *testing.T) {
	store := newBadgerStore(t)
	ctx := context.Background()

	job := makeJob(time.Now())
	require.NoError(t, store.Enqueue(ctx, job))

	claimed, ok, err := store.Claim(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, store.Ack(ctx, claimed.ID))

	recovered, err := store.RecoverActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, recovered)
}

func TestBadgerStoreRequeueIncrementsNothingButRestoresJob(t *testing.T) {
	store := newBadgerStore(t)
	ctx := context.Background()

	job := makeJob(time.Now())
	require.NoError(t, store.Enqueue(ctx, job))

	claimed, ok, err := store.Claim(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	claimed.Attempts++
	require.NoError(t, store.Requeue(ctx, claimed))

	again, ok, err := store.Claim(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, job.ID, again.ID)
	assert.Equal(t, 1, again.Attempts)
}

func TestBadgerStoreRecoverActiveReplaysClaimedJobs(t *testing.T) {
	store := newBadgerStore(t)
	ctx := context.Background()

	job := makeJob(time.Now())
	require.NoError(t, store.Enqueue(ctx, job))

	_, ok, err := store.Claim(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// Simulates a crash between claim and ack.
	recovered, err := store.RecoverActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	replayed, ok, err := store.Claim(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, job.ID, replayed.ID)
	assert.Equal(t, job.OrderID, replayed.OrderID)
}

func TestBadgerStoreJobsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewBadgerStore(dir)
	require.NoError(t, err)
	job := makeJob(time.Now())
	require.NoError(t, store.Enqueue(ctx, job))
	require.NoError(t, store.Close())

	reopened, err := NewBadgerStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	claimed, ok, err := reopened.Claim(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, job.ID, claimed.ID)
}
