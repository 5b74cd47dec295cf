package processor

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/solroute/orderengine/internal/executor"
	"github.com/solroute/orderengine/internal/orders"
	"github.com/solroute/orderengine/internal/router"
	"github.com/solroute/orderengine/internal/venues"
	"github.com/solroute/orderengine/pkg/models"
)

// capturingPublisher records every broadcast event in order.
type capturingPublisher struct {
	mu      sync.Mutex
	updates []models.StatusUpdate
}

func (p *capturingPublisher) Broadcast(update models.StatusUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, update)
}

func (p *capturingPublisher) statuses() []models.OrderStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.OrderStatus, len(p.updates))
	for i, u := range p.updates {
		out[i] = u.Status
	}
	return out
}

// capturingCache records write-through calls.
type capturingCache struct {
	mu     sync.Mutex
	orders []*models.Order
}

func (c *capturingCache) Set(ctx context.Context, order *models.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders = append(c.orders, order)
	return nil
}

func newTestRepo(t *testing.T) orders.Repository {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "orders.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Order{},
		&models.OrderExecution{},
		&models.OrderFailure{},
	))
	return orders.NewRepository(db)
}

func newTestOrder() *models.Order {
	return &models.Order{
		ID:                uuid.New(),
		UserID:            "user-1",
		TokenIn:           "So11111111111111111111111111111111111111112",
		TokenOut:          "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		AmountIn:          decimal.NewFromInt(100),
		MinAmountOut:      decimal.NewFromInt(90),
		SlippageTolerance: 0.5,
		Status:            models.StatusPending,
	}
}

func newProcessor(t *testing.T, repo orders.Repository, pub Publisher, cache OrderCache, mockEnabled bool) *Processor {
	t.Helper()
	log := zap.NewNop()
	rt := router.New(log,
		venues.NewMockRaydium(0, mockEnabled, log),
		venues.NewMockMeteora(0, mockEnabled, log),
	)
	sim := executor.New(mockEnabled, 0, log)
	return New(repo, rt, sim, pub, cache, 0, log)
}

func TestProcessConfirmsOrder(t *testing.T) {
	repo := newTestRepo(t)
	pub := &capturingPublisher{}
	cache := &capturingCache{}
	proc := newProcessor(t, repo, pub, cache, true)

	order := newTestOrder()
	require.NoError(t, repo.CreateOrder(context.Background(), order))

	require.NoError(t, proc.Process(context.Background(), order))

	assert.Equal(t, []models.OrderStatus{
		models.StatusPending,
		models.StatusRouting,
		models.StatusBuilding,
		models.StatusSubmitted,
		models.StatusConfirmed,
	}, pub.statuses())

	stored, err := repo.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, stored.Status)
	require.NotNil(t, stored.DexSelected)
	assert.Equal(t, models.VenueRaydium, *stored.DexSelected)
	require.NotNil(t, stored.TxHash)
	assert.Len(t, *stored.TxHash, 64)
	require.NotNil(t, stored.ExecutedPrice)
	// Raydium quotes 100 * 0.95 * 1.005 = 95.475; 0.5% slippage leaves
	// 95.475 - 0.477375 = 94.997625.
	assert.True(t, stored.ExecutedPrice.Equal(decimal.RequireFromString("94.997625")),
		stored.ExecutedPrice.String())
	assert.NotNil(t, stored.CompletedAt)
}

func TestProcessWritesConfirmedOrderThrough(t *testing.T) {
	repo := newTestRepo(t)
	pub := &capturingPublisher{}
	cache := &capturingCache{}
	proc := newProcessor(t, repo, pub, cache, true)

	order := newTestOrder()
	require.NoError(t, repo.CreateOrder(context.Background(), order))
	require.NoError(t, proc.Process(context.Background(), order))

	require.Len(t, cache.orders, 1)
	assert.Equal(t, order.ID, cache.orders[0].ID)
	assert.Equal(t, models.StatusConfirmed, cache.orders[0].Status)
}

func TestProcessConfirmedEventCarriesSettlement(t *testing.T) {
	repo := newTestRepo(t)
	pub := &capturingPublisher{}
	proc := newProcessor(t, repo, pub, nil, true)

	order := newTestOrder()
	require.NoError(t, repo.CreateOrder(context.Background(), order))
	require.NoError(t, proc.Process(context.Background(), order))

	last := pub.updates[len(pub.updates)-1]
	assert.Equal(t, models.StatusConfirmed, last.Status)
	assert.Equal(t, models.VenueRaydium, last.Data.Dex)
	assert.NotEmpty(t, last.Data.TxHash)
	assert.NotEmpty(t, last.Data.Price)

	// submitted carries the quoted price, before slippage.
	submitted := pub.updates[3]
	assert.Equal(t, models.StatusSubmitted, submitted.Status)
	assert.Equal(t, "95.475", submitted.Data.Price)
}

func TestProcessFailurePersistsFailedState(t *testing.T) {
	repo := newTestRepo(t)
	pub := &capturingPublisher{}
	proc := newProcessor(t, repo, pub, nil, false)

	order := newTestOrder()
	require.NoError(t, repo.CreateOrder(context.Background(), order))

	err := proc.Process(context.Background(), order)
	require.Error(t, err)

	// Routing fails when the venues are disabled, so the pipeline stops there.
	assert.Equal(t, []models.OrderStatus{
		models.StatusPending,
		models.StatusRouting,
		models.StatusFailed,
	}, pub.statuses())

	stored, storeErr := repo.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, storeErr)
	assert.Equal(t, models.StatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorReason)
	assert.NotEmpty(t, *stored.ErrorReason)
	assert.NotNil(t, stored.CompletedAt)

	failures, ferr := repo.GetFailuresByOrder(context.Background(), order.ID)
	require.NoError(t, ferr)
	require.Len(t, failures, 1)
	assert.Equal(t, "ROUTING_ERROR", failures[0].ErrorCode)
	assert.Contains(t, failures[0].Metadata, "token_in")

	last := pub.updates[len(pub.updates)-1]
	assert.NotEmpty(t, last.Data.Error)
}
