// Package cache provides a Redis-backed read-through cache for finished
// orders. A cache miss is not an error; callers fall back to the relational
// store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/solroute/orderengine/pkg/models"
)

// OrderCache caches serialized order records keyed by order id.
type OrderCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New connects to Redis and verifies the connection.
func New(addr, password string, db int, ttl time.Duration, logger *zap.Logger) (*OrderCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	logger.Info("Redis cache connected", zap.String("addr", addr), zap.Int("db", db))
	return &OrderCache{rdb: rdb, ttl: ttl, logger: logger}, nil
}

func orderKey(id string) string { return "order:" + id }

// Set stores the order under its id with the configured TTL.
func (c *OrderCache) Set(ctx context.Context, order *models.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshaling order: %w", err)
	}
	return c.rdb.Set(ctx, orderKey(order.ID.String()), data, c.ttl).Err()
}

// Get returns the cached order, or (nil, nil) on a miss.
func (c *OrderCache) Get(ctx context.Context, orderID string) (*models.Order, error) {
	data, err := c.rdb.Get(ctx, orderKey(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var order models.Order
	if err := json.Unmarshal(data, &order); err != nil {
		// A corrupt entry is treated as a miss and evicted.
		c.logger.Warn("Evicting corrupt cache entry", zap.String("order_id", orderID), zap.Error(err))
		c.rdb.Del(ctx, orderKey(orderID))
		return nil, nil
	}
	return &order, nil
}

// Delete evicts the order from the cache.
func (c *OrderCache) Delete(ctx context.Context, orderID string) error {
	return c.rdb.Del(ctx, orderKey(orderID)).Err()
}

// Close releases the Redis connection.
func (c *OrderCache) Close() error {
	return c.rdb.Close()
}
