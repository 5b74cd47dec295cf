// Package ws maintains the registry of live subscriber connections and fans
// lifecycle events out to every subscriber of an order. Registrations are
// in-memory only; subscribers re-attach after a restart.
package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/solroute/orderengine/pkg/metrics"
	"github.com/solroute/orderengine/pkg/models"
)

// Conn is a live subscriber connection. Send must be safe to call from
// worker goroutines.
type Conn interface {
	ID() string
	Ready() bool
	Send(msg []byte) error
	Close() error
}

// OrderSubscribers is the per-order entry of the stats snapshot.
type OrderSubscribers struct {
	OrderID         string `json:"orderId"`
	SubscriberCount int    `json:"subscriberCount"`
}

// Stats is the broadcaster observability snapshot.
type Stats struct {
	TotalClients int                `json:"totalClients"`
	TotalOrders  int                `json:"totalOrders"`
	OrderStats   []OrderSubscribers `json:"orderStats"`
}

// Broadcaster keys subscriber connections by order id. The registry is
// mutated concurrently by connect/disconnect events and read by broadcast
// calls from worker goroutines, so every access goes through one RWMutex.
type Broadcaster struct {
	mu      sync.RWMutex
	conns   map[string]Conn            // connID -> conn
	byOrder map[string]map[string]Conn // orderID -> connID -> conn
	logger  *zap.Logger
}

// NewBroadcaster creates an empty subscriber registry.
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		conns:   make(map[string]Conn),
		byOrder: make(map[string]map[string]Conn),
		logger:  logger,
	}
}

// Subscribe registers a connection under an order id.
func (b *Broadcaster) Subscribe(orderID string, c Conn) {
	b.mu.Lock()
	b.conns[c.ID()] = c
	set, ok := b.byOrder[orderID]
	if !ok {
		set = make(map[string]Conn)
		b.byOrder[orderID] = set
	}
	set[c.ID()] = c
	total := len(b.conns)
	b.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	b.logger.Info("Subscriber attached",
		zap.String("order_id", orderID),
		zap.String("client_id", c.ID()),
	)
}

// Unsubscribe removes a registration. When an order's subscriber set becomes
// empty the entry itself is deleted so the registry never accumulates stale
// empty sets.
func (b *Broadcaster) Unsubscribe(orderID, connID string) {
	b.mu.Lock()
	delete(b.conns, connID)
	if set, ok := b.byOrder[orderID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(b.byOrder, orderID)
		}
	}
	total := len(b.conns)
	b.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	b.logger.Info("Subscriber detached",
		zap.String("order_id", orderID),
		zap.String("client_id", connID),
	)
}

// Broadcast sends the serialized event to every open connection subscribed to
// the event's order. With zero subscribers the event is dropped; there is no
// buffering or replay for late subscribers. A send failure detaches that
// connection.
func (b *Broadcaster) Broadcast(update models.StatusUpdate) {
	b.mu.RLock()
	set, ok := b.byOrder[update.OrderID]
	if !ok || len(set) == 0 {
		b.mu.RUnlock()
		b.logger.Debug("No subscribers for order", zap.String("order_id", update.OrderID))
		return
	}
	targets := make([]Conn, 0, len(set))
	for _, c := range set {
		targets = append(targets, c)
	}
	b.mu.RUnlock()

	msg, err := json.Marshal(update)
	if err != nil {
		b.logger.Error("Failed to serialize status update",
			zap.String("order_id", update.OrderID), zap.Error(err))
		return
	}

	for _, c := range targets {
		if !c.Ready() {
			continue
		}
		if err := c.Send(msg); err != nil {
			b.logger.Warn("Send failed, detaching subscriber",
				zap.String("order_id", update.OrderID),
				zap.String("client_id", c.ID()),
				zap.Error(err),
			)
			b.Unsubscribe(update.OrderID, c.ID())
			c.Close()
			continue
		}
		b.logger.Debug("Status update sent",
			zap.String("order_id", update.OrderID),
			zap.String("status", string(update.Status)),
			zap.String("client_id", c.ID()),
		)
	}
}

// SubscriberCount reports the number of live subscribers for one order.
func (b *Broadcaster) SubscriberCount(orderID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byOrder[orderID])
}

// GetStats returns a point-in-time snapshot of the registry.
func (b *Broadcaster) GetStats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	stats := Stats{
		TotalClients: len(b.conns),
		TotalOrders:  len(b.byOrder),
		OrderStats:   make([]OrderSubscribers, 0, len(b.byOrder)),
	}
	for orderID, set := range b.byOrder {
		stats.OrderStats = append(stats.OrderStats, OrderSubscribers{
			OrderID:         orderID,
			SubscriberCount: len(set),
		})
	}
	return stats
}
