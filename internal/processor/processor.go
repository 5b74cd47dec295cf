// Package processor drives one order through its execution lifecycle:
// pending -> routing -> building -> submitted -> confirmed, with failed
// reachable from any stage. Per stage, the persistence write commits before
// or together with the matching broadcast, so a subscriber that reads the
// store after an event never sees a state older than the event implied.
package processor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/solroute/orderengine/internal/executor"
	"github.com/solroute/orderengine/internal/orders"
	"github.com/solroute/orderengine/internal/router"
	engerr "github.com/solroute/orderengine/pkg/errors"
	"github.com/solroute/orderengine/pkg/metrics"
	"github.com/solroute/orderengine/pkg/models"
)

// Publisher fans a lifecycle event out to the order's subscribers.
type Publisher interface {
	Broadcast(update models.StatusUpdate)
}

// OrderCache is the write-through cache hook for finished orders.
type OrderCache interface {
	Set(ctx context.Context, order *models.Order) error
}

// Processor is the order state machine.
type Processor struct {
	repo       orders.Repository
	router     *router.Engine
	executor   *executor.Simulator
	publisher  Publisher
	cache      OrderCache // optional
	buildDelay time.Duration
	logger     *zap.Logger
}

// New wires a Processor. cache may be nil.
func New(
	repo orders.Repository,
	rt *router.Engine,
	sim *executor.Simulator,
	publisher Publisher,
	cache OrderCache,
	buildDelay time.Duration,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		repo:       repo,
		router:     rt,
		executor:   sim,
		publisher:  publisher,
		cache:      cache,
		buildDelay: buildDelay,
		logger:     logger,
	}
}

// Process runs the full lifecycle for one order. On failure at any stage the
// order is persisted as failed, a failure row is recorded, a failed event is
// broadcast, and the error is returned so the dispatcher can decide on retry.
func (p *Processor) Process(ctx context.Context, order *models.Order) error {
	start := time.Now()

	if err := p.run(ctx, order); err != nil {
		p.fail(ctx, order, err)
		metrics.OrdersProcessed.WithLabelValues(string(models.StatusFailed)).Inc()
		return err
	}

	metrics.OrdersProcessed.WithLabelValues(string(models.StatusConfirmed)).Inc()
	metrics.ProcessingLatency.Observe(time.Since(start).Seconds())
	return nil
}

func (p *Processor) run(ctx context.Context, order *models.Order) error {
	// Re-announce the current state so late pipelines and fresh retries both
	// start from a known event.
	p.emit(order, models.StatusPending, models.StatusData{})

	// Stage: routing.
	p.emit(order, models.StatusRouting, models.StatusData{})
	decision, err := p.router.Route(ctx, order.TokenIn, order.TokenOut, order.AmountIn)
	if err != nil {
		return err
	}

	p.logger.Info("Order routed",
		zap.String("order_id", order.ID.String()),
		zap.String("selected_dex", decision.SelectedDex),
		zap.String("reason", decision.Reason),
	)

	dex := decision.SelectedDex
	if err := p.repo.UpdateOrderStatus(ctx, order.ID, models.StatusRouting, orders.OrderUpdate{
		DexSelected: &dex,
	}); err != nil {
		return err
	}
	order.Status = models.StatusRouting
	order.DexSelected = &dex

	// Stage: building. Simulated transaction construction.
	p.emit(order, models.StatusBuilding, models.StatusData{Dex: dex})
	time.Sleep(p.buildDelay)

	// Stage: submitted. Announced before execution starts; this event carries
	// the quoted price and must not imply settlement success.
	p.emit(order, models.StatusSubmitted, models.StatusData{
		Dex:   dex,
		Price: decision.Selected.OutputAmount.String(),
	})

	// Stage: execution.
	result, err := p.executor.Execute(ctx, order, decision.Selected)
	if err != nil {
		return err
	}

	executed := result.ExecutedAmount
	if err := p.repo.RecordExecution(ctx, &models.OrderExecution{
		OrderID:      order.ID,
		Dex:          dex,
		InputAmount:  order.AmountIn,
		OutputAmount: &executed,
		TxHash:       &result.TxHash,
		Status:       "completed",
	}); err != nil {
		return err
	}

	now := time.Now()
	if err := p.repo.UpdateOrderStatus(ctx, order.ID, models.StatusConfirmed, orders.OrderUpdate{
		TxHash:        &result.TxHash,
		ExecutedPrice: &executed,
		CompletedAt:   &now,
	}); err != nil {
		return err
	}
	order.Status = models.StatusConfirmed
	order.TxHash = &result.TxHash
	order.ExecutedPrice = &executed
	order.CompletedAt = &now

	p.emit(order, models.StatusConfirmed, models.StatusData{
		Dex:    dex,
		Price:  executed.String(),
		TxHash: result.TxHash,
	})

	p.logger.Info("Order execution completed",
		zap.String("order_id", order.ID.String()),
		zap.String("tx_hash", result.TxHash),
		zap.String("executed_price", executed.String()),
	)

	if p.cache != nil {
		if updated, err := p.repo.GetOrderByID(ctx, order.ID); err == nil {
			if err := p.cache.Set(ctx, updated); err != nil {
				p.logger.Warn("Failed to cache confirmed order",
					zap.String("order_id", order.ID.String()), zap.Error(err))
			}
		}
	}

	return nil
}

// fail converts a stage error into the persisted failed state, an audit row,
// and a terminal failed event. This runs exactly once per attempt; the
// dispatcher's retry bookkeeping never re-enters it for the same error.
func (p *Processor) fail(ctx context.Context, order *models.Order, cause error) {
	reason := engerr.Reason(cause)
	code := string(engerr.KindOf(cause))

	p.logger.Error("Order execution failed",
		zap.String("order_id", order.ID.String()),
		zap.String("error_code", code),
		zap.Error(cause),
	)

	if err := p.repo.RecordFailure(ctx, order.ID, 1, reason, code, map[string]interface{}{
		"token_in":  order.TokenIn,
		"token_out": order.TokenOut,
		"amount_in": order.AmountIn.String(),
	}); err != nil {
		p.logger.Error("Failed to record failure row",
			zap.String("order_id", order.ID.String()), zap.Error(err))
	}

	now := time.Now()
	if err := p.repo.UpdateOrderStatus(ctx, order.ID, models.StatusFailed, orders.OrderUpdate{
		ErrorReason: &reason,
		CompletedAt: &now,
	}); err != nil {
		p.logger.Error("Failed to persist failed status",
			zap.String("order_id", order.ID.String()), zap.Error(err))
	}
	order.Status = models.StatusFailed
	order.ErrorReason = &reason

	p.emit(order, models.StatusFailed, models.StatusData{Error: reason})
}

func (p *Processor) emit(order *models.Order, status models.OrderStatus, data models.StatusData) {
	p.publisher.Broadcast(models.NewStatusUpdate(order.ID, status, data))
	p.logger.Debug("Status update emitted",
		zap.String("order_id", order.ID.String()),
		zap.String("status", string(status)),
	)
}
