// Package orders implements storage for orders and their audit trails.
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	engerr "github.com/solroute/orderengine/pkg/errors"
	"github.com/solroute/orderengine/pkg/models"
)

// OrderUpdate carries the optional fields written alongside a status change.
type OrderUpdate struct {
	DexSelected   *string
	TxHash        *string
	ExecutedPrice *decimal.Decimal
	ErrorReason   *string
	CompletedAt   *time.Time
}

// Repository defines the storage operations for orders.
type Repository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetOrdersByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error)
	GetOrdersByStatus(ctx context.Context, status models.OrderStatus, limit int) ([]*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus, upd OrderUpdate) error
	RecordExecution(ctx context.Context, exec *models.OrderExecution) error
	RecordFailure(ctx context.Context, orderID uuid.UUID, attempt int, reason, errorCode string, metadata map[string]interface{}) error
	GetFailuresByOrder(ctx context.Context, orderID uuid.UUID) ([]*models.OrderFailure, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a gorm-backed Repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("creating order: %w", err)
	}
	return nil
}

func (r *gormRepository) GetOrderByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).First(&order, "id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, engerr.Newf(engerr.KindOrderNotFound, "Order %s not found", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading order %s: %w", orderID, err)
	}
	return &order, nil
}

func (r *gormRepository) GetOrdersByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error) {
	var list []*models.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %s: %w", userID, err)
	}
	return list, nil
}

func (r *gormRepository) GetOrdersByStatus(ctx context.Context, status models.OrderStatus, limit int) ([]*models.Order, error) {
	var list []*models.Order
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("listing orders with status %s: %w", status, err)
	}
	return list, nil
}

func (r *gormRepository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus, upd OrderUpdate) error {
	fields := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if upd.DexSelected != nil {
		fields["dex_selected"] = *upd.DexSelected
	}
	if upd.TxHash != nil {
		fields["tx_hash"] = *upd.TxHash
	}
	if upd.ExecutedPrice != nil {
		fields["executed_price"] = *upd.ExecutedPrice
	}
	if upd.ErrorReason != nil {
		fields["error_reason"] = *upd.ErrorReason
	}
	if upd.CompletedAt != nil {
		fields["completed_at"] = *upd.CompletedAt
	}

	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("updating order %s: %w", orderID, res.Error)
	}
	if res.RowsAffected == 0 {
		return engerr.Newf(engerr.KindOrderNotFound, "Order %s not found", orderID)
	}
	return nil
}

func (r *gormRepository) RecordExecution(ctx context.Context, exec *models.OrderExecution) error {
	if exec.ID == uuid.Nil {
		exec.ID = uuid.New()
	}
	if exec.CreatedAt.IsZero() {
		exec.CreatedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(exec).Error; err != nil {
		return fmt.Errorf("recording execution for order %s: %w", exec.OrderID, err)
	}
	return nil
}

func (r *gormRepository) RecordFailure(ctx context.Context, orderID uuid.UUID, attempt int, reason, errorCode string, metadata map[string]interface{}) error {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshaling failure metadata: %w", err)
	}
	failure := &models.OrderFailure{
		ID:            uuid.New(),
		OrderID:       orderID,
		AttemptNumber: attempt,
		Reason:        reason,
		ErrorCode:     errorCode,
		Metadata:      string(meta),
		CreatedAt:     time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(failure).Error; err != nil {
		return fmt.Errorf("recording failure for order %s: %w", orderID, err)
	}
	return nil
}

func (r *gormRepository) GetFailuresByOrder(ctx context.Context, orderID uuid.UUID) ([]*models.OrderFailure, error) {
	var list []*models.OrderFailure
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("listing failures for order %s: %w", orderID, err)
	}
	return list, nil
}
