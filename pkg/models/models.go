// Package models holds the persisted entities and the wire types shared by the
// API, the execution pipeline, and the streaming surface.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of a swap order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusRouting   OrderStatus = "routing"
	StatusBuilding  OrderStatus = "building"
	StatusSubmitted OrderStatus = "submitted"
	StatusConfirmed OrderStatus = "confirmed"
	StatusFailed    OrderStatus = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s OrderStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// next maps each state to its single forward successor.
var next = map[OrderStatus]OrderStatus{
	StatusPending:   StatusRouting,
	StatusRouting:   StatusBuilding,
	StatusBuilding:  StatusSubmitted,
	StatusSubmitted: StatusConfirmed,
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
// Transitions are monotonic along pending -> routing -> building -> submitted
// -> confirmed; failed is reachable from any non-terminal state.
func CanTransition(from, to OrderStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	return next[from] == to
}

// Venue identifiers for the configured trading venues.
const (
	VenueRaydium = "raydium"
	VenueMeteora = "meteora"
)

// Order is a persisted token-swap order. Column names are load-bearing for
// external consumers of the orders table.
type Order struct {
	ID                uuid.UUID        `json:"id" gorm:"primaryKey;type:uuid"`
	UserID            string           `json:"user_id" gorm:"column:user_id;index"`
	TokenIn           string           `json:"token_in" gorm:"column:token_in"`
	TokenOut          string           `json:"token_out" gorm:"column:token_out"`
	AmountIn          decimal.Decimal  `json:"amount_in" gorm:"column:amount_in;type:decimal(38,18)"`
	MinAmountOut      decimal.Decimal  `json:"min_amount_out" gorm:"column:min_amount_out;type:decimal(38,18)"`
	SlippageTolerance float64          `json:"slippage_tolerance" gorm:"column:slippage_tolerance"`
	Status            OrderStatus      `json:"status" gorm:"column:status;index"`
	DexSelected       *string          `json:"dex_selected,omitempty" gorm:"column:dex_selected"`
	TxHash            *string          `json:"tx_hash,omitempty" gorm:"column:tx_hash"`
	ExecutedPrice     *decimal.Decimal `json:"executed_price,omitempty" gorm:"column:executed_price;type:decimal(38,18)"`
	ErrorReason       *string          `json:"error_reason,omitempty" gorm:"column:error_reason"`
	CreatedAt         time.Time        `json:"created_at" gorm:"column:created_at"`
	UpdatedAt         time.Time        `json:"updated_at" gorm:"column:updated_at"`
	CompletedAt       *time.Time       `json:"completed_at,omitempty" gorm:"column:completed_at"`
}

// TableName pins the table name regardless of gorm pluralization settings.
func (Order) TableName() string { return "orders" }

// OrderExecution is an append-only audit row, one per attempted swap.
type OrderExecution struct {
	ID           uuid.UUID        `json:"id" gorm:"primaryKey;type:uuid"`
	OrderID      uuid.UUID        `json:"order_id" gorm:"column:order_id;type:uuid;index"`
	Dex          string           `json:"dex" gorm:"column:dex"`
	InputAmount  decimal.Decimal  `json:"input_amount" gorm:"column:input_amount;type:decimal(38,18)"`
	OutputAmount *decimal.Decimal `json:"output_amount,omitempty" gorm:"column:output_amount;type:decimal(38,18)"`
	TxHash       *string          `json:"tx_hash,omitempty" gorm:"column:tx_hash"`
	Status       string           `json:"status" gorm:"column:status"`
	ErrorReason  *string          `json:"error_reason,omitempty" gorm:"column:error_reason"`
	CreatedAt    time.Time        `json:"created_at" gorm:"column:created_at"`
}

func (OrderExecution) TableName() string { return "order_executions" }

// OrderFailure is an append-only audit row, one per caught processing error,
// including errors that will be retried.
type OrderFailure struct {
	ID            uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	OrderID       uuid.UUID `json:"order_id" gorm:"column:order_id;type:uuid;index"`
	AttemptNumber int       `json:"attempt_number" gorm:"column:attempt_number"`
	Reason        string    `json:"reason" gorm:"column:reason"`
	ErrorCode     string    `json:"error_code" gorm:"column:error_code"`
	Metadata      string    `json:"metadata" gorm:"column:metadata;type:text"`
	CreatedAt     time.Time `json:"created_at" gorm:"column:created_at"`
}

func (OrderFailure) TableName() string { return "order_failures" }

// OrderRequest is the validated body of POST /api/orders/execute.
type OrderRequest struct {
	UserID            string  `json:"userId" binding:"required" validate:"required,min=1"`
	TokenIn           string  `json:"tokenIn" binding:"required" validate:"required,token_address"`
	TokenOut          string  `json:"tokenOut" binding:"required" validate:"required,token_address"`
	AmountIn          string  `json:"amountIn" binding:"required" validate:"required,amount"`
	MinAmountOut      string  `json:"minAmountOut" binding:"required" validate:"required,amount"`
	SlippageTolerance float64 `json:"slippageTolerance" validate:"omitempty,min=0.1,max=50"`
}

// OrderResponse is the 202 body returned on order admission.
type OrderResponse struct {
	OrderID   string      `json:"orderId"`
	WsURL     string      `json:"wsUrl"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
}

// StatusData carries the optional per-stage payload of a status update.
type StatusData struct {
	Dex    string `json:"dex,omitempty"`
	Price  string `json:"price,omitempty"`
	TxHash string `json:"txHash,omitempty"`
	Error  string `json:"error,omitempty"`
}

// StatusUpdate is the event pushed to every subscriber of an order.
type StatusUpdate struct {
	Event     string      `json:"event"`
	OrderID   string      `json:"orderId"`
	Status    OrderStatus `json:"status"`
	Data      StatusData  `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// NewStatusUpdate builds a status_update event stamped with the current time
// in milliseconds.
func NewStatusUpdate(orderID uuid.UUID, status OrderStatus, data StatusData) StatusUpdate {
	return StatusUpdate{
		Event:     "status_update",
		OrderID:   orderID.String(),
		Status:    status,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}
