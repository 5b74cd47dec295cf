// Package executor simulates swap settlement. A real venue integration would
// replace Simulator behind the same contract: the pipeline does not know
// whether settlement is simulated or real.
package executor

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	engerr "github.com/solroute/orderengine/pkg/errors"
	"github.com/solroute/orderengine/internal/venues"
	"github.com/solroute/orderengine/pkg/models"
)

// Result is the settlement outcome of one execution attempt.
type Result struct {
	TxHash         string
	ExecutedAmount decimal.Decimal
}

// Simulator computes a deterministic executed amount from the winning quote
// and the order's slippage tolerance, after a configurable settlement delay.
type Simulator struct {
	enabled bool
	delay   time.Duration
	logger  *zap.Logger
}

// New creates a Simulator. When enabled is false every execution fails with
// an execution error, standing in for an unavailable settlement backend.
func New(enabled bool, delay time.Duration, logger *zap.Logger) *Simulator {
	return &Simulator{enabled: enabled, delay: delay, logger: logger}
}

var hundred = decimal.NewFromInt(100)

// Execute settles the order against the selected quote. Slippage is deducted
// proportionally to the order's declared tolerance, not the venue's price
// impact figure, so the executed amount never exceeds the quoted output.
func (s *Simulator) Execute(ctx context.Context, order *models.Order, quote venues.Quote) (Result, error) {
	if !s.enabled {
		return Result{}, engerr.New(engerr.KindExecution, "Real execution not implemented")
	}

	// Settlement time. Pure time-based suspension of the owning worker.
	time.Sleep(s.delay)

	slippage := quote.OutputAmount.
		Mul(decimal.NewFromFloat(order.SlippageTolerance)).
		Div(hundred)
	executed := quote.OutputAmount.Sub(slippage)

	txHash := ReceiptID(order.ID.String())

	s.logger.Info("Swap executed on simulated venue",
		zap.String("order_id", order.ID.String()),
		zap.String("dex", quote.Dex),
		zap.String("input_amount", order.AmountIn.String()),
		zap.String("output_amount", executed.String()),
		zap.String("tx_hash", txHash),
	)

	return Result{TxHash: txHash, ExecutedAmount: executed}, nil
}

// ReceiptID derives a stable, opaque settlement reference from the order id.
// It is reproducible and not cryptographically meaningful.
func ReceiptID(orderID string) string {
	h := hex.EncodeToString([]byte(orderID))
	if len(h) > 64 {
		h = h[:64]
	}
	return h
}
