package executor

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/solroute/orderengine/internal/venues"
	engerr "github.com/solroute/orderengine/pkg/errors"
	"github.com/solroute/orderengine/pkg/models"
)

func TestExecuteDeductsSlippage(t *testing.T) {
	sim := New(true, 0, zap.NewNop())
	order := &models.Order{
		ID:                uuid.New(),
		AmountIn:          decimal.NewFromInt(100),
		SlippageTolerance: 0.5,
	}
	quote := venues.Quote{Dex: models.VenueRaydium, OutputAmount: decimal.NewFromInt(100)}

	result, err := sim.Execute(context.Background(), order, quote)
	require.NoError(t, err)

	// 100 minus 0.5% is 99.5.
	assert.True(t, result.ExecutedAmount.Equal(decimal.RequireFromString("99.5")),
		result.ExecutedAmount.String())
	assert.Equal(t, ReceiptID(order.ID.String()), result.TxHash)
}

func TestExecuteDisabledFailsWithExecutionError(t *testing.T) {
	sim := New(false, 0, zap.NewNop())
	order := &models.Order{ID: uuid.New(), AmountIn: decimal.NewFromInt(1)}

	_, err := sim.Execute(context.Background(), order, venues.Quote{})
	require.Error(t, err)
	assert.Equal(t, engerr.KindExecution, engerr.KindOf(err))
}

func TestReceiptID(t *testing.T) {
	id := uuid.New().String()

	first := ReceiptID(id)
	second := ReceiptID(id)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
	assert.Regexp(t, "^[0-9a-f]+$", first)

	// Distinct orders produce distinct receipts.
	assert.NotEqual(t, first, ReceiptID(uuid.New().String()))
}
