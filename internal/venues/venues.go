// Package venues defines the quoting interface for trading venues and the
// simulated Raydium/Meteora clients used when mock execution is enabled.
package venues

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	engerr "github.com/solroute/orderengine/pkg/errors"
	"github.com/solroute/orderengine/pkg/models"
)

// Quote is a venue's proposed exchange terms for a given input amount.
type Quote struct {
	Dex           string          `json:"dex"`
	InputAmount   decimal.Decimal `json:"inputAmount"`
	OutputAmount  decimal.Decimal `json:"outputAmount"`
	PriceImpact   float64         `json:"priceImpact"`
	MinReceived   decimal.Decimal `json:"minReceived"`
	ExecutionTime int64           `json:"executionTime"` // ms
}

// Client quotes a token pair on a single venue.
type Client interface {
	Name() string
	GetQuote(ctx context.Context, tokenIn, tokenOut string, amountIn decimal.Decimal) (Quote, error)
}

var (
	baseRate      = decimal.RequireFromString("0.95")
	raydiumFactor = decimal.RequireFromString("1.005")
	meteoraFactor = decimal.RequireFromString("0.98")
	slippageFloor = decimal.RequireFromString("0.995")
)

// mockClient simulates a venue quote with a fixed rate and latency.
type mockClient struct {
	name        string
	rate        decimal.Decimal
	priceImpact float64
	delay       time.Duration
	enabled     bool
	logger      *zap.Logger
}

// NewMockRaydium returns the simulated Raydium client (0.5% above base rate).
func NewMockRaydium(delay time.Duration, enabled bool, logger *zap.Logger) Client {
	return &mockClient{
		name:        models.VenueRaydium,
		rate:        baseRate.Mul(raydiumFactor),
		priceImpact: 0.3,
		delay:       delay,
		enabled:     enabled,
		logger:      logger,
	}
}

// NewMockMeteora returns the simulated Meteora client (2% below base rate).
func NewMockMeteora(delay time.Duration, enabled bool, logger *zap.Logger) Client {
	return &mockClient{
		name:        models.VenueMeteora,
		rate:        baseRate.Mul(meteoraFactor),
		priceImpact: 0.8,
		delay:       delay,
		enabled:     enabled,
		logger:      logger,
	}
}

func (c *mockClient) Name() string { return c.name }

func (c *mockClient) GetQuote(ctx context.Context, tokenIn, tokenOut string, amountIn decimal.Decimal) (Quote, error) {
	if !c.enabled {
		return Quote{}, engerr.Newf(engerr.KindQuote, "Real %s quote not implemented", c.name)
	}

	// Simulated network latency; there is no per-call timeout, matching the
	// behavior of the real integrations this stands in for.
	time.Sleep(c.delay)

	outputAmount := amountIn.Mul(c.rate)
	minReceived := outputAmount.Mul(slippageFloor)

	c.logger.Debug("Generated venue quote",
		zap.String("dex", c.name),
		zap.String("token_in", tokenIn),
		zap.String("token_out", tokenOut),
		zap.String("amount_in", amountIn.String()),
		zap.String("output_amount", outputAmount.String()),
		zap.Float64("price_impact", c.priceImpact),
	)

	return Quote{
		Dex:           c.name,
		InputAmount:   amountIn,
		OutputAmount:  outputAmount,
		PriceImpact:   c.priceImpact,
		MinReceived:   minReceived,
		ExecutionTime: c.delay.Milliseconds(),
	}, nil
}
