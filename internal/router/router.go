// Package router implements the venue-quote routing engine. A routing attempt
// queries every configured venue concurrently and selects the venue offering
// the strictly larger output amount; ties resolve to the venue listed first.
package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/solroute/orderengine/internal/venues"
	engerr "github.com/solroute/orderengine/pkg/errors"
)

// RoutingDecision records the outcome of one routing attempt. It carries every
// quote gathered, in configured venue order, for observability.
type RoutingDecision struct {
	SelectedDex string         `json:"selectedDex"`
	Selected    venues.Quote   `json:"selectedQuote"`
	Quotes      []venues.Quote `json:"quotes"`
	Reason      string         `json:"reason"`
}

// Engine routes orders across a fixed, ordered set of venue clients.
type Engine struct {
	clients []venues.Client
	logger  *zap.Logger
}

// New creates a routing engine over the given venue clients. Client order is
// significant: it is the tiebreak order for equal quotes.
func New(logger *zap.Logger, clients ...venues.Client) *Engine {
	return &Engine{clients: clients, logger: logger}
}

// Route quotes all venues concurrently and picks the best output amount.
// A single venue failure fails the whole attempt; there are no partial
// routing results.
func (e *Engine) Route(ctx context.Context, tokenIn, tokenOut string, amountIn decimal.Decimal) (*RoutingDecision, error) {
	if len(e.clients) < 2 {
		return nil, engerr.New(engerr.KindRouting, "routing requires at least two configured venues")
	}

	e.logger.Info("Starting venue routing",
		zap.String("token_in", tokenIn),
		zap.String("token_out", tokenOut),
		zap.String("amount_in", amountIn.String()),
	)

	quotes := make([]venues.Quote, len(e.clients))
	errs := make([]error, len(e.clients))

	var wg sync.WaitGroup
	for i, client := range e.clients {
		wg.Add(1)
		go func(i int, client venues.Client) {
			defer wg.Done()
			quotes[i], errs[i] = client.GetQuote(ctx, tokenIn, tokenOut, amountIn)
		}(i, client)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, engerr.Wrap(engerr.KindRouting,
				fmt.Sprintf("quote from %s failed", e.clients[i].Name()), err)
		}
	}

	best := 0
	for i := 1; i < len(quotes); i++ {
		if quotes[i].OutputAmount.GreaterThan(quotes[best].OutputAmount) {
			best = i
		}
	}

	decision := &RoutingDecision{
		SelectedDex: quotes[best].Dex,
		Selected:    quotes[best],
		Quotes:      quotes,
		Reason:      e.rationale(quotes, best),
	}

	e.logger.Info("Venue routing decision",
		zap.String("selected_dex", decision.SelectedDex),
		zap.String("reason", decision.Reason),
		zap.String("output_amount", decision.Selected.OutputAmount.String()),
	)

	return decision, nil
}

// rationale states the winner's percentage advantage over the runner-up.
func (e *Engine) rationale(quotes []venues.Quote, best int) string {
	runnerUp := -1
	for i := range quotes {
		if i == best {
			continue
		}
		if runnerUp < 0 || quotes[i].OutputAmount.GreaterThan(quotes[runnerUp].OutputAmount) {
			runnerUp = i
		}
	}

	winner := quotes[best]
	loser := quotes[runnerUp]
	if loser.OutputAmount.IsZero() {
		return fmt.Sprintf("%s is the only venue quoting a non-zero output", title(winner.Dex))
	}

	advantage := winner.OutputAmount.
		Sub(loser.OutputAmount).
		Div(loser.OutputAmount).
		Mul(decimal.NewFromInt(100))
	return fmt.Sprintf("%s offers %s%% better rate", title(winner.Dex), advantage.StringFixed(2))
}

func title(name string) string {
	if name == "" {
		return name
	}
	if name[0] >= 'a' && name[0] <= 'z' {
		return string(name[0]-'a'+'A') + name[1:]
	}
	return name
}
