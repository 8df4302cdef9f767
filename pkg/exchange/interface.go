package exchange

import (
	"context"

	"github.com/shopspring/decimal"
)

// Submitter sends one bulk order action and reports how the venue answered.
type Submitter interface {
	Submit(ctx context.Context, orders ...Order) (*Outcome, error)
}

// Provider exposes order submission plus the market lookups needed to price orders.
type Provider interface {
	Submitter

	// MarketIOC builds an immediate-or-cancel order priced slippage away from the current mid.
	MarketIOC(ctx context.Context, coin string, isBuy bool, qty decimal.Decimal, slippage float64) (Order, error)

	// Warmup loads the asset catalog and opens pooled connections before the first submission.
	Warmup(ctx context.Context) error

	// Close releases pooled connections and any in-process resources.
	Close() error
}
