package hyperliquid

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"hlsubmit/pkg/exchange"
)

const (
	// DefaultPriceSigFigs is the most significant figures the venue accepts for prices.
	DefaultPriceSigFigs = 5
	// maxPerpPriceDecimals bounds price decimals as maxPerpPriceDecimals - szDecimals.
	maxPerpPriceDecimals = 6
	// DefaultSlippage is the IOC price offset from mid used when none is given.
	DefaultSlippage = 0.01
)

// FormatSize rounds qty to szDecimals places (half away from zero) and drops the sign.
func FormatSize(qty decimal.Decimal, szDecimals int) decimal.Decimal {
	return qty.Abs().Round(int32(szDecimals))
}

// RoundPriceToSigFigs rounds px to sigFigs significant figures, capped at
// 6-szDecimals fractional digits. Integer prices are always accepted, so
// large prices round to whole numbers rather than losing integer digits.
func RoundPriceToSigFigs(px decimal.Decimal, sigFigs, szDecimals int) decimal.Decimal {
	if !px.IsPositive() {
		return px
	}
	if sigFigs <= 0 {
		sigFigs = DefaultPriceSigFigs
	}
	magnitude := int(math.Floor(math.Log10(px.InexactFloat64())))
	decimals := sigFigs - 1 - magnitude
	if limit := maxPerpPriceDecimals - szDecimals; decimals > limit {
		decimals = limit
	}
	if decimals < 0 {
		decimals = 0
	}
	return px.Round(int32(decimals))
}

// AggressiveIOC builds an immediate-or-cancel limit order priced slippage away
// from mid, so it crosses the book like a market order with a price cap.
func AggressiveIOC(asset AssetInfo, isBuy bool, qty, mid decimal.Decimal, slippage float64) (exchange.Order, error) {
	if !mid.IsPositive() {
		return exchange.Order{}, &exchange.EncodingError{Field: "mid", Err: fmt.Errorf("reference price must be positive, got %s", mid)}
	}
	if slippage <= 0 {
		slippage = DefaultSlippage
	}
	factor := decimal.NewFromFloat(1 + slippage)
	if !isBuy {
		factor = decimal.NewFromFloat(1 - slippage)
	}
	sz := FormatSize(qty, asset.SzDecimals)
	if sz.IsZero() {
		return exchange.Order{}, &exchange.EncodingError{Field: "sz", Err: fmt.Errorf("%s rounds to zero at szDecimals=%d", qty, asset.SzDecimals)}
	}
	return exchange.Order{
		Coin:      asset.Name,
		IsBuy:     isBuy,
		LimitPx:   RoundPriceToSigFigs(mid.Mul(factor), DefaultPriceSigFigs, asset.SzDecimals),
		Sz:        sz,
		OrderType: exchange.OrderType{Limit: &exchange.LimitOrderType{TIF: exchange.TIFIoc}},
	}, nil
}

// MarketIOC resolves coin and its current mid and returns an AggressiveIOC order.
func (c *Client) MarketIOC(ctx context.Context, coin string, isBuy bool, qty decimal.Decimal, slippage float64) (exchange.Order, error) {
	asset, err := c.Resolve(ctx, coin)
	if err != nil {
		return exchange.Order{}, err
	}
	mid, err := c.MidPrice(ctx, asset.Name)
	if err != nil {
		return exchange.Order{}, err
	}
	return AggressiveIOC(asset, isBuy, qty, mid, slippage)
}
