package hyperliquid

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hlsubmit/pkg/exchange"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRoundPriceToSigFigs(t *testing.T) {
	tests := []struct {
		px         string
		sigFigs    int
		szDecimals int
		want       string
	}{
		{"65123.456", 5, 5, "65123"},
		{"123456.7", 5, 0, "123457"},
		{"1.234567", 5, 0, "1.2346"},
		{"0.000123456", 5, 2, "0.0001"},
		{"3030.04", 5, 4, "3030"},
		{"3030.06", 5, 4, "3030.1"},
		{"1.234567", 0, 0, "1.2346"},
	}
	for _, tc := range tests {
		got := RoundPriceToSigFigs(dec(tc.px), tc.sigFigs, tc.szDecimals)
		assert.Truef(t, got.Equal(dec(tc.want)), "RoundPriceToSigFigs(%s, %d, %d) = %s, want %s", tc.px, tc.sigFigs, tc.szDecimals, got, tc.want)
	}
	assert.True(t, RoundPriceToSigFigs(decimal.Zero, 5, 0).IsZero())
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "0.123", FormatSize(dec("-0.123456"), 3).String())
	assert.Equal(t, "0.124", FormatSize(dec("0.1235"), 3).String())
	assert.Equal(t, "2", FormatSize(dec("1.5"), 0).String())
}

func TestAggressiveIOC(t *testing.T) {
	asset := AssetInfo{Name: "SOL", Index: 5, SzDecimals: 2}

	buy, err := AggressiveIOC(asset, true, dec("1.234"), dec("100"), 0.01)
	require.NoError(t, err)
	assert.Equal(t, "SOL", buy.Coin)
	assert.True(t, buy.IsBuy)
	assert.True(t, buy.LimitPx.Equal(dec("101")), "got %s", buy.LimitPx)
	assert.True(t, buy.Sz.Equal(dec("1.23")))
	require.NotNil(t, buy.OrderType.Limit)
	assert.Equal(t, exchange.TIFIoc, buy.OrderType.Limit.TIF)

	sell, err := AggressiveIOC(asset, false, dec("1"), dec("100"), 0)
	require.NoError(t, err)
	assert.True(t, sell.LimitPx.Equal(dec("99")), "default slippage applies, got %s", sell.LimitPx)

	_, err = AggressiveIOC(asset, true, dec("0.001"), dec("100"), 0.01)
	var encErr *exchange.EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, "sz", encErr.Field)

	_, err = AggressiveIOC(asset, true, dec("1"), decimal.Zero, 0.01)
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, "mid", encErr.Field)

	// the produced order always encodes
	_, err = BuildOrderAction([]exchange.Order{buy, sell}, []AssetInfo{asset, asset}, "", nil)
	require.NoError(t, err)
}

func TestClientMarketIOC(t *testing.T) {
	_, ts := newInfoServer(t)
	c := newTestClient(t, ts.URL)

	order, err := c.MarketIOC(context.Background(), "eth", true, dec("0.5"), 0.01)
	require.NoError(t, err)
	assert.Equal(t, "ETH", order.Coin)
	assert.True(t, order.LimitPx.Equal(dec("3030")), "got %s", order.LimitPx)
	assert.True(t, order.Sz.Equal(dec("0.5")))

	_, err = c.MarketIOC(context.Background(), "DOGE", true, dec("1"), 0.01)
	require.ErrorIs(t, err, ErrUnknownAsset)
}
