package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hlsubmit/internal/config"
	"hlsubmit/pkg/exchange"
	"hlsubmit/pkg/exchange/sim"
	"hlsubmit/pkg/journal"
	"hlsubmit/pkg/perf"
)

func newSimProvider(t *testing.T, stats *perf.Stats) *sim.Provider {
	t.Helper()
	p, err := sim.NewProvider(&exchange.ProviderConfig{Profile: true, Sink: stats})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	require.NoError(t, p.Warmup(context.Background()))
	return p
}

func TestOptionsFrom(t *testing.T) {
	opts, err := optionsFrom(config.LatencyConf{Coin: "ETH", Size: "0.01", IsBuy: true, Rounds: 3, Concurrency: 2, Pause: "250ms"})
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, opts.Pause)
	assert.True(t, opts.Size.Equal(decimal.RequireFromString("0.01")))

	_, err = optionsFrom(config.LatencyConf{Size: "-1"})
	require.Error(t, err)
	_, err = optionsFrom(config.LatencyConf{Size: "1", Pause: "soon"})
	require.Error(t, err)
}

func TestRunRoundsAgainstSimulator(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		stats := perf.NewStats(0)
		p := newSimProvider(t, stats)
		jw, err := journal.NewWriter(t.TempDir())
		require.NoError(t, err)

		opts := runOptions{
			Coin:        "ETH",
			Size:        decimal.RequireFromString("0.01"),
			IsBuy:       true,
			Slippage:    0.05,
			Rounds:      6,
			Concurrency: concurrency,
			Pause:       time.Millisecond,
		}
		failed, err := runRounds(context.Background(), p, opts, stats, jw)
		require.NoError(t, err)
		assert.Zero(t, failed)

		recs, err := journal.ReadDir(jw.Dir())
		require.NoError(t, err)
		require.Len(t, recs, 6)
		nonces := map[uint64]bool{}
		for _, rec := range recs {
			assert.Equal(t, exchange.OutcomeFilled, rec.Outcome)
			assert.False(t, nonces[rec.Nonce], "nonce reused")
			nonces[rec.Nonce] = true
		}

		round, ok := stats.Summary("round")
		require.True(t, ok)
		assert.Equal(t, 6, round.Count)
		sign, ok := stats.Summary("sign")
		require.True(t, ok)
		assert.Equal(t, 6, sign.Count)

		var out bytes.Buffer
		printSummaries(&out, stats)
		assert.Contains(t, out.String(), "transport")
		assert.Contains(t, out.String(), "round")
	}
}

// passiveProvider halves the limit price so buys never cross.
type passiveProvider struct {
	exchange.Provider
}

func (p passiveProvider) MarketIOC(ctx context.Context, coin string, isBuy bool, qty decimal.Decimal, slippage float64) (exchange.Order, error) {
	order, err := p.Provider.MarketIOC(ctx, coin, isBuy, qty, slippage)
	order.LimitPx = order.LimitPx.Div(decimal.NewFromInt(2)).Round(0)
	return order, err
}

func TestRunRoundsCountsRejections(t *testing.T) {
	stats := perf.NewStats(0)
	p := passiveProvider{newSimProvider(t, stats)}
	opts := runOptions{Coin: "ETH", Size: decimal.RequireFromString("0.01"), IsBuy: true, Slippage: 0.05, Rounds: 2, Concurrency: 1}
	failed, err := runRounds(context.Background(), p, opts, stats, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, failed)
}

func TestRunRoundsStopsOnContext(t *testing.T) {
	stats := perf.NewStats(0)
	p := newSimProvider(t, stats)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := runOptions{Coin: "ETH", Size: decimal.RequireFromString("0.01"), IsBuy: true, Slippage: 0.05, Rounds: 3, Concurrency: 1}
	_, err := runRounds(ctx, p, opts, stats, nil)
	require.Error(t, err)
}
