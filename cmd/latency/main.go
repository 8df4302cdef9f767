package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/sync/errgroup"

	"hlsubmit/internal/cli"
	"hlsubmit/internal/config"
	"hlsubmit/pkg/exchange"
	_ "hlsubmit/pkg/exchange/hyperliquid"
	_ "hlsubmit/pkg/exchange/sim"
	"hlsubmit/pkg/journal"
	"hlsubmit/pkg/perf"
)

// runOptions is the resolved plan for one latency run.
type runOptions struct {
	Coin        string
	Size        decimal.Decimal
	IsBuy       bool
	Slippage    float64
	Rounds      int
	Concurrency int
	Pause       time.Duration
}

func optionsFrom(l config.LatencyConf) (runOptions, error) {
	size, err := decimal.NewFromString(l.Size)
	if err != nil || !size.IsPositive() {
		return runOptions{}, fmt.Errorf("latency.size %q must be a positive decimal", l.Size)
	}
	var pause time.Duration
	if l.Pause != "" {
		if pause, err = time.ParseDuration(l.Pause); err != nil {
			return runOptions{}, fmt.Errorf("latency.pause %q: %w", l.Pause, err)
		}
	}
	return runOptions{
		Coin:        l.Coin,
		Size:        size,
		IsBuy:       l.IsBuy,
		Slippage:    l.Slippage,
		Rounds:      l.Rounds,
		Concurrency: l.Concurrency,
		Pause:       pause,
	}, nil
}

// runRounds submits opts.Rounds aggressive IOC orders through p. Rejections
// and submission errors are journaled and counted; pricing failures and ctx
// cancellation stop the run.
func runRounds(ctx context.Context, p exchange.Provider, opts runOptions, stats *perf.Stats, jw *journal.Writer) (failed int, err error) {
	var mu sync.Mutex
	submit := func(ctx context.Context, round int) error {
		order, err := p.MarketIOC(ctx, opts.Coin, opts.IsBuy, opts.Size, opts.Slippage)
		if err != nil {
			return fmt.Errorf("round %d: price order: %w", round, err)
		}
		start := time.Now()
		out, subErr := p.Submit(ctx, order)
		wall := time.Since(start)
		stats.Record("round", wall)

		rec := journal.NewSubmissionRecord(order, out, subErr)
		rec.Round = round
		rec.WallTime = wall
		if jw != nil {
			if _, err := jw.WriteSubmission(rec); err != nil {
				logx.Errorf("journal: %v", err)
			}
		}
		if subErr != nil {
			logx.Errorf("round %d: %s error after %s: %v", round, rec.ErrorClass, wall, subErr)
		} else {
			logx.Infof("round %d: %s oid=%d nonce=%d in %s", round, out.Kind, out.Oid, out.Nonce, wall)
		}
		if !rec.Success() {
			mu.Lock()
			failed++
			mu.Unlock()
		}
		return nil
	}

	if opts.Concurrency <= 1 {
		for round := 1; round <= opts.Rounds; round++ {
			if err := submit(ctx, round); err != nil {
				return failed, err
			}
			if round < opts.Rounds && opts.Pause > 0 {
				select {
				case <-ctx.Done():
					return failed, ctx.Err()
				case <-time.After(opts.Pause):
				}
			}
		}
		return failed, ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for round := 1; round <= opts.Rounds && gctx.Err() == nil; round++ {
		g.Go(func() error { return submit(gctx, round) })
	}
	if err := g.Wait(); err != nil {
		return failed, err
	}
	return failed, ctx.Err()
}

func printSummaries(w io.Writer, stats *perf.Stats) {
	fmt.Fprintf(w, "%-10s %6s %10s %10s %10s %10s %10s\n", "stage", "n", "min(ms)", "avg(ms)", "p50(ms)", "p99(ms)", "max(ms)")
	for _, s := range stats.Summaries() {
		fmt.Fprintf(w, "%-10s %6d %10.3f %10.3f %10.3f %10.3f %10.3f\n", s.Stage, s.Count,
			perf.Millis(s.Min), perf.Millis(s.Avg), perf.Millis(s.P50), perf.Millis(s.P99), perf.Millis(s.Max))
	}
}

func fatalf(format string, args ...interface{}) {
	logx.Errorf(format, args...)
	os.Exit(1)
}

func main() {
	var (
		configPath  = flag.String("f", "etc/hlsubmit.yaml", "path to the application config")
		providerArg = flag.String("provider", "", "exchange provider name (defaults to latency.provider, then the exchange default)")
		useSim      = flag.Bool("sim", false, "submit to an in-process simulated venue instead of the configured provider")
		rounds      = flag.Int("n", 0, "number of submissions (overrides latency.rounds)")
		concurrency = flag.Int("c", 0, "concurrent submissions (overrides latency.concurrency)")
		coin        = flag.String("coin", "", "asset to trade (overrides latency.coin)")
		journalDir  = flag.String("journal", "", "directory for submission records (overrides latency.journal)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalf("load config: %v", err)
	}
	if err := cli.SetupLogging(cfg); err != nil {
		fatalf("setup logging: %v", err)
	}
	logx.DisableStat()

	if *rounds > 0 {
		cfg.Latency.Rounds = *rounds
	}
	if *concurrency > 0 {
		cfg.Latency.Concurrency = *concurrency
	}
	if *coin != "" {
		cfg.Latency.Coin = *coin
	}
	if *journalDir != "" {
		cfg.Latency.Journal = *journalDir
	}
	if *providerArg != "" {
		cfg.Latency.Provider = *providerArg
	}
	cli.LogConfigSummary(cfg)

	opts, err := optionsFrom(cfg.Latency)
	if err != nil {
		fatalf("%v", err)
	}

	stats := perf.NewStats(cfg.Perf.Keep)
	provider, closeFn, err := buildProvider(cfg, *useSim, stats)
	if err != nil {
		fatalf("build provider: %v", err)
	}
	defer func() {
		if err := closeFn(); err != nil {
			logx.Errorf("close providers: %v", err)
		}
	}()

	var jw *journal.Writer
	if cfg.Latency.Journal != "" {
		if jw, err = journal.NewWriter(cfg.Latency.Journal); err != nil {
			fatalf("%v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = provider.Warmup(warmCtx)
	cancel()
	if err != nil {
		fatalf("warmup: %v", err)
	}

	logx.Infof("submitting %d %s orders on %s (concurrency %d)", opts.Rounds, opts.Size, opts.Coin, opts.Concurrency)
	failed, err := runRounds(ctx, provider, opts, stats, jw)
	printSummaries(os.Stdout, stats)
	if err != nil {
		logx.Errorf("run stopped: %v", err)
	}
	if failed > 0 {
		logx.Infof("%d of %d submissions were not accepted", failed, opts.Rounds)
	}
}

// buildProvider wires stats into the chosen provider. Stage reports are only
// produced when profiling is on; wall-clock rounds are always recorded.
func buildProvider(cfg *config.Config, useSim bool, stats *perf.Stats) (exchange.Provider, func() error, error) {
	if useSim {
		p, err := exchange.GetProvider("sim", &exchange.ProviderConfig{Profile: cfg.Perf.Enabled, Sink: stats})
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	}
	if ex := cfg.Exchange.Value; ex != nil {
		for _, pc := range ex.Providers {
			pc.Sink = stats
		}
	}
	return cfg.BuildExchangeProvider(cfg.Latency.Provider)
}
