package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"hlsubmit/internal/cli"
	"hlsubmit/internal/config"
	"hlsubmit/pkg/exchange"
	hl "hlsubmit/pkg/exchange/hyperliquid"
	"hlsubmit/pkg/exchange/sim"
	"hlsubmit/pkg/perf"
)

// probeStats folds probe results into per-probe latency samples and error counts.
type probeStats struct {
	stats  *perf.Stats
	errors map[string]int
}

func newProbeStats() *probeStats {
	return &probeStats{stats: perf.NewStats(0), errors: make(map[string]int)}
}

func (p *probeStats) observe(r hl.ProbeResult) {
	if r.Err != nil {
		p.errors[r.Name]++
		logx.Errorf("round %d %s: %s: %v", r.Round, r.Name, exchange.ErrorClass(r.Err), r.Err)
		return
	}
	p.stats.Record(r.Name, r.Latency)
	logx.Debugf("round %d %s: status=%d bytes=%d %s", r.Round, r.Name, r.Status, r.Bytes, r.Latency)
}

func (p *probeStats) print(w io.Writer) {
	fmt.Fprintf(w, "%-14s %6s %6s %10s %10s %10s\n", "probe", "ok", "err", "min(ms)", "avg(ms)", "max(ms)")
	for _, name := range []string{hl.ProbeDNS, hl.ProbeGetInfo, hl.ProbePostInfo, hl.ProbePostExchange} {
		s, ok := p.stats.Summary(name)
		if !ok && p.errors[name] == 0 {
			continue
		}
		fmt.Fprintf(w, "%-14s %6d %6d %10.3f %10.3f %10.3f\n", name, s.Count, p.errors[name],
			perf.Millis(s.Min), perf.Millis(s.Avg), perf.Millis(s.Max))
	}
}

func fatalf(format string, args ...interface{}) {
	logx.Errorf(format, args...)
	os.Exit(1)
}

// transportFor builds a transport for the named provider, or for a local
// simulated venue when useSim is set. The returned func releases it.
func transportFor(cfg *config.Config, name string, useSim bool) (*hl.Transport, func() error, error) {
	if useSim {
		srv, err := sim.Serve("", sim.NewVenue())
		if err != nil {
			return nil, nil, err
		}
		tcfg := hl.DefaultTransportConfig(hl.Mainnet)
		tcfg.BaseURL = srv.URL()
		tr, err := hl.NewTransport(tcfg)
		if err != nil {
			return nil, nil, err
		}
		return tr, func() error { tr.CloseIdleConnections(); return srv.Close() }, nil
	}

	ex := cfg.Exchange.Value
	if ex == nil {
		return nil, nil, fmt.Errorf("exchange section not configured")
	}
	if name == "" {
		name = ex.Default
	}
	pc, ok := ex.Providers[name]
	if !ok {
		return nil, nil, fmt.Errorf("exchange provider %q not defined", name)
	}
	network := hl.Mainnet
	if pc.Testnet {
		network = hl.Testnet
	}
	tr, err := hl.NewTransport(hl.TransportConfigFrom(pc, network))
	if err != nil {
		return nil, nil, err
	}
	return tr, func() error { tr.CloseIdleConnections(); return nil }, nil
}

func main() {
	var (
		configPath = flag.String("f", "etc/hlsubmit.yaml", "path to the application config")
		provider   = flag.String("provider", "", "exchange provider whose endpoint and transport settings are probed")
		useSim     = flag.Bool("sim", false, "probe an in-process simulated venue")
		rounds     = flag.Int("n", 10, "number of probe rounds")
		pause      = flag.Duration("pause", 500*time.Millisecond, "pause between rounds")
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

	tr, closeFn, err := transportFor(cfg, *provider, *useSim)
	if err != nil {
		fatalf("build transport: %v", err)
	}
	defer func() {
		if err := closeFn(); err != nil {
			logx.Errorf("close: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logx.Infof("probing %s for %d rounds", tr.BaseURL(), *rounds)
	stats := newProbeStats()
	if err := hl.NewProber(tr, *pause).Run(ctx, *rounds, stats.observe); err != nil {
		logx.Errorf("probe stopped: %v", err)
	}
	stats.print(os.Stdout)
}
