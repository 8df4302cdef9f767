package hyperliquid

import (
	"context"
	"net"
	"net/url"
	"time"
)

// Probe names, in the order a probe round runs them.
const (
	ProbeDNS          = "dns"
	ProbeGetInfo      = "get_info"
	ProbePostInfo     = "post_info"
	ProbePostExchange = "post_exchange"
)

// unsignedOrderBody is rejected by the venue without touching the matching
// engine, which isolates the round trip of the exchange endpoint.
var unsignedOrderBody = []byte(`{"action":{"type":"order","orders":[],"grouping":"na"},"nonce":1234567890,"signature":{"r":"0x0","s":"0x0","v":27}}`)

// ProbeResult is one timed request of a probe round.
type ProbeResult struct {
	Name    string
	Round   int
	Latency time.Duration
	Status  int
	Bytes   int
	Err     error
}

// Prober measures raw network latency to the venue using the same pooled
// transport the pipeline uses.
type Prober struct {
	transport *Transport
	resolver  *net.Resolver
	host      string
	pause     time.Duration
}

// NewProber builds a prober; pause is slept between rounds.
func NewProber(transport *Transport, pause time.Duration) *Prober {
	host := ""
	if u, err := url.Parse(transport.BaseURL()); err == nil {
		host = u.Hostname()
	}
	return &Prober{transport: transport, resolver: net.DefaultResolver, host: host, pause: pause}
}

// Run executes rounds probe rounds and hands every result to observe as it completes.
// Individual request failures are reported through ProbeResult.Err; Run only fails on ctx.
func (p *Prober) Run(ctx context.Context, rounds int, observe func(ProbeResult)) error {
	for round := 1; round <= rounds; round++ {
		if p.host != "" {
			start := time.Now()
			_, err := p.resolver.LookupHost(ctx, p.host)
			observe(ProbeResult{Name: ProbeDNS, Round: round, Latency: time.Since(start), Err: err})
		}
		observe(p.timed(ProbeGetInfo, round, func() (int, []byte, error) {
			return p.transport.Get(ctx, InfoPath)
		}))
		observe(p.timed(ProbePostInfo, round, func() (int, []byte, error) {
			return p.transport.Post(ctx, InfoPath, []byte(`{"type":"allMids"}`))
		}))
		observe(p.timed(ProbePostExchange, round, func() (int, []byte, error) {
			return p.transport.Post(ctx, ExchangePath, unsignedOrderBody)
		}))

		if round == rounds || p.pause <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.pause):
		}
	}
	return ctx.Err()
}

func (p *Prober) timed(name string, round int, call func() (int, []byte, error)) ProbeResult {
	start := time.Now()
	status, body, err := call()
	return ProbeResult{Name: name, Round: round, Latency: time.Since(start), Status: status, Bytes: len(body), Err: err}
}
