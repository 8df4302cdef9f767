package hyperliquid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"hlsubmit/pkg/exchange"
	"hlsubmit/pkg/perf"
)

// Poster sends a request body and returns the raw status and response body.
// *Transport is the production implementation.
type Poster interface {
	Post(ctx context.Context, path string, body []byte) (int, []byte, error)
}

// PipelineConfig fixes the per-pipeline signing parameters.
type PipelineConfig struct {
	Network      Network
	Vault        *common.Address
	ExpiresAfter time.Duration // added to the nonce to form the expiry; zero omits it
	Builder      *BuilderInfo
	Grouping     string
	Profile      bool      // record per-stage timings
	Sink         perf.Sink // receives reports when Profile is set
}

// Pipeline turns orders into a signed exchange request and classifies the reply.
// Safe for concurrent use; the nonce manager is the only shared mutable state.
type Pipeline struct {
	poster  Poster
	signer  Signer
	catalog Catalog
	nonces  *NonceManager
	cfg     PipelineConfig
}

// NewPipeline wires the stages together. nonces may be nil, in which case the
// pipeline owns a wall-clock nonce manager.
func NewPipeline(poster Poster, signer Signer, catalog Catalog, nonces *NonceManager, cfg PipelineConfig) (*Pipeline, error) {
	switch {
	case poster == nil:
		return nil, fmt.Errorf("hyperliquid: pipeline requires a transport")
	case signer == nil:
		return nil, &exchange.SigningError{Err: errors.New("no signer configured")}
	case catalog == nil:
		return nil, fmt.Errorf("hyperliquid: pipeline requires a catalog")
	}
	if nonces == nil {
		nonces = NewNonceManager(nil)
	}
	if cfg.Grouping == "" {
		cfg.Grouping = GroupingNA
	}
	return &Pipeline{poster: poster, signer: signer, catalog: catalog, nonces: nonces, cfg: cfg}, nil
}

// Network returns the signing network.
func (p *Pipeline) Network() Network { return p.cfg.Network }

// Submit runs every stage exactly once for orders, sent as one bulk order action.
//
// Accepted responses come back as an Outcome. Everything else is a typed error
// from pkg/exchange; with profiling on it is wrapped in *exchange.StageError
// naming the stage that failed. A consumed nonce is never rolled back.
func (p *Pipeline) Submit(ctx context.Context, orders ...exchange.Order) (*exchange.Outcome, error) {
	var timer *perf.Timer
	if p.cfg.Profile {
		timer = perf.NewTimer()
	}
	out, err := p.run(ctx, timer, orders)
	if timer == nil {
		return out, err
	}

	report := timer.Report()
	if err != nil {
		report.Failed = timer.Current().String()
		report.Total = timer.Elapsed()
		err = &exchange.StageError{Stage: report.Failed, Elapsed: report.Total, Err: err}
	} else {
		out.Timing = report
	}
	if p.cfg.Sink != nil {
		p.cfg.Sink.Observe(ctx, report)
	}
	return out, err
}

func (p *Pipeline) run(ctx context.Context, timer *perf.Timer, orders []exchange.Order) (*exchange.Outcome, error) {
	timer.Begin(perf.StageResolve)
	if len(orders) == 0 {
		return nil, exchange.ErrNoOrders
	}
	assets := make([]AssetInfo, len(orders))
	for i := range orders {
		asset, err := p.catalog.Resolve(ctx, orders[i].Coin)
		if err != nil {
			if errors.Is(err, ErrUnknownAsset) {
				return nil, &exchange.EncodingError{Field: fmt.Sprintf("order[%d].coin", i), Err: err}
			}
			return nil, fmt.Errorf("hyperliquid: resolve %s: %w", orders[i].Coin, err)
		}
		assets[i] = asset
	}
	timer.Mark(perf.StageResolve)

	action, err := BuildOrderAction(orders, assets, p.cfg.Grouping, p.cfg.Builder)
	if err != nil {
		return nil, err
	}
	encoded, err := EncodeAction(action)
	if err != nil {
		return nil, err
	}
	timer.Mark(perf.StageEncode)

	nonce := p.nonces.Next()
	out, err := p.send(ctx, timer, encoded, nonce)
	if err != nil {
		return nil, &exchange.NonceError{Nonce: nonce, Err: err}
	}
	out.Nonce = nonce
	return out, nil
}

// send runs the stages after nonce allocation.
func (p *Pipeline) send(ctx context.Context, timer *perf.Timer, encoded Encoded, nonce uint64) (*exchange.Outcome, error) {
	var expiresAfter *uint64
	if p.cfg.ExpiresAfter > 0 {
		expiry := nonce + uint64(p.cfg.ExpiresAfter.Milliseconds())
		expiresAfter = &expiry
	}
	timer.Mark(perf.StageNonce)

	connectionID := ConnectionID(encoded.Canonical, nonce, p.cfg.Vault, expiresAfter)
	timer.Mark(perf.StageDigest)

	sig, err := p.signer.SignL1(connectionID, p.cfg.Network)
	if err != nil {
		var signErr *exchange.SigningError
		if !errors.As(err, &signErr) {
			err = &exchange.SigningError{Err: err}
		}
		return nil, err
	}
	timer.Mark(perf.StageSign)

	body, err := MarshalEnvelope(encoded.JSON, nonce, sig, p.cfg.Vault, expiresAfter)
	if err != nil {
		return nil, err
	}
	timer.Mark(perf.StageEnvelope)

	status, raw, err := p.poster.Post(ctx, ExchangePath, body)
	if err != nil {
		var transportErr *exchange.TransportError
		if !errors.As(err, &transportErr) {
			err = &exchange.TransportError{Op: "POST " + ExchangePath, Timeout: errors.Is(err, context.DeadlineExceeded), Err: err}
		}
		return nil, err
	}
	timer.Mark(perf.StageTransport)

	out, err := Classify(status, raw)
	if err != nil {
		return nil, err
	}
	timer.Mark(perf.StageClassify)
	return out, nil
}
