package hyperliquid

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/time/rate"

	"hlsubmit/pkg/exchange"
	"hlsubmit/pkg/perf"
)

// Provider bundles the transport, info client and pipeline behind exchange.Provider.
type Provider struct {
	transport *Transport
	client    *Client
	pipeline  *Pipeline
}

var _ exchange.Provider = (*Provider)(nil)

func init() {
	exchange.RegisterProvider("hyperliquid", func(name string, cfg *exchange.ProviderConfig) (exchange.Provider, error) {
		return NewProviderFromConfig(cfg)
	})
}

// NewProvider assembles a provider from already-built parts.
func NewProvider(transport *Transport, client *Client, pipeline *Pipeline) *Provider {
	return &Provider{transport: transport, client: client, pipeline: pipeline}
}

// NewProviderFromConfig builds the full stack described by cfg.
func NewProviderFromConfig(cfg *exchange.ProviderConfig) (*Provider, error) {
	network := Mainnet
	if cfg.Testnet {
		network = Testnet
	}

	tcfg := TransportConfigFrom(cfg, network)
	transport, err := NewTransport(tcfg)
	if err != nil {
		return nil, err
	}

	var clientOpts []ClientOption
	if cfg.AssetCacheTTL > 0 {
		clientOpts = append(clientOpts, WithAssetCacheTTL(cfg.AssetCacheTTL))
	}
	if cfg.InfoRateLimit > 0 {
		clientOpts = append(clientOpts, WithRateLimit(rate.Limit(cfg.InfoRateLimit), int(cfg.InfoRateLimit)))
	}
	client, err := NewClient(transport, clientOpts...)
	if err != nil {
		return nil, err
	}

	signer, err := NewPrivateKeySigner(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	pcfg := PipelineConfig{
		Network:      network,
		ExpiresAfter: cfg.ExpiresAfter,
		Grouping:     cfg.Grouping,
		Profile:      cfg.Profile,
		Sink:         cfg.Sink,
	}
	if pcfg.Profile && pcfg.Sink == nil {
		pcfg.Sink = perf.LogSink{}
	}
	if cfg.VaultAddress != "" {
		if !common.IsHexAddress(cfg.VaultAddress) {
			return nil, fmt.Errorf("hyperliquid: invalid vault address %q", cfg.VaultAddress)
		}
		vault := common.HexToAddress(cfg.VaultAddress)
		pcfg.Vault = &vault
	}
	if cfg.BuilderAddress != "" {
		pcfg.Builder = &BuilderInfo{Address: cfg.BuilderAddress, Fee: cfg.BuilderFee}
	}

	pipeline, err := NewPipeline(transport, signer, client, NewNonceManager(nil), pcfg)
	if err != nil {
		return nil, err
	}
	logx.Infof("hyperliquid: provider ready network=%s base=%s signer=%s profile=%t", network, transport.BaseURL(), signer.Address(), cfg.Profile)
	return NewProvider(transport, client, pipeline), nil
}

// TransportConfigFrom maps provider config onto transport knobs, keeping
// defaults for anything left unset.
func TransportConfigFrom(cfg *exchange.ProviderConfig, network Network) TransportConfig {
	tcfg := DefaultTransportConfig(network)
	if cfg.BaseURL != "" {
		tcfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		tcfg.RequestTimeout = cfg.Timeout
	}
	if cfg.ConnectTimeout > 0 {
		tcfg.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.KeepAlive > 0 {
		tcfg.KeepAlive = cfg.KeepAlive
	}
	if cfg.IdleConnTimeout > 0 {
		tcfg.IdleConnTimeout = cfg.IdleConnTimeout
	}
	if cfg.MaxIdleConnsPerHost > 0 {
		tcfg.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	}
	tcfg.LocalAddr = cfg.LocalAddr
	tcfg.TCPNoDelay = cfg.NoDelay()
	return tcfg
}

// Submit delegates to the pipeline.
func (p *Provider) Submit(ctx context.Context, orders ...exchange.Order) (*exchange.Outcome, error) {
	return p.pipeline.Submit(ctx, orders...)
}

// MarketIOC delegates to the info client.
func (p *Provider) MarketIOC(ctx context.Context, coin string, isBuy bool, qty decimal.Decimal, slippage float64) (exchange.Order, error) {
	return p.client.MarketIOC(ctx, coin, isBuy, qty, slippage)
}

// Warmup loads the asset directory, which also opens a pooled connection.
func (p *Provider) Warmup(ctx context.Context) error {
	return p.client.Refresh(ctx)
}

// Client returns the info client.
func (p *Provider) Client() *Client { return p.client }

// Transport returns the shared transport.
func (p *Provider) Transport() *Transport { return p.transport }

// Close drops pooled connections.
func (p *Provider) Close() error {
	p.transport.CloseIdleConnections()
	return nil
}
