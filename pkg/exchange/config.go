package exchange

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"hlsubmit/pkg/perf"
)

// Config captures configuration for one or more exchange providers.
type Config struct {
	Default   string                     `yaml:"default"`
	Providers map[string]*ProviderConfig `yaml:"providers"`
}

// ProviderConfig describes how to construct a specific exchange provider instance.
// Duration fields are read as strings ("30s", "5m") and parsed into their typed twins.
type ProviderConfig struct {
	Type         string `yaml:"type"`
	PrivateKey   string `yaml:"private_key"`
	VaultAddress string `yaml:"vault_address"`
	Testnet      bool   `yaml:"testnet"`
	BaseURL      string `yaml:"base_url"`

	// Transport
	TimeoutRaw          string        `yaml:"timeout"`
	Timeout             time.Duration `yaml:"-"`
	ConnectTimeoutRaw   string        `yaml:"connect_timeout"`
	ConnectTimeout      time.Duration `yaml:"-"`
	KeepAliveRaw        string        `yaml:"keep_alive"`
	KeepAlive           time.Duration `yaml:"-"`
	IdleConnTimeoutRaw  string        `yaml:"idle_conn_timeout"`
	IdleConnTimeout     time.Duration `yaml:"-"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	LocalAddr           string        `yaml:"local_addr"`
	TCPNoDelay          *bool         `yaml:"tcp_nodelay"`

	// Signing
	Grouping        string        `yaml:"grouping"`
	ExpiresAfterRaw string        `yaml:"expires_after"`
	ExpiresAfter    time.Duration `yaml:"-"`
	BuilderAddress  string        `yaml:"builder_address"`
	BuilderFee      uint64        `yaml:"builder_fee"`

	// Catalog
	AssetCacheTTLRaw string        `yaml:"asset_cache_ttl"`
	AssetCacheTTL    time.Duration `yaml:"-"`
	InfoRateLimit    float64       `yaml:"info_rate_limit"`

	// Profile enables per-stage timing of every submission. Reports go to Sink,
	// or to the log when Sink is nil.
	Profile bool      `yaml:"profile"`
	Sink    perf.Sink `yaml:"-"`

	Retry RetryConfig `yaml:"retry"`
}

// NoDelay reports whether Nagle's algorithm should be disabled (default true).
func (p *ProviderConfig) NoDelay() bool {
	return p.TCPNoDelay == nil || *p.TCPNoDelay
}

// ProviderBuilder constructs a Provider from configuration.
type ProviderBuilder func(name string, cfg *ProviderConfig) (Provider, error)

var (
	providerRegistry   = make(map[string]ProviderBuilder)
	providerRegistryMu sync.RWMutex
)

// RegisterProvider associates a builder with an exchange provider type.
func RegisterProvider(typeName string, builder ProviderBuilder) {
	providerRegistryMu.Lock()
	defer providerRegistryMu.Unlock()
	providerRegistry[strings.ToLower(strings.TrimSpace(typeName))] = builder
}

func lookupProviderBuilder(typeName string) (ProviderBuilder, bool) {
	providerRegistryMu.RLock()
	defer providerRegistryMu.RUnlock()
	builder, ok := providerRegistry[strings.ToLower(strings.TrimSpace(typeName))]
	return builder, ok
}

// GetProvider constructs a single provider instance for the given type using
// the provided configuration. This is a convenience for tests and callers that
// want to instantiate a provider without building a full config map.
func GetProvider(typeName string, cfg *ProviderConfig) (Provider, error) {
	if cfg == nil {
		cfg = &ProviderConfig{}
	}
	cfgCopy := *cfg
	cfgCopy.Type = typeName
	if err := cfgCopy.validate("inline"); err != nil {
		return nil, err
	}
	return buildProvider("inline", &cfgCopy)
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open exchange config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read exchange config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal exchange config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() error {
	if c.Providers == nil {
		c.Providers = make(map[string]*ProviderConfig)
	}
	var errs error
	for name, provider := range c.Providers {
		if provider == nil {
			provider = &ProviderConfig{}
			c.Providers[name] = provider
		}
		provider.expandEnv()
		errs = multierr.Append(errs, provider.parseDurations(name))
	}
	return errs
}

func (p *ProviderConfig) expandEnv() {
	for _, field := range []*string{
		&p.Type, &p.PrivateKey, &p.VaultAddress, &p.BaseURL,
		&p.TimeoutRaw, &p.ConnectTimeoutRaw, &p.KeepAliveRaw, &p.IdleConnTimeoutRaw,
		&p.LocalAddr, &p.Grouping, &p.ExpiresAfterRaw, &p.BuilderAddress, &p.AssetCacheTTLRaw,
		&p.Retry.InitialIntervalRaw, &p.Retry.MaxIntervalRaw,
	} {
		*field = strings.TrimSpace(os.ExpandEnv(*field))
	}
}

func (p *ProviderConfig) parseDurations(name string) error {
	var errs error
	parse := func(field, raw string, dst *time.Duration) {
		d, err := parsePositiveDuration(raw)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("exchange provider %s: invalid %s %q: %w", name, field, raw, err))
			return
		}
		*dst = d
	}
	parse("timeout", p.TimeoutRaw, &p.Timeout)
	parse("connect_timeout", p.ConnectTimeoutRaw, &p.ConnectTimeout)
	parse("keep_alive", p.KeepAliveRaw, &p.KeepAlive)
	parse("idle_conn_timeout", p.IdleConnTimeoutRaw, &p.IdleConnTimeout)
	parse("expires_after", p.ExpiresAfterRaw, &p.ExpiresAfter)
	parse("asset_cache_ttl", p.AssetCacheTTLRaw, &p.AssetCacheTTL)
	parse("retry.initial_interval", p.Retry.InitialIntervalRaw, &p.Retry.InitialInterval)
	parse("retry.max_interval", p.Retry.MaxIntervalRaw, &p.Retry.MaxInterval)
	return errs
}

// parsePositiveDuration returns 0 for an empty string.
func parsePositiveDuration(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}

// Validate ensures all providers have sane configuration. Every problem is
// reported, not only the first.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("exchange config: providers cannot be empty")
	}
	var errs error
	if c.Default != "" {
		if _, ok := c.Providers[c.Default]; !ok {
			errs = multierr.Append(errs, fmt.Errorf("exchange config: default provider %q not defined", c.Default))
		}
	}
	for name, provider := range c.Providers {
		if strings.TrimSpace(name) == "" {
			errs = multierr.Append(errs, fmt.Errorf("exchange config: provider name cannot be empty"))
			continue
		}
		errs = multierr.Append(errs, provider.validate(name))
	}
	return errs
}

func (p *ProviderConfig) validate(name string) error {
	if p == nil {
		return fmt.Errorf("exchange config: provider %s is nil", name)
	}
	if strings.TrimSpace(p.Type) == "" {
		return fmt.Errorf("exchange config: provider %s must specify type", name)
	}
	if _, ok := lookupProviderBuilder(p.Type); !ok {
		return fmt.Errorf("exchange config: provider %s has unsupported type %q", name, p.Type)
	}

	var errs error
	if strings.ToLower(p.Type) == "hyperliquid" && p.PrivateKey == "" {
		errs = multierr.Append(errs, fmt.Errorf("exchange config: provider %s requires private_key", name))
	}
	if p.MaxIdleConnsPerHost < 0 {
		errs = multierr.Append(errs, fmt.Errorf("exchange config: provider %s max_idle_conns_per_host must be >= 0", name))
	}
	if p.InfoRateLimit < 0 {
		errs = multierr.Append(errs, fmt.Errorf("exchange config: provider %s info_rate_limit must be >= 0", name))
	}
	switch p.Grouping {
	case "", "na", "normalTpsl", "positionTpsl":
	default:
		errs = multierr.Append(errs, fmt.Errorf("exchange config: provider %s has unknown grouping %q", name, p.Grouping))
	}
	if p.BuilderFee > 0 && p.BuilderAddress == "" {
		errs = multierr.Append(errs, fmt.Errorf("exchange config: provider %s sets builder_fee without builder_address", name))
	}
	if p.Retry.MaxAttempts < 0 {
		errs = multierr.Append(errs, fmt.Errorf("exchange config: provider %s retry.max_attempts must be >= 0", name))
	}
	return errs
}

func buildProvider(name string, cfg *ProviderConfig) (Provider, error) {
	builder, ok := lookupProviderBuilder(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("exchange provider %s: unsupported type %q", name, cfg.Type)
	}
	provider, err := builder(name, cfg)
	if err != nil {
		return nil, fmt.Errorf("exchange provider %s: %w", name, err)
	}
	if cfg.Retry.MaxAttempts > 1 {
		provider = NewRetrier(provider, cfg.Retry)
	}
	return provider, nil
}

// BuildProviders instantiates exchange providers according to the configuration.
// Providers built before a failure are closed.
func (c *Config) BuildProviders() (map[string]Provider, error) {
	result := make(map[string]Provider, len(c.Providers))
	for name, providerCfg := range c.Providers {
		provider, err := buildProvider(name, providerCfg)
		if err != nil {
			for _, built := range result {
				err = multierr.Append(err, built.Close())
			}
			return nil, err
		}
		result[name] = provider
	}
	return result, nil
}

// CloseProviders closes every provider and aggregates the failures.
func CloseProviders(providers map[string]Provider) error {
	var errs error
	for _, p := range providers {
		errs = multierr.Append(errs, p.Close())
	}
	return errs
}
