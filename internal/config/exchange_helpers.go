package config

import (
	"errors"
	"fmt"

	"hlsubmit/pkg/confkit"
	"hlsubmit/pkg/exchange"
)

// MustLoadExchange loads etc/exchange.yaml from the project root and panics on error.
// It skips the main config, for tests that only need providers.
func MustLoadExchange() *exchange.Config {
	path := confkit.MustProjectPath("etc/exchange.yaml")
	cfg, err := exchange.LoadConfig(path)
	if err != nil {
		panic(fmt.Errorf("load exchange config %s: %w", path, err))
	}
	return cfg
}

// BuildExchangeProvider builds every configured provider and returns the one
// named by name, falling back to the config default. The returned close func
// releases all of them.
func (c *Config) BuildExchangeProvider(name string) (exchange.Provider, func() error, error) {
	if c.Exchange.Value == nil {
		return nil, nil, errors.New("config: exchange section not configured")
	}
	if name == "" {
		name = c.Exchange.Value.Default
	}
	if _, ok := c.Exchange.Value.Providers[name]; !ok {
		return nil, nil, fmt.Errorf("config: exchange provider %q not defined", name)
	}
	providers, err := c.Exchange.Value.BuildProviders()
	if err != nil {
		return nil, nil, err
	}
	return providers[name], func() error { return exchange.CloseProviders(providers) }, nil
}
