package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
	"go.uber.org/multierr"

	"hlsubmit/pkg/confkit"
	exchangepkg "hlsubmit/pkg/exchange"
)

const (
	// ProfileEnv overrides Perf.Enabled when set.
	ProfileEnv = "HL_PERF_PROFILE"
	// RoundsEnv overrides Latency.Rounds when set.
	RoundsEnv = "HL_LATENCY_ROUNDS"
)

// PerfConf controls per-stage timing of submissions.
type PerfConf struct {
	Enabled bool `json:",optional"`
	// Keep bounds the samples retained per stage for percentile summaries.
	Keep int `json:",default=10000"`
}

// LatencyConf drives the latency harness.
type LatencyConf struct {
	Provider    string  `json:",optional"`
	Coin        string  `json:",default=ETH"`
	Size        string  `json:",default=0.01"`
	IsBuy       bool    `json:",default=true"`
	Slippage    float64 `json:",default=0.05"`
	Rounds      int     `json:",default=10"`
	Concurrency int     `json:",default=1"`
	Pause       string  `json:",default=500ms"`
	Journal     string  `json:",optional"`
}

type Config struct {
	// Env is one of test | dev | prod.
	Env      string       `json:",default=dev"`
	Log      logx.LogConf `json:",optional"`
	Perf     PerfConf
	Latency  LatencyConf
	Exchange confkit.Section[exchangepkg.Config] `json:",optional"`

	mainPath string
	baseDir  string
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func Load(path string) (*Config, error) {
	confkit.LoadDotenvOnce()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %s: %w", path, err)
	}

	var cfg Config
	if err := conf.Load(absPath, &cfg, conf.UseEnv()); err != nil {
		return nil, fmt.Errorf("load config %s: %w", absPath, err)
	}

	cfg.mainPath = absPath
	cfg.baseDir = filepath.Dir(absPath)
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.hydrateSections(); err != nil {
		return nil, err
	}
	cfg.applyProfile()
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v, ok := confkit.EnvBool(ProfileEnv); ok {
		c.Perf.Enabled = v
	}
	if v, ok := confkit.EnvInt(RoundsEnv); ok {
		c.Latency.Rounds = v
	}
}

// applyProfile switches stage timing on for every provider when Perf.Enabled is set.
func (c *Config) applyProfile() {
	if !c.Perf.Enabled || c.Exchange.Value == nil {
		return
	}
	for _, p := range c.Exchange.Value.Providers {
		if p != nil {
			p.Profile = true
		}
	}
}

func (c *Config) Validate() error {
	var errs error
	switch strings.ToLower(strings.TrimSpace(c.Env)) {
	case "", "test", "dev", "prod":
		if strings.TrimSpace(c.Env) == "" {
			c.Env = "dev"
		}
	default:
		errs = multierr.Append(errs, errors.New("config: env must be one of test|dev|prod"))
	}
	if c.Perf.Keep <= 0 {
		errs = multierr.Append(errs, errors.New("config: perf.keep must be positive"))
	}
	return multierr.Append(errs, c.Latency.validate())
}

func (l LatencyConf) validate() error {
	var errs error
	if l.Rounds <= 0 {
		errs = multierr.Append(errs, errors.New("config: latency.rounds must be positive"))
	}
	if l.Concurrency <= 0 {
		errs = multierr.Append(errs, errors.New("config: latency.concurrency must be positive"))
	}
	if l.Slippage < 0 || l.Slippage >= 1 {
		errs = multierr.Append(errs, errors.New("config: latency.slippage must be in [0, 1)"))
	}
	return errs
}

func (c *Config) hydrateSections() error {
	if err := c.Exchange.Hydrate(c.baseDir, exchangepkg.LoadConfig); err != nil {
		return fmt.Errorf("load exchange config: %w", err)
	}
	return nil
}

func (c *Config) MainPath() string {
	return c.mainPath
}

func (c *Config) BaseDir() string {
	return c.baseDir
}
