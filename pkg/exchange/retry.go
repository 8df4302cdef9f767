package exchange

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/zeromicro/go-zero/core/logx"
)

const (
	defaultRetryInitial    = 100 * time.Millisecond
	defaultRetryMax        = 2 * time.Second
	defaultRetryMultiplier = 2.0
)

// RetryConfig encapsulates exponential backoff settings for caller-side retries.
type RetryConfig struct {
	MaxAttempts        int           `yaml:"max_attempts"`
	InitialIntervalRaw string        `yaml:"initial_interval"`
	InitialInterval    time.Duration `yaml:"-"`
	MaxIntervalRaw     string        `yaml:"max_interval"`
	MaxInterval        time.Duration `yaml:"-"`
	Multiplier         float64       `yaml:"multiplier"`
}

// Retrier resubmits after transport and server failures. Every attempt runs
// the full pipeline again and so signs with a fresh nonce; client errors and
// accepted outcomes are returned immediately.
type Retrier struct {
	Provider
	cfg RetryConfig
}

// NewRetrier wraps next with retry behaviour; zero config fields take defaults.
func NewRetrier(next Provider, cfg RetryConfig) *Retrier {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = defaultRetryInitial
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = defaultRetryMax
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = defaultRetryMultiplier
	}
	return &Retrier{Provider: next, cfg: cfg}
}

// Submit implements Submitter.
func (r *Retrier) Submit(ctx context.Context, orders ...Order) (*Outcome, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.cfg.InitialInterval
	bo.MaxInterval = r.cfg.MaxInterval
	bo.Multiplier = r.cfg.Multiplier

	for attempt := 1; ; attempt++ {
		out, err := r.Provider.Submit(ctx, orders...)
		if err == nil || !IsRetryable(err) || attempt >= r.cfg.MaxAttempts {
			return out, err
		}
		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return out, err
		}
		logx.WithContext(ctx).Infof("exchange: submit attempt=%d class=%s retrying in %s: %v", attempt, ErrorClass(err), wait, err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
