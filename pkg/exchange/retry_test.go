package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider returns errs in order, then a filled outcome.
type scriptedProvider struct {
	errs  []error
	calls int
}

func (s *scriptedProvider) Submit(context.Context, ...Order) (*Outcome, error) {
	s.calls++
	if s.calls <= len(s.errs) {
		return nil, s.errs[s.calls-1]
	}
	return &Outcome{Kind: OutcomeFilled, Nonce: uint64(s.calls)}, nil
}

func (s *scriptedProvider) MarketIOC(context.Context, string, bool, decimal.Decimal, float64) (Order, error) {
	return Order{}, nil
}
func (s *scriptedProvider) Warmup(context.Context) error { return nil }
func (s *scriptedProvider) Close() error                 { return nil }

var fastRetry = RetryConfig{MaxAttempts: 4, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}

func TestRetrierRetriesRetryableErrors(t *testing.T) {
	next := &scriptedProvider{errs: []error{
		&TransportError{Op: "POST /exchange", Timeout: true, Err: context.DeadlineExceeded},
		&StageError{Stage: "transport", Err: &ServerError{StatusCode: 502}},
	}}
	out, err := NewRetrier(next, fastRetry).Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFilled, out.Kind)
	assert.Equal(t, 3, next.calls)
}

func TestRetrierStopsOnFatalErrors(t *testing.T) {
	for name, fatal := range map[string]error{
		"client":   &ClientError{StatusCode: 422, Message: "bad nonce"},
		"encoding": &EncodingError{Field: "sz", Err: errors.New("must be positive")},
		"signing":  &SigningError{Err: errors.New("no key")},
	} {
		t.Run(name, func(t *testing.T) {
			next := &scriptedProvider{errs: []error{fatal}}
			_, err := NewRetrier(next, fastRetry).Submit(context.Background())
			require.ErrorIs(t, err, fatal)
			assert.Equal(t, 1, next.calls)
		})
	}
}

func TestRetrierGivesUpAfterMaxAttempts(t *testing.T) {
	server := &ServerError{StatusCode: 503}
	next := &scriptedProvider{errs: []error{server, server, server, server, server}}
	_, err := NewRetrier(next, fastRetry).Submit(context.Background())
	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, 4, next.calls)
}

func TestRetrierHonoursContext(t *testing.T) {
	server := &ServerError{StatusCode: 503}
	next := &scriptedProvider{errs: []error{server, server}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRetrier(next, RetryConfig{MaxAttempts: 3, InitialInterval: time.Hour}).Submit(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, next.calls)
}

func TestNewRetrierDefaults(t *testing.T) {
	r := NewRetrier(&scriptedProvider{}, RetryConfig{})
	assert.Equal(t, 1, r.cfg.MaxAttempts)
	assert.Equal(t, defaultRetryInitial, r.cfg.InitialInterval)
	assert.Equal(t, defaultRetryMax, r.cfg.MaxInterval)
	assert.Equal(t, defaultRetryMultiplier, r.cfg.Multiplier)
}
