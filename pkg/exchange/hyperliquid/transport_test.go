package hyperliquid

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"hlsubmit/pkg/exchange"
)

func newTestTransport(t *testing.T, baseURL string, mutate ...func(*TransportConfig)) *Transport {
	t.Helper()
	cfg := DefaultTransportConfig(Mainnet)
	cfg.BaseURL = baseURL
	cfg.RequestTimeout = 5 * time.Second
	for _, m := range mutate {
		m(&cfg)
	}
	tr, err := NewTransport(cfg)
	require.NoError(t, err)
	t.Cleanup(tr.CloseIdleConnections)
	return tr
}

func TestTransportPostReturnsRawStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, ExchangePath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write(append([]byte("echo:"), body...))
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv.URL+"/")
	status, body, err := tr.Post(context.Background(), ExchangePath, []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, status)
	assert.Equal(t, `echo:{"a":1}`, string(body))
	assert.Equal(t, srv.URL, tr.BaseURL(), "trailing slash is trimmed")
}

func TestTransportTimeoutReturnsPromptly(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	tr := newTestTransport(t, srv.URL, func(c *TransportConfig) { c.RequestTimeout = time.Millisecond })

	start := time.Now()
	_, _, err := tr.Post(context.Background(), ExchangePath, []byte(`{}`))
	elapsed := time.Since(start)

	var transportErr *exchange.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.True(t, transportErr.Timeout)
	assert.True(t, exchange.IsRetryable(err))
	assert.Less(t, elapsed, 50*time.Millisecond)
}

func TestTransportCallerCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, _, err := tr.Post(ctx, ExchangePath, nil)
	var transportErr *exchange.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.True(t, transportErr.Timeout)
}

func TestTransportConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	tr := newTestTransport(t, url)
	_, _, err := tr.Post(context.Background(), InfoPath, []byte(`{}`))
	var transportErr *exchange.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.False(t, transportErr.Timeout)
	assert.Equal(t, "transport", exchange.ErrorClass(err))
}

func TestTransportConcurrentRequestsShareThePool(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv.URL, func(c *TransportConfig) {
		c.MaxIdleConnsPerHost = 4
		c.TCPNoDelay = false
	})
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			status, _, err := tr.Post(ctx, InfoPath, []byte(`{}`))
			if err == nil {
				assert.Equal(t, http.StatusOK, status)
			}
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int64(32), hits.Load())
}

func TestNewTransportValidation(t *testing.T) {
	_, err := NewTransport(TransportConfig{})
	require.Error(t, err)

	_, err = NewTransport(TransportConfig{BaseURL: "http://127.0.0.1", LocalAddr: "not an ip:x"})
	require.Error(t, err)

	tr, err := NewTransport(TransportConfig{BaseURL: "http://127.0.0.1", LocalAddr: "127.0.0.1"})
	require.NoError(t, err)
	assert.NotNil(t, tr.HTTPClient())

	assert.Equal(t, TestnetAPIURL, DefaultTransportConfig(Testnet).BaseURL)
	assert.True(t, DefaultTransportConfig(Mainnet).TCPNoDelay)
}
