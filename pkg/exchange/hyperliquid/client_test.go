package hyperliquid

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"hlsubmit/pkg/exchange"
)

const testMetaAndAssetCtxs = `[
  {"universe":[
    {"name":"BTC","szDecimals":5,"maxLeverage":40},
    {"name":"ETH","szDecimals":4,"maxLeverage":25},
    {"name":"kPEPE","szDecimals":0,"maxLeverage":10,"isDelisted":true}
  ]},
  [
    {"markPx":"65010.0","midPx":"65005.5","oraclePx":"65000.0"},
    {"markPx":"3001.2","midPx":"3000.0","oraclePx":"3000.5"},
    {"markPx":"0.0123","oraclePx":"0.0122"}
  ]
]`

const testAllMids = `{"BTC":"65005.5","ETH":"3000","kPEPE":"0.0123"}`

// infoServer is a scripted /info endpoint. failures makes the next n requests
// answer with failStatus.
type infoServer struct {
	mu         sync.Mutex
	meta       string
	failures   int
	failStatus int
	calls      map[string]int
	total      atomic.Int64
}

func newInfoServer(t *testing.T) (*infoServer, *httptest.Server) {
	t.Helper()
	s := &infoServer{meta: testMetaAndAssetCtxs, calls: map[string]int{}}
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return s, srv
}

func (s *infoServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.total.Add(1)
	body, _ := io.ReadAll(r.Body)
	var req InfoRequest
	if err := json.Unmarshal(body, &req); err != nil || r.URL.Path != InfoPath {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("Failed to deserialize the JSON body"))
		return
	}

	s.mu.Lock()
	s.calls[req.Type]++
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	meta := s.meta
	status := s.failStatus
	s.mu.Unlock()

	if fail {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("scripted failure"))
		return
	}
	switch req.Type {
	case "metaAndAssetCtxs":
		_, _ = w.Write([]byte(meta))
	case "allMids":
		_, _ = w.Write([]byte(testAllMids))
	default:
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte("unknown type"))
	}
}

func (s *infoServer) fail(n, status int) {
	s.mu.Lock()
	s.failures, s.failStatus = n, status
	s.mu.Unlock()
}

func (s *infoServer) count(typ string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[typ]
}

func newTestClient(t *testing.T, url string, opts ...ClientOption) *Client {
	t.Helper()
	c, err := NewClient(newTestTransport(t, url), append([]ClientOption{WithRateLimit(0, 0)}, opts...)...)
	require.NoError(t, err)
	return c
}

func TestClientResolveLoadsDirectoryOnce(t *testing.T) {
	srv, ts := newInfoServer(t)
	c := newTestClient(t, ts.URL)
	ctx := context.Background()

	eth, err := c.Resolve(ctx, "eth")
	require.NoError(t, err)
	assert.Equal(t, AssetInfo{
		Name: "ETH", Index: 1, SzDecimals: 4, MaxLeverage: 25,
		MarkPx: "3001.2", MidPx: "3000.0", OraclePx: "3000.5",
	}, eth)

	btc, err := c.Resolve(ctx, " BTC ")
	require.NoError(t, err)
	assert.Equal(t, 0, btc.Index)

	pepe, err := c.Resolve(ctx, "KPEPE")
	require.NoError(t, err)
	assert.True(t, pepe.IsDelisted)
	assert.Equal(t, "kPEPE", pepe.Name)

	assert.Equal(t, 1, srv.count("metaAndAssetCtxs"), "no TTL means one load")
}

func TestClientResolveUnknownAndEmpty(t *testing.T) {
	srv, ts := newInfoServer(t)
	c := newTestClient(t, ts.URL)

	_, err := c.Resolve(context.Background(), "DOGE")
	require.ErrorIs(t, err, ErrUnknownAsset)
	// unknown coins force a refresh every time
	_, err = c.Resolve(context.Background(), "DOGE")
	require.ErrorIs(t, err, ErrUnknownAsset)
	assert.Equal(t, 2, srv.count("metaAndAssetCtxs"))

	_, err = c.Resolve(context.Background(), "  ")
	var encErr *exchange.EncodingError
	require.ErrorAs(t, err, &encErr)
}

func TestClientResolveHonoursTTL(t *testing.T) {
	srv, ts := newInfoServer(t)
	var mu sync.Mutex
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}
	c := newTestClient(t, ts.URL, WithClock(clock), WithAssetCacheTTL(time.Minute), WithMaxAttempts(1))
	ctx := context.Background()

	_, err := c.Resolve(ctx, "BTC")
	require.NoError(t, err)
	advance(30 * time.Second)
	_, err = c.Resolve(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, 1, srv.count("metaAndAssetCtxs"))

	advance(time.Minute)
	_, err = c.Resolve(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, 2, srv.count("metaAndAssetCtxs"))

	// stale entries are served when the refresh fails
	advance(2 * time.Minute)
	srv.fail(1, http.StatusBadGateway)
	btc, err := c.Resolve(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, "BTC", btc.Name)
	assert.Equal(t, 3, srv.count("metaAndAssetCtxs"))
}

func TestClientRetriesServerErrors(t *testing.T) {
	srv, ts := newInfoServer(t)
	c := newTestClient(t, ts.URL, WithMaxAttempts(3))

	srv.fail(2, http.StatusServiceUnavailable)
	mids, err := c.AllMids(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3000", mids["ETH"])
	assert.Equal(t, 3, srv.count("allMids"))

	srv.fail(5, http.StatusInternalServerError)
	_, err = c.AllMids(context.Background())
	var serverErr *exchange.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusInternalServerError, serverErr.StatusCode)
	assert.Equal(t, 6, srv.count("allMids"))
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	srv, ts := newInfoServer(t)
	c := newTestClient(t, ts.URL, WithMaxAttempts(3))

	srv.fail(1, http.StatusTooManyRequests)
	_, err := c.AllMids(context.Background())
	var clientErr *exchange.ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, http.StatusTooManyRequests, clientErr.StatusCode)
	assert.Equal(t, "scripted failure", clientErr.Message)
	assert.Equal(t, 1, srv.count("allMids"))
}

func TestClientRetryStopsOnContext(t *testing.T) {
	srv, ts := newInfoServer(t)
	c := newTestClient(t, ts.URL, WithMaxAttempts(10))
	srv.fail(10, http.StatusBadGateway)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.AllMids(ctx)
	require.Error(t, err)
	assert.Less(t, srv.count("allMids"), 10)
}

func TestClientRateLimit(t *testing.T) {
	_, ts := newInfoServer(t)
	c, err := NewClient(newTestTransport(t, ts.URL), WithRateLimit(rate.Limit(20), 1))
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.AllMids(context.Background())
		require.NoError(t, err)
	}
	// burst of one at 20/s spaces three calls at least ~100ms apart in total
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestClientMidPrice(t *testing.T) {
	_, ts := newInfoServer(t)
	c := newTestClient(t, ts.URL)

	px, err := c.MidPrice(context.Background(), "ETH")
	require.NoError(t, err)
	assert.True(t, px.Equal(decimal.NewFromInt(3000)))

	px, err = c.MidPrice(context.Background(), "kpepe")
	require.NoError(t, err)
	assert.Equal(t, "0.0123", px.String())

	_, err = c.MidPrice(context.Background(), "DOGE")
	require.ErrorIs(t, err, ErrNoMidPrice)
}

func TestClientMetaAndAssetCtxsObjectForm(t *testing.T) {
	srv, ts := newInfoServer(t)
	srv.meta = `{"universe":[{"name":"SOL","szDecimals":2,"maxLeverage":20}],"assetCtxs":[{"markPx":"150.1"}]}`
	c := newTestClient(t, ts.URL)

	resp, err := c.MetaAndAssetCtxs(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Universe, 1)
	assert.Equal(t, "SOL", resp.Universe[0].Name)
	require.Len(t, resp.AssetCtxs, 1)
	assert.Equal(t, "150.1", resp.AssetCtxs[0].MarkPx)
}

func TestClientRefreshRejectsEmptyUniverse(t *testing.T) {
	srv, ts := newInfoServer(t)
	srv.meta = `[{"universe":[]},[]]`
	c := newTestClient(t, ts.URL)
	require.Error(t, c.Refresh(context.Background()))
}

func TestNewClientRequiresTransport(t *testing.T) {
	_, err := NewClient(nil)
	require.Error(t, err)
}
