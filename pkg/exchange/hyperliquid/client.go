package hyperliquid

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/time/rate"

	"hlsubmit/pkg/exchange"
)

const (
	defaultRetryBackoff = 200 * time.Millisecond
	defaultMaxAttempts  = 3
	defaultInfoRate     = 20
	defaultInfoBurst    = 20
)

// Client queries the public info endpoint: asset metadata and mid prices.
// It doubles as the Catalog the pipeline resolves coins against.
type Client struct {
	transport   *Transport
	limiter     *rate.Limiter
	maxAttempts int
	clock       func() time.Time

	// Asset directory cache
	assetMu      sync.RWMutex
	assets       map[string]AssetInfo
	assetTTL     time.Duration
	assetLastRef time.Time
}

// ClientOption customises the info client.
type ClientOption func(*Client)

// WithRateLimit caps info requests per second. A non-positive limit disables limiting.
func WithRateLimit(limit rate.Limit, burst int) ClientOption {
	return func(c *Client) {
		if limit <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(limit, max(burst, 1))
	}
}

// WithMaxAttempts sets how many times a retryable info request is tried.
func WithMaxAttempts(n int) ClientOption {
	return func(c *Client) {
		if n >= 1 {
			c.maxAttempts = n
		}
	}
}

// WithClock overrides the time source (primarily for testing).
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithAssetCacheTTL sets a time-to-live for the asset directory cache.
// When positive, the client refreshes asset metadata after TTL elapses.
func WithAssetCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		if ttl > 0 {
			c.assetTTL = ttl
		}
	}
}

// NewClient constructs an info client sharing transport's connection pool.
func NewClient(transport *Transport, opts ...ClientOption) (*Client, error) {
	if transport == nil {
		return nil, fmt.Errorf("hyperliquid: transport is required")
	}
	client := &Client{
		transport:   transport,
		limiter:     rate.NewLimiter(rate.Limit(defaultInfoRate), defaultInfoBurst),
		maxAttempts: defaultMaxAttempts,
		clock:       time.Now,
		assets:      make(map[string]AssetInfo),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// doInfoRequest posts req to the info endpoint and decodes the reply into result.
// Transport and 5xx failures are retried with exponential backoff; 4xx is returned as is.
func (c *Client) doInfoRequest(ctx context.Context, req InfoRequest, result any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("hyperliquid: encode info request: %w", err)
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = defaultRetryBackoff

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("hyperliquid: info rate limit wait: %w", err)
		}
		lastErr = c.postInfo(ctx, payload, result)
		if lastErr == nil || !exchange.IsRetryable(lastErr) || attempt == c.maxAttempts {
			break
		}
		wait := bo.NextBackOff()
		logx.WithContext(ctx).Infof("hyperliquid: info %s attempt=%d failed, retrying in %s: %v", req.Type, attempt, wait, lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	if lastErr != nil {
		return fmt.Errorf("hyperliquid: info %s: %w", req.Type, lastErr)
	}
	return nil
}

func (c *Client) postInfo(ctx context.Context, payload []byte, result any) error {
	status, body, err := c.transport.Post(ctx, InfoPath, payload)
	if err != nil {
		return err
	}
	switch {
	case status >= 500:
		return &exchange.ServerError{StatusCode: status, Message: string(body)}
	case status >= 400:
		return &exchange.ClientError{StatusCode: status, Message: string(body)}
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// MetaAndAssetCtxs returns the perpetual universe with per-asset context.
func (c *Client) MetaAndAssetCtxs(ctx context.Context) (*MetaAndAssetCtxsResponse, error) {
	var resp MetaAndAssetCtxsResponse
	if err := c.doInfoRequest(ctx, InfoRequest{Type: "metaAndAssetCtxs"}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AllMids returns the mid price of every listed coin, keyed by symbol.
func (c *Client) AllMids(ctx context.Context) (map[string]string, error) {
	var mids map[string]string
	if err := c.doInfoRequest(ctx, InfoRequest{Type: "allMids"}, &mids); err != nil {
		return nil, err
	}
	return mids, nil
}

// MidPrice returns the current mid for coin.
func (c *Client) MidPrice(ctx context.Context, coin string) (decimal.Decimal, error) {
	mids, err := c.AllMids(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	key := strings.TrimSpace(coin)
	raw, ok := mids[key]
	if !ok {
		for name, v := range mids {
			if canonicalAssetKey(name) == canonicalAssetKey(key) {
				raw, ok = v, true
				break
			}
		}
	}
	if !ok {
		return decimal.Zero, fmt.Errorf("%w for %s", ErrNoMidPrice, coin)
	}
	px, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("hyperliquid: parse mid %q for %s: %w", raw, coin, err)
	}
	return px, nil
}

// Resolve returns the cached metadata for coin, refreshing the directory when
// the coin is unknown or the cache has expired.
func (c *Client) Resolve(ctx context.Context, coin string) (AssetInfo, error) {
	key := canonicalAssetKey(coin)
	if key == "" {
		return AssetInfo{}, &exchange.EncodingError{Field: "coin", Err: errEmptyCoin}
	}
	info, ok, fresh := c.cachedAsset(key)
	if ok && fresh {
		return info, nil
	}
	if err := c.Refresh(ctx); err != nil {
		if ok {
			logx.WithContext(ctx).Errorf("hyperliquid: asset refresh failed, serving cached %s: %v", key, err)
			return info, nil
		}
		return AssetInfo{}, err
	}
	if info, ok, _ := c.cachedAsset(key); ok {
		return info, nil
	}
	return AssetInfo{}, fmt.Errorf("%w: %s", ErrUnknownAsset, coin)
}

func (c *Client) cachedAsset(key string) (info AssetInfo, ok, fresh bool) {
	c.assetMu.RLock()
	defer c.assetMu.RUnlock()
	info, ok = c.assets[key]
	fresh = c.assetTTL <= 0 || c.clock().Sub(c.assetLastRef) < c.assetTTL
	return info, ok, fresh
}

// Refresh reloads the asset directory from metaAndAssetCtxs.
func (c *Client) Refresh(ctx context.Context) error {
	resp, err := c.MetaAndAssetCtxs(ctx)
	if err != nil {
		return err
	}
	if len(resp.Universe) == 0 {
		return fmt.Errorf("hyperliquid: metaAndAssetCtxs response contained no assets")
	}

	assets := make(map[string]AssetInfo, len(resp.Universe))
	for idx, entry := range resp.Universe {
		key := canonicalAssetKey(entry.Name)
		if key == "" {
			continue
		}
		var assetCtx AssetCtx
		if idx < len(resp.AssetCtxs) {
			assetCtx = resp.AssetCtxs[idx]
		}
		assets[key] = AssetInfo{
			Name:        entry.Name,
			Index:       idx,
			SzDecimals:  entry.SzDecimals,
			MaxLeverage: entry.MaxLeverage,
			IsDelisted:  entry.IsDelisted,
			MarkPx:      assetCtx.MarkPx,
			MidPx:       assetCtx.MidPx,
			OraclePx:    assetCtx.OraclePx,
		}
	}

	c.assetMu.Lock()
	c.assets = assets
	c.assetLastRef = c.clock()
	c.assetMu.Unlock()
	logx.WithContext(ctx).Infof("hyperliquid: asset directory refreshed assets=%d", len(assets))
	return nil
}

func canonicalAssetKey(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
