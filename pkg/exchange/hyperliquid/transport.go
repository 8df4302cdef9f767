package hyperliquid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"hlsubmit/pkg/exchange"
)

const (
	MainnetAPIURL = "https://api.hyperliquid.xyz"
	TestnetAPIURL = "https://api.hyperliquid-testnet.xyz"

	ExchangePath = "/exchange"
	InfoPath     = "/info"

	defaultRequestTimeout      = 30 * time.Second
	defaultConnectTimeout      = 5 * time.Second
	defaultIdleConnTimeout     = 300 * time.Second
	defaultKeepAlive           = 30 * time.Second
	defaultMaxIdleConnsPerHost = 10
)

// TransportConfig carries the connection-pool knobs. The transport applies them
// as given; picking values is the caller's policy.
type TransportConfig struct {
	BaseURL             string
	KeepAlive           time.Duration // TCP keep-alive probe interval
	IdleConnTimeout     time.Duration // how long an idle pooled connection is kept
	MaxIdleConnsPerHost int
	ConnectTimeout      time.Duration
	RequestTimeout      time.Duration // per request, aborts the in-flight call
	LocalAddr           string        // local bind IP, empty for the OS default
	TCPNoDelay          bool          // true disables Nagle's algorithm

	// RoundTripper replaces the pooled transport when set (recorders, fakes).
	RoundTripper http.RoundTripper
}

// DefaultTransportConfig returns the latency-oriented defaults for network.
func DefaultTransportConfig(network Network) TransportConfig {
	base := MainnetAPIURL
	if network == Testnet {
		base = TestnetAPIURL
	}
	return TransportConfig{
		BaseURL:             base,
		KeepAlive:           defaultKeepAlive,
		IdleConnTimeout:     defaultIdleConnTimeout,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		ConnectTimeout:      defaultConnectTimeout,
		RequestTimeout:      defaultRequestTimeout,
		TCPNoDelay:          true,
	}
}

// Transport posts request bodies over a pooled HTTP client. It never retries.
// Safe for concurrent use; the pool hands each in-flight request its own connection.
type Transport struct {
	baseURL        string
	requestTimeout time.Duration
	pool           *http.Transport
	client         *http.Client
}

// NewTransport builds a transport and its connection pool from cfg.
func NewTransport(cfg TransportConfig) (*Transport, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("hyperliquid: transport base url is required")
	}
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: cfg.KeepAlive,
	}
	if ip := strings.TrimSpace(cfg.LocalAddr); ip != "" {
		laddr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(ip, "0"))
		if err != nil {
			return nil, fmt.Errorf("hyperliquid: resolve local addr %q: %w", ip, err)
		}
		dialer.LocalAddr = laddr
	}
	noDelay := cfg.TCPNoDelay
	perHost := cfg.MaxIdleConnsPerHost
	if perHost <= 0 {
		perHost = http.DefaultMaxIdleConnsPerHost
	}
	pool := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			if tcp, ok := conn.(*net.TCPConn); ok {
				_ = tcp.SetNoDelay(noDelay)
			}
			return conn, nil
		},
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          max(100, perHost),
		MaxIdleConnsPerHost:   perHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	client := &http.Client{Transport: pool}
	if cfg.RoundTripper != nil {
		client.Transport = cfg.RoundTripper
	}
	return &Transport{
		baseURL:        base,
		requestTimeout: cfg.RequestTimeout,
		pool:           pool,
		client:         client,
	}, nil
}

// BaseURL returns the endpoint root requests are sent to.
func (t *Transport) BaseURL() string { return t.baseURL }

// HTTPClient exposes the pooled client so collaborators (info queries, probes) share connections.
func (t *Transport) HTTPClient() *http.Client { return t.client }

// Post sends body to path and returns the raw status and response body.
// Any failure, including the request timeout, comes back as *exchange.TransportError.
func (t *Transport) Post(ctx context.Context, path string, body []byte) (int, []byte, error) {
	return t.do(ctx, http.MethodPost, path, body)
}

// Get issues a GET to path; used by latency probes.
func (t *Transport) Get(ctx context.Context, path string) (int, []byte, error) {
	return t.do(ctx, http.MethodGet, path, nil)
}

func (t *Transport) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	if t.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.requestTimeout)
		defer cancel()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return 0, nil, &exchange.TransportError{Op: "build " + path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, nil, &exchange.TransportError{Op: method + " " + path, Timeout: isTimeout(ctx, err), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &exchange.TransportError{Op: "read " + path, Timeout: isTimeout(ctx, err), Err: err}
	}
	return resp.StatusCode, raw, nil
}

// CloseIdleConnections drops pooled connections, e.g. between probe runs.
func (t *Transport) CloseIdleConnections() {
	t.pool.CloseIdleConnections()
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
