package sim

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/zeromicro/go-zero/core/logx"
	"go.uber.org/multierr"

	"hlsubmit/pkg/exchange"
	hl "hlsubmit/pkg/exchange/hyperliquid"
)

// Server serves a Venue on a loopback listener.
type Server struct {
	Venue *Venue

	listener  net.Listener
	srv       *http.Server
	done      chan error
	closeOnce sync.Once
	closeErr  error
}

// Serve starts venue on addr ("127.0.0.1:0" picks a free port).
func Serve(addr string, venue *Venue) (*Server, error) {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("sim: listen %s: %w", addr, err)
	}
	s := &Server{
		Venue:    venue,
		listener: ln,
		srv:      &http.Server{Handler: venue, ReadHeaderTimeout: 5 * time.Second},
		done:     make(chan error, 1),
	}
	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()
	return s, nil
}

// URL is the base URL of the server.
func (s *Server) URL() string { return "http://" + s.listener.Addr().String() }

// Close shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.closeErr = multierr.Append(s.srv.Shutdown(ctx), <-s.done)
	})
	return s.closeErr
}

// Provider is a hyperliquid provider wired to an in-process venue.
type Provider struct {
	*hl.Provider
	server *Server
}

// Server returns the backing venue server.
func (p *Provider) Server() *Server { return p.server }

// Close releases the client pool and stops the venue.
func (p *Provider) Close() error {
	return multierr.Append(p.Provider.Close(), p.server.Close())
}

// NewProvider starts a venue and builds a hyperliquid provider against it.
// A missing private key is replaced by a throwaway one.
func NewProvider(cfg *exchange.ProviderConfig, opts ...Option) (*Provider, error) {
	local := *cfg
	if strings.TrimSpace(local.PrivateKey) == "" {
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("sim: generate key: %w", err)
		}
		local.PrivateKey = fmt.Sprintf("%x", crypto.FromECDSA(key))
	}
	network := hl.Mainnet
	if local.Testnet {
		network = hl.Testnet
	}
	venue := NewVenue(append([]Option{WithNetwork(network)}, opts...)...)
	server, err := Serve("", venue)
	if err != nil {
		return nil, err
	}
	local.BaseURL = server.URL()

	provider, err := hl.NewProviderFromConfig(&local)
	if err != nil {
		return nil, multierr.Append(err, server.Close())
	}
	logx.Infof("sim: venue listening on %s", local.BaseURL)
	return &Provider{Provider: provider, server: server}, nil
}

func init() {
	exchange.RegisterProvider("sim", func(name string, cfg *exchange.ProviderConfig) (exchange.Provider, error) {
		return NewProvider(cfg)
	})
}
