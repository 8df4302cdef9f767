package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hlsubmit/pkg/exchange"
	hl "hlsubmit/pkg/exchange/hyperliquid"
)

const testKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082796fe3f6a4ab2ed5f8d2"

func TestSelfCheck(t *testing.T) {
	key, err := crypto.HexToECDSA(testKey[2:])
	require.NoError(t, err)
	want := strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())

	r, err := selfCheck("live", &exchange.ProviderConfig{
		PrivateKey:   testKey,
		Testnet:      true,
		VaultAddress: "0x1719884eb866cb12b2287399b15f7db5e7d775ea",
	})
	require.NoError(t, err)
	assert.Equal(t, hl.Testnet, r.Network)
	assert.Equal(t, hl.TestnetAPIURL, r.BaseURL)
	assert.Equal(t, want, r.APIWallet)
	assert.Equal(t, r.APIWallet, r.Recovered)
	assert.Equal(t, "0x1719884eb866cb12b2287399b15f7db5e7d775ea", r.Vault)

	var out bytes.Buffer
	r.print(&out)
	assert.Contains(t, out.String(), r.APIWallet)

	_, err = selfCheck("live", &exchange.ProviderConfig{PrivateKey: testKey, VaultAddress: "vault"})
	require.Error(t, err)
	_, err = selfCheck("live", &exchange.ProviderConfig{PrivateKey: "nope"})
	require.Error(t, err)
}

func TestQueryRole(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"type":"userRole","user":"0xabc"}`, string(body))
		_, _ = w.Write([]byte(`{"role":"agent"}`))
	}))
	defer srv.Close()

	cfg := hl.DefaultTransportConfig(hl.Mainnet)
	cfg.BaseURL = srv.URL
	tr, err := hl.NewTransport(cfg)
	require.NoError(t, err)

	role, err := queryRole(context.Background(), tr, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "agent", role)
}
