package hyperliquid

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"

	"hlsubmit/pkg/exchange"
)

// MarshalEnvelope assembles the exchange request body from an already-encoded
// action. No I/O; the action JSON is embedded verbatim.
func MarshalEnvelope(actionJSON []byte, nonce uint64, sig Signature, vault *common.Address, expiresAfter *uint64) ([]byte, error) {
	env := Envelope{
		Action:       actionJSON,
		Nonce:        nonce,
		Signature:    sig,
		ExpiresAfter: expiresAfter,
	}
	if vault != nil {
		addr := strings.ToLower(vault.Hex())
		env.VaultAddress = &addr
	}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, &exchange.EncodingError{Field: "envelope", Err: fmt.Errorf("json: %w", err)}
	}
	return body, nil
}

// UnmarshalEnvelope parses a request body produced by MarshalEnvelope.
func UnmarshalEnvelope(body []byte) (Envelope, Action, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, Action{}, fmt.Errorf("hyperliquid: decode envelope: %w", err)
	}
	var action Action
	if err := json.Unmarshal(env.Action, &action); err != nil {
		return Envelope{}, Action{}, fmt.Errorf("hyperliquid: decode action: %w", err)
	}
	return env, action, nil
}
