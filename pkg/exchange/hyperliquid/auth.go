package hyperliquid

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	mathhex "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"hlsubmit/pkg/exchange"
)

const (
	verifyingContractHex = "0x0000000000000000000000000000000000000000"
	l1ChainID            = 1337
)

// Network selects the signing domain. Signing for the wrong network yields a
// well-formed signature the venue rejects.
type Network int

const (
	Mainnet Network = iota
	Testnet
)

func (n Network) String() string {
	if n == Mainnet {
		return "mainnet"
	}
	return "testnet"
}

// source is the Agent.source field of the L1 typed data.
func (n Network) source() string {
	if n == Mainnet {
		return "a"
	}
	return "b"
}

// ParseNetwork maps a config value to a Network.
func ParseNetwork(s string) (Network, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mainnet":
		return Mainnet, nil
	case "testnet":
		return Testnet, nil
	default:
		return Mainnet, fmt.Errorf("hyperliquid: unknown network %q", s)
	}
}

// Signer signs L1 action digests. Implementations never expose key material.
type Signer interface {
	SignL1(connectionID common.Hash, network Network) (Signature, error)
	Address() string
}

// PrivateKeySigner signs payloads using an in-memory ECDSA private key.
type PrivateKeySigner struct {
	privateKey *ecdsa.PrivateKey
	address    string
}

// NewPrivateKeySigner constructs a signer from a hex-encoded private key string.
func NewPrivateKeySigner(privateKeyHex string) (*PrivateKeySigner, error) {
	keyHex := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if keyHex == "" {
		return nil, &exchange.SigningError{Err: errors.New("empty private key")}
	}

	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, &exchange.SigningError{Err: fmt.Errorf("decode private key: %w", err)}
	}
	return &PrivateKeySigner{
		privateKey: key,
		address:    strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex()),
	}, nil
}

// SignL1 wraps connectionID in the EIP-712 Agent message for network and signs it.
func (s *PrivateKeySigner) SignL1(connectionID common.Hash, network Network) (Signature, error) {
	if s == nil || s.privateKey == nil {
		return Signature{}, &exchange.SigningError{Err: errors.New("signer not initialised")}
	}
	digest, err := AgentDigest(connectionID, network)
	if err != nil {
		return Signature{}, &exchange.SigningError{Err: err}
	}
	sigBytes, err := crypto.Sign(digest.Bytes(), s.privateKey)
	if err != nil {
		return Signature{}, &exchange.SigningError{Err: fmt.Errorf("sign digest: %w", err)}
	}
	return signatureFromBytes(sigBytes), nil
}

// Address returns the lower-case signer wallet address.
func (s *PrivateKeySigner) Address() string {
	if s == nil {
		return ""
	}
	return s.address
}

func signatureFromBytes(sig []byte) Signature {
	return Signature{
		R: "0x" + hex.EncodeToString(sig[:32]),
		S: "0x" + hex.EncodeToString(sig[32:64]),
		V: int(sig[64]) + 27,
	}
}

var agentTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Agent": {
		{Name: "source", Type: "string"},
		{Name: "connectionId", Type: "bytes32"},
	},
}

var agentDomain = apitypes.TypedDataDomain{
	Name:              "Exchange",
	Version:           "1",
	ChainId:           mathhex.NewHexOrDecimal256(l1ChainID),
	VerifyingContract: verifyingContractHex,
}

// The domain never changes, so its separator is hashed once.
var agentDomainSeparator = sync.OnceValues(func() ([]byte, error) {
	td := apitypes.TypedData{Types: agentTypes, Domain: agentDomain}
	sep, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("hyperliquid: hash domain: %w", err)
	}
	return sep, nil
})

// AgentDigest is the EIP-712 hash of Agent{source, connectionId} under the L1 domain.
func AgentDigest(connectionID common.Hash, network Network) (common.Hash, error) {
	domainSeparator, err := agentDomainSeparator()
	if err != nil {
		return common.Hash{}, err
	}
	td := apitypes.TypedData{
		Types:       agentTypes,
		PrimaryType: "Agent",
		Domain:      agentDomain,
		Message: apitypes.TypedDataMessage{
			"source":       network.source(),
			"connectionId": connectionID.Bytes(),
		},
	}
	messageHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return common.Hash{}, fmt.Errorf("hyperliquid: hash primary type: %w", err)
	}
	raw := make([]byte, 0, 2+len(domainSeparator)+len(messageHash))
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, domainSeparator...)
	raw = append(raw, messageHash...)
	return crypto.Keccak256Hash(raw), nil
}

// RecoverL1Signer returns the address that produced sig over connectionID on network.
func RecoverL1Signer(connectionID common.Hash, network Network, sig Signature) (common.Address, error) {
	digest, err := AgentDigest(connectionID, network)
	if err != nil {
		return common.Address{}, err
	}
	r, err := decodeWord(sig.R)
	if err != nil {
		return common.Address{}, fmt.Errorf("hyperliquid: signature r: %w", err)
	}
	sPart, err := decodeWord(sig.S)
	if err != nil {
		return common.Address{}, fmt.Errorf("hyperliquid: signature s: %w", err)
	}
	if sig.V != 27 && sig.V != 28 {
		return common.Address{}, fmt.Errorf("hyperliquid: signature v must be 27 or 28, got %d", sig.V)
	}
	raw := make([]byte, 65)
	copy(raw[:32], r)
	copy(raw[32:64], sPart)
	raw[64] = byte(sig.V - 27)
	pub, err := crypto.SigToPub(digest.Bytes(), raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("hyperliquid: recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func decodeWord(s string) ([]byte, error) {
	raw := strings.TrimPrefix(s, "0x")
	if len(raw) != 64 {
		return nil, fmt.Errorf("expected 64 hex characters, got %d", len(raw))
	}
	return hex.DecodeString(raw)
}
