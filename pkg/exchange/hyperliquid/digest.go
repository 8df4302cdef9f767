package hyperliquid

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	vaultAbsent  byte = 0x00
	vaultPresent byte = 0x01
)

// ConnectionID hashes the signing preimage of an L1 action:
//
//	canonical || nonce (8 bytes BE) || 0x00                       (no vault)
//	canonical || nonce (8 bytes BE) || 0x01 || vault (20 bytes)   (vault)
//
// followed by 0x00 || expiresAfter (8 bytes BE) when an expiry is set.
// The layout must match the venue byte for byte or the signature is rejected.
func ConnectionID(canonical []byte, nonce uint64, vault *common.Address, expiresAfter *uint64) common.Hash {
	size := len(canonical) + 8 + 1
	if vault != nil {
		size += common.AddressLength
	}
	if expiresAfter != nil {
		size += 9
	}
	preimage := make([]byte, 0, size)
	preimage = append(preimage, canonical...)
	preimage = binary.BigEndian.AppendUint64(preimage, nonce)
	if vault == nil {
		preimage = append(preimage, vaultAbsent)
	} else {
		preimage = append(preimage, vaultPresent)
		preimage = append(preimage, vault.Bytes()...)
	}
	if expiresAfter != nil {
		preimage = append(preimage, 0x00)
		preimage = binary.BigEndian.AppendUint64(preimage, *expiresAfter)
	}
	return crypto.Keccak256Hash(preimage)
}
