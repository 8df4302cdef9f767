package hyperliquid

import "errors"

var (
	// ErrUnknownAsset is returned by catalogs that cannot resolve a coin symbol.
	ErrUnknownAsset = errors.New("hyperliquid: unknown asset")
	// ErrNoMidPrice is returned when allMids carries no entry for a coin.
	ErrNoMidPrice = errors.New("hyperliquid: no mid price")

	errMissingErrorFields = errors.New("error body must carry code, msg and data")
)
