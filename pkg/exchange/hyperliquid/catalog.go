package hyperliquid

import (
	"context"
	"fmt"
)

// Catalog resolves a coin symbol to its asset index and size precision.
type Catalog interface {
	Resolve(ctx context.Context, coin string) (AssetInfo, error)
}

var (
	_ Catalog = (*Client)(nil)
	_ Catalog = StaticCatalog(nil)
)

// StaticCatalog is a fixed in-memory directory keyed by upper-case symbol.
type StaticCatalog map[string]AssetInfo

// NewStaticCatalog indexes assets by name.
func NewStaticCatalog(assets ...AssetInfo) StaticCatalog {
	out := make(StaticCatalog, len(assets))
	for _, a := range assets {
		out[canonicalAssetKey(a.Name)] = a
	}
	return out
}

// Resolve implements Catalog.
func (s StaticCatalog) Resolve(_ context.Context, coin string) (AssetInfo, error) {
	info, ok := s[canonicalAssetKey(coin)]
	if !ok {
		return AssetInfo{}, fmt.Errorf("%w: %s", ErrUnknownAsset, coin)
	}
	return info, nil
}
