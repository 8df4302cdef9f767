package hyperliquid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticCatalog(t *testing.T) {
	cat := NewStaticCatalog(testBTC, AssetInfo{Name: "kPEPE", Index: 7})

	got, err := cat.Resolve(context.Background(), "btc")
	require.NoError(t, err)
	assert.Equal(t, testBTC, got)

	got, err = cat.Resolve(context.Background(), "KPEPE")
	require.NoError(t, err)
	assert.Equal(t, 7, got.Index)

	_, err = cat.Resolve(context.Background(), "ETH")
	require.ErrorIs(t, err, ErrUnknownAsset)
}
