package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/blumarkets/layers/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalTableIsValid(t *testing.T) {
	r := New()
	require.NoError(t, r.Validate())
}

func TestIntraLayerWeightsSumToOne(t *testing.T) {
	r := New()
	for _, l := range domain.Layers {
		sum := 0.0
		for _, a := range r.ByLayer(l) {
			sum += a.Weight
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "layer %s", l)
	}
}

func TestProtectionEligibility(t *testing.T) {
	r := New()

	eligible := []string{"PAXG", "BTC", "ETH", "QQQ", "SOL"}
	for _, id := range eligible {
		assert.True(t, r.IsProtectionEligible(id), "%s should be eligible", id)
	}

	excluded := []string{"BNB", "XRP", "KAG", "TON", "LINK", "AVAX", "MATIC", "ARB", "USDT", FixedIncomeAssetID}
	for _, id := range excluded {
		assert.False(t, r.IsProtectionEligible(id), "%s should not be eligible", id)
	}
}

func TestMaxLTVLayerDefaultsAndOverride(t *testing.T) {
	r := New()

	// Layer defaults
	assert.Equal(t, 0.70, r.MaxLTV("PAXG"))
	assert.Equal(t, 0.50, r.MaxLTV("BTC"))
	assert.Equal(t, 0.30, r.MaxLTV("SOL"))

	// Per-asset override wins over the layer default
	assert.Equal(t, 0.80, r.MaxLTV("USDT"))
}

func TestSpreadPerLayer(t *testing.T) {
	r := New()
	assert.Equal(t, 0.0015, r.Spread(domain.LayerFoundation))
	assert.Equal(t, 0.0030, r.Spread(domain.LayerGrowth))
	assert.Equal(t, 0.0060, r.Spread(domain.LayerUpside))
}

func TestByLayerOrdersByWeight(t *testing.T) {
	r := New()
	growth := r.ByLayer(domain.LayerGrowth)
	require.NotEmpty(t, growth)
	for i := 1; i < len(growth); i++ {
		assert.GreaterOrEqual(t, growth[i-1].Weight, growth[i].Weight)
	}
	assert.Equal(t, "BTC", growth[0].ID)
}

func TestMustGetPanicsOnUnknownAsset(t *testing.T) {
	r := New()
	assert.Panics(t, func() { r.MustGet("DOGE") })
}

func TestNewFromConfigsRejectsBadWeights(t *testing.T) {
	assets := []AssetConfig{
		{ID: "USDT", Layer: domain.LayerFoundation, Weight: 0.5},
		{ID: "PAXG", Layer: domain.LayerFoundation, Weight: 0.4},
	}
	_, err := NewFromConfigs(assets, defaultLayerParams)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum")
}

func TestNewFromConfigsRejectsDuplicates(t *testing.T) {
	assets := []AssetConfig{
		{ID: "USDT", Layer: domain.LayerFoundation, Weight: 0.5},
		{ID: "USDT", Layer: domain.LayerFoundation, Weight: 0.5},
	}
	_, err := NewFromConfigs(assets, defaultLayerParams)
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.yaml")

	content := `
assets:
  - id: USDT
    name: Tether
    layer: FOUNDATION
    weight: 0.6
    volatility: 0.001
    liquidity: 1.0
  - id: PAXG
    name: Pax Gold
    layer: FOUNDATION
    weight: 0.4
    volatility: 0.12
    liquidity: 0.8
    protection_eligible: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	r, err := LoadFile(path)
	require.NoError(t, err)

	a, ok := r.Get("PAXG")
	require.True(t, ok)
	assert.True(t, a.ProtectionEligible)
	assert.Equal(t, 0.4, a.Weight)

	// Layer params fall back to canonical defaults
	assert.Equal(t, 0.0015, r.Spread(domain.LayerFoundation))
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("/nonexistent/registry.yaml")
	require.Error(t, err)
}
