// Package registry owns the static asset table: identity, layer
// membership, intra-layer weight, volatility, liquidity, loan and
// protection parameters. Everything else in the engine depends on it.
package registry

import (
	"fmt"
	"math"
	"sort"

	"github.com/blumarkets/layers/internal/domain"
)

// FixedIncomeAssetID is the synthetic IRR fixed-income instrument. Its
// value accrues simple interest instead of tracking a USD price.
const FixedIncomeAssetID = "IRFI"

// AssetConfig describes one asset in the universe.
type AssetConfig struct {
	ID                 string       `yaml:"id" json:"id"`
	Name               string       `yaml:"name" json:"name"`
	Layer              domain.Layer `yaml:"layer" json:"layer"`
	Weight             float64      `yaml:"weight" json:"weight"`         // intra-layer, sums to 1.0 per layer
	Volatility         float64      `yaml:"volatility" json:"volatility"` // annualized
	Liquidity          float64      `yaml:"liquidity" json:"liquidity"`   // 0..1
	ProtectionEligible bool         `yaml:"protection_eligible" json:"protection_eligible"`
	MaxLTV             *float64     `yaml:"max_ltv,omitempty" json:"max_ltv,omitempty"` // overrides the layer default
	UnitPriceIRR       float64      `yaml:"unit_price_irr,omitempty" json:"unit_price_irr,omitempty"`
	AnnualRate         float64      `yaml:"annual_rate,omitempty" json:"annual_rate,omitempty"`
}

// LayerParams holds per-layer trading and lending parameters.
type LayerParams struct {
	Spread float64 `yaml:"spread" json:"spread"` // charged on both BUY and SELL
	MaxLTV float64 `yaml:"max_ltv" json:"max_ltv"`
}

// defaultLayerParams is the canonical per-layer table.
var defaultLayerParams = map[domain.Layer]LayerParams{
	domain.LayerFoundation: {Spread: 0.0015, MaxLTV: 0.70},
	domain.LayerGrowth:     {Spread: 0.0030, MaxLTV: 0.50},
	domain.LayerUpside:     {Spread: 0.0060, MaxLTV: 0.30},
}

func ltv(v float64) *float64 { return &v }

// defaultAssets is the canonical asset universe. Intra-layer weights sum
// to 1.0 within each layer; only PAXG/BTC/ETH/QQQ/SOL are protection
// eligible.
var defaultAssets = []AssetConfig{
	// FOUNDATION
	{ID: "USDT", Name: "Tether", Layer: domain.LayerFoundation, Weight: 0.35, Volatility: 0.001, Liquidity: 1.00, MaxLTV: ltv(0.80)},
	{ID: "PAXG", Name: "Pax Gold", Layer: domain.LayerFoundation, Weight: 0.30, Volatility: 0.12, Liquidity: 0.80, ProtectionEligible: true},
	{ID: "KAG", Name: "Kinesis Silver", Layer: domain.LayerFoundation, Weight: 0.10, Volatility: 0.20, Liquidity: 0.55},
	{ID: FixedIncomeAssetID, Name: "IRR Fixed Income", Layer: domain.LayerFoundation, Weight: 0.25, Volatility: 0.01, Liquidity: 0.40, UnitPriceIRR: 10_000_000, AnnualRate: 0.30},

	// GROWTH
	{ID: "BTC", Name: "Bitcoin", Layer: domain.LayerGrowth, Weight: 0.45, Volatility: 0.45, Liquidity: 1.00, ProtectionEligible: true},
	{ID: "ETH", Name: "Ethereum", Layer: domain.LayerGrowth, Weight: 0.30, Volatility: 0.55, Liquidity: 0.95, ProtectionEligible: true},
	{ID: "QQQ", Name: "Nasdaq-100 ETF", Layer: domain.LayerGrowth, Weight: 0.15, Volatility: 0.22, Liquidity: 0.85, ProtectionEligible: true},
	{ID: "BNB", Name: "BNB", Layer: domain.LayerGrowth, Weight: 0.10, Volatility: 0.60, Liquidity: 0.70},

	// UPSIDE
	{ID: "SOL", Name: "Solana", Layer: domain.LayerUpside, Weight: 0.30, Volatility: 0.75, Liquidity: 0.85, ProtectionEligible: true},
	{ID: "XRP", Name: "XRP", Layer: domain.LayerUpside, Weight: 0.15, Volatility: 0.70, Liquidity: 0.80},
	{ID: "TON", Name: "Toncoin", Layer: domain.LayerUpside, Weight: 0.12, Volatility: 0.85, Liquidity: 0.50},
	{ID: "LINK", Name: "Chainlink", Layer: domain.LayerUpside, Weight: 0.13, Volatility: 0.80, Liquidity: 0.65},
	{ID: "AVAX", Name: "Avalanche", Layer: domain.LayerUpside, Weight: 0.12, Volatility: 0.85, Liquidity: 0.60},
	{ID: "MATIC", Name: "Polygon", Layer: domain.LayerUpside, Weight: 0.10, Volatility: 0.90, Liquidity: 0.60},
	{ID: "ARB", Name: "Arbitrum", Layer: domain.LayerUpside, Weight: 0.08, Volatility: 0.95, Liquidity: 0.50},
}

// weightEpsilon is the tolerance when checking intra-layer weight sums.
const weightEpsilon = 1e-6

// Registry is the read-only asset table, loaded once at startup.
type Registry struct {
	assets map[string]AssetConfig
	order  []string
	params map[domain.Layer]LayerParams
}

// New builds a registry from the canonical table.
func New() *Registry {
	r, err := NewFromConfigs(defaultAssets, defaultLayerParams)
	if err != nil {
		// The canonical table is a compile-time constant; a violation is
		// a programming error.
		panic(err)
	}
	return r
}

// NewFromConfigs builds a registry from explicit configs and validates it.
func NewFromConfigs(assets []AssetConfig, params map[domain.Layer]LayerParams) (*Registry, error) {
	r := &Registry{
		assets: make(map[string]AssetConfig, len(assets)),
		params: make(map[domain.Layer]LayerParams, len(params)),
	}
	for l, p := range params {
		r.params[l] = p
	}
	for _, a := range assets {
		if _, dup := r.assets[a.ID]; dup {
			return nil, fmt.Errorf("duplicate asset %s", a.ID)
		}
		r.assets[a.ID] = a
		r.order = append(r.order, a.ID)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the registry invariants: every asset belongs to exactly
// one known layer, intra-layer weights sum to 1.0, layer params exist.
func (r *Registry) Validate() error {
	sums := make(map[domain.Layer]float64)
	for _, id := range r.order {
		a := r.assets[id]
		if !a.Layer.Valid() {
			return fmt.Errorf("asset %s has unknown layer %q", a.ID, a.Layer)
		}
		if a.Weight < 0 {
			return fmt.Errorf("asset %s has negative weight", a.ID)
		}
		sums[a.Layer] += a.Weight
	}
	for _, l := range domain.Layers {
		if _, ok := r.params[l]; !ok {
			return fmt.Errorf("missing layer params for %s", l)
		}
		if sum, ok := sums[l]; ok && math.Abs(sum-1.0) > weightEpsilon {
			return fmt.Errorf("intra-layer weights for %s sum to %.6f, want 1.0", l, sum)
		}
	}
	return nil
}

// Get returns the config for an asset ID.
func (r *Registry) Get(id string) (AssetConfig, bool) {
	a, ok := r.assets[id]
	return a, ok
}

// MustGet returns the config for an asset ID and panics if it is unknown.
// An unknown ID reaching this deep indicates upstream state corruption.
func (r *Registry) MustGet(id string) AssetConfig {
	a, ok := r.assets[id]
	if !ok {
		panic(fmt.Sprintf("registry: unknown asset %q", id))
	}
	return a
}

// All returns all assets in table order.
func (r *Registry) All() []AssetConfig {
	out := make([]AssetConfig, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.assets[id])
	}
	return out
}

// ByLayer returns the assets of one layer, heaviest intra-layer weight
// first (ties broken by ID for determinism).
func (r *Registry) ByLayer(l domain.Layer) []AssetConfig {
	var out []AssetConfig
	for _, id := range r.order {
		if r.assets[id].Layer == l {
			out = append(out, r.assets[id])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Spread returns the per-layer trade spread fraction.
func (r *Registry) Spread(l domain.Layer) float64 {
	return r.params[l].Spread
}

// MaxLTV returns the loan-to-value cap for an asset: the per-asset
// override when present, otherwise the layer default.
func (r *Registry) MaxLTV(id string) float64 {
	a := r.MustGet(id)
	if a.MaxLTV != nil {
		return *a.MaxLTV
	}
	return r.params[a.Layer].MaxLTV
}

// IsProtectionEligible reports whether protection may be bought on the asset.
func (r *Registry) IsProtectionEligible(id string) bool {
	a, ok := r.assets[id]
	return ok && a.ProtectionEligible
}

// LayerOf returns the layer an asset belongs to.
func (r *Registry) LayerOf(id string) domain.Layer {
	return r.MustGet(id).Layer
}
