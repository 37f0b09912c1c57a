// Package domain holds the shared types of the layered portfolio engine.
//
// Everything in this package is plain data. The engine packages under
// internal/modules operate on these values and never mutate their inputs;
// the surrounding shell (server, repositories, scheduler) owns all state.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Layer is one of the three risk tiers partitioning the asset universe.
type Layer string

const (
	LayerFoundation Layer = "FOUNDATION"
	LayerGrowth     Layer = "GROWTH"
	LayerUpside     Layer = "UPSIDE"
)

// Layers lists all layers in display order.
var Layers = []Layer{LayerFoundation, LayerGrowth, LayerUpside}

// Valid reports whether the layer is one of the three known tiers.
func (l Layer) Valid() bool {
	return l == LayerFoundation || l == LayerGrowth || l == LayerUpside
}

// Hard structural limits on the realized allocation. These always win
// over drift-delta severity tiers.
const (
	FoundationFloor = 0.30 // FOUNDATION may never drop below 30%
	UpsideCeiling   = 0.40 // UPSIDE may never exceed 40%
)

// AllocationEpsilon is the rounding tolerance when checking that layer
// fractions sum to 1.0.
const AllocationEpsilon = 1e-6

// TradeSide identifies the direction of a trade.
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// TradeSideFromString parses a trade side from its string representation
func TradeSideFromString(s string) (TradeSide, error) {
	switch s {
	case "BUY", "buy":
		return SideBuy, nil
	case "SELL", "sell":
		return SideSell, nil
	}
	return "", fmt.Errorf("invalid trade side: %q", s)
}

// Boundary is the ordinal severity tier assigned to a proposed action.
// Higher values are more severe.
type Boundary int

const (
	BoundarySafe Boundary = iota
	BoundaryDrift
	BoundaryStructural
	BoundaryStress
)

// String returns the canonical name of the boundary tier.
func (b Boundary) String() string {
	switch b {
	case BoundarySafe:
		return "SAFE"
	case BoundaryDrift:
		return "DRIFT"
	case BoundaryStructural:
		return "STRUCTURAL"
	case BoundaryStress:
		return "STRESS"
	}
	return fmt.Sprintf("Boundary(%d)", int(b))
}

// MarshalJSON encodes the boundary as its canonical name.
func (b Boundary) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// UnmarshalJSON decodes a boundary from its canonical name.
func (b *Boundary) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "SAFE":
		*b = BoundarySafe
	case "DRIFT":
		*b = BoundaryDrift
	case "STRUCTURAL":
		*b = BoundaryStructural
	case "STRESS":
		*b = BoundaryStress
	default:
		return fmt.Errorf("invalid boundary: %q", s)
	}
	return nil
}

// TargetAllocation is the per-layer target fractions, summing to 1.0.
type TargetAllocation struct {
	Foundation float64 `json:"foundation"`
	Growth     float64 `json:"growth"`
	Upside     float64 `json:"upside"`
}

// Pct returns the target fraction for a layer.
func (t TargetAllocation) Pct(l Layer) float64 {
	switch l {
	case LayerFoundation:
		return t.Foundation
	case LayerGrowth:
		return t.Growth
	case LayerUpside:
		return t.Upside
	}
	return 0
}

// Sum returns the total of the three fractions.
func (t TargetAllocation) Sum() float64 {
	return t.Foundation + t.Growth + t.Upside
}

// Validate checks the structural invariants of a target allocation:
// fractions sum to 1.0 within tolerance, FOUNDATION respects its hard
// floor and UPSIDE its hard ceiling.
func (t TargetAllocation) Validate() error {
	if diff := t.Sum() - 1.0; diff > AllocationEpsilon || diff < -AllocationEpsilon {
		return fmt.Errorf("target allocation sums to %.6f, want 1.0", t.Sum())
	}
	if t.Foundation < FoundationFloor-AllocationEpsilon {
		return fmt.Errorf("foundation target %.4f below hard floor %.2f", t.Foundation, FoundationFloor)
	}
	if t.Upside > UpsideCeiling+AllocationEpsilon {
		return fmt.Errorf("upside target %.4f above hard ceiling %.2f", t.Upside, UpsideCeiling)
	}
	for _, l := range Layers {
		if t.Pct(l) < 0 {
			return fmt.Errorf("%s target is negative", l)
		}
	}
	return nil
}

// Holding is a position in a single asset. Quantity only ever reaches
// zero; holdings are never deleted. Frozen is set while the holding is
// pledged as loan collateral.
type Holding struct {
	AssetID     string     `json:"asset_id"`
	Quantity    float64    `json:"quantity"`
	Frozen      bool       `json:"frozen"`
	Layer       Layer      `json:"layer"`
	PurchasedAt *time.Time `json:"purchased_at,omitempty"` // accrual anchor, fixed income only
}

// PortfolioState is the portfolio owned by the caller. Engine functions
// receive it by value and compute after-states on copies.
type PortfolioState struct {
	Holdings []Holding `json:"holdings"`
	Cash     float64   `json:"cash"` // IRR
}

// Holding returns a pointer to the holding for the given asset, or nil.
func (s *PortfolioState) Holding(assetID string) *Holding {
	for i := range s.Holdings {
		if s.Holdings[i].AssetID == assetID {
			return &s.Holdings[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the state.
func (s PortfolioState) Clone() PortfolioState {
	out := PortfolioState{Cash: s.Cash}
	if s.Holdings != nil {
		out.Holdings = make([]Holding, len(s.Holdings))
		copy(out.Holdings, s.Holdings)
	}
	return out
}

// MarketData carries the latest prices and FX rate. The engine always
// takes these as parameters; it never fetches them itself.
type MarketData struct {
	Prices map[string]float64 `json:"prices"`  // USD per unit, by asset ID
	FxRate float64            `json:"fx_rate"` // IRR per USD
	AsOf   time.Time          `json:"as_of"`
}

// PortfolioSnapshot is a derived view of {holdings, cash, prices, fx} at
// an instant. Computed on demand, never stored as source of truth.
type PortfolioSnapshot struct {
	Cash        float64            `json:"cash"`
	AssetValues map[string]float64 `json:"asset_values"` // IRR, by asset ID
	LayerValues map[Layer]float64  `json:"layer_values"` // IRR, cash folded into FOUNDATION
	LayerPcts   map[Layer]float64  `json:"layer_pcts"`   // fraction of total, 0 when total is 0
	TotalValue  float64            `json:"total_value"`  // IRR
	AsOf        time.Time          `json:"as_of"`
}

// Pct returns the layer's fraction of total value.
func (s PortfolioSnapshot) Pct(l Layer) float64 {
	return s.LayerPcts[l]
}

// ValidationResult is the structured outcome of user-correctable
// validation. It is returned, never thrown, so the UI can render the
// errors inline.
type ValidationResult struct {
	OK     bool                   `json:"ok"`
	Errors []string               `json:"errors,omitempty"`
	Meta   map[string]interface{} `json:"meta,omitempty"`
}

// Valid returns a passing validation result.
func Valid() *ValidationResult {
	return &ValidationResult{OK: true}
}

// Invalid returns a failing validation result with the given messages.
func Invalid(errs ...string) *ValidationResult {
	return &ValidationResult{OK: false, Errors: errs}
}

// WithMeta attaches a metadata key to the result and returns it.
func (v *ValidationResult) WithMeta(key string, value interface{}) *ValidationResult {
	if v.Meta == nil {
		v.Meta = make(map[string]interface{})
	}
	v.Meta[key] = value
	return v
}
