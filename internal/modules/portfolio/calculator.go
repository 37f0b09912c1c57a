// Package portfolio derives point-in-time snapshots of the portfolio and
// persists the holdings, cash and target allocation behind a repository.
//
// The snapshot calculation is pure: it never mutates its inputs and is
// safe to call on every keystroke.
package portfolio

import (
	"fmt"
	"time"

	"github.com/blumarkets/layers/internal/domain"
	"github.com/blumarkets/layers/internal/modules/registry"
)

// hoursPerDay and daysPerYear anchor the simple-interest accrual math.
const (
	hoursPerDay = 24.0
	daysPerYear = 365.0
)

// Calculator computes portfolio snapshots against the asset registry.
type Calculator struct {
	registry *registry.Registry
}

// NewCalculator creates a snapshot calculator.
func NewCalculator(reg *registry.Registry) *Calculator {
	return &Calculator{registry: reg}
}

// Snapshot values every holding at the given market data and aggregates
// by layer. Cash is folded into FOUNDATION before percentages are
// computed. A zero-value portfolio yields 0% everywhere, never NaN.
//
// Malformed state (unknown asset, negative quantity, missing price)
// indicates caller-side corruption and panics.
func (c *Calculator) Snapshot(state domain.PortfolioState, market domain.MarketData, now time.Time) domain.PortfolioSnapshot {
	snap := domain.PortfolioSnapshot{
		Cash:        state.Cash,
		AssetValues: make(map[string]float64, len(state.Holdings)),
		LayerValues: make(map[domain.Layer]float64, len(domain.Layers)),
		LayerPcts:   make(map[domain.Layer]float64, len(domain.Layers)),
		AsOf:        now,
	}
	for _, l := range domain.Layers {
		snap.LayerValues[l] = 0
		snap.LayerPcts[l] = 0
	}

	for _, h := range state.Holdings {
		if h.Quantity < 0 {
			panic(fmt.Sprintf("portfolio: negative quantity %.8f for %s", h.Quantity, h.AssetID))
		}
		asset := c.registry.MustGet(h.AssetID)

		value := c.holdingValue(h, asset, market, now)
		snap.AssetValues[h.AssetID] = value
		snap.LayerValues[asset.Layer] += value
	}

	// Cash is not a separate layer.
	snap.LayerValues[domain.LayerFoundation] += state.Cash

	for _, l := range domain.Layers {
		snap.TotalValue += snap.LayerValues[l]
	}
	if snap.TotalValue > 0 {
		for _, l := range domain.Layers {
			snap.LayerPcts[l] = snap.LayerValues[l] / snap.TotalValue
		}
	}

	return snap
}

// holdingValue prices one holding in IRR.
func (c *Calculator) holdingValue(h domain.Holding, asset registry.AssetConfig, market domain.MarketData, now time.Time) float64 {
	if h.AssetID == registry.FixedIncomeAssetID {
		principal := h.Quantity * asset.UnitPriceIRR
		return principal + FixedIncomeAccrued(principal, asset.AnnualRate, h.PurchasedAt, now)
	}

	price, ok := market.Prices[h.AssetID]
	if !ok {
		panic(fmt.Sprintf("portfolio: no price for %s", h.AssetID))
	}
	return h.Quantity * price * market.FxRate
}

// FixedIncomeAccrued returns the simple interest accrued on a fixed
// income principal. Accrual is continuous: elapsed time is not floored
// to whole days (flooring is display-only, see DaysHeld).
func FixedIncomeAccrued(principalIRR, annualRate float64, purchasedAt *time.Time, now time.Time) float64 {
	if purchasedAt == nil || !now.After(*purchasedAt) {
		return 0
	}
	days := now.Sub(*purchasedAt).Hours() / hoursPerDay
	return principalIRR * annualRate * (days / daysPerYear)
}

// DaysHeld returns whole elapsed days for display purposes.
func DaysHeld(purchasedAt *time.Time, now time.Time) int {
	if purchasedAt == nil || !now.After(*purchasedAt) {
		return 0
	}
	return int(now.Sub(*purchasedAt).Hours() / hoursPerDay)
}
