// Package rebalancing plans multi-trade moves back toward the target
// allocation. The planner is pure: it proposes trades and reports what
// it could not close, it never executes anything itself.
package rebalancing

import (
	"time"

	"github.com/blumarkets/layers/internal/domain"
	"github.com/blumarkets/layers/internal/modules/boundary"
	"github.com/blumarkets/layers/internal/modules/portfolio"
	"github.com/blumarkets/layers/internal/modules/registry"
	"github.com/blumarkets/layers/internal/modules/trading"
)

// valueEpsilonIRR is the layer gap below which the planner does not act.
const valueEpsilonIRR = 1.0

// PlannedTrade is one leg of a rebalance plan.
type PlannedTrade struct {
	Side      domain.TradeSide `json:"side"`
	AssetID   string           `json:"asset_id"`
	AmountIRR float64          `json:"amount_irr"`
	Quantity  float64          `json:"quantity"`
	SpreadIRR float64          `json:"spread_irr"`
}

// RebalancePlan is the full proposed move with its honest shortfalls.
// ResidualDrift is the gap that remains even if every leg executes.
type RebalancePlan struct {
	Trades              []PlannedTrade           `json:"trades"`
	ResidualDrift       float64                  `json:"residual_drift"`
	HasLockedCollateral bool                     `json:"has_locked_collateral"`
	InsufficientCash    bool                     `json:"insufficient_cash"`
	DeployedCash        bool                     `json:"deployed_cash"`
	Before              domain.PortfolioSnapshot `json:"before"`
	After               domain.PortfolioSnapshot `json:"after"`
	AfterState          domain.PortfolioState    `json:"-"`
	Boundary            domain.Boundary          `json:"boundary"`
}

// Planner computes rebalance plans.
type Planner struct {
	registry   *registry.Registry
	calculator *portfolio.Calculator
}

// NewPlanner creates a rebalance planner.
func NewPlanner(reg *registry.Registry, calc *portfolio.Calculator) *Planner {
	return &Planner{registry: reg, calculator: calc}
}

// Plan closes the layer gaps in two phases: sell down overweight layers
// (skipping frozen collateral), then buy into underweight layers from
// the proceeds. Pre-existing idle cash is only spent when deployCash is
// set. Legs below the minimum trade size are dropped, not rounded up.
func (p *Planner) Plan(state domain.PortfolioState, market domain.MarketData, target domain.TargetAllocation, deployCash bool, now time.Time) RebalancePlan {
	before := p.calculator.Snapshot(state, market, now)
	plan := RebalancePlan{Before: before, DeployedCash: deployCash}

	total := before.TotalValue
	if total <= 0 {
		plan.After = before
		plan.AfterState = state.Clone()
		plan.Boundary = domain.BoundarySafe
		return plan
	}

	work := state.Clone()
	proceeds := p.sellOverweight(&plan, &work, before, market, target, total)
	p.buyUnderweight(&plan, &work, before, market, target, total, proceeds, deployCash, state.Cash, now)

	plan.After = p.calculator.Snapshot(work, market, now)
	plan.AfterState = work
	plan.ResidualDrift = boundary.Drift(plan.After, target)
	plan.Boundary = boundary.Classify(before, plan.After, target)
	return plan
}

// sellOverweight liquidates overweight layers down to target, heaviest
// intra-layer weight first, and returns the net proceeds. FOUNDATION
// sells are capped to its asset value: the cash portion is already
// liquid and selling cannot reduce the layer by itself.
func (p *Planner) sellOverweight(plan *RebalancePlan, work *domain.PortfolioState, before domain.PortfolioSnapshot, market domain.MarketData, target domain.TargetAllocation, total float64) float64 {
	proceeds := 0.0
	for _, l := range domain.Layers {
		excess := before.LayerValues[l] - target.Pct(l)*total
		if l == domain.LayerFoundation {
			assets := before.LayerValues[l] - before.Cash
			if excess > assets {
				excess = assets
			}
		}
		if excess < valueEpsilonIRR {
			continue
		}

		for _, asset := range p.registry.ByLayer(l) {
			if excess < trading.MinTradeAmountIRR {
				break
			}
			h := work.Holding(asset.ID)
			if h == nil || h.Quantity <= 0 {
				continue
			}
			if h.Frozen {
				plan.HasLockedCollateral = true
				continue
			}

			amount := before.AssetValues[asset.ID]
			if amount > excess {
				amount = excess
			}
			if amount < trading.MinTradeAmountIRR {
				continue
			}

			quantity := amount / p.unitPriceIRR(asset, market)
			if quantity > h.Quantity {
				// Accrued interest values a unit above its face price; never
				// sell more units than held.
				quantity = h.Quantity
				amount = quantity * p.unitPriceIRR(asset, market)
			}
			spread := amount * p.registry.Spread(l)
			h.Quantity -= quantity
			if h.Quantity < 0 {
				h.Quantity = 0
			}
			work.Cash += amount - spread
			proceeds += amount - spread
			excess -= amount

			plan.Trades = append(plan.Trades, PlannedTrade{
				Side:      domain.SideSell,
				AssetID:   asset.ID,
				AmountIRR: amount,
				Quantity:  quantity,
				SpreadIRR: spread,
			})
		}

		if excess >= trading.MinTradeAmountIRR && l != domain.LayerFoundation {
			// Could not sell the whole excess; frozen or missing holdings.
			plan.HasLockedCollateral = plan.HasLockedCollateral || p.hasFrozen(work, l)
		}
	}
	return proceeds
}

// buyUnderweight spends the budget into underweight layers, split by
// intra-layer registry weight. A FOUNDATION deficit needs no buys: sell
// proceeds land in cash, which already counts as FOUNDATION.
func (p *Planner) buyUnderweight(plan *RebalancePlan, work *domain.PortfolioState, before domain.PortfolioSnapshot, market domain.MarketData, target domain.TargetAllocation, total, proceeds float64, deployCash bool, initialCash float64, now time.Time) {
	budget := proceeds
	if deployCash {
		// Idle cash beyond what FOUNDATION needs to reach target.
		foundationAssets := before.LayerValues[domain.LayerFoundation] - before.Cash
		reserve := target.Pct(domain.LayerFoundation)*total - foundationAssets
		if reserve < 0 {
			reserve = 0
		}
		if surplus := initialCash - reserve; surplus > 0 {
			budget += surplus
		}
	}

	for _, l := range []domain.Layer{domain.LayerGrowth, domain.LayerUpside} {
		deficit := target.Pct(l)*total - before.LayerValues[l]
		if deficit < valueEpsilonIRR {
			continue
		}

		for _, asset := range p.registry.ByLayer(l) {
			amount := deficit * asset.Weight
			if amount < trading.MinTradeAmountIRR {
				continue
			}
			if amount > budget {
				amount = budget
			}
			if amount < trading.MinTradeAmountIRR {
				plan.InsufficientCash = true
				break
			}

			spread := amount * p.registry.Spread(l)
			quantity := (amount - spread) / p.unitPriceIRR(asset, market)
			p.credit(work, asset, quantity, now)
			work.Cash -= amount
			budget -= amount

			plan.Trades = append(plan.Trades, PlannedTrade{
				Side:      domain.SideBuy,
				AssetID:   asset.ID,
				AmountIRR: amount,
				Quantity:  quantity,
				SpreadIRR: spread,
			})
		}
	}
}

func (p *Planner) hasFrozen(state *domain.PortfolioState, l domain.Layer) bool {
	for _, h := range state.Holdings {
		if h.Layer == l && h.Frozen && h.Quantity > 0 {
			return true
		}
	}
	return false
}

// unitPriceIRR prices one unit in IRR. The fixed income instrument is
// IRR-denominated and never crosses the FX rate.
func (p *Planner) unitPriceIRR(asset registry.AssetConfig, market domain.MarketData) float64 {
	if asset.ID == registry.FixedIncomeAssetID {
		return asset.UnitPriceIRR
	}
	return market.Prices[asset.ID] * market.FxRate
}

func (p *Planner) credit(state *domain.PortfolioState, asset registry.AssetConfig, quantity float64, now time.Time) {
	if h := state.Holding(asset.ID); h != nil {
		h.Quantity += quantity
		if asset.ID == registry.FixedIncomeAssetID && h.PurchasedAt == nil {
			t := now
			h.PurchasedAt = &t
		}
		return
	}
	h := domain.Holding{AssetID: asset.ID, Quantity: quantity, Layer: asset.Layer}
	if asset.ID == registry.FixedIncomeAssetID {
		t := now
		h.PurchasedAt = &t
	}
	state.Holdings = append(state.Holdings, h)
}
