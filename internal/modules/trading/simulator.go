package trading

import (
	"fmt"
	"time"

	"github.com/blumarkets/layers/internal/domain"
	"github.com/blumarkets/layers/internal/modules/boundary"
	"github.com/blumarkets/layers/internal/modules/portfolio"
	"github.com/blumarkets/layers/internal/modules/registry"
)

// quantityEpsilon absorbs float noise when comparing held quantities.
const quantityEpsilon = 1e-9

// Simulator computes the full effect of a proposed trade without
// touching any state. Commit replays the same computation, so preview
// and execution can never disagree.
type Simulator struct {
	registry   *registry.Registry
	calculator *portfolio.Calculator
}

// NewSimulator creates a trade simulator.
func NewSimulator(reg *registry.Registry, calc *portfolio.Calculator) *Simulator {
	return &Simulator{registry: reg, calculator: calc}
}

// Preview validates a trade request and, when valid, returns the
// complete before/after effect. Validation failures are returned as a
// ValidationResult, never as an error: a rejected draft is a normal
// outcome, not a fault.
func (s *Simulator) Preview(req TradeRequest, state domain.PortfolioState, market domain.MarketData, target domain.TargetAllocation, now time.Time) (*TradePreview, *domain.ValidationResult) {
	if vr := s.validate(req, state, market); !vr.OK {
		return nil, vr
	}

	asset := s.registry.MustGet(req.AssetID)
	unitPrice := s.unitPriceIRR(asset, market)
	spreadRate := s.registry.Spread(asset.Layer)
	spreadIRR := req.AmountIRR * spreadRate
	netIRR := req.AmountIRR - spreadIRR

	after := state.Clone()
	var quantity float64
	switch req.Side {
	case domain.SideBuy:
		// Gross cash out, net units in. The spread is the gap.
		quantity = netIRR / unitPrice
		after.Cash -= req.AmountIRR
		s.addQuantity(&after, asset, quantity, now)
	case domain.SideSell:
		// Gross units out, net cash in.
		quantity = req.AmountIRR / unitPrice
		h := after.Holding(req.AssetID)
		h.Quantity -= quantity
		if h.Quantity < 0 && h.Quantity > -quantityEpsilon {
			h.Quantity = 0
		}
		after.Cash += netIRR
	}

	before := s.calculator.Snapshot(state, market, now)
	afterSnap := s.calculator.Snapshot(after, market, now)
	b := boundary.Classify(before, afterSnap, target)

	return &TradePreview{
		Request:           req,
		Quantity:          quantity,
		SpreadIRR:         spreadIRR,
		NetAmountIRR:      netIRR,
		Before:            before,
		After:             afterSnap,
		AfterState:        after,
		Boundary:          b,
		FrictionCopy:      FrictionCopy(b, req.Side),
		MovesTowardTarget: boundary.Drift(afterSnap, target) < boundary.Drift(before, target),
	}, domain.Valid()
}

// validate applies the user-correctable checks in a fixed order.
// Everything here is something the user can fix by editing the draft.
func (s *Simulator) validate(req TradeRequest, state domain.PortfolioState, market domain.MarketData) *domain.ValidationResult {
	if req.Side != domain.SideBuy && req.Side != domain.SideSell {
		return domain.Invalid(fmt.Sprintf("unknown trade side %q", req.Side))
	}
	asset, ok := s.registry.Get(req.AssetID)
	if !ok {
		return domain.Invalid(fmt.Sprintf("unknown asset %q", req.AssetID))
	}
	if req.AmountIRR <= 0 {
		return domain.Invalid("trade amount must be positive")
	}
	if req.AmountIRR < MinTradeAmountIRR {
		return domain.Invalid(fmt.Sprintf("trade amount below minimum of %d IRR", MinTradeAmountIRR)).
			WithMeta("min_amount_irr", MinTradeAmountIRR)
	}
	if asset.ID != registry.FixedIncomeAssetID {
		if _, priced := market.Prices[asset.ID]; !priced {
			return domain.Invalid(fmt.Sprintf("no price available for %s", asset.ID))
		}
	}

	switch req.Side {
	case domain.SideBuy:
		if req.AmountIRR > state.Cash {
			return domain.Invalid("insufficient cash").
				WithMeta("cash_irr", state.Cash)
		}
	case domain.SideSell:
		h := state.Holding(req.AssetID)
		if h == nil || h.Quantity <= 0 {
			return domain.Invalid(fmt.Sprintf("no %s holding to sell", req.AssetID))
		}
		if h.Frozen {
			return domain.Invalid(fmt.Sprintf("%s is pledged as loan collateral and cannot be sold", req.AssetID))
		}
		need := req.AmountIRR / s.unitPriceIRR(asset, market)
		if need > h.Quantity+quantityEpsilon {
			return domain.Invalid("insufficient holding").
				WithMeta("held_quantity", h.Quantity).
				WithMeta("required_quantity", need)
		}
	}
	return domain.Valid()
}

// unitPriceIRR prices one unit of the asset in IRR. The fixed income
// instrument is IRR-denominated and never crosses the FX rate.
func (s *Simulator) unitPriceIRR(asset registry.AssetConfig, market domain.MarketData) float64 {
	if asset.ID == registry.FixedIncomeAssetID {
		return asset.UnitPriceIRR
	}
	return market.Prices[asset.ID] * market.FxRate
}

// addQuantity credits bought units, creating the holding on first buy.
// A first fixed income purchase anchors its accrual clock at now; later
// purchases keep the original anchor.
func (s *Simulator) addQuantity(state *domain.PortfolioState, asset registry.AssetConfig, quantity float64, now time.Time) {
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
