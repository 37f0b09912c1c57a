// Package trading simulates and commits trades. The simulator is the
// central what-if engine: it computes the full effect of a proposed
// trade without mutating anything, and commit replays the exact same
// computation and persists its output.
package trading

import (
	"time"

	"github.com/blumarkets/layers/internal/domain"
)

// MinTradeAmountIRR is the absolute minimum trade size.
const MinTradeAmountIRR = 1_000_000

// TradeRequest is a draft trade collected by the UI.
type TradeRequest struct {
	Side      domain.TradeSide `json:"side"`
	AssetID   string           `json:"asset_id"`
	AmountIRR float64          `json:"amount_irr"` // gross amount, IRR
}

// TradePreview is the complete before/after effect of a proposed trade.
// It is computed fresh per call and safe to recompute on every keystroke.
type TradePreview struct {
	Request           TradeRequest             `json:"request"`
	Quantity          float64                  `json:"quantity"`   // units moved
	SpreadIRR         float64                  `json:"spread_irr"` // friction charged
	NetAmountIRR      float64                  `json:"net_amount_irr"`
	Before            domain.PortfolioSnapshot `json:"before"`
	After             domain.PortfolioSnapshot `json:"after"`
	AfterState        domain.PortfolioState    `json:"-"`
	Boundary          domain.Boundary          `json:"boundary"`
	FrictionCopy      []string                 `json:"friction_copy,omitempty"`
	MovesTowardTarget bool                     `json:"moves_toward_target"`
}

// Trade is a committed trade record.
type Trade struct {
	ID         string           `json:"id"`
	Side       domain.TradeSide `json:"side"`
	AssetID    string           `json:"asset_id"`
	AmountIRR  float64          `json:"amount_irr"`
	Quantity   float64          `json:"quantity"`
	SpreadIRR  float64          `json:"spread_irr"`
	Boundary   domain.Boundary  `json:"boundary"`
	ExecutedAt time.Time        `json:"executed_at"`
}
