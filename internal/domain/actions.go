package domain

import "time"

// ActionKind discriminates ledger action payloads.
type ActionKind string

const (
	ActionAddFunds  ActionKind = "ADD_FUNDS"
	ActionTrade     ActionKind = "TRADE"
	ActionRebalance ActionKind = "REBALANCE"
	ActionBorrow    ActionKind = "BORROW"
	ActionRepay     ActionKind = "REPAY"
	ActionProtect   ActionKind = "PROTECT"
)

// ActionPayload is implemented by every action payload type, replacing
// the runtime-discriminated unions of the original client with tagged
// variants.
type ActionPayload interface {
	Kind() ActionKind
}

// AddFundsPayload credits cash to the portfolio.
type AddFundsPayload struct {
	AmountIRR float64 `json:"amount_irr"`
}

// Kind returns the action kind for AddFundsPayload
func (p AddFundsPayload) Kind() ActionKind { return ActionAddFunds }

// TradePayload is a single confirmed BUY or SELL.
type TradePayload struct {
	Side      TradeSide `json:"side"`
	AssetID   string    `json:"asset_id"`
	AmountIRR float64   `json:"amount_irr"`
	Quantity  float64   `json:"quantity"`
	SpreadIRR float64   `json:"spread_irr"`
}

// Kind returns the action kind for TradePayload
func (p TradePayload) Kind() ActionKind { return ActionTrade }

// RebalancePayload is a confirmed multi-trade rebalance.
type RebalancePayload struct {
	Trades        []TradePayload `json:"trades"`
	ResidualDrift float64        `json:"residual_drift"`
	DeployedCash  bool           `json:"deployed_cash"`
}

// Kind returns the action kind for RebalancePayload
func (p RebalancePayload) Kind() ActionKind { return ActionRebalance }

// BorrowPayload opens a loan against pledged collateral.
type BorrowPayload struct {
	LoanID             string  `json:"loan_id"`
	CollateralAssetID  string  `json:"collateral_asset_id"`
	CollateralQuantity float64 `json:"collateral_quantity"`
	PrincipalIRR       float64 `json:"principal_irr"`
	DurationDays       int     `json:"duration_days"`
}

// Kind returns the action kind for BorrowPayload
func (p BorrowPayload) Kind() ActionKind { return ActionBorrow }

// RepayPayload pays one installment or settles a loan early.
type RepayPayload struct {
	LoanID     string  `json:"loan_id"`
	AmountIRR  float64 `json:"amount_irr"`
	Settlement bool    `json:"settlement"` // true for early lump settlement
}

// Kind returns the action kind for RepayPayload
func (p RepayPayload) Kind() ActionKind { return ActionRepay }

// ProtectPayload purchases crash protection against a signed quote.
type ProtectPayload struct {
	ProtectionID string    `json:"protection_id"`
	AssetID      string    `json:"asset_id"`
	Coverage     float64   `json:"coverage"`
	DurationDays int       `json:"duration_days"`
	NotionalIRR  float64   `json:"notional_irr"`
	PremiumIRR   float64   `json:"premium_irr"`
	StrikeIRR    float64   `json:"strike_irr"`
	QuoteID      string    `json:"quote_id"`
	QuotedAt     time.Time `json:"quoted_at"`
}

// Kind returns the action kind for ProtectPayload
func (p ProtectPayload) Kind() ActionKind { return ActionProtect }
