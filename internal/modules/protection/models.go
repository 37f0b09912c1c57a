// Package protection implements crash protection bookkeeping. Premium
// pricing is quoted externally; this module validates eligibility and
// bounds, derives notional and strike, and tracks the contract
// lifecycle. An offline estimate exists for display when no quote is
// available, and is never used to transact.
package protection

import (
	"time"
)

// Contract bounds.
const (
	MinCoverage = 0.10
	MaxCoverage = 1.00

	// QuoteTTL is how long a premium quote stays valid.
	QuoteTTL = 5 * time.Minute
)

// ValidDurations are the offered contract lengths in days.
var ValidDurations = []int{30, 90, 180}

// Status is the lifecycle state of a protection contract.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
	StatusExercised Status = "EXERCISED"
)

// Quote is a server-priced premium offer. The engine treats it as
// opaque authoritative input; it never recomputes the premium.
type Quote struct {
	ID           string    `json:"id"`
	AssetID      string    `json:"asset_id"`
	Coverage     float64   `json:"coverage"`
	DurationDays int       `json:"duration_days"`
	PremiumIRR   float64   `json:"premium_irr"`
	QuotedAt     time.Time `json:"quoted_at"`
}

// PurchaseRequest is a draft protection purchase.
type PurchaseRequest struct {
	AssetID      string  `json:"asset_id"`
	Coverage     float64 `json:"coverage"`
	DurationDays int     `json:"duration_days"`
	QuoteID      string  `json:"quote_id"`
}

// Protection is a purchased contract.
type Protection struct {
	ID          string    `json:"id"`
	AssetID     string    `json:"asset_id"`
	NotionalIRR float64   `json:"notional_irr"`
	PremiumIRR  float64   `json:"premium_irr"`
	Coverage    float64   `json:"coverage"`
	StrikeIRR   float64   `json:"strike_irr"` // per unit, spot at purchase
	StartedAt   time.Time `json:"started_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Status      Status    `json:"status"`
}

// Terms are the derived contract values shown before purchase.
type Terms struct {
	NotionalIRR float64 `json:"notional_irr"`
	StrikeIRR   float64 `json:"strike_irr"`
}
