package protection

import (
	"fmt"
	"math"
	"time"

	"github.com/blumarkets/layers/internal/domain"
	"github.com/blumarkets/layers/internal/modules/registry"
)

// Validator checks purchase requests against the asset registry.
type Validator struct {
	registry *registry.Registry
}

// NewValidator creates a protection validator.
func NewValidator(reg *registry.Registry) *Validator {
	return &Validator{registry: reg}
}

// Validate applies the user-correctable checks for a purchase: asset
// eligibility, coverage and duration bounds, quote match and freshness.
func (v *Validator) Validate(req PurchaseRequest, holdingValueIRR float64, quote Quote, now time.Time) *domain.ValidationResult {
	if _, ok := v.registry.Get(req.AssetID); !ok {
		return domain.Invalid(fmt.Sprintf("unknown asset %q", req.AssetID))
	}
	if !v.registry.IsProtectionEligible(req.AssetID) {
		return domain.Invalid(fmt.Sprintf("%s is not protection eligible", req.AssetID))
	}
	if req.Coverage < MinCoverage || req.Coverage > MaxCoverage {
		return domain.Invalid(fmt.Sprintf("coverage must be between %.0f%% and %.0f%%", MinCoverage*100, MaxCoverage*100))
	}
	if !validDuration(req.DurationDays) {
		return domain.Invalid("duration must be 30, 90 or 180 days")
	}
	if holdingValueIRR <= 0 {
		return domain.Invalid(fmt.Sprintf("no %s holding to protect", req.AssetID))
	}
	if quote.AssetID != req.AssetID || quote.Coverage != req.Coverage || quote.DurationDays != req.DurationDays {
		return domain.Invalid("quote does not match the request")
	}
	if quote.PremiumIRR <= 0 {
		return domain.Invalid("quote carries no premium")
	}
	if now.Sub(quote.QuotedAt) > QuoteTTL {
		return domain.Invalid("quote has expired, request a fresh one").
			WithMeta("quoted_at", quote.QuotedAt)
	}
	return domain.Valid()
}

func validDuration(days int) bool {
	for _, d := range ValidDurations {
		if d == days {
			return true
		}
	}
	return false
}

// Derive computes the contract terms: notional is the protected slice
// of the holding, strike is spot at purchase.
func Derive(holdingValueIRR, coverage, spotIRR float64) Terms {
	return Terms{
		NotionalIRR: holdingValueIRR * coverage,
		StrikeIRR:   spotIRR,
	}
}

// Payout is the exercise value per the contract: the notional scaled by
// the relative drop below strike. Zero when spot is at or above strike.
func Payout(notionalIRR, strikeIRR, spotIRR float64) float64 {
	if spotIRR >= strikeIRR || strikeIRR <= 0 {
		return 0
	}
	return notionalIRR * (strikeIRR - spotIRR) / strikeIRR
}

// OfflineEstimatePremium is a knowingly rough display-only estimate
// used when no server quote is available: an ATM-put approximation of
// 0.4 * sigma * sqrt(T) on the notional. Purchases always require a
// real quote.
func OfflineEstimatePremium(notionalIRR, annualVolatility float64, durationDays int) float64 {
	t := float64(durationDays) / 365.0
	return notionalIRR * 0.4 * annualVolatility * math.Sqrt(t)
}
