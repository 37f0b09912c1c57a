// Package boundary computes the drift metric and classifies proposed
// portfolio changes into severity tiers.
//
// Classification is a pure function of its snapshot arguments: no memory
// of prior calls, identical inputs always produce identical output.
package boundary

import (
	"fmt"
	"math"

	"github.com/blumarkets/layers/internal/domain"
)

// Drift-delta thresholds between the after and before snapshots.
const (
	StressDelta     = 0.10
	StructuralDelta = 0.05
)

// Drift returns the aggregate absolute deviation of a snapshot's layer
// percentages from the target. The sum is halved because a percentage
// point lost in one layer is gained in exactly one other, so the raw sum
// double-counts.
func Drift(snap domain.PortfolioSnapshot, target domain.TargetAllocation) float64 {
	return DriftBetween(allocationOf(snap), target)
}

// DriftBetween is the symmetric drift metric over two allocations.
func DriftBetween(a, b domain.TargetAllocation) float64 {
	sum := 0.0
	for _, l := range domain.Layers {
		sum += math.Abs(a.Pct(l) - b.Pct(l))
	}
	return sum / 2
}

// Classify assigns a severity tier to the change from before to after,
// measured against the target allocation. Rules in precedence order,
// first match wins:
//
//  1. after breaches the FOUNDATION hard floor  -> STRESS
//  2. after breaches the UPSIDE hard ceiling    -> STRESS
//  3. drift delta > 0.10                        -> STRESS
//  4. drift delta > 0.05                        -> STRUCTURAL
//  5. drift delta > 0                           -> DRIFT
//  6. drift flat or improved                    -> SAFE
//
// Hard floors and ceilings always win over the drift tiers: they are
// structural constraints that hold regardless of whether the single
// trade is improving things.
func Classify(before, after domain.PortfolioSnapshot, target domain.TargetAllocation) domain.Boundary {
	mustBeWellFormed(before, "before")
	mustBeWellFormed(after, "after")
	if err := target.Validate(); err != nil {
		panic(fmt.Sprintf("boundary: invalid target allocation: %v", err))
	}

	if after.TotalValue > 0 {
		if after.Pct(domain.LayerFoundation) < domain.FoundationFloor-domain.AllocationEpsilon {
			return domain.BoundaryStress
		}
		if after.Pct(domain.LayerUpside) > domain.UpsideCeiling+domain.AllocationEpsilon {
			return domain.BoundaryStress
		}
	}

	delta := Drift(after, target) - Drift(before, target)
	switch {
	case delta > StressDelta:
		return domain.BoundaryStress
	case delta > StructuralDelta:
		return domain.BoundaryStructural
	case delta > 0:
		return domain.BoundaryDrift
	}
	return domain.BoundarySafe
}

// allocationOf lifts a snapshot's layer percentages into an allocation.
func allocationOf(snap domain.PortfolioSnapshot) domain.TargetAllocation {
	return domain.TargetAllocation{
		Foundation: snap.Pct(domain.LayerFoundation),
		Growth:     snap.Pct(domain.LayerGrowth),
		Upside:     snap.Pct(domain.LayerUpside),
	}
}

// mustBeWellFormed panics when a snapshot's percentages do not sum to
// 1.0 for a non-empty portfolio. A malformed snapshot reaching the
// classifier is upstream state corruption; silently coercing it would be
// worse than crashing.
func mustBeWellFormed(snap domain.PortfolioSnapshot, name string) {
	if snap.TotalValue == 0 {
		return
	}
	sum := 0.0
	for _, l := range domain.Layers {
		sum += snap.Pct(l)
	}
	if math.Abs(sum-1.0) > 1e-4 {
		panic(fmt.Sprintf("boundary: %s snapshot percentages sum to %.6f, want 1.0", name, sum))
	}
}
