package boundary

import (
	"testing"

	"github.com/blumarkets/layers/internal/domain"
	"github.com/stretchr/testify/assert"
)

// snap builds a well-formed snapshot with the given layer percentages.
func snap(foundation, growth, upside float64) domain.PortfolioSnapshot {
	total := 1_000_000_000.0
	return domain.PortfolioSnapshot{
		TotalValue: total,
		LayerValues: map[domain.Layer]float64{
			domain.LayerFoundation: foundation * total,
			domain.LayerGrowth:     growth * total,
			domain.LayerUpside:     upside * total,
		},
		LayerPcts: map[domain.Layer]float64{
			domain.LayerFoundation: foundation,
			domain.LayerGrowth:     growth,
			domain.LayerUpside:     upside,
		},
	}
}

var target = domain.TargetAllocation{Foundation: 0.50, Growth: 0.35, Upside: 0.15}

func TestDriftAtTargetIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Drift(snap(0.50, 0.35, 0.15), target))
}

func TestDriftHalvesTheRawSum(t *testing.T) {
	// 10 points out of FOUNDATION into GROWTH: raw sum 0.20, drift 0.10.
	assert.InDelta(t, 0.10, Drift(snap(0.40, 0.45, 0.15), target), 1e-9)
}

func TestDriftBetweenIsSymmetric(t *testing.T) {
	a := domain.TargetAllocation{Foundation: 0.60, Growth: 0.25, Upside: 0.15}
	b := domain.TargetAllocation{Foundation: 0.35, Growth: 0.40, Upside: 0.25}

	assert.Equal(t, DriftBetween(a, b), DriftBetween(b, a))
}

func TestClassifyNoChangeIsSafe(t *testing.T) {
	s := snap(0.50, 0.35, 0.15)
	assert.Equal(t, domain.BoundarySafe, Classify(s, s, target))
}

func TestClassifyImprovementIsSafe(t *testing.T) {
	before := snap(0.40, 0.45, 0.15)
	after := snap(0.45, 0.40, 0.15)
	assert.Equal(t, domain.BoundarySafe, Classify(before, after, target))
}

func TestClassifyDriftTiers(t *testing.T) {
	tests := []struct {
		name     string
		after    domain.PortfolioSnapshot
		expected domain.Boundary
	}{
		{"small worsening", snap(0.48, 0.37, 0.15), domain.BoundaryDrift},           // delta 0.02
		{"structural worsening", snap(0.42, 0.43, 0.15), domain.BoundaryStructural}, // delta 0.08
		{"stress worsening", snap(0.38, 0.40, 0.22), domain.BoundaryStress},         // delta 0.19
	}

	before := snap(0.50, 0.35, 0.15)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(before, tt.after, target))
		})
	}
}

func TestClassifyFoundationFloorAlwaysWins(t *testing.T) {
	// FOUNDATION pushed from 30% to 25% breaches the 30% hard floor:
	// STRESS regardless of the drift delta.
	lowTarget := domain.TargetAllocation{Foundation: 0.30, Growth: 0.40, Upside: 0.30}
	before := snap(0.30, 0.45, 0.25)
	after := snap(0.25, 0.50, 0.25)

	assert.Equal(t, domain.BoundaryStress, Classify(before, after, lowTarget))
}

func TestClassifyFloorBeatsImprovingDrift(t *testing.T) {
	// After-state is closer to target but still under the floor: the
	// structural constraint wins over the improving drift.
	lowTarget := domain.TargetAllocation{Foundation: 0.30, Growth: 0.40, Upside: 0.30}
	before := snap(0.10, 0.60, 0.30)
	after := snap(0.20, 0.50, 0.30)

	assert.Less(t, Drift(after, lowTarget), Drift(before, lowTarget))
	assert.Equal(t, domain.BoundaryStress, Classify(before, after, lowTarget))
}

func TestClassifyUpsideCeiling(t *testing.T) {
	before := snap(0.45, 0.20, 0.35)
	after := snap(0.40, 0.15, 0.45) // above the 40% ceiling

	assert.Equal(t, domain.BoundaryStress, Classify(before, after, target))
}

func TestClassifyEmptyPortfolioIsSafe(t *testing.T) {
	empty := domain.PortfolioSnapshot{
		LayerPcts: map[domain.Layer]float64{},
	}
	assert.Equal(t, domain.BoundarySafe, Classify(empty, empty, target))
}

func TestClassifyIsIdempotent(t *testing.T) {
	before := snap(0.50, 0.35, 0.15)
	after := snap(0.42, 0.43, 0.15)

	first := Classify(before, after, target)
	second := Classify(before, after, target)

	assert.Equal(t, first, second)
}

func TestClassifyPanicsOnMalformedSnapshot(t *testing.T) {
	bad := domain.PortfolioSnapshot{
		TotalValue: 100,
		LayerPcts: map[domain.Layer]float64{
			domain.LayerFoundation: 0.9,
			domain.LayerGrowth:     0.9,
			domain.LayerUpside:     0.9,
		},
	}
	good := snap(0.50, 0.35, 0.15)

	assert.Panics(t, func() { Classify(good, bad, target) })
}

func TestClassifyPanicsOnInvalidTarget(t *testing.T) {
	s := snap(0.50, 0.35, 0.15)
	bad := domain.TargetAllocation{Foundation: 0.9, Growth: 0.9, Upside: 0.9}

	assert.Panics(t, func() { Classify(s, s, bad) })
}
