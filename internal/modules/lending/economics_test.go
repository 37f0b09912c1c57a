package lending

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaxBorrow(t *testing.T) {
	assert.InDelta(t, 70_000_000, MaxBorrow(100_000_000, 0.70), 1e-6)
	assert.InDelta(t, 50_000_000, MaxBorrow(100_000_000, 0.50), 1e-6)
	assert.Equal(t, 0.0, MaxBorrow(0, 0.70))
}

func TestLiquidationPriceIsPrincipalPerUnit(t *testing.T) {
	// 100M IRR against 1 BTC liquidates at exactly 100M IRR per BTC.
	assert.Equal(t, 100_000_000.0, LiquidationPrice(100_000_000, 1))
	assert.InDelta(t, 50_000_000, LiquidationPrice(100_000_000, 2), 1e-6)
}

func TestLiquidationPricePanicsOnZeroCollateral(t *testing.T) {
	assert.Panics(t, func() { LiquidationPrice(100, 0) })
}

func TestInterestAccrual(t *testing.T) {
	principal := 100_000_000.0
	rate := 0.23

	daily := DailyInterest(principal, rate)
	assert.InDelta(t, principal*rate/365, daily, 1e-9)
	assert.InDelta(t, daily*90, Accrued(principal, rate, 90), 1e-6)
	assert.Equal(t, 0.0, Accrued(principal, rate, 0))
	assert.Equal(t, 0.0, Accrued(principal, rate, -5))
}

func TestSettlementNeverExceedsFullTerm(t *testing.T) {
	principal := 100_000_000.0
	rate := 0.23
	duration := 90

	full := FullTermAmount(principal, rate, duration)
	for days := 0; days <= duration+30; days++ {
		settlement := SettlementAmount(principal, rate, days, duration)
		if days < duration {
			assert.Less(t, settlement, full, "day %d", days)
		} else {
			// Equality only at (or past) maturity.
			assert.InDelta(t, full, settlement, 1e-6, "day %d", days)
		}
	}
}

func TestInterestForgivenessShrinksToZero(t *testing.T) {
	principal := 100_000_000.0
	rate := 0.23
	duration := 180

	assert.InDelta(t, Accrued(principal, rate, duration), InterestForgiveness(principal, rate, 0, duration), 1e-6)

	prev := InterestForgiveness(principal, rate, 0, duration)
	for days := 1; days <= duration; days++ {
		cur := InterestForgiveness(principal, rate, days, duration)
		assert.Less(t, cur, prev, "day %d", days)
		prev = cur
	}
	assert.InDelta(t, 0, InterestForgiveness(principal, rate, duration, duration), 1e-9)
}

func TestBuildSchedule(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	installments := BuildSchedule("loan-1", 60_000_000, 0.23, start, 90)

	require.Len(t, installments, InstallmentCount)

	total := 0.0
	for i, inst := range installments {
		assert.Equal(t, "loan-1", inst.LoanID)
		assert.Equal(t, i+1, inst.Seq)
		assert.Equal(t, InstallmentPending, inst.Status)
		assert.True(t, inst.DueAt.After(start))
		total += inst.AmountIRR
	}

	// Schedule covers principal plus full-term interest exactly.
	assert.InDelta(t, FullTermAmount(60_000_000, 0.23, 90), total, 1e-6)

	// Evenly spaced due dates, 15 days apart on a 90-day term.
	assert.Equal(t, start.AddDate(0, 0, 15), installments[0].DueAt)
	assert.Equal(t, start.AddDate(0, 0, 90), installments[5].DueAt)
}

func TestDaysElapsed(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, DaysElapsed(start, start))
	assert.Equal(t, 0, DaysElapsed(start, start.Add(-time.Hour)))
	assert.Equal(t, 1, DaysElapsed(start, start.Add(36*time.Hour)))
	assert.Equal(t, 365, DaysElapsed(start, start.AddDate(1, 0, 0)))
}
