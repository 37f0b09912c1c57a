package lending

import (
	"fmt"
	"time"
)

const daysPerYear = 365.0

// MaxBorrow returns the largest principal a holding can secure.
func MaxBorrow(holdingValueIRR, maxLTV float64) float64 {
	return holdingValueIRR * maxLTV
}

// LiquidationPrice returns the per-unit price at which the collateral
// stops covering the principal. Liquidation is triggered purely by
// principal, not by an LTV-derived threshold.
func LiquidationPrice(principalIRR, collateralQuantity float64) float64 {
	if collateralQuantity <= 0 {
		panic(fmt.Sprintf("lending: collateral quantity %.8f must be positive", collateralQuantity))
	}
	return principalIRR / collateralQuantity
}

// DailyInterest returns one day of simple interest on the principal.
func DailyInterest(principalIRR, annualRate float64) float64 {
	return principalIRR * annualRate / daysPerYear
}

// Accrued returns the simple interest accrued after daysElapsed days.
// Negative elapsed time accrues nothing.
func Accrued(principalIRR, annualRate float64, daysElapsed int) float64 {
	if daysElapsed < 0 {
		daysElapsed = 0
	}
	return DailyInterest(principalIRR, annualRate) * float64(daysElapsed)
}

// SettlementAmount is what closes the loan today: principal plus
// interest accrued to date, capped at the full contracted term.
func SettlementAmount(principalIRR, annualRate float64, daysElapsed, durationDays int) float64 {
	if daysElapsed > durationDays {
		daysElapsed = durationDays
	}
	return principalIRR + Accrued(principalIRR, annualRate, daysElapsed)
}

// FullTermAmount is principal plus interest over the whole term.
func FullTermAmount(principalIRR, annualRate float64, durationDays int) float64 {
	return principalIRR + Accrued(principalIRR, annualRate, durationDays)
}

// InterestForgiveness is the interest saved by settling today instead
// of carrying the loan to maturity. Zero at maturity.
func InterestForgiveness(principalIRR, annualRate float64, daysElapsed, durationDays int) float64 {
	return FullTermAmount(principalIRR, annualRate, durationDays) -
		SettlementAmount(principalIRR, annualRate, daysElapsed, durationDays)
}

// DaysElapsed returns whole days since the loan started, never negative.
func DaysElapsed(startedAt, now time.Time) int {
	if !now.After(startedAt) {
		return 0
	}
	return int(now.Sub(startedAt).Hours() / 24)
}

// BuildSchedule splits the full-term amount into six fixed installments
// with evenly spaced due dates. Note the base is principal plus term
// interest, not the bare principal: each slice carries its share of the
// interest, so a borrower who pays every installment owes nothing more
// at term. The last installment absorbs the rounding remainder so the
// schedule sums exactly to the full-term amount.
func BuildSchedule(loanID string, principalIRR, annualRate float64, startedAt time.Time, durationDays int) []Installment {
	total := FullTermAmount(principalIRR, annualRate, durationDays)
	slice := total / InstallmentCount
	step := time.Duration(durationDays) * 24 * time.Hour / InstallmentCount

	installments := make([]Installment, InstallmentCount)
	for i := 0; i < InstallmentCount; i++ {
		amount := slice
		if i == InstallmentCount-1 {
			amount = total - slice*float64(InstallmentCount-1)
		}
		installments[i] = Installment{
			LoanID:    loanID,
			Seq:       i + 1,
			DueAt:     startedAt.Add(step * time.Duration(i+1)),
			AmountIRR: amount,
			Status:    InstallmentPending,
		}
	}
	return installments
}
