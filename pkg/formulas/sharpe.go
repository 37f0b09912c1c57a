package formulas

import (
	"math"
)

// SharpeRatio calculates the annualized Sharpe ratio from daily
// returns against an annual risk-free rate. Nil when the series is too
// short or flat.
//
//	Sharpe = (mean(r) * 365 - rf) / (std(r) * sqrt(365))
func SharpeRatio(dailyReturns []float64, riskFreeRate float64) *float64 {
	if len(dailyReturns) < 2 {
		return nil
	}
	std := StdDev(dailyReturns)
	if std == 0 {
		return nil
	}
	excess := Mean(dailyReturns)*PeriodsPerYear - riskFreeRate
	sharpe := excess / (std * math.Sqrt(PeriodsPerYear))
	return &sharpe
}

// SharpeFromValues calculates the Sharpe ratio directly from a daily
// portfolio value series.
func SharpeFromValues(values []float64, riskFreeRate float64) *float64 {
	if len(values) < 3 {
		return nil
	}
	return SharpeRatio(Returns(values), riskFreeRate)
}

// SortinoRatio is the downside-deviation variant of Sharpe: only
// returns below the periodic risk-free rate count as risk. Nil when
// there is no downside in the series.
func SortinoRatio(dailyReturns []float64, riskFreeRate float64) *float64 {
	if len(dailyReturns) < 2 {
		return nil
	}
	periodicRf := riskFreeRate / PeriodsPerYear

	var downsideSquaredSum float64
	downsideCount := 0
	for _, r := range dailyReturns {
		if r < periodicRf {
			d := r - periodicRf
			downsideSquaredSum += d * d
			downsideCount++
		}
	}
	if downsideCount == 0 {
		return nil
	}
	downside := math.Sqrt(downsideSquaredSum / float64(downsideCount))
	if downside == 0 {
		return nil
	}
	excess := Mean(dailyReturns)*PeriodsPerYear - riskFreeRate
	sortino := excess / (downside * math.Sqrt(PeriodsPerYear))
	return &sortino
}
