// Package formulas provides the statistical primitives shared by the
// stress simulator and the risk surfaces: return series, volatility,
// correlation, drawdown and risk-adjusted performance.
//
// Crypto and metals venues trade every calendar day, so annualization
// uses 365 periods per year throughout.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// PeriodsPerYear is the annualization base for daily series.
const PeriodsPerYear = 365.0

// Mean calculates the arithmetic mean of a slice of float64 values.
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation.
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance.
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// Correlation calculates the Pearson correlation coefficient between
// two equal-length series. Zero on length mismatch.
func Correlation(x, y []float64) float64 {
	if len(x) == 0 || len(x) != len(y) {
		return 0
	}
	return stat.Correlation(x, y, nil)
}

// Covariance calculates the covariance between two equal-length series.
func Covariance(x, y []float64) float64 {
	if len(x) == 0 || len(x) != len(y) {
		return 0
	}
	return stat.Covariance(x, y, nil)
}

// Returns converts a price series to simple periodic returns.
// Returns[i] = (Price[i+1] - Price[i]) / Price[i]
func Returns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}
	out := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			out[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}
	return out
}

// AnnualizedVolatility annualizes the standard deviation of daily
// returns over a 365-day year.
func AnnualizedVolatility(dailyReturns []float64) float64 {
	return StdDev(dailyReturns) * math.Sqrt(PeriodsPerYear)
}

// AnnualizedReturn compounds daily returns into an annual rate.
// Series shorter than 3 periods return the plain cumulative return to
// avoid extreme annualization.
func AnnualizedReturn(dailyReturns []float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}
	cumulative := 1.0
	for _, r := range dailyReturns {
		cumulative *= 1 + r
	}
	n := float64(len(dailyReturns))
	if n < 3 {
		return cumulative - 1
	}
	return math.Pow(cumulative, PeriodsPerYear/n) - 1
}

// CumulativeReturn is the total return of a value series from its
// first to its last observation.
func CumulativeReturn(values []float64) float64 {
	if len(values) < 2 || values[0] == 0 {
		return 0
	}
	return values[len(values)-1]/values[0] - 1
}
