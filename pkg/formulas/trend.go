package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// SMA calculates the simple moving average over the last length
// observations. Nil when the series is shorter than the window.
func SMA(closes []float64, length int) *float64 {
	if length <= 0 || len(closes) < length {
		return nil
	}
	sma := talib.Sma(closes, length)
	if len(sma) > 0 && !math.IsNaN(sma[len(sma)-1]) {
		v := sma[len(sma)-1]
		return &v
	}
	return nil
}

// EMA calculates the exponential moving average. Falls back to a plain
// mean when the series is shorter than the window.
func EMA(closes []float64, length int) *float64 {
	if length <= 0 || len(closes) == 0 {
		return nil
	}
	if len(closes) < length {
		v := Mean(closes)
		return &v
	}
	ema := talib.Ema(closes, length)
	if len(ema) > 0 && !math.IsNaN(ema[len(ema)-1]) {
		v := ema[len(ema)-1]
		return &v
	}
	v := Mean(closes[len(closes)-length:])
	return &v
}

// DistanceFromSMA is the relative position of the last close against
// its moving average: positive above, negative below.
//
//	distance = close / SMA - 1
func DistanceFromSMA(closes []float64, length int) *float64 {
	sma := SMA(closes, length)
	if sma == nil || *sma == 0 {
		return nil
	}
	d := closes[len(closes)-1]/(*sma) - 1
	return &d
}
