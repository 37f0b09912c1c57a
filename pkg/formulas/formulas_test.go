package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReturns(t *testing.T) {
	tests := []struct {
		name     string
		prices   []float64
		expected []float64
	}{
		{"empty", []float64{}, []float64{}},
		{"single price", []float64{100}, []float64{}},
		{"up then down", []float64{100, 110, 99}, []float64{0.10, -0.10}},
		{"zero price guarded", []float64{0, 100}, []float64{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Returns(tt.prices)
			require.Len(t, got, len(tt.expected))
			for i := range got {
				assert.InDelta(t, tt.expected[i], got[i], 1e-9)
			}
		})
	}
}

func TestAnnualizedVolatility(t *testing.T) {
	assert.Equal(t, 0.0, AnnualizedVolatility(nil))
	assert.Equal(t, 0.0, AnnualizedVolatility([]float64{0.01}))

	// Alternating +1%/-1% daily: std is a hair above 1%, annualized by sqrt(365).
	returns := make([]float64, 100)
	for i := range returns {
		if i%2 == 0 {
			returns[i] = 0.01
		} else {
			returns[i] = -0.01
		}
	}
	vol := AnnualizedVolatility(returns)
	assert.InDelta(t, 0.01*math.Sqrt(365), vol, 0.005)
}

func TestAnnualizedReturn(t *testing.T) {
	assert.Equal(t, 0.0, AnnualizedReturn(nil))

	// Two periods stay un-annualized.
	assert.InDelta(t, 0.0302, AnnualizedReturn([]float64{0.01, 0.02}), 1e-4)

	// A full year of 0.1% daily compounds to (1.001)^365 - 1.
	year := make([]float64, 365)
	for i := range year {
		year[i] = 0.001
	}
	assert.InDelta(t, math.Pow(1.001, 365)-1, AnnualizedReturn(year), 1e-6)
}

func TestCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 1.0, Correlation(x, x), 1e-9)

	inverse := []float64{5, 4, 3, 2, 1}
	assert.InDelta(t, -1.0, Correlation(x, inverse), 1e-9)

	assert.Equal(t, 0.0, Correlation(x, []float64{1, 2}))
}

func TestSharpeRatio(t *testing.T) {
	assert.Nil(t, SharpeRatio([]float64{0.01}, 0.20))
	assert.Nil(t, SharpeRatio([]float64{0.01, 0.01, 0.01}, 0.20)) // flat series

	// 0.2% mean daily, some spread, against the 20% risk-free rate.
	returns := []float64{0.004, 0.0, 0.003, 0.001, 0.002}
	got := SharpeRatio(returns, 0.20)
	require.NotNil(t, got)

	mean := Mean(returns)
	std := StdDev(returns)
	want := (mean*365 - 0.20) / (std * math.Sqrt(365))
	assert.InDelta(t, want, *got, 1e-9)
}

func TestSharpeFromValues(t *testing.T) {
	values := []float64{100, 101, 103, 102, 105, 104}
	fromValues := SharpeFromValues(values, 0.20)
	fromReturns := SharpeRatio(Returns(values), 0.20)
	require.NotNil(t, fromValues)
	require.NotNil(t, fromReturns)
	assert.InDelta(t, *fromReturns, *fromValues, 1e-12)
}

func TestSortinoRatio(t *testing.T) {
	// All returns above the periodic risk-free rate: no downside.
	assert.Nil(t, SortinoRatio([]float64{0.01, 0.02, 0.03}, 0.20))

	got := SortinoRatio([]float64{0.01, -0.02, 0.03, -0.01}, 0.20)
	require.NotNil(t, got)
	assert.NotZero(t, *got)
}

func TestMaxDrawdown(t *testing.T) {
	assert.Nil(t, MaxDrawdown([]float64{100}))

	// Peak 120, trough 84: 30% drawdown.
	dd := MaxDrawdown([]float64{100, 120, 84, 110})
	require.NotNil(t, dd)
	assert.InDelta(t, 0.30, *dd, 1e-9)

	// Monotonic rise never draws down.
	dd = MaxDrawdown([]float64{100, 110, 120})
	require.NotNil(t, dd)
	assert.Equal(t, 0.0, *dd)
}

func TestDrawdown(t *testing.T) {
	m := Drawdown([]float64{100, 120, 84, 90})
	require.NotNil(t, m)
	assert.InDelta(t, 0.30, m.MaxDrawdown, 1e-9)
	assert.InDelta(t, 0.25, m.CurrentDrawdown, 1e-9)
	assert.Equal(t, 2, m.DaysInDrawdown)
	assert.Equal(t, 120.0, m.PeakValue)
	assert.Equal(t, 90.0, m.CurrentValue)
}

func TestSMA(t *testing.T) {
	assert.Nil(t, SMA([]float64{1, 2}, 3))

	sma := SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.NotNil(t, sma)
	assert.InDelta(t, 4.0, *sma, 1e-9) // mean of the last 3
}

func TestEMA(t *testing.T) {
	// Short series falls back to a plain mean.
	ema := EMA([]float64{10, 20}, 5)
	require.NotNil(t, ema)
	assert.InDelta(t, 15.0, *ema, 1e-9)

	// A constant series has itself as EMA.
	flat := make([]float64, 50)
	for i := range flat {
		flat[i] = 42
	}
	ema = EMA(flat, 10)
	require.NotNil(t, ema)
	assert.InDelta(t, 42.0, *ema, 1e-9)
}

func TestDistanceFromSMA(t *testing.T) {
	// Last close 5 against SMA 4: 25% above.
	d := DistanceFromSMA([]float64{1, 2, 3, 4, 5}, 3)
	require.NotNil(t, d)
	assert.InDelta(t, 0.25, *d, 1e-9)

	assert.Nil(t, DistanceFromSMA([]float64{1, 2}, 3))
}

func TestCumulativeReturn(t *testing.T) {
	assert.Equal(t, 0.0, CumulativeReturn([]float64{100}))
	assert.InDelta(t, 0.10, CumulativeReturn([]float64{100, 90, 110}), 1e-9)
}
