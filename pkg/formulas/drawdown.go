package formulas

// DrawdownMetrics describes how far a value series sits below its peak.
type DrawdownMetrics struct {
	MaxDrawdown     float64 `json:"max_drawdown"`     // worst peak-to-trough loss, positive (0.25 = 25%)
	CurrentDrawdown float64 `json:"current_drawdown"` // drop from peak at the last observation
	DaysInDrawdown  int     `json:"days_in_drawdown"` // observations since the peak
	PeakValue       float64 `json:"peak_value"`
	CurrentValue    float64 `json:"current_value"`
}

// MaxDrawdown calculates the maximum peak-to-trough loss of a value
// series as a positive fraction. Nil when the series is too short.
func MaxDrawdown(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}
	maxDD := 0.0
	peak := values[0]
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return &maxDD
}

// Drawdown calculates the full drawdown picture of a value series.
func Drawdown(values []float64) *DrawdownMetrics {
	if len(values) < 2 {
		return nil
	}

	maxDD := 0.0
	peak := values[0]
	peakIndex := 0
	current := values[len(values)-1]

	for i, v := range values {
		if v > peak {
			peak = v
			peakIndex = i
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}

	currentDD := 0.0
	if peak > 0 {
		currentDD = (peak - current) / peak
	}

	return &DrawdownMetrics{
		MaxDrawdown:     maxDD,
		CurrentDrawdown: currentDD,
		DaysInDrawdown:  len(values) - 1 - peakIndex,
		PeakValue:       peak,
		CurrentValue:    current,
	}
}
