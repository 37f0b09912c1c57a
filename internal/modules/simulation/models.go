// Package simulation runs the layered allocation model through a
// synthetic crash scenario with realistic trading friction and reports
// how it holds up against an equal-weight buy-and-hold benchmark.
//
// Everything here is offline analytics: the simulator never touches the
// portfolio database or the live feed.
package simulation

// Config drives one stress-test run.
type Config struct {
	Scenario string `json:"scenario"`

	Days      int   `json:"days"`       // total scenario length
	WarmupDay int   `json:"warmup_day"` // first day with enough history to trade
	CrashDay  int   `json:"crash_day"`  // regime flips from bull to crash
	Seed      int64 `json:"seed"`

	// Factor engine lookbacks.
	VolWindow  int `json:"vol_window"`
	MomWindow  int `json:"mom_window"`
	CorrWindow int `json:"corr_window"`

	// Per-asset weight bounds after clamping.
	MinWeight float64 `json:"min_weight"`
	MaxWeight float64 `json:"max_weight"`

	// Rebalance triggers on the largest per-asset weight gap.
	NormalThreshold    float64 `json:"normal_threshold"`
	EmergencyThreshold float64 `json:"emergency_threshold"`
	MinSpacingDays     int     `json:"min_spacing_days"`

	InitialCapitalIRR float64 `json:"initial_capital_irr"`

	// Friction. Slippage doubles when recent volatility runs hot.
	BaseFee          float64 `json:"base_fee"`
	BaseSlippage     float64 `json:"base_slippage"`
	HighVolThreshold float64 `json:"high_vol_threshold"`

	RiskFreeRate float64 `json:"risk_free_rate"`

	// Assets drawn from the registry; volatility and liquidity come
	// from their configs.
	Assets []string `json:"assets"`
}

// DefaultConfig is the canonical crash stress test: one year of daily
// data, bull run for 100 days, then a drawn-out crash with expanding
// volatility.
func DefaultConfig() Config {
	return Config{
		Scenario:           "crash",
		Days:               365,
		WarmupDay:          60,
		CrashDay:           100,
		Seed:               42,
		VolWindow:          30,
		MomWindow:          50,
		CorrWindow:         60,
		MinWeight:          0.05,
		MaxWeight:          0.40,
		NormalThreshold:    0.05,
		EmergencyThreshold: 0.10,
		MinSpacingDays:     1,
		InitialCapitalIRR:  1_000_000_000,
		BaseFee:            0.003,
		BaseSlippage:       0.002,
		HighVolThreshold:   0.02,
		RiskFreeRate:       0.20,
		Assets:             []string{"USDT", "PAXG", "BTC", "ETH", "SOL"},
	}
}

// Scenario is a generated set of daily price paths.
type Scenario struct {
	Assets []string             `json:"assets"`
	Prices map[string][]float64 `json:"prices"` // per asset, one close per day
}

// Report compares the model run against the benchmark.
type Report struct {
	Scenario string `json:"scenario"`
	Days     int    `json:"days"`
	StartDay int    `json:"start_day"`

	NetReturn            float64  `json:"net_return"`
	BenchmarkReturn      float64  `json:"benchmark_return"`
	Alpha                float64  `json:"alpha"`
	MaxDrawdown          float64  `json:"max_drawdown"`
	BenchmarkMaxDrawdown float64  `json:"benchmark_max_drawdown"`
	SharpeRatio          *float64 `json:"sharpe_ratio,omitempty"`
	BenchmarkSharpe      *float64 `json:"benchmark_sharpe,omitempty"`

	FeesPaidIRR   float64 `json:"fees_paid_irr"`
	Rebalances    int     `json:"rebalances"`
	FinalValueIRR float64 `json:"final_value_irr"`

	History          []float64 `json:"history"`
	BenchmarkHistory []float64 `json:"benchmark_history"`
}
