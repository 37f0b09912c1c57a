package simulation

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/blumarkets/layers/internal/events"
	"github.com/blumarkets/layers/internal/modules/registry"
	"github.com/blumarkets/layers/pkg/formulas"
)

// Engine runs stress-test scenarios.
type Engine struct {
	registry *registry.Registry
	eventMgr *events.Manager
	log      zerolog.Logger
}

// NewEngine creates a simulation engine.
func NewEngine(reg *registry.Registry, eventMgr *events.Manager, log zerolog.Logger) *Engine {
	return &Engine{
		registry: reg,
		eventMgr: eventMgr,
		log:      log.With().Str("service", "simulation").Logger(),
	}
}

// Run generates the scenario and walks it day by day: value the book,
// recompute target weights, rebalance when drift crosses a threshold,
// and charge fee plus slippage on every executed leg. The benchmark
// buys equal weights on the start day and never trades again.
func (e *Engine) Run(cfg Config) (*Report, error) {
	if err := validate(cfg, e.registry); err != nil {
		return nil, err
	}

	e.eventMgr.Emit(events.SimulationStarted, "simulation", map[string]interface{}{
		"scenario": cfg.Scenario,
		"days":     cfg.Days,
		"assets":   len(cfg.Assets),
	})

	s := GenerateScenario(e.registry, cfg)

	cash := cfg.InitialCapitalIRR
	holdings := make(map[string]float64, len(cfg.Assets))
	feesPaid := 0.0
	rebalances := 0

	// Initial deployment at the warmup day.
	start := cfg.WarmupDay
	weights := computeWeights(e.registry, s, start, cfg)
	for id, w := range weights {
		alloc := cash * w
		cost := alloc * (cfg.BaseFee + cfg.BaseSlippage)
		feesPaid += cost
		holdings[id] = (alloc - cost) / s.Prices[id][start]
	}
	cash = 0

	// Equal-weight buy-and-hold benchmark, funded on the same day.
	benchShares := make(map[string]float64, len(cfg.Assets))
	for _, id := range cfg.Assets {
		benchShares[id] = (cfg.InitialCapitalIRR / float64(len(cfg.Assets))) / s.Prices[id][start]
	}

	history := make([]float64, 0, cfg.Days-start)
	benchHistory := make([]float64, 0, cfg.Days-start)
	lastRebalance := start

	for day := start; day < cfg.Days; day++ {
		portValue := cash
		for id, qty := range holdings {
			portValue += qty * s.Prices[id][day]
		}
		history = append(history, portValue)

		benchValue := 0.0
		for id, qty := range benchShares {
			benchValue += qty * s.Prices[id][day]
		}
		benchHistory = append(benchHistory, benchValue)

		// Slippage doubles when short-term volatility runs hot.
		slippage := cfg.BaseSlippage
		if recentVolatility(s, day) > cfg.HighVolThreshold {
			slippage *= 2
		}

		targets := computeWeights(e.registry, s, day, cfg)
		maxDrift := 0.0
		for _, id := range cfg.Assets {
			current := holdings[id] * s.Prices[id][day] / portValue
			if d := abs(current - targets[id]); d > maxDrift {
				maxDrift = d
			}
		}

		trigger := maxDrift > cfg.EmergencyThreshold ||
			(maxDrift > cfg.NormalThreshold && day-lastRebalance >= cfg.MinSpacingDays)
		if !trigger {
			continue
		}

		// Sell overweight positions first, then spend the proceeds on
		// underweight ones. Friction applies to both legs.
		for _, id := range cfg.Assets {
			price := s.Prices[id][day]
			targetAmt := portValue * targets[id]
			currentAmt := holdings[id] * price
			if currentAmt <= targetAmt {
				continue
			}
			sellAmt := currentAmt - targetAmt
			friction := sellAmt * (cfg.BaseFee + slippage)
			feesPaid += friction
			holdings[id] -= sellAmt / price
			cash += sellAmt - friction
		}
		for _, id := range cfg.Assets {
			if cash <= 0 {
				break
			}
			price := s.Prices[id][day]
			targetAmt := portValue * targets[id]
			currentAmt := holdings[id] * price
			if currentAmt >= targetAmt {
				continue
			}
			buyAmt := min(cash, targetAmt-currentAmt)
			friction := buyAmt * (cfg.BaseFee + slippage)
			feesPaid += friction
			holdings[id] += (buyAmt - friction) / price
			cash -= buyAmt
		}

		lastRebalance = day
		rebalances++
	}

	report := &Report{
		Scenario:        cfg.Scenario,
		Days:            cfg.Days,
		StartDay:        start,
		NetReturn:       formulas.CumulativeReturn(history),
		BenchmarkReturn: formulas.CumulativeReturn(benchHistory),
		SharpeRatio:     formulas.SharpeFromValues(history, cfg.RiskFreeRate),
		BenchmarkSharpe: formulas.SharpeFromValues(benchHistory, cfg.RiskFreeRate),
		FeesPaidIRR:     feesPaid,
		Rebalances:      rebalances,
		FinalValueIRR:   history[len(history)-1],
		History:         history,
		BenchmarkHistory: benchHistory,
	}
	report.Alpha = report.NetReturn - report.BenchmarkReturn
	if dd := formulas.MaxDrawdown(history); dd != nil {
		report.MaxDrawdown = *dd
	}
	if dd := formulas.MaxDrawdown(benchHistory); dd != nil {
		report.BenchmarkMaxDrawdown = *dd
	}

	e.eventMgr.EmitTyped(events.SimulationDone, "simulation", &events.SimulationDoneData{
		Scenario:    cfg.Scenario,
		Days:        cfg.Days,
		NetReturn:   report.NetReturn,
		MaxDrawdown: report.MaxDrawdown,
		FeesIRR:     report.FeesPaidIRR,
	})

	e.log.Info().
		Str("scenario", cfg.Scenario).
		Float64("net_return", report.NetReturn).
		Float64("benchmark_return", report.BenchmarkReturn).
		Float64("max_drawdown", report.MaxDrawdown).
		Float64("fees_irr", report.FeesPaidIRR).
		Int("rebalances", report.Rebalances).
		Msg("Stress test finished")

	return report, nil
}

func validate(cfg Config, reg *registry.Registry) error {
	if len(cfg.Assets) == 0 {
		return fmt.Errorf("simulation needs at least one asset")
	}
	for _, id := range cfg.Assets {
		if _, ok := reg.Get(id); !ok {
			return fmt.Errorf("unknown asset %q in simulation config", id)
		}
		if id == registry.FixedIncomeAssetID {
			return fmt.Errorf("fixed income has no price path to simulate")
		}
	}
	lookback := max(cfg.VolWindow, max(cfg.MomWindow, cfg.CorrWindow))
	if cfg.WarmupDay < lookback {
		return fmt.Errorf("warmup day %d is inside the %d-day lookback", cfg.WarmupDay, lookback)
	}
	if cfg.Days <= cfg.WarmupDay {
		return fmt.Errorf("scenario of %d days ends before warmup day %d", cfg.Days, cfg.WarmupDay)
	}
	if cfg.InitialCapitalIRR <= 0 {
		return fmt.Errorf("initial capital must be positive")
	}
	return nil
}

// recentVolatility is the average per-asset standard deviation of the
// last few daily returns, the stress signal for dynamic slippage.
func recentVolatility(s *Scenario, day int) float64 {
	const window = 5
	if day < window {
		return 0
	}
	var sum float64
	for _, id := range s.Assets {
		sum += formulas.StdDev(formulas.Returns(s.Prices[id][day-window : day]))
	}
	return sum / float64(len(s.Assets))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
