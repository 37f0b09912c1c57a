package simulation

import (
	"github.com/blumarkets/layers/internal/modules/registry"
	"github.com/blumarkets/layers/pkg/formulas"
)

// majorLiquidity is the registry liquidity above which an asset earns
// the liquidity tilt.
const majorLiquidity = 0.95

// computeWeights runs the factor engine for one day: inverse-volatility
// risk parity tilted by momentum, average correlation and liquidity,
// then clamped into [MinWeight, MaxWeight] and renormalized.
func computeWeights(reg *registry.Registry, s *Scenario, day int, cfg Config) map[string]float64 {
	lookback := max(cfg.VolWindow, max(cfg.MomWindow, cfg.CorrWindow))
	if day+1 < lookback {
		equal := make(map[string]float64, len(s.Assets))
		for _, id := range s.Assets {
			equal[id] = 1.0 / float64(len(s.Assets))
		}
		return equal
	}

	windows := make(map[string][]float64, len(s.Assets))
	returns := make(map[string][]float64, len(s.Assets))
	for _, id := range s.Assets {
		w := s.Prices[id][day+1-lookback : day+1]
		windows[id] = w
		returns[id] = formulas.Returns(w[len(w)-cfg.CorrWindow:])
	}

	raw := make(map[string]float64, len(s.Assets))
	for _, id := range s.Assets {
		w := windows[id]

		vol := formulas.AnnualizedVolatility(formulas.Returns(w))
		fRisk := 1 / (vol + 1e-6)

		fMom := 0.1
		if dist := formulas.DistanceFromSMA(w, cfg.MomWindow); dist != nil {
			if m := 1 + 0.3*(*dist); m > fMom {
				fMom = m
			}
		}

		// Average pairwise correlation, self included, so an asset
		// moving with everything else gets trimmed.
		var corrSum float64
		for _, other := range s.Assets {
			corrSum += formulas.Correlation(returns[id], returns[other])
		}
		fCorr := 1 - 0.2*(corrSum/float64(len(s.Assets)))

		fLiq := 1.0
		if reg.MustGet(id).Liquidity >= majorLiquidity {
			fLiq = 1.1
		}

		raw[id] = fRisk * fMom * fCorr * fLiq
	}

	return clampAndNormalize(raw, cfg.MinWeight, cfg.MaxWeight)
}

// clampAndNormalize bounds each weight and renormalizes. Clamping
// breaks the sum, so it iterates a few times before the final
// normalization.
func clampAndNormalize(raw map[string]float64, lo, hi float64) map[string]float64 {
	w := make(map[string]float64, len(raw))
	var total float64
	for _, v := range raw {
		total += v
	}
	for k, v := range raw {
		w[k] = v / total
	}

	for i := 0; i < 3; i++ {
		total = 0
		for _, v := range w {
			total += v
		}
		for k, v := range w {
			c := v / total
			if c < lo {
				c = lo
			}
			if c > hi {
				c = hi
			}
			w[k] = c
		}
	}

	total = 0
	for _, v := range w {
		total += v
	}
	for k, v := range w {
		w[k] = v / total
	}
	return w
}
