package simulation

import (
	"math"
	"math/rand"

	"github.com/blumarkets/layers/internal/modules/registry"
)

// stableVolatility marks assets whose price barely moves; they keep
// their drift and volatility through the crash.
const stableVolatility = 0.01

// GenerateScenario builds deterministic daily price paths for the
// configured assets: a seeded random walk with a bull regime up to
// CrashDay and a crash regime after it. Risk assets fall harder the
// more volatile they are, and their volatility expands by half during
// the crash. Stables and metals keep a small flat drift throughout.
func GenerateScenario(reg *registry.Registry, cfg Config) *Scenario {
	rng := rand.New(rand.NewSource(cfg.Seed))

	s := &Scenario{
		Assets: append([]string(nil), cfg.Assets...),
		Prices: make(map[string][]float64, len(cfg.Assets)),
	}

	for _, id := range s.Assets {
		asset := reg.MustGet(id)
		baseVol := asset.Volatility / math.Sqrt(365)

		prices := make([]float64, cfg.Days)
		price := 100.0
		for day := 0; day < cfg.Days; day++ {
			crash := day >= cfg.CrashDay
			drift := dailyDrift(asset, crash)

			vol := baseVol
			if crash && asset.Volatility > stableVolatility {
				vol *= 1.5
			}

			r := drift + vol*rng.NormFloat64()
			price *= 1 + r
			prices[day] = price
		}
		s.Prices[id] = prices
	}

	return s
}

// dailyDrift is the per-regime expected daily return of an asset.
func dailyDrift(asset registry.AssetConfig, crash bool) float64 {
	switch {
	case asset.Volatility <= stableVolatility:
		// Stablecoin-like: tiny positive carry in either regime.
		return 0.0001
	case asset.Volatility <= 0.25:
		// Metals and low-vol ETFs hold their ground.
		return 0.0002
	case crash:
		// The crash bites harder the more volatile the asset:
		// BTC at 0.45 vol loses about 0.3% a day, SOL at 0.75 about 0.5%.
		return -0.0065 * asset.Volatility
	default:
		return 0.001 // bull run
	}
}
