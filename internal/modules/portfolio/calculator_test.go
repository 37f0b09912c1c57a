package portfolio

import (
	"testing"
	"time"

	"github.com/blumarkets/layers/internal/domain"
	"github.com/blumarkets/layers/internal/modules/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testMarket() domain.MarketData {
	return domain.MarketData{
		Prices: map[string]float64{
			"USDT": 1.0,
			"PAXG": 2500.0,
			"BTC":  60000.0,
			"ETH":  3000.0,
			"QQQ":  450.0,
			"SOL":  150.0,
		},
		FxRate: 500_000, // IRR per USD
		AsOf:   testNow,
	}
}

func TestSnapshotAllCash(t *testing.T) {
	calc := NewCalculator(registry.New())

	snap := calc.Snapshot(domain.PortfolioState{Cash: 1_000_000_000}, testMarket(), testNow)

	assert.Equal(t, 1_000_000_000.0, snap.TotalValue)
	assert.Equal(t, 1.0, snap.Pct(domain.LayerFoundation))
	assert.Equal(t, 0.0, snap.Pct(domain.LayerGrowth))
	assert.Equal(t, 0.0, snap.Pct(domain.LayerUpside))
}

func TestSnapshotEmptyPortfolioHasZeroPercentages(t *testing.T) {
	calc := NewCalculator(registry.New())

	snap := calc.Snapshot(domain.PortfolioState{}, testMarket(), testNow)

	assert.Equal(t, 0.0, snap.TotalValue)
	for _, l := range domain.Layers {
		pct := snap.Pct(l)
		assert.False(t, pct != pct, "NaN percentage for %s", l) // NaN != NaN
		assert.Equal(t, 0.0, pct)
	}
}

func TestSnapshotLayerAggregation(t *testing.T) {
	calc := NewCalculator(registry.New())

	state := domain.PortfolioState{
		Cash: 500_000_000,
		Holdings: []domain.Holding{
			{AssetID: "BTC", Quantity: 0.01, Layer: domain.LayerGrowth},
			{AssetID: "SOL", Quantity: 1, Layer: domain.LayerUpside},
		},
	}

	snap := calc.Snapshot(state, testMarket(), testNow)

	btcValue := 0.01 * 60000.0 * 500_000  // 300,000,000
	solValue := 1.0 * 150.0 * 500_000     // 75,000,000
	total := 500_000_000.0 + btcValue + solValue

	assert.InDelta(t, btcValue, snap.AssetValues["BTC"], 1)
	assert.InDelta(t, total, snap.TotalValue, 1)
	assert.InDelta(t, 500_000_000.0/total, snap.Pct(domain.LayerFoundation), 1e-9)
	assert.InDelta(t, btcValue/total, snap.Pct(domain.LayerGrowth), 1e-9)
	assert.InDelta(t, solValue/total, snap.Pct(domain.LayerUpside), 1e-9)
}

func TestFixedIncomeAccrualOneYear(t *testing.T) {
	calc := NewCalculator(registry.New())

	purchased := testNow.AddDate(0, 0, -365)
	state := domain.PortfolioState{
		Holdings: []domain.Holding{
			{AssetID: registry.FixedIncomeAssetID, Quantity: 1, Layer: domain.LayerFoundation, PurchasedAt: &purchased},
		},
	}

	snap := calc.Snapshot(state, testMarket(), testNow)

	// Principal 10,000,000 IRR at 30% for 365 days accrues ~3,000,000 IRR.
	assert.InDelta(t, 13_000_000, snap.AssetValues[registry.FixedIncomeAssetID], 1_000)
}

func TestFixedIncomeAccrualIsContinuous(t *testing.T) {
	principal := 10_000_000.0
	purchased := testNow.Add(-36 * time.Hour) // 1.5 days

	accrued := FixedIncomeAccrued(principal, 0.30, &purchased, testNow)

	expected := principal * 0.30 * (1.5 / 365.0)
	assert.InDelta(t, expected, accrued, 1e-6)

	// Display flooring is separate from the dollar computation.
	assert.Equal(t, 1, DaysHeld(&purchased, testNow))
}

func TestFixedIncomeWithoutPurchaseTimestamp(t *testing.T) {
	assert.Equal(t, 0.0, FixedIncomeAccrued(10_000_000, 0.30, nil, testNow))
}

func TestSnapshotDoesNotMutateInput(t *testing.T) {
	calc := NewCalculator(registry.New())

	state := domain.PortfolioState{
		Cash:     100,
		Holdings: []domain.Holding{{AssetID: "BTC", Quantity: 1, Layer: domain.LayerGrowth}},
	}
	before := state.Clone()

	_ = calc.Snapshot(state, testMarket(), testNow)

	require.Equal(t, before, state)
}

func TestSnapshotPanicsOnCorruptState(t *testing.T) {
	calc := NewCalculator(registry.New())
	market := testMarket()

	assert.Panics(t, func() {
		calc.Snapshot(domain.PortfolioState{
			Holdings: []domain.Holding{{AssetID: "DOGE", Quantity: 1}},
		}, market, testNow)
	}, "unknown asset")

	assert.Panics(t, func() {
		calc.Snapshot(domain.PortfolioState{
			Holdings: []domain.Holding{{AssetID: "BTC", Quantity: -1, Layer: domain.LayerGrowth}},
		}, market, testNow)
	}, "negative quantity")

	assert.Panics(t, func() {
		calc.Snapshot(domain.PortfolioState{
			Holdings: []domain.Holding{{AssetID: "XRP", Quantity: 1, Layer: domain.LayerUpside}},
		}, market, testNow)
	}, "missing price")
}
