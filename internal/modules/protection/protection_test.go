package protection

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blumarkets/layers/internal/database"
	"github.com/blumarkets/layers/internal/domain"
	"github.com/blumarkets/layers/internal/events"
	"github.com/blumarkets/layers/internal/modules/ledger"
	"github.com/blumarkets/layers/internal/modules/portfolio"
	"github.com/blumarkets/layers/internal/modules/registry"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func freshQuote(assetID string, coverage float64, days int) Quote {
	return Quote{
		ID:           "q-1",
		AssetID:      assetID,
		Coverage:     coverage,
		DurationDays: days,
		PremiumIRR:   5_000_000,
		QuotedAt:     testNow.Add(-time.Minute),
	}
}

func TestValidate(t *testing.T) {
	v := NewValidator(registry.New())
	holdingValue := 350_000_000.0

	ok := v.Validate(PurchaseRequest{AssetID: "BTC", Coverage: 0.5, DurationDays: 90},
		holdingValue, freshQuote("BTC", 0.5, 90), testNow)
	assert.True(t, ok.OK)

	tests := []struct {
		name  string
		req   PurchaseRequest
		value float64
		quote Quote
	}{
		{"unknown asset", PurchaseRequest{AssetID: "DOGE", Coverage: 0.5, DurationDays: 90}, holdingValue, freshQuote("DOGE", 0.5, 90)},
		{"ineligible asset", PurchaseRequest{AssetID: "BNB", Coverage: 0.5, DurationDays: 90}, holdingValue, freshQuote("BNB", 0.5, 90)},
		{"coverage too low", PurchaseRequest{AssetID: "BTC", Coverage: 0.05, DurationDays: 90}, holdingValue, freshQuote("BTC", 0.05, 90)},
		{"coverage too high", PurchaseRequest{AssetID: "BTC", Coverage: 1.5, DurationDays: 90}, holdingValue, freshQuote("BTC", 1.5, 90)},
		{"bad duration", PurchaseRequest{AssetID: "BTC", Coverage: 0.5, DurationDays: 45}, holdingValue, freshQuote("BTC", 0.5, 45)},
		{"no holding", PurchaseRequest{AssetID: "BTC", Coverage: 0.5, DurationDays: 90}, 0, freshQuote("BTC", 0.5, 90)},
		{"quote mismatch", PurchaseRequest{AssetID: "BTC", Coverage: 0.5, DurationDays: 90}, holdingValue, freshQuote("ETH", 0.5, 90)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vr := v.Validate(tt.req, tt.value, tt.quote, testNow)
			assert.False(t, vr.OK)
		})
	}
}

func TestValidateRejectsStaleQuote(t *testing.T) {
	v := NewValidator(registry.New())
	stale := freshQuote("BTC", 0.5, 90)
	stale.QuotedAt = testNow.Add(-QuoteTTL - time.Second)

	vr := v.Validate(PurchaseRequest{AssetID: "BTC", Coverage: 0.5, DurationDays: 90},
		350_000_000, stale, testNow)
	assert.False(t, vr.OK)
}

func TestDerive(t *testing.T) {
	terms := Derive(350_000_000, 0.5, 350_000_000)
	assert.InDelta(t, 175_000_000, terms.NotionalIRR, 1e-6)
	assert.InDelta(t, 350_000_000, terms.StrikeIRR, 1e-6)
}

func TestPayout(t *testing.T) {
	// 20% drop below strike pays 20% of the notional.
	assert.InDelta(t, 35_000_000, Payout(175_000_000, 100, 80), 1e-6)
	assert.Equal(t, 0.0, Payout(175_000_000, 100, 100))
	assert.Equal(t, 0.0, Payout(175_000_000, 100, 120))
}

func TestOfflineEstimateScalesWithVolAndDuration(t *testing.T) {
	base := OfflineEstimatePremium(100_000_000, 0.45, 90)
	assert.Greater(t, base, 0.0)
	assert.Greater(t, OfflineEstimatePremium(100_000_000, 0.90, 90), base)
	assert.Greater(t, OfflineEstimatePremium(100_000_000, 0.45, 180), base)
}

type fixture struct {
	service   *Service
	portfolio *portfolio.Repository
	contracts *Repository
	ledger    *ledger.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	log := zerolog.Nop()
	reg := registry.New()

	f := &fixture{
		portfolio: portfolio.NewRepository(db.Conn(), log),
		contracts: NewRepository(db.Conn(), log),
		ledger:    ledger.NewRepository(db.Conn(), log),
	}
	f.service = NewService(reg, portfolio.NewCalculator(reg), f.portfolio, f.contracts,
		f.ledger, events.NewManager(events.NewBus(), log), log)

	require.NoError(t, f.portfolio.SaveState(domain.PortfolioState{
		Cash: 500_000_000,
		Holdings: []domain.Holding{
			{AssetID: "BTC", Quantity: 1, Layer: domain.LayerGrowth},
			{AssetID: "SOL", Quantity: 1, Layer: domain.LayerUpside},
		},
	}))
	require.NoError(t, f.portfolio.SaveTarget(domain.TargetAllocation{Foundation: 0.50, Growth: 0.35, Upside: 0.15}, 6))
	return f
}

func testMarket() domain.MarketData {
	return domain.MarketData{
		Prices: map[string]float64{"BTC": 700, "SOL": 300},
		FxRate: 500_000,
		AsOf:   testNow,
	}
}

func TestPurchaseLifecycle(t *testing.T) {
	f := newFixture(t)
	req := PurchaseRequest{AssetID: "BTC", Coverage: 0.5, DurationDays: 90, QuoteID: "q-1"}

	contract, vr, err := f.service.Purchase(req, freshQuote("BTC", 0.5, 90), "prot-1", testMarket(), testNow)
	require.NoError(t, err)
	require.True(t, vr.OK)
	require.NotNil(t, contract)

	// Half of the 350M BTC position, struck at spot.
	assert.InDelta(t, 175_000_000, contract.NotionalIRR, 1e-3)
	assert.InDelta(t, 350_000_000, contract.StrikeIRR, 1e-3)
	assert.Equal(t, StatusActive, contract.Status)
	assert.Equal(t, testNow.AddDate(0, 0, 90), contract.ExpiresAt)

	// Premium debited.
	state, err := f.portfolio.LoadState()
	require.NoError(t, err)
	assert.InDelta(t, 495_000_000, state.Cash, 1e-6)

	entry, err := f.ledger.GetByIdempotencyKey("prot-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, domain.ActionProtect, entry.Kind)
}

func TestPurchaseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	req := PurchaseRequest{AssetID: "BTC", Coverage: 0.5, DurationDays: 90, QuoteID: "q-1"}

	first, vr, err := f.service.Purchase(req, freshQuote("BTC", 0.5, 90), "prot-dup", testMarket(), testNow)
	require.NoError(t, err)
	require.True(t, vr.OK)

	second, vr, err := f.service.Purchase(req, freshQuote("BTC", 0.5, 90), "prot-dup", testMarket(), testNow)
	require.NoError(t, err)
	require.True(t, vr.OK)
	assert.Equal(t, first.ID, second.ID)

	state, err := f.portfolio.LoadState()
	require.NoError(t, err)
	assert.InDelta(t, 495_000_000, state.Cash, 1e-6) // debited once
}

func TestExercisePaysOutOnCrash(t *testing.T) {
	f := newFixture(t)
	req := PurchaseRequest{AssetID: "BTC", Coverage: 0.5, DurationDays: 90, QuoteID: "q-1"}

	contract, vr, err := f.service.Purchase(req, freshQuote("BTC", 0.5, 90), "prot-x", testMarket(), testNow)
	require.NoError(t, err)
	require.True(t, vr.OK)

	// No payout at or above strike.
	_, vr, err = f.service.Exercise(contract.ID, testMarket(), testNow.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.False(t, vr.OK)

	// 30% crash: payout = 30% of notional.
	crashed := testMarket()
	crashed.Prices["BTC"] = 490
	payout, vr, err := f.service.Exercise(contract.ID, crashed, testNow.AddDate(0, 0, 10))
	require.NoError(t, err)
	require.True(t, vr.OK)
	assert.InDelta(t, 175_000_000*0.30, payout, 1e-3)

	updated, err := f.contracts.Get(contract.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExercised, updated.Status)

	// Exercising twice fails.
	_, vr, err = f.service.Exercise(contract.ID, crashed, testNow.AddDate(0, 0, 11))
	require.NoError(t, err)
	assert.False(t, vr.OK)
}

func TestExpireDue(t *testing.T) {
	f := newFixture(t)
	req := PurchaseRequest{AssetID: "BTC", Coverage: 0.5, DurationDays: 30, QuoteID: "q-1"}

	contract, vr, err := f.service.Purchase(req, freshQuote("BTC", 0.5, 30), "prot-e", testMarket(), testNow)
	require.NoError(t, err)
	require.True(t, vr.OK)

	n, err := f.service.ExpireDue(testNow.AddDate(0, 0, 15))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = f.service.ExpireDue(testNow.AddDate(0, 0, 31))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	updated, err := f.contracts.Get(contract.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, updated.Status)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	req := PurchaseRequest{AssetID: "SOL", Coverage: 0.25, DurationDays: 30, QuoteID: "q-1"}

	contract, vr, err := f.service.Purchase(req, freshQuote("SOL", 0.25, 30), "prot-c", testMarket(), testNow)
	require.NoError(t, err)
	require.True(t, vr.OK)

	vr, err = f.service.Cancel(contract.ID)
	require.NoError(t, err)
	assert.True(t, vr.OK)

	vr, err = f.service.Cancel(contract.ID)
	require.NoError(t, err)
	assert.False(t, vr.OK)
}
