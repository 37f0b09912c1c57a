package trading

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blumarkets/layers/internal/database"
	"github.com/blumarkets/layers/internal/domain"
	"github.com/blumarkets/layers/internal/events"
	"github.com/blumarkets/layers/internal/modules/boundary"
	"github.com/blumarkets/layers/internal/modules/ledger"
	"github.com/blumarkets/layers/internal/modules/portfolio"
	"github.com/blumarkets/layers/internal/modules/registry"
)

type serviceFixture struct {
	service   *Service
	portfolio *portfolio.Repository
	trades    *TradeRepository
	ledger    *ledger.Repository
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	log := zerolog.Nop()
	reg := registry.New()
	sim := NewSimulator(reg, portfolio.NewCalculator(reg))

	f := &serviceFixture{
		portfolio: portfolio.NewRepository(db.Conn(), log),
		trades:    NewTradeRepository(db.Conn(), log),
		ledger:    ledger.NewRepository(db.Conn(), log),
	}
	f.service = NewService(sim, f.portfolio, f.trades, f.ledger, events.NewManager(events.NewBus(), log), log)

	require.NoError(t, f.portfolio.SaveState(balancedState()))
	require.NoError(t, f.portfolio.SaveTarget(testTarget, 6))
	return f
}

func TestCommitPersistsEverything(t *testing.T) {
	f := newServiceFixture(t)
	req := TradeRequest{Side: domain.SideBuy, AssetID: "BTC", AmountIRR: 10_000_000}

	result, vr, err := f.service.Commit(req, "key-1", testMarket(), testNow)
	require.NoError(t, err)
	require.True(t, vr.OK)
	require.NotNil(t, result)
	assert.False(t, result.Replayed)

	// State moved.
	state, err := f.portfolio.LoadState()
	require.NoError(t, err)
	assert.InDelta(t, 390_000_000, state.Cash, 1e-6)
	assert.InDelta(t, 1+result.Trade.Quantity, state.Holding("BTC").Quantity, 1e-9)

	// Trade recorded.
	saved, err := f.trades.GetByID(result.Trade.ID)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, domain.SideBuy, saved.Side)
	assert.InDelta(t, result.Trade.SpreadIRR, saved.SpreadIRR, 1e-9)

	// Journal entry recorded with both snapshots.
	entry, err := f.ledger.GetByIdempotencyKey("key-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, domain.ActionTrade, entry.Kind)
	assert.InDelta(t, 1_000_000_000, entry.Before.TotalValue, 1e-3)
	assert.Greater(t, entry.Before.TotalValue, entry.After.TotalValue)
}

func TestCommitIsIdempotent(t *testing.T) {
	f := newServiceFixture(t)
	req := TradeRequest{Side: domain.SideBuy, AssetID: "BTC", AmountIRR: 10_000_000}

	first, vr, err := f.service.Commit(req, "key-dup", testMarket(), testNow)
	require.NoError(t, err)
	require.True(t, vr.OK)

	second, vr, err := f.service.Commit(req, "key-dup", testMarket(), testNow)
	require.NoError(t, err)
	require.True(t, vr.OK)
	assert.True(t, second.Replayed)
	assert.InDelta(t, first.Trade.Quantity, second.Trade.Quantity, 1e-12)

	// State applied exactly once.
	state, err := f.portfolio.LoadState()
	require.NoError(t, err)
	assert.InDelta(t, 390_000_000, state.Cash, 1e-6)
}

func TestCommitRejectsInvalidWithoutSideEffects(t *testing.T) {
	f := newServiceFixture(t)
	req := TradeRequest{Side: domain.SideBuy, AssetID: "BTC", AmountIRR: 999_999_999_999}

	result, vr, err := f.service.Commit(req, "key-bad", testMarket(), testNow)
	require.NoError(t, err)
	require.False(t, vr.OK)
	assert.Nil(t, result)

	state, err := f.portfolio.LoadState()
	require.NoError(t, err)
	assert.InDelta(t, 400_000_000, state.Cash, 1e-6)

	entry, err := f.ledger.GetByIdempotencyKey("key-bad")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestCommitRequiresIdempotencyKey(t *testing.T) {
	f := newServiceFixture(t)
	req := TradeRequest{Side: domain.SideBuy, AssetID: "BTC", AmountIRR: 10_000_000}

	_, vr, err := f.service.Commit(req, "", testMarket(), testNow)
	require.NoError(t, err)
	assert.False(t, vr.OK)
}

func TestAddFunds(t *testing.T) {
	f := newServiceFixture(t)

	entry, vr, err := f.service.AddFunds(50_000_000, "dep-1", testMarket(), testNow)
	require.NoError(t, err)
	require.True(t, vr.OK)
	require.NotNil(t, entry)
	assert.Equal(t, domain.ActionAddFunds, entry.Kind)

	// The book was exactly on target, so new cash tilts it toward
	// FOUNDATION and the classifier reports the widened drift.
	assert.Equal(t, domain.BoundaryDrift, entry.Boundary)

	state, err := f.portfolio.LoadState()
	require.NoError(t, err)
	assert.InDelta(t, 450_000_000, state.Cash, 1e-6)

	// Replay does not double-credit.
	_, vr, err = f.service.AddFunds(50_000_000, "dep-1", testMarket(), testNow)
	require.NoError(t, err)
	require.True(t, vr.OK)

	state, err = f.portfolio.LoadState()
	require.NoError(t, err)
	assert.InDelta(t, 450_000_000, state.Cash, 1e-6)
}

func TestAddFundsClassifiesOverweightBook(t *testing.T) {
	f := newServiceFixture(t)

	// FOUNDATION-heavy book: 700M cash + 0.5 BTC (175M), F = 80% against
	// a 50% target. A deposit makes that worse, so the journaled
	// boundary must come from the classifier, never a hardcoded SAFE.
	require.NoError(t, f.portfolio.SaveState(domain.PortfolioState{
		Cash: 700_000_000,
		Holdings: []domain.Holding{
			{AssetID: "BTC", Quantity: 0.5, Layer: domain.LayerGrowth},
		},
	}))

	entry, vr, err := f.service.AddFunds(200_000_000, "dep-heavy", testMarket(), testNow)
	require.NoError(t, err)
	require.True(t, vr.OK)
	require.NotNil(t, entry)

	assert.Equal(t, domain.BoundaryDrift, entry.Boundary)
	assert.Equal(t, boundary.Classify(entry.Before, entry.After, testTarget), entry.Boundary)
}

func TestAddFundsRejectsNonPositive(t *testing.T) {
	f := newServiceFixture(t)

	_, vr, err := f.service.AddFunds(0, "dep-zero", testMarket(), testNow)
	require.NoError(t, err)
	assert.False(t, vr.OK)
}

func TestTradeRepositoryList(t *testing.T) {
	f := newServiceFixture(t)

	for i, asset := range []string{"BTC", "SOL", "BTC"} {
		trade := Trade{
			ID:         string(rune('a' + i)),
			Side:       domain.SideBuy,
			AssetID:    asset,
			AmountIRR:  5_000_000,
			Quantity:   0.01,
			SpreadIRR:  15_000,
			Boundary:   domain.BoundarySafe,
			ExecutedAt: testNow.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, f.trades.Save(trade))
	}

	all, err := f.trades.List(10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID) // newest first

	btc, err := f.trades.ListByAsset("BTC", 10)
	require.NoError(t, err)
	assert.Len(t, btc, 2)
}
