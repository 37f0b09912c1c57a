package scheduler

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blumarkets/layers/internal/clients/pricefeed"
	"github.com/blumarkets/layers/internal/database"
	"github.com/blumarkets/layers/internal/domain"
	"github.com/blumarkets/layers/internal/events"
	"github.com/blumarkets/layers/internal/modules/history"
	"github.com/blumarkets/layers/internal/modules/lending"
	"github.com/blumarkets/layers/internal/modules/portfolio"
	"github.com/blumarkets/layers/internal/modules/registry"
)

func testDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func TestSnapshotJob(t *testing.T) {
	db := testDB(t)
	log := zerolog.Nop()
	reg := registry.New()

	store, err := history.Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	repo := portfolio.NewRepository(db.Conn(), log)
	require.NoError(t, repo.SaveState(domain.PortfolioState{
		Cash: 500_000_000,
		Holdings: []domain.Holding{
			{AssetID: "BTC", Quantity: 1, Layer: domain.LayerGrowth},
		},
	}))
	require.NoError(t, repo.SaveTarget(domain.TargetAllocation{Foundation: 0.50, Growth: 0.35, Upside: 0.15}, 6))

	bus := events.NewBus()
	ch := bus.Subscribe(events.SnapshotRecorded, events.BoundaryAlert)
	mgr := events.NewManager(bus, log)

	holder := pricefeed.NewHolder()
	job := NewSnapshotJob(holder, store, repo, portfolio.NewCalculator(reg), mgr, log)
	assert.Equal(t, "portfolio_snapshot", job.Name())

	// No market data yet.
	assert.Error(t, job.Run())

	holder.Set(domain.MarketData{
		Prices: map[string]float64{"BTC": 700},
		FxRate: 500_000,
		AsOf:   time.Now(),
	})
	require.NoError(t, job.Run())

	// Closes were recorded in the side DB.
	n, err := store.Days("BTC")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Snapshot event reached the bus.
	select {
	case ev := <-ch:
		assert.Equal(t, events.SnapshotRecorded, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("expected a snapshot event")
	}
}

func TestInstallmentJob(t *testing.T) {
	db := testDB(t)
	log := zerolog.Nop()
	loans := lending.NewRepository(db.Conn(), log)

	started := time.Now().AddDate(0, 0, -40)
	loan := lending.Loan{
		ID:                 "loan-1",
		CollateralAssetID:  "BTC",
		CollateralQuantity: 1,
		PrincipalIRR:       100_000_000,
		AnnualRate:         0.23,
		DurationDays:       90,
		StartedAt:          started,
		Status:             lending.LoanActive,
	}
	installments := lending.BuildSchedule(loan.ID, loan.PrincipalIRR, loan.AnnualRate, started, loan.DurationDays)
	require.NoError(t, loans.SaveLoan(loan, installments))

	bus := events.NewBus()
	ch := bus.Subscribe(events.InstallmentDue)
	job := NewInstallmentJob(loans, events.NewManager(bus, log), log)

	require.NoError(t, job.Run())

	// 40 days into a 90-day term, installments 1 and 2 (due at day 15
	// and 30) are overdue. Emission is synchronous, so both reminders
	// sit in the buffered channel already.
	assert.Equal(t, 2, len(ch))
}
