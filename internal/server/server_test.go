package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blumarkets/layers/internal/clients/pricefeed"
	"github.com/blumarkets/layers/internal/database"
	"github.com/blumarkets/layers/internal/domain"
	"github.com/blumarkets/layers/internal/events"
	"github.com/blumarkets/layers/internal/modules/ledger"
	"github.com/blumarkets/layers/internal/modules/lending"
	"github.com/blumarkets/layers/internal/modules/portfolio"
	"github.com/blumarkets/layers/internal/modules/profiler"
	"github.com/blumarkets/layers/internal/modules/protection"
	"github.com/blumarkets/layers/internal/modules/rebalancing"
	"github.com/blumarkets/layers/internal/modules/registry"
	"github.com/blumarkets/layers/internal/modules/simulation"
	"github.com/blumarkets/layers/internal/modules/trading"
)

// testServer wires the full stack against an in-memory database.
func testServer(t *testing.T) (*Server, *pricefeed.Holder) {
	t.Helper()
	log := zerolog.Nop()

	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	reg := registry.New()
	calc := portfolio.NewCalculator(reg)
	portfolioRepo := portfolio.NewRepository(db.Conn(), log)
	ledgerRepo := ledger.NewRepository(db.Conn(), log)
	tradeRepo := trading.NewTradeRepository(db.Conn(), log)
	loanRepo := lending.NewRepository(db.Conn(), log)
	contractRepo := protection.NewRepository(db.Conn(), log)

	bus := events.NewBus()
	eventMgr := events.NewManager(bus, log)
	holder := pricefeed.NewHolder()

	tradingSvc := trading.NewService(trading.NewSimulator(reg, calc), portfolioRepo, tradeRepo, ledgerRepo, eventMgr, log)
	rebalanceSvc := rebalancing.NewService(rebalancing.NewPlanner(reg, calc), portfolioRepo, tradeRepo, ledgerRepo, eventMgr, log)
	lendingSvc := lending.NewService(reg, calc, portfolioRepo, loanRepo, ledgerRepo, eventMgr, 0.23, log)
	protectionSvc := protection.NewService(reg, calc, portfolioRepo, contractRepo, ledgerRepo, eventMgr, log)

	srv := New(Config{
		Log:        log,
		Port:       0,
		DevMode:    true,
		Registry:   reg,
		Holder:     holder,
		Bus:        bus,
		EventMgr:   eventMgr,
		Profiler:   profiler.New(),
		Portfolio:  portfolioRepo,
		Calculator: calc,
		Trading:    tradingSvc,
		Trades:     tradeRepo,
		Rebalance:  rebalanceSvc,
		Lending:    lendingSvc,
		Loans:      loanRepo,
		Protection: protectionSvc,
		Contracts:  contractRepo,
		Ledger:     ledgerRepo,
		Simulation: simulation.NewEngine(reg, eventMgr, log),
	})
	return srv, holder
}

func setPrices(holder *pricefeed.Holder) {
	holder.Set(domain.MarketData{
		Prices: map[string]float64{
			"USDT": 1, "PAXG": 2400, "KAG": 28, "IRFI": 0,
			"BTC": 60000, "ETH": 3000, "QQQ": 480, "BNB": 550,
			"SOL": 150, "XRP": 0.5, "TON": 7, "LINK": 14,
			"AVAX": 30, "MATIC": 0.6, "ARB": 0.9,
		},
		FxRate: 600_000,
		AsOf:   time.Now(),
	})
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}, key string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestAssets(t *testing.T) {
	srv, _ := testServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/assets", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Assets []registry.AssetConfig `json:"assets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Assets, 15)

	rec = doJSON(t, srv, http.MethodGet, "/api/assets?layer=FOUNDATION", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Assets, 4)

	rec = doJSON(t, srv, http.MethodGet, "/api/assets/BTC", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/assets/DOGE", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProfileApply(t *testing.T) {
	srv, _ := testServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/profile/questions", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	answers := map[string]interface{}{"answers": map[string]int{}}
	rec = doJSON(t, srv, http.MethodPost, "/api/profile/apply", answers, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var profile profiler.RiskProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.GreaterOrEqual(t, profile.Score, 1)
	assert.LessOrEqual(t, profile.Score, 10)

	rec = doJSON(t, srv, http.MethodGet, "/api/portfolio/target", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var target struct {
		RiskScore int `json:"risk_score"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &target))
	assert.Equal(t, profile.Score, target.RiskScore)
}

func TestMarketDataRequired(t *testing.T) {
	srv, _ := testServer(t)

	// Holder is empty, mutating endpoints must refuse.
	rec := doJSON(t, srv, http.MethodPost, "/api/portfolio/funds",
		map[string]float64{"amount_irr": 1_000_000_000}, "dep-1")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/portfolio", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIdempotencyKeyRequired(t *testing.T) {
	srv, holder := testServer(t)
	setPrices(holder)

	rec := doJSON(t, srv, http.MethodPost, "/api/portfolio/funds",
		map[string]float64{"amount_irr": 1_000_000_000}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDepositAndTrade(t *testing.T) {
	srv, holder := testServer(t)
	setPrices(holder)

	rec := doJSON(t, srv, http.MethodPost, "/api/portfolio/funds",
		map[string]float64{"amount_irr": 2_000_000_000}, "dep-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Preview then commit a BTC buy.
	buy := trading.TradeRequest{Side: domain.SideBuy, AssetID: "BTC", AmountIRR: 300_000_000}
	rec = doJSON(t, srv, http.MethodPost, "/api/trades/preview", buy, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var preview trading.TradePreview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))
	assert.Greater(t, preview.Quantity, 0.0)
	assert.Greater(t, preview.SpreadIRR, 0.0)

	rec = doJSON(t, srv, http.MethodPost, "/api/trades", buy, "trade-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Same key replays, no second trade.
	rec = doJSON(t, srv, http.MethodPost, "/api/trades", buy, "trade-1")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/trades", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Trades []trading.Trade `json:"trades"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Trades, 1)

	// The deposit and the trade both journaled.
	rec = doJSON(t, srv, http.MethodGet, "/api/ledger", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries struct {
		Entries []ledger.Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries.Entries, 2)
}

func TestTradeValidationSurfaces(t *testing.T) {
	srv, holder := testServer(t)
	setPrices(holder)

	// No cash deposited, the buy must fail validation, not error.
	buy := trading.TradeRequest{Side: domain.SideBuy, AssetID: "BTC", AmountIRR: 300_000_000}
	rec := doJSON(t, srv, http.MethodPost, "/api/trades/preview", buy, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation")
}

func TestLoanLimits(t *testing.T) {
	srv, holder := testServer(t)
	setPrices(holder)

	rec := doJSON(t, srv, http.MethodGet, "/api/loans/limits?asset_id=BTC", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		MaxBorrowIRR float64 `json:"max_borrow_irr"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// Nothing held yet, nothing to borrow against.
	assert.Equal(t, 0.0, resp.MaxBorrowIRR)

	rec = doJSON(t, srv, http.MethodGet, "/api/loans/limits", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectionQuoteFlow(t *testing.T) {
	srv, holder := testServer(t)
	setPrices(holder)

	rec := doJSON(t, srv, http.MethodPost, "/api/protections/quote",
		quoteRequest{AssetID: "BTC", Coverage: 0.5, DurationDays: 90}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var quote protection.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.NotEmpty(t, quote.ID)

	// Unknown quote IDs are rejected before any validation runs.
	rec = doJSON(t, srv, http.MethodPost, "/api/protections",
		protection.PurchaseRequest{AssetID: "BTC", Coverage: 0.5, DurationDays: 90, QuoteID: "nope"}, "prot-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// A real quote reaches validation, which rejects the empty holding.
	rec = doJSON(t, srv, http.MethodPost, "/api/protections",
		protection.PurchaseRequest{AssetID: "BTC", Coverage: 0.5, DurationDays: 90, QuoteID: quote.ID}, "prot-2")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSimulationDefaults(t *testing.T) {
	srv, _ := testServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/simulation/defaults", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var cfg simulation.Config
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, 365, cfg.Days)

	// Bad overrides surface as 422, not 500.
	rec = doJSON(t, srv, http.MethodPost, "/api/simulation/run",
		map[string]interface{}{"days": 10}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRebalancePlanEmptyBook(t *testing.T) {
	srv, holder := testServer(t)
	setPrices(holder)

	rec := doJSON(t, srv, http.MethodGet, "/api/rebalance/plan", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var plan rebalancing.RebalancePlan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plan))
	assert.Empty(t, plan.Trades)
}
