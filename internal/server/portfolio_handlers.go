package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/blumarkets/layers/internal/clients/pricefeed"
	"github.com/blumarkets/layers/internal/modules/portfolio"
	"github.com/blumarkets/layers/internal/modules/trading"
)

// PortfolioHandler serves the portfolio snapshot, raw state and cash
// deposits.
type PortfolioHandler struct {
	portfolio  portfolio.RepositoryInterface
	calculator *portfolio.Calculator
	holder     *pricefeed.Holder
	trading    *trading.Service
	log        zerolog.Logger
}

// NewPortfolioHandler creates a new portfolio handler.
func NewPortfolioHandler(
	portfolioRepo portfolio.RepositoryInterface,
	calc *portfolio.Calculator,
	holder *pricefeed.Holder,
	tradingSvc *trading.Service,
	log zerolog.Logger,
) *PortfolioHandler {
	return &PortfolioHandler{
		portfolio:  portfolioRepo,
		calculator: calc,
		holder:     holder,
		trading:    tradingSvc,
		log:        log.With().Str("handler", "portfolio").Logger(),
	}
}

// RegisterRoutes registers the portfolio routes.
func (h *PortfolioHandler) RegisterRoutes(r chi.Router) {
	r.Get("/portfolio", h.handleSnapshot)
	r.Get("/portfolio/state", h.handleState)
	r.Get("/portfolio/target", h.handleTarget)
	r.Post("/portfolio/funds", h.handleAddFunds)
}

// handleSnapshot handles GET /api/portfolio. Reads tolerate a stale
// price, the staleness is reported alongside.
func (h *PortfolioHandler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	market, ok := h.holder.Latest()
	if !ok {
		writeError(h.log, w, http.StatusServiceUnavailable, "no market data yet")
		return
	}

	state, err := h.portfolio.LoadState()
	if err != nil {
		writeError(h.log, w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{
		"snapshot":     h.calculator.Snapshot(state, market, time.Now()),
		"prices_as_of": market.AsOf,
		"prices_stale": h.holder.IsStale(),
	})
}

// handleState handles GET /api/portfolio/state
func (h *PortfolioHandler) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := h.portfolio.LoadState()
	if err != nil {
		writeError(h.log, w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(h.log, w, http.StatusOK, state)
}

// handleTarget handles GET /api/portfolio/target
func (h *PortfolioHandler) handleTarget(w http.ResponseWriter, r *http.Request) {
	target, riskScore, err := h.portfolio.GetTarget()
	if err != nil {
		writeError(h.log, w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{
		"target":     target,
		"risk_score": riskScore,
	})
}

type addFundsRequest struct {
	AmountIRR float64 `json:"amount_irr"`
}

// handleAddFunds handles POST /api/portfolio/funds
func (h *PortfolioHandler) handleAddFunds(w http.ResponseWriter, r *http.Request) {
	key, ok := idempotencyKey(h.log, w, r)
	if !ok {
		return
	}
	var req addFundsRequest
	if !decodeJSON(h.log, w, r, &req) {
		return
	}
	market, ok := latestMarket(h.log, w, h.holder)
	if !ok {
		return
	}

	entry, vr, err := h.trading.AddFunds(req.AmountIRR, key, market, time.Now())
	if err != nil {
		writeError(h.log, w, http.StatusInternalServerError, err.Error())
		return
	}
	if !vr.OK {
		writeValidation(h.log, w, vr)
		return
	}
	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{"entry": entry})
}
