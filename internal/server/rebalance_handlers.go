package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/blumarkets/layers/internal/clients/pricefeed"
	"github.com/blumarkets/layers/internal/modules/rebalancing"
)

// RebalanceHandler serves rebalance planning and execution.
type RebalanceHandler struct {
	rebalance *rebalancing.Service
	holder    *pricefeed.Holder
	log       zerolog.Logger
}

// NewRebalanceHandler creates a new rebalance handler.
func NewRebalanceHandler(svc *rebalancing.Service, holder *pricefeed.Holder, log zerolog.Logger) *RebalanceHandler {
	return &RebalanceHandler{
		rebalance: svc,
		holder:    holder,
		log:       log.With().Str("handler", "rebalance").Logger(),
	}
}

// RegisterRoutes registers the rebalance routes.
func (h *RebalanceHandler) RegisterRoutes(r chi.Router) {
	r.Get("/rebalance/plan", h.handlePlan)
	r.Post("/rebalance/execute", h.handleExecute)
}

// handlePlan handles GET /api/rebalance/plan?deploy_cash=true
func (h *RebalanceHandler) handlePlan(w http.ResponseWriter, r *http.Request) {
	market, ok := latestMarket(h.log, w, h.holder)
	if !ok {
		return
	}
	deployCash := r.URL.Query().Get("deploy_cash") == "true"

	plan, err := h.rebalance.Plan(market, deployCash, time.Now())
	if err != nil {
		writeError(h.log, w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(h.log, w, http.StatusOK, plan)
}

type executeRequest struct {
	DeployCash bool `json:"deploy_cash"`
}

// handleExecute handles POST /api/rebalance/execute. The plan is
// recomputed against fresh state before any leg applies.
func (h *RebalanceHandler) handleExecute(w http.ResponseWriter, r *http.Request) {
	key, ok := idempotencyKey(h.log, w, r)
	if !ok {
		return
	}
	var req executeRequest
	if !decodeJSON(h.log, w, r, &req) {
		return
	}
	market, ok := latestMarket(h.log, w, h.holder)
	if !ok {
		return
	}

	result, vr, err := h.rebalance.Execute(key, market, req.DeployCash, time.Now())
	if err != nil {
		writeError(h.log, w, http.StatusInternalServerError, err.Error())
		return
	}
	if !vr.OK {
		writeValidation(h.log, w, vr)
		return
	}
	writeJSON(h.log, w, http.StatusOK, result)
}
