package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/blumarkets/layers/internal/clients/pricefeed"
	"github.com/blumarkets/layers/internal/modules/trading"
)

// defaultListLimit bounds unpaginated list endpoints.
const defaultListLimit = 100

// TradingHandler serves trade previews, commits and history.
type TradingHandler struct {
	trading *trading.Service
	trades  trading.TradeRepositoryInterface
	holder  *pricefeed.Holder
	log     zerolog.Logger
}

// NewTradingHandler creates a new trading handler.
func NewTradingHandler(svc *trading.Service, trades trading.TradeRepositoryInterface, holder *pricefeed.Holder, log zerolog.Logger) *TradingHandler {
	return &TradingHandler{
		trading: svc,
		trades:  trades,
		holder:  holder,
		log:     log.With().Str("handler", "trading").Logger(),
	}
}

// RegisterRoutes registers the trading routes.
func (h *TradingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/trades/preview", h.handlePreview)
	r.Post("/trades", h.handleCommit)
	r.Get("/trades", h.handleList)
}

// handlePreview handles POST /api/trades/preview. Previews are cheap
// and side-effect free; the UI recomputes on every keystroke.
func (h *TradingHandler) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req trading.TradeRequest
	if !decodeJSON(h.log, w, r, &req) {
		return
	}
	market, ok := latestMarket(h.log, w, h.holder)
	if !ok {
		return
	}

	preview, vr, err := h.trading.Preview(req, market, time.Now())
	if err != nil {
		writeError(h.log, w, http.StatusInternalServerError, err.Error())
		return
	}
	if !vr.OK {
		writeValidation(h.log, w, vr)
		return
	}
	writeJSON(h.log, w, http.StatusOK, preview)
}

// handleCommit handles POST /api/trades
func (h *TradingHandler) handleCommit(w http.ResponseWriter, r *http.Request) {
	key, ok := idempotencyKey(h.log, w, r)
	if !ok {
		return
	}
	var req trading.TradeRequest
	if !decodeJSON(h.log, w, r, &req) {
		return
	}
	market, ok := latestMarket(h.log, w, h.holder)
	if !ok {
		return
	}

	result, vr, err := h.trading.Commit(req, key, market, time.Now())
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

// handleList handles GET /api/trades?asset_id=&limit=
func (h *TradingHandler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultListLimit)

	var (
		trades []trading.Trade
		err    error
	)
	if assetID := r.URL.Query().Get("asset_id"); assetID != "" {
		trades, err = h.trades.ListByAsset(assetID, limit)
	} else {
		trades, err = h.trades.List(limit)
	}
	if err != nil {
		writeError(h.log, w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{"trades": trades})
}

// queryInt reads an integer query parameter with a fallback.
func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
