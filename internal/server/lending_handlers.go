package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/blumarkets/layers/internal/clients/pricefeed"
	"github.com/blumarkets/layers/internal/modules/lending"
)

// LendingHandler serves the collateralized loan lifecycle.
type LendingHandler struct {
	lending *lending.Service
	loans   lending.RepositoryInterface
	holder  *pricefeed.Holder
	log     zerolog.Logger
}

// NewLendingHandler creates a new lending handler.
func NewLendingHandler(svc *lending.Service, loans lending.RepositoryInterface, holder *pricefeed.Holder, log zerolog.Logger) *LendingHandler {
	return &LendingHandler{
		lending: svc,
		loans:   loans,
		holder:  holder,
		log:     log.With().Str("handler", "lending").Logger(),
	}
}

// RegisterRoutes registers the lending routes.
func (h *LendingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/loans", h.handleOpen)
	r.Get("/loans", h.handleList)
	r.Get("/loans/limits", h.handleLimits)
	r.Get("/loans/{id}", h.handleDetail)
	r.Post("/loans/{id}/repay", h.handleRepay)
}

// handleOpen handles POST /api/loans
func (h *LendingHandler) handleOpen(w http.ResponseWriter, r *http.Request) {
	key, ok := idempotencyKey(h.log, w, r)
	if !ok {
		return
	}
	var req lending.OpenRequest
	if !decodeJSON(h.log, w, r, &req) {
		return
	}
	market, ok := latestMarket(h.log, w, h.holder)
	if !ok {
		return
	}

	loan, vr, err := h.lending.Open(req, key, market, time.Now())
	if err != nil {
		writeError(h.log, w, http.StatusInternalServerError, err.Error())
		return
	}
	if !vr.OK {
		writeValidation(h.log, w, vr)
		return
	}
	writeJSON(h.log, w, http.StatusCreated, loan)
}

// handleList handles GET /api/loans?status=ACTIVE
func (h *LendingHandler) handleList(w http.ResponseWriter, r *http.Request) {
	status := lending.LoanStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = lending.LoanActive
	}

	loans, err := h.loans.ListLoans(status)
	if err != nil {
		writeError(h.log, w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{"loans": loans})
}

// handleLimits handles GET /api/loans/limits?asset_id=BTC. Reports the
// maximum principal currently borrowable against the asset.
func (h *LendingHandler) handleLimits(w http.ResponseWriter, r *http.Request) {
	assetID := r.URL.Query().Get("asset_id")
	if assetID == "" {
		writeError(h.log, w, http.StatusBadRequest, "asset_id is required")
		return
	}
	market, ok := latestMarket(h.log, w, h.holder)
	if !ok {
		return
	}

	maxBorrow, err := h.lending.MaxBorrowFor(assetID, market, time.Now())
	if err != nil {
		writeError(h.log, w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{
		"asset_id":       assetID,
		"max_borrow_irr": maxBorrow,
	})
}

// handleDetail handles GET /api/loans/{id}
func (h *LendingHandler) handleDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.lending.Detail(chi.URLParam(r, "id"), time.Now())
	if err != nil {
		writeError(h.log, w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(h.log, w, http.StatusOK, detail)
}

type repayRequest struct {
	AmountIRR  float64 `json:"amount_irr"`
	Settlement bool    `json:"settlement"`
}

// handleRepay handles POST /api/loans/{id}/repay. Settlement repays the
// accrued amount in full and releases the collateral.
func (h *LendingHandler) handleRepay(w http.ResponseWriter, r *http.Request) {
	key, ok := idempotencyKey(h.log, w, r)
	if !ok {
		return
	}
	var req repayRequest
	if !decodeJSON(h.log, w, r, &req) {
		return
	}
	market, ok := latestMarket(h.log, w, h.holder)
	if !ok {
		return
	}

	detail, vr, err := h.lending.Repay(chi.URLParam(r, "id"), req.AmountIRR, req.Settlement, key, market, time.Now())
	if err != nil {
		writeError(h.log, w, http.StatusInternalServerError, err.Error())
		return
	}
	if !vr.OK {
		writeValidation(h.log, w, vr)
		return
	}
	writeJSON(h.log, w, http.StatusOK, detail)
}
