package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/blumarkets/layers/internal/clients/pricefeed"
	"github.com/blumarkets/layers/internal/modules/portfolio"
	"github.com/blumarkets/layers/internal/modules/protection"
)

// quoteStore holds issued premium quotes until they expire. Purchase
// must reference a quote issued here; the engine never prices premiums
// itself.
type quoteStore struct {
	mu     sync.Mutex
	quotes map[string]protection.Quote
}

func newQuoteStore() *quoteStore {
	return &quoteStore{quotes: make(map[string]protection.Quote)}
}

// Put stores a quote and drops any that have aged out.
func (s *quoteStore) Put(q protection.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, old := range s.quotes {
		if now.Sub(old.QuotedAt) > protection.QuoteTTL {
			delete(s.quotes, id)
		}
	}
	s.quotes[q.ID] = q
}

// Get returns a stored quote by ID.
func (s *quoteStore) Get(id string) (protection.Quote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[id]
	return q, ok
}

// ProtectionHandler serves the crash protection lifecycle.
type ProtectionHandler struct {
	protection *protection.Service
	contracts  protection.RepositoryInterface
	calculator *portfolio.Calculator
	portfolio  portfolio.RepositoryInterface
	holder     *pricefeed.Holder
	quotes     *quoteStore
	log        zerolog.Logger
}

// NewProtectionHandler creates a new protection handler.
func NewProtectionHandler(
	svc *protection.Service,
	contracts protection.RepositoryInterface,
	calc *portfolio.Calculator,
	portfolioRepo portfolio.RepositoryInterface,
	holder *pricefeed.Holder,
	log zerolog.Logger,
) *ProtectionHandler {
	return &ProtectionHandler{
		protection: svc,
		contracts:  contracts,
		calculator: calc,
		portfolio:  portfolioRepo,
		holder:     holder,
		quotes:     newQuoteStore(),
		log:        log.With().Str("handler", "protection").Logger(),
	}
}

// RegisterRoutes registers the protection routes.
func (h *ProtectionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/protections/quote", h.handleQuote)
	r.Post("/protections", h.handlePurchase)
	r.Get("/protections", h.handleList)
	r.Post("/protections/{id}/cancel", h.handleCancel)
	r.Post("/protections/{id}/exercise", h.handleExercise)
}

type quoteRequest struct {
	AssetID      string  `json:"asset_id"`
	Coverage     float64 `json:"coverage"`
	DurationDays int     `json:"duration_days"`
}

// handleQuote handles POST /api/protections/quote. It prices the
// premium for the caller's current holding and returns a quote valid
// for a few minutes.
func (h *ProtectionHandler) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !decodeJSON(h.log, w, r, &req) {
		return
	}
	market, ok := latestMarket(h.log, w, h.holder)
	if !ok {
		return
	}

	state, err := h.portfolio.LoadState()
	if err != nil {
		writeError(h.log, w, http.StatusInternalServerError, err.Error())
		return
	}
	holdingValue := h.calculator.Snapshot(state, market, time.Now()).AssetValues[req.AssetID]
	notionalIRR := holdingValue * req.Coverage

	premium, err := h.protection.EstimatePremium(req.AssetID, notionalIRR, req.DurationDays)
	if err != nil {
		writeError(h.log, w, http.StatusBadRequest, err.Error())
		return
	}

	quote := protection.Quote{
		ID:           uuid.New().String(),
		AssetID:      req.AssetID,
		Coverage:     req.Coverage,
		DurationDays: req.DurationDays,
		PremiumIRR:   premium,
		QuotedAt:     time.Now(),
	}
	h.quotes.Put(quote)

	writeJSON(h.log, w, http.StatusOK, quote)
}

// handlePurchase handles POST /api/protections. The request must carry
// a quote ID issued by handleQuote.
func (h *ProtectionHandler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	key, ok := idempotencyKey(h.log, w, r)
	if !ok {
		return
	}
	var req protection.PurchaseRequest
	if !decodeJSON(h.log, w, r, &req) {
		return
	}
	quote, ok := h.quotes.Get(req.QuoteID)
	if !ok {
		writeError(h.log, w, http.StatusBadRequest, "unknown or expired quote")
		return
	}
	market, ok := latestMarket(h.log, w, h.holder)
	if !ok {
		return
	}

	contract, vr, err := h.protection.Purchase(req, quote, key, market, time.Now())
	if err != nil {
		writeError(h.log, w, http.StatusInternalServerError, err.Error())
		return
	}
	if !vr.OK {
		writeValidation(h.log, w, vr)
		return
	}
	writeJSON(h.log, w, http.StatusCreated, contract)
}

// handleList handles GET /api/protections?status=ACTIVE
func (h *ProtectionHandler) handleList(w http.ResponseWriter, r *http.Request) {
	status := protection.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = protection.StatusActive
	}

	contracts, err := h.contracts.List(status)
	if err != nil {
		writeError(h.log, w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{"protections": contracts})
}

// handleCancel handles POST /api/protections/{id}/cancel
func (h *ProtectionHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	vr, err := h.protection.Cancel(chi.URLParam(r, "id"))
	if err != nil {
		writeError(h.log, w, http.StatusInternalServerError, err.Error())
		return
	}
	if !vr.OK {
		writeValidation(h.log, w, vr)
		return
	}
	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{"cancelled": true})
}

// handleExercise handles POST /api/protections/{id}/exercise
func (h *ProtectionHandler) handleExercise(w http.ResponseWriter, r *http.Request) {
	market, ok := latestMarket(h.log, w, h.holder)
	if !ok {
		return
	}

	payout, vr, err := h.protection.Exercise(chi.URLParam(r, "id"), market, time.Now())
	if err != nil {
		writeError(h.log, w, http.StatusInternalServerError, err.Error())
		return
	}
	if !vr.OK {
		writeValidation(h.log, w, vr)
		return
	}
	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{"payout_irr": payout})
}
