package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/blumarkets/layers/internal/domain"
	"github.com/blumarkets/layers/internal/modules/ledger"
)

// LedgerHandler serves the append-only action journal.
type LedgerHandler struct {
	ledger ledger.RepositoryInterface
	log    zerolog.Logger
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(repo ledger.RepositoryInterface, log zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger: repo,
		log:    log.With().Str("handler", "ledger").Logger(),
	}
}

// RegisterRoutes registers the ledger routes.
func (h *LedgerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ledger", h.handleList)
	r.Get("/ledger/{id}", h.handleGet)
}

// handleList handles GET /api/ledger?kind=TRADE&limit=50
func (h *LedgerHandler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultListLimit)

	var (
		entries []ledger.Entry
		err     error
	)
	if kind := r.URL.Query().Get("kind"); kind != "" {
		entries, err = h.ledger.ListByKind(domain.ActionKind(kind), limit)
	} else {
		entries, err = h.ledger.List(limit)
	}
	if err != nil {
		writeError(h.log, w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// handleGet handles GET /api/ledger/{id}
func (h *LedgerHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	entry, err := h.ledger.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(h.log, w, http.StatusInternalServerError, err.Error())
		return
	}
	if entry == nil {
		writeError(h.log, w, http.StatusNotFound, "ledger entry not found")
		return
	}
	writeJSON(h.log, w, http.StatusOK, entry)
}
