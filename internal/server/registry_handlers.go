package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/blumarkets/layers/internal/domain"
	"github.com/blumarkets/layers/internal/modules/registry"
)

// RegistryHandler exposes the asset registry.
type RegistryHandler struct {
	registry *registry.Registry
	log      zerolog.Logger
}

// NewRegistryHandler creates a new registry handler.
func NewRegistryHandler(reg *registry.Registry, log zerolog.Logger) *RegistryHandler {
	return &RegistryHandler{
		registry: reg,
		log:      log.With().Str("handler", "registry").Logger(),
	}
}

// RegisterRoutes registers the registry routes.
func (h *RegistryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/assets", h.handleList)
	r.Get("/assets/{id}", h.handleGet)
}

// handleList handles GET /api/assets?layer=FOUNDATION
func (h *RegistryHandler) handleList(w http.ResponseWriter, r *http.Request) {
	if layer := r.URL.Query().Get("layer"); layer != "" {
		l := domain.Layer(layer)
		if !l.Valid() {
			writeError(h.log, w, http.StatusBadRequest, "unknown layer "+layer)
			return
		}
		writeJSON(h.log, w, http.StatusOK, map[string]interface{}{"assets": h.registry.ByLayer(l)})
		return
	}
	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{"assets": h.registry.All()})
}

// handleGet handles GET /api/assets/{id}
func (h *RegistryHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	asset, ok := h.registry.Get(id)
	if !ok {
		writeError(h.log, w, http.StatusNotFound, "unknown asset "+id)
		return
	}
	writeJSON(h.log, w, http.StatusOK, asset)
}
