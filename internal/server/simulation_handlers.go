package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/blumarkets/layers/internal/modules/simulation"
)

// SimulationHandler runs stress-test backtests.
type SimulationHandler struct {
	simulation *simulation.Engine
	log        zerolog.Logger
}

// NewSimulationHandler creates a new simulation handler.
func NewSimulationHandler(engine *simulation.Engine, log zerolog.Logger) *SimulationHandler {
	return &SimulationHandler{
		simulation: engine,
		log:        log.With().Str("handler", "simulation").Logger(),
	}
}

// RegisterRoutes registers the simulation routes.
func (h *SimulationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/simulation/run", h.handleRun)
	r.Get("/simulation/defaults", h.handleDefaults)
}

// handleDefaults handles GET /api/simulation/defaults
func (h *SimulationHandler) handleDefaults(w http.ResponseWriter, r *http.Request) {
	writeJSON(h.log, w, http.StatusOK, simulation.DefaultConfig())
}

// handleRun handles POST /api/simulation/run. The body holds partial
// overrides; absent fields keep the canonical crash-test values.
func (h *SimulationHandler) handleRun(w http.ResponseWriter, r *http.Request) {
	cfg := simulation.DefaultConfig()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(h.log, w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &cfg); err != nil {
			writeError(h.log, w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	report, err := h.simulation.Run(cfg)
	if err != nil {
		writeError(h.log, w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(h.log, w, http.StatusOK, report)
}
