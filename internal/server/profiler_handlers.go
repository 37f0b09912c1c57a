package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/blumarkets/layers/internal/events"
	"github.com/blumarkets/layers/internal/modules/portfolio"
	"github.com/blumarkets/layers/internal/modules/profiler"
)

// ProfilerHandler serves the risk questionnaire and applies its outcome
// as the portfolio target.
type ProfilerHandler struct {
	profiler  *profiler.Profiler
	portfolio portfolio.RepositoryInterface
	eventMgr  *events.Manager
	log       zerolog.Logger
}

// NewProfilerHandler creates a new profiler handler.
func NewProfilerHandler(p *profiler.Profiler, portfolioRepo portfolio.RepositoryInterface, eventMgr *events.Manager, log zerolog.Logger) *ProfilerHandler {
	return &ProfilerHandler{
		profiler:  p,
		portfolio: portfolioRepo,
		eventMgr:  eventMgr,
		log:       log.With().Str("handler", "profiler").Logger(),
	}
}

// RegisterRoutes registers the profiler routes.
func (h *ProfilerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/profile/questions", h.handleQuestions)
	r.Post("/profile/score", h.handleScore)
	r.Post("/profile/apply", h.handleApply)
}

type scoreRequest struct {
	Answers map[profiler.QuestionID]int `json:"answers"`
}

// handleQuestions handles GET /api/profile/questions
func (h *ProfilerHandler) handleQuestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{
		"questions": h.profiler.Questions(),
	})
}

// handleScore handles POST /api/profile/score. Scoring is total over
// partial input, so the UI calls this on every answer for a live
// preview.
func (h *ProfilerHandler) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if !decodeJSON(h.log, w, r, &req) {
		return
	}
	writeJSON(h.log, w, http.StatusOK, h.profiler.Score(req.Answers))
}

// handleApply handles POST /api/profile/apply. It scores the answers
// and persists the resulting allocation as the new target.
func (h *ProfilerHandler) handleApply(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if !decodeJSON(h.log, w, r, &req) {
		return
	}

	profile := h.profiler.Score(req.Answers)
	if err := h.portfolio.SaveTarget(profile.Allocation, profile.Score); err != nil {
		writeError(h.log, w, http.StatusInternalServerError, err.Error())
		return
	}

	h.eventMgr.EmitTyped(events.TargetChanged, "profiler", &events.TargetChangedData{
		RiskScore:  profile.Score,
		Foundation: profile.Allocation.Foundation,
		Growth:     profile.Allocation.Growth,
		Upside:     profile.Allocation.Upside,
	})
	h.log.Info().Int("score", profile.Score).Msg("Target allocation applied")

	writeJSON(h.log, w, http.StatusOK, profile)
}
