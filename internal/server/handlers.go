package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/blumarkets/layers/internal/clients/pricefeed"
	"github.com/blumarkets/layers/internal/domain"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(s.log, w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "layers",
	})
}

// writeJSON writes a JSON response
func writeJSON(log zerolog.Logger, w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response.
func writeError(log zerolog.Logger, w http.ResponseWriter, status int, msg string) {
	writeJSON(log, w, status, map[string]interface{}{"error": msg})
}

// writeValidation writes a failed validation as 422 with the structured
// result, so the UI can show the exact reasons.
func writeValidation(log zerolog.Logger, w http.ResponseWriter, vr *domain.ValidationResult) {
	writeJSON(log, w, http.StatusUnprocessableEntity, map[string]interface{}{
		"validation": vr,
	})
}

// decodeJSON decodes the request body into v. On failure it writes the
// 400 itself and returns false.
func decodeJSON(log zerolog.Logger, w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(log, w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// latestMarket returns fresh market data or writes a 503. Mutating
// operations never run against stale prices.
func latestMarket(log zerolog.Logger, w http.ResponseWriter, holder *pricefeed.Holder) (domain.MarketData, bool) {
	market, ok := holder.Latest()
	if !ok || holder.IsStale() {
		writeError(log, w, http.StatusServiceUnavailable, "market data unavailable or stale")
		return domain.MarketData{}, false
	}
	return market, true
}

// idempotencyKey extracts the client-supplied idempotency key. Every
// mutating endpoint requires one so retries replay instead of repeat.
func idempotencyKey(log zerolog.Logger, w http.ResponseWriter, r *http.Request) (string, bool) {
	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		writeError(log, w, http.StatusBadRequest, "Idempotency-Key header is required")
		return "", false
	}
	return key, true
}
