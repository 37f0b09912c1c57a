package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/blumarkets/layers/internal/clients/pricefeed"
)

// SystemHandler reports process and market-data health.
type SystemHandler struct {
	holder    *pricefeed.Holder
	feed      *pricefeed.WebSocketFeed // nil when running poll-only
	startedAt time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a new system handler.
func NewSystemHandler(holder *pricefeed.Holder, feed *pricefeed.WebSocketFeed, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		holder:    holder,
		feed:      feed,
		startedAt: time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// RegisterRoutes registers the system routes.
func (h *SystemHandler) RegisterRoutes(r chi.Router) {
	r.Get("/system/status", h.handleStatus)
}

// handleStatus handles GET /api/system/status
func (h *SystemHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, ramPercent := h.getSystemStats()

	wsConnected := false
	if h.feed != nil {
		wsConnected = h.feed.IsConnected()
	}

	status := map[string]interface{}{
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
		"cpu_percent":    cpuPercent,
		"ram_percent":    ramPercent,
		"pricefeed": map[string]interface{}{
			"websocket_connected": wsConnected,
			"prices_stale":        h.holder.IsStale(),
			"updated_at":          h.holder.UpdatedAt(),
		},
	}

	writeJSON(h.log, w, http.StatusOK, status)
}

// getSystemStats samples CPU and RAM usage.
func (h *SystemHandler) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Debug().Err(err).Msg("Failed to get CPU stats")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Debug().Err(err).Msg("Failed to get memory stats")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}
