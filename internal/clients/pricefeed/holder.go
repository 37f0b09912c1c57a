package pricefeed

import (
	"sync"
	"time"

	"github.com/blumarkets/layers/internal/domain"
)

// staleThreshold is how old the held snapshot may get before readers
// should treat it as unusable.
const staleThreshold = 5 * time.Minute

// Holder is the thread-safe home of the latest market snapshot.
// Writers are the websocket feed and the poller; readers are HTTP
// handlers and scheduled jobs.
type Holder struct {
	mu        sync.RWMutex
	market    domain.MarketData
	updatedAt time.Time
}

// NewHolder creates an empty holder.
func NewHolder() *Holder {
	return &Holder{}
}

// Set replaces the held snapshot.
func (h *Holder) Set(market domain.MarketData) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.market = market
	h.updatedAt = time.Now()
}

// Latest returns a copy of the held snapshot. ok is false until the
// first update arrives.
func (h *Holder) Latest() (domain.MarketData, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.updatedAt.IsZero() {
		return domain.MarketData{}, false
	}

	out := h.market
	out.Prices = make(map[string]float64, len(h.market.Prices))
	for k, v := range h.market.Prices {
		out.Prices[k] = v
	}
	return out, true
}

// IsStale reports whether the snapshot is missing or too old.
func (h *Holder) IsStale() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.updatedAt.IsZero() || time.Since(h.updatedAt) > staleThreshold
}

// UpdatedAt returns when the snapshot last changed.
func (h *Holder) UpdatedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.updatedAt
}
