// Package pricefeed keeps the latest market data flowing into the
// process: a websocket subscription with automatic reconnection, an
// HTTP polling fallback, and a thread-safe holder the rest of the
// application reads from. The engine itself never talks to this
// package; it receives market data as plain values.
package pricefeed

import (
	"time"
)

// PriceMessage is the wire format of one market update, shared by the
// websocket channel and the poll endpoint.
type PriceMessage struct {
	Prices    map[string]float64 `json:"prices"`  // asset -> USD price
	FxRate    float64            `json:"fx_rate"` // IRR per USD
	Timestamp time.Time          `json:"timestamp"`
}

// valid rejects updates that would poison the holder.
func (m PriceMessage) valid() bool {
	if len(m.Prices) == 0 || m.FxRate <= 0 {
		return false
	}
	for _, p := range m.Prices {
		if p < 0 {
			return false
		}
	}
	return true
}
