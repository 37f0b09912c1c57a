package pricefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blumarkets/layers/internal/domain"
	"github.com/blumarkets/layers/internal/events"
)

func newManager() *events.Manager {
	return events.NewManager(events.NewBus(), zerolog.Nop())
}

func TestHolder(t *testing.T) {
	h := NewHolder()

	_, ok := h.Latest()
	assert.False(t, ok)
	assert.True(t, h.IsStale())

	h.Set(domain.MarketData{
		Prices: map[string]float64{"BTC": 700},
		FxRate: 500_000,
	})

	got, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, 700.0, got.Prices["BTC"])
	assert.False(t, h.IsStale())

	// The returned copy does not alias the held map.
	got.Prices["BTC"] = 1
	again, _ := h.Latest()
	assert.Equal(t, 700.0, again.Prices["BTC"])
}

func TestWebSocketHandleMessage(t *testing.T) {
	holder := NewHolder()
	ws := NewWebSocketFeed("ws://unused", holder, newManager(), zerolog.Nop())

	msg := []byte(`["prices", {"prices": {"BTC": 700, "PAXG": 200}, "fx_rate": 500000}]`)
	require.NoError(t, ws.handleMessage(msg))

	market, ok := holder.Latest()
	require.True(t, ok)
	assert.Equal(t, 700.0, market.Prices["BTC"])
	assert.Equal(t, 500_000.0, market.FxRate)
	assert.False(t, market.AsOf.IsZero())
}

func TestWebSocketHandleMessageRejectsBadFrames(t *testing.T) {
	holder := NewHolder()
	ws := NewWebSocketFeed("ws://unused", holder, newManager(), zerolog.Nop())

	tests := []struct {
		name string
		msg  string
	}{
		{"not an array", `{"prices": {}}`},
		{"too short", `["prices"]`},
		{"no prices", `["prices", {"prices": {}, "fx_rate": 500000}]`},
		{"zero fx", `["prices", {"prices": {"BTC": 700}, "fx_rate": 0}]`},
		{"negative price", `["prices", {"prices": {"BTC": -1}, "fx_rate": 500000}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, ws.handleMessage([]byte(tt.msg)))
			_, ok := holder.Latest()
			assert.False(t, ok)
		})
	}

	// Frames for other channels are ignored without error.
	require.NoError(t, ws.handleMessage([]byte(`["markets", {"open": true}]`)))
	_, ok := holder.Latest()
	assert.False(t, ok)
}

func TestPollOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(PriceMessage{
			Prices:    map[string]float64{"BTC": 710, "SOL": 300},
			FxRate:    510_000,
			Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		})
	}))
	defer srv.Close()

	holder := NewHolder()
	p := NewPoller(srv.URL, holder, nil, newManager(), zerolog.Nop())
	require.NoError(t, p.PollOnce(context.Background()))

	market, ok := holder.Latest()
	require.True(t, ok)
	assert.Equal(t, 710.0, market.Prices["BTC"])
	assert.Equal(t, 510_000.0, market.FxRate)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), market.AsOf)
}

func TestPollOnceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	holder := NewHolder()
	p := NewPoller(srv.URL, holder, nil, newManager(), zerolog.Nop())
	assert.Error(t, p.PollOnce(context.Background()))

	_, ok := holder.Latest()
	assert.False(t, ok)
}
