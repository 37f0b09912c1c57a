package events

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeFiltersTypes(t *testing.T) {
	bus := NewBus()
	trades := bus.Subscribe(TradeCommitted)
	all := bus.Subscribe()

	bus.Emit(TradeCommitted, "trading", map[string]interface{}{"trade_id": "t-1"})
	bus.Emit(FundsAdded, "trading", nil)

	// Filtered subscriber sees only its type.
	assert.Equal(t, 1, len(trades))
	ev := <-trades
	assert.Equal(t, TradeCommitted, ev.Type)
	assert.Equal(t, "trading", ev.Module)
	assert.Equal(t, "t-1", ev.Data["trade_id"])

	// Unfiltered subscriber sees everything.
	assert.Equal(t, 2, len(all))
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(FundsAdded)

	// One more than the channel buffer. Emit must not block.
	for i := 0; i < 65; i++ {
		bus.Emit(FundsAdded, "trading", nil)
	}
	assert.Equal(t, 64, len(ch))
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(FundsAdded)
	bus.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)

	// Emitting after unsubscribe reaches nobody and does not panic.
	bus.Emit(FundsAdded, "trading", nil)
}

func TestManagerEmitsTypedData(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(TargetChanged)
	mgr := NewManager(bus, zerolog.Nop())

	mgr.EmitTyped(TargetChanged, "profiler", &TargetChangedData{
		RiskScore:  6,
		Foundation: 0.50,
		Growth:     0.35,
		Upside:     0.15,
	})

	require.Equal(t, 1, len(ch))
	ev := <-ch
	assert.Equal(t, TargetChanged, ev.Type)
	assert.Equal(t, float64(6), ev.Data["risk_score"])
	assert.Equal(t, 0.35, ev.Data["growth"])
}
