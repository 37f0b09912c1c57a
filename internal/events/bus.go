package events

import (
	"sync"
	"time"
)

// Bus is a simple in-process publish/subscribe channel fan-out.
// Subscribers that fall behind drop events rather than block emitters.
type Bus struct {
	mu   sync.RWMutex
	subs []subscription
}

type subscription struct {
	ch    chan Event
	types map[EventType]bool // nil means all types
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe returns a channel receiving the given event types, or all
// events when none are given. The channel is buffered; slow consumers
// miss events instead of stalling the publisher.
func (b *Bus) Subscribe(types ...EventType) <-chan Event {
	sub := subscription{ch: make(chan Event, 64)}
	if len(types) > 0 {
		sub.types = make(map[EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return sub.ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub.ch == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

// Emit publishes an event to all matching subscribers.
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.types != nil && !sub.types[eventType] {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
}
