package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"just3sec/core"
)

type subscriber struct {
	ch   chan core.Event
	user core.UserID
}

// Hub is a simple pub/sub for broadcasting game events to channels.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

func NewHub() *Hub { return &Hub{subs: map[int]subscriber{}} }

// Subscribe receives every event.
func (h *Hub) Subscribe(buffer int) (int, <-chan core.Event) {
	return h.SubscribeUser(buffer, core.Anonymous)
}

// SubscribeUser receives only the events of user; core.Anonymous receives
// all of them.
func (h *Hub) SubscribeUser(buffer int, user core.UserID) (int, <-chan core.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	ch := make(chan core.Event, buffer)
	h.subs[id] = subscriber{ch: ch, user: user}
	return id, ch
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
}

// Broadcast never blocks; slow subscribers miss events.
func (h *Hub) Broadcast(_ context.Context, ev core.Event) {
	// sends are non-blocking so holding the read lock is cheap, and it keeps
	// Unsubscribe from closing a channel mid-send
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.user != core.Anonymous && sub.user != ev.UserID {
			continue
		}
		select {
		case sub.ch <- ev:
		default: /* drop if full */
		}
	}
}

// Len is the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// MarshalJSON is a helper to convert events to JSON bytes for WebSocket/SSE.
func MarshalJSON(ev core.Event) []byte {
	b, _ := json.Marshal(ev)
	return b
}
