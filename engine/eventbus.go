package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"just3sec/core"
)

type DispatchMode int

const (
	DispatchSync DispatchMode = iota
	DispatchAsync
)

type subscription struct {
	id int64
	fn func(context.Context, core.Event)
}

// EventBus provides thread-safe pub/sub with sync and async dispatch.
// Subscribing to the empty EventType receives every event.
type EventBus struct {
	mode    DispatchMode
	mu      sync.RWMutex
	subs    map[core.EventType]map[int64]subscription
	nextID  int64
	queue   chan core.Event
	workers sync.WaitGroup
	closed  bool
	dropped atomic.Int64
	logger  *slog.Logger
}

func NewEventBus(mode DispatchMode) *EventBus {
	eb := &EventBus{
		mode:   mode,
		subs:   make(map[core.EventType]map[int64]subscription),
		logger: slog.Default(),
	}
	if mode == DispatchAsync {
		eb.queue = make(chan core.Event, 1024)
		for i := 0; i < 4; i++ {
			eb.workers.Add(1)
			go eb.work()
		}
	}
	return eb
}

func (e *EventBus) work() {
	defer e.workers.Done()
	for ev := range e.queue {
		e.dispatch(context.Background(), ev)
	}
}

// Close drains queued events and stops the async workers. Publishing after
// Close is a no-op.
func (e *EventBus) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	if e.queue != nil {
		close(e.queue)
	}
	e.mu.Unlock()
	e.workers.Wait()
}

// Dropped counts events discarded because the async queue was full.
func (e *EventBus) Dropped() int64 { return e.dropped.Load() }

// Subscribe registers a handler for an event type. Returns unsubscribe func.
func (e *EventBus) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	if e.subs[typ] == nil {
		e.subs[typ] = make(map[int64]subscription)
	}
	e.subs[typ][id] = subscription{id: id, fn: handler}
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs[typ], id)
	}
}

// Publish sends an event to subscribers.
func (e *EventBus) Publish(ctx context.Context, ev core.Event) {
	if e.mode == DispatchAsync {
		e.mu.RLock()
		defer e.mu.RUnlock()
		if e.closed {
			return
		}
		select {
		case e.queue <- ev:
		default:
			e.dropped.Add(1)
			e.logger.Warn("event queue full, dropping event", "type", ev.Type, "user", ev.UserID)
		}
		return
	}
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return
	}
	e.dispatch(ctx, ev)
}

func (e *EventBus) dispatch(ctx context.Context, ev core.Event) {
	e.mu.RLock()
	handlers := make([]func(context.Context, core.Event), 0, len(e.subs[ev.Type])+len(e.subs[""]))
	for _, s := range e.subs[ev.Type] {
		handlers = append(handlers, s.fn)
	}
	for _, s := range e.subs[""] {
		handlers = append(handlers, s.fn)
	}
	e.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, ev)
	}
}
