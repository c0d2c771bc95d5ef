package event

import (
	"log/slog"
	"sync"
)

// Handler receives a published event.
type Handler func(Event)

// Bus is a synchronous publish-subscribe dispatcher. Publish runs
// matching handlers inline, so stores emit their notifications in the
// order the mutations happened. Handlers must not block.
//
// Subscribe and Unsubscribe are idempotent per (name): subscribing the
// same name again replaces the previous handler, unsubscribing an
// unknown name is a no-op. That keeps double-registration and
// missed-unregistration structurally impossible for subscribers that
// key on a stable name.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]Handler // name → handler, receives every event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string]Handler)}
}

// Subscribe registers h under name. A handler receives every event and
// filters by Type itself. Re-subscribing a name replaces the handler.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, replaced := b.handlers[name]; replaced {
		slog.Debug("event handler replaced", "handler", name)
	}
	b.handlers[name] = h
}

// Unsubscribe removes the handler registered under name, if any.
func (b *Bus) Unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, name)
}

// Publish delivers e to every subscribed handler. Safe for concurrent
// use; handlers run on the publisher's goroutine over a snapshot, so a
// handler unsubscribing mid-delivery never mutates the iteration.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	snapshot := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		snapshot = append(snapshot, h)
	}
	b.mu.RUnlock()

	for _, h := range snapshot {
		h(e)
	}
}

// HandlerCount returns the number of subscribed handlers.
func (b *Bus) HandlerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
