// Package event carries sync status signals from the queues to whoever is
// showing sync state. Delivery is synchronous and in subscription order.
package event

import (
	"context"
	"sync"
	"time"
)

// Type names one of the four sync signals.
type Type string

const (
	SyncStart    Type = "sync-start"
	SyncPending  Type = "sync-pending"
	SyncComplete Type = "sync-complete"
	SyncError    Type = "sync-error"
)

// Source identifies which queue published an event.
type Source string

const (
	SourceCommands Source = "commands"
	SourceCaptures Source = "captures"
)

// Event is one sync signal.
type Event struct {
	Type      Type      `json:"type"`
	Source    Source    `json:"source"`
	Pending   int       `json:"pending"`
	Delivered int       `json:"delivered,omitempty"`
	Failed    int       `json:"failed,omitempty"`
	Err       error     `json:"-"`
	At        time.Time `json:"at"`
}

// Message returns the error text, if any.
func (e Event) Message() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// Handler receives events on the publisher's goroutine.
type Handler func(ctx context.Context, e Event)

// Bus is an in-memory observer list.
type Bus struct {
	mu       sync.RWMutex
	handlers []subscription
	nextID   int
}

type subscription struct {
	id int
	fn Handler
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers = append(b.handlers, subscription{id: id, fn: h})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.handlers {
				if s.id == id {
					b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers e to every handler before returning. A zero At is set to now.
func (b *Bus) Publish(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	b.mu.RLock()
	handlers := make([]subscription, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, s := range handlers {
		s.fn(ctx, e)
	}
}

// Channel adapts the bus to a typed channel for streaming consumers. Events
// are dropped when the buffer is full so a slow reader never stalls a drain.
// Call the returned function to unsubscribe and close the channel.
func (b *Bus) Channel(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	var mu sync.Mutex
	closed := false

	unsubscribe := b.Subscribe(func(_ context.Context, e Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- e:
		default:
		}
	})

	return ch, func() {
		unsubscribe()
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			close(ch)
		}
	}
}
