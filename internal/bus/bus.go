// Package bus connects event producers to the engine and derived events to
// their consumers.
//
// A Bus is both the event source the filter subscribes to and the sink the
// engine publishes through. Delivery is synchronous, in subscription order,
// on the caller's goroutine.
package bus

import (
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/solatis/eventfilter/internal/types"
)

// AnyType subscribes a Listener to every derived event type.
const AnyType = ""

// Handler receives raw events.
type Handler func(ev types.Event)

// Listener receives derived events.
type Listener func(em types.Emission)

type subscription[F any] struct {
	id uint64
	fn F
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the bus logger.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bus) { b.log = l }
}

// WithClock replaces time.Now for emission timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) { b.now = now }
}

// Bus is a typed, synchronous publish/subscribe hub.
type Bus struct {
	mu        sync.RWMutex
	nextID    uint64
	handlers  map[string][]subscription[Handler]
	listeners map[string][]subscription[Listener]

	log zerolog.Logger
	now func() time.Time
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		handlers:  make(map[string][]subscription[Handler]),
		listeners: make(map[string][]subscription[Listener]),
		log:       zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers h for raw events of eventType.
// The returned function removes the subscription; calling it twice is a no-op.
func (b *Bus) Subscribe(eventType string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], subscription[Handler]{id: id, fn: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.handlers[eventType] = remove(b.handlers[eventType], id)
		if len(b.handlers[eventType]) == 0 {
			delete(b.handlers, eventType)
		}
	}
}

// Dispatch delivers ev to the handlers of its type and reports whether any of
// them consumed it.
func (b *Bus) Dispatch(ev types.Event) bool {
	b.mu.RLock()
	subs := slices.Clone(b.handlers[ev.Type()])
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(ev)
	}
	if len(subs) == 0 {
		b.log.Trace().Str("type", ev.Type()).Msg("no handlers for event")
	}
	return ev.DefaultPrevented()
}

// Listen registers l for derived events of eventType, or all of them with AnyType.
func (b *Bus) Listen(eventType string, l Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.listeners[eventType] = append(b.listeners[eventType], subscription[Listener]{id: id, fn: l})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.listeners[eventType] = remove(b.listeners[eventType], id)
		if len(b.listeners[eventType]) == 0 {
			delete(b.listeners, eventType)
		}
	}
}

// Publish implements rules.Sink. Exact-type listeners run before AnyType listeners.
func (b *Bus) Publish(eventType string, detail *types.Detail) {
	em := types.Emission{
		ID:     types.NewEmissionID(),
		Type:   eventType,
		At:     b.now(),
		Detail: detail,
	}

	b.mu.RLock()
	subs := slices.Clone(b.listeners[eventType])
	if eventType != AnyType {
		subs = append(subs, b.listeners[AnyType]...)
	}
	b.mu.RUnlock()

	b.log.Debug().Str("id", string(em.ID)).Str("type", eventType).Int("listeners", len(subs)).Msg("emission published")
	for _, s := range subs {
		s.fn(em)
	}
}

// Types returns the raw event types that currently have handlers.
func (b *Bus) Types() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.handlers))
	for t := range b.handlers {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

func remove[F any](subs []subscription[F], id uint64) []subscription[F] {
	return slices.DeleteFunc(subs, func(s subscription[F]) bool { return s.id == id })
}
