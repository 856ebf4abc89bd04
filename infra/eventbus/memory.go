package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kikoba/kikoba/pkg/eventbus"
)

type subscription struct {
	filter  eventbus.Filter
	handler eventbus.HandlerFunc
}

// MemoryBus is an in-process change bus. Handlers run synchronously on the
// publishing goroutine.
type MemoryBus struct {
	mu        sync.RWMutex
	subs      map[string]map[int]subscription
	nextID    int
	logger    *slog.Logger
	published []eventbus.Change
}

// NewWithMemory creates a new in-memory change bus.
func NewWithMemory(logger *slog.Logger) *MemoryBus {
	return &MemoryBus{
		subs:   make(map[string]map[int]subscription),
		logger: logger.With("bus", "memory"),
	}
}

// Publish dispatches the change to every matching subscriber.
func (b *MemoryBus) Publish(ctx context.Context, c eventbus.Change) error {
	b.mu.Lock()
	b.published = append(b.published, c)
	handlers := make([]subscription, 0, len(b.subs[c.Collection]))
	for _, s := range b.subs[c.Collection] {
		handlers = append(handlers, s)
	}
	b.mu.Unlock()

	for _, s := range handlers {
		if !s.filter.Match(c) {
			continue
		}
		b.deliver(ctx, s.handler, c)
	}
	return nil
}

func (b *MemoryBus) deliver(ctx context.Context, h eventbus.HandlerFunc, c eventbus.Change) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic recovered in change handler", "collection", c.Collection, "id", c.ID, "panic", r)
		}
	}()
	if err := h(ctx, c); err != nil {
		b.logger.Error("failed to process change", "collection", c.Collection, "id", c.ID, "error", err)
	}
}

// Subscribe registers handler for changes of collection matching filter.
func (b *MemoryBus) Subscribe(
	ctx context.Context,
	collection string,
	filter eventbus.Filter,
	handler eventbus.HandlerFunc,
) (func(), error) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[collection] == nil {
		b.subs[collection] = make(map[int]subscription)
	}
	b.subs[collection][id] = subscription{filter: filter, handler: handler}
	b.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[collection], id)
			b.mu.Unlock()
			close(done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return cancel, nil
}

// Published returns every change published so far. This is useful for testing.
func (b *MemoryBus) Published() []eventbus.Change {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]eventbus.Change(nil), b.published...)
}

var _ eventbus.Bus = (*MemoryBus)(nil)
