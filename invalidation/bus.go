package invalidation

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonwraymond/querycache/observe"
)

// Handler processes one event.
type Handler func(ctx context.Context, ev Event) error

type subscription struct {
	kind    EventKind // zero matches every kind
	handler Handler
}

// Bus dispatches events synchronously to subscribers in registration order.
// Handler errors and panics are logged and never reach the publisher.
type Bus struct {
	logger observe.Logger

	mu   sync.RWMutex
	subs []subscription
}

// NewBus creates a bus. A nil logger discards handler failures.
func NewBus(logger observe.Logger) *Bus {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &Bus{logger: logger}
}

// Subscribe registers h for events of kind.
func (b *Bus) Subscribe(kind EventKind, h Handler) {
	b.add(subscription{kind: kind, handler: h})
}

// SubscribeAll registers h for every event.
func (b *Bus) SubscribeAll(h Handler) {
	b.add(subscription{handler: h})
}

func (b *Bus) add(s subscription) {
	if s.handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, s)
}

// Publish delivers ev to every matching subscriber and returns how many
// handlers failed.
func (b *Bus) Publish(ctx context.Context, ev Event) int {
	if ev == nil {
		return 0
	}

	b.mu.RLock()
	subs := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.kind == 0 || s.kind == ev.Kind() {
			subs = append(subs, s)
		}
	}
	b.mu.RUnlock()

	failed := 0
	for _, s := range subs {
		if err := b.call(ctx, s.handler, ev); err != nil {
			failed++
			b.logger.Warn(ctx, "invalidation handler failed",
				observe.F("event", ev.Kind().String()),
				observe.F("error", err),
			)
		}
	}
	return failed
}

func (b *Bus) call(ctx context.Context, h Handler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalidation: handler panic: %v", r)
		}
	}()
	return h(ctx, ev)
}
