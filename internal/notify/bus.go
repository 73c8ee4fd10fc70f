package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"smpd/internal/platform/metrics"
)

// Handler reacts to one event. A returned error is logged and counted; it
// never undoes the mutation that produced the event.
//
// Handlers run while the publisher holds no manager lock, but they run on
// the publishing goroutine. A handler that calls back into a manager must
// not expect the publishing operation to have returned yet.
type Handler func(ctx context.Context, e Event) error

type subscription struct {
	name   string
	handle Handler
}

// Bus is an ordered, synchronous subscriber list.
type Bus struct {
	mu      sync.RWMutex
	subs    []subscription
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Bus)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) { b.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bus) { b.metrics = m }
}

func NewBus(opts ...Option) *Bus {
	b := &Bus{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	if b.logger == nil {
		b.logger = slog.New(slog.DiscardHandler)
	}
	return b
}

// Subscribe appends h. Subscribers are invoked in the order they subscribed.
func (b *Bus) Subscribe(name string, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{name: name, handle: h})
}

// Len reports the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers e to every subscriber. It is safe on a nil *Bus.
func (b *Bus) Publish(ctx context.Context, e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, sub := range subs {
		if err := b.deliver(ctx, sub, e); err != nil {
			b.metrics.IncrementNotificationFailures(sub.name, string(e.Type))
			b.logger.ErrorContext(ctx, "change notification subscriber failed",
				"subscriber", sub.name,
				"event", string(e.Type),
				"event_id", e.ID.String(),
				"service_group_key", e.ServiceGroupKey,
				"error", err,
			)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, sub subscription, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panicked: %v", r)
		}
	}()
	return sub.handle(ctx, e)
}
