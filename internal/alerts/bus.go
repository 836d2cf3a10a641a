package alerts

import (
	"context"
	"sync"

	"github.com/Rajchodisetti/stock-tracker/internal/observ"
)

// Notifier delivers an event to an external sink.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, ev Event) error
}

// Bus fans events out to in-process subscribers and, through a bounded
// queue drained by Run, to notifiers. Publish never blocks.
type Bus struct {
	mu        sync.RWMutex
	subs      map[int]chan Event
	nextID    int
	queue     chan Event
	notifiers []Notifier
}

// NewBus creates a bus whose notifier queue holds queueSize events.
func NewBus(queueSize int, notifiers ...Notifier) *Bus {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Bus{
		subs:      make(map[int]chan Event),
		queue:     make(chan Event, queueSize),
		notifiers: notifiers,
	}
}

// Subscribe returns a channel of future events and a cancel func that
// closes it. Slow subscribers lose events rather than stall publishers.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}

// Publish hands events to every subscriber and queues them for notifiers.
func (b *Bus) Publish(events ...Event) {
	if len(events) == 0 {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ev := range events {
		for _, ch := range b.subs {
			select {
			case ch <- ev:
			default:
				observ.AlertsDropped.WithLabelValues("subscriber").Inc()
			}
		}
		if len(b.notifiers) == 0 {
			continue
		}
		select {
		case b.queue <- ev:
		default:
			observ.AlertsDropped.WithLabelValues("queue").Inc()
			observ.Warn("alert_queue_full", map[string]any{"symbol": ev.Symbol, "kind": string(ev.Kind)})
		}
	}
}

// Run delivers queued events to the notifiers until ctx is cancelled.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.queue:
			for _, n := range b.notifiers {
				if err := n.Notify(ctx, ev); err != nil {
					observ.AlertsDropped.WithLabelValues(n.Name()).Inc()
					observ.Warn("alert_notify_failed", map[string]any{
						"notifier": n.Name(),
						"symbol":   ev.Symbol,
						"error":    err.Error(),
					})
				}
			}
		}
	}
}
