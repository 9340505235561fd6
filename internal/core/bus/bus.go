// Package bus is the in-process fan-out for lifecycle notification events.
// Delivery is at-most-once and best-effort: the order record stays the sole
// source of truth, so a missed notification costs a stale dashboard, nothing
// more.
package bus

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pappertech/dispatch-core/internal/core/domain"
	"github.com/pappertech/dispatch-core/internal/metrics"
)

// Handler receives one event. Handlers must be fast and non-blocking; the bus
// runs them synchronously on the publisher's goroutine.
type Handler func(event domain.NotificationEvent)

// Subscription identifies one registered handler for later removal.
type Subscription struct {
	id   string
	role domain.Role
}

type subscriber struct {
	id      string
	handler Handler
	active  atomic.Bool
}

// Bus routes events to handlers keyed by recipient role.
type Bus struct {
	mu     sync.RWMutex
	subs   map[domain.Role][]*subscriber
	logger *zap.Logger
}

func New(logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[domain.Role][]*subscriber),
		logger: logger,
	}
}

// Subscribe registers handler for events addressed to role. Multiple handlers
// per role are allowed.
func (b *Bus) Subscribe(role domain.Role, handler Handler) Subscription {
	sub := &subscriber{id: uuid.NewString(), handler: handler}
	sub.active.Store(true)

	b.mu.Lock()
	b.subs[role] = append(b.subs[role], sub)
	b.mu.Unlock()

	return Subscription{id: sub.id, role: role}
}

// Unsubscribe removes the handler. It is idempotent, and a handler that has
// been unsubscribed receives no further events even if a fan-out is already
// in flight and has not reached it yet.
func (b *Bus) Unsubscribe(s Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[s.role]
	for i, sub := range list {
		if sub.id == s.id {
			sub.active.Store(false)
			b.subs[s.role] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Publish delivers event to every handler currently subscribed to its
// recipient role. Each delivery is isolated: a panicking handler is logged
// and skipped, and never reaches the publisher or the remaining handlers.
func (b *Bus) Publish(event domain.NotificationEvent) {
	b.mu.RLock()
	snapshot := make([]*subscriber, len(b.subs[event.RecipientRole]))
	copy(snapshot, b.subs[event.RecipientRole])
	b.mu.RUnlock()

	for _, sub := range snapshot {
		if !sub.active.Load() {
			continue
		}
		b.deliver(sub, event)
	}
}

func (b *Bus) deliver(sub *subscriber, event domain.NotificationEvent) {
	defer func() {
		if r := recover(); r != nil {
			metrics.NotificationHandlerFailuresTotal.Inc()
			b.logger.Error("notification handler panicked",
				zap.String("role", string(event.RecipientRole)),
				zap.String("event_type", string(event.Type)),
				zap.Any("panic", r))
		}
	}()
	sub.handler(event)
	metrics.NotificationsDeliveredTotal.WithLabelValues(string(event.RecipientRole)).Inc()
}
