package bus

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pappertech/dispatch-core/internal/core/domain"
)

func testEvent(role domain.Role) domain.NotificationEvent {
	return domain.NotificationEvent{
		Type:          domain.EventOrderPlaced,
		OrderID:       "order-1",
		RecipientRole: role,
		Message:       "New order received",
		Timestamp:     time.Now(),
	}
}

func TestPublish_RoutesByRole(t *testing.T) {
	b := New(zap.NewNop())

	var sellerGot, customerGot atomic.Int32
	b.Subscribe(domain.RoleSeller, func(domain.NotificationEvent) { sellerGot.Add(1) })
	b.Subscribe(domain.RoleCustomer, func(domain.NotificationEvent) { customerGot.Add(1) })

	b.Publish(testEvent(domain.RoleSeller))

	if sellerGot.Load() != 1 {
		t.Errorf("expected seller handler called once, got %d", sellerGot.Load())
	}
	if customerGot.Load() != 0 {
		t.Errorf("customer handler received a seller event")
	}
}

func TestPublish_MultipleHandlersPerRole(t *testing.T) {
	b := New(zap.NewNop())

	var calls atomic.Int32
	for i := 0; i < 3; i++ {
		b.Subscribe(domain.RoleSeller, func(domain.NotificationEvent) { calls.Add(1) })
	}

	b.Publish(testEvent(domain.RoleSeller))

	if calls.Load() != 3 {
		t.Errorf("expected 3 deliveries, got %d", calls.Load())
	}
}

func TestPublish_PanickingHandlerIsIsolated(t *testing.T) {
	b := New(zap.NewNop())

	var delivered atomic.Int32
	b.Subscribe(domain.RoleSeller, func(domain.NotificationEvent) { delivered.Add(1) })
	b.Subscribe(domain.RoleSeller, func(domain.NotificationEvent) { panic("handler exploded") })
	b.Subscribe(domain.RoleSeller, func(domain.NotificationEvent) { delivered.Add(1) })

	// Must not propagate to the publisher.
	b.Publish(testEvent(domain.RoleSeller))

	if delivered.Load() != 2 {
		t.Errorf("expected 2 deliveries around the panicking handler, got %d", delivered.Load())
	}
}

func TestUnsubscribe_NoFurtherEvents(t *testing.T) {
	b := New(zap.NewNop())

	var calls atomic.Int32
	sub := b.Subscribe(domain.RoleCustomer, func(domain.NotificationEvent) { calls.Add(1) })

	b.Publish(testEvent(domain.RoleCustomer))
	b.Unsubscribe(sub)
	b.Publish(testEvent(domain.RoleCustomer))
	b.Publish(testEvent(domain.RoleCustomer))

	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 delivery before unsubscribe, got %d", calls.Load())
	}
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	b := New(zap.NewNop())
	sub := b.Subscribe(domain.RoleCustomer, func(domain.NotificationEvent) {})

	b.Unsubscribe(sub)
	b.Unsubscribe(sub)
}

func TestUnsubscribe_MidFanOut(t *testing.T) {
	b := New(zap.NewNop())

	// The first handler unsubscribes the second while the fan-out for this
	// very event is in flight; the second must not be reached.
	var secondCalled atomic.Int32
	var second Subscription
	b.Subscribe(domain.RoleSeller, func(domain.NotificationEvent) {
		b.Unsubscribe(second)
	})
	second = b.Subscribe(domain.RoleSeller, func(domain.NotificationEvent) {
		secondCalled.Add(1)
	})

	b.Publish(testEvent(domain.RoleSeller))

	if secondCalled.Load() != 0 {
		t.Errorf("handler received an event after being unsubscribed mid-flight")
	}
}

func TestPublish_ConcurrentWithSubscribe(t *testing.T) {
	b := New(zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := b.Subscribe(domain.RoleDelivery, func(domain.NotificationEvent) {})
			b.Unsubscribe(sub)
		}()
		go func() {
			defer wg.Done()
			b.Publish(testEvent(domain.RoleDelivery))
		}()
	}
	wg.Wait()
}
