package domain

import (
	"strings"
	"testing"
)

func TestCanTransitionTo(t *testing.T) {
	legal := []struct{ from, to OrderStatus }{
		{OrderStatusPending, OrderStatusAccepted},
		{OrderStatusPending, OrderStatusCancelled},
		{OrderStatusAccepted, OrderStatusPreparing},
		{OrderStatusAccepted, OrderStatusCancelled},
		{OrderStatusPreparing, OrderStatusReady},
		{OrderStatusPreparing, OrderStatusCancelled},
		{OrderStatusReady, OrderStatusPickedUp},
		{OrderStatusReady, OrderStatusCancelled},
		{OrderStatusPickedUp, OrderStatusDelivered},
	}
	for _, edge := range legal {
		if !edge.from.CanTransitionTo(edge.to) {
			t.Errorf("expected %s -> %s to be legal", edge.from, edge.to)
		}
	}

	illegal := []struct{ from, to OrderStatus }{
		{OrderStatusPending, OrderStatusPreparing},
		{OrderStatusPending, OrderStatusDelivered},
		{OrderStatusAccepted, OrderStatusReady},
		{OrderStatusPickedUp, OrderStatusCancelled},
		{OrderStatusDelivered, OrderStatusCancelled},
		{OrderStatusCancelled, OrderStatusPending},
		{OrderStatusDelivered, OrderStatusDelivered},
	}
	for _, edge := range illegal {
		if edge.from.CanTransitionTo(edge.to) {
			t.Errorf("expected %s -> %s to be illegal", edge.from, edge.to)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []OrderStatus{OrderStatusDelivered, OrderStatusCancelled} {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []OrderStatus{OrderStatusPending, OrderStatusAccepted, OrderStatusPreparing, OrderStatusReady, OrderStatusPickedUp} {
		if s.Terminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}

func TestEventsForTransition_Routing(t *testing.T) {
	order := Order{ID: "order-1", OrderNumber: "ORD-TEST-1"}

	tests := []struct {
		target OrderStatus
		evType EventType
		roles  []Role
	}{
		{OrderStatusAccepted, EventSellerAccepted, []Role{RoleDelivery, RoleCustomer}},
		{OrderStatusPickedUp, EventDeliveryPicked, []Role{RoleCustomer}},
		{OrderStatusDelivered, EventDelivered, []Role{RoleCustomer, RoleSeller, RoleDelivery}},
		{OrderStatusCancelled, EventCancelled, []Role{RoleCustomer, RoleSeller}},
		{OrderStatusPreparing, "", nil},
		{OrderStatusReady, "", nil},
	}

	for _, tt := range tests {
		events := EventsForTransition(order, tt.target)
		if len(events) != len(tt.roles) {
			t.Errorf("%s: expected %d events, got %d", tt.target, len(tt.roles), len(events))
			continue
		}
		seen := map[Role]bool{}
		for _, e := range events {
			if e.Type != tt.evType {
				t.Errorf("%s: expected event type %s, got %s", tt.target, tt.evType, e.Type)
			}
			if e.OrderID != order.ID {
				t.Errorf("%s: event order id %s", tt.target, e.OrderID)
			}
			seen[e.RecipientRole] = true
		}
		for _, role := range tt.roles {
			if !seen[role] {
				t.Errorf("%s: missing recipient %s", tt.target, role)
			}
		}
	}
}

func TestNewOrderNumber_Format(t *testing.T) {
	n := NewOrderNumber()
	if !strings.HasPrefix(n, "ORD-") {
		t.Errorf("expected ORD- prefix, got %s", n)
	}
	if n != strings.ToUpper(n) {
		t.Errorf("expected uppercase, got %s", n)
	}
	if NewOrderNumber() == n {
		t.Error("expected successive order numbers to differ")
	}
}
