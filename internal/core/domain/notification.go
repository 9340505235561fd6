package domain

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleSeller   Role = "SELLER"
	RoleDelivery Role = "DELIVERY"
	RoleAdmin    Role = "ADMIN"
)

type EventType string

const (
	EventOrderPlaced    EventType = "ORDER_PLACED"
	EventSellerAccepted EventType = "SELLER_ACCEPTED"
	EventDeliveryPicked EventType = "DELIVERY_PICKED"
	EventDelivered      EventType = "DELIVERED"
	EventCancelled      EventType = "CANCELLED"
)

// NotificationEvent is the committed output of a lifecycle mutation. It is
// advisory: the order record stays the sole source of truth and is never
// reconstructed from bus traffic.
type NotificationEvent struct {
	Type          EventType
	OrderID       string
	RecipientRole Role
	Message       string
	Timestamp     time.Time
}

// EventsForCreation returns the fan-out for a freshly placed order.
func EventsForCreation(o Order) []NotificationEvent {
	now := time.Now()
	return []NotificationEvent{{
		Type:          EventOrderPlaced,
		OrderID:       o.ID,
		RecipientRole: RoleSeller,
		Message:       fmt.Sprintf("New order received: %s. Accept now to start preparing.", o.OrderNumber),
		Timestamp:     now,
	}}
}

// EventsForTransition returns the fan-out for a committed transition into
// target. Intermediate kitchen states (PREPARING, READY) produce no events.
func EventsForTransition(o Order, target OrderStatus) []NotificationEvent {
	now := time.Now()
	event := func(t EventType, role Role, msg string) NotificationEvent {
		return NotificationEvent{Type: t, OrderID: o.ID, RecipientRole: role, Message: msg, Timestamp: now}
	}

	switch target {
	case OrderStatusAccepted:
		return []NotificationEvent{
			event(EventSellerAccepted, RoleDelivery,
				fmt.Sprintf("Order ready for pickup soon: %s. Navigate to store.", o.OrderNumber)),
			event(EventSellerAccepted, RoleCustomer,
				fmt.Sprintf("Seller has accepted your order %s. It's being prepared.", o.OrderNumber)),
		}
	case OrderStatusPickedUp:
		return []NotificationEvent{
			event(EventDeliveryPicked, RoleCustomer,
				fmt.Sprintf("Your order %s is out for delivery.", o.OrderNumber)),
		}
	case OrderStatusDelivered:
		return []NotificationEvent{
			event(EventDelivered, RoleCustomer,
				fmt.Sprintf("Order %s delivered. Enjoy!", o.OrderNumber)),
			event(EventDelivered, RoleSeller,
				fmt.Sprintf("Payout for %s has been credited.", o.OrderNumber)),
			event(EventDelivered, RoleDelivery, "Trip completed. Check your earnings."),
		}
	case OrderStatusCancelled:
		return []NotificationEvent{
			event(EventCancelled, RoleCustomer,
				fmt.Sprintf("Order %s has been cancelled.", o.OrderNumber)),
			event(EventCancelled, RoleSeller,
				fmt.Sprintf("Order %s has been cancelled.", o.OrderNumber)),
		}
	}
	return nil
}
