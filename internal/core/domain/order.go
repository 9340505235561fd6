package domain

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusAccepted  OrderStatus = "ACCEPTED"
	OrderStatusPreparing OrderStatus = "PREPARING"
	OrderStatusReady     OrderStatus = "READY"
	OrderStatusPickedUp  OrderStatus = "PICKED_UP"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// legalTransitions is the full lifecycle graph. Any edge not present here is
// rejected with InvalidTransitionError regardless of who asks.
var legalTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusAccepted, OrderStatusCancelled},
	OrderStatusAccepted:  {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing: {OrderStatusReady, OrderStatusCancelled},
	OrderStatusReady:     {OrderStatusPickedUp, OrderStatusCancelled},
	OrderStatusPickedUp:  {OrderStatusDelivered},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusAccepted, OrderStatusPreparing,
		OrderStatusReady, OrderStatusPickedUp, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, next := range legalTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// StatusHistoryEntry is appended once per committed transition and never
// mutated afterwards.
type StatusHistoryEntry struct {
	Status    OrderStatus
	Note      string
	CreatedAt time.Time
}

type OrderItem struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal // catalog price snapshot at creation time
}

type Order struct {
	ID                string
	OrderNumber       string
	CustomerID        string
	SellerID          string
	DeliveryPartnerID string // empty until READY -> PICKED_UP
	Status            OrderStatus
	TotalAmount       decimal.Decimal
	Items             []OrderItem
	StatusHistory     []StatusHistoryEntry
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DraftItem is a client-supplied line item. Prices are never taken from the
// client; they are resolved against the catalog during Create.
type DraftItem struct {
	ProductID string
	Quantity  int
}

type OrderDraft struct {
	CustomerID    string
	AddressID     string
	PaymentMethod string
	Items         []DraftItem
}

// Product is the catalog snapshot the lifecycle manager prices against.
type Product struct {
	ID       string
	SellerID string
	Name     string
	Price    decimal.Decimal
}

// NewOrderNumber produces a human-readable order number of the form
// ORD-<base36 millis>-<5 base36 chars>.
func NewOrderNumber() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, 5)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return strings.ToUpper(fmt.Sprintf("ORD-%s-%s", ts, b))
}
