package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pappertech/dispatch-core/internal/core/domain"
	"github.com/pappertech/dispatch-core/internal/metrics"
	"github.com/pappertech/dispatch-core/internal/port"
)

// LifecycleManager is the single writer of order status and history. All
// status changes go through its conditional-update path; nothing else may
// touch those columns.
type LifecycleManager struct {
	orders  port.OrderRepository
	catalog port.ProductCatalog
	logger  *zap.Logger
}

func NewLifecycleManager(orders port.OrderRepository, catalog port.ProductCatalog, logger *zap.Logger) *LifecycleManager {
	return &LifecycleManager{orders: orders, catalog: catalog, logger: logger}
}

// Create validates the draft, prices it against the catalog snapshot, and
// persists the order in PENDING with its seed history entry. The returned
// events must be published by the caller only after this call has returned,
// i.e. after the write is committed.
func (m *LifecycleManager) Create(ctx context.Context, draft domain.OrderDraft) (*domain.Order, []domain.NotificationEvent, error) {
	if len(draft.Items) == 0 {
		return nil, nil, domain.Validationf("order must contain at least one item")
	}
	if draft.CustomerID == "" {
		return nil, nil, domain.Validationf("customerId is required")
	}
	ids := make([]string, 0, len(draft.Items))
	for _, item := range draft.Items {
		if item.ProductID == "" || item.Quantity <= 0 {
			return nil, nil, domain.Validationf("each item needs a productId and a positive quantity")
		}
		ids = append(ids, item.ProductID)
	}

	products, err := m.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve products: %w", err)
	}

	// Prices always come from the catalog snapshot, never from the client.
	total := decimal.Zero
	items := make([]domain.OrderItem, 0, len(draft.Items))
	sellerID := ""
	for _, item := range draft.Items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, nil, fmt.Errorf("product %s: %w", item.ProductID, domain.ErrProductNotFound)
		}
		if sellerID == "" {
			sellerID = product.SellerID
		}
		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		items = append(items, domain.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
		})
	}

	now := time.Now()
	order := domain.Order{
		ID:          uuid.NewString(),
		OrderNumber: domain.NewOrderNumber(),
		CustomerID:  draft.CustomerID,
		SellerID:    sellerID,
		Status:      domain.OrderStatusPending,
		TotalAmount: total,
		Items:       items,
		StatusHistory: []domain.StatusHistoryEntry{{
			Status:    domain.OrderStatusPending,
			Note:      "Order placed",
			CreatedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.orders.CreateOrder(ctx, order); err != nil {
		return nil, nil, fmt.Errorf("create order: %w", err)
	}

	metrics.OrderTransitionsTotal.WithLabelValues(string(domain.OrderStatusPending)).Inc()
	m.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("total", total.String()))

	return &order, domain.EventsForCreation(order), nil
}

// Transition conditionally moves the order from expected to target. It
// succeeds only if the order still holds expected at commit time; losing the
// race yields *domain.ConflictError even when the edge itself is legal.
// actorID identifies the caller and is required for READY -> PICKED_UP, where
// it becomes the order's delivery partner.
func (m *LifecycleManager) Transition(ctx context.Context, orderID string, target, expected domain.OrderStatus, actorID, note string) (*domain.Order, []domain.NotificationEvent, error) {
	if !target.Valid() || !expected.Valid() {
		return nil, nil, domain.Validationf("unknown order status")
	}
	if !expected.CanTransitionTo(target) {
		return nil, nil, &domain.InvalidTransitionError{From: expected, To: target}
	}

	deliveryPartnerID := ""
	if target == domain.OrderStatusPickedUp {
		if actorID == "" {
			return nil, nil, domain.Validationf("picking up an order requires the delivery partner's identity")
		}
		deliveryPartnerID = actorID
	}

	if note == "" {
		note = fmt.Sprintf("Order status changed to %s", target)
	}
	entry := domain.StatusHistoryEntry{
		Status:    target,
		Note:      note,
		CreatedAt: time.Now(),
	}

	if err := m.orders.UpdateOrderStatus(ctx, orderID, expected, entry, deliveryPartnerID); err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			metrics.TransitionConflictsTotal.Inc()
			m.logger.Info("transition lost optimistic lock",
				zap.String("order_id", orderID),
				zap.String("expected", string(expected)),
				zap.String("target", string(target)))
		}
		return nil, nil, err
	}

	order, err := m.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("reload order %s: %w", orderID, err)
	}

	metrics.OrderTransitionsTotal.WithLabelValues(string(target)).Inc()
	m.logger.Info("order transitioned",
		zap.String("order_id", orderID),
		zap.String("from", string(expected)),
		zap.String("to", string(target)))

	return order, domain.EventsForTransition(*order, target), nil
}

// Cancel moves the order to CANCELLED from its current status. The lifecycle
// graph governs from where that is allowed; in particular an order already
// picked up can only complete.
func (m *LifecycleManager) Cancel(ctx context.Context, orderID, reason, actorID string) (*domain.Order, []domain.NotificationEvent, error) {
	order, err := m.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	note := ""
	if reason != "" {
		note = "Cancelled: " + reason
	}
	return m.Transition(ctx, orderID, domain.OrderStatusCancelled, order.Status, actorID, note)
}

// Get returns the order with its full history.
func (m *LifecycleManager) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	return m.orders.GetOrder(ctx, orderID)
}
