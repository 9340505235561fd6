package port

import (
	"context"

	"github.com/pappertech/dispatch-core/internal/core/domain"
)

type OrderRepository interface {
	// CreateOrder persists a new order, its items, and its seed history entry
	// in one transaction.
	CreateOrder(ctx context.Context, order domain.Order) error

	// GetOrder retrieves an order with items and history ordered oldest-first.
	// Returns domain.ErrOrderNotFound on an unknown id.
	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	// UpdateOrderStatus conditionally moves the order from expected to
	// entry.Status and appends entry, in one transaction. The update applies
	// only if the order still holds expected at commit time; a lost race
	// yields *domain.ConflictError, an unknown id domain.ErrOrderNotFound.
	// deliveryPartnerID is written only when non-empty, and only if the
	// column is still unset.
	UpdateOrderStatus(ctx context.Context, id string, expected domain.OrderStatus, entry domain.StatusHistoryEntry, deliveryPartnerID string) error
}
