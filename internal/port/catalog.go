package port

import (
	"context"

	"github.com/pappertech/dispatch-core/internal/core/domain"
)

// ProductCatalog is the read-only view of the (out of scope) catalog service.
// The lifecycle manager uses it for price snapshots only.
type ProductCatalog interface {
	// GetProducts resolves the given ids. Missing ids are simply absent from
	// the returned map; the caller decides whether that is an error.
	GetProducts(ctx context.Context, ids []string) (map[string]domain.Product, error)
}
