package port

import (
	"context"

	"github.com/pappertech/dispatch-core/internal/core/domain"
)

// AuditSink is the durable append log for security and lifecycle events.
// Writes are side effects only: a sink failure must never alter a decision
// already made by the caller.
type AuditSink interface {
	Record(ctx context.Context, rec domain.AuditRecord) error
}
