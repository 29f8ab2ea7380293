package queue

import (
	"context"

	"github.com/de-tools/compliance-atlas/pkg/models/domain"
)

// Handler processes one unit of work. Returning an error requests
// redelivery; delivery is at-least-once, so handlers must be safe to
// repeat.
type Handler func(ctx context.Context, unit domain.UnitOfWork) error

// Transport carries units of work from the dispatcher to workers. Retry
// policy, visibility timeouts and dead-lettering belong to the transport,
// not to the workers consuming it.
type Transport interface {
	Publish(ctx context.Context, unit domain.UnitOfWork) error
	// Consume blocks, delivering units to the handler with the given
	// concurrency, until ctx is cancelled.
	Consume(ctx context.Context, concurrency int, handler Handler) error
}
