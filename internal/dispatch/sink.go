package dispatch

import "context"

// Sink delivers a single rendered payload. Implementations must be safe to
// call from one goroutine at a time — the per-predicate worker guarantees
// strict FIFO, single-flight delivery, never concurrent calls.
type Sink interface {
	Deliver(ctx context.Context, payload ApplyRollbackPayload) error
}
