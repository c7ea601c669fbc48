package dispatch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hirosystems/chainhook/internal/telemetry"
)

// defaultQueueCapacity bounds how many pending payloads a worker holds for
// one predicate before it starts dropping the oldest (spec.md §4.4
// "Backpressure").
const defaultQueueCapacity = 128

// InterruptFunc marks a predicate Interrupted, recording why. The worker
// calls it when its queue overflows and when a delivery fails; the
// lifecycle controller owns
// persisting the transition.
type InterruptFunc func(ctx context.Context, predicateUUID string, reason string)

// worker delivers payloads for exactly one predicate, one at a time, in the
// order they were submitted. It never runs two Deliver calls concurrently
// — the Sink contract depends on that — and it never reorders queued work.
//
// Grounded on `pkg/workerpool.Process[T]`'s single-purpose worker
// goroutine, narrowed from "N workers share a queue" to "one worker owns
// exactly one predicate's queue" since delivery order per predicate must
// be preserved.
type worker struct {
	predicateUUID string
	sink          Sink
	sinkLabel     string
	logger        *zap.Logger
	metrics       *telemetry.Dispatcher
	interrupt     InterruptFunc

	queue chan ApplyRollbackPayload
	done  chan struct{}
}

func newWorker(predicateUUID string, sink Sink, sinkLabel string, logger *zap.Logger, metrics *telemetry.Dispatcher, interrupt InterruptFunc) *worker {
	return &worker{
		predicateUUID: predicateUUID,
		sink:          sink,
		sinkLabel:     sinkLabel,
		logger:        logger.Named("dispatch-worker").With(zap.String("predicate_uuid", predicateUUID)),
		metrics:       metrics,
		interrupt:     interrupt,
		queue:         make(chan ApplyRollbackPayload, defaultQueueCapacity),
		done:          make(chan struct{}),
	}
}

// Start launches the worker's delivery loop in its own goroutine and
// returns at once. The loop runs until ctx is canceled; payloads still
// queued then are not delivered.
func (w *worker) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *worker) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-w.queue:
			w.metrics.SetQueueDepth(w.predicateUUID, len(w.queue))
			start := time.Now()
			err := w.sink.Deliver(ctx, payload)
			w.metrics.ObserveDelivery(w.sinkLabel, err, time.Since(start))
			if err != nil {
				w.logger.Error("delivery failed", zap.Error(err))
				// Deliver has already exhausted the sink's own retry policy
				// (http_sink.go backs off 5xx/transport errors and only
				// returns once a 4xx is permanent or MaxElapsedTime trips);
				// any error reaching here is terminal for this payload, so
				// the predicate is no more trustworthy to keep streaming
				// silently than one that overflowed its queue.
				if w.interrupt != nil {
					w.interrupt(ctx, w.predicateUUID, "sink delivery failed: "+err.Error())
				}
			}
		}
	}
}

// Submit enqueues payload for delivery. If the queue is full, the oldest
// queued payload is dropped and the predicate is marked Interrupted
// (spec.md §4.4): a chainhook that cannot keep up with its own backlog is
// no longer trustworthy to keep streaming silently.
func (w *worker) Submit(ctx context.Context, payload ApplyRollbackPayload) {
	select {
	case w.queue <- payload:
		w.metrics.SetQueueDepth(w.predicateUUID, len(w.queue))
		return
	default:
	}

	select {
	case oldest := <-w.queue:
		_ = oldest
		w.metrics.ObserveDropped(w.predicateUUID)
		w.logger.Warn("queue overflow, dropping oldest payload and interrupting")
		if w.interrupt != nil {
			w.interrupt(ctx, w.predicateUUID, "dispatch queue overflow")
		}
		select {
		case w.queue <- payload:
		default:
			// Another producer raced us and refilled the slot; drop payload
			// too rather than block the caller.
			w.metrics.ObserveDropped(w.predicateUUID)
		}
	default:
		// Queue drained between the failed send and now; retry once.
		select {
		case w.queue <- payload:
		default:
			w.metrics.ObserveDropped(w.predicateUUID)
		}
	}
	w.metrics.SetQueueDepth(w.predicateUUID, len(w.queue))
}

// Stop blocks until the delivery loop has exited, which happens only once
// the ctx passed to Start is canceled and any in-flight Deliver returns.
func (w *worker) Stop() {
	<-w.done
}
