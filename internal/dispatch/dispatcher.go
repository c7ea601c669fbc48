package dispatch

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hirosystems/chainhook/internal/predicate"
	"github.com/hirosystems/chainhook/internal/telemetry"
)

// sinkLabel identifies a Sink implementation for telemetry labels.
func sinkLabel(s Sink) string {
	switch s.(type) {
	case *HTTPSink:
		return "http"
	case *FileSink:
		return "file"
	default:
		return "unknown"
	}
}

// Dispatcher owns one worker per registered predicate and routes rendered
// payloads to it. It is the entry point the stream and scan coordinators
// call once an evaluation produces matches worth delivering.
//
// Grounded on the teacher's pattern of a long-lived component holding a
// map of per-key workers guarded by a mutex (`internal/service`'s
// follower-ingestor registry of per-chain ingesters), narrowed here to
// per-predicate dispatch workers.
type Dispatcher struct {
	logger  *zap.Logger
	metrics *telemetry.Dispatcher

	mu      sync.Mutex
	workers map[string]*dispatchEntry
}

type dispatchEntry struct {
	worker *worker
	cancel context.CancelFunc
}

// NewDispatcher constructs an empty Dispatcher. Each predicate's interrupt
// callback is supplied later, to Register.
func NewDispatcher(logger *zap.Logger, metrics *telemetry.Dispatcher) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = telemetry.NewDispatcher()
	}
	return &Dispatcher{
		logger:  logger.Named("dispatcher"),
		metrics: metrics,
		workers: make(map[string]*dispatchEntry),
	}
}

// Register starts a worker for predicateUUID delivering to sink. Calling
// Register again for an already-registered UUID replaces its worker,
// stopping the old one first.
func (d *Dispatcher) Register(ctx context.Context, predicateUUID string, sink Sink, interrupt InterruptFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.workers[predicateUUID]; ok {
		existing.cancel()
		existing.worker.Stop()
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w := newWorker(predicateUUID, sink, sinkLabel(sink), d.logger, d.metrics, interrupt)
	w.Start(workerCtx)
	d.workers[predicateUUID] = &dispatchEntry{worker: w, cancel: cancel}
}

// Submit renders payload from p and the collected matches and enqueues it
// on p's worker. It enqueues nothing, logs a warning and returns an error
// if the predicate has no registered worker — this should not happen once Register precedes every
// Submit, but a late-arriving evaluation racing a Deregister is possible.
func (d *Dispatcher) Submit(ctx context.Context, p predicate.Predicate, isStreaming bool, apply, rollback []BlockMatches) error {
	d.mu.Lock()
	entry, ok := d.workers[p.UUID]
	d.mu.Unlock()
	if !ok {
		d.logger.Warn("submit for unregistered predicate, dropping", zap.String("predicate_uuid", p.UUID))
		return fmt.Errorf("dispatch: no worker registered for predicate %s", p.UUID)
	}

	payload := RenderPayload(p, isStreaming, apply, rollback)
	entry.worker.Submit(ctx, payload)
	return nil
}

// Deregister stops and removes predicateUUID's worker, if any.
func (d *Dispatcher) Deregister(predicateUUID string) {
	d.mu.Lock()
	entry, ok := d.workers[predicateUUID]
	delete(d.workers, predicateUUID)
	d.mu.Unlock()

	if ok {
		entry.cancel()
		entry.worker.Stop()
	}
}

// Shutdown cancels every worker's context and waits for its loop to exit;
// payloads still queued are not delivered.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	entries := make([]*dispatchEntry, 0, len(d.workers))
	for uuid, entry := range d.workers {
		entries = append(entries, entry)
		delete(d.workers, uuid)
	}
	d.mu.Unlock()

	for _, entry := range entries {
		entry.cancel()
		entry.worker.Stop()
	}
}
