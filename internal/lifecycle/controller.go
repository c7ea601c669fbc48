package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hirosystems/chainhook/internal/predicate"
	"github.com/hirosystems/chainhook/internal/predicate/store"
	"github.com/hirosystems/chainhook/internal/telemetry"
)

// Controller owns one actor per registered predicate and is the single
// entry point the scan and stream coordinators use to report evaluation
// results and reorgs, and the one the dispatcher calls back into on queue
// overflow (spec.md §4.3).
type Controller struct {
	store   *store.Store
	metrics *telemetry.Lifecycle
	logger  *zap.Logger

	mu     sync.Mutex
	actors map[string]*actorEntry
}

type actorEntry struct {
	actor  *actor
	cancel context.CancelFunc
}

// NewController constructs a Controller. st may be nil in tests that don't
// need persistence; metrics/logger default to no-ops when nil.
func NewController(st *store.Store, metrics *telemetry.Lifecycle, logger *zap.Logger) *Controller {
	if metrics == nil {
		metrics = telemetry.NewLifecycle()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		store:   st,
		metrics: metrics,
		logger:  logger.Named("lifecycle"),
		actors:  make(map[string]*actorEntry),
	}
}

// Register starts an actor for p, seeded with its initial status given the
// chain's current tip (spec.md §4.3 rows 1-2), and returns that status.
// Register does not itself persist p's document — that is the caller's
// (internal/api's) job via predicate/store.Store.Register — but it does
// persist the computed initial status.
func (c *Controller) Register(ctx context.Context, p predicate.Predicate, tip uint64) predicate.PredicateStatus {
	initial := initialStatus(p, tip)

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.actors[p.UUID]; ok {
		existing.cancel()
		existing.actor.stop()
	}
	actorCtx, cancel := context.WithCancel(ctx)
	a := newActor(p, initial, c.store, c.metrics, c.logger)
	a.start(actorCtx)
	c.actors[p.UUID] = &actorEntry{actor: a, cancel: cancel}

	if c.store != nil {
		if err := c.store.UpdateStatus(p.UUID, initial); err != nil {
			c.logger.Error("persist initial status failed", zap.String("predicate_uuid", p.UUID), zap.Error(err))
		}
	}
	return initial
}

// Deregister stops predicateUUID's actor and removes it from the
// controller. It is a no-op if the predicate has no actor.
func (c *Controller) Deregister(predicateUUID string) {
	c.mu.Lock()
	entry, ok := c.actors[predicateUUID]
	delete(c.actors, predicateUUID)
	c.mu.Unlock()
	if ok {
		entry.cancel()
		entry.actor.stop()
	}
}

func (c *Controller) lookup(predicateUUID string) (*actor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.actors[predicateUUID]
	if !ok {
		return nil, fmt.Errorf("lifecycle: no actor for predicate %s", predicateUUID)
	}
	return entry.actor, nil
}

// RecordApply folds one block's evaluation result for predicateUUID into
// its lifecycle status and returns the resulting status. now should be the
// block's timestamp or time of evaluation.
func (c *Controller) RecordApply(ctx context.Context, predicateUUID string, height uint64, matchCount int, now time.Time) (predicate.PredicateStatus, error) {
	a, err := c.lookup(predicateUUID)
	if err != nil {
		return predicate.PredicateStatus{}, err
	}
	return a.send(ctx, command{kind: cmdApply, height: height, matchCount: matchCount, now: now}), nil
}

// RecordRollback folds a rollback of the block at height into
// predicateUUID's status, undoing the counters a prior RecordApply call
// added for it.
func (c *Controller) RecordRollback(ctx context.Context, predicateUUID string, height uint64, matchCount int) (predicate.PredicateStatus, error) {
	a, err := c.lookup(predicateUUID)
	if err != nil {
		return predicate.PredicateStatus{}, err
	}
	return a.send(ctx, command{kind: cmdRollback, height: height, matchCount: matchCount}), nil
}

// ScanCaughtUp transitions predicateUUID from Scanning to Streaming once
// its scan worker has processed every block up to the live tip.
func (c *Controller) ScanCaughtUp(ctx context.Context, predicateUUID string, now time.Time) (predicate.PredicateStatus, error) {
	a, err := c.lookup(predicateUUID)
	if err != nil {
		return predicate.PredicateStatus{}, err
	}
	return a.send(ctx, command{kind: cmdScanCaughtUp, now: now}), nil
}

// ConfirmBurial checks whether predicateUUID's UnconfirmedExpiration has
// been buried beyond reorgWindow blocks behind tip, transitioning it to
// ConfirmedExpiration if so. Neither the stream nor the scan coordinator
// calls it, so live ingestion alone leaves an expired predicate in
// UnconfirmedExpiration.
func (c *Controller) ConfirmBurial(ctx context.Context, predicateUUID string, tip, reorgWindow uint64) (predicate.PredicateStatus, error) {
	a, err := c.lookup(predicateUUID)
	if err != nil {
		return predicate.PredicateStatus{}, err
	}
	return a.send(ctx, command{kind: cmdConfirmBurial, tip: tip, reorgWindow: reorgWindow}), nil
}

// Interrupt transitions predicateUUID to Interrupted, regardless of its
// current status (spec.md §4.3 "any → fatal → Interrupted"). Wired as the
// dispatcher's InterruptFunc, and called by the scan coordinator when the
// block index has no data at a height it needs.
func (c *Controller) Interrupt(ctx context.Context, predicateUUID string, reason string) {
	a, err := c.lookup(predicateUUID)
	if err != nil {
		c.logger.Warn("interrupt for unknown predicate", zap.String("predicate_uuid", predicateUUID), zap.String("reason", reason))
		return
	}
	a.send(ctx, command{kind: cmdInterrupt, reason: reason})
}

// Status returns predicateUUID's current status.
func (c *Controller) Status(ctx context.Context, predicateUUID string) (predicate.PredicateStatus, error) {
	a, err := c.lookup(predicateUUID)
	if err != nil {
		return predicate.PredicateStatus{}, err
	}
	return a.send(ctx, command{kind: cmdSnapshot}), nil
}

// Shutdown cancels every predicate's actor context and waits for each
// actor's loop to exit; commands it has not yet handled are abandoned.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	entries := make([]*actorEntry, 0, len(c.actors))
	for uuid, entry := range c.actors {
		entries = append(entries, entry)
		delete(c.actors, uuid)
	}
	c.mu.Unlock()

	for _, entry := range entries {
		entry.cancel()
		entry.actor.stop()
	}
}
