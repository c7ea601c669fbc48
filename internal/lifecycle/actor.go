package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hirosystems/chainhook/internal/predicate"
	"github.com/hirosystems/chainhook/internal/predicate/store"
	"github.com/hirosystems/chainhook/internal/telemetry"
)

// actorQueueSize bounds how many lifecycle events can be queued behind a
// predicate's actor before callers block, mirroring internal/pool.Actor.
const actorQueueSize = 64

// command is the closed set of events an actor's main loop processes, one
// at a time, in arrival order.
type command struct {
	kind commandKind

	height      uint64
	matchCount  int
	tip         uint64
	reorgWindow uint64
	reason      string
	now         time.Time

	reply chan<- predicate.PredicateStatus
}

type commandKind int

const (
	cmdApply commandKind = iota
	cmdRollback
	cmdScanCaughtUp
	cmdConfirmBurial
	cmdInterrupt
	cmdSnapshot
)

// actor owns exactly one predicate's lifecycle state, processed by a single
// goroutine so concurrent apply/rollback/interrupt events from the stream
// and scan coordinators never race each other (spec.md §5 "predicate
// workers are per-predicate actors"). Grounded on internal/pool.Actor's
// command-channel shape.
type actor struct {
	predicate predicate.Predicate
	status    predicate.PredicateStatus

	store   *store.Store
	metrics *telemetry.Lifecycle
	logger  *zap.Logger

	queue chan command
	done  chan struct{}
}

func newActor(p predicate.Predicate, initial predicate.PredicateStatus, st *store.Store, metrics *telemetry.Lifecycle, logger *zap.Logger) *actor {
	return &actor{
		predicate: p,
		status:    initial,
		store:     st,
		metrics:   metrics,
		logger:    logger.Named("lifecycle-actor").With(zap.String("predicate_uuid", p.UUID)),
		queue:     make(chan command, actorQueueSize),
		done:      make(chan struct{}),
	}
}

func (a *actor) start(ctx context.Context) {
	go a.run(ctx)
}

func (a *actor) run(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-a.queue:
			next := a.handle(cmd)
			if cmd.reply != nil {
				select {
				case cmd.reply <- next:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (a *actor) handle(cmd command) predicate.PredicateStatus {
	before := a.status.Kind
	switch cmd.kind {
	case cmdApply:
		a.status = applyEvaluation(a.predicate, a.status, cmd.height, cmd.matchCount, cmd.now)
	case cmdRollback:
		a.status = revertOnRollback(a.status, cmd.height, cmd.matchCount)
	case cmdScanCaughtUp:
		a.status = scanCaughtUp(a.status, cmd.now)
	case cmdConfirmBurial:
		a.status = confirmBurial(a.status, cmd.tip, cmd.reorgWindow)
	case cmdInterrupt:
		a.status = interrupt(cmd.reason)
	case cmdSnapshot:
		return a.status
	}

	if a.status.Kind != before {
		a.metrics.ObserveTransition(string(before), string(a.status.Kind))
		a.logger.Info("predicate status transition", zap.String("from", string(before)), zap.String("to", string(a.status.Kind)))
	}
	if a.store != nil {
		if err := a.store.UpdateStatus(a.predicate.UUID, a.status); err != nil {
			a.logger.Error("persist status failed", zap.Error(err))
		}
	}
	return a.status
}

// send submits cmd and blocks for its reply, or returns the actor's last
// known status if ctx is canceled or the actor already stopped.
func (a *actor) send(ctx context.Context, cmd command) predicate.PredicateStatus {
	reply := make(chan predicate.PredicateStatus, 1)
	cmd.reply = reply

	select {
	case a.queue <- cmd:
	case <-ctx.Done():
		return a.status
	case <-a.done:
		return a.status
	}

	select {
	case s := <-reply:
		return s
	case <-ctx.Done():
		return a.status
	}
}

func (a *actor) stop() {
	<-a.done
}
