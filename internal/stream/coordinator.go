// Package stream fans a chain's live ChainUpdates out to every predicate
// currently Streaming for that chain, evaluates each one, and hands
// matches to the dispatcher (spec.md §4.3/§5).
package stream

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hirosystems/chainhook/internal/chainmodel"
	"github.com/hirosystems/chainhook/internal/dispatch"
	"github.com/hirosystems/chainhook/internal/evaluator"
	"github.com/hirosystems/chainhook/internal/predicate"
	"github.com/hirosystems/chainhook/internal/telemetry"
)

// PredicateSource supplies the set of predicates currently eligible for
// live evaluation on chain. Implemented by the predicate store filtered
// through the lifecycle controller's view of current status.
type PredicateSource interface {
	StreamingPredicates(chain chainmodel.Chain) ([]predicate.Predicate, error)
}

// LifecycleReporter is the subset of internal/lifecycle.Controller the
// coordinator drives: counter bookkeeping per applied and rolled-back
// block. The coordinator runs no burial checks (ConfirmBurial).
type LifecycleReporter interface {
	RecordApply(ctx context.Context, predicateUUID string, height uint64, matchCount int, now time.Time) (predicate.PredicateStatus, error)
	RecordRollback(ctx context.Context, predicateUUID string, height uint64, matchCount int) (predicate.PredicateStatus, error)
}

// DispatchSubmitter is the subset of internal/dispatch.Dispatcher the
// coordinator drives.
type DispatchSubmitter interface {
	Submit(ctx context.Context, p predicate.Predicate, isStreaming bool, apply, rollback []dispatch.BlockMatches) error
}

// updateQueueSize bounds how many ChainUpdates can be queued for a chain
// before Ingest blocks its caller (the pool actor's own Submit caller).
const updateQueueSize = 16

// Coordinator is the single live-evaluation entry point for one chain. It
// owns a goroutine reading a bounded queue of ChainUpdates in emission
// order — the pool guarantees that order, the coordinator never reorders
// it — grounded on internal/pool.Actor's single-consumer-goroutine shape.
type Coordinator struct {
	chain      chainmodel.Chain
	predicates PredicateSource
	lifecycle  LifecycleReporter
	dispatcher DispatchSubmitter
	metrics    *telemetry.Evaluator
	logger     *zap.Logger

	updates chan *chainmodel.ChainUpdate
	done    chan struct{}
}

// NewCoordinator constructs a Coordinator for chain. Start must be called
// before Ingest is used.
func NewCoordinator(chain chainmodel.Chain, predicates PredicateSource, lifecycle LifecycleReporter, dispatcher DispatchSubmitter, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		chain:      chain,
		predicates: predicates,
		lifecycle:  lifecycle,
		dispatcher: dispatcher,
		metrics:    telemetry.NewEvaluator(chain),
		logger:     logger.Named("stream").With(zap.String("chain", string(chain))),
		updates:    make(chan *chainmodel.ChainUpdate, updateQueueSize),
		done:       make(chan struct{}),
	}
}

// Start launches the coordinator's consume loop.
func (c *Coordinator) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Coordinator) run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case update := <-c.updates:
			c.process(ctx, update)
		}
	}
}

// Ingest queues update for evaluation, blocking until there is room or ctx
// is canceled. Callers pass the ChainUpdate returned by the chain's
// internal/pool.Actor.Submit, in the order Submit returned it.
func (c *Coordinator) Ingest(ctx context.Context, update *chainmodel.ChainUpdate) error {
	if update == nil || update.IsEmpty() {
		return nil
	}
	select {
	case c.updates <- update:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop waits for the consume loop to exit once its context is canceled.
func (c *Coordinator) Stop() {
	<-c.done
}

func (c *Coordinator) process(ctx context.Context, update *chainmodel.ChainUpdate) {
	predicates, err := c.predicates.StreamingPredicates(c.chain)
	if err != nil {
		c.logger.Error("list streaming predicates failed", zap.Error(err))
		return
	}

	for _, p := range predicates {
		apply := c.evaluateApply(ctx, p, update.Apply)
		rollback := c.evaluateRollback(ctx, p, update.Rollback)
		if len(apply) == 0 && len(rollback) == 0 {
			continue
		}
		if err := c.dispatcher.Submit(ctx, p, true, apply, rollback); err != nil {
			c.logger.Warn("dispatch submit failed", zap.String("predicate_uuid", p.UUID), zap.Error(err))
		}
	}
}

// evaluateApply evaluates p against every block joining the canonical
// chain, in base-to-tip order, stopping early if an evaluation transitions
// p out of Streaming (spec.md §4.3: a predicate that expires mid-batch
// stops being evaluated for the remainder of the batch).
func (c *Coordinator) evaluateApply(ctx context.Context, p predicate.Predicate, blocks []chainmodel.Block) []dispatch.BlockMatches {
	var out []dispatch.BlockMatches
	for _, block := range blocks {
		matches := evaluator.TimedEvaluate(c.metrics, p, block)
		status, err := c.lifecycle.RecordApply(ctx, p.UUID, block.ID.Index, len(matches), block.Timestamp)
		if err != nil {
			c.logger.Error("record apply failed", zap.String("predicate_uuid", p.UUID), zap.Error(err))
			return out
		}
		if len(matches) > 0 {
			out = append(out, dispatch.BlockMatches{Block: block, Matches: matches})
		}
		if status.Kind != predicate.StatusStreaming {
			break
		}
	}
	return out
}

// evaluateRollback evaluates p against every block leaving the canonical
// chain, in tip-to-base order (the order ChainUpdate.Rollback is already
// in), un-counting each block's matches from p's lifecycle counters.
func (c *Coordinator) evaluateRollback(ctx context.Context, p predicate.Predicate, blocks []chainmodel.Block) []dispatch.BlockMatches {
	var out []dispatch.BlockMatches
	for _, block := range blocks {
		matches := evaluator.Evaluate(p, block)
		if _, err := c.lifecycle.RecordRollback(ctx, p.UUID, block.ID.Index, len(matches)); err != nil {
			c.logger.Error("record rollback failed", zap.String("predicate_uuid", p.UUID), zap.Error(err))
			return out
		}
		if len(matches) > 0 {
			out = append(out, dispatch.BlockMatches{Block: block, Matches: matches})
		}
	}
	return out
}
