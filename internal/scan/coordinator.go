// Package scan drives historical predicate evaluation over the on-disk
// block index (spec.md §4.3 "Scan coordination"), handing off to live
// streaming once a predicate's scan catches up to tip-minus-reorg-window.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hirosystems/chainhook/internal/blockindex"
	"github.com/hirosystems/chainhook/internal/chainmodel"
	"github.com/hirosystems/chainhook/internal/dispatch"
	"github.com/hirosystems/chainhook/internal/evaluator"
	"github.com/hirosystems/chainhook/internal/predicate"
	"github.com/hirosystems/chainhook/internal/telemetry"
	"github.com/hirosystems/chainhook/pkg/workerpool"
)

// LifecycleReporter is the subset of internal/lifecycle.Controller the scan
// coordinator drives.
type LifecycleReporter interface {
	RecordApply(ctx context.Context, predicateUUID string, height uint64, matchCount int, now time.Time) (predicate.PredicateStatus, error)
	ScanCaughtUp(ctx context.Context, predicateUUID string, now time.Time) (predicate.PredicateStatus, error)
	Interrupt(ctx context.Context, predicateUUID string, reason string)
}

// DispatchSubmitter is the subset of internal/dispatch.Dispatcher the scan
// coordinator drives.
type DispatchSubmitter interface {
	Submit(ctx context.Context, p predicate.Predicate, isStreaming bool, apply, rollback []dispatch.BlockMatches) error
}

// Target describes one predicate's pending historical range: every height
// in [FromHeight, ToHeight] is evaluated in order. ToHeight is computed by
// the caller as min(end_block, tip-reorg_window) and never moves once a
// scan starts; catching all of the moving tip's later blocks is the live
// buffer's job, not a second scan pass.
type Target struct {
	Predicate  predicate.Predicate
	FromHeight uint64
	ToHeight   uint64
}

// Coordinator runs predicate scans bounded by workerCount concurrent
// in-flight scans per chain (spec.md §5
// "max_number_of_concurrent_{bitcoin,stacks}_scans"), adapted directly from
// the teacher's pkg/workerpool.Process cancel-on-first-error contract.
// Genuinely unexpected errors (block index I/O failures) propagate and
// cancel sibling scans in the same RunAll call; predicate-level problems
// never escape scanOne: missing index data interrupts the predicate via
// LifecycleReporter.Interrupt, and a mid-scan expiry just ends its scan.
type Coordinator struct {
	chain      chainmodel.Chain
	index      blockindex.BlockIndex
	lifecycle  LifecycleReporter
	dispatcher DispatchSubmitter
	metrics    *telemetry.Scan
	logger     *zap.Logger

	workerCount int

	mu      sync.Mutex
	buffers map[string]*predicateBuffer
}

// NewCoordinator constructs a scan Coordinator for chain. workerCount
// bounds how many predicate scans run concurrently.
func NewCoordinator(chain chainmodel.Chain, index blockindex.BlockIndex, lifecycle LifecycleReporter, dispatcher DispatchSubmitter, workerCount int, logger *zap.Logger) *Coordinator {
	if workerCount < 1 {
		workerCount = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		chain:       chain,
		index:       index,
		lifecycle:   lifecycle,
		dispatcher:  dispatcher,
		metrics:     telemetry.NewScan(),
		logger:      logger.Named("scan").With(zap.String("chain", string(chain))),
		workerCount: workerCount,
		buffers:     make(map[string]*predicateBuffer),
	}
}

// Ingest feeds a live ChainUpdate's Apply blocks to every predicate
// currently mid-scan on this chain. Predicates not mid-scan are untouched —
// they're the stream coordinator's responsibility. Rollbacks deep enough to
// touch a predicate's in-progress scan range are not expected (the scan
// boundary sits behind the pool's reorg window by construction); should one
// occur, the affected predicate is interrupted when its scan later resumes
// and RecordApply surfaces the inconsistency via the lifecycle store.
func (c *Coordinator) Ingest(update *chainmodel.ChainUpdate) {
	if update == nil || len(update.Apply) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for uuid, buf := range c.buffers {
		buf.append(update.Apply)
		c.metrics.SetBuffered(uuid, buf.len())
	}
}

// RunAll scans every target concurrently, bounded by workerCount.
func (c *Coordinator) RunAll(ctx context.Context, targets []Target) error {
	return workerpool.Process(ctx, c.workerCount, targets, c.scanOne, nil)
}

func (c *Coordinator) scanOne(ctx context.Context, target Target) error {
	uuid := target.Predicate.UUID
	buf := c.register(uuid)
	defer c.unregister(uuid)

	for height := target.FromHeight; height <= target.ToHeight; height++ {
		if err := ctx.Err(); err != nil {
			// Checkpointed: the lifecycle controller already persisted
			// last_evaluated_block through the most recent RecordApply, so a
			// future scan resumes from height, not target.FromHeight.
			return nil
		}

		block, err := c.index.BlockAt(ctx, c.chain, height)
		if errors.Is(err, blockindex.ErrNotFound) {
			c.logger.Warn("scan interrupted: block index has no data at height",
				zap.String("predicate_uuid", uuid), zap.Uint64("height", height))
			c.lifecycle.Interrupt(ctx, uuid, fmt.Sprintf("block index missing data at height %d", height))
			return nil
		}
		if err != nil {
			return fmt.Errorf("scan %s: read block %d: %w", uuid, height, err)
		}

		matches := evaluator.Evaluate(target.Predicate, *block)
		status, err := c.lifecycle.RecordApply(ctx, uuid, height, len(matches), block.Timestamp)
		if err != nil {
			return fmt.Errorf("scan %s: record apply at %d: %w", uuid, height, err)
		}
		if len(matches) > 0 {
			if err := c.dispatcher.Submit(ctx, target.Predicate, false, []dispatch.BlockMatches{{Block: *block, Matches: matches}}, nil); err != nil {
				c.logger.Warn("dispatch submit failed", zap.String("predicate_uuid", uuid), zap.Error(err))
			}
		}
		c.metrics.SetProgress(uuid, height, target.ToHeight-height)

		if status.Kind != predicate.StatusScanning {
			// Expired mid-scan (end_block reached or occurrence limit hit).
			return nil
		}
	}

	status, err := c.lifecycle.ScanCaughtUp(ctx, uuid, time.Now())
	if err != nil {
		return fmt.Errorf("scan %s: mark caught up: %w", uuid, err)
	}
	if status.Kind == predicate.StatusStreaming {
		c.replayBuffered(ctx, target.Predicate, buf, target.ToHeight)
	}
	c.metrics.ClearPredicate(uuid)
	return nil
}

// replayBuffered applies every block buffered during the scan that wasn't
// already covered by it, deduplicating by height so a block straddling the
// scan/stream boundary is never evaluated twice (spec.md §4.3 "buffered
// updates are applied after deduplicating against blocks already
// evaluated").
func (c *Coordinator) replayBuffered(ctx context.Context, p predicate.Predicate, buf *predicateBuffer, scannedThrough uint64) {
	for _, block := range buf.drain() {
		if block.ID.Index <= scannedThrough {
			continue
		}
		matches := evaluator.Evaluate(p, block)
		status, err := c.lifecycle.RecordApply(ctx, p.UUID, block.ID.Index, len(matches), block.Timestamp)
		if err != nil {
			c.logger.Error("replay buffered block failed", zap.String("predicate_uuid", p.UUID), zap.Error(err))
			return
		}
		if len(matches) > 0 {
			if err := c.dispatcher.Submit(ctx, p, true, []dispatch.BlockMatches{{Block: block, Matches: matches}}, nil); err != nil {
				c.logger.Warn("dispatch submit failed", zap.String("predicate_uuid", p.UUID), zap.Error(err))
			}
		}
		if status.Kind != predicate.StatusStreaming {
			return
		}
	}
}

func (c *Coordinator) register(uuid string) *predicateBuffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := &predicateBuffer{}
	c.buffers[uuid] = buf
	return buf
}

func (c *Coordinator) unregister(uuid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.buffers, uuid)
}
