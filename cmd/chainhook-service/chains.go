package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hirosystems/chainhook/internal/adapter"
	"github.com/hirosystems/chainhook/internal/blockindex"
	"github.com/hirosystems/chainhook/internal/chainmodel"
	"github.com/hirosystems/chainhook/internal/dispatch"
	"github.com/hirosystems/chainhook/internal/lifecycle"
	"github.com/hirosystems/chainhook/internal/pool"
	"github.com/hirosystems/chainhook/internal/scan"
	"github.com/hirosystems/chainhook/internal/stream"
	"github.com/hirosystems/chainhook/internal/telemetry"
)

// blockIndex is what this package's ingest loop needs from the block
// index: blockindex.BlockIndex's read side (which scan.Coordinator also
// takes) plus the write side only the live ingest path uses.
type blockIndex interface {
	blockindex.BlockIndex
	InsertBlocks(ctx context.Context, chain chainmodel.Chain, blocks []chainmodel.Block) error
}

// chainRuntime holds one chain's adapter-to-pool-to-stream/scan wiring.
type chainRuntime struct {
	chain  chainmodel.Chain
	actor  *pool.Actor
	stream *stream.Coordinator
	scan   *scan.Coordinator
}

type runtimes struct {
	bitcoin *chainRuntime
	stacks  *chainRuntime
}

func (r *runtimes) stop() {
	r.bitcoin.stream.Stop()
	r.stacks.stream.Stop()
}

// startChains wires and starts both chains' adapter/pool/stream/scan
// components. Each chain's ingest loop runs in its own goroutine, rooted at
// ctx, per SPEC_FULL.md's "one adapter goroutine per chain".
func startChains(
	ctx context.Context,
	cfg config,
	logger *zap.Logger,
	index blockIndex,
	lifecycleController *lifecycle.Controller,
	predicates *lifecycle.StoreSource,
	dispatcher *dispatch.Dispatcher,
	bitcoinAdapter adapter.Adapter,
	stacksAdapter adapter.Adapter,
) (*runtimes, error) {
	bitcoinRuntime, err := startChain(ctx, chainmodel.Bitcoin, bitcoinAdapter, cfg.ScanWorkersBitcoin, index, lifecycleController, predicates, dispatcher, logger)
	if err != nil {
		return nil, fmt.Errorf("start bitcoin chain: %w", err)
	}
	stacksRuntime, err := startChain(ctx, chainmodel.Stacks, stacksAdapter, cfg.ScanWorkersStacks, index, lifecycleController, predicates, dispatcher, logger)
	if err != nil {
		return nil, fmt.Errorf("start stacks chain: %w", err)
	}
	return &runtimes{bitcoin: bitcoinRuntime, stacks: stacksRuntime}, nil
}

func startChain(
	ctx context.Context,
	chain chainmodel.Chain,
	ad adapter.Adapter,
	scanWorkers int,
	index blockIndex,
	lifecycleController *lifecycle.Controller,
	predicates *lifecycle.StoreSource,
	dispatcher *dispatch.Dispatcher,
	logger *zap.Logger,
) (*chainRuntime, error) {
	chainLogger := logger.Named("chain").With(zap.String("chain", string(chain)))

	notify, err := ad.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	root, next, err := bootstrapRoot(ctx, ad, notify)
	if err != nil {
		return nil, fmt.Errorf("bootstrap root block: %w", err)
	}

	p := pool.New(pool.Config{Chain: chain}, root, chainLogger, telemetry.NewPool(chain))
	actor := pool.NewActor(ctx, p, chainLogger)

	streamCoord := stream.NewCoordinator(chain, predicates, lifecycleController, dispatcher, chainLogger)
	streamCoord.Start(ctx)

	scanCoord := scan.NewCoordinator(chain, index, lifecycleController, dispatcher, scanWorkers, chainLogger)

	runtime := &chainRuntime{chain: chain, actor: actor, stream: streamCoord, scan: scanCoord}

	go ingestLoop(ctx, chain, ad, actor, index, streamCoord, scanCoord, next, notify, chainLogger)

	return runtime, nil
}

// bootstrapRoot resolves the block a chain's Pool is seeded with. It tries
// the adapter's current tip first (the Bitcoin RPC adapter always has one);
// for a push-only source with nothing received yet (the Stacks event
// observer at cold start) it waits for the first notify signal and retries,
// treating that first pushed block as the pool's root rather than its
// first evaluated apply — acceptable since a freshly started deployment has
// no predicates registered to miss it.
func bootstrapRoot(ctx context.Context, ad adapter.Adapter, notify <-chan struct{}) (chainmodel.RawBlock, uint64, error) {
	if root, next, err := tryBootstrap(ctx, ad); err == nil {
		return root, next, nil
	}

	select {
	case <-notify:
	case <-ctx.Done():
		return chainmodel.RawBlock{}, 0, ctx.Err()
	}
	return tryBootstrap(ctx, ad)
}

func tryBootstrap(ctx context.Context, ad adapter.Adapter) (chainmodel.RawBlock, uint64, error) {
	tip, err := ad.Tip(ctx)
	if err != nil {
		return chainmodel.RawBlock{}, 0, err
	}
	block, err := ad.FetchBlock(ctx, tip)
	if err != nil {
		return chainmodel.RawBlock{}, 0, err
	}
	return *block, tip + 1, nil
}

// ingestLoop fetches sequential heights from ad as notify fires, submits
// each to actor, and on a non-empty ChainUpdate writes the newly applied
// blocks to the durable index and hands the update to both the stream
// coordinator (live evaluation) and the scan coordinator (buffering for any
// predicate still mid-scan).
func ingestLoop(
	ctx context.Context,
	chain chainmodel.Chain,
	ad adapter.Adapter,
	actor *pool.Actor,
	index blockIndex,
	streamCoord *stream.Coordinator,
	scanCoord *scan.Coordinator,
	next uint64,
	notify <-chan struct{},
	logger *zap.Logger,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-notify:
			for {
				block, err := ad.FetchBlock(ctx, next)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						logger.Debug("no block at height yet", zap.Uint64("height", next), zap.Error(err))
					}
					break
				}

				update, err := actor.Submit(ctx, *block)
				if err != nil {
					logger.Error("pool submit failed", zap.Uint64("height", next), zap.Error(err))
					break
				}
				next++

				if update == nil || update.IsEmpty() {
					continue
				}
				if err := index.InsertBlocks(ctx, chain, update.Apply); err != nil {
					logger.Error("block index insert failed", zap.Error(err))
				}
				if err := streamCoord.Ingest(ctx, update); err != nil {
					logger.Error("stream ingest failed", zap.Error(err))
				}
				scanCoord.Ingest(update)
			}
		}
	}
}
