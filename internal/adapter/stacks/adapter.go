// Package stacks implements the Stacks side of internal/adapter: an
// http.Handler that accepts the Stacks node's event-observer POSTs. Per
// spec.md §1, the node's HTTP event surface is an external collaborator —
// this package only decodes what it publishes and hands normalized blocks to
// the pool through the shared Adapter interface.
package stacks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/hirosystems/chainhook/internal/adapter"
	"github.com/hirosystems/chainhook/internal/chainmodel"
)

var _ adapter.Adapter = (*Adapter)(nil)

// Metrics records per-route outcome, mirroring the shape of
// internal/adapter/bitcoin.RPCMetrics.
type Metrics interface {
	Observe(route string, err error)
}

// Adapter receives Stacks node event-observer callbacks over HTTP and
// satisfies internal/adapter.Adapter. Unlike the Bitcoin adapter, there is no
// separate RPC surface to pull historical blocks from: the node pushes full
// blocks on /new_block, so FetchBlock serves out of the adapter's own cache
// of everything it has received. Heights the node has not yet pushed (or
// will never push again, e.g. after a restart before the cache is warm) are
// the archive downloader's job to backfill, which spec.md §1 places out of
// scope for this package.
type Adapter struct {
	logger  *zap.Logger
	metrics Metrics

	mu      sync.Mutex
	blocks  map[uint64]*chainmodel.RawBlock
	tip     uint64
	burnTip uint64

	notify chan struct{}
}

// New constructs a Stacks event-observer adapter. Pass the result's
// ServeHTTP (or mount it directly) at the address the Stacks node's
// `event_observer` config block points at.
func New(metrics Metrics, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		logger:  logger.Named("adapter.stacks"),
		metrics: metrics,
		blocks:  make(map[uint64]*chainmodel.RawBlock),
		notify:  make(chan struct{}, 1),
	}
}

// Subscribe returns a channel that receives a notification each time a new
// block has been decoded and cached from a /new_block POST.
func (a *Adapter) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	return a.notify, nil
}

// FetchBlock returns the cached block at height, previously received via
// /new_block. It never reaches out to the Stacks node itself.
func (a *Adapter) FetchBlock(ctx context.Context, height uint64) (*chainmodel.RawBlock, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	block, ok := a.blocks[height]
	if !ok {
		return nil, fmt.Errorf("adapter/stacks: no cached block at height %d", height)
	}
	return block, nil
}

// Tip returns the highest Stacks block height received so far.
func (a *Adapter) Tip(ctx context.Context) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tip, nil
}

// ServeHTTP dispatches the Stacks node's event-observer routes. It returns
// 200 on successful decode-and-cache and 500 on failure so the node retries
// delivery, matching the upstream event-observer contract.
func (a *Adapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var err error
	switch r.URL.Path {
	case "/new_block":
		err = a.handleNewBlock(r)
	case "/new_burn_block":
		err = a.handleNewBurnBlock(r)
	case "/attachments/new":
		err = a.drain(r)
	case "/stackerdb_chunks":
		err = a.drain(r)
	case "/new_microblocks":
		// legacy pre-Nakamoto route; accepted and ignored per spec.md §6.
		err = a.drain(r)
	case "/new_mempool_tx":
		// mempool events are ignored per spec.md §6; still drain+200 so the
		// node doesn't treat this as a delivery failure.
		err = a.drain(r)
	default:
		http.NotFound(w, r)
		return
	}

	a.metrics.Observe(r.URL.Path, err)
	if err != nil {
		a.logger.Error("event observer callback failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *Adapter) handleNewBlock(r *http.Request) error {
	var payload newBlockPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decode new_block payload: %w", err)
	}

	block, err := normalizeBlock(payload)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.blocks[block.ID.Index] = block
	if block.ID.Index > a.tip {
		a.tip = block.ID.Index
	}
	a.mu.Unlock()

	select {
	case a.notify <- struct{}{}:
	default:
	}
	return nil
}

func (a *Adapter) handleNewBurnBlock(r *http.Request) error {
	var payload newBurnBlockPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decode new_burn_block payload: %w", err)
	}
	a.mu.Lock()
	if payload.BurnBlockHeight > a.burnTip {
		a.burnTip = payload.BurnBlockHeight
	}
	a.mu.Unlock()
	return nil
}

// drain reads and discards the body so keep-alive connections behave, for
// routes this package intentionally does not act on.
func (a *Adapter) drain(r *http.Request) error {
	_, err := io.Copy(io.Discard, r.Body)
	return err
}
