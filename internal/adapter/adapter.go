// Package adapter defines the common shape every block source normalizes
// into (spec.md §1 "the Bitcoin RPC/ZMQ client library... the upstream
// Stacks node event HTTP surface... are external collaborators through
// their interfaces only"). Concrete adapters live in internal/adapter/bitcoin
// and internal/adapter/stacks; neither is a full node client, only the
// normalization shim the pool consumes.
package adapter

import (
	"context"

	"github.com/hirosystems/chainhook/internal/chainmodel"
)

// Adapter is what a chain's ingest goroutine drives: wait for a signal that
// new data may be available, fetch a specific height, and learn the
// source's current tip for bootstrapping.
type Adapter interface {
	// Subscribe returns a channel that receives a value each time the
	// adapter believes a new block is available. The adapters stop
	// sending once ctx is canceled; none of them closes the channel.
	Subscribe(ctx context.Context) (<-chan struct{}, error)

	// FetchBlock returns the normalized block at height.
	FetchBlock(ctx context.Context, height uint64) (*chainmodel.RawBlock, error)

	// Tip returns the source's current chain height.
	Tip(ctx context.Context) (uint64, error)
}
