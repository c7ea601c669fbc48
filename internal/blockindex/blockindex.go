// Package blockindex defines the read-only height-addressed block index the
// scan coordinator replays history from (spec.md §6 persistence layout).
// The interface is deliberately narrow: a scan never needs anything but
// "give me the block at this height for this chain".
package blockindex

import (
	"context"
	"errors"

	"github.com/hirosystems/chainhook/internal/chainmodel"
)

// ErrNotFound is returned by BlockAt when the index has no row at the
// requested height yet. The scan coordinator reacts by marking the scanning
// predicate Interrupted with a reason naming the missing height.
var ErrNotFound = errors.New("blockindex: block not found")

// BlockIndex is the scan coordinator's view of historical chain data. It is
// expected to be populated out-of-band, ahead of or alongside live
// ingestion, by whatever writes the backing store (internal/blockindex/clickhouse.Repository.InsertBlocks).
type BlockIndex interface {
	// BlockAt returns the canonical block at height for chain, or
	// ErrNotFound if the index holds nothing at that height yet.
	BlockAt(ctx context.Context, chain chainmodel.Chain, height uint64) (*chainmodel.Block, error)
}
