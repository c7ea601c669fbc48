package pool

import (
	"errors"
	"fmt"

	"github.com/hirosystems/chainhook/internal/chainmodel"
)

// ErrBlockTooOld is returned when a block's parent is older than the pool's
// current root and can therefore never be linked; the block is dropped.
var ErrBlockTooOld = errors.New("pool: block parent predates retained root")

// ErrOrphan is returned when a block's parent is not yet known but is
// plausibly fetchable (its height is at or above the pool's root). The
// caller is expected to fetch Missing from the adapter and resubmit; the
// block is buffered internally and will be reprocessed automatically once
// its ancestry is complete.
type ErrOrphan struct {
	Missing chainmodel.BlockIdentifier
}

func (e *ErrOrphan) Error() string {
	return fmt.Sprintf("pool: missing parent %s", e.Missing)
}

// ErrReorgExceedsWindow is returned when the canonical-chain transition
// implied by a newly processed block would roll back more than the
// configured reorg window. The pool rejects the transition outright and
// keeps serving its previous canonical tip; the caller is expected to mark
// every predicate whose last_evaluated_block falls in the affected region
// as Interrupted.
type ErrReorgExceedsWindow struct {
	Chain       chainmodel.Chain
	PreviousTip chainmodel.BlockIdentifier
	AttemptedTip chainmodel.BlockIdentifier
	Depth       uint64 // rollback depth implied by the rejected transition; 0 when unknown (ancestry below root)
}

func (e *ErrReorgExceedsWindow) Error() string {
	return fmt.Sprintf(
		"pool: rollback exceeds window (chain=%s previous_tip=%s attempted_tip=%s depth=%d)",
		e.Chain, e.PreviousTip, e.AttemptedTip, e.Depth,
	)
}
