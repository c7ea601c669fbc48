// Package evaluator implements the predicate matcher: a pure function from
// (Predicate, Block) to the ordered list of transactions it matched.
// Nothing here performs I/O; the same (predicate, block) pair always
// produces the same result, and evaluating one block never depends on any
// other (spec.md §4.2).
package evaluator

import (
	"time"

	"github.com/hirosystems/chainhook/internal/chainmodel"
	"github.com/hirosystems/chainhook/internal/predicate"
	"github.com/hirosystems/chainhook/internal/telemetry"
)

// Evaluate returns, in tx-position order, every MatchedTx that p's if_this
// selects out of block. A block-scoped match (currently only
// block_height) returns every transaction in the block rather than
// filtering to individual matches.
func Evaluate(p predicate.Predicate, block chainmodel.Block) []chainmodel.MatchedTx {
	if block.Chain != p.Chain {
		return nil
	}

	switch p.Chain {
	case chainmodel.Bitcoin:
		return evaluateBitcoin(p, block)
	case chainmodel.Stacks:
		return evaluateStacks(p, block)
	default:
		return nil
	}
}

// TimedEvaluate wraps Evaluate with telemetry, for callers (the stream and
// scan coordinators) that want per-call duration/match-count observation
// without repeating the time.Now() bookkeeping at every call site.
func TimedEvaluate(m *telemetry.Evaluator, p predicate.Predicate, block chainmodel.Block) []chainmodel.MatchedTx {
	started := time.Now()
	matches := Evaluate(p, block)
	if m != nil {
		m.ObserveEvaluate(len(matches), time.Since(started))
	}
	return matches
}

func blockScopedMatches(predicateUUID string, block chainmodel.Block) []chainmodel.MatchedTx {
	out := make([]chainmodel.MatchedTx, 0, len(block.Txs))
	for i, tx := range block.Txs {
		out = append(out, chainmodel.MatchedTx{
			PredicateUUID: predicateUUID,
			BlockID:       block.ID,
			TxIndex:       i,
			Tx:            tx,
			BlockScoped:   true,
		})
	}
	return out
}
