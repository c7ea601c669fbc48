package lifecycle

import (
	"fmt"

	"github.com/hirosystems/chainhook/internal/chainmodel"
	"github.com/hirosystems/chainhook/internal/predicate"
	"github.com/hirosystems/chainhook/internal/predicate/store"
)

// StoreSource filters the durable predicate registry by chain and lifecycle
// status kind, implementing internal/stream.PredicateSource directly and
// backing the chain/status scan used by cmd/chainhook-scan to build its
// scan targets at startup.
type StoreSource struct {
	store *store.Store
}

// NewStoreSource wraps st.
func NewStoreSource(st *store.Store) *StoreSource {
	return &StoreSource{store: st}
}

// StreamingPredicates returns every registered predicate on chain currently
// in the Streaming status, satisfying internal/stream.PredicateSource.
func (s *StoreSource) StreamingPredicates(chain chainmodel.Chain) ([]predicate.Predicate, error) {
	predicates, _, err := s.byChainAndStatus(chain, predicate.StatusStreaming)
	return predicates, err
}

// ScanningPredicates returns every registered predicate on chain currently
// in the Scanning status, alongside its status (cmd/chainhook-scan uses
// Scanning.LastEvaluatedBlock to resume a scan across restarts rather than
// re-scanning from the predicate's original StartBlock).
func (s *StoreSource) ScanningPredicates(chain chainmodel.Chain) ([]predicate.Predicate, []predicate.PredicateStatus, error) {
	return s.byChainAndStatus(chain, predicate.StatusScanning)
}

func (s *StoreSource) byChainAndStatus(chain chainmodel.Chain, kind predicate.StatusKind) ([]predicate.Predicate, []predicate.PredicateStatus, error) {
	all, statuses, err := s.store.List()
	if err != nil {
		return nil, nil, fmt.Errorf("lifecycle: list predicates: %w", err)
	}

	var predicates []predicate.Predicate
	var filtered []predicate.PredicateStatus
	for i, p := range all {
		if p.Chain != chain || statuses[i].Kind != kind {
			continue
		}
		predicates = append(predicates, p)
		filtered = append(filtered, statuses[i])
	}
	return predicates, filtered, nil
}
