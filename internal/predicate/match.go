package predicate

import "github.com/hirosystems/chainhook/internal/chainmodel"

// MatchSpec is the closed sum type over Bitcoin and Stacks predicate
// bodies. Exactly one of Bitcoin/Stacks is populated, matching Chain.
// Within a populated variant, Kind selects which constraint fields apply
// and all of those must hold — e.g. a Stacks print_event spec requires both
// its contract identifier and its contains/regex test. Fields that belong
// to other kinds are ignored.
type MatchSpec struct {
	Chain   chainmodel.Chain  `json:"chain"`
	Bitcoin *BitcoinMatchSpec `json:"bitcoin,omitempty"`
	Stacks  *StacksMatchSpec  `json:"stacks,omitempty"`
}
