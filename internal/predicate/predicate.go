// Package predicate defines the predicate document a user registers with
// the engine: what to match (MatchSpec), what to do with a match
// (ActionSpec), and the payload-shaping flags that affect rendering but
// never matching.
package predicate

import "github.com/hirosystems/chainhook/internal/chainmodel"

// Predicate is a single registered "if this, then that" rule.
type Predicate struct {
	UUID    string           `json:"uuid"`
	Name    string           `json:"name,omitempty"`
	Version uint32           `json:"version"`
	Chain   chainmodel.Chain `json:"chain"`
	Network string           `json:"network"`

	StartBlock            *uint64 `json:"start_block,omitempty"`
	EndBlock              *uint64 `json:"end_block,omitempty"`
	ExpireAfterOccurrence *uint64 `json:"expire_after_occurrence,omitempty"`
	IncludeProof          bool    `json:"include_proof"`
	IncludeInputs         bool    `json:"include_inputs"`
	IncludeOutputs        bool    `json:"include_outputs"`
	IncludeWitness        bool    `json:"include_witness"`
	DecodeClarityValues   bool    `json:"decode_clarity_values"`

	IfThis   MatchSpec  `json:"if_this"`
	ThenThat ActionSpec `json:"then_that"`
}

// ActionKind enumerates the closed set of dispatch sinks a predicate can
// target.
type ActionKind string

const (
	ActionHTTPPost   ActionKind = "http_post"
	ActionFileAppend ActionKind = "file_append"
)

// ActionSpec is a closed sum type over the dispatch sinks a predicate can
// target. Exactly one of the kind-specific fields is populated, matching
// Kind.
type ActionSpec struct {
	Kind ActionKind `json:"kind"`

	// ActionHTTPPost
	URL                 string `json:"url,omitempty"`
	AuthorizationHeader string `json:"authorization_header,omitempty"`

	// ActionFileAppend
	Path string `json:"path,omitempty"`
}
