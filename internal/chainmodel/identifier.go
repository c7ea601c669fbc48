// Package chainmodel defines the chain-agnostic and chain-specific block and
// transaction types that flow through the pool, evaluator, and dispatcher.
package chainmodel

import "fmt"

// Chain identifies which blockchain a block or predicate belongs to.
type Chain string

const (
	Bitcoin Chain = "bitcoin"
	Stacks  Chain = "stacks"
)

// BlockIdentifier pins a block to a specific height and hash. Two blocks
// with the same hash but different indexes are never produced by a single
// chain; equality always compares both fields.
type BlockIdentifier struct {
	Index uint64 `json:"index"`
	Hash  string `json:"hash"`
}

// TransactionIdentifier pins a transaction to its canonical hash, matching
// the nested `transaction_identifier.hash` shape dispatched payloads carry.
type TransactionIdentifier struct {
	Hash string `json:"hash"`
}

// String renders the identifier as "<index>:<hash>" for logging.
func (b BlockIdentifier) String() string {
	return fmt.Sprintf("%d:%s", b.Index, b.Hash)
}

// Equals reports whether two identifiers name the same block.
func (b BlockIdentifier) Equals(other BlockIdentifier) bool {
	return b.Index == other.Index && b.Hash == other.Hash
}

// IsZero reports whether the identifier is the unset value.
func (b BlockIdentifier) IsZero() bool {
	return b.Hash == "" && b.Index == 0
}
