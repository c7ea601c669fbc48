package chainmodel

// Tx is a closed sum type over the chain-specific transaction bodies.
// Exactly one of Bitcoin/Stacks is populated, matching the tx's Chain.
type Tx struct {
	Chain                 Chain                 `json:"-"`
	TransactionIdentifier TransactionIdentifier `json:"transaction_identifier"`
	BlockHash             string                `json:"-"`
	Bitcoin               *BitcoinTxBody        `json:"bitcoin,omitempty"`
	Stacks                *StacksTxBody         `json:"stacks,omitempty"`
}

// MatchedTx carries enough of a matched transaction to render a payload
// without re-scanning the owning block.
type MatchedTx struct {
	PredicateUUID string
	BlockID       BlockIdentifier
	TxIndex       int
	Tx            Tx
	// BlockScoped is true when the matching predicate selects the whole
	// block (e.g. block_height); in that case the dispatcher renders every
	// transaction in the block rather than filtering to just this one.
	BlockScoped bool
}
