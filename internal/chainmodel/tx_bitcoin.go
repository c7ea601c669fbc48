package chainmodel

// OutputScriptType enumerates the address forms the script decoder can
// recognize. Anything else is carried as ScriptTypeOther; the output keeps
// no type string, only the raw script bytes in ScriptHex.
type OutputScriptType string

const (
	ScriptTypeP2PKH  OutputScriptType = "p2pkh"
	ScriptTypeP2SH   OutputScriptType = "p2sh"
	ScriptTypeP2WPKH OutputScriptType = "p2wpkh"
	ScriptTypeP2WSH  OutputScriptType = "p2wsh"
	ScriptTypeP2TR   OutputScriptType = "p2tr"
	ScriptTypeOpReturn OutputScriptType = "op_return"
	ScriptTypeOther  OutputScriptType = "other"
)

// TxOutput is a single Bitcoin transaction output.
type TxOutput struct {
	Index      uint32           `json:"index"`
	ValueSats  uint64           `json:"value"`
	ScriptType OutputScriptType `json:"script_type"`
	ScriptHex  []byte           `json:"script_pubkey,omitempty"`
	Address    string           `json:"address,omitempty"` // decoded address form, when ScriptType is one of the p2* variants
	OpReturn   []byte           `json:"op_return,omitempty"` // raw payload when ScriptType is ScriptTypeOpReturn
}

// TxInput is a single Bitcoin transaction input.
type TxInput struct {
	Index      uint32   `json:"index"`
	PrevTxID   string   `json:"prev_txid"`
	PrevVout   uint32   `json:"prev_vout"`
	IsCoinbase bool     `json:"is_coinbase"`
	Witness    []string `json:"witness,omitempty"`
}

// OrdinalOpKind enumerates the ordinal/inscription operations the evaluator
// recognizes. reveal, transfer, and the burn-via-fee variant are collapsed
// into a single feed the ordinals_protocol.inscription_feed predicate
// matches against (spec.md §4.2).
type OrdinalOpKind string

const (
	OrdinalReveal      OrdinalOpKind = "inscription_revealed"
	OrdinalTransfer    OrdinalOpKind = "inscription_transferred"
	OrdinalBurnViaFee  OrdinalOpKind = "inscription_burned"
)

// OrdinalOp describes a single ordinal/inscription operation observed on a
// Bitcoin transaction.
type OrdinalOp struct {
	Kind          OrdinalOpKind `json:"kind"`
	InscriptionID string        `json:"inscription_id"`
	OutputIndex   uint32        `json:"output_index"`
	ContentType   string        `json:"content_type,omitempty"`
}

// StacksOpKind enumerates Bitcoin-anchored Stacks protocol operations
// carried inside a Bitcoin transaction (block commits, leader registration,
// and STX peg transfers/locks observed on L1).
type StacksOpKind string

const (
	StacksOpBlockCommitted  StacksOpKind = "block_committed"
	StacksOpLeaderRegistered StacksOpKind = "leader_registered"
	StacksOpStxTransferred  StacksOpKind = "stx_transferred"
	StacksOpStxLocked       StacksOpKind = "stx_locked"
)

// StacksOp describes a single Stacks protocol operation anchored in a
// Bitcoin transaction.
type StacksOp struct {
	Kind StacksOpKind `json:"kind"`
}

// BitcoinTxBody is the Bitcoin-specific payload of a Tx.
type BitcoinTxBody struct {
	TxID              string      `json:"txid"`
	WTxID             string      `json:"wtxid,omitempty"`
	Inputs            []TxInput   `json:"inputs,omitempty"`
	Outputs           []TxOutput  `json:"outputs,omitempty"`
	HasWitness        bool        `json:"has_witness"`
	OrdinalOps        []OrdinalOp `json:"ordinal_ops,omitempty"`
	StacksProtocolOps []StacksOp  `json:"stacks_protocol_ops,omitempty"`
}
