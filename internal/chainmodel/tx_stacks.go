package chainmodel

// StacksTxKind enumerates the closed set of Stacks transaction kinds.
type StacksTxKind string

const (
	StacksTxContractCall       StacksTxKind = "contract_call"
	StacksTxContractDeployment StacksTxKind = "contract_deployment"
	StacksTxTokenTransfer      StacksTxKind = "token_transfer"
	StacksTxCoinbase           StacksTxKind = "coinbase"
)

// EventKind enumerates the closed set of Stacks event types the evaluator
// can match against.
type EventKind string

const (
	EventFTMint        EventKind = "ft_mint"
	EventFTTransfer    EventKind = "ft_transfer"
	EventFTBurn        EventKind = "ft_burn"
	EventNFTMint       EventKind = "nft_mint"
	EventNFTTransfer   EventKind = "nft_transfer"
	EventNFTBurn       EventKind = "nft_burn"
	EventSTXMint       EventKind = "stx_mint"
	EventSTXTransfer   EventKind = "stx_transfer"
	EventSTXBurn       EventKind = "stx_burn"
	EventSTXLock       EventKind = "stx_lock"
	EventPrint         EventKind = "print"
	EventContractEvent EventKind = "contract_event"
	EventDataVarSet    EventKind = "data_var_set"
	EventDataMapInsert EventKind = "data_map_insert"
	EventDataMapUpdate EventKind = "data_map_update"
	EventDataMapDelete EventKind = "data_map_delete"
)

// Event is a single typed Stacks transaction event.
type Event struct {
	Kind               EventKind `json:"kind"`
	AssetIdentifier    string    `json:"asset_identifier,omitempty"` // "<contract_identifier>::<asset-name>" for FT/NFT events
	ContractIdentifier string    `json:"contract_identifier,omitempty"` // set for print/contract-event/data-* events
	Amount             uint64    `json:"amount,omitempty"` // FT/STX mint/transfer/burn amount
	Sender             string    `json:"sender,omitempty"`
	Recipient          string    `json:"recipient,omitempty"`
	// PrintPayload is the Clarity value rendered to a string for print
	// events; matched against print_event.contains / matches_regex.
	PrintPayload string `json:"print_payload,omitempty"`
}

// ContractCall describes a direct (non-nested) contract invocation. The
// evaluator's contract_call predicate matches only against this field —
// calls made from inside another contract's execution are never surfaced
// here, by design (spec.md §4.2, §9 Open Questions).
type ContractCall struct {
	ContractIdentifier string   `json:"contract_identifier"`
	Method             string   `json:"method"`
	Args               []string `json:"args,omitempty"`
}

// ContractDeployment describes a contract publish transaction.
type ContractDeployment struct {
	ContractIdentifier string   `json:"contract_identifier"`
	Deployer           string   `json:"deployer"`
	ImplementedTraits  []string `json:"implemented_traits,omitempty"`
}

// SignerMessageKind enumerates the Nakamoto signer message variants.
type SignerMessageKind string

const (
	SignerBlockProposal         SignerMessageKind = "block_proposal"
	SignerBlockResponseAccepted SignerMessageKind = "block_response_accepted"
	SignerBlockResponseRejected SignerMessageKind = "block_response_rejected"
	SignerBlockPushed           SignerMessageKind = "block_pushed"
	SignerMockProposal          SignerMessageKind = "mock_proposal"
	SignerMockSignature         SignerMessageKind = "mock_signature"
	SignerMockBlock             SignerMessageKind = "mock_block"
)

// SignerMessage describes a single Nakamoto signer message observed on a
// Stacks transaction (or, for mock variants, standing in for a whole block).
type SignerMessage struct {
	Kind   SignerMessageKind `json:"kind"`
	Signer string            `json:"signer,omitempty"`
}

// StacksTxBody is the Stacks-specific payload of a Tx.
type StacksTxBody struct {
	TxID               string              `json:"txid"`
	Kind               StacksTxKind        `json:"kind"`
	Position           uint32              `json:"position"`
	Events             []Event             `json:"events,omitempty"`
	ContractCall       *ContractCall       `json:"contract_call,omitempty"`
	ContractDeployment *ContractDeployment `json:"contract_deployment,omitempty"`
	SignerMessage      *SignerMessage      `json:"signer_message,omitempty"`
	Success            bool                `json:"success"`
}
