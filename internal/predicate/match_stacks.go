package predicate

import "regexp"

// NumericMatchOp enumerates how block_height is compared against a
// candidate value.
type NumericMatchOp string

const (
	NumericEquals     NumericMatchOp = "equals"
	NumericHigherThan NumericMatchOp = "higher_than"
	NumericLowerThan  NumericMatchOp = "lower_than"
	NumericBetween    NumericMatchOp = "between"
)

// AssetEventAction enumerates the fungible/non-fungible/STX event actions a
// predicate can filter on.
type AssetEventAction string

const (
	ActionMint     AssetEventAction = "mint"
	ActionTransfer AssetEventAction = "transfer"
	ActionBurn     AssetEventAction = "burn"
	ActionLock     AssetEventAction = "lock" // stx_event only
)

// PrintEventOp enumerates how print_event's payload is matched.
type PrintEventOp string

const (
	PrintContains     PrintEventOp = "contains"
	PrintMatchesRegex PrintEventOp = "matches_regex"
)

// ContractDeploymentFilterKind enumerates the closed set of
// contract_deployment deployer filters.
type ContractDeploymentFilterKind string

const (
	DeploymentAny             ContractDeploymentFilterKind = "any"
	DeploymentDeployerEquals  ContractDeploymentFilterKind = "deployer_equals"
	DeploymentImplementsTrait ContractDeploymentFilterKind = "implement_trait"
)

// StacksMatchKind enumerates the closed set of Stacks match variants.
type StacksMatchKind string

const (
	StacksMatchTxID               StacksMatchKind = "txid"
	StacksMatchBlockHeight        StacksMatchKind = "block_height"
	StacksMatchFTEvent            StacksMatchKind = "ft_event"
	StacksMatchNFTEvent           StacksMatchKind = "nft_event"
	StacksMatchSTXEvent           StacksMatchKind = "stx_event"
	StacksMatchPrintEvent         StacksMatchKind = "print_event"
	StacksMatchContractCall       StacksMatchKind = "contract_call"
	StacksMatchContractDeployment StacksMatchKind = "contract_deployment"
	StacksMatchSignerMessage      StacksMatchKind = "signer_message"
)

// StacksMatchSpec is the Stacks half of a MatchSpec.
type StacksMatchSpec struct {
	Kind StacksMatchKind `json:"kind"`

	// StacksMatchTxID
	TxIDEquals string `json:"equals,omitempty"`

	// StacksMatchBlockHeight; block-scoped — a match selects the whole
	// block rather than a specific transaction.
	HeightOp   NumericMatchOp `json:"height_op,omitempty"`
	Height     uint64         `json:"height,omitempty"`
	HeightHigh uint64         `json:"height_high,omitempty"` // upper bound, HeightOp == NumericBetween

	// StacksMatchFTEvent / NFTEvent
	AssetIdentifier string             `json:"asset_identifier,omitempty"`
	Actions         []AssetEventAction `json:"actions,omitempty"`

	// StacksMatchSTXEvent uses Actions only (no AssetIdentifier).

	// StacksMatchPrintEvent
	ContractIdentifier string         `json:"contract_identifier,omitempty"`
	PrintOp            PrintEventOp   `json:"print_op,omitempty"`
	PrintContainsValue string         `json:"contains,omitempty"`
	PrintRegexPattern  string         `json:"matches_regex,omitempty"` // raw pattern as supplied at registration
	PrintRegex         *regexp.Regexp `json:"-"`                       // compiled from PrintRegexPattern; not persisted

	// StacksMatchContractCall: matches direct invocation only (see
	// internal/evaluator). Named distinctly from ContractIdentifier above
	// so the two variants never collide under the same JSON key.
	CallContractIdentifier string `json:"call_contract_identifier,omitempty"`
	CallMethod             string `json:"method,omitempty"`

	// StacksMatchContractDeployment
	DeploymentFilter  ContractDeploymentFilterKind `json:"deployment_filter,omitempty"`
	DeployerEquals    string                       `json:"deployer,omitempty"`
	ImplementsTraitID string                       `json:"implement_trait,omitempty"`

	// StacksMatchSignerMessage; empty means match every signer message.
	SignerMessageKind string `json:"signer_message_kind,omitempty"`
}
