package stacks

// newBlockPayload mirrors the subset of the Stacks node's /new_block event
// observer body this package needs. The full payload carries many more
// fields (microblock info, matured miner rewards, pox-related metadata);
// only what reaches chainmodel.RawBlock is decoded here.
type newBlockPayload struct {
	BlockHeight           uint64                `json:"block_height"`
	IndexBlockHash        string                `json:"index_block_hash"`
	ParentIndexBlockHash  string                `json:"parent_index_block_hash"`
	BurnBlockTime         int64                 `json:"burn_block_time"`
	BurnBlockHash         string                `json:"burn_block_hash"`
	BurnBlockHeight       uint64                `json:"burn_block_height"`
	ParentBurnBlockHash   string                `json:"parent_burn_block_hash"`
	PoxCycleIndex         uint64                `json:"pox_cycle_index"`
	PoxCycleLength        uint64                `json:"pox_cycle_length"`
	PoxCyclePosition      uint64                `json:"pox_cycle_position"`
	SignerBitvec          string                `json:"signer_bitvec"`
	SignerSignature       []string              `json:"signer_signature"`
	CycleNumber           *uint64               `json:"cycle_number"`
	RewardSet             *rewardSetPayload     `json:"reward_set"`
	TenureHeight          uint64                `json:"tenure_height"`
	Transactions          []transactionPayload  `json:"transactions"`
}

type rewardSetPayload struct {
	// presence alone is what chainmodel.ChainMetadata.RewardSetPresent tracks
}

// transactionPayload mirrors one entry of /new_block's "transactions" array.
type transactionPayload struct {
	TxID                string          `json:"txid"`
	TxIndex             uint32          `json:"tx_index"`
	Status              string          `json:"status"` // "success" or an abort/error variant
	Raw                 string          `json:"raw_tx"`
	ContractCall        *contractCallPayload `json:"contract_call"`
	ContractDeployment  *contractDeployPayload `json:"contract_deployment"`
	TokenTransfer       *struct{}       `json:"token_transfer"`
	Coinbase            *struct{}       `json:"coinbase_payload"`
	Events              []eventPayload  `json:"events"`
}

type contractCallPayload struct {
	ContractID string   `json:"contract_id"`
	Function   string   `json:"function_name"`
	Args       []string `json:"function_args"`
}

type contractDeployPayload struct {
	ContractID        string   `json:"contract_id"`
	Deployer          string   `json:"deployer"`
	ImplementedTraits []string `json:"implemented_traits"`
}

// eventPayload mirrors one entry of a transaction's "events" array. The node
// nests the actual typed data under a key matching "type"; only the union of
// fields this package's evaluator cares about is decoded.
type eventPayload struct {
	Type     string `json:"type"`
	Position struct {
		Index uint32 `json:"index"`
	} `json:"event_index"`

	FTMintEvent      *ftEventPayload   `json:"ft_mint_event"`
	FTTransferEvent  *ftEventPayload   `json:"ft_transfer_event"`
	FTBurnEvent      *ftEventPayload   `json:"ft_burn_event"`
	NFTMintEvent     *nftEventPayload  `json:"nft_mint_event"`
	NFTTransferEvent *nftEventPayload  `json:"nft_transfer_event"`
	NFTBurnEvent     *nftEventPayload  `json:"nft_burn_event"`
	STXMintEvent     *stxEventPayload  `json:"stx_mint_event"`
	STXTransferEvent *stxEventPayload  `json:"stx_transfer_event"`
	STXBurnEvent     *stxEventPayload  `json:"stx_burn_event"`
	STXLockEvent     *stxEventPayload  `json:"stx_lock_event"`
	SmartContractEvent *printEventPayload `json:"contract_event"`
}

type ftEventPayload struct {
	AssetIdentifier string `json:"asset_identifier"`
	Sender          string `json:"sender"`
	Recipient       string `json:"recipient"`
	Amount          string `json:"amount"`
}

type nftEventPayload struct {
	AssetIdentifier string `json:"asset_identifier"`
	Sender          string `json:"sender"`
	Recipient       string `json:"recipient"`
}

type stxEventPayload struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type printEventPayload struct {
	ContractIdentifier string `json:"contract_identifier"`
	Topic              string `json:"topic"`
	RawValue           string `json:"raw_value"`
	Repr               string `json:"value_repr"`
}

// newBurnBlockPayload mirrors /new_burn_block, used only to advance the
// adapter's notion of the Bitcoin anchor tip; it carries no Stacks block of
// its own.
type newBurnBlockPayload struct {
	BurnBlockHeight uint64 `json:"burn_block_height"`
	BurnBlockHash   string `json:"burn_block_hash"`
}
