package dispatch

import (
	"time"

	"github.com/hirosystems/chainhook/internal/chainmodel"
	"github.com/hirosystems/chainhook/internal/predicate"
)

// BlockMatches pairs a block with the matches the evaluator produced for it
// against one predicate, ready to be rendered into a payload.
type BlockMatches struct {
	Block   chainmodel.Block
	Matches []chainmodel.MatchedTx
}

// EnrichedBlock is the block shape rendered into a delivered payload: only
// the transactions the predicate matched, unless the match was block-scoped
// (spec.md §3 "ApplyRollbackPayload").
type EnrichedBlock struct {
	BlockIdentifier       chainmodel.BlockIdentifier `json:"block_identifier"`
	ParentBlockIdentifier chainmodel.BlockIdentifier `json:"parent_block_identifier"`
	Timestamp             time.Time                  `json:"timestamp"`
	Transactions          []chainmodel.Tx            `json:"transactions"`

	// Stacks-only fields, populated when Block.Chain == chainmodel.Stacks.
	BitcoinAnchorBlockIdentifier *chainmodel.BlockIdentifier `json:"bitcoin_anchor_block_identifier,omitempty"`
	ConfirmMicroblockIdentifier string                       `json:"confirm_microblock_identifier,omitempty"`
	PoxCycleIndex               uint64                       `json:"pox_cycle_index,omitempty"`
	PoxCycleLength              uint64                       `json:"pox_cycle_length,omitempty"`
	PoxCyclePosition            uint64                       `json:"pox_cycle_position,omitempty"`
	StacksBlockHash             string                       `json:"stacks_block_hash,omitempty"`

	// Nakamoto-era fields, populated only once that fork activates.
	TenureHeight    *uint64  `json:"tenure_height,omitempty"`
	BlockTime       *uint64  `json:"block_time,omitempty"`
	SignerBitvec    string   `json:"signer_bitvec,omitempty"`
	SignerSignature []string `json:"signer_signature,omitempty"`
	CycleNumber     *uint64  `json:"cycle_number,omitempty"`
	RewardSet       *bool    `json:"reward_set,omitempty"`
}

// ChainhookInfo identifies the predicate a delivered payload belongs to.
type ChainhookInfo struct {
	UUID              string              `json:"uuid"`
	Predicate         predicate.Predicate `json:"predicate"`
	IsStreamingBlocks bool                `json:"is_streaming_blocks"`
}

// ApplyRollbackPayload is the document delivered to a predicate's sink.
type ApplyRollbackPayload struct {
	Chainhook ChainhookInfo   `json:"chainhook"`
	Apply     []EnrichedBlock `json:"apply"`
	Rollback  []EnrichedBlock `json:"rollback"`
}

// RenderPayload builds the delivered payload from the per-block matches the
// stream or scan coordinator collected for one ChainUpdate.
func RenderPayload(p predicate.Predicate, isStreaming bool, apply, rollback []BlockMatches) ApplyRollbackPayload {
	return ApplyRollbackPayload{
		Chainhook: ChainhookInfo{UUID: p.UUID, Predicate: p, IsStreamingBlocks: isStreaming},
		Apply:     renderBlocks(apply),
		Rollback:  renderBlocks(rollback),
	}
}

func renderBlocks(bms []BlockMatches) []EnrichedBlock {
	out := make([]EnrichedBlock, 0, len(bms))
	for _, bm := range bms {
		out = append(out, renderBlock(bm))
	}
	return out
}

func renderBlock(bm BlockMatches) EnrichedBlock {
	txs := make([]chainmodel.Tx, 0, len(bm.Matches))
	for _, m := range bm.Matches {
		txs = append(txs, m.Tx)
	}

	eb := EnrichedBlock{
		BlockIdentifier:       bm.Block.ID,
		ParentBlockIdentifier: bm.Block.ParentID,
		Timestamp:             bm.Block.Timestamp,
		Transactions:          txs,
	}

	if bm.Block.Chain == chainmodel.Stacks {
		meta := bm.Block.Metadata
		eb.BitcoinAnchorBlockIdentifier = &meta.BitcoinAnchorBlockID
		eb.ConfirmMicroblockIdentifier = meta.ConfirmMicroblockID
		eb.PoxCycleIndex = meta.PoxCycleIndex
		eb.PoxCycleLength = meta.PoxCycleLength
		eb.PoxCyclePosition = meta.PoxCyclePosition
		eb.StacksBlockHash = meta.StacksBlockHash

		if meta.TenureHeight > 0 {
			eb.TenureHeight = &meta.TenureHeight
			eb.BlockTime = &meta.BlockTime
			eb.SignerBitvec = meta.SignerBitvec
			eb.SignerSignature = meta.SignerSignature
			eb.CycleNumber = &meta.CycleNumber
			eb.RewardSet = &meta.RewardSetPresent
		}
	}

	return eb
}
