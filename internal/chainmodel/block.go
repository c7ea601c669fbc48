package chainmodel

import "time"

// ChainMetadata carries chain-specific block header fields not otherwise
// common to both chains. Bitcoin populates Work (or leaves it zero when the
// adapter cannot surface cumulative work, in which case the pool falls back
// to chain length as documented in spec.md §9); Stacks populates the
// consensus-hash fields used to break ties between equal-height forks.
type ChainMetadata struct {
	// Bitcoin
	Work       uint64 // cumulative chain work at this block, if known
	Difficulty float64

	// Stacks
	StacksBlockHash      string
	BitcoinAnchorBlockID BlockIdentifier
	ConfirmMicroblockID  string
	PoxCycleIndex        uint64
	PoxCycleLength       uint64
	PoxCyclePosition     uint64

	// Nakamoto-era Stacks fields, present only once the fork activates.
	TenureHeight     uint64
	BlockTime        uint64
	SignerBitvec     string
	SignerSignature  []string
	CycleNumber      uint64
	RewardSetPresent bool
}

// RawBlock is the normalized form produced by a block source adapter. It is
// immutable once constructed; ParentID must reference a known ancestor or
// the pool treats the block as an orphan pending parent fetch.
type RawBlock struct {
	Chain     Chain
	ID        BlockIdentifier
	ParentID  BlockIdentifier
	Timestamp time.Time
	Txs       []Tx
	Metadata  ChainMetadata
}

// Block is a RawBlock that has been accepted into a pool's tracked history.
// It is the unit exchanged in ChainUpdate.Apply/Rollback.
type Block = RawBlock
