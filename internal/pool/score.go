package pool

import "github.com/hirosystems/chainhook/internal/chainmodel"

// score is the comparable tip-selection metric for a single block's path
// to root. Bitcoin ranks by cumulative work (falling back to chain length
// when no adapter ever supplies Metadata.Work, since every unit then
// defaults to 1); Stacks ranks by height with a lexicographic tiebreak on
// the consensus hash (spec.md §4.1, §9 Open Questions).
type score struct {
	primary  uint64
	tiebreak string
}

// betterThan reports whether s is a strictly better tip than other. Equal
// scores never win — this is what prevents oscillation between two
// equal-work forks (spec.md §4.1 "Tie-breaking").
func (s score) betterThan(other score, chain chainmodel.Chain) bool {
	if s.primary != other.primary {
		return s.primary > other.primary
	}
	if chain == chainmodel.Stacks {
		return s.tiebreak > other.tiebreak
	}
	return false
}

func workUnit(meta chainmodel.ChainMetadata) uint64 {
	if meta.Work == 0 {
		return 1
	}
	return meta.Work
}

func scoreOf(chain chainmodel.Chain, parentScore score, block chainmodel.RawBlock) score {
	switch chain {
	case chainmodel.Stacks:
		return score{primary: block.ID.Index, tiebreak: block.Metadata.StacksBlockHash}
	default:
		return score{primary: parentScore.primary + workUnit(block.Metadata), tiebreak: ""}
	}
}
