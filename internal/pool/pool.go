// Package pool implements the per-chain block-pool fork tracker: a bounded
// in-memory DAG of recently received blocks that determines the canonical
// tip and emits the apply/rollback sequence needed to move from the
// previous tip to the new one on every ingested block (spec.md §4.1).
//
// A Pool is a single-owner actor: its exported methods mutate unsynchronized
// state and must only ever be called from one goroutine at a time. Callers
// that need concurrent access should route through Actor, which serializes
// calls over a command channel per spec.md §5.
package pool

import (
	"time"

	"go.uber.org/zap"

	"github.com/hirosystems/chainhook/internal/chainmodel"
	"github.com/hirosystems/chainhook/internal/telemetry"
)

// DefaultBitcoinReorgWindow is the default confirmation depth for Bitcoin,
// per spec.md §4.1.
const DefaultBitcoinReorgWindow = 7

// DefaultStacksReorgWindow mirrors Bitcoin's anchoring depth; Stacks forks
// are resolved by the anchoring Bitcoin chain so the same window is a
// reasonable default absent further guidance.
const DefaultStacksReorgWindow = 7

type poolBlock struct {
	block chainmodel.RawBlock
	score score
}

// Config configures a Pool's retention and confirmation policy.
type Config struct {
	Chain       chainmodel.Chain
	ReorgWindow uint64
}

// Pool is the fork tracker for a single chain.
type Pool struct {
	cfg     Config
	logger  *zap.Logger
	metrics *telemetry.Pool

	blocks map[string]*poolBlock // hash -> block
	pending map[string][]chainmodel.RawBlock // missing-parent hash -> buffered children

	rootHash  string
	tipHash   string
	evictionFloor *uint64
}

// New constructs an empty Pool seeded with root as its base block. root is
// typically the genesis block or, after a restart, the lowest block the
// bootstrap procedure was able to recover (spec.md §4.1 "Bootstrapping").
func New(cfg Config, root chainmodel.RawBlock, logger *zap.Logger, metrics *telemetry.Pool) *Pool {
	if cfg.ReorgWindow == 0 {
		if cfg.Chain == chainmodel.Stacks {
			cfg.ReorgWindow = DefaultStacksReorgWindow
		} else {
			cfg.ReorgWindow = DefaultBitcoinReorgWindow
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pool{
		cfg:     cfg,
		logger:  logger.Named("pool").With(zap.String("chain", string(cfg.Chain))),
		metrics: metrics,
		blocks:  make(map[string]*poolBlock),
		pending: make(map[string][]chainmodel.RawBlock),
	}
	root.ParentID = chainmodel.BlockIdentifier{}
	p.blocks[root.ID.Hash] = &poolBlock{block: root, score: scoreOf(cfg.Chain, score{}, root)}
	p.rootHash = root.ID.Hash
	p.tipHash = root.ID.Hash
	return p
}

// CanonicalTip returns the identifier of the current best tip.
func (p *Pool) CanonicalTip() chainmodel.BlockIdentifier {
	return p.blocks[p.tipHash].block.ID
}

// RootBlock returns the identifier of the oldest block still retained.
func (p *Pool) RootBlock() chainmodel.BlockIdentifier {
	return p.blocks[p.rootHash].block.ID
}

// GetBlock returns the block for id, if still retained.
func (p *Pool) GetBlock(id chainmodel.BlockIdentifier) (*chainmodel.Block, bool) {
	pb, ok := p.blocks[id.Hash]
	if !ok || pb.block.ID.Index != id.Index {
		return nil, false
	}
	b := pb.block
	return &b, true
}

// SetEvictionFloor prevents the pool's root from advancing past height,
// e.g. while a historical scan still references blocks at or above it.
// Pass nil to clear the floor.
func (p *Pool) SetEvictionFloor(height *uint64) {
	p.evictionFloor = height
}

// Size returns the number of blocks currently retained, for tests and
// telemetry gauges.
func (p *Pool) Size() int {
	return len(p.blocks)
}

// Process ingests a single raw block and returns the ChainUpdate needed to
// move the canonical chain from its previous tip to its new one, or nil if
// the block did not change the canonical chain. See spec.md §4.1 for the
// full algorithm this implements.
func (p *Pool) Process(raw chainmodel.RawBlock) (*chainmodel.ChainUpdate, error) {
	started := time.Now()
	update, err := p.process(raw)
	if p.metrics != nil {
		p.metrics.ObserveProcess(err, update, time.Since(started))
	}
	return update, err
}

func (p *Pool) process(raw chainmodel.RawBlock) (*chainmodel.ChainUpdate, error) {
	if _, exists := p.blocks[raw.ID.Hash]; exists {
		return nil, nil
	}

	root := p.blocks[p.rootHash].block.ID
	if raw.ParentID.Index < root.Index {
		p.logger.Debug("dropping block older than retained root",
			zap.Stringer("block", raw.ID), zap.Stringer("root", root))
		return nil, ErrBlockTooOld
	}

	parent, ok := p.blocks[raw.ParentID.Hash]
	if !ok {
		p.pending[raw.ParentID.Hash] = append(p.pending[raw.ParentID.Hash], raw)
		return nil, &ErrOrphan{Missing: raw.ParentID}
	}

	update, err := p.insertLinked(raw, parent)
	if err != nil {
		return update, err
	}

	// Cascade: any children buffered on this block's hash can now link in.
	p.drainPending(raw.ID.Hash, &update)

	return update, nil
}

// insertLinked inserts a block whose parent is already present, updates
// the canonical tip if warranted, and returns the resulting ChainUpdate.
func (p *Pool) insertLinked(raw chainmodel.RawBlock, parent *poolBlock) (*chainmodel.ChainUpdate, error) {
	blockScore := scoreOf(p.cfg.Chain, parent.score, raw)
	p.blocks[raw.ID.Hash] = &poolBlock{block: raw, score: blockScore}

	tip := p.blocks[p.tipHash]
	if !blockScore.betterThan(tip.score, p.cfg.Chain) {
		return nil, nil
	}

	rollback, apply, err := p.transitionPath(p.tipHash, raw.ID.Hash)
	if err != nil {
		delete(p.blocks, raw.ID.Hash)
		return nil, err
	}

	if uint64(len(rollback)) > p.cfg.ReorgWindow {
		delete(p.blocks, raw.ID.Hash)
		return nil, &ErrReorgExceedsWindow{
			Chain:        p.cfg.Chain,
			PreviousTip:  p.blocks[p.tipHash].block.ID,
			AttemptedTip: raw.ID,
			Depth:        uint64(len(rollback)),
		}
	}

	p.tipHash = raw.ID.Hash
	p.advanceRoot()

	return &chainmodel.ChainUpdate{Chain: p.cfg.Chain, Apply: apply, Rollback: rollback}, nil
}

// drainPending reprocesses any blocks buffered while waiting on parentHash,
// folding their effects into update (which may already be non-nil from the
// block that unblocked them).
func (p *Pool) drainPending(parentHash string, update **chainmodel.ChainUpdate) {
	queue := p.pending[parentHash]
	delete(p.pending, parentHash)

	for _, child := range queue {
		parent, ok := p.blocks[parentHash]
		if !ok {
			continue
		}
		childUpdate, err := p.insertLinked(child, parent)
		if err != nil {
			p.logger.Warn("buffered orphan failed to link", zap.Error(err), zap.Stringer("block", child.ID))
			continue
		}
		*update = mergeUpdates(*update, childUpdate)
		p.drainPending(child.ID.Hash, update)
	}
}

func mergeUpdates(a, b *chainmodel.ChainUpdate) *chainmodel.ChainUpdate {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		a.Apply = append(a.Apply, b.Apply...)
		a.Rollback = append(b.Rollback, a.Rollback...)
		return a
	}
}

// transitionPath walks both tips back to their lowest common ancestor and
// returns rollback (prevTip -> LCA, excluding LCA, tip-to-base) and apply
// (LCA -> newTip, excluding LCA, base-to-tip).
func (p *Pool) transitionPath(prevTipHash, newTipHash string) (rollback, apply []chainmodel.Block, err error) {
	prevPath, err := p.pathToRoot(prevTipHash)
	if err != nil {
		return nil, nil, err
	}
	newPath, err := p.pathToRoot(newTipHash)
	if err != nil {
		return nil, nil, err
	}

	prevIndex := make(map[string]int, len(prevPath))
	for i, hash := range prevPath {
		prevIndex[hash] = i
	}

	lcaIdxInPrev := -1
	lcaIdxInNew := -1
	for i, hash := range newPath {
		if j, ok := prevIndex[hash]; ok {
			lcaIdxInPrev = j
			lcaIdxInNew = i
			break
		}
	}
	if lcaIdxInPrev == -1 {
		return nil, nil, &ErrReorgExceedsWindow{Chain: p.cfg.Chain, PreviousTip: p.blocks[prevTipHash].block.ID, AttemptedTip: p.blocks[newTipHash].block.ID}
	}

	rollback = make([]chainmodel.Block, 0, lcaIdxInPrev)
	for i := 0; i < lcaIdxInPrev; i++ {
		rollback = append(rollback, p.blocks[prevPath[i]].block)
	}

	apply = make([]chainmodel.Block, 0, lcaIdxInNew)
	for i := lcaIdxInNew - 1; i >= 0; i-- {
		apply = append(apply, p.blocks[newPath[i]].block)
	}

	return rollback, apply, nil
}

// pathToRoot returns the hashes from hash up to and including the pool's
// root, tip-first. An error means hash's ancestry runs off the end of
// retained history before reaching root — the caller treats this as a
// reorg-exceeds-window condition.
func (p *Pool) pathToRoot(hash string) ([]string, error) {
	var path []string
	cur := hash
	for {
		path = append(path, cur)
		if cur == p.rootHash {
			return path, nil
		}
		pb, ok := p.blocks[cur]
		if !ok {
			return nil, &ErrReorgExceedsWindow{Chain: p.cfg.Chain}
		}
		parentHash := pb.block.ParentID.Hash
		if parentHash == "" {
			return nil, &ErrReorgExceedsWindow{Chain: p.cfg.Chain}
		}
		cur = parentHash
	}
}

// advanceRoot moves the retained root forward to stay within the reorg
// window of the current tip and evicts everything older. Eviction never
// proceeds past an explicit eviction floor set by an active scan.
func (p *Pool) advanceRoot() {
	tip := p.blocks[p.tipHash].block
	if tip.ID.Index < p.cfg.ReorgWindow {
		return
	}
	targetHeight := tip.ID.Index - p.cfg.ReorgWindow

	if p.evictionFloor != nil && targetHeight > *p.evictionFloor {
		targetHeight = *p.evictionFloor
	}

	root := p.blocks[p.rootHash].block
	if targetHeight <= root.ID.Index {
		return
	}

	cur := p.tipHash
	for p.blocks[cur].block.ID.Index > targetHeight {
		cur = p.blocks[cur].block.ParentID.Hash
	}
	newRootHash := cur
	newRootHeight := p.blocks[newRootHash].block.ID.Index

	evicted := 0
	for hash, pb := range p.blocks {
		if pb.block.ID.Index < newRootHeight {
			delete(p.blocks, hash)
			delete(p.pending, hash)
			evicted++
		}
	}
	p.rootHash = newRootHash
	if evicted > 0 && p.metrics != nil {
		p.metrics.ObserveEviction(evicted)
	}
}
