package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hirosystems/chainhook/internal/chainmodel"
)

func testBlock(chain chainmodel.Chain, index uint64, hash, parentHash string, work uint64) chainmodel.RawBlock {
	return chainmodel.RawBlock{
		Chain:    chain,
		ID:       chainmodel.BlockIdentifier{Index: index, Hash: hash},
		ParentID: chainmodel.BlockIdentifier{Index: index - 1, Hash: parentHash},
		Metadata: chainmodel.ChainMetadata{Work: work},
	}
}

func testRoot(chain chainmodel.Chain, hash string) chainmodel.RawBlock {
	return chainmodel.RawBlock{
		Chain: chain,
		ID:    chainmodel.BlockIdentifier{Index: 0, Hash: hash},
	}
}

func newTestPool(t *testing.T, cfg Config, root chainmodel.RawBlock) *Pool {
	t.Helper()
	if cfg.Chain == "" {
		cfg.Chain = chainmodel.Bitcoin
	}
	return New(cfg, root, zap.NewNop(), nil)
}

func TestPool_DuplicateIngestion_Idempotent(t *testing.T) {
	p := newTestPool(t, Config{}, testRoot(chainmodel.Bitcoin, "root"))

	a1 := testBlock(chainmodel.Bitcoin, 1, "a1", "root", 1)
	update, err := p.Process(a1)
	require.NoError(t, err)
	require.NotNil(t, update)
	require.Equal(t, []chainmodel.Block{a1}, update.Apply)

	update, err = p.Process(a1)
	require.NoError(t, err)
	require.Nil(t, update)
}

func TestPool_DirectDescendant_AppliesOnly(t *testing.T) {
	p := newTestPool(t, Config{}, testRoot(chainmodel.Bitcoin, "root"))

	a1 := testBlock(chainmodel.Bitcoin, 1, "a1", "root", 1)
	update, err := p.Process(a1)
	require.NoError(t, err)
	require.Empty(t, update.Rollback)
	require.Equal(t, []chainmodel.Block{a1}, update.Apply)

	a2 := testBlock(chainmodel.Bitcoin, 2, "a2", "a1", 1)
	update, err = p.Process(a2)
	require.NoError(t, err)
	require.Empty(t, update.Rollback)
	require.Equal(t, []chainmodel.Block{a2}, update.Apply)

	require.Equal(t, chainmodel.BlockIdentifier{Index: 2, Hash: "a2"}, p.CanonicalTip())
}

func TestPool_Fork_RollbackAndApply_ViaLCA(t *testing.T) {
	p := newTestPool(t, Config{ReorgWindow: 10}, testRoot(chainmodel.Bitcoin, "root"))

	a1 := testBlock(chainmodel.Bitcoin, 1, "a1", "root", 1)
	b2 := testBlock(chainmodel.Bitcoin, 2, "b2", "a1", 1)
	_, err := p.Process(a1)
	require.NoError(t, err)
	_, err = p.Process(b2)
	require.NoError(t, err)
	require.Equal(t, "b2", p.CanonicalTip().Hash)

	c2 := testBlock(chainmodel.Bitcoin, 2, "c2", "a1", 1)
	d3 := testBlock(chainmodel.Bitcoin, 3, "d3", "c2", 10) // enough work to overtake b2's path

	update, err := p.Process(c2)
	require.NoError(t, err)
	require.Nil(t, update, "c2 alone has equal work to b2 and must not win a tie")

	update, err = p.Process(d3)
	require.NoError(t, err)
	require.NotNil(t, update)
	require.Equal(t, []chainmodel.Block{b2}, update.Rollback)
	require.Equal(t, []chainmodel.Block{c2, d3}, update.Apply)
	require.Equal(t, "d3", p.CanonicalTip().Hash)
}

func TestPool_ReorgExceedsWindow_Fatal(t *testing.T) {
	p := newTestPool(t, Config{ReorgWindow: 2}, testRoot(chainmodel.Bitcoin, "root"))

	a1 := testBlock(chainmodel.Bitcoin, 1, "a1", "root", 1)
	a2 := testBlock(chainmodel.Bitcoin, 2, "a2", "a1", 1)
	a3 := testBlock(chainmodel.Bitcoin, 3, "a3", "a2", 1)
	for _, b := range []chainmodel.RawBlock{a1, a2, a3} {
		_, err := p.Process(b)
		require.NoError(t, err)
	}
	require.Equal(t, "a3", p.CanonicalTip().Hash)

	b1 := testBlock(chainmodel.Bitcoin, 1, "b1", "root", 100)
	update, err := p.Process(b1)
	require.Nil(t, update)
	require.Error(t, err)

	var reorgErr *ErrReorgExceedsWindow
	require.ErrorAs(t, err, &reorgErr)
	require.Equal(t, uint64(3), reorgErr.Depth)

	require.Equal(t, "a3", p.CanonicalTip().Hash, "rejected transition must not move the tip")
}

func TestPool_OrphanBuffering_CascadeOnParentArrival(t *testing.T) {
	p := newTestPool(t, Config{}, testRoot(chainmodel.Bitcoin, "root"))

	c1 := testBlock(chainmodel.Bitcoin, 1, "c1", "root", 1)
	c2 := testBlock(chainmodel.Bitcoin, 2, "c2", "c1", 1)

	update, err := p.Process(c2)
	require.Nil(t, update)
	var orphanErr *ErrOrphan
	require.ErrorAs(t, err, &orphanErr)
	require.Equal(t, "c1", orphanErr.Missing.Hash)

	update, err = p.Process(c1)
	require.NoError(t, err)
	require.NotNil(t, update)
	require.Equal(t, []chainmodel.Block{c1, c2}, update.Apply)
	require.Empty(t, update.Rollback)
	require.Equal(t, "c2", p.CanonicalTip().Hash)
}

func TestPool_OrphanBuffering_NestedCascade(t *testing.T) {
	p := newTestPool(t, Config{}, testRoot(chainmodel.Bitcoin, "root"))

	d1 := testBlock(chainmodel.Bitcoin, 1, "d1", "root", 1)
	d2 := testBlock(chainmodel.Bitcoin, 2, "d2", "d1", 1)
	d3 := testBlock(chainmodel.Bitcoin, 3, "d3", "d2", 1)

	_, err := p.Process(d3)
	require.Error(t, err)
	_, err = p.Process(d2)
	require.Error(t, err)

	update, err := p.Process(d1)
	require.NoError(t, err)
	require.NotNil(t, update)
	require.Equal(t, []chainmodel.Block{d1, d2, d3}, update.Apply)
	require.Empty(t, update.Rollback)
	require.Equal(t, "d3", p.CanonicalTip().Hash)
}

func TestPool_Bitcoin_EqualWork_NoOscillation(t *testing.T) {
	p := newTestPool(t, Config{}, testRoot(chainmodel.Bitcoin, "root"))

	a1 := testBlock(chainmodel.Bitcoin, 1, "a1", "root", 5)
	b1 := testBlock(chainmodel.Bitcoin, 1, "b1", "root", 5)

	_, err := p.Process(a1)
	require.NoError(t, err)
	require.Equal(t, "a1", p.CanonicalTip().Hash)

	update, err := p.Process(b1)
	require.NoError(t, err)
	require.Nil(t, update, "equal-work sibling must never dislodge the incumbent tip")
	require.Equal(t, "a1", p.CanonicalTip().Hash)
}

func TestPool_Stacks_LexicographicTiebreak(t *testing.T) {
	p := newTestPool(t, Config{Chain: chainmodel.Stacks}, testRoot(chainmodel.Stacks, "root"))

	a1 := chainmodel.RawBlock{
		Chain:    chainmodel.Stacks,
		ID:       chainmodel.BlockIdentifier{Index: 1, Hash: "a1"},
		ParentID: chainmodel.BlockIdentifier{Index: 0, Hash: "root"},
		Metadata: chainmodel.ChainMetadata{StacksBlockHash: "0xaaaa"},
	}
	b1 := chainmodel.RawBlock{
		Chain:    chainmodel.Stacks,
		ID:       chainmodel.BlockIdentifier{Index: 1, Hash: "b1"},
		ParentID: chainmodel.BlockIdentifier{Index: 0, Hash: "root"},
		Metadata: chainmodel.ChainMetadata{StacksBlockHash: "0xbbbb"},
	}

	_, err := p.Process(a1)
	require.NoError(t, err)
	require.Equal(t, "a1", p.CanonicalTip().Hash)

	update, err := p.Process(b1)
	require.NoError(t, err)
	require.NotNil(t, update, "lexicographically greater consensus hash must win the height tie")
	require.Equal(t, "b1", p.CanonicalTip().Hash)
}

func TestPool_BlockTooOld_Dropped(t *testing.T) {
	p := newTestPool(t, Config{ReorgWindow: 1}, testRoot(chainmodel.Bitcoin, "root"))

	for i, h := range []string{"a1", "a2", "a3"} {
		parent := "root"
		if i > 0 {
			parent = []string{"a1", "a2"}[i-1]
		}
		_, err := p.Process(testBlock(chainmodel.Bitcoin, uint64(i+1), h, parent, 1))
		require.NoError(t, err)
	}
	require.Equal(t, "a3", p.CanonicalTip().Hash)
	require.Equal(t, uint64(2), p.RootBlock().Index, "root should have advanced to stay within the reorg window")

	stale := testBlock(chainmodel.Bitcoin, 1, "stale", "root", 1)
	update, err := p.Process(stale)
	require.Nil(t, update)
	require.ErrorIs(t, err, ErrBlockTooOld)
}

func TestPool_SetEvictionFloor_PreventsPruningBelowFloor(t *testing.T) {
	p := newTestPool(t, Config{ReorgWindow: 1}, testRoot(chainmodel.Bitcoin, "root"))
	floor := uint64(0)
	p.SetEvictionFloor(&floor)

	for i, h := range []string{"a1", "a2", "a3"} {
		parent := "root"
		if i > 0 {
			parent = []string{"a1", "a2"}[i-1]
		}
		_, err := p.Process(testBlock(chainmodel.Bitcoin, uint64(i+1), h, parent, 1))
		require.NoError(t, err)
	}

	require.Equal(t, uint64(0), p.RootBlock().Index, "eviction floor must pin root in place even as the tip advances")
}
