package lifecycle

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hirosystems/chainhook/internal/chainmodel"
	"github.com/hirosystems/chainhook/internal/predicate"
	"github.com/hirosystems/chainhook/internal/predicate/store"
	"github.com/hirosystems/chainhook/internal/telemetry"
)

func TestStoreSource_FiltersByChainAndStatus(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "predicates.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	c := NewController(st, telemetry.NewLifecycle(), zap.NewNop())
	ctx := context.Background()

	streamingBTC := predicate.Predicate{UUID: "streaming-btc", Name: "a", Chain: chainmodel.Bitcoin}
	require.NoError(t, st.Register(streamingBTC))
	c.Register(ctx, streamingBTC, 100) // StartBlock nil -> Streaming

	start := uint64(10)
	scanningBTC := predicate.Predicate{UUID: "scanning-btc", Name: "b", Chain: chainmodel.Bitcoin, StartBlock: &start}
	require.NoError(t, st.Register(scanningBTC))
	c.Register(ctx, scanningBTC, 100) // StartBlock < tip -> Scanning

	streamingStacks := predicate.Predicate{UUID: "streaming-stacks", Name: "c", Chain: chainmodel.Stacks}
	require.NoError(t, st.Register(streamingStacks))
	c.Register(ctx, streamingStacks, 50)

	source := NewStoreSource(st)

	btcStreaming, err := source.StreamingPredicates(chainmodel.Bitcoin)
	require.NoError(t, err)
	require.Len(t, btcStreaming, 1)
	require.Equal(t, "streaming-btc", btcStreaming[0].UUID)

	btcScanning, statuses, err := source.ScanningPredicates(chainmodel.Bitcoin)
	require.NoError(t, err)
	require.Len(t, btcScanning, 1)
	require.Equal(t, "scanning-btc", btcScanning[0].UUID)
	require.Equal(t, predicate.StatusScanning, statuses[0].Kind)

	stacksStreaming, err := source.StreamingPredicates(chainmodel.Stacks)
	require.NoError(t, err)
	require.Len(t, stacksStreaming, 1)
	require.Equal(t, "streaming-stacks", stacksStreaming[0].UUID)
}
