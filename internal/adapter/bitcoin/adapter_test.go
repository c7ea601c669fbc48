package bitcoin

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/stretchr/testify/require"
)

func TestNew_UnsupportedNetwork_ReturnsError(t *testing.T) {
	_, err := New(&rpcclient.Client{}, Config{Network: "not-a-network"}, noopMetrics{}, nil)
	require.Error(t, err)
}

func TestNew_NoZMQAddr_FallsBackToPolling(t *testing.T) {
	a, err := New(&rpcclient.Client{}, Config{Network: "mainnet"}, noopMetrics{}, nil)
	require.NoError(t, err)
	_, ok := a.subscriber.(*pollSubscriber)
	require.True(t, ok)
}

type noopMetrics struct{}

func (noopMetrics) Observe(operation string, err error, started time.Time) {}
