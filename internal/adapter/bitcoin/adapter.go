package bitcoin

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/rpcclient"
	"go.uber.org/zap"

	"github.com/hirosystems/chainhook/internal/adapter"
	"github.com/hirosystems/chainhook/internal/chainmodel"
	"github.com/hirosystems/chainhook/pkg/safe"
)

// subscriber is satisfied by either the always-available poll-based
// notifier or the zmq_subscriber.go implementation built with -tags zmq.
type subscriber interface {
	subscribe(ctx context.Context) (<-chan struct{}, error)
}

// Adapter normalizes a Bitcoin Core RPC+ZMQ source into chainmodel.RawBlock,
// implementing internal/adapter.Adapter.
type Adapter struct {
	rpc        *rpcClient
	params     *chaincfg.Params
	subscriber subscriber
	logger     *zap.Logger
}

var _ adapter.Adapter = (*Adapter)(nil)

// Config configures a Bitcoin Adapter.
type Config struct {
	Network  string // "mainnet", "testnet3", "regtest", "signet"
	ZMQAddr  string // hashblock publisher address; empty disables zmq, falling back to polling
}

// New constructs a Bitcoin Adapter from an already-configured rpcclient.Client.
func New(client *rpcclient.Client, cfg Config, metrics RPCMetrics, logger *zap.Logger) (*Adapter, error) {
	params, err := chainParams(cfg.Network)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("adapter.bitcoin")

	sub, err := newSubscriber(cfg.ZMQAddr, logger)
	if err != nil {
		return nil, fmt.Errorf("init block subscriber: %w", err)
	}

	return &Adapter{
		rpc:        newRPCClient(client, metrics),
		params:     params,
		subscriber: sub,
		logger:     logger,
	}, nil
}

// Subscribe implements internal/adapter.Adapter.
func (a *Adapter) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	return a.subscriber.subscribe(ctx)
}

// Tip implements internal/adapter.Adapter.
func (a *Adapter) Tip(ctx context.Context) (uint64, error) {
	count, err := a.rpc.getBlockCount()
	if err != nil {
		return 0, fmt.Errorf("get block count: %w", err)
	}
	tip, err := safe.Uint64(count)
	if err != nil {
		return 0, fmt.Errorf("block count: %w", err)
	}
	return tip, nil
}

// FetchBlock implements internal/adapter.Adapter.
func (a *Adapter) FetchBlock(ctx context.Context, height uint64) (*chainmodel.RawBlock, error) {
	hash, err := a.rpc.getBlockHash(int64(height))
	if err != nil {
		return nil, fmt.Errorf("get block hash at %d: %w", height, err)
	}

	raw, err := a.rpc.getBlockVerboseTx(hash)
	if err != nil {
		return nil, fmt.Errorf("get block %s: %w", hash, err)
	}

	return normalizeBlock(a.params, raw)
}
