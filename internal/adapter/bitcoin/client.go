// Package bitcoin normalizes Bitcoin Core's RPC+ZMQ surface into
// chainmodel.RawBlock (spec.md §1, §6). It wraps rpcclient.Client purely as
// a thin, instrumented shim — the node client library itself is an
// external collaborator, not something this package reimplements.
package bitcoin

import (
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
)

// RPCMetrics records per-call outcome/duration, mirroring the teacher's
// internal/utxo/bitcoin.RPCMetrics interface.
type RPCMetrics interface {
	Observe(operation string, err error, started time.Time)
}

// rpcClient wraps rpcclient.Client with metrics instrumentation, adapted
// directly from the teacher's internal/utxo/bitcoin.RPCClient.
type rpcClient struct {
	client  *rpcclient.Client
	metrics RPCMetrics
}

func newRPCClient(client *rpcclient.Client, metrics RPCMetrics) *rpcClient {
	return &rpcClient{client: client, metrics: metrics}
}

func (r *rpcClient) getBlockCount() (count int64, err error) {
	started := time.Now()
	defer func() { r.metrics.Observe("get_block_count", err, started) }()
	return r.client.GetBlockCount()
}

func (r *rpcClient) getBlockHash(height int64) (hash *chainhash.Hash, err error) {
	started := time.Now()
	defer func() { r.metrics.Observe("get_block_hash", err, started) }()
	return r.client.GetBlockHash(height)
}

func (r *rpcClient) getBlockVerboseTx(hash *chainhash.Hash) (res *btcjson.GetBlockVerboseTxResult, err error) {
	started := time.Now()
	defer func() { r.metrics.Observe("get_block_verbose_tx", err, started) }()
	return r.client.GetBlockVerboseTx(hash)
}
