// Package clickhouse is the ClickHouse-backed implementation of
// internal/blockindex.BlockIndex, adapted from the teacher's
// internal/utxo/repository/clickhouse package: the same DSN-parsing,
// connection, and batch-insert shape, narrowed from a block/tx/output
// schema to a single height-addressed row holding a serialized block.
package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/hirosystems/chainhook/internal/blockindex"
	"github.com/hirosystems/chainhook/internal/chainmodel"
)

// Metrics mirrors the teacher's per-operation Observe signature
// (coin/network became chain/network here).
type Metrics interface {
	Observe(operation string, chain chainmodel.Chain, network string, err error, started time.Time)
}

// Repository is the block index's ClickHouse-backed reader/writer. It
// implements blockindex.BlockIndex directly.
type Repository struct {
	conn    clickhouse.Conn
	network string
	metrics Metrics
}

var _ blockindex.BlockIndex = (*Repository)(nil)

// NewRepository opens a ClickHouse connection from dsn, exactly as the
// teacher's clickhouse.NewRepository does.
func NewRepository(dsn, network string, metrics Metrics) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("clickhouse dsn is required")
	}
	if metrics == nil {
		return nil, errors.New("metrics recorder is required")
	}

	options, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}

	return &Repository{conn: conn, network: network, metrics: metrics}, nil
}

// Close releases the underlying ClickHouse connection.
func (r *Repository) Close() error {
	return r.conn.Close()
}

// InsertBlocks stores block rows keyed by (chain, network, height), one row
// per block, overwriting any prior row at the same key on the next merge
// (the schema's ReplacingMergeTree engine, see migrations/clickhouse).
// Adapted from the teacher's InsertBlocks batch-append-then-Send shape.
func (r *Repository) InsertBlocks(ctx context.Context, chain chainmodel.Chain, blocks []chainmodel.Block) error {
	start := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("insert_blocks", chain, r.network, err, start)
	}()

	if len(blocks) == 0 {
		return nil
	}

	const query = `
INSERT INTO block_index (
	chain,
	network,
	height,
	hash,
	parent_hash,
	timestamp,
	body
) VALUES`

	batch, err := r.conn.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare block index batch: %w", err)
	}

	for _, block := range blocks {
		body, encodeErr := encodeBlock(block)
		if encodeErr != nil {
			err = fmt.Errorf("encode block %s: %w", block.ID, encodeErr)
			return err
		}
		if err = batch.Append(
			string(chain),
			r.network,
			block.ID.Index,
			block.ID.Hash,
			block.ParentID.Hash,
			block.Timestamp,
			body,
		); err != nil {
			return fmt.Errorf("append block index row: %w", err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("insert block index rows: %w", err)
	}
	return nil
}

// BlockAt implements blockindex.BlockIndex.
func (r *Repository) BlockAt(ctx context.Context, chain chainmodel.Chain, height uint64) (*chainmodel.Block, error) {
	start := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("block_at", chain, r.network, err, start)
	}()

	const query = `
SELECT body
FROM block_index
WHERE chain = ? AND network = ? AND height = ?
ORDER BY inserted_at DESC
LIMIT 1`

	rows, queryErr := r.conn.Query(ctx, query, string(chain), r.network, height)
	if queryErr != nil {
		err = fmt.Errorf("query block index: %w", queryErr)
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close rows: %w", closeErr)
		}
	}()

	if !rows.Next() {
		err = blockindex.ErrNotFound
		return nil, err
	}

	var body string
	if err = rows.Scan(&body); err != nil {
		return nil, fmt.Errorf("scan block index row: %w", err)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate block index rows: %w", err)
	}

	block, decodeErr := decodeBlock(body)
	if decodeErr != nil {
		err = fmt.Errorf("decode block index row: %w", decodeErr)
		return nil, err
	}
	return block, nil
}

// MaxHeight returns the highest height stored for chain, adapted from the
// teacher's MaxBlockHeight.
func (r *Repository) MaxHeight(ctx context.Context, chain chainmodel.Chain) (uint64, error) {
	start := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("max_height", chain, r.network, err, start)
	}()

	const query = `
SELECT coalesce(max(height), toUInt64(0)) AS max_height
FROM block_index
WHERE chain = ? AND network = ?`

	rows, queryErr := r.conn.Query(ctx, query, string(chain), r.network)
	if queryErr != nil {
		err = fmt.Errorf("query max height: %w", queryErr)
		return 0, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close rows: %w", closeErr)
		}
	}()

	var height uint64
	if !rows.Next() {
		err = fmt.Errorf("max height not found")
		return 0, err
	}
	if err = rows.Scan(&height); err != nil {
		return 0, fmt.Errorf("scan max height: %w", err)
	}
	if err = rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate max height: %w", err)
	}
	return height, nil
}
