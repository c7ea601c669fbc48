package clickhouse

import (
	"encoding/json"
	"fmt"

	"github.com/hirosystems/chainhook/internal/chainmodel"
)

// encodeBlock renders a block to the JSON blob stored in block_index.body.
// A full JSON round-trip, rather than column-per-field, because a block's
// transaction list is itself a closed sum type (chainmodel.Tx's
// Bitcoin/Stacks split) with no fixed arity; ClickHouse's columnar layout
// has nothing natural to flatten that into, while the scan coordinator only
// ever needs the whole chainmodel.Block back out, never a slice of it.
func encodeBlock(block chainmodel.Block) (string, error) {
	data, err := json.Marshal(block)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeBlock(body string) (*chainmodel.Block, error) {
	var block chainmodel.Block
	if err := json.Unmarshal([]byte(body), &block); err != nil {
		return nil, fmt.Errorf("unmarshal block body: %w", err)
	}
	return &block, nil
}
