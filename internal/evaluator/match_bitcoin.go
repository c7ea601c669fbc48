package evaluator

import (
	"bytes"

	"github.com/hirosystems/chainhook/internal/chainmodel"
	"github.com/hirosystems/chainhook/internal/predicate"
)

func evaluateBitcoin(p predicate.Predicate, block chainmodel.Block) []chainmodel.MatchedTx {
	m := p.IfThis.Bitcoin
	if m == nil {
		return nil
	}

	var out []chainmodel.MatchedTx
	for i, tx := range block.Txs {
		if tx.Bitcoin == nil {
			continue
		}
		if !matchBitcoinTx(m, tx.Bitcoin) {
			continue
		}
		out = append(out, chainmodel.MatchedTx{
			PredicateUUID: p.UUID,
			BlockID:       block.ID,
			TxIndex:       i,
			Tx:            tx,
		})
	}
	return out
}

func matchBitcoinTx(m *predicate.BitcoinMatchSpec, tx *chainmodel.BitcoinTxBody) bool {
	switch m.Kind {
	case predicate.BitcoinMatchTxID:
		return tx.TxID == m.TxIDEquals

	case predicate.BitcoinMatchOutputsOpReturn:
		for _, out := range tx.Outputs {
			if out.ScriptType == chainmodel.ScriptTypeOpReturn && matchBytesOp(m.OpReturnOp, out.OpReturn, m.OpReturnPattern) {
				return true
			}
		}
		return false

	case predicate.BitcoinMatchOutputsP2PKH:
		return anyOutputAddressEquals(tx.Outputs, chainmodel.ScriptTypeP2PKH, m.AddressEquals)
	case predicate.BitcoinMatchOutputsP2SH:
		return anyOutputAddressEquals(tx.Outputs, chainmodel.ScriptTypeP2SH, m.AddressEquals)
	case predicate.BitcoinMatchOutputsP2WPKH:
		return anyOutputAddressEquals(tx.Outputs, chainmodel.ScriptTypeP2WPKH, m.AddressEquals)
	case predicate.BitcoinMatchOutputsP2WSH:
		return anyOutputAddressEquals(tx.Outputs, chainmodel.ScriptTypeP2WSH, m.AddressEquals)
	case predicate.BitcoinMatchOutputsP2TR:
		return anyOutputAddressEquals(tx.Outputs, chainmodel.ScriptTypeP2TR, m.AddressEquals)

	case predicate.BitcoinMatchStacksProtocol:
		for _, op := range tx.StacksProtocolOps {
			if m.StacksProtocolOp == "" || string(op.Kind) == string(m.StacksProtocolOp) {
				return true
			}
		}
		return false

	case predicate.BitcoinMatchOrdinalsProtocol:
		// inscription_feed covers reveal, transfer, and burn-via-fee as a
		// single undifferentiated feed.
		return len(tx.OrdinalOps) > 0

	default:
		return false
	}
}

func anyOutputAddressEquals(outputs []chainmodel.TxOutput, scriptType chainmodel.OutputScriptType, address string) bool {
	for _, out := range outputs {
		if out.ScriptType == scriptType && out.Address == address {
			return true
		}
	}
	return false
}

func matchBytesOp(op predicate.StringMatchOp, value, pattern []byte) bool {
	switch op {
	case predicate.StringEquals:
		return bytes.Equal(value, pattern)
	case predicate.StringStartsWith:
		return bytes.HasPrefix(value, pattern)
	case predicate.StringEndsWith:
		return bytes.HasSuffix(value, pattern)
	default:
		return false
	}
}
