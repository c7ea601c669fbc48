package bitcoin

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/hirosystems/chainhook/internal/chainmodel"
	"github.com/hirosystems/chainhook/pkg/safe"
)

// chainParams resolves network name to the btcd params needed to decode an
// address from a raw script, adapted from the teacher's
// chainParamsForNetwork in internal/utxo/bitcoin/script_decoder.go.
func chainParams(network string) (*chaincfg.Params, error) {
	switch strings.ToLower(network) {
	case "main", "mainnet", "bitcoin":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unsupported bitcoin network %q", network)
	}
}

// normalizeBlock converts a verbose RPC block into a chainmodel.RawBlock.
// It performs field-level normalization and address/script-type decoding
// only; ordinal inscription envelopes and Bitcoin-anchored Stacks protocol
// operations are not parsed here (outside a thin normalization shim's
// scope per spec.md §1) — chainmodel.BitcoinTxBody.OrdinalOps/
// StacksProtocolOps are always empty coming out of this adapter.
func normalizeBlock(params *chaincfg.Params, raw *btcjson.GetBlockVerboseTxResult) (*chainmodel.RawBlock, error) {
	ts := time.Unix(raw.Time, 0).UTC()

	txs := make([]chainmodel.Tx, 0, len(raw.Tx))
	for _, rawTx := range raw.Tx {
		body, err := normalizeTx(params, rawTx)
		if err != nil {
			return nil, fmt.Errorf("normalize tx %s: %w", rawTx.Txid, err)
		}
		txs = append(txs, chainmodel.Tx{
			Chain:                 chainmodel.Bitcoin,
			TransactionIdentifier: chainmodel.TransactionIdentifier{Hash: body.TxID},
			BlockHash:             raw.Hash,
			Bitcoin:               body,
		})
	}

	height, err := safe.Uint64(raw.Height)
	if err != nil {
		return nil, fmt.Errorf("block height: %w", err)
	}
	var parentHeight uint64
	if height > 0 {
		parentHeight = height - 1
	}
	block := &chainmodel.RawBlock{
		Chain:     chainmodel.Bitcoin,
		ID:        chainmodel.BlockIdentifier{Index: height, Hash: raw.Hash},
		ParentID:  chainmodel.BlockIdentifier{Index: parentHeight, Hash: raw.PreviousHash},
		Timestamp: ts,
		Txs:       txs,
		Metadata: chainmodel.ChainMetadata{
			Difficulty: raw.Difficulty,
		},
	}
	return block, nil
}

func normalizeTx(params *chaincfg.Params, rawTx btcjson.TxRawResult) (*chainmodel.BitcoinTxBody, error) {
	inputs := make([]chainmodel.TxInput, 0, len(rawTx.Vin))
	hasWitness := false
	for i, vin := range rawTx.Vin {
		idx, err := safe.Uint32(i)
		if err != nil {
			return nil, fmt.Errorf("input index: %w", err)
		}
		input := chainmodel.TxInput{
			Index:      idx,
			PrevTxID:   vin.Txid,
			PrevVout:   vin.Vout,
			IsCoinbase: vin.Coinbase != "",
			Witness:    append([]string(nil), vin.Witness...),
		}
		if len(input.Witness) > 0 {
			hasWitness = true
		}
		inputs = append(inputs, input)
	}

	outputs := make([]chainmodel.TxOutput, 0, len(rawTx.Vout))
	for _, vout := range rawTx.Vout {
		output, err := normalizeOutput(params, vout)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, output)
	}

	return &chainmodel.BitcoinTxBody{
		TxID:       rawTx.Txid,
		WTxID:      rawTx.Hash,
		Inputs:     inputs,
		Outputs:    outputs,
		HasWitness: hasWitness,
	}, nil
}

func normalizeOutput(params *chaincfg.Params, vout btcjson.Vout) (chainmodel.TxOutput, error) {
	amount, err := btcutil.NewAmount(vout.Value)
	if err != nil {
		return chainmodel.TxOutput{}, fmt.Errorf("convert output value: %w", err)
	}
	valueSats, err := safe.Uint64(int64(amount))
	if err != nil {
		return chainmodel.TxOutput{}, fmt.Errorf("output value: %w", err)
	}
	output := chainmodel.TxOutput{
		Index:     vout.N,
		ValueSats: valueSats,
	}

	scriptType, address, opReturn, err := classifyScript(params, vout)
	if err != nil {
		return chainmodel.TxOutput{}, err
	}
	output.ScriptType = scriptType
	output.Address = address
	output.OpReturn = opReturn
	if vout.ScriptPubKey.Hex != "" {
		if raw, hexErr := hex.DecodeString(vout.ScriptPubKey.Hex); hexErr == nil {
			output.ScriptHex = raw
		}
	}
	return output, nil
}

// classifyScript maps a vout's ScriptPubKey to chainmodel's closed
// OutputScriptType set, decoding an address when one of the p2* forms
// applies. Adapted from the teacher's decodeAddresses, generalized to also
// return the classification (the teacher only ever needed the address).
func classifyScript(params *chaincfg.Params, vout btcjson.Vout) (chainmodel.OutputScriptType, string, []byte, error) {
	switch vout.ScriptPubKey.Type {
	case "pubkeyhash":
		addr, err := decodeAddress(params, vout)
		return chainmodel.ScriptTypeP2PKH, addr, nil, err
	case "scripthash":
		addr, err := decodeAddress(params, vout)
		return chainmodel.ScriptTypeP2SH, addr, nil, err
	case "witness_v0_keyhash":
		addr, err := decodeAddress(params, vout)
		return chainmodel.ScriptTypeP2WPKH, addr, nil, err
	case "witness_v0_scripthash":
		addr, err := decodeAddress(params, vout)
		return chainmodel.ScriptTypeP2WSH, addr, nil, err
	case "witness_v1_taproot":
		addr, err := decodeAddress(params, vout)
		return chainmodel.ScriptTypeP2TR, addr, nil, err
	case "nulldata":
		payload, err := opReturnPayload(vout)
		return chainmodel.ScriptTypeOpReturn, "", payload, err
	default:
		addr, _ := decodeAddress(params, vout) // best-effort; unclassified types may still resolve
		return chainmodel.ScriptTypeOther, addr, nil, nil
	}
}

func decodeAddress(params *chaincfg.Params, vout btcjson.Vout) (string, error) {
	if len(vout.ScriptPubKey.Addresses) > 0 {
		return vout.ScriptPubKey.Addresses[0], nil
	}
	if vout.ScriptPubKey.Address != "" {
		return vout.ScriptPubKey.Address, nil
	}
	if vout.ScriptPubKey.Hex == "" {
		return "", nil
	}

	scriptBytes, err := hex.DecodeString(vout.ScriptPubKey.Hex)
	if err != nil {
		return "", err
	}
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(scriptBytes, params)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", nil
	}
	return addrs[0].EncodeAddress(), nil
}

func opReturnPayload(vout btcjson.Vout) ([]byte, error) {
	if vout.ScriptPubKey.Hex == "" {
		return nil, nil
	}
	scriptBytes, err := hex.DecodeString(vout.ScriptPubKey.Hex)
	if err != nil {
		return nil, err
	}
	tokenizer := txscript.MakeScriptTokenizer(0, scriptBytes)
	var payload []byte
	for tokenizer.Next() {
		if tokenizer.Opcode() == txscript.OP_RETURN {
			continue
		}
		payload = append(payload, tokenizer.Data()...)
	}
	return payload, tokenizer.Err()
}
