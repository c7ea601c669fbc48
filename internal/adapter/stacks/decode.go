package stacks

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hirosystems/chainhook/internal/chainmodel"
)

// normalizeBlock turns a decoded /new_block payload into a chainmodel.RawBlock.
// Field selection follows the teacher's normalization convention in
// internal/adapter/bitcoin/normalize.go: pull only what the pool, evaluator,
// and dispatcher actually consume, leave the rest of the upstream payload on
// the floor.
func normalizeBlock(p newBlockPayload) (*chainmodel.RawBlock, error) {
	txs := make([]chainmodel.Tx, 0, len(p.Transactions))
	for _, rawTx := range p.Transactions {
		body, err := normalizeTx(rawTx)
		if err != nil {
			return nil, fmt.Errorf("normalize tx %s: %w", rawTx.TxID, err)
		}
		txs = append(txs, chainmodel.Tx{
			Chain:                 chainmodel.Stacks,
			TransactionIdentifier: chainmodel.TransactionIdentifier{Hash: rawTx.TxID},
			Stacks:                body,
		})
	}

	var parentHeight uint64
	if p.BlockHeight > 0 {
		parentHeight = p.BlockHeight - 1
	}

	return &chainmodel.RawBlock{
		Chain: chainmodel.Stacks,
		ID: chainmodel.BlockIdentifier{
			Index: p.BlockHeight,
			Hash:  p.IndexBlockHash,
		},
		ParentID: chainmodel.BlockIdentifier{
			Index: parentHeight,
			Hash:  p.ParentIndexBlockHash,
		},
		Timestamp: time.Unix(p.BurnBlockTime, 0).UTC(),
		Txs:       txs,
		Metadata: chainmodel.ChainMetadata{
			StacksBlockHash: p.IndexBlockHash,
			BitcoinAnchorBlockID: chainmodel.BlockIdentifier{
				Index: p.BurnBlockHeight,
				Hash:  p.BurnBlockHash,
			},
			PoxCycleIndex:    p.PoxCycleIndex,
			PoxCycleLength:   p.PoxCycleLength,
			PoxCyclePosition: p.PoxCyclePosition,
			TenureHeight:     p.TenureHeight,
			BlockTime:        uint64(p.BurnBlockTime),
			SignerBitvec:     p.SignerBitvec,
			SignerSignature:  p.SignerSignature,
			CycleNumber:      derefUint64(p.CycleNumber),
			RewardSetPresent: p.RewardSet != nil,
		},
	}, nil
}

func derefUint64(v *uint64) uint64 {
	if v == nil {
		return 0
	}
	return *v
}

func normalizeTx(rawTx transactionPayload) (*chainmodel.StacksTxBody, error) {
	events, err := normalizeEvents(rawTx.Events)
	if err != nil {
		return nil, err
	}

	body := &chainmodel.StacksTxBody{
		TxID:     rawTx.TxID,
		Position: rawTx.TxIndex,
		Events:   events,
		Success:  rawTx.Status == "success",
	}

	switch {
	case rawTx.ContractCall != nil:
		body.Kind = chainmodel.StacksTxContractCall
		body.ContractCall = &chainmodel.ContractCall{
			ContractIdentifier: rawTx.ContractCall.ContractID,
			Method:             rawTx.ContractCall.Function,
			Args:               rawTx.ContractCall.Args,
		}
	case rawTx.ContractDeployment != nil:
		body.Kind = chainmodel.StacksTxContractDeployment
		body.ContractDeployment = &chainmodel.ContractDeployment{
			ContractIdentifier: rawTx.ContractDeployment.ContractID,
			Deployer:           rawTx.ContractDeployment.Deployer,
			ImplementedTraits:  rawTx.ContractDeployment.ImplementedTraits,
		}
	case rawTx.TokenTransfer != nil:
		body.Kind = chainmodel.StacksTxTokenTransfer
	case rawTx.Coinbase != nil:
		body.Kind = chainmodel.StacksTxCoinbase
	}

	return body, nil
}

func normalizeEvents(raw []eventPayload) ([]chainmodel.Event, error) {
	events := make([]chainmodel.Event, 0, len(raw))
	for i, e := range raw {
		event, ok, err := normalizeEvent(e)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		if ok {
			events = append(events, event)
		}
	}
	return events, nil
}

func normalizeEvent(e eventPayload) (chainmodel.Event, bool, error) {
	switch {
	case e.FTMintEvent != nil:
		return ftEvent(chainmodel.EventFTMint, e.FTMintEvent)
	case e.FTTransferEvent != nil:
		return ftEvent(chainmodel.EventFTTransfer, e.FTTransferEvent)
	case e.FTBurnEvent != nil:
		return ftEvent(chainmodel.EventFTBurn, e.FTBurnEvent)
	case e.NFTMintEvent != nil:
		return nftEvent(chainmodel.EventNFTMint, e.NFTMintEvent), true, nil
	case e.NFTTransferEvent != nil:
		return nftEvent(chainmodel.EventNFTTransfer, e.NFTTransferEvent), true, nil
	case e.NFTBurnEvent != nil:
		return nftEvent(chainmodel.EventNFTBurn, e.NFTBurnEvent), true, nil
	case e.STXMintEvent != nil:
		return stxEvent(chainmodel.EventSTXMint, e.STXMintEvent)
	case e.STXTransferEvent != nil:
		return stxEvent(chainmodel.EventSTXTransfer, e.STXTransferEvent)
	case e.STXBurnEvent != nil:
		return stxEvent(chainmodel.EventSTXBurn, e.STXBurnEvent)
	case e.STXLockEvent != nil:
		return stxEvent(chainmodel.EventSTXLock, e.STXLockEvent)
	case e.SmartContractEvent != nil:
		return chainmodel.Event{
			Kind:               chainmodel.EventPrint,
			ContractIdentifier: e.SmartContractEvent.ContractIdentifier,
			PrintPayload:       e.SmartContractEvent.Repr,
		}, true, nil
	default:
		return chainmodel.Event{}, false, nil
	}
}

func ftEvent(kind chainmodel.EventKind, p *ftEventPayload) (chainmodel.Event, bool, error) {
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return chainmodel.Event{}, false, err
	}
	return chainmodel.Event{
		Kind:            kind,
		AssetIdentifier: p.AssetIdentifier,
		Sender:          p.Sender,
		Recipient:       p.Recipient,
		Amount:          amount,
	}, true, nil
}

func nftEvent(kind chainmodel.EventKind, p *nftEventPayload) chainmodel.Event {
	return chainmodel.Event{
		Kind:            kind,
		AssetIdentifier: p.AssetIdentifier,
		Sender:          p.Sender,
		Recipient:       p.Recipient,
	}
}

func stxEvent(kind chainmodel.EventKind, p *stxEventPayload) (chainmodel.Event, bool, error) {
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return chainmodel.Event{}, false, err
	}
	return chainmodel.Event{
		Kind:      kind,
		Sender:    p.Sender,
		Recipient: p.Recipient,
		Amount:    amount,
	}, true, nil
}

func parseAmount(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return v, nil
}
