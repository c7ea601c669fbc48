package evaluator

import (
	"strings"

	"github.com/hirosystems/chainhook/internal/chainmodel"
	"github.com/hirosystems/chainhook/internal/predicate"
)

func evaluateStacks(p predicate.Predicate, block chainmodel.Block) []chainmodel.MatchedTx {
	m := p.IfThis.Stacks
	if m == nil {
		return nil
	}

	if m.Kind == predicate.StacksMatchBlockHeight {
		if matchBlockHeight(m, block.ID.Index) {
			return blockScopedMatches(p.UUID, block)
		}
		return nil
	}

	var out []chainmodel.MatchedTx
	for i, tx := range block.Txs {
		if tx.Stacks == nil {
			continue
		}
		if !matchStacksTx(m, tx.Stacks) {
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

func matchBlockHeight(m *predicate.StacksMatchSpec, height uint64) bool {
	switch m.HeightOp {
	case predicate.NumericEquals:
		return height == m.Height
	case predicate.NumericHigherThan:
		return height > m.Height
	case predicate.NumericLowerThan:
		return height < m.Height
	case predicate.NumericBetween:
		return height >= m.Height && height <= m.HeightHigh
	default:
		return false
	}
}

func matchStacksTx(m *predicate.StacksMatchSpec, tx *chainmodel.StacksTxBody) bool {
	switch m.Kind {
	case predicate.StacksMatchTxID:
		return tx.TxID == m.TxIDEquals

	case predicate.StacksMatchFTEvent:
		return matchAssetEvent(tx.Events, m.AssetIdentifier, m.Actions, ftEventKindFor)
	case predicate.StacksMatchNFTEvent:
		return matchAssetEvent(tx.Events, m.AssetIdentifier, m.Actions, nftEventKindFor)
	case predicate.StacksMatchSTXEvent:
		for _, ev := range tx.Events {
			for _, action := range m.Actions {
				if ev.Kind == stxEventKindFor(action) {
					return true
				}
			}
		}
		return false

	case predicate.StacksMatchPrintEvent:
		for _, ev := range tx.Events {
			if ev.Kind != chainmodel.EventPrint || ev.ContractIdentifier != m.ContractIdentifier {
				continue
			}
			switch m.PrintOp {
			case predicate.PrintContains:
				if strings.Contains(ev.PrintPayload, m.PrintContainsValue) {
					return true
				}
			case predicate.PrintMatchesRegex:
				if m.PrintRegex != nil && m.PrintRegex.MatchString(ev.PrintPayload) {
					return true
				}
			}
		}
		return false

	case predicate.StacksMatchContractCall:
		// tx.ContractCall is only ever populated for direct invocations
		// (see chainmodel.ContractCall); this is what makes contract_call
		// matching here inherently direct-invocation-only.
		return tx.Kind == chainmodel.StacksTxContractCall &&
			tx.ContractCall != nil &&
			tx.ContractCall.ContractIdentifier == m.CallContractIdentifier &&
			tx.ContractCall.Method == m.CallMethod

	case predicate.StacksMatchContractDeployment:
		if tx.Kind != chainmodel.StacksTxContractDeployment || tx.ContractDeployment == nil {
			return false
		}
		return matchContractDeployment(m, tx.ContractDeployment)

	case predicate.StacksMatchSignerMessage:
		if tx.SignerMessage == nil {
			return false
		}
		return m.SignerMessageKind == "" || string(tx.SignerMessage.Kind) == m.SignerMessageKind

	default:
		return false
	}
}

func matchAssetEvent(events []chainmodel.Event, assetIdentifier string, actions []predicate.AssetEventAction, kindFor func(predicate.AssetEventAction) chainmodel.EventKind) bool {
	for _, ev := range events {
		if ev.AssetIdentifier != assetIdentifier {
			continue
		}
		for _, action := range actions {
			if ev.Kind == kindFor(action) {
				return true
			}
		}
	}
	return false
}

func ftEventKindFor(action predicate.AssetEventAction) chainmodel.EventKind {
	switch action {
	case predicate.ActionMint:
		return chainmodel.EventFTMint
	case predicate.ActionTransfer:
		return chainmodel.EventFTTransfer
	case predicate.ActionBurn:
		return chainmodel.EventFTBurn
	default:
		return ""
	}
}

func nftEventKindFor(action predicate.AssetEventAction) chainmodel.EventKind {
	switch action {
	case predicate.ActionMint:
		return chainmodel.EventNFTMint
	case predicate.ActionTransfer:
		return chainmodel.EventNFTTransfer
	case predicate.ActionBurn:
		return chainmodel.EventNFTBurn
	default:
		return ""
	}
}

func stxEventKindFor(action predicate.AssetEventAction) chainmodel.EventKind {
	switch action {
	case predicate.ActionMint:
		return chainmodel.EventSTXMint
	case predicate.ActionTransfer:
		return chainmodel.EventSTXTransfer
	case predicate.ActionBurn:
		return chainmodel.EventSTXBurn
	case predicate.ActionLock:
		return chainmodel.EventSTXLock
	default:
		return ""
	}
}

func matchContractDeployment(m *predicate.StacksMatchSpec, dep *chainmodel.ContractDeployment) bool {
	switch m.DeploymentFilter {
	case predicate.DeploymentAny:
		return true
	case predicate.DeploymentDeployerEquals:
		return dep.Deployer == m.DeployerEquals
	case predicate.DeploymentImplementsTrait:
		for _, trait := range dep.ImplementedTraits {
			if trait == m.ImplementsTraitID {
				return true
			}
		}
		return false
	default:
		return false
	}
}
