package evaluator

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hirosystems/chainhook/internal/chainmodel"
	"github.com/hirosystems/chainhook/internal/predicate"
)

func bitcoinPredicate(m *predicate.BitcoinMatchSpec) predicate.Predicate {
	return predicate.Predicate{
		UUID:   "p1",
		Chain:  chainmodel.Bitcoin,
		IfThis: predicate.MatchSpec{Chain: chainmodel.Bitcoin, Bitcoin: m},
	}
}

func stacksPredicate(m *predicate.StacksMatchSpec) predicate.Predicate {
	return predicate.Predicate{
		UUID:   "p1",
		Chain:  chainmodel.Stacks,
		IfThis: predicate.MatchSpec{Chain: chainmodel.Stacks, Stacks: m},
	}
}

func bitcoinBlock(txs ...chainmodel.Tx) chainmodel.Block {
	return chainmodel.Block{Chain: chainmodel.Bitcoin, ID: chainmodel.BlockIdentifier{Index: 10200, Hash: "b"}, Txs: txs}
}

func stacksBlock(index uint64, txs ...chainmodel.Tx) chainmodel.Block {
	return chainmodel.Block{Chain: chainmodel.Stacks, ID: chainmodel.BlockIdentifier{Index: index, Hash: "b"}, Txs: txs}
}

func TestEvaluate_Bitcoin_P2WPKH(t *testing.T) {
	p := bitcoinPredicate(&predicate.BitcoinMatchSpec{
		Kind:          predicate.BitcoinMatchOutputsP2WPKH,
		AddressEquals: "bcrt1qnxknq3wqtphv7sfwy07m7e4sr6ut9yt6ed99jg",
	})

	matching := chainmodel.Tx{Chain: chainmodel.Bitcoin, TransactionIdentifier: chainmodel.TransactionIdentifier{Hash: "tx1"}, Bitcoin: &chainmodel.BitcoinTxBody{
		TxID: "tx1",
		Outputs: []chainmodel.TxOutput{
			{ScriptType: chainmodel.ScriptTypeP2WPKH, Address: "bcrt1qnxknq3wqtphv7sfwy07m7e4sr6ut9yt6ed99jg"},
		},
	}}
	nonMatching := chainmodel.Tx{Chain: chainmodel.Bitcoin, TransactionIdentifier: chainmodel.TransactionIdentifier{Hash: "tx2"}, Bitcoin: &chainmodel.BitcoinTxBody{
		TxID:    "tx2",
		Outputs: []chainmodel.TxOutput{{ScriptType: chainmodel.ScriptTypeP2WPKH, Address: "bcrt1qsomeoneelse"}},
	}}

	matches := Evaluate(p, bitcoinBlock(matching, nonMatching))
	require.Len(t, matches, 1)
	require.Equal(t, "tx1", matches[0].Tx.TransactionIdentifier.Hash)
	require.False(t, matches[0].BlockScoped)
}

func TestEvaluate_Bitcoin_OpReturnOps(t *testing.T) {
	tx := chainmodel.Tx{Chain: chainmodel.Bitcoin, TransactionIdentifier: chainmodel.TransactionIdentifier{Hash: "tx1"}, Bitcoin: &chainmodel.BitcoinTxBody{
		TxID:    "tx1",
		Outputs: []chainmodel.TxOutput{{ScriptType: chainmodel.ScriptTypeOpReturn, OpReturn: []byte("hello-world")}},
	}}

	cases := []struct {
		name    string
		op      predicate.StringMatchOp
		pattern []byte
		want    bool
	}{
		{"equals-match", predicate.StringEquals, []byte("hello-world"), true},
		{"equals-mismatch", predicate.StringEquals, []byte("nope"), false},
		{"starts-with", predicate.StringStartsWith, []byte("hello"), true},
		{"ends-with", predicate.StringEndsWith, []byte("world"), true},
		{"ends-with-mismatch", predicate.StringEndsWith, []byte("hello"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := bitcoinPredicate(&predicate.BitcoinMatchSpec{
				Kind: predicate.BitcoinMatchOutputsOpReturn, OpReturnOp: tc.op, OpReturnPattern: tc.pattern,
			})
			matches := Evaluate(p, bitcoinBlock(tx))
			require.Equal(t, tc.want, len(matches) == 1)
		})
	}
}

func TestEvaluate_Bitcoin_TxID(t *testing.T) {
	hash := "0x411e78f4b727fc0a78b86c3fd56da0c741c71339713be81d7528c4015665267b"
	p := bitcoinPredicate(&predicate.BitcoinMatchSpec{Kind: predicate.BitcoinMatchTxID, TxIDEquals: hash})

	tx := chainmodel.Tx{Chain: chainmodel.Bitcoin, TransactionIdentifier: chainmodel.TransactionIdentifier{Hash: hash}, Bitcoin: &chainmodel.BitcoinTxBody{TxID: hash}}
	other := chainmodel.Tx{Chain: chainmodel.Bitcoin, TransactionIdentifier: chainmodel.TransactionIdentifier{Hash: "other"}, Bitcoin: &chainmodel.BitcoinTxBody{TxID: "other"}}

	matches := Evaluate(p, bitcoinBlock(other, tx))
	require.Len(t, matches, 1)
	require.Equal(t, hash, matches[0].Tx.TransactionIdentifier.Hash)
}

func TestEvaluate_Bitcoin_OrdinalsFeedCoversAllVariants(t *testing.T) {
	p := bitcoinPredicate(&predicate.BitcoinMatchSpec{Kind: predicate.BitcoinMatchOrdinalsProtocol})

	for _, kind := range []chainmodel.OrdinalOpKind{
		chainmodel.OrdinalReveal, chainmodel.OrdinalTransfer, chainmodel.OrdinalBurnViaFee,
	} {
		tx := chainmodel.Tx{Chain: chainmodel.Bitcoin, TransactionIdentifier: chainmodel.TransactionIdentifier{Hash: "tx"}, Bitcoin: &chainmodel.BitcoinTxBody{
			TxID:       "tx",
			OrdinalOps: []chainmodel.OrdinalOp{{Kind: kind}},
		}}
		matches := Evaluate(p, bitcoinBlock(tx))
		require.Len(t, matches, 1, "ordinals_protocol must match %s", kind)
	}
}

func TestEvaluate_Stacks_BlockHeightIsBlockScoped(t *testing.T) {
	p := stacksPredicate(&predicate.StacksMatchSpec{Kind: predicate.StacksMatchBlockHeight, HeightOp: predicate.NumericHigherThan, Height: 100})

	tx1 := chainmodel.Tx{Chain: chainmodel.Stacks, TransactionIdentifier: chainmodel.TransactionIdentifier{Hash: "tx1"}, Stacks: &chainmodel.StacksTxBody{TxID: "tx1"}}
	tx2 := chainmodel.Tx{Chain: chainmodel.Stacks, TransactionIdentifier: chainmodel.TransactionIdentifier{Hash: "tx2"}, Stacks: &chainmodel.StacksTxBody{TxID: "tx2"}}

	matches := Evaluate(p, stacksBlock(101, tx1, tx2))
	require.Len(t, matches, 2, "block_height selects the whole block, not individual transactions")
	require.True(t, matches[0].BlockScoped)

	require.Empty(t, Evaluate(p, stacksBlock(100, tx1, tx2)))
}

func TestEvaluate_Stacks_PrintEventRegexWordBoundary(t *testing.T) {
	p := stacksPredicate(&predicate.StacksMatchSpec{
		Kind:               predicate.StacksMatchPrintEvent,
		ContractIdentifier: "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM.monkey-sip09",
		PrintOp:            predicate.PrintMatchesRegex,
		PrintRegexPattern:  `(?:^|\W)vault(?:$|\W)`,
		PrintRegex:         regexp.MustCompile(`(?:^|\W)vault(?:$|\W)`),
	})

	withdraw := chainmodel.Tx{Chain: chainmodel.Stacks, TransactionIdentifier: chainmodel.TransactionIdentifier{Hash: "tx1"}, Stacks: &chainmodel.StacksTxBody{
		TxID: "tx1",
		Events: []chainmodel.Event{{
			Kind:               chainmodel.EventPrint,
			ContractIdentifier: "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM.monkey-sip09",
			PrintPayload:       "withdraw-vault",
		}},
	}}
	require.Len(t, Evaluate(p, stacksBlock(1, withdraw)), 1)

	vaulted := chainmodel.Tx{Chain: chainmodel.Stacks, TransactionIdentifier: chainmodel.TransactionIdentifier{Hash: "tx2"}, Stacks: &chainmodel.StacksTxBody{
		TxID: "tx2",
		Events: []chainmodel.Event{{
			Kind:               chainmodel.EventPrint,
			ContractIdentifier: "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM.monkey-sip09",
			PrintPayload:       "vaulted",
		}},
	}}
	require.Empty(t, Evaluate(p, stacksBlock(1, vaulted)), "word boundary must reject a mid-word match")
}

func TestEvaluate_Stacks_ContractCallDirectOnly(t *testing.T) {
	p := stacksPredicate(&predicate.StacksMatchSpec{
		Kind:                    predicate.StacksMatchContractCall,
		CallContractIdentifier:  "SP000000000000000000002Q6VF78.pox",
		CallMethod:              "stack-stx",
	})

	direct := chainmodel.Tx{Chain: chainmodel.Stacks, TransactionIdentifier: chainmodel.TransactionIdentifier{Hash: "tx1"}, Stacks: &chainmodel.StacksTxBody{
		TxID: "tx1",
		Kind: chainmodel.StacksTxContractCall,
		ContractCall: &chainmodel.ContractCall{
			ContractIdentifier: "SP000000000000000000002Q6VF78.pox",
			Method:             "stack-stx",
		},
	}}
	// A tx whose *own* direct call targets a different contract, even if
	// that contract's execution internally invokes pox::stack-stx, never
	// carries a ContractCall pointing at pox — cross-contract invocations
	// are simply absent from this field (chainmodel.ContractCall doc).
	indirect := chainmodel.Tx{Chain: chainmodel.Stacks, TransactionIdentifier: chainmodel.TransactionIdentifier{Hash: "tx2"}, Stacks: &chainmodel.StacksTxBody{
		TxID: "tx2",
		Kind: chainmodel.StacksTxContractCall,
		ContractCall: &chainmodel.ContractCall{
			ContractIdentifier: "SP2C2YFP12AJZB4MABJBAJ55XECVS7E4PMMZ89YZR.some-vault",
			Method:             "withdraw",
		},
	}}

	matches := Evaluate(p, stacksBlock(1, direct, indirect))
	require.Len(t, matches, 1)
	require.Equal(t, "tx1", matches[0].Tx.TransactionIdentifier.Hash)
}

func TestEvaluate_Stacks_FTEventMatchesAssetAndAction(t *testing.T) {
	p := stacksPredicate(&predicate.StacksMatchSpec{
		Kind:            predicate.StacksMatchFTEvent,
		AssetIdentifier: "SP000...token::token",
		Actions:         []predicate.AssetEventAction{predicate.ActionTransfer},
	})

	matching := chainmodel.Tx{Chain: chainmodel.Stacks, TransactionIdentifier: chainmodel.TransactionIdentifier{Hash: "tx1"}, Stacks: &chainmodel.StacksTxBody{
		TxID: "tx1",
		Events: []chainmodel.Event{{Kind: chainmodel.EventFTTransfer, AssetIdentifier: "SP000...token::token"}},
	}}
	wrongAction := chainmodel.Tx{Chain: chainmodel.Stacks, TransactionIdentifier: chainmodel.TransactionIdentifier{Hash: "tx2"}, Stacks: &chainmodel.StacksTxBody{
		TxID: "tx2",
		Events: []chainmodel.Event{{Kind: chainmodel.EventFTMint, AssetIdentifier: "SP000...token::token"}},
	}}

	matches := Evaluate(p, stacksBlock(1, matching, wrongAction))
	require.Len(t, matches, 1)
	require.Equal(t, "tx1", matches[0].Tx.TransactionIdentifier.Hash)
}

func TestEvaluate_WrongChainReturnsNil(t *testing.T) {
	p := bitcoinPredicate(&predicate.BitcoinMatchSpec{Kind: predicate.BitcoinMatchTxID, TxIDEquals: "x"})
	require.Nil(t, Evaluate(p, stacksBlock(1)))
}
