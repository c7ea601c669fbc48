package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hirosystems/chainhook/internal/chainmodel"
	"github.com/hirosystems/chainhook/internal/predicate"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "predicates.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func samplePredicate(uuid string) predicate.Predicate {
	return predicate.Predicate{
		UUID:  uuid,
		Name:  "sample",
		Chain: chainmodel.Bitcoin,
		IfThis: predicate.MatchSpec{
			Chain:   chainmodel.Bitcoin,
			Bitcoin: &predicate.BitcoinMatchSpec{Kind: predicate.BitcoinMatchTxID, TxIDEquals: "abc"},
		},
		ThenThat: predicate.ActionSpec{Kind: predicate.ActionHTTPPost, URL: "https://example.com/hook"},
	}
}

func TestStore_RegisterAndGet(t *testing.T) {
	s := openTestStore(t)
	p := samplePredicate("uuid-1")
	require.NoError(t, s.Register(p))

	got, status, err := s.Get("uuid-1")
	require.NoError(t, err)
	require.Equal(t, p.UUID, got.UUID)
	require.Equal(t, predicate.StatusNew, status.Kind)
}

func TestStore_GetMissing(t *testing.T) {
	s := openTestStore(t)
	_, _, err := s.Get("nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_List(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Register(samplePredicate("a")))
	require.NoError(t, s.Register(samplePredicate("b")))

	predicates, statuses, err := s.List()
	require.NoError(t, err)
	require.Len(t, predicates, 2)
	require.Len(t, statuses, 2)
}

func TestStore_UpdateStatus(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Register(samplePredicate("uuid-1")))

	newStatus := predicate.PredicateStatus{
		Kind:      predicate.StatusStreaming,
		Streaming: &predicate.StreamingStatus{LastEvaluatedBlock: 42},
	}
	require.NoError(t, s.UpdateStatus("uuid-1", newStatus))

	_, status, err := s.Get("uuid-1")
	require.NoError(t, err)
	require.Equal(t, predicate.StatusStreaming, status.Kind)
	require.Equal(t, uint64(42), status.LastEvaluatedBlock())
}

func TestStore_UpdateStatusMissing(t *testing.T) {
	s := openTestStore(t)
	err := s.UpdateStatus("nope", predicate.NewStatus())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Deregister(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Register(samplePredicate("uuid-1")))
	require.NoError(t, s.Deregister("uuid-1"))

	_, _, err := s.Get("uuid-1")
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, s.Deregister("uuid-1"), ErrNotFound)
}

func TestStore_RoundTripsPrintEventRegex(t *testing.T) {
	s := openTestStore(t)
	p := samplePredicate("uuid-regex")
	p.Chain = chainmodel.Stacks
	p.IfThis = predicate.MatchSpec{Chain: chainmodel.Stacks, Stacks: &predicate.StacksMatchSpec{
		Kind:               predicate.StacksMatchPrintEvent,
		ContractIdentifier: "ST1.foo",
		PrintOp:            predicate.PrintMatchesRegex,
		PrintRegexPattern:  `(?:^|\W)vault(?:$|\W)`,
	}}
	require.NoError(t, predicate.Validate(&p))
	require.NoError(t, s.Register(p))

	got, _, err := s.Get("uuid-regex")
	require.NoError(t, err)
	require.NotNil(t, got.IfThis.Stacks.PrintRegex, "regex must be recompiled on load since it is not persisted")
	require.True(t, got.IfThis.Stacks.PrintRegex.MatchString("withdraw-vault"))
}
