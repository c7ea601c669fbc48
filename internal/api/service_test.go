package api

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hirosystems/chainhook/internal/chainmodel"
	"github.com/hirosystems/chainhook/internal/dispatch"
	"github.com/hirosystems/chainhook/internal/predicate"
	"github.com/hirosystems/chainhook/internal/predicate/store"
	"github.com/hirosystems/chainhook/internal/scan"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "predicates.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

type fakeLifecycle struct {
	registered   map[string]predicate.Predicate
	deregistered []string
}

func newFakeLifecycle() *fakeLifecycle {
	return &fakeLifecycle{registered: make(map[string]predicate.Predicate)}
}

func (f *fakeLifecycle) Register(ctx context.Context, p predicate.Predicate, tip uint64) predicate.PredicateStatus {
	f.registered[p.UUID] = p
	return predicate.NewStatus()
}

func (f *fakeLifecycle) Deregister(predicateUUID string) {
	f.deregistered = append(f.deregistered, predicateUUID)
	delete(f.registered, predicateUUID)
}

func (f *fakeLifecycle) Status(ctx context.Context, predicateUUID string) (predicate.PredicateStatus, error) {
	return predicate.NewStatus(), nil
}

func (f *fakeLifecycle) Interrupt(ctx context.Context, predicateUUID string, reason string) {}

type fakeDispatch struct {
	registered   []string
	deregistered []string
}

func (f *fakeDispatch) Register(ctx context.Context, predicateUUID string, sink dispatch.Sink, interrupt dispatch.InterruptFunc) {
	f.registered = append(f.registered, predicateUUID)
}

func (f *fakeDispatch) Deregister(predicateUUID string) {
	f.deregistered = append(f.deregistered, predicateUUID)
}

type fakeTips struct {
	tip uint64
}

func (f *fakeTips) Tip(ctx context.Context, chain chainmodel.Chain) (uint64, error) {
	return f.tip, nil
}

type fakeScanRunner struct {
	mu      sync.Mutex
	targets []scan.Target
	done    chan struct{}
}

func newFakeScanRunner() *fakeScanRunner {
	return &fakeScanRunner{done: make(chan struct{}, 8)}
}

func (f *fakeScanRunner) RunAll(ctx context.Context, targets []scan.Target) error {
	f.mu.Lock()
	f.targets = append(f.targets, targets...)
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil
}

func noScanners() map[chainmodel.Chain]ScanRunner {
	return nil
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

func TestRegisterPredicate_AssignsUUIDAndPersists(t *testing.T) {
	st := openTestStore(t)
	lc := newFakeLifecycle()
	svc := NewService(context.Background(), st, lc, &fakeDispatch{}, &fakeTips{tip: 100}, noScanners(), nil)

	p := samplePredicate("")
	view, err := svc.RegisterPredicate(context.Background(), p)
	require.NoError(t, err)
	require.NotEmpty(t, view.Predicate.UUID)

	_, _, err = st.Get(view.Predicate.UUID)
	require.NoError(t, err)
	require.Contains(t, lc.registered, view.Predicate.UUID)
}

func TestRegisterPredicate_InvalidPredicate_ReturnsValidationError(t *testing.T) {
	st := openTestStore(t)
	svc := NewService(context.Background(), st, newFakeLifecycle(), &fakeDispatch{}, &fakeTips{}, noScanners(), nil)

	p := samplePredicate("bad")
	p.Name = ""
	_, err := svc.RegisterPredicate(context.Background(), p)
	require.Error(t, err)
	var validationErr *predicate.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestListPredicates_ReturnsAllRegistered(t *testing.T) {
	st := openTestStore(t)
	svc := NewService(context.Background(), st, newFakeLifecycle(), &fakeDispatch{}, &fakeTips{}, noScanners(), nil)

	_, err := svc.RegisterPredicate(context.Background(), samplePredicate("a"))
	require.NoError(t, err)
	_, err = svc.RegisterPredicate(context.Background(), samplePredicate("b"))
	require.NoError(t, err)

	views, err := svc.ListPredicates(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 2)
}

func TestGetPredicate_Unknown_ReturnsError(t *testing.T) {
	st := openTestStore(t)
	svc := NewService(context.Background(), st, newFakeLifecycle(), &fakeDispatch{}, &fakeTips{}, noScanners(), nil)
	_, err := svc.GetPredicate(context.Background(), "nope")
	require.Error(t, err)
}

func TestDeregisterPredicate_RemovesFromStoreAndLifecycle(t *testing.T) {
	st := openTestStore(t)
	lc := newFakeLifecycle()
	svc := NewService(context.Background(), st, lc, &fakeDispatch{}, &fakeTips{}, noScanners(), nil)

	view, err := svc.RegisterPredicate(context.Background(), samplePredicate("dereg"))
	require.NoError(t, err)

	require.NoError(t, svc.DeregisterPredicate(context.Background(), view.Predicate.UUID))
	_, _, err = st.Get(view.Predicate.UUID)
	require.Error(t, err)
	require.Contains(t, lc.deregistered, view.Predicate.UUID)
}

func TestDeregisterPredicate_Unknown_ReturnsError(t *testing.T) {
	st := openTestStore(t)
	svc := NewService(context.Background(), st, newFakeLifecycle(), &fakeDispatch{}, &fakeTips{}, noScanners(), nil)
	require.Error(t, svc.DeregisterPredicate(context.Background(), "nope"))
}

type scanningLifecycle struct {
	*fakeLifecycle
}

func (f *scanningLifecycle) Register(ctx context.Context, p predicate.Predicate, tip uint64) predicate.PredicateStatus {
	f.fakeLifecycle.Register(ctx, p, tip)
	return predicate.PredicateStatus{Kind: predicate.StatusScanning, Scanning: &predicate.ScanningStatus{}}
}

func TestRegisterPredicate_ScanningStatus_TriggersBackgroundScan(t *testing.T) {
	st := openTestStore(t)
	lc := &scanningLifecycle{fakeLifecycle: newFakeLifecycle()}
	runner := newFakeScanRunner()
	scanners := map[chainmodel.Chain]ScanRunner{chainmodel.Bitcoin: runner}
	svc := NewService(context.Background(), st, lc, &fakeDispatch{}, &fakeTips{tip: 100}, scanners, nil)

	start := uint64(10)
	p := samplePredicate("scan-me")
	p.StartBlock = &start

	_, err := svc.RegisterPredicate(context.Background(), p)
	require.NoError(t, err)

	select {
	case <-runner.done:
	case <-time.After(time.Second):
		t.Fatal("RunAll was not called")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.Len(t, runner.targets, 1)
	require.Equal(t, "scan-me", runner.targets[0].Predicate.UUID)
	require.Equal(t, uint64(10), runner.targets[0].FromHeight)
	require.Equal(t, uint64(100), runner.targets[0].ToHeight)
}
