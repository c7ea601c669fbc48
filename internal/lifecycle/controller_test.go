package lifecycle

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hirosystems/chainhook/internal/predicate"
	"github.com/hirosystems/chainhook/internal/predicate/store"
	"github.com/hirosystems/chainhook/internal/telemetry"
)

func newTestController(t *testing.T) (*Controller, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "predicates.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewController(st, telemetry.NewLifecycle(), zap.NewNop()), st
}

func testPredicate(uuid string) predicate.Predicate {
	return predicate.Predicate{UUID: uuid, Name: "test-" + uuid}
}

func TestController_Register_PersistsInitialStatus(t *testing.T) {
	c, st := newTestController(t)
	require.NoError(t, st.Register(testPredicate("p1")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	status := c.Register(ctx, testPredicate("p1"), 100)
	require.Equal(t, predicate.StatusStreaming, status.Kind)

	_, persisted, err := st.Get("p1")
	require.NoError(t, err)
	require.Equal(t, predicate.StatusStreaming, persisted.Kind)
}

func TestController_RecordApply_TransitionsAndPersists(t *testing.T) {
	c, st := newTestController(t)
	p := predicate.Predicate{UUID: "p2", ExpireAfterOccurrence: uptr(1)}
	require.NoError(t, st.Register(p))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Register(ctx, p, 100)

	status, err := c.RecordApply(ctx, "p2", 101, 1, time.Unix(1700000000, 0))
	require.NoError(t, err)
	require.Equal(t, predicate.StatusUnconfirmedExpiration, status.Kind)

	_, persisted, err := st.Get("p2")
	require.NoError(t, err)
	require.Equal(t, predicate.StatusUnconfirmedExpiration, persisted.Kind)
}

func TestController_RecordRollback_RevertsExpiration(t *testing.T) {
	c, st := newTestController(t)
	p := predicate.Predicate{UUID: "p3", ExpireAfterOccurrence: uptr(1)}
	require.NoError(t, st.Register(p))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Register(ctx, p, 100)

	status, err := c.RecordApply(ctx, "p3", 101, 1, time.Unix(1700000000, 0))
	require.NoError(t, err)
	require.Equal(t, predicate.StatusUnconfirmedExpiration, status.Kind)

	status, err = c.RecordRollback(ctx, "p3", 101, 1)
	require.NoError(t, err)
	require.Equal(t, predicate.StatusStreaming, status.Kind)
}

func TestController_ConfirmBurial_TransitionsToConfirmed(t *testing.T) {
	c, st := newTestController(t)
	p := predicate.Predicate{UUID: "p4", EndBlock: uptr(100)}
	require.NoError(t, st.Register(p))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Register(ctx, p, 50)

	status, err := c.RecordApply(ctx, "p4", 100, 0, time.Unix(1700000000, 0))
	require.NoError(t, err)
	require.Equal(t, predicate.StatusUnconfirmedExpiration, status.Kind)

	status, err = c.ConfirmBurial(ctx, "p4", 110, 7)
	require.NoError(t, err)
	require.Equal(t, predicate.StatusConfirmedExpiration, status.Kind)
}

func TestController_Interrupt_OverridesAnyState(t *testing.T) {
	c, st := newTestController(t)
	p := testPredicate("p5")
	require.NoError(t, st.Register(p))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Register(ctx, p, 100)

	c.Interrupt(ctx, "p5", "rollback exceeds window")
	status, err := c.Status(ctx, "p5")
	require.NoError(t, err)
	require.Equal(t, predicate.StatusInterrupted, status.Kind)
	require.Equal(t, "rollback exceeds window", status.Interrupted.Reason)
}

func TestController_Interrupt_UnknownPredicate_NoPanic(t *testing.T) {
	c, _ := newTestController(t)
	c.Interrupt(context.Background(), "ghost", "whatever")
}

func TestController_Deregister_StopsActor(t *testing.T) {
	c, st := newTestController(t)
	p := testPredicate("p6")
	require.NoError(t, st.Register(p))

	ctx := context.Background()
	c.Register(ctx, p, 100)
	c.Deregister("p6")

	_, err := c.Status(ctx, "p6")
	require.Error(t, err)
}

func TestController_Register_ReplacesExistingActor(t *testing.T) {
	c, st := newTestController(t)
	p := testPredicate("p7")
	require.NoError(t, st.Register(p))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Register(ctx, p, 100)
	status := c.Register(ctx, p, 100)
	require.Equal(t, predicate.StatusStreaming, status.Kind)
}

func TestController_Shutdown_StopsAllActors(t *testing.T) {
	c, st := newTestController(t)
	require.NoError(t, st.Register(testPredicate("p8")))
	require.NoError(t, st.Register(testPredicate("p9")))

	ctx := context.Background()
	c.Register(ctx, testPredicate("p8"), 100)
	c.Register(ctx, testPredicate("p9"), 100)

	c.Shutdown()

	_, err := c.Status(ctx, "p8")
	require.Error(t, err)
	_, err = c.Status(ctx, "p9")
	require.Error(t, err)
}
