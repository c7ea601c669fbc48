package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hirosystems/chainhook/internal/telemetry"
)

// recordingSink collects delivered payloads in arrival order, optionally
// blocking each Deliver call until release is signaled, to test strict
// single-flight FIFO ordering.
type recordingSink struct {
	mu        sync.Mutex
	delivered []string
	release   chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{release: make(chan struct{})}
}

func (s *recordingSink) Deliver(ctx context.Context, payload ApplyRollbackPayload) error {
	<-s.release
	s.mu.Lock()
	s.delivered = append(s.delivered, payload.Chainhook.UUID)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) allow(n int) {
	for i := 0; i < n; i++ {
		s.release <- struct{}{}
	}
}

func (s *recordingSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.delivered))
	copy(out, s.delivered)
	return out
}

func TestWorker_Submit_DeliversInFIFOOrder(t *testing.T) {
	sink := newRecordingSink()
	metrics := telemetry.NewDispatcher()
	w := newWorker("pred-fifo", sink, "test", zap.NewNop(), metrics, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	for _, id := range []string{"a", "b", "c"} {
		w.Submit(ctx, RenderPayload(testPredicateFor(id), true, nil, nil))
	}

	sink.allow(3)
	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 3
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, []string{"a", "b", "c"}, sink.snapshot())
}

func TestWorker_Submit_OverflowDropsOldestAndInterrupts(t *testing.T) {
	sink := newRecordingSink()
	metrics := telemetry.NewDispatcher()

	var interruptedUUID, interruptedReason string
	var interruptCalls int
	interrupt := func(ctx context.Context, predicateUUID, reason string) {
		interruptCalls++
		interruptedUUID = predicateUUID
		interruptedReason = reason
	}

	w := newWorker("pred-overflow", sink, "test", zap.NewNop(), metrics, interrupt)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	// Never release the sink, so nothing drains and the queue fills.
	for i := 0; i < defaultQueueCapacity+5; i++ {
		w.Submit(ctx, RenderPayload(testPredicateFor("overflow"), true, nil, nil))
	}

	require.Equal(t, "pred-overflow", interruptedUUID)
	require.Equal(t, "dispatch queue overflow", interruptedReason)
	require.GreaterOrEqual(t, interruptCalls, 1)
}

// failingSink always fails delivery, as a permanently-misconfigured
// HTTPSink would once its retry budget is exhausted.
type failingSink struct {
	err error
}

func (s *failingSink) Deliver(ctx context.Context, payload ApplyRollbackPayload) error {
	return s.err
}

func TestWorker_Run_DeliveryFailureInterrupts(t *testing.T) {
	sink := &failingSink{err: errors.New("http sink: permanent failure, status 410: gone")}
	metrics := telemetry.NewDispatcher()

	var interruptedUUID, interruptedReason string
	var interruptCalls int32
	interrupt := func(ctx context.Context, predicateUUID, reason string) {
		atomic.AddInt32(&interruptCalls, 1)
		interruptedUUID = predicateUUID
		interruptedReason = reason
	}

	w := newWorker("pred-delivery-fail", sink, "test", zap.NewNop(), metrics, interrupt)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	w.Submit(ctx, RenderPayload(testPredicateFor("x"), true, nil, nil))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&interruptCalls) >= 1
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, "pred-delivery-fail", interruptedUUID)
	require.Contains(t, interruptedReason, "sink delivery failed")
	require.Contains(t, interruptedReason, "gone")
}

func TestWorker_Stop_WaitsForLoopExit(t *testing.T) {
	sink := newRecordingSink()
	metrics := telemetry.NewDispatcher()
	w := newWorker("pred-stop", sink, "test", zap.NewNop(), metrics, nil)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()
	w.Stop() // must return once run() observes ctx.Done(), not hang
}
