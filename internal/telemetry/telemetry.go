// Package telemetry holds the Prometheus counters and histograms the core
// exposes to whatever binary wires the /metrics surface (spec.md §2 "Status
// /Telemetry", §1 — the HTTP exposition endpoint itself is an external
// collaborator; this package only creates and updates the series).
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hirosystems/chainhook/internal/chainmodel"
)

const namespace = "chainhook"

var (
	poolBlocksProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "blocks_processed_total",
		Help:      "Count of blocks processed by the block pool.",
	}, []string{"chain", "status"})

	poolReorgDepth = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "reorg_depth_blocks",
		Help:      "Depth, in blocks, of rollbacks emitted by the block pool.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	}, []string{"chain"})

	poolProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "process_duration_seconds",
		Help:      "Duration of a single Pool.Process call.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"chain"})

	poolEvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "evictions_total",
		Help:      "Count of blocks evicted once buried beyond the reorg window.",
	}, []string{"chain"})

	evaluatorMatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "evaluator",
		Name:      "matches_total",
		Help:      "Count of transactions matched by a predicate evaluation.",
	}, []string{"chain"})

	evaluatorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "evaluator",
		Name:      "evaluate_duration_seconds",
		Help:      "Duration of a single predicate evaluation against a block.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"chain"})

	dispatchDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "deliveries_total",
		Help:      "Count of payload deliveries attempted by the dispatcher.",
	}, []string{"sink", "status"})

	dispatchDeliveryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "delivery_duration_seconds",
		Help:      "Duration of a single payload delivery attempt.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"sink", "status"})

	dispatchQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "queue_depth",
		Help:      "Number of payloads currently queued per predicate.",
	}, []string{"predicate_uuid"})

	dispatchDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "dropped_total",
		Help:      "Count of payloads dropped due to queue overflow.",
	}, []string{"predicate_uuid"})

	lifecycleTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "lifecycle",
		Name:      "transitions_total",
		Help:      "Count of predicate status transitions.",
	}, []string{"from", "to"})

	scanLastEvaluatedHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "scan",
		Name:      "last_evaluated_height",
		Help:      "Height most recently evaluated by a predicate's historical scan.",
	}, []string{"predicate_uuid"})

	scanBlocksRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "scan",
		Name:      "blocks_remaining",
		Help:      "Blocks left to evaluate before a predicate's scan catches up to streaming.",
	}, []string{"predicate_uuid"})

	scanBufferedBlocks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "scan",
		Name:      "buffered_blocks",
		Help:      "Live blocks buffered for a predicate still mid-scan.",
	}, []string{"predicate_uuid"})

	adapterCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "adapter",
		Name:      "calls_total",
		Help:      "Count of calls made against a chain adapter's upstream source, by outcome.",
	}, []string{"chain", "operation", "status"})

	adapterCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "adapter",
		Name:      "call_duration_seconds",
		Help:      "Duration of a single adapter call against its upstream source.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"chain", "operation"})

	blockIndexOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "block_index",
		Name:      "operations_total",
		Help:      "Count of block index storage operations, by outcome.",
	}, []string{"chain", "operation", "status"})

	blockIndexOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "block_index",
		Name:      "operation_duration_seconds",
		Help:      "Duration of a single block index storage operation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"chain", "operation"})
)

// Pool wraps the pool-scoped metric series so internal/pool never touches
// prometheus directly.
type Pool struct{ chain chainmodel.Chain }

// NewPool constructs a Pool metrics recorder for chain.
func NewPool(chain chainmodel.Chain) *Pool { return &Pool{chain: chain} }

// ObserveProcess records the outcome of a single Pool.Process call.
func (p *Pool) ObserveProcess(err error, update *chainmodel.ChainUpdate, d time.Duration) {
	status := "applied"
	switch {
	case err != nil:
		status = "error"
	case update == nil:
		status = "unchanged"
	}
	poolBlocksProcessedTotal.WithLabelValues(string(p.chain), status).Inc()
	poolProcessDuration.WithLabelValues(string(p.chain)).Observe(d.Seconds())
	if update != nil && len(update.Rollback) > 0 {
		poolReorgDepth.WithLabelValues(string(p.chain)).Observe(float64(len(update.Rollback)))
	}
}

// ObserveEviction records that n blocks were evicted in one sweep.
func (p *Pool) ObserveEviction(n int) {
	poolEvictionsTotal.WithLabelValues(string(p.chain)).Add(float64(n))
}

// Evaluator wraps the evaluator-scoped metric series.
type Evaluator struct{ chain chainmodel.Chain }

// NewEvaluator constructs an Evaluator metrics recorder for chain.
func NewEvaluator(chain chainmodel.Chain) *Evaluator { return &Evaluator{chain: chain} }

// ObserveEvaluate records one Evaluate call's match count and duration.
func (e *Evaluator) ObserveEvaluate(matches int, d time.Duration) {
	evaluatorMatchesTotal.WithLabelValues(string(e.chain)).Add(float64(matches))
	evaluatorDuration.WithLabelValues(string(e.chain)).Observe(d.Seconds())
}

// Dispatcher wraps the dispatcher-scoped metric series.
type Dispatcher struct{}

// NewDispatcher constructs a Dispatcher metrics recorder.
func NewDispatcher() *Dispatcher { return &Dispatcher{} }

// ObserveDelivery records a single delivery attempt's outcome.
func (d *Dispatcher) ObserveDelivery(sink string, err error, dur time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	dispatchDeliveriesTotal.WithLabelValues(sink, status).Inc()
	dispatchDeliveryDuration.WithLabelValues(sink, status).Observe(dur.Seconds())
}

// SetQueueDepth records the current queue depth for a predicate.
func (d *Dispatcher) SetQueueDepth(predicateUUID string, depth int) {
	dispatchQueueDepth.WithLabelValues(predicateUUID).Set(float64(depth))
}

// ObserveDropped records a queue-overflow drop for a predicate.
func (d *Dispatcher) ObserveDropped(predicateUUID string) {
	dispatchDroppedTotal.WithLabelValues(predicateUUID).Inc()
}

// Lifecycle wraps the lifecycle-scoped metric series.
type Lifecycle struct{}

// NewLifecycle constructs a Lifecycle metrics recorder.
func NewLifecycle() *Lifecycle { return &Lifecycle{} }

// ObserveTransition records a single predicate status transition.
func (l *Lifecycle) ObserveTransition(from, to string) {
	lifecycleTransitionsTotal.WithLabelValues(from, to).Inc()
}

// Scan wraps the scan-coordinator-scoped metric series.
type Scan struct{}

// NewScan constructs a Scan metrics recorder.
func NewScan() *Scan { return &Scan{} }

// SetProgress records a predicate's scan position and remaining distance.
func (s *Scan) SetProgress(predicateUUID string, lastEvaluatedHeight, remaining uint64) {
	scanLastEvaluatedHeight.WithLabelValues(predicateUUID).Set(float64(lastEvaluatedHeight))
	scanBlocksRemaining.WithLabelValues(predicateUUID).Set(float64(remaining))
}

// SetBuffered records how many live blocks are currently buffered for a
// predicate still mid-scan.
func (s *Scan) SetBuffered(predicateUUID string, n int) {
	scanBufferedBlocks.WithLabelValues(predicateUUID).Set(float64(n))
}

// ClearPredicate zeroes out a predicate's scan series once its scan
// finishes, so stale gauges don't linger under a UUID no longer scanning.
func (s *Scan) ClearPredicate(predicateUUID string) {
	scanLastEvaluatedHeight.DeleteLabelValues(predicateUUID)
	scanBlocksRemaining.DeleteLabelValues(predicateUUID)
	scanBufferedBlocks.DeleteLabelValues(predicateUUID)
}

// Adapter wraps the chain-adapter-scoped metric series, satisfying
// internal/adapter/bitcoin.RPCMetrics (chain bound at construction, since
// one Adapter only ever talks to one chain's node).
type Adapter struct{ chain chainmodel.Chain }

// NewAdapter constructs an Adapter metrics recorder for chain.
func NewAdapter(chain chainmodel.Chain) *Adapter { return &Adapter{chain: chain} }

// Observe records one upstream call's outcome and duration, satisfying
// bitcoin.RPCMetrics directly.
func (a *Adapter) Observe(operation string, err error, started time.Time) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	adapterCallsTotal.WithLabelValues(string(a.chain), operation, status).Inc()
	adapterCallDuration.WithLabelValues(string(a.chain), operation).Observe(time.Since(started).Seconds())
}

// PushAdapter wraps the same adapter call series for a push-based source
// (the Stacks event observer), satisfying internal/adapter/stacks.Metrics,
// whose Observe has no duration — there is no call this process times, only
// requests it receives.
type PushAdapter struct{ chain chainmodel.Chain }

// NewPushAdapter constructs a PushAdapter metrics recorder for chain.
func NewPushAdapter(chain chainmodel.Chain) *PushAdapter { return &PushAdapter{chain: chain} }

// Observe records one inbound event-observer request's outcome, satisfying
// stacks.Metrics directly.
func (a *PushAdapter) Observe(route string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	adapterCallsTotal.WithLabelValues(string(a.chain), route, status).Inc()
}

// BlockIndex wraps the block-index-storage-scoped metric series,
// satisfying internal/blockindex/clickhouse.Metrics.
type BlockIndex struct{}

// NewBlockIndex constructs a BlockIndex metrics recorder.
func NewBlockIndex() *BlockIndex { return &BlockIndex{} }

// Observe records one storage operation's outcome and duration.
func (b *BlockIndex) Observe(operation string, chain chainmodel.Chain, network string, err error, started time.Time) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	blockIndexOpsTotal.WithLabelValues(string(chain), operation, status).Inc()
	blockIndexOpDuration.WithLabelValues(string(chain), operation).Observe(time.Since(started).Seconds())
}
