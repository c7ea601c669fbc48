// Package api implements the management hooks spec.md §6 describes as "the
// core provides only the hooks" — registering, listing, and deregistering
// predicates against internal/predicate/store and internal/lifecycle. It is
// intentionally transport-agnostic; cmd/chainhook-service wires it onto HTTP.
package api

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hirosystems/chainhook/internal/chainmodel"
	"github.com/hirosystems/chainhook/internal/dispatch"
	"github.com/hirosystems/chainhook/internal/predicate"
	"github.com/hirosystems/chainhook/internal/predicate/store"
	"github.com/hirosystems/chainhook/internal/scan"
)

// Lifecycle is the subset of *lifecycle.Controller the management surface
// needs, narrowed so this package can be tested without pool/adapter
// plumbing.
type Lifecycle interface {
	Register(ctx context.Context, p predicate.Predicate, tip uint64) predicate.PredicateStatus
	Deregister(predicateUUID string)
	Status(ctx context.Context, predicateUUID string) (predicate.PredicateStatus, error)
	Interrupt(ctx context.Context, predicateUUID string, reason string)
}

// DispatchRegistrar is the subset of *dispatch.Dispatcher the management
// surface needs: starting and stopping a predicate's delivery worker in
// step with its lifecycle actor.
type DispatchRegistrar interface {
	Register(ctx context.Context, predicateUUID string, sink dispatch.Sink, interrupt dispatch.InterruptFunc)
	Deregister(predicateUUID string)
}

// TipProvider reports the current chain tip used to seed a freshly
// registered predicate's initial status (spec.md §4.3 rows 1-2: a
// StartBlock behind tip starts in Scanning; a StartBlock at or past tip,
// or none, starts in Streaming).
type TipProvider interface {
	Tip(ctx context.Context, chain chainmodel.Chain) (uint64, error)
}

// ScanRunner is the subset of *scan.Coordinator's per-chain instances the
// management surface needs: kicking off a newly registered predicate's
// historical scan without blocking the registration request on it.
type ScanRunner interface {
	RunAll(ctx context.Context, targets []scan.Target) error
}

// PredicateView pairs a registered predicate's document with its current
// status, the shape both ListPredicates and GetPredicate return.
type PredicateView struct {
	Predicate predicate.Predicate
	Status    predicate.PredicateStatus
}

// Service is the management-hooks entry point: register/list/get/deregister
// against the durable store, keeping internal/lifecycle's in-memory actors
// and internal/dispatch's delivery workers in sync with it.
type Service struct {
	baseCtx   context.Context
	store     *store.Store
	lifecycle Lifecycle
	tips      TipProvider
	dispatch  DispatchRegistrar
	scanners  map[chainmodel.Chain]ScanRunner
	logger    *zap.Logger

	sinks *sinkFactory
}

// NewService constructs a Service. baseCtx governs the lifetime of any
// FileSink a registered predicate creates and of the background scan
// RegisterPredicate kicks off for a Scanning predicate — both must outlive
// individual request contexts. scanners maps each chain this deployment
// serves to the scan.Coordinator instance that owns it. logger may be nil.
func NewService(baseCtx context.Context, st *store.Store, lifecycle Lifecycle, dispatcher DispatchRegistrar, tips TipProvider, scanners map[chainmodel.Chain]ScanRunner, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")
	return &Service{
		baseCtx:   baseCtx,
		store:     st,
		lifecycle: lifecycle,
		tips:      tips,
		dispatch:  dispatcher,
		scanners:  scanners,
		logger:    logger,
		sinks:     newSinkFactory(baseCtx, logger),
	}
}

// ListPredicates returns every registered predicate with its current
// status, most-recently-registered order is not guaranteed (spec.md §6
// makes no ordering promise).
func (s *Service) ListPredicates(ctx context.Context) ([]PredicateView, error) {
	predicates, statuses, err := s.store.List()
	if err != nil {
		return nil, fmt.Errorf("api: list predicates: %w", err)
	}
	views := make([]PredicateView, len(predicates))
	for i := range predicates {
		views[i] = PredicateView{Predicate: predicates[i], Status: statuses[i]}
	}
	return views, nil
}

// GetPredicate returns a single predicate and its current status.
func (s *Service) GetPredicate(ctx context.Context, predicateUUID string) (PredicateView, error) {
	p, status, err := s.store.Get(predicateUUID)
	if err != nil {
		return PredicateView{}, fmt.Errorf("api: get predicate %s: %w", predicateUUID, err)
	}
	return PredicateView{Predicate: p, Status: status}, nil
}

// RegisterPredicate validates p, assigns it a UUID if the caller left one
// unset, persists it, and starts its lifecycle actor. A validation failure
// is returned as *predicate.ValidationError; callers render that as a 4xx
// per spec.md §7.
func (s *Service) RegisterPredicate(ctx context.Context, p predicate.Predicate) (PredicateView, error) {
	if p.UUID == "" {
		p.UUID = uuid.NewString()
	}
	if err := predicate.Validate(&p); err != nil {
		return PredicateView{}, err
	}

	tip, err := s.tips.Tip(ctx, p.Chain)
	if err != nil {
		return PredicateView{}, fmt.Errorf("api: resolve tip for chain %s: %w", p.Chain, err)
	}

	if err := s.store.Register(p); err != nil {
		return PredicateView{}, fmt.Errorf("api: persist predicate %s: %w", p.UUID, err)
	}

	sink, err := s.sinks.forAction(p.ThenThat)
	if err != nil {
		// The document is already persisted; leave it New/un-dispatched
		// rather than losing the registration over a sink the caller can
		// fix (e.g. an unwritable file_append path) and retry by
		// re-registering.
		return PredicateView{}, fmt.Errorf("api: build sink for predicate %s: %w", p.UUID, err)
	}
	s.dispatch.Register(ctx, p.UUID, sink, s.lifecycle.Interrupt)

	status := s.lifecycle.Register(ctx, p, tip)
	if status.Kind == predicate.StatusScanning {
		s.runScan(p, tip)
	}
	return PredicateView{Predicate: p, Status: status}, nil
}

// runScan kicks off p's historical scan in the background so registration
// does not block on it, mirroring lifecycle.initialStatus's own
// from/to-height computation (spec.md §4.3 rows 1-2).
func (s *Service) runScan(p predicate.Predicate, tip uint64) {
	runner, ok := s.scanners[p.Chain]
	if !ok {
		s.logger.Error("no scan coordinator for chain", zap.String("predicate_uuid", p.UUID), zap.String("chain", string(p.Chain)))
		return
	}

	from := uint64(0)
	if p.StartBlock != nil {
		from = *p.StartBlock
	}
	to := tip
	if p.EndBlock != nil && *p.EndBlock < tip {
		to = *p.EndBlock
	}
	target := scan.Target{Predicate: p, FromHeight: from, ToHeight: to}

	go func() {
		if err := runner.RunAll(s.baseCtx, []scan.Target{target}); err != nil {
			s.logger.Error("historical scan failed", zap.String("predicate_uuid", p.UUID), zap.Error(err))
		}
	}()
}

// DeregisterPredicate stops predicateUUID's lifecycle actor and dispatch
// worker and removes it from the durable store. It is an error to
// deregister an unknown uuid.
func (s *Service) DeregisterPredicate(ctx context.Context, predicateUUID string) error {
	if _, _, err := s.store.Get(predicateUUID); err != nil {
		return fmt.Errorf("api: deregister %s: %w", predicateUUID, err)
	}
	s.dispatch.Deregister(predicateUUID)
	s.lifecycle.Deregister(predicateUUID)
	if err := s.store.Deregister(predicateUUID); err != nil {
		return fmt.Errorf("api: deregister %s: %w", predicateUUID, err)
	}
	return nil
}
