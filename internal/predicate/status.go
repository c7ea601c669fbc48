package predicate

import "time"

// StatusKind enumerates the closed set of predicate lifecycle states
// (spec.md §3 "PredicateStatus", §4.3 state machine). Exactly one status
// is active for a predicate at any time.
type StatusKind string

const (
	StatusNew                   StatusKind = "new"
	StatusScanning              StatusKind = "scanning"
	StatusStreaming             StatusKind = "streaming"
	StatusUnconfirmedExpiration StatusKind = "unconfirmed_expiration"
	StatusConfirmedExpiration   StatusKind = "confirmed_expiration"
	StatusInterrupted           StatusKind = "interrupted"
)

// ScanningStatus tracks progress of a historical scan.
type ScanningStatus struct {
	BlocksToScan      uint64
	BlocksEvaluated   uint64
	TimesTriggered    uint64
	LastOccurrence    *time.Time
	LastEvaluatedBlock uint64
}

// StreamingStatus tracks a predicate currently receiving live ChainUpdates.
type StreamingStatus struct {
	LastEvaluation     time.Time
	BlocksEvaluated    uint64
	TimesTriggered     uint64
	LastOccurrence     *time.Time
	LastEvaluatedBlock uint64
}

// ExpirationStatus is shared by UnconfirmedExpiration and
// ConfirmedExpiration; the two are distinguished by StatusKind alone.
type ExpirationStatus struct {
	ExpiredAt          time.Time
	LastEvaluatedBlock uint64
	TimesTriggered     uint64
}

// InterruptedStatus records why a predicate stopped being evaluated.
// Interrupted is terminal: the predicate remains registered but inert.
type InterruptedStatus struct {
	Reason string
}

// PredicateStatus is the closed sum type over predicate lifecycle states.
// Only the field matching Kind is populated.
type PredicateStatus struct {
	Kind StatusKind

	Scanning              *ScanningStatus
	Streaming             *StreamingStatus
	UnconfirmedExpiration *ExpirationStatus
	ConfirmedExpiration   *ExpirationStatus
	Interrupted           *InterruptedStatus
}

// NewStatus constructs the initial status for a freshly registered
// predicate.
func NewStatus() PredicateStatus {
	return PredicateStatus{Kind: StatusNew}
}

// LastEvaluatedBlock returns the height recorded in whichever
// height-tracking variant is active, or 0 for New/Interrupted/
// ConfirmedExpiration (confirmed expiration no longer advances).
func (s PredicateStatus) LastEvaluatedBlock() uint64 {
	switch s.Kind {
	case StatusScanning:
		if s.Scanning != nil {
			return s.Scanning.LastEvaluatedBlock
		}
	case StatusStreaming:
		if s.Streaming != nil {
			return s.Streaming.LastEvaluatedBlock
		}
	case StatusUnconfirmedExpiration:
		if s.UnconfirmedExpiration != nil {
			return s.UnconfirmedExpiration.LastEvaluatedBlock
		}
	}
	return 0
}

// TimesTriggered returns the trigger counter of whichever counting
// variant is active.
func (s PredicateStatus) TimesTriggered() uint64 {
	switch s.Kind {
	case StatusScanning:
		if s.Scanning != nil {
			return s.Scanning.TimesTriggered
		}
	case StatusStreaming:
		if s.Streaming != nil {
			return s.Streaming.TimesTriggered
		}
	case StatusUnconfirmedExpiration, StatusConfirmedExpiration:
		if s.UnconfirmedExpiration != nil {
			return s.UnconfirmedExpiration.TimesTriggered
		}
		if s.ConfirmedExpiration != nil {
			return s.ConfirmedExpiration.TimesTriggered
		}
	}
	return 0
}
