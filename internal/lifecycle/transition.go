// Package lifecycle drives the predicate state machine (spec.md §4.3): the
// New→Scanning/Streaming→{Unconfirmed,Confirmed}Expiration/Interrupted
// transition table, counter bookkeeping, and reorg-driven reversion out of
// UnconfirmedExpiration.
package lifecycle

import (
	"time"

	"github.com/hirosystems/chainhook/internal/predicate"
)

// initialStatus decides a freshly registered predicate's first status:
// Scanning if its start block lags the chain's current tip, Streaming
// otherwise (spec.md §4.3 transition table rows 1-2).
func initialStatus(p predicate.Predicate, tip uint64) predicate.PredicateStatus {
	if p.StartBlock == nil || *p.StartBlock >= tip {
		return predicate.PredicateStatus{Kind: predicate.StatusStreaming, Streaming: &predicate.StreamingStatus{}}
	}

	blocksToScan := tip - *p.StartBlock
	if p.EndBlock != nil && *p.EndBlock < tip {
		blocksToScan = *p.EndBlock - *p.StartBlock + 1
	}
	return predicate.PredicateStatus{
		Kind:     predicate.StatusScanning,
		Scanning: &predicate.ScanningStatus{BlocksToScan: blocksToScan},
	}
}

// applyEvaluation folds one block's evaluation result into status, advancing
// counters and returning whichever status follows (spec.md §4.3 rows 3-4,
// §4.1 "expiry accounting"). now is passed in rather than read from
// time.Now so the transition stays deterministic and testable.
func applyEvaluation(p predicate.Predicate, status predicate.PredicateStatus, height uint64, matchCount int, now time.Time) predicate.PredicateStatus {
	switch status.Kind {
	case predicate.StatusScanning:
		return applyScanning(p, status, height, matchCount, now)
	case predicate.StatusStreaming:
		return applyStreaming(p, status, height, matchCount, now)
	default:
		// UnconfirmedExpiration/ConfirmedExpiration/Interrupted no longer
		// accept evaluations; the caller should not be routing blocks to
		// a predicate in one of those states.
		return status
	}
}

func applyScanning(p predicate.Predicate, status predicate.PredicateStatus, height uint64, matchCount int, now time.Time) predicate.PredicateStatus {
	s := *status.Scanning
	s.BlocksEvaluated++
	s.LastEvaluatedBlock = height
	s.TimesTriggered += uint64(matchCount)
	if matchCount > 0 {
		occurred := now
		s.LastOccurrence = &occurred
	}

	if reachedEndBlock(p, height) || reachedOccurrenceLimit(p, s.TimesTriggered) {
		return predicate.PredicateStatus{
			Kind: predicate.StatusUnconfirmedExpiration,
			UnconfirmedExpiration: &predicate.ExpirationStatus{
				ExpiredAt:          now,
				LastEvaluatedBlock: height,
				TimesTriggered:     s.TimesTriggered,
			},
		}
	}
	return predicate.PredicateStatus{Kind: predicate.StatusScanning, Scanning: &s}
}

func applyStreaming(p predicate.Predicate, status predicate.PredicateStatus, height uint64, matchCount int, now time.Time) predicate.PredicateStatus {
	s := *status.Streaming
	s.LastEvaluation = now
	s.BlocksEvaluated++
	s.LastEvaluatedBlock = height
	s.TimesTriggered += uint64(matchCount)
	if matchCount > 0 {
		occurred := now
		s.LastOccurrence = &occurred
	}

	if reachedEndBlock(p, height) || reachedOccurrenceLimit(p, s.TimesTriggered) {
		return predicate.PredicateStatus{
			Kind: predicate.StatusUnconfirmedExpiration,
			UnconfirmedExpiration: &predicate.ExpirationStatus{
				ExpiredAt:          now,
				LastEvaluatedBlock: height,
				TimesTriggered:     s.TimesTriggered,
			},
		}
	}
	return predicate.PredicateStatus{Kind: predicate.StatusStreaming, Streaming: &s}
}

func reachedEndBlock(p predicate.Predicate, height uint64) bool {
	return p.EndBlock != nil && height >= *p.EndBlock
}

func reachedOccurrenceLimit(p predicate.Predicate, timesTriggered uint64) bool {
	return p.ExpireAfterOccurrence != nil && timesTriggered >= *p.ExpireAfterOccurrence
}

// revertOnRollback folds a rollback of the block at height (with the given
// match count being un-counted) into status. A Scanning/Streaming
// predicate simply decrements its counters. An UnconfirmedExpiration
// predicate whose triggering block is being rolled back reverts to
// Streaming, matching spec.md §4.3 row "reorg before confirmation dropped
// the triggering match" — the match that caused expiry no longer happened.
func revertOnRollback(status predicate.PredicateStatus, height uint64, matchCount int) predicate.PredicateStatus {
	switch status.Kind {
	case predicate.StatusScanning:
		s := *status.Scanning
		decrementCounters(&s.TimesTriggered, matchCount)
		if s.BlocksEvaluated > 0 {
			s.BlocksEvaluated--
		}
		if height > 0 {
			s.LastEvaluatedBlock = height - 1
		}
		return predicate.PredicateStatus{Kind: predicate.StatusScanning, Scanning: &s}

	case predicate.StatusStreaming:
		s := *status.Streaming
		decrementCounters(&s.TimesTriggered, matchCount)
		if s.BlocksEvaluated > 0 {
			s.BlocksEvaluated--
		}
		if height > 0 {
			s.LastEvaluatedBlock = height - 1
		}
		return predicate.PredicateStatus{Kind: predicate.StatusStreaming, Streaming: &s}

	case predicate.StatusUnconfirmedExpiration:
		if status.UnconfirmedExpiration == nil || height > status.UnconfirmedExpiration.LastEvaluatedBlock {
			return status
		}
		triggered := status.UnconfirmedExpiration.TimesTriggered
		decrementCounters(&triggered, matchCount)
		reverted := uint64(0)
		if height > 0 {
			reverted = height - 1
		}
		return predicate.PredicateStatus{
			Kind: predicate.StatusStreaming,
			Streaming: &predicate.StreamingStatus{
				LastEvaluatedBlock: reverted,
				TimesTriggered:     triggered,
			},
		}

	default:
		return status
	}
}

func decrementCounters(counter *uint64, by int) {
	if by < 0 {
		return
	}
	if uint64(by) >= *counter {
		*counter = 0
		return
	}
	*counter -= uint64(by)
}

// confirmBurial transitions an UnconfirmedExpiration predicate to
// ConfirmedExpiration once the block that triggered expiry is buried more
// than reorgWindow blocks behind the current tip — it can no longer be
// rolled back (spec.md §4.3 row "expiring block buried by reorg_window").
func confirmBurial(status predicate.PredicateStatus, tip, reorgWindow uint64) predicate.PredicateStatus {
	if status.Kind != predicate.StatusUnconfirmedExpiration || status.UnconfirmedExpiration == nil {
		return status
	}
	exp := status.UnconfirmedExpiration
	if tip < exp.LastEvaluatedBlock || tip-exp.LastEvaluatedBlock <= reorgWindow {
		return status
	}
	return predicate.PredicateStatus{
		Kind: predicate.StatusConfirmedExpiration,
		ConfirmedExpiration: &predicate.ExpirationStatus{
			ExpiredAt:          exp.ExpiredAt,
			LastEvaluatedBlock: exp.LastEvaluatedBlock,
			TimesTriggered:     exp.TimesTriggered,
		},
	}
}

// interrupt transitions status to Interrupted from any state (spec.md
// §4.3 row "any → fatal → Interrupted"). Interrupted is terminal: nothing
// transitions out of it.
func interrupt(reason string) predicate.PredicateStatus {
	return predicate.PredicateStatus{Kind: predicate.StatusInterrupted, Interrupted: &predicate.InterruptedStatus{Reason: reason}}
}

// scanCaughtUp transitions a Scanning predicate whose scan worker has
// processed every block up to the live tip into Streaming, carrying its
// accumulated counters forward (spec.md §4.3 "scan → stream handoff").
func scanCaughtUp(status predicate.PredicateStatus, now time.Time) predicate.PredicateStatus {
	if status.Kind != predicate.StatusScanning || status.Scanning == nil {
		return status
	}
	s := status.Scanning
	return predicate.PredicateStatus{
		Kind: predicate.StatusStreaming,
		Streaming: &predicate.StreamingStatus{
			LastEvaluation:     now,
			BlocksEvaluated:    s.BlocksEvaluated,
			TimesTriggered:     s.TimesTriggered,
			LastOccurrence:     s.LastOccurrence,
			LastEvaluatedBlock: s.LastEvaluatedBlock,
		},
	}
}
