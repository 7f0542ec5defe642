package domain

import (
	"fmt"
	"time"
)

// Decision is the terminal outcome of a license check. Decisions are not
// errors; the transport adapters map them to status codes.
type Decision string

const (
	DecisionAllowed          Decision = "ALLOWED"
	DecisionNotFound         Decision = "NOT_FOUND"
	DecisionSoftwareDenied   Decision = "SOFTWARE_DENIED"
	DecisionBlocked          Decision = "BLOCKED"
	DecisionExpired          Decision = "EXPIRED"
	DecisionDeniedIPMismatch Decision = "DENIED_IP_MISMATCH"
	DecisionRetryExhausted   Decision = "RETRY_EXHAUSTED"
)

// RebindGraceWindow is the period after the last accepted activation beyond
// which a new origin is accepted without penalty.
const RebindGraceWindow = 24 * time.Hour

// Evaluation is the result of one policy pass over a license record.
// Record carries the post-decision aggregate state; it is only meaningful to
// persist when Mutated is set.
type Evaluation struct {
	Decision     Decision
	BlockedUntil *time.Time
	Record       License
	Mutated      bool
}

// Evaluate computes the check decision and the record mutation, if any, for a
// single verification request. It performs no I/O; callers own reading the
// record and committing Record under the revision protocol.
//
// The decision order is fixed: entitlement, active lockout, expiry, then IP
// evaluation. A request from a different origin within the grace window is a
// mismatch event and escalates the lockout; at or beyond the grace window the
// new origin rebinds without penalty.
func Evaluate(rec License, now time.Time, requestIP, software string) Evaluation {
	if software != "" && !rec.Allows(software) {
		return Evaluation{Decision: DecisionSoftwareDenied, Record: rec}
	}

	if rec.IsBlocked(now) {
		until := *rec.BlockedUntil
		return Evaluation{Decision: DecisionBlocked, BlockedUntil: &until, Record: rec}
	}

	if rec.IsExpired(now) {
		return Evaluation{Decision: DecisionExpired, Record: rec}
	}

	if rec.LastActivationIP != "" && requestIP != rec.LastActivationIP {
		if now.Sub(rec.LastActivationAt) < RebindGraceWindow {
			return escalate(rec, now, requestIP)
		}
		// Grace window elapsed: legitimate re-binding, no penalty. The
		// failure count is deliberately not reset here.
	}

	return accept(rec, now, requestIP)
}

// escalate records a mismatch event: it appends to the failure history,
// increments the failure count and imposes a lockout of min(failureCount, 7)
// whole days measured from the triggering event.
func escalate(rec License, now time.Time, requestIP string) Evaluation {
	entry := fmt.Sprintf("mismatch: bound to %s since %s, attempt from %s at %s",
		rec.LastActivationIP,
		rec.LastActivationAt.UTC().Format(time.RFC3339),
		requestIP,
		now.UTC().Format(time.RFC3339),
	)
	rec.FailureHistory = appendBounded(rec.FailureHistory, entry, HistoryCapacity)
	rec.FailureCount++

	lockoutDays := rec.FailureCount
	if lockoutDays > MaxLockoutDays {
		lockoutDays = MaxLockoutDays
	}
	blockedUntil := now.Add(time.Duration(lockoutDays) * 24 * time.Hour).UTC()
	rec.BlockedUntil = &blockedUntil

	return Evaluation{
		Decision:     DecisionDeniedIPMismatch,
		BlockedUntil: &blockedUntil,
		Record:       rec,
		Mutated:      true,
	}
}

// accept binds the request origin when it differs from the current binding.
// A repeat check from the bound origin mutates nothing.
func accept(rec License, now time.Time, requestIP string) Evaluation {
	if requestIP == rec.LastActivationIP {
		return Evaluation{Decision: DecisionAllowed, Record: rec}
	}

	rec.LastActivationIP = requestIP
	rec.LastActivationAt = now.UTC()
	if n := len(rec.IPHistory); n == 0 || rec.IPHistory[n-1] != requestIP {
		rec.IPHistory = appendBounded(rec.IPHistory, requestIP, HistoryCapacity)
	}

	return Evaluation{Decision: DecisionAllowed, Record: rec, Mutated: true}
}
