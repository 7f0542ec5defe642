package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

func baseLicense(now time.Time) License {
	return License{
		LicenseID:        uuid.New(),
		LicenseKey:       "LIC-AAAAA-BBBBB-CCCCC",
		CustomerID:       "cust-1",
		AllowedSoftware:  []string{"editor", "renderer"},
		IssuedAt:         now.Add(-30 * 24 * time.Hour),
		ExpiresAt:        now.Add(30 * 24 * time.Hour),
		LastActivationIP: "10.0.0.1",
		LastActivationAt: now.Add(-time.Hour),
		FailureHistory:   []string{},
		IPHistory:        []string{"10.0.0.1"},
		Revision:         3,
	}
}

func TestEvaluateSameOriginMutatesNothing(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := baseLicense(now)

	eval := Evaluate(rec, now, "10.0.0.1", "editor")
	if eval.Decision != DecisionAllowed {
		t.Fatalf("expected ALLOWED, got %s", eval.Decision)
	}
	if eval.Mutated {
		t.Fatalf("repeat check from bound origin must not mutate")
	}
	if eval.Record.Revision != rec.Revision {
		t.Fatalf("record revision should be untouched")
	}
}

func TestEvaluateFirstActivationBindsOrigin(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := baseLicense(now)
	rec.LastActivationIP = ""
	rec.LastActivationAt = time.Time{}
	rec.IPHistory = []string{}

	eval := Evaluate(rec, now, "192.168.1.5", "")
	if eval.Decision != DecisionAllowed {
		t.Fatalf("expected ALLOWED, got %s", eval.Decision)
	}
	if !eval.Mutated {
		t.Fatalf("first activation must persist the binding")
	}
	if eval.Record.LastActivationIP != "192.168.1.5" {
		t.Fatalf("origin not bound: %s", eval.Record.LastActivationIP)
	}
	if !eval.Record.LastActivationAt.Equal(now) {
		t.Fatalf("activation timestamp not set")
	}
	if len(eval.Record.IPHistory) != 1 || eval.Record.IPHistory[0] != "192.168.1.5" {
		t.Fatalf("ip history not recorded: %v", eval.Record.IPHistory)
	}
}

func TestEvaluateMismatchWithinGraceEscalates(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := baseLicense(now)
	rec.LastActivationAt = now.Add(-23 * time.Hour)

	eval := Evaluate(rec, now, "10.0.0.2", "editor")
	if eval.Decision != DecisionDeniedIPMismatch {
		t.Fatalf("expected DENIED_IP_MISMATCH, got %s", eval.Decision)
	}
	if !eval.Mutated {
		t.Fatalf("mismatch must persist the escalation")
	}
	if eval.Record.FailureCount != 1 {
		t.Fatalf("failure count = %d, want 1", eval.Record.FailureCount)
	}
	if eval.BlockedUntil == nil {
		t.Fatalf("lockout window not set")
	}
	if want := now.Add(24 * time.Hour); !eval.BlockedUntil.Equal(want) {
		t.Fatalf("blocked until %v, want %v", eval.BlockedUntil, want)
	}
	if eval.Record.LastActivationIP != "10.0.0.1" {
		t.Fatalf("mismatch must not rebind the origin")
	}
	if len(eval.Record.FailureHistory) != 1 {
		t.Fatalf("mismatch event not recorded")
	}
}

func TestEvaluateExactGraceBoundaryRebindsWithoutPenalty(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := baseLicense(now)
	rec.LastActivationAt = now.Add(-RebindGraceWindow)

	eval := Evaluate(rec, now, "10.0.0.2", "")
	if eval.Decision != DecisionAllowed {
		t.Fatalf("exactly at the grace boundary must rebind, got %s", eval.Decision)
	}
	if !eval.Mutated {
		t.Fatalf("rebind must persist")
	}
	if eval.Record.LastActivationIP != "10.0.0.2" {
		t.Fatalf("origin not rebound")
	}
	if eval.Record.FailureCount != 0 {
		t.Fatalf("no-penalty rebind must not touch the failure count")
	}
}

func TestEvaluateGraceRebindKeepsFailureCount(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := baseLicense(now)
	rec.FailureCount = 4
	rec.LastActivationAt = now.Add(-48 * time.Hour)

	eval := Evaluate(rec, now, "10.0.0.9", "")
	if eval.Decision != DecisionAllowed {
		t.Fatalf("expected ALLOWED, got %s", eval.Decision)
	}
	if eval.Record.FailureCount != 4 {
		t.Fatalf("failure count changed on legitimate rebind: %d", eval.Record.FailureCount)
	}
}

func TestEvaluateLockoutEscalationIsCapped(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, tc := range []struct {
		priorFailures int
		wantDays      int
	}{
		{0, 1},
		{2, 3},
		{6, 7},
		{7, 7},
		{20, 7},
	} {
		rec := baseLicense(now)
		rec.FailureCount = tc.priorFailures
		rec.LastActivationAt = now.Add(-time.Hour)

		eval := Evaluate(rec, now, "10.0.0.2", "")
		if eval.Decision != DecisionDeniedIPMismatch {
			t.Fatalf("prior=%d: expected mismatch denial, got %s", tc.priorFailures, eval.Decision)
		}
		want := now.Add(time.Duration(tc.wantDays) * 24 * time.Hour)
		if !eval.BlockedUntil.Equal(want) {
			t.Fatalf("prior=%d: blocked until %v, want %v", tc.priorFailures, eval.BlockedUntil, want)
		}
	}
}

func TestEvaluateDecisionOrder(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	blocked := now.Add(time.Hour)

	// Entitlement is checked before lockout state.
	rec := baseLicense(now)
	rec.BlockedUntil = &blocked
	if eval := Evaluate(rec, now, "10.0.0.1", "unlicensed-tool"); eval.Decision != DecisionSoftwareDenied {
		t.Fatalf("entitlement must precede lockout, got %s", eval.Decision)
	}

	// Lockout is checked before expiry.
	rec = baseLicense(now)
	rec.BlockedUntil = &blocked
	rec.ExpiresAt = now.Add(-time.Hour)
	if eval := Evaluate(rec, now, "10.0.0.1", "editor"); eval.Decision != DecisionBlocked {
		t.Fatalf("active lockout must precede expiry, got %s", eval.Decision)
	}

	// Expiry is checked before IP evaluation.
	rec = baseLicense(now)
	rec.ExpiresAt = now.Add(-time.Hour)
	eval := Evaluate(rec, now, "10.0.0.99", "editor")
	if eval.Decision != DecisionExpired {
		t.Fatalf("expiry must precede ip evaluation, got %s", eval.Decision)
	}
	if eval.Mutated {
		t.Fatalf("expired check must not mutate")
	}
}

func TestEvaluateLapsedLockoutFallsThrough(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	rec := baseLicense(now)
	rec.BlockedUntil = &past

	eval := Evaluate(rec, now, "10.0.0.1", "editor")
	if eval.Decision != DecisionAllowed {
		t.Fatalf("lapsed lockout must not deny, got %s", eval.Decision)
	}
}

func TestEvaluateEmptySoftwareSkipsEntitlement(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := baseLicense(now)
	rec.AllowedSoftware = nil

	if eval := Evaluate(rec, now, "10.0.0.1", ""); eval.Decision != DecisionAllowed {
		t.Fatalf("empty software request must skip entitlement, got %s", eval.Decision)
	}
	if eval := Evaluate(rec, now, "10.0.0.1", "editor"); eval.Decision != DecisionSoftwareDenied {
		t.Fatalf("empty entitlement set allows nothing, got %s", eval.Decision)
	}
}

func TestHistoriesAreBounded(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := baseLicense(now)

	for i := 0; i < HistoryCapacity+10; i++ {
		rec.FailureHistory = appendBounded(rec.FailureHistory, fmt.Sprintf("entry-%d", i), HistoryCapacity)
	}
	if len(rec.FailureHistory) != HistoryCapacity {
		t.Fatalf("failure history len = %d, want %d", len(rec.FailureHistory), HistoryCapacity)
	}
	if rec.FailureHistory[0] != "entry-10" {
		t.Fatalf("oldest entries must be evicted first, got %s", rec.FailureHistory[0])
	}
}

func TestIPHistorySuppressesConsecutiveDuplicates(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := baseLicense(start)
	rec.LastActivationIP = ""
	rec.LastActivationAt = time.Time{}
	rec.IPHistory = []string{}

	// Alternate between two origins, always beyond the grace window.
	now := start
	for i := 0; i < 4; i++ {
		ip := "10.0.0.1"
		if i%2 == 1 {
			ip = "10.0.0.2"
		}
		eval := Evaluate(rec, now, ip, "")
		if eval.Decision != DecisionAllowed {
			t.Fatalf("step %d: expected ALLOWED, got %s", i, eval.Decision)
		}
		rec = eval.Record
		now = now.Add(RebindGraceWindow)
	}
	want := []string{"10.0.0.1", "10.0.0.2", "10.0.0.1", "10.0.0.2"}
	if len(rec.IPHistory) != len(want) {
		t.Fatalf("ip history = %v", rec.IPHistory)
	}

	// A repeat from the bound origin adds nothing.
	eval := Evaluate(rec, now, "10.0.0.2", "")
	if eval.Mutated {
		t.Fatalf("repeat from bound origin must not mutate")
	}
}
