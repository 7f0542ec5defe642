package domain

import (
	"time"

	"github.com/google/uuid"
)

// HistoryCapacity bounds the per-license failure and IP history logs.
// Older entries are evicted first once the cap is reached.
const HistoryCapacity = 50

// MaxLockoutDays caps the escalating lockout applied on repeated IP mismatches.
const MaxLockoutDays = 7

// License is the canonical per-license aggregate owned by this service.
// All lockout and binding state is kept on the record itself so a single
// revision-guarded write keeps the whole aggregate consistent.
type License struct {
	LicenseID        uuid.UUID
	LicenseKey       string
	CustomerID       string
	AllowedSoftware  []string
	IssuedAt         time.Time
	ExpiresAt        time.Time
	LastActivationIP string
	LastActivationAt time.Time
	FailureCount     int
	FailureHistory   []string
	IPHistory        []string
	BlockedUntil     *time.Time
	Revision         int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Allows reports whether the license entitles the given software identifier.
// An empty software set allows nothing; the check is skipped entirely when the
// caller requests no entitlement check.
func (l License) Allows(software string) bool {
	for _, s := range l.AllowedSoftware {
		if s == software {
			return true
		}
	}
	return false
}

// IsExpired reports whether the license hard expiry has passed.
func (l License) IsExpired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// IsBlocked reports whether an active lockout window denies all checks.
func (l License) IsBlocked(now time.Time) bool {
	return l.BlockedUntil != nil && now.Before(*l.BlockedUntil)
}

// appendBounded appends an entry to a history log, evicting the oldest entry
// once the capacity is reached.
func appendBounded(history []string, entry string, capacity int) []string {
	history = append(history, entry)
	if len(history) > capacity {
		history = history[len(history)-capacity:]
	}
	return history
}
