package ports

import (
	"context"
	"time"
)

// RateLimitState is the current throttle envelope for a request key.
// It is cache-backed so hot endpoints do not write to the primary store.
type RateLimitState struct {
	Count        int
	BlockedUntil *time.Time
}

// RateLimitStore tracks short-lived request counters for endpoint throttling.
type RateLimitStore interface {
	Get(ctx context.Context, key string) (RateLimitState, error)
	Increment(ctx context.Context, key string, now time.Time, threshold int, window time.Duration) (RateLimitState, error)
	Clear(ctx context.Context, key string) error
}
