package application

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"log/slog"
	"strings"
	"time"

	"github.com/keygate/license-service/internal/domain"
)

const serviceName = "License-Service"

// generateLicenseKey returns a random grouped key like LIC-XXXXX-XXXXX-XXXXX.
// The key is an opaque shared secret, not a signed token.
func generateLicenseKey() string {
	raw := randomBase32(10)
	for len(raw) < 15 {
		raw += randomBase32(10)
	}
	return "LIC-" + raw[0:5] + "-" + raw[5:10] + "-" + raw[10:15]
}

// randomBase32 returns a random base32 string suitable for human entry.
func randomBase32(bytesLen int) string {
	raw := make([]byte, bytesLen)
	_, _ = rand.Read(raw)
	return strings.TrimRight(base32.StdEncoding.EncodeToString(raw), "=")
}

// enforceRateLimit throttles hot endpoints per key. The limiter degrades
// open: an unavailable cache must never block license checks.
func (s *Service) enforceRateLimit(ctx context.Context, key string, threshold int, window time.Duration) error {
	if s.rateLimits == nil || threshold <= 0 || window <= 0 {
		return nil
	}
	if strings.TrimSpace(key) == "" {
		return nil
	}

	state, err := s.rateLimits.Get(ctx, key)
	if err == nil && state.BlockedUntil != nil && state.BlockedUntil.After(s.nowFn()) {
		return domain.ErrRateLimited
	}

	now := s.nowFn()
	updated, err := s.rateLimits.Increment(ctx, key, now, threshold, window)
	if err != nil {
		slog.Default().WarnContext(ctx, "rate-limit state unavailable",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "rate_limit",
			"outcome", "warning",
			"key", key,
			"error", err,
		)
		return nil
	}
	if updated.BlockedUntil != nil && updated.BlockedUntil.After(now) {
		return domain.ErrRateLimited
	}
	return nil
}
