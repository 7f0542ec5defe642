package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/keygate/license-service/internal/domain"
	"github.com/keygate/license-service/internal/ports"
)

const eventTypeMismatchDenied = "license.mismatch.denied"

// Verify runs one license check end to end: read the record, evaluate the
// lockout policy, and commit the mutation under the revision guard, retrying
// a bounded number of times when a concurrent check wins the race.
//
// Exactly one of the concurrent checks against the same key observes the
// other's committed state on each retry; the effective mutation order is the
// commit order, not arrival order. On a committed mismatch denial the
// notification event is enqueued after the commit; enqueue failures are
// logged and never change the returned decision.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	key := strings.TrimSpace(req.LicenseKey)
	if key == "" {
		return VerifyResult{}, fmt.Errorf("%w: license_key is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(req.IPAddress) == "" {
		return VerifyResult{}, fmt.Errorf("%w: request origin is required", domain.ErrInvalidInput)
	}

	if err := s.enforceRateLimit(ctx, "verify:ip:"+req.IPAddress, s.cfg.VerifyRateLimitThreshold, s.cfg.VerifyRateLimitWindow); err != nil {
		return VerifyResult{}, err
	}

	for attempt := 0; attempt < s.cfg.VerifyRetryBudget; attempt++ {
		rec, err := s.licenses.GetByKey(ctx, key)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return VerifyResult{
					Decision: domain.DecisionNotFound,
					Message:  decisionMessage(domain.DecisionNotFound),
				}, nil
			}
			return VerifyResult{}, err
		}

		now := s.nowFn()
		eval := domain.Evaluate(rec, now, req.IPAddress, strings.TrimSpace(req.Software))

		if eval.Mutated {
			if err := s.licenses.ConditionalUpdate(ctx, eval.Record, rec.Revision); err != nil {
				if errors.Is(err, domain.ErrRevisionConflict) {
					slog.Default().InfoContext(ctx, "license commit lost race, re-evaluating",
						"service", serviceName,
						"module", "application",
						"layer", "application",
						"operation", "verify",
						"outcome", "retry",
						"license_id", rec.LicenseID,
						"attempt", attempt+1,
					)
					continue
				}
				return VerifyResult{}, err
			}

			if eval.Decision == domain.DecisionDeniedIPMismatch {
				s.enqueueMismatchNotification(ctx, eval.Record, req.IPAddress, req.Software, now)
			}
		}

		s.logDecision(ctx, eval, rec.LicenseID, req.IPAddress)
		result := VerifyResult{
			Decision:     eval.Decision,
			Message:      decisionMessage(eval.Decision),
			BlockedUntil: eval.BlockedUntil,
		}
		if eval.Decision == domain.DecisionAllowed {
			expiresAt := eval.Record.ExpiresAt
			result.ExpiresAt = &expiresAt
		}
		return result, nil
	}

	slog.Default().ErrorContext(ctx, "license verify retry budget exhausted",
		"service", serviceName,
		"module", "application",
		"layer", "application",
		"operation", "verify",
		"outcome", "failure",
		"error_code", "RETRY_EXHAUSTED",
		"attempts", s.cfg.VerifyRetryBudget,
	)
	return VerifyResult{
		Decision: domain.DecisionRetryExhausted,
		Message:  decisionMessage(domain.DecisionRetryExhausted),
	}, nil
}

// enqueueMismatchNotification records the denial for out-of-band delivery.
// The event carries the post-mutation record so the notifier never re-reads
// the store. At most one delivery attempt is made per event.
func (s *Service) enqueueMismatchNotification(ctx context.Context, rec domain.License, requestIP, software string, now time.Time) {
	payload, _ := json.Marshal(map[string]any{
		"license_id":    rec.LicenseID.String(),
		"customer_id":   rec.CustomerID,
		"bound_ip":      rec.LastActivationIP,
		"request_ip":    requestIP,
		"software":      software,
		"failure_count": rec.FailureCount,
		"blocked_until": rec.BlockedUntil,
		"denied_at":     now,
	})
	err := s.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    eventTypeMismatchDenied,
		PartitionKey: rec.LicenseID.String(),
		Payload:      payload,
		OccurredAt:   now,
	})
	if err != nil {
		slog.Default().WarnContext(ctx, "failed to enqueue mismatch notification",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "verify",
			"outcome", "warning",
			"license_id", rec.LicenseID,
			"error", err,
		)
	}
}

// logDecision emits one structured line per check so denials are traceable
// without a separate audit store.
func (s *Service) logDecision(ctx context.Context, eval domain.Evaluation, licenseID uuid.UUID, requestIP string) {
	fields := []any{
		"service", serviceName,
		"module", "application",
		"layer", "application",
		"operation", "verify",
		"license_id", licenseID,
		"request_ip", requestIP,
		"decision", string(eval.Decision),
	}
	switch eval.Decision {
	case domain.DecisionAllowed:
		slog.Default().InfoContext(ctx, "license check allowed", append(fields, "outcome", "success")...)
	case domain.DecisionDeniedIPMismatch:
		slog.Default().WarnContext(ctx, "license check denied by ip mismatch",
			append(fields, "outcome", "blocked", "blocked_until", eval.BlockedUntil, "failure_count", eval.Record.FailureCount)...)
	case domain.DecisionBlocked:
		slog.Default().WarnContext(ctx, "license check denied by active lockout",
			append(fields, "outcome", "blocked", "blocked_until", eval.BlockedUntil)...)
	default:
		slog.Default().WarnContext(ctx, "license check denied", append(fields, "outcome", "denied")...)
	}
}
