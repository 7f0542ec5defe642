package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/keygate/license-service/internal/domain"
)

// LicenseRepository defines persistence for license records.
//
// ConditionalUpdate is the only mutation path for issued records: it writes
// the full aggregate and bumps the revision only while the stored revision
// still equals expectedRevision, returning domain.ErrRevisionConflict when a
// concurrent writer won the race. This keeps the read-evaluate-write sequence
// for one key serializable without cross-key locking.
type LicenseRepository interface {
	Create(ctx context.Context, rec domain.License) (domain.License, error)
	GetByKey(ctx context.Context, licenseKey string) (domain.License, error)
	GetByID(ctx context.Context, licenseID uuid.UUID) (domain.License, error)
	List(ctx context.Context, limit, offset int) ([]domain.License, error)
	ConditionalUpdate(ctx context.Context, rec domain.License, expectedRevision int64) error
}

// OutboxEvent is the write-side event payload prior to storage.
// It is adapter-neutral to keep application code independent of delivery specifics.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord represents durable outbox state, including retry/error metadata.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	FirstSeenAt    time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

// OutboxRepository controls the publish workflow for denial notifications.
// Enqueue happens on the request path only after a successful commit; delivery
// runs out-of-band so notifier latency or failure never touches the decision.
type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}
