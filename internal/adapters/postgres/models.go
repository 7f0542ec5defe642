package postgres

import (
	"time"

	"github.com/google/uuid"
)

type licenseModel struct {
	LicenseID        uuid.UUID  `gorm:"column:license_id;type:uuid;primaryKey"`
	LicenseKey       string     `gorm:"column:license_key"`
	CustomerID       string     `gorm:"column:customer_id"`
	AllowedSoftware  string     `gorm:"column:allowed_software;type:jsonb"`
	IssuedAt         time.Time  `gorm:"column:issued_at"`
	ExpiresAt        time.Time  `gorm:"column:expires_at"`
	LastActivationIP *string    `gorm:"column:last_activation_ip"`
	LastActivationAt *time.Time `gorm:"column:last_activation_at"`
	FailureCount     int        `gorm:"column:failure_count"`
	FailureHistory   string     `gorm:"column:failure_history;type:jsonb"`
	IPHistory        string     `gorm:"column:ip_history;type:jsonb"`
	BlockedUntil     *time.Time `gorm:"column:blocked_until"`
	Revision         int64      `gorm:"column:revision"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
}

func (licenseModel) TableName() string { return "licenses" }

type licenseOutboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	FirstSeenAt    time.Time  `gorm:"column:first_seen_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (licenseOutboxModel) TableName() string { return "license_outbox" }
