package application

import (
	"time"

	"github.com/google/uuid"

	"github.com/keygate/license-service/internal/domain"
)

// VerifyRequest is one inbound license check. Software is optional; an empty
// value means no entitlement check was requested.
type VerifyRequest struct {
	LicenseKey string `json:"license_key"`
	Software   string `json:"software,omitempty"`
	IPAddress  string `json:"-"`
}

// VerifyResult carries the terminal decision plus the fields the transport
// surfaces for it. Decisions are never Go errors. Message is always present
// in the response body; the machine-readable decision rides alongside it.
type VerifyResult struct {
	Decision     domain.Decision `json:"decision"`
	Message      string          `json:"message"`
	BlockedUntil *time.Time      `json:"blocked_until,omitempty"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
}

func decisionMessage(d domain.Decision) string {
	switch d {
	case domain.DecisionAllowed:
		return "license verified"
	case domain.DecisionNotFound:
		return "license key not found"
	case domain.DecisionSoftwareDenied:
		return "software is not covered by this license"
	case domain.DecisionBlocked:
		return "license is temporarily blocked"
	case domain.DecisionExpired:
		return "license has expired"
	case domain.DecisionDeniedIPMismatch:
		return "license is bound to a different origin"
	case domain.DecisionRetryExhausted:
		return "verification could not be completed, try again"
	default:
		return string(d)
	}
}

type AdminLoginRequest struct {
	Secret string `json:"secret"`
}

type AdminLoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

type CreateLicenseRequest struct {
	CustomerID      string   `json:"customer_id"`
	DurationMonths  int      `json:"duration_months"`
	AllowedSoftware []string `json:"allowed_software"`
}

type CreateLicenseResponse struct {
	LicenseID  uuid.UUID `json:"license_id"`
	LicenseKey string    `json:"license_key"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// LicenseDetail is the admin view of a record, including lockout state and
// the bounded histories.
type LicenseDetail struct {
	LicenseID        uuid.UUID  `json:"license_id"`
	CustomerID       string     `json:"customer_id"`
	AllowedSoftware  []string   `json:"allowed_software"`
	IssuedAt         time.Time  `json:"issued_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	LastActivationIP string     `json:"last_activation_ip,omitempty"`
	LastActivationAt *time.Time `json:"last_activation_at,omitempty"`
	FailureCount     int        `json:"failure_count"`
	FailureHistory   []string   `json:"failure_history,omitempty"`
	IPHistory        []string   `json:"ip_history,omitempty"`
	BlockedUntil     *time.Time `json:"blocked_until,omitempty"`
	Revision         int64      `json:"revision"`
}

type ListLicensesQuery struct {
	Page  int
	Limit int
}

func toLicenseDetail(rec domain.License) LicenseDetail {
	detail := LicenseDetail{
		LicenseID:       rec.LicenseID,
		CustomerID:      rec.CustomerID,
		AllowedSoftware: rec.AllowedSoftware,
		IssuedAt:        rec.IssuedAt,
		ExpiresAt:       rec.ExpiresAt,
		FailureCount:    rec.FailureCount,
		FailureHistory:  rec.FailureHistory,
		IPHistory:       rec.IPHistory,
		BlockedUntil:    rec.BlockedUntil,
		Revision:        rec.Revision,
	}
	if rec.LastActivationIP != "" {
		detail.LastActivationIP = rec.LastActivationIP
		at := rec.LastActivationAt
		detail.LastActivationAt = &at
	}
	return detail
}
