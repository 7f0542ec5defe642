package postgres

import (
	"encoding/json"
	"errors"

	"github.com/keygate/license-service/internal/domain"
	"gorm.io/gorm"
)

func toDomainLicense(row licenseModel) domain.License {
	rec := domain.License{
		LicenseID:       row.LicenseID,
		LicenseKey:      row.LicenseKey,
		CustomerID:      row.CustomerID,
		AllowedSoftware: decodeStrings(row.AllowedSoftware),
		IssuedAt:        row.IssuedAt,
		ExpiresAt:       row.ExpiresAt,
		FailureCount:    row.FailureCount,
		FailureHistory:  decodeStrings(row.FailureHistory),
		IPHistory:       decodeStrings(row.IPHistory),
		BlockedUntil:    row.BlockedUntil,
		Revision:        row.Revision,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	if row.LastActivationIP != nil {
		rec.LastActivationIP = *row.LastActivationIP
	}
	if row.LastActivationAt != nil {
		rec.LastActivationAt = *row.LastActivationAt
	}
	return rec
}

func toLicenseModel(rec domain.License) licenseModel {
	row := licenseModel{
		LicenseID:       rec.LicenseID,
		LicenseKey:      rec.LicenseKey,
		CustomerID:      rec.CustomerID,
		AllowedSoftware: encodeStrings(rec.AllowedSoftware),
		IssuedAt:        rec.IssuedAt,
		ExpiresAt:       rec.ExpiresAt,
		FailureCount:    rec.FailureCount,
		FailureHistory:  encodeStrings(rec.FailureHistory),
		IPHistory:       encodeStrings(rec.IPHistory),
		BlockedUntil:    rec.BlockedUntil,
		Revision:        rec.Revision,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}
	if rec.LastActivationIP != "" {
		ip := rec.LastActivationIP
		row.LastActivationIP = &ip
		at := rec.LastActivationAt
		row.LastActivationAt = &at
	}
	return row
}

// encodeStrings stores slices as jsonb arrays; an empty slice is kept as []
// so reads never produce null histories.
func encodeStrings(values []string) string {
	if values == nil {
		values = []string{}
	}
	raw, _ := json.Marshal(values)
	return string(raw)
}

func decodeStrings(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return []string{}
	}
	return values
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
