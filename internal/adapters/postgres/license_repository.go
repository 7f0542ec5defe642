package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keygate/license-service/internal/domain"
)

type licenseRepository struct {
	db *gorm.DB
}

func (r *licenseRepository) Create(ctx context.Context, rec domain.License) (domain.License, error) {
	row := toLicenseModel(rec)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.License{}, domain.ErrConflict
		}
		return domain.License{}, err
	}
	return toDomainLicense(row), nil
}

func (r *licenseRepository) GetByKey(ctx context.Context, licenseKey string) (domain.License, error) {
	var row licenseModel
	if err := r.db.WithContext(ctx).Where("license_key = ?", licenseKey).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.License{}, domain.ErrNotFound
		}
		return domain.License{}, err
	}
	return toDomainLicense(row), nil
}

func (r *licenseRepository) GetByID(ctx context.Context, licenseID uuid.UUID) (domain.License, error) {
	var row licenseModel
	if err := r.db.WithContext(ctx).Where("license_id = ?", licenseID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.License{}, domain.ErrNotFound
		}
		return domain.License{}, err
	}
	return toDomainLicense(row), nil
}

func (r *licenseRepository) List(ctx context.Context, limit, offset int) ([]domain.License, error) {
	var rows []licenseModel
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.License, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainLicense(row))
	}
	return result, nil
}

// ConditionalUpdate is the compare-and-set commit: the write lands only while
// the stored revision still equals expectedRevision. RowsAffected == 0 means
// either a lost race or a deleted record; callers re-read to distinguish.
func (r *licenseRepository) ConditionalUpdate(ctx context.Context, rec domain.License, expectedRevision int64) error {
	now := time.Now().UTC()
	row := toLicenseModel(rec)
	res := r.db.WithContext(ctx).
		Model(&licenseModel{}).
		Where("license_id = ?", rec.LicenseID).
		Where("revision = ?", expectedRevision).
		Updates(map[string]any{
			"last_activation_ip": row.LastActivationIP,
			"last_activation_at": row.LastActivationAt,
			"failure_count":      row.FailureCount,
			"failure_history":    row.FailureHistory,
			"ip_history":         row.IPHistory,
			"blocked_until":      row.BlockedUntil,
			"revision":           gorm.Expr("revision + 1"),
			"updated_at":         now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrRevisionConflict
	}
	return nil
}
