package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/keygate/license-service/internal/domain"
	"github.com/keygate/license-service/internal/ports"
)

// AdminLogin exchanges the configured admin secret for a short-lived bearer
// token. Failed attempts count against the per-origin rate limit.
func (s *Service) AdminLogin(ctx context.Context, req AdminLoginRequest, requestIP string) (AdminLoginResponse, error) {
	if strings.TrimSpace(req.Secret) == "" {
		return AdminLoginResponse{}, fmt.Errorf("%w: secret is required", domain.ErrInvalidInput)
	}
	if s.adminSecretHash == "" {
		return AdminLoginResponse{}, domain.ErrUnauthorized
	}

	if err := s.enforceRateLimit(ctx, "admin-login:ip:"+requestIP, s.cfg.AdminRateLimitThreshold, s.cfg.AdminRateLimitWindow); err != nil {
		return AdminLoginResponse{}, err
	}

	if err := s.hasher.Compare(s.adminSecretHash, req.Secret); err != nil {
		slog.Default().WarnContext(ctx, "admin login rejected",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "admin_login",
			"outcome", "failure",
			"request_ip", requestIP,
		)
		return AdminLoginResponse{}, domain.ErrInvalidCredentials
	}

	now := s.nowFn()
	token, err := s.signer.Sign(ports.AdminClaims{
		Subject:   "admin",
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.AdminTokenTTL),
	})
	if err != nil {
		return AdminLoginResponse{}, fmt.Errorf("sign admin token: %w", err)
	}

	return AdminLoginResponse{
		Token:     token,
		ExpiresIn: int64(s.cfg.AdminTokenTTL.Seconds()),
	}, nil
}

// ValidateAdminToken verifies an admin bearer token for protected routes.
func (s *Service) ValidateAdminToken(_ context.Context, token string) (ports.AdminClaims, error) {
	claims, err := s.signer.ParseAndValidate(token)
	if err != nil {
		return ports.AdminClaims{}, domain.ErrUnauthorized
	}
	if claims.ExpiresAt.Before(s.nowFn()) {
		return ports.AdminClaims{}, domain.ErrUnauthorized
	}
	return claims, nil
}

// CreateLicense provisions a new record with a generated key, empty histories
// and no lockout. Duplicate customer identifiers are rejected.
func (s *Service) CreateLicense(ctx context.Context, req CreateLicenseRequest) (CreateLicenseResponse, error) {
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		return CreateLicenseResponse{}, fmt.Errorf("%w: customer_id is required", domain.ErrInvalidInput)
	}
	if req.DurationMonths <= 0 {
		return CreateLicenseResponse{}, fmt.Errorf("%w: duration_months must be positive", domain.ErrInvalidInput)
	}

	software := make([]string, 0, len(req.AllowedSoftware))
	for _, item := range req.AllowedSoftware {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		software = append(software, trimmed)
	}

	now := s.nowFn()
	rec := domain.License{
		LicenseID:       uuid.New(),
		LicenseKey:      generateLicenseKey(),
		CustomerID:      customerID,
		AllowedSoftware: software,
		IssuedAt:        now,
		ExpiresAt:       now.AddDate(0, req.DurationMonths, 0),
		FailureHistory:  []string{},
		IPHistory:       []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	created, err := s.licenses.Create(ctx, rec)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return CreateLicenseResponse{}, fmt.Errorf("%w: customer already has a license", domain.ErrConflict)
		}
		return CreateLicenseResponse{}, err
	}

	slog.Default().InfoContext(ctx, "license issued",
		"service", serviceName,
		"module", "application",
		"layer", "application",
		"operation", "create_license",
		"outcome", "success",
		"license_id", created.LicenseID,
		"customer_id", customerID,
		"expires_at", created.ExpiresAt,
	)

	return CreateLicenseResponse{
		LicenseID:  created.LicenseID,
		LicenseKey: created.LicenseKey,
		ExpiresAt:  created.ExpiresAt,
	}, nil
}

// GetLicense returns the admin view of one record.
func (s *Service) GetLicense(ctx context.Context, licenseID uuid.UUID) (LicenseDetail, error) {
	rec, err := s.licenses.GetByID(ctx, licenseID)
	if err != nil {
		return LicenseDetail{}, err
	}
	return toLicenseDetail(rec), nil
}

// ListLicenses returns a page of records for the admin dashboard.
func (s *Service) ListLicenses(ctx context.Context, q ListLicensesQuery) ([]LicenseDetail, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	records, err := s.licenses.List(ctx, q.Limit, (q.Page-1)*q.Limit)
	if err != nil {
		return nil, err
	}
	result := make([]LicenseDetail, 0, len(records))
	for _, rec := range records {
		result = append(result, toLicenseDetail(rec))
	}
	return result, nil
}

// UnblockLicense clears an active lockout through the same revision-guarded
// protocol as verification, so an in-flight check cannot resurrect the block.
// The failure count is left untouched.
func (s *Service) UnblockLicense(ctx context.Context, licenseID uuid.UUID) (LicenseDetail, error) {
	for attempt := 0; attempt < s.cfg.VerifyRetryBudget; attempt++ {
		rec, err := s.licenses.GetByID(ctx, licenseID)
		if err != nil {
			return LicenseDetail{}, err
		}
		if rec.BlockedUntil == nil {
			return toLicenseDetail(rec), nil
		}

		updated := rec
		updated.BlockedUntil = nil
		if err := s.licenses.ConditionalUpdate(ctx, updated, rec.Revision); err != nil {
			if errors.Is(err, domain.ErrRevisionConflict) {
				continue
			}
			return LicenseDetail{}, err
		}

		slog.Default().InfoContext(ctx, "license lockout cleared",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "unblock_license",
			"outcome", "success",
			"license_id", licenseID,
		)
		updated.Revision = rec.Revision + 1
		return toLicenseDetail(updated), nil
	}
	return LicenseDetail{}, domain.ErrRetryExhausted
}
