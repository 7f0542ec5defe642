package application

import (
	"time"

	"github.com/keygate/license-service/internal/ports"
)

// Config carries the application-level tuning knobs resolved at bootstrap.
type Config struct {
	VerifyRetryBudget int
	AdminTokenTTL     time.Duration

	VerifyRateLimitThreshold int
	VerifyRateLimitWindow    time.Duration
	AdminRateLimitThreshold  int
	AdminRateLimitWindow     time.Duration
}

type Service struct {
	cfg        Config
	licenses   ports.LicenseRepository
	outbox     ports.OutboxRepository
	rateLimits ports.RateLimitStore
	hasher     ports.SecretHasher
	signer     ports.TokenSigner

	adminSecretHash string
	nowFn           func() time.Time
}

type Dependencies struct {
	Config          Config
	Licenses        ports.LicenseRepository
	Outbox          ports.OutboxRepository
	RateLimits      ports.RateLimitStore
	Hasher          ports.SecretHasher
	TokenSigner     ports.TokenSigner
	AdminSecretHash string
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.VerifyRetryBudget <= 0 {
		cfg.VerifyRetryBudget = 5
	}
	if cfg.AdminTokenTTL <= 0 {
		cfg.AdminTokenTTL = 12 * time.Hour
	}
	return &Service{
		cfg:             cfg,
		licenses:        deps.Licenses,
		outbox:          deps.Outbox,
		rateLimits:      deps.RateLimits,
		hasher:          deps.Hasher,
		signer:          deps.TokenSigner,
		adminSecretHash: deps.AdminSecretHash,
		nowFn:           func() time.Time { return time.Now().UTC() },
	}
}
