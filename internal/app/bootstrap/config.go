package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the license service.
// It merges file defaults and environment overrides to support both local and deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string

	JWTPrivateKeyPEM  string
	JWTPublicKeyPEM   string
	JWTKeyID          string
	AllowEphemeralJWT bool

	BcryptCost      int
	AdminSecretHash string
	AdminTokenTTL   time.Duration

	VerifyRetryBudget        int
	VerifyRateLimitThreshold int
	VerifyRateLimitWindow    time.Duration
	AdminRateLimitThreshold  int
	AdminRateLimitWindow     time.Duration

	MaxDBConns         int32
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int

	NotifyWebhookURL string
	NotifyTimeout    time.Duration
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"dependencies"`
	Notify struct {
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"notify"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:                "License-Service",
		HTTPPort:                 8080,
		GRPCPort:                 9090,
		JWTKeyID:                 "license-admin-key-1",
		AllowEphemeralJWT:        true,
		BcryptCost:               12,
		AdminTokenTTL:            12 * time.Hour,
		VerifyRetryBudget:        5,
		VerifyRateLimitThreshold: 60,
		VerifyRateLimitWindow:    time.Minute,
		AdminRateLimitThreshold:  10,
		AdminRateLimitWindow:     time.Minute,
		MaxDBConns:               20,
		OutboxPollInterval:       2 * time.Second,
		OutboxBatchSize:          100,
		OutboxClaimTTL:           30 * time.Second,
		OutboxMaxRetries:         1,
		NotifyTimeout:            5 * time.Second,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if f.Notify.WebhookURL != "" {
			cfg.NotifyWebhookURL = f.Notify.WebhookURL
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.JWTPrivateKeyPEM = envOrDefault("JWT_PRIVATE_KEY_PEM", cfg.JWTPrivateKeyPEM)
	cfg.JWTPublicKeyPEM = envOrDefault("JWT_PUBLIC_KEY_PEM", cfg.JWTPublicKeyPEM)
	cfg.JWTKeyID = envOrDefault("JWT_KEY_ID", cfg.JWTKeyID)
	cfg.AllowEphemeralJWT = envBool("JWT_ALLOW_EPHEMERAL", cfg.AllowEphemeralJWT)
	cfg.AdminSecretHash = envOrDefault("ADMIN_SECRET_HASH", cfg.AdminSecretHash)
	cfg.NotifyWebhookURL = envOrDefault("NOTIFY_WEBHOOK_URL", cfg.NotifyWebhookURL)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.BcryptCost = envInt("BCRYPT_ROUNDS", cfg.BcryptCost)
	cfg.VerifyRetryBudget = envInt("VERIFY_RETRY_BUDGET", cfg.VerifyRetryBudget)
	cfg.VerifyRateLimitThreshold = envInt("VERIFY_RATE_LIMIT_THRESHOLD", cfg.VerifyRateLimitThreshold)
	cfg.AdminRateLimitThreshold = envInt("ADMIN_RATE_LIMIT_THRESHOLD", cfg.AdminRateLimitThreshold)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))

	cfg.AdminTokenTTL = time.Duration(envInt("ADMIN_TOKEN_TTL_HOURS", int(cfg.AdminTokenTTL.Hours()))) * time.Hour
	cfg.VerifyRateLimitWindow = time.Duration(envInt("VERIFY_RATE_LIMIT_WINDOW_SECONDS", int(cfg.VerifyRateLimitWindow.Seconds()))) * time.Second
	cfg.AdminRateLimitWindow = time.Duration(envInt("ADMIN_RATE_LIMIT_WINDOW_SECONDS", int(cfg.AdminRateLimitWindow.Seconds()))) * time.Second
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = time.Duration(envInt("OUTBOX_CLAIM_TTL_SECONDS", int(cfg.OutboxClaimTTL.Seconds()))) * time.Second
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)
	cfg.NotifyTimeout = time.Duration(envInt("NOTIFY_TIMEOUT_SECONDS", int(cfg.NotifyTimeout.Seconds()))) * time.Second

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if cfg.AdminSecretHash == "" {
		return Config{}, fmt.Errorf("missing ADMIN_SECRET_HASH")
	}
	if (cfg.JWTPrivateKeyPEM == "" || cfg.JWTPublicKeyPEM == "") && !cfg.AllowEphemeralJWT {
		return Config{}, fmt.Errorf("missing JWT_PRIVATE_KEY_PEM or JWT_PUBLIC_KEY_PEM")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envBool parses common boolean env forms while keeping a deterministic fallback.
func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}
