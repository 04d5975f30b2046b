package config

import (
	"fmt"
	"time"

	"github.com/akeren/waitlist-api/pkg/constants"
	"github.com/caarlos0/env/v11"
)

// WaitlistConfig holds the storage knobs for the waitlist domain.
type WaitlistConfig struct {
	FilePath              string        `env:"WAITLIST_FILE"`
	StatsCacheTTL         time.Duration `env:"WAITLIST_STATS_CACHE_TTL" envDefault:"30s"`
	BreakerFailures       int           `env:"WAITLIST_BREAKER_FAILURES" envDefault:"3"`
	BreakerRecovery       time.Duration `env:"WAITLIST_BREAKER_RECOVERY" envDefault:"30s"`
	HostedConnectAttempts int           `env:"WAITLIST_HOSTED_CONNECT_ATTEMPTS" envDefault:"3"`
	HostedDisabled        bool          `env:"WAITLIST_HOSTED_DISABLED" envDefault:"false"`
}

func LoadWaitlistConfig() (*WaitlistConfig, error) {
	cfg := &WaitlistConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse waitlist config: %w", err)
	}

	cfg.FilePath = sanitizeEnv(cfg.FilePath)
	if cfg.FilePath == "" {
		cfg.FilePath = constants.DefaultWaitlistFile
	}

	if cfg.StatsCacheTTL < 0 {
		return nil, fmt.Errorf("WAITLIST_STATS_CACHE_TTL must not be negative, got %s", cfg.StatsCacheTTL)
	}
	if cfg.BreakerFailures < 1 {
		return nil, fmt.Errorf("WAITLIST_BREAKER_FAILURES must be at least 1, got %d", cfg.BreakerFailures)
	}
	if cfg.BreakerRecovery <= 0 {
		return nil, fmt.Errorf("WAITLIST_BREAKER_RECOVERY must be positive, got %s", cfg.BreakerRecovery)
	}
	if cfg.HostedConnectAttempts < 1 {
		cfg.HostedConnectAttempts = 1
	}

	return cfg, nil
}
