package config

import (
	"testing"
	"time"

	"github.com/akeren/waitlist-api/pkg/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearWaitlistEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"WAITLIST_FILE",
		"WAITLIST_STATS_CACHE_TTL",
		"WAITLIST_BREAKER_FAILURES",
		"WAITLIST_BREAKER_RECOVERY",
		"WAITLIST_HOSTED_CONNECT_ATTEMPTS",
		"WAITLIST_HOSTED_DISABLED",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadWaitlistConfig_Defaults(t *testing.T) {
	clearWaitlistEnv(t)

	cfg, err := LoadWaitlistConfig()
	require.NoError(t, err)

	assert.Equal(t, constants.DefaultWaitlistFile, cfg.FilePath)
	assert.Equal(t, 30*time.Second, cfg.StatsCacheTTL)
	assert.Equal(t, 3, cfg.BreakerFailures)
	assert.Equal(t, 30*time.Second, cfg.BreakerRecovery)
	assert.Equal(t, 3, cfg.HostedConnectAttempts)
	assert.False(t, cfg.HostedDisabled)
}

func TestLoadWaitlistConfig_Overrides(t *testing.T) {
	clearWaitlistEnv(t)
	t.Setenv("WAITLIST_FILE", "/var/lib/waitlist/entries.json")
	t.Setenv("WAITLIST_STATS_CACHE_TTL", "0s")
	t.Setenv("WAITLIST_BREAKER_FAILURES", "5")
	t.Setenv("WAITLIST_BREAKER_RECOVERY", "1m")
	t.Setenv("WAITLIST_HOSTED_CONNECT_ATTEMPTS", "0")
	t.Setenv("WAITLIST_HOSTED_DISABLED", "true")

	cfg, err := LoadWaitlistConfig()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/waitlist/entries.json", cfg.FilePath)
	assert.Equal(t, time.Duration(0), cfg.StatsCacheTTL)
	assert.Equal(t, 5, cfg.BreakerFailures)
	assert.Equal(t, time.Minute, cfg.BreakerRecovery)
	assert.Equal(t, 1, cfg.HostedConnectAttempts)
	assert.True(t, cfg.HostedDisabled)
}

func TestLoadWaitlistConfig_Invalid(t *testing.T) {
	cases := map[string]string{
		"WAITLIST_STATS_CACHE_TTL":  "soon",
		"WAITLIST_BREAKER_FAILURES": "0",
		"WAITLIST_BREAKER_RECOVERY": "-1s",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearWaitlistEnv(t)
			t.Setenv(key, value)

			_, err := LoadWaitlistConfig()
			assert.Error(t, err)
		})
	}
}
