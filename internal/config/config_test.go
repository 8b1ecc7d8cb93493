package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_STR", "value")
	require.Equal(t, "value", getenv("X_STR", "def"))
	require.Equal(t, "def", getenv("X_STR_MISSING", "def"))

	t.Setenv("X_BOOL", "yes")
	require.True(t, envBool("X_BOOL", false))
	t.Setenv("X_BOOL", "off")
	require.False(t, envBool("X_BOOL", true))
	t.Setenv("X_BOOL", "garbage")
	require.True(t, envBool("X_BOOL", true))

	t.Setenv("X_INT", "42")
	require.Equal(t, 42, envInt("X_INT", 7))
	t.Setenv("X_INT", "not a number")
	require.Equal(t, 7, envInt("X_INT", 7))

	t.Setenv("X_DUR", "90s")
	require.Equal(t, 90*time.Second, envDur("X_DUR", time.Minute))
	t.Setenv("X_DUR", "bogus")
	require.Equal(t, time.Minute, envDur("X_DUR", time.Minute))

	require.Equal(t, 30*time.Second, parseDur("30s"))
	require.Equal(t, time.Second, parseDur("bogus"))
}

func TestLoadRateLimitConfigFloors(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_TOKENS", "-3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	require.Equal(t, 1, cfg.Capacity, "capacity must never drop below 1")
	require.Equal(t, 1, cfg.RefillTokens)
	require.Equal(t, 2*time.Second, cfg.RefillInterval)
	// TTL is raised to five refill intervals so bucket state cannot
	// expire mid-refill.
	require.Equal(t, 10*time.Second, cfg.TTL)
}

func TestLoadCacheConfigDefaults(t *testing.T) {
	// Force the defaults even when the surrounding environment sets
	// cache variables; getenv treats empty as unset.
	for _, k := range []string{"CACHE_ENABLED", "CACHE_TTL", "CACHE_PREFIX", "CACHE_MAX_BODY_BYTES"} {
		t.Setenv(k, "")
	}
	cfg := LoadCacheConfig()
	require.True(t, cfg.Enabled)
	require.Equal(t, 30*time.Second, cfg.TTL)
	require.Equal(t, "cache", cfg.Prefix)
	require.Equal(t, 1048576, cfg.MaxBodyBytes)
}
