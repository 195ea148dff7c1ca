package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults_FillsMissingSections(t *testing.T) {
	cfg := &Config{}
	cfg.Env.Env = "develop"

	applyDefaults(cfg)

	require.NotNil(t, cfg.Session)
	assert.Equal(t, 24*time.Hour, cfg.Session.AbsoluteLifetime)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTimeout)

	require.NotNil(t, cfg.RateLimit)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 5, cfg.RateLimit.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)

	require.NotNil(t, cfg.Auth)
	assert.Equal(t, "HealthBridge", cfg.Auth.TOTPIssuer)
	assert.Equal(t, time.Hour, cfg.Auth.ResetTokenTTL)

	require.NotNil(t, cfg.PasswordStrength)
	assert.Equal(t, 8, cfg.PasswordStrength.MinLength)
}

func TestApplyDefaults_TestEnvDisablesRateLimit(t *testing.T) {
	cfg := &Config{}
	cfg.Env.Env = "test"

	applyDefaults(cfg)

	assert.False(t, cfg.RateLimit.Enabled)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		RateLimit: &RateLimitConfig{Enabled: true, Store: "redis", MaxAttempts: 3, Window: time.Minute},
	}

	applyDefaults(cfg)

	assert.Equal(t, 3, cfg.RateLimit.MaxAttempts)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, "redis", cfg.RateLimit.Store)
}
