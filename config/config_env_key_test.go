package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizeEnvKey(t *testing.T) {
	existing := map[string]any{
		"session": map[string]any{
			"idleTimeout":      "15m",
			"absoluteLifetime": "8h",
		},
		"twoFactor": map[string]any{
			"issuer": "HealthBridge",
		},
		"scheduler": map[string]any{
			"resetTokenPurgeSpec": "@every 1h",
		},
		"notifier": map[string]any{
			"resetLinkBaseUrl": "http://localhost:3000/reset-password",
		},
	}

	cases := map[string]string{
		"SESSION_IDLETIMEOUT":           "session.idleTimeout",
		"SESSION_ABSOLUTELIFETIME":      "session.absoluteLifetime",
		"TWOFACTOR_ISSUER":              "twoFactor.issuer",
		"SCHEDULER_RESETTOKENPURGESPEC": "scheduler.resetTokenPurgeSpec",
		"NOTIFIER_RESETLINKBASEURL":     "notifier.resetLinkBaseUrl",
		"AUDIT_RETENTION_DAYS":          "audit.retention.days",
	}

	for envKey, want := range cases {
		t.Run(envKey, func(t *testing.T) {
			assert.Equal(t, want, canonicalizeEnvKey(envKey, existing))
		})
	}
}
