package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_TOKEN_SECRET", "")
	t.Setenv("INVITATION_TTL", "")
	t.Setenv("RATE_LIMIT_ENABLED", "")

	cfg := Load()

	assert.Equal(t, "", cfg.TokenSecret)
	assert.Equal(t, 7*24*time.Hour, cfg.InvitationTTL)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.True(t, cfg.Authorization.PersistPolicies)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_TOKEN_SECRET", "  s3cret  ")
	t.Setenv("INVITATION_TTL", "48h")
	t.Setenv("RATE_LIMIT_ENABLED", "yes")
	t.Setenv("RATE_LIMIT_VERIFY_BURST", "3")
	t.Setenv("ENVIRONMENT", "production")

	cfg := Load()

	assert.Equal(t, "s3cret", cfg.TokenSecret)
	assert.Equal(t, 48*time.Hour, cfg.InvitationTTL)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 3, cfg.RateLimit.VerifyBurst)
	assert.True(t, cfg.IsProduction())
}

func TestGetenvFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "x")
	t.Setenv("SOME_DURATION", "-5s")
	t.Setenv("SOME_BOOL", "maybe")

	assert.Equal(t, 7, getenvInt("SOME_INT", 7))
	assert.Equal(t, time.Minute, getenvDuration("SOME_DURATION", time.Minute))
	assert.True(t, getenvBool("SOME_BOOL", true))
}

func TestTracesProtocolOverride(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "HTTP")
	assert.Equal(t, "http", Load().OTLPProtocol)
}
