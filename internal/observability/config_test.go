package observability

import (
	"testing"

	"github.com/smallbiznis/orgkeys/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigFromAppConfig(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppName:            "orgkeys",
		AppVersion:         " 1.2.3 ",
		Environment:        "production",
		LogLevel:           "info",
		TracingEnabled:     true,
		OTLPProtocol:       "http",
		TracingSampleRatio: 0.5,
	})

	assert.Equal(t, "orgkeys", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.Equal(t, 0.5, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(config.Config{TracingSampleRatio: 3})
	assert.Equal(t, "orgkeys", cfg.ServiceName)
	assert.Equal(t, 0.1, cfg.OtelSamplingRatio)
}

func TestDebug(t *testing.T) {
	assert.True(t, Config{Environment: "development"}.Debug())
	assert.True(t, Config{Environment: "production", LogLevel: "DEBUG"}.Debug())
	assert.False(t, Config{Environment: "production", LogLevel: "info"}.Debug())
}
