package config

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/sportmatch/internal/client/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "http://localhost:8080/api", c.APIBaseURL)
	assert.Equal(t, 10*time.Second, c.RequestTimeout)
	assert.Equal(t, time.Second, c.ReconnectBaseDelay)
	assert.Equal(t, 5, c.ReconnectMaxAttempts)
	assert.Equal(t, 4*time.Second, c.HeartbeatOutgoing)
	assert.Equal(t, 10, c.PageSize)
	assert.Equal(t, services.FailOpen, c.Policy())
	require.NoError(t, c.Validate())
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	withArgs(t, "testbin")
	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "http://localhost:8080/api", cfg.APIBaseURL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative api url", func(c *Config) { c.APIBaseURL = "/api" }},
		{"bad realtime scheme", func(c *Config) { c.RealtimeURL = "ftp://x" }},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"max below base", func(c *Config) { c.ReconnectMaxDelay = time.Millisecond }},
		{"no attempts", func(c *Config) { c.ReconnectMaxAttempts = 0 }},
		{"negative heartbeat", func(c *Config) { c.HeartbeatIncoming = -time.Second }},
		{"zero page", func(c *Config) { c.PageSize = 0 }},
		{"zero distance", func(c *Config) { c.MaxDistanceKm = 0 }},
		{"unknown policy", func(c *Config) { c.ValidationPolicy = "maybe" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			c.LoadDefaults()
			tt.mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}

func TestPolicy_FailClosed(t *testing.T) {
	c := Config{ValidationPolicy: "fail-closed"}
	assert.Equal(t, services.FailClosed, c.Policy())
}
