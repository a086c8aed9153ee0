package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Pool.MaxSessions)
	assert.Equal(t, 64, cfg.Pool.QueueCapacity)
	assert.True(t, cfg.Browser.Headless)
	assert.NotEmpty(t, cfg.URLPolicy.Deny, "defaults should block internal endpoints")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
pool:
  max_sessions: 8
  idle_timeout: 1m
browser:
  headless: false
  user_agent: "gateway-test/1.0"
url_policy:
  allow:
    - "https://*.example.com/*"
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Pool.MaxSessions)
	assert.Equal(t, time.Minute, cfg.Pool.IdleTimeout)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "gateway-test/1.0", cfg.Browser.UserAgent)
	assert.Equal(t, []string{"https://*.example.com/*"}, cfg.URLPolicy.Allow)

	// untouched keys keep their defaults
	assert.Equal(t, 60*time.Second, cfg.Pool.RequestTimeout)
	assert.Equal(t, 64, cfg.Pool.QueueCapacity)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("GATEWAY_MAX_SESSIONS", "2")
	t.Setenv("GATEWAY_LOG_DIR", "/tmp/gateway-logs")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Pool.MaxSessions)
	assert.Equal(t, "/tmp/gateway-logs", cfg.Logging.Dir)
}

func TestGatewayPortWinsOverPort(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("GATEWAY_PORT", "3001")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3001, cfg.Server.Port)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{"zero port", func(cfg *Config) { cfg.Server.Port = 0 }},
		{"port too large", func(cfg *Config) { cfg.Server.Port = 70000 }},
		{"zero max_sessions", func(cfg *Config) { cfg.Pool.MaxSessions = 0 }},
		{"negative max_sessions", func(cfg *Config) { cfg.Pool.MaxSessions = -1 }},
		{"zero queue_capacity", func(cfg *Config) { cfg.Pool.QueueCapacity = 0 }},
		{"negative idle_timeout", func(cfg *Config) { cfg.Pool.IdleTimeout = -time.Second }},
		{"zero request_timeout", func(cfg *Config) { cfg.Pool.RequestTimeout = 0 }},
		{"negative viewport", func(cfg *Config) { cfg.Browser.ViewportWidth = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
