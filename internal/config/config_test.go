package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "dev-secret")
	t.Setenv("APPVIEW_PORT", "9090")
	t.Setenv("LIST_CACHE_TTL", "90s")
	t.Setenv("CACHE_SWEEP_INTERVAL", "")
	t.Setenv("RATE_LIMIT_REQUESTS", "5")
	t.Setenv("REDIS_URL", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "dev-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 90*time.Second, cfg.Caching.ListTTL)
	assert.Equal(t, time.Minute, cfg.Caching.SweepInterval)
	assert.Equal(t, 5, cfg.RateLimit.Requests)
	assert.Empty(t, cfg.Caching.RedisURL)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fanvault.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "7000"
auth:
  jwt_secret: file-secret
  issuer: https://sessions.fanvault.test
caching:
  redis_url: redis://localhost:6379/0
  list_ttl: 5m
logging:
  level: debug
  format: json
`), 0o600))

	t.Setenv("APPVIEW_PORT", "7100")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("LIST_CACHE_TTL", "")
	t.Setenv("LOG_FORMAT", "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7100", cfg.Server.Port)
	assert.Equal(t, "file-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "https://sessions.fanvault.test", cfg.Auth.Issuer)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Caching.RedisURL)
	assert.Equal(t, 5*time.Minute, cfg.Caching.ListTTL)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing key material", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		t.Setenv("JWKS_URL", "")
		_, err := Load("")
		assert.ErrorContains(t, err, "JWT_SECRET")
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "x")
		t.Setenv("LIST_CACHE_TTL", "soon")
		_, err := Load("")
		assert.ErrorContains(t, err, "LIST_CACHE_TTL")
	})

	t.Run("non-positive ttl", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "x")
		t.Setenv("LIST_CACHE_TTL", "-1s")
		_, err := Load("")
		assert.ErrorContains(t, err, "ttl must be positive")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorContains(t, err, "failed to read config file")
	})
}

func TestNewLoggerWithWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(Logging{Level: "warn", Format: "json"}, &buf)

	logger.Info("dropped")
	logger.Warn("kept", "target", "p1")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "p1", line["target"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
