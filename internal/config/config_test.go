package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsWithoutYAML(t *testing.T) {
	t.Setenv("JWT_SECRET", testJWTSecret)
	t.Setenv("STORAGE_DRIVER", "memory")

	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", c.Server.Addr)
	require.Equal(t, "memory", c.Cache.Kind)
	require.Equal(t, "168h", c.JWT.AccessTTL)
	require.Equal(t, "720h", c.JWT.RefreshTTL)
	require.Equal(t, "15m", c.MagicLink.TTL)
	require.Equal(t, 5, c.Rate.Auth.Limit)
	require.Equal(t, 100, c.Rate.API.Limit)
	require.Equal(t, "2160h", c.Retention.SweepAfter)
	require.Equal(t, "crewgate", c.Cache.Redis.Prefix)
}

func TestLoad_YAMLValues(t *testing.T) {
	t.Setenv("JWT_SECRET", testJWTSecret)
	path := writeYAML(t, `
server:
  addr: ":9090"
  cors_allowed_origins: ["https://app.crewgate.test"]
storage:
  driver: memory
rate:
  auth:
    limit: 3
    window: 30s
magic_link:
  ttl: 10m
  base_url: https://app.crewgate.test/magic
`)

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", c.Server.Addr)
	require.Equal(t, []string{"https://app.crewgate.test"}, c.Server.CORSAllowedOrigins)
	require.Equal(t, 3, c.Rate.Auth.Limit)
	require.Equal(t, "30s", c.Rate.Auth.Window)
	require.Equal(t, "10m", c.MagicLink.TTL)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	t.Setenv("JWT_SECRET", testJWTSecret)
	t.Setenv("SERVER_ADDR", ":7070")
	t.Setenv("RATE_AUTH_LIMIT", "9")
	t.Setenv("SERVER_CORS_ALLOWED_ORIGINS", "https://a.test, https://b.test")
	path := writeYAML(t, `
server:
  addr: ":9090"
storage:
  driver: memory
`)

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7070", c.Server.Addr)
	require.Equal(t, 9, c.Rate.Auth.Limit)
	require.Equal(t, []string{"https://a.test", "https://b.test"}, c.Server.CORSAllowedOrigins)
}

func TestLoad_SecretsOnlyFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", testJWTSecret)
	t.Setenv("REDIS_PASSWORD", "hunter2")
	t.Setenv("CRON_SECRET", "cron-secret")
	// Una key jwt.secret en el YAML se ignora: el tag es yaml:"-".
	path := writeYAML(t, `
storage:
  driver: memory
jwt:
  secret: from-yaml-should-be-ignored
`)

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, testJWTSecret, c.JWT.Secret)
	require.Equal(t, "hunter2", c.Cache.Redis.Password)
	require.Equal(t, "cron-secret", c.CronSecret)
}

func TestLoad_ShortJWTSecretRejected(t *testing.T) {
	t.Setenv("JWT_SECRET", "too-short")
	t.Setenv("STORAGE_DRIVER", "memory")

	_, err := Load("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_PgDriverRequiresDSN(t *testing.T) {
	t.Setenv("JWT_SECRET", testJWTSecret)

	_, err := Load("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "DSN")
}

func TestLoad_RedisCacheRequiresAddr(t *testing.T) {
	t.Setenv("JWT_SECRET", testJWTSecret)
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("CACHE_KIND", "redis")

	_, err := Load("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "addr")
}

func TestLoad_BadDurationRejected(t *testing.T) {
	t.Setenv("JWT_SECRET", testJWTSecret)
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("JWT_ACCESS_TTL", "not-a-duration")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_ProdDisablesDebugEcho(t *testing.T) {
	t.Setenv("JWT_SECRET", testJWTSecret)
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("APP_ENV", "PROD")
	t.Setenv("MAGIC_LINK_DEBUG_ECHO", "true")

	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "prod", c.App.Env)
	require.False(t, c.MagicLink.DebugEcho)
}

func TestDuration(t *testing.T) {
	require.Equal(t, 15*time.Minute, Duration("15m"))
	require.Equal(t, time.Duration(0), Duration("garbage"))
}
