package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
		// Orígenes permitidos para CORS. Un Origin fuera de esta lista
		// genera un security event cors_violation.
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		// Orígenes secundarios: una violación de esta lista se registra
		// pero no se rechaza (integraciones internas conocidas).
		CORSTrustedOrigins []string `yaml:"cors_trusted_origins"`
	} `yaml:"server"`

	Storage struct {
		// pg | memory
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr string `yaml:"addr"`
			// Password se carga solo por env (REDIS_PASSWORD).
			Password string `yaml:"-"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	JWT struct {
		// Secret se carga solo por env (JWT_SECRET), nunca del YAML.
		Secret     string `yaml:"-"`
		AccessTTL  string `yaml:"access_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
	} `yaml:"jwt"`

	MagicLink struct {
		TTL     string `yaml:"ttl"`
		BaseURL string `yaml:"base_url"`
		// DebugEcho loguea el link en vez de enviarlo (solo dev).
		DebugEcho bool `yaml:"debug_echo"`
	} `yaml:"magic_link"`

	Rate struct {
		// Disabled apaga el rate limiting (solo entornos de carga/test).
		// El zero value deja el limiter activo.
		Disabled bool `yaml:"disabled"`
		Auth     struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"auth"`
		API struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"api"`
	} `yaml:"rate"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		TLS                string `yaml:"tls"`                  // auto | starttls | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // sólo dev
	} `yaml:"smtp"`

	Retention struct {
		// Edad mínima de sesiones terminadas / tokens vencidos para el sweep.
		SweepAfter string `yaml:"sweep_after"`
	} `yaml:"retention"`

	// CronSecret autoriza los endpoints de mantenimiento. Solo por env.
	CronSecret string `yaml:"-"`
}

// Load lee el YAML, aplica defaults y overrides por env, y valida.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "pg"
	}
	if c.Storage.Postgres.MaxOpenConns == 0 {
		c.Storage.Postgres.MaxOpenConns = 10
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "crewgate"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "168h" // 7d
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = "720h" // 30d
	}
	if c.MagicLink.TTL == "" {
		c.MagicLink.TTL = "15m"
	}
	if c.Rate.Auth.Limit == 0 {
		c.Rate.Auth.Limit = 5
	}
	if c.Rate.Auth.Window == "" {
		c.Rate.Auth.Window = "1m"
	}
	if c.Rate.API.Limit == 0 {
		c.Rate.API.Limit = 100
	}
	if c.Rate.API.Window == "" {
		c.Rate.API.Window = "1m"
	}
	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}
	if c.Retention.SweepAfter == "" {
		c.Retention.SweepAfter = "2160h" // 90d
	}

	// Overrides por env. Corren antes de validar duraciones para que un
	// JWT_ACCESS_TTL roto falle en el arranque, no en el primer login.
	c.applyEnvOverrides()

	// validate string durations
	for _, d := range []string{
		c.JWT.AccessTTL, c.JWT.RefreshTTL, c.MagicLink.TTL,
		c.Rate.Auth.Window, c.Rate.API.Window,
		c.Cache.Memory.DefaultTTL, c.Retention.SweepAfter,
	} {
		if _, err := time.ParseDuration(d); err != nil {
			return nil, err
		}
	}
	if c.Storage.Postgres.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(c.Storage.Postgres.ConnMaxLifetime); err != nil {
			return nil, err
		}
	}

	// Guardia dura: en prod NUNCA exponemos el magic link por logs.
	if strings.EqualFold(c.App.Env, "prod") {
		c.MagicLink.DebugEcho = false
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate chequea los valores críticos que no tienen default razonable.
func (c *Config) Validate() error {
	if len(c.JWT.Secret) < 32 {
		return errors.New("config: JWT_SECRET must be at least 32 bytes")
	}
	if c.Storage.Driver == "pg" && strings.TrimSpace(c.Storage.DSN) == "" {
		return errors.New("config: storage driver pg requires a DSN")
	}
	if c.Cache.Kind == "redis" && strings.TrimSpace(c.Cache.Redis.Addr) == "" {
		return errors.New("config: cache kind redis requires an addr")
	}
	return nil
}

// Duration parsea una duración ya validada en Load.
func Duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		if strings.TrimSpace(s) == "" {
			return []string{}, true
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_TRUSTED_ORIGINS"); ok {
		c.Server.CORSTrustedOrigins = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("DATABASE_URL"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	// JWT
	if v, ok := getEnvStr("JWT_SECRET"); ok {
		c.JWT.Secret = v
	}
	if v, ok := getEnvStr("JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}
	if v, ok := getEnvStr("JWT_REFRESH_TTL"); ok {
		c.JWT.RefreshTTL = v
	}

	// MAGIC LINK
	if v, ok := getEnvStr("MAGIC_LINK_TTL"); ok {
		c.MagicLink.TTL = v
	}
	if v, ok := getEnvStr("MAGIC_LINK_BASE_URL"); ok {
		c.MagicLink.BaseURL = v
	}
	if v, ok := getEnvBool("MAGIC_LINK_DEBUG_ECHO"); ok {
		c.MagicLink.DebugEcho = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_DISABLED"); ok {
		c.Rate.Disabled = v
	}
	if v, ok := getEnvInt("RATE_AUTH_LIMIT"); ok {
		c.Rate.Auth.Limit = v
	}
	if v, ok := getEnvStr("RATE_AUTH_WINDOW"); ok {
		c.Rate.Auth.Window = v
	}
	if v, ok := getEnvInt("RATE_API_LIMIT"); ok {
		c.Rate.API.Limit = v
	}
	if v, ok := getEnvStr("RATE_API_WINDOW"); ok {
		c.Rate.API.Window = v
	}

	// SMTP
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvStr("SMTP_TLS"); ok {
		c.SMTP.TLS = strings.ToLower(v) // auto|starttls|ssl|none
	}
	if v, ok := getEnvBool("SMTP_INSECURE_SKIP_VERIFY"); ok {
		c.SMTP.InsecureSkipVerify = v
	}

	// RETENTION
	if v, ok := getEnvStr("RETENTION_SWEEP_AFTER"); ok {
		c.Retention.SweepAfter = v
	}

	// CRON
	if v, ok := getEnvStr("CRON_SECRET"); ok {
		c.CronSecret = v
	}
}
