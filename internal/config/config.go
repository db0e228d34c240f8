package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix antecede a todas las variables de entorno que pisan el YAML.
const EnvPrefix = "AUTHCORE_"

type Config struct {
	App struct {
		// Name se usa como service.name en logs y trazas.
		Name string `yaml:"name" env:"NAME"`
		// dev | staging | prod
		Env      string `yaml:"env" env:"ENV"`
		LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
		Version  string `yaml:"-" env:"VERSION"`
	} `yaml:"app" envPrefix:"APP_"`

	Server struct {
		Addr            string        `yaml:"addr" env:"ADDR"`
		ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
		WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
		// MaxFormBytes limita el body de /oauth/token y /oauth/check_token.
		MaxFormBytes int64 `yaml:"max_form_bytes" env:"MAX_FORM_BYTES"`
		// DisableMetrics oculta /metrics (los contadores se siguen registrando).
		DisableMetrics bool `yaml:"disable_metrics" env:"DISABLE_METRICS"`
		// RateLimit por IP en el token endpoint; Max 0 lo deshabilita.
		RateLimit struct {
			Max        int           `yaml:"max" env:"MAX"`
			Window     time.Duration `yaml:"window" env:"WINDOW"`
			TrustProxy bool          `yaml:"trust_proxy" env:"TRUST_PROXY"`
		} `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
	} `yaml:"server" envPrefix:"SERVER_"`

	Storage struct {
		DSN             string        `yaml:"dsn" env:"DSN"`
		MaxConns        int32         `yaml:"max_conns" env:"MAX_CONNS"`
		MinConns        int32         `yaml:"min_conns" env:"MIN_CONNS"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
		// Migrate aplica migrations/postgres al arrancar.
		Migrate bool `yaml:"migrate" env:"MIGRATE"`
	} `yaml:"storage" envPrefix:"STORAGE_"`

	Cache struct {
		// memory | redis. Con más de una réplica usar redis: los codes son single-use.
		Driver   string `yaml:"driver" env:"DRIVER"`
		Addr     string `yaml:"addr" env:"ADDR"`
		Password string `yaml:"password" env:"PASSWORD"`
		DB       int    `yaml:"db" env:"DB"`
		Prefix   string `yaml:"prefix" env:"PREFIX"`
	} `yaml:"cache" envPrefix:"CACHE_"`

	Keystore struct {
		Path          string `yaml:"path" env:"PATH"`
		StorePassword string `yaml:"store_password" env:"STORE_PASSWORD"`
		// KeyPassword vacío usa StorePassword.
		KeyPassword string `yaml:"key_password" env:"KEY_PASSWORD"`
		Alias       string `yaml:"alias" env:"ALIAS"`
	} `yaml:"keystore" envPrefix:"KEYSTORE_"`

	Token struct {
		Issuer         string        `yaml:"issuer" env:"ISSUER"`
		Skew           time.Duration `yaml:"skew" env:"SKEW"`
		RotateRefresh  bool          `yaml:"rotate_refresh" env:"ROTATE_REFRESH"`
		StrictScopes   bool          `yaml:"strict_scopes" env:"STRICT_SCOPES"`
		CodeTTL        time.Duration `yaml:"code_ttl" env:"CODE_TTL"`
		CallTimeout    time.Duration `yaml:"call_timeout" env:"CALL_TIMEOUT"`
		ClientCacheTTL time.Duration `yaml:"client_cache_ttl" env:"CLIENT_CACHE_TTL"`
		// UpgradeHashes re-hashea secretos legacy tras un login exitoso.
		UpgradeHashes bool `yaml:"upgrade_hashes" env:"UPGRADE_HASHES"`
	} `yaml:"token" envPrefix:"TOKEN_"`

	// Enhancers agregan claims a todos los tokens (static) o por client (per_client).
	// Solo YAML: son mapas arbitrarios.
	Enhancers struct {
		Static    map[string]any            `yaml:"static"`
		PerClient map[string]map[string]any `yaml:"per_client"`
	} `yaml:"enhancers"`

	Owners struct {
		// postgres | static
		Source string `yaml:"source" env:"SOURCE"`
		// Users va indexado por username.
		Users map[string]StaticUser `yaml:"users"`
	} `yaml:"owners" envPrefix:"OWNERS_"`

	Telemetry struct {
		Enabled     bool    `yaml:"enabled" env:"ENABLED"`
		Endpoint    string  `yaml:"endpoint" env:"ENDPOINT"`
		SampleRatio float64 `yaml:"sample_ratio" env:"SAMPLE_RATIO"`
	} `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

// StaticUser es un resource owner declarado en el YAML (dev/tests).
// PasswordHash usa el formato {id}encoded de `oauthctl hash`.
type StaticUser struct {
	ID           string `yaml:"id"`
	PasswordHash string `yaml:"password_hash"`
	Disabled     bool   `yaml:"disabled"`
}

// Load lee el YAML (path vacío = solo defaults), aplica defaults, overrides de
// entorno AUTHCORE_* y valida.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	c.applyDefaults()
	if err := env.ParseWithOptions(&c, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// sane defaults
func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "authcore"
	}
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Server.MaxFormBytes == 0 {
		c.Server.MaxFormBytes = 64 << 10
	}
	if c.Server.RateLimit.Window == 0 {
		c.Server.RateLimit.Window = time.Minute
	}
	if c.Storage.MaxConns == 0 {
		c.Storage.MaxConns = 10
	}
	if c.Storage.ConnMaxLifetime == 0 {
		c.Storage.ConnMaxLifetime = 30 * time.Minute
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "authcore:"
	}
	if c.Keystore.Alias == "" {
		c.Keystore.Alias = "auth-signing"
	}
	if c.Token.Skew == 0 {
		c.Token.Skew = 60 * time.Second
	}
	if c.Token.CodeTTL == 0 {
		c.Token.CodeTTL = 5 * time.Minute
	}
	if c.Token.CallTimeout == 0 {
		c.Token.CallTimeout = 5 * time.Second
	}
	if c.Token.ClientCacheTTL == 0 {
		c.Token.ClientCacheTTL = 30 * time.Second
	}
	if c.Owners.Source == "" {
		c.Owners.Source = "postgres"
	}
}

// Validate junta todos los problemas en un solo error.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	switch strings.ToLower(c.App.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		bad("app.log_level %q no soportado", c.App.LogLevel)
	}
	if c.Server.Addr == "" {
		bad("server.addr requerido")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		bad("server: timeouts negativos")
	}
	if c.Server.MaxFormBytes < 0 {
		bad("server.max_form_bytes negativo")
	}
	if c.Server.RateLimit.Max < 0 || c.Server.RateLimit.Window < 0 {
		bad("server.rate_limit: max y window no pueden ser negativos")
	}

	if c.Storage.DSN == "" {
		bad("storage.dsn requerido")
	}
	if c.Storage.MinConns < 0 || c.Storage.MaxConns < c.Storage.MinConns {
		bad("storage: max_conns (%d) debe ser >= min_conns (%d) >= 0", c.Storage.MaxConns, c.Storage.MinConns)
	}

	switch c.Cache.Driver {
	case "memory":
	case "redis":
		if c.Cache.Addr == "" {
			bad("cache.addr requerido con driver redis")
		}
	default:
		bad("cache.driver %q no soportado (memory|redis)", c.Cache.Driver)
	}

	if c.Keystore.Path == "" {
		bad("keystore.path requerido")
	}
	if c.Keystore.StorePassword == "" {
		bad("keystore.store_password requerido")
	}

	if c.Token.Skew < 0 {
		bad("token.skew negativo")
	}
	if c.Token.CodeTTL <= 0 || c.Token.CodeTTL > 10*time.Minute {
		bad("token.code_ttl debe estar en (0, 10m], es %s", c.Token.CodeTTL)
	}
	if c.Token.CallTimeout <= 0 {
		bad("token.call_timeout debe ser > 0")
	}
	if c.Token.ClientCacheTTL < 0 {
		bad("token.client_cache_ttl negativo")
	}

	switch c.Owners.Source {
	case "postgres":
	case "static":
		if len(c.Owners.Users) == 0 {
			bad("owners.users vacío con source static")
		}
	default:
		bad("owners.source %q no soportado (postgres|static)", c.Owners.Source)
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		bad("telemetry.endpoint requerido si telemetry.enabled")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		bad("telemetry.sample_ratio fuera de [0,1]")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// IsProd indica si corre en producción (logs JSON).
func (c *Config) IsProd() bool {
	return strings.EqualFold(c.App.Env, "prod")
}
