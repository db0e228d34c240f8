package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const minimal = `
storage:
  dsn: postgres://authcore@localhost/authcore
keystore:
  path: /etc/authcore/keystore.yaml
  store_password: changeit
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)

	require.Equal(t, "authcore", c.App.Name)
	require.Equal(t, ":8080", c.Server.Addr)
	require.Equal(t, "memory", c.Cache.Driver)
	require.Equal(t, "auth-signing", c.Keystore.Alias)
	require.Equal(t, 60*time.Second, c.Token.Skew)
	require.Equal(t, 5*time.Minute, c.Token.CodeTTL)
	require.Equal(t, 5*time.Second, c.Token.CallTimeout)
	require.Equal(t, "postgres", c.Owners.Source)
	require.Zero(t, c.Server.RateLimit.Max)
	require.False(t, c.IsProd())
}

func TestLoad_YAMLValues(t *testing.T) {
	c, err := Load(writeConfig(t, minimal+`
app:
  env: prod
token:
  issuer: https://auth.example.com
  code_ttl: 2m
  rotate_refresh: true
cache:
  driver: redis
  addr: localhost:6379
enhancers:
  static:
    organization: acme
    tier: 3
  per_client:
    web-app:
      audience: web
owners:
  source: static
  users:
    alice:
      id: u-1
      password_hash: "{bcrypt}$2a$04$abc"
`))
	require.NoError(t, err)
	require.True(t, c.IsProd())
	require.Equal(t, 2*time.Minute, c.Token.CodeTTL)
	require.True(t, c.Token.RotateRefresh)
	require.Equal(t, "acme", c.Enhancers.Static["organization"])
	require.Equal(t, 3, c.Enhancers.Static["tier"])
	require.Equal(t, "web", c.Enhancers.PerClient["web-app"]["audience"])
	require.Len(t, c.Owners.Users, 1)
	require.Equal(t, "u-1", c.Owners.Users["alice"].ID)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AUTHCORE_SERVER_ADDR", ":9090")
	t.Setenv("AUTHCORE_KEYSTORE_STORE_PASSWORD", "from-env")
	t.Setenv("AUTHCORE_TOKEN_CALL_TIMEOUT", "750ms")
	t.Setenv("AUTHCORE_TOKEN_STRICT_SCOPES", "true")
	t.Setenv("AUTHCORE_TELEMETRY_SAMPLE_RATIO", "0.25")
	t.Setenv("AUTHCORE_SERVER_RATE_LIMIT_MAX", "30")

	c, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)
	require.Equal(t, ":9090", c.Server.Addr)
	require.Equal(t, "from-env", c.Keystore.StorePassword)
	require.Equal(t, 750*time.Millisecond, c.Token.CallTimeout)
	require.True(t, c.Token.StrictScopes)
	require.Equal(t, 0.25, c.Telemetry.SampleRatio)
	require.Equal(t, 30, c.Server.RateLimit.Max)
	require.Equal(t, time.Minute, c.Server.RateLimit.Window)
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("AUTHCORE_STORAGE_DSN", "postgres://x")
	t.Setenv("AUTHCORE_KEYSTORE_PATH", "/tmp/ks.yaml")
	t.Setenv("AUTHCORE_KEYSTORE_STORE_PASSWORD", "pw")

	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "postgres://x", c.Storage.DSN)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "storage: [not, a, map"))
	require.Error(t, err)

	t.Setenv("AUTHCORE_TOKEN_SKEW", "soon")
	_, err = Load(writeConfig(t, minimal))
	require.ErrorContains(t, err, "parse env")
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"missing dsn":        "keystore: {path: x, store_password: y}",
		"missing keystore":   "storage: {dsn: x}",
		"code ttl too long":  minimal + "token: {code_ttl: 11m}",
		"redis without addr": minimal + "cache: {driver: redis}",
		"unknown cache":      minimal + "cache: {driver: memcached}",
		"static no users":    minimal + "owners: {source: static}",
		"telemetry":          minimal + "telemetry: {enabled: true}",
		"log level":          minimal + "app: {log_level: loud}",
		"conns":              "storage: {dsn: x, max_conns: 1, min_conns: 2}\nkeystore: {path: x, store_password: y}",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "configs", "config.example.yaml"))
	require.NoError(t, err)
	require.Equal(t, 60, c.Server.RateLimit.Max)
	require.Equal(t, "acme", c.Enhancers.Static["organization"])
	require.Contains(t, c.Owners.Users, "alice")
}
