package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
api:
  base_url: "https://hub.example.com"
  timeout: "5s"
  rate_limit_rps: 4
  rate_limit_burst: 2
store:
  resume_policy: "discard_stale"
  expiration_policy: "fail_closed"
  cache_path: "/tmp/erh.db"
session:
  encrypt: true
log:
  level: "debug"
  format: "json"
`

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "erecipehub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func inEmptyDir(t *testing.T) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(orig) })
	require.NoError(t, os.Chdir(t.TempDir()))
}

func TestLoad_ValidYAML(t *testing.T) {
	t.Setenv(PathEnv, writeYAML(t, validYAML))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://hub.example.com", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, 4.0, cfg.API.RateLimitRPS)
	assert.Equal(t, 2, cfg.API.RateLimitBurst)
	assert.Equal(t, "erecipehub-cli", cfg.API.UserAgent)
	assert.Equal(t, "discard_stale", cfg.Store.ResumePolicy)
	assert.Equal(t, "fail_closed", cfg.Store.ExpirationPolicy)
	assert.Equal(t, "/tmp/erh.db", cfg.Store.CachePath)
	assert.True(t, cfg.Session.Encrypt)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	t.Setenv(PathEnv, writeYAML(t, validYAML))
	t.Setenv("ERH_API_BASE_URL", "http://localhost:9000")
	t.Setenv("ERH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", cfg.API.BaseURL)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Setenv(PathEnv, "")
	inEmptyDir(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.API.BaseURL)
	assert.Equal(t, 20*time.Second, cfg.API.Timeout)
	assert.Equal(t, "last_write_wins", cfg.Store.ResumePolicy)
	assert.Equal(t, "fail_open", cfg.Store.ExpirationPolicy)
	assert.Empty(t, cfg.Store.CachePath)
	assert.False(t, cfg.Session.Encrypt)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_ExplicitPathNotFound(t *testing.T) {
	t.Setenv(PathEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			API:   APIConfig{BaseURL: "https://hub.example.com", Timeout: time.Second, RateLimitBurst: 1},
			Store: StoreConfig{ResumePolicy: "last_write_wins", ExpirationPolicy: "fail_open"},
			Log:   LogConfig{Level: "info", Format: "text"},
		}
	}
	require.NoError(t, func() error { c := valid(); return c.Validate() }())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"relative url", func(c *Config) { c.API.BaseURL = "hub.example.com" }, "base_url"},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }, "timeout"},
		{"negative rps", func(c *Config) { c.API.RateLimitRPS = -1 }, "rate_limit_rps"},
		{"rps without burst", func(c *Config) { c.API.RateLimitRPS = 2; c.API.RateLimitBurst = 0 }, "rate_limit_burst"},
		{"resume policy", func(c *Config) { c.Store.ResumePolicy = "first_wins" }, "resume_policy"},
		{"expiration policy", func(c *Config) { c.Store.ExpirationPolicy = "sometimes" }, "expiration_policy"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadDotenvIfPresent(t *testing.T) {
	log := logrus.New()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ERH_TEST_DOTENV=from-file\nERH_TEST_KEEP=from-file\n"), 0o600))

	t.Setenv("ERH_TEST_KEEP", "from-env")
	t.Setenv("ERH_TEST_DOTENV", "")
	os.Unsetenv("ERH_TEST_DOTENV")

	LoadDotenvIfPresent(path, log)
	t.Cleanup(func() { os.Unsetenv("ERH_TEST_DOTENV") })

	assert.Equal(t, "from-file", os.Getenv("ERH_TEST_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("ERH_TEST_KEEP"))
}

func TestLoadDotenvIfPresent_ProductionSkips(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ERH_TEST_PROD=from-file\n"), 0o600))
	t.Setenv(EnvName, "production")
	t.Setenv("ERH_TEST_PROD", "")
	os.Unsetenv("ERH_TEST_PROD")

	LoadDotenvIfPresent(path, logrus.New())
	_, ok := os.LookupEnv("ERH_TEST_PROD")
	assert.False(t, ok)
}
