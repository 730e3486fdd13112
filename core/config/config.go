// Package config loads client configuration from a YAML file overlaid by
// environment variables.
package config

import "time"

type Config struct {
	API     APIConfig     `yaml:"api"`
	Store   StoreConfig   `yaml:"store"`
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
}

// APIConfig describes the remote E-Recipe Hub API.
type APIConfig struct {
	BaseURL        string        `yaml:"base_url"         env:"ERH_API_BASE_URL"         env-default:"http://127.0.0.1:8080"`
	Timeout        time.Duration `yaml:"timeout"          env:"ERH_API_TIMEOUT"          env-default:"20s"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"   env:"ERH_API_RATE_LIMIT_RPS"   env-default:"0"`
	RateLimitBurst int           `yaml:"rate_limit_burst" env:"ERH_API_RATE_LIMIT_BURST" env-default:"1"`
	UserAgent      string        `yaml:"user_agent"       env:"ERH_API_USER_AGENT"       env-default:"erecipehub-cli"`
}

// StoreConfig tunes the resource stores. An empty CachePath disables
// snapshot persistence.
type StoreConfig struct {
	ResumePolicy     string `yaml:"resume_policy"     env:"ERH_STORE_RESUME_POLICY"     env-default:"last_write_wins"`
	ExpirationPolicy string `yaml:"expiration_policy" env:"ERH_STORE_EXPIRATION_POLICY" env-default:"fail_open"`
	CachePath        string `yaml:"cache_path"        env:"ERH_STORE_CACHE_PATH"`
}

// SessionConfig locates the login session. Empty paths resolve under the
// user config directory.
type SessionConfig struct {
	Path         string `yaml:"path"          env:"ERH_SESSION_PATH"`
	IdentityPath string `yaml:"identity_path" env:"ERH_SESSION_IDENTITY_PATH"`
	Encrypt      bool   `yaml:"encrypt"       env:"ERH_SESSION_ENCRYPT" env-default:"false"`
}

type LogConfig struct {
	Level  string `yaml:"level"  env:"ERH_LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"ERH_LOG_FORMAT" env-default:"text"`
}
