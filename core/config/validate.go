package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ganjinghwan/erecipehub/core/store"
)

// Validate checks the loaded values. Load calls it automatically.
func (c *Config) Validate() error {
	if err := c.API.validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Store.validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json (got %q)", c.Log.Format)
	}
	return nil
}

func (a *APIConfig) validate() error {
	u, err := url.Parse(strings.TrimSpace(a.BaseURL))
	if err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute http(s) URL (got %q)", a.BaseURL)
	}
	if a.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0 (got %v)", a.Timeout)
	}
	if a.RateLimitRPS < 0 {
		return fmt.Errorf("rate_limit_rps must be >= 0 (got %v)", a.RateLimitRPS)
	}
	if a.RateLimitRPS > 0 && a.RateLimitBurst < 1 {
		return fmt.Errorf("rate_limit_burst must be >= 1 (got %d)", a.RateLimitBurst)
	}
	return nil
}

func (s *StoreConfig) validate() error {
	if _, err := store.ParseResumePolicy(s.ResumePolicy); err != nil {
		return fmt.Errorf("resume_policy: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(s.ExpirationPolicy)) {
	case "", "fail_open", "fail_closed":
	default:
		return fmt.Errorf("expiration_policy must be fail_open or fail_closed (got %q)", s.ExpirationPolicy)
	}
	return nil
}
