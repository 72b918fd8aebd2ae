package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	Database   struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	Auth struct {
		// Username/Password empty means the gate is disabled (local dev).
		// Both are overridable via BASIC_AUTH_USER / BASIC_AUTH_PASSWORD.
		Username     string `yaml:"username"`
		Password     string `yaml:"password"`
		CookieSecret string `yaml:"cookie_secret"`
		CookieTTL    string `yaml:"cookie_ttl"`
	} `yaml:"auth"`
	Realtime struct {
		// Quiet periods before a coalesced update fires, per source table.
		// History rows arrive in bursts so they get the shorter window.
		HistoryQuietSeconds  int `yaml:"history_quiet_seconds"`
		AccountsQuietSeconds int `yaml:"accounts_quiet_seconds"`
		RefetchTimeoutSecs   int `yaml:"refetch_timeout_seconds"`
	} `yaml:"realtime"`
}

func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen_addr cannot be empty")
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn cannot be empty")
	}
	if c.Realtime.HistoryQuietSeconds <= 0 {
		return fmt.Errorf("realtime.history_quiet_seconds must be positive, got %d", c.Realtime.HistoryQuietSeconds)
	}
	if c.Realtime.AccountsQuietSeconds <= 0 {
		return fmt.Errorf("realtime.accounts_quiet_seconds must be positive, got %d", c.Realtime.AccountsQuietSeconds)
	}
	if (c.Auth.Username == "") != (c.Auth.Password == "") {
		return errors.New("auth.username and auth.password must be set together")
	}
	if c.Auth.Username != "" && c.Auth.CookieSecret == "" {
		return errors.New("auth.cookie_secret is required when basic auth is enabled")
	}
	if _, err := c.CookieTTL(); err != nil {
		return fmt.Errorf("invalid auth.cookie_ttl: %w", err)
	}
	return nil
}

// CookieTTL parses the configured auth-cookie lifetime.
func (c *Config) CookieTTL() (time.Duration, error) {
	if c.Auth.CookieTTL == "" {
		return 12 * time.Hour, nil
	}
	return time.ParseDuration(c.Auth.CookieTTL)
}

// HistoryQuiet is the debounce quiet period for history-row events.
func (c *Config) HistoryQuiet() time.Duration {
	return time.Duration(c.Realtime.HistoryQuietSeconds) * time.Second
}

// AccountsQuiet is the debounce quiet period for account-row events.
func (c *Config) AccountsQuiet() time.Duration {
	return time.Duration(c.Realtime.AccountsQuietSeconds) * time.Second
}

// RefetchTimeout bounds a single refresh round-trip.
func (c *Config) RefetchTimeout() time.Duration {
	return time.Duration(c.Realtime.RefetchTimeoutSecs) * time.Second
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.Database.DSN == "" {
		c.Database.DSN = "file:tradewatch.db"
	}
	if c.Realtime.HistoryQuietSeconds == 0 {
		c.Realtime.HistoryQuietSeconds = 3
	}
	if c.Realtime.AccountsQuietSeconds == 0 {
		c.Realtime.AccountsQuietSeconds = 8
	}
	if c.Realtime.RefetchTimeoutSecs == 0 {
		c.Realtime.RefetchTimeoutSecs = 30
	}

	// Secrets come from the environment when present.
	if v := os.Getenv("BASIC_AUTH_USER"); v != "" {
		c.Auth.Username = v
	}
	if v := os.Getenv("BASIC_AUTH_PASSWORD"); v != "" {
		c.Auth.Password = v
	}
	if v := os.Getenv("AUTH_COOKIE_SECRET"); v != "" {
		c.Auth.CookieSecret = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

// Default returns a usable configuration without a config file.
func Default() *Config {
	c := &Config{}
	c.ListenAddr = ":8080"
	c.Database.DSN = "file:tradewatch.db"
	c.Realtime.HistoryQuietSeconds = 3
	c.Realtime.AccountsQuietSeconds = 8
	c.Realtime.RefetchTimeoutSecs = 30
	return c
}
