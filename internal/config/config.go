// Package config provides configuration loading for the tably API.
// Precedence: defaults < YAML file < environment variables.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for the service.
type Config struct {
	Server    Server    `yaml:"server"`
	Postgres  Postgres  `yaml:"postgres"`
	Auth      Auth      `yaml:"auth"`
	Retention Retention `yaml:"retention"`
}

// Server holds HTTP server configuration.
type Server struct {
	Addr         string `yaml:"addr"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
	RateBurst    int    `yaml:"rate_burst"`
	RatePerSec   int    `yaml:"rate_per_sec"`
}

// Postgres holds PostgreSQL connection configuration.
type Postgres struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// Auth holds token signing and credential configuration.
// Lifetimes are compact strings such as "7d" or "12h"; malformed values
// reject the whole config at load time instead of falling back to a default.
type Auth struct {
	Secret          string `yaml:"secret"`
	Issuer          string `yaml:"issuer"`
	Audience        string `yaml:"audience"`
	AccessLifetime  string `yaml:"access_lifetime"`
	RefreshLifetime string `yaml:"refresh_lifetime"`
	BcryptCost      int    `yaml:"bcrypt_cost"`
}

// Retention holds sweeper scheduling configuration.
type Retention struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// AccessTTL returns the parsed access token lifetime.
func (a Auth) AccessTTL() (time.Duration, error) {
	return ParseLifetime(a.AccessLifetime)
}

// RefreshTTL returns the parsed refresh token lifetime.
func (a Auth) RefreshTTL() (time.Duration, error) {
	return ParseLifetime(a.RefreshLifetime)
}

var lifetimeUnits = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
}

// ParseLifetime parses a compact lifetime string ("30s", "15m", "12h", "7d").
func ParseLifetime(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, fmt.Errorf("config: invalid lifetime %q", s)
	}
	unit, ok := lifetimeUnits[s[len(s)-1]]
	if !ok {
		return 0, fmt.Errorf("config: invalid lifetime unit in %q", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("config: invalid lifetime %q", s)
	}
	return time.Duration(n) * unit, nil
}

// Validate checks the parts of the configuration that must fail fast.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return errors.New("config: auth secret is required")
	}
	if _, err := c.Auth.AccessTTL(); err != nil {
		return fmt.Errorf("auth.access_lifetime: %w", err)
	}
	if _, err := c.Auth.RefreshTTL(); err != nil {
		return fmt.Errorf("auth.refresh_lifetime: %w", err)
	}
	if c.Retention.Interval <= 0 {
		return errors.New("config: retention interval must be positive")
	}
	return nil
}
