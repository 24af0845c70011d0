package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Server: Server{
			Addr:         ":8080",
			MaxBodyBytes: 1 << 20,
			RateBurst:    20,
			RatePerSec:   10,
		},
		Postgres: Postgres{
			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: 15 * time.Minute,
		},
		Auth: Auth{
			Issuer:          "tably",
			Audience:        "tably-api",
			AccessLifetime:  "7d",
			RefreshLifetime: "30d",
			BcryptCost:      12,
		},
		Retention: Retention{
			Enabled:  true,
			Interval: time.Minute,
		},
	}
}

// Load reads the optional YAML file at path, applies environment overrides
// and validates the result. An empty path skips the file step.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "TABLY_ADDR")
	setString(&cfg.Postgres.DSN, "TABLY_PG_DSN")
	setString(&cfg.Auth.Secret, "TABLY_AUTH_SECRET")
	setString(&cfg.Auth.Issuer, "TABLY_AUTH_ISSUER")
	setString(&cfg.Auth.Audience, "TABLY_AUTH_AUDIENCE")
	setString(&cfg.Auth.AccessLifetime, "TABLY_ACCESS_LIFETIME")
	setString(&cfg.Auth.RefreshLifetime, "TABLY_REFRESH_LIFETIME")
	setBool(&cfg.Postgres.AutoMigrate, "TABLY_AUTO_MIGRATE")
	setBool(&cfg.Retention.Enabled, "TABLY_RETENTION_ENABLED")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
