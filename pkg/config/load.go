package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file, applies defaults and
// UNBOUND_* environment overrides, and validates the result.
//
// The loading sequence is:
//  1. Parse YAML from file (a missing file yields the defaults)
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate the final configuration
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Run on defaults; everything can come from the environment.
	case err != nil:
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides. Variables
// use the format UNBOUND_SECTION_FIELD and always take precedence over
// file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("UNBOUND_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("UNBOUND_STORAGE_BACKEND"); val != "" {
		cfg.Storage.Backend = val
	}
	if val := os.Getenv("UNBOUND_STORAGE_PATH"); val != "" {
		cfg.Storage.Path = val
	}
	if val := os.Getenv("UNBOUND_AUDIT_BACKEND"); val != "" {
		cfg.Audit.Backend = val
	}
	if val := os.Getenv("UNBOUND_AUDIT_PATH"); val != "" {
		cfg.Audit.Path = val
	}
	if val := os.Getenv("UNBOUND_AUDIT_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Audit.RetentionDays = i
		}
	}
	if val := os.Getenv("UNBOUND_ENGINE_COST"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Engine.Cost = i
		}
	}
	if val := os.Getenv("UNBOUND_NOTIFIER_TYPE"); val != "" {
		cfg.Notifier.Type = val
	}
	if val := os.Getenv("UNBOUND_NOTIFIER_SMTP_HOST"); val != "" {
		cfg.Notifier.SMTP.Host = val
	}
	if val := os.Getenv("UNBOUND_NOTIFIER_SMTP_USERNAME"); val != "" {
		cfg.Notifier.SMTP.Username = val
	}
	if val := os.Getenv("UNBOUND_NOTIFIER_SMTP_PASSWORD"); val != "" {
		cfg.Notifier.SMTP.Password = val
	}
	if val := os.Getenv("UNBOUND_NOTIFIER_WEBHOOK_URL"); val != "" {
		cfg.Notifier.Webhook.URL = val
	}
	if val := os.Getenv("UNBOUND_NOTIFIER_WEBHOOK_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Notifier.Webhook.Timeout = d
		}
	}
	if val := os.Getenv("UNBOUND_LOGGING_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("UNBOUND_LOGGING_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
	if val := os.Getenv("UNBOUND_API_SECRET"); val != "" {
		cfg.APISecret = val
	}
}
