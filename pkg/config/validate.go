package config

import (
	"fmt"
	"time"
)

// Validate checks the configuration for invalid or inconsistent values.
func Validate(cfg *Config) error {
	switch cfg.Storage.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("storage.backend must be \"memory\" or \"sqlite\"; got %q", cfg.Storage.Backend)
	}
	if cfg.Storage.Backend == "sqlite" && cfg.Storage.Path == "" {
		return fmt.Errorf("storage.path is required when storage.backend is \"sqlite\"")
	}

	switch cfg.Audit.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("audit.backend must be \"memory\" or \"sqlite\"; got %q", cfg.Audit.Backend)
	}
	if cfg.Audit.Backend == "sqlite" && cfg.Audit.Path == "" {
		return fmt.Errorf("audit.path is required when audit.backend is \"sqlite\"")
	}
	if cfg.Audit.RetentionDays < 0 {
		return fmt.Errorf("audit.retention_days cannot be negative")
	}

	if cfg.Engine.Cost <= 0 {
		return fmt.Errorf("engine.cost must be positive; got %d", cfg.Engine.Cost)
	}

	ww := cfg.Engine.WorkingWindow
	if ww.StartHour < 0 || ww.StartHour > 23 {
		return fmt.Errorf("engine.working_window.start_hour must be 0-23; got %d", ww.StartHour)
	}
	if ww.EndHour < 0 || ww.EndHour > 24 {
		return fmt.Errorf("engine.working_window.end_hour must be 0-24; got %d", ww.EndHour)
	}
	if ww.StartHour >= ww.EndHour {
		return fmt.Errorf("engine.working_window.start_hour must be before end_hour")
	}
	for _, day := range ww.DaysOfWeek {
		if day < 1 || day > 7 {
			return fmt.Errorf("engine.working_window.days_of_week entries must be 1-7 (Monday-Sunday); got %d", day)
		}
	}
	if ww.Timezone != "Local" {
		if _, err := time.LoadLocation(ww.Timezone); err != nil {
			return fmt.Errorf("engine.working_window.timezone %q is invalid: %w", ww.Timezone, err)
		}
	}

	switch cfg.Notifier.Type {
	case "none":
	case "smtp":
		if cfg.Notifier.SMTP.Host == "" {
			return fmt.Errorf("notifier.smtp.host is required when notifier.type is \"smtp\"")
		}
	case "webhook":
		if cfg.Notifier.Webhook.URL == "" {
			return fmt.Errorf("notifier.webhook.url is required when notifier.type is \"webhook\"")
		}
	default:
		return fmt.Errorf("notifier.type must be \"none\", \"smtp\", or \"webhook\"; got %q", cfg.Notifier.Type)
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error; got %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text; got %q", cfg.Logging.Format)
	}

	return nil
}
