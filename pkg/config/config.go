// Package config loads and validates the engine configuration from YAML,
// applies defaults and UNBOUND_* environment overrides, and supports
// hot reload of the evaluator settings via a file watcher.
package config

import (
	"time"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Audit    AuditConfig    `yaml:"audit"`
	Engine   EngineConfig   `yaml:"engine"`
	Notifier NotifierConfig `yaml:"notifier"`
	Logging  LoggingConfig  `yaml:"logging"`

	// APISecret keys the HMAC used to derive identity API keys.
	APISecret string `yaml:"api_secret"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	ListenAddress string        `yaml:"listen_address"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
}

// StorageConfig selects the backend for the engine stores (identities,
// rules, approvals).
type StorageConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend"`

	// Path is the SQLite database file when Backend is "sqlite".
	Path string `yaml:"path"`
}

// AuditConfig configures the audit log and its retention.
type AuditConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend"`

	// Path is the audit database file when Backend is "sqlite".
	Path string `yaml:"path"`

	// RetentionDays is how long entries are kept. Zero keeps forever.
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression for scheduled pruning.
	PruneSchedule string `yaml:"prune_schedule"`
}

// EngineConfig configures the policy evaluator.
type EngineConfig struct {
	// Cost is the credit charged per successful execution.
	Cost int64 `yaml:"cost"`

	// WorkingWindow is the TIMED_APPROVAL execution window.
	WorkingWindow WorkingWindowConfig `yaml:"working_window"`
}

// WorkingWindowConfig mirrors policy.WorkingWindowConfig in YAML form.
type WorkingWindowConfig struct {
	Timezone   string `yaml:"timezone"`
	DaysOfWeek []int  `yaml:"days_of_week"`
	StartHour  int    `yaml:"start_hour"`
	EndHour    int    `yaml:"end_hour"`
}

// NotifierConfig selects and configures the approval notifier.
type NotifierConfig struct {
	// Type is "none", "smtp", or "webhook".
	Type string `yaml:"type"`

	SMTP    SMTPConfig    `yaml:"smtp"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SMTPConfig configures the SMTP notifier.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// WebhookConfig configures the webhook notifier.
type WebhookConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is "debug", "info", "warn", or "error".
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`
}

// ApplyDefaults fills unset fields with defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = "127.0.0.1:8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "data/unbound.db"
	}

	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = cfg.Storage.Backend
	}
	if cfg.Audit.Path == "" {
		cfg.Audit.Path = "data/audit.db"
	}
	if cfg.Audit.PruneSchedule == "" && cfg.Audit.RetentionDays > 0 {
		cfg.Audit.PruneSchedule = "0 3 * * *"
	}

	if cfg.Engine.Cost == 0 {
		cfg.Engine.Cost = 5
	}
	if cfg.Engine.WorkingWindow.Timezone == "" {
		cfg.Engine.WorkingWindow.Timezone = "Local"
	}
	if len(cfg.Engine.WorkingWindow.DaysOfWeek) == 0 {
		cfg.Engine.WorkingWindow.DaysOfWeek = []int{1, 2, 3, 4, 5}
	}
	if cfg.Engine.WorkingWindow.StartHour == 0 && cfg.Engine.WorkingWindow.EndHour == 0 {
		cfg.Engine.WorkingWindow.StartHour = 9
		cfg.Engine.WorkingWindow.EndHour = 18
	}

	if cfg.Notifier.Type == "" {
		cfg.Notifier.Type = "none"
	}
	if cfg.Notifier.SMTP.Port == 0 {
		cfg.Notifier.SMTP.Port = 587
	}
	if cfg.Notifier.Webhook.Timeout == 0 {
		cfg.Notifier.Webhook.Timeout = 10 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.APISecret == "" {
		cfg.APISecret = "change-me"
	}
}
