package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/nithins313/unbound2/pkg/approval"
	"github.com/nithins313/unbound2/pkg/audit"
	"github.com/nithins313/unbound2/pkg/config"
	"github.com/nithins313/unbound2/pkg/credits"
	"github.com/nithins313/unbound2/pkg/identity"
	"github.com/nithins313/unbound2/pkg/notify"
	"github.com/nithins313/unbound2/pkg/policy"
	"github.com/nithins313/unbound2/pkg/rules"
)

// engineStores bundles the storage-backed components of the engine.
type engineStores struct {
	Identities identity.Registry
	Ledger     credits.Ledger
	Rules      *rules.Store
	Approvals  approval.Queue
	Audit      audit.Log

	closers []func() error
}

// Close releases store resources in reverse open order.
func (s *engineStores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			slog.Warn("failed to close store", "error", err)
		}
	}
}

// buildLogger constructs the process logger from config and installs it
// as the slog default.
func buildLogger(cfg *config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// openStores constructs the identity registry, credit ledger, rule
// store, approval queue, and audit log from config.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*engineStores, error) {
	stores := &engineStores{}

	switch cfg.Storage.Backend {
	case "memory":
		stores.Identities = identity.NewMemoryRegistry()
		stores.Ledger = credits.NewMemoryLedger()
		stores.Approvals = approval.NewMemoryQueue()

		store, err := rules.NewStore(ctx, rules.NewMemoryBackend(), logger.With("component", "rules.store"))
		if err != nil {
			return nil, err
		}
		stores.Rules = store

	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		db, err := sql.Open("sqlite", cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open database %q: %w", cfg.Storage.Path, err)
		}
		stores.closers = append(stores.closers, db.Close)

		registry, err := identity.NewSQLiteRegistry(db)
		if err != nil {
			stores.Close()
			return nil, err
		}
		stores.Identities = registry
		stores.Ledger = credits.NewSQLiteLedger(db)

		queue, err := approval.NewSQLiteQueue(db)
		if err != nil {
			stores.Close()
			return nil, err
		}
		stores.Approvals = queue

		backend, err := rules.NewSQLiteBackend(db)
		if err != nil {
			stores.Close()
			return nil, err
		}
		store, err := rules.NewStore(ctx, backend, logger.With("component", "rules.store"))
		if err != nil {
			stores.Close()
			return nil, err
		}
		stores.Rules = store

	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}

	switch cfg.Audit.Backend {
	case "memory":
		stores.Audit = audit.NewMemoryLog()
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Audit.Path), 0o755); err != nil {
			stores.Close()
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
		log, err := audit.NewSQLiteLog(audit.SQLiteConfig{Path: cfg.Audit.Path})
		if err != nil {
			stores.Close()
			return nil, err
		}
		stores.Audit = log
		stores.closers = append(stores.closers, log.Close)
	default:
		stores.Close()
		return nil, fmt.Errorf("unsupported audit backend: %s", cfg.Audit.Backend)
	}

	return stores, nil
}

// buildNotifier constructs the approval notifier from config.
func buildNotifier(cfg *config.NotifierConfig) notify.Notifier {
	switch cfg.Type {
	case "smtp":
		return notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	case "webhook":
		return notify.NewWebhookNotifier(notify.WebhookConfig{
			URL:     cfg.Webhook.URL,
			Timeout: cfg.Webhook.Timeout,
		})
	default:
		return notify.Noop{}
	}
}

// policyWindow converts the YAML window config to the evaluator's form.
func policyWindow(cfg config.WorkingWindowConfig) *policy.WorkingWindowConfig {
	return &policy.WorkingWindowConfig{
		Timezone:   cfg.Timezone,
		DaysOfWeek: cfg.DaysOfWeek,
		StartHour:  cfg.StartHour,
		EndHour:    cfg.EndHour,
	}
}
