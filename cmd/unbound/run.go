package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nithins313/unbound2/pkg/audit"
	"github.com/nithins313/unbound2/pkg/config"
	"github.com/nithins313/unbound2/pkg/policy"
	"github.com/nithins313/unbound2/pkg/server"
)

var runFlags struct {
	listenAddress string
	logLevel      string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Unbound API server",
	Long: `Start the Unbound API server with the specified configuration.

The server evaluates submitted commands against the rule store, charges
credits for executions, queues approval requests, and records every
decision in the audit log.

Examples:
  # Start with default config
  unbound run

  # Start with custom config
  unbound run --config /etc/unbound/config.yaml

  # Override listen address
  unbound run --listen 0.0.0.0:8080`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}

	logger := buildLogger(&cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open stores: %w", err)
	}
	defer stores.Close()

	logger.Info("stores initialized",
		"storage_backend", cfg.Storage.Backend,
		"audit_backend", cfg.Audit.Backend,
		"rule_count", len(stores.Rules.List(ctx)),
	)

	notifier := buildNotifier(&cfg.Notifier)
	metrics := policy.NewMetrics()

	evaluator, err := policy.NewEvaluator(policy.Dependencies{
		Rules:      stores.Rules,
		Identities: stores.Identities,
		Ledger:     stores.Ledger,
		Approvals:  stores.Approvals,
		Audit:      stores.Audit,
		Notifier:   notifier,
	}, &policy.Config{
		Cost:    cfg.Engine.Cost,
		Window:  policyWindow(cfg.Engine.WorkingWindow),
		Logger:  logger.With("component", "policy.evaluator"),
		Metrics: metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create evaluator: %w", err)
	}

	// Scheduled audit pruning
	scheduler := audit.NewScheduler(stores.Audit, audit.RetentionConfig{
		RetentionDays: cfg.Audit.RetentionDays,
		PruneSchedule: cfg.Audit.PruneSchedule,
	})
	if err := scheduler.Start(ctx); err != nil {
		logger.Warn("failed to start audit retention scheduler", "error", err)
	} else {
		defer scheduler.Stop()
	}

	// Config hot reload swaps the evaluator cost and working window;
	// storage and server settings need a restart.
	startConfigWatcher(ctx, cfgFile, evaluator, logger)

	srv := server.NewServer(&cfg.Server, cfg.APISecret, server.Dependencies{
		Evaluator:  evaluator,
		Identities: stores.Identities,
		Ledger:     stores.Ledger,
		Rules:      stores.Rules,
		Approvals:  stores.Approvals,
		Audit:      stores.Audit,
	}, logger.With("component", "server"))

	return srv.Start(ctx)
}

// startConfigWatcher begins watching the config file for engine-setting
// changes. Watch failures are logged, never fatal.
func startConfigWatcher(ctx context.Context, path string, evaluator *policy.Evaluator, logger *slog.Logger) {
	watcher, err := config.NewWatcher(path, logger.With("component", "config.watcher"))
	if err != nil {
		logger.Warn("failed to create config watcher", "error", err)
		return
	}

	go func() {
		err := watcher.Watch(ctx, func() error {
			reloaded, err := config.LoadConfig(path)
			if err != nil {
				return err
			}
			evaluator.Reconfigure(reloaded.Engine.Cost, policyWindow(reloaded.Engine.WorkingWindow))
			logger.Info("engine settings reloaded",
				"cost", reloaded.Engine.Cost,
				"window_start", reloaded.Engine.WorkingWindow.StartHour,
				"window_end", reloaded.Engine.WorkingWindow.EndHour,
			)
			return nil
		})
		if err != nil {
			logger.Warn("config watcher stopped", "error", err)
		}
	}()
}
