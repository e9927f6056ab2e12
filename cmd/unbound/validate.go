package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nithins313/unbound2/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file without starting the server.

Defaults and environment overrides are applied before validation, so
the result reflects the effective runtime configuration.

Examples:
  unbound validate --config config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}

		fmt.Println("✓ Configuration valid")
		fmt.Printf("  listen address:  %s\n", cfg.Server.ListenAddress)
		fmt.Printf("  storage backend: %s\n", cfg.Storage.Backend)
		fmt.Printf("  audit backend:   %s\n", cfg.Audit.Backend)
		fmt.Printf("  execution cost:  %d\n", cfg.Engine.Cost)
		fmt.Printf("  working window:  %02d:00-%02d:00 (%s)\n",
			cfg.Engine.WorkingWindow.StartHour,
			cfg.Engine.WorkingWindow.EndHour,
			cfg.Engine.WorkingWindow.Timezone,
		)
		fmt.Printf("  notifier:        %s\n", cfg.Notifier.Type)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
