package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "unbound",
	Short: "Unbound - rule-based command authorization engine",
	Long: `Unbound is a command authorization engine that evaluates submitted
commands against an ordered list of regex rules.

It provides:
  - First-match-wins rule evaluation with four actions
    (AUTO_ACCEPT, AUTO_REJECT, REQUIRE_APPROVAL, TIMED_APPROVAL)
  - Atomic credit accounting with a fixed per-execution cost
  - A human approval queue with admin notifications
  - An append-only audit log of every decision`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
