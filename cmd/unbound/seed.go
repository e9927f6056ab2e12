package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nithins313/unbound2/pkg/config"
	"github.com/nithins313/unbound2/pkg/identity"
	"github.com/nithins313/unbound2/pkg/rules"
)

var seedFlags struct {
	adminMail string
	credit    int64
	withRules bool
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed an admin identity and starter rules",
	Long: `Seed the configured store with an admin identity, and optionally a
small starter rule set. Intended for first-time setup of a persistent
store; seeding a memory backend only makes sense for experiments.

The generated API key is printed once. Store it securely; it cannot be
recovered later.

Examples:
  unbound seed --config config.yaml
  unbound seed --admin-mail ops@example.com --credit 100 --rules`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVar(&seedFlags.adminMail, "admin-mail", "admin@unbound.com", "admin mail address")
	seedCmd.Flags().Int64Var(&seedFlags.credit, "credit", 100, "initial admin credit")
	seedCmd.Flags().BoolVar(&seedFlags.withRules, "rules", false, "also create starter rules")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := buildLogger(&cfg.Logging)

	ctx := context.Background()
	stores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open stores: %w", err)
	}
	defer stores.Close()

	admin := &identity.Identity{
		ID:     uuid.NewString(),
		Name:   "admin user",
		Mail:   seedFlags.adminMail,
		Phone:  "1234567890",
		Role:   identity.RoleAdmin,
		APIKey: identity.NewAPIKey(cfg.APISecret, seedFlags.adminMail),
	}
	if err := stores.Identities.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin identity: %w", err)
	}
	if seedFlags.credit > 0 {
		if err := stores.Ledger.Grant(ctx, admin.ID, seedFlags.credit); err != nil {
			return fmt.Errorf("failed to grant admin credit: %w", err)
		}
	}

	fmt.Printf("✓ Admin identity created: %s <%s>\n", admin.Name, admin.Mail)
	fmt.Printf("  id:      %s\n", admin.ID)
	fmt.Printf("  api key: %s\n", admin.APIKey)

	if seedFlags.withRules {
		starter := []struct {
			pattern string
			action  rules.Action
		}{
			{`^ls\b`, rules.ActionAutoAccept},
			{`^rm\s+-rf\b`, rules.ActionAutoReject},
			{`^deploy\b`, rules.ActionRequireApproval},
			{`^restart\b`, rules.ActionTimedApproval},
		}
		for _, s := range starter {
			rule, _, err := stores.Rules.Create(ctx, s.pattern, s.action)
			if err != nil {
				return fmt.Errorf("failed to create starter rule %q: %w", s.pattern, err)
			}
			fmt.Printf("✓ Rule created: %-20s %s (%s)\n", s.pattern, s.action, rule.ID)
		}
	}

	return nil
}
