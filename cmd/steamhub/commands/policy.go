package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyluth/steamhub/internal/config"
	"github.com/dyluth/steamhub/internal/policy"
	"github.com/dyluth/steamhub/internal/printer"
	"github.com/dyluth/steamhub/pkg/records"
)

var (
	banCategory     string
	permsServer     bool
	permsRoleTokens bool
)

var banCmd = &cobra.Command{
	Use:   "ban ID [COMMAND...]",
	Short: "Ban commands for a user, channel or server",
	Long: `Ban commands for a user, channel or server.

With no COMMAND every command is banned.

Examples:
  steamhub ban 1001 price
  steamhub ban chan-9 --category=channel
  steamhub unban 1001 price`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBan,
}

var unbanCmd = &cobra.Command{
	Use:   "unban ID [COMMAND...]",
	Short: "Lift command bans for a user, channel or server",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runUnban,
}

var permsCmd = &cobra.Command{
	Use:   "perms",
	Short: "Manage the permissions a command requires",
	Long: `Manage the permission tokens a command requires in a channel or server.

A token is either a platform permission name (e.g. MANAGE_MESSAGES) or a
role requirement. Pass --role to treat tokens as role IDs.`,
}

var permsListCmd = &cobra.Command{
	Use:   "list COMMAND SCOPE_ID",
	Short: "List the tokens required for a command",
	Args:  cobra.ExactArgs(2),
	RunE:  runPermsList,
}

var permsAddCmd = &cobra.Command{
	Use:   "add COMMAND SCOPE_ID TOKEN...",
	Short: "Require tokens for a command",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runPermsAdd,
}

var permsRemoveCmd = &cobra.Command{
	Use:   "remove COMMAND SCOPE_ID TOKEN...",
	Short: "Stop requiring tokens for a command",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runPermsRemove,
}

var permsClearCmd = &cobra.Command{
	Use:   "clear COMMAND SCOPE_ID",
	Short: "Remove every token required for a command",
	Args:  cobra.ExactArgs(2),
	RunE:  runPermsClear,
}

var cooldownClearCmd = &cobra.Command{
	Use:   "cooldown-clear USER COMMAND",
	Short: "End a user's cooldown on a command",
	Args:  cobra.ExactArgs(2),
	RunE:  runCooldownClear,
}

var premiumCmd = &cobra.Command{
	Use:   "premium [USER...]",
	Short: "List premium users, or add users to the list",
	RunE:  runPremium,
}

func init() {
	for _, c := range []*cobra.Command{banCmd, unbanCmd} {
		c.Flags().StringVar(&banCategory, "category", string(policy.BanUser), "Ban scope: user, channel or server")
	}

	permsCmd.PersistentFlags().BoolVar(&permsServer, "server", false, "SCOPE_ID is a server rather than a channel")
	permsAddCmd.Flags().BoolVar(&permsRoleTokens, "role", false, "Tokens are role IDs")
	permsRemoveCmd.Flags().BoolVar(&permsRoleTokens, "role", false, "Tokens are role IDs")
	permsCmd.AddCommand(permsListCmd, permsAddCmd, permsRemoveCmd, permsClearCmd)

	rootCmd.AddCommand(banCmd, unbanCmd, permsCmd, cooldownClearCmd, premiumCmd)
}

func newResolver(cfg *config.Config, client *records.Client) *policy.Resolver {
	return policy.NewResolver(client, policy.Options{
		Cooldowns:      cfg.CooldownDurations(),
		CooldownExempt: cfg.CooldownExempt,
	})
}

func withResolver(fn func(ctx context.Context, r *policy.Resolver) error) error {
	ctx := context.Background()
	cfg, client, err := setup(ctx)
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(ctx, newResolver(cfg, client))
}

func banKeys(args []string) []string {
	if len(args) == 0 {
		return []string{policy.BanAll}
	}
	return args
}

func describeKeys(keys []string) string {
	if len(keys) == 1 && keys[0] == policy.BanAll {
		return "all commands"
	}
	return strings.Join(keys, ", ")
}

func runBan(cmd *cobra.Command, args []string) error {
	category := policy.BanCategory(banCategory)
	if err := category.Validate(); err != nil {
		return printer.Error("invalid ban category", err.Error())
	}
	keys := banKeys(args[1:])
	return withResolver(func(ctx context.Context, r *policy.Resolver) error {
		if err := r.Ban(ctx, category, args[0], keys...); err != nil {
			return fmt.Errorf("failed to ban: %w", err)
		}
		printer.Success("Banned %s for %s '%s'", describeKeys(keys), category, args[0])
		return nil
	})
}

func runUnban(cmd *cobra.Command, args []string) error {
	category := policy.BanCategory(banCategory)
	if err := category.Validate(); err != nil {
		return printer.Error("invalid ban category", err.Error())
	}
	keys := banKeys(args[1:])
	return withResolver(func(ctx context.Context, r *policy.Resolver) error {
		if err := r.Unban(ctx, category, args[0], keys...); err != nil {
			return fmt.Errorf("failed to unban: %w", err)
		}
		printer.Success("Lifted ban on %s for %s '%s'", describeKeys(keys), category, args[0])
		return nil
	})
}

func permsScope() policy.ScopeKind {
	if permsServer {
		return policy.ScopeServer
	}
	return policy.ScopeChannel
}

func permsTokens(args []string) []string {
	if !permsRoleTokens {
		return args
	}
	tokens := make([]string, len(args))
	for i, a := range args {
		tokens[i] = policy.RoleToken(a)
	}
	return tokens
}

func runPermsList(cmd *cobra.Command, args []string) error {
	return withResolver(func(ctx context.Context, r *policy.Resolver) error {
		tokens, err := r.GetPermissions(ctx, args[0], permsScope(), args[1])
		if err != nil {
			return err
		}
		if len(tokens) == 0 {
			printer.Info("'%s' needs no permissions in %s '%s'", args[0], permsScope(), args[1])
			return nil
		}
		for _, t := range tokens {
			if role, ok := strings.CutPrefix(t, policy.RoleTokenPrefix); ok {
				printer.Detail("role", role)
			} else {
				printer.Detail("permission", t)
			}
		}
		return nil
	})
}

func runPermsAdd(cmd *cobra.Command, args []string) error {
	tokens := permsTokens(args[2:])
	return withResolver(func(ctx context.Context, r *policy.Resolver) error {
		if err := r.AddPermissions(ctx, args[0], permsScope(), args[1], tokens...); err != nil {
			return err
		}
		printer.Success("'%s' now requires %s in %s '%s'", args[0], strings.Join(tokens, ", "), permsScope(), args[1])
		return nil
	})
}

func runPermsRemove(cmd *cobra.Command, args []string) error {
	tokens := permsTokens(args[2:])
	return withResolver(func(ctx context.Context, r *policy.Resolver) error {
		removed, err := r.RemovePermissions(ctx, args[0], permsScope(), args[1], tokens...)
		if err != nil {
			return err
		}
		if len(removed) == 0 {
			printer.Warning("None of the tokens were required")
			return nil
		}
		printer.Success("Removed %s", strings.Join(removed, ", "))
		return nil
	})
}

func runPermsClear(cmd *cobra.Command, args []string) error {
	return withResolver(func(ctx context.Context, r *policy.Resolver) error {
		if err := r.ClearPermissions(ctx, args[0], permsScope(), args[1]); err != nil {
			return err
		}
		printer.Success("Cleared permissions for '%s' in %s '%s'", args[0], permsScope(), args[1])
		return nil
	})
}

func runCooldownClear(cmd *cobra.Command, args []string) error {
	return withResolver(func(ctx context.Context, r *policy.Resolver) error {
		if err := r.ClearCooldown(ctx, args[0], args[1]); err != nil {
			return err
		}
		printer.Success("Cleared '%s' cooldown for user '%s'", args[1], args[0])
		return nil
	})
}

func runPremium(cmd *cobra.Command, args []string) error {
	return withResolver(func(ctx context.Context, r *policy.Resolver) error {
		if len(args) > 0 {
			if err := r.AddPremiumUsers(ctx, args...); err != nil {
				return err
			}
			printer.Success("Added %d premium users", len(args))
			return nil
		}

		users, err := r.PremiumUsers(ctx)
		if err != nil {
			return err
		}
		if len(users) == 0 {
			printer.Info("No premium users")
			return nil
		}
		for _, u := range users {
			fmt.Fprintln(printer.Stdout(), u)
		}
		return nil
	})
}
