package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/steamhub/internal/printer"
	"github.com/dyluth/steamhub/internal/settings"
)

var prefixForServer bool

var prefixCmd = &cobra.Command{
	Use:   "prefix ID [PREFIX]",
	Short: "Show or set the command prefix of a channel or server",
	Long: `Show or set the command prefix of a channel or server.

With no PREFIX the effective prefix is printed. Setting an empty prefix or
the default ("steam ") removes the override.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPrefix,
}

var profileCmd = &cobra.Command{
	Use:   "profile USER",
	Short: "Show a user's saved settings",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfile,
}

func init() {
	prefixCmd.Flags().BoolVar(&prefixForServer, "server", false, "ID is a server rather than a channel")
	rootCmd.AddCommand(prefixCmd, profileCmd)
}

func runPrefix(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	_, client, err := setup(ctx)
	if err != nil {
		return err
	}
	defer client.Close()
	store := settings.New(client)

	if len(args) == 2 {
		if err := store.SetPrefix(ctx, args[0], args[1], prefixForServer); err != nil {
			return fmt.Errorf("failed to set prefix: %w", err)
		}
		printer.Success("Prefix set to %q", args[1])
		return nil
	}

	var prefix string
	if prefixForServer {
		prefix, err = store.Prefix(ctx, "", args[0], settings.DefaultPrefix)
	} else {
		prefix, err = store.Prefix(ctx, args[0], "", settings.DefaultPrefix)
	}
	if err != nil {
		return fmt.Errorf("failed to read prefix: %w", err)
	}
	printer.Info("%q", prefix)
	return nil
}

func runProfile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	_, client, err := setup(ctx)
	if err != nil {
		return err
	}
	defer client.Close()
	store := settings.New(client)
	user := args[0]

	name, err := store.Name(ctx, user)
	if err != nil {
		return err
	}
	currency, err := store.Currency(ctx, user)
	if err != nil {
		return err
	}
	country, err := store.Country(ctx, user)
	if err != nil {
		return err
	}

	printer.Info("User '%s'", user)
	printer.Detail("name", name)
	printer.Detail("currency", fmt.Sprintf("%s (%s)", currency.Code, currency.Symbol))
	printer.Detail("country", country)
	return nil
}
