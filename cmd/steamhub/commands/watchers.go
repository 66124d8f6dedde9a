package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dyluth/steamhub/internal/config"
	"github.com/dyluth/steamhub/internal/printer"
	"github.com/dyluth/steamhub/internal/report"
	"github.com/dyluth/steamhub/internal/watcher"
	"github.com/dyluth/steamhub/pkg/records"
)

var (
	watchersOutputFormat string

	watchKind      string
	watchThreshold int
	watchName      string
)

var watchersCmd = &cobra.Command{
	Use:   "watchers",
	Short: "Inspect and edit discount watchers",
	Long: `Inspect and edit the discount watchers users have registered.

A watcher notifies a channel, a channel with a mention, or a direct message
when an item's discount crosses the watcher's threshold.`,
}

var watchersListCmd = &cobra.Command{
	Use:   "list USER",
	Short: "List a user's watchers",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatchersList,
}

var watchersAddCmd = &cobra.Command{
	Use:   "add USER DESTINATION ITEM",
	Short: "Add a watcher for a user",
	Long: `Add a watcher for a user.

DESTINATION is a channel ID for --kind=channel and --kind=mention, or the
user ID for --kind=pm.

Examples:
  steamhub watchers add 1001 chan-9 440 --threshold=50 --name="Team Fortress 2"
  steamhub watchers add 1001 1001 570 --kind=pm`,
	Args: cobra.ExactArgs(3),
	RunE: runWatchersAdd,
}

var watchersRemoveCmd = &cobra.Command{
	Use:   "remove USER ID",
	Short: "Remove one of a user's watchers",
	Args:  cobra.ExactArgs(2),
	RunE:  runWatchersRemove,
}

func init() {
	watchersListCmd.Flags().StringVarP(&watchersOutputFormat, "output", "o", "default", "Output format: default or jsonl")

	watchersAddCmd.Flags().StringVar(&watchKind, "kind", string(watcher.KindChannel), "Destination kind: channel, mention or pm")
	watchersAddCmd.Flags().IntVar(&watchThreshold, "threshold", 0, "Minimum discount percent (0-100)")
	watchersAddCmd.Flags().StringVar(&watchName, "name", "", "Display name of the item")

	watchersCmd.AddCommand(watchersListCmd, watchersAddCmd, watchersRemoveCmd)
	rootCmd.AddCommand(watchersCmd)
}

// newWatcherEngine builds an engine for store edits only. It has no catalog
// or transport and must not run an alert cycle.
func newWatcherEngine(cfg *config.Config, client *records.Client) *watcher.Engine {
	return watcher.NewEngine(client, nil, nil, nil, watcher.Options{Cap: *cfg.Watcher.Cap})
}

func runWatchersList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	format, err := report.ParseOutputFormat(watchersOutputFormat)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), "Valid formats: default, jsonl")
	}

	cfg, client, err := setup(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	engine := newWatcherEngine(cfg, client)
	watchers, err := engine.ListWatchers(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to list watchers: %w", err)
	}

	rows := make([]report.WatcherRow, 0, len(watchers))
	for _, w := range watchers {
		name, err := engine.ItemName(ctx, w.ItemID)
		if err != nil {
			return fmt.Errorf("failed to read name of item %s: %w", w.ItemID, err)
		}
		rows = append(rows, report.WatcherRow{Watcher: w, ItemName: name})
	}

	if format == report.OutputFormatJSONL {
		return report.FormatWatchersJSONL(printer.Stdout(), rows)
	}
	report.FormatWatchers(printer.Stdout(), args[0], rows)
	return nil
}

func runWatchersAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	owner, dest, item := args[0], args[1], args[2]

	cfg, client, err := setup(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	engine := newWatcherEngine(cfg, client)
	id, err := engine.AddWatcher(ctx, owner, dest, watcher.DestinationKind(watchKind), watchThreshold, item, watchName)
	switch {
	case errors.Is(err, watcher.ErrCapExceeded):
		return printer.Error(
			"watcher limit reached",
			fmt.Sprintf("User '%s' already has %d watchers.", owner, engine.Cap()),
			fmt.Sprintf("Remove one first:\n     steamhub watchers list %s", owner),
		)
	case errors.Is(err, watcher.ErrDuplicate):
		return printer.Error(
			"watcher already exists",
			fmt.Sprintf("User '%s' already watches item %s at %s.", owner, item, dest),
		)
	case err != nil:
		return printer.Error("failed to add watcher", err.Error())
	}

	printer.Success("Added watcher %d for user '%s'", id, owner)
	return nil
}

func runWatchersRemove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	owner := args[0]

	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return printer.Error("invalid watcher ID", fmt.Sprintf("'%s' is not a number.", args[1]))
	}

	cfg, client, err := setup(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	removed, err := newWatcherEngine(cfg, client).RemoveWatcher(ctx, owner, id)
	if err != nil {
		return fmt.Errorf("failed to remove watcher: %w", err)
	}
	if !removed {
		return printer.Error(
			fmt.Sprintf("watcher %d not found", id),
			fmt.Sprintf("User '%s' has no watcher with that ID.", owner),
			fmt.Sprintf("List the user's watchers:\n     steamhub watchers list %s", owner),
		)
	}

	printer.Success("Removed watcher %d", id)
	return nil
}
