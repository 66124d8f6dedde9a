package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/steamhub/internal/printer"
	"github.com/dyluth/steamhub/internal/query"
	"github.com/dyluth/steamhub/internal/report"
)

var (
	queryOutputFormat string
	queryCancel       bool
)

var queryCmd = &cobra.Command{
	Use:   "query [DIAGNOSTIC]",
	Short: "Run a diagnostic on every shard and print the answers",
	Long: `Run a named diagnostic on every shard and wait for all of them to answer.

Only one query can run at a time across the cluster. The wait is bounded by
query.poll_interval x query.max_polls; shards that have not answered by then
are reported as pending.

Diagnostics:
  shard       shard index and count
  uptime      time since the shard started
  goroutines  number of goroutines
  memory      heap statistics
  version     build version
  watchers    number of active watchers

Output Formats:
  default - one block per shard
  jsonl   - one JSON object per shard

Examples:
  steamhub query memory
  steamhub query uptime --output=jsonl
  steamhub query --cancel`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	queryCmd.Flags().BoolVar(&queryCancel, "cancel", false, "Abandon the running query instead of starting one")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	format, err := report.ParseOutputFormat(queryOutputFormat)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), "Valid formats: default, jsonl")
	}

	cfg, client, err := setup(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	registry := query.Builtins(query.ShardInfo{Count: cfg.Shards.Count, StartedAt: time.Now(), WatcherCount: noWatcherCount})
	coordinator, err := query.NewCoordinator(client, query.Options{
		ShardCount:   cfg.Shards.Count,
		Registry:     registry,
		PollInterval: cfg.Query.PollInterval.Std(),
		MaxPolls:     cfg.Query.MaxPolls,
		Detached:     true,
	})
	if err != nil {
		return err
	}

	if queryCancel {
		if err := coordinator.Cancel(ctx); err != nil {
			return fmt.Errorf("failed to cancel query: %w", err)
		}
		printer.Success("Query cancelled")
		return nil
	}

	if len(args) == 0 {
		return printer.Error("no diagnostic given", "Name the diagnostic to run.",
			"Available: "+strings.Join(registry.Names(), ", "))
	}

	if _, err := coordinator.Start(ctx, args[0]); err != nil {
		switch {
		case errors.Is(err, query.ErrUnknownDiagnostic):
			return printer.Error(fmt.Sprintf("unknown diagnostic '%s'", args[0]),
				"Queries are limited to the built-in diagnostics.",
				"Available: "+strings.Join(registry.Names(), ", "))
		case errors.Is(err, query.ErrQueryInProgress):
			return printer.Error("a query is already in progress",
				"Another operator or shard is running a query.",
				"Wait for it to finish",
				"Abandon it:\n     steamhub query --cancel")
		default:
			return fmt.Errorf("failed to start query: %w", err)
		}
	}

	result, err := coordinator.Wait(ctx)
	if err != nil && !errors.Is(err, query.ErrQueryTimedOut) {
		return fmt.Errorf("failed waiting for query: %w", err)
	}

	switch format {
	case report.OutputFormatJSONL:
		if err := report.FormatQueryResultJSONL(printer.Stdout(), result); err != nil {
			return err
		}
	default:
		report.FormatQueryResult(printer.Stdout(), result)
	}

	if errors.Is(err, query.ErrQueryTimedOut) {
		printer.Warning("Not every shard answered before the wait limit")
	}
	return nil
}

// noWatcherCount registers the watchers diagnostic by name; the CLI never
// answers queries itself.
func noWatcherCount(ctx context.Context) (int, error) {
	return 0, errors.New("not a shard")
}
