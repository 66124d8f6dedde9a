package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dyluth/steamhub/internal/catalog"
	"github.com/dyluth/steamhub/internal/printer"
	"github.com/dyluth/steamhub/internal/shard"
	"github.com/dyluth/steamhub/internal/transport"
	"github.com/dyluth/steamhub/internal/watcher"
)

var shardID int

var shardCmd = &cobra.Command{
	Use:   "shard",
	Short: "Run one shard's state services",
	Long: `Run the state services for one bot shard until interrupted.

Every shard:
  - loads the language catalogs from languages.dir
  - answers cross-shard diagnostic queries
  - serves /healthz and /metrics on health.addr

The shard named by watcher.shard also runs the watcher alert cycle on
watcher.schedule and needs catalog.url.

The shard index comes from --shard-id, or STEAMHUB_SHARD_ID when the flag
is not given.`,
	RunE: runShard,
}

func init() {
	shardCmd.Flags().IntVar(&shardID, "shard-id", 0, "Index of this shard (0-based)")
	rootCmd.AddCommand(shardCmd)
}

func resolveShardID(cmd *cobra.Command) (int, error) {
	if cmd.Flags().Changed("shard-id") {
		return shardID, nil
	}
	if raw := os.Getenv("STEAMHUB_SHARD_ID"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid STEAMHUB_SHARD_ID: %w", err)
		}
		return id, nil
	}
	return shardID, nil
}

func runShard(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	id, err := resolveShardID(cmd)
	if err != nil {
		return printer.Error("invalid shard id", err.Error())
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	client, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	var lookup watcher.Catalog
	if cfg.Catalog.URL != "" {
		c, err := catalog.NewClient(cfg.Catalog.URL, cfg.Catalog.Timeout.Std())
		if err != nil {
			return printer.Error("invalid catalog.url", err.Error())
		}
		lookup = c
	} else if id == cfg.Watcher.Shard {
		return printer.Error(
			"catalog.url is required",
			fmt.Sprintf("Shard %d runs the watcher cycle and needs the game catalog service.", id),
			"Set catalog.url in steamhub.yml",
			fmt.Sprintf("Run the watcher cycle on another shard with watcher.shard (currently %d)", cfg.Watcher.Shard),
		)
	}

	rt, err := shard.New(ctx, cfg, id, client, shard.Deps{
		Catalog:   lookup,
		Transport: transport.NewLog(logger),
		Logger:    logger,
		Version:   version,
	})
	if err != nil {
		return printer.ErrorWithContext("failed to start shard", err.Error(),
			map[string]string{"shard": strconv.Itoa(id), "languages": cfg.Languages.Dir})
	}

	printer.Success("Shard %d/%d started (health on %s)", id, cfg.Shards.Count, cfg.Health.Addr)
	if err := rt.Run(ctx); err != nil {
		logger.Error("shard_failed", zap.Error(err))
		return printer.Error("shard stopped with an error", err.Error())
	}
	printer.Info("Shard %d stopped", id)
	return nil
}
