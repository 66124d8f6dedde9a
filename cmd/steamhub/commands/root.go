package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dyluth/steamhub/internal/config"
	"github.com/dyluth/steamhub/internal/logging"
	"github.com/dyluth/steamhub/internal/printer"
	"github.com/dyluth/steamhub/pkg/records"
)

var (
	version string

	configPath string
	envFile    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "steamhub",
	Short: "steamhub - shared state and shard coordination for the Steam chat bot",
	Long: `steamhub runs the state layer of the Steam chat bot: permissions, bans,
cooldowns, language catalogs, discount watchers and cross-shard diagnostics,
all kept in Redis.

Run one "steamhub shard" per bot shard; use the other commands to inspect
and administer the shared state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute runs the root command. Cobra's own error and usage printing is
// silenced; failures are printed by the printer package.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	err := rootCmd.Execute()
	if err != nil && !printer.IsPrinted(err) {
		return printer.Error("Error: "+err.Error(), "")
	}
	return err
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "steamhub.yml", "Path to steamhub.yml")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional .env file loaded before the config")
}

// loadConfig reads the .env file and steamhub.yml, printing a formatted
// error on failure.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, printer.Error("failed to load environment file", err.Error())
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, printer.ErrorWithContext(
			"failed to load configuration",
			err.Error(),
			map[string]string{"config": configPath},
			"Check the file exists and sets version: \"1.0\" and redis.url",
		)
	}
	return cfg, nil
}

// connect opens the record store and verifies Redis is reachable.
func connect(ctx context.Context, cfg *config.Config) (*records.Client, error) {
	client, err := records.NewClientFromURL(cfg.Redis.URL)
	if err != nil {
		return nil, printer.Error("invalid redis.url", err.Error())
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis: %v", err),
			map[string]string{"url": cfg.Redis.URL},
			"Check that Redis is running and REDIS_URL or redis.url points at it",
		)
	}
	return client, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return nil, printer.Error("invalid logging configuration", err.Error())
	}
	return logger, nil
}

// setup loads config and connects, for commands that only touch the store.
func setup(ctx context.Context) (*config.Config, *records.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	client, err := connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, client, nil
}
