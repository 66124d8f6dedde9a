package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyluth/steamhub/internal/config"
	"github.com/dyluth/steamhub/internal/language"
	"github.com/dyluth/steamhub/internal/printer"
	"github.com/dyluth/steamhub/pkg/records"
)

var languageForServer bool

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "Load language catalogs and manage selections",
}

var languagesLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Write every catalog in languages.dir to the store",
	Args:  cobra.NoArgs,
	RunE:  runLanguagesLoad,
}

var languagesSetCmd = &cobra.Command{
	Use:   "set ID LANGUAGE",
	Short: "Select a language for a user or server",
	Args:  cobra.ExactArgs(2),
	RunE:  runLanguagesSet,
}

var languagesClearCmd = &cobra.Command{
	Use:   "clear ID",
	Short: "Remove a user's or server's language selection",
	Args:  cobra.ExactArgs(1),
	RunE:  runLanguagesClear,
}

func init() {
	for _, c := range []*cobra.Command{languagesSetCmd, languagesClearCmd} {
		c.Flags().BoolVar(&languageForServer, "server", false, "ID is a server rather than a user")
	}
	languagesCmd.AddCommand(languagesLoadCmd, languagesSetCmd, languagesClearCmd)
	rootCmd.AddCommand(languagesCmd)
}

func loadLanguages(ctx context.Context, cfg *config.Config, client *records.Client) (*language.Hub, []string, error) {
	hub := language.NewHub(client, cfg.Languages.Default, nil)
	names, err := hub.LoadDir(ctx, cfg.Languages.Dir)
	if err != nil {
		return nil, nil, printer.ErrorWithContext(
			"failed to load language catalogs",
			err.Error(),
			map[string]string{"dir": cfg.Languages.Dir, "default": cfg.Languages.Default},
			fmt.Sprintf("Check %s contains %s.json", cfg.Languages.Dir, cfg.Languages.Default),
		)
	}
	return hub, names, nil
}

func runLanguagesLoad(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, client, err := setup(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	_, names, err := loadLanguages(ctx, cfg, client)
	if err != nil {
		return err
	}
	printer.Success("Loaded %d language catalogs: %s", len(names), strings.Join(names, ", "))
	return nil
}

func runLanguagesSet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, client, err := setup(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	hub, names, err := loadLanguages(ctx, cfg, client)
	if err != nil {
		return err
	}
	if err := hub.SetLanguage(ctx, args[0], args[1], languageForServer); err != nil {
		return printer.Error("failed to set language", err.Error(),
			"Available: "+strings.Join(names, ", "))
	}
	printer.Success("%s '%s' now uses %s", subjectNoun(languageForServer), args[0], args[1])
	return nil
}

func runLanguagesClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, client, err := setup(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	hub := language.NewHub(client, cfg.Languages.Default, nil)
	if err := hub.ClearLanguage(ctx, args[0], languageForServer); err != nil {
		return fmt.Errorf("failed to clear language: %w", err)
	}
	printer.Success("%s '%s' uses the default language", subjectNoun(languageForServer), args[0])
	return nil
}

func subjectNoun(server bool) string {
	if server {
		return "Server"
	}
	return "User"
}
