// Package cmd defines and implements the CLI commands for the importer executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/recipe-importer/internal/config"
	"github.com/JakeFAU/recipe-importer/internal/recipe"
	"github.com/JakeFAU/recipe-importer/internal/server"
)

// App is the application surface the commands drive. Tests swap in a fake.
type App interface {
	Run(ctx context.Context) error
	Import(ctx context.Context, userID, source, bioURL string, text bool) (recipe.ImportJob, error)
	Close(ctx context.Context) error
}

// newApp is the application factory, replaceable in tests.
var newApp = func(ctx context.Context, cfg *config.Config, opts ...server.Option) (App, error) {
	return server.Build(ctx, cfg, opts...)
}

type cfgKeyType struct{}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "importer",
		Short: "Imports recipes from URLs and social-media posts.",
		Long: `importer turns a recipe URL or a social-media post into a structured,
deduplicated recipe. It runs as an HTTP service or imports a single source
from the command line.`,
		SilenceUsage: true,

		// Config is loaded once here so every subcommand sees the same values.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), cfgKeyType{}, &cfg))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	cmd.AddCommand(newServeCmd(), newImportCmd())
	return cmd
}

func configFrom(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(cfgKeyType{}).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
