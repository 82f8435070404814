package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	memorypublisher "github.com/JakeFAU/recipe-importer/internal/publisher/memory"
	"github.com/JakeFAU/recipe-importer/internal/recipe"
	"github.com/JakeFAU/recipe-importer/internal/server"
)

type importOptions struct {
	userID string
	text   bool
	bioURL string
}

// newImportCmd creates the 'import' subcommand. It runs one import in the
// foreground and prints the finished job as JSON.
func newImportCmd() *cobra.Command {
	var opts importOptions
	cmd := &cobra.Command{
		Use:   "import <url-or-text>",
		Short: "Imports a single recipe and prints the job",
		Long: `Runs a single import without the HTTP service. The argument is a
recipe URL, or the text of a social-media post when --text is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.userID, "user", "cli", "user id that owns the import")
	cmd.Flags().BoolVar(&opts.text, "text", false, "treat the argument as social-media post text")
	cmd.Flags().StringVar(&opts.bioURL, "bio-url", "", "profile link used when the post says the recipe is in the bio")
	return cmd
}

func runImport(cmd *cobra.Command, opts importOptions, source string) (err error) {
	cfg, err := configFrom(cmd.Context())
	if err != nil {
		return err
	}
	app, err := newApp(cmd.Context(), cfg, server.WithNotifier(memorypublisher.New()))
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer func() {
		if cerr := app.Close(cmd.Context()); cerr != nil && err == nil {
			err = fmt.Errorf("close application: %w", cerr)
		}
	}()

	job, err := app.Import(cmd.Context(), opts.userID, source, opts.bioURL, opts.text)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(job); err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if job.Status == recipe.JobStatusFailed {
		return fmt.Errorf("import failed with %s: %s", job.ErrorCode, job.ErrorMessage)
	}
	return nil
}
