package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docingest/internal/config"
	ierrors "github.com/Aman-CERP/docingest/internal/errors"
	"github.com/Aman-CERP/docingest/internal/store"
	"github.com/Aman-CERP/docingest/internal/ui"
)

func newInfoCmd() *cobra.Command {
	var (
		configPath string
		persist    string
		sample     int
		jsonOutput bool
		check      bool
		noColor    bool
	)

	cmd := &cobra.Command{
		Use:   "info [collection]",
		Short: "Show a local collection's metadata and consistency",
		Long: `Open a local collection read-only and report its embedding model,
tokenization scheme and record counts. Every chunk row is checked for a
matching vector, and the full-text count is compared when one exists.

Use --check to exit non-zero when the stores disagree.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.LoadOptions{Path: configPath})
			if err != nil {
				return err
			}
			collection := cfg.Index.CollectionName
			if len(args) > 0 {
				collection = args[0]
			}
			if cmd.Flags().Changed("persist") {
				cfg.Index.PersistLocation = persist
			}

			info, err := store.Inspect(cmd.Context(), cfg.Index.PersistLocation, collection, sample)
			if err != nil {
				return err
			}

			r := ui.NewInfoRenderer(cmd.OutOrStdout(), noColor || ui.DetectNoColor())
			if jsonOutput {
				err = r.RenderJSON(info)
			} else {
				err = r.Render(info)
			}
			if err != nil {
				return err
			}

			if check && !info.Consistent() {
				return ierrors.New(ierrors.ErrCodeCorruptIndex, "collection stores disagree", nil).
					WithDetail("collection", collection).
					WithSuggestion("re-run ingest into a fresh collection")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file")
	cmd.Flags().StringVar(&persist, "persist", "", "Persist directory (default from config)")
	cmd.Flags().IntVar(&sample, "sample", 3, "Number of stored chunks to preview")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	cmd.Flags().BoolVar(&check, "check", false, "Fail when the collection is inconsistent")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}
