package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docingest/internal/config"
	"github.com/Aman-CERP/docingest/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor [source]",
		Short: "Check that an ingest run can succeed",
		Long: `Run the checks ingest performs before reading any record: the source
is readable, the persist location is writable with enough free space, the
collection is still empty and the embedding provider has its credentials.

Exits non-zero when a required check fails.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.LoadOptions{Path: configPath})
			if err != nil {
				return err
			}
			if len(args) > 0 {
				cfg.Source.Path = args[0]
			}

			checker := preflight.New(preflight.WithOutput(cmd.OutOrStdout()), preflight.WithVerbose(verbose))
			results := checker.RunAll(cmd.Context(), cfg)

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}

			if checker.HasCriticalFailures(results) {
				return fmt.Errorf("system check failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show check details")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	return cmd
}
