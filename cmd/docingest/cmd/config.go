package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docingest/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Inspect and create docingest configuration files.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/docingest/config.yaml)
  3. Project config (docingest.yaml, .yml or .toml, or --config)
  4. .env in the working directory
  5. Environment variables (DOCINGEST_*, DATA, CHROMA_DB_DIR)
  6. Command-line flags`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		force bool
		user  bool
		path  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the defaults",
		Long: `Write the default configuration to docingest.yaml in the working
directory, or to the user config with --user. A .toml path writes TOML.

An existing file is left alone unless --force is given, in which case it
is backed up first.`,
		Example: `  docingest config init
  docingest config init --path docingest.toml
  docingest config init --user --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := path
			if user {
				target = config.GetUserConfigPath()
			}
			return runConfigInit(cmd, target, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file after backing it up")
	cmd.Flags().BoolVar(&user, "user", false, "Write the user config instead of the project config")
	cmd.Flags().StringVar(&path, "path", config.ProjectFileNames[0], "File to write")

	return cmd
}

func runConfigInit(cmd *cobra.Command, path string, force bool) error {
	out := cmd.OutOrStdout()

	if fileExists(path) {
		if !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		backup, err := config.BackupFile(path)
		if err != nil {
			return err
		}
		if backup != "" {
			_, _ = fmt.Fprintf(out, "Backed up %s to %s\n", path, filepath.Base(backup))
		}
	}

	if err := config.NewConfig().WriteFile(path); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Wrote %s\n", path)
	return nil
}

func newConfigShowCmd() *cobra.Command {
	var (
		configPath string
		format     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long: `Show the configuration after merging defaults, config files, .env and
the environment. API keys are never printed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.LoadOptions{Path: configPath})
			if err != nil {
				return err
			}
			return printConfig(cmd, cfg, format)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file")
	cmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml, toml or json")

	return cmd
}

func printConfig(cmd *cobra.Command, cfg *config.Config, format string) error {
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	case "yaml", "toml":
		data, err := cfg.Marshal("config." + format)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	default:
		return fmt.Errorf("unknown format %q (use yaml, toml or json)", format)
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print config file locations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			user := config.GetUserConfigPath()
			_, _ = fmt.Fprintf(out, "user:    %s%s\n", user, missingMark(user))

			project := config.FindProjectFile(".")
			if project == "" {
				project = config.ProjectFileNames[0] + " (not found)"
			}
			_, _ = fmt.Fprintf(out, "project: %s\n", project)
			return nil
		},
	}
}

func missingMark(path string) string {
	if fileExists(path) {
		return ""
	}
	return " (not found)"
}
