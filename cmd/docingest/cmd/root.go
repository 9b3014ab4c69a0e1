// Package cmd provides the CLI commands for docingest.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docingest/internal/config"
	"github.com/Aman-CERP/docingest/internal/logging"
	"github.com/Aman-CERP/docingest/internal/profiling"
	"github.com/Aman-CERP/docingest/pkg/version"
)

var (
	debugMode      bool
	logFile        string
	loggingCleanup func()
)

var (
	profileOpts profiling.Options
	profiler    *profiling.Session
)

// NewRootCmd creates the root command for the docingest CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docingest",
		Short: "Build a vector collection from scraped documentation",
		Long: `docingest reads scraped documentation records (JSON lines), normalizes
them, adds a metadata header, drops duplicates, splits them into token-sized
chunks, embeds them and writes the result to a vector collection.

Run 'docingest ingest data.jsonl' to build the default collection.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("docingest version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to the console and ~/.docingest/logs/")
	cmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write the run log here instead of ~/.docingest/logs/run.log")

	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Heap, "profile-mem", "", "Write heap profile to file on exit")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfiling
	cmd.PersistentPostRunE = stopAll

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newInfoCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	defer func() { _ = stopAll(nil, nil) }()
	return NewRootCmd().ExecuteContext(context.Background())
}

// startLogging installs the default logger from the logging section.
// --debug raises the level and mirrors records to stderr.
func startLogging(lc config.LoggingConfig) error {
	cfg := logging.DefaultConfig()
	cfg.Console = false
	if lc.Level != "" {
		cfg.Level = lc.Level
	}
	if lc.File != "" {
		cfg.FilePath = lc.File
	}
	if logFile != "" {
		cfg.FilePath = logFile
	}
	if debugMode {
		cfg.Level = "debug"
		cfg.Console = true
	}

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("logging started",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level),
		slog.String("version", version.Short()))
	return nil
}

func startProfiling(_ *cobra.Command, _ []string) error {
	if !profileOpts.Enabled() {
		return nil
	}
	s, err := profiling.Start(profileOpts)
	if err != nil {
		return err
	}
	profiler = s
	return nil
}

// stopAll stops profiling, then logging.
func stopAll(cmd *cobra.Command, args []string) error {
	var err error
	if profiler != nil {
		err = profiler.Stop()
		profiler = nil
	}
	_ = stopLogging(cmd, args)
	return err
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}
