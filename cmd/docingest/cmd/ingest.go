package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docingest/internal/config"
	"github.com/Aman-CERP/docingest/internal/diag"
	"github.com/Aman-CERP/docingest/internal/document"
	"github.com/Aman-CERP/docingest/internal/embed"
	"github.com/Aman-CERP/docingest/internal/index"
	"github.com/Aman-CERP/docingest/internal/preflight"
	"github.com/Aman-CERP/docingest/internal/profiling"
	"github.com/Aman-CERP/docingest/internal/record"
	"github.com/Aman-CERP/docingest/internal/store"
	"github.com/Aman-CERP/docingest/internal/tokenize"
	"github.com/Aman-CERP/docingest/internal/ui"
)

type ingestOptions struct {
	configPath   string
	collection   string
	persist      string
	backend      string
	databaseURL  string
	chunkSize    int
	chunkOverlap int
	tokenLimit   int
	scheme       string
	embedder     string
	model        string
	workers      int
	title        bool
	sentinel     bool
	fullText     bool
	validate     bool
	noTUI        bool
	noColor      bool
	dryRun       bool
	jsonOutput   bool
	skipCheck    bool
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest [source]",
		Short: "Ingest JSONL records into a vector collection",
		Long: `Ingest scraped documentation records into a new vector collection.

The source is a JSON lines file, "-" for stdin, or an s3://bucket/key
object. Without an argument the source comes from the config file or
DOCINGEST_DATA (DATA is accepted too).

Each record is normalized, prefixed with a metadata header, deduplicated,
split into overlapping token windows, grouped into token-bounded batches,
embedded and written to the collection. The first batch creates the
collection; every later batch is appended to it.

Backends:
  local      vectors, chunk rows and full text under --persist (default)
  pgvector   one Postgres table per collection (needs --database-url)
  memory     in-process only, implied by --dry-run`,
		Example: `  # Build the default collection from data.jsonl
  docingest ingest data.jsonl

  # Stream from S3 into Postgres
  docingest ingest s3://docs/liferay.jsonl --backend pgvector --database-url postgres://localhost/docs

  # Check chunking and batching without writing anything
  docingest ingest data.jsonl --dry-run --no-tui`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(config.LoadOptions{Path: opts.configPath})
			if err != nil {
				return err
			}
			if len(args) > 0 {
				cfg.Source.Path = args[0]
			}
			applyIngestFlags(cmd, cfg, opts)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := startLogging(cfg.Logging); err != nil {
				return err
			}
			if !opts.skipCheck {
				if err := runPreflight(ctx, cfg); err != nil {
					return err
				}
			}
			return runIngest(ctx, cmd.OutOrStdout(), cfg, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "Config file (default: docingest.yaml, .yml or .toml in the working directory)")
	f.StringVar(&opts.collection, "collection", "", "Collection name (default liferay_docs)")
	f.StringVar(&opts.persist, "persist", "", "Persist directory for the local backend (default chroma_db)")
	f.StringVar(&opts.backend, "backend", "", "Index backend: local, pgvector or memory")
	f.StringVar(&opts.databaseURL, "database-url", "", "Postgres URL for the pgvector backend")
	f.IntVar(&opts.chunkSize, "chunk-size", 0, "Chunk size in tokens (default 2000)")
	f.IntVar(&opts.chunkOverlap, "chunk-overlap", 0, "Chunk overlap in tokens (default 200)")
	f.IntVar(&opts.tokenLimit, "token-limit", 0, "Token budget per batch (default 300000)")
	f.StringVar(&opts.scheme, "scheme", "", "Tokenization scheme: "+strings.Join(tokenize.Schemes(), ", "))
	f.StringVar(&opts.embedder, "embedder", "", "Embedding provider: "+strings.Join(embed.Providers(), ", "))
	f.StringVar(&opts.model, "model", "", "Embedding model (provider default when empty)")
	f.IntVar(&opts.workers, "workers", 0, "Batches embedded concurrently (default 4)")
	f.BoolVar(&opts.title, "title", true, "Write the title line in the header (--title=false to leave it out)")
	f.BoolVar(&opts.sentinel, "sentinel", true, "Append the [DOC_END] sentinel (--sentinel=false to skip it)")
	f.BoolVar(&opts.fullText, "full-text", true, "Build the full-text index (local backend)")
	f.BoolVar(&opts.validate, "validate", false, "Check every line against the record schema")
	f.BoolVar(&opts.noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	f.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	f.BoolVar(&opts.dryRun, "dry-run", false, "Run every stage against the in-memory backend")
	f.BoolVar(&opts.jsonOutput, "json", false, "Print the run summary as JSON instead of progress output")
	f.BoolVar(&opts.skipCheck, "skip-check", false, "Skip preflight checks")

	return cmd
}

// applyIngestFlags copies explicitly set flags over the loaded config.
func applyIngestFlags(cmd *cobra.Command, cfg *config.Config, opts ingestOptions) {
	set := cmd.Flags().Changed

	if set("collection") {
		cfg.Index.CollectionName = opts.collection
	}
	if set("persist") {
		cfg.Index.PersistLocation = opts.persist
	}
	if set("backend") {
		cfg.Index.Backend = opts.backend
	}
	if set("database-url") {
		cfg.Index.DatabaseURL = opts.databaseURL
	}
	if set("chunk-size") {
		cfg.Chunking.ChunkSize = opts.chunkSize
	}
	if set("chunk-overlap") {
		cfg.Chunking.ChunkOverlap = opts.chunkOverlap
	}
	if set("token-limit") {
		cfg.Batching.TokenLimit = opts.tokenLimit
	}
	if set("scheme") {
		cfg.Chunking.TokenizationScheme = opts.scheme
	}
	if set("embedder") {
		cfg.Embeddings.Provider = opts.embedder
	}
	if set("model") {
		cfg.Embeddings.Model = opts.model
	}
	if set("workers") {
		cfg.Embeddings.Workers = opts.workers
	}
	if set("title") {
		cfg.Header.IncludeTitle = opts.title
	}
	if set("sentinel") {
		cfg.Header.DocEndSentinel = opts.sentinel
	}
	if set("full-text") {
		cfg.Index.FullText = opts.fullText
	}
	if opts.validate {
		cfg.Source.Validate = true
	}
	if opts.dryRun {
		cfg.Index.Backend = store.BackendMemory
	}
}

// runPreflight logs every non-passing check and fails on the first
// critical one.
func runPreflight(ctx context.Context, cfg *config.Config) error {
	results := preflight.New(preflight.WithOutput(io.Discard)).RunAll(ctx, cfg)
	for _, r := range results {
		if r.Status == preflight.StatusPass {
			continue
		}
		slog.Warn("preflight check",
			slog.String("check", r.Name),
			slog.String("status", r.Status.String()),
			slog.String("message", r.Message))
	}
	return preflight.Err(results)
}

func runIngest(ctx context.Context, out io.Writer, cfg *config.Config, opts ingestOptions) error {
	tok, err := tokenize.New(cfg.Chunking.TokenizationScheme)
	if err != nil {
		return err
	}

	embedder, err := embed.New(ctx, cfg.EmbedConfig())
	if err != nil {
		return err
	}
	defer func() { _ = embedder.Close() }()

	backend, err := store.NewBackend(cfg.BackendOptions())
	if err != nil {
		return err
	}

	src, err := record.Open(ctx, cfg.Source.Path, record.SourceOptions{Region: cfg.Source.Region})
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	var validator *record.Validator
	if cfg.Source.Validate {
		if validator, err = record.DefaultValidator(); err != nil {
			return err
		}
	}

	var renderer ui.Renderer = ui.Nop{}
	if !opts.jsonOutput {
		renderer = ui.NewRenderer(ui.NewConfig(out,
			ui.WithForcePlain(opts.noTUI),
			ui.WithNoColor(opts.noColor || ui.DetectNoColor()),
			ui.WithTitle("docingest → "+cfg.Index.CollectionName),
		))
	}

	runner, err := index.NewRunner(index.RunnerDependencies{
		Source:    src,
		Tokenizer: tokenize.NewCached(tok, 0),
		Embedder:  embedder,
		Backend:   backend,
		Renderer:  renderer,
		Sink:      diag.NewSlogSink(slog.Default()),
		Validator: validator,
	})
	if err != nil {
		return err
	}

	rc := runnerConfig(cfg, embedder)

	slog.Info("ingest starting",
		slog.String("source", cfg.Source.Path),
		slog.String("collection", rc.Target.Collection),
		slog.String("backend", rc.BackendName),
		slog.String("embedder", embed.Describe(embedder)),
		slog.String("scheme", rc.Target.Scheme))

	if err := renderer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start renderer: %w", err)
	}
	res, runErr := runner.Run(ctx, rc)
	_ = renderer.Stop()

	if runErr != nil {
		slog.Error("ingest failed",
			slog.String("run_id", res.RunID),
			slog.Int("committed", res.Committed),
			slog.String("error", runErr.Error()))
		return runErr
	}

	slog.Info("ingest complete",
		slog.String("run_id", res.RunID),
		slog.Int("chunks", res.Chunks),
		slog.Int("batches", res.Batches),
		slog.Bool("empty", res.Empty),
		slog.Duration("duration", res.Duration),
		slog.Uint64("heap_alloc", profiling.HeapAlloc()))

	if opts.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(newIngestSummary(rc, res))
	}
	return nil
}

func runnerConfig(cfg *config.Config, embedder embed.Embedder) index.RunnerConfig {
	rc := index.DefaultRunnerConfig(store.Target{
		Collection: cfg.Index.CollectionName,
		PersistDir: cfg.Index.PersistLocation,
		Model:      embedder.ModelName(),
		Scheme:     cfg.Chunking.TokenizationScheme,
	})
	rc.ChunkSize = cfg.Chunking.ChunkSize
	rc.ChunkOverlap = cfg.Chunking.ChunkOverlap
	rc.TokenLimit = cfg.Batching.TokenLimit
	rc.Header = document.InjectorOptions{
		IncludeTitle:   cfg.Header.IncludeTitle,
		DocEndSentinel: cfg.Header.DocEndSentinel,
	}
	if cfg.Embeddings.Workers > 0 {
		rc.EmbedWorkers = cfg.Embeddings.Workers
	}
	rc.BackendName = cfg.Index.Backend
	if rc.BackendName == store.BackendLocal {
		rc.BackendName = store.CollectionDir(cfg.Index.PersistLocation, cfg.Index.CollectionName)
	}
	return rc
}

// ingestSummary is the --json report of a successful run.
type ingestSummary struct {
	RunID      string           `json:"run_id"`
	Collection string           `json:"collection"`
	Backend    string           `json:"backend"`
	Loaded     int              `json:"loaded"`
	Malformed  int              `json:"malformed"`
	Duplicates int              `json:"duplicates"`
	Units      int              `json:"units"`
	Chunks     int              `json:"chunks"`
	Batches    int              `json:"batches"`
	Committed  int              `json:"committed"`
	Empty      bool             `json:"empty"`
	DurationMS int64            `json:"duration_ms"`
	StagesMS   map[string]int64 `json:"stages_ms"`
}

func newIngestSummary(rc index.RunnerConfig, res *index.RunnerResult) ingestSummary {
	stages := make(map[string]int64, len(res.StageDurations))
	for stage, d := range res.StageDurations {
		stages[strings.ToLower(stage.String())] = d.Milliseconds()
	}
	return ingestSummary{
		RunID:      res.RunID,
		Collection: rc.Target.Collection,
		Backend:    rc.BackendName,
		Loaded:     res.Loaded,
		Malformed:  res.Malformed,
		Duplicates: res.Duplicates,
		Units:      res.Units,
		Chunks:     res.Chunks,
		Batches:    res.Batches,
		Committed:  res.Committed,
		Empty:      res.Empty,
		DurationMS: res.Duration.Milliseconds(),
		StagesMS:   stages,
	}
}
