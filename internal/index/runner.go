// Package index runs the ingestion pipeline and writes its output to a
// collection through a two-state Builder.
package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docingest/internal/batch"
	"github.com/Aman-CERP/docingest/internal/chunk"
	"github.com/Aman-CERP/docingest/internal/dedupe"
	"github.com/Aman-CERP/docingest/internal/diag"
	"github.com/Aman-CERP/docingest/internal/document"
	"github.com/Aman-CERP/docingest/internal/embed"
	ierrors "github.com/Aman-CERP/docingest/internal/errors"
	"github.com/Aman-CERP/docingest/internal/record"
	"github.com/Aman-CERP/docingest/internal/store"
	"github.com/Aman-CERP/docingest/internal/tokenize"
	"github.com/Aman-CERP/docingest/internal/ui"
)

// DefaultEmbedWorkers is how many batches are embedded at once.
const DefaultEmbedWorkers = 4

// RunnerConfig configures one ingestion run.
type RunnerConfig struct {
	// Target names the collection to create.
	Target store.Target

	// ChunkSize and ChunkOverlap are in tokens.
	ChunkSize    int
	ChunkOverlap int

	// Header selects the header variant.
	Header document.InjectorOptions

	// TokenLimit is the per-batch token budget.
	TokenLimit int

	// EmbedWorkers bounds the batches embedded concurrently. Index writes
	// stay sequential whatever the value.
	EmbedWorkers int

	// BackendName is reported in the summary only.
	BackendName string
}

// DefaultRunnerConfig returns the default chunking, header and batching
// settings for target.
func DefaultRunnerConfig(target store.Target) RunnerConfig {
	return RunnerConfig{
		Target:       target,
		ChunkSize:    chunk.DefaultChunkSize,
		ChunkOverlap: chunk.DefaultChunkOverlap,
		Header:       document.DefaultInjectorOptions(),
		TokenLimit:   batch.DefaultTokenLimit,
		EmbedWorkers: DefaultEmbedWorkers,
	}
}

// RunnerResult reports per-stage counts. On failure it holds whatever was
// counted before the failing stage.
type RunnerResult struct {
	RunID string

	Loaded     int
	Malformed  int
	Duplicates int
	Units      int
	Chunks     int
	Batches    int
	Committed  int
	// Empty is set when there was nothing to write.
	Empty bool

	Duration       time.Duration
	StageDurations ui.StageTimings
}

// StageError attributes a failure to a pipeline stage and, when known, the
// item being processed. It unwraps to the original error.
type StageError struct {
	Stage ui.Stage
	Item  string
	Err   error
}

func (e *StageError) Error() string {
	stage := strings.ToLower(e.Stage.String())
	if e.Item != "" {
		return fmt.Sprintf("%s stage failed at %s: %v", stage, e.Item, e.Err)
	}
	return fmt.Sprintf("%s stage failed: %v", stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// RunnerDependencies contains the injected dependencies for Runner.
type RunnerDependencies struct {
	// Source yields JSON lines, one record per line (required).
	Source io.Reader

	// Tokenizer counts tokens for chunking and batching (required).
	Tokenizer tokenize.Tokenizer

	// Embedder computes chunk vectors (required).
	Embedder embed.Embedder

	// Backend stores the collection (required).
	Backend store.Backend

	// Renderer shows progress. Nil draws nothing.
	Renderer ui.Renderer

	// Sink receives diagnostics. Nil discards them.
	Sink diag.Sink

	// Validator checks each raw line against the record schema. Optional.
	Validator *record.Validator
}

// Runner executes the ingestion pipeline once.
type Runner struct {
	source    io.Reader
	tok       tokenize.Tokenizer
	embedder  embed.Embedder
	backend   store.Backend
	renderer  ui.Renderer
	sink      diag.Sink
	validator *record.Validator
}

// NewRunner creates a Runner with injected dependencies.
func NewRunner(deps RunnerDependencies) (*Runner, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if deps.Tokenizer == nil {
		return nil, fmt.Errorf("tokenizer is required")
	}
	if deps.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if deps.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}

	r := &Runner{
		source:    deps.Source,
		tok:       deps.Tokenizer,
		embedder:  deps.Embedder,
		backend:   deps.Backend,
		renderer:  deps.Renderer,
		sink:      deps.Sink,
		validator: deps.Validator,
	}
	if r.renderer == nil {
		r.renderer = ui.Nop{}
	}
	if r.sink == nil {
		r.sink = diag.Discard
	}
	return r, nil
}

// run carries the state of one Run call.
type run struct {
	*Runner
	cfg   RunnerConfig
	res   *RunnerResult
	warns int
}

// Run executes every stage in order. The returned result is never nil.
func (r *Runner) Run(ctx context.Context, cfg RunnerConfig) (*RunnerResult, error) {
	start := time.Now()
	x := &run{
		Runner: r,
		cfg:    cfg,
		res: &RunnerResult{
			RunID:          uuid.NewString(),
			StageDurations: ui.StageTimings{},
		},
	}

	err := x.pipeline(ctx)
	x.res.Duration = time.Since(start)

	if err != nil {
		var se *StageError
		item := ""
		if errors.As(err, &se) {
			item = se.Item
		}
		r.renderer.AddError(ui.ErrorEvent{Item: item, Err: err})
		return x.res, err
	}

	r.renderer.Complete(x.completion())
	return x.res, nil
}

func (x *run) pipeline(ctx context.Context) error {
	records, err := x.load(ctx)
	if err != nil {
		return err
	}

	units := x.normalize(records)
	units = x.dedupe(units)

	chunks, err := x.chunk(ctx, units)
	if err != nil {
		return err
	}

	batches, err := x.batch(ctx, chunks)
	if err != nil {
		return err
	}

	if len(batches) == 0 {
		x.res.Empty = true
		x.sink.Emit(diag.Event{
			Stage:   "index",
			Kind:    diag.KindEmptyInput,
			Message: "no batches to index, collection not created",
			Attrs:   map[string]any{"run_id": x.res.RunID, "loaded": x.res.Loaded},
		})
		return nil
	}

	return x.embedAndIndex(ctx, batches)
}

// timed runs fn and records its duration under stage.
func (x *run) timed(stage ui.Stage, fn func() error) error {
	t := time.Now()
	err := fn()
	x.res.StageDurations[stage] += time.Since(t)
	return err
}

func (x *run) done(stage ui.Stage, count int, attrs map[string]any) {
	if attrs == nil {
		attrs = map[string]any{}
	}
	attrs["run_id"] = x.res.RunID
	attrs["count"] = count
	attrs["duration_ms"] = x.res.StageDurations[stage].Milliseconds()
	x.sink.Emit(diag.Event{
		Stage:   strings.ToLower(stage.String()),
		Kind:    diag.KindStageDone,
		Message: stage.String() + " done",
		Attrs:   attrs,
	})
	x.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   stage,
		Current: count,
		Total:   count,
		Message: fmt.Sprintf("%s: %d", strings.ToLower(stage.String()), count),
	})
}

func (x *run) load(ctx context.Context) ([]record.Record, error) {
	x.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageLoad, Message: "reading records"})

	opts := []record.ReaderOption{record.WithSink(x.sink)}
	if x.validator != nil {
		opts = append(opts, record.WithValidator(x.validator))
	}
	reader := record.NewReader(x.source, opts...)

	var records []record.Record
	err := x.timed(ui.StageLoad, func() error {
		var err error
		records, err = record.ReadAll(ctx, reader)
		return err
	})
	x.res.Loaded = len(records)
	x.res.Malformed = reader.Malformed()
	x.warns += x.res.Malformed
	if err != nil {
		return nil, &StageError{Stage: ui.StageLoad, Err: err}
	}

	x.done(ui.StageLoad, x.res.Loaded, map[string]any{"malformed": x.res.Malformed})
	return records, nil
}

func (x *run) normalize(records []record.Record) []document.TextUnit {
	inj := document.NewInjector(x.cfg.Header)
	units := make([]document.TextUnit, len(records))
	_ = x.timed(ui.StageNormalize, func() error {
		for i, rec := range records {
			units[i] = document.New(rec, inj)
		}
		return nil
	})
	x.done(ui.StageNormalize, len(units), nil)
	return units
}

func (x *run) dedupe(units []document.TextUnit) []document.TextUnit {
	d := dedupe.New(x.sink)
	var kept []document.TextUnit
	_ = x.timed(ui.StageDedupe, func() error {
		kept = d.Filter(units)
		return nil
	})
	x.res.Duplicates = d.Dropped()
	x.res.Units = len(kept)
	x.done(ui.StageDedupe, len(kept), map[string]any{"duplicates": x.res.Duplicates})
	return kept
}

func (x *run) chunk(ctx context.Context, units []document.TextUnit) ([]chunk.Chunk, error) {
	seps := chunk.DefaultSeparators
	if x.cfg.Header.DocEndSentinel {
		seps = chunk.SentinelSeparators
	}
	chunker, err := chunk.NewTokenChunker(x.tok, chunk.TokenChunkerOptions{
		ChunkSize:    x.cfg.ChunkSize,
		ChunkOverlap: x.cfg.ChunkOverlap,
		Separators:   seps,
		Sink:         x.sink,
	})
	if err != nil {
		return nil, &StageError{Stage: ui.StageChunk, Err: err}
	}

	var chunks []chunk.Chunk
	err = x.timed(ui.StageChunk, func() error {
		for i, u := range units {
			cs, err := chunker.Chunk(ctx, i, u)
			if err != nil {
				return &StageError{Stage: ui.StageChunk, Item: itemOf(u), Err: err}
			}
			chunks = append(chunks, cs...)
			x.renderer.UpdateProgress(ui.ProgressEvent{
				Stage:   ui.StageChunk,
				Current: i + 1,
				Total:   len(units),
				Item:    itemOf(u),
			})
		}
		return nil
	})
	x.res.Chunks = len(chunks)
	if err != nil {
		return nil, err
	}

	x.done(ui.StageChunk, len(chunks), nil)
	return chunks, nil
}

func (x *run) batch(ctx context.Context, chunks []chunk.Chunk) ([]batch.Batch, error) {
	batcher, err := batch.New(x.cfg.TokenLimit, x.tok)
	if err != nil {
		return nil, &StageError{Stage: ui.StageBatch, Err: err}
	}

	var batches []batch.Batch
	err = x.timed(ui.StageBatch, func() error {
		var err error
		batches, err = batcher.Make(ctx, chunks)
		return err
	})
	if err != nil {
		se := &StageError{Stage: ui.StageBatch, Err: err}
		if ie, ok := ierrors.As(err); ok {
			se.Item = ie.Details["chunk_id"]
		}
		return nil, se
	}

	x.res.Batches = len(batches)
	x.done(ui.StageBatch, len(batches), map[string]any{"token_limit": batcher.Limit()})
	return batches, nil
}

// embedAndIndex embeds batches in windows of EmbedWorkers and commits each
// window in batch order before embedding the next.
func (x *run) embedAndIndex(ctx context.Context, batches []batch.Batch) (err error) {
	builder, err := NewBuilder(x.backend, x.cfg.Target)
	if err != nil {
		return &StageError{Stage: ui.StageIndex, Err: err}
	}
	defer func() {
		x.res.Committed = builder.Committed()
		if cerr := builder.Close(); cerr != nil && err == nil {
			err = &StageError{Stage: ui.StageIndex, Err: cerr}
		}
	}()

	workers := x.cfg.EmbedWorkers
	if workers <= 0 {
		workers = DefaultEmbedWorkers
	}

	for lo := 0; lo < len(batches); lo += workers {
		window := batches[lo:min(lo+workers, len(batches))]

		embedded := make([]EmbeddedBatch, len(window))
		err := x.timed(ui.StageEmbed, func() error {
			g, gctx := errgroup.WithContext(ctx)
			for i, b := range window {
				g.Go(func() error {
					vecs, err := x.embedder.EmbedBatch(gctx, b.Texts())
					if err != nil {
						return &StageError{Stage: ui.StageEmbed, Item: batchItem(b), Err: err}
					}
					embedded[i] = EmbeddedBatch{Batch: b, Vectors: vecs}
					return nil
				})
			}
			return g.Wait()
		})
		if err != nil {
			return err
		}
		x.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageEmbed,
			Current: lo + len(window),
			Total:   len(batches),
			Item:    batchItem(window[len(window)-1]),
		})

		for _, eb := range embedded {
			err := x.timed(ui.StageIndex, func() error {
				return builder.Add(ctx, eb)
			})
			if err != nil {
				return &StageError{Stage: ui.StageIndex, Item: batchItem(eb.Batch), Err: err}
			}
			x.renderer.UpdateProgress(ui.ProgressEvent{
				Stage:   ui.StageIndex,
				Current: builder.Committed(),
				Total:   len(batches),
				Item:    batchItem(eb.Batch),
			})
		}
	}

	x.done(ui.StageEmbed, len(batches), map[string]any{"embedder": embed.Describe(x.embedder)})
	x.done(ui.StageIndex, builder.Committed(), map[string]any{
		"collection": x.cfg.Target.Collection,
		"records":    builder.Finish().Records,
	})
	return nil
}

func (x *run) completion() ui.CompletionStats {
	return ui.CompletionStats{
		Collection: x.cfg.Target.Collection,
		Backend:    x.cfg.BackendName,
		Loaded:     x.res.Loaded,
		Malformed:  x.res.Malformed,
		Duplicates: x.res.Duplicates,
		Units:      x.res.Units,
		Chunks:     x.res.Chunks,
		Batches:    x.res.Batches,
		Committed:  x.res.Committed,
		Empty:      x.res.Empty,
		Duration:   x.res.Duration,
		Warnings:   x.warns,
		Stages:     x.res.StageDurations,
		Embedder: ui.EmbedderInfo{
			Provider:   embed.ProviderOf(x.embedder),
			Model:      x.embedder.ModelName(),
			Dimensions: x.embedder.Dimensions(),
		},
	}
}

func itemOf(u document.TextUnit) string {
	if url := u.Attributes[document.AttrURL]; url != "" {
		return url
	}
	return u.Attributes[document.AttrTitle]
}

func batchItem(b batch.Batch) string {
	return fmt.Sprintf("batch %d (%d chunks, %d tokens)", b.Index, len(b.Chunks), b.Tokens)
}
