// Package ui renders ingestion progress to a terminal or a plain stream.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage is one step of the ingestion pipeline.
type Stage int

const (
	// StageLoad reads raw records from the source.
	StageLoad Stage = iota
	// StageNormalize turns records into document units.
	StageNormalize
	// StageDedupe drops units with repeated bodies.
	StageDedupe
	// StageChunk splits units into token windows.
	StageChunk
	// StageBatch groups chunks under the token limit.
	StageBatch
	// StageEmbed computes vectors for each batch.
	StageEmbed
	// StageIndex commits batches to the collection.
	StageIndex
	// StageComplete indicates the run is over.
	StageComplete
)

// Stages lists the working stages in pipeline order.
var Stages = []Stage{StageLoad, StageNormalize, StageDedupe, StageChunk, StageBatch, StageEmbed, StageIndex}

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageLoad:
		return "Load"
	case StageNormalize:
		return "Normalize"
	case StageDedupe:
		return "Dedupe"
	case StageChunk:
		return "Chunk"
	case StageBatch:
		return "Batch"
	case StageEmbed:
		return "Embed"
	case StageIndex:
		return "Index"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short tag used in plain output.
func (s Stage) Icon() string {
	switch s {
	case StageLoad:
		return "LOAD"
	case StageNormalize:
		return "NORM"
	case StageDedupe:
		return "DEDUP"
	case StageChunk:
		return "CHUNK"
	case StageBatch:
		return "BATCH"
	case StageEmbed:
		return "EMBED"
	case StageIndex:
		return "INDEX"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent represents a progress update.
type ProgressEvent struct {
	Stage   Stage
	Current int
	Total   int
	// Item names the record, chunk or batch being worked on.
	Item    string
	Message string
}

// ErrorEvent represents a problem met during the run.
type ErrorEvent struct {
	Item   string
	Err    error
	IsWarn bool
}

// StageTimings holds the wall time of each stage.
type StageTimings map[Stage]time.Duration

// Total sums every stage.
func (t StageTimings) Total() time.Duration {
	var d time.Duration
	for _, v := range t {
		d += v
	}
	return d
}

// EmbedderInfo describes the embedding provider used.
type EmbedderInfo struct {
	Provider   string
	Model      string
	Dimensions int
}

// CompletionStats summarizes a finished run.
type CompletionStats struct {
	Collection string
	Backend    string

	Loaded     int
	Malformed  int
	Duplicates int
	Units      int
	Chunks     int
	Batches    int
	Committed  int
	// Empty is set when no batch was produced and nothing was written.
	Empty bool

	Duration time.Duration
	Errors   int
	Warnings int
	Stages   StageTimings
	Embedder EmbedderInfo
}

// Renderer defines the interface for progress display.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// UpdateProgress updates progress display.
	UpdateProgress(event ProgressEvent)

	// AddError adds an error to display.
	AddError(event ErrorEvent)

	// Complete marks rendering as complete with summary.
	Complete(stats CompletionStats)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Config configures the UI renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	// Title is shown in the TUI panel header.
	Title string
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithTitle sets the panel title.
func WithTitle(title string) ConfigOption {
	return func(c *Config) {
		c.Title = title
	}
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer picks the TUI for interactive terminals and plain text for
// pipes, CI, or when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}

// Nop is a Renderer that draws nothing.
type Nop struct{}

func (Nop) Start(context.Context) error  { return nil }
func (Nop) UpdateProgress(ProgressEvent) {}
func (Nop) AddError(ErrorEvent)          {}
func (Nop) Complete(CompletionStats)     {}
func (Nop) Stop() error                  { return nil }
