package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer writes one line per event, for CI logs and pipes.
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	errors []ErrorEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg := event.Message
	if msg == "" {
		msg = event.Item
	}

	switch {
	case event.Total > 0:
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s\n", event.Stage.Icon(), event.Current, event.Total, msg)
	case msg != "":
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), msg)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	if event.Item != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.Item, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stats.Empty {
		_, _ = fmt.Fprintf(r.out, "Complete: nothing to index (%d records loaded) in %s\n",
			stats.Loaded, stats.Duration.Round(100*time.Millisecond))
	} else {
		_, _ = fmt.Fprintf(r.out, "Complete: %d chunks in %d batches written to %s in %s",
			stats.Chunks, stats.Committed, stats.Collection, stats.Duration.Round(100*time.Millisecond))
		if stats.Errors > 0 || stats.Warnings > 0 {
			_, _ = fmt.Fprintf(r.out, " (%d errors, %d warnings)", stats.Errors, stats.Warnings)
		}
		_, _ = fmt.Fprintln(r.out)
	}

	_, _ = fmt.Fprintf(r.out, "Records: %d loaded, %d malformed, %d duplicates, %d indexed\n",
		stats.Loaded, stats.Malformed, stats.Duplicates, stats.Units)

	if len(stats.Stages) > 0 {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, "Stage Breakdown:")
		for _, s := range Stages {
			d, ok := stats.Stages[s]
			if !ok {
				continue
			}
			line := fmt.Sprintf("  %-10s %s", s.String()+":", d.Round(time.Millisecond))
			if s == StageEmbed && stats.Chunks > 0 && d > 0 {
				line += fmt.Sprintf(" (%d chunks @ %.1f/sec)", stats.Chunks, float64(stats.Chunks)/d.Seconds())
			}
			_, _ = fmt.Fprintln(r.out, line)
		}
	}

	if stats.Embedder.Provider != "" {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintf(r.out, "Embedder: %s (%s, %d dims)\n",
			stats.Embedder.Provider, stats.Embedder.Model, stats.Embedder.Dimensions)
	}
	if stats.Backend != "" {
		_, _ = fmt.Fprintf(r.out, "Backend: %s\n", stats.Backend)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}
