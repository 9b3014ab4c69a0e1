// Package diag carries pipeline diagnostics (duplicates, malformed records,
// stage summaries) from the ingestion stages to whoever is listening.
//
// Stages never log through the global logger; they receive a Sink.
package diag

import (
	"context"
	"log/slog"
	"sync"
)

// Kinds emitted by the pipeline stages.
const (
	KindMalformedRecord = "malformed_record"
	KindDuplicate       = "duplicate"
	KindOverBudget      = "chunk_over_budget"
	KindStageDone       = "stage_done"
	KindEmptyInput      = "empty_input"
)

// Event is one diagnostic.
type Event struct {
	Stage   string
	Kind    string
	Message string
	Attrs   map[string]any
}

// Sink receives diagnostics. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(Event)
}

// Discard drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(Event) {}

// SlogSink forwards events to a structured logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink returns a sink writing to logger, or to slog.Default() when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// Emit logs the event. Stage summaries go out at info, everything else at warn.
func (s *SlogSink) Emit(e Event) {
	level := slog.LevelWarn
	if e.Kind == KindStageDone || e.Kind == KindEmptyInput {
		level = slog.LevelInfo
	}

	attrs := make([]slog.Attr, 0, len(e.Attrs)+2)
	attrs = append(attrs, slog.String("stage", e.Stage), slog.String("kind", e.Kind))
	for k, v := range e.Attrs {
		attrs = append(attrs, slog.Any(k, v))
	}
	s.logger.LogAttrs(context.Background(), level, e.Message, attrs...)
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit records e.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events of the given kind were recorded.
func (r *Recorder) Count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Tee fans events out to several sinks.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

type tee []Sink

func (t tee) Emit(e Event) {
	for _, s := range t {
		if s != nil {
			s.Emit(e)
		}
	}
}
