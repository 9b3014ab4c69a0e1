package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Aman-CERP/docingest/internal/store"
)

// InfoRenderer prints a persisted collection summary.
type InfoRenderer struct {
	out    io.Writer
	styles Styles
}

// NewInfoRenderer creates an InfoRenderer.
func NewInfoRenderer(out io.Writer, noColor bool) *InfoRenderer {
	return &InfoRenderer{out: out, styles: GetStyles(noColor)}
}

// Render writes info as aligned text.
func (r *InfoRenderer) Render(info *store.Info) error {
	w := &errWriter{w: r.out}

	w.printf("%s\n\n", r.styles.Header.Render("Collection: "+info.Collection))
	w.printf("  Location:   %s\n", info.Dir)
	if info.CreatedAt != "" {
		w.printf("  Created:    %s\n", info.CreatedAt)
	}
	if info.Model != "" {
		w.printf("  Model:      %s (%d dims)\n", info.Model, info.Dimensions)
	}
	if info.Scheme != "" {
		w.printf("  Tokenizer:  %s\n", info.Scheme)
	}
	w.printf("\n")

	w.printf("  Chunks:     %d\n", info.Chunks)
	w.printf("  Vectors:    %d\n", info.Vectors)
	if info.FullText >= 0 {
		w.printf("  Full text:  %d\n", info.FullText)
	}
	w.printf("  Status:     %s\n", r.status(info))

	if n := len(info.Missing); n > 0 {
		w.printf("\n  %s\n", r.styles.Warning.Render(fmt.Sprintf("%d chunks without vectors:", n)))
		for _, id := range info.Missing[:min(n, 10)] {
			w.printf("    %s\n", id)
		}
		if n > 10 {
			w.printf("    ... %d more\n", n-10)
		}
	}

	if len(info.Sample) > 0 {
		w.printf("\n  Sample:\n")
		for _, c := range info.Sample {
			w.printf("    %s %s\n", r.styles.Label.Render(c.ID), preview(c.Text, 72))
		}
	}
	return w.err
}

// RenderJSON writes info as indented JSON.
func (r *InfoRenderer) RenderJSON(info *store.Info) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*store.Info
		Consistent bool
	}{info, info.Consistent()})
}

func (r *InfoRenderer) status(info *store.Info) string {
	if info.Consistent() {
		return r.styles.Success.Render("consistent")
	}
	return r.styles.Error.Render("inconsistent")
}

// preview flattens whitespace and clips s to n runes.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
