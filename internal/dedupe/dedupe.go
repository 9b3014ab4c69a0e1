// Package dedupe drops documents whose content was already seen in the run.
package dedupe

import (
	"crypto/sha256"
	"strings"

	"golang.org/x/text/cases"

	"github.com/Aman-CERP/docingest/internal/diag"
	"github.com/Aman-CERP/docingest/internal/document"
)

// Signature is the normalized form two bodies are compared by:
// surrounding whitespace trimmed, then Unicode case-folded.
func Signature(body string) string {
	return cases.Fold().String(strings.TrimSpace(body))
}

// Deduplicator keeps the first unit for each signature.
// It is not safe for concurrent use; one instance belongs to one run.
type Deduplicator struct {
	seen    map[[sha256.Size]byte]int
	sink    diag.Sink
	index   int
	dropped int
}

// New returns an empty Deduplicator reporting duplicates to sink.
func New(sink diag.Sink) *Deduplicator {
	if sink == nil {
		sink = diag.Discard
	}
	return &Deduplicator{
		seen: make(map[[sha256.Size]byte]int),
		sink: sink,
	}
}

// Keep reports whether u is the first unit with its signature and records it.
// Units are numbered in the order Keep sees them.
func (d *Deduplicator) Keep(u document.TextUnit) bool {
	pos := d.index
	d.index++

	key := sha256.Sum256([]byte(Signature(u.Body)))
	if first, ok := d.seen[key]; ok {
		d.dropped++
		d.sink.Emit(diag.Event{
			Stage:   "dedupe",
			Kind:    diag.KindDuplicate,
			Message: "duplicate document dropped",
			Attrs: map[string]any{
				"position":   pos,
				"first_seen": first,
				"url":        u.Attributes[document.AttrURL],
			},
		})
		return false
	}
	d.seen[key] = pos
	return true
}

// Filter returns the units of in that Keep accepts, in input order.
func (d *Deduplicator) Filter(in []document.TextUnit) []document.TextUnit {
	out := make([]document.TextUnit, 0, len(in))
	for _, u := range in {
		if d.Keep(u) {
			out = append(out, u)
		}
	}
	return out
}

// Dropped returns how many duplicates have been removed so far.
func (d *Deduplicator) Dropped() int {
	return d.dropped
}

// Dedupe is Filter on a fresh Deduplicator.
func Dedupe(in []document.TextUnit, sink diag.Sink) []document.TextUnit {
	return New(sink).Filter(in)
}
