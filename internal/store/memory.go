package store

import (
	"context"
	"slices"
	"sync"
)

// Operations recorded by MemoryBackend.
const (
	OpCreate = "create"
	OpAppend = "append"
)

// MemoryCall is one Create or Append seen by a MemoryBackend.
type MemoryCall struct {
	Op         string
	Collection string
	IDs        []string
}

// MemoryBackend keeps collections in process and records every call.
// It backs dry runs and tests.
type MemoryBackend struct {
	// FailAt makes the n-th call (1-based, Create and Append counted
	// together) return Err without storing anything. Zero never fails.
	FailAt int
	Err    error

	mu          sync.Mutex
	calls       []MemoryCall
	collections map[string]*MemoryCollection
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{collections: make(map[string]*MemoryCollection)}
}

// Create stores records under target.Collection.
func (b *MemoryBackend) Create(_ context.Context, target Target, records []Record) (Collection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.collections == nil {
		b.collections = make(map[string]*MemoryCollection)
	}
	if err := b.record(OpCreate, target.Collection, records); err != nil {
		return nil, err
	}
	if _, ok := b.collections[target.Collection]; ok {
		return nil, ErrCollectionExists
	}

	c := &MemoryCollection{backend: b, name: target.Collection}
	c.records = append(c.records, clone(records)...)
	b.collections[target.Collection] = c
	return c, nil
}

// record notes a call and reports the injected failure, if due.
// Must hold b.mu.
func (b *MemoryBackend) record(op, name string, records []Record) error {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	b.calls = append(b.calls, MemoryCall{Op: op, Collection: name, IDs: ids})
	if b.FailAt > 0 && len(b.calls) == b.FailAt {
		return b.Err
	}
	return nil
}

// Calls returns every call seen so far.
func (b *MemoryBackend) Calls() []MemoryCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.calls)
}

// Records returns the records stored in a collection.
func (b *MemoryBackend) Records(collection string) []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.collections[collection]
	if !ok {
		return nil
	}
	return slices.Clone(c.records)
}

// MemoryCollection is a collection owned by a MemoryBackend.
type MemoryCollection struct {
	backend *MemoryBackend
	name    string
	records []Record
	closed  bool
}

// Append stores records after the existing ones.
func (c *MemoryCollection) Append(_ context.Context, records []Record) error {
	b := c.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if err := b.record(OpAppend, c.name, records); err != nil {
		return err
	}
	c.records = append(c.records, clone(records)...)
	return nil
}

// Count returns the number of stored records.
func (c *MemoryCollection) Count() int {
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	return len(c.records)
}

// Close marks the collection closed. The records stay readable through the
// backend.
func (c *MemoryCollection) Close() error {
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	c.closed = true
	return nil
}

func clone(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		r.Vector = slices.Clone(r.Vector)
		out[i] = r
	}
	return out
}
