package index

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/Aman-CERP/docingest/internal/batch"
	ierrors "github.com/Aman-CERP/docingest/internal/errors"
	"github.com/Aman-CERP/docingest/internal/store"
)

// State is the Builder's lifecycle state.
type State int

const (
	// StateUninitialized means no collection exists yet.
	StateUninitialized State = iota
	// StateActive means the collection was created and later batches append.
	StateActive
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// EmbeddedBatch is a batch together with one vector per chunk.
type EmbeddedBatch struct {
	Batch   batch.Batch
	Vectors [][]float32
}

// Result describes what a Builder wrote.
type Result struct {
	// Empty is set when no batch was ever added. Nothing was written.
	Empty bool
	// Batches is the number of committed batches.
	Batches int
	// Records is the number of committed records.
	Records int
}

// Builder writes embedded batches to a backend in order. The first batch
// creates the collection; every later batch appends to it.
//
// Backend errors are returned as they are. Batches committed before a
// failure stay committed and are counted by Committed.
type Builder struct {
	mu         sync.Mutex
	backend    store.Backend
	target     store.Target
	state      State
	collection store.Collection
	committed  int
	records    int
}

// NewBuilder returns an uninitialized Builder for target.
func NewBuilder(backend store.Backend, target store.Target) (*Builder, error) {
	if backend == nil {
		return nil, ierrors.ConfigError("index builder requires a backend", nil)
	}
	return &Builder{backend: backend, target: target}, nil
}

// Add commits one batch. Calls are serialized; ctx is only checked before
// the backend is called.
func (b *Builder) Add(ctx context.Context, eb EmbeddedBatch) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	records, err := Records(eb)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	switch b.state {
	case StateUninitialized:
		c, err := b.backend.Create(ctx, b.target, records)
		if err != nil {
			return err
		}
		b.collection = c
		b.state = StateActive
	case StateActive:
		if err := b.collection.Append(ctx, records); err != nil {
			return err
		}
	}

	b.committed++
	b.records += len(records)
	return nil
}

// Build adds every batch in order and returns the result. It stops at the
// first error and returns the partial result with it.
func (b *Builder) Build(ctx context.Context, batches []EmbeddedBatch) (Result, error) {
	for _, eb := range batches {
		if err := b.Add(ctx, eb); err != nil {
			return b.Finish(), err
		}
	}
	return b.Finish(), nil
}

// Finish reports what has been committed so far.
func (b *Builder) Finish() Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Result{
		Empty:   b.state == StateUninitialized,
		Batches: b.committed,
		Records: b.records,
	}
}

// State returns the current state.
func (b *Builder) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Committed returns the number of batches written.
func (b *Builder) Committed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.committed
}

// Collection returns the created collection, or nil while uninitialized.
func (b *Builder) Collection() store.Collection {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.collection
}

// Close closes the collection, if one was created.
func (b *Builder) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.collection == nil {
		return nil
	}
	return b.collection.Close()
}

// Records pairs each chunk of eb with its vector.
func Records(eb EmbeddedBatch) ([]store.Record, error) {
	chunks := eb.Batch.Chunks
	if len(eb.Vectors) != len(chunks) {
		return nil, ierrors.InternalError(
			fmt.Sprintf("batch %d has %d chunks but %d vectors", eb.Batch.Index, len(chunks), len(eb.Vectors)), nil)
	}

	out := make([]store.Record, len(chunks))
	for i, c := range chunks {
		out[i] = store.Record{
			ID:         c.ID,
			Text:       c.Body,
			Vector:     eb.Vectors[i],
			Attributes: maps.Clone(map[string]string(c.Attributes)),
		}
	}
	return out, nil
}
