// Package store persists embedded chunks into a named collection.
// A Backend creates the collection with its first batch of records; the
// returned Collection accepts every later batch.
package store

import (
	"context"
	"fmt"
	"regexp"

	ierrors "github.com/Aman-CERP/docingest/internal/errors"
)

// Backend names accepted by configuration.
const (
	BackendLocal    = "local"
	BackendPGVector = "pgvector"
	BackendMemory   = "memory"
)

// Collection metadata keys written by backends that keep metadata.
const (
	MetaDimensions = "embedding_dimensions"
	MetaModel      = "embedding_model"
	MetaScheme     = "tokenization_scheme"
	MetaCreatedAt  = "created_at"
)

// ErrCollectionExists matches, via errors.Is, a Create call against a
// collection that already holds records.
var ErrCollectionExists = ierrors.New(ierrors.ErrCodeCollectionExists, "collection already exists", nil)

// ErrClosed is returned by operations on a closed collection.
var ErrClosed = fmt.Errorf("collection is closed")

var collectionNameRE = regexp.MustCompile(`^[A-Za-z0-9_-]{1,63}$`)

// ValidCollectionName reports whether name is usable as a directory and
// table name by every backend.
func ValidCollectionName(name string) bool {
	return collectionNameRE.MatchString(name)
}

// Record is one chunk ready for the index: its stable id, text, embedding
// and flat attribute map.
type Record struct {
	ID         string
	Text       string
	Vector     []float32
	Attributes map[string]string
}

// Target names the collection a Backend writes to.
type Target struct {
	Collection string
	// PersistDir is the root directory for on-disk backends.
	PersistDir string
	// Model and Scheme are recorded as collection metadata when supported.
	Model  string
	Scheme string
}

// Backend creates collections.
type Backend interface {
	// Create makes the collection and stores records as its first contents.
	Create(ctx context.Context, target Target, records []Record) (Collection, error)
}

// Collection is an open, writable collection.
type Collection interface {
	// Append adds records after everything already stored.
	Append(ctx context.Context, records []Record) error
	// Count returns the number of records stored.
	Count() int
	Close() error
}

// ErrDimensionMismatch indicates a vector whose length differs from the
// collection's dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// checkDimensions returns the common vector length of records, or dims when
// it is non-zero and every vector matches it.
func checkDimensions(records []Record, dims int) (int, error) {
	for _, r := range records {
		if dims == 0 {
			dims = len(r.Vector)
		}
		if len(r.Vector) != dims || dims == 0 {
			mismatch := ErrDimensionMismatch{Expected: dims, Got: len(r.Vector)}
			return 0, ierrors.New(ierrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("record %s: %v", r.ID, mismatch), mismatch)
		}
	}
	return dims, nil
}
