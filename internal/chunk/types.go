// Package chunk splits text units into token-bounded, overlapping chunks.
package chunk

import (
	"context"

	"github.com/Aman-CERP/docingest/internal/document"
)

// Chunk size defaults, in tokens.
const (
	DefaultChunkSize    = 2000
	DefaultChunkOverlap = 200
)

// Chunk is a token-bounded piece of a text unit.
type Chunk struct {
	// ID is stable for the same source url, document position and chunk position.
	ID string
	// DocIndex is the position of the parent unit in the deduplicated stream.
	DocIndex int
	// Index is the position of this chunk within its parent.
	Index int
	// Body is the chunk text.
	Body string
	// Attributes is a copy of the parent's attributes.
	Attributes document.Attributes
	// Tokens is the token count of Body under the run's scheme.
	Tokens int
}

// Chunker splits one unit into chunks.
type Chunker interface {
	Chunk(ctx context.Context, docIndex int, unit document.TextUnit) ([]Chunk, error)
}
