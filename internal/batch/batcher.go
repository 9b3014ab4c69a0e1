// Package batch groups chunks into token-budgeted batches for index calls.
package batch

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Aman-CERP/docingest/internal/chunk"
	ierrors "github.com/Aman-CERP/docingest/internal/errors"
	"github.com/Aman-CERP/docingest/internal/tokenize"
)

// DefaultTokenLimit is the default per-batch token budget.
const DefaultTokenLimit = 300_000

// ErrOversizedChunk matches, via errors.Is, the error returned when a single
// chunk exceeds the token limit.
var ErrOversizedChunk = ierrors.New(ierrors.ErrCodeOversizedChunk, "chunk exceeds batch token limit", nil)

// Batch is an ordered, non-empty run of chunks within the token limit.
type Batch struct {
	// Index is the batch position, starting at 0.
	Index  int
	Chunks []chunk.Chunk
	// Tokens is the sum of chunk token counts.
	Tokens int
}

// Texts returns the chunk bodies in order.
func (b Batch) Texts() []string {
	out := make([]string, len(b.Chunks))
	for i, c := range b.Chunks {
		out[i] = c.Body
	}
	return out
}

// Batcher packs chunks greedily, in order.
type Batcher struct {
	limit int
	tok   tokenize.Tokenizer
}

// New returns a Batcher. Chunk sizes are recounted with tok, which must be
// the tokenizer the chunks were cut with.
func New(limit int, tok tokenize.Tokenizer) (*Batcher, error) {
	if limit <= 0 {
		return nil, ierrors.ConfigError(fmt.Sprintf("token_limit must be positive, got %d", limit), nil)
	}
	if tok == nil {
		return nil, ierrors.ConfigError("batcher requires a tokenizer", nil)
	}
	return &Batcher{limit: limit, tok: tok}, nil
}

// Limit returns the per-batch token budget.
func (b *Batcher) Limit() int {
	return b.limit
}

// Make partitions chunks into batches without reordering or dropping any.
//
// A chunk is added to the open batch while the running sum stays within the
// limit; otherwise the open batch is closed and a new one starts with it. A
// chunk that alone exceeds the limit stops batching with ErrOversizedChunk.
// Empty input yields no batches and no error.
func (b *Batcher) Make(ctx context.Context, chunks []chunk.Chunk) ([]Batch, error) {
	var (
		out     []Batch
		current Batch
	)

	for i, c := range chunks {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		n := b.tok.Count(c.Body)
		if n > b.limit {
			return nil, oversized(c, i, n, b.limit)
		}

		if len(current.Chunks) > 0 && current.Tokens+n > b.limit {
			out = append(out, current)
			current = Batch{Index: len(out)}
		}
		current.Chunks = append(current.Chunks, c)
		current.Tokens += n
	}

	if len(current.Chunks) > 0 {
		out = append(out, current)
	}
	return out, nil
}

func oversized(c chunk.Chunk, position, tokens, limit int) error {
	return ierrors.New(ierrors.ErrCodeOversizedChunk,
		fmt.Sprintf("chunk %s has %d tokens, batch limit is %d", c.ID, tokens, limit), nil).
		WithDetail("chunk_id", c.ID).
		WithDetail("position", strconv.Itoa(position)).
		WithDetail("tokens", strconv.Itoa(tokens)).
		WithDetail("limit", strconv.Itoa(limit)).
		WithDetail("url", c.Attributes["url"]).
		WithSuggestion("raise batching.token_limit above chunking.chunk_size, or lower chunk_size")
}
