package chunk

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Aman-CERP/docingest/internal/diag"
	"github.com/Aman-CERP/docingest/internal/document"
	ierrors "github.com/Aman-CERP/docingest/internal/errors"
	"github.com/Aman-CERP/docingest/internal/tokenize"
)

// DefaultSeparators are the preferred split points, highest priority first.
var DefaultSeparators = []string{"\n\n", "\n"}

// SentinelSeparators put the document-end sentinel ahead of paragraph and line breaks.
var SentinelSeparators = append([]string{document.DocEndSentinel}, DefaultSeparators...)

// chunkNamespace scopes chunk ids.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://docingest.local/chunk"))

// TokenChunkerOptions configures the token chunker.
type TokenChunkerOptions struct {
	ChunkSize    int // tokens per chunk, > 0
	ChunkOverlap int // tokens shared by neighbours, 0 <= overlap < size
	// Separators lists preferred split points, highest priority first.
	// Nil uses DefaultSeparators.
	Separators []string
	// Sink receives a diagnostic for every chunk whose recount exceeds ChunkSize.
	Sink diag.Sink
}

// TokenChunker cuts units on token boundaries.
//
// Chunk i covers tokens [start_i, end_i) with end_i - start_i <= ChunkSize and
// start_{i+1} = end_i - ChunkOverlap, so neighbours share exactly ChunkOverlap
// tokens and dropping the first ChunkOverlap tokens of every chunk after the
// first rebuilds the body. Inside each window the end is pulled back to the
// last separator when one leaves the chunk at least half a window long.
type TokenChunker struct {
	tok  tokenize.Tokenizer
	opts TokenChunkerOptions
}

var _ Chunker = (*TokenChunker)(nil)

// NewTokenChunker validates opts and returns a chunker using tok.
func NewTokenChunker(tok tokenize.Tokenizer, opts TokenChunkerOptions) (*TokenChunker, error) {
	if tok == nil {
		return nil, ierrors.ConfigError("chunker requires a tokenizer", nil)
	}
	if opts.ChunkSize <= 0 {
		return nil, ierrors.ConfigError(fmt.Sprintf("chunk_size must be positive, got %d", opts.ChunkSize), nil)
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		return nil, ierrors.ConfigError(
			fmt.Sprintf("chunk_overlap must be in [0, chunk_size), got %d with chunk_size %d", opts.ChunkOverlap, opts.ChunkSize), nil)
	}
	if opts.Separators == nil {
		opts.Separators = DefaultSeparators
	}
	if opts.Sink == nil {
		opts.Sink = diag.Discard
	}
	return &TokenChunker{tok: tok, opts: opts}, nil
}

// Chunk splits unit. It only fails if ctx is done.
func (c *TokenChunker) Chunk(ctx context.Context, docIndex int, unit document.TextUnit) ([]Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pieces := runePieces(c.tok.Split(unit.Body))
	if len(pieces) <= c.opts.ChunkSize {
		return []Chunk{c.newChunk(docIndex, 0, unit, unit.Body, len(pieces))}, nil
	}

	// offsets[i] is the byte offset where piece i starts; offsets[n] == len(body)
	offsets := make([]int, len(pieces)+1)
	for i, p := range pieces {
		offsets[i+1] = offsets[i] + len(p)
	}

	var (
		chunks []Chunk
		start  int
		n      = len(pieces)
	)
	for {
		end := c.splitPoint(unit.Body, offsets, start, n)
		body := unit.Body[offsets[start]:offsets[end]]
		chunks = append(chunks, c.newChunk(docIndex, len(chunks), unit, body, end-start))

		if end >= n {
			break
		}
		start = end - c.opts.ChunkOverlap
	}
	return chunks, nil
}

// ChunkAll chunks units in order. DocIndex is the unit's position in units.
func (c *TokenChunker) ChunkAll(ctx context.Context, units []document.TextUnit) ([]Chunk, error) {
	var out []Chunk
	for i, u := range units {
		chunks, err := c.Chunk(ctx, i, u)
		if err != nil {
			return out, err
		}
		out = append(out, chunks...)
	}
	return out, nil
}

// splitPoint picks the end of the window starting at start.
func (c *TokenChunker) splitPoint(body string, offsets []int, start, n int) int {
	hi := start + c.opts.ChunkSize
	if hi >= n {
		return n
	}

	lo := start + max(c.opts.ChunkOverlap+1, c.opts.ChunkSize/2)
	if lo > hi {
		lo = hi
	}

	for _, sep := range c.opts.Separators {
		for end := hi; end >= lo; end-- {
			if endsWithSeparator(body[:offsets[end]], sep) {
				return end
			}
		}
	}
	return hi
}

// runePieces folds every piece that starts inside a multi-byte character into
// the piece before it, so offsets between pieces always fall on rune starts.
// Byte-level BPE can spread one character over several tokens.
func runePieces(pieces []string) []string {
	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if len(out) > 0 && p != "" && !utf8.RuneStart(p[0]) {
			out[len(out)-1] += p
			continue
		}
		out = append(out, p)
	}
	return out
}

func endsWithSeparator(text, sep string) bool {
	if strings.HasSuffix(text, sep) {
		return true
	}
	// a marker like [DOC_END] also counts when followed by its line break
	return !strings.HasSuffix(sep, "\n") && strings.HasSuffix(text, sep+"\n")
}

func (c *TokenChunker) newChunk(docIndex, index int, unit document.TextUnit, body string, pieces int) Chunk {
	tokens := c.tok.Count(body)
	id := uuid.NewSHA1(chunkNamespace,
		[]byte(fmt.Sprintf("%s\x00%d\x00%d\x00%s", unit.Attributes[document.AttrURL], docIndex, index, body)))

	if tokens > c.opts.ChunkSize {
		c.opts.Sink.Emit(diag.Event{
			Stage:   "chunk",
			Kind:    diag.KindOverBudget,
			Message: "chunk exceeds chunk_size after recount",
			Attrs: map[string]any{
				"chunk_id":   id.String(),
				"tokens":     tokens,
				"pieces":     pieces,
				"chunk_size": c.opts.ChunkSize,
			},
		})
	}

	return Chunk{
		ID:         id.String(),
		DocIndex:   docIndex,
		Index:      index,
		Body:       body,
		Attributes: unit.Attributes.Clone(),
		Tokens:     tokens,
	}
}
