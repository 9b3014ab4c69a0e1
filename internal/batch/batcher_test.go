package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docingest/internal/chunk"
	ierrors "github.com/Aman-CERP/docingest/internal/errors"
	"github.com/Aman-CERP/docingest/internal/tokenize"
)

// chunkOf returns a chunk whose body is n single-letter words (2n-1 word tokens).
func chunkOf(id string, words int) chunk.Chunk {
	w := make([]string, words)
	for i := range w {
		w[i] = "x"
	}
	return chunk.Chunk{ID: id, Body: strings.Join(w, " ")}
}

// tokensChunk returns a chunk of exactly n tokens under the words scheme:
// alternating "x" and "." never merge into one piece.
func tokensChunk(id string, n int) chunk.Chunk {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			sb.WriteString("x")
		} else {
			sb.WriteString(".")
		}
	}
	return chunk.Chunk{ID: id, Body: sb.String()}
}

func ids(batches []Batch) [][]string {
	out := make([][]string, len(batches))
	for i, b := range batches {
		for _, c := range b.Chunks {
			out[i] = append(out[i], c.ID)
		}
	}
	return out
}

func newBatcher(t *testing.T, limit int) *Batcher {
	t.Helper()
	b, err := New(limit, tokenize.NewWords())
	require.NoError(t, err)
	return b
}

func TestMake_GreedyInOrder(t *testing.T) {
	b := newBatcher(t, 10)
	chunks := []chunk.Chunk{
		tokensChunk("a", 4), tokensChunk("b", 5), tokensChunk("c", 3),
		tokensChunk("d", 10), tokensChunk("e", 1),
	}

	batches, err := b.Make(context.Background(), chunks)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"a", "b"}, {"c"}, {"d"}, {"e"}}, ids(batches))
	assert.Equal(t, []int{9, 3, 10, 1}, []int{batches[0].Tokens, batches[1].Tokens, batches[2].Tokens, batches[3].Tokens})
	for i, bt := range batches {
		assert.Equal(t, i, bt.Index)
	}
}

func TestMake_BudgetAndCoverage(t *testing.T) {
	tok := tokenize.NewWords()
	var chunks []chunk.Chunk
	for i := 0; i < 200; i++ {
		chunks = append(chunks, tokensChunk(fmt.Sprintf("c%03d", i), 1+(i*7)%23))
	}

	for _, limit := range []int{23, 24, 50, 97, 1000, 100000} {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			batches, err := newBatcher(t, limit).Make(context.Background(), chunks)
			require.NoError(t, err)

			var flat []chunk.Chunk
			for _, bt := range batches {
				require.NotEmpty(t, bt.Chunks)
				sum := 0
				for _, c := range bt.Chunks {
					sum += tok.Count(c.Body)
				}
				assert.LessOrEqual(t, sum, limit)
				assert.Equal(t, sum, bt.Tokens)
				flat = append(flat, bt.Chunks...)
			}
			assert.Equal(t, chunks, flat)
		})
	}
}

func TestMake_OversizedChunkIsFatal(t *testing.T) {
	b := newBatcher(t, 10)
	chunks := []chunk.Chunk{tokensChunk("ok", 3), tokensChunk("big", 11)}
	chunks[1].Attributes = map[string]string{"url": "https://x/big"}

	batches, err := b.Make(context.Background(), chunks)

	require.Error(t, err)
	assert.Nil(t, batches)
	assert.True(t, errors.Is(err, ErrOversizedChunk))
	assert.True(t, ierrors.IsFatal(err))

	ie, ok := ierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "big", ie.Details["chunk_id"])
	assert.Equal(t, "1", ie.Details["position"])
	assert.Equal(t, "11", ie.Details["tokens"])
	assert.Equal(t, "https://x/big", ie.Details["url"])
}

func TestMake_SingleChunkOfLimitPlusOne(t *testing.T) {
	_, err := newBatcher(t, 5).Make(context.Background(), []chunk.Chunk{tokensChunk("x", 6)})
	assert.ErrorIs(t, err, ErrOversizedChunk)
}

func TestMake_ChunkExactlyAtLimit(t *testing.T) {
	batches, err := newBatcher(t, 5).Make(context.Background(), []chunk.Chunk{tokensChunk("x", 5), tokensChunk("y", 5)})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"x"}, {"y"}}, ids(batches))
}

func TestMake_EmptyInput(t *testing.T) {
	batches, err := newBatcher(t, 5).Make(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestMake_ZeroTokenChunksStayInBatch(t *testing.T) {
	batches, err := newBatcher(t, 3).Make(context.Background(), []chunk.Chunk{
		tokensChunk("a", 3), {ID: "empty"}, tokensChunk("b", 1),
	})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "empty"}, {"b"}}, ids(batches))
}

func TestMake_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newBatcher(t, 5).Make(ctx, []chunk.Chunk{chunkOf("a", 1)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(0, tokenize.NewWords())
	assert.Error(t, err)

	_, err = New(10, nil)
	assert.Error(t, err)

	b, err := New(10, tokenize.NewWords())
	require.NoError(t, err)
	assert.Equal(t, 10, b.Limit())
}

func TestBatchTexts(t *testing.T) {
	b := Batch{Chunks: []chunk.Chunk{{Body: "one"}, {Body: "two"}}}
	assert.Equal(t, []string{"one", "two"}, b.Texts())
}
