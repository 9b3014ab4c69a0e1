package index

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docingest/internal/batch"
	"github.com/Aman-CERP/docingest/internal/chunk"
	"github.com/Aman-CERP/docingest/internal/document"
	ierrors "github.com/Aman-CERP/docingest/internal/errors"
	"github.com/Aman-CERP/docingest/internal/store"
)

var testTarget = store.Target{Collection: "docs", PersistDir: "unused", Model: "static", Scheme: "words"}

func embedded(index int, ids ...string) EmbeddedBatch {
	b := batch.Batch{Index: index}
	var vecs [][]float32
	for _, id := range ids {
		b.Chunks = append(b.Chunks, chunk.Chunk{
			ID:         id,
			Body:       "body of " + id,
			Attributes: document.Attributes{document.AttrURL: "https://x/" + id},
			Tokens:     3,
		})
		b.Tokens += 3
		vecs = append(vecs, []float32{1, 0, 0})
	}
	return EmbeddedBatch{Batch: b, Vectors: vecs}
}

func TestBuilder_FirstAddCreatesThenAppends(t *testing.T) {
	backend := store.NewMemoryBackend()
	b, err := NewBuilder(backend, testTarget)
	require.NoError(t, err)
	assert.Equal(t, StateUninitialized, b.State())
	assert.Nil(t, b.Collection())

	require.NoError(t, b.Add(context.Background(), embedded(0, "a", "b")))
	assert.Equal(t, StateActive, b.State())
	assert.NotNil(t, b.Collection())

	require.NoError(t, b.Add(context.Background(), embedded(1, "c")))
	require.NoError(t, b.Add(context.Background(), embedded(2, "d")))

	calls := backend.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, store.MemoryCall{Op: store.OpCreate, Collection: "docs", IDs: []string{"a", "b"}}, calls[0])
	assert.Equal(t, store.OpAppend, calls[1].Op)
	assert.Equal(t, []string{"c"}, calls[1].IDs)
	assert.Equal(t, []string{"d"}, calls[2].IDs)

	assert.Equal(t, Result{Batches: 3, Records: 4}, b.Finish())
	assert.Equal(t, 3, b.Committed())
}

func TestBuilder_RecordsCarryChunkData(t *testing.T) {
	backend := store.NewMemoryBackend()
	b, err := NewBuilder(backend, testTarget)
	require.NoError(t, err)

	require.NoError(t, b.Add(context.Background(), embedded(0, "a")))

	got := backend.Records("docs")
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "body of a", got[0].Text)
	assert.Equal(t, []float32{1, 0, 0}, got[0].Vector)
	assert.Equal(t, "https://x/a", got[0].Attributes["url"])
}

func TestBuilder_NoBatchesIsEmptyNotError(t *testing.T) {
	backend := store.NewMemoryBackend()
	b, err := NewBuilder(backend, testTarget)
	require.NoError(t, err)

	res, err := b.Build(context.Background(), nil)

	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Equal(t, StateUninitialized, b.State())
	assert.Empty(t, backend.Calls())
	assert.NoError(t, b.Close())
}

func TestBuilder_CreateErrorReturnedUnmodified(t *testing.T) {
	boom := errors.New("disk full")
	backend := store.NewMemoryBackend()
	backend.FailAt, backend.Err = 1, boom
	b, err := NewBuilder(backend, testTarget)
	require.NoError(t, err)

	err = b.Add(context.Background(), embedded(0, "a"))

	assert.Same(t, boom, err)
	assert.Equal(t, StateUninitialized, b.State())
	assert.Zero(t, b.Committed())
}

func TestBuilder_PartialWriteIsSurfaced(t *testing.T) {
	boom := errors.New("connection reset")
	backend := store.NewMemoryBackend()
	backend.FailAt, backend.Err = 3, boom
	b, err := NewBuilder(backend, testTarget)
	require.NoError(t, err)

	res, err := b.Build(context.Background(), []EmbeddedBatch{
		embedded(0, "a"), embedded(1, "b"), embedded(2, "c"), embedded(3, "d"),
	})

	assert.Same(t, boom, err)
	assert.Equal(t, Result{Batches: 2, Records: 2}, res)
	assert.Len(t, backend.Records("docs"), 2)
	assert.Len(t, backend.Calls(), 3, "no call after the failure")
}

func TestBuilder_CancelledContextSkipsBackend(t *testing.T) {
	backend := store.NewMemoryBackend()
	b, err := NewBuilder(backend, testTarget)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = b.Add(ctx, embedded(0, "a"))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, backend.Calls())
}

func TestBuilder_VectorCountMismatch(t *testing.T) {
	backend := store.NewMemoryBackend()
	b, err := NewBuilder(backend, testTarget)
	require.NoError(t, err)

	eb := embedded(0, "a", "b")
	eb.Vectors = eb.Vectors[:1]

	err = b.Add(context.Background(), eb)

	assert.Equal(t, ierrors.ErrCodeInternal, ierrors.GetCode(err))
	assert.Empty(t, backend.Calls())
}

func TestBuilder_CloseClosesCollection(t *testing.T) {
	backend := store.NewMemoryBackend()
	b, err := NewBuilder(backend, testTarget)
	require.NoError(t, err)
	require.NoError(t, b.Add(context.Background(), embedded(0, "a")))

	require.NoError(t, b.Close())

	err = b.Add(context.Background(), embedded(1, "b"))
	assert.ErrorIs(t, err, store.ErrClosed)
	assert.Equal(t, 1, b.Committed())
}

func TestNewBuilder_RequiresBackend(t *testing.T) {
	_, err := NewBuilder(nil, testTarget)
	assert.Equal(t, ierrors.ErrCodeConfigInvalid, ierrors.GetCode(err))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "unknown", State(7).String())
}
