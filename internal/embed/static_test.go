package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vectorMagnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (vectorMagnitude(a) * vectorMagnitude(b))
}

func TestStaticEmbedder_DimensionsAndNorm(t *testing.T) {
	e := NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	vec, err := e.Embed(context.Background(), "Configure the Liferay portal cluster")
	require.NoError(t, err)
	assert.Len(t, vec, StaticDimensions)
	assert.InDelta(t, 1.0, vectorMagnitude(vec), 0.001)
	assert.Equal(t, StaticDimensions, e.Dimensions())
	assert.Equal(t, "static", e.ModelName())
}

func TestStaticEmbedder_CustomDimensions(t *testing.T) {
	e := NewStaticEmbedderDims(64)
	vecs, err := e.EmbedBatch(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Len(t, vecs[0], 64)
	assert.Equal(t, 64, e.Dimensions())
}

func TestStaticEmbedder_Deterministic(t *testing.T) {
	text := "Deploy a module with Blade CLI"

	a, err := NewStaticEmbedder().Embed(context.Background(), text)
	require.NoError(t, err)
	b, err := NewStaticEmbedder().Embed(context.Background(), text)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestStaticEmbedder_SimilarTextIsCloser(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	base, _ := e.Embed(ctx, "configure the search index for documents")
	near, _ := e.Embed(ctx, "configuring the document search index")
	far, _ := e.Embed(ctx, "quarterly revenue grew in every region")

	assert.Greater(t, cosine(base, near), cosine(base, far))
}

func TestStaticEmbedder_BlankTextIsZero(t *testing.T) {
	vec, err := NewStaticEmbedder().Embed(context.Background(), "   \n")
	require.NoError(t, err)
	assert.Zero(t, vectorMagnitude(vec))
}

func TestStaticEmbedder_StopWordsOnly(t *testing.T) {
	// Stop words drop out but trigrams still land.
	vec, err := NewStaticEmbedder().Embed(context.Background(), "the and of")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, vectorMagnitude(vec), 0.001)
}

func TestStaticEmbedder_Closed(t *testing.T) {
	e := NewStaticEmbedder()
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = e.EmbedBatch(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestTrigrams(t *testing.T) {
	assert.Equal(t, []string{"abc", "bcd"}, trigrams("a-b C d"))
	assert.Equal(t, []string{}, trigrams("ab"))
	assert.Equal(t, []string{"äöü"}, trigrams("ÄÖÜ"))
}
