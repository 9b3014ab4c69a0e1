// Package embed turns chunk text into vectors.
//
// Providers: a deterministic hash embedder for offline runs, a local Ollama
// server, an OpenAI-compatible HTTP API and Google Gemini. Every provider is
// wrapped in an LRU cache by New.
package embed

import (
	"context"
	"errors"
	"math"
	"time"
)

const (
	// MaxBatchSize caps texts per provider request.
	MaxBatchSize = 256

	// DefaultBatchSize is the default number of texts per provider request.
	DefaultBatchSize = 32

	// DefaultTimeout bounds a single provider request.
	DefaultTimeout = 120 * time.Second

	// DefaultRequestsPerSecond throttles remote APIs.
	DefaultRequestsPerSecond = 5.0

	// StaticDimensions is the static embedder's vector length.
	StaticDimensions = 256
)

// ErrClosed is returned by a closed embedder.
var ErrClosed = errors.New("embedder is closed")

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding of a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one embedding per text, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding length.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	Close() error
}

// normalizeVector returns v scaled to unit length. Zero vectors are
// returned as-is.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}

// inBatches calls fn for consecutive slices of at most size texts and
// concatenates the results.
func inBatches(ctx context.Context, texts []string, size int, fn func(context.Context, []string) ([][]float32, error)) ([][]float32, error) {
	if size <= 0 {
		size = DefaultBatchSize
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		vecs, err := fn(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// withPrefix prepends prefix to every text.
func withPrefix(prefix string, texts []string) []string {
	if prefix == "" {
		return texts
	}
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = prefix + t
	}
	return out
}
