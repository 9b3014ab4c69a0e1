package embed

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// StaticEmbedder generates embeddings by hashing words and character
// trigrams into a fixed-size vector. It needs no network or model and is
// deterministic, so it backs dry runs and tests.
type StaticEmbedder struct {
	mu     sync.RWMutex
	dims   int
	closed bool
}

// stopWords are dropped before hashing.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "in": true, "is": true,
	"it": true, "of": true, "on": true, "or": true, "that": true, "the": true,
	"this": true, "to": true, "was": true, "with": true,
}

const (
	wordWeight  = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

var wordRegex = regexp.MustCompile(`[\p{L}\p{N}]+`)

// NewStaticEmbedder returns a StaticEmbedder of StaticDimensions.
func NewStaticEmbedder() *StaticEmbedder {
	return NewStaticEmbedderDims(StaticDimensions)
}

// NewStaticEmbedderDims returns a StaticEmbedder producing vectors of length
// dims.
func NewStaticEmbedderDims(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = StaticDimensions
	}
	return &StaticEmbedder{dims: dims}
}

// Embed hashes text into a unit vector. Blank text yields a zero vector.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}
	return e.embed(text), nil
}

func (e *StaticEmbedder) embed(text string) []float32 {
	trimmed := strings.TrimSpace(text)
	vector := make([]float32, e.dims)
	if trimmed == "" {
		return vector
	}

	for _, w := range words(trimmed) {
		vector[hashToIndex(w, e.dims)] += wordWeight
	}
	for _, g := range trigrams(trimmed) {
		vector[hashToIndex(g, e.dims)] += ngramWeight
	}
	return normalizeVector(vector)
}

// words returns lowercased words that are not stop words.
func words(text string) []string {
	var out []string
	for _, w := range wordRegex.FindAllString(text, -1) {
		lower := strings.ToLower(w)
		if !stopWords[lower] {
			out = append(out, lower)
		}
	}
	return out
}

// trigrams returns sliding three-rune windows over the letters and digits of
// text, lowercased.
func trigrams(text string) []string {
	var runes []rune
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			runes = append(runes, r)
		}
	}
	if len(runes) < ngramSize {
		return []string{}
	}

	out := make([]string, 0, len(runes)-ngramSize+1)
	for i := 0; i+ngramSize <= len(runes); i++ {
		out = append(out, string(runes[i:i+ngramSize]))
	}
	return out
}

// hashToIndex maps s to [0, size) with FNV-64.
func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

// EmbedBatch embeds each text in order.
func (e *StaticEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}

	results := make([][]float32, len(texts))
	for i, text := range texts {
		results[i] = e.embed(text)
	}
	return results, nil
}

// Dimensions returns the vector length.
func (e *StaticEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns "static".
func (e *StaticEmbedder) ModelName() string {
	return ProviderStatic
}

// Close marks the embedder closed.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
