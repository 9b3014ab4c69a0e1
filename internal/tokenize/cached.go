package tokenize

import (
	"crypto/sha256"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCountCacheSize is the number of counts kept by NewCached.
const DefaultCountCacheSize = 4096

// Cached memoizes Count results. The batcher recounts every chunk body the
// chunker just produced, so hits are common.
type Cached struct {
	inner Tokenizer
	cache *lru.Cache[[sha256.Size]byte, int]
}

// NewCached wraps inner with an LRU of size entries (DefaultCountCacheSize if size <= 0).
func NewCached(inner Tokenizer, size int) *Cached {
	if size <= 0 {
		size = DefaultCountCacheSize
	}
	cache, _ := lru.New[[sha256.Size]byte, int](size)
	return &Cached{inner: inner, cache: cache}
}

// Scheme implements Tokenizer.
func (c *Cached) Scheme() string { return c.inner.Scheme() }

// Count implements Tokenizer.
func (c *Cached) Count(text string) int {
	key := sha256.Sum256([]byte(text))
	if n, ok := c.cache.Get(key); ok {
		return n
	}
	n := c.inner.Count(text)
	c.cache.Add(key, n)
	return n
}

// Split implements Tokenizer and also records the count.
func (c *Cached) Split(text string) []string {
	pieces := c.inner.Split(text)
	c.cache.Add(sha256.Sum256([]byte(text)), len(pieces))
	return pieces
}

// Len returns the number of cached counts.
func (c *Cached) Len() int {
	return c.cache.Len()
}
