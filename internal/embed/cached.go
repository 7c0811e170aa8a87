package embed

import (
	"context"
	"time"

	"github.com/corpuslens/corpuslens/internal/cache"
	"github.com/corpuslens/corpuslens/internal/config"
)

// Default embedding cache bounds, matching config.NewConfig()'s defaults for
// CacheConfig.EmbeddingCacheMB/EmbeddingCacheTTLS.
const (
	DefaultEmbeddingCacheMB = 512
	DefaultEmbeddingCacheTTL = time.Hour
)

func vectorSize(v []float32) int {
	return len(v) * 4
}

// CachedEmbedder wraps an Embedder with a byte-budgeted, TTL-bounded cache
// keyed by (model_id, text), so identical chunks and repeated queries skip
// redundant backend calls. The embedding cache is never invalidated by file
// operations, since it's keyed on content rather than any file's state.
type CachedEmbedder struct {
	inner Embedder
	cache *cache.Cache[[]float32]
}

// NewCachedEmbedder creates a cached embedder bounded to maxMB megabytes
// with the given per-entry TTL.
func NewCachedEmbedder(inner Embedder, maxMB int, ttl time.Duration) *CachedEmbedder {
	if maxMB <= 0 {
		maxMB = DefaultEmbeddingCacheMB
	}
	if ttl <= 0 {
		ttl = DefaultEmbeddingCacheTTL
	}
	return &CachedEmbedder{
		inner: inner,
		cache: cache.New(maxMB, ttl, vectorSize),
	}
}

// NewCachedEmbedderWithDefaults creates a cached embedder using the
// configuration surface's default embedding cache bounds.
func NewCachedEmbedderWithDefaults(inner Embedder) *CachedEmbedder {
	return NewCachedEmbedder(inner, DefaultEmbeddingCacheMB, DefaultEmbeddingCacheTTL)
}

// NewCachedEmbedderFromConfig creates a cached embedder using the bounds
// from a loaded CacheConfig.
func NewCachedEmbedderFromConfig(inner Embedder, cfg config.CacheConfig) *CachedEmbedder {
	return NewCachedEmbedder(inner, cfg.EmbeddingCacheMB, time.Duration(cfg.EmbeddingCacheTTLS)*time.Second)
}

func (c *CachedEmbedder) cacheKey(text string) string {
	return cache.EmbeddingKey(c.inner.ModelID(), text)
}

// Embed returns the cached embedding if available, otherwise computes and caches it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)

	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, vec)
	return vec, nil
}

// EmbedBatch generates embeddings for multiple texts, caching each result.
// Individual texts are checked/cached separately for maximum cache reuse.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	uncachedIndices := make([]int, 0, len(texts))
	uncachedTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		key := c.cacheKey(text)
		if vec, ok := c.cache.Get(key); ok {
			results[i] = vec
		} else {
			uncachedIndices = append(uncachedIndices, i)
			uncachedTexts = append(uncachedTexts, text)
		}
	}

	if len(uncachedTexts) == 0 {
		return results, nil
	}

	newEmbeddings, err := c.inner.EmbedBatch(ctx, uncachedTexts)
	if err != nil {
		return nil, err
	}

	for j, idx := range uncachedIndices {
		results[idx] = newEmbeddings[j]
		c.cache.Set(c.cacheKey(texts[idx]), newEmbeddings[j])
	}

	return results, nil
}

// Dimensions returns the embedding dimension (passthrough to inner).
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// ModelID returns the model identifier (passthrough to inner).
func (c *CachedEmbedder) ModelID() string {
	return c.inner.ModelID()
}

// Available checks if the embedder is ready (passthrough to inner).
func (c *CachedEmbedder) Available(ctx context.Context) bool {
	return c.inner.Available(ctx)
}

// Close releases resources and closes the inner embedder.
func (c *CachedEmbedder) Close() error {
	return c.inner.Close()
}

// Inner returns the underlying embedder. This allows callers to access
// embedder-specific features like progress callbacks that are not part
// of the Embedder interface.
func (c *CachedEmbedder) Inner() Embedder {
	return c.inner
}

// CacheStats reports the embedding cache's hit/miss counters and byte usage.
func (c *CachedEmbedder) CacheStats() cache.Stats {
	return c.cache.Stats()
}
