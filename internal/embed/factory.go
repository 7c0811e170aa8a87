package embed

import (
	"context"
	"fmt"
	"strings"

	"github.com/corpuslens/corpuslens/internal/config"
)

// ProviderType identifies an embedding backend.
type ProviderType string

const (
	// ProviderOllama uses the Ollama HTTP API for embeddings (default, cross-platform).
	ProviderOllama ProviderType = "ollama"

	// ProviderMLX uses a local MLX server for embeddings (opt-in, Apple Silicon only).
	ProviderMLX ProviderType = "mlx"
)

// ParseProvider converts a string to a ProviderType, defaulting to Ollama
// for anything unrecognized.
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(s) {
	case "mlx":
		return ProviderMLX
	default:
		return ProviderOllama
	}
}

// String returns the string representation of the provider.
func (p ProviderType) String() string {
	return string(p)
}

// ValidProviders returns all valid provider names.
func ValidProviders() []string {
	return []string{string(ProviderOllama), string(ProviderMLX)}
}

// IsValidProvider reports whether s names a valid provider.
func IsValidProvider(s string) bool {
	return ParseProvider(s).String() == strings.ToLower(s)
}

// Options configures embedder construction beyond what EmbeddingsConfig
// captures, so callers (tests, CLI flags) can override without mutating config.
type Options struct {
	SkipHealthCheck bool

	// Cache bounds the wrapping embedding cache. Zero value uses the
	// configuration surface's documented defaults.
	Cache config.CacheConfig
}

// NewEmbedder constructs the embedder configured by cfg: an Ollama or MLX
// backend wrapped in an LRU cache. It fails rather than silently falling
// back to a different backend, since a silent switch would produce vectors
// in a different space than whatever was already indexed.
func NewEmbedder(ctx context.Context, cfg config.EmbeddingsConfig, opts Options) (Embedder, error) {
	var (
		embedder Embedder
		err      error
	)

	switch ParseProvider(cfg.Provider) {
	case ProviderMLX:
		mlxCfg := DefaultMLXConfig()
		if cfg.MLXEndpoint != "" {
			mlxCfg.Endpoint = cfg.MLXEndpoint
		}
		mlxCfg.SkipHealthCheck = opts.SkipHealthCheck
		embedder, err = NewMLXEmbedder(ctx, mlxCfg)
		if err != nil {
			return nil, fmt.Errorf("mlx embedder unavailable: %w", err)
		}

	default:
		ollamaCfg := DefaultOllamaConfig()
		if cfg.ModelID != "" {
			ollamaCfg.Model = cfg.ModelID
		}
		if cfg.OllamaHost != "" {
			ollamaCfg.Host = cfg.OllamaHost
		}
		if cfg.BatchSize > 0 {
			ollamaCfg.BatchSize = cfg.BatchSize
		}
		if cfg.Dimension > 0 {
			ollamaCfg.Dimensions = cfg.Dimension
		}
		ollamaCfg.SkipHealthCheck = opts.SkipHealthCheck
		embedder, err = NewOllamaEmbedder(ctx, ollamaCfg)
		if err != nil {
			return nil, fmt.Errorf("ollama embedder unavailable: %w", err)
		}
	}

	if opts.Cache.EmbeddingCacheMB > 0 || opts.Cache.EmbeddingCacheTTLS > 0 {
		return NewCachedEmbedderFromConfig(embedder, opts.Cache), nil
	}
	return NewCachedEmbedderWithDefaults(embedder), nil
}

// EmbedderInfo describes an active embedder.
type EmbedderInfo struct {
	Provider   ProviderType
	ModelID    string
	Dimensions int
	Available  bool
}

// GetInfo returns descriptive information about an embedder, unwrapping a
// CachedEmbedder to identify the underlying backend.
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	info := EmbedderInfo{
		ModelID:    embedder.ModelID(),
		Dimensions: embedder.Dimensions(),
		Available:  embedder.Available(ctx),
	}

	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.inner
	}

	switch inner.(type) {
	case *MLXEmbedder:
		info.Provider = ProviderMLX
	default:
		info.Provider = ProviderOllama
	}

	return info
}

// MustNewEmbedder creates an embedder and panics on failure. Use only in
// tests or initialization code where failure is fatal.
func MustNewEmbedder(ctx context.Context, cfg config.EmbeddingsConfig, opts Options) Embedder {
	embedder, err := NewEmbedder(ctx, cfg, opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create embedder: %v", err))
	}
	return embedder
}
