package embed

import (
	"context"
	"math"
	"time"
)

const (
	// MinBatchSize is the minimum allowed batch size.
	MinBatchSize = 1

	// MaxBatchSize is the maximum allowed batch size (prevents memory exhaustion).
	MaxBatchSize = 256

	// DefaultBatchSize is the default batch size for embedding requests.
	DefaultBatchSize = 32

	// DefaultTimeout is the timeout for a single embedding request.
	DefaultTimeout = 60 * time.Second

	// DefaultColdTimeout is the timeout used for the startup health check,
	// where the backend may still be loading the model.
	DefaultColdTimeout = 180 * time.Second

	// DefaultMaxRetries is the default number of retry attempts.
	DefaultMaxRetries = 3

	// DefaultDimensions is used when a backend config doesn't pin a dimension.
	DefaultDimensions = 768

	// StaticDimensions is the output dimension of the deterministic static embedder.
	StaticDimensions = 256
)

// Embedder generates vector embeddings for text, implementing the
// embedding service contract: output is L2-normalized and of fixed
// dimension D, and pure with respect to (model_id, text).
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension D.
	Dimensions() int

	// ModelID returns the identifier of the loaded model.
	ModelID() string

	// Available reports whether the backend is reachable and ready.
	Available(ctx context.Context) bool

	// Close releases any held resources (connections, handles).
	Close() error
}

// normalizeVector returns v scaled to unit (L2) length. The zero vector is
// returned unchanged since it has no direction to normalize to.
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
