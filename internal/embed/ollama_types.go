package embed

import "time"

// Ollama API constants
const (
	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel matches the default embeddings.model_id in config.
	DefaultOllamaModel = "nomic-embed-text"

	// OllamaConnectTimeout is the default OllamaConfig.ConnectTimeout. The
	// startup health check in NewOllamaEmbedder is bounded by
	// DefaultColdTimeout, not by this value.
	OllamaConnectTimeout = 5 * time.Second

	// OllamaPoolSize is the HTTP connection pool size.
	OllamaPoolSize = 4
)

// FallbackOllamaModels are tried in order if the primary model isn't pulled.
var FallbackOllamaModels = []string{
	"mxbai-embed-large",
	"all-minilm",
}

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	// Host is the Ollama API endpoint.
	Host string

	// Model is the embedding model to use.
	Model string

	// FallbackModels are tried in order if the primary model is unavailable.
	FallbackModels []string

	// Dimensions overrides auto-detection when non-zero.
	Dimensions int

	// BatchSize bounds the number of texts sent per /api/embed call.
	BatchSize int

	// Timeout bounds a single embedding request.
	Timeout time.Duration

	// ConnectTimeout is stored with the configuration but not read by
	// NewOllamaEmbedder; the startup health check uses DefaultColdTimeout.
	ConnectTimeout time.Duration

	// MaxRetries is the number of attempts for transient failures.
	MaxRetries int

	// PoolSize is the HTTP connection pool size.
	PoolSize int

	// SkipHealthCheck skips the initial availability check, for tests.
	SkipHealthCheck bool

	// ProgressFunc, if set, is called after each batch with (completed, total).
	ProgressFunc func(completed, total int)
}

// DefaultOllamaConfig returns sensible defaults.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:           DefaultOllamaHost,
		Model:          DefaultOllamaModel,
		FallbackModels: FallbackOllamaModels,
		Dimensions:     0, // auto-detect
		BatchSize:      DefaultBatchSize,
		Timeout:        DefaultTimeout,
		ConnectTimeout: OllamaConnectTimeout,
		MaxRetries:     DefaultMaxRetries,
		PoolSize:       OllamaPoolSize,
	}
}

// OllamaEmbedRequest is the Ollama /api/embed request body.
type OllamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"` // string or []string for batch
}

// OllamaEmbedResponse is the Ollama /api/embed response body.
type OllamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// OllamaModelListResponse is the Ollama /api/tags response body.
type OllamaModelListResponse struct {
	Models []OllamaModelInfo `json:"models"`
}

// OllamaModelInfo describes an installed model.
type OllamaModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}
