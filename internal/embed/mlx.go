package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// MLX model dimensions, keyed by model size.
const (
	MLXSmallDimensions  = 1024 // qwen3-embedding-0.6b
	MLXMediumDimensions = 2560 // qwen3-embedding-4b
	MLXLargeDimensions  = 4096 // qwen3-embedding-8b
)

// MLX default configuration.
const (
	DefaultMLXEndpoint = "http://localhost:9659"
	DefaultMLXModel    = "small"
	DefaultMLXTimeout  = 60 * time.Second
	DefaultMLXRetries  = 2
)

// MLXConfig holds configuration for the MLX embedder.
type MLXConfig struct {
	// Endpoint is the MLX server URL.
	Endpoint string

	// Model is the model size: "small", "medium", or "large".
	Model string

	// Timeout bounds a single embedding request.
	Timeout time.Duration

	// SkipHealthCheck skips the health check during creation, for tests.
	SkipHealthCheck bool
}

// DefaultMLXConfig returns default MLX configuration.
func DefaultMLXConfig() MLXConfig {
	return MLXConfig{
		Endpoint: DefaultMLXEndpoint,
		Model:    DefaultMLXModel,
		Timeout:  DefaultMLXTimeout,
	}
}

// MLXEmbedder generates embeddings using a local MLX server, an optional
// Apple-Silicon-accelerated alternative to Ollama.
type MLXEmbedder struct {
	client *http.Client
	config MLXConfig
	dims   int
	model  string

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*MLXEmbedder)(nil)

// NewMLXEmbedder creates a new MLX embedder.
func NewMLXEmbedder(ctx context.Context, cfg MLXConfig) (*MLXEmbedder, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultMLXEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultMLXModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultMLXTimeout
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     30 * time.Second,
		},
	}

	e := &MLXEmbedder{
		client: client,
		config: cfg,
		model:  cfg.Model,
	}

	switch cfg.Model {
	case "small":
		e.dims = MLXSmallDimensions
	case "medium":
		e.dims = MLXMediumDimensions
	case "large":
		e.dims = MLXLargeDimensions
	default:
		e.dims = MLXLargeDimensions
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := e.healthCheck(checkCtx); err != nil {
			return nil, fmt.Errorf("mlx health check failed: %w", err)
		}

		if dims, err := e.getDimensionsFromServer(checkCtx); err == nil {
			e.dims = dims
		}
	}

	slog.Debug("mlx embedder created",
		"endpoint", cfg.Endpoint, "model", cfg.Model, "dimensions", e.dims)

	return e, nil
}

// healthCheck verifies the MLX server is running and healthy.
func (e *MLXEmbedder) healthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to mlx server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mlx server unhealthy (status %d): %s", resp.StatusCode, string(body))
	}

	var health mlxHealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("failed to decode health response: %w", err)
	}
	if health.Status != "healthy" {
		return fmt.Errorf("mlx server status: %s", health.Status)
	}

	return nil
}

// getDimensionsFromServer gets the dimensions for the configured model.
func (e *MLXEmbedder) getDimensionsFromServer(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Endpoint+"/models", nil)
	if err != nil {
		return 0, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("failed to get models: status %d", resp.StatusCode)
	}

	var result mlxModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, err
	}

	if model, ok := result.Models[e.config.Model]; ok {
		return model.Dimensions, nil
	}
	return 0, fmt.Errorf("model %s not found", e.config.Model)
}

// Embed generates an embedding for a single text.
func (e *MLXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	body, err := json.Marshal(mlxEmbedRequest{Text: text, Model: e.config.Model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, e.config.Endpoint+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding failed (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result mlxEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	embedding := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		embedding[i] = float32(v)
	}

	return normalizeVector(embedding), nil
}

// EmbedBatch generates embeddings for multiple texts, retrying transient failures.
func (e *MLXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	var lastErr error
	for attempt := 0; attempt < DefaultMLXRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if attempt > 0 {
			backoff := time.Duration(500<<attempt) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		timeoutCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		embeddings, err := e.doEmbedBatch(timeoutCtx, texts)
		cancel()

		if err == nil {
			return embeddings, nil
		}
		lastErr = err

		slog.Debug("mlx embedding attempt failed", "attempt", attempt+1, "error", err)
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", DefaultMLXRetries, lastErr)
}

// doEmbedBatch performs the batch HTTP request to the MLX server.
func (e *MLXEmbedder) doEmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(mlxEmbedBatchRequest{Texts: texts, Model: e.config.Model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Endpoint+"/embed_batch", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get batch embeddings: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("batch embedding failed (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result mlxEmbedBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	embeddings := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		embedding := make([]float32, len(emb))
		for j, v := range emb {
			embedding[j] = float32(v)
		}
		embeddings[i] = normalizeVector(embedding)
	}

	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *MLXEmbedder) Dimensions() int {
	return e.dims
}

// ModelID returns the model identifier.
func (e *MLXEmbedder) ModelID() string {
	return fmt.Sprintf("mlx-qwen3-embedding-%s", e.model)
}

// Available checks if the MLX server is reachable and healthy.
func (e *MLXEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return false
	}
	e.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return e.healthCheck(checkCtx) == nil
}

// Close releases pooled connections.
func (e *MLXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	if transport, ok := e.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}

	return nil
}

// MLX API request/response types.

type mlxHealthResponse struct {
	Status      string `json:"status"`
	ModelStatus string `json:"model_status"`
	LoadedModel string `json:"loaded_model"`
}

type mlxModelsResponse struct {
	Models map[string]mlxModelInfo `json:"models"`
}

type mlxModelInfo struct {
	Dimensions int `json:"dimensions"`
}

type mlxEmbedRequest struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

type mlxEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

type mlxEmbedBatchRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model"`
}

type mlxEmbedBatchResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}
