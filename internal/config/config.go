package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete corpuslens configuration, mirroring the
// configuration surface table in spec.md §6.
type Config struct {
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Indexer    IndexerConfig    `yaml:"indexer" json:"indexer"`
	VectorDB   VectorDBConfig   `yaml:"vector_db" json:"vector_db"`
	Watch      WatchConfig      `yaml:"watch" json:"watch"`
	OCR        OCRConfig        `yaml:"ocr" json:"ocr"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Registry   RegistryConfig   `yaml:"registry" json:"registry"`
	LogLevel   string           `yaml:"log_level" json:"log_level"`
}

// EmbeddingsConfig configures the embedding service (spec.md §4.3).
type EmbeddingsConfig struct {
	// ModelID is which sentence-embedding model to load.
	ModelID string `yaml:"model_id" json:"model_id"`
	// Dimension is the asserted vector dimension (must match the model).
	Dimension int `yaml:"embedding_dim" json:"embedding_dim"`
	// Provider selects the embedder backend: "ollama" (default) or "mlx".
	Provider string `yaml:"provider" json:"provider"`
	// BatchSize is how many texts are encoded per backend call.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// OllamaHost is the Ollama API endpoint used by the default backend.
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	// MLXEndpoint is the MLX server endpoint used by the optional backend.
	MLXEndpoint string `yaml:"mlx_endpoint" json:"mlx_endpoint"`
}

// ChunkingConfig configures the text chunker (spec.md §4.2).
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`
}

// SearchConfig configures the search/answer orchestration (spec.md §4.8).
type SearchConfig struct {
	// MaxTopK is the upper bound enforced on any search request.
	MaxTopK int `yaml:"max_top_k" json:"max_top_k"`
}

// CacheConfig configures the embedding and search caches (spec.md §4.4).
type CacheConfig struct {
	EmbeddingCacheMB    int `yaml:"embedding_cache_mb" json:"embedding_cache_mb"`
	EmbeddingCacheTTLS  int `yaml:"embedding_cache_ttl_s" json:"embedding_cache_ttl_s"`
	SearchCacheMB       int `yaml:"search_cache_mb" json:"search_cache_mb"`
	SearchCacheTTLS     int `yaml:"search_cache_ttl_s" json:"search_cache_ttl_s"`
}

// IndexerConfig configures the indexing pipeline (spec.md §4.6/§5).
type IndexerConfig struct {
	WorkerPoolSize int `yaml:"worker_pool_size" json:"worker_pool_size"`
}

// VectorDBConfig configures the external vector-store adapter (spec.md §4.5).
type VectorDBConfig struct {
	URL            string `yaml:"vector_store_url" json:"vector_store_url"`
	CollectionName string `yaml:"collection_name" json:"collection_name"`
}

// WatchConfig configures the filesystem watch manager (spec.md §4.7).
type WatchConfig struct {
	DebounceMS int `yaml:"debounce_ms" json:"debounce_ms"`
}

// OCRConfig configures OCR tuning for image-only PDF pages and images.
type OCRConfig struct {
	DPI int `yaml:"ocr_dpi" json:"ocr_dpi"`
	PSM int `yaml:"ocr_psm" json:"ocr_psm"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" json:"port"`
}

// RegistryConfig configures the SQLite directory/file registry (spec.md §6).
type RegistryConfig struct {
	Path string `yaml:"path" json:"path"`
}

// defaultRegistryPath returns the default location of the SQLite registry.
func defaultRegistryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".corpuslens", "registry.db")
	}
	return filepath.Join(home, ".corpuslens", "registry.db")
}

// NewConfig returns a Config populated with the defaults spec.md §6/§4.4
// calls out explicitly, and sensible defaults everywhere else.
func NewConfig() *Config {
	return &Config{
		Embeddings: EmbeddingsConfig{
			ModelID:     "nomic-embed-text",
			Dimension:   768,
			Provider:    "ollama",
			BatchSize:   32,
			OllamaHost:  "http://localhost:11434",
			MLXEndpoint: "http://localhost:9659",
		},
		Chunking: ChunkingConfig{
			ChunkSize:    800,
			ChunkOverlap: 120,
		},
		Search: SearchConfig{
			MaxTopK: 100,
		},
		Cache: CacheConfig{
			EmbeddingCacheMB:   512,
			EmbeddingCacheTTLS: 3600,
			SearchCacheMB:      128,
			SearchCacheTTLS:    1800,
		},
		Indexer: IndexerConfig{
			WorkerPoolSize: runtime.NumCPU(),
		},
		VectorDB: VectorDBConfig{
			URL:            "http://localhost:6334",
			CollectionName: "corpuslens",
		},
		Watch: WatchConfig{
			DebounceMS: 300,
		},
		OCR: OCRConfig{
			DPI: 300,
			PSM: 3,
		},
		Server: ServerConfig{
			Port: 8085,
		},
		Registry: RegistryConfig{
			Path: defaultRegistryPath(),
		},
		LogLevel: "info",
	}
}

// GetUserConfigPath returns the path to the user configuration file,
// following the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/corpuslens/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/corpuslens/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "corpuslens", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "corpuslens", "config.yaml")
	}
	return filepath.Join(home, ".config", "corpuslens", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load loads configuration from the specified directory, applying
// overrides in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/corpuslens/config.yaml)
//  3. Project config (.corpuslens.yaml in dir)
//  4. Environment variables (CORPUSLENS_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config from %s: %w", userPath, err)
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .corpuslens.yaml or
// .corpuslens.yml in dir. Absence of either file is not an error.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".corpuslens.yaml", ".corpuslens.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML loads and merges configuration from a YAML file, overwriting
// only the fields the file sets.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith overwrites non-zero fields of c with the corresponding fields
// of other.
func (c *Config) mergeWith(other *Config) {
	if other.Embeddings.ModelID != "" {
		c.Embeddings.ModelID = other.Embeddings.ModelID
	}
	if other.Embeddings.Dimension != 0 {
		c.Embeddings.Dimension = other.Embeddings.Dimension
	}
	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.MLXEndpoint != "" {
		c.Embeddings.MLXEndpoint = other.Embeddings.MLXEndpoint
	}

	if other.Chunking.ChunkSize != 0 {
		c.Chunking.ChunkSize = other.Chunking.ChunkSize
	}
	if other.Chunking.ChunkOverlap != 0 {
		c.Chunking.ChunkOverlap = other.Chunking.ChunkOverlap
	}

	if other.Search.MaxTopK != 0 {
		c.Search.MaxTopK = other.Search.MaxTopK
	}

	if other.Cache.EmbeddingCacheMB != 0 {
		c.Cache.EmbeddingCacheMB = other.Cache.EmbeddingCacheMB
	}
	if other.Cache.EmbeddingCacheTTLS != 0 {
		c.Cache.EmbeddingCacheTTLS = other.Cache.EmbeddingCacheTTLS
	}
	if other.Cache.SearchCacheMB != 0 {
		c.Cache.SearchCacheMB = other.Cache.SearchCacheMB
	}
	if other.Cache.SearchCacheTTLS != 0 {
		c.Cache.SearchCacheTTLS = other.Cache.SearchCacheTTLS
	}

	if other.Indexer.WorkerPoolSize != 0 {
		c.Indexer.WorkerPoolSize = other.Indexer.WorkerPoolSize
	}

	if other.VectorDB.URL != "" {
		c.VectorDB.URL = other.VectorDB.URL
	}
	if other.VectorDB.CollectionName != "" {
		c.VectorDB.CollectionName = other.VectorDB.CollectionName
	}

	if other.Watch.DebounceMS != 0 {
		c.Watch.DebounceMS = other.Watch.DebounceMS
	}

	if other.OCR.DPI != 0 {
		c.OCR.DPI = other.OCR.DPI
	}
	if other.OCR.PSM != 0 {
		c.OCR.PSM = other.OCR.PSM
	}

	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}

	if other.Registry.Path != "" {
		c.Registry.Path = other.Registry.Path
	}

	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

// applyEnvOverrides applies CORPUSLENS_* environment variable overrides,
// the highest-precedence configuration layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CORPUSLENS_MODEL_ID"); v != "" {
		c.Embeddings.ModelID = v
	}
	if v := os.Getenv("CORPUSLENS_EMBEDDING_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embeddings.Dimension = n
		}
	}
	if v := os.Getenv("CORPUSLENS_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("CORPUSLENS_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("CORPUSLENS_MLX_ENDPOINT"); v != "" {
		c.Embeddings.MLXEndpoint = v
	}
	if v := os.Getenv("CORPUSLENS_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Chunking.ChunkSize = n
		}
	}
	if v := os.Getenv("CORPUSLENS_CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Chunking.ChunkOverlap = n
		}
	}
	if v := os.Getenv("CORPUSLENS_MAX_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxTopK = n
		}
	}
	if v := os.Getenv("CORPUSLENS_WORKER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Indexer.WorkerPoolSize = n
		}
	}
	if v := os.Getenv("CORPUSLENS_VECTOR_STORE_URL"); v != "" {
		c.VectorDB.URL = v
	}
	if v := os.Getenv("CORPUSLENS_COLLECTION_NAME"); v != "" {
		c.VectorDB.CollectionName = v
	}
	if v := os.Getenv("CORPUSLENS_DEBOUNCE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Watch.DebounceMS = n
		}
	}
	if v := os.Getenv("CORPUSLENS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Server.Port = n
		}
	}
	if v := os.Getenv("CORPUSLENS_REGISTRY_PATH"); v != "" {
		c.Registry.Path = v
	}
	if v := os.Getenv("CORPUSLENS_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Embeddings.Dimension < 0 {
		return fmt.Errorf("embedding_dim must be non-negative, got %d", c.Embeddings.Dimension)
	}
	if c.Embeddings.ModelID == "" {
		return fmt.Errorf("model_id must not be empty")
	}
	validProviders := map[string]bool{"ollama": true, "mlx": true}
	if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
		return fmt.Errorf("embeddings.provider must be 'ollama' or 'mlx', got %q", c.Embeddings.Provider)
	}

	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_overlap must be non-negative, got %d", c.Chunking.ChunkOverlap)
	}
	if c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", c.Chunking.ChunkOverlap, c.Chunking.ChunkSize)
	}

	if c.Search.MaxTopK <= 0 {
		return fmt.Errorf("max_top_k must be positive, got %d", c.Search.MaxTopK)
	}

	if c.Cache.EmbeddingCacheMB < 0 || c.Cache.SearchCacheMB < 0 {
		return fmt.Errorf("cache size budgets must be non-negative")
	}
	if c.Cache.EmbeddingCacheTTLS < 0 || c.Cache.SearchCacheTTLS < 0 {
		return fmt.Errorf("cache TTLs must be non-negative")
	}

	if c.Indexer.WorkerPoolSize <= 0 {
		return fmt.Errorf("worker_pool_size must be positive, got %d", c.Indexer.WorkerPoolSize)
	}

	if c.VectorDB.URL == "" {
		return fmt.Errorf("vector_store_url must not be empty")
	}
	if c.VectorDB.CollectionName == "" {
		return fmt.Errorf("collection_name must not be empty")
	}

	if c.Watch.DebounceMS < 0 {
		return fmt.Errorf("debounce_ms must be non-negative, got %d", c.Watch.DebounceMS)
	}

	if c.OCR.DPI <= 0 {
		return fmt.Errorf("ocr_dpi must be positive, got %d", c.OCR.DPI)
	}
	if c.OCR.PSM < 0 || c.OCR.PSM > 13 {
		return fmt.Errorf("ocr_psm must be between 0 and 13, got %d", c.OCR.PSM)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log_level must be 'debug', 'info', 'warn', or 'error', got %q", c.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
