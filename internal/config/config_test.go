package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Default Configuration Tests
// =============================================================================

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.ModelID)
	assert.Equal(t, 768, cfg.Embeddings.Dimension)
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
	assert.Equal(t, 32, cfg.Embeddings.BatchSize)
	assert.Equal(t, "http://localhost:11434", cfg.Embeddings.OllamaHost)

	assert.Equal(t, 800, cfg.Chunking.ChunkSize)
	assert.Equal(t, 120, cfg.Chunking.ChunkOverlap)

	assert.Equal(t, 100, cfg.Search.MaxTopK)

	assert.Equal(t, 512, cfg.Cache.EmbeddingCacheMB)
	assert.Equal(t, 3600, cfg.Cache.EmbeddingCacheTTLS)
	assert.Equal(t, 128, cfg.Cache.SearchCacheMB)
	assert.Equal(t, 1800, cfg.Cache.SearchCacheTTLS)

	assert.Equal(t, runtime.NumCPU(), cfg.Indexer.WorkerPoolSize)

	assert.Equal(t, "corpuslens", cfg.VectorDB.CollectionName)
	assert.NotEmpty(t, cfg.VectorDB.URL)

	assert.Equal(t, 300, cfg.Watch.DebounceMS)

	assert.Equal(t, 300, cfg.OCR.DPI)
	assert.Equal(t, 3, cfg.OCR.PSM)

	assert.Equal(t, 8085, cfg.Server.Port)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestNewConfig_PassesValidation(t *testing.T) {
	cfg := NewConfig()
	assert.NoError(t, cfg.Validate())
}

// =============================================================================
// Configuration File Loading Tests
// =============================================================================

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 800, cfg.Chunking.ChunkSize)
}

func TestLoad_YamlFile_OverridesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
chunking:
  chunk_size: 1200
  chunk_overlap: 200
search:
  max_top_k: 50
`
	err := os.WriteFile(filepath.Join(tmpDir, ".corpuslens.yaml"), []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 1200, cfg.Chunking.ChunkSize)
	assert.Equal(t, 200, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, 50, cfg.Search.MaxTopK)
}

func TestLoad_YmlExtension_IsRecognized(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
embeddings:
  provider: mlx
`
	err := os.WriteFile(filepath.Join(tmpDir, ".corpuslens.yml"), []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "mlx", cfg.Embeddings.Provider)
}

func TestLoad_YamlPreferredOverYml(t *testing.T) {
	tmpDir := t.TempDir()
	yamlContent := "embeddings:\n  provider: ollama\n"
	ymlContent := "embeddings:\n  provider: mlx\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".corpuslens.yaml"), []byte(yamlContent), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".corpuslens.yml"), []byte(ymlContent), 0o644))

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
}

func TestLoad_InvalidYaml_ReturnsError(t *testing.T) {
	tmpDir := t.TempDir()
	invalidContent := "chunking:\n  chunk_size: [invalid\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".corpuslens.yaml"), []byte(invalidContent), 0o644))

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "parse")
}

func TestLoad_InvalidFieldType_ReturnsError(t *testing.T) {
	tmpDir := t.TempDir()
	invalidContent := "chunking:\n  chunk_size: \"not-a-number\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".corpuslens.yaml"), []byte(invalidContent), 0o644))

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
}

// =============================================================================
// Environment Variable Override Tests
// =============================================================================

func TestLoad_EnvVarOverridesProvider(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := "embeddings:\n  provider: ollama\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".corpuslens.yaml"), []byte(configContent), 0o644))
	t.Setenv("CORPUSLENS_EMBEDDINGS_PROVIDER", "mlx")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "mlx", cfg.Embeddings.Provider)
}

func TestLoad_EnvVarOverridesModelID(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CORPUSLENS_MODEL_ID", "all-minilm")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "all-minilm", cfg.Embeddings.ModelID)
}

func TestLoad_EnvVarOverridesLogLevel(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CORPUSLENS_LOG_LEVEL", "debug")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_EnvVarOverridesVectorStoreURL(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CORPUSLENS_VECTOR_STORE_URL", "http://vdb.internal:6334")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "http://vdb.internal:6334", cfg.VectorDB.URL)
}

func TestLoad_EnvVarOverridesMaxTopK(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := "search:\n  max_top_k: 40\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".corpuslens.yaml"), []byte(configContent), 0o644))
	t.Setenv("CORPUSLENS_MAX_TOP_K", "25")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Search.MaxTopK)
}

func TestLoad_EnvVarEmptyString_DoesNotOverride(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CORPUSLENS_EMBEDDINGS_PROVIDER", "")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
}

// =============================================================================
// User/Global Configuration Tests
// =============================================================================

func TestGetUserConfigPath_DefaultsToXDGLocation(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")

	path := GetUserConfigPath()

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	expected := filepath.Join(home, ".config", "corpuslens", "config.yaml")
	assert.Equal(t, expected, path)
}

func TestGetUserConfigPath_RespectsXDGConfigHome(t *testing.T) {
	customConfig := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", customConfig)

	path := GetUserConfigPath()

	expected := filepath.Join(customConfig, "corpuslens", "config.yaml")
	assert.Equal(t, expected, path)
}

func TestGetUserConfigDir_ReturnsParentOfConfigPath(t *testing.T) {
	dir := GetUserConfigDir()
	path := GetUserConfigPath()

	assert.Equal(t, filepath.Dir(path), dir)
}

func TestUserConfigExists_ReturnsFalseWhenMissing(t *testing.T) {
	emptyDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", emptyDir)

	assert.False(t, UserConfigExists())
}

func TestUserConfigExists_ReturnsTrueWhenPresent(t *testing.T) {
	configDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)
	clDir := filepath.Join(configDir, "corpuslens")
	require.NoError(t, os.MkdirAll(clDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(clDir, "config.yaml"), []byte("log_level: info"), 0o644))

	assert.True(t, UserConfigExists())
}

func TestLoad_UserConfigOverridesDefaults(t *testing.T) {
	configDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)

	clDir := filepath.Join(configDir, "corpuslens")
	require.NoError(t, os.MkdirAll(clDir, 0o755))
	userConfig := "embeddings:\n  ollama_host: http://custom-host:11434\n"
	require.NoError(t, os.WriteFile(filepath.Join(clDir, "config.yaml"), []byte(userConfig), 0o644))

	cfg, err := Load(projectDir)

	require.NoError(t, err)
	assert.Equal(t, "http://custom-host:11434", cfg.Embeddings.OllamaHost)
}

func TestLoad_ProjectConfigOverridesUserConfig(t *testing.T) {
	configDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)

	clDir := filepath.Join(configDir, "corpuslens")
	require.NoError(t, os.MkdirAll(clDir, 0o755))
	userConfig := "embeddings:\n  provider: ollama\n  model_id: user-model\n"
	require.NoError(t, os.WriteFile(filepath.Join(clDir, "config.yaml"), []byte(userConfig), 0o644))

	projectConfig := "embeddings:\n  model_id: project-model\n"
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ".corpuslens.yaml"), []byte(projectConfig), 0o644))

	cfg, err := Load(projectDir)

	require.NoError(t, err)
	assert.Equal(t, "project-model", cfg.Embeddings.ModelID)
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
}

func TestLoad_EnvVarOverridesUserAndProjectConfig(t *testing.T) {
	configDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)
	t.Setenv("CORPUSLENS_MODEL_ID", "env-model")

	clDir := filepath.Join(configDir, "corpuslens")
	require.NoError(t, os.MkdirAll(clDir, 0o755))
	userConfig := "embeddings:\n  model_id: user-model\n"
	require.NoError(t, os.WriteFile(filepath.Join(clDir, "config.yaml"), []byte(userConfig), 0o644))

	projectConfig := "embeddings:\n  model_id: project-model\n"
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ".corpuslens.yaml"), []byte(projectConfig), 0o644))

	cfg, err := Load(projectDir)

	require.NoError(t, err)
	assert.Equal(t, "env-model", cfg.Embeddings.ModelID)
}

func TestLoad_InvalidUserConfig_ReturnsError(t *testing.T) {
	configDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)

	clDir := filepath.Join(configDir, "corpuslens")
	require.NoError(t, os.MkdirAll(clDir, 0o755))
	invalidConfig := "embeddings:\n  model_id: [invalid yaml\n"
	require.NoError(t, os.WriteFile(filepath.Join(clDir, "config.yaml"), []byte(invalidConfig), 0o644))

	cfg, err := Load(projectDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "user config")
}
