package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpuslens/corpuslens/internal/chunk"
	"github.com/corpuslens/corpuslens/internal/config"
	"github.com/corpuslens/corpuslens/internal/embed"
	"github.com/corpuslens/corpuslens/internal/parser"
	"github.com/corpuslens/corpuslens/internal/registry"
	"github.com/corpuslens/corpuslens/internal/vectorstore"
)

func TestIndexDirectory_AggregatesAcrossFiles(t *testing.T) {
	ix, _, store, _ := newTestIndexer(t)
	ctx := context.Background()
	root := t.TempDir()

	writeTempFile(t, root, "a.txt", "the quick brown fox jumps over the lazy dog repeatedly")
	writeTempFile(t, root, "b.txt", "a second document with entirely different content in it")
	writeTempFile(t, root, "c.bin", "unsupported extension content")

	result, err := ix.IndexDirectory(ctx, root, 4)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalFiles)
	assert.Equal(t, 2, result.FilesProcessed)
	assert.Equal(t, 1, result.FilesSkipped)
	assert.Equal(t, 0, result.FilesFailed)
	assert.Greater(t, result.ChunksIndexed, 0)

	countA, err := store.CountByFile(ctx, filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Greater(t, countA, 0)
}

func TestIndexDirectory_ExcludesDefaultDenylist(t *testing.T) {
	ix, _, _, _ := newTestIndexer(t)
	ctx := context.Background()
	root := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))
	writeTempFile(t, root, filepath.Join("node_modules", "lib.txt"), "dependency content that should never be scanned")
	writeTempFile(t, root, "main.txt", "actual project content")

	result, err := ix.IndexDirectory(ctx, root, 4)
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalFiles)
	assert.Equal(t, 1, result.FilesProcessed)
}

func TestIndexDirectory_RegistersDirectoryOnce(t *testing.T) {
	ix, reg, _, _ := newTestIndexer(t)
	ctx := context.Background()
	root := t.TempDir()
	writeTempFile(t, root, "a.txt", "content for directory registration test")

	_, err := ix.IndexDirectory(ctx, root, 2)
	require.NoError(t, err)

	_, err = ix.IndexDirectory(ctx, root, 2)
	require.NoError(t, err)

	dirs, err := reg.ListDirectories(ctx)
	require.NoError(t, err)

	count := 0
	for _, d := range dirs {
		if d.Path == root {
			count++
		}
	}
	assert.Equal(t, 1, count, "re-walking the same root must not duplicate the directory record")
}

func TestIndexDirectory_HoldsRegistryLockAgainstConcurrentWalkers(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "registry.db")
	reg, err := registry.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	ix, err := New(Dependencies{
		Registry: reg,
		Parser:   parser.NewRegistry(nil, config.OCRConfig{}),
		Chunker:  chunk.New(chunk.Config{Size: 40, Overlap: 10}),
		Embedder: embed.NewStaticEmbedder(),
		Store:    vectorstore.NewMemoryStore(),
	})
	require.NoError(t, err)

	// A second handle on the same on-disk registry stands in for a second
	// corpuslens process racing index_directory against the same tree.
	other, err := registry.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = other.Close() })

	ctx := context.Background()
	require.NoError(t, other.Lock(ctx))
	defer func() { _ = other.Unlock() }()

	root := t.TempDir()
	writeTempFile(t, root, "a.txt", "content racing against a concurrent directory walk")

	_, err = ix.IndexDirectory(ctx, root, 2)
	assert.Error(t, err, "IndexDirectory must fail to start its walk while another handle holds the registry lock")
}

func TestIndexDirectory_DefaultWorkerCountWhenUnspecified(t *testing.T) {
	ix, _, _, _ := newTestIndexer(t)
	ctx := context.Background()
	root := t.TempDir()
	writeTempFile(t, root, "a.txt", "content indexed with the default worker pool size")

	result, err := ix.IndexDirectory(ctx, root, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesProcessed)
}
