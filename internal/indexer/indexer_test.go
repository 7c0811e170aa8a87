package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
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

type testCache struct {
	mu     sync.Mutex
	purges int
}

func (c *testCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purges++
}

func (c *testCache) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purges
}

func newTestIndexer(t *testing.T) (*Indexer, *registry.Registry, *vectorstore.MemoryStore, *testCache) {
	t.Helper()

	reg, err := registry.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	store := vectorstore.NewMemoryStore()
	cache := &testCache{}

	ix, err := New(Dependencies{
		Registry:    reg,
		Parser:      parser.NewRegistry(nil, config.OCRConfig{}),
		Chunker:     chunk.New(chunk.Config{Size: 40, Overlap: 10}),
		Embedder:    embed.NewStaticEmbedder(),
		Store:       store,
		SearchCache: cache,
	})
	require.NoError(t, err)

	return ix, reg, store, cache
}

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIndexFile_IndexesNewFile(t *testing.T) {
	ix, reg, store, cache := newTestIndexer(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeTempFile(t, dir, "a.txt", "hello world, this is a test document with some content in it")

	result, err := ix.IndexFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIndexed, result.Outcome)
	assert.Greater(t, result.Chunks, 0)
	assert.Equal(t, 1, cache.count())

	rec, err := reg.GetFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, registry.StatusIndexed, rec.Status)
	assert.Equal(t, result.Chunks, rec.ChunkCount)

	count, err := store.CountByFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, result.Chunks, count)
}

func TestIndexFile_NoOpWhenUnchanged(t *testing.T) {
	ix, _, _, cache := newTestIndexer(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeTempFile(t, dir, "a.txt", "identical content that does not change between calls")

	_, err := ix.IndexFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.count())

	result, err := ix.IndexFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoOp, result.Outcome)
	assert.Equal(t, 1, cache.count(), "no-op must not purge the cache again")
}

func TestIndexFile_ReindexesOnDigestChange(t *testing.T) {
	ix, reg, store, _ := newTestIndexer(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeTempFile(t, dir, "a.txt", "original content")

	first, err := ix.IndexFile(ctx, path)
	require.NoError(t, err)

	writeTempFile(t, dir, "a.txt", "completely different content that produces a different digest entirely")

	second, err := ix.IndexFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIndexed, second.Outcome)
	assert.NotEqual(t, first.Checksum, second.Checksum)

	count, err := store.CountByFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, second.Chunks, count, "stale points from the old digest must be gone")

	rec, err := reg.GetFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, second.Checksum, rec.Checksum)
}

func TestIndexFile_SkipsUnsupportedExtension(t *testing.T) {
	ix, _, _, _ := newTestIndexer(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeTempFile(t, dir, "a.bin", "binary-ish content")

	result, err := ix.IndexFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, result.Outcome)
}

func TestIndexFile_EmptyFileIndexesWithZeroChunks(t *testing.T) {
	ix, reg, _, cache := newTestIndexer(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeTempFile(t, dir, "a.txt", "")

	result, err := ix.IndexFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, OutcomeEmpty, result.Outcome)
	assert.Equal(t, 0, result.Chunks)
	assert.Equal(t, 1, cache.count())

	rec, err := reg.GetFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, registry.StatusIndexed, rec.Status)
}

func TestIndexFile_RejectsRelativePath(t *testing.T) {
	ix, _, _, _ := newTestIndexer(t)
	_, err := ix.IndexFile(context.Background(), "relative/path.txt")
	require.Error(t, err)
}

func TestIndexFile_NotFoundForMissingPath(t *testing.T) {
	ix, _, _, _ := newTestIndexer(t)
	dir := t.TempDir()
	_, err := ix.IndexFile(context.Background(), filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
}

func TestReindexFile_ForcesUnconditionalReindex(t *testing.T) {
	ix, _, store, cache := newTestIndexer(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeTempFile(t, dir, "a.txt", "some stable content that will be reindexed on demand")

	_, err := ix.IndexFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.count())

	result, err := ix.ReindexFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIndexed, result.Outcome)
	assert.True(t, result.Reindexed)
	assert.Equal(t, 2, cache.count(), "reindex purges the cache even though content was unchanged")

	count, err := store.CountByFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, result.Chunks, count)
}

func TestRemoveFile_DropsPointsAndRecord(t *testing.T) {
	ix, reg, store, cache := newTestIndexer(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeTempFile(t, dir, "a.txt", "content that will shortly be removed from the index")

	_, err := ix.IndexFile(ctx, path)
	require.NoError(t, err)

	result, err := ix.RemoveFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRemoved, result.Outcome)
	assert.Greater(t, result.Chunks, 0)
	assert.Equal(t, 2, cache.count())

	count, err := store.CountByFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = reg.GetFile(ctx, path)
	assert.Error(t, err, "file record must be gone after removal")
}

func TestRemoveFile_IdempotentOnAlreadyAbsentFile(t *testing.T) {
	ix, _, _, _ := newTestIndexer(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "never-indexed.txt")

	result, err := ix.RemoveFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRemoved, result.Outcome)
	assert.Equal(t, 0, result.Chunks)
}

func TestIndexFile_ConcurrentSamePathSerializes(t *testing.T) {
	ix, _, store, _ := newTestIndexer(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeTempFile(t, dir, "a.txt", "concurrent access content for the serialization test case")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = ix.IndexFile(ctx, path)
		}()
	}
	wg.Wait()

	count, err := store.CountByFile(ctx, path)
	require.NoError(t, err)
	assert.Greater(t, count, 0)
}
