package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestAddDirectory_CreatesRecord(t *testing.T) {
	r := newTestRegistry(t)
	d, err := r.AddDirectory(context.Background(), "/docs")
	require.NoError(t, err)
	assert.Equal(t, "/docs", d.Path)
	assert.NotZero(t, d.ID)
	assert.WithinDuration(t, time.Now(), d.AddedAt, 5*time.Second)
}

func TestAddDirectory_Idempotent_ReturnsSameRecord(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	first, err := r.AddDirectory(ctx, "/docs")
	require.NoError(t, err)
	second, err := r.AddDirectory(ctx, "/docs")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestGetDirectory_Unregistered_ReturnsNotFound(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.GetDirectory(context.Background(), "/missing")
	assert.Error(t, err)
}

func TestUpsertFile_ThenGetFile_RoundTrips(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	d, err := r.AddDirectory(ctx, "/docs")
	require.NoError(t, err)

	f := File{
		Path:        "/docs/a.md",
		DirID:       d.ID,
		Checksum:    "deadbeef",
		LastIndexed: time.Now().UTC().Truncate(time.Second),
		Status:      StatusIndexed,
		ChunkCount:  3,
	}
	require.NoError(t, r.UpsertFile(ctx, f))

	got, err := r.GetFile(ctx, "/docs/a.md")
	require.NoError(t, err)
	assert.Equal(t, f.Checksum, got.Checksum)
	assert.Equal(t, f.Status, got.Status)
	assert.Equal(t, f.ChunkCount, got.ChunkCount)
}

func TestUpsertFile_ExistingPath_UpdatesInPlace(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	d, err := r.AddDirectory(ctx, "/docs")
	require.NoError(t, err)

	require.NoError(t, r.UpsertFile(ctx, File{
		Path: "/docs/a.md", DirID: d.ID, Checksum: "v1",
		LastIndexed: time.Now().UTC(), Status: StatusIndexed, ChunkCount: 2,
	}))
	require.NoError(t, r.UpsertFile(ctx, File{
		Path: "/docs/a.md", DirID: d.ID, Checksum: "v2",
		LastIndexed: time.Now().UTC(), Status: StatusIndexed, ChunkCount: 5,
	}))

	got, err := r.GetFile(ctx, "/docs/a.md")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Checksum)
	assert.Equal(t, 5, got.ChunkCount)

	files, err := r.FilesByDirectory(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, files, 1, "update must not duplicate the row")
}

func TestGetFile_Untracked_ReturnsNotFound(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.GetFile(context.Background(), "/docs/never-indexed.md")
	assert.Error(t, err)
}

func TestRemoveFile_DropsRecord(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	d, err := r.AddDirectory(ctx, "/docs")
	require.NoError(t, err)
	require.NoError(t, r.UpsertFile(ctx, File{
		Path: "/docs/a.md", DirID: d.ID, Checksum: "x",
		LastIndexed: time.Now().UTC(), Status: StatusIndexed,
	}))

	require.NoError(t, r.RemoveFile(ctx, "/docs/a.md"))

	_, err = r.GetFile(ctx, "/docs/a.md")
	assert.Error(t, err, "removed file must read back as absent")
}

func TestFilesByDirectory_OnlyReturnsThatDirectorysFiles(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	d1, err := r.AddDirectory(ctx, "/docs")
	require.NoError(t, err)
	d2, err := r.AddDirectory(ctx, "/other")
	require.NoError(t, err)

	require.NoError(t, r.UpsertFile(ctx, File{Path: "/docs/a.md", DirID: d1.ID, Checksum: "1", LastIndexed: time.Now().UTC(), Status: StatusIndexed}))
	require.NoError(t, r.UpsertFile(ctx, File{Path: "/other/b.md", DirID: d2.ID, Checksum: "2", LastIndexed: time.Now().UTC(), Status: StatusIndexed}))

	files, err := r.FilesByDirectory(ctx, d1.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "/docs/a.md", files[0].Path)
}

func TestLockUnlock_InMemoryRegistry_IsNoOp(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Lock(context.Background()))
	require.NoError(t, r.Unlock())
}

func TestLockUnlock_FileBackedRegistry_SerializesAcrossHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")

	r1, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r1.Close() })

	r2, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r2.Close() })

	ctx := context.Background()
	require.NoError(t, r1.Lock(ctx))

	assert.Error(t, r2.Lock(ctx), "a second handle must not acquire the lock while the first holds it")

	require.NoError(t, r1.Unlock())
	assert.NoError(t, r2.Lock(ctx))
	require.NoError(t, r2.Unlock())
}
