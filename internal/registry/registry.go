package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/corpuslens/corpuslens/internal/apperr"
)

// Registry is the SQLite-backed directories/files store.
type Registry struct {
	db   *sql.DB
	lock *flock.Flock
}

// Open creates or opens the registry at path. An empty path opens an
// in-memory registry, useful for tests. A sidecar advisory lock file
// (path + ".lock") guards whole-directory-walk operations against two
// corpuslens processes racing on the same registry.
func Open(path string) (*Registry, error) {
	var dsn string
	var lockPath string
	if path == "" {
		dsn = ":memory:"
	} else {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, apperr.Wrap(apperr.ErrCodeConfigInvalid, fmt.Errorf("create registry directory: %w", err))
			}
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
		lockPath = path + ".lock"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeConfigInvalid, fmt.Errorf("open registry: %w", err))
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, apperr.Wrap(apperr.ErrCodeConfigInvalid, fmt.Errorf("set pragma %q: %w", p, err))
		}
	}

	r := &Registry{db: db}
	if lockPath != "" {
		r.lock = flock.New(lockPath)
	}
	if err := r.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Registry) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS directories (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		path      TEXT NOT NULL UNIQUE,
		added_at  DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS files (
		path         TEXT PRIMARY KEY,
		dir_id       INTEGER NOT NULL REFERENCES directories(id) ON DELETE CASCADE,
		checksum     TEXT NOT NULL,
		last_indexed DATETIME NOT NULL,
		status       TEXT NOT NULL,
		chunk_count  INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_files_dir_id ON files(dir_id);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return apperr.Wrap(apperr.ErrCodeConfigInvalid, fmt.Errorf("initialize registry schema: %w", err))
	}
	return nil
}

// Lock acquires the cross-process advisory lock that serializes whole
// index_directory walks. It is a no-op for in-memory registries.
func (r *Registry) Lock(ctx context.Context) error {
	if r.lock == nil {
		return nil
	}
	locked, err := r.lock.TryLock()
	if err != nil {
		return apperr.Wrap(apperr.ErrCodeRegistryFailed, fmt.Errorf("acquire registry lock: %w", err))
	}
	if !locked {
		return apperr.InternalError("registry is locked by another process", nil)
	}
	return nil
}

// Unlock releases the lock acquired by Lock.
func (r *Registry) Unlock() error {
	if r.lock == nil {
		return nil
	}
	return r.lock.Unlock()
}

// Close releases the underlying database handle.
func (r *Registry) Close() error {
	return r.db.Close()
}

// AddDirectory registers root, or returns the existing directory record
// if it is already registered.
func (r *Registry) AddDirectory(ctx context.Context, path string) (Directory, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO directories (path, added_at) VALUES (?, ?) ON CONFLICT(path) DO NOTHING`,
		path, now)
	if err != nil {
		return Directory{}, apperr.Wrap(apperr.ErrCodeRegistryFailed, fmt.Errorf("insert directory: %w", err))
	}
	return r.GetDirectory(ctx, path)
}

// GetDirectory looks up a registered directory by path.
func (r *Registry) GetDirectory(ctx context.Context, path string) (Directory, error) {
	var d Directory
	err := r.db.QueryRowContext(ctx,
		`SELECT id, path, added_at FROM directories WHERE path = ?`, path,
	).Scan(&d.ID, &d.Path, &d.AddedAt)
	if err == sql.ErrNoRows {
		return Directory{}, apperr.NotFoundError(path, nil)
	}
	if err != nil {
		return Directory{}, apperr.Wrap(apperr.ErrCodeRegistryFailed, fmt.Errorf("query directory: %w", err))
	}
	return d, nil
}

// ListDirectories returns every registered directory, in no particular order.
func (r *Registry) ListDirectories(ctx context.Context) ([]Directory, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, path, added_at FROM directories`)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeRegistryFailed, fmt.Errorf("list directories: %w", err))
	}
	defer rows.Close()

	var dirs []Directory
	for rows.Next() {
		var d Directory
		if err := rows.Scan(&d.ID, &d.Path, &d.AddedAt); err != nil {
			return nil, apperr.Wrap(apperr.ErrCodeRegistryFailed, fmt.Errorf("scan directory row: %w", err))
		}
		dirs = append(dirs, d)
	}
	return dirs, rows.Err()
}

// UpsertFile records path's indexing result. It creates the row if
// absent, updates it in place otherwise.
func (r *Registry) UpsertFile(ctx context.Context, f File) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO files (path, dir_id, checksum, last_indexed, status, chunk_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			dir_id = excluded.dir_id,
			checksum = excluded.checksum,
			last_indexed = excluded.last_indexed,
			status = excluded.status,
			chunk_count = excluded.chunk_count
	`, f.Path, f.DirID, f.Checksum, f.LastIndexed, string(f.Status), f.ChunkCount)
	if err != nil {
		return apperr.Wrap(apperr.ErrCodeRegistryFailed, fmt.Errorf("upsert file %s: %w", f.Path, err))
	}
	return nil
}

// GetFile returns the registered record for path, or a NotFound error if
// path has never been indexed (the "absent" state).
func (r *Registry) GetFile(ctx context.Context, path string) (File, error) {
	var f File
	var status string
	err := r.db.QueryRowContext(ctx,
		`SELECT path, dir_id, checksum, last_indexed, status, chunk_count FROM files WHERE path = ?`, path,
	).Scan(&f.Path, &f.DirID, &f.Checksum, &f.LastIndexed, &status, &f.ChunkCount)
	if err == sql.ErrNoRows {
		return File{}, apperr.NotFoundError(path, nil)
	}
	if err != nil {
		return File{}, apperr.Wrap(apperr.ErrCodeRegistryFailed, fmt.Errorf("query file %s: %w", path, err))
	}
	f.Status = Status(status)
	return f, nil
}

// RemoveFile drops path's registry record entirely (the absent state).
func (r *Registry) RemoveFile(ctx context.Context, path string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, path)
	if err != nil {
		return apperr.Wrap(apperr.ErrCodeRegistryFailed, fmt.Errorf("remove file %s: %w", path, err))
	}
	return nil
}

// FilesByDirectory lists every tracked file under the given directory id.
func (r *Registry) FilesByDirectory(ctx context.Context, dirID int64) ([]File, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT path, dir_id, checksum, last_indexed, status, chunk_count FROM files WHERE dir_id = ?`, dirID)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeRegistryFailed, fmt.Errorf("list files for directory %d: %w", dirID, err))
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		var f File
		var status string
		if err := rows.Scan(&f.Path, &f.DirID, &f.Checksum, &f.LastIndexed, &status, &f.ChunkCount); err != nil {
			return nil, apperr.Wrap(apperr.ErrCodeRegistryFailed, fmt.Errorf("scan file row: %w", err))
		}
		f.Status = Status(status)
		files = append(files, f)
	}
	return files, rows.Err()
}
