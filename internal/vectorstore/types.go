// Package vectorstore adapts an external nearest-neighbor store to the
// indexer and search pipelines, per the vector-store contract: ensure a
// collection, upsert points, delete every point belonging to a file,
// similarity search, and count points belonging to a file.
package vectorstore

import "context"

// Point is a single embedded chunk ready to be written to the store.
type Point struct {
	// ID is derived from (path, digest, chunk_index) so reindexing the same
	// content is idempotent: the upsert overwrites the existing point.
	ID     string
	Vector []float32

	// Payload carries file_path, file_name, file_size, file_type, chunk,
	// chunk_index, chunk_size, and file_hash.
	Payload map[string]any
}

// Hit is a single search result.
type Hit struct {
	ID    string
	Score float64
	// Payload echoes what was stored with the point at upsert time.
	Payload map[string]any
}

// Filter narrows a search or count to points belonging to one file. A zero
// value Filter matches everything.
type Filter struct {
	FilePath string
}

func (f Filter) empty() bool {
	return f.FilePath == ""
}

// Store is the vector-store adapter contract. Implementations must make
// DeleteByFile atomic from the caller's perspective: either every point for
// the file is gone, or the call fails and nothing is removed.
type Store interface {
	// EnsureCollection idempotently creates the collection with the given
	// vector dimension and cosine similarity metric if it doesn't exist.
	EnsureCollection(ctx context.Context, dim int) error

	// Upsert writes points, replacing any existing point with the same id.
	Upsert(ctx context.Context, points []Point) error

	// DeleteByFile removes every point whose payload file_path matches path.
	DeleteByFile(ctx context.Context, path string) error

	// Search returns at most topK hits ordered by descending similarity.
	// Scores are in [-1, 1].
	Search(ctx context.Context, queryVector []float32, topK int, filter Filter) ([]Hit, error)

	// CountByFile reports how many points currently belong to path.
	CountByFile(ctx context.Context, path string) (int, error)

	Close() error
}
