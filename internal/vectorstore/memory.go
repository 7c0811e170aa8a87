package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store used by tests and by the other
// in-process packages that need a narrow vector-store fake rather than a
// live Qdrant instance. It is not a production backend: spec.md §4.5
// requires an external vector database.
type MemoryStore struct {
	mu     sync.RWMutex
	dim    int
	points map[string]Point
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{points: make(map[string]Point)}
}

func (m *MemoryStore) EnsureCollection(_ context.Context, dim int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dim = dim
	return nil
}

func (m *MemoryStore) Upsert(_ context.Context, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		m.points[p.ID] = p
	}
	return nil
}

func (m *MemoryStore) DeleteByFile(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.points {
		if p.Payload["file_path"] == path {
			delete(m.points, id)
		}
	}
	return nil
}

func (m *MemoryStore) Search(_ context.Context, queryVector []float32, topK int, filter Filter) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if topK <= 0 {
		topK = 10
	}

	hits := make([]Hit, 0, len(m.points))
	for _, p := range m.points {
		if !filter.empty() && p.Payload["file_path"] != filter.FilePath {
			continue
		}
		hits = append(hits, Hit{
			ID:      p.ID,
			Score:   cosineSimilarity(queryVector, p.Vector),
			Payload: p.Payload,
		})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (m *MemoryStore) CountByFile(_ context.Context, path string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, p := range m.points {
		if p.Payload["file_path"] == path {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
