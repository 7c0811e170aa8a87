package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"github.com/corpuslens/corpuslens/internal/apperr"
)

// QdrantStore adapts a Qdrant collection to the Store contract. Qdrant's Go
// client speaks its gRPC API, which runs on port 6334 by default.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	breaker    *apperr.CircuitBreaker
	retry      apperr.RetryConfig
}

var _ Store = (*QdrantStore)(nil)

// QdrantOptions configures QdrantStore construction.
type QdrantOptions struct {
	// URL is the Qdrant endpoint, e.g. "http://localhost:6334" or
	// "https://host:6334?api_key=...".
	URL string

	// CollectionName is the target collection.
	CollectionName string

	// Retry bounds per-call retries on transient failures. Zero value uses
	// apperr.DefaultRetryConfig().
	Retry apperr.RetryConfig
}

// NewQdrantStore connects to a Qdrant instance. It does not create the
// collection; call EnsureCollection once the embedding dimension is known.
func NewQdrantStore(opts QdrantOptions) (*QdrantStore, error) {
	if opts.CollectionName == "" {
		return nil, fmt.Errorf("collection name is required")
	}

	parsed, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse vector store url: %w", err)
	}

	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid port in vector store url: %w", err)
	}

	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}

	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	retry := opts.Retry
	if retry.MaxRetries == 0 {
		retry = apperr.DefaultRetryConfig()
	}

	return &QdrantStore{
		client:     client,
		collection: opts.CollectionName,
		breaker:    apperr.NewCircuitBreaker("vectorstore:" + opts.CollectionName),
		retry:      retry,
	}, nil
}

// EnsureCollection creates the collection with cosine similarity if it
// doesn't already exist. Idempotent.
func (q *QdrantStore) EnsureCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return apperr.ValidationError("vector dimension must be positive", nil)
	}

	return q.guarded(ctx, func() error {
		exists, err := q.client.CollectionExists(ctx, q.collection)
		if err != nil {
			return fmt.Errorf("check collection exists: %w", err)
		}
		if exists {
			return nil
		}

		return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: q.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
	})
}

// Upsert writes points, replacing any existing point with the same id.
func (q *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	qPoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		qPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(p.Payload),
		}
	}

	return q.guarded(ctx, func() error {
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Points:         qPoints,
		})
		return err
	})
}

// DeleteByFile removes every point whose payload file_path equals path.
func (q *QdrantStore) DeleteByFile(ctx context.Context, path string) error {
	return q.guarded(ctx, func() error {
		_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: q.collection,
			Points:         qdrant.NewPointsSelectorFilter(filePathFilter(path)),
		})
		return err
	})
}

// Search returns at most topK hits ordered by descending cosine similarity.
func (q *QdrantStore) Search(ctx context.Context, queryVector []float32, topK int, filter Filter) ([]Hit, error) {
	if topK <= 0 {
		topK = 10
	}

	vec := make([]float32, len(queryVector))
	copy(vec, queryVector)

	var qFilter *qdrant.Filter
	if !filter.empty() {
		qFilter = filePathFilter(filter.FilePath)
	}

	limit := uint64(topK)
	return apperr.RetryWithResult(ctx, q.retry, func() ([]Hit, error) {
		if !q.breaker.Allow() {
			return nil, apperr.VectorStoreError("vector store circuit open", nil)
		}

		points, err := q.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: q.collection,
			Query:          qdrant.NewQueryDense(vec),
			Limit:          &limit,
			Filter:         qFilter,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			q.breaker.RecordFailure()
			return nil, apperr.VectorStoreError("search failed", err)
		}
		q.breaker.RecordSuccess()

		hits := make([]Hit, 0, len(points))
		for _, p := range points {
			hits = append(hits, Hit{
				ID:      pointIDString(p.Id),
				Score:   float64(p.Score),
				Payload: payloadToMap(p.Payload),
			})
		}
		return hits, nil
	})
}

// CountByFile reports how many points currently belong to path.
func (q *QdrantStore) CountByFile(ctx context.Context, path string) (int, error) {
	count, err := apperr.RetryWithResult(ctx, q.retry, func() (uint64, error) {
		if !q.breaker.Allow() {
			return 0, apperr.VectorStoreError("vector store circuit open", nil)
		}

		n, err := q.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: q.collection,
			Filter:         filePathFilter(path),
		})
		if err != nil {
			q.breaker.RecordFailure()
			return 0, apperr.VectorStoreError("count failed", err)
		}
		q.breaker.RecordSuccess()
		return n, nil
	})
	return int(count), err
}

func (q *QdrantStore) Close() error {
	return q.client.Close()
}

// guarded runs fn behind the circuit breaker with bounded exponential
// backoff, per the VectorStoreFailure disposition: transient failures are
// retried, the breaker trips fast once the store looks down.
func (q *QdrantStore) guarded(ctx context.Context, fn func() error) error {
	return apperr.Retry(ctx, q.retry, func() error {
		if !q.breaker.Allow() {
			return apperr.VectorStoreError("vector store circuit open", nil)
		}
		if err := fn(); err != nil {
			q.breaker.RecordFailure()
			return apperr.VectorStoreError("vector store operation failed", err)
		}
		q.breaker.RecordSuccess()
		return nil
	})
}

func filePathFilter(path string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("file_path", path)},
	}
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return id.String()
}

func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch kind := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_NullValue:
		return nil
	default:
		return v.String()
	}
}
