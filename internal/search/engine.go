package search

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/corpuslens/corpuslens/internal/apperr"
	"github.com/corpuslens/corpuslens/internal/cache"
	"github.com/corpuslens/corpuslens/internal/embed"
	"github.com/corpuslens/corpuslens/internal/vectorstore"
)

// ResponseSize estimates a cached Response's footprint for the search
// cache's byte budget: the chunk text dominates, everything else is noise.
// Exported so callers building the cache.Cache[Response] passed into New
// share this sizing instead of re-deriving it.
func ResponseSize(r Response) int {
	n := 64
	for _, res := range r.Results {
		n += len(res.Chunk) + len(res.FilePath) + len(res.FileName) + 48
	}
	return n
}

// Engine implements search(query, top_k) and ask(question, top_k) per
// spec.md §4.8: normalize, check the search cache, embed (itself cached),
// search the vector store, project hits, write through the search cache.
type Engine struct {
	embedder       embed.Embedder
	store          vectorstore.Store
	searchCache    *cache.Cache[Response]
	maxTopK        int
	collectionName string
}

// Config configures an Engine.
type Config struct {
	// MaxTopK bounds any requested top_k, per spec.md §6's max_top_k.
	MaxTopK int

	// CollectionName is reported in /health's model_info.
	CollectionName string
}

// New creates an Engine. embedder and store are required; searchCache may
// be nil to disable the search cache entirely.
func New(embedder embed.Embedder, store vectorstore.Store, searchCache *cache.Cache[Response], cfg Config) (*Engine, error) {
	if embedder == nil {
		return nil, fmt.Errorf("search: embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("search: vector store is required")
	}
	maxTopK := cfg.MaxTopK
	if maxTopK <= 0 {
		maxTopK = 100
	}
	return &Engine{
		embedder:       embedder,
		store:          store,
		searchCache:    searchCache,
		maxTopK:        maxTopK,
		collectionName: cfg.CollectionName,
	}, nil
}

// Purge clears the search cache. Exposed so the indexer can invalidate it
// in bulk after a write, per spec.md §8's cache-coherence invariant.
func (e *Engine) Purge() {
	if e.searchCache != nil {
		e.searchCache.Purge()
	}
}

// Search implements search(query, top_k): spec.md §4.8 steps 1-6.
func (e *Engine) Search(ctx context.Context, query string, topK int) (*Response, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, apperr.ValidationError("query must not be empty", nil)
	}
	if topK <= 0 {
		topK = 10
	}
	if topK > e.maxTopK {
		return nil, apperr.New(apperr.ErrCodeTopKTooLarge,
			fmt.Sprintf("top_k %d exceeds max_top_k %d", topK, e.maxTopK), nil)
	}

	// Step 1: normalize for caching only, the embedder sees the raw query.
	normalized := cache.NormalizeQuery(trimmed)

	// Step 2: search-cache lookup.
	key := cache.SearchKey(normalized, topK, "", e.embedder.ModelID())
	if e.searchCache != nil {
		if cached, ok := e.searchCache.Get(key); ok {
			return &cached, nil
		}
	}

	// Step 3: embed the query. The embedder itself may be wrapped in
	// embed.CachedEmbedder, which covers the embedding-cache half of this
	// step without this package needing to know about it.
	vector, err := e.embedder.Embed(ctx, trimmed)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeEmbeddingFailure, err)
	}

	// Step 4: vector-store search.
	hits, err := e.store.Search(ctx, vector, topK, vectorstore.Filter{})
	if err != nil {
		return nil, apperr.VectorStoreError("search", err)
	}

	// Step 5: project hits into the response shape.
	resp := Response{
		Query:        trimmed,
		TopK:         topK,
		Results:      make([]Result, 0, len(hits)),
		TotalResults: len(hits),
	}
	for _, h := range hits {
		resp.Results = append(resp.Results, projectHit(h))
	}

	// Step 6: write through the search cache.
	if e.searchCache != nil {
		e.searchCache.Set(key, resp)
	}

	return &resp, nil
}

// Ask implements the retrieval half of ask(question, top_k): search, then
// assemble a context string from the chunks in rank order. Answer
// synthesis via an external chat completion service is out of scope.
func (e *Engine) Ask(ctx context.Context, question string, topK int) (*AskResponse, error) {
	resp, err := e.Search(ctx, question, topK)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	for i, r := range resp.Results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s]\n%s", r.FileName, r.Chunk)
	}

	return &AskResponse{
		Question: question,
		Context:  b.String(),
		Results:  resp.Results,
	}, nil
}

// Health reports /health's payload. The embedder and vector-store checks
// are independent network round trips, dispatched concurrently so a slow
// backend doesn't double the other's latency; each leg's failure is
// folded into is_loaded/status rather than aborting the other.
func (e *Engine) Health(ctx context.Context) *Health {
	g, gctx := errgroup.WithContext(ctx)

	var loaded bool
	g.Go(func() error {
		loaded = e.embedder.Available(gctx)
		return nil
	})

	var storeErr error
	g.Go(func() error {
		storeErr = e.store.EnsureCollection(gctx, e.embedder.Dimensions())
		return nil
	})

	_ = g.Wait()

	status := "ready"
	switch {
	case !loaded:
		status = "model not loaded"
	case storeErr != nil:
		status = "vector store unreachable"
	}

	return &Health{
		Status: status,
		ModelInfo: ModelInfo{
			ModelName:      e.embedder.ModelID(),
			VectorSize:     e.embedder.Dimensions(),
			IsLoaded:       loaded,
			CollectionName: e.collectionName,
		},
	}
}

func projectHit(h vectorstore.Hit) Result {
	r := Result{Score: h.Score}
	if v, ok := h.Payload["file_path"].(string); ok {
		r.FilePath = v
	}
	if v, ok := h.Payload["file_name"].(string); ok {
		r.FileName = v
	} else if r.FilePath != "" {
		r.FileName = filepath.Base(r.FilePath)
	}
	if v, ok := h.Payload["chunk"].(string); ok {
		r.Chunk = v
	}
	r.ChunkIndex = intPayload(h.Payload, "chunk_index")
	if v, ok := h.Payload["file_type"].(string); ok {
		r.FileType = v
	}
	r.FileSize = int64Payload(h.Payload, "file_size")
	r.ChunkSize = intPayload(h.Payload, "chunk_size")
	return r
}

// intPayload and int64Payload tolerate the numeric type a vector-store
// adapter actually returns a payload field as (int, int64, or float64 for
// a JSON-backed adapter like Qdrant) rather than assuming one.
func intPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func int64Payload(payload map[string]any, key string) int64 {
	switch v := payload[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
