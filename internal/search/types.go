// Package search implements the query-time half of the pipeline: embed a
// query, run a similarity search against the vector store, and project the
// hits into the response shape external callers expect. See spec.md §4.8.
package search

// Result is a single ranked chunk, shaped for the /search response per
// spec.md §6.
type Result struct {
	Score      float64 `json:"score"`
	FilePath   string  `json:"file_path"`
	FileName   string  `json:"file_name"`
	Chunk      string  `json:"chunk"`
	ChunkIndex int     `json:"chunk_index"`
	FileType   string  `json:"file_type"`
	FileSize   int64   `json:"file_size"`
	ChunkSize  int     `json:"chunk_size"`
}

// Response is the full /search payload.
type Response struct {
	Query        string   `json:"query"`
	TopK         int      `json:"top_k"`
	Results      []Result `json:"results"`
	TotalResults int      `json:"total_results"`
}

// AskResponse bundles the retrieved chunks with an assembled context
// string, per spec.md §4.8's ask contract: retrieval is in scope, answer
// synthesis is handed off to an external chat completion service and is
// not performed here.
type AskResponse struct {
	Question string   `json:"question"`
	Context  string   `json:"context"`
	Results  []Result `json:"results"`
}

// ModelInfo describes the embedding backend currently in use, for the
// /health response.
type ModelInfo struct {
	ModelName      string `json:"model_name"`
	VectorSize     int    `json:"vector_size"`
	IsLoaded       bool   `json:"is_loaded"`
	CollectionName string `json:"collection_name"`
}

// Health is the full /health payload.
type Health struct {
	Status    string    `json:"status"`
	ModelInfo ModelInfo `json:"model_info"`
}
