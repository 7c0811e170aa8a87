package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/corpuslens/corpuslens/internal/app"
	"github.com/corpuslens/corpuslens/internal/apperr"
	"github.com/corpuslens/corpuslens/internal/indexer"
	"github.com/corpuslens/corpuslens/internal/vectorstore"
)

// indexFileResponse is the wire shape spec.md §6 prescribes for
// POST /index-file: {success, checksum, size, chunksIndexed, filePath,
// fileName, fileType}. skipped/warning are additive, surfaced only when
// the underlying FileResult actually carries them.
type indexFileResponse struct {
	Success       bool   `json:"success"`
	Checksum      string `json:"checksum"`
	Size          int64  `json:"size"`
	ChunksIndexed int    `json:"chunksIndexed"`
	FilePath      string `json:"filePath"`
	FileName      string `json:"fileName"`
	FileType      string `json:"fileType"`
	Skipped       bool   `json:"skipped,omitempty"`
	Warning       string `json:"warning,omitempty"`
}

func newIndexFileResponse(r *indexer.FileResult) indexFileResponse {
	return indexFileResponse{
		Success:       true,
		Checksum:      r.Checksum,
		Size:          r.Size,
		ChunksIndexed: r.Chunks,
		FilePath:      r.Path,
		FileName:      r.FileName,
		FileType:      r.FileType,
		Skipped:       r.Outcome == indexer.OutcomeSkipped,
		Warning:       r.Warning,
	}
}

// reindexFileResponse is index-file's shape plus reindexed:true, per
// spec.md §6's "same shape as index-file plus reindexed:true".
type reindexFileResponse struct {
	indexFileResponse
	Reindexed bool `json:"reindexed"`
}

func newReindexFileResponse(r *indexer.FileResult) reindexFileResponse {
	return reindexFileResponse{indexFileResponse: newIndexFileResponse(r), Reindexed: true}
}

// removeFileResponse is the wire shape spec.md §6 prescribes for
// DELETE /remove-file: {success, chunksRemoved, filePath, fileName}.
type removeFileResponse struct {
	Success       bool   `json:"success"`
	ChunksRemoved int    `json:"chunksRemoved"`
	FilePath      string `json:"filePath"`
	FileName      string `json:"fileName"`
}

func newRemoveFileResponse(r *indexer.FileResult) removeFileResponse {
	return removeFileResponse{
		Success:       true,
		ChunksRemoved: r.Chunks,
		FilePath:      r.Path,
		FileName:      r.FileName,
	}
}

// indexDirectoryResponse is the wire shape spec.md §6 prescribes for
// POST /index-directory: {success, filesProcessed, chunksIndexed,
// totalFiles, directory}. filesSkipped/filesFailed are additive.
type indexDirectoryResponse struct {
	Success        bool   `json:"success"`
	FilesProcessed int    `json:"filesProcessed"`
	ChunksIndexed  int    `json:"chunksIndexed"`
	TotalFiles     int    `json:"totalFiles"`
	Directory      string `json:"directory"`
	FilesSkipped   int    `json:"filesSkipped,omitempty"`
	FilesFailed    int    `json:"filesFailed,omitempty"`
}

func newIndexDirectoryResponse(r *indexer.DirectoryResult) indexDirectoryResponse {
	return indexDirectoryResponse{
		Success:        true,
		FilesProcessed: r.FilesProcessed,
		ChunksIndexed:  r.ChunksIndexed,
		TotalFiles:     r.TotalFiles,
		Directory:      r.Directory,
		FilesSkipped:   r.FilesSkipped,
		FilesFailed:    r.FilesFailed,
	}
}

// apiHandler implements spec.md §6's HTTP API plus the supplemented
// index-info and file-content endpoints, in the style of
// bbiangul-go-reason/cmd/server/handlers.go: one method per route, a
// thin request struct decoded inline, errors routed through a single
// writeAppError helper.
type apiHandler struct {
	app *app.App
}

func newAPIHandler(a *app.App) *apiHandler {
	return &apiHandler{app: a}
}

// POST /index-directory
func (h *apiHandler) handleIndexDirectory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, apperr.ValidationError("invalid JSON body", err))
		return
	}
	if req.Path == "" {
		writeAppError(w, apperr.ValidationError("path is required", nil))
		return
	}
	if info, err := os.Stat(req.Path); err != nil || !info.IsDir() {
		writeAppError(w, apperr.NotFoundError(req.Path, err))
		return
	}

	result, err := h.app.Indexer.IndexDirectory(ctx, req.Path, h.app.Config.Indexer.WorkerPoolSize)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if err := h.app.Watch.Start(ctx, req.Path); err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newIndexDirectoryResponse(result))
}

// POST /index-file
func (h *apiHandler) handleIndexFile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	path, ok := decodePathRequest(w, r)
	if !ok {
		return
	}

	result, err := h.app.Indexer.IndexFile(ctx, path)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newIndexFileResponse(result))
}

// POST /reindex-file
func (h *apiHandler) handleReindexFile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	path, ok := decodePathRequest(w, r)
	if !ok {
		return
	}

	result, err := h.app.Indexer.ReindexFile(ctx, path)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newReindexFileResponse(result))
}

// DELETE /remove-file
func (h *apiHandler) handleRemoveFile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	path := r.URL.Query().Get("path")
	if path == "" {
		path, _ = decodePathRequest(w, r)
		if path == "" {
			return
		}
	}

	result, err := h.app.Indexer.RemoveFile(ctx, path)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRemoveFileResponse(result))
}

// POST /search
func (h *apiHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	var req struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, apperr.ValidationError("invalid JSON body", err))
		return
	}

	resp, err := h.app.Search.Search(ctx, req.Query, req.TopK)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /ask
func (h *apiHandler) handleAsk(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	var req struct {
		Question string `json:"question"`
		TopK     int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, apperr.ValidationError("invalid JSON body", err))
		return
	}

	resp, err := h.app.Search.Ask(ctx, req.Question, req.TopK)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /index-info?path=...
//
// Reports the registry's current file/chunk counts for path alongside the
// model id and dimension of the embedder configured now. The registry does
// not record which model produced the stored vectors, so no compatibility
// check is made.
func (h *apiHandler) handleIndexInfo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	path := r.URL.Query().Get("path")
	if path == "" {
		writeAppError(w, apperr.ValidationError("path query parameter is required", nil))
		return
	}

	dir, err := h.app.Registry.GetDirectory(ctx, path)
	if err != nil {
		writeAppError(w, apperr.NotFoundError(path, err))
		return
	}

	files, err := h.app.Registry.FilesByDirectory(ctx, dir.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	chunks := 0
	indexed := 0
	failed := 0
	for _, f := range files {
		chunks += f.ChunkCount
		switch f.Status {
		case "indexed":
			indexed++
		case "failed":
			failed++
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"directory":       dir.Path,
		"added_at":        dir.AddedAt,
		"file_count":      len(files),
		"files_indexed":   indexed,
		"files_failed":    failed,
		"chunk_count":     chunks,
		"model_id":        h.app.Embedder.ModelID(),
		"embedding_dim":   h.app.Embedder.Dimensions(),
		"collection_name": h.app.Config.VectorDB.CollectionName,
	})
}

// GET /file-content?path=...
//
// Reconstructs a file's indexed text by concatenating its chunks in
// order. Spec.md's Open Questions leaves this endpoint's existence
// ambiguous; corpuslens exposes it so a caller can see exactly what was
// indexed without re-reading (and possibly mismatching) the file on disk.
func (h *apiHandler) handleFileContent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	path := r.URL.Query().Get("path")
	if path == "" {
		writeAppError(w, apperr.ValidationError("path query parameter is required", nil))
		return
	}

	file, err := h.app.Registry.GetFile(ctx, path)
	if err != nil {
		writeAppError(w, apperr.NotFoundError(path, err))
		return
	}

	topK := file.ChunkCount
	if topK <= 0 {
		topK = 1
	}
	// Filter-only retrieval: the query vector is irrelevant since every hit
	// already belongs to path, so a zero vector is enough to get Upsert's
	// payloads back out. Chunks are then reordered by chunk_index, since
	// the store returns them by score, not index.
	zero := make([]float32, h.app.Embedder.Dimensions())
	hits, err := h.app.Store.Search(ctx, zero, topK, vectorstore.Filter{FilePath: path})
	if err != nil {
		writeAppError(w, err)
		return
	}
	sort.Slice(hits, func(i, j int) bool {
		return chunkIndexOf(hits[i]) < chunkIndexOf(hits[j])
	})

	var b strings.Builder
	for _, hit := range hits {
		if chunk, ok := hit.Payload["chunk"].(string); ok {
			b.WriteString(chunk)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"path":        path,
		"chunk_count": file.ChunkCount,
		"content":     b.String(),
	})
}

// GET /health
func (h *apiHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	health := h.app.Search.Health(ctx)
	status := http.StatusOK
	if health.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func decodePathRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, apperr.ValidationError("invalid JSON body", err))
		return "", false
	}
	if req.Path == "" {
		writeAppError(w, apperr.ValidationError("path is required", nil))
		return "", false
	}
	return req.Path, true
}

func chunkIndexOf(hit vectorstore.Hit) int {
	switch v := hit.Payload["chunk_index"].(type) {
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
