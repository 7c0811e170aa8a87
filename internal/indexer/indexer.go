package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/corpuslens/corpuslens/internal/apperr"
	"github.com/corpuslens/corpuslens/internal/chunk"
	"github.com/corpuslens/corpuslens/internal/embed"
	"github.com/corpuslens/corpuslens/internal/parser"
	"github.com/corpuslens/corpuslens/internal/registry"
	"github.com/corpuslens/corpuslens/internal/vectorstore"
)

// Purger is satisfied by the search cache; it's invalidated in bulk after
// every successful write per spec.md §4.4's invalidation rules.
type Purger interface {
	Purge()
}

// Dependencies are the collaborators an Indexer wires together.
type Dependencies struct {
	Registry *registry.Registry
	Parser   *parser.Registry
	Chunker  *chunk.Chunker
	Embedder embed.Embedder
	Store    vectorstore.Store

	// SearchCache is purged after every successful write. Optional: a nil
	// value means no cache to invalidate.
	SearchCache Purger
}

// Indexer owns the file -> chunks -> vectors -> store pipeline.
type Indexer struct {
	registry *registry.Registry
	parser   *parser.Registry
	chunker  *chunk.Chunker
	embedder embed.Embedder
	store    vectorstore.Store
	cache    Purger

	locks *pathLocks
}

// New creates an Indexer from its dependencies. All fields of deps except
// SearchCache are required.
func New(deps Dependencies) (*Indexer, error) {
	if deps.Registry == nil {
		return nil, errors.New("indexer: registry is required")
	}
	if deps.Parser == nil {
		return nil, errors.New("indexer: parser registry is required")
	}
	if deps.Chunker == nil {
		return nil, errors.New("indexer: chunker is required")
	}
	if deps.Embedder == nil {
		return nil, errors.New("indexer: embedder is required")
	}
	if deps.Store == nil {
		return nil, errors.New("indexer: vector store is required")
	}
	return &Indexer{
		registry: deps.Registry,
		parser:   deps.Parser,
		chunker:  deps.Chunker,
		embedder: deps.Embedder,
		store:    deps.Store,
		cache:    deps.SearchCache,
		locks:    newPathLocks(),
	}, nil
}

func fileType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	return strings.TrimPrefix(ext, ".")
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (ix *Indexer) purgeSearchCache() {
	if ix.cache != nil {
		ix.cache.Purge()
	}
}

// resolveDirID finds or creates the directory registration that owns path,
// registering path's immediate parent if no ancestor is already registered.
// This keeps the files table's dir_id foreign key satisfied even when
// index_file is called directly against a path outside an explicit
// index_directory call.
func (ix *Indexer) resolveDirID(ctx context.Context, path string) (int64, error) {
	dirs, err := ix.registry.ListDirectories(ctx)
	if err != nil {
		return 0, err
	}
	var owner *registry.Directory
	for i := range dirs {
		d := &dirs[i]
		if strings.HasPrefix(path, d.Path+string(filepath.Separator)) && (owner == nil || len(d.Path) > len(owner.Path)) {
			owner = d
		}
	}
	if owner != nil {
		return owner.ID, nil
	}
	dir, err := ix.registry.AddDirectory(ctx, filepath.Dir(path))
	if err != nil {
		return 0, err
	}
	return dir.ID, nil
}

// IndexFile implements index_file(path) per spec.md §4.6.
func (ix *Indexer) IndexFile(ctx context.Context, path string) (*FileResult, error) {
	return ix.indexFile(ctx, path, false)
}

// ReindexFile implements reindex_file(path): an unconditional delete_by_file
// followed by the index_file steps.
func (ix *Indexer) ReindexFile(ctx context.Context, path string) (*FileResult, error) {
	return ix.indexFile(ctx, path, true)
}

func (ix *Indexer) indexFile(ctx context.Context, path string, forceReindex bool) (*FileResult, error) {
	if !filepath.IsAbs(path) {
		return nil, apperr.ValidationError(fmt.Sprintf("path must be absolute: %s", path), nil)
	}

	unlock := ix.locks.Lock(path)
	defer unlock()

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.NotFoundError(path, err)
		}
		return nil, apperr.Wrap(apperr.ErrCodeFilePermission, err)
	}
	if info.IsDir() {
		return nil, apperr.ValidationError(fmt.Sprintf("path is a directory: %s", path), nil)
	}

	result := &FileResult{
		Path:      path,
		FileName:  filepath.Base(path),
		FileType:  fileType(path),
		Size:      info.Size(),
		Reindexed: forceReindex,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeFilePermission, err)
	}
	digest := sha256Hex(data)
	result.Checksum = digest

	prior, priorErr := ix.registry.GetFile(ctx, path)
	hasPrior := priorErr == nil
	var priorDigest string
	if hasPrior {
		priorDigest = prior.Checksum
		result.ChunksOld = prior.ChunkCount
	}

	if forceReindex {
		if err := ix.store.DeleteByFile(ctx, path); err != nil {
			return nil, apperr.VectorStoreError("delete prior points before reindex", err)
		}
	} else if hasPrior && priorDigest == digest && prior.Status == registry.StatusIndexed {
		result.Outcome = OutcomeNoOp
		result.Status = registry.StatusIndexed
		result.Chunks = prior.ChunkCount
		return result, nil
	}

	if !ix.parser.Supports(path) {
		result.Outcome = OutcomeSkipped
		return result, nil
	}

	text, err := ix.parser.Parse(ctx, path)
	if err != nil {
		slog.Warn("parse_failed", slog.String("path", path), slog.String("error", err.Error()))
		dirID, dirErr := ix.resolveDirID(ctx, path)
		if dirErr != nil {
			return nil, dirErr
		}
		lastIndexed := time.Now().UTC()
		chunkCount := result.ChunksOld
		if upErr := ix.registry.UpsertFile(ctx, registry.File{
			Path:        path,
			DirID:       dirID,
			Checksum:    priorDigest,
			LastIndexed: lastIndexed,
			Status:      registry.StatusFailed,
			ChunkCount:  chunkCount,
		}); upErr != nil {
			return nil, upErr
		}
		result.Outcome = OutcomeFailed
		result.Status = registry.StatusFailed
		result.Warning = err.Error()
		return result, nil
	}

	chunks := ix.chunker.Chunk(text)

	dirID, err := ix.resolveDirID(ctx, path)
	if err != nil {
		return nil, err
	}

	needsDelete := !forceReindex && hasPrior && priorDigest != "" && priorDigest != digest
	if needsDelete {
		if err := ix.store.DeleteByFile(ctx, path); err != nil {
			return nil, apperr.VectorStoreError("delete superseded points", err)
		}
	}

	if len(chunks) == 0 {
		if err := ix.registry.UpsertFile(ctx, registry.File{
			Path:        path,
			DirID:       dirID,
			Checksum:    digest,
			LastIndexed: time.Now().UTC(),
			Status:      registry.StatusIndexed,
			ChunkCount:  0,
		}); err != nil {
			return nil, err
		}
		ix.purgeSearchCache()
		result.Outcome = OutcomeEmpty
		result.Status = registry.StatusIndexed
		result.Chunks = 0
		return result, nil
	}

	embeddings, err := ix.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		dirErr := ix.registry.UpsertFile(ctx, registry.File{
			Path:        path,
			DirID:       dirID,
			Checksum:    priorDigest,
			LastIndexed: time.Now().UTC(),
			Status:      registry.StatusFailed,
			ChunkCount:  result.ChunksOld,
		})
		if dirErr != nil {
			return nil, dirErr
		}
		result.Outcome = OutcomeFailed
		result.Status = registry.StatusFailed
		result.Warning = err.Error()
		return result, nil
	}

	points := make([]vectorstore.Point, len(chunks))
	for i, text := range chunks {
		points[i] = vectorstore.Point{
			ID:     vectorstore.PointID(path, digest, i),
			Vector: embeddings[i],
			Payload: map[string]any{
				"file_path":   path,
				"file_name":   result.FileName,
				"file_size":   result.Size,
				"file_type":   result.FileType,
				"chunk":       text,
				"chunk_index": i,
				"chunk_size":  len(text),
				"file_hash":   digest,
			},
		}
	}

	if err := ix.store.Upsert(ctx, points); err != nil {
		return nil, apperr.VectorStoreError("upsert points", err)
	}

	if err := ix.registry.UpsertFile(ctx, registry.File{
		Path:        path,
		DirID:       dirID,
		Checksum:    digest,
		LastIndexed: time.Now().UTC(),
		Status:      registry.StatusIndexed,
		ChunkCount:  len(chunks),
	}); err != nil {
		return nil, err
	}

	ix.purgeSearchCache()

	result.Outcome = OutcomeIndexed
	result.Status = registry.StatusIndexed
	result.Chunks = len(chunks)
	return result, nil
}

// RemoveFile implements remove_file(path): delete every point for path,
// drop the file record, invalidate the search cache.
func (ix *Indexer) RemoveFile(ctx context.Context, path string) (*FileResult, error) {
	if !filepath.IsAbs(path) {
		return nil, apperr.ValidationError(fmt.Sprintf("path must be absolute: %s", path), nil)
	}

	unlock := ix.locks.Lock(path)
	defer unlock()

	count, err := ix.store.CountByFile(ctx, path)
	if err != nil {
		return nil, apperr.VectorStoreError("count points before removal", err)
	}

	if err := ix.store.DeleteByFile(ctx, path); err != nil {
		return nil, apperr.VectorStoreError("delete points", err)
	}
	if err := ix.registry.RemoveFile(ctx, path); err != nil {
		return nil, err
	}

	ix.purgeSearchCache()

	return &FileResult{
		Path:     path,
		FileName: filepath.Base(path),
		FileType: fileType(path),
		Chunks:   count,
		Outcome:  OutcomeRemoved,
		Status:   "",
	}, nil
}
