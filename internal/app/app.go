// Package app wires the config-driven collaborators (registry, parser,
// chunker, embedder, vector store, indexer, watch manager, search engine)
// into a single App, the way the teacher's index/serve commands each
// constructed their own copy of this graph inline. Centralizing it here
// means cmd/corpuslens's subcommands share one construction path instead of
// drifting apart.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/corpuslens/corpuslens/internal/cache"
	"github.com/corpuslens/corpuslens/internal/chunk"
	"github.com/corpuslens/corpuslens/internal/config"
	"github.com/corpuslens/corpuslens/internal/embed"
	"github.com/corpuslens/corpuslens/internal/indexer"
	"github.com/corpuslens/corpuslens/internal/parser"
	"github.com/corpuslens/corpuslens/internal/registry"
	"github.com/corpuslens/corpuslens/internal/search"
	"github.com/corpuslens/corpuslens/internal/vectorstore"
	"github.com/corpuslens/corpuslens/internal/watch"
)

// App owns every long-lived collaborator corpuslens needs, built once from
// a loaded Config and shared by the serve/index/search CLI commands.
type App struct {
	Config   *config.Config
	Registry *registry.Registry
	Parser   *parser.Registry
	Embedder embed.Embedder
	Store    vectorstore.Store
	Indexer  *indexer.Indexer
	Watch    *watch.Manager
	Search   *search.Engine

	searchCache *cache.Cache[search.Response]
}

// New builds an App from cfg. Construction order mirrors the teacher's
// runIndexWithOptions: registry and parser first (cheap, local), then the
// embedder (may dial out), then the vector store sized to the embedder's
// dimensions, then the indexer and search engine that sit on top of all of
// them.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	reg, err := registry.Open(cfg.Registry.Path)
	if err != nil {
		return nil, fmt.Errorf("app: opening registry: %w", err)
	}

	ocr := parser.NewTesseractOCR(cfg.OCR)
	parserRegistry := parser.NewRegistry(ocr, cfg.OCR)

	embedder, err := embed.NewEmbedder(ctx, cfg.Embeddings, embed.Options{Cache: cfg.Cache})
	if err != nil {
		_ = reg.Close()
		return nil, fmt.Errorf("app: creating embedder: %w", err)
	}

	store, err := vectorstore.NewQdrantStore(vectorstore.QdrantOptions{
		URL:            cfg.VectorDB.URL,
		CollectionName: cfg.VectorDB.CollectionName,
	})
	if err != nil {
		_ = embedder.Close()
		_ = reg.Close()
		return nil, fmt.Errorf("app: connecting to vector store: %w", err)
	}

	if err := store.EnsureCollection(ctx, embedder.Dimensions()); err != nil {
		_ = store.Close()
		_ = embedder.Close()
		_ = reg.Close()
		return nil, fmt.Errorf("app: ensuring collection: %w", err)
	}

	chunker := chunk.New(chunk.Config{Size: cfg.Chunking.ChunkSize, Overlap: cfg.Chunking.ChunkOverlap})

	searchCache := cache.New(cfg.Cache.SearchCacheMB,
		time.Duration(cfg.Cache.SearchCacheTTLS)*time.Second,
		search.ResponseSize)

	ix, err := indexer.New(indexer.Dependencies{
		Registry:    reg,
		Parser:      parserRegistry,
		Chunker:     chunker,
		Embedder:    embedder,
		Store:       store,
		SearchCache: searchCache,
	})
	if err != nil {
		_ = store.Close()
		_ = embedder.Close()
		_ = reg.Close()
		return nil, fmt.Errorf("app: creating indexer: %w", err)
	}

	watchMgr := watch.NewManager(ix, parserRegistry, watch.Options{
		DebounceWindow: time.Duration(cfg.Watch.DebounceMS) * time.Millisecond,
	})

	engine, err := search.New(embedder, store, searchCache, search.Config{
		MaxTopK:        cfg.Search.MaxTopK,
		CollectionName: cfg.VectorDB.CollectionName,
	})
	if err != nil {
		_ = store.Close()
		_ = embedder.Close()
		_ = reg.Close()
		return nil, fmt.Errorf("app: creating search engine: %w", err)
	}

	return &App{
		Config:      cfg,
		Registry:    reg,
		Parser:      parserRegistry,
		Embedder:    embedder,
		Store:       store,
		Indexer:     ix,
		Watch:       watchMgr,
		Search:      engine,
		searchCache: searchCache,
	}, nil
}

// ReconcileOnStartup reconciles every registered directory against what's
// actually on disk before any watcher attaches, per spec.md §3's registry
// invariant and mirroring the teacher's ReconcileOnStartup.
func (a *App) ReconcileOnStartup(ctx context.Context) error {
	_, err := a.Indexer.ReconcileAll(ctx, a.Config.Indexer.WorkerPoolSize)
	return err
}

// WatchAllRegistered starts a watcher for every directory already in the
// registry, so a restarted process resumes watching what it was watching
// before.
func (a *App) WatchAllRegistered(ctx context.Context) error {
	dirs, err := a.Registry.ListDirectories(ctx)
	if err != nil {
		return fmt.Errorf("app: listing directories: %w", err)
	}
	for _, dir := range dirs {
		if err := a.Watch.Start(ctx, dir.Path); err != nil {
			return fmt.Errorf("app: watching %s: %w", dir.Path, err)
		}
	}
	return nil
}

// Close releases every collaborator in reverse construction order.
func (a *App) Close() error {
	a.Watch.StopAll()
	var firstErr error
	if err := a.Store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.Embedder.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.Registry.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
