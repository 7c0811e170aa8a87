package indexer

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/corpuslens/corpuslens/internal/scanner"
)

// DefaultInFlightFiles bounds index_directory's concurrent file count when
// the caller doesn't specify one, per spec.md §5's backpressure requirement
// (default 8-16).
const DefaultInFlightFiles = 12

// IndexDirectory implements index_directory(root) per spec.md §4.6: walk the
// tree, enqueue index_file for every regular file, and aggregate counts. A
// per-file failure never aborts the walk.
func (ix *Indexer) IndexDirectory(ctx context.Context, root string, workers int) (*DirectoryResult, error) {
	if workers <= 0 {
		workers = DefaultInFlightFiles
	}

	if err := ix.registry.Lock(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = ix.registry.Unlock() }()

	if _, err := ix.registry.AddDirectory(ctx, root); err != nil {
		return nil, err
	}

	s, err := scanner.New()
	if err != nil {
		return nil, err
	}
	results, err := s.Scan(ctx, &scanner.ScanOptions{
		RootDir:          root,
		RespectGitignore: true,
		FollowSymlinks:   false,
	})
	if err != nil {
		return nil, err
	}

	var (
		mu  sync.Mutex
		agg DirectoryResult
	)
	agg.Directory = root

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, workers)

	for res := range results {
		if res.Error != nil {
			continue
		}
		file := res.File
		if !ix.parser.Supports(file.AbsPath) {
			mu.Lock()
			agg.TotalFiles++
			agg.FilesSkipped++
			mu.Unlock()
			continue
		}

		mu.Lock()
		agg.TotalFiles++
		mu.Unlock()

		select {
		case sem <- struct{}{}:
		case <-gctx.Done():
			continue
		}

		path := file.AbsPath
		g.Go(func() error {
			defer func() { <-sem }()

			fr, err := ix.IndexFile(gctx, path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				agg.FilesFailed++
				return nil
			}
			switch fr.Outcome {
			case OutcomeFailed:
				agg.FilesFailed++
			case OutcomeSkipped:
				agg.FilesSkipped++
			default:
				agg.FilesProcessed++
				agg.ChunksIndexed += fr.Chunks
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &agg, nil
}
