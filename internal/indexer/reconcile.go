package indexer

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/corpuslens/corpuslens/internal/scanner"
)

// ReconcileResult summarizes what startup reconciliation found and changed
// for a single registered directory.
type ReconcileResult struct {
	Directory string
	Added     int
	Modified  int
	Removed   int
	Failed    int
}

// ReconcileAll reconciles every directory already registered in the
// registry against its current on-disk state. It's meant to run once at
// daemon start, before watchers attach, to catch changes that happened
// while the process was down: files edited, created, or deleted offline.
func (ix *Indexer) ReconcileAll(ctx context.Context, workers int) ([]ReconcileResult, error) {
	dirs, err := ix.registry.ListDirectories(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]ReconcileResult, 0, len(dirs))
	for _, dir := range dirs {
		res, err := ix.ReconcileDirectory(ctx, dir.Path, workers)
		if err != nil {
			slog.Warn("reconcile_directory_failed", slog.String("directory", dir.Path), slog.String("error", err.Error()))
			continue
		}
		results = append(results, *res)
	}
	return results, nil
}

// ReconcileDirectory compares root's registered file records against what's
// currently on disk: files that changed or appeared are (re)indexed, files
// that vanished are removed from the index. Unchanged files cost a digest
// comparison only, via IndexFile's own no-op short circuit.
func (ix *Indexer) ReconcileDirectory(ctx context.Context, root string, workers int) (*ReconcileResult, error) {
	if workers <= 0 {
		workers = DefaultInFlightFiles
	}

	dir, err := ix.registry.AddDirectory(ctx, root)
	if err != nil {
		return nil, err
	}

	tracked, err := ix.registry.FilesByDirectory(ctx, dir.ID)
	if err != nil {
		return nil, err
	}
	trackedSet := make(map[string]bool, len(tracked))
	for _, f := range tracked {
		trackedSet[f.Path] = true
	}

	s, err := scanner.New()
	if err != nil {
		return nil, err
	}
	scanResults, err := s.Scan(ctx, &scanner.ScanOptions{
		RootDir:          root,
		RespectGitignore: true,
		FollowSymlinks:   false,
	})
	if err != nil {
		return nil, err
	}

	onDisk := make(map[string]bool)
	var toIndex []string
	for res := range scanResults {
		if res.Error != nil || res.File == nil {
			continue
		}
		path := res.File.AbsPath
		if !ix.parser.Supports(path) {
			continue
		}
		onDisk[path] = true
		toIndex = append(toIndex, path)
	}

	var toRemove []string
	for path := range trackedSet {
		if !onDisk[path] {
			toRemove = append(toRemove, path)
		}
	}

	result := &ReconcileResult{Directory: root}
	var mu sync.Mutex

	for _, path := range toRemove {
		if _, err := ix.RemoveFile(ctx, path); err != nil {
			slog.Warn("reconcile_remove_failed", slog.String("path", path), slog.String("error", err.Error()))
			result.Failed++
			continue
		}
		result.Removed++
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, workers)
	for _, path := range toIndex {
		path := path
		wasTracked := trackedSet[path]

		select {
		case sem <- struct{}{}:
		case <-gctx.Done():
			continue
		}
		g.Go(func() error {
			defer func() { <-sem }()

			fr, err := ix.IndexFile(gctx, path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("reconcile_index_failed", slog.String("path", path), slog.String("error", err.Error()))
				result.Failed++
				return nil
			}
			switch {
			case fr.Outcome == OutcomeNoOp:
				// unchanged, nothing to report
			case !wasTracked:
				result.Added++
			default:
				result.Modified++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if result.Added > 0 || result.Modified > 0 || result.Removed > 0 {
		slog.Info("reconciliation completed",
			slog.String("directory", root),
			slog.Int("added", result.Added),
			slog.Int("modified", result.Modified),
			slog.Int("removed", result.Removed),
			slog.Int("failed", result.Failed))
	}

	return result, nil
}
