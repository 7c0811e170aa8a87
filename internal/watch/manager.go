package watch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/corpuslens/corpuslens/internal/indexer"
	"github.com/corpuslens/corpuslens/internal/parser"
)

// dirWatcher is satisfied by fsnotifyWatcher and pollingWatcher.
type dirWatcher interface {
	start(ctx context.Context, root string) error
	stop() error
	output() <-chan []FileEvent
}

// Manager owns one watcher per registered directory and dispatches its
// debounced events into the indexer, per spec.md §4.7:
//
//	create(path) -> index_file(path)
//	modify(path) -> reindex_file(path)
//	delete(path) -> remove_file(path)
type Manager struct {
	indexer *indexer.Indexer
	parser  *parser.Registry
	opts    Options

	mu       sync.Mutex
	watchers map[string]*watchedDir
}

type watchedDir struct {
	watcher dirWatcher
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewManager creates a Manager wired to ix for dispatch and p to decide
// which paths are indexable.
func NewManager(ix *indexer.Indexer, p *parser.Registry, opts Options) *Manager {
	return &Manager{
		indexer:  ix,
		parser:   p,
		opts:     opts.WithDefaults(),
		watchers: make(map[string]*watchedDir),
	}
}

// Start begins watching root. Idempotent: calling it again for an
// already-watched root is a no-op.
func (m *Manager) Start(ctx context.Context, root string) error {
	m.mu.Lock()
	if _, exists := m.watchers[root]; exists {
		m.mu.Unlock()
		return nil
	}

	w, err := newFsnotifyWatcher(m.opts)
	var dw dirWatcher
	if err != nil {
		slog.Warn("fsnotify_unavailable_falling_back_to_polling", slog.String("root", root), slog.String("error", err.Error()))
		dw = newPollingWatcher(m.opts)
	} else {
		dw = w
	}

	watchCtx, cancel := context.WithCancel(ctx)
	wd := &watchedDir{watcher: dw, cancel: cancel, done: make(chan struct{})}
	m.watchers[root] = wd
	m.mu.Unlock()

	go func() {
		defer close(wd.done)
		if err := dw.start(watchCtx, root); err != nil && watchCtx.Err() == nil {
			slog.Warn("watcher_start_failed", slog.String("root", root), slog.String("error", err.Error()))
		}
	}()

	go m.dispatch(watchCtx, dw.output())

	return nil
}

// Stop stops the watcher for root. Idempotent: stopping an already-stopped
// or never-started root is a no-op.
func (m *Manager) Stop(root string) error {
	m.mu.Lock()
	wd, exists := m.watchers[root]
	if !exists {
		m.mu.Unlock()
		return nil
	}
	delete(m.watchers, root)
	m.mu.Unlock()

	wd.cancel()
	err := wd.watcher.stop()
	<-wd.done
	return err
}

// StopAll stops every active watcher.
func (m *Manager) StopAll() {
	m.mu.Lock()
	roots := make([]string, 0, len(m.watchers))
	for root := range m.watchers {
		roots = append(roots, root)
	}
	m.mu.Unlock()

	for _, root := range roots {
		_ = m.Stop(root)
	}
}

// dispatch consumes debounced batches and applies spec.md §4.7's state
// transitions, ignoring directory events and unsupported extensions and
// tolerating paths that no longer exist by processing time.
func (m *Manager) dispatch(ctx context.Context, events <-chan []FileEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-events:
			if !ok {
				return
			}
			for _, ev := range batch {
				m.apply(ctx, ev)
			}
		}
	}
}

func (m *Manager) apply(ctx context.Context, ev FileEvent) {
	if ev.IsDir {
		return
	}
	if !m.parser.Supports(ev.Path) {
		return
	}

	var err error
	switch ev.Operation {
	case OpCreate:
		_, err = m.indexer.IndexFile(ctx, ev.Path)
	case OpModify:
		_, err = m.indexer.ReindexFile(ctx, ev.Path)
	case OpDelete:
		_, err = m.indexer.RemoveFile(ctx, ev.Path)
	}
	if err != nil {
		slog.Warn("watch_dispatch_failed",
			slog.String("path", ev.Path),
			slog.String("op", ev.Operation.String()),
			slog.String("error", err.Error()))
	}
}
