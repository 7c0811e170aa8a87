package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/corpuslens/corpuslens/internal/gitignore"
)

// fsnotifyWatcher watches a single directory tree with fsnotify, debounces
// raw events, and filters out gitignored and dotfile-internal paths before
// they reach the debouncer.
type fsnotifyWatcher struct {
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	gitignore *gitignore.Matcher
	rootPath  string
	opts      Options

	mu      sync.RWMutex
	stopped bool
	stopCh  chan struct{}
}

func newFsnotifyWatcher(opts Options) (*fsnotifyWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &fsnotifyWatcher{
		fsWatcher: fsw,
		debouncer: NewDebouncer(opts.DebounceWindow),
		gitignore: gitignore.New(),
		opts:      opts,
		stopCh:    make(chan struct{}),
	}, nil
}

func (w *fsnotifyWatcher) start(ctx context.Context, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	w.rootPath = absRoot

	w.loadGitignore()

	if err := w.addRecursive(absRoot); err != nil {
		return fmt.Errorf("add directories to watcher: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("fsnotify_error", slog.String("root", w.rootPath), slog.String("error", err.Error()))
		}
	}
}

func (w *fsnotifyWatcher) handle(event fsnotify.Event) {
	if event.Op&fsnotify.Chmod != 0 && event.Op == fsnotify.Chmod {
		return
	}

	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	if w.shouldIgnore(event.Name, isDir) {
		return
	}

	if filepath.Base(event.Name) == ".gitignore" {
		w.loadGitignore()
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
		if isDir {
			_ = w.addRecursive(event.Name)
		}
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		// fsnotify reports a rename as Rename on the old name; the new name
		// arrives as its own Create. Treat the old name as deleted.
		op = OpDelete
	default:
		return
	}

	w.debouncer.Add(FileEvent{
		Path:      event.Name,
		Operation: op,
		IsDir:     isDir,
		Timestamp: time.Now(),
	})
}

func (w *fsnotifyWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.shouldIgnoreDir(path) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *fsnotifyWatcher) shouldIgnoreDir(absPath string) bool {
	relPath, err := filepath.Rel(w.rootPath, absPath)
	if err != nil {
		return false
	}
	if relPath == ".git" || strings.HasPrefix(relPath, ".git"+string(filepath.Separator)) {
		return true
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.gitignore.Match(filepath.ToSlash(relPath), true)
}

func (w *fsnotifyWatcher) shouldIgnore(absPath string, isDir bool) bool {
	relPath, err := filepath.Rel(w.rootPath, absPath)
	if err != nil || relPath == "." {
		return true
	}
	if relPath == ".git" || strings.HasPrefix(relPath, ".git"+string(filepath.Separator)) {
		return true
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.gitignore.Match(filepath.ToSlash(relPath), isDir)
}

func (w *fsnotifyWatcher) loadGitignore() {
	w.mu.Lock()
	defer w.mu.Unlock()

	m := gitignore.New()
	for _, p := range w.opts.IgnorePatterns {
		m.AddPattern(p)
	}

	rootIgnore := filepath.Join(w.rootPath, ".gitignore")
	if err := m.AddFromFile(rootIgnore, ""); err != nil && !os.IsNotExist(err) {
		slog.Warn("load_root_gitignore_failed", slog.String("path", rootIgnore), slog.String("error", err.Error()))
	}

	_ = filepath.WalkDir(w.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if d.Name() != ".gitignore" || path == rootIgnore {
			return nil
		}
		base, _ := filepath.Rel(w.rootPath, filepath.Dir(path))
		if err := m.AddFromFile(path, filepath.ToSlash(base)); err != nil {
			slog.Warn("load_nested_gitignore_failed", slog.String("path", path), slog.String("error", err.Error()))
		}
		return nil
	})

	w.gitignore = m
}

func (w *fsnotifyWatcher) stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	return w.fsWatcher.Close()
}

func (w *fsnotifyWatcher) output() <-chan []FileEvent {
	return w.debouncer.Output()
}
