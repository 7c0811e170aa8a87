package watch

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/corpuslens/corpuslens/internal/gitignore"
)

// pollingWatcher watches a directory by periodically rescanning it. Used
// as a fallback when fsnotify.NewWatcher fails (network mounts, some
// container filesystems). It reads only the root's .gitignore; nested
// .gitignore files are not applied.
type pollingWatcher struct {
	interval  time.Duration
	debouncer *Debouncer
	gitignore *gitignore.Matcher
	rootPath  string
	opts      Options

	mu        sync.Mutex
	fileState map[string]pollSnapshot
	stopped   bool
	stopCh    chan struct{}
}

type pollSnapshot struct {
	modTime time.Time
	size    int64
}

func newPollingWatcher(opts Options) *pollingWatcher {
	return &pollingWatcher{
		interval:  opts.PollInterval,
		debouncer: NewDebouncer(opts.DebounceWindow),
		gitignore: gitignore.New(),
		opts:      opts,
		fileState: make(map[string]pollSnapshot),
		stopCh:    make(chan struct{}),
	}
}

func (p *pollingWatcher) start(ctx context.Context, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	p.rootPath = absRoot
	p.loadGitignore()

	if err := p.scan(); err != nil {
		return fmt.Errorf("initial scan: %w", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			p.detectChanges()
		}
	}
}

func (p *pollingWatcher) scan() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return filepath.WalkDir(p.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != p.rootPath && p.ignoredDirLocked(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if p.ignoredFileLocked(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		p.fileState[path] = pollSnapshot{modTime: info.ModTime(), size: info.Size()}
		return nil
	})
}

func (p *pollingWatcher) detectChanges() {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := make(map[string]pollSnapshot)
	_ = filepath.WalkDir(p.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != p.rootPath && p.ignoredDirLocked(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if p.ignoredFileLocked(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		snap := pollSnapshot{modTime: info.ModTime(), size: info.Size()}
		current[path] = snap

		if prev, exists := p.fileState[path]; !exists {
			p.debouncer.Add(FileEvent{Path: path, Operation: OpCreate, Timestamp: time.Now()})
		} else if !prev.modTime.Equal(snap.modTime) || prev.size != snap.size {
			p.debouncer.Add(FileEvent{Path: path, Operation: OpModify, Timestamp: time.Now()})
		}
		return nil
	})

	for path := range p.fileState {
		if _, exists := current[path]; !exists {
			p.debouncer.Add(FileEvent{Path: path, Operation: OpDelete, Timestamp: time.Now()})
		}
	}

	p.fileState = current
}

func (p *pollingWatcher) ignoredDirLocked(absPath string) bool {
	rel, err := filepath.Rel(p.rootPath, absPath)
	if err != nil {
		return false
	}
	if rel == ".git" {
		return true
	}
	return p.gitignore.Match(filepath.ToSlash(rel), true)
}

func (p *pollingWatcher) ignoredFileLocked(absPath string) bool {
	rel, err := filepath.Rel(p.rootPath, absPath)
	if err != nil {
		return true
	}
	return p.gitignore.Match(filepath.ToSlash(rel), false)
}

func (p *pollingWatcher) loadGitignore() {
	m := gitignore.New()
	for _, pattern := range p.opts.IgnorePatterns {
		m.AddPattern(pattern)
	}
	_ = m.AddFromFile(filepath.Join(p.rootPath, ".gitignore"), "")
	p.gitignore = m
}

func (p *pollingWatcher) stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	p.debouncer.Stop()
	return nil
}

func (p *pollingWatcher) output() <-chan []FileEvent {
	return p.debouncer.Output()
}
