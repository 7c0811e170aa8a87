package scanner

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/corpuslens/corpuslens/internal/gitignore"
)

// gitignoreCacheSize bounds the number of parsed gitignore matchers kept
// in memory for long-running scans across many subdirectories.
const gitignoreCacheSize = 1000

// Scanner discovers files beneath a registered root directory.
type Scanner struct {
	gitignoreCache *lru.Cache[string, *gitignore.Matcher]
	cacheMu        sync.RWMutex
}

// New creates a Scanner.
func New() (*Scanner, error) {
	cache, err := lru.New[string, *gitignore.Matcher](gitignoreCacheSize)
	if err != nil {
		return nil, err
	}
	return &Scanner{gitignoreCache: cache}, nil
}

// Scan walks opts.RootDir and streams every file that is not excluded.
// The returned channel is closed once the walk completes or ctx is done.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions) (<-chan ScanResult, error) {
	if opts == nil {
		opts = &ScanOptions{}
	}
	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = "."
	}
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, err
	}

	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}

	results := make(chan ScanResult)
	go func() {
		defer close(results)
		s.walk(ctx, absRoot, opts, maxFileSize, results)
	}()
	return results, nil
}

func (s *Scanner) walk(ctx context.Context, absRoot string, opts *ScanOptions, maxFileSize int64, results chan<- ScanResult) {
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil // inaccessible entries are skipped, not fatal
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil || relPath == "." {
			return nil
		}

		if d.IsDir() {
			if s.shouldExcludeDir(relPath, absRoot, opts) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			if !opts.FollowSymlinks || !s.symlinkResolvesInside(absRoot, path) {
				return nil
			}
		}

		if s.shouldExcludeFile(relPath, absRoot, opts) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > maxFileSize {
			return nil
		}

		fileInfo := &FileInfo{
			Path:    relPath,
			AbsPath: path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}

		select {
		case results <- ScanResult{File: fileInfo}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	if err != nil && err != context.Canceled {
		select {
		case results <- ScanResult{Error: err}:
		case <-ctx.Done():
		}
	}
}

// symlinkResolvesInside reports whether path's resolved target stays
// within absRoot, per spec.md §6's "followed only if they resolve
// inside the registered root".
func (s *Scanner) symlinkResolvesInside(absRoot, path string) bool {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, resolved)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (s *Scanner) shouldExcludeDir(relPath, absRoot string, opts *ScanOptions) bool {
	for _, pattern := range defaultExcludeDirs {
		if matchDirPattern(relPath, pattern) {
			return true
		}
	}
	for _, pattern := range opts.ExcludePatterns {
		if matchDirPattern(relPath, pattern) {
			return true
		}
	}
	if opts.RespectGitignore {
		parent := filepath.Dir(filepath.Join(absRoot, relPath))
		matcher := s.getGitignoreMatcher(parent, absRoot)
		if matcher != nil && matcher.Match(filepath.ToSlash(relPath), true) {
			return true
		}
	}
	return false
}

func (s *Scanner) shouldExcludeFile(relPath, absRoot string, opts *ScanOptions) bool {
	baseName := filepath.Base(relPath)

	for _, pattern := range sensitiveFilePatterns {
		if matchFilePattern(baseName, relPath, pattern) {
			return true
		}
	}
	for _, pattern := range defaultExcludeFiles {
		if matchFilePattern(baseName, relPath, pattern) {
			return true
		}
	}
	for _, pattern := range opts.ExcludePatterns {
		if matchFilePattern(baseName, relPath, pattern) {
			return true
		}
	}
	if opts.RespectGitignore && s.isGitignored(relPath, absRoot) {
		return true
	}
	return false
}

// matchDirPattern checks if a directory path matches a gitignore-style pattern.
func matchDirPattern(relPath, pattern string) bool {
	if strings.HasPrefix(pattern, "**/") {
		suffix := strings.TrimPrefix(pattern, "**/")
		suffix = strings.TrimSuffix(suffix, "/**")
		parts := strings.Split(relPath, string(filepath.Separator))
		for _, part := range parts {
			if part == suffix {
				return true
			}
		}
		return false
	}
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return relPath == prefix || strings.HasPrefix(relPath, prefix+string(filepath.Separator))
	}
	return relPath == pattern
}

// matchFilePattern checks if a file matches a glob-ish pattern against
// either its base name or full relative path.
func matchFilePattern(baseName, relPath, pattern string) bool {
	if ok, _ := filepath.Match(pattern, baseName); ok {
		return true
	}
	if ok, _ := filepath.Match(pattern, relPath); ok {
		return true
	}
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		trimmed := strings.Trim(pattern, "*")
		if trimmed != "" && strings.Contains(strings.ToLower(baseName), strings.ToLower(trimmed)) {
			return true
		}
	}
	return false
}

func (s *Scanner) isGitignored(relPath, absRoot string) bool {
	dir := filepath.Dir(filepath.Join(absRoot, relPath))
	matcher := s.getGitignoreMatcher(dir, absRoot)
	if matcher == nil {
		return false
	}
	return matcher.Match(filepath.ToSlash(relPath), false)
}

// getGitignoreMatcher returns the merged matcher for every .gitignore file
// from root down to dir, inclusive, caching the result per directory.
func (s *Scanner) getGitignoreMatcher(dir, root string) *gitignore.Matcher {
	s.cacheMu.RLock()
	if m, ok := s.gitignoreCache.Get(dir); ok {
		s.cacheMu.RUnlock()
		return m
	}
	s.cacheMu.RUnlock()

	var ancestors []string
	for d := dir; ; d = filepath.Dir(d) {
		ancestors = append([]string{d}, ancestors...)
		if d == root || d == filepath.Dir(d) {
			break
		}
	}

	m := gitignore.New()
	for _, d := range ancestors {
		base, err := filepath.Rel(root, d)
		if err != nil || base == "." {
			base = ""
		} else {
			base = filepath.ToSlash(base)
		}
		_ = m.AddFromFile(filepath.Join(d, ".gitignore"), base)
	}

	s.cacheMu.Lock()
	s.gitignoreCache.Add(dir, m)
	s.cacheMu.Unlock()
	return m
}

// InvalidateGitignoreCache drops cached gitignore matchers, used when a
// watcher observes a .gitignore file changing.
func (s *Scanner) InvalidateGitignoreCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.gitignoreCache.Purge()
}

var defaultExcludeDirs = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/target/**",
}

var defaultExcludeFiles = []string{
	"**/*.min.js",
	"**/*.min.css",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/go.sum",
}

// sensitiveFilePatterns are never indexed regardless of extension support.
var sensitiveFilePatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*.p12",
	"*.pfx",
	"*credentials*",
	"*secrets*",
	"*password*",
	".netrc",
	".npmrc",
	".pypirc",
	"id_rsa",
	"id_dsa",
	"id_ecdsa",
	"id_ed25519",
}
