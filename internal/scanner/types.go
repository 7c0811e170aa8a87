// Package scanner walks a registered directory and yields the regular
// files the indexer should consider, filtering out .git, common
// build/dependency directories, gitignored paths, and sensitive files.
package scanner

import "time"

// FileInfo describes a single discovered file.
type FileInfo struct {
	Path    string // relative to the scan root
	AbsPath string
	Size    int64
	ModTime time.Time
}

// ScanOptions configures a scan.
type ScanOptions struct {
	// RootDir is the directory to walk.
	RootDir string

	// ExcludePatterns are additional gitignore-style patterns to exclude,
	// beyond the built-in defaults.
	ExcludePatterns []string

	// RespectGitignore enables .gitignore parsing.
	RespectGitignore bool

	// MaxFileSize bounds the size of files yielded (0 = DefaultMaxFileSize).
	MaxFileSize int64

	// FollowSymlinks allows following symlinks that resolve inside RootDir.
	FollowSymlinks bool
}

// ScanResult is sent on the scan channel for each discovered file, or to
// report a walk-level error.
type ScanResult struct {
	File  *FileInfo
	Error error
}

// DefaultMaxFileSize bounds file size when ScanOptions.MaxFileSize is unset.
const DefaultMaxFileSize = 10 * 1024 * 1024
