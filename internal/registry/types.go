// Package registry persists the directories and files under management, as
// described in spec.md §6: two tables, directories and files, and nothing
// else. The vector store remains the source of truth for chunk content;
// this package only tracks what's been seen and its last-known status.
package registry

import "time"

// Status is a file's position in the indexing state machine:
// absent -> pending -> indexed <-> pending (reindex) -> absent (remove).
// A side-branch pending -> failed -> pending exists when reparse fails
// and is later retried. The indexer writes a record only once a file's
// outcome is known, as StatusIndexed or StatusFailed; StatusPending is
// defined here but no caller in this repository stores it.
type Status string

const (
	StatusPending Status = "pending"
	StatusIndexed Status = "indexed"
	StatusFailed  Status = "failed"
)

// Directory is a registered root directory.
type Directory struct {
	ID      int64
	Path    string
	AddedAt time.Time
}

// File is a tracked file beneath a registered directory.
type File struct {
	Path        string
	DirID       int64
	Checksum    string
	LastIndexed time.Time
	Status      Status
	ChunkCount  int
}
