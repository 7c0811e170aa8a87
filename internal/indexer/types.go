// Package indexer owns the file-to-points pipeline: index_directory,
// index_file, reindex_file, and remove_file, as described in spec.md §4.6.
package indexer

import "github.com/corpuslens/corpuslens/internal/registry"

// Outcome classifies what an index_file/reindex_file call actually did.
type Outcome string

const (
	OutcomeIndexed Outcome = "indexed"
	OutcomeNoOp    Outcome = "no-op"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
	OutcomeEmpty   Outcome = "empty"
	OutcomeRemoved Outcome = "removed"
)

// FileResult is the outcome of a single index_file/reindex_file/remove_file call.
type FileResult struct {
	Path      string          `json:"filePath"`
	FileName  string          `json:"fileName"`
	FileType  string          `json:"fileType"`
	Size      int64           `json:"size"`
	Checksum  string          `json:"checksum"`
	ChunksOld int             `json:"chunksOld,omitempty"`
	Chunks    int             `json:"chunks"`
	Outcome   Outcome         `json:"outcome"`
	Reindexed bool            `json:"reindexed,omitempty"`
	Warning   string          `json:"warning,omitempty"`
	Status    registry.Status `json:"status,omitempty"`
}

// DirectoryResult aggregates the outcome of index_directory over every file
// it enqueued.
type DirectoryResult struct {
	Directory      string `json:"directory"`
	TotalFiles     int    `json:"totalFiles"`
	FilesProcessed int    `json:"filesProcessed"`
	FilesSkipped   int    `json:"filesSkipped,omitempty"`
	FilesFailed    int    `json:"filesFailed,omitempty"`
	ChunksIndexed  int    `json:"chunksIndexed"`
}
