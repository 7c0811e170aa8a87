package vectorstore

import (
	"fmt"

	"github.com/google/uuid"
)

// pointNamespace scopes point-id derivation so it never collides with UUIDs
// generated for an unrelated purpose elsewhere in the system.
var pointNamespace = uuid.MustParse("7c3ee6d0-2b1b-4f0a-9b0e-1a6f4d9c9e31")

// PointID derives a stable point id from (path, digest, chunk_index). Qdrant
// only accepts UUIDs or unsigned integers as point ids; a name-based UUID
// (128 bits, SHA-1) gives collision odds negligible for this use case, and
// makes reindexing the same content idempotent since the id doesn't change.
func PointID(path, digest string, chunkIndex int) string {
	name := fmt.Sprintf("%s\x00%s\x00%d", path, digest, chunkIndex)
	return uuid.NewSHA1(pointNamespace, []byte(name)).String()
}
