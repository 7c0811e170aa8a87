// Package chunk splits file text into overlapping windows suitable for
// embedding.
package chunk

// Config controls the chunking window.
type Config struct {
	Size    int // target window length, in runes
	Overlap int // overlap between consecutive windows, in runes
}

const (
	DefaultSize    = 800
	DefaultOverlap = 120
)

// Chunker splits text into a deterministic, ordered sequence of
// overlapping windows.
type Chunker struct {
	size    int
	overlap int
}

// New returns a Chunker with the given configuration. Zero-value fields
// fall back to the package defaults; an overlap that would not leave the
// window advancing is clamped to size-1.
func New(cfg Config) *Chunker {
	size := cfg.Size
	if size <= 0 {
		size = DefaultSize
	}
	overlap := cfg.Overlap
	if overlap <= 0 {
		overlap = DefaultOverlap
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits text into an ordered sequence of windows numbered from 0.
// Each window (except possibly the last) has length size; consecutive
// windows share a suffix/prefix of length overlap. Text shorter than the
// window is returned as a single chunk. The result is deterministic:
// identical input always yields the identical sequence.
func (c *Chunker) Chunk(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= c.size {
		return []string{string(runes)}
	}

	stride := c.size - c.overlap
	var chunks []string
	for start := 0; start < len(runes); start += stride {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
