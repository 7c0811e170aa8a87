package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Key derives a stable fingerprint from an ordered list of parts, so that
// identical inputs always collide and different inputs almost never do. A
// null byte separates parts to avoid ambiguity between e.g. ("ab", "c") and
// ("a", "bc").
func Key(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SearchKey derives the search-cache fingerprint from a normalized query,
// the requested top_k, an optional filter string, and the embedding model
// id, so cached results are never served across model or filter changes.
func SearchKey(normalizedQuery string, topK int, filter string, modelID string) string {
	return Key(normalizedQuery, strconv.Itoa(topK), filter, modelID)
}

// EmbeddingKey derives the embedding-cache fingerprint from the model id and
// exact text, the cache being keyed on content rather than any query
// normalization.
func EmbeddingKey(modelID, text string) string {
	return Key(modelID, text)
}

// NormalizeQuery lowercases and collapses internal whitespace so that
// cosmetic differences in a query don't cause spurious cache misses.
func NormalizeQuery(query string) string {
	fields := strings.Fields(strings.ToLower(query))
	return strings.Join(fields, " ")
}
