// Package search implements the query-time half of the pipeline: embed a
// query, run a similarity search against the vector store, and project the
// hits into the response shape external callers expect. See spec.md §4.8.
package search
