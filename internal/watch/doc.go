// Package watch provides the directory-watch reconciliation loop spec.md
// §4.7 describes: one watcher per registered directory, debounced dispatch,
// and a typed Created|Modified|Deleted event forwarded to the indexer.
//
// The Manager implements a hybrid watching strategy:
//   - Primary: fsnotify for efficient event-based watching
//   - Fallback: Polling for environments where fsnotify fails (network mounts, Docker volumes)
//
// Events are debounced to coalesce rapid changes from editors and git
// operations, and filtered against .gitignore patterns before being handed
// to the indexer.
package watch
