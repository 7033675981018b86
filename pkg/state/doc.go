// Package state persists replication bookmarks between runs.
//
// A bookmark records how far a collection's token ordering has been
// replicated: the next cursor to request, when it was written, and how many
// records the writing run emitted. Three backends implement the Store
// interface:
//
// - RedisStore: one JSON value per collection under a configurable prefix
// - FileStore: a single JSON document in the singer state layout, replaced atomically
// - MemoryStore: process-local, for tests and one-shot runs
//
// # Basic Usage
//
//	store := state.NewFileStore("state.json")
//
//	bm, err := store.Get(ctx, "changed_stock")
//	if errors.Is(err, state.ErrNoBookmark) {
//		// first run, replication starts at the initial cursor
//	}
//
//	bm.Cursor = 41
//	if err := store.Put(ctx, "changed_stock", bm); err != nil {
//		return err
//	}
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - sherpa_bookmark_reads_total{backend} - Bookmark loads
//   - sherpa_bookmark_misses_total - Loads finding no stored bookmark
//   - sherpa_bookmark_writes_total{backend} - Bookmark writes
//   - sherpa_state_errors_total{operation} - Store failures
package state
