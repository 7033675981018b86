package state

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoBookmark indicates the collection has never been synced.
	ErrNoBookmark = errors.New("no bookmark")

	// ErrInvalidBookmark indicates stored state that cannot be decoded.
	ErrInvalidBookmark = errors.New("invalid bookmark")
)

// Bookmark is the replication position of one collection.
type Bookmark struct {
	// Cursor is the token the next fetch starts from.
	Cursor int64 `json:"token"`

	// LastSync records when the bookmark was written.
	LastSync time.Time `json:"last_sync"`

	// RecordsProcessed counts the records emitted by the run that wrote
	// the bookmark.
	RecordsProcessed int64 `json:"records_processed"`
}

// Store persists bookmarks keyed by collection name.
//
// Implementations must make Put durable before returning: the pagination
// driver assumes a persisted cursor will survive a crash between pages.
type Store interface {
	// Get returns the bookmark for a collection, or ErrNoBookmark when
	// none has been stored yet.
	Get(ctx context.Context, collection string) (Bookmark, error)

	// Put stores the bookmark for a collection, replacing any previous
	// one.
	Put(ctx context.Context, collection string, bm Bookmark) error
}
