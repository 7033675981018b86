package state

import (
	"context"
	"sync"
)

// MemoryStore keeps bookmarks in process memory. It is meant for tests and
// one-shot runs that do not need persistence.
type MemoryStore struct {
	mu        sync.RWMutex
	bookmarks map[string]Bookmark
}

// NewMemoryStore creates an empty in-memory bookmark store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bookmarks: make(map[string]Bookmark)}
}

// Get retrieves the bookmark for a collection.
// Returns ErrNoBookmark if the collection has never been synced.
func (s *MemoryStore) Get(ctx context.Context, collection string) (Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bm, ok := s.bookmarks[collection]
	if !ok {
		return Bookmark{}, ErrNoBookmark
	}
	return bm, nil
}

// Put stores the bookmark for a collection.
func (s *MemoryStore) Put(ctx context.Context, collection string, bm Bookmark) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bookmarks[collection] = bm
	return nil
}

// Delete removes the bookmark for a collection.
func (s *MemoryStore) Delete(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.bookmarks, collection)
	return nil
}
