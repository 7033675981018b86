package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileStore persists bookmarks in one JSON document using the singer state
// layout:
//
//	{"bookmarks": {"changed_stock": {"token": 41, ...}}}
//
// Every write replaces the whole document through a temp file and rename,
// so a crash mid-write never leaves truncated state behind.
type FileStore struct {
	path string
	mu   sync.Mutex
}

type stateDocument struct {
	Bookmarks map[string]Bookmark `json:"bookmarks"`
}

// NewFileStore creates a bookmark store backed by the file at path. The
// file is created on the first Put.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Get retrieves the bookmark for a collection.
// Returns ErrNoBookmark if the collection has never been synced; a missing
// state file counts as no bookmarks at all.
func (s *FileStore) Get(ctx context.Context, collection string) (Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return Bookmark{}, err
	}

	bm, ok := doc.Bookmarks[collection]
	if !ok {
		BookmarkMisses.Inc()
		return Bookmark{}, ErrNoBookmark
	}

	BookmarkReads.WithLabelValues("file").Inc()
	return bm, nil
}

// Put stores the bookmark for a collection. The document is durable on
// disk when Put returns.
func (s *FileStore) Put(ctx context.Context, collection string, bm Bookmark) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Bookmarks[collection] = bm

	if err := s.write(doc); err != nil {
		StoreErrors.WithLabelValues("put").Inc()
		return err
	}

	BookmarkWrites.WithLabelValues("file").Inc()
	return nil
}

// Delete removes the bookmark for a collection, forcing the next run to
// start from the initial cursor.
func (s *FileStore) Delete(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := doc.Bookmarks[collection]; !ok {
		return nil
	}
	delete(doc.Bookmarks, collection)

	if err := s.write(doc); err != nil {
		StoreErrors.WithLabelValues("delete").Inc()
		return err
	}
	return nil
}

func (s *FileStore) read() (*stateDocument, error) {
	doc := &stateDocument{Bookmarks: map[string]Bookmark{}}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		StoreErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("read state file: %w", err)
	}
	if len(data) == 0 {
		return doc, nil
	}

	if err := json.Unmarshal(data, doc); err != nil {
		StoreErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidBookmark, err)
	}
	if doc.Bookmarks == nil {
		doc.Bookmarks = map[string]Bookmark{}
	}
	return doc, nil
}

func (s *FileStore) write(doc *stateDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
