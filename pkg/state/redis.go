package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps bookmarks in Redis, one JSON value per collection.
// Bookmarks carry no TTL; they live until the next run overwrites them.
type RedisStore struct {
	redis  *redis.Client
	prefix string
}

// NewRedisStore creates a bookmark store on a Redis backend. Keys are
// namespaced "<prefix>:bookmark:<collection>"; an empty prefix defaults to
// "sherpa".
func NewRedisStore(redisClient *redis.Client, prefix string) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = "sherpa"
	}
	return &RedisStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RedisStore) key(collection string) string {
	return s.prefix + ":bookmark:" + collection
}

// Get retrieves the bookmark for a collection.
// Returns ErrNoBookmark if the collection has never been synced.
func (s *RedisStore) Get(ctx context.Context, collection string) (Bookmark, error) {
	data, err := s.redis.Get(ctx, s.key(collection)).Bytes()
	if err != nil {
		if err == redis.Nil {
			BookmarkMisses.Inc()
			return Bookmark{}, ErrNoBookmark
		}
		StoreErrors.WithLabelValues("get").Inc()
		return Bookmark{}, fmt.Errorf("redis get: %w", err)
	}

	var bm Bookmark
	if err := json.Unmarshal(data, &bm); err != nil {
		StoreErrors.WithLabelValues("get").Inc()
		return Bookmark{}, fmt.Errorf("%w: %v", ErrInvalidBookmark, err)
	}

	BookmarkReads.WithLabelValues("redis").Inc()
	return bm, nil
}

// Put stores the bookmark for a collection. Redis acknowledges the write
// before Put returns, which is the durability the pagination driver relies
// on between pages.
func (s *RedisStore) Put(ctx context.Context, collection string, bm Bookmark) error {
	data, err := json.Marshal(bm)
	if err != nil {
		StoreErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal bookmark: %w", err)
	}

	if err := s.redis.Set(ctx, s.key(collection), data, 0).Err(); err != nil {
		StoreErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	BookmarkWrites.WithLabelValues("redis").Inc()
	return nil
}

// Delete removes the bookmark for a collection, forcing the next run to
// start from the initial cursor.
func (s *RedisStore) Delete(ctx context.Context, collection string) error {
	if err := s.redis.Del(ctx, s.key(collection)).Err(); err != nil {
		StoreErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
