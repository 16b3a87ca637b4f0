package storage

import (
	"context"
	"log"
	"time"

	"surveysync/internal/cache"
	"surveysync/internal/model"
)

// CachedStorage wraps a Storage with a presence cache for QuerySubmission.
// Only positive answers are cached, and only after the backend confirmed a
// write or a lookup, so a cache hit never reports a submission the backend
// does not hold.
type CachedStorage struct {
	Storage
	cache     cache.Cache
	ttl       time.Duration
	keyPrefix string
}

// NewCachedStorage wraps backend. namespace keeps keys of different stores apart
// when they share one cache.
func NewCachedStorage(backend Storage, c cache.Cache, ttl time.Duration, namespace string) *CachedStorage {
	return &CachedStorage{
		Storage:   backend,
		cache:     c,
		ttl:       ttl,
		keyPrefix: "present:" + namespace + ":",
	}
}

func (s *CachedStorage) presenceKey(id string) string {
	return s.keyPrefix + id
}

// StoreSubmission writes through to the backend, then marks id present.
func (s *CachedStorage) StoreSubmission(ctx context.Context, id string, fields model.Fields) error {
	if err := s.Storage.StoreSubmission(ctx, id, fields); err != nil {
		return err
	}
	s.markPresent(ctx, id)
	return nil
}

// QuerySubmission answers from the cache when possible and falls back to the backend.
func (s *CachedStorage) QuerySubmission(ctx context.Context, id string) (bool, error) {
	if ok, err := s.cache.Exists(ctx, s.presenceKey(id)); err == nil && ok {
		return true, nil
	} else if err != nil {
		log.Printf("[CachedStorage] Warning: cache lookup failed for %s: %v", id, err)
	}

	ok, err := s.Storage.QuerySubmission(ctx, id)
	if err != nil {
		return false, err
	}
	if ok {
		s.markPresent(ctx, id)
	}
	return ok, nil
}

// GetStats adds the cache type to the backend's statistics when it has any.
func (s *CachedStorage) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{}
	if sp, ok := s.Storage.(StatsProvider); ok {
		var err error
		if stats, err = sp.GetStats(ctx); err != nil {
			return nil, err
		}
	}
	stats["cache"] = cacheName(s.cache)
	return stats, nil
}

// Close closes the backend. The cache is owned by the caller.
func (s *CachedStorage) Close() error {
	return s.Storage.Close()
}

func (s *CachedStorage) markPresent(ctx context.Context, id string) {
	if err := s.cache.Set(ctx, s.presenceKey(id), []byte("1"), s.ttl); err != nil {
		log.Printf("[CachedStorage] Warning: failed to cache presence of %s: %v", id, err)
	}
}

func cacheName(c cache.Cache) string {
	switch c.(type) {
	case *cache.MemoryCache:
		return "memory"
	case *cache.RedisCache:
		return "redis"
	case *cache.MemcachedCache:
		return "memcached"
	default:
		return "custom"
	}
}

// Ensure CachedStorage implements Storage
var _ Storage = (*CachedStorage)(nil)
