package cache

import (
	"fmt"
	"strings"

	"surveysync/internal/config"
)

// New builds the cache selected by cfg.Type. It returns a nil Cache for
// "none" or an empty type.
func New(cfg config.CacheConfig) (Cache, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryCache(0), nil
	case "redis":
		return NewRedisCache(RedisConfig{
			Addr:     cfg.RedisAddress(),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	case "memcached", "memcache":
		return NewMemcachedCache(cfg.MemcachedServers, "")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
}
