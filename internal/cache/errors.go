package cache

import "errors"

var (
	// ErrCacheUnavailable is returned when Redis is not healthy
	ErrCacheUnavailable = errors.New("cache unavailable, Redis is not healthy")

	// ErrCacheMiss is returned when a key does not exist in cache
	ErrCacheMiss = errors.New("cache miss")
)
