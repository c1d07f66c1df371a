package analyzer

import (
	"time"

	"github.com/Hussain0327/ValtricConsulting/internal/cache"
)

// Cache memoizes results by deal id and normalized question.
type Cache = cache.Cache[Result]

// NewCache returns a result cache that stores and hands out deep copies.
func NewCache(size int, ttl time.Duration) *Cache {
	return cache.New(size, ttl, Result.Clone)
}
