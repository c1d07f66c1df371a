package cache

// #region imports
import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// #endregion

// #region constants

const (
	DefaultSize = 256
	DefaultTTL  = 600 * time.Second
)

// #endregion

// #region cache

// Cache is a TTL+LRU memo. It stores and returns copies made by the clone
// function, so no caller ever shares a value with another.
type Cache[V any] struct {
	lru   *expirable.LRU[string, V]
	clone func(V) V
}

// New creates a cache holding at most size entries for ttl each.
// clone must return a deep copy; nil means values are stored as-is.
func New[V any](size int, ttl time.Duration, clone func(V) V) *Cache[V] {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clone == nil {
		clone = func(v V) V { return v }
	}
	return &Cache[V]{
		lru:   expirable.NewLRU[string, V](size, nil, ttl),
		clone: clone,
	}
}

// Get returns a copy of the entry for key, refreshing its recency.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	v, ok := c.lru.Get(key)
	if !ok {
		return zero, false
	}
	return c.clone(v), true
}

// Set stores a copy of v under key, evicting the least recently used entry
// when full.
func (c *Cache[V]) Set(key string, v V) {
	if c == nil {
		return
	}
	c.lru.Add(key, c.clone(v))
}

// Len returns the number of live entries.
func (c *Cache[V]) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

// Purge drops every entry.
func (c *Cache[V]) Purge() {
	if c != nil {
		c.lru.Purge()
	}
}

// #endregion

// #region key

// Key builds the analysis cache key from a deal id and the normalized question.
func Key(dealID int64, question string) string {
	return fmt.Sprintf("%d:%s", dealID, strings.ToLower(strings.TrimSpace(question)))
}

// #endregion
