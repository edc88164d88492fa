// Package cache provides a thread-safe LRU cache for compiled expressions.
//
// The cache backs the package-level helpers of the sonata facade. It avoids
// re-parsing the same expression text on every call, which matters when one
// query is applied to many documents.
//
// # Example
//
//	c := cache.New(1024)
//	expr, err := c.GetOrCompile("$.items[price > 100]", compile)
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/sandrolain/sonata/pkg/types"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 256

// Cache is an LRU cache of compiled expressions keyed by source text. Once
// the capacity is reached the least recently used entry is evicted.
//
// Safe for concurrent use by multiple goroutines.
type Cache struct {
	capacity int
	lru      *lru.Cache[string, *types.Expression]
	group    singleflight.Group
}

// New creates a cache holding at most capacity expressions.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l, err := lru.New[string, *types.Expression](capacity)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &Cache{capacity: capacity, lru: l}
}

// Get returns the expression compiled from key and marks it as recently
// used.
func (c *Cache) Get(key string) (*types.Expression, bool) {
	return c.lru.Get(key)
}

// Set inserts or replaces an expression.
func (c *Cache) Set(key string, expr *types.Expression) {
	c.lru.Add(key, expr)
}

// GetOrCompile returns the cached expression for key, or calls compile and
// caches its result. Concurrent misses on the same key share one compile
// call. Errors are not cached.
func (c *Cache) GetOrCompile(key string, compile func() (*types.Expression, error)) (*types.Expression, error) {
	if expr, ok := c.lru.Get(key); ok {
		return expr, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		if expr, ok := c.lru.Get(key); ok {
			return expr, nil
		}
		expr, err := compile()
		if err != nil {
			return nil, err
		}
		c.lru.Add(key, expr)
		return expr, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.Expression), nil
}

// Len returns the number of cached expressions.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Capacity returns the maximum number of entries.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Invalidate removes a single entry.
func (c *Cache) Invalidate(key string) {
	c.lru.Remove(key)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.lru.Purge()
}
