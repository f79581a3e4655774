package reconcile

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache keeps one List per scope (a project, an activity) so optimistic
// changes survive between reads. Entries expire after ttl.
type Cache[T any] struct {
	lru *expirable.LRU[string, *List[T]]
}

func NewCache[T any](size int, ttl time.Duration) *Cache[T] {
	return &Cache[T]{lru: expirable.NewLRU[string, *List[T]](size, nil, ttl)}
}

// Get returns the cached list for scope, if any.
func (c *Cache[T]) Get(scope string) (*List[T], bool) {
	return c.lru.Get(scope)
}

// Load returns the cached list for scope, filling it with load on a miss.
func (c *Cache[T]) Load(scope string, load func() ([]T, error)) (*List[T], error) {
	if l, ok := c.lru.Get(scope); ok {
		return l, nil
	}
	items, err := load()
	if err != nil {
		return nil, err
	}
	l := NewList(items)
	c.lru.Add(scope, l)
	return l, nil
}

func (c *Cache[T]) Invalidate(scope string) {
	c.lru.Remove(scope)
}

func (c *Cache[T]) Purge() {
	c.lru.Purge()
}
