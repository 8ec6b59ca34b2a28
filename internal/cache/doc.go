// Package cache provides a generic, thread-safe LRU cache with a soft
// size limit, used to memoize route indexes and other structures keyed
// by a persistent tree's root pointer.
//
//	c := cache.New[string, int](100)
//	c.Set("key", 42)
//	value, ok := c.Get("key")
//
// # Thread Safety
//
// Cache is safe for concurrent use. It must not be copied after
// creation (it contains a mutex).
package cache
