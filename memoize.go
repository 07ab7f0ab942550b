package dataflow

import (
	"fmt"

	"golang.org/x/sync/singleflight"
)

// Memoize wraps fn so that repeated calls with the same key return a cached
// result from cache, rather than recomputing fn. Concurrent first-callers
// for a given uncached key collapse onto a single in-flight evaluation of
// fn via [singleflight.Group], so fn observably runs at most once per
// distinct key that's ever requested concurrently — the behavior implied by
// this package's framing of the LRU as a cache "used to memoize pure
// computations". [LRU] itself is already safe for concurrent use, so no
// additional locking is needed here beyond the singleflight collapse.
//
// fn must be pure: Memoize does not revalidate or expire entries beyond
// whatever eviction the LRU itself performs.
func Memoize[K comparable, V any](cache *LRU[K, V], fn func(K) (V, error)) func(K) (V, error) {
	var group singleflight.Group
	return func(k K) (V, error) {
		if v, ok := cache.Get(k); ok {
			return v, nil
		}

		v, err, _ := group.Do(fmt.Sprint(k), func() (any, error) {
			v, err := fn(k)
			if err != nil {
				return v, err
			}
			cache.Put(k, v)
			return v, nil
		})
		return v.(V), err
	}
}
