package cache

import "expvar"

// Interface defines the public API for a fixed-size cache.
type Interface[K comparable, V any] interface {
	Put(key K, value V)
	Get(key K) (value V, ok bool)
	Clear()
	GetHitRate() float64
	SetMetrics(hits, misses *expvar.Int)
	Len() int
}

var _ Interface[uint32, []byte] = (*LRUCache[uint32, []byte])(nil)
