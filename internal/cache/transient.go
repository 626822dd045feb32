// Package cache holds the bounded map backing path resolution.
package cache

import (
	"sort"
	"sync"
)

// TransientDict is a bounded map with approximate LRU eviction. Every Get
// or Set stamps the entry with a global, monotonically increasing touch
// counter. Eviction only runs once every Cap insertions; it then drops the
// least recently touched entries until at most Cap remain. Between cleanups
// the map may hold more than Cap entries.
type TransientDict[K comparable, V any] struct {
	mu      sync.Mutex
	cap     int
	clock   uint64
	inserts int
	entries map[K]*entry[V]
	onEvict func(k K)
}

type entry[V any] struct {
	value   V
	touched uint64
}

// New returns a dict holding about capacity entries. capacity must be
// positive.
func New[K comparable, V any](capacity int) *TransientDict[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &TransientDict[K, V]{cap: capacity, entries: make(map[K]*entry[V], capacity)}
}

// OnEvict registers a callback run for every evicted key, under the lock.
func (d *TransientDict[K, V]) OnEvict(fn func(k K)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onEvict = fn
}

// Get returns the value for k and marks it as recently used.
func (d *TransientDict[K, V]) Get(k K) (V, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[k]
	if !ok {
		var zero V
		return zero, false
	}
	e.touched = d.tick()
	return e.value, true
}

// Contains reports whether k is present without touching it.
func (d *TransientDict[K, V]) Contains(k K) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.entries[k]
	return ok
}

// Set stores v under k. Inserting a new key may trigger a cleanup.
func (d *TransientDict[K, V]) Set(k K, v V) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.entries[k]; ok {
		e.value = v
		e.touched = d.tick()
		return
	}
	d.entries[k] = &entry[V]{value: v, touched: d.tick()}
	d.inserts++
	if d.inserts%d.cap == 0 {
		d.cleanup()
	}
}

// Clear drops every entry without reporting evictions.
func (d *TransientDict[K, V]) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = make(map[K]*entry[V], d.cap)
	d.inserts = 0
}

func (d *TransientDict[K, V]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

func (d *TransientDict[K, V]) Cap() int { return d.cap }

func (d *TransientDict[K, V]) tick() uint64 {
	d.clock++
	return d.clock
}

func (d *TransientDict[K, V]) cleanup() {
	excess := len(d.entries) - d.cap
	if excess <= 0 {
		return
	}
	type aged struct {
		key     K
		touched uint64
	}
	all := make([]aged, 0, len(d.entries))
	for k, e := range d.entries {
		all = append(all, aged{k, e.touched})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].touched < all[j].touched })
	for _, a := range all[:excess] {
		delete(d.entries, a.key)
		if d.onEvict != nil {
			d.onEvict(a.key)
		}
	}
}
