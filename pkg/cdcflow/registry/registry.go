package registry

import "sync"

// Registry is a concurrency-safe map from key to value.
// It uses sync.RWMutex for read-heavy workloads: the hot path (a consumer
// looking up its queue or handler list) only takes the read lock.
type Registry[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
}

// New creates a new empty registry.
func New[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{
		entries: make(map[K]V),
	}
}

// Get returns the value for a key and whether it exists.
func (r *Registry[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[key]
	return v, ok
}

// Has returns true if the key exists in the registry.
func (r *Registry[K, V]) Has(key K) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[key]
	return ok
}

// GetOrCreate returns the value for a key, creating it with factory if it
// doesn't exist. The factory runs at most once per key, even under
// concurrent first access. created reports whether this call stored it.
func (r *Registry[K, V]) GetOrCreate(key K, factory func() V) (v V, created bool) {
	// Fast path: check if already exists
	r.mu.RLock()
	v, ok := r.entries[key]
	r.mu.RUnlock()
	if ok {
		return v, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if v, ok := r.entries[key]; ok {
		return v, false
	}

	v = factory()
	r.entries[key] = v
	return v, true
}

// Update replaces the value for key with fn(current, exists) under the
// write lock, so read-modify-write sequences (appending a handler) are atomic.
func (r *Registry[K, V]) Update(key K, fn func(current V, exists bool) V) V {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.entries[key]
	next := fn(current, ok)
	r.entries[key] = next
	return next
}

// Delete removes a key from the registry.
func (r *Registry[K, V]) Delete(key K) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

// Keys returns all keys in the registry.
// The order is not guaranteed.
func (r *Registry[K, V]) Keys() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]K, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of entries in the registry.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Snapshot returns a copy of the current entries.
func (r *Registry[K, V]) Snapshot() map[K]V {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[K]V, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}

// Range iterates over a snapshot of the registry. If fn returns false,
// iteration stops. Mutating the registry from fn is safe and does not
// affect the current iteration.
func (r *Registry[K, V]) Range(fn func(K, V) bool) {
	for k, v := range r.Snapshot() {
		if !fn(k, v) {
			return
		}
	}
}

// Drain removes every entry and returns what was removed.
func (r *Registry[K, V]) Drain() map[K]V {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.entries
	r.entries = make(map[K]V)
	return out
}
