// Package registry provides a generic concurrency-safe map for values indexed by key.
//
// cdcflow keeps exactly two pieces of shared mutable state, both keyed by
// event key: the per-key queue map and the handler registry. Both are
// Registry values, so every mutation goes through one of the methods here
// and no caller needs its own locking.
//
// # Lazy Creation
//
// GetOrCreate is a single atomic get-or-create: the factory runs at most
// once per key, even when several goroutines race on first access.
//
//	buffers := registry.New[change.Key, *buffer]()
//	buf, created := buffers.GetOrCreate(key, func() *buffer {
//	    return newBuffer(capacity)
//	})
//
// # Read-Modify-Write
//
// Update runs a function under the write lock, which makes appends safe:
//
//	handlers.Update(key, func(cur []*entry, _ bool) []*entry {
//	    return append(slices.Clip(cur), e)
//	})
//
// # Snapshots
//
// Range, Snapshot and Keys operate on copies, so callers may mutate the
// registry while iterating. Drain empties the registry in one step and
// returns what it held, which is how a queue releases all of its buffers.
package registry
