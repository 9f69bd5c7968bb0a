// Package registry maps smart object keys to the runtime objects built for
// them on this participant.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/minigames/smartsync/internal/smartobject"
	"github.com/minigames/smartsync/internal/storage"
	"github.com/minigames/smartsync/pkg/core"
)

var (
	// ErrUnknownAssetKind is returned when no factory matches a descriptor's bundle/asset.
	ErrUnknownAssetKind = errors.New("unknown asset kind")
	// ErrUnknownKey is returned when updating a key that was never created here.
	ErrUnknownKey = errors.New("unknown smart object key")
)

type entry struct {
	object     smartobject.SmartObject
	descriptor core.Descriptor
}

// Registry is the local source of truth for "do I already know this object".
// It does not decide between create and update; callers gate on Lookup.
type Registry struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	factories *smartobject.Factories
	store     storage.Backend

	stale atomic.Int64
}

// New creates an empty registry building objects into store.
func New(store storage.Backend, factories *smartobject.Factories) *Registry {
	return &Registry{
		entries:   make(map[string]*entry),
		factories: factories,
		store:     store,
	}
}

// Create builds the runtime object for d and records it under key. A key that
// is already present is returned as is; nothing is constructed.
func (r *Registry) Create(key string, d core.Descriptor) (smartobject.SmartObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[key]; ok {
		return e.object, nil
	}

	factory, ok := r.factories.Lookup(d.Template())
	if !ok {
		return nil, fmt.Errorf("create %s: %w: %s", key, ErrUnknownAssetKind, d.Template())
	}

	obj, err := factory(r.store, d)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", key, err)
	}

	r.entries[key] = &entry{object: obj, descriptor: d}
	return obj, nil
}

// Lookup returns the object recorded under key.
func (r *Registry) Lookup(key string) (smartobject.SmartObject, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	return e.object, true
}

// Update forwards d to the object under key. Descriptors older than the one
// last applied are ignored, so replays and reordered deliveries converge.
func (r *Registry) Update(key string, d core.Descriptor) error {
	_, err := r.Apply(key, d)
	return err
}

// Apply is Update that also reports whether d reached the object. A stale
// descriptor returns false and no error.
func (r *Registry) Apply(key string, d core.Descriptor) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		return false, fmt.Errorf("update %s: %w", key, ErrUnknownKey)
	}

	if !applies(d, e.descriptor) {
		r.stale.Add(1)
		return false, nil
	}

	if err := e.object.OnPropertiesUpdate(d); err != nil {
		return false, fmt.Errorf("update %s: %w", key, err)
	}
	if !d.Versioned() {
		// keep the watermark so older stamped replays stay stale
		d.Rev, d.Writer = e.descriptor.Rev, e.descriptor.Writer
	}
	e.descriptor = d
	return true, nil
}

// applies reports whether next replaces cur. Unversioned descriptors apply in
// delivery order. A redelivery of the same revision from the same writer is
// applied again.
func applies(next, cur core.Descriptor) bool {
	if !next.Versioned() {
		return true
	}
	if next.Rev == cur.Rev && next.Writer == cur.Writer {
		return true
	}
	return next.NewerThan(cur)
}

// Descriptor returns the latest descriptor applied under key.
func (r *Registry) Descriptor(key string) (core.Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	if !ok {
		return core.Descriptor{}, false
	}
	return e.descriptor, true
}

// Keys returns every recorded key in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns the latest descriptor of every key.
func (r *Registry) Snapshot() map[string]core.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]core.Descriptor, len(r.entries))
	for k, e := range r.entries {
		out[k] = e.descriptor
	}
	return out
}

// Len returns the number of recorded objects.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// StaleUpdates returns how many updates were ignored as out of date.
func (r *Registry) StaleUpdates() int64 {
	return r.stale.Load()
}

// Reset forgets every object. The store is reset separately.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*entry)
	r.stale.Store(0)
}
