// Package smartobject holds the runtime side of replicated objects: each one
// owns an entity in the store and reacts to descriptor updates.
package smartobject

import (
	"fmt"
	"sync"

	"github.com/minigames/smartsync/internal/storage"
	"github.com/minigames/smartsync/pkg/core"
)

// SmartObject is a runtime object backed by an entity.
type SmartObject interface {
	Entity() core.Entity
	Template() core.Template
	// OnPropertiesUpdate applies a newer descriptor of the same key.
	OnPropertiesUpdate(d core.Descriptor) error
}

// Factory builds a smart object for a descriptor.
type Factory func(store storage.Backend, d core.Descriptor) (SmartObject, error)

// Factories resolves a bundle/asset pair to exactly one factory.
type Factories struct {
	mu         sync.RWMutex
	byTemplate map[core.Template]Factory
}

// NewFactories creates an empty factory set.
func NewFactories() *Factories {
	return &Factories{byTemplate: make(map[core.Template]Factory)}
}

// Register binds a template to a factory, replacing any previous binding.
func (f *Factories) Register(t core.Template, fn Factory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byTemplate[t] = fn
}

// Lookup returns the factory for a template.
func (f *Factories) Lookup(t core.Template) (Factory, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	fn, ok := f.byTemplate[t]
	return fn, ok
}

// Len returns the number of registered templates.
func (f *Factories) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.byTemplate)
}

// base is the state every placed object shares.
type base struct {
	mu       sync.Mutex
	store    storage.Backend
	entity   core.Entity
	template core.Template
}

func (b *base) Entity() core.Entity {
	return b.entity
}

func (b *base) Template() core.Template {
	return b.template
}

// spawn creates a new entity carrying the descriptor's transform and gameplay data.
func spawn(store storage.Backend, d core.Descriptor) (*base, error) {
	e, err := store.CreateEntity()
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", d.Template(), err)
	}
	b := &base{store: store, entity: e, template: d.Template()}
	if err := b.write(d); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *base) write(d core.Descriptor) error {
	if err := storage.Put(b.store, b.entity, core.ComponentTransform, d.Transform()); err != nil {
		return err
	}
	return storage.Put(b.store, b.entity, core.ComponentSmartObject, d.SmartObjectData())
}
