// internal/storage/memory/memory.go
package memory

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/minigames/smartsync/internal/storage"
	"github.com/minigames/smartsync/pkg/core"
)

// Backend keeps entities and their components in process memory.
// Components are held as JSON so callers never share state with the store.
type Backend struct {
	mu       sync.RWMutex
	entities map[core.Entity]map[core.ComponentKind][]byte
	nextID   core.Entity
}

// New creates a new memory backend
func New() *Backend {
	return &Backend{
		entities: make(map[core.Entity]map[core.ComponentKind][]byte),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// Reset drops every entity and restarts handle numbering.
func (b *Backend) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entities = make(map[core.Entity]map[core.ComponentKind][]byte)
	b.nextID = 0
	return nil
}

func (b *Backend) CreateEntity() (core.Entity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.entities[b.nextID] = make(map[core.ComponentKind][]byte)
	return b.nextID, nil
}

func (b *Backend) HasComponent(e core.Entity, kind core.ComponentKind) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	components, ok := b.entities[e]
	if !ok {
		return false
	}
	_, ok = components[kind]
	return ok
}

func (b *Backend) AddComponentData(e core.Entity, kind core.ComponentKind, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	components, ok := b.entities[e]
	if !ok {
		return fmt.Errorf("add %s to entity %d: %w", kind, e, storage.ErrNoEntity)
	}
	components[kind] = raw
	return nil
}

func (b *Backend) SetComponentData(e core.Entity, kind core.ComponentKind, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	components, ok := b.entities[e]
	if !ok {
		return fmt.Errorf("set %s on entity %d: %w", kind, e, storage.ErrNoEntity)
	}
	if _, ok := components[kind]; !ok {
		return fmt.Errorf("set %s on entity %d: %w", kind, e, storage.ErrNoComponent)
	}
	components[kind] = raw
	return nil
}

func (b *Backend) GetComponentData(e core.Entity, kind core.ComponentKind, out any) error {
	b.mu.RLock()
	components, ok := b.entities[e]
	var raw []byte
	if ok {
		raw, ok = components[kind]
	}
	b.mu.RUnlock()

	if !ok {
		return storage.ErrNoComponent
	}
	return json.Unmarshal(raw, out)
}

// Len returns the number of live entities.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entities)
}
