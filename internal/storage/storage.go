// internal/storage/storage.go
package storage

import (
	"errors"
	"fmt"

	"github.com/minigames/smartsync/pkg/core"
)

var (
	// ErrNoEntity is returned when an entity handle is not known to the store.
	ErrNoEntity = errors.New("entity not found")
	// ErrNoComponent is returned when reading or setting a component the entity does not have.
	ErrNoComponent = errors.New("component not found")
)

// Backend is the entity/component store smart objects keep their gameplay
// and placement data in. Component data is stored by value.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Reset drops every entity. Called at session start.
	Reset() error

	CreateEntity() (core.Entity, error)
	HasComponent(e core.Entity, kind core.ComponentKind) bool

	// AddComponentData attaches a component, overwriting an existing one.
	AddComponentData(e core.Entity, kind core.ComponentKind, data any) error
	// SetComponentData replaces a component the entity already has.
	SetComponentData(e core.Entity, kind core.ComponentKind, data any) error
	// GetComponentData decodes the component into out.
	GetComponentData(e core.Entity, kind core.ComponentKind, out any) error
}

// Put sets the component when the entity already has it and adds it otherwise.
func Put(b Backend, e core.Entity, kind core.ComponentKind, data any) error {
	if b.HasComponent(e, kind) {
		return b.SetComponentData(e, kind, data)
	}
	return b.AddComponentData(e, kind, data)
}

// Get reads a typed component.
func Get[T any](b Backend, e core.Entity, kind core.ComponentKind) (T, error) {
	var out T
	if err := b.GetComponentData(e, kind, &out); err != nil {
		return out, fmt.Errorf("get %s of entity %d: %w", kind, e, err)
	}
	return out, nil
}
