// Package room defines the shared property table a session replicates through.
package room

import (
	"context"
	"maps"
)

// Properties is a set of changed keys and their new values. A nil value
// clears the key.
type Properties map[string]any

// Clone returns a shallow copy.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	return maps.Clone(p)
}

// Merge applies changed onto p, deleting keys whose value is nil.
func (p Properties) Merge(changed Properties) {
	for k, v := range changed {
		if v == nil {
			delete(p, k)
			continue
		}
		p[k] = v
	}
}

// Listener receives every change notification, including the participant's own writes.
type Listener func(changed Properties)

// Table is the room-wide replicated key/value store.
type Table interface {
	// SetProperties publishes props as one atomic batch.
	SetProperties(ctx context.Context, props Properties) error
	// Subscribe registers l for change notifications.
	Subscribe(l Listener) (unsubscribe func())
}

// PlayerProperties are the custom properties scoped to the local participant.
type PlayerProperties interface {
	SetCustomProperties(ctx context.Context, props Properties) error
	CustomProperties() Properties
}

// Participant is one client's handle on a room.
type Participant interface {
	Table
	PlayerProperties
	ID() string
}
