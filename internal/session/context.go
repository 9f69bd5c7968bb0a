// Package session owns the per-participant state of one minigame session:
// the registry, the entity store, the factories and the room handle.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/minigames/smartsync/internal/codec"
	"github.com/minigames/smartsync/internal/registry"
	"github.com/minigames/smartsync/internal/room"
	"github.com/minigames/smartsync/internal/smartobject"
	"github.com/minigames/smartsync/internal/storage"
	"github.com/minigames/smartsync/pkg/core"
)

// Context holds the session state of one participant. Registry mutations
// that must not interleave run inside Exclusive.
type Context struct {
	mu sync.Mutex

	Room      room.Participant
	Store     storage.Backend
	Factories *smartobject.Factories
	Registry  *registry.Registry

	playerMu sync.RWMutex
	player   core.Entity
}

// NewContext creates the session state for participant, backed by store.
// The local player entity is created right away.
func NewContext(participant room.Participant, store storage.Backend) (*Context, error) {
	factories := smartobject.NewFactories()
	c := &Context{
		Room:      participant,
		Store:     store,
		Factories: factories,
		Registry:  registry.New(store, factories),
	}
	player, err := store.CreateEntity()
	if err != nil {
		return nil, fmt.Errorf("create player entity: %w", err)
	}
	c.player = player
	return c, nil
}

// Self returns the local participant id.
func (c *Context) Self() string {
	return c.Room.ID()
}

// Player returns the local player's entity.
func (c *Context) Player() core.Entity {
	c.playerMu.RLock()
	defer c.playerMu.RUnlock()
	return c.player
}

// Exclusive runs fn with every other exclusive section of this session
// excluded. fn must not publish to the room: delivery may be synchronous and
// re-enter the session.
func (c *Context) Exclusive(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn()
}

// Publish serializes descriptors and writes them to the room as one batch.
func (c *Context) Publish(ctx context.Context, descriptors ...core.Descriptor) error {
	if len(descriptors) == 0 {
		return nil
	}
	batch := make(room.Properties, len(descriptors))
	for _, d := range descriptors {
		s, err := codec.Encode(d)
		if err != nil {
			return fmt.Errorf("publish %s: %w", d.Key(), err)
		}
		batch[d.Key()] = s
	}
	return c.Room.SetProperties(ctx, batch)
}

// PublishUpdate applies mutate to the latest descriptor of key, bumps its
// revision, applies it locally and publishes it.
func (c *Context) PublishUpdate(ctx context.Context, key string, mutate func(*core.Descriptor)) (core.Descriptor, error) {
	var next core.Descriptor
	err := c.Exclusive(func() error {
		cur, ok := c.Registry.Descriptor(key)
		if !ok {
			return fmt.Errorf("update %s: %w", key, registry.ErrUnknownKey)
		}
		next = cur
		mutate(&next)
		next.ID = cur.ID
		next.Rev = cur.Rev + 1
		next.Writer = c.Self()
		return c.Registry.Update(key, next)
	})
	if err != nil {
		return core.Descriptor{}, err
	}
	return next, c.Publish(ctx, next)
}

// Reset forgets every smart object and clears the store. A fresh player
// entity is created.
func (c *Context) Reset() error {
	return c.Exclusive(func() error {
		c.Registry.Reset()
		if err := c.Store.Reset(); err != nil {
			return fmt.Errorf("reset store: %w", err)
		}
		player, err := c.Store.CreateEntity()
		if err != nil {
			return fmt.Errorf("create player entity: %w", err)
		}
		c.playerMu.Lock()
		c.player = player
		c.playerMu.Unlock()
		return nil
	})
}
