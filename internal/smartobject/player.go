package smartobject

import (
	"github.com/minigames/smartsync/internal/storage"
	"github.com/minigames/smartsync/pkg/core"
)

// Player wraps the local player's entity, which exists before the session.
type Player struct {
	*base
	score int32
}

// PlayerFactory returns the Factory for core.PlayerTemplate bound to the
// local player's entity, resolved at creation time. The entity's components
// are left untouched.
func PlayerFactory(entity func() core.Entity) Factory {
	return func(store storage.Backend, d core.Descriptor) (SmartObject, error) {
		return &Player{
			base:  &base{store: store, entity: entity(), template: core.PlayerTemplate},
			score: d.Score,
		}, nil
	}
}

func (p *Player) OnPropertiesUpdate(d core.Descriptor) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.score = d.Score
	return nil
}

// Score returns the last score applied.
func (p *Player) Score() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.score
}
