package smartobject

import (
	"github.com/minigames/smartsync/internal/storage"
	"github.com/minigames/smartsync/pkg/core"
)

// Obstacle is a placed prop that can take damage and be destroyed.
type Obstacle struct {
	*base
	damage    int32
	destroyed bool
}

// NewObstacle is the Factory for obstacle templates.
func NewObstacle(store storage.Backend, d core.Descriptor) (SmartObject, error) {
	b, err := spawn(store, d)
	if err != nil {
		return nil, err
	}
	return &Obstacle{base: b, damage: d.Damage, destroyed: d.Destroyed}, nil
}

func (o *Obstacle) OnPropertiesUpdate(d core.Descriptor) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.damage = d.Damage
	o.destroyed = o.destroyed || d.Destroyed
	return o.write(d)
}

// Destroyed reports whether any update marked the obstacle destroyed.
func (o *Obstacle) Destroyed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.destroyed
}

// Damage returns the last damage value applied.
func (o *Obstacle) Damage() int32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.damage
}
