package smartobject

import (
	"github.com/minigames/smartsync/internal/storage"
	"github.com/minigames/smartsync/pkg/core"
)

// Bullet is built from the bullet template. The equipped weapon and every
// projectile spawned at runtime are bullets.
type Bullet struct {
	*base
	data core.SmartObjectData
}

// NewBullet is the Factory for the bullet template.
func NewBullet(store storage.Backend, d core.Descriptor) (SmartObject, error) {
	b, err := spawn(store, d)
	if err != nil {
		return nil, err
	}
	return &Bullet{base: b, data: d.SmartObjectData()}, nil
}

func (b *Bullet) OnPropertiesUpdate(d core.Descriptor) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = d.SmartObjectData()
	return b.write(d)
}

// Data returns the gameplay data the bullet carries.
func (b *Bullet) Data() core.SmartObjectData {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

// WeaponDescriptor is the local-only descriptor of the equipped weapon.
func WeaponDescriptor(bullet core.Template) core.Descriptor {
	return core.Descriptor{
		ID:                  core.WeaponID,
		Bundle:              bullet.Bundle,
		Asset:               bullet.Asset,
		Rotation:            core.IdentityQuat,
		SendingProperties:   3,
		Damage:              10,
		ReceivingProperties: core.PropertyPoint,
	}
}
