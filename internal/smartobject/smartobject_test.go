package smartobject

import (
	"testing"

	"github.com/minigames/smartsync/internal/storage"
	"github.com/minigames/smartsync/internal/storage/memory"
	"github.com/minigames/smartsync/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactories_Lookup(t *testing.T) {
	f := NewFactories()
	rock := core.Template{Bundle: "B1", Asset: "Rock"}
	f.Register(rock, NewObstacle)

	_, ok := f.Lookup(rock)
	assert.True(t, ok)
	_, ok = f.Lookup(core.Template{Bundle: "B1", Asset: "Tree"})
	assert.False(t, ok)
	_, ok = f.Lookup(core.Template{Bundle: "B2", Asset: "Rock"})
	assert.False(t, ok, "bundle and asset must both match")
	assert.Equal(t, 1, f.Len())
}

func TestNewObstacle_WritesComponents(t *testing.T) {
	store := memory.New()
	d := core.Descriptor{
		ID:       3,
		Bundle:   "B1",
		Asset:    "Rock",
		Position: core.Vec3{X: 1, Y: 2, Z: 3},
		Rotation: core.IdentityQuat,
		Damage:   4,
	}

	obj, err := NewObstacle(store, d)
	require.NoError(t, err)
	assert.Equal(t, d.Template(), obj.Template())

	tr, err := storage.Get[core.Transform](store, obj.Entity(), core.ComponentTransform)
	require.NoError(t, err)
	assert.Equal(t, d.Position, tr.Position)
	assert.Equal(t, core.UnitScale, tr.Scale)

	data, err := storage.Get[core.SmartObjectData](store, obj.Entity(), core.ComponentSmartObject)
	require.NoError(t, err)
	assert.Equal(t, int32(3), data.ID)
	assert.Equal(t, int32(4), data.DamageSend)
}

func TestObstacle_UpdateDestroyedSticks(t *testing.T) {
	store := memory.New()
	obj, err := NewObstacle(store, core.Descriptor{ID: 1, Bundle: "b", Asset: "a"})
	require.NoError(t, err)
	o := obj.(*Obstacle)

	require.NoError(t, o.OnPropertiesUpdate(core.Descriptor{ID: 1, Bundle: "b", Asset: "a", Damage: 5, Destroyed: true}))
	assert.True(t, o.Destroyed())
	assert.Equal(t, int32(5), o.Damage())

	require.NoError(t, o.OnPropertiesUpdate(core.Descriptor{ID: 1, Bundle: "b", Asset: "a", Damage: 6}))
	assert.True(t, o.Destroyed())
	assert.Equal(t, int32(6), o.Damage())
}

func TestWeaponDescriptor(t *testing.T) {
	d := WeaponDescriptor(core.Template{Bundle: "guns", Asset: "Pellet"})

	assert.Equal(t, core.WeaponKey, d.Key())
	assert.Equal(t, int32(3), d.SendingProperties)
	assert.Equal(t, int32(10), d.Damage)
	assert.Equal(t, core.PropertyPoint, d.ReceivingProperties)

	obj, err := NewBullet(memory.New(), d)
	require.NoError(t, err)
	assert.Equal(t, int32(10), obj.(*Bullet).Data().DamageSend)
}

func TestPlayerFactory_UsesExistingEntity(t *testing.T) {
	store := memory.New()
	e, err := store.CreateEntity()
	require.NoError(t, err)

	obj, err := PlayerFactory(func() core.Entity { return e })(store, core.Descriptor{ID: core.PlayerID})
	require.NoError(t, err)
	assert.Equal(t, e, obj.Entity())
	assert.Equal(t, core.PlayerTemplate, obj.Template())
	assert.Equal(t, 1, store.Len(), "no entity created")

	require.NoError(t, obj.OnPropertiesUpdate(core.Descriptor{ID: core.PlayerID, Score: 7}))
	assert.Equal(t, int32(7), obj.(*Player).Score())
}
