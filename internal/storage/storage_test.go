package storage_test

import (
	"testing"

	"github.com/minigames/smartsync/internal/storage"
	"github.com/minigames/smartsync/internal/storage/memory"
	"github.com/minigames/smartsync/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPut_AddsThenSets(t *testing.T) {
	b := memory.New()
	require.NoError(t, b.Init())

	e, err := b.CreateEntity()
	require.NoError(t, err)

	require.NoError(t, storage.Put(b, e, core.ComponentSmartObject, core.SmartObjectData{ID: 1}))
	require.NoError(t, storage.Put(b, e, core.ComponentSmartObject, core.SmartObjectData{ID: core.PlayerID}))

	got, err := storage.Get[core.SmartObjectData](b, e, core.ComponentSmartObject)
	require.NoError(t, err)
	assert.Equal(t, core.PlayerID, got.ID)
}

func TestGet_MissingComponent(t *testing.T) {
	b := memory.New()
	e, err := b.CreateEntity()
	require.NoError(t, err)

	_, err = storage.Get[core.Transform](b, e, core.ComponentTransform)
	assert.ErrorIs(t, err, storage.ErrNoComponent)
}
