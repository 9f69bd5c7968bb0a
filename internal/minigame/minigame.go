// Package minigame wires a game's rules onto the replicated session: the
// session start trigger, the player's inventory and the primary interaction.
package minigame

import (
	"context"

	"github.com/minigames/smartsync/internal/dispatcher"
	"github.com/minigames/smartsync/pkg/core"
)

// Game is the lifecycle every minigame exposes to its host.
type Game interface {
	// Register routes the game's room keys on d.
	Register(d *dispatcher.Dispatcher)
	// PlaceAssets places and publishes the game's obstacles. Only the
	// session host calls it.
	PlaceAssets(ctx context.Context) ([]core.Descriptor, error)
	// StartGame publishes the start trigger to every participant.
	StartGame(ctx context.Context) error
	ResetPlayerProperties(ctx context.Context) error
	EquipInventory()
	UnequipInventory()
	// ClearObjects ends the round for the local participant.
	ClearObjects()
}

// Shooter fires a projectile built from an asset bundle.
type Shooter interface {
	Shoot(asset, bundle string)
}

// HUD is the on-screen interface of the local participant.
type HUD interface {
	EnablePrimaryButton(action func())
	DisablePrimaryButton()
	ShowCountdown()
	OnEquipGun()
	OnUnequipGun()
}

// Camera switches the local participant's point of view.
type Camera interface {
	SwitchToFirstPerson()
	SwitchToThirdPerson()
}
