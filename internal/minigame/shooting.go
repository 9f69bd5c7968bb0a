package minigame

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/minigames/smartsync/internal/config"
	"github.com/minigames/smartsync/internal/dispatcher"
	"github.com/minigames/smartsync/internal/placement"
	"github.com/minigames/smartsync/internal/room"
	"github.com/minigames/smartsync/internal/session"
	"github.com/minigames/smartsync/internal/smartobject"
	"github.com/minigames/smartsync/internal/storage"
	"github.com/minigames/smartsync/pkg/core"
)

// ErrNoPlacement is returned by PlaceAssets on a participant built without a
// placement engine.
var ErrNoPlacement = errors.New("no placement engine")

// Dependencies are the collaborators of a Shooting game. Nil Shooter, HUD
// and Camera are replaced with no-ops.
type Dependencies struct {
	// Context bounds the room writes made in reaction to notifications,
	// such as the score reset on start_game. Defaults to context.Background.
	Context   context.Context
	Session   *session.Context
	Placement *placement.Engine
	Assets    config.GameAssets
	Shooter   Shooter
	HUD       HUD
	Camera    Camera
	Logger    *slog.Logger
}

// Shooting is the obstacle shooting minigame.
type Shooting struct {
	ctx       context.Context
	session   *session.Context
	placement *placement.Engine
	assets    config.GameAssets
	shooter   Shooter
	hud       HUD
	camera    Camera
	logger    *slog.Logger

	started  atomic.Bool
	armed    atomic.Bool
	equipped atomic.Bool
	shots    atomic.Int64
}

var _ Game = (*Shooting)(nil)

// NewShooting registers the game's factories on the session and builds the
// equipped weapon from the bullet template.
func NewShooting(deps Dependencies) (*Shooting, error) {
	if deps.Session == nil {
		return nil, errors.New("shooting: nil session")
	}
	s := &Shooting{
		ctx:       deps.Context,
		session:   deps.Session,
		placement: deps.Placement,
		assets:    deps.Assets,
		shooter:   deps.Shooter,
		hud:       deps.HUD,
		camera:    deps.Camera,
		logger:    deps.Logger,
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	if s.shooter == nil {
		s.shooter = NopShooter{}
	}
	if s.hud == nil {
		s.hud = NopHUD{}
	}
	if s.camera == nil {
		s.camera = NopCamera{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "shooting", "participant", deps.Session.Self())

	factories := deps.Session.Factories
	for _, t := range deps.Assets.Obstacles {
		factories.Register(t, smartobject.NewObstacle)
	}
	factories.Register(core.PlayerTemplate, smartobject.PlayerFactory(deps.Session.Player))

	if !deps.Assets.Bullet.Empty() {
		factories.Register(deps.Assets.Bullet, smartobject.NewBullet)
		weapon := smartobject.WeaponDescriptor(deps.Assets.Bullet)
		err := deps.Session.Exclusive(func() error {
			_, err := deps.Session.Registry.Create(core.WeaponKey, weapon)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("equip weapon: %w", err)
		}
	}

	return s, nil
}

// Register routes start_game on d. It fires once per game.
func (s *Shooting) Register(d *dispatcher.Dispatcher) {
	d.Register(core.StartGameKey, s.handleStartGame, dispatcher.Once(), dispatcher.Logged())
}

func (s *Shooting) handleStartGame(c dispatcher.Change) error {
	if !s.started.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.ResetPlayerProperties(s.ctx); err != nil {
		return fmt.Errorf("start game: %w", err)
	}
	s.EquipInventory()
	s.armed.Store(true)
	s.hud.EnablePrimaryButton(func() { s.TriggerPrimary() })
	s.hud.ShowCountdown()
	s.logger.Info("Game started")
	return nil
}

// PlaceAssets places the configured obstacles.
func (s *Shooting) PlaceAssets(ctx context.Context) ([]core.Descriptor, error) {
	if s.placement == nil {
		return nil, ErrNoPlacement
	}
	return s.placement.PlaceAssets(ctx)
}

// StartGame publishes start_game to the room.
func (s *Shooting) StartGame(ctx context.Context) error {
	return s.session.Room.SetProperties(ctx, room.Properties{core.StartGameKey: true})
}

// ResetPlayerProperties puts the local player back to its starting state:
// first-person view, the player smart object under its reserved key, and a
// zero score.
func (s *Shooting) ResetPlayerProperties(ctx context.Context) error {
	s.camera.SwitchToFirstPerson()

	player := s.session.Player()
	err := s.session.Exclusive(func() error {
		if err := storage.Put(s.session.Store, player, core.ComponentSmartObject, core.SmartObjectData{ID: core.PlayerID}); err != nil {
			return err
		}
		d := core.Descriptor{
			ID:       core.PlayerID,
			Bundle:   core.PlayerTemplate.Bundle,
			Asset:    core.PlayerTemplate.Asset,
			Rotation: core.IdentityQuat,
		}
		if _, err := s.session.Registry.Create(core.PlayerKey, d); err != nil {
			return err
		}
		return s.session.Registry.Update(core.PlayerKey, d)
	})
	if err != nil {
		return fmt.Errorf("reset player: %w", err)
	}

	return s.session.Room.SetCustomProperties(ctx, room.Properties{core.ScoreProperty: 0})
}

func (s *Shooting) EquipInventory() {
	if s.equipped.CompareAndSwap(false, true) {
		s.hud.OnEquipGun()
	}
}

func (s *Shooting) UnequipInventory() {
	if s.equipped.CompareAndSwap(true, false) {
		s.hud.OnUnequipGun()
	}
}

// ClearObjects unequips, disarms and returns the camera to third person.
func (s *Shooting) ClearObjects() {
	s.UnequipInventory()
	if s.armed.CompareAndSwap(true, false) {
		s.hud.DisablePrimaryButton()
	}
	s.camera.SwitchToThirdPerson()
}

// TriggerPrimary fires the bullet when the game is armed and a bullet is
// configured. It reports whether a shot was fired.
func (s *Shooting) TriggerPrimary() bool {
	if !s.armed.Load() || s.assets.Bullet.Empty() {
		return false
	}
	s.shooter.Shoot(s.assets.Bullet.Asset, s.assets.Bullet.Bundle)
	s.shots.Add(1)
	return true
}

// Equipped reports whether the starting inventory is equipped.
func (s *Shooting) Equipped() bool {
	return s.equipped.Load()
}

// Armed reports whether the primary interaction fires.
func (s *Shooting) Armed() bool {
	return s.armed.Load()
}

// Shots returns how many shots were fired.
func (s *Shooting) Shots() int64 {
	return s.shots.Load()
}
