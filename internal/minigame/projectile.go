package minigame

import (
	"context"
	"log/slog"

	"github.com/minigames/smartsync/internal/placement"
	"github.com/minigames/smartsync/internal/smartobject"
	"github.com/minigames/smartsync/pkg/core"
)

// Muzzle returns where a shot leaves the weapon.
type Muzzle func() (core.Vec3, core.Quat)

// ProjectileShooter spawns every shot as a replicated bullet carrying the
// weapon's damage.
type ProjectileShooter struct {
	engine *placement.Engine
	muzzle Muzzle
	logger *slog.Logger
}

// NewProjectileShooter creates a shooter spawning through engine.
func NewProjectileShooter(engine *placement.Engine, muzzle Muzzle, logger *slog.Logger) *ProjectileShooter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectileShooter{engine: engine, muzzle: muzzle, logger: logger}
}

func (p *ProjectileShooter) Shoot(asset, bundle string) {
	pos, rot := p.muzzle()
	weapon := smartobject.WeaponDescriptor(core.Template{Bundle: bundle, Asset: asset})
	weapon.Position = pos
	weapon.Rotation = rot

	d, err := p.engine.Spawn(context.Background(), weapon)
	if err != nil {
		p.logger.Error("Failed to spawn projectile", "bundle", bundle, "asset", asset, "error", err)
		return
	}
	p.logger.Debug("Projectile spawned", "key", d.Key())
}
