package config

import (
	"errors"
	"fmt"

	"github.com/minigames/smartsync/pkg/core"
)

// Asset kinds accepted in game.assets.
const (
	KindObstacle = "obstacle"
	KindBullet   = "bullet"
)

var (
	ErrUnknownAssetKind = errors.New("unknown asset kind")
	ErrEmptyAsset       = errors.New("asset entry needs bundle and asset")
	ErrMultipleBullets  = errors.New("more than one bullet asset")
)

// AssetEntry is one element of game.assets.
type AssetEntry struct {
	Kind   string `json:"kind" mapstructure:"kind"`
	Bundle string `json:"bundle" mapstructure:"bundle"`
	Asset  string `json:"asset" mapstructure:"asset"`
}

// GameAssets are the templates a session can build.
type GameAssets struct {
	Obstacles []core.Template
	// Bullet is empty when no bullet is configured.
	Bullet core.Template
}

// Templates returns every configured template.
func (a GameAssets) Templates() []core.Template {
	out := append([]core.Template(nil), a.Obstacles...)
	if !a.Bullet.Empty() {
		out = append(out, a.Bullet)
	}
	return out
}

// ParseAssets validates entries and sorts them by kind. Obstacles keep their
// configured order; repeated obstacle entries are kept once.
func ParseAssets(entries []AssetEntry) (GameAssets, error) {
	var out GameAssets
	seen := make(map[core.Template]bool)

	for i, e := range entries {
		t := core.Template{Bundle: e.Bundle, Asset: e.Asset}
		if e.Bundle == "" || e.Asset == "" {
			return GameAssets{}, fmt.Errorf("game.assets[%d]: %w", i, ErrEmptyAsset)
		}

		switch e.Kind {
		case KindObstacle:
			if seen[t] {
				continue
			}
			seen[t] = true
			out.Obstacles = append(out.Obstacles, t)
		case KindBullet:
			if !out.Bullet.Empty() {
				return GameAssets{}, fmt.Errorf("game.assets[%d]: %w", i, ErrMultipleBullets)
			}
			out.Bullet = t
		default:
			return GameAssets{}, fmt.Errorf("game.assets[%d]: %w: %q", i, ErrUnknownAssetKind, e.Kind)
		}
	}

	return out, nil
}
