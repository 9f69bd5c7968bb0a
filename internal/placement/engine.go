// Package placement scatters obstacles over placeholder points and spawns
// runtime objects, publishing them to the room.
package placement

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"sync"

	"github.com/minigames/smartsync/internal/session"
	"github.com/minigames/smartsync/pkg/core"
)

// DefaultCount is how many obstacles PlaceAssets places.
const DefaultCount = 20

// Config controls what PlaceAssets places and where spawned ids start.
type Config struct {
	Count     int
	Obstacles []core.Template
	// SpawnIDBase is the first id Spawn hands out. Zero shares the
	// placement sequence.
	SpawnIDBase int32
}

// Engine places objects for one session.
type Engine struct {
	session *session.Context
	pool    PlaceholderPool
	cfg     Config
	logger  *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	ids      *IDAllocator
	spawnIDs *IDAllocator
}

// NewEngine creates a placement engine over pool.
func NewEngine(s *session.Context, pool PlaceholderPool, cfg Config, rng *rand.Rand, logger *slog.Logger) *Engine {
	if cfg.Count <= 0 {
		cfg.Count = DefaultCount
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		session: s,
		pool:    pool,
		cfg:     cfg,
		rng:     rng,
		logger:  logger.With("component", "placement"),
		ids:     NewIDAllocator(0),
	}
	e.spawnIDs = e.ids
	if cfg.SpawnIDBase > 0 {
		e.spawnIDs = NewIDAllocator(cfg.SpawnIDBase)
	}
	return e
}

// PlaceAssets creates up to Count obstacles locally and publishes them as
// one batch. An obstacle whose template has no factory is skipped and its
// error returned after the rest are published.
func (e *Engine) PlaceAssets(ctx context.Context) ([]core.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(e.cfg.Obstacles) == 0 {
		e.logger.Warn("No obstacle templates configured, nothing placed")
		return nil, nil
	}

	points := e.pool.GetRandomItems(e.cfg.Count)
	if len(points) < e.cfg.Count {
		e.logger.Warn("Placeholder pool is short", "requested", e.cfg.Count, "available", len(points))
	}

	var placed []core.Descriptor
	var errs []error
	err := e.session.Exclusive(func() error {
		for _, pos := range points {
			// the id is only consumed once the object exists, so skipped
			// templates leave no gap in the sequence
			d := e.describe(e.ids.Peek(), e.pickObstacle(), pos, e.randomYaw())
			if _, err := e.session.Registry.Create(d.Key(), d); err != nil {
				errs = append(errs, err)
				continue
			}
			e.ids.Next()
			placed = append(placed, d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := e.session.Publish(ctx, placed...); err != nil {
		return placed, err
	}
	e.logger.Info("Obstacles placed", "count", len(placed))
	return placed, errors.Join(errs...)
}

// Spawn creates one object from proto locally and publishes it. The id,
// revision and writer of proto are assigned here.
func (e *Engine) Spawn(ctx context.Context, proto core.Descriptor) (core.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return core.Descriptor{}, err
	}

	d := proto
	d.Rev = 1
	d.Writer = e.session.Self()
	err := e.session.Exclusive(func() error {
		d.ID = e.spawnIDs.Peek()
		if _, err := e.session.Registry.Create(d.Key(), d); err != nil {
			return err
		}
		e.spawnIDs.Next()
		return nil
	})
	if err != nil {
		return core.Descriptor{}, err
	}
	return d, e.session.Publish(ctx, d)
}

func (e *Engine) describe(id int32, tmpl core.Template, pos core.Vec3, rot core.Quat) core.Descriptor {
	return core.Descriptor{
		ID:       id,
		Bundle:   tmpl.Bundle,
		Asset:    tmpl.Asset,
		Position: pos,
		Rotation: rot,
		Rev:      1,
		Writer:   e.session.Self(),
	}
}

func (e *Engine) pickObstacle() core.Template {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.cfg.Obstacles[e.rng.Intn(len(e.cfg.Obstacles))]
}

func (e *Engine) randomYaw() core.Quat {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return core.YawQuat(e.rng.Float64() * 2 * math.Pi)
}
