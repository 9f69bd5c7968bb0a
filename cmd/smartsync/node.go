package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/minigames/smartsync/internal/config"
	"github.com/minigames/smartsync/internal/dispatcher"
	"github.com/minigames/smartsync/internal/logging"
	"github.com/minigames/smartsync/internal/minigame"
	"github.com/minigames/smartsync/internal/monitor"
	"github.com/minigames/smartsync/internal/placement"
	"github.com/minigames/smartsync/internal/replication"
	"github.com/minigames/smartsync/internal/room"
	"github.com/minigames/smartsync/internal/session"
	"github.com/minigames/smartsync/internal/storage"
	"github.com/minigames/smartsync/pkg/core"
)

// node is one participant's fully wired session: store, registry,
// dispatcher, replicator, game and status monitor.
type node struct {
	id          string
	store       storage.Backend
	session     *session.Context
	dispatcher  *dispatcher.Dispatcher
	replicator  *replication.Replicator
	engine      *placement.Engine
	game        *minigame.Shooting
	monitor     *monitor.Service
	logger      *slog.Logger
	unsubscribe func()
}

type nodeOptions struct {
	// Context bounds writes made by notification handlers.
	Context     context.Context
	Game        config.GameConfig
	SpawnIDBase int32
	Seed        int64
	// Buffer runs replication on its own goroutine with a queue of this size.
	Buffer int
}

func newNode(app *App, participant room.Participant, opts nodeOptions) (*node, error) {
	id := participant.ID()
	n := &node{id: id}
	logger := logging.WithContext(app.Logger.With("participant", id), logging.Gauge("objects", func() int {
		if n.session == nil {
			return 0
		}
		return n.session.Registry.Len()
	}))
	n.logger = logger
	ok := false
	defer func() {
		if !ok {
			n.Close()
		}
	}()

	var err error
	n.store, err = createStorageBackend(config.GetStorageConfig(), app.LogsDir, id, logger)
	if err != nil {
		return nil, err
	}
	if err = n.store.Init(); err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	n.session, err = session.NewContext(participant, n.store)
	if err != nil {
		return nil, err
	}

	dispatcherLog := app.Zerolog.With().Str("participant", id).Logger()
	n.dispatcher, err = dispatcher.New(logging.NewDispatcherLogger(dispatcherLog))
	if err != nil {
		return nil, fmt.Errorf("create dispatcher: %w", err)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	grid := opts.Game.Grid
	pool := placement.GridPool(grid.Rows, grid.Cols, grid.Step, rng)
	n.engine = placement.NewEngine(n.session, pool, placement.Config{
		Count:       opts.Game.PlacementCount,
		Obstacles:   opts.Game.Assets.Obstacles,
		SpawnIDBase: opts.SpawnIDBase,
	}, rng, logger)

	aim := rand.New(rand.NewSource(opts.Seed + 1))
	muzzle := func() (core.Vec3, core.Quat) {
		return core.Vec3{X: aim.Float32()*2 - 1, Y: 1.5}, core.IdentityQuat
	}
	n.game, err = minigame.NewShooting(minigame.Dependencies{
		Context:   opts.Context,
		Session:   n.session,
		Placement: n.engine,
		Assets:    opts.Game.Assets,
		Shooter:   minigame.NewProjectileShooter(n.engine, muzzle, logger),
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	n.replicator = replication.New(n.session, logger)
	var replOpts []dispatcher.Option
	if opts.Buffer > 0 {
		replOpts = append(replOpts, dispatcher.Buffered(opts.Buffer), dispatcher.Blocking())
	}
	n.replicator.Register(n.dispatcher, replOpts...)
	n.game.Register(n.dispatcher)

	var statusFile string
	if app.LogsDir != "" {
		statusFile = logging.StatusFilePath(app.LogsDir, AppName, id)
	}
	n.monitor = monitor.NewService(monitor.Dependencies{
		Participant: id,
		Registry:    n.session.Registry,
		Dispatcher:  n.dispatcher.Stats(),
		Replication: n.replicator.Stats(),
		Points:      app.Points(),
		Logger:      logger,
		StatusFile:  statusFile,
		Interval:    config.GetMonitorConfig().Interval,
	})

	n.unsubscribe = participant.Subscribe(n.dispatcher.Listener())
	ok = true
	return n, nil
}

// Replicated returns the registry snapshot without the local-only player
// and weapon objects.
func (n *node) Replicated() map[string]core.Descriptor {
	snap := n.session.Registry.Snapshot()
	delete(snap, core.PlayerKey)
	delete(snap, core.WeaponKey)
	return snap
}

// Close stops delivery and monitoring and releases the store.
func (n *node) Close() {
	if n.unsubscribe != nil {
		n.unsubscribe()
	}
	if n.monitor != nil {
		n.monitor.Stop()
	}
	if n.dispatcher != nil {
		n.dispatcher.Close()
	}
	if n.store != nil {
		if err := n.store.Close(); err != nil {
			n.logger.Warn("Failed to close storage", "error", err)
		}
	}
}
