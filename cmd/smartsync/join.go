package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/minigames/smartsync/internal/config"
	"github.com/minigames/smartsync/internal/monitor"
	"github.com/minigames/smartsync/internal/room/websocket"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const armPollInterval = 50 * time.Millisecond

var joinCommand = command{
	name:    "join",
	summary: "join a relay room as one participant",
	flags: func(fs *pflag.FlagSet) {
		fs.String("url", "", "relay websocket url (overrides room.url)")
		fs.String("room", "", "room name (overrides room.name)")
		fs.StringP("participant", "p", "", "participant id (overrides room.participant)")
		fs.Bool("host", false, "place the obstacles and start the game")
		fs.Int("shots", 0, "shots to fire once the game starts")
		fs.Duration("duration", 0, "leave after this long; 0 stays until interrupted")
		fs.Int32("spawn-base", 0, "first id of this participant's projectiles (overrides game.spawnIdBase)")
	},
	bind: map[string]string{
		"url":         "room.url",
		"room":        "room.name",
		"participant": "room.participant",
		"spawn-base":  "game.spawnIdBase",
	},
	participant: true,
	run:         runJoin,
}

type joinOptions struct {
	Host     bool
	Shots    int
	Duration time.Duration
}

func runJoin(ctx context.Context, app *App, fs *pflag.FlagSet, stdout io.Writer) error {
	var opts joinOptions
	opts.Host, _ = fs.GetBool("host")
	opts.Shots, _ = fs.GetInt("shots")
	opts.Duration, _ = fs.GetDuration("duration")

	gameCfg, err := config.GetGameConfig()
	if err != nil {
		return err
	}
	st, err := join(ctx, app, config.GetRoomConfig(), gameCfg, opts)
	if st != nil {
		printStatuses(stdout, []monitor.Status{*st})
	}
	return err
}

// join plays one session against a relay until ctx is done or the duration
// elapses, and returns the final status.
func join(ctx context.Context, app *App, roomCfg config.RoomConfig, gameCfg config.GameConfig, opts joinOptions) (*monitor.Status, error) {
	if roomCfg.Participant == "" {
		return nil, errors.New("participant id is required (--participant or room.participant)")
	}
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	client, err := websocket.Dial(ctx, websocket.Config{
		URL:            roomCfg.URL,
		Room:           roomCfg.Name,
		Participant:    roomCfg.Participant,
		AckTimeout:     roomCfg.AckTimeout,
		ReconnectDelay: roomCfg.ReconnectDelay,
	}, app.Logger.With("component", "room"))
	if err != nil {
		return nil, fmt.Errorf("join room %q: %w", roomCfg.Name, err)
	}
	defer func() { _ = client.Close() }()

	n, err := newNode(app, client, nodeOptions{
		Context:     ctx,
		Game:        gameCfg,
		SpawnIDBase: gameCfg.SpawnIDBase,
		Seed:        gameCfg.Seed,
		Buffer:      roomCfg.BufferSize,
	})
	if err != nil {
		return nil, err
	}
	defer n.Close()

	if err := n.monitor.Start(); err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if opts.Host {
			placed, err := n.game.PlaceAssets(gctx)
			if err != nil {
				return fmt.Errorf("place assets: %w", err)
			}
			n.logger.Info("Obstacles placed", "count", len(placed))
			if err := n.game.StartGame(gctx); err != nil {
				return fmt.Errorf("start game: %w", err)
			}
		}
		if opts.Shots == 0 {
			return nil
		}
		if err := waitArmed(gctx, n); err != nil {
			return err
		}
		for range opts.Shots {
			if !n.game.TriggerPrimary() {
				return errors.New("weapon not armed")
			}
		}
		n.logger.Info("Shots fired", "count", opts.Shots)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	st := n.monitor.Report()
	return &st, err
}

func waitArmed(ctx context.Context, n *node) error {
	ticker := time.NewTicker(armPollInterval)
	defer ticker.Stop()
	for !n.game.Armed() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
