package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/minigames/smartsync/internal/config"
	"github.com/minigames/smartsync/internal/monitor"
	"github.com/minigames/smartsync/internal/room/loopback"
	"github.com/minigames/smartsync/pkg/core"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const simulateSpawnStride = 1000

var errDiverged = errors.New("participants did not converge")

var simulateCommand = command{
	name:    "simulate",
	summary: "play one session with several participants over an in-process room",
	flags: func(fs *pflag.FlagSet) {
		fs.IntP("participants", "n", 3, "number of participants")
		fs.Int("shots", 3, "shots fired by every participant")
		fs.Int64("seed", 0, "placement seed (overrides game.seed)")
	},
	bind: map[string]string{"seed": "game.seed"},
	run:  runSimulate,
}

type simulateOptions struct {
	Participants int
	Shots        int
}

func runSimulate(ctx context.Context, app *App, fs *pflag.FlagSet, stdout io.Writer) error {
	participants, _ := fs.GetInt("participants")
	shots, _ := fs.GetInt("shots")

	gameCfg, err := config.GetGameConfig()
	if err != nil {
		return err
	}
	statuses, err := simulate(ctx, app, gameCfg, simulateOptions{Participants: participants, Shots: shots})
	printStatuses(stdout, statuses)
	return err
}

// simulate joins every participant to one loopback room. The first one hosts:
// it places the obstacles and starts the game. Then everyone fires and
// destroys an obstacle concurrently, and the replicated registries are
// compared.
func simulate(ctx context.Context, app *App, gameCfg config.GameConfig, opts simulateOptions) ([]monitor.Status, error) {
	if opts.Participants < 1 {
		return nil, fmt.Errorf("need at least one participant, got %d", opts.Participants)
	}
	if opts.Participants > 1 && config.GetStorageConfig().Type == "postgres" {
		return nil, errors.New("postgres storage holds one participant per database; use memory or sqlite to simulate")
	}

	lb := loopback.NewRoom()
	nodes := make([]*node, 0, opts.Participants)
	defer func() {
		for _, n := range nodes {
			n.Close()
		}
	}()

	base := max(gameCfg.SpawnIDBase, simulateSpawnStride)
	for i := range opts.Participants {
		n, err := newNode(app, lb.Join(fmt.Sprintf("player-%d", i+1)), nodeOptions{
			Context:     ctx,
			Game:        gameCfg,
			SpawnIDBase: base + int32(i)*simulateSpawnStride,
			Seed:        gameCfg.Seed + int64(i),
		})
		if err != nil {
			return nil, fmt.Errorf("join participant %d: %w", i+1, err)
		}
		nodes = append(nodes, n)
	}

	host := nodes[0]
	placed, err := host.game.PlaceAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("place assets: %w", err)
	}
	app.Logger.Info("Obstacles placed", "count", len(placed), "host", host.id)

	if err := host.game.StartGame(ctx); err != nil {
		return nil, fmt.Errorf("start game: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, n := range nodes {
		g.Go(func() error {
			for range opts.Shots {
				if err := gctx.Err(); err != nil {
					return err
				}
				if !n.game.TriggerPrimary() {
					return fmt.Errorf("%s: weapon not armed", n.id)
				}
			}
			if len(placed) == 0 {
				return nil
			}
			target := placed[i%len(placed)].Key()
			_, err := n.session.PublishUpdate(gctx, target, func(d *core.Descriptor) {
				d.Destroyed = true
				d.Score++
			})
			if err != nil {
				return fmt.Errorf("%s: destroy %s: %w", n.id, target, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	statuses := make([]monitor.Status, 0, len(nodes))
	for _, n := range nodes {
		statuses = append(statuses, n.monitor.Report())
	}
	return statuses, checkConverged(nodes)
}

// checkConverged compares every participant's replicated objects to the host's.
func checkConverged(nodes []*node) error {
	if len(nodes) == 0 {
		return nil
	}
	want := nodes[0].Replicated()
	var errs []error
	for _, n := range nodes[1:] {
		got := n.Replicated()
		if len(got) != len(want) {
			errs = append(errs, fmt.Errorf("%s holds %d objects, %s holds %d", n.id, len(got), nodes[0].id, len(want)))
			continue
		}
		for _, key := range slices.Sorted(maps.Keys(want)) {
			if got[key] != want[key] {
				errs = append(errs, fmt.Errorf("%s: %s differs from %s", n.id, key, nodes[0].id))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", errDiverged, errors.Join(errs...))
	}
	return nil
}

func printStatuses(w io.Writer, statuses []monitor.Status) {
	if len(statuses) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PARTICIPANT\tOBJECTS\tCREATED\tUPDATED\tDISCARDED\tSTALE\tFAILED")
	for _, st := range statuses {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			st.Participant, st.Objects, st.Created, st.Updated, st.Discarded, st.StaleUpdates, st.Failed)
	}
	_ = tw.Flush()
}
