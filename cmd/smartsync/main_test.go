package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/minigames/smartsync/internal/config"
	"github.com/minigames/smartsync/internal/monitor"
	"github.com/minigames/smartsync/internal/room/loopback"
	"github.com/minigames/smartsync/internal/room/relay"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const assetsJSON = `[
	{ "kind": "obstacle", "bundle": "props", "asset": "rock" },
	{ "kind": "obstacle", "bundle": "props", "asset": "crate" },
	{ "kind": "bullet", "bundle": "weapons", "asset": "pellet" }
]`

// writeConfig writes a config file whose logs go to a temp dir and returns
// the config dir.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	logs := filepath.ToSlash(filepath.Join(dir, "logs"))
	body := fmt.Sprintf(`{
		"logLevel": "debug",
		"logsDir": %q,
		"game": { "assets": %s, "seed": 7 }%s
	}`, logs, assetsJSON, extra)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(body), 0644))
	t.Cleanup(viper.Reset)
	return dir
}

func TestRun_NoArgs(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), nil, &out)
	require.ErrorIs(t, err, errUsage)
	assert.Contains(t, out.String(), "simulate")
	assert.Contains(t, out.String(), "relay")
	assert.Contains(t, out.String(), "join")
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"version"}, &out))
	assert.Contains(t, out.String(), CurrentVersion)
}

func TestRun_UnknownCommand(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"teleport"}, &out)
	require.ErrorIs(t, err, errUsage)
	assert.Contains(t, out.String(), `unknown command "teleport"`)
}

func TestRun_BadFlag(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"simulate", "--no-such-flag"}, &out)
	require.Error(t, err)
}

func TestRun_Simulate(t *testing.T) {
	dir := writeConfig(t, "")
	var out bytes.Buffer

	err := run(context.Background(), []string{"simulate", "--config", dir, "-n", "3", "--shots", "2"}, &out)
	require.NoError(t, err, out.String())

	for _, p := range []string{"player-1", "player-2", "player-3"} {
		assert.Contains(t, out.String(), p)
		assert.FileExists(t, filepath.Join(dir, "logs", fmt.Sprintf("%s_%s_status.json", AppName, p)))
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "logs", AppName+"_simulate.*.log"))
	assert.Len(t, matches, 1)
}

func TestRun_SimulateRejectsPostgresWithSeveralParticipants(t *testing.T) {
	dir := writeConfig(t, "")
	var out bytes.Buffer

	err := run(context.Background(), []string{"simulate", "--config", dir, "--storage", "postgres", "-n", "2"}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}

func newTestApp(t *testing.T, extra string) *App {
	t.Helper()
	require.NoError(t, config.Load(writeConfig(t, extra)))
	app, err := NewApp(context.Background(), "test", "")
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func TestSimulate_Converges(t *testing.T) {
	for _, store := range []string{"memory", "sqlite"} {
		t.Run(store, func(t *testing.T) {
			app := newTestApp(t, fmt.Sprintf(`, "storage": { "type": %q }`, store))
			gameCfg, err := config.GetGameConfig()
			require.NoError(t, err)

			statuses, err := simulate(context.Background(), app, gameCfg, simulateOptions{Participants: 4, Shots: 3})
			require.NoError(t, err)
			require.Len(t, statuses, 4)

			// 20 obstacles, 12 projectiles, the local player and weapon
			for _, st := range statuses {
				assert.Equal(t, 34, st.Objects, st.Participant)
				assert.Equal(t, int64(0), st.Failed, st.Participant)
				assert.Equal(t, int64(0), st.Discarded, st.Participant)
			}
		})
	}
}

func TestSimulate_NoParticipants(t *testing.T) {
	app := newTestApp(t, "")
	_, err := simulate(context.Background(), app, config.GameConfig{}, simulateOptions{})
	require.Error(t, err)
}

func TestCheckConverged_ReportsDivergence(t *testing.T) {
	app := newTestApp(t, "")
	gameCfg, err := config.GetGameConfig()
	require.NoError(t, err)

	lb := loopback.NewRoom(loopback.Manual())
	var nodes []*node
	for _, id := range []string{"host", "guest"} {
		n, err := newNode(app, lb.Join(id), nodeOptions{Game: gameCfg, SpawnIDBase: 1000})
		require.NoError(t, err)
		t.Cleanup(n.Close)
		nodes = append(nodes, n)
	}

	_, err = nodes[0].game.PlaceAssets(context.Background())
	require.NoError(t, err)

	err = checkConverged(nodes)
	require.ErrorIs(t, err, errDiverged)
	assert.Contains(t, err.Error(), "guest holds 0 objects")

	lb.Flush()
	assert.NoError(t, checkConverged(nodes))
	assert.NoError(t, checkConverged(nil))
}

func TestJoin_RequiresParticipant(t *testing.T) {
	app := newTestApp(t, "")
	_, err := join(context.Background(), app, config.RoomConfig{}, config.GameConfig{}, joinOptions{})
	require.Error(t, err)
}

func TestJoin_TwoParticipantsOverRelay(t *testing.T) {
	app := newTestApp(t, "")
	gameCfg, err := config.GetGameConfig()
	require.NoError(t, err)

	srv := relay.New(relay.Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	url := "ws" + strings.TrimPrefix(ts.URL, "http")

	roomCfg := func(participant string) config.RoomConfig {
		return config.RoomConfig{
			URL:            url,
			Name:           "lobby",
			Participant:    participant,
			BufferSize:     64,
			AckTimeout:     2 * time.Second,
			ReconnectDelay: 50 * time.Millisecond,
		}
	}
	guestGame := gameCfg
	guestGame.SpawnIDBase = 2000

	var hostStatus, guestStatus *monitor.Status
	var g errgroup.Group
	g.Go(func() (err error) {
		hostStatus, err = join(context.Background(), app, roomCfg("host"), gameCfg,
			joinOptions{Host: true, Shots: 2, Duration: 1500 * time.Millisecond})
		return err
	})
	g.Go(func() (err error) {
		time.Sleep(100 * time.Millisecond)
		guestStatus, err = join(context.Background(), app, roomCfg("guest"), guestGame,
			joinOptions{Shots: 1, Duration: 1500 * time.Millisecond})
		return err
	})
	require.NoError(t, g.Wait())

	// 20 obstacles, 3 projectiles, start_game
	assert.Len(t, srv.Snapshot("lobby"), 24)
	require.NotNil(t, hostStatus)
	require.NotNil(t, guestStatus)
	assert.Equal(t, hostStatus.Objects, guestStatus.Objects)
	assert.Equal(t, 25, hostStatus.Objects)
}
