package websocket_test

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minigames/smartsync/internal/room"
	"github.com/minigames/smartsync/internal/room/relay"
	"github.com/minigames/smartsync/internal/room/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var _ room.Participant = (*websocket.Client)(nil)

func startRelay(t *testing.T) (*relay.Server, string) {
	t.Helper()
	srv := relay.New(relay.Config{}, quiet)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url, participant string) *websocket.Client {
	t.Helper()
	c, err := websocket.Dial(context.Background(), websocket.Config{
		URL:            url,
		Room:           "lobby",
		Participant:    participant,
		AckTimeout:     2 * time.Second,
		ReconnectDelay: 10 * time.Millisecond,
	}, quiet)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// mirror folds every notification into a local copy of the table.
type mirror struct {
	mu    sync.Mutex
	table room.Properties
	n     int
}

func (m *mirror) listen(changed room.Properties) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.table == nil {
		m.table = room.Properties{}
	}
	m.table.Merge(changed)
	m.n++
}

func (m *mirror) get(key string) any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table[key]
}

func (m *mirror) notifications() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.n
}

func TestDial_Validation(t *testing.T) {
	_, err := websocket.Dial(context.Background(), websocket.Config{URL: "ws://127.0.0.1:1"}, quiet)
	require.Error(t, err)

	_, err = websocket.Dial(context.Background(), websocket.Config{URL: "ws://127.0.0.1:1", Participant: "alice"}, quiet)
	require.Error(t, err)
}

func TestSetProperties_DeliveredToEveryone(t *testing.T) {
	_, url := startRelay(t)
	alice := dial(t, url, "alice")
	bob := dial(t, url, "bob")

	var am, bm mirror
	alice.Subscribe(am.listen)
	bob.Subscribe(bm.listen)

	require.NoError(t, alice.SetProperties(context.Background(), room.Properties{"asset_1": "one"}))

	assert.Eventually(t, func() bool { return am.get("asset_1") == "one" }, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return bm.get("asset_1") == "one" }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "alice", alice.ID())
}

func TestSetProperties_EmptyIsNoop(t *testing.T) {
	_, url := startRelay(t)
	alice := dial(t, url, "alice")
	require.NoError(t, alice.SetProperties(context.Background(), nil))
}

func TestSetProperties_CancelledContext(t *testing.T) {
	_, url := startRelay(t)
	alice := dial(t, url, "alice")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, alice.SetProperties(ctx, room.Properties{"k": 1}), context.Canceled)
}

func TestLateJoiner_ReceivesSnapshotOnSubscribe(t *testing.T) {
	srv, url := startRelay(t)
	alice := dial(t, url, "alice")
	require.NoError(t, alice.SetProperties(context.Background(), room.Properties{"asset_3": "x", "asset_4": "y"}))
	require.NoError(t, alice.SetProperties(context.Background(), room.Properties{"asset_4": nil}))
	require.Equal(t, room.Properties{"asset_3": "x"}, srv.Snapshot("lobby"))

	dave := dial(t, url, "dave")
	time.Sleep(20 * time.Millisecond)

	var dm mirror
	dave.Subscribe(dm.listen)
	assert.Eventually(t, func() bool { return dm.get("asset_3") == "x" }, 2*time.Second, 5*time.Millisecond)
	assert.Nil(t, dm.get("asset_4"))
}

func TestListenerMayPublish(t *testing.T) {
	_, url := startRelay(t)
	alice := dial(t, url, "alice")

	var m mirror
	alice.Subscribe(func(changed room.Properties) {
		m.listen(changed)
		if _, ok := changed["ping"]; ok {
			require.NoError(t, alice.SetProperties(context.Background(), room.Properties{"pong": true}))
		}
	})

	require.NoError(t, alice.SetProperties(context.Background(), room.Properties{"ping": true}))
	assert.Eventually(t, func() bool { return m.get("pong") == true }, 2*time.Second, 5*time.Millisecond)
}

func TestCustomProperties(t *testing.T) {
	srv, url := startRelay(t)
	alice := dial(t, url, "alice")

	require.NoError(t, alice.SetCustomProperties(context.Background(), room.Properties{"score": 0}))
	assert.Equal(t, room.Properties{"score": 0}, alice.CustomProperties())
	assert.Equal(t, room.Properties{"score": float64(0)}, srv.PlayerProperties("lobby", "alice"))
}

func TestReconnect_ResyncsFromSnapshot(t *testing.T) {
	srv, url := startRelay(t)
	alice := dial(t, url, "alice")
	bob := dial(t, url, "bob")

	var bm mirror
	bob.Subscribe(bm.listen)

	require.Equal(t, 1, srv.Disconnect("lobby", "bob"))
	require.NoError(t, alice.SetProperties(context.Background(), room.Properties{"asset_9": "while-away"}))

	assert.Eventually(t, func() bool { return bm.get("asset_9") == "while-away" }, 5*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return srv.Members("lobby") == 2 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, bob.SetProperties(context.Background(), room.Properties{"asset_10": "back"}))
	assert.Equal(t, "back", srv.Snapshot("lobby")["asset_10"])
}

func TestClose_StopsDelivery(t *testing.T) {
	_, url := startRelay(t)
	alice, err := websocket.Dial(context.Background(), websocket.Config{URL: url, Room: "lobby", Participant: "alice"}, quiet)
	require.NoError(t, err)

	var m mirror
	alice.Subscribe(m.listen)
	require.NoError(t, alice.Close())
	require.NoError(t, alice.Close())

	select {
	case <-alice.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("delivery goroutine did not exit")
	}
	assert.Error(t, alice.SetProperties(context.Background(), room.Properties{"k": 1}))
}
