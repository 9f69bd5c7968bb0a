package relay

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/minigames/smartsync/internal/room"
	"github.com/minigames/smartsync/pkg/roomproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRelay(t *testing.T, cfg Config) (*Server, string) {
	t.Helper()
	srv := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http")
}

type rawClient struct {
	t    *testing.T
	conn *ws.Conn
	seq  uint64
}

func dialRaw(t *testing.T, url string) *rawClient {
	t.Helper()
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &rawClient{t: t, conn: conn}
}

func (c *rawClient) write(msgType string, payload any) uint64 {
	c.t.Helper()
	c.seq++
	data, err := roomproto.Marshal(msgType, c.seq, payload)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(ws.TextMessage, data))
	return c.seq
}

func (c *rawClient) read() (roomproto.Envelope, []byte) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := c.conn.ReadMessage()
	require.NoError(c.t, err)
	var env roomproto.Envelope
	require.NoError(c.t, json.Unmarshal(data, &env))
	return env, data
}

func (c *rawClient) readAck(seq uint64) roomproto.AckMessage {
	c.t.Helper()
	env, data := c.read()
	require.Equal(c.t, roomproto.TypeAck, env.Type, string(data))
	var ack roomproto.AckMessage
	require.NoError(c.t, json.Unmarshal(data, &ack))
	require.Equal(c.t, seq, ack.Seq)
	return ack
}

func (c *rawClient) readChange() roomproto.PropertiesPayload {
	c.t.Helper()
	env, data := c.read()
	require.Equal(c.t, roomproto.TypePropertiesChanged, env.Type, string(data))
	var p roomproto.PropertiesPayload
	require.NoError(c.t, roomproto.DecodePayload(env, &p))
	return p
}

func (c *rawClient) join(roomName, participant string) {
	c.t.Helper()
	seq := c.write(roomproto.TypeJoin, roomproto.JoinPayload{Room: roomName, Participant: participant})
	ack := c.readAck(seq)
	require.Empty(c.t, ack.Error)
}

func TestSetProperties_RequiresJoin(t *testing.T) {
	_, url := newTestRelay(t, Config{})
	c := dialRaw(t, url)

	seq := c.write(roomproto.TypeSetProperties, roomproto.PropertiesPayload{Properties: map[string]any{"k": "v"}})
	ack := c.readAck(seq)
	assert.Equal(t, roomproto.TypeSetProperties, ack.For)
	assert.Equal(t, ErrNotJoined.Error(), ack.Error)
}

func TestJoin_Validation(t *testing.T) {
	_, url := newTestRelay(t, Config{})
	c := dialRaw(t, url)

	seq := c.write(roomproto.TypeJoin, roomproto.JoinPayload{Room: "lobby"})
	assert.Equal(t, ErrNoParticipant.Error(), c.readAck(seq).Error)

	c.join("lobby", "alice")
	seq = c.write(roomproto.TypeJoin, roomproto.JoinPayload{Room: "lobby", Participant: "alice"})
	assert.Equal(t, ErrAlreadyJoined.Error(), c.readAck(seq).Error)
}

func TestUnknownMessage(t *testing.T) {
	_, url := newTestRelay(t, Config{})
	c := dialRaw(t, url)

	seq := c.write("teleport", nil)
	assert.Contains(t, c.readAck(seq).Error, "unknown message type")

	require.NoError(t, c.conn.WriteMessage(ws.TextMessage, []byte("{not json")))
	env, _ := c.read()
	assert.Equal(t, roomproto.TypeError, env.Type)
}

func TestSetProperties_BroadcastsToAllMembersBeforeAck(t *testing.T) {
	srv, url := newTestRelay(t, Config{})
	alice := dialRaw(t, url)
	bob := dialRaw(t, url)
	alice.join("lobby", "alice")
	bob.join("lobby", "bob")
	require.Equal(t, 2, srv.Members("lobby"))

	seq := alice.write(roomproto.TypeSetProperties, roomproto.PropertiesPayload{
		Properties: map[string]any{"asset_1": "one", "start_game": true},
	})

	own := alice.readChange()
	assert.Equal(t, "alice", own.Writer)
	assert.Equal(t, "one", own.Properties["asset_1"])
	assert.Empty(t, alice.readAck(seq).Error)

	got := bob.readChange()
	assert.Equal(t, own, got)

	assert.Equal(t, room.Properties{"asset_1": "one", "start_game": true}, srv.Snapshot("lobby"))
}

func TestSetProperties_NilClearsKey(t *testing.T) {
	srv, url := newTestRelay(t, Config{})
	c := dialRaw(t, url)
	c.join("lobby", "alice")

	seq := c.write(roomproto.TypeSetProperties, roomproto.PropertiesPayload{Properties: map[string]any{"a": 1, "b": 2}})
	c.readChange()
	c.readAck(seq)

	seq = c.write(roomproto.TypeSetProperties, roomproto.PropertiesPayload{Properties: map[string]any{"a": nil}})
	change := c.readChange()
	assert.Contains(t, change.Properties, "a")
	assert.Nil(t, change.Properties["a"])
	c.readAck(seq)

	assert.Equal(t, room.Properties{"b": float64(2)}, srv.Snapshot("lobby"))
}

func TestJoin_SendsSnapshotBeforeAck(t *testing.T) {
	_, url := newTestRelay(t, Config{})
	alice := dialRaw(t, url)
	alice.join("lobby", "alice")
	seq := alice.write(roomproto.TypeSetProperties, roomproto.PropertiesPayload{Properties: map[string]any{"asset_3": "x"}})
	alice.readChange()
	alice.readAck(seq)

	late := dialRaw(t, url)
	seq = late.write(roomproto.TypeJoin, roomproto.JoinPayload{Room: "lobby", Participant: "dave"})
	snapshot := late.readChange()
	assert.Equal(t, map[string]any{"asset_3": "x"}, snapshot.Properties)
	assert.Empty(t, late.readAck(seq).Error)
}

func TestRooms_AreIsolated(t *testing.T) {
	srv, url := newTestRelay(t, Config{})
	a := dialRaw(t, url)
	b := dialRaw(t, url)
	a.join("red", "alice")
	b.join("blue", "bob")

	seq := a.write(roomproto.TypeSetProperties, roomproto.PropertiesPayload{Properties: map[string]any{"k": "red"}})
	a.readChange()
	a.readAck(seq)

	assert.Empty(t, srv.Snapshot("blue"))
	assert.Nil(t, srv.Snapshot("green"))
}

func TestSetPlayerProperties(t *testing.T) {
	srv, url := newTestRelay(t, Config{})
	c := dialRaw(t, url)
	c.join("lobby", "alice")

	seq := c.write(roomproto.TypeSetPlayerProperties, roomproto.PropertiesPayload{Properties: map[string]any{"score": 0}})
	assert.Empty(t, c.readAck(seq).Error)
	assert.Equal(t, room.Properties{"score": float64(0)}, srv.PlayerProperties("lobby", "alice"))
	assert.Nil(t, srv.PlayerProperties("lobby", "bob"))
}

func TestLeave_RemovesMember(t *testing.T) {
	srv, url := newTestRelay(t, Config{})
	c := dialRaw(t, url)
	c.join("lobby", "alice")
	require.Equal(t, 1, srv.Members("lobby"))

	require.NoError(t, c.conn.Close())
	assert.Eventually(t, func() bool { return srv.Members("lobby") == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestDisconnect(t *testing.T) {
	srv, url := newTestRelay(t, Config{})
	c := dialRaw(t, url)
	c.join("lobby", "alice")

	assert.Equal(t, 1, srv.Disconnect("lobby", "alice"))
	assert.Equal(t, 0, srv.Disconnect("nowhere", "alice"))

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := c.conn.ReadMessage()
	assert.Error(t, err)
}

func TestMaxMessageSize(t *testing.T) {
	srv, url := newTestRelay(t, Config{MaxMessageSize: 256})
	c := dialRaw(t, url)
	c.join("lobby", "alice")

	c.write(roomproto.TypeSetProperties, roomproto.PropertiesPayload{
		Properties: map[string]any{"big": strings.Repeat("x", 1024)},
	})

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := c.conn.ReadMessage()
	assert.Error(t, err)
	assert.Empty(t, srv.Snapshot("lobby"))
}
