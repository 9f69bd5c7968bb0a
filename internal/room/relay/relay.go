// Package relay serves rooms to websocket clients. Each room holds the
// authoritative property table; every accepted batch is broadcast to all
// members, the writer included, in the order the relay applied it.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/minigames/smartsync/internal/channel"
	"github.com/minigames/smartsync/internal/room"
	"github.com/minigames/smartsync/pkg/roomproto"
)

const (
	defaultMaxMessageSize = 1 << 20
	defaultSendBuffer     = 256
	writeWait             = 10 * time.Second
	shutdownWait          = 5 * time.Second
)

var (
	ErrNotJoined      = errors.New("not joined")
	ErrAlreadyJoined  = errors.New("already joined")
	ErrNoParticipant  = errors.New("participant id is required")
	ErrUnknownMessage = errors.New("unknown message type")
)

// Config tunes the relay.
type Config struct {
	MaxMessageSize int64
	// SendBuffer is the number of outbound messages queued per client. A
	// client that falls further behind is disconnected and resyncs on rejoin.
	SendBuffer int
}

// Server is an http.Handler upgrading requests to room connections.
type Server struct {
	cfg      Config
	upgrader ws.Upgrader
	logger   *slog.Logger

	mu    sync.Mutex
	rooms map[string]*roomState
}

type roomState struct {
	mu      sync.Mutex
	name    string
	table   room.Properties
	members map[*client]struct{}
	players map[string]room.Properties
}

type client struct {
	conn        *ws.Conn
	send        channel.Channel[[]byte]
	room        *roomState
	participant string
}

// New creates a relay server.
func New(cfg Config, logger *slog.Logger) *Server {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg: cfg,
		upgrader: ws.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
		rooms:  make(map[string]*roomState),
	}
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	c := &client{
		conn: conn,
		send: channel.NewBuffered[[]byte](s.cfg.SendBuffer),
	}
	go s.writePump(c)
	s.readPump(c)
}

// Serve listens on addr and serves rooms under path until ctx is done.
func (s *Server) Serve(ctx context.Context, addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, s)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: writeWait}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Relay listening", "address", addr, "path", path)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("relay: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("relay shutdown: %w", err)
		}
		return nil
	}
}

// Snapshot returns a copy of a room's table, or nil if the room does not exist.
func (s *Server) Snapshot(name string) room.Properties {
	r := s.lookup(name)
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table.Clone()
}

// PlayerProperties returns a copy of one participant's custom properties.
func (s *Server) PlayerProperties(name, participant string) room.Properties {
	r := s.lookup(name)
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.players[participant].Clone()
}

// Members returns the number of connections joined to a room.
func (s *Server) Members(name string) int {
	r := s.lookup(name)
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Disconnect drops every connection of participant in a room and returns how
// many were closed. Clients that reconnect are resynced from the snapshot.
func (s *Server) Disconnect(name, participant string) int {
	r := s.lookup(name)
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for m := range r.members {
		if m.participant == participant {
			_ = m.conn.Close()
			n++
		}
	}
	return n
}

func (s *Server) lookup(name string) *roomState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[name]
}

func (s *Server) getOrCreate(name string) *roomState {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[name]
	if !ok {
		r = &roomState{
			name:    name,
			table:   room.Properties{},
			members: make(map[*client]struct{}),
			players: make(map[string]room.Properties),
		}
		s.rooms[name] = r
	}
	return r
}

func (s *Server) readPump(c *client) {
	defer s.leave(c)
	c.conn.SetReadLimit(s.cfg.MaxMessageSize)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				s.logger.Debug("Client read error", "participant", c.participant, "error", err)
			}
			return
		}

		var env roomproto.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			s.sendError(c, "unreadable message")
			continue
		}

		var handleErr error
		switch env.Type {
		case roomproto.TypeJoin:
			handleErr = s.handleJoin(c, env)
		case roomproto.TypeSetProperties:
			handleErr = s.handleSetProperties(c, env)
		case roomproto.TypeSetPlayerProperties:
			handleErr = s.handleSetPlayerProperties(c, env)
		default:
			handleErr = fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
		}
		if handleErr != nil {
			s.logger.Debug("Message rejected", "type", env.Type, "participant", c.participant, "error", handleErr)
		}
		s.ack(c, env, handleErr)
	}
}

func (s *Server) handleJoin(c *client, env roomproto.Envelope) error {
	if c.room != nil {
		return ErrAlreadyJoined
	}
	var p roomproto.JoinPayload
	if err := roomproto.DecodePayload(env, &p); err != nil {
		return err
	}
	if p.Participant == "" {
		return ErrNoParticipant
	}

	r := s.getOrCreate(p.Room)
	r.mu.Lock()
	defer r.mu.Unlock()

	c.room = r
	c.participant = p.Participant
	r.members[c] = struct{}{}

	if len(r.table) > 0 {
		snapshot, err := roomproto.Marshal(roomproto.TypePropertiesChanged, 0, roomproto.PropertiesPayload{
			Properties: r.table,
		})
		if err != nil {
			return err
		}
		s.deliver(c, snapshot)
	}
	s.logger.Info("Participant joined", "room", r.name, "participant", p.Participant, "keys", len(r.table))
	return nil
}

func (s *Server) handleSetProperties(c *client, env roomproto.Envelope) error {
	r := c.room
	if r == nil {
		return ErrNotJoined
	}
	var p roomproto.PropertiesPayload
	if err := roomproto.DecodePayload(env, &p); err != nil {
		return err
	}
	if len(p.Properties) == 0 {
		return nil
	}
	p.Writer = c.participant

	// Apply and broadcast under the room lock so every member sees batches in
	// the order they were applied.
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table.Merge(p.Properties)
	data, err := roomproto.Marshal(roomproto.TypePropertiesChanged, 0, p)
	if err != nil {
		return err
	}
	for m := range r.members {
		s.deliver(m, data)
	}
	return nil
}

func (s *Server) handleSetPlayerProperties(c *client, env roomproto.Envelope) error {
	r := c.room
	if r == nil {
		return ErrNotJoined
	}
	var p roomproto.PropertiesPayload
	if err := roomproto.DecodePayload(env, &p); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	props, ok := r.players[c.participant]
	if !ok {
		props = room.Properties{}
		r.players[c.participant] = props
	}
	props.Merge(p.Properties)
	return nil
}

// deliver queues data for c, disconnecting c if its queue is full.
func (s *Server) deliver(c *client, data []byte) {
	if c.send.TrySend(data) {
		return
	}
	s.logger.Warn("Client too slow, disconnecting", "participant", c.participant)
	_ = c.conn.Close()
}

func (s *Server) ack(c *client, env roomproto.Envelope, err error) {
	data, marshalErr := roomproto.Ack(env, err)
	if marshalErr != nil {
		s.logger.Error("Failed to marshal ack", "error", marshalErr)
		return
	}
	s.deliver(c, data)
}

func (s *Server) sendError(c *client, msg string) {
	data, err := roomproto.Marshal(roomproto.TypeError, 0, roomproto.ErrorPayload{Message: msg})
	if err != nil {
		return
	}
	s.deliver(c, data)
}

func (s *Server) leave(c *client) {
	if r := c.room; r != nil {
		r.mu.Lock()
		delete(r.members, c)
		r.mu.Unlock()
		s.logger.Info("Participant left", "room", r.name, "participant", c.participant)
	}
	c.send.Close()
}

func (s *Server) writePump(c *client) {
	defer func() { _ = c.conn.Close() }()
	for data := range c.send.Receive() {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return
		}
		if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
			s.logger.Debug("Client write error", "participant", c.participant, "error", err)
			return
		}
	}
	_ = c.conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}
