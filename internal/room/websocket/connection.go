package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/minigames/smartsync/pkg/roomproto"
)

const (
	sendChSize   = 1024
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
)

var ErrClosed = errors.New("room connection closed")

// connection manages a WebSocket connection with a single write goroutine.
// Acks are matched to their waiter by sequence number.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{} // closed on shutdown
	closed bool

	wsURL          string
	reconnectDelay time.Duration

	// Cached join message, replayed after a reconnect.
	cachedJoinMsg []byte

	waitMu  sync.Mutex
	waiters map[uint64]chan roomproto.AckMessage

	onChange func(roomproto.PropertiesPayload)
	logger   *slog.Logger
}

func newConnection(onChange func(roomproto.PropertiesPayload), reconnectDelay time.Duration, logger *slog.Logger) *connection {
	if reconnectDelay <= 0 {
		reconnectDelay = time.Second
	}
	return &connection{
		sendCh:         make(chan []byte, sendChSize),
		done:           make(chan struct{}),
		waiters:        make(map[uint64]chan roomproto.AckMessage),
		reconnectDelay: reconnectDelay,
		onChange:       onChange,
		logger:         logger,
	}
}

// dial connects to the WebSocket server and starts read/write loops.
func (c *connection) dial(rawURL string) error {
	c.wsURL = rawURL

	conn, _, err := ws.DefaultDialer.Dial(rawURL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.start(conn)
	return nil
}

// start runs the loops for one conn. The write loop exits when the read
// loop does, so a replaced conn never consumes sendCh.
func (c *connection) start(conn *ws.Conn) {
	dead := make(chan struct{})
	go c.writeLoop(conn, dead)
	go c.readLoop(conn, dead)
}

// writeLoop drains sendCh and writes messages to conn.
// Only one writeLoop runs at a time; it returns on error or shutdown.
func (c *connection) writeLoop(conn *ws.Conn, dead <-chan struct{}) {
	for {
		select {
		case <-c.done:
			return
		case <-dead:
			return
		case data := <-c.sendCh:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				go c.reconnect(conn)
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				go c.reconnect(conn)
				return
			}
		}
	}
}

// readLoop routes acks to their waiters and change notifications to onChange.
func (c *connection) readLoop(conn *ws.Conn, dead chan<- struct{}) {
	defer close(dead)
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			go c.reconnect(conn)
			return
		}

		var env roomproto.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Debug("Unreadable message received", "raw", string(message))
			continue
		}

		switch env.Type {
		case roomproto.TypeAck:
			var ack roomproto.AckMessage
			if err := json.Unmarshal(message, &ack); err != nil {
				continue
			}
			c.resolve(ack)
		case roomproto.TypePropertiesChanged:
			var p roomproto.PropertiesPayload
			if err := roomproto.DecodePayload(env, &p); err != nil {
				c.logger.Warn("Bad change notification", "error", err)
				continue
			}
			c.onChange(p)
		case roomproto.TypeError:
			var p roomproto.ErrorPayload
			_ = roomproto.DecodePayload(env, &p)
			c.logger.Warn("Relay reported an error", "message", p.Message)
		default:
			c.logger.Debug("Unknown message type", "type", env.Type)
		}
	}
}

func (c *connection) resolve(ack roomproto.AckMessage) {
	c.waitMu.Lock()
	ch, ok := c.waiters[ack.Seq]
	delete(c.waiters, ack.Seq)
	c.waitMu.Unlock()
	if ok {
		ch <- ack
	}
}

// reconnect attempts to re-establish the WebSocket connection with
// exponential backoff. On success it replays the cached join message and
// restarts the read/write loops. Only the loop that owns the failed conn
// reconnects.
func (c *connection) reconnect(failed *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != failed {
		c.mu.Unlock()
		return
	}
	_ = c.conn.Close()
	c.conn = nil
	c.mu.Unlock()

	backoff := c.reconnectDelay
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		c.logger.Info("Reconnecting to room", "attempt", attempt, "backoff", backoff)
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		conn, _, err := ws.DefaultDialer.Dial(c.wsURL, nil)
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		c.mu.Lock()
		cached := c.cachedJoinMsg
		c.mu.Unlock()

		// Replay join so the relay puts us back in the room and resends its state.
		if cached != nil {
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("Failed to set deadline for join replay", "error", err)
				_ = conn.Close()
				continue
			}
			if err := conn.WriteMessage(ws.TextMessage, cached); err != nil {
				c.logger.Warn("Failed to replay join after reconnect", "error", err)
				_ = conn.Close()
				continue
			}
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.mu.Unlock()

		c.logger.Info("Room connection restored", "attempt", attempt)
		c.start(conn)
		return
	}

	c.logger.Error("Room reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *connection) send(data []byte) bool {
	select {
	case c.sendCh <- data:
		return true
	default:
		c.logger.Warn("WebSocket send channel full, dropping message")
		return false
	}
}

// sendAndWait sends data and blocks until the relay acknowledges seq, the
// timeout expires or ctx is done.
func (c *connection) sendAndWait(ctx context.Context, data []byte, msgType string, seq uint64, timeout time.Duration) error {
	ch := make(chan roomproto.AckMessage, 1)
	c.waitMu.Lock()
	c.waiters[seq] = ch
	c.waitMu.Unlock()
	defer func() {
		c.waitMu.Lock()
		delete(c.waiters, seq)
		c.waitMu.Unlock()
	}()

	if !c.send(data) {
		return fmt.Errorf("send %s: queue full", msgType)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ack := <-ch:
		if ack.Error != "" {
			return fmt.Errorf("%s rejected: %s", msgType, ack.Error)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("timeout waiting for ack of %q", msgType)
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return fmt.Errorf("waiting for ack of %q: %w", msgType, ErrClosed)
	}
}

// close sends a WebSocket close frame and shuts down all goroutines.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		return conn.Close()
	}
	return nil
}
