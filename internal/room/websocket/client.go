// Package websocket is a room.Participant backed by a relay reached over
// a WebSocket connection.
package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/minigames/smartsync/internal/channel"
	"github.com/minigames/smartsync/internal/queue"
	"github.com/minigames/smartsync/internal/room"
	"github.com/minigames/smartsync/pkg/roomproto"
)

const defaultAckTimeout = 5 * time.Second

// Config holds the relay address and the identity used to join.
type Config struct {
	URL            string
	Room           string
	Participant    string
	AckTimeout     time.Duration
	ReconnectDelay time.Duration
}

// Client joins one room on a relay. Change notifications are queued by the
// read loop and delivered to subscribers from a single goroutine, so a
// subscriber may publish without stalling acks.
type Client struct {
	cfg  Config
	conn *connection
	seq  atomic.Uint64

	listeners room.Listeners
	inbox     *queue.Queue[room.Properties]
	wake      channel.Channel[struct{}]
	delivered chan struct{}
	startOnce sync.Once

	propsMu sync.RWMutex
	props   room.Properties
}

// Dial connects to the relay and joins cfg.Room. The initial room snapshot
// is held until the first Subscribe and delivered as the first change
// notification.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Participant == "" {
		return nil, fmt.Errorf("participant id is required")
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = defaultAckTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("room", cfg.Room, "participant", cfg.Participant)

	c := &Client{
		cfg:       cfg,
		inbox:     queue.New[room.Properties](),
		wake:      channel.NewBuffered[struct{}](1),
		delivered: make(chan struct{}),
		props:     room.Properties{},
	}
	c.conn = newConnection(c.enqueue, cfg.ReconnectDelay, logger)

	if err := c.conn.dial(cfg.URL); err != nil {
		return nil, err
	}

	seq := c.seq.Add(1)
	join, err := roomproto.Marshal(roomproto.TypeJoin, seq, roomproto.JoinPayload{
		Room:        cfg.Room,
		Participant: cfg.Participant,
	})
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.conn.mu.Lock()
	c.conn.cachedJoinMsg = join
	c.conn.mu.Unlock()

	if err := c.wait(ctx, join, roomproto.TypeJoin, seq); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// ID returns the participant id this client joined with.
func (c *Client) ID() string {
	return c.cfg.Participant
}

// SetProperties publishes props as one batch and waits for the relay to
// acknowledge it. The relay broadcasts the batch before acking, so the
// notification for it is already queued when this returns.
func (c *Client) SetProperties(ctx context.Context, props room.Properties) error {
	if len(props) == 0 {
		return nil
	}
	seq := c.seq.Add(1)
	data, err := roomproto.Marshal(roomproto.TypeSetProperties, seq, roomproto.PropertiesPayload{
		Properties: props,
		Writer:     c.cfg.Participant,
	})
	if err != nil {
		return err
	}
	return c.wait(ctx, data, roomproto.TypeSetProperties, seq)
}

// Subscribe registers l for change notifications.
func (c *Client) Subscribe(l room.Listener) (unsubscribe func()) {
	unsubscribe = c.listeners.Subscribe(l)
	c.startOnce.Do(func() { go c.deliver() })
	return unsubscribe
}

// SetCustomProperties stores props as this participant's custom properties,
// locally and on the relay.
func (c *Client) SetCustomProperties(ctx context.Context, props room.Properties) error {
	c.propsMu.Lock()
	c.props.Merge(props)
	c.propsMu.Unlock()

	seq := c.seq.Add(1)
	data, err := roomproto.Marshal(roomproto.TypeSetPlayerProperties, seq, roomproto.PropertiesPayload{
		Properties: props,
		Writer:     c.cfg.Participant,
	})
	if err != nil {
		return err
	}
	return c.wait(ctx, data, roomproto.TypeSetPlayerProperties, seq)
}

// CustomProperties returns a copy of this participant's custom properties.
func (c *Client) CustomProperties() room.Properties {
	c.propsMu.RLock()
	defer c.propsMu.RUnlock()
	return c.props.Clone()
}

// Close leaves the room and stops delivery. Queued notifications that were
// not yet delivered are discarded.
func (c *Client) Close() error {
	err := c.conn.close()
	c.wake.Close()
	c.startOnce.Do(func() { go c.deliver() })
	return err
}

// Done is closed once the delivery goroutine has exited.
func (c *Client) Done() <-chan struct{} {
	return c.delivered
}

func (c *Client) wait(ctx context.Context, data []byte, msgType string, seq uint64) error {
	timeout := c.cfg.AckTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.conn.sendAndWait(ctx, data, msgType, seq, timeout)
}

func (c *Client) enqueue(p roomproto.PropertiesPayload) {
	if len(p.Properties) == 0 {
		return
	}
	c.inbox.Push(room.Properties(p.Properties))
	c.wake.TrySend(struct{}{})
}

func (c *Client) deliver() {
	defer close(c.delivered)
	for {
		if _, ok := <-c.wake.Receive(); !ok {
			return
		}
		for {
			changed, ok := c.inbox.Pop()
			if !ok {
				break
			}
			c.listeners.Notify(changed)
		}
	}
}
