// Package loopback is an in-process room. Every write is delivered to every
// joined participant, the writer included. In manual mode deliveries queue up
// until Flush, which can reorder and duplicate them to mimic a lossy relay.
package loopback

import (
	"context"
	"math/rand"
	"sync"

	"github.com/minigames/smartsync/internal/queue"
	"github.com/minigames/smartsync/internal/room"
)

// Option configures a Room.
type Option func(*Room)

// Manual holds deliveries until Flush is called.
func Manual() Option {
	return func(r *Room) {
		r.manual = true
	}
}

// Shuffled reorders each participant's pending deliveries on Flush.
func Shuffled(rng *rand.Rand) Option {
	return func(r *Room) {
		r.shuffle = rng
	}
}

// Duplicated redelivers each pending notification with probability p on Flush.
func Duplicated(rng *rand.Rand, p float64) Option {
	return func(r *Room) {
		r.dupRNG = rng
		r.dupP = p
	}
}

// Room holds the authoritative copy of the property table.
type Room struct {
	mu           sync.Mutex
	state        room.Properties
	participants []*Participant

	manual  bool
	shuffle *rand.Rand
	dupRNG  *rand.Rand
	dupP    float64
}

// NewRoom creates an empty room.
func NewRoom(opts ...Option) *Room {
	r := &Room{state: room.Properties{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Join adds a participant. The current room state is queued as its first
// notification when the room is not empty.
func (r *Room) Join(id string) *Participant {
	p := &Participant{
		id:      id,
		room:    r,
		pending: queue.New[room.Properties](),
		custom:  room.Properties{},
	}

	r.mu.Lock()
	r.participants = append(r.participants, p)
	if len(r.state) > 0 {
		p.pending.Push(r.state.Clone())
	}
	r.mu.Unlock()

	return p
}

// State returns a copy of the room's properties.
func (r *Room) State() room.Properties {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone()
}

// Participants returns the joined participants in join order.
func (r *Room) Participants() []*Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Participant(nil), r.participants...)
}

// Pending returns the number of queued deliveries across all participants.
func (r *Room) Pending() int {
	n := 0
	for _, p := range r.Participants() {
		n += p.pending.Len()
	}
	return n
}

// Flush delivers every queued notification and returns how many were delivered.
// Deliveries triggered by listeners during the flush are delivered too.
func (r *Room) Flush() int {
	delivered := 0
	for {
		round := 0
		for _, p := range r.Participants() {
			r.prepare(p)
			round += p.drain()
		}
		if round == 0 {
			return delivered
		}
		delivered += round
	}
}

func (r *Room) prepare(p *Participant) {
	if r.dupRNG != nil && r.dupP > 0 {
		items := p.pending.GetAndEmpty()
		for _, it := range items {
			p.pending.Push(it)
			if r.dupRNG.Float64() < r.dupP {
				p.pending.Push(it.Clone())
			}
		}
	}
	if r.shuffle != nil {
		p.pending.Shuffle(r.shuffle)
	}
}

func (r *Room) publish(props room.Properties) {
	r.mu.Lock()
	r.state.Merge(props)
	participants := append([]*Participant(nil), r.participants...)
	for _, p := range participants {
		p.pending.Push(props.Clone())
	}
	r.mu.Unlock()

	if r.manual {
		return
	}
	for _, p := range participants {
		p.drain()
	}
}

// Participant is one client's view of a loopback room.
type Participant struct {
	id        string
	room      *Room
	listeners room.Listeners
	pending   *queue.Queue[room.Properties]

	mu       sync.Mutex
	custom   room.Properties
	draining bool
}

func (p *Participant) ID() string {
	return p.id
}

// SetProperties merges props into the room and notifies every participant.
func (p *Participant) SetProperties(ctx context.Context, props room.Properties) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(props) == 0 {
		return nil
	}
	p.room.publish(props.Clone())
	return nil
}

func (p *Participant) Subscribe(l room.Listener) (unsubscribe func()) {
	return p.listeners.Subscribe(l)
}

// Deliver hands queued notifications to the listeners, for rooms in manual mode.
func (p *Participant) Deliver() int {
	return p.drain()
}

// drain delivers queued notifications in order. A listener that writes to the
// room while being notified queues its delivery behind the current one.
func (p *Participant) drain() int {
	n := 0
	for {
		p.mu.Lock()
		if p.draining {
			p.mu.Unlock()
			return n
		}
		p.draining = true
		p.mu.Unlock()

		for {
			props, ok := p.pending.Pop()
			if !ok {
				break
			}
			p.listeners.Notify(props)
			n++
		}

		p.mu.Lock()
		p.draining = false
		p.mu.Unlock()

		if p.pending.Len() == 0 {
			return n
		}
	}
}

func (p *Participant) SetCustomProperties(ctx context.Context, props room.Properties) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.custom.Merge(props)
	return nil
}

func (p *Participant) CustomProperties() room.Properties {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.custom.Clone()
}
