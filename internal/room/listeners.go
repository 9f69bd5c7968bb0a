package room

import (
	"slices"
	"sync"
)

// Listeners is a set of subscribers that transports embed.
type Listeners struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]Listener
}

// Subscribe adds l and returns a function removing it.
func (ls *Listeners) Subscribe(l Listener) (unsubscribe func()) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.subs == nil {
		ls.subs = make(map[int]Listener)
	}
	id := ls.nextID
	ls.nextID++
	ls.subs[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			ls.mu.Lock()
			defer ls.mu.Unlock()
			delete(ls.subs, id)
		})
	}
}

// Notify calls every subscriber in subscription order with its own copy of changed.
func (ls *Listeners) Notify(changed Properties) {
	ls.mu.RLock()
	ids := make([]int, 0, len(ls.subs))
	for id := range ls.subs {
		ids = append(ids, id)
	}
	subs := make([]Listener, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		subs = append(subs, ls.subs[id])
	}
	ls.mu.RUnlock()

	for _, l := range subs {
		l(changed.Clone())
	}
}

// Len returns the number of subscribers.
func (ls *Listeners) Len() int {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return len(ls.subs)
}
