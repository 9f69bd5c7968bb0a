package placement

import (
	"sync"

	"github.com/minigames/smartsync/pkg/core"
)

// IDAllocator hands out strictly increasing smart object ids, skipping the
// reserved ones.
type IDAllocator struct {
	mu   sync.Mutex
	next int32
}

// NewIDAllocator starts allocating at base.
func NewIDAllocator(base int32) *IDAllocator {
	return &IDAllocator{next: base}
}

// Next returns the next free id.
func (a *IDAllocator) Next() int32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	for core.IsReserved(a.next) {
		a.next++
	}
	id := a.next
	a.next++
	return id
}

// Peek returns the id Next would return, without consuming it. Callers that
// may fail to use the id Peek first and call Next on success, under a lock
// shared with every other user of the allocator.
func (a *IDAllocator) Peek() int32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	for core.IsReserved(id) {
		id++
	}
	return id
}
