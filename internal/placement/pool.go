package placement

import (
	"math/rand"
	"sync"

	"github.com/minigames/smartsync/pkg/core"
)

// PlaceholderPool supplies candidate placement points.
type PlaceholderPool interface {
	// GetRandomItems returns up to n distinct points. Fewer are returned when
	// the pool holds fewer than n.
	GetRandomItems(n int) []core.Vec3
}

// SlicePool is a PlaceholderPool over a fixed set of points.
type SlicePool struct {
	mu     sync.Mutex
	points []core.Vec3
	rng    *rand.Rand
}

// NewSlicePool creates a pool drawing from points with rng.
func NewSlicePool(points []core.Vec3, rng *rand.Rand) *SlicePool {
	return &SlicePool{points: append([]core.Vec3(nil), points...), rng: rng}
}

// GridPool lays out a rows x cols grid of points spaced step apart on the
// ground plane, centred on the origin.
func GridPool(rows, cols int, step float32, rng *rand.Rand) *SlicePool {
	points := make([]core.Vec3, 0, rows*cols)
	ox := float32(cols-1) * step / 2
	oz := float32(rows-1) * step / 2
	for r := range rows {
		for c := range cols {
			points = append(points, core.Vec3{X: float32(c)*step - ox, Z: float32(r)*step - oz})
		}
	}
	return NewSlicePool(points, rng)
}

func (p *SlicePool) GetRandomItems(n int) []core.Vec3 {
	p.mu.Lock()
	defer p.mu.Unlock()

	n = min(n, len(p.points))
	if n <= 0 {
		return nil
	}
	picked := append([]core.Vec3(nil), p.points...)
	// partial Fisher-Yates: the first n slots end up a uniform sample
	for i := range n {
		j := i + p.rng.Intn(len(picked)-i)
		picked[i], picked[j] = picked[j], picked[i]
	}
	return picked[:n]
}

// Len returns the number of points in the pool.
func (p *SlicePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.points)
}
