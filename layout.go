package particles

import (
	"fmt"
	"math"
)

// Layout maps particle indices to texels of a square state texture.
// Particle i lives at texel (i mod W, i / W) where W = ceil(sqrt(N)).
// Slots at or beyond N are inert.
type Layout struct {
	side  int
	count int
}

// NewLayout returns the layout for n particles.
func NewLayout(n int) (Layout, error) {
	if n <= 0 {
		return Layout{}, fmt.Errorf("%w: %d", ErrInvalidCount, n)
	}
	return Layout{side: ceilSqrt(n), count: n}, nil
}

func ceilSqrt(n int) int {
	w := int(math.Sqrt(float64(n)))
	for w*w > n {
		w--
	}
	for w*w < n {
		w++
	}
	return w
}

// Side returns W.
func (l Layout) Side() int { return l.side }

// Count returns N.
func (l Layout) Count() int { return l.count }

// Slots returns W*W, the number of texels including inert ones.
func (l Layout) Slots() int { return l.side * l.side }

// Texel returns the texel of particle i.
func (l Layout) Texel(i int) (x, y int) {
	return i % l.side, i / l.side
}

// Lookup returns the normalized lookup coordinate of particle i.
func (l Layout) Lookup(i int) (u, v float32) {
	x, y := l.Texel(i)
	w := float32(l.side)
	return float32(x) / w, float32(y) / w
}

// LookupCoords returns the per-instance lookup buffer: two float32 per
// live particle.
func (l Layout) LookupCoords() []float32 {
	out := make([]float32, 0, l.count*2)
	for i := range l.count {
		u, v := l.Lookup(i)
		out = append(out, u, v)
	}
	return out
}
