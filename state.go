package particles

import "github.com/go-gl/mathgl/mgl32"

// StateKind tells what a state record holds.
type StateKind uint8

const (
	// Position records are (x, y, z, alive).
	Position StateKind = iota
	// Velocity records are (vx, vy, vz, alive).
	Velocity
)

func (k StateKind) String() string {
	if k == Velocity {
		return "velocity"
	}
	return "position"
}

// Texels is the CPU image of a state texture: W*W records of four
// float32, row-major.
type Texels []float32

// At returns the record of slot i.
func (t Texels) At(i int) mgl32.Vec4 {
	return mgl32.Vec4{t[i*4], t[i*4+1], t[i*4+2], t[i*4+3]}
}

// Alive reports whether slot i holds a live particle.
func (t Texels) Alive(i int) bool { return t[i*4+3] != 0 }

// Records returns the number of records.
func (t Texels) Records() int { return len(t) / 4 }
