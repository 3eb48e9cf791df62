// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package kernels

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// UniformSize is the byte size of the uniform block shared by every update
// kernel. It matches the Uniforms struct in shaders/prelude.wgsl.
const UniformSize = 80

// Boundary policy codes as seen by the kernels.
const (
	BoundaryClamp uint32 = 0
	BoundaryWrap  uint32 = 1
)

// Uniforms holds the per-tick parameters pushed to every update pass.
// They are immutable for the duration of a tick.
type Uniforms struct {
	Attractor       mgl32.Vec3
	AttractorActive bool

	Time  float32
	Delta float32

	MaxSpeed float32
	MaxForce float32
	Bound    float32
	Boundary uint32

	Side  uint32
	Count uint32

	AttractStrength float32
	Separation      float32
	Cohesion        float32
	Alignment       float32
	Radius          float32
	Samples         uint32

	MorphRate float32
}

// Encode writes the std140-compatible byte layout of u into dst and
// returns it. dst is grown when shorter than UniformSize.
func (u *Uniforms) Encode(dst []byte) []byte {
	if cap(dst) < UniformSize {
		dst = make([]byte, UniformSize)
	}
	dst = dst[:UniformSize]

	le := binary.LittleEndian
	putF := func(off int, v float32) { le.PutUint32(dst[off:], math.Float32bits(v)) }

	putF(0, u.Attractor[0])
	putF(4, u.Attractor[1])
	putF(8, u.Attractor[2])
	if u.AttractorActive {
		putF(12, 1)
	} else {
		putF(12, 0)
	}
	putF(16, u.Time)
	putF(20, u.Delta)
	putF(24, u.MaxSpeed)
	putF(28, u.MaxForce)
	putF(32, u.Bound)
	le.PutUint32(dst[36:], u.Boundary)
	le.PutUint32(dst[40:], u.Side)
	le.PutUint32(dst[44:], u.Count)
	putF(48, u.AttractStrength)
	putF(52, u.Separation)
	putF(56, u.Cohesion)
	putF(60, u.Alignment)
	putF(64, u.Radius)
	le.PutUint32(dst[68:], u.Samples)
	putF(72, u.MorphRate)
	putF(76, 0)
	return dst
}
