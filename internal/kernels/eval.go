// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package kernels

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Plane is a CPU-resident RGBA32F state texture: Side*Side records of four
// float32 channels in row-major order.
type Plane struct {
	Side int
	Data []float32
}

// Load returns the record at texel (x, y), like textureLoad.
func (p Plane) Load(x, y int) mgl32.Vec4 {
	o := (y*p.Side + x) * 4
	return mgl32.Vec4{p.Data[o], p.Data[o+1], p.Data[o+2], p.Data[o+3]}
}

// Helpers below follow the WGSL prelude operation for operation.

func length(v mgl32.Vec3) float32 {
	return float32(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])))
}

func div(v mgl32.Vec3, s float32) mgl32.Vec3 {
	return mgl32.Vec3{v[0] / s, v[1] / s, v[2] / s}
}

func clampLength(v mgl32.Vec3, m float32) mgl32.Vec3 {
	l := length(v)
	if l > m && l > 0 {
		return v.Mul(m / l)
	}
	return v
}

func safeNormalize(v mgl32.Vec3) mgl32.Vec3 {
	l := length(v)
	if l < 1e-6 {
		return mgl32.Vec3{}
	}
	return div(v, l)
}

func steerTowards(u *Uniforms, dir, v mgl32.Vec3) mgl32.Vec3 {
	desired := safeNormalize(dir).Mul(u.MaxSpeed)
	return clampLength(desired.Sub(v), u.MaxForce)
}

func floor32(v float32) float32 { return float32(math.Floor(float64(v))) }

// Contain applies the boundary policy to p.
func Contain(u *Uniforms, p mgl32.Vec3) mgl32.Vec3 {
	b := u.Bound
	if u.Boundary == BoundaryWrap {
		span := 2 * b
		return mgl32.Vec3{
			p[0] - span*floor32((p[0]+b)/span),
			p[1] - span*floor32((p[1]+b)/span),
			p[2] - span*floor32((p[2]+b)/span),
		}
	}
	l := length(p)
	if l > b && l > 0 {
		return p.Mul(b / l)
	}
	return p
}

func evalSteer(u *Uniforms, in []Plane, x, y int) mgl32.Vec4 {
	vel := in[0].Load(x, y)
	if vel[3] == 0 {
		return vel
	}
	pos := in[1].Load(x, y)
	v := vel.Vec3()
	p := pos.Vec3()
	var acc mgl32.Vec3

	if u.AttractorActive {
		desired := safeNormalize(u.Attractor.Sub(p)).Mul(u.MaxSpeed)
		acc = acc.Add(clampLength(desired.Sub(v), u.MaxForce).Mul(u.AttractStrength))
	}

	if u.Samples > 0 && u.Count > 1 {
		self := uint32(y)*u.Side + uint32(x)
		stride := max(1, u.Count/u.Samples)
		var sep, coh, ali mgl32.Vec3
		var n float32
		for j := uint32(0); j < u.Samples; j++ {
			other := (self + 1 + j*stride) % u.Count
			if other == self {
				continue
			}
			ox, oy := int(other%u.Side), int(other/u.Side)
			q := in[1].Load(ox, oy).Vec3()
			d := p.Sub(q)
			dist := length(d)
			if dist > 0 && dist < u.Radius {
				sep = sep.Add(div(d, dist*dist))
				coh = coh.Add(q)
				ali = ali.Add(in[0].Load(ox, oy).Vec3())
				n++
			}
		}
		if n > 0 {
			acc = acc.Add(steerTowards(u, sep, v).Mul(u.Separation))
			acc = acc.Add(steerTowards(u, div(coh, n).Sub(p), v).Mul(u.Cohesion))
			acc = acc.Add(steerTowards(u, div(ali, n), v).Mul(u.Alignment))
		}
	}

	if u.Boundary == BoundaryClamp && length(p) > u.Bound*0.9 {
		acc = acc.Add(steerTowards(u, p.Mul(-1), v))
	}

	acc = clampLength(acc, u.MaxForce)
	next := clampLength(v.Add(acc.Mul(u.Delta)), u.MaxSpeed)
	return next.Vec4(vel[3])
}

func evalIntegrate(u *Uniforms, in []Plane, x, y int) mgl32.Vec4 {
	pos := in[0].Load(x, y)
	if pos[3] == 0 || u.Delta == 0 {
		return pos
	}
	v := in[1].Load(x, y).Vec3()
	next := Contain(u, pos.Vec3().Add(v.Mul(u.Delta)))
	return next.Vec4(pos[3])
}

func evalMorph(u *Uniforms, in []Plane, x, y int) mgl32.Vec4 {
	pos := in[0].Load(x, y)
	if pos[3] == 0 || u.Delta == 0 {
		return pos
	}
	a := in[1].Load(x, y).Vec3()
	b := in[2].Load(x, y).Vec3()
	s := 0.5 - 0.5*float32(math.Cos(float64(u.Time*u.MorphRate)))
	goal := a.Mul(1 - s).Add(b.Mul(s))
	k := 1 - float32(math.Exp(float64(-u.Delta*4)))
	p := pos.Vec3()
	next := Contain(u, p.Add(goal.Sub(p).Mul(k)))
	return next.Vec4(pos[3])
}
