// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package kernels

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestKernelsCompile(t *testing.T) {
	for _, id := range All() {
		t.Run(id.String(), func(t *testing.T) {
			spec, err := Lookup(id)
			if err != nil {
				t.Fatal(err)
			}
			if err := spec.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			src := spec.Source()
			for _, entry := range []string{"fn vs_main", "fn fs_main"} {
				if !strings.Contains(src, entry) {
					t.Errorf("source missing %q", entry)
				}
			}
		})
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, err := Lookup(ID(99)); !errors.Is(err, ErrUnknownKernel) {
		t.Errorf("error = %v, want ErrUnknownKernel", err)
	}
	if got := ID(99).String(); got != "kernel(99)" {
		t.Errorf("String() = %q", got)
	}
}

func TestArity(t *testing.T) {
	tests := []struct {
		id   ID
		want int
	}{
		{Steer, 2},
		{Integrate, 2},
		{Morph, 3},
	}
	for _, tt := range tests {
		spec, _ := Lookup(tt.id)
		if spec.Arity() != tt.want {
			t.Errorf("%s arity = %d, want %d", tt.id, spec.Arity(), tt.want)
		}
	}
}

func TestUniformsEncodeLayout(t *testing.T) {
	u := Uniforms{
		Attractor:       mgl32.Vec3{1, 2, 3},
		AttractorActive: true,
		Time:            4,
		Delta:           0.5,
		MaxSpeed:        6,
		MaxForce:        7,
		Bound:           8,
		Boundary:        BoundaryWrap,
		Side:            128,
		Count:           16384,
		Radius:          9,
		Samples:         12,
		MorphRate:       0.25,
	}
	b := u.Encode(nil)
	if len(b) != UniformSize {
		t.Fatalf("encoded %d bytes, want %d", len(b), UniformSize)
	}
	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b[off:])) }
	i := func(off int) uint32 { return binary.LittleEndian.Uint32(b[off:]) }

	checks := []struct {
		name string
		got  float32
		want float32
	}{
		{"attractor.x", f(0), 1},
		{"attractor.z", f(8), 3},
		{"attractor.w", f(12), 1},
		{"time", f(16), 4},
		{"delta", f(20), 0.5},
		{"bound", f(32), 8},
		{"radius", f(64), 9},
		{"morph_rate", f(72), 0.25},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if i(36) != BoundaryWrap || i(40) != 128 || i(44) != 16384 || i(68) != 12 {
		t.Errorf("integer fields = %d %d %d %d", i(36), i(40), i(44), i(68))
	}

	// Reuses a large enough buffer.
	buf := make([]byte, 0, 128)
	if out := u.Encode(buf); &out[0] != &buf[:1][0] {
		t.Error("Encode did not reuse dst")
	}
}

func plane(side int, recs ...mgl32.Vec4) Plane {
	p := Plane{Side: side, Data: make([]float32, side*side*4)}
	for i, r := range recs {
		copy(p.Data[i*4:], r[:])
	}
	return p
}

func near(a, b mgl32.Vec3) bool {
	return a.Sub(b).Len() < 1e-5
}

func TestContain(t *testing.T) {
	tests := []struct {
		name     string
		boundary uint32
		in       mgl32.Vec3
		want     mgl32.Vec3
	}{
		{"clamp inside", BoundaryClamp, mgl32.Vec3{1, 2, 3}, mgl32.Vec3{1, 2, 3}},
		{"clamp outside", BoundaryClamp, mgl32.Vec3{20, 0, 0}, mgl32.Vec3{10, 0, 0}},
		{"wrap inside", BoundaryWrap, mgl32.Vec3{9, -9, 0}, mgl32.Vec3{9, -9, 0}},
		{"wrap over", BoundaryWrap, mgl32.Vec3{11, 0, 0}, mgl32.Vec3{-9, 0, 0}},
		{"wrap under", BoundaryWrap, mgl32.Vec3{0, -12, 0}, mgl32.Vec3{0, 8, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &Uniforms{Bound: 10, Boundary: tt.boundary}
			if got := Contain(u, tt.in); !near(got, tt.want) {
				t.Errorf("Contain(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestIntegrate(t *testing.T) {
	u := &Uniforms{Delta: 0.5, Bound: 100}
	pos := plane(2, mgl32.Vec4{1, 1, 1, 1}, mgl32.Vec4{5, 5, 5, 0})
	vel := plane(2, mgl32.Vec4{2, 0, -2, 1}, mgl32.Vec4{1, 1, 1, 1})
	spec, _ := Lookup(Integrate)

	got := spec.Eval(u, []Plane{pos, vel}, 0, 0)
	if want := (mgl32.Vec4{2, 1, 0, 1}); !near(got.Vec3(), want.Vec3()) || got[3] != 1 {
		t.Errorf("integrate = %v, want %v", got, want)
	}
	// Inert texels pass through.
	if got := spec.Eval(u, []Plane{pos, vel}, 1, 0); got != (mgl32.Vec4{5, 5, 5, 0}) {
		t.Errorf("inert texel = %v", got)
	}
}

func TestIntegrateZeroDelta(t *testing.T) {
	u := &Uniforms{Delta: 0, Bound: 100}
	pos := plane(1, mgl32.Vec4{3, -4, 5, 1})
	vel := plane(1, mgl32.Vec4{9, 9, 9, 1})
	spec, _ := Lookup(Integrate)
	if got := spec.Eval(u, []Plane{pos, vel}, 0, 0); got != (mgl32.Vec4{3, -4, 5, 1}) {
		t.Errorf("zero delta moved the particle: %v", got)
	}
}

func TestZeroDeltaSkipsContainment(t *testing.T) {
	// Just past the bound: a clamp would pull it back onto the sphere.
	out := mgl32.Vec4{10.000001, 0, 0, 1}
	u := &Uniforms{Delta: 0, Bound: 10, Boundary: BoundaryClamp, MorphRate: 1}
	tests := []struct {
		id     ID
		inputs []Plane
	}{
		{Integrate, []Plane{plane(1, out), plane(1, mgl32.Vec4{1, 1, 1, 1})}},
		{Morph, []Plane{plane(1, out), plane(1, mgl32.Vec4{0, 0, 0, 1}), plane(1, mgl32.Vec4{0, 0, 0, 1})}},
	}
	for _, tt := range tests {
		spec, _ := Lookup(tt.id)
		if got := spec.Eval(u, tt.inputs, 0, 0); got != out {
			t.Errorf("%s with zero delta = %v, want %v", tt.id, got, out)
		}
	}
}

func TestSteerClampsSpeed(t *testing.T) {
	u := &Uniforms{
		Delta:           10,
		MaxSpeed:        1,
		MaxForce:        0.5,
		Bound:           100,
		Attractor:       mgl32.Vec3{50, 0, 0},
		AttractorActive: true,
		AttractStrength: 1,
	}
	vel := plane(1, mgl32.Vec4{0, 0, 0, 1})
	pos := plane(1, mgl32.Vec4{0, 0, 0, 1})
	spec, _ := Lookup(Steer)

	got := spec.Eval(u, []Plane{vel, pos}, 0, 0)
	if l := got.Vec3().Len(); l > u.MaxSpeed+1e-5 {
		t.Errorf("speed %v exceeds max %v", l, u.MaxSpeed)
	}
	if got.X() <= 0 {
		t.Errorf("velocity %v does not head toward the attractor", got)
	}
	if got[3] != 1 {
		t.Errorf("w = %v, want 1", got[3])
	}
}

func TestSteerPullsBackNearBoundary(t *testing.T) {
	u := &Uniforms{Delta: 1, MaxSpeed: 1, MaxForce: 0.5, Bound: 10, Boundary: BoundaryClamp}
	vel := plane(1, mgl32.Vec4{0, 0, 0, 1})
	pos := plane(1, mgl32.Vec4{9.5, 0, 0, 1})
	spec, _ := Lookup(Steer)
	if got := spec.Eval(u, []Plane{vel, pos}, 0, 0); got.X() >= 0 {
		t.Errorf("velocity %v should point inward", got)
	}
}

func TestSteerSeparation(t *testing.T) {
	u := &Uniforms{
		Delta:      1,
		MaxSpeed:   1,
		MaxForce:   1,
		Bound:      100,
		Side:       2,
		Count:      2,
		Samples:    1,
		Radius:     5,
		Separation: 1,
	}
	vel := plane(2, mgl32.Vec4{0, 0, 0, 1}, mgl32.Vec4{0, 0, 0, 1})
	pos := plane(2, mgl32.Vec4{0, 0, 0, 1}, mgl32.Vec4{1, 0, 0, 1})
	spec, _ := Lookup(Steer)
	if got := spec.Eval(u, []Plane{vel, pos}, 0, 0); got.X() >= 0 {
		t.Errorf("velocity %v should move away from the neighbour", got)
	}
}

func TestMorphEasesTowardGoal(t *testing.T) {
	// time*rate = 0 selects the first distribution.
	u := &Uniforms{Delta: 1, Bound: 100, MorphRate: 1}
	pos := plane(1, mgl32.Vec4{0, 0, 0, 1})
	from := plane(1, mgl32.Vec4{4, 0, 0, 1})
	to := plane(1, mgl32.Vec4{-4, 0, 0, 1})
	spec, _ := Lookup(Morph)

	got := spec.Eval(u, []Plane{pos, from, to}, 0, 0)
	k := float32(1 - math.Exp(-4))
	if want := (mgl32.Vec3{4 * k, 0, 0}); !near(got.Vec3(), want) {
		t.Errorf("morph = %v, want %v", got, want)
	}

	u.Time = math.Pi
	got = spec.Eval(u, []Plane{pos, from, to}, 0, 0)
	if want := (mgl32.Vec3{-4 * k, 0, 0}); !near(got.Vec3(), want) {
		t.Errorf("morph at half period = %v, want %v", got, want)
	}
}
