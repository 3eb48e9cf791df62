// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package kernels is the catalog of particle update kernels.
//
// Every kernel exists twice: as a WGSL fragment program rendered over a
// full-screen triangle into the next state texture, and as a Go function
// with the same arithmetic used by the CPU reference device. Inputs are
// bound in declaration order starting at binding 1; binding 0 is the
// uniform block. The first input is always the kernel's own previous state.
package kernels

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/naga"
)

//go:embed shaders/prelude.wgsl
var preludeSource string

//go:embed shaders/steer.wgsl
var steerSource string

//go:embed shaders/integrate.wgsl
var integrateSource string

//go:embed shaders/morph.wgsl
var morphSource string

// ErrUnknownKernel is returned for an ID outside the catalog.
var ErrUnknownKernel = errors.New("kernels: unknown kernel")

// ID identifies a kernel in the catalog.
type ID uint8

const (
	// Steer updates velocity from attraction, flocking and containment,
	// clamping force to maxForce and speed to maxSpeed.
	Steer ID = iota + 1

	// Integrate advances position by velocity*delta and applies the
	// boundary policy.
	Integrate

	// Morph eases position between two static seed distributions.
	Morph
)

// String returns the kernel name.
func (id ID) String() string {
	switch id {
	case Steer:
		return "steer"
	case Integrate:
		return "integrate"
	case Morph:
		return "morph"
	default:
		return fmt.Sprintf("kernel(%d)", uint8(id))
	}
}

// EvalFunc computes the next record of texel (x, y) from the current
// records of the kernel's inputs.
type EvalFunc func(u *Uniforms, in []Plane, x, y int) mgl32.Vec4

// Spec describes one kernel.
type Spec struct {
	ID ID

	// Inputs names the role of each bound texture, in binding order.
	Inputs []string

	body string
	eval EvalFunc
}

var catalog = map[ID]*Spec{
	Steer: {
		ID:     Steer,
		Inputs: []string{"velocity", "position"},
		body:   steerSource,
		eval:   evalSteer,
	},
	Integrate: {
		ID:     Integrate,
		Inputs: []string{"position", "velocity"},
		body:   integrateSource,
		eval:   evalIntegrate,
	},
	Morph: {
		ID:     Morph,
		Inputs: []string{"position", "from", "to"},
		body:   morphSource,
		eval:   evalMorph,
	},
}

// Lookup returns the catalog entry for id.
func Lookup(id ID) (*Spec, error) {
	s, ok := catalog[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKernel, uint8(id))
	}
	return s, nil
}

// All returns every kernel ID in catalog order.
func All() []ID {
	return []ID{Steer, Integrate, Morph}
}

// Arity is the number of texture inputs the kernel binds.
func (s *Spec) Arity() int { return len(s.Inputs) }

// Source returns the complete WGSL module (prelude plus kernel body).
// Entry points are vs_main and fs_main.
func (s *Spec) Source() string { return preludeSource + "\n" + s.body }

// Eval runs the Go mirror of the kernel for one texel.
func (s *Spec) Eval(u *Uniforms, in []Plane, x, y int) mgl32.Vec4 {
	return s.eval(u, in, x, y)
}

// Validate compiles the kernel's WGSL with naga so a malformed program is
// reported before any pipeline is created.
func (s *Spec) Validate() error {
	if _, err := naga.Compile(s.Source()); err != nil {
		return fmt.Errorf("kernels: compile %s: %w", s.ID, err)
	}
	return nil
}
