// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package compute defines the device contract the particle simulation
// drives: float state textures, update passes and the instanced draw.
//
// Two implementations exist. internal/gpu records the work into wgpu/hal
// command buffers. internal/reference evaluates the same kernels on CPU
// memory and serves as the validation oracle.
package compute

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/particles/internal/kernels"
)

// Device errors shared by implementations.
var (
	// ErrUnsupportedFormat means RGBA32Float cannot be rendered to and sampled.
	ErrUnsupportedFormat = errors.New("compute: RGBA32Float render targets not supported")

	// ErrTextureTooLarge means the requested side exceeds the device limit.
	ErrTextureTooLarge = errors.New("compute: texture side exceeds device limit")

	// ErrForeignTexture means a texture was created by a different device.
	ErrForeignTexture = errors.New("compute: texture belongs to another device")

	// ErrReadWriteHazard means a pass binds its own target as an input.
	ErrReadWriteHazard = errors.New("compute: pass reads the texture it writes")

	// ErrTargetMismatch means a draw target does not belong to the device kind.
	ErrTargetMismatch = errors.New("compute: draw target does not match device")

	// ErrDeviceClosed is returned after Close.
	ErrDeviceClosed = errors.New("compute: device closed")
)

// Capabilities are the properties checked when a simulation is built.
type Capabilities struct {
	// MaxTextureSide is the largest supported 2D texture dimension.
	MaxTextureSide int

	// FloatTargets reports that RGBA32Float can be both a render
	// attachment and a sampled texture.
	FloatTargets bool
}

// Texture is a square RGBA32Float state texture owned by a Device.
type Texture interface {
	Label() string
	Side() int
}

// Pass is one update pass: run Kernel over every texel of Target with
// Inputs bound in order.
type Pass struct {
	Label  string
	Kernel kernels.ID
	Inputs []Texture
	Target Texture
}

// CheckHazard reports ErrReadWriteHazard when the pass samples its target.
func (p *Pass) CheckHazard() error {
	for _, in := range p.Inputs {
		if in == p.Target {
			return ErrReadWriteHazard
		}
	}
	return nil
}

// Mesh selects the per-instance geometry of the draw.
type Mesh uint8

const (
	// MeshBox draws an oriented 0.1×0.5×0.1 box per particle.
	MeshBox Mesh = iota
	// MeshPoint draws one point per particle.
	MeshPoint
)

// DrawSpec configures a draw pipeline. Lookup holds two float32 per
// particle and is uploaded once.
type DrawSpec struct {
	Label       string
	ColorFormat gputypes.TextureFormat
	DepthFormat gputypes.TextureFormat
	Mesh        Mesh
	Lookup      []float32
	Count       int
	Side        int
}

// DrawFrame is the per-frame input of a draw.
type DrawFrame struct {
	Position Texture
	// Velocity orients the mesh. Nil draws every instance upright.
	Velocity Texture
	ViewProj mgl32.Mat4
	Color    mgl32.Vec3
	Scale    float32
}

// DrawTarget is where a Drawer records its draw. Each device accepts only
// its own target type and reports ErrTargetMismatch otherwise.
type DrawTarget interface {
	TargetKind() string
}

// Drawer issues the instanced particle draw. It only reads state.
type Drawer interface {
	Draw(target DrawTarget, frame DrawFrame) error
	InstanceCount() int
	Destroy()
}

// Device executes update passes and draws particle state.
type Device interface {
	// Name identifies the device in logs and metrics.
	Name() string

	Capabilities() Capabilities

	// CreateTexture allocates a state texture of side×side texels.
	CreateTexture(label string, side int) (Texture, error)

	// Upload writes side*side*4 float32 values into t.
	Upload(t Texture, texels []float32) error

	// Prepare builds whatever the device needs to run the kernel.
	Prepare(id kernels.ID) error

	// Submit runs the passes in order for one tick. It does not wait for
	// GPU completion.
	Submit(u *kernels.Uniforms, passes []Pass) error

	// Read copies t back to CPU memory. It may block and is meant for
	// diagnostics, never for the per-frame path.
	Read(t Texture) ([]float32, error)

	DestroyTexture(t Texture)

	NewDrawer(spec DrawSpec) (Drawer, error)

	Close()
}
