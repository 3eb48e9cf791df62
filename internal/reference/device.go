// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package reference is a CPU implementation of compute.Device.
//
// It evaluates the Go mirror of each WGSL kernel over every texel, with
// rows split into bands across a worker pool. Every texel is written by
// exactly one band and reads only the previous state, so results are
// bit-identical for any worker count. It exists to validate kernels and
// to drive tools; it is never picked automatically in place of a GPU.
package reference

import (
	"fmt"
	"sync"

	"github.com/gogpu/particles/internal/compute"
	"github.com/gogpu/particles/internal/kernels"
	"github.com/gogpu/particles/internal/parallel"
)

// MaxTextureSide mirrors a common desktop GPU limit.
const MaxTextureSide = 16384

type texture struct {
	owner *Device
	label string
	plane kernels.Plane
}

func (t *texture) Label() string { return t.label }
func (t *texture) Side() int     { return t.plane.Side }

// Device runs update passes on CPU memory.
type Device struct {
	mu     sync.Mutex
	pool   *parallel.Pool
	closed bool
}

var _ compute.Device = (*Device)(nil)

// New creates a reference device with the given number of workers
// (0 means GOMAXPROCS).
func New(workers int) *Device {
	return &Device{pool: parallel.NewPool(workers)}
}

func (d *Device) Name() string { return "reference" }

func (d *Device) Capabilities() compute.Capabilities {
	return compute.Capabilities{MaxTextureSide: MaxTextureSide, FloatTargets: true}
}

// Workers returns the size of the worker pool.
func (d *Device) Workers() int { return d.pool.Workers() }

func (d *Device) CreateTexture(label string, side int) (compute.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, compute.ErrDeviceClosed
	}
	if side <= 0 || side > MaxTextureSide {
		return nil, fmt.Errorf("%w: %d > %d", compute.ErrTextureTooLarge, side, MaxTextureSide)
	}
	return &texture{
		owner: d,
		label: label,
		plane: kernels.Plane{Side: side, Data: make([]float32, side*side*4)},
	}, nil
}

func (d *Device) own(t compute.Texture) (*texture, error) {
	rt, ok := t.(*texture)
	if !ok || rt.owner != d || rt.plane.Data == nil {
		return nil, compute.ErrForeignTexture
	}
	return rt, nil
}

func (d *Device) Upload(t compute.Texture, texels []float32) error {
	rt, err := d.own(t)
	if err != nil {
		return err
	}
	if len(texels) != len(rt.plane.Data) {
		return fmt.Errorf("reference: upload %q: got %d floats, want %d", rt.label, len(texels), len(rt.plane.Data))
	}
	copy(rt.plane.Data, texels)
	return nil
}

func (d *Device) Prepare(id kernels.ID) error {
	_, err := kernels.Lookup(id)
	return err
}

// Submit evaluates the passes in order. Because the CPU is the device,
// the work is complete when Submit returns.
func (d *Device) Submit(u *kernels.Uniforms, passes []compute.Pass) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return compute.ErrDeviceClosed
	}
	for i := range passes {
		if err := d.run(u, &passes[i]); err != nil {
			return fmt.Errorf("reference: pass %q: %w", passes[i].Label, err)
		}
	}
	return nil
}

func (d *Device) run(u *kernels.Uniforms, p *compute.Pass) error {
	spec, err := kernels.Lookup(p.Kernel)
	if err != nil {
		return err
	}
	if len(p.Inputs) != spec.Arity() {
		return fmt.Errorf("kernel %s takes %d inputs, got %d", spec.ID, spec.Arity(), len(p.Inputs))
	}
	if err := p.CheckHazard(); err != nil {
		return err
	}
	dst, err := d.own(p.Target)
	if err != nil {
		return err
	}
	planes := make([]kernels.Plane, len(p.Inputs))
	for i, in := range p.Inputs {
		src, err := d.own(in)
		if err != nil {
			return err
		}
		planes[i] = src.plane
	}

	side := dst.plane.Side
	out := dst.plane.Data
	d.pool.Bands(side, func(lo, hi int) {
		for y := lo; y < hi; y++ {
			for x := 0; x < side; x++ {
				rec := spec.Eval(u, planes, x, y)
				copy(out[(y*side+x)*4:], rec[:])
			}
		}
	})
	return nil
}

func (d *Device) Read(t compute.Texture) ([]float32, error) {
	rt, err := d.own(t)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(rt.plane.Data))
	copy(out, rt.plane.Data)
	return out, nil
}

func (d *Device) DestroyTexture(t compute.Texture) {
	if rt, err := d.own(t); err == nil {
		rt.plane.Data = nil
	}
}

func (d *Device) NewDrawer(spec compute.DrawSpec) (compute.Drawer, error) {
	if len(spec.Lookup) < spec.Count*2 {
		return nil, fmt.Errorf("reference: lookup buffer holds %d particles, want %d", len(spec.Lookup)/2, spec.Count)
	}
	return &drawer{dev: d, spec: spec}, nil
}

// Close stops the worker pool. Textures become unusable.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.pool.Close()
}
