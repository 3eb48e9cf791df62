package gpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/particles/internal/compute"
)

// texelBytes is the size of one RGBA32Float texel.
const texelBytes = 16

// copyRowAlignment is the required BytesPerRow alignment for
// texture-to-buffer copies.
const copyRowAlignment = 256

// stateUsage is the usage every state texture is created with.
const stateUsage = gputypes.TextureUsageRenderAttachment |
	gputypes.TextureUsageTextureBinding |
	gputypes.TextureUsageCopyDst |
	gputypes.TextureUsageCopySrc

// stateTexture is a square RGBA32Float texture with one view. usage
// tracks the state the last recorded command left it in, so barriers
// are emitted only on change.
type stateTexture struct {
	owner *Device
	label string
	side  int
	tex   hal.Texture
	view  hal.TextureView
	usage gputypes.TextureUsage
	bytes uint64
}

func (t *stateTexture) Label() string { return t.label }
func (t *stateTexture) Side() int     { return t.side }

func (d *Device) own(t compute.Texture) (*stateTexture, error) {
	st, ok := t.(*stateTexture)
	if !ok || st.owner != d || st.tex == nil {
		return nil, compute.ErrForeignTexture
	}
	return st, nil
}

func (d *Device) CreateTexture(label string, side int) (compute.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, compute.ErrDeviceClosed
	}
	if !d.caps.FloatTargets {
		return nil, compute.ErrUnsupportedFormat
	}
	if side <= 0 || side > d.caps.MaxTextureSide {
		return nil, fmt.Errorf("%w: %d > %d", compute.ErrTextureTooLarge, side, d.caps.MaxTextureSide)
	}
	size := uint64(side) * uint64(side) * texelBytes
	if err := d.memory.reserve(size, true); err != nil {
		return nil, err
	}

	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: uint32(side), Height: uint32(side), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        stateFormat,
		Usage:         stateUsage,
	})
	if err != nil {
		d.memory.release(size, true)
		return nil, fmt.Errorf("gpu: create texture %q: %w", label, err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        stateFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		d.memory.release(size, true)
		return nil, fmt.Errorf("gpu: create view %q: %w", label, err)
	}
	slogger().Debug("gpu: state texture created", "label", label, "side", side)
	return &stateTexture{owner: d, label: label, side: side, tex: tex, view: view, bytes: size}, nil
}

func (d *Device) Upload(t compute.Texture, texels []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return compute.ErrDeviceClosed
	}
	st, err := d.own(t)
	if err != nil {
		return err
	}
	want := st.side * st.side * 4
	if len(texels) != want {
		return fmt.Errorf("gpu: upload %q: got %d floats, want %d", st.label, len(texels), want)
	}

	data := make([]byte, len(texels)*4)
	for i, v := range texels {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	side := uint32(st.side)
	err = d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: st.tex, Aspect: gputypes.TextureAspectAll},
		data,
		&hal.ImageDataLayout{BytesPerRow: side * texelBytes, RowsPerImage: side},
		&hal.Extent3D{Width: side, Height: side, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("gpu: upload %q: %w", st.label, err)
	}
	st.usage = gputypes.TextureUsageCopyDst
	return nil
}

// Read copies a state texture to a staging buffer and waits for the queue.
// It stalls the pipeline and is meant for tests and diagnostics.
func (d *Device) Read(t compute.Texture) ([]float32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, compute.ErrDeviceClosed
	}
	st, err := d.own(t)
	if err != nil {
		return nil, err
	}

	rowBytes := uint32(st.side) * texelBytes
	paddedRow := (rowBytes + copyRowAlignment - 1) &^ (copyRowAlignment - 1)
	size := uint64(paddedRow) * uint64(st.side)
	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: st.label + "_readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create readback buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "particles_readback"})
	if err != nil {
		return nil, fmt.Errorf("gpu: create command encoder: %w", err)
	}
	defer enc.Destroy()
	if err := enc.BeginEncoding("particles_readback"); err != nil {
		return nil, fmt.Errorf("gpu: begin encoding: %w", err)
	}
	d.transition(enc, st, gputypes.TextureUsageCopySrc)
	side := uint32(st.side)
	enc.CopyTextureToBuffer(st.tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{BytesPerRow: paddedRow, RowsPerImage: side},
		TextureBase:  hal.ImageCopyTexture{Texture: st.tex, Aspect: gputypes.TextureAspectAll},
		Size:         hal.Extent3D{Width: side, Height: side, DepthOrArrayLayers: 1},
	}})
	d.transition(enc, st, gputypes.TextureUsageTextureBinding)
	cmd, err := enc.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("gpu: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmd)
	if _, err := d.queue.Submit([]hal.CommandBuffer{cmd}); err != nil {
		return nil, fmt.Errorf("gpu: submit readback: %w", err)
	}
	if err := d.device.WaitIdle(); err != nil {
		return nil, fmt.Errorf("gpu: wait for readback: %w", err)
	}

	m, err := d.device.MapBuffer(staging, 0, size)
	if err != nil {
		return nil, fmt.Errorf("gpu: map readback buffer: %w", err)
	}
	raw := unsafe.Slice((*byte)(m.Ptr), size)
	out := make([]float32, st.side*st.side*4)
	for y := 0; y < st.side; y++ {
		row := raw[uint64(y)*uint64(paddedRow):]
		for i := 0; i < st.side*4; i++ {
			out[y*st.side*4+i] = math.Float32frombits(binary.LittleEndian.Uint32(row[i*4:]))
		}
	}
	if err := d.device.UnmapBuffer(staging); err != nil {
		return nil, fmt.Errorf("gpu: unmap readback buffer: %w", err)
	}
	return out, nil
}

func (d *Device) DestroyTexture(t compute.Texture) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, err := d.own(t)
	if err != nil || d.closed {
		return
	}
	d.dropBindGroupsLocked(st)
	d.device.DestroyTextureView(st.view)
	d.device.DestroyTexture(st.tex)
	d.memory.release(st.bytes, true)
	st.tex = nil
	st.view = nil
}

// transition records a barrier moving st to usage if it is not there yet.
func (d *Device) transition(enc hal.CommandEncoder, st *stateTexture, usage gputypes.TextureUsage) {
	if st.usage == usage {
		return
	}
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: st.tex,
		Range:   hal.TextureRange{Aspect: gputypes.TextureAspectAll, MipLevelCount: 1, ArrayLayerCount: 1},
		Usage:   hal.TextureUsageTransition{OldUsage: st.usage, NewUsage: usage},
	}})
	st.usage = usage
}
