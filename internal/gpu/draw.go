package gpu

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/particles/internal/compute"
)

//go:embed shaders/draw.wgsl
var drawShaderSource string

const (
	// drawUniformSize is view_proj (64) + color (16) + params (16).
	drawUniformSize = 96

	// meshVertexStride is position (12) + normal (12).
	meshVertexStride = 24

	// lookupStride is one vec2<f32> per instance.
	lookupStride = 8
)

// Box half extents. The long axis follows velocity.
var boxHalf = mgl32.Vec3{0.05, 0.25, 0.05}

// FrameTarget is where a GPU drawer renders: a color view and an optional
// depth view of the host's frame. Load selects whether the color
// attachment is cleared to Clear or keeps its contents.
type FrameTarget struct {
	Color hal.TextureView
	Depth hal.TextureView
	Load  gputypes.LoadOp
	Clear gputypes.Color
}

// TargetKind implements compute.DrawTarget.
func (*FrameTarget) TargetKind() string { return "hal" }

// boxMesh returns 36 vertices (12 triangles) of an axis-aligned box with
// per-face normals, counter-clockwise when seen from outside.
func boxMesh(half mgl32.Vec3) []float32 {
	type face struct{ n, u, v mgl32.Vec3 }
	faces := []face{
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}},
	}
	scale := func(p mgl32.Vec3) mgl32.Vec3 {
		return mgl32.Vec3{p.X() * half.X(), p.Y() * half.Y(), p.Z() * half.Z()}
	}
	out := make([]float32, 0, 36*6)
	for _, f := range faces {
		corners := [4]mgl32.Vec3{
			f.n.Sub(f.u).Sub(f.v),
			f.n.Add(f.u).Sub(f.v),
			f.n.Add(f.u).Add(f.v),
			f.n.Sub(f.u).Add(f.v),
		}
		for _, i := range [6]int{0, 1, 2, 0, 2, 3} {
			p := scale(corners[i])
			out = append(out, p.X(), p.Y(), p.Z(), f.n.X(), f.n.Y(), f.n.Z())
		}
	}
	return out
}

// pointMesh is a single vertex at the particle position.
func pointMesh() []float32 {
	return []float32{0, 0, 0, 0, 1, 0}
}

func floatBytes(v []float32) []byte {
	b := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}

func encodeDrawUniforms(dst []byte, f *compute.DrawFrame, hasVelocity bool) []byte {
	dst = dst[:0]
	put := func(v float32) { dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v)) }
	for _, v := range f.ViewProj {
		put(v)
	}
	put(f.Color.X())
	put(f.Color.Y())
	put(f.Color.Z())
	put(1)
	put(f.Scale)
	if hasVelocity {
		put(1)
	} else {
		put(0)
	}
	put(0)
	put(0)
	return dst
}

type drawKey struct {
	position, velocity *stateTexture
}

// drawer renders every particle with one instanced draw call.
type drawer struct {
	dev  *Device
	spec compute.DrawSpec

	shader         hal.ShaderModule
	bindLayout     hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	pipeline       hal.RenderPipeline

	meshBuf    hal.Buffer
	meshVerts  uint32
	lookupBuf  hal.Buffer
	uniformBuf hal.Buffer
	uniforms   *uploadRing
	scratch    []byte
	bindGroups map[drawKey]hal.BindGroup

	bufferBytes uint64
}

// NewDrawer builds the draw pipeline and uploads the mesh and lookup
// buffers once.
func (d *Device) NewDrawer(spec compute.DrawSpec) (compute.Drawer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, compute.ErrDeviceClosed
	}
	if spec.Count <= 0 || len(spec.Lookup) < spec.Count*2 {
		return nil, fmt.Errorf("gpu: lookup buffer holds %d particles, want %d", len(spec.Lookup)/2, spec.Count)
	}
	if spec.ColorFormat == gputypes.TextureFormatUndefined {
		return nil, fmt.Errorf("gpu: draw color format undefined")
	}
	if _, err := naga.Compile(drawShaderSource); err != nil {
		return nil, fmt.Errorf("gpu: compile draw shader: %w", err)
	}

	dr := &drawer{
		dev:        d,
		spec:       spec,
		bindGroups: make(map[drawKey]hal.BindGroup),
	}
	if err := dr.init(); err != nil {
		dr.destroyPartialInit()
		return nil, err
	}
	d.drawers = append(d.drawers, dr)
	slogger().Debug("gpu: drawer created", "label", spec.Label, "instances", spec.Count, "mesh", spec.Mesh)
	return dr, nil
}

func (dr *drawer) init() error {
	device := dr.dev.device
	var err error

	mesh := boxMesh(boxHalf)
	topology := gputypes.PrimitiveTopologyTriangleList
	cull := gputypes.CullModeBack
	if dr.spec.Mesh == compute.MeshPoint {
		mesh = pointMesh()
		topology = gputypes.PrimitiveTopologyPointList
		cull = gputypes.CullModeNone
	}
	dr.meshVerts = uint32(len(mesh) / 6)

	meshBytes := floatBytes(mesh)
	lookupBytes := floatBytes(dr.spec.Lookup[:dr.spec.Count*2])
	dr.bufferBytes = uint64(len(meshBytes) + len(lookupBytes) + drawUniformSize)
	if err := dr.dev.memory.reserve(dr.bufferBytes, false); err != nil {
		dr.bufferBytes = 0
		return err
	}

	if dr.meshBuf, err = dr.createVertexBuffer("mesh", meshBytes); err != nil {
		return err
	}
	if dr.lookupBuf, err = dr.createVertexBuffer("lookup", lookupBytes); err != nil {
		return err
	}
	dr.uniformBuf, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: dr.spec.Label + "_uniforms",
		Size:  drawUniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("gpu: create draw uniform buffer: %w", err)
	}
	dr.uniforms = newUploadRing(device, dr.spec.Label+"_uniform_staging", drawUniformSize)

	dr.shader, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  dr.spec.Label + "_shader",
		Source: hal.ShaderSource{WGSL: drawShaderSource},
	})
	if err != nil {
		return fmt.Errorf("gpu: create draw shader: %w", err)
	}

	stateEntry := func(binding uint32) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageVertex,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeUnfilterableFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		}
	}
	dr.bindLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: dr.spec.Label + "_bgl",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			stateEntry(1),
			stateEntry(2),
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: create draw bind group layout: %w", err)
	}

	dr.pipelineLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            dr.spec.Label + "_layout",
		BindGroupLayouts: []hal.BindGroupLayout{dr.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("gpu: create draw pipeline layout: %w", err)
	}

	var depth *hal.DepthStencilState
	if dr.spec.DepthFormat != gputypes.TextureFormatUndefined {
		depth = &hal.DepthStencilState{
			Format:            dr.spec.DepthFormat,
			DepthWriteEnabled: true,
			DepthCompare:      gputypes.CompareFunctionLess,
		}
	}
	dr.pipeline, err = device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  dr.spec.Label,
		Layout: dr.pipelineLayout,
		Vertex: hal.VertexState{
			Module:     dr.shader,
			EntryPoint: "vs_main",
			Buffers:    drawVertexLayout(),
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  topology,
			FrontFace: gputypes.FrontFaceCCW,
			CullMode:  cull,
		},
		DepthStencil: depth,
		Multisample:  gputypes.DefaultMultisampleState(),
		Fragment: &hal.FragmentState{
			Module:     dr.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    dr.spec.ColorFormat,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: create draw pipeline: %w", err)
	}
	return nil
}

// drawVertexLayout returns the mesh (per-vertex) and lookup
// (per-instance) buffer layouts.
func drawVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: meshVertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},  // corner
				{Format: gputypes.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1}, // normal
			},
		},
		{
			ArrayStride: lookupStride,
			StepMode:    gputypes.VertexStepModeInstance,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 2}, // lookup
			},
		},
	}
}

// createVertexBuffer uploads static vertex data. It runs once per drawer,
// so the queue write is off the frame path.
func (dr *drawer) createVertexBuffer(name string, data []byte) (hal.Buffer, error) {
	buf, err := dr.dev.device.CreateBuffer(&hal.BufferDescriptor{
		Label: dr.spec.Label + "_" + name,
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create %s buffer: %w", name, err)
	}
	if err := dr.dev.queue.WriteBuffer(buf, 0, data); err != nil {
		dr.dev.device.DestroyBuffer(buf)
		return nil, fmt.Errorf("gpu: upload %s buffer: %w", name, err)
	}
	return buf, nil
}

func (dr *drawer) destroyPartialInit() {
	device := dr.dev.device
	for _, bg := range dr.bindGroups {
		device.DestroyBindGroup(bg)
	}
	dr.bindGroups = nil
	if dr.pipeline != nil {
		device.DestroyRenderPipeline(dr.pipeline)
		dr.pipeline = nil
	}
	if dr.pipelineLayout != nil {
		device.DestroyPipelineLayout(dr.pipelineLayout)
		dr.pipelineLayout = nil
	}
	if dr.bindLayout != nil {
		device.DestroyBindGroupLayout(dr.bindLayout)
		dr.bindLayout = nil
	}
	if dr.shader != nil {
		device.DestroyShaderModule(dr.shader)
		dr.shader = nil
	}
	if dr.uniforms != nil {
		dr.uniforms.destroy()
	}
	for _, b := range []hal.Buffer{dr.uniformBuf, dr.lookupBuf, dr.meshBuf} {
		if b != nil {
			device.DestroyBuffer(b)
		}
	}
	dr.uniformBuf, dr.lookupBuf, dr.meshBuf = nil, nil, nil
	if dr.bufferBytes > 0 {
		dr.dev.memory.release(dr.bufferBytes, false)
		dr.bufferBytes = 0
	}
}

func (dr *drawer) InstanceCount() int { return dr.spec.Count }

// forget destroys bind groups that reference st.
func (dr *drawer) forget(st *stateTexture) {
	for key, bg := range dr.bindGroups {
		if key.position == st || key.velocity == st {
			dr.dev.device.DestroyBindGroup(bg)
			delete(dr.bindGroups, key)
		}
	}
}

func (dr *drawer) bindGroup(pos, vel *stateTexture) (hal.BindGroup, error) {
	key := drawKey{position: pos, velocity: vel}
	if bg, ok := dr.bindGroups[key]; ok {
		return bg, nil
	}
	velView := pos.view
	if vel != nil {
		velView = vel.view
	}
	bg, err := dr.dev.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  dr.spec.Label + "_bg",
		Layout: dr.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: dr.uniformBuf.NativeHandle(), Size: drawUniformSize}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: pos.view.NativeHandle()}},
			{Binding: 2, Resource: gputypes.TextureViewBinding{TextureView: velView.NativeHandle()}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create draw bind group: %w", err)
	}
	dr.bindGroups[key] = bg
	return bg, nil
}

// Draw records and submits one instanced draw of every particle into the
// frame target. It reads the state textures and never writes them.
func (dr *drawer) Draw(target compute.DrawTarget, f compute.DrawFrame) error {
	ft, ok := target.(*FrameTarget)
	if !ok || ft.Color == nil {
		return compute.ErrTargetMismatch
	}
	d := dr.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || dr.pipeline == nil {
		return compute.ErrDeviceClosed
	}
	if dr.spec.DepthFormat != gputypes.TextureFormatUndefined && ft.Depth == nil {
		return fmt.Errorf("gpu: draw %q needs a depth view", dr.spec.Label)
	}
	pos, err := d.own(f.Position)
	if err != nil {
		return err
	}
	var vel *stateTexture
	if f.Velocity != nil {
		if vel, err = d.own(f.Velocity); err != nil {
			return err
		}
	}
	d.retireLocked()

	bg, err := dr.bindGroup(pos, vel)
	if err != nil {
		return err
	}
	slot, err := dr.uniforms.acquire(d.queue.PollCompleted())
	if err != nil {
		return err
	}
	dr.scratch = encodeDrawUniforms(dr.scratch, &f, vel != nil)
	if err := dr.uniforms.write(slot, dr.scratch); err != nil {
		dr.uniforms.release()
		return err
	}

	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "particles_draw"})
	if err != nil {
		dr.uniforms.release()
		return fmt.Errorf("gpu: create command encoder: %w", err)
	}
	defer enc.Destroy()
	if err := enc.BeginEncoding("particles_draw"); err != nil {
		dr.uniforms.release()
		return fmt.Errorf("gpu: begin encoding: %w", err)
	}
	enc.TransitionBuffers([]hal.BufferBarrier{{
		Buffer: dr.uniformBuf,
		Usage:  hal.BufferUsageTransition{OldUsage: gputypes.BufferUsageUniform, NewUsage: gputypes.BufferUsageCopyDst},
	}})
	enc.CopyBufferToBuffer(slot.buf, dr.uniformBuf, []hal.BufferCopy{{Size: drawUniformSize}})
	enc.TransitionBuffers([]hal.BufferBarrier{{
		Buffer: dr.uniformBuf,
		Usage:  hal.BufferUsageTransition{OldUsage: gputypes.BufferUsageCopyDst, NewUsage: gputypes.BufferUsageUniform},
	}})
	d.transition(enc, pos, gputypes.TextureUsageTextureBinding)
	if vel != nil {
		d.transition(enc, vel, gputypes.TextureUsageTextureBinding)
	}

	load := ft.Load
	if load == gputypes.LoadOpUndefined {
		load = gputypes.LoadOpClear
	}
	desc := &hal.RenderPassDescriptor{
		Label: dr.spec.Label,
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       ft.Color,
			LoadOp:     load,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: ft.Clear,
		}},
	}
	if ft.Depth != nil && dr.spec.DepthFormat != gputypes.TextureFormatUndefined {
		desc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:            ft.Depth,
			DepthLoadOp:     gputypes.LoadOpClear,
			DepthStoreOp:    gputypes.StoreOpStore,
			DepthClearValue: 1.0,
		}
	}
	rp := enc.BeginRenderPass(desc)
	rp.SetPipeline(dr.pipeline)
	rp.SetBindGroup(0, bg, nil)
	rp.SetVertexBuffer(0, dr.meshBuf, 0)
	rp.SetVertexBuffer(1, dr.lookupBuf, 0)
	rp.Draw(dr.meshVerts, uint32(dr.spec.Count), 0, 0)
	rp.End()

	cmd, err := enc.EndEncoding()
	if err != nil {
		dr.uniforms.release()
		return fmt.Errorf("gpu: end encoding: %w", err)
	}
	index, err := d.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		d.device.FreeCommandBuffer(cmd)
		dr.uniforms.release()
		return fmt.Errorf("gpu: submit draw: %w", err)
	}
	dr.uniforms.seal(index)
	d.inFlight = append(d.inFlight, submission{index: index, cmd: cmd})
	return nil
}

// Destroy releases the drawer's pipeline and buffers after the queue
// drains. State textures are untouched.
func (dr *drawer) Destroy() {
	d := dr.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || dr.pipeline == nil {
		return
	}
	if err := d.device.WaitIdle(); err != nil {
		slogger().Warn("gpu: wait idle on drawer destroy", "err", err)
	}
	for i, other := range d.drawers {
		if other == dr {
			d.drawers = append(d.drawers[:i], d.drawers[i+1:]...)
			break
		}
	}
	dr.destroyPartialInit()
}
