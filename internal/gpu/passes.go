package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/particles/internal/compute"
	"github.com/gogpu/particles/internal/kernels"
)

// maxKernelInputs bounds the texture bindings of a kernel.
const maxKernelInputs = 4

// kernelPipeline holds the GPU objects of one update kernel.
type kernelPipeline struct {
	shader         hal.ShaderModule
	bindLayout     hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	pipeline       hal.RenderPipeline
	arity          int
}

func (p *kernelPipeline) destroy(device hal.Device) {
	if p.pipeline != nil {
		device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.pipelineLayout != nil {
		device.DestroyPipelineLayout(p.pipelineLayout)
		p.pipelineLayout = nil
	}
	if p.bindLayout != nil {
		device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.shader != nil {
		device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}

// bindKey identifies a cached bind group: a kernel plus its inputs.
// Ping-pong textures alternate between two arrangements, so a graph
// settles at two bind groups per pass.
type bindKey struct {
	kernel kernels.ID
	inputs [maxKernelInputs]*stateTexture
}

// pipelineLocked returns the pipeline for id, building it on first use.
func (d *Device) pipelineLocked(id kernels.ID) (*kernelPipeline, error) {
	if p, ok := d.pipelines[id]; ok {
		return p, nil
	}
	spec, err := kernels.Lookup(id)
	if err != nil {
		return nil, err
	}
	if spec.Arity() > maxKernelInputs {
		return nil, fmt.Errorf("gpu: kernel %s binds %d inputs, max %d", id, spec.Arity(), maxKernelInputs)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	p := &kernelPipeline{arity: spec.Arity()}
	if err := d.buildKernelPipeline(p, spec); err != nil {
		p.destroy(d.device)
		return nil, err
	}
	d.pipelines[id] = p
	slogger().Debug("gpu: kernel pipeline created", "kernel", id)
	return p, nil
}

func (d *Device) buildKernelPipeline(p *kernelPipeline, spec *kernels.Spec) error {
	var err error
	p.shader, err = d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "particles_" + spec.ID.String(),
		Source: hal.ShaderSource{WGSL: spec.Source()},
	})
	if err != nil {
		return fmt.Errorf("gpu: create shader %s: %w", spec.ID, err)
	}

	entries := make([]gputypes.BindGroupLayoutEntry, 0, spec.Arity()+1)
	entries = append(entries, gputypes.BindGroupLayoutEntry{
		Binding:    0,
		Visibility: gputypes.ShaderStageFragment,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	})
	for i := range spec.Arity() {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i + 1),
			Visibility: gputypes.ShaderStageFragment,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeUnfilterableFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		})
	}
	p.bindLayout, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "particles_" + spec.ID.String() + "_bgl",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("gpu: create bind group layout %s: %w", spec.ID, err)
	}

	p.pipelineLayout, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "particles_" + spec.ID.String() + "_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("gpu: create pipeline layout %s: %w", spec.ID, err)
	}

	p.pipeline, err = d.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "particles_" + spec.ID.String(),
		Layout: p.pipelineLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  gputypes.PrimitiveTopologyTriangleList,
			FrontFace: gputypes.FrontFaceCCW,
			CullMode:  gputypes.CullModeNone,
		},
		Multisample: gputypes.DefaultMultisampleState(),
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    stateFormat,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: create render pipeline %s: %w", spec.ID, err)
	}
	return nil
}

func (d *Device) bindGroupLocked(id kernels.ID, p *kernelPipeline, inputs []*stateTexture) (hal.BindGroup, error) {
	key := bindKey{kernel: id}
	copy(key.inputs[:], inputs)
	if bg, ok := d.bindGroups[key]; ok {
		return bg, nil
	}
	entries := make([]gputypes.BindGroupEntry, 0, len(inputs)+1)
	entries = append(entries, gputypes.BindGroupEntry{
		Binding: 0,
		Resource: gputypes.BufferBinding{
			Buffer: d.uniformBuf.NativeHandle(),
			Size:   kernels.UniformSize,
		},
	})
	for i, in := range inputs {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  uint32(i + 1),
			Resource: gputypes.TextureViewBinding{TextureView: in.view.NativeHandle()},
		})
	}
	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "particles_" + id.String() + "_bg",
		Layout:  p.bindLayout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create bind group %s: %w", id, err)
	}
	d.bindGroups[key] = bg
	return bg, nil
}

// dropBindGroupsLocked destroys cached bind groups that reference st.
func (d *Device) dropBindGroupsLocked(st *stateTexture) {
	for key, bg := range d.bindGroups {
		for _, in := range key.inputs {
			if in == st {
				d.device.DestroyBindGroup(bg)
				delete(d.bindGroups, key)
				break
			}
		}
	}
	for _, dr := range d.drawers {
		dr.forget(st)
	}
}

// Submit records every pass into one command buffer and submits it. The
// uniform block is staged and copied at the start of the buffer, so all
// passes of the tick observe the same values. Submit does not wait.
func (d *Device) Submit(u *kernels.Uniforms, passes []compute.Pass) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return compute.ErrDeviceClosed
	}
	d.retireLocked()

	// Resolve everything before recording so a bad pass leaves no
	// half-encoded work behind.
	type resolved struct {
		pass   *compute.Pass
		pipe   *kernelPipeline
		inputs []*stateTexture
		target *stateTexture
	}
	plan := make([]resolved, len(passes))
	for i := range passes {
		p := &passes[i]
		pipe, err := d.pipelineLocked(p.Kernel)
		if err != nil {
			return fmt.Errorf("gpu: pass %q: %w", p.Label, err)
		}
		if len(p.Inputs) != pipe.arity {
			return fmt.Errorf("gpu: pass %q: kernel %s takes %d inputs, got %d", p.Label, p.Kernel, pipe.arity, len(p.Inputs))
		}
		if err := p.CheckHazard(); err != nil {
			return fmt.Errorf("gpu: pass %q: %w", p.Label, err)
		}
		target, err := d.own(p.Target)
		if err != nil {
			return fmt.Errorf("gpu: pass %q: %w", p.Label, err)
		}
		inputs := make([]*stateTexture, len(p.Inputs))
		for j, in := range p.Inputs {
			if inputs[j], err = d.own(in); err != nil {
				return fmt.Errorf("gpu: pass %q: %w", p.Label, err)
			}
		}
		plan[i] = resolved{pass: p, pipe: pipe, inputs: inputs, target: target}
	}

	// Tracked usages describe the last submitted work, so a tick that is
	// dropped after recording barriers must put them back.
	prior := make(map[*stateTexture]gputypes.TextureUsage, 2*len(plan))
	for _, r := range plan {
		prior[r.target] = r.target.usage
		for _, in := range r.inputs {
			prior[in] = in.usage
		}
	}
	abandon := func() {
		for st, usage := range prior {
			st.usage = usage
		}
		d.uniforms.release()
	}

	slot, err := d.uniforms.acquire(d.queue.PollCompleted())
	if err != nil {
		return err
	}
	d.scratch = u.Encode(d.scratch[:0])
	if err := d.uniforms.write(slot, d.scratch); err != nil {
		d.uniforms.release()
		return err
	}

	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "particles_tick"})
	if err != nil {
		d.uniforms.release()
		return fmt.Errorf("gpu: create command encoder: %w", err)
	}
	defer enc.Destroy()
	if err := enc.BeginEncoding("particles_tick"); err != nil {
		d.uniforms.release()
		return fmt.Errorf("gpu: begin encoding: %w", err)
	}

	enc.TransitionBuffers([]hal.BufferBarrier{{
		Buffer: d.uniformBuf,
		Usage:  hal.BufferUsageTransition{OldUsage: gputypes.BufferUsageUniform, NewUsage: gputypes.BufferUsageCopyDst},
	}})
	enc.CopyBufferToBuffer(slot.buf, d.uniformBuf, []hal.BufferCopy{{Size: kernels.UniformSize}})
	enc.TransitionBuffers([]hal.BufferBarrier{{
		Buffer: d.uniformBuf,
		Usage:  hal.BufferUsageTransition{OldUsage: gputypes.BufferUsageCopyDst, NewUsage: gputypes.BufferUsageUniform},
	}})

	for _, r := range plan {
		bg, err := d.bindGroupLocked(r.pass.Kernel, r.pipe, r.inputs)
		if err != nil {
			enc.DiscardEncoding()
			abandon()
			return fmt.Errorf("gpu: pass %q: %w", r.pass.Label, err)
		}
		for _, in := range r.inputs {
			d.transition(enc, in, gputypes.TextureUsageTextureBinding)
		}
		d.transition(enc, r.target, gputypes.TextureUsageRenderAttachment)

		rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: r.pass.Label,
			ColorAttachments: []hal.RenderPassColorAttachment{{
				View:    r.target.view,
				LoadOp:  gputypes.LoadOpClear,
				StoreOp: gputypes.StoreOpStore,
			}},
		})
		rp.SetPipeline(r.pipe.pipeline)
		rp.SetBindGroup(0, bg, nil)
		rp.Draw(3, 1, 0, 0)
		rp.End()
	}
	for _, r := range plan {
		d.transition(enc, r.target, gputypes.TextureUsageTextureBinding)
	}

	cmd, err := enc.EndEncoding()
	if err != nil {
		abandon()
		return fmt.Errorf("gpu: end encoding: %w", err)
	}
	index, err := d.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		d.device.FreeCommandBuffer(cmd)
		abandon()
		return fmt.Errorf("gpu: submit: %w", err)
	}
	d.uniforms.seal(index)
	d.inFlight = append(d.inFlight, submission{index: index, cmd: cmd})
	return nil
}

// retireLocked frees command buffers the queue has finished with.
func (d *Device) retireLocked() {
	if len(d.inFlight) == 0 {
		return
	}
	done := d.queue.PollCompleted()
	keep := d.inFlight[:0]
	for _, s := range d.inFlight {
		if s.index <= done {
			d.device.FreeCommandBuffer(s.cmd)
			continue
		}
		keep = append(keep, s)
	}
	d.inFlight = keep
}

// Pending reports how many submitted command buffers have not retired.
func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inFlight)
}
