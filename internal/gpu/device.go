package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/particles/internal/compute"
	"github.com/gogpu/particles/internal/kernels"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Device bootstrap errors.
var (
	// ErrNoGPU matches every failure to find a usable GPU.
	ErrNoGPU = errors.New("gpu: no usable GPU")

	// ErrNoBackend means the Vulkan HAL backend is not registered.
	ErrNoBackend = fmt.Errorf("%w: vulkan backend not available", ErrNoGPU)

	// ErrNoAdapter means the instance reported no adapters.
	ErrNoAdapter = fmt.Errorf("%w: no adapters found", ErrNoGPU)

	// ErrProviderNotHAL means a device provider does not expose HAL types.
	ErrProviderNotHAL = errors.New("gpu: provider does not expose HAL device and queue")
)

// stateFormat is the format of every state texture.
const stateFormat = gputypes.TextureFormatRGBA32Float

// Config tunes a Device.
type Config struct {
	// Name labels the device in logs and metrics.
	Name string

	// MemoryBudgetMB caps state texture and buffer allocations.
	// Zero means DefaultMemoryBudgetMB.
	MemoryBudgetMB int
}

// Device implements compute.Device on a wgpu/hal device and queue.
//
// Update passes are encoded as full-screen render passes into one command
// buffer per tick and submitted without waiting. Uniforms travel through
// a ring of mapped staging buffers copied inside the command buffer, so
// the CPU never waits for the GPU on the tick path.
type Device struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	caps     compute.Capabilities
	name     string
	memory   *memoryLedger

	uniformBuf hal.Buffer
	uniforms   *uploadRing
	scratch    []byte

	pipelines  map[kernels.ID]*kernelPipeline
	bindGroups map[bindKey]hal.BindGroup
	inFlight   []submission
	drawers    []*drawer

	externalDevice bool // true when using shared device (don't destroy on Close)
	closed         bool
}

// submission is a command buffer waiting for the queue to retire it.
type submission struct {
	index uint64
	cmd   hal.CommandBuffer
}

var _ compute.Device = (*Device)(nil)

// Capabilities derives compute capabilities from an adapter and the
// limits the device was opened with.
func Capabilities(adapter hal.Adapter, limits gputypes.Limits) compute.Capabilities {
	need := hal.TextureFormatCapabilitySampled | hal.TextureFormatCapabilityRenderAttachment
	flags := adapter.TextureFormatCapabilities(stateFormat).Flags
	return compute.Capabilities{
		MaxTextureSide: int(limits.MaxTextureDimension2D),
		FloatTargets:   flags&need == need,
	}
}

// DefaultCapabilities is used when the adapter cannot be queried.
// RGBA32Float rendering and sampling are core WebGPU features.
func DefaultCapabilities() compute.Capabilities {
	return compute.Capabilities{
		MaxTextureSide: int(gputypes.DefaultLimits().MaxTextureDimension2D),
		FloatTargets:   true,
	}
}

// Open creates its own Vulkan instance and device, preferring a discrete
// or integrated GPU.
func Open(cfg Config) (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, ErrNoBackend
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %w", ErrNoGPU, err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	limits := gputypes.DefaultLimits()
	openDev, err := selected.Adapter.Open(gputypes.Features(0), limits)
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: open device: %w", err)
	}

	if cfg.Name == "" {
		cfg.Name = selected.Info.Name
	}
	d, err := newDevice(openDev.Device, openDev.Queue, Capabilities(selected.Adapter, limits), cfg)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	d.instance = instance
	d.externalDevice = false
	slogger().Info("gpu: device opened", "adapter", selected.Info.Name, "type", selected.Info.DeviceType)
	return d, nil
}

// New wraps a device and queue owned by the caller. Close releases only
// the resources this package created.
func New(device hal.Device, queue hal.Queue, caps compute.Capabilities, cfg Config) (*Device, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("gpu: nil device or queue")
	}
	if cfg.Name == "" {
		cfg.Name = "hal"
	}
	return newDevice(device, queue, caps, cfg)
}

// FromProvider shares the device of a host application. The provider
// must implement HalDevice() any and HalQueue() any returning hal.Device
// and hal.Queue.
func FromProvider(provider gpucontext.DeviceProvider, cfg Config) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrProviderNotHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is %T", ErrProviderNotHAL, hp.HalDevice())
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is %T", ErrProviderNotHAL, hp.HalQueue())
	}

	caps := DefaultCapabilities()
	if adapter, ok := provider.Adapter().(hal.Adapter); ok && adapter != nil {
		caps = Capabilities(adapter, gputypes.DefaultLimits())
	}
	if cfg.Name == "" {
		cfg.Name = provider.AdapterInfo().Name
	}
	d, err := New(device, queue, caps, cfg)
	if err != nil {
		return nil, err
	}
	slogger().Info("gpu: using shared device", "adapter", cfg.Name)
	return d, nil
}

func newDevice(device hal.Device, queue hal.Queue, caps compute.Capabilities, cfg Config) (*Device, error) {
	d := &Device{
		device:         device,
		queue:          queue,
		caps:           caps,
		name:           cfg.Name,
		memory:         newMemoryLedger(cfg.MemoryBudgetMB),
		pipelines:      make(map[kernels.ID]*kernelPipeline),
		bindGroups:     make(map[bindKey]hal.BindGroup),
		externalDevice: true,
	}
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "particles_uniforms",
		Size:  kernels.UniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create uniform buffer: %w", err)
	}
	d.uniformBuf = buf
	d.uniforms = newUploadRing(device, "particles_uniform_staging", kernels.UniformSize)
	return d, nil
}

func (d *Device) Name() string { return d.name }

func (d *Device) Capabilities() compute.Capabilities { return d.caps }

// MemoryStats reports the memory accounted to this device.
func (d *Device) MemoryStats() MemoryStats { return d.memory.stats() }

// HalDevice exposes the underlying device for hosts that record draws.
func (d *Device) HalDevice() hal.Device { return d.device }

// HalQueue exposes the underlying queue.
func (d *Device) HalQueue() hal.Queue { return d.queue }

func (d *Device) Prepare(id kernels.ID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return compute.ErrDeviceClosed
	}
	_, err := d.pipelineLocked(id)
	return err
}

// Close releases every resource the device created. Close waits for the
// queue to go idle first, so in-flight ticks finish before teardown.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true

	if err := d.device.WaitIdle(); err != nil {
		slogger().Warn("gpu: wait idle on close", "err", err)
	}
	for _, s := range d.inFlight {
		d.device.FreeCommandBuffer(s.cmd)
	}
	d.inFlight = nil
	for key, bg := range d.bindGroups {
		d.device.DestroyBindGroup(bg)
		delete(d.bindGroups, key)
	}
	for id, p := range d.pipelines {
		p.destroy(d.device)
		delete(d.pipelines, id)
	}
	for _, dr := range d.drawers {
		dr.destroyPartialInit()
	}
	d.drawers = nil
	d.uniforms.destroy()
	if d.uniformBuf != nil {
		d.device.DestroyBuffer(d.uniformBuf)
		d.uniformBuf = nil
	}

	if !d.externalDevice {
		d.device.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
			d.instance = nil
		}
	}
	d.device = nil
	d.queue = nil
}
