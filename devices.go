package particles

import (
	"context"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/particles/internal/gpu"
	"github.com/gogpu/particles/internal/reference"
)

// GPUOptions tunes a GPU device.
type GPUOptions struct {
	// MemoryBudgetMB caps state textures and draw buffers. Zero uses the
	// default budget.
	MemoryBudgetMB int
}

// NewGPUDevice opens the first discrete or integrated Vulkan adapter.
// It returns an error matching ErrNoGPU when the Vulkan backend, an
// instance or an adapter is unavailable; there is no CPU fallback.
func NewGPUDevice(ctx context.Context, opts ...GPUOptions) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var o GPUOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	d, err := gpu.Open(gpu.Config{MemoryBudgetMB: o.MemoryBudgetMB})
	if err != nil {
		return nil, err
	}
	Logger().Info("particles: gpu device open", "adapter", d.Name())
	return d, nil
}

// NewGPUDeviceFromProvider runs on the host's device and queue. Closing
// the returned device releases the module's resources but never the
// host's device.
func NewGPUDeviceFromProvider(p gpucontext.DeviceProvider) (Device, error) {
	d, err := gpu.FromProvider(p, gpu.Config{})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// NewReferenceDevice returns a CPU device that evaluates the same kernels
// on workers goroutines (0 means GOMAXPROCS). It is a validation oracle
// and is never selected implicitly.
func NewReferenceDevice(workers int) Device {
	return reference.New(workers)
}
