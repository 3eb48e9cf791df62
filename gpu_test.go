package particles

import (
	"errors"
	"image"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/particles/internal/compute"
	"github.com/gogpu/particles/internal/gpu"
)

// newNoopDevice returns a GPU device on the noop HAL with the given
// capabilities.
func newNoopDevice(t *testing.T, caps compute.Capabilities, budgetMB int) *gpu.Device {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatal(err)
	}
	adapters := instance.EnumerateAdapters(nil)
	open, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatal(err)
	}
	d, err := gpu.New(open.Device, open.Queue, caps, gpu.Config{MemoryBudgetMB: budgetMB})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		d.Close()
		open.Device.Destroy()
		instance.Destroy()
	})
	return d
}

func TestGPUConstructionFailures(t *testing.T) {
	tests := []struct {
		name    string
		caps    compute.Capabilities
		count   int
		wantErr error
	}{
		{"no float targets", compute.Capabilities{MaxTextureSide: 4096}, 16, ErrUnsupportedFormat},
		{"side over limit", compute.Capabilities{MaxTextureSide: 16, FloatTargets: true}, 17 * 17, ErrTextureTooLarge},
		{"side at limit", compute.Capabilities{MaxTextureSide: 16, FloatTargets: true}, 16 * 16, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newNoopDevice(t, tt.caps, 0)
			sim, err := New(dev, WithCount(tt.count))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("New() = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				if sim != nil {
					t.Error("failed construction returned a simulation")
				}
				return
			}
			sim.Close()
		})
	}
}

func TestGPUConstructionReleasesPartialTextures(t *testing.T) {
	dev := newNoopDevice(t, gpu.DefaultCapabilities(), 1)
	// 256×256 RGBA32F is exactly 1 MB, so the second texture fails.
	_, err := New(dev, WithSide(256))
	if !errors.Is(err, gpu.ErrMemoryBudgetExceeded) {
		t.Fatalf("New() = %v, want ErrMemoryBudgetExceeded", err)
	}
	if s := dev.MemoryStats(); s.UsedBytes != 0 || s.TextureCount != 0 {
		t.Errorf("leaked textures: %s", s)
	}
}

func TestGPUTickSubmitsWithoutWaiting(t *testing.T) {
	dev := newNoopDevice(t, gpu.DefaultCapabilities(), 0)
	sim, err := New(dev, WithCount(1000))
	if err != nil {
		t.Fatal(err)
	}
	defer sim.Close()
	for i := range 5 {
		if err := sim.Tick(float32(i)*dt, dt); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	if s := sim.Stats(); s.Ticks != 5 || s.Device != "hal" {
		t.Errorf("Stats() = %+v", s)
	}

	dp, err := sim.NewDrawPass(DefaultDrawConfig())
	if err != nil {
		t.Fatal(err)
	}
	if dp.InstanceCount() != 1000 {
		t.Errorf("InstanceCount() = %d, want 1000", dp.InstanceCount())
	}
	img := &ImageTarget{Image: image.NewRGBA(image.Rect(0, 0, 1, 1))}
	if err := dp.Record(img, ViewProjection(1)); !errors.Is(err, ErrTargetMismatch) {
		t.Errorf("Record(image) on GPU = %v, want ErrTargetMismatch", err)
	}
	if err := dp.Record(&FrameTarget{Color: &noop.Resource{}, Depth: &noop.Resource{}}, ViewProjection(1)); err != nil {
		t.Errorf("Record(frame) = %v", err)
	}
}

func TestNoGPUMatchesBootstrapFailures(t *testing.T) {
	for _, err := range []error{gpu.ErrNoBackend, gpu.ErrNoAdapter} {
		if !errors.Is(err, ErrNoGPU) {
			t.Errorf("errors.Is(%v, ErrNoGPU) = false", err)
		}
	}
	if errors.Is(gpu.ErrProviderNotHAL, ErrNoGPU) {
		t.Error("a provider without HAL types should not read as a missing GPU")
	}
}
