package gpu

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// unsealed marks a slot that was acquired for a submission whose index is
// not known yet.
const unsealed = math.MaxUint64

// uploadSlot is one host-visible staging buffer.
type uploadSlot struct {
	buf       hal.Buffer
	busyUntil uint64 // submission index that must complete before reuse
}

// uploadRing hands out MapWrite staging buffers of a fixed size. The
// contents are copied into device-local buffers inside a command buffer,
// so writing never waits on the queue. A slot is reused once the queue
// reports its submission complete; when none is free the ring grows.
type uploadRing struct {
	device hal.Device
	label  string
	size   uint64
	slots  []*uploadSlot
}

func newUploadRing(device hal.Device, label string, size uint64) *uploadRing {
	return &uploadRing{device: device, label: label, size: size}
}

// acquire returns a free slot given the highest completed submission.
func (r *uploadRing) acquire(completed uint64) (*uploadSlot, error) {
	for _, s := range r.slots {
		if s.busyUntil != unsealed && s.busyUntil <= completed {
			s.busyUntil = unsealed
			return s, nil
		}
	}
	buf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: fmt.Sprintf("%s_%d", r.label, len(r.slots)),
		Size:  r.size,
		Usage: gputypes.BufferUsageMapWrite | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create staging buffer: %w", err)
	}
	s := &uploadSlot{buf: buf, busyUntil: unsealed}
	r.slots = append(r.slots, s)
	if len(r.slots) > 1 {
		slogger().Debug("gpu: upload ring grew", "ring", r.label, "slots", len(r.slots))
	}
	return s, nil
}

// write copies data into the slot's mapped memory.
func (r *uploadRing) write(s *uploadSlot, data []byte) error {
	if uint64(len(data)) > r.size {
		return fmt.Errorf("gpu: staging write of %d bytes exceeds slot size %d", len(data), r.size)
	}
	m, err := r.device.MapBuffer(s.buf, 0, r.size)
	if err != nil {
		return fmt.Errorf("gpu: map staging buffer: %w", err)
	}
	copy(unsafe.Slice((*byte)(m.Ptr), r.size), data)
	return r.device.UnmapBuffer(s.buf)
}

// seal tags every acquired slot with the submission that reads it.
func (r *uploadRing) seal(index uint64) {
	for _, s := range r.slots {
		if s.busyUntil == unsealed {
			s.busyUntil = index
		}
	}
}

// release returns acquired slots to the pool after a failed submission.
func (r *uploadRing) release() {
	r.seal(0)
}

func (r *uploadRing) destroy() {
	for _, s := range r.slots {
		r.device.DestroyBuffer(s.buf)
	}
	r.slots = nil
}
