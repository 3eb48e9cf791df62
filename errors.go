package particles

import (
	"errors"

	"github.com/gogpu/particles/internal/compute"
	"github.com/gogpu/particles/internal/gpu"
)

// Construction errors.
var (
	// ErrInvalidCount is returned when the particle count is not positive.
	ErrInvalidCount = errors.New("particles: particle count must be positive")

	// ErrInvalidConfig is returned for out-of-range behavior parameters
	// or unknown policy names.
	ErrInvalidConfig = errors.New("particles: invalid configuration")

	// ErrDependencyCycle is returned when same-frame inputs form a cycle.
	ErrDependencyCycle = errors.New("particles: same-frame dependency cycle")

	// ErrUnknownVariable is returned when an input names no declared
	// variable or static.
	ErrUnknownVariable = errors.New("particles: unknown variable")

	// ErrDuplicateVariable is returned when two declarations share a name.
	ErrDuplicateVariable = errors.New("particles: duplicate variable")

	// ErrKernelArity is returned when a variable's inputs do not match its
	// kernel.
	ErrKernelArity = errors.New("particles: input count does not match kernel")
)

// Runtime errors.
var (
	// ErrSimulationFailed is returned by every Tick after a submission
	// failed. The simulation must be closed and rebuilt.
	ErrSimulationFailed = errors.New("particles: simulation failed")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("particles: simulation closed")

	// ErrInvalidDelta is returned for a negative or NaN frame delta.
	ErrInvalidDelta = errors.New("particles: delta must be a non-negative number")
)

// Device errors, re-exported so callers can test for them with errors.Is.
var (
	ErrUnsupportedFormat = compute.ErrUnsupportedFormat
	ErrTextureTooLarge   = compute.ErrTextureTooLarge
	ErrTargetMismatch    = compute.ErrTargetMismatch
	ErrNoGPU             = gpu.ErrNoGPU
)
