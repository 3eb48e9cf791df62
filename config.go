package particles

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/particles/internal/kernels"
)

// Boundary selects how positions are kept within the bound.
type Boundary uint8

const (
	// BoundaryClamp projects positions that leave the sphere of radius
	// Bound back onto it, and steers particles inward near the edge.
	BoundaryClamp Boundary = iota

	// BoundaryWrap wraps each axis into [-Bound, Bound).
	BoundaryWrap
)

func (b Boundary) String() string {
	switch b {
	case BoundaryClamp:
		return "clamp"
	case BoundaryWrap:
		return "wrap"
	default:
		return fmt.Sprintf("Boundary(%d)", uint8(b))
	}
}

// code returns the value the kernels expect.
func (b Boundary) code() uint32 {
	if b == BoundaryWrap {
		return kernels.BoundaryWrap
	}
	return kernels.BoundaryClamp
}

// ParseBoundary parses "clamp" or "wrap".
func ParseBoundary(s string) (Boundary, error) {
	switch s {
	case "clamp":
		return BoundaryClamp, nil
	case "wrap":
		return BoundaryWrap, nil
	}
	return 0, fmt.Errorf("%w: boundary %q", ErrInvalidConfig, s)
}

// Distribution selects the initial position seed.
type Distribution uint8

const (
	// DistributionVolume draws each component uniformly in
	// [-SeedSize/2, SeedSize/2].
	DistributionVolume Distribution = iota

	// DistributionSphere places particles on the sphere of radius SeedSize.
	DistributionSphere
)

func (d Distribution) String() string {
	switch d {
	case DistributionVolume:
		return "volume"
	case DistributionSphere:
		return "sphere"
	default:
		return fmt.Sprintf("Distribution(%d)", uint8(d))
	}
}

// ParseDistribution parses "volume" or "sphere".
func ParseDistribution(s string) (Distribution, error) {
	switch s {
	case "volume":
		return DistributionVolume, nil
	case "sphere":
		return DistributionSphere, nil
	}
	return 0, fmt.Errorf("%w: distribution %q", ErrInvalidConfig, s)
}

// Behavior selects the preset graph built by New.
type Behavior uint8

const (
	// BehaviorFlock steers velocity and integrates position.
	BehaviorFlock Behavior = iota

	// BehaviorMorph eases positions between a volume and a sphere seed.
	BehaviorMorph
)

func (b Behavior) String() string {
	switch b {
	case BehaviorFlock:
		return "flock"
	case BehaviorMorph:
		return "morph"
	default:
		return fmt.Sprintf("Behavior(%d)", uint8(b))
	}
}

// ParseBehavior parses "flock" or "morph".
func ParseBehavior(s string) (Behavior, error) {
	switch s {
	case "flock":
		return BehaviorFlock, nil
	case "morph":
		return BehaviorMorph, nil
	}
	return 0, fmt.Errorf("%w: behavior %q", ErrInvalidConfig, s)
}

// Flocking weights the three flocking rules. Samples neighbours within
// Radius are visited per particle and tick; zero disables flocking.
type Flocking struct {
	Separation float32
	Cohesion   float32
	Alignment  float32
	Radius     float32
	Samples    int
}

// Config holds the construction parameters of a Simulation.
type Config struct {
	// Count is the number of live particles N. The state textures have
	// side ceil(sqrt(N)).
	Count int

	// Bound is the containment radius (clamp) or half-extent (wrap).
	Bound float32

	SeedSize     float32
	Distribution Distribution

	MaxSpeed float32
	MaxForce float32
	Boundary Boundary
	Flocking Flocking

	// AttractStrength weights the steering force toward the attractor
	// passed to TickAttract.
	AttractStrength float32

	Behavior  Behavior
	MorphRate float32

	// RandomSeed seeds the PCG generator used for every seed texture.
	RandomSeed uint64

	// SeedVelocity starts particles with random velocities up to
	// MaxSpeed instead of at rest.
	SeedVelocity bool

	metrics     *Metrics
	metricsName string
}

// DefaultConfig returns 128×128 flocking particles seeded in a cube of
// size 10 and clamped to a sphere of radius 10.
func DefaultConfig() Config {
	return Config{
		Count:        128 * 128,
		Bound:        10,
		SeedSize:     10,
		Distribution: DistributionVolume,
		MaxSpeed:     1,
		MaxForce:     0.5,
		Boundary:     BoundaryClamp,
		Flocking: Flocking{
			Separation: 1.5,
			Cohesion:   1,
			Alignment:  1,
			Radius:     2,
			Samples:    8,
		},
		AttractStrength: 1,
		Behavior:        BehaviorFlock,
		MorphRate:       0.5,
		RandomSeed:      1,
	}
}

func badFloat(v float32) bool {
	return v < 0 || math.IsNaN(float64(v)) || math.IsInf(float64(v), 0)
}

// Validate reports every problem in c.
func (c *Config) Validate() error {
	var errs []error
	if c.Count <= 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidCount, c.Count))
	}
	if badFloat(c.Bound) || c.Bound == 0 {
		errs = append(errs, fmt.Errorf("%w: bound %v", ErrInvalidConfig, c.Bound))
	}
	fields := []struct {
		name string
		v    float32
	}{
		{"seed size", c.SeedSize},
		{"max speed", c.MaxSpeed},
		{"max force", c.MaxForce},
		{"attract strength", c.AttractStrength},
		{"morph rate", c.MorphRate},
		{"separation", c.Flocking.Separation},
		{"cohesion", c.Flocking.Cohesion},
		{"alignment", c.Flocking.Alignment},
		{"radius", c.Flocking.Radius},
	}
	for _, f := range fields {
		if badFloat(f.v) {
			errs = append(errs, fmt.Errorf("%w: %s %v", ErrInvalidConfig, f.name, f.v))
		}
	}
	if c.Flocking.Samples < 0 {
		errs = append(errs, fmt.Errorf("%w: samples %d", ErrInvalidConfig, c.Flocking.Samples))
	}
	if c.Boundary > BoundaryWrap {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidConfig, c.Boundary))
	}
	if c.Distribution > DistributionSphere {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidConfig, c.Distribution))
	}
	if c.Behavior > BehaviorMorph {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidConfig, c.Behavior))
	}
	return errors.Join(errs...)
}
