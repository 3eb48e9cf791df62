package particles

// Option configures a Simulation built by New.
//
// Example:
//
//	sim, err := particles.New(dev,
//	    particles.WithCount(1024),
//	    particles.WithBoundary(particles.BoundaryWrap),
//	)
type Option func(*Config)

// WithCount sets the number of particles.
func WithCount(n int) Option {
	return func(c *Config) {
		c.Count = n
	}
}

// WithSide sets the particle count to side*side, filling the state
// textures exactly.
func WithSide(side int) Option {
	return func(c *Config) {
		c.Count = side * side
	}
}

// WithBound sets the containment radius.
func WithBound(b float32) Option {
	return func(c *Config) {
		c.Bound = b
	}
}

// WithSeedSize sets the extent of the initial distribution.
func WithSeedSize(size float32) Option {
	return func(c *Config) {
		c.SeedSize = size
	}
}

// WithDistribution selects the initial position distribution.
func WithDistribution(d Distribution) Option {
	return func(c *Config) {
		c.Distribution = d
	}
}

// WithMaxSpeed limits particle speed.
func WithMaxSpeed(v float32) Option {
	return func(c *Config) {
		c.MaxSpeed = v
	}
}

// WithMaxForce limits the steering acceleration.
func WithMaxForce(f float32) Option {
	return func(c *Config) {
		c.MaxForce = f
	}
}

// WithBoundary selects the boundary policy for this simulation.
func WithBoundary(b Boundary) Option {
	return func(c *Config) {
		c.Boundary = b
	}
}

// WithFlocking sets the flocking weights. Zero samples disable flocking.
func WithFlocking(separation, cohesion, alignment, radius float32, samples int) Option {
	return func(c *Config) {
		c.Flocking = Flocking{
			Separation: separation,
			Cohesion:   cohesion,
			Alignment:  alignment,
			Radius:     radius,
			Samples:    samples,
		}
	}
}

// WithAttraction sets the weight of the attractor steering force.
func WithAttraction(strength float32) Option {
	return func(c *Config) {
		c.AttractStrength = strength
	}
}

// WithBehavior selects the preset graph.
func WithBehavior(b Behavior) Option {
	return func(c *Config) {
		c.Behavior = b
	}
}

// WithMorphRate sets the angular rate of the morph cycle.
func WithMorphRate(rate float32) Option {
	return func(c *Config) {
		c.MorphRate = rate
	}
}

// WithRandomSeed seeds the generator used for seed textures.
func WithRandomSeed(seed uint64) Option {
	return func(c *Config) {
		c.RandomSeed = seed
	}
}

// WithVelocitySeed starts particles with random velocities.
func WithVelocitySeed(on bool) Option {
	return func(c *Config) {
		c.SeedVelocity = on
	}
}

// WithMetrics records tick metrics into m under the given simulation
// label.
func WithMetrics(m *Metrics, name string) Option {
	return func(c *Config) {
		c.metrics = m
		c.metricsName = name
	}
}
