package particles

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/particles/internal/compute"
	"github.com/gogpu/particles/internal/kernels"
)

// Device runs update passes and draws. Create one with NewGPUDevice,
// NewGPUDeviceFromProvider or NewReferenceDevice.
type Device = compute.Device

// Texture is a square RGBA32Float state texture.
type Texture = compute.Texture

// Simulation owns the state textures of a graph and advances them one
// tick per frame. It is not safe for concurrent use.
type Simulation struct {
	dev    Device
	cfg    Config
	layout Layout
	graph  *Graph

	targets map[string]*PingPong
	ordered []*PingPong // pass order
	statics map[string]Texture

	passes   []compute.Pass
	uniforms kernels.Uniforms

	attractor mgl32.Vec3
	attracted bool

	draws []*DrawPass

	ticks  uint64
	failed error
	closed bool
}

// Stats is a snapshot of a simulation.
type Stats struct {
	Ticks  uint64
	Count  int
	Side   int
	Passes int
	Device string
	Failed bool
}

// presetGraph returns the declarations New builds for cfg.Behavior.
func presetGraph(cfg *Config) ([]Variable, []Static) {
	seed := Volume(cfg.SeedSize)
	if cfg.Distribution == DistributionSphere {
		seed = Sphere(cfg.SeedSize)
	}
	if cfg.Behavior == BehaviorMorph {
		vars := []Variable{{
			Name:   "position",
			Kind:   Position,
			Kernel: KernelMorph,
			Inputs: []Input{{Name: "position"}, {Name: "from"}, {Name: "to"}},
			Seed:   seed,
		}}
		statics := []Static{
			{Name: "from", Seed: Volume(cfg.SeedSize)},
			{Name: "to", Seed: Sphere(cfg.SeedSize)},
		}
		return vars, statics
	}
	vel := Zero()
	if cfg.SeedVelocity {
		vel = Volume(cfg.MaxSpeed)
	}
	return []Variable{
		{
			Name:   "velocity",
			Kind:   Velocity,
			Kernel: KernelSteer,
			Inputs: []Input{{Name: "velocity"}, {Name: "position"}},
			Seed:   vel,
		},
		{
			Name:   "position",
			Kind:   Position,
			Kernel: KernelIntegrate,
			Inputs: []Input{{Name: "position"}, {Name: "velocity", SameFrame: true}},
			Seed:   seed,
		},
	}, nil
}

// New builds the preset simulation selected by the options on dev.
//
// Example:
//
//	dev := particles.NewReferenceDevice(0)
//	sim, err := particles.New(dev, particles.WithCount(1024))
//	if err != nil {
//	    return err
//	}
//	defer sim.Close()
//	for frame := range 60 {
//	    if err := sim.Tick(float32(frame)/60, 1.0/60); err != nil {
//	        return err
//	    }
//	}
func New(dev Device, opts ...Option) (*Simulation, error) {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	vars, statics := presetGraph(&cfg)
	return NewWithGraph(dev, cfg, vars, statics)
}

// NewWithGraph builds a simulation over custom declarations. On error
// every texture created so far is destroyed and no simulation is
// returned.
func NewWithGraph(dev Device, cfg Config, vars []Variable, statics []Static) (*Simulation, error) {
	if dev == nil {
		return nil, fmt.Errorf("%w: nil device", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	layout, err := NewLayout(cfg.Count)
	if err != nil {
		return nil, err
	}
	graph, err := NewGraph(vars, statics)
	if err != nil {
		return nil, err
	}

	caps := dev.Capabilities()
	if !caps.FloatTargets {
		return nil, fmt.Errorf("particles: %s: %w", dev.Name(), ErrUnsupportedFormat)
	}
	if layout.Side() > caps.MaxTextureSide {
		return nil, fmt.Errorf("particles: side %d > %d: %w", layout.Side(), caps.MaxTextureSide, ErrTextureTooLarge)
	}
	for _, v := range vars {
		if err := dev.Prepare(v.Kernel); err != nil {
			return nil, fmt.Errorf("particles: prepare %s: %w", v.Kernel, err)
		}
	}

	s := &Simulation{
		dev:     dev,
		cfg:     cfg,
		layout:  layout,
		graph:   graph,
		targets: make(map[string]*PingPong, len(vars)),
		statics: make(map[string]Texture, len(statics)),
	}
	if err := s.allocate(); err != nil {
		s.destroyTextures()
		return nil, err
	}

	s.passes = make([]compute.Pass, len(graph.order))
	for i, vi := range graph.order {
		v := &graph.vars[vi]
		s.ordered = append(s.ordered, s.targets[v.Name])
		s.passes[i] = compute.Pass{
			Label:  v.Name,
			Kernel: v.Kernel,
			Inputs: make([]compute.Texture, len(v.Inputs)),
		}
	}

	cfg.metrics.setShape(cfg.metricsName, layout.Count(), len(s.passes))
	Logger().Info("particles: simulation ready",
		"device", dev.Name(),
		"count", layout.Count(),
		"side", layout.Side(),
		"order", graph.Order())
	return s, nil
}

// allocate creates and seeds every texture. Statics are seeded first,
// then variables, each in declaration order, from one generator.
func (s *Simulation) allocate() error {
	r := newRand(s.cfg.RandomSeed)
	side := s.layout.Side()
	for _, st := range s.graph.statics {
		t, err := s.dev.CreateTexture(st.Name, side)
		if err != nil {
			return fmt.Errorf("particles: create static %q: %w", st.Name, err)
		}
		s.statics[st.Name] = t
		if err := s.dev.Upload(t, Fill(s.layout, r, st.Seed)); err != nil {
			return fmt.Errorf("particles: seed %q: %w", st.Name, err)
		}
	}
	for _, v := range s.graph.vars {
		pp, err := newPingPong(s.dev, v.Name, side)
		if err != nil {
			return err
		}
		s.targets[v.Name] = pp
		if err := s.dev.Upload(pp.Current(), Fill(s.layout, r, v.Seed)); err != nil {
			return fmt.Errorf("particles: seed %q: %w", v.Name, err)
		}
	}
	return nil
}

func (s *Simulation) destroyTextures() {
	for _, pp := range s.targets {
		pp.destroy(s.dev)
	}
	for name, t := range s.statics {
		s.dev.DestroyTexture(t)
		delete(s.statics, name)
	}
}

// Tick advances every variable by one step. All passes are submitted in
// one batch and then every target swaps, so Current never mixes ticks.
// Tick does not wait for the GPU.
func (s *Simulation) Tick(t, delta float32) error {
	return s.tick(t, delta)
}

// TickAttract sets the attractor to p and ticks. The attractor stays in
// effect for later ticks until ClearAttractor.
func (s *Simulation) TickAttract(t, delta float32, p mgl32.Vec3) error {
	s.attractor = p
	s.attracted = true
	return s.tick(t, delta)
}

// ClearAttractor removes the attractor set by TickAttract.
func (s *Simulation) ClearAttractor() {
	s.attracted = false
}

func (s *Simulation) tick(t, delta float32) error {
	switch {
	case s.closed:
		return ErrClosed
	case s.failed != nil:
		return fmt.Errorf("%w: %w", ErrSimulationFailed, s.failed)
	case delta < 0 || math.IsNaN(float64(delta)) || math.IsInf(float64(delta), 0):
		return fmt.Errorf("%w: %v", ErrInvalidDelta, delta)
	}
	start := time.Now()

	s.fillUniforms(t, delta)
	for i, vi := range s.graph.order {
		v := &s.graph.vars[vi]
		p := &s.passes[i]
		for j, in := range v.Inputs {
			p.Inputs[j] = s.resolve(in)
		}
		p.Target = s.ordered[i].Next()
	}

	if err := s.dev.Submit(&s.uniforms, s.passes); err != nil {
		s.failed = err
		s.cfg.metrics.observeFailure(s.cfg.metricsName)
		return fmt.Errorf("particles: tick %d: %w", s.ticks, err)
	}
	for _, pp := range s.ordered {
		pp.markWritten()
	}
	var swapErr error
	for _, pp := range s.ordered {
		swapErr = errors.Join(swapErr, pp.Swap())
	}
	if swapErr != nil {
		s.failed = swapErr
		return swapErr
	}

	s.ticks++
	s.cfg.metrics.observeTick(s.cfg.metricsName, time.Since(start))
	return nil
}

func (s *Simulation) resolve(in Input) Texture {
	if t, ok := s.statics[in.Name]; ok {
		return t
	}
	pp := s.targets[in.Name]
	if in.SameFrame {
		return pp.Next()
	}
	return pp.Current()
}

func (s *Simulation) fillUniforms(t, delta float32) {
	c := &s.cfg
	s.uniforms = kernels.Uniforms{
		Attractor:       s.attractor,
		AttractorActive: s.attracted,
		Time:            t,
		Delta:           delta,
		MaxSpeed:        c.MaxSpeed,
		MaxForce:        c.MaxForce,
		Bound:           c.Bound,
		Boundary:        c.Boundary.code(),
		Side:            uint32(s.layout.Side()),
		Count:           uint32(s.layout.Count()),
		AttractStrength: c.AttractStrength,
		Separation:      c.Flocking.Separation,
		Cohesion:        c.Flocking.Cohesion,
		Alignment:       c.Flocking.Alignment,
		Radius:          c.Flocking.Radius,
		Samples:         uint32(c.Flocking.Samples),
		MorphRate:       c.MorphRate,
	}
}

// Current returns the published texture of a variable or static.
func (s *Simulation) Current(name string) (Texture, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if t, ok := s.statics[name]; ok {
		return t, nil
	}
	if pp, ok := s.targets[name]; ok {
		return pp.Current(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownVariable, name)
}

// Target returns the ping-pong pair of a variable.
func (s *Simulation) Target(name string) (*PingPong, error) {
	if pp, ok := s.targets[name]; ok {
		return pp, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownVariable, name)
}

// Read copies the current texture of name back to the CPU. It blocks
// until the GPU is idle and is meant for debugging and snapshots.
func (s *Simulation) Read(name string) (Texels, error) {
	t, err := s.Current(name)
	if err != nil {
		return nil, err
	}
	data, err := s.dev.Read(t)
	if err != nil {
		return nil, fmt.Errorf("particles: read %q: %w", name, err)
	}
	return Texels(data), nil
}

// Layout returns the particle layout.
func (s *Simulation) Layout() Layout { return s.layout }

// Order returns variable names in pass order.
func (s *Simulation) Order() []string { return s.graph.Order() }

// Config returns the configuration the simulation was built with.
func (s *Simulation) Config() Config { return s.cfg }

// Device returns the device the simulation runs on.
func (s *Simulation) Device() Device { return s.dev }

// Stats returns a snapshot of the simulation.
func (s *Simulation) Stats() Stats {
	return Stats{
		Ticks:  s.ticks,
		Count:  s.layout.Count(),
		Side:   s.layout.Side(),
		Passes: len(s.passes),
		Device: s.dev.Name(),
		Failed: s.failed != nil,
	}
}

// Close destroys the simulation's textures and draw passes. The device
// stays open. Close is idempotent.
func (s *Simulation) Close() {
	if s.closed {
		return
	}
	s.closed = true
	for len(s.draws) > 0 {
		s.draws[0].Destroy()
	}
	s.destroyTextures()
	s.cfg.metrics.forget(s.cfg.metricsName)
}
