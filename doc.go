// Package particles simulates particles whose state lives in GPU
// textures.
//
// # Overview
//
// Each particle owns one texel of a square RGBA32Float texture per state
// variable: position, velocity, or any variable a custom graph declares.
// Every variable has two textures. A tick renders one full-screen pass
// per variable that reads the current textures of its inputs and writes
// the variable's next texture. After all passes are submitted every
// variable swaps, so readers only ever see complete ticks.
//
// # Quick Start
//
//	dev, err := particles.NewGPUDevice(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dev.Close()
//
//	sim, err := particles.New(dev, particles.WithCount(128*128))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sim.Close()
//
//	draw, err := sim.NewDrawPass(particles.DefaultDrawConfig())
//	...
//	// once per frame
//	sim.Tick(elapsed, delta)
//	draw.Record(&particles.FrameTarget{Color: view, Depth: depth}, viewProj)
//
// # Graphs
//
// New builds a preset graph chosen by WithBehavior. NewWithGraph accepts
// custom Variable and Static declarations. An Input marked SameFrame reads
// what its variable wrote earlier in the same tick, which lets position
// integrate the freshly steered velocity. Same-frame inputs must not form
// a cycle.
//
// # Devices
//
// NewGPUDevice opens a Vulkan adapter and NewGPUDeviceFromProvider shares
// a host's device. NewReferenceDevice runs the same kernels on the CPU and
// is meant for tests and tooling; it is never chosen automatically.
package particles
