package particles

import (
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/particles/internal/compute"
	"github.com/gogpu/particles/internal/gpu"
	"github.com/gogpu/particles/internal/reference"
)

// Mesh selects the geometry drawn per particle.
type Mesh = compute.Mesh

// Meshes.
const (
	// MeshBox is a 0.1×0.5×0.1 box oriented along velocity.
	MeshBox = compute.MeshBox
	// MeshPoint is one point per particle.
	MeshPoint = compute.MeshPoint
)

// DrawTarget receives a draw. A GPU device accepts *FrameTarget and the
// reference device accepts *ImageTarget.
type DrawTarget = compute.DrawTarget

// FrameTarget wraps the host's color and depth views for a GPU draw.
type FrameTarget = gpu.FrameTarget

// ImageTarget wraps an *image.RGBA for reference draws.
type ImageTarget = reference.ImageTarget

// DrawConfig configures a DrawPass.
type DrawConfig struct {
	// ColorFormat and DepthFormat describe the host's attachments. An
	// undefined DepthFormat draws without depth testing.
	ColorFormat gputypes.TextureFormat
	DepthFormat gputypes.TextureFormat

	Mesh  Mesh
	Color mgl32.Vec3
	Scale float32

	// Position names the variable whose texture places instances.
	// Velocity orients them and may be empty.
	Position string
	Velocity string
}

// DefaultDrawConfig returns blue boxes into a BGRA8 target with a
// Depth32Float buffer.
func DefaultDrawConfig() DrawConfig {
	return DrawConfig{
		ColorFormat: gputypes.TextureFormatBGRA8Unorm,
		DepthFormat: gputypes.TextureFormatDepth32Float,
		Mesh:        MeshBox,
		Color:       mgl32.Vec3{0, float32(0x40) / 255, float32(0xc0) / 255},
		Scale:       1,
		Position:    "position",
		Velocity:    "velocity",
	}
}

// DrawPass draws every live particle of a simulation with one instanced
// draw. It only reads the simulation's current textures.
type DrawPass struct {
	sim    *Simulation
	cfg    DrawConfig
	drawer compute.Drawer
}

// NewDrawPass creates the draw pipeline and uploads the lookup buffer.
// The pass is destroyed with the simulation if not destroyed earlier.
func (s *Simulation) NewDrawPass(cfg DrawConfig) (*DrawPass, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if _, ok := s.targets[cfg.Position]; !ok {
		return nil, fmt.Errorf("%w: draw position %q", ErrUnknownVariable, cfg.Position)
	}
	if cfg.Velocity != "" {
		if _, ok := s.targets[cfg.Velocity]; !ok {
			return nil, fmt.Errorf("%w: draw velocity %q", ErrUnknownVariable, cfg.Velocity)
		}
	}
	if cfg.Scale <= 0 {
		cfg.Scale = 1
	}
	dr, err := s.dev.NewDrawer(compute.DrawSpec{
		Label:       "particles_draw",
		ColorFormat: cfg.ColorFormat,
		DepthFormat: cfg.DepthFormat,
		Mesh:        cfg.Mesh,
		Lookup:      s.layout.LookupCoords(),
		Count:       s.layout.Count(),
		Side:        s.layout.Side(),
	})
	if err != nil {
		return nil, fmt.Errorf("particles: create draw pass: %w", err)
	}
	p := &DrawPass{sim: s, cfg: cfg, drawer: dr}
	s.draws = append(s.draws, p)
	return p, nil
}

// Record draws the current state into target.
func (p *DrawPass) Record(target DrawTarget, viewProj mgl32.Mat4) error {
	if p.drawer == nil || p.sim.closed {
		return ErrClosed
	}
	pos, err := p.sim.Current(p.cfg.Position)
	if err != nil {
		return err
	}
	frame := compute.DrawFrame{
		Position: pos,
		ViewProj: viewProj,
		Color:    p.cfg.Color,
		Scale:    p.cfg.Scale,
	}
	if p.cfg.Velocity != "" {
		if frame.Velocity, err = p.sim.Current(p.cfg.Velocity); err != nil {
			return err
		}
	}
	return p.drawer.Draw(target, frame)
}

// InstanceCount returns the number of instances each draw issues: the
// live particle count, never the texture's slot count.
func (p *DrawPass) InstanceCount() int {
	if p.drawer == nil {
		return 0
	}
	return p.drawer.InstanceCount()
}

// Destroy releases the draw pipeline.
func (p *DrawPass) Destroy() {
	if p.drawer == nil {
		return
	}
	p.drawer.Destroy()
	p.drawer = nil
	if i := slices.Index(p.sim.draws, p); i >= 0 {
		p.sim.draws = slices.Delete(p.sim.draws, i, i+1)
	}
}

// ViewProjection returns the camera of the demo: a 45° perspective
// looking at the origin from (0, 0, 40).
func ViewProjection(aspect float32) mgl32.Mat4 {
	proj := mgl32.Perspective(mgl32.DegToRad(45), aspect, 0.1, 1000)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 40}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	return proj.Mul4(view)
}
