package main

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/particles"
)

var (
	background = color.RGBA{R: 8, G: 10, B: 18, A: 255}
	hudColor   = color.RGBA{R: 230, G: 230, B: 230, A: 255}
	pointColor = color.RGBA{R: 0, G: 0x40, B: 0xc0, A: 255}
)

// snapshotter renders frames of a simulation to images. On the reference
// device it records the draw pass into the image; otherwise it reads the
// position texture back and plots one pixel per particle.
type snapshotter struct {
	sim      *particles.Simulation
	img      *image.RGBA
	pass     *particles.DrawPass
	viewProj mgl32.Mat4
	out      *message.Printer
}

func newSnapshotter(sim *particles.Simulation, size int) (*snapshotter, error) {
	s := &snapshotter{
		sim:      sim,
		img:      image.NewRGBA(image.Rect(0, 0, size, size)),
		viewProj: particles.ViewProjection(1),
		out:      message.NewPrinter(language.English),
	}
	if sim.Device().Name() == "reference" {
		cfg := particles.DefaultDrawConfig()
		if _, err := sim.Target(cfg.Velocity); err != nil {
			cfg.Velocity = ""
		}
		dp, err := sim.NewDrawPass(cfg)
		if err != nil {
			return nil, err
		}
		s.pass = dp
	}
	return s, nil
}

func (s *snapshotter) render(frame int) error {
	if s.pass != nil {
		target := &particles.ImageTarget{Image: s.img, Clear: true, Background: background}
		if err := s.pass.Record(target, s.viewProj); err != nil {
			return err
		}
	} else if err := s.plot(); err != nil {
		return err
	}
	s.label(s.hud(frame))
	return nil
}

// plot projects every live particle with the demo camera.
func (s *snapshotter) plot() error {
	pos, err := s.sim.Read("position")
	if err != nil {
		return err
	}
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	size := float32(s.img.Bounds().Dx())
	for i := range s.sim.Layout().Count() {
		clip := s.viewProj.Mul4x1(pos.At(i).Vec3().Vec4(1))
		if clip.W() <= 0 {
			continue
		}
		ndc := clip.Vec3().Mul(1 / clip.W())
		x := int((ndc.X()*0.5 + 0.5) * size)
		y := int((0.5 - ndc.Y()*0.5) * size)
		s.img.SetRGBA(x, y, pointColor)
	}
	return nil
}

// hud formats the frame number, particle count and mean speed.
func (s *snapshotter) hud(frame int) string {
	n := s.sim.Layout().Count()
	vel, err := s.sim.Read("velocity")
	if err != nil {
		return s.out.Sprintf("frame %d  particles %d", frame, n)
	}
	var sum float64
	for i := range n {
		sum += float64(vel.At(i).Vec3().Len())
	}
	return s.out.Sprintf("frame %d  particles %d  mean speed %.3f", frame, n, sum/float64(n))
}

func (s *snapshotter) label(text string) {
	d := &font.Drawer{
		Dst:  s.img,
		Src:  image.NewUniform(hudColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(8, 8+basicfont.Face7x13.Ascent),
	}
	d.DrawString(text)
}

// snapshot renders frame and returns a copy the caller may keep while
// the next frame renders.
func (s *snapshotter) snapshot(frame int) (*image.RGBA, error) {
	if err := s.render(frame); err != nil {
		return nil, err
	}
	out := image.NewRGBA(s.img.Bounds())
	copy(out.Pix, s.img.Pix)
	return out, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
