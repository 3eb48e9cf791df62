// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package reference

import (
	"image"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/particles/internal/compute"
)

// ImageTarget receives reference draws. Particles are splatted as small
// depth-tested squares.
type ImageTarget struct {
	Image *image.RGBA

	// Clear fills the image with Background before drawing.
	Clear      bool
	Background color.RGBA

	depth []float32
}

// TargetKind implements compute.DrawTarget.
func (*ImageTarget) TargetKind() string { return "image" }

type drawer struct {
	dev  *Device
	spec compute.DrawSpec
}

func (dr *drawer) InstanceCount() int { return dr.spec.Count }

func (dr *drawer) Destroy() {}

// halfHeight is half the box mesh's long axis; the splat radius is its
// projected size.
const halfHeight = 0.25

func (dr *drawer) Draw(target compute.DrawTarget, f compute.DrawFrame) error {
	t, ok := target.(*ImageTarget)
	if !ok || t.Image == nil {
		return compute.ErrTargetMismatch
	}
	pos, err := dr.dev.own(f.Position)
	if err != nil {
		return err
	}
	var vel *texture
	if f.Velocity != nil {
		if vel, err = dr.dev.own(f.Velocity); err != nil {
			return err
		}
	}

	b := t.Image.Bounds()
	w, h := b.Dx(), b.Dy()
	if len(t.depth) != w*h {
		t.depth = make([]float32, w*h)
	}
	for i := range t.depth {
		t.depth[i] = math.MaxFloat32
	}
	if t.Clear {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				t.Image.SetRGBA(x, y, t.Background)
			}
		}
	}

	side := float32(dr.spec.Side)
	focal := f.ViewProj[5]
	for i := range dr.spec.Count {
		tx := int(dr.spec.Lookup[i*2]*side + 0.5)
		ty := int(dr.spec.Lookup[i*2+1]*side + 0.5)
		p := pos.plane.Load(tx, ty)

		clip := f.ViewProj.Mul4x1(p.Vec3().Vec4(1))
		cw := clip.W()
		if cw <= 0 {
			continue
		}
		ndc := clip.Vec3().Mul(1 / cw)
		if ndc.X() < -1 || ndc.X() > 1 || ndc.Y() < -1 || ndc.Y() > 1 || ndc.Z() < -1 || ndc.Z() > 1 {
			continue
		}

		shade := float32(1)
		if vel != nil {
			v := vel.plane.Load(tx, ty).Vec3()
			if l := v.Len(); l > 1e-6 {
				shade = 0.35 + 0.65*float32(math.Abs(float64(v.Y()/l)))
			}
		}
		c := color.RGBA{
			R: channel(f.Color.X() * shade),
			G: channel(f.Color.Y() * shade),
			B: channel(f.Color.Z() * shade),
			A: 255,
		}

		px := b.Min.X + int((ndc.X()*0.5+0.5)*float32(w))
		py := b.Min.Y + int((0.5-ndc.Y()*0.5)*float32(h))
		r := int(halfHeight * f.Scale * focal / cw * float32(h) * 0.5)
		splat(t, px, py, max(r, 0), ndc.Z(), c)
	}
	return nil
}

func splat(t *ImageTarget, cx, cy, r int, z float32, c color.RGBA) {
	b := t.Image.Bounds()
	w := b.Dx()
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			if !(image.Point{X: x, Y: y}).In(b) {
				continue
			}
			di := (y-b.Min.Y)*w + (x - b.Min.X)
			if z >= t.depth[di] {
				continue
			}
			t.depth[di] = z
			t.Image.SetRGBA(x, y, c)
		}
	}
}

func channel(v float32) uint8 {
	return uint8(mgl32.Clamp(v, 0, 1)*255 + 0.5)
}
