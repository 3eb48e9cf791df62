package particles

import (
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"
)

// sphereAttempts caps the rejection loop of SeedSphere. Each attempt is
// accepted with probability about 0.52.
const sphereAttempts = 64

// Generator produces the xyz of one live seed record.
type Generator func(r *rand.Rand) mgl32.Vec3

// SeedVolume returns a point with each component uniform in
// [-size/2, size/2].
func SeedVolume(r *rand.Rand, size float32) mgl32.Vec3 {
	return mgl32.Vec3{
		r.Float32()*size - size/2,
		r.Float32()*size - size/2,
		r.Float32()*size - size/2,
	}
}

// SeedSphere returns a point on the sphere of radius size. A point drawn
// from [-1, 1]³ is rejected when it lies outside the unit ball or too
// close to the origin to normalize; after sphereAttempts rejections the
// +X axis is used.
func SeedSphere(r *rand.Rand, size float32) mgl32.Vec3 {
	for range sphereAttempts {
		v := mgl32.Vec3{r.Float32()*2 - 1, r.Float32()*2 - 1, r.Float32()*2 - 1}
		l := v.Len()
		if l > 1 || l < 1e-6 {
			continue
		}
		return v.Mul(size / l)
	}
	return mgl32.Vec3{size, 0, 0}
}

// Volume returns a generator for SeedVolume.
func Volume(size float32) Generator {
	return func(r *rand.Rand) mgl32.Vec3 { return SeedVolume(r, size) }
}

// Sphere returns a generator for SeedSphere.
func Sphere(size float32) Generator {
	return func(r *rand.Rand) mgl32.Vec3 { return SeedSphere(r, size) }
}

// Zero returns a generator of zero vectors.
func Zero() Generator {
	return func(*rand.Rand) mgl32.Vec3 { return mgl32.Vec3{} }
}

// Fill builds the seed texels of a layout: live slots get gen's value and
// w=1, inert slots stay zero. A nil generator yields zero records with
// w=1.
func Fill(l Layout, r *rand.Rand, gen Generator) Texels {
	out := make(Texels, l.Slots()*4)
	for i := range l.Count() {
		var v mgl32.Vec3
		if gen != nil {
			v = gen(r)
		}
		copy(out[i*4:], v[:])
		out[i*4+3] = 1
	}
	return out
}

// newRand returns the PCG generator seeded for a simulation.
func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
