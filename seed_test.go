package particles

import (
	"math"
	"math/rand/v2"
	"slices"
	"testing"
)

func TestSeedVolumeRange(t *testing.T) {
	r := newRand(1)
	const size = 10
	var sum [3]float64
	for range 10000 {
		v := SeedVolume(r, size)
		for c := range 3 {
			if v[c] < -size/2 || v[c] > size/2 {
				t.Fatalf("component %v outside [-5, 5]", v)
			}
			sum[c] += float64(v[c])
		}
	}
	for c, s := range sum {
		if mean := s / 10000; math.Abs(mean) > 0.2 {
			t.Errorf("axis %d mean %v, want about 0", c, mean)
		}
	}
}

func TestSeedSphereRadius(t *testing.T) {
	r := newRand(2)
	const size = 10
	for range 10000 {
		v := SeedSphere(r, size)
		if l := v.Len(); math.Abs(float64(l-size)) > 1e-4 {
			t.Fatalf("length %v, want %v", l, size)
		}
	}
}

// constSource always yields the same 64 bits.
type constSource uint64

func (c constSource) Uint64() uint64 { return uint64(c) }

func TestSeedSphereFallsBackAfterCap(t *testing.T) {
	// All ones maps every component to nearly 1, so |v| is about sqrt(3)
	// and every attempt is rejected.
	r := rand.New(constSource(math.MaxUint64))
	v := SeedSphere(r, 3)
	if v.X() != 3 || v.Y() != 0 || v.Z() != 0 {
		t.Errorf("fallback = %v, want (3, 0, 0)", v)
	}
}

func TestFillMarksLiveSlots(t *testing.T) {
	l, _ := NewLayout(5)
	tx := Fill(l, newRand(3), Volume(2))
	if len(tx) != l.Slots()*4 {
		t.Fatalf("len = %d, want %d", len(tx), l.Slots()*4)
	}
	for i := range l.Slots() {
		rec := tx.At(i)
		if i < l.Count() {
			if rec.W() != 1 {
				t.Errorf("slot %d w = %v, want 1", i, rec.W())
			}
			continue
		}
		if rec != [4]float32{} {
			t.Errorf("inert slot %d = %v, want zero", i, rec)
		}
	}
}

func TestFillDeterministic(t *testing.T) {
	l, _ := NewLayout(100)
	a := Fill(l, newRand(9), Sphere(4))
	b := Fill(l, newRand(9), Sphere(4))
	if !slices.Equal(a, b) {
		t.Error("same seed produced different texels")
	}
	c := Fill(l, newRand(10), Sphere(4))
	if slices.Equal(a, c) {
		t.Error("different seeds produced identical texels")
	}
}

func TestFillZero(t *testing.T) {
	l, _ := NewLayout(3)
	tx := Fill(l, newRand(1), Zero())
	for i := range l.Count() {
		if rec := tx.At(i); rec.Vec3().Len() != 0 || rec.W() != 1 {
			t.Errorf("slot %d = %v", i, rec)
		}
	}
}
