package particles

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestDrawPassInstanceCountNonSquare(t *testing.T) {
	sim := newSim(t, WithCount(1000))
	if sim.Layout().Slots() != 1024 {
		t.Fatalf("slots = %d", sim.Layout().Slots())
	}
	dp, err := sim.NewDrawPass(DefaultDrawConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer dp.Destroy()
	if got := dp.InstanceCount(); got != 1000 {
		t.Errorf("InstanceCount() = %d, want 1000", got)
	}
}

func TestDrawPassRecordsWithoutTicking(t *testing.T) {
	sim := newSim(t, WithCount(200), WithVelocitySeed(true))
	dp, err := sim.NewDrawPass(DefaultDrawConfig())
	if err != nil {
		t.Fatal(err)
	}
	before := mustRead(t, sim, "position")
	cur, _ := sim.Current("position")

	img := image.NewRGBA(image.Rect(0, 0, 96, 96))
	target := &ImageTarget{Image: img, Clear: true, Background: color.RGBA{A: 255}}
	for range 3 {
		if err := dp.Record(target, ViewProjection(1)); err != nil {
			t.Fatal(err)
		}
	}

	drawn := 0
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i+2] > 0 {
			drawn++
		}
	}
	if drawn == 0 {
		t.Error("no particle was drawn")
	}
	after, _ := sim.Current("position")
	if after != cur || sim.Stats().Ticks != 0 {
		t.Error("draw advanced the simulation")
	}
	for i, v := range mustRead(t, sim, "position") {
		if v != before[i] {
			t.Fatal("draw modified position state")
		}
	}
}

func TestDrawPassValidation(t *testing.T) {
	sim := newSim(t, WithCount(16), WithBehavior(BehaviorMorph))
	if _, err := sim.NewDrawPass(DefaultDrawConfig()); !errors.Is(err, ErrUnknownVariable) {
		t.Errorf("morph with velocity = %v, want ErrUnknownVariable", err)
	}
	cfg := DefaultDrawConfig()
	cfg.Velocity = ""
	cfg.Mesh = MeshPoint
	dp, err := sim.NewDrawPass(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := dp.Record(nil, ViewProjection(1)); !errors.Is(err, ErrTargetMismatch) {
		t.Errorf("Record(nil) = %v, want ErrTargetMismatch", err)
	}
}

func TestDrawPassDestroyedWithSimulation(t *testing.T) {
	dev := NewReferenceDevice(1)
	defer dev.Close()
	sim, err := New(dev, WithCount(4))
	if err != nil {
		t.Fatal(err)
	}
	dp, err := sim.NewDrawPass(DefaultDrawConfig())
	if err != nil {
		t.Fatal(err)
	}
	sim.Close()
	if dp.InstanceCount() != 0 {
		t.Error("draw pass survived Close")
	}
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	if err := dp.Record(&ImageTarget{Image: img}, ViewProjection(1)); !errors.Is(err, ErrClosed) {
		t.Errorf("Record after Close = %v, want ErrClosed", err)
	}
	dp.Destroy()
}
