package main

import (
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/particles"
)

func TestRunWritesSnapshots(t *testing.T) {
	dir := t.TempDir()
	o := options{
		count:    500,
		frames:   10,
		delta:    1.0 / 60,
		behavior: "flock",
		boundary: "wrap",
		dist:     "sphere",
		out:      dir,
		every:    4,
		size:     64,
	}
	if err := run(context.Background(), o); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"frame_00004.png", "frame_00008.png", "frame_00010.png"} {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		img, err := png.Decode(f)
		f.Close()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if img.Bounds().Dx() != 64 {
			t.Errorf("%s width = %d", name, img.Bounds().Dx())
		}
	}
}

func TestRunRejectsBadFlags(t *testing.T) {
	base := options{count: 10, frames: 1, delta: 0.1, behavior: "flock", boundary: "clamp", dist: "volume", every: 1, size: 8}
	tests := []struct {
		name   string
		mutate func(*options)
	}{
		{"behavior", func(o *options) { o.behavior = "swarm" }},
		{"boundary", func(o *options) { o.boundary = "bounce" }},
		{"dist", func(o *options) { o.dist = "torus" }},
		{"every", func(o *options) { o.every = 0 }},
		{"count", func(o *options) { o.count = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := base
			o.out = t.TempDir()
			tt.mutate(&o)
			if err := run(context.Background(), o); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestHUDFormatsCounts(t *testing.T) {
	dev := particles.NewReferenceDevice(1)
	defer dev.Close()
	sim, err := particles.New(dev, particles.WithCount(1500))
	if err != nil {
		t.Fatal(err)
	}
	defer sim.Close()
	s, err := newSnapshotter(sim, 32)
	if err != nil {
		t.Fatal(err)
	}
	got := s.hud(7)
	if !strings.HasPrefix(got, "frame 7  particles 1,500  mean speed 0.000") {
		t.Errorf("hud = %q", got)
	}

	morph, err := particles.New(dev, particles.WithCount(4), particles.WithBehavior(particles.BehaviorMorph))
	if err != nil {
		t.Fatal(err)
	}
	defer morph.Close()
	ms, err := newSnapshotter(morph, 16)
	if err != nil {
		t.Fatal(err)
	}
	if got := ms.hud(1); got != "frame 1  particles 4" {
		t.Errorf("morph hud = %q", got)
	}
}

func TestStopKeepsWriterErrors(t *testing.T) {
	errTick := errors.New("tick failed")
	errWrite := errors.New("write failed")
	var g errgroup.Group
	g.Go(func() error { return errWrite })
	err := stop(&g, errTick)
	if !errors.Is(err, errTick) || !errors.Is(err, errWrite) {
		t.Errorf("stop() = %v, want both the tick and writer errors", err)
	}

	var idle errgroup.Group
	if err := stop(&idle, errTick); !errors.Is(err, errTick) {
		t.Errorf("stop() with idle writers = %v", err)
	}
}
