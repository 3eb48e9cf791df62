// Command particleview runs a particle simulation on the reference device
// and shows it in the terminal.
//
// Keys: q or Esc quits, space pauses, arrows move the attractor.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/gogpu/particles"
)

func main() {
	var (
		count    = flag.Int("n", 2048, "particle count")
		behavior = flag.String("behavior", "flock", "flock or morph")
		boundary = flag.String("boundary", "clamp", "clamp or wrap")
		workers  = flag.Int("workers", 0, "reference workers (0 = GOMAXPROCS)")
		fps      = flag.Int("fps", 30, "frames per second")
	)
	flag.Parse()

	b, err := particles.ParseBehavior(*behavior)
	if err != nil {
		log.Fatal(err)
	}
	bd, err := particles.ParseBoundary(*boundary)
	if err != nil {
		log.Fatal(err)
	}

	dev := particles.NewReferenceDevice(*workers)
	defer dev.Close()
	sim, err := particles.New(dev,
		particles.WithCount(*count),
		particles.WithBehavior(b),
		particles.WithBoundary(bd),
		particles.WithVelocitySeed(true),
	)
	if err != nil {
		log.Fatalf("Failed to create simulation: %v", err)
	}
	defer sim.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		log.Fatal(err)
	}
	if err := screen.Init(); err != nil {
		log.Fatal(err)
	}
	defer screen.Fini()

	v := newViewer(screen, sim)
	if err := v.run(time.Second / time.Duration(max(*fps, 1))); err != nil {
		screen.Fini()
		log.Fatal(err)
	}
}
