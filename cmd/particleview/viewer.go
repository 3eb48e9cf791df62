package main

import (
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/particles"
)

// density maps particles per cell to a glyph.
var density = []rune(" .:-=+*#%@")

// attractorStep is how far one arrow press moves the attractor.
const attractorStep = 1

type viewer struct {
	screen tcell.Screen
	sim    *particles.Simulation
	out    *message.Printer

	paused    bool
	attract   bool
	attractor mgl32.Vec3

	frame   int
	elapsed float32
	counts  []int
}

func newViewer(screen tcell.Screen, sim *particles.Simulation) *viewer {
	return &viewer{
		screen: screen,
		sim:    sim,
		out:    message.NewPrinter(language.English),
	}
}

// step advances the simulation by delta unless paused.
func (v *viewer) step(delta float32) error {
	if v.paused {
		return nil
	}
	v.elapsed += delta
	v.frame++
	if v.attract {
		return v.sim.TickAttract(v.elapsed, delta, v.attractor)
	}
	return v.sim.Tick(v.elapsed, delta)
}

// handle applies one event and reports whether the viewer should quit.
func (v *viewer) handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return true
		case tcell.KeyUp:
			v.moveAttractor(0, attractorStep)
		case tcell.KeyDown:
			v.moveAttractor(0, -attractorStep)
		case tcell.KeyLeft:
			v.moveAttractor(-attractorStep, 0)
		case tcell.KeyRight:
			v.moveAttractor(attractorStep, 0)
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return true
			case ' ':
				v.paused = !v.paused
			case 'c':
				v.attract = false
				v.sim.ClearAttractor()
			}
		}
	case *tcell.EventResize:
		v.screen.Sync()
	}
	return false
}

func (v *viewer) moveAttractor(dx, dy float32) {
	bound := v.sim.Config().Bound
	v.attractor = mgl32.Vec3{
		mgl32.Clamp(v.attractor.X()+dx, -bound, bound),
		mgl32.Clamp(v.attractor.Y()+dy, -bound, bound),
		0,
	}
	v.attract = true
}

// cell projects a world position onto the screen, looking down -Z.
func cell(p mgl32.Vec3, bound float32, w, h int) (int, int) {
	x := int((p.X()/bound*0.5 + 0.5) * float32(w))
	y := int((0.5 - p.Y()/bound*0.5) * float32(h))
	return x, y
}

// render draws the particle density and a status line.
func (v *viewer) render() error {
	pos, err := v.sim.Read("position")
	if err != nil {
		return err
	}
	w, h := v.screen.Size()
	rows := h - 1
	if w <= 0 || rows <= 0 {
		return nil
	}
	if len(v.counts) != w*rows {
		v.counts = make([]int, w*rows)
	}
	clear(v.counts)

	bound := v.sim.Config().Bound
	peak := 0
	for i := range v.sim.Layout().Count() {
		x, y := cell(pos.At(i).Vec3(), bound, w, rows)
		if x < 0 || x >= w || y < 0 || y >= rows {
			continue
		}
		c := &v.counts[y*w+x]
		*c++
		peak = max(peak, *c)
	}

	v.screen.Clear()
	style := tcell.StyleDefault.Foreground(tcell.ColorDodgerBlue)
	for y := range rows {
		for x := range w {
			n := v.counts[y*w+x]
			if n == 0 {
				continue
			}
			g := 1 + (n-1)*(len(density)-2)/max(peak-1, 1)
			v.screen.SetContent(x, y, density[g], nil, style)
		}
	}
	if v.attract {
		if x, y := cell(v.attractor, bound, w, rows); x >= 0 && x < w && y >= 0 && y < rows {
			v.screen.SetContent(x, y, '+', nil, style.Foreground(tcell.ColorRed))
		}
	}

	status := v.out.Sprintf("particles %d  frame %d", v.sim.Layout().Count(), v.frame)
	if v.paused {
		status += "  [paused]"
	}
	status += "  q quit  space pause  arrows attract  c clear"
	for i, r := range []rune(status) {
		if i >= w {
			break
		}
		v.screen.SetContent(i, h-1, r, nil, tcell.StyleDefault.Reverse(true))
	}
	v.screen.Show()
	return nil
}

// run drives the viewer until quit: events are read on their own
// goroutine and frames advance on a ticker.
func (v *viewer) run(frame time.Duration) error {
	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	events := make(chan tcell.Event, 64)
	quit := make(chan struct{})
	defer close(quit)
	go v.screen.ChannelEvents(events, quit)

	delta := float32(frame.Seconds())
	for {
		select {
		case ev, ok := <-events:
			if !ok || v.handle(ev) {
				return nil
			}
		case <-ticker.C:
			if err := v.step(delta); err != nil {
				return err
			}
			if err := v.render(); err != nil {
				return err
			}
		}
	}
}
