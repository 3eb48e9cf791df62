package particles

import (
	"errors"
	"fmt"

	"github.com/gogpu/particles/internal/compute"
)

var errNotWritten = errors.New("particles: swap before write")

// PingPong is the pair of state textures of one variable. Current is
// read by passes and the draw; Next is the write target of the variable's
// pass. The roles flip on Swap.
type PingPong struct {
	name    string
	tex     [2]compute.Texture
	cur     int
	written bool
}

func newPingPong(dev compute.Device, name string, side int) (*PingPong, error) {
	p := &PingPong{name: name}
	for i := range p.tex {
		t, err := dev.CreateTexture(fmt.Sprintf("%s[%d]", name, i), side)
		if err != nil {
			p.destroy(dev)
			return nil, fmt.Errorf("particles: create target %q: %w", name, err)
		}
		p.tex[i] = t
	}
	return p, nil
}

// Name returns the variable name.
func (p *PingPong) Name() string { return p.name }

// Current returns the texture holding the latest published state.
func (p *PingPong) Current() Texture { return p.tex[p.cur] }

// Next returns the texture the next pass writes.
func (p *PingPong) Next() Texture { return p.tex[1-p.cur] }

func (p *PingPong) markWritten() { p.written = true }

// Swap publishes Next as Current. It fails unless Next was written since
// the last swap.
func (p *PingPong) Swap() error {
	if !p.written {
		return fmt.Errorf("%w: %q", errNotWritten, p.name)
	}
	p.cur = 1 - p.cur
	p.written = false
	return nil
}

func (p *PingPong) destroy(dev compute.Device) {
	for i, t := range p.tex {
		if t != nil {
			dev.DestroyTexture(t)
			p.tex[i] = nil
		}
	}
}
