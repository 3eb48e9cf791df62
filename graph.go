package particles

import (
	"fmt"
	"strings"

	"github.com/gogpu/particles/internal/kernels"
)

// Kernel identifies an update kernel.
type Kernel = kernels.ID

// Update kernels.
const (
	// KernelSteer writes velocity. Inputs: [velocity, position].
	KernelSteer = kernels.Steer
	// KernelIntegrate writes position. Inputs: [position, velocity].
	KernelIntegrate = kernels.Integrate
	// KernelMorph writes position. Inputs: [position, from, to].
	KernelMorph = kernels.Morph
)

// Input names a texture a variable's kernel reads.
type Input struct {
	Name string

	// SameFrame reads the texture the named variable writes earlier in
	// the same tick instead of its current texture.
	SameFrame bool
}

// Variable declares one ping-pong state variable.
type Variable struct {
	Name   string
	Kind   StateKind
	Kernel Kernel
	Inputs []Input

	// Seed produces the initial records. Nil seeds zero vectors.
	Seed Generator
}

// Static declares a read-only texture uploaded once at construction.
type Static struct {
	Name string
	Seed Generator
}

// Graph is a validated set of declarations and the order their passes
// run in.
type Graph struct {
	vars    []Variable
	statics []Static
	index   map[string]int
	static  map[string]int
	order   []int
}

// NewGraph validates the declarations and orders the passes so that every
// same-frame input is written before it is read. Ties keep declaration
// order.
func NewGraph(vars []Variable, statics []Static) (*Graph, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("%w: no variables", ErrInvalidConfig)
	}
	g := &Graph{
		vars:    vars,
		statics: statics,
		index:   make(map[string]int, len(vars)),
		static:  make(map[string]int, len(statics)),
	}
	seen := func(name string) error {
		if name == "" {
			return fmt.Errorf("%w: empty variable name", ErrInvalidConfig)
		}
		_, v := g.index[name]
		_, s := g.static[name]
		if v || s {
			return fmt.Errorf("%w: %q", ErrDuplicateVariable, name)
		}
		return nil
	}
	for i, s := range statics {
		if err := seen(s.Name); err != nil {
			return nil, err
		}
		g.static[s.Name] = i
	}
	for i, v := range vars {
		if err := seen(v.Name); err != nil {
			return nil, err
		}
		g.index[v.Name] = i
	}

	for _, v := range vars {
		spec, err := kernels.Lookup(v.Kernel)
		if err != nil {
			return nil, fmt.Errorf("particles: variable %q: %w", v.Name, err)
		}
		if len(v.Inputs) != spec.Arity() {
			return nil, fmt.Errorf("%w: %q has %d inputs, %s takes %d",
				ErrKernelArity, v.Name, len(v.Inputs), v.Kernel, spec.Arity())
		}
		for _, in := range v.Inputs {
			_, isVar := g.index[in.Name]
			_, isStatic := g.static[in.Name]
			switch {
			case !isVar && !isStatic:
				return nil, fmt.Errorf("%w: %q reads %q", ErrUnknownVariable, v.Name, in.Name)
			case in.SameFrame && isStatic:
				return nil, fmt.Errorf("%w: %q reads static %q as same-frame", ErrInvalidConfig, v.Name, in.Name)
			case in.SameFrame && in.Name == v.Name:
				return nil, fmt.Errorf("%w: %s -> %s", ErrDependencyCycle, v.Name, v.Name)
			}
		}
	}

	order, err := g.sort()
	if err != nil {
		return nil, err
	}
	g.order = order
	return g, nil
}

// sort is Kahn's algorithm over same-frame edges. The ready variable with
// the lowest declaration index runs first.
func (g *Graph) sort() ([]int, error) {
	n := len(g.vars)
	indeg := make([]int, n)
	readers := make([][]int, n)
	for i, v := range g.vars {
		for _, in := range v.Inputs {
			if !in.SameFrame {
				continue
			}
			dep := g.index[in.Name]
			indeg[i]++
			readers[dep] = append(readers[dep], i)
		}
	}

	order := make([]int, 0, n)
	done := make([]bool, n)
	for len(order) < n {
		next := -1
		for i := range n {
			if !done[i] && indeg[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, fmt.Errorf("%w: %s", ErrDependencyCycle, g.cycle(done))
		}
		done[next] = true
		order = append(order, next)
		for _, r := range readers[next] {
			indeg[r]--
		}
	}
	return order, nil
}

// cycle walks same-frame inputs among the unsorted variables until a
// name repeats and returns the loop as "a -> b -> a", where each name
// reads the next.
func (g *Graph) cycle(done []bool) string {
	start := 0
	for done[start] {
		start++
	}
	pos := map[int]int{}
	var path []int
	for cur := start; ; {
		if at, ok := pos[cur]; ok {
			names := make([]string, 0, len(path)-at+1)
			for _, i := range path[at:] {
				names = append(names, g.vars[i].Name)
			}
			names = append(names, g.vars[cur].Name)
			return strings.Join(names, " -> ")
		}
		pos[cur] = len(path)
		path = append(path, cur)
		for _, in := range g.vars[cur].Inputs {
			if dep := g.index[in.Name]; in.SameFrame && !done[dep] {
				cur = dep
				break
			}
		}
	}
}

// Order returns variable names in pass order.
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	for i, vi := range g.order {
		out[i] = g.vars[vi].Name
	}
	return out
}

// Variables returns the declarations in declaration order.
func (g *Graph) Variables() []Variable { return g.vars }

// Statics returns the static declarations.
func (g *Graph) Statics() []Static { return g.statics }
