package particles

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

func flockVars() []Variable {
	return []Variable{
		{Name: "position", Kind: Position, Kernel: KernelIntegrate,
			Inputs: []Input{{Name: "position"}, {Name: "velocity", SameFrame: true}}},
		{Name: "velocity", Kind: Velocity, Kernel: KernelSteer,
			Inputs: []Input{{Name: "velocity"}, {Name: "position"}}},
	}
}

func TestGraphOrderFollowsSameFrameEdges(t *testing.T) {
	g, err := NewGraph(flockVars(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := g.Order(), []string{"velocity", "position"}; !slices.Equal(got, want) {
		t.Errorf("Order() = %v, want %v", got, want)
	}
}

func TestGraphOrderKeepsDeclarationTies(t *testing.T) {
	vars := []Variable{
		{Name: "b", Kernel: KernelIntegrate, Inputs: []Input{{Name: "b"}, {Name: "a"}}},
		{Name: "a", Kernel: KernelIntegrate, Inputs: []Input{{Name: "a"}, {Name: "b"}}},
		{Name: "c", Kernel: KernelIntegrate, Inputs: []Input{{Name: "c"}, {Name: "a", SameFrame: true}}},
	}
	g, err := NewGraph(vars, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := g.Order(), []string{"b", "a", "c"}; !slices.Equal(got, want) {
		t.Errorf("Order() = %v, want %v", got, want)
	}
}

func TestGraphRejectsCycle(t *testing.T) {
	vars := []Variable{
		{Name: "a", Kernel: KernelIntegrate, Inputs: []Input{{Name: "a"}, {Name: "b", SameFrame: true}}},
		{Name: "b", Kernel: KernelIntegrate, Inputs: []Input{{Name: "b"}, {Name: "c", SameFrame: true}}},
		{Name: "c", Kernel: KernelIntegrate, Inputs: []Input{{Name: "c"}, {Name: "a", SameFrame: true}}},
		{Name: "d", Kernel: KernelIntegrate, Inputs: []Input{{Name: "d"}, {Name: "a"}}},
	}
	_, err := NewGraph(vars, nil)
	if !errors.Is(err, ErrDependencyCycle) {
		t.Fatalf("error = %v, want ErrDependencyCycle", err)
	}
	if !strings.Contains(err.Error(), "a -> b -> c -> a") {
		t.Errorf("error %q does not name the cycle", err)
	}
}

func TestGraphValidation(t *testing.T) {
	static := []Static{{Name: "goal", Seed: Sphere(1)}}
	tests := []struct {
		name    string
		vars    []Variable
		wantErr error
	}{
		{"empty", nil, ErrInvalidConfig},
		{"unnamed", []Variable{{Kernel: KernelIntegrate, Inputs: []Input{{Name: "x"}, {Name: "x"}}}}, ErrInvalidConfig},
		{"duplicate", []Variable{
			{Name: "p", Kernel: KernelIntegrate, Inputs: []Input{{Name: "p"}, {Name: "p"}}},
			{Name: "p", Kernel: KernelIntegrate, Inputs: []Input{{Name: "p"}, {Name: "p"}}},
		}, ErrDuplicateVariable},
		{"shadows static", []Variable{
			{Name: "goal", Kernel: KernelIntegrate, Inputs: []Input{{Name: "goal"}, {Name: "goal"}}},
		}, ErrDuplicateVariable},
		{"unknown input", []Variable{
			{Name: "p", Kernel: KernelIntegrate, Inputs: []Input{{Name: "p"}, {Name: "v"}}},
		}, ErrUnknownVariable},
		{"arity", []Variable{
			{Name: "p", Kernel: KernelMorph, Inputs: []Input{{Name: "p"}, {Name: "goal"}}},
		}, ErrKernelArity},
		{"self same frame", []Variable{
			{Name: "p", Kernel: KernelIntegrate, Inputs: []Input{{Name: "p", SameFrame: true}, {Name: "goal"}}},
		}, ErrDependencyCycle},
		{"static same frame", []Variable{
			{Name: "p", Kernel: KernelIntegrate, Inputs: []Input{{Name: "p"}, {Name: "goal", SameFrame: true}}},
		}, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGraph(tt.vars, static); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGraphUnknownKernel(t *testing.T) {
	_, err := NewGraph([]Variable{{Name: "p", Kernel: Kernel(77)}}, nil)
	if err == nil || !strings.Contains(err.Error(), "unknown kernel") {
		t.Errorf("error = %v, want unknown kernel", err)
	}
}
