package particles

import (
	"errors"
	"math"
	"testing"
)

func TestOptionsApply(t *testing.T) {
	m := NewMetrics()
	cfg := DefaultConfig()
	for _, o := range []Option{
		WithSide(32),
		WithBound(5),
		WithSeedSize(3),
		WithDistribution(DistributionSphere),
		WithMaxSpeed(2),
		WithMaxForce(0.25),
		WithBoundary(BoundaryWrap),
		WithFlocking(1, 2, 3, 4, 5),
		WithAttraction(0.5),
		WithBehavior(BehaviorMorph),
		WithMorphRate(2),
		WithRandomSeed(7),
		WithVelocitySeed(true),
		WithMetrics(m, "sim"),
	} {
		o(&cfg)
	}

	want := Config{
		Count:           1024,
		Bound:           5,
		SeedSize:        3,
		Distribution:    DistributionSphere,
		MaxSpeed:        2,
		MaxForce:        0.25,
		Boundary:        BoundaryWrap,
		Flocking:        Flocking{Separation: 1, Cohesion: 2, Alignment: 3, Radius: 4, Samples: 5},
		AttractStrength: 0.5,
		Behavior:        BehaviorMorph,
		MorphRate:       2,
		RandomSeed:      7,
		SeedVelocity:    true,
		metrics:         m,
		metricsName:     "sim",
	}
	if cfg != want {
		t.Errorf("config = %+v\nwant %+v", cfg, want)
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig invalid: %v", err)
	}
	if cfg.Count != 128*128 || cfg.Bound != 10 || cfg.SeedSize != 10 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	nan := float32(math.NaN())
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"zero count", func(c *Config) { c.Count = 0 }, ErrInvalidCount},
		{"negative count", func(c *Config) { c.Count = -4 }, ErrInvalidCount},
		{"zero bound", func(c *Config) { c.Bound = 0 }, ErrInvalidConfig},
		{"negative speed", func(c *Config) { c.MaxSpeed = -1 }, ErrInvalidConfig},
		{"nan force", func(c *Config) { c.MaxForce = nan }, ErrInvalidConfig},
		{"negative samples", func(c *Config) { c.Flocking.Samples = -1 }, ErrInvalidConfig},
		{"unknown boundary", func(c *Config) { c.Boundary = 9 }, ErrInvalidConfig},
		{"unknown distribution", func(c *Config) { c.Distribution = 9 }, ErrInvalidConfig},
		{"unknown behavior", func(c *Config) { c.Behavior = 9 }, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Count = 0
	cfg.MaxSpeed = -1
	err := cfg.Validate()
	if !errors.Is(err, ErrInvalidCount) || !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Validate() = %v, want both errors", err)
	}
}

func TestParseNames(t *testing.T) {
	for _, b := range []Boundary{BoundaryClamp, BoundaryWrap} {
		if got, err := ParseBoundary(b.String()); err != nil || got != b {
			t.Errorf("ParseBoundary(%q) = %v, %v", b, got, err)
		}
	}
	for _, d := range []Distribution{DistributionVolume, DistributionSphere} {
		if got, err := ParseDistribution(d.String()); err != nil || got != d {
			t.Errorf("ParseDistribution(%q) = %v, %v", d, got, err)
		}
	}
	for _, b := range []Behavior{BehaviorFlock, BehaviorMorph} {
		if got, err := ParseBehavior(b.String()); err != nil || got != b {
			t.Errorf("ParseBehavior(%q) = %v, %v", b, got, err)
		}
	}
	if _, err := ParseBoundary("bounce"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("ParseBoundary(bounce) = %v", err)
	}
	if got := Boundary(7).String(); got != "Boundary(7)" {
		t.Errorf("String() = %q", got)
	}
}
