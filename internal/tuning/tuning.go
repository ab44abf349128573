package tuning

import (
	"fmt"
	"math"
	"os"

	"blockphys/internal/physics"
	"blockphys/internal/world"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz"`

	Gravity           []float64 `yaml:"gravity"`
	FloorY            float64   `yaml:"floor_y"`
	KillHeight        float64   `yaml:"kill_height"`
	KillHeightEnabled bool      `yaml:"kill_height_enabled"`
	ForceWake         bool      `yaml:"force_wake"`

	InterpolationTicks int     `yaml:"interpolation_ticks"`
	LinearDamping      float64 `yaml:"linear_damping"`
	AngularDamping     float64 `yaml:"angular_damping"`
	HitboxResolution   float64 `yaml:"hitbox_resolution"`

	Acceleration string `yaml:"acceleration"`
	MaxThreads   int    `yaml:"max_threads"`

	Debug bool `yaml:"debug"`
}

func Default() Tuning {
	return Tuning{
		TickRateHz:         60,
		Gravity:            []float64{0, -17, 0},
		FloorY:             0,
		KillHeight:         -10,
		KillHeightEnabled:  true,
		ForceWake:          true,
		InterpolationTicks: 1,
		LinearDamping:      0.3,
		AngularDamping:     0.1,
		HitboxResolution:   0.3,
		Acceleration:       string(physics.AccelAuto),
		MaxThreads:         8,
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default value.
func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be positive, got %d", t.TickRateHz)
	}
	if len(t.Gravity) != 3 {
		return fmt.Errorf("gravity must have 3 components, got %d", len(t.Gravity))
	}
	for _, g := range t.Gravity {
		if math.IsNaN(g) || math.IsInf(g, 0) {
			return fmt.Errorf("gravity must be finite, got %v", t.Gravity)
		}
	}
	if t.InterpolationTicks < 0 {
		return fmt.Errorf("interpolation_ticks must not be negative, got %d", t.InterpolationTicks)
	}
	if t.LinearDamping < 0 || t.AngularDamping < 0 {
		return fmt.Errorf("damping must not be negative")
	}
	if !(t.HitboxResolution > 0) {
		return fmt.Errorf("hitbox_resolution must be positive, got %v", t.HitboxResolution)
	}
	switch physics.Acceleration(t.Acceleration) {
	case physics.AccelAuto, physics.AccelCPU, physics.AccelGPU:
	default:
		return fmt.Errorf("acceleration must be auto, cpu or gpu, got %q", t.Acceleration)
	}
	if t.MaxThreads < 0 {
		return fmt.Errorf("max_threads must not be negative, got %d", t.MaxThreads)
	}
	return nil
}

func (t Tuning) Policy() world.Policy {
	var g mgl64.Vec3
	copy(g[:], t.Gravity)
	return world.Policy{
		Gravity:            g,
		FloorY:             t.FloorY,
		KillHeight:         t.KillHeight,
		KillHeightEnabled:  t.KillHeightEnabled,
		ForceWake:          t.ForceWake,
		InterpolationTicks: t.InterpolationTicks,
		Debug:              t.Debug,
	}
}

func (t Tuning) EnvConfig() physics.Config {
	return physics.Config{
		Acceleration: physics.Acceleration(t.Acceleration),
		MaxThreads:   t.MaxThreads,
	}
}
