package world

import "github.com/go-gl/mathgl/mgl64"

// Policy holds the per-world tuning that the game decides rather than the
// physics engine.
type Policy struct {
	// Steeper than real gravity, to match the game's fall feel.
	Gravity mgl64.Vec3
	FloorY  float64

	// Objects whose origin drops below KillHeight are destroyed after a step.
	KillHeight        float64
	KillHeightEnabled bool

	// ForceWake wakes always-active bodies on every sync.
	ForceWake bool

	// Interpolation window, in render ticks, of each transform sync.
	InterpolationTicks int

	Debug bool
}

func DefaultPolicy() Policy {
	return Policy{
		Gravity:            mgl64.Vec3{0, -17, 0},
		FloorY:             0,
		KillHeight:         -10,
		KillHeightEnabled:  true,
		ForceWake:          true,
		InterpolationTicks: 1,
	}
}
