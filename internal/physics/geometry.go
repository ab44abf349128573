package physics

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Geometry is the shape volume a Shape wraps.
type Geometry interface {
	valid() bool
}

// BoxGeometry is a box centred on the actor, sized by half extents.
type BoxGeometry struct {
	HalfExtents rl.Vector3
}

func (g BoxGeometry) valid() bool {
	h := g.HalfExtents
	for _, v := range []float32{h.X, h.Y, h.Z} {
		if !(v > 0) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return true
}

// PlaneGeometry is an infinite half-space below the actor's local XZ plane.
// Only static actors may carry it.
type PlaneGeometry struct{}

func (PlaneGeometry) valid() bool { return true }

// Transform is a rigid pose: position plus orientation.
type Transform struct {
	P rl.Vector3
	Q rl.Quaternion
}

// NewTransform returns a pose at p with identity orientation.
func NewTransform(p rl.Vector3) Transform {
	return Transform{P: p, Q: rl.QuaternionIdentity()}
}

// Apply maps a local point into world space.
func (t Transform) Apply(v rl.Vector3) rl.Vector3 {
	return rl.Vector3Add(t.P, rl.Vector3RotateByQuaternion(v, t.Q))
}

// Rotate maps a local direction into world space.
func (t Transform) Rotate(v rl.Vector3) rl.Vector3 {
	return rl.Vector3RotateByQuaternion(v, t.Q)
}

// InverseRotate maps a world direction into the local frame.
func (t Transform) InverseRotate(v rl.Vector3) rl.Vector3 {
	return rl.Vector3RotateByQuaternion(v, rl.QuaternionInvert(t.Q))
}

var up = rl.Vector3{X: 0, Y: 1, Z: 0}

// planeFrame returns the world normal and a point on a plane actor.
func planeFrame(t Transform) (normal, point rl.Vector3) {
	return rl.Vector3Normalize(t.Rotate(up)), t.P
}
