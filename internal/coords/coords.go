// Package coords converts between the physics engine's float32 raylib math
// types and the float64 mathgl types the render layer places entities with.
package coords

import (
	"github.com/go-gl/mathgl/mgl64"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// ToVec converts a render-side position into a physics vector.
func ToVec(v mgl64.Vec3) rl.Vector3 {
	return rl.Vector3{X: float32(v[0]), Y: float32(v[1]), Z: float32(v[2])}
}

// FromVec converts a physics vector into a render-side position.
func FromVec(v rl.Vector3) mgl64.Vec3 {
	return mgl64.Vec3{float64(v.X), float64(v.Y), float64(v.Z)}
}

func ToQuat(q mgl64.Quat) rl.Quaternion {
	return rl.Quaternion{
		X: float32(q.V[0]),
		Y: float32(q.V[1]),
		Z: float32(q.V[2]),
		W: float32(q.W),
	}
}

func FromQuat(q rl.Quaternion) mgl64.Quat {
	return mgl64.Quat{
		W: float64(q.W),
		V: mgl64.Vec3{float64(q.X), float64(q.Y), float64(q.Z)},
	}
}

// ToFloats flattens a physics quaternion in x, y, z, w order, the layout
// display metadata stores rotations in.
func ToFloats(q rl.Quaternion) [4]float32 {
	return [4]float32{q.X, q.Y, q.Z, q.W}
}
