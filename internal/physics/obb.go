package physics

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// OBB represents an Oriented Bounding Box
type OBB struct {
	Center   rl.Vector3    // World-space center
	HalfSize rl.Vector3    // Half-extents along local axes
	Axes     [3]rl.Vector3 // Local X, Y, Z axes (rotated)
}

// NewOBB places a box with the given half extents at pose.
func NewOBB(pose Transform, half rl.Vector3) OBB {
	return OBB{
		Center:   pose.P,
		HalfSize: half,
		Axes: [3]rl.Vector3{
			rl.Vector3Normalize(pose.Rotate(rl.Vector3{X: 1})),
			rl.Vector3Normalize(pose.Rotate(rl.Vector3{Y: 1})),
			rl.Vector3Normalize(pose.Rotate(rl.Vector3{Z: 1})),
		},
	}
}

// IntersectsOBB tests if two OBBs intersect using the Separating Axis Theorem.
// Touching faces count as intersecting.
func (a OBB) IntersectsOBB(b OBB) bool {
	t := rl.Vector3Subtract(b.Center, a.Center)

	// 3 face normals from each box, then the 9 edge cross products
	for i := 0; i < 3; i++ {
		if !overlapOnAxis(a, b, a.Axes[i], t) {
			return false
		}
	}
	for i := 0; i < 3; i++ {
		if !overlapOnAxis(a, b, b.Axes[i], t) {
			return false
		}
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			axis := rl.Vector3CrossProduct(a.Axes[i], b.Axes[j])
			// parallel edges
			if rl.Vector3Length(axis) > 0.0001 {
				if !overlapOnAxis(a, b, rl.Vector3Normalize(axis), t) {
					return false
				}
			}
		}
	}

	return true
}

func (o OBB) project(axis rl.Vector3) float32 {
	return o.HalfSize.X*absf(rl.Vector3DotProduct(o.Axes[0], axis)) +
		o.HalfSize.Y*absf(rl.Vector3DotProduct(o.Axes[1], axis)) +
		o.HalfSize.Z*absf(rl.Vector3DotProduct(o.Axes[2], axis))
}

func overlapOnAxis(a, b OBB, axis, t rl.Vector3) bool {
	distance := absf(rl.Vector3DotProduct(t, axis))
	return distance <= a.project(axis)+b.project(axis)
}

// ResolveOBB returns the minimum translation vector to push 'a' out of 'b'
// Returns zero vector if no overlap
func (a OBB) ResolveOBB(b OBB) rl.Vector3 {
	if !a.IntersectsOBB(b) {
		return rl.Vector3Zero()
	}

	t := rl.Vector3Subtract(b.Center, a.Center)
	minPenetration := float32(math.MaxFloat32)
	var mtv rl.Vector3

	testAxis := func(axis rl.Vector3) {
		if rl.Vector3Length(axis) < 0.0001 {
			return
		}
		axis = rl.Vector3Normalize(axis)

		dist := rl.Vector3DotProduct(t, axis)
		penetration := a.project(axis) + b.project(axis) - absf(dist)

		if penetration < minPenetration {
			minPenetration = penetration
			// away from B
			if dist < 0 {
				mtv = rl.Vector3Scale(axis, penetration)
			} else {
				mtv = rl.Vector3Scale(axis, -penetration)
			}
		}
	}

	for i := 0; i < 3; i++ {
		testAxis(a.Axes[i])
	}
	for i := 0; i < 3; i++ {
		testAxis(b.Axes[i])
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			testAxis(rl.Vector3CrossProduct(a.Axes[i], b.Axes[j]))
		}
	}

	return mtv
}

// Corners returns the 8 world-space vertices.
func (o OBB) Corners() [8]rl.Vector3 {
	var out [8]rl.Vector3
	ex := rl.Vector3Scale(o.Axes[0], o.HalfSize.X)
	ey := rl.Vector3Scale(o.Axes[1], o.HalfSize.Y)
	ez := rl.Vector3Scale(o.Axes[2], o.HalfSize.Z)
	for i := 0; i < 8; i++ {
		c := o.Center
		c = addSigned(c, ex, i&1 != 0)
		c = addSigned(c, ey, i&2 != 0)
		c = addSigned(c, ez, i&4 != 0)
		out[i] = c
	}
	return out
}

// Bounds returns the world AABB enclosing the box.
func (o OBB) Bounds() AABB {
	extent := rl.Vector3{
		X: o.HalfSize.X*absf(o.Axes[0].X) + o.HalfSize.Y*absf(o.Axes[1].X) + o.HalfSize.Z*absf(o.Axes[2].X),
		Y: o.HalfSize.X*absf(o.Axes[0].Y) + o.HalfSize.Y*absf(o.Axes[1].Y) + o.HalfSize.Z*absf(o.Axes[2].Y),
		Z: o.HalfSize.X*absf(o.Axes[0].Z) + o.HalfSize.Y*absf(o.Axes[1].Z) + o.HalfSize.Z*absf(o.Axes[2].Z),
	}
	return AABB{
		Min: rl.Vector3Subtract(o.Center, extent),
		Max: rl.Vector3Add(o.Center, extent),
	}
}

func addSigned(c, v rl.Vector3, positive bool) rl.Vector3 {
	if positive {
		return rl.Vector3Add(c, v)
	}
	return rl.Vector3Subtract(c, v)
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func clampf(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
