package physics

import (
	rl "github.com/gen2brain/raylib-go/raylib"
)

const (
	// Approach speed below which contacts do not bounce.
	bounceThreshold = 2.0
	// Relative speed a contact needs to wake a sleeping body.
	wakeSpeed = 0.6
	// A box whose center is deeper than its radius plus this below a plane
	// has tunnelled and keeps falling.
	planeCaptureMargin = 0.5
)

// integrate advances one body by dt with semi-implicit Euler.
func integrate(b *RigidBody, g rl.Vector3, dt float32) {
	if b.kinematic {
		b.pose.P = rl.Vector3Add(b.pose.P, rl.Vector3Scale(b.linVel, dt))
		b.pose.Q = integrateRotation(b.pose.Q, b.angVel, dt)
		return
	}

	acc := rl.Vector3Scale(b.force, b.invMass)
	if b.gravity {
		acc = rl.Vector3Add(acc, g)
	}
	b.linVel = rl.Vector3Add(b.linVel, rl.Vector3Scale(acc, dt))
	b.angVel = rl.Vector3Add(b.angVel, rl.Vector3Scale(b.applyInvInertia(b.torque), dt))
	b.force = rl.Vector3{}
	b.torque = rl.Vector3{}

	// time-based so it's framerate independent
	b.linVel = rl.Vector3Scale(b.linVel, dampingFactor(b.linearDamping, dt))
	b.angVel = rl.Vector3Scale(b.angVel, dampingFactor(b.angularDamping, dt))

	b.pose.P = rl.Vector3Add(b.pose.P, rl.Vector3Scale(b.linVel, dt))
	b.pose.Q = integrateRotation(b.pose.Q, b.angVel, dt)
}

func dampingFactor(c, dt float32) float32 {
	if c == 0 {
		return 1
	}
	return max(0, 1-c*dt)
}

// integrateRotation applies q' = q + 0.5 * w * q * dt and renormalizes.
func integrateRotation(q rl.Quaternion, w rl.Vector3, dt float32) rl.Quaternion {
	if w.X == 0 && w.Y == 0 && w.Z == 0 {
		return q
	}
	spin := rl.QuaternionMultiply(rl.Quaternion{X: w.X, Y: w.Y, Z: w.Z, W: 0}, q)
	h := 0.5 * dt
	return rl.QuaternionNormalize(rl.Quaternion{
		X: q.X + spin.X*h,
		Y: q.Y + spin.Y*h,
		Z: q.Z + spin.Z*h,
		W: q.W + spin.W*h,
	})
}

// updateSleep puts a body to sleep once its energy per unit mass has stayed
// under the threshold long enough.
func updateSleep(b *RigidBody, dt float32) {
	if b.kinematic || b.sleepThreshold <= 0 {
		b.sleepTimer = 0
		return
	}
	energy := 0.5 * (rl.Vector3LengthSqr(b.linVel) + rl.Vector3LengthSqr(b.angVel))
	if energy < b.sleepThreshold {
		b.sleepTimer += dt
		if b.sleepTimer >= SleepTimeThreshold {
			b.sleeping = true
			b.linVel = rl.Vector3{}
			b.angVel = rl.Vector3{}
		}
	} else {
		b.sleepTimer = 0
	}
}

func shapesOverlap(pa Transform, sa *Shape, pb Transform, sb *Shape) bool {
	boxA, aIsBox := sa.Box()
	boxB, bIsBox := sb.Box()
	switch {
	case aIsBox && bIsBox:
		return NewOBB(pa, boxA.HalfExtents).IntersectsOBB(NewOBB(pb, boxB.HalfExtents))
	case aIsBox:
		return boxBelowPlane(NewOBB(pa, boxA.HalfExtents), pb)
	case bIsBox:
		return boxBelowPlane(NewOBB(pb, boxB.HalfExtents), pa)
	}
	return false
}

func boxBelowPlane(o OBB, plane Transform) bool {
	n, p := planeFrame(plane)
	for _, c := range o.Corners() {
		if rl.Vector3DotProduct(rl.Vector3Subtract(c, p), n) <= 0 {
			return true
		}
	}
	return false
}

// resolvePair separates two bodies and applies a restitution impulse.
// Returns true if any of their shapes touched.
func (s *Scene) resolvePair(a, b *RigidBody) bool {
	touched := false
	for _, sa := range a.shapes {
		boxA, ok := sa.Box()
		if !ok {
			continue
		}
		for _, sb := range b.shapes {
			boxB, ok := sb.Box()
			if !ok || !sa.filter.collides(sb.filter) {
				continue
			}

			obbA := NewOBB(a.pose, boxA.HalfExtents)
			obbB := NewOBB(b.pose, boxB.HalfExtents)
			pushOut := obbA.ResolveOBB(obbB)
			if pushOut.X == 0 && pushOut.Y == 0 && pushOut.Z == 0 {
				continue
			}
			touched = true
			friction, restitution := combineMaterials(sa.material, sb.material)
			resolveBoxes(a, b, pushOut, friction, restitution)
		}
	}
	return touched
}

func resolveBoxes(a, b *RigidBody, pushOut rl.Vector3, friction, restitution float32) {
	invA, invB := a.solverInvMass(), b.solverInvMass()
	total := invA + invB
	if total == 0 {
		return
	}

	// Split the push based on inverse mass
	a.pose.P = rl.Vector3Add(a.pose.P, rl.Vector3Scale(pushOut, invA/total))
	b.pose.P = rl.Vector3Subtract(b.pose.P, rl.Vector3Scale(pushOut, invB/total))

	pushLen := rl.Vector3Length(pushOut)
	if pushLen < 0.0001 {
		return
	}
	normal := rl.Vector3Scale(pushOut, 1/pushLen)

	relVel := rl.Vector3Subtract(a.linVel, b.linVel)
	velAlongNormal := rl.Vector3DotProduct(relVel, normal)

	if rl.Vector3Length(relVel) > wakeSpeed {
		if a.sleeping && invA > 0 {
			a.WakeUp()
		}
		if b.sleeping && invB > 0 {
			b.WakeUp()
		}
	}

	// Only resolve if objects are moving toward each other
	if velAlongNormal > 0 {
		return
	}

	e := restitution
	if -velAlongNormal < bounceThreshold {
		e = 0
	}
	j := -(1 + e) * velAlongNormal / total
	impulse := rl.Vector3Scale(normal, j)

	// tangential slip is cut by the friction coefficient
	tangent := rl.Vector3Subtract(relVel, rl.Vector3Scale(normal, velAlongNormal))
	impulse = rl.Vector3Subtract(impulse, rl.Vector3Scale(tangent, friction/total))

	a.linVel = rl.Vector3Add(a.linVel, rl.Vector3Scale(impulse, invA))
	b.linVel = rl.Vector3Subtract(b.linVel, rl.Vector3Scale(impulse, invB))
}

// resolvePlane pushes a dynamic body out of a static plane and applies a
// contact impulse at the mean of its penetrating corners.
func resolvePlane(b, plane *RigidBody) bool {
	n, p := planeFrame(plane.pose)
	var planeShape *Shape
	for _, s := range plane.shapes {
		if _, ok := s.geometry.(PlaneGeometry); ok {
			planeShape = s
			break
		}
	}
	if planeShape == nil {
		return false
	}

	touched := false
	for _, sb := range b.shapes {
		box, ok := sb.Box()
		if !ok || !sb.filter.collides(planeShape.filter) {
			continue
		}
		obb := NewOBB(b.pose, box.HalfExtents)

		radius := rl.Vector3Length(box.HalfExtents)
		if rl.Vector3DotProduct(rl.Vector3Subtract(obb.Center, p), n) < -(radius + planeCaptureMargin) {
			continue
		}

		var contact rl.Vector3
		var maxDepth float32
		count := 0
		for _, c := range obb.Corners() {
			depth := -rl.Vector3DotProduct(rl.Vector3Subtract(c, p), n)
			if depth <= 0 {
				continue
			}
			contact = rl.Vector3Add(contact, c)
			maxDepth = max(maxDepth, depth)
			count++
		}
		if count == 0 {
			continue
		}
		touched = true
		contact = rl.Vector3Scale(contact, 1/float32(count))

		b.pose.P = rl.Vector3Add(b.pose.P, rl.Vector3Scale(n, maxDepth))

		friction, restitution := combineMaterials(sb.material, planeShape.material)
		applyPlaneImpulse(b, n, rl.Vector3Subtract(contact, obb.Center), friction, restitution)
	}
	return touched
}

func applyPlaneImpulse(b *RigidBody, n, r rl.Vector3, friction, restitution float32) {
	vp := rl.Vector3Add(b.linVel, cross(b.angVel, r))
	vn := rl.Vector3DotProduct(vp, n)
	if vn >= 0 {
		return
	}

	e := restitution
	if -vn < bounceThreshold {
		e = 0
	}

	rn := cross(r, n)
	angular := rl.Vector3DotProduct(n, cross(b.applyInvInertia(rn), r))
	j := -(1 + e) * vn / (b.invMass + angular)
	impulse := rl.Vector3Scale(n, j)

	b.linVel = rl.Vector3Add(b.linVel, rl.Vector3Scale(impulse, b.invMass))
	b.angVel = rl.Vector3Add(b.angVel, b.applyInvInertia(cross(r, impulse)))

	// Friction perpendicular to normal, and on spin while grounded
	vn = rl.Vector3DotProduct(b.linVel, n)
	tangent := rl.Vector3Subtract(b.linVel, rl.Vector3Scale(n, vn))
	b.linVel = rl.Vector3Subtract(b.linVel, rl.Vector3Scale(tangent, clampf(friction, 0, 1)))
	if n.Y > 0.5 {
		b.angVel = rl.Vector3Scale(b.angVel, 1-clampf(friction, 0, 1)*0.5)
	}
}

// Cross product of two vectors
func cross(a, b rl.Vector3) rl.Vector3 {
	return rl.Vector3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}
