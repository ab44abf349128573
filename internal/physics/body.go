package physics

import (
	"slices"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Sleep tuning. A body whose kinetic energy per unit mass stays under its
// sleep threshold for SleepTimeThreshold seconds stops being simulated.
const (
	DefaultSleepThreshold = 0.05
	SleepTimeThreshold    = 0.4
)

// ForceMode selects how AddForce interprets its vector.
type ForceMode int

const (
	ForceModeForce          ForceMode = iota // mass * distance / time^2, accumulated until the next step
	ForceModeImpulse                         // mass * distance / time, applied now
	ForceModeVelocityChange                  // distance / time, applied now
	ForceModeAcceleration                    // distance / time^2, accumulated until the next step
)

type bodyKind int

const (
	bodyDynamic bodyKind = iota
	bodyStatic
)

// RigidBody is an actor. Dynamic bodies are integrated by the scene; static
// bodies never move. Body state is only safe to touch from the goroutine
// that drives Scene.Step, or while holding Scene.LockWrite.
type RigidBody struct {
	id   uint64
	kind bodyKind

	pose   Transform
	linVel rl.Vector3
	angVel rl.Vector3
	force  rl.Vector3
	torque rl.Vector3

	mass       float32
	invMass    float32
	invInertia rl.Vector3 // local principal axes

	kinematic      bool
	gravity        bool
	linearDamping  float32
	angularDamping float32

	sleepThreshold float32
	sleepTimer     float32
	sleeping       bool

	shapes   []*Shape
	scene    *Scene
	released bool

	// UserData is left for the owner of the body.
	UserData any
}

func newBody(id uint64, kind bodyKind, pose Transform) *RigidBody {
	b := &RigidBody{
		id:             id,
		kind:           kind,
		pose:           pose,
		gravity:        true,
		sleepThreshold: DefaultSleepThreshold,
	}
	if kind == bodyDynamic {
		b.mass = 1
		b.invMass = 1
		b.invInertia = rl.Vector3{X: 6, Y: 6, Z: 6}
		b.linearDamping = 0
		b.angularDamping = 0.05
	}
	return b
}

// IsDynamic reports whether the body is simulated (kinematic bodies included).
func (b *RigidBody) IsDynamic() bool {
	return b.kind == bodyDynamic
}

func (b *RigidBody) GlobalPose() Transform {
	return b.pose
}

// SetGlobalPose teleports the body and wakes it.
func (b *RigidBody) SetGlobalPose(t Transform) {
	b.pose = t
	b.WakeUp()
}

func (b *RigidBody) Position() rl.Vector3 {
	return b.pose.P
}

func (b *RigidBody) LinearVelocity() rl.Vector3 {
	return b.linVel
}

func (b *RigidBody) SetLinearVelocity(v rl.Vector3) {
	if b.kind != bodyDynamic {
		return
	}
	b.linVel = v
	if rl.Vector3LengthSqr(v) > 0 {
		b.WakeUp()
	}
}

func (b *RigidBody) AngularVelocity() rl.Vector3 {
	return b.angVel
}

func (b *RigidBody) SetAngularVelocity(v rl.Vector3) {
	if b.kind != bodyDynamic {
		return
	}
	b.angVel = v
	if rl.Vector3LengthSqr(v) > 0 {
		b.WakeUp()
	}
}

// AddForce applies f according to mode and wakes the body. Static and
// kinematic bodies ignore forces.
func (b *RigidBody) AddForce(f rl.Vector3, mode ForceMode) {
	if b.kind != bodyDynamic || b.kinematic {
		return
	}
	switch mode {
	case ForceModeForce:
		b.force = rl.Vector3Add(b.force, f)
	case ForceModeAcceleration:
		b.force = rl.Vector3Add(b.force, rl.Vector3Scale(f, b.mass))
	case ForceModeImpulse:
		b.linVel = rl.Vector3Add(b.linVel, rl.Vector3Scale(f, b.invMass))
	case ForceModeVelocityChange:
		b.linVel = rl.Vector3Add(b.linVel, f)
	}
	b.WakeUp()
}

// AddTorque accumulates a torque in world space for the next step.
func (b *RigidBody) AddTorque(t rl.Vector3) {
	if b.kind != bodyDynamic || b.kinematic {
		return
	}
	b.torque = rl.Vector3Add(b.torque, t)
	b.WakeUp()
}

func (b *RigidBody) Mass() float32 {
	return b.mass
}

func (b *RigidBody) InvMass() float32 {
	return b.invMass
}

// SetMassAndUpdateInertia sets the mass and derives a diagonal inertia from
// the attached box shapes, each weighted by its share of the total volume.
func (b *RigidBody) SetMassAndUpdateInertia(mass float32) error {
	if b.kind != bodyDynamic {
		return ErrNotDynamic
	}
	if !(mass > 0) {
		return ErrInvalidMass
	}

	var volume float32
	for _, s := range b.shapes {
		if box, ok := s.Box(); ok {
			h := box.HalfExtents
			volume += 8 * h.X * h.Y * h.Z
		}
	}

	var inertia rl.Vector3
	if volume <= 0 {
		// no boxes: treat as a unit cube
		inertia = rl.Vector3{X: mass / 6, Y: mass / 6, Z: mass / 6}
	} else {
		for _, s := range b.shapes {
			box, ok := s.Box()
			if !ok {
				continue
			}
			h := box.HalfExtents
			m := mass * (8 * h.X * h.Y * h.Z) / volume
			inertia = rl.Vector3Add(inertia, rl.Vector3{
				X: m / 3 * (h.Y*h.Y + h.Z*h.Z),
				Y: m / 3 * (h.X*h.X + h.Z*h.Z),
				Z: m / 3 * (h.X*h.X + h.Y*h.Y),
			})
		}
	}

	b.mass = mass
	b.invMass = 1 / mass
	b.invInertia = rl.Vector3{X: 1 / inertia.X, Y: 1 / inertia.Y, Z: 1 / inertia.Z}
	return nil
}

// SetKinematic switches the body between solver-driven and code-driven.
// Kinematic bodies keep their velocity, ignore gravity and forces, and push
// dynamic bodies without being pushed back.
func (b *RigidBody) SetKinematic(kinematic bool) {
	if b.kind != bodyDynamic {
		return
	}
	b.kinematic = kinematic
	if kinematic {
		b.force = rl.Vector3{}
		b.torque = rl.Vector3{}
	}
}

func (b *RigidBody) IsKinematic() bool {
	return b.kinematic
}

// SetGravityEnabled toggles the scene's gravity for this body.
func (b *RigidBody) SetGravityEnabled(on bool) {
	b.gravity = on
}

func (b *RigidBody) SetLinearDamping(d float32) {
	b.linearDamping = max(0, d)
}

func (b *RigidBody) LinearDamping() float32 {
	return b.linearDamping
}

func (b *RigidBody) SetAngularDamping(d float32) {
	b.angularDamping = max(0, d)
}

func (b *RigidBody) AngularDamping() float32 {
	return b.angularDamping
}

// SetSleepThreshold sets the energy per unit mass below which the body may
// sleep. Zero keeps the body awake forever.
func (b *RigidBody) SetSleepThreshold(t float32) {
	b.sleepThreshold = max(0, t)
}

func (b *RigidBody) SleepThreshold() float32 {
	return b.sleepThreshold
}

func (b *RigidBody) WakeUp() {
	b.sleeping = false
	b.sleepTimer = 0
}

func (b *RigidBody) IsSleeping() bool {
	return b.sleeping
}

// AttachShape takes a reference on s. Planes may only go on static bodies.
func (b *RigidBody) AttachShape(s *Shape) error {
	if b.released || s.Released() {
		return ErrReleased
	}
	if _, plane := s.geometry.(PlaneGeometry); plane && b.kind == bodyDynamic {
		return ErrInvalidGeometry
	}
	if slices.Contains(b.shapes, s) {
		return ErrShapeAttached
	}
	s.acquire()
	b.shapes = append(b.shapes, s)
	return nil
}

// DetachShape drops the body's reference on s. Returns false if s was not
// attached.
func (b *RigidBody) DetachShape(s *Shape) bool {
	i := slices.Index(b.shapes, s)
	if i < 0 {
		return false
	}
	b.shapes = slices.Delete(b.shapes, i, i+1)
	s.Release()
	return true
}

// Shapes returns a copy of the attached shapes.
func (b *RigidBody) Shapes() []*Shape {
	return slices.Clone(b.shapes)
}

func (b *RigidBody) NbShapes() int {
	return len(b.shapes)
}

// Scene returns the scene the body is an actor of, or nil.
func (b *RigidBody) Scene() *Scene {
	return b.scene
}

// WorldBounds is the AABB of all finite shapes. ok is false when the body
// has no box shape.
func (b *RigidBody) WorldBounds() (bounds AABB, ok bool) {
	for _, s := range b.shapes {
		box, isBox := s.Box()
		if !isBox {
			continue
		}
		bb := NewOBB(b.pose, box.HalfExtents).Bounds()
		if !ok {
			bounds, ok = bb, true
		} else {
			bounds = bounds.Union(bb)
		}
	}
	return bounds, ok
}

// Release removes the body from its scene and drops every shape reference.
// The body must not be used afterwards.
func (b *RigidBody) Release() {
	if b.released {
		return
	}
	if b.scene != nil {
		b.scene.RemoveActor(b)
	}
	for _, s := range b.shapes {
		s.Release()
	}
	b.shapes = nil
	b.released = true
}

func (b *RigidBody) Released() bool {
	return b.released
}

func (b *RigidBody) solverInvMass() float32 {
	if b.kind != bodyDynamic || b.kinematic {
		return 0
	}
	return b.invMass
}

// simulated reports whether the solver integrates this body.
func (b *RigidBody) simulated() bool {
	return b.kind == bodyDynamic && !b.kinematic && !b.sleeping
}

// applyInvInertia multiplies a world-space vector by the world inverse inertia.
func (b *RigidBody) applyInvInertia(v rl.Vector3) rl.Vector3 {
	if b.solverInvMass() == 0 {
		return rl.Vector3{}
	}
	local := b.pose.InverseRotate(v)
	local = rl.Vector3Multiply(local, b.invInertia)
	return b.pose.Rotate(local)
}
