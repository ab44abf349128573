package world

import (
	"fmt"
	"log"
	"slices"
	"sync"

	"blockphys/internal/coords"
	"blockphys/internal/engine"
	"blockphys/internal/physics"

	"github.com/go-gl/mathgl/mgl64"
)

// Display is the part of a render entity an object drives.
type Display interface {
	SetInstance(inst *engine.Instance, pos mgl64.Vec3) *engine.Placement
	IsActive() bool
	SyncTransform(pos mgl64.Vec3, rot mgl64.Quat, ticks int)
	Remove()
}

// Object is anything the world simulates. Implementations embed
// BaseObject and call InitBase from their constructor.
type Object interface {
	Base() *BaseObject
	// CreateEntity builds the render representation, or returns nil for an
	// invisible object. It must not touch physics state.
	CreateEntity() Display
}

// BaseObject owns one dynamic body, at most one entity and any number of
// related bodies, and keeps the entity on the body every tick.
//
// Body access goes through the scene's write lock, so the methods are safe
// to call from gameplay goroutines while the world steps.
type BaseObject struct {
	self  Object
	world *World
	body  *physics.RigidBody
	size  mgl64.Vec3

	// mu serializes SyncTick with Edit and Destroy.
	mu           sync.Mutex
	entity       Display
	related      []*physics.RigidBody
	alwaysActive bool
	destroyed    bool
}

// InitBase fills in the base and registers self with w. On error nothing
// is registered and the caller still owns body.
func (b *BaseObject) InitBase(self Object, w *World, body *physics.RigidBody, size mgl64.Vec3) error {
	b.self = self
	b.world = w
	b.body = body
	b.size = size
	return w.AddObject(self)
}

func (b *BaseObject) Base() *BaseObject {
	return b
}

// Spawn asks the object for its entity and places it at the body's
// position. Returns nil for invisible objects. An object owns at most one
// entity, so later calls return the one already spawned.
func (b *BaseObject) Spawn() Display {
	if e := b.Entity(); e != nil {
		return e
	}
	e := b.self.CreateEntity()
	if e == nil {
		return nil
	}
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return nil
	}
	if b.entity != nil {
		// lost a race with another Spawn; e was never placed
		existing := b.entity
		b.mu.Unlock()
		return existing
	}
	b.entity = e
	b.mu.Unlock()

	e.SetInstance(b.world.inst, b.Position())
	return e
}

// SyncTick copies the body's pose into the entity. It does nothing until
// the entity is active in the instance.
func (b *BaseObject) SyncTick() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		log.Printf("World: sync on destroyed object ignored")
		return
	}
	if b.entity == nil || !b.entity.IsActive() {
		b.world.debugf("World: sync skipped, entity not active yet")
		return
	}

	policy := b.world.policy
	scene := b.world.scene
	scene.LockWrite()
	if b.alwaysActive && policy.ForceWake {
		b.body.WakeUp()
	}
	pose := b.body.GlobalPose()
	scene.UnlockWrite()

	b.entity.SyncTransform(coords.FromVec(pose.P), coords.FromQuat(pose.Q), policy.InterpolationTicks)
}

// Edit runs fn with SyncTick and the solver held off, for changes that must
// not be seen half done.
func (b *BaseObject) Edit(fn func(body *physics.RigidBody)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.world.scene.LockWrite()
	defer b.world.scene.UnlockWrite()
	fn(b.body)
}

func (b *BaseObject) withBody(fn func(body *physics.RigidBody)) {
	b.world.scene.LockWrite()
	defer b.world.scene.UnlockWrite()
	fn(b.body)
}

func (b *BaseObject) AddForce(f mgl64.Vec3) {
	b.withBody(func(body *physics.RigidBody) {
		body.AddForce(coords.ToVec(f), physics.ForceModeForce)
	})
}

// AddImpulse changes the velocity by impulse / mass.
func (b *BaseObject) AddImpulse(impulse mgl64.Vec3) {
	b.withBody(func(body *physics.RigidBody) {
		body.AddForce(coords.ToVec(impulse), physics.ForceModeImpulse)
	})
}

func (b *BaseObject) SetPosition(p mgl64.Vec3) {
	b.withBody(func(body *physics.RigidBody) {
		pose := body.GlobalPose()
		pose.P = coords.ToVec(p)
		body.SetGlobalPose(pose)
	})
}

func (b *BaseObject) Position() (p mgl64.Vec3) {
	b.withBody(func(body *physics.RigidBody) {
		p = coords.FromVec(body.Position())
	})
	return p
}

func (b *BaseObject) Rotation() (q mgl64.Quat) {
	b.withBody(func(body *physics.RigidBody) {
		q = coords.FromQuat(body.GlobalPose().Q)
	})
	return q
}

func (b *BaseObject) SetLinearVelocity(v mgl64.Vec3) {
	b.withBody(func(body *physics.RigidBody) {
		body.SetLinearVelocity(coords.ToVec(v))
	})
}

func (b *BaseObject) LinearVelocity() (v mgl64.Vec3) {
	b.withBody(func(body *physics.RigidBody) {
		v = coords.FromVec(body.LinearVelocity())
	})
	return v
}

// IsSleeping reports whether the engine has put the body to sleep.
func (b *BaseObject) IsSleeping() (sleeping bool) {
	b.withBody(func(body *physics.RigidBody) {
		sleeping = body.IsSleeping()
	})
	return sleeping
}

// AddRelated makes body an actor of the world's scene and hands it to the
// object. It is removed from the scene and released on Destroy.
func (b *BaseObject) AddRelated(body *physics.RigidBody) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return fmt.Errorf("failed to add related body: %w", physics.ErrReleased)
	}
	if err := b.world.scene.AddActor(body); err != nil {
		return fmt.Errorf("failed to add related body: %w", err)
	}
	b.related = append(b.related, body)
	return nil
}

func (b *BaseObject) Related() []*physics.RigidBody {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.related)
}

// SetAlwaysActive keeps the body out of sleep. Turning it off restores the
// default sleep threshold.
func (b *BaseObject) SetAlwaysActive(on bool) {
	b.mu.Lock()
	b.alwaysActive = on
	b.mu.Unlock()

	b.withBody(func(body *physics.RigidBody) {
		if on {
			body.SetSleepThreshold(0)
			body.WakeUp()
		} else {
			body.SetSleepThreshold(physics.DefaultSleepThreshold)
		}
	})
}

func (b *BaseObject) AlwaysActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.alwaysActive
}

// Destroy releases the related bodies, unregisters the object, releases
// its body and removes its entity. The object must not be used afterwards.
func (b *BaseObject) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		log.Printf("World: object destroyed twice")
		return
	}
	b.destroyed = true
	related := b.related
	b.related = nil
	entity := b.entity
	b.entity = nil
	b.mu.Unlock()

	scene := b.world.scene
	for _, r := range related {
		scene.RemoveActor(r)
		r.Release()
	}
	b.world.RemoveObject(b.self)
	b.body.Release()
	if entity != nil {
		entity.Remove()
	}
}

func (b *BaseObject) Destroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}

// Entity is the spawned entity, or nil.
func (b *BaseObject) Entity() Display {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entity
}

func (b *BaseObject) Body() *physics.RigidBody { return b.body }
func (b *BaseObject) World() *World { return b.world }
func (b *BaseObject) Size() mgl64.Vec3 { return b.size }
