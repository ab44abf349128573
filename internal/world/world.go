package world

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"blockphys/internal/coords"
	"blockphys/internal/engine"
	"blockphys/internal/physics"

	"github.com/go-gl/mathgl/mgl64"
)

// World binds one physics scene to one render instance and keeps the
// objects living in both in sync.
type World struct {
	env    *physics.Env
	scene  *physics.Scene
	floor  *physics.RigidBody
	inst   *engine.Instance
	policy Policy

	objects *objectIndex

	mu       sync.Mutex
	released bool
}

// ContactFunc receives contact pairs after a step. Either object is nil when
// that side is not a world object, such as the floor.
type ContactFunc func(a, b Object, kind physics.ContactKind)

func New(env *physics.Env, inst *engine.Instance, policy Policy) (*World, error) {
	if env == nil || inst == nil {
		return nil, errors.New("world: env and instance are required")
	}
	if policy.InterpolationTicks < 0 {
		policy.InterpolationTicks = 0
	}

	scene, err := env.CreateScene(coords.ToVec(policy.Gravity))
	if err != nil {
		return nil, fmt.Errorf("failed to create scene: %w", err)
	}
	floor, err := env.CreateGroundPlane(float32(policy.FloorY))
	if err != nil {
		scene.Release()
		return nil, fmt.Errorf("failed to create floor: %w", err)
	}
	if err := scene.AddActor(floor); err != nil {
		floor.Release()
		scene.Release()
		return nil, fmt.Errorf("failed to add floor: %w", err)
	}

	w := &World{
		env:     env,
		scene:   scene,
		floor:   floor,
		inst:    inst,
		policy:  policy,
		objects: newObjectIndex(),
	}
	caps := env.Capabilities()
	mode := "CPU"
	if caps.Accelerated {
		mode = "GPU " + caps.Device
	}
	log.Printf("World: created for instance %q (%s)", inst.Name, mode)
	return w, nil
}

// Step advances the simulation by dt seconds, waits for the results, syncs
// every object's entity and then applies the kill-height policy.
func (w *World) Step(dt float64) {
	if w.Released() {
		log.Printf("World: step on released world ignored")
		return
	}
	if err := w.scene.Step(float32(dt)); err != nil {
		log.Printf("World: step failed: %v", err)
		return
	}

	for _, obj := range w.objects.snapshot() {
		obj.Base().SyncTick()
	}

	if !w.policy.KillHeightEnabled {
		return
	}
	for _, obj := range w.objects.snapshot() {
		base := obj.Base()
		if base.Destroyed() {
			continue
		}
		if y := base.Position().Y(); y < w.policy.KillHeight {
			w.debugf("World: destroying object below kill height (y=%.2f)", y)
			base.Destroy()
		}
	}
}

// AddObject makes obj's body an actor of the scene and indexes it.
// Objects register themselves on construction, so callers rarely need this.
func (w *World) AddObject(obj Object) error {
	body := obj.Base().Body()
	if err := w.scene.AddActor(body); err != nil {
		return fmt.Errorf("failed to add object: %w", err)
	}
	if !w.objects.add(obj) {
		w.scene.RemoveActor(body)
		return fmt.Errorf("failed to add object: %w", physics.ErrDuplicateActor)
	}
	return nil
}

// RemoveObject takes obj out of the scene and the index. Removing an object
// that is not there does nothing.
func (w *World) RemoveObject(obj Object) {
	if w.objects.remove(obj) {
		w.scene.RemoveActor(obj.Base().Body())
	}
}

// Lookup returns the object owning body.
func (w *World) Lookup(body *physics.RigidBody) (Object, bool) {
	return w.objects.lookup(body)
}

// Objects returns the live objects in insertion order.
func (w *World) Objects() []Object {
	return w.objects.snapshot()
}

func (w *World) NumObjects() int {
	return w.objects.len()
}

func (w *World) SetGravity(g mgl64.Vec3) {
	w.scene.SetGravity(coords.ToVec(g))
}

func (w *World) Gravity() mgl64.Vec3 {
	return coords.FromVec(w.scene.Gravity())
}

// OnContact routes the scene's contact events to fn with bodies resolved to
// their objects.
func (w *World) OnContact(fn ContactFunc) {
	if fn == nil {
		w.scene.SetContactHandler(nil)
		return
	}
	w.scene.SetContactHandler(func(c physics.Contact) {
		a, _ := w.Lookup(c.A)
		b, _ := w.Lookup(c.B)
		fn(a, b, c.Kind)
	})
}

func (w *World) Env() *physics.Env { return w.env }
func (w *World) Scene() *physics.Scene { return w.scene }
func (w *World) Floor() *physics.RigidBody { return w.floor }
func (w *World) Instance() *engine.Instance { return w.inst }
func (w *World) Policy() Policy { return w.policy }

func (w *World) Released() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.released
}

// Release destroys every object, then frees the floor and the scene.
// Later calls do nothing.
func (w *World) Release() {
	w.mu.Lock()
	if w.released {
		w.mu.Unlock()
		return
	}
	w.released = true
	w.mu.Unlock()

	objects := w.objects.snapshot()
	for _, obj := range objects {
		obj.Base().Destroy()
	}

	w.scene.RemoveActor(w.floor)
	w.floor.Release()
	w.scene.Release()
	log.Printf("World: released (%d objects destroyed)", len(objects))
}

func (w *World) debugf(format string, args ...any) {
	if w.policy.Debug {
		log.Printf(format, args...)
	}
}
