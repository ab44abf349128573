package world

import (
	"errors"
	"math"
	"testing"

	"blockphys/internal/coords"
	"blockphys/internal/engine"
	"blockphys/internal/physics"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl64"
)

type testObject struct {
	BaseObject
	visible bool
}

func (o *testObject) CreateEntity() Display {
	if !o.visible {
		return nil
	}
	e := engine.NewEntity(engine.ItemDisplay)
	e.SetNoGravity(true)
	return e
}

func newTestWorld(t *testing.T, policy Policy) *World {
	t.Helper()
	env, err := physics.Init(physics.Config{Acceleration: physics.AccelCPU})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	w, err := New(env, engine.NewInstance("test"), policy)
	if err != nil {
		env.Close()
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		w.Release()
		env.Close()
	})
	return w
}

// makeTestObject builds a unit cube object. It does not take t so that
// goroutines other than the test's can use it.
func makeTestObject(w *World, pos mgl64.Vec3, visible bool) (*testObject, error) {
	env := w.Env()
	shape, err := env.CreateShape(physics.BoxGeometry{HalfExtents: rl.Vector3{X: 0.5, Y: 0.5, Z: 0.5}}, nil)
	if err != nil {
		return nil, err
	}
	defer shape.Release()
	body := env.CreateDynamic(physics.NewTransform(coords.ToVec(pos)))
	if err := body.AttachShape(shape); err != nil {
		body.Release()
		return nil, err
	}

	obj := &testObject{visible: visible}
	if err := obj.InitBase(obj, w, body, mgl64.Vec3{1, 1, 1}); err != nil {
		body.Release()
		return nil, err
	}
	return obj, nil
}

func newTestObject(t *testing.T, w *World, pos mgl64.Vec3, visible bool) *testObject {
	t.Helper()
	obj, err := makeTestObject(w, pos, visible)
	if err != nil {
		t.Fatalf("makeTestObject: %v", err)
	}
	return obj
}

func checkIndex(t *testing.T, w *World) {
	t.Helper()
	objects := w.Objects()
	for _, obj := range objects {
		found, ok := w.Lookup(obj.Base().Body())
		if !ok || found != obj {
			t.Errorf("Lookup out of sync for %p", obj)
		}
		if obj.Base().Body().Scene() != w.Scene() {
			t.Errorf("object %p body is not a scene actor", obj)
		}
	}
	// floor is the one extra actor
	if got := w.Scene().NbActors(); got != len(objects)+1 {
		t.Errorf("Expected %d actors, got %d", len(objects)+1, got)
	}
}

func TestIndexStaysInSync(t *testing.T) {
	w := newTestWorld(t, DefaultPolicy())

	var objs []*testObject
	for i := range 5 {
		objs = append(objs, newTestObject(t, w, mgl64.Vec3{float64(i) * 3, 5, 0}, false))
	}
	checkIndex(t, w)

	w.RemoveObject(objs[1])
	objs[3].Destroy()
	checkIndex(t, w)

	w.Step(1.0 / 60)
	checkIndex(t, w)

	if w.NumObjects() != 3 {
		t.Errorf("Expected 3 objects, got %d", w.NumObjects())
	}
	want := []Object{objs[0], objs[2], objs[4]}
	for i, obj := range w.Objects() {
		if obj != want[i] {
			t.Errorf("object %d out of insertion order", i)
		}
	}
	if _, ok := w.Lookup(objs[1].Body()); ok {
		t.Error("removed object still found by Lookup")
	}
}

func TestRemoveObjectTwice(t *testing.T) {
	w := newTestWorld(t, DefaultPolicy())
	a := newTestObject(t, w, mgl64.Vec3{0, 5, 0}, false)
	b := newTestObject(t, w, mgl64.Vec3{3, 5, 0}, false)

	w.RemoveObject(a)
	w.RemoveObject(a)

	if w.NumObjects() != 1 {
		t.Errorf("Expected 1 object, got %d", w.NumObjects())
	}
	if found, ok := w.Lookup(b.Body()); !ok || found != b {
		t.Error("second remove disturbed another object")
	}
	checkIndex(t, w)
}

func TestAddObjectDuplicate(t *testing.T) {
	w := newTestWorld(t, DefaultPolicy())
	a := newTestObject(t, w, mgl64.Vec3{0, 5, 0}, false)

	if err := w.AddObject(a); !errors.Is(err, physics.ErrDuplicateActor) {
		t.Errorf("Expected ErrDuplicateActor, got %v", err)
	}
	if w.NumObjects() != 1 {
		t.Errorf("Expected 1 object, got %d", w.NumObjects())
	}
}

func TestKillHeight(t *testing.T) {
	w := newTestWorld(t, DefaultPolicy())
	lost := newTestObject(t, w, mgl64.Vec3{0, -20, 0}, false)
	kept := newTestObject(t, w, mgl64.Vec3{5, -5, 0}, false)

	w.Step(1.0 / 60)

	if !lost.Destroyed() {
		t.Error("object at y=-20 should be destroyed")
	}
	if !lost.Body().Released() {
		t.Error("destroyed object's body should be released")
	}
	if _, ok := w.Lookup(lost.Body()); ok {
		t.Error("destroyed object still indexed")
	}
	if kept.Destroyed() {
		t.Error("object at y=-5 should survive")
	}
	if w.NumObjects() != 1 {
		t.Errorf("Expected 1 object, got %d", w.NumObjects())
	}
}

func TestKillHeightDisabled(t *testing.T) {
	policy := DefaultPolicy()
	policy.KillHeightEnabled = false
	w := newTestWorld(t, policy)
	lost := newTestObject(t, w, mgl64.Vec3{0, -20, 0}, false)

	w.Step(1.0 / 60)

	if lost.Destroyed() {
		t.Error("kill height is disabled, object should survive")
	}
}

func TestStepWithUnequalDeltas(t *testing.T) {
	w := newTestWorld(t, DefaultPolicy())
	obj := newTestObject(t, w, mgl64.Vec3{0, 10, 0}, false)
	start := obj.Position().Y()

	dt1, dt2 := 0.0166, 0.0334
	w.Step(dt1)
	w.Step(dt2)

	// semi-implicit Euler: y = g * (dt1² + dt1*dt2 + dt2²)
	want := -17 * (dt1*dt1 + dt1*dt2 + dt2*dt2)
	got := obj.Position().Y() - start
	if math.Abs(got-want) > 1e-4 {
		t.Errorf("Expected displacement %.6f, got %.6f", want, got)
	}
	if v := obj.LinearVelocity().Y(); math.Abs(v-(-17*(dt1+dt2))) > 1e-4 {
		t.Errorf("Expected velocity %.4f, got %.4f", -17*(dt1+dt2), v)
	}
}

func TestAlwaysActive(t *testing.T) {
	policy := DefaultPolicy()
	policy.Gravity = mgl64.Vec3{}
	w := newTestWorld(t, policy)

	awake := newTestObject(t, w, mgl64.Vec3{0, 5, 0}, true)
	awake.SetAlwaysActive(true)
	awake.Spawn()
	w.Instance().Tick()

	idle := newTestObject(t, w, mgl64.Vec3{10, 5, 0}, false)

	for range 1000 {
		w.Step(1.0 / 60)
	}

	if awake.IsSleeping() {
		t.Error("always-active object fell asleep")
	}
	if !idle.IsSleeping() {
		t.Error("idle object should be asleep after 1000 ticks")
	}

	awake.AddForce(mgl64.Vec3{60, 0, 0})
	w.Step(1.0 / 60)
	if v := awake.LinearVelocity().X(); v <= 0 {
		t.Errorf("always-active object ignored a force, vx=%v", v)
	}

	awake.SetAlwaysActive(false)
	if awake.Body().SleepThreshold() != physics.DefaultSleepThreshold {
		t.Error("sleep threshold not restored")
	}
}

func TestSyncTickWaitsForActivation(t *testing.T) {
	w := newTestWorld(t, DefaultPolicy())
	obj := newTestObject(t, w, mgl64.Vec3{0, 5, 0}, true)

	d := obj.Spawn()
	if d == nil {
		t.Fatal("visible object spawned no entity")
	}
	e := d.(*engine.Entity)

	w.Step(1.0 / 60)
	if e.Position() != (mgl64.Vec3{0, 5, 0}) {
		t.Errorf("inactive entity moved to %v", e.Position())
	}

	w.Instance().Tick()
	w.Step(1.0 / 60)

	if !e.Position().ApproxEqualThreshold(obj.Position(), 1e-9) {
		t.Errorf("Expected entity at %v, got %v", obj.Position(), e.Position())
	}
	if meta := e.Display(); meta.InterpolationDuration != 1 {
		t.Errorf("Expected 1 tick interpolation, got %d", meta.InterpolationDuration)
	}
}

func TestInvisibleObjectSpawnsNothing(t *testing.T) {
	w := newTestWorld(t, DefaultPolicy())
	obj := newTestObject(t, w, mgl64.Vec3{0, 5, 0}, false)

	if d := obj.Spawn(); d != nil {
		t.Error("invisible object spawned an entity")
	}
	w.Step(1.0 / 60)
	if obj.Entity() != nil {
		t.Error("invisible object has an entity")
	}
}

func TestDestroyReleasesEverything(t *testing.T) {
	w := newTestWorld(t, DefaultPolicy())
	obj := newTestObject(t, w, mgl64.Vec3{0, 5, 0}, true)
	e := obj.Spawn().(*engine.Entity)
	w.Instance().Tick()

	aux := w.Env().CreateStatic(physics.NewTransform(rl.Vector3{X: 20}))
	if err := obj.AddRelated(aux); err != nil {
		t.Fatalf("AddRelated: %v", err)
	}
	if aux.Scene() != w.Scene() {
		t.Fatal("related body should be a scene actor")
	}
	if got := w.Scene().NbActors(); got != 3 {
		t.Errorf("Expected floor, object and related body, got %d actors", got)
	}

	obj.Destroy()

	if !aux.Released() || aux.Scene() != nil {
		t.Error("related body not released")
	}
	if !obj.Body().Released() {
		t.Error("body not released")
	}
	if !e.Removed() {
		t.Error("entity not removed")
	}
	if w.NumObjects() != 0 {
		t.Errorf("Expected 0 objects, got %d", w.NumObjects())
	}
	if len(obj.Related()) != 0 {
		t.Error("related list not cleared")
	}
	checkIndex(t, w)
}

func TestAddRelatedIsSimulated(t *testing.T) {
	w := newTestWorld(t, DefaultPolicy())
	obj := newTestObject(t, w, mgl64.Vec3{0, 5, 0}, false)

	aux := w.Env().CreateDynamic(physics.NewTransform(rl.Vector3{X: 20, Y: 5}))
	if err := obj.AddRelated(aux); err != nil {
		t.Fatalf("AddRelated: %v", err)
	}
	w.Step(1.0 / 60)
	if aux.LinearVelocity().Y >= 0 {
		t.Errorf("related body should fall with the scene, vy=%v", aux.LinearVelocity().Y)
	}

	if err := obj.AddRelated(aux); !errors.Is(err, physics.ErrDuplicateActor) {
		t.Errorf("Expected ErrDuplicateActor, got %v", err)
	}
	if len(obj.Related()) != 1 {
		t.Errorf("Expected 1 related body, got %d", len(obj.Related()))
	}

	obj.Destroy()
	late := w.Env().CreateStatic(physics.NewTransform(rl.Vector3{}))
	defer late.Release()
	if err := obj.AddRelated(late); !errors.Is(err, physics.ErrReleased) {
		t.Errorf("Expected ErrReleased after Destroy, got %v", err)
	}
	if late.Scene() != nil {
		t.Error("destroyed object added a body to the scene")
	}
}

func TestSpawnTwiceKeepsOneEntity(t *testing.T) {
	w := newTestWorld(t, DefaultPolicy())
	obj := newTestObject(t, w, mgl64.Vec3{0, 5, 0}, true)

	first := obj.Spawn()
	second := obj.Spawn()
	if first == nil || first != second {
		t.Fatal("second Spawn should return the existing entity")
	}
	w.Instance().Tick()
	if got := w.Instance().Len(); got != 1 {
		t.Errorf("Expected 1 entity in the instance, got %d", got)
	}

	obj.Destroy()
	if got := w.Instance().Len(); got != 0 {
		t.Errorf("Destroy left %d entities behind", got)
	}
}

func TestConcurrentAddRemoveDuringStep(t *testing.T) {
	w := newTestWorld(t, DefaultPolicy())
	keep := newTestObject(t, w, mgl64.Vec3{-10, 5, 0}, true)
	keep.Spawn()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 200 {
			obj, err := makeTestObject(w, mgl64.Vec3{float64(i%10) * 2, 5, 0}, i%2 == 0)
			if err != nil {
				t.Errorf("makeTestObject: %v", err)
				return
			}
			obj.Spawn()
			obj.AddForce(mgl64.Vec3{0, 10, 0})
			obj.Destroy()
		}
	}()

	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
			w.Step(1.0 / 60)
			w.Instance().Tick()
		}
	}
	w.Instance().Tick()

	checkIndex(t, w)
	if w.NumObjects() != 1 {
		t.Errorf("Expected only the kept object, got %d", w.NumObjects())
	}
	if got := w.Instance().Len(); got != 1 {
		t.Errorf("Expected only the kept entity, got %d", got)
	}
	if !keep.Entity().IsActive() {
		t.Error("kept entity should be active")
	}
}

func TestReleaseTwice(t *testing.T) {
	w := newTestWorld(t, DefaultPolicy())
	a := newTestObject(t, w, mgl64.Vec3{0, 5, 0}, false)
	floor := w.Floor()

	w.Release()
	w.Release()

	if !w.Released() {
		t.Error("world should be released")
	}
	if !a.Destroyed() {
		t.Error("Release should destroy objects")
	}
	if !floor.Released() {
		t.Error("Release should release the floor")
	}
	if !w.Scene().Released() {
		t.Error("Release should release the scene")
	}

	// a released world ignores steps
	w.Step(1.0 / 60)
}

func TestGravityPassthrough(t *testing.T) {
	w := newTestWorld(t, DefaultPolicy())
	if w.Gravity() != (mgl64.Vec3{0, -17, 0}) {
		t.Errorf("Expected default gravity, got %v", w.Gravity())
	}
	w.SetGravity(mgl64.Vec3{0, -9.81, 0})
	if math.Abs(w.Gravity().Y()+9.81) > 1e-6 {
		t.Errorf("Expected -9.81, got %v", w.Gravity().Y())
	}
}

func TestOnContactResolvesObjects(t *testing.T) {
	w := newTestWorld(t, DefaultPolicy())
	obj := newTestObject(t, w, mgl64.Vec3{0, 0.55, 0}, false)

	var hits int
	w.OnContact(func(a, b Object, kind physics.ContactKind) {
		if kind != physics.ContactEnter {
			return
		}
		if (a == obj && b == nil) || (b == obj && a == nil) {
			hits++
		}
	})

	for range 10 {
		w.Step(1.0 / 60)
	}
	if hits != 1 {
		t.Errorf("Expected 1 floor contact, got %d", hits)
	}
}

func TestPositionAndVelocityPassthrough(t *testing.T) {
	w := newTestWorld(t, DefaultPolicy())
	obj := newTestObject(t, w, mgl64.Vec3{0, 5, 0}, false)

	obj.SetPosition(mgl64.Vec3{1, 2, 3})
	if obj.Position() != (mgl64.Vec3{1, 2, 3}) {
		t.Errorf("Expected (1,2,3), got %v", obj.Position())
	}
	obj.SetLinearVelocity(mgl64.Vec3{0, 4, 0})
	if obj.LinearVelocity() != (mgl64.Vec3{0, 4, 0}) {
		t.Errorf("Expected (0,4,0), got %v", obj.LinearVelocity())
	}

	obj.AddImpulse(mgl64.Vec3{0, 2, 0})
	if math.Abs(obj.LinearVelocity().Y()-6) > 1e-6 {
		t.Errorf("Expected vy=6 after unit-mass impulse, got %v", obj.LinearVelocity().Y())
	}
}
