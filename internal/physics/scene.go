package physics

import (
	"log"
	"slices"
	"sync"
	"time"

	"blockphys/internal/compute"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// ContactKind tells whether a contact pair started or stopped touching.
type ContactKind int

const (
	ContactEnter ContactKind = iota
	ContactExit
)

func (k ContactKind) String() string {
	if k == ContactEnter {
		return "enter"
	}
	return "exit"
}

// Contact is one pair event produced by a step.
type Contact struct {
	A, B *RigidBody
	Kind ContactKind
}

// ContactHandler receives pair events from FetchResults, on the fetching
// goroutine, after the scene lock is released.
type ContactHandler func(Contact)

type pairKey struct {
	lo, hi uint64
}

func makePair(a, b *RigidBody) (pairKey, [2]*RigidBody) {
	if a.id > b.id {
		a, b = b, a
	}
	return pairKey{a.id, b.id}, [2]*RigidBody{a, b}
}

// Scene is one simulation. Actor membership, gravity and the step itself
// are serialized by one mutex, so AddActor and RemoveActor may be called
// from any goroutine; they wait for an in-flight step.
type Scene struct {
	env *Env

	mu       sync.Mutex
	actors   []*RigidBody
	index    map[*RigidBody]int
	gravity  rl.Vector3
	handler  ContactHandler
	active   map[pairKey][2]*RigidBody
	events   []Contact
	released bool

	pool workerPool

	gpu          *compute.BroadPhase
	gpuThreshold int
	usingGPU     bool

	simMu   sync.Mutex
	pending chan struct{}
}

func newScene(env *Env, gravity rl.Vector3) *Scene {
	return &Scene{
		env:     env,
		index:   make(map[*RigidBody]int),
		gravity: gravity,
		active:  make(map[pairKey][2]*RigidBody),
		pool:    workerPool{workers: env.caps.Threads},
	}
}

// AddActor inserts b at the end of the actor list.
func (s *Scene) AddActor(b *RigidBody) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released || b.released {
		return ErrReleased
	}
	if b.scene == s {
		return ErrDuplicateActor
	}
	if b.scene != nil {
		return ErrForeignActor
	}

	s.index[b] = len(s.actors)
	s.actors = append(s.actors, b)
	b.scene = s
	return nil
}

// RemoveActor takes b out of the scene. Removing an absent actor does nothing.
func (s *Scene) RemoveActor(b *RigidBody) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(b)
}

func (s *Scene) removeLocked(b *RigidBody) {
	i, ok := s.index[b]
	if !ok {
		return
	}
	s.actors = slices.Delete(s.actors, i, i+1)
	delete(s.index, b)
	for j := i; j < len(s.actors); j++ {
		s.index[s.actors[j]] = j
	}
	b.scene = nil

	// forget its contacts; a removed actor gets no exit event
	for k, pair := range s.active {
		if pair[0] == b || pair[1] == b {
			delete(s.active, k)
		}
	}
}

// Actors returns a snapshot of the actor list in insertion order.
func (s *Scene) Actors() []*RigidBody {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.actors)
}

func (s *Scene) NbActors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actors)
}

func (s *Scene) SetGravity(g rl.Vector3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gravity = g
}

func (s *Scene) Gravity() rl.Vector3 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gravity
}

func (s *Scene) SetContactHandler(h ContactHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// LockWrite gives the caller exclusive access to the scene and its actors
// between steps, for edits that must look atomic to the solver such as
// swapping a body's shapes. AddActor, RemoveActor, RigidBody.Release and
// Step must not be called while it is held.
func (s *Scene) LockWrite() {
	s.mu.Lock()
}

func (s *Scene) UnlockWrite() {
	s.mu.Unlock()
}

// UsingGPU reports whether the last step ran the GPU broad-phase.
func (s *Scene) UsingGPU() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usingGPU
}

// Simulate starts advancing the scene by dt seconds on a background
// goroutine. FetchResults must be called before the next Simulate.
func (s *Scene) Simulate(dt float32) error {
	s.simMu.Lock()
	defer s.simMu.Unlock()

	if s.pending != nil {
		return ErrSimulationPending
	}
	s.mu.Lock()
	released := s.released
	s.mu.Unlock()
	if released {
		return ErrReleased
	}

	done := make(chan struct{})
	s.pending = done
	go func() {
		defer close(done)
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.released {
			s.step(dt)
		}
	}()
	return nil
}

// FetchResults waits for the step started by Simulate and dispatches its
// contact events. With block false it returns false if the step is still
// running. It returns true when nothing is pending.
func (s *Scene) FetchResults(block bool) bool {
	s.simMu.Lock()
	done := s.pending
	s.simMu.Unlock()
	if done == nil {
		return true
	}

	if block {
		<-done
	} else {
		select {
		case <-done:
		default:
			return false
		}
	}

	s.simMu.Lock()
	s.pending = nil
	s.simMu.Unlock()

	s.mu.Lock()
	events := s.events
	s.events = nil
	handler := s.handler
	s.mu.Unlock()

	if handler != nil {
		for _, e := range events {
			handler(e)
		}
	}
	return true
}

// Step simulates dt seconds and waits for the results.
func (s *Scene) Step(dt float32) error {
	if err := s.Simulate(dt); err != nil {
		return err
	}
	s.FetchResults(true)
	return nil
}

// PairTest reports whether any shape of a overlaps any shape of b. Neither
// body has to be in a scene and filter data is ignored.
func PairTest(a, b *RigidBody) bool {
	for _, sa := range a.shapes {
		for _, sb := range b.shapes {
			if shapesOverlap(a.pose, sa, b.pose, sb) {
				return true
			}
		}
	}
	return false
}

func (s *Scene) PairTest(a, b *RigidBody) bool {
	return PairTest(a, b)
}

// Overlap returns every actor whose shapes overlap the query body's.
func (s *Scene) Overlap(query *RigidBody) []*RigidBody {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hits []*RigidBody
	for _, actor := range s.actors {
		if actor != query && PairTest(query, actor) {
			hits = append(hits, actor)
		}
	}
	return hits
}

// Release removes every actor and frees the GPU broad-phase. The actors
// themselves stay alive for their owners to release. Safe to call twice.
func (s *Scene) Release() {
	s.FetchResults(true)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true

	for _, b := range s.actors {
		b.scene = nil
	}
	s.actors = nil
	s.index = make(map[*RigidBody]int)
	s.active = make(map[pairKey][2]*RigidBody)
	if s.gpu != nil {
		s.gpu.Release()
		s.gpu = nil
	}
}

func (s *Scene) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// step runs with s.mu held.
func (s *Scene) step(dt float32) {
	if dt <= 0 {
		return
	}
	start := time.Now()

	var moving []*RigidBody
	var planes []*RigidBody
	for _, b := range s.actors {
		if b.kind == bodyDynamic && !b.sleeping {
			moving = append(moving, b)
		}
		if b.kind == bodyStatic && hasPlane(b) {
			planes = append(planes, b)
		}
	}

	// 1. Integrate forces, velocities and poses
	g := s.gravity
	s.pool.run(len(moving), func(i int) {
		integrate(moving[i], g, dt)
	})

	// 2. Broad-phase, then narrow-phase on the candidate pairs
	current := make(map[pairKey][2]*RigidBody)
	for _, pair := range s.broadPhase() {
		if s.resolvePair(pair[0], pair[1]) {
			key, bodies := makePair(pair[0], pair[1])
			current[key] = bodies
		}
	}

	// 3. Dynamic bodies against planes
	for _, b := range moving {
		if b.kinematic {
			continue
		}
		for _, plane := range planes {
			if resolvePlane(b, plane) {
				key, bodies := makePair(b, plane)
				current[key] = bodies
			}
		}
	}

	// 4. Sleep
	s.pool.run(len(moving), func(i int) {
		updateSleep(moving[i], dt)
	})

	// 5. Pair events, diffed against the previous step
	for key, pair := range current {
		if _, ok := s.active[key]; !ok {
			s.events = append(s.events, Contact{A: pair[0], B: pair[1], Kind: ContactEnter})
		}
	}
	for key, pair := range s.active {
		if _, ok := current[key]; !ok {
			s.events = append(s.events, Contact{A: pair[0], B: pair[1], Kind: ContactExit})
		}
	}
	s.active = current

	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		log.Printf("Physics: slow step %v (%d actors)", elapsed, len(s.actors))
	}
}

func hasPlane(b *RigidBody) bool {
	for _, sh := range b.shapes {
		if _, ok := sh.geometry.(PlaneGeometry); ok {
			return true
		}
	}
	return false
}
