package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"blockphys/internal/components"
	"blockphys/internal/engine"
	"blockphys/internal/hitbox"
	"blockphys/internal/physics"
	"blockphys/internal/tuning"
	"blockphys/internal/world"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl64"
)

// Steps longer than this are cut short, so a stalled server does not
// launch everything through the floor on the next tick.
const maxStep = 0.25

// Blocks spawned by a sneaking player.
const (
	SpawnedBlockSize = 0.5
	SpawnedBlockMass = 1
)

// Platform half extents under each spawn point.
var platformHalfExtents = rl.Vector3{X: 3, Y: 0.005, Z: 3}

var ErrEnded = errors.New("game: session ended")

type Player struct {
	Name     string
	Position mgl64.Vec3
}

// Stats is a snapshot for debug output.
type Stats struct {
	Ticks    uint64
	Objects  int
	Entities int
	Contacts uint64
	StepMs   float64
}

// Session is one game: a world, its instance and the players in it. Update
// is driven by Run or by an outside loop; the gameplay methods may be
// called from other goroutines.
type Session struct {
	Tuning   tuning.Tuning
	World    *world.World
	Instance *engine.Instance

	spawnPoints []mgl64.Vec3
	platforms   []*physics.RigidBody

	mu       sync.Mutex
	players  []*Player
	hitboxes []*engine.Entity

	now        func() time.Time
	lastUpdate time.Time
	ticks      atomic.Uint64
	contacts   atomic.Uint64
	stepNanos  atomic.Int64
	ending     atomic.Bool
}

// New creates the session's world with a platform one unit under each
// spawn point.
func New(env *physics.Env, t tuning.Tuning, spawnPoints []mgl64.Vec3) (*Session, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning: %w", err)
	}
	inst := engine.NewInstance("game")
	w, err := world.New(env, inst, t.Policy())
	if err != nil {
		return nil, fmt.Errorf("failed to create world: %w", err)
	}

	s := &Session{
		Tuning:      t,
		World:       w,
		Instance:    inst,
		spawnPoints: slices.Clone(spawnPoints),
		now:         time.Now,
	}
	for _, p := range spawnPoints {
		if err := s.addPlatform(p); err != nil {
			s.releasePlatforms()
			w.Release()
			return nil, err
		}
	}
	w.OnContact(s.onContact)
	s.lastUpdate = s.now()
	return s, nil
}

func (s *Session) addPlatform(spawn mgl64.Vec3) error {
	env := s.World.Env()
	shape, err := env.CreateShape(physics.BoxGeometry{HalfExtents: platformHalfExtents}, nil)
	if err != nil {
		return fmt.Errorf("failed to create platform shape: %w", err)
	}
	defer shape.Release()

	pos := rl.Vector3{X: float32(spawn.X()), Y: float32(spawn.Y() - 1), Z: float32(spawn.Z())}
	body := env.CreateStatic(physics.NewTransform(pos))
	if err := body.AttachShape(shape); err != nil {
		body.Release()
		return fmt.Errorf("failed to attach platform shape: %w", err)
	}
	if err := s.World.Scene().AddActor(body); err != nil {
		body.Release()
		return fmt.Errorf("failed to add platform: %w", err)
	}
	s.platforms = append(s.platforms, body)
	return nil
}

// Join adds a player at the next spawn point.
func (s *Session) Join(name string) *Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &Player{Name: name}
	if n := len(s.spawnPoints); n > 0 {
		p.Position = s.spawnPoints[len(s.players)%n]
	}
	s.players = append(s.players, p)
	return p
}

// Leave removes a player. The game ends when one player is left.
func (s *Session) Leave(p *Player) {
	s.mu.Lock()
	s.players = slices.DeleteFunc(s.players, func(q *Player) bool { return q == p })
	remaining := len(s.players)
	s.mu.Unlock()

	log.Printf("Game: %s has left", p.Name)
	if remaining == 1 {
		s.End()
	}
}

func (s *Session) Players() []*Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.players)
}

// Update steps the world by the time since the previous update, then ticks
// the instance so new entities become active.
func (s *Session) Update() {
	if s.ending.Load() {
		return
	}
	now := s.now()
	dt := now.Sub(s.lastUpdate).Seconds()
	s.lastUpdate = now
	if dt > maxStep {
		dt = maxStep
	}

	start := time.Now()
	if dt > 0 {
		s.World.Step(dt)
	}
	s.Instance.Tick()
	s.stepNanos.Store(int64(time.Since(start)))
	s.ticks.Add(1)
}

// Run calls Update at the tuned tick rate until ctx is done or the session
// ends.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(s.Tuning.TickRateHz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.ending.Load() {
				return nil
			}
			s.Update()
		}
	}
}

// SpawnBlock drops a small, always-active diamond block at pos.
func (s *Session) SpawnBlock(pos mgl64.Vec3) (*components.BlockObject, error) {
	if s.ending.Load() {
		return nil, ErrEnded
	}
	size := mgl64.Vec3{SpawnedBlockSize, SpawnedBlockSize, SpawnedBlockSize}
	b, err := components.NewBlockObject(s.World, pos, size, SpawnedBlockMass, true, components.DiamondBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to spawn block: %w", err)
	}
	b.SetDamping(float32(s.Tuning.LinearDamping), float32(s.Tuning.AngularDamping))
	b.Spawn()
	b.SetAlwaysActive(true)
	return b, nil
}

// Sneak is the player action: a block appears one unit under their feet.
func (s *Session) Sneak(p *Player) (*components.BlockObject, error) {
	return s.SpawnBlock(p.Position.Sub(mgl64.Vec3{0, 1, 0}))
}

// ShowHitbox outlines obj with markers until ClearHitboxes. Returns the
// number of markers.
func (s *Session) ShowHitbox(obj world.Object) int {
	r := hitbox.Generate(s.World, obj, hitbox.Options{Resolution: s.Tuning.HitboxResolution})
	s.mu.Lock()
	s.hitboxes = append(s.hitboxes, r.Entities...)
	s.mu.Unlock()
	return len(r.Shell)
}

func (s *Session) ClearHitboxes() {
	s.mu.Lock()
	entities := s.hitboxes
	s.hitboxes = nil
	s.mu.Unlock()
	for _, e := range entities {
		e.Remove()
	}
}

func (s *Session) onContact(a, b world.Object, kind physics.ContactKind) {
	if kind == physics.ContactEnter {
		s.contacts.Add(1)
	}
	if s.Tuning.Debug {
		log.Printf("Game: contact %s between %s and %s", kind, describe(a), describe(b))
	}
}

func describe(obj world.Object) string {
	if obj == nil {
		return "ground"
	}
	if str, ok := obj.(fmt.Stringer); ok {
		return str.String()
	}
	return fmt.Sprintf("%T", obj)
}

func (s *Session) Stats() Stats {
	return Stats{
		Ticks:    s.ticks.Load(),
		Objects:  s.World.NumObjects(),
		Entities: s.Instance.Len(),
		Contacts: s.contacts.Load(),
		StepMs:   float64(s.stepNanos.Load()) / 1e6,
	}
}

func (s *Session) Ended() bool {
	return s.ending.Load()
}

// End tears the session down once: hitboxes, platforms, then the world.
func (s *Session) End() {
	if s.ending.Swap(true) {
		return
	}
	s.ClearHitboxes()
	s.releasePlatforms()
	s.World.Release()

	s.mu.Lock()
	s.players = nil
	s.mu.Unlock()
	log.Printf("Game: session ended after %d ticks", s.ticks.Load())
}

func (s *Session) releasePlatforms() {
	scene := s.World.Scene()
	for _, p := range s.platforms {
		scene.RemoveActor(p)
		p.Release()
	}
	s.platforms = nil
}
