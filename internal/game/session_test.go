package game

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"blockphys/internal/physics"
	"blockphys/internal/tuning"

	"github.com/go-gl/mathgl/mgl64"
)

// fakeClock replaces the session's time source.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestSession(t *testing.T, spawns ...mgl64.Vec3) (*Session, *fakeClock) {
	t.Helper()
	env, err := physics.Init(physics.Config{Acceleration: physics.AccelCPU})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	s, err := New(env, tuning.Default(), spawns)
	if err != nil {
		env.Close()
		t.Fatalf("New: %v", err)
	}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s.now = func() time.Time { return clock.now }
	s.lastUpdate = clock.now
	t.Cleanup(func() {
		s.End()
		env.Close()
	})
	return s, clock
}

func TestNewAddsPlatforms(t *testing.T) {
	s, _ := newTestSession(t, mgl64.Vec3{0, 5, 0}, mgl64.Vec3{10, 5, 0})
	// floor plus one platform per spawn point
	if got := s.World.Scene().NbActors(); got != 3 {
		t.Errorf("Expected 3 actors, got %d", got)
	}
	if s.World.NumObjects() != 0 {
		t.Errorf("platforms should not be world objects, got %d", s.World.NumObjects())
	}
}

func TestNewRejectsBadTuning(t *testing.T) {
	env, err := physics.Init(physics.Config{Acceleration: physics.AccelCPU})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer env.Close()

	bad := tuning.Default()
	bad.TickRateHz = 0
	if _, err := New(env, bad, nil); err == nil {
		t.Error("expected an error for a zero tick rate")
	}
}

func TestJoinRoundRobin(t *testing.T) {
	a, b := mgl64.Vec3{0, 5, 0}, mgl64.Vec3{10, 5, 0}
	s, _ := newTestSession(t, a, b)

	want := []mgl64.Vec3{a, b, a}
	for i, w := range want {
		p := s.Join("player")
		if p.Position != w {
			t.Errorf("player %d: Expected spawn %v, got %v", i, w, p.Position)
		}
	}
	if len(s.Players()) != 3 {
		t.Errorf("Expected 3 players, got %d", len(s.Players()))
	}
}

func TestLeaveEndsWithOnePlayer(t *testing.T) {
	s, _ := newTestSession(t, mgl64.Vec3{0, 5, 0})
	alice := s.Join("alice")
	s.Join("bob")

	s.Leave(alice)
	if !s.Ended() {
		t.Fatal("session should end when one player is left")
	}
	if !s.World.Released() {
		t.Error("world should be released")
	}
}

func TestSpawnBlockBecomesVisibleAfterUpdate(t *testing.T) {
	s, clock := newTestSession(t)
	b, err := s.SpawnBlock(mgl64.Vec3{0, 3, 0})
	if err != nil {
		t.Fatalf("SpawnBlock: %v", err)
	}
	if !b.AlwaysActive() {
		t.Error("spawned blocks should stay awake")
	}
	if b.Entity() == nil || b.Entity().IsActive() {
		t.Fatal("entity should exist but wait for a tick")
	}

	clock.advance(time.Second / 60)
	s.Update()
	if !b.Entity().IsActive() {
		t.Error("entity should be active after an update")
	}
	if st := s.Stats(); st.Objects != 1 || st.Entities != 1 || st.Ticks != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestUpdateClampsLongSteps(t *testing.T) {
	s, clock := newTestSession(t)
	b, err := s.SpawnBlock(mgl64.Vec3{0, 5, 0})
	if err != nil {
		t.Fatalf("SpawnBlock: %v", err)
	}

	clock.advance(time.Second)
	s.Update()

	want := -17 * maxStep * (1 - 0.3*maxStep)
	if got := b.LinearVelocity().Y(); math.Abs(got-want) > 1e-3 {
		t.Errorf("Expected vy %.4f, got %.4f", want, got)
	}
}

func TestSneakSpawnsUnderPlayer(t *testing.T) {
	s, _ := newTestSession(t, mgl64.Vec3{4, 6, 4})
	p := s.Join("alice")
	b, err := s.Sneak(p)
	if err != nil {
		t.Fatalf("Sneak: %v", err)
	}
	if got := b.Position(); !got.ApproxEqualThreshold(mgl64.Vec3{4, 5, 4}, 1e-5) {
		t.Errorf("Expected block at (4,5,4), got %v", got)
	}
}

func TestContactsCounted(t *testing.T) {
	s, clock := newTestSession(t)
	if _, err := s.SpawnBlock(mgl64.Vec3{0, 1, 0}); err != nil {
		t.Fatalf("SpawnBlock: %v", err)
	}
	for range 120 {
		clock.advance(time.Second / 60)
		s.Update()
	}
	if s.Stats().Contacts == 0 {
		t.Error("block landing on the floor should count a contact")
	}
}

func TestShowAndClearHitboxes(t *testing.T) {
	s, clock := newTestSession(t)
	b, err := s.SpawnBlock(mgl64.Vec3{0, 3, 0})
	if err != nil {
		t.Fatalf("SpawnBlock: %v", err)
	}
	n := s.ShowHitbox(b)
	if n == 0 {
		t.Fatal("Expected markers for a visible block")
	}

	clock.advance(time.Second / 60)
	s.Update()
	clock.advance(time.Second / 60)
	s.Update()
	// block entity plus a holder and a marker per cell
	if got := s.Instance.Len(); got != 1+2*n {
		t.Errorf("Expected %d entities, got %d", 1+2*n, got)
	}

	s.ClearHitboxes()
	if got := s.Instance.Len(); got != 1 {
		t.Errorf("Expected only the block entity left, got %d", got)
	}
}

func TestEndTwice(t *testing.T) {
	s, clock := newTestSession(t)
	if _, err := s.SpawnBlock(mgl64.Vec3{0, 3, 0}); err != nil {
		t.Fatalf("SpawnBlock: %v", err)
	}
	s.End()
	s.End()

	if s.World.NumObjects() != 0 {
		t.Errorf("Expected no objects after End, got %d", s.World.NumObjects())
	}
	clock.advance(time.Second)
	s.Update()
	if s.Stats().Ticks != 0 {
		t.Error("Update after End should do nothing")
	}
	if _, err := s.SpawnBlock(mgl64.Vec3{}); !errors.Is(err, ErrEnded) {
		t.Errorf("Expected ErrEnded, got %v", err)
	}
}

func TestRunStopsOnContext(t *testing.T) {
	s, _ := newTestSession(t)
	s.now = time.Now
	s.lastUpdate = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
	if s.Stats().Ticks == 0 {
		t.Error("Run should have ticked at least once")
	}
}

func TestRunReturnsWhenEnded(t *testing.T) {
	s, _ := newTestSession(t)
	s.End()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Errorf("Expected nil after End, got %v", err)
	}
}
